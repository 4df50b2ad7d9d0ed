package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinlab/labdesk/internal/config"
	"github.com/clinlab/labdesk/internal/domain/lab"
	"github.com/clinlab/labdesk/internal/platform/db"
	"github.com/clinlab/labdesk/internal/platform/logging"
	"github.com/clinlab/labdesk/internal/platform/metrics"
	"github.com/clinlab/labdesk/internal/platform/middleware"
	"github.com/clinlab/labdesk/migrations"
)

const (
	version        = "0.1.0"
	requestTimeout = 30 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "lab-server",
		Short:        "Clinical lab front-desk tracker",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(alertsCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the lab API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run Postgres migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			ctx := cmd.Context()
			migrator, closePool, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closePool()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			ctx := cmd.Context()
			migrator, closePool, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		state, at := "pending", ""
		if s.Applied {
			state = "applied"
			if s.AppliedAt != nil {
				at = s.AppliedAt.Format(time.RFC3339)
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, state, at)
	}
}

func openMigrator(ctx context.Context, dir string) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, errors.New("DATABASE_URL is required for migrations")
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	var files fs.FS = migrations.FS
	if dir != "" {
		files = os.DirFS(dir)
	}
	return db.NewMigrator(pool, files), pool.Close, nil
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo data set into an empty store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, io.Discard)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := lab.Seed(ctx, a.svc)
			if errors.Is(err, lab.ErrNotEmpty) {
				return fmt.Errorf("refusing to seed: %w", err)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d patients, %d appointments, %d samples, %d results, %d inventory items.\n",
				rep.Patients, rep.Appointments, rep.Samples, rep.Results, rep.Items)
			return nil
		},
	}
}

func alertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Print the current alert set as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("as-of")
			ctx := cmd.Context()
			a, err := bootstrap(ctx, io.Discard)
			if err != nil {
				return err
			}
			defer a.Close()

			asOf := a.svc.Now()
			if raw != "" {
				d, err := lab.ParseDate(raw)
				if err != nil {
					return fmt.Errorf("--as-of: %w", err)
				}
				asOf = d.Time
			}
			set, err := a.svc.Alerts(ctx, asOf)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(set)
		},
	}
	cmd.Flags().String("as-of", "", "Reference day as YYYY-MM-DD (defaults to today)")
	return cmd
}

// app bundles what every command needs: configuration, logger, metrics and
// the service over the configured store.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *metrics.Registry
	store   lab.Store
	svc     *lab.Service
	stats   func() interface{}
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error().Err(err).Msg("shutdown")
		}
	}
}

// bootstrap loads configuration and opens the store. Logs go to stdout for
// the server and to logOut for one-shot commands.
func bootstrap(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, logCloser := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Console:    cfg.IsDev(),
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Stdout:     logOut,
	})
	a := &app{cfg: cfg, logger: logger, closers: []func() error{logCloser.Close}}

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	ratio, err := cfg.Ratio()
	if err != nil {
		a.Close()
		return nil, err
	}
	opts := []lab.Option{
		lab.WithLogger(logger.With().Str("component", "lab").Logger()),
		lab.WithThresholds(lab.Thresholds{CriticalRatio: ratio, ExpiryWindow: cfg.ExpiryWindow()}),
		lab.WithPhoneRegion(cfg.PhoneRegion),
	}
	if cfg.MetricsEnabled {
		a.metrics = metrics.New()
		opts = append(opts, lab.WithMetrics(a.metrics))
	}
	a.svc = lab.NewService(a.store, opts...)
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.StoreDriver {
	case "sqlite":
		s, err := lab.OpenSQLiteStore(ctx, a.cfg.SQLitePath, nil)
		if err != nil {
			return err
		}
		a.store = s
		a.closers = append(a.closers, s.Close)
		a.logger.Info().Str("path", s.Path()).Msg("opened sqlite store")
	case "postgres":
		pool, err := db.NewPool(ctx, a.cfg.DatabaseURL, a.cfg.DBMaxConns, a.cfg.DBMinConns)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		a.store = lab.NewPGStore(pool, nil)
		a.stats = func() interface{} { return db.GetPoolStats(pool) }
		a.logger.Info().Msg("connected to database")
	default:
		a.store = lab.NewMemStore(nil)
		a.logger.Warn().Msg("using in-memory store, data is lost on restart")
	}
	return nil
}

// newServer builds the echo instance with middleware and routes.
func newServer(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(requestTimeout))
	if a.metrics != nil {
		e.Use(a.metrics.Middleware())
	}
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/store", db.HealthHandler(a.cfg.StoreDriver, a.store, a.stats))
	if a.metrics != nil {
		e.GET("/metrics", a.metrics.Handler())
	}

	apiV1 := e.Group("/api/v1")
	lab.NewHandler(a.svc).RegisterRoutes(apiV1)
	return e
}

func runServer() error {
	ctx := context.Background()
	a, err := bootstrap(ctx, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	e := newServer(a)

	// Graceful shutdown
	go func() {
		addr := ":" + a.cfg.Port
		a.logger.Info().Str("addr", addr).Str("store", a.cfg.StoreDriver).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	a.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	a.logger.Info().Msg("server stopped")
	return nil
}
