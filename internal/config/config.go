package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Port               string   `mapstructure:"PORT"`
	Env                string   `mapstructure:"ENV"`
	LogLevel           string   `mapstructure:"LOG_LEVEL"`
	LogFile            string   `mapstructure:"LOG_FILE"`
	LogMaxSizeMB       int      `mapstructure:"LOG_MAX_SIZE_MB"`
	LogMaxBackups      int      `mapstructure:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays      int      `mapstructure:"LOG_MAX_AGE_DAYS"`
	StoreDriver        string   `mapstructure:"STORE_DRIVER"`
	SQLitePath         string   `mapstructure:"SQLITE_PATH"`
	DatabaseURL        string   `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins        []string `mapstructure:"CORS_ORIGINS"`
	CriticalStockRatio string   `mapstructure:"CRITICAL_STOCK_RATIO"`
	ExpiryWindowDays   int      `mapstructure:"EXPIRY_WINDOW_DAYS"`
	PhoneRegion        string   `mapstructure:"PHONE_REGION"`
	MetricsEnabled     bool     `mapstructure:"METRICS_ENABLED"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "LOG_FILE", "LOG_MAX_SIZE_MB", "LOG_MAX_BACKUPS", "LOG_MAX_AGE_DAYS",
	"STORE_DRIVER", "SQLITE_PATH", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS",
	"CRITICAL_STOCK_RATIO", "EXPIRY_WINDOW_DAYS", "PHONE_REGION", "METRICS_ENABLED",
}

// Load reads .env when present, then the environment, which wins.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 5)
	v.SetDefault("LOG_MAX_AGE_DAYS", 30)
	v.SetDefault("STORE_DRIVER", "memory")
	v.SetDefault("SQLITE_PATH", "labdesk.db")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("CRITICAL_STOCK_RATIO", "0.75")
	v.SetDefault("EXPIRY_WINDOW_DAYS", 90)
	v.SetDefault("PHONE_REGION", "ES")
	v.SetDefault("METRICS_ENABLED", true)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.PhoneRegion = strings.ToUpper(strings.TrimSpace(cfg.PhoneRegion))

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Ratio parses CRITICAL_STOCK_RATIO.
func (c *Config) Ratio() (decimal.Decimal, error) {
	r, err := decimal.NewFromString(strings.TrimSpace(c.CriticalStockRatio))
	if err != nil {
		return decimal.Zero, fmt.Errorf("CRITICAL_STOCK_RATIO is not a number: %w", err)
	}
	return r, nil
}

// ExpiryWindow converts EXPIRY_WINDOW_DAYS to a duration.
func (c *Config) ExpiryWindow() time.Duration {
	return time.Duration(c.ExpiryWindowDays) * 24 * time.Hour
}

// Validate checks that the configuration is usable for the selected store.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "memory":
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER is \"sqlite\"")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is \"postgres\"")
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be \"memory\", \"sqlite\", or \"postgres\", got %q", c.StoreDriver)
	}

	ratio, err := c.Ratio()
	if err != nil {
		return err
	}
	if !ratio.IsPositive() || ratio.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("CRITICAL_STOCK_RATIO must be in (0, 1], got %s", ratio)
	}
	if c.ExpiryWindowDays < 0 {
		return fmt.Errorf("EXPIRY_WINDOW_DAYS cannot be negative, got %d", c.ExpiryWindowDays)
	}
	if len(c.PhoneRegion) != 2 {
		return fmt.Errorf("PHONE_REGION must be a two-letter region code, got %q", c.PhoneRegion)
	}
	return nil
}
