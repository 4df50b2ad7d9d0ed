// Package metrics exposes Prometheus collectors for the tracker. Each
// Registry owns its own prometheus.Registry so tests never share state.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "labdesk"

// Registry holds every collector the service and HTTP layer record into.
type Registry struct {
	reg *prometheus.Registry

	Transitions      *prometheus.CounterVec
	RejectedChanges  *prometheus.CounterVec
	StockAdjustments *prometheus.CounterVec
	ActiveAlerts     *prometheus.GaugeVec
	RequestDuration  *prometheus.HistogramVec
}

// New builds a Registry with Go runtime and process collectors included.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Accepted status transitions by entity and target status.",
		}, []string{"entity", "to"}),
		RejectedChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_changes_total",
			Help:      "Rejected writes by entity and reason.",
		}, []string{"entity", "reason"}),
		StockAdjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjustments_total",
			Help:      "Inventory stock adjustments by direction.",
		}, []string{"direction"}),
		ActiveAlerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_alerts",
			Help:      "Alerts in the most recently computed alert set by category.",
		}, []string{"category"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.Transitions,
		r.RejectedChanges,
		r.StockAdjustments,
		r.ActiveAlerts,
		r.RequestDuration,
	)
	return r
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))
}

// Middleware records request latency keyed by the matched route, so path
// parameters do not explode label cardinality.
func (r *Registry) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil && status < http.StatusBadRequest {
				status = http.StatusInternalServerError
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			r.RequestDuration.
				WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}
