// Package telemetry provides application-level observability for alertdesk.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<ADK_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090.  The endpoint returns data in the Prometheus text exposition
// format (Content-Type: text/plain; version=0.0.4) and is intended to be scraped by
// a Prometheus server every 15–60 seconds.  It is NOT served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Provider lifecycle counters (installs, deletes, method invocations)
//   - Webhook installation counters
//   - Alert pull scheduler duration and error counters
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /providers/:type/:id)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments such as provider instance ids. Provider metrics
// are labelled by provider type (a small closed set), never by instance id or
// tenant id.
//
// # Usage
//
// Import the package for side effects so metrics are registered before the HTTP server
// starts listening:
//
//	import _ "github.com/alertdesk/alertdesk/internal/telemetry"
//
// Or import it directly and use an exported var:
//
//	telemetry.ProviderInstallsTotal.WithLabelValues(providerType, "ok").Inc()
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// HTTPRequestsTotal is a CounterVec with labels {method, path, status}.
// The path label holds the Gin route template (e.g. /providers/:type/:id/invoke/:method),
// NOT the raw URL, to prevent unbounded cardinality.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - Requests by route:                 sum by (path) (rate(http_requests_total[5m]))
//
// HTTPRequestDuration is a HistogramVec with labels {method, path} and exponential-ish
// buckets from 5 ms to 30 s.  Use histogram_quantile to compute latency percentiles.
//
// Example PromQL queries:
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
//   - Average latency:                   rate(http_request_duration_seconds_sum[5m]) / rate(http_request_duration_seconds_count[5m])
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Provider lifecycle metrics — recorded by the provider service.
//
// ProviderInstallsTotal is a CounterVec with labels {provider_type, outcome}.
// "outcome" is one of "ok", "config_error", "scope_error", or "error"; a rising
// config_error rate usually means a provider's upstream changed its auth model.
//
// Example PromQL queries:
//   - Install failure rate:  sum(rate(provider_installs_total{outcome!="ok"}[1h]))
//   - Most installed types:  topk(5, sum by (provider_type) (provider_installs_total{outcome="ok"}))
//
// ProviderDeletesTotal is a CounterVec with label {provider_type} incremented on
// each successful uninstall.
//
// ProviderMethodInvocationsTotal is a CounterVec with labels {provider_type, method, outcome}
// incremented for every dispatched provider method call, including default-instance
// calls. "outcome" is "ok", "not_found", "bad_params", "provider_error", or "error".
//
// Example PromQL queries:
//   - Invocation error rate by type:  sum by (provider_type) (rate(provider_method_invocations_total{outcome!="ok"}[15m]))
var (
	ProviderInstallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_installs_total",
			Help: "Total number of provider installation attempts, by provider type and outcome.",
		},
		[]string{"provider_type", "outcome"},
	)

	ProviderDeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_deletes_total",
			Help: "Total number of provider uninstalls, by provider type.",
		},
		[]string{"provider_type"},
	)

	ProviderMethodInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_method_invocations_total",
			Help: "Total number of provider method invocations, by provider type, method, and outcome.",
		},
		[]string{"provider_type", "method", "outcome"},
	)
)

// WebhookInstallsTotal is a CounterVec with labels {provider_type, outcome}
// incremented once per webhook installation attempt. Webhook failures never
// fail the enclosing provider install, so this counter is the only durable
// signal that a provider was installed without its webhook.
//
// Example PromQL queries:
//   - Webhook failure ratio:  sum(rate(webhook_installs_total{outcome="error"}[1h])) / sum(rate(webhook_installs_total[1h]))
var WebhookInstallsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_installs_total",
		Help: "Total number of provider webhook installation attempts, by provider type and outcome.",
	},
	[]string{"provider_type", "outcome"},
)

// Alert pull scheduler metrics — recorded by the background pull job.
//
// AlertPullDuration is a Histogram using the default Prometheus buckets (5 ms–10 s).
// Each observation represents one complete pull for a single provider instance.
//
// Example PromQL queries:
//   - p95 pull duration:  histogram_quantile(0.95, rate(alert_pull_duration_seconds_bucket[1h]))
//   - Average pull time:  rate(alert_pull_duration_seconds_sum[1h]) / rate(alert_pull_duration_seconds_count[1h])
//
// AlertPullErrorsTotal is a CounterVec with label {provider_type}.  An alert on
// rate(alert_pull_errors_total[1h]) > 0 is recommended to catch upstream
// monitoring-system outages early.
//
// AlertsPulledTotal counts alerts ingested by the scheduler, by provider type.
var (
	AlertPullDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alert_pull_duration_seconds",
			Help:    "Duration of a single provider alert pull operation.",
			Buckets: prometheus.DefBuckets,
		},
	)

	AlertPullErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_pull_errors_total",
			Help: "Total number of failed alert pull attempts, by provider type.",
		},
		[]string{"provider_type"},
	)

	AlertsPulledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_pulled_total",
			Help: "Total number of alerts ingested by the pull scheduler, by provider type.",
		},
		[]string{"provider_type"},
	)
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool.  It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
//
// Example PromQL queries:
//   - Pool utilisation (%): db_open_connections / <ADK_DATABASE_MAX_CONNECTIONS> * 100
//   - Alert on near-exhaustion: db_open_connections > 20  (for max_connections=25)
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits cleanly when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(database)
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
