package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the board service.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// Board metrics
	Derivations     *prometheus.CounterVec
	DeriveLatency   prometheus.Histogram
	RowsProcessed   prometheus.Counter
	GroupsDerived   prometheus.Gauge
	SuperGroups     prometheus.Gauge
	OrderChanges    *prometheus.CounterVec
	UnknownFields   *prometheus.CounterVec
	Exports         *prometheus.CounterVec
	RowsUpserted    prometheus.Counter
	SettingsRejects prometheus.Counter

	// Storage metrics
	StoreLatency  *prometheus.HistogramVec
	StoreErrors   *prometheus.CounterVec
	DBConnections *prometheus.GaugeVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// NewMetrics creates a dedicated registry and registers every metric on it,
// together with the Go and process collectors.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		HTTPLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"route"},
		),

		Derivations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "board_derivations_total",
				Help:      "Board derivations by criterion and view",
			},
			[]string{"criterion", "view"},
		),
		DeriveLatency: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "board_derive_duration_seconds",
				Help:      "Time spent grouping, aggregating and ordering rows",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		RowsProcessed: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_processed_total",
				Help:      "Raw rows fed into board derivations",
			},
		),
		GroupsDerived: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "groups_last_derive",
				Help:      "Number of groups in the most recent derivation",
			},
		),
		SuperGroups: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "super_groups_last_derive",
				Help:      "Number of super groups in the most recent derivation",
			},
		),
		OrderChanges: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "order_changes_total",
				Help:      "Ordering transitions by level and action",
			},
			[]string{"level", "action"},
		),
		UnknownFields: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unknown_fields_total",
				Help:      "Row fields that normalized to Unknown",
			},
			[]string{"field"},
		),
		Exports: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Table exports by format",
			},
			[]string{"format"},
		),
		RowsUpserted: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_upserted_total",
				Help:      "Rows written to the row store",
			},
		),
		SettingsRejects: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settings_rejected_total",
				Help:      "Settings updates that failed validation",
			},
		),

		StoreLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_latency_seconds",
				Help:      "Storage operation latency",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"store", "operation"},
		),
		StoreErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Storage operation failures",
			},
			[]string{"store", "operation"},
		),
		DBConnections: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections",
				Help:      "Database connection pool stats",
			},
			[]string{"state"}, // idle, in_use, total
		),

		RateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Rate limit rejections",
			},
			[]string{"scope"},
		),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records a served request.
func (m *Metrics) RecordHTTPRequest(route, method string, status int, latency time.Duration) {
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(latency.Seconds())
}

// RecordDerive records one board derivation.
func (m *Metrics) RecordDerive(criterion, view string, rows, groups, superGroups int, latency time.Duration) {
	m.Derivations.WithLabelValues(criterion, view).Inc()
	m.DeriveLatency.Observe(latency.Seconds())
	m.RowsProcessed.Add(float64(rows))
	m.GroupsDerived.Set(float64(groups))
	m.SuperGroups.Set(float64(superGroups))
}

// RecordOrderChange records an ordering transition.
func (m *Metrics) RecordOrderChange(level, action string) {
	m.OrderChanges.WithLabelValues(level, action).Inc()
}

// RecordUnknownField records a row field that fell back to Unknown.
func (m *Metrics) RecordUnknownField(field string) {
	m.UnknownFields.WithLabelValues(field).Inc()
}

// RecordExport records a table export.
func (m *Metrics) RecordExport(format string) {
	m.Exports.WithLabelValues(format).Inc()
}

// RecordUpsert records rows written to the row store.
func (m *Metrics) RecordUpsert(n int) {
	m.RowsUpserted.Add(float64(n))
}

// RecordSettingsReject records a settings update that failed validation.
func (m *Metrics) RecordSettingsReject() {
	m.SettingsRejects.Inc()
}

// RecordStoreOp records a storage operation and whether it failed.
func (m *Metrics) RecordStoreOp(store, operation string, latency time.Duration, err error) {
	m.StoreLatency.WithLabelValues(store, operation).Observe(latency.Seconds())
	if err != nil {
		m.StoreErrors.WithLabelValues(store, operation).Inc()
	}
}

// UpdateDBStats updates database connection metrics.
func (m *Metrics) UpdateDBStats(idle, inUse, total int) {
	m.DBConnections.WithLabelValues("idle").Set(float64(idle))
	m.DBConnections.WithLabelValues("in_use").Set(float64(inUse))
	m.DBConnections.WithLabelValues("total").Set(float64(total))
}

// RecordRateLimitHit records a rate limit rejection.
func (m *Metrics) RecordRateLimitHit(scope string) {
	m.RateLimitHits.WithLabelValues(scope).Inc()
}
