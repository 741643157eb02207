package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for textcast
type Metrics struct {
	// Phone normalization
	PhoneNormalizationsTotal *prometheus.CounterVec

	// Import pipeline
	ImportBatchesTotal *prometheus.CounterVec
	ImportRowsTotal    *prometheus.CounterVec
	ImportBatchSize    prometheus.Histogram

	// Audience and composition
	AudienceResolutionsTotal *prometheus.CounterVec
	AudienceSize             prometheus.Histogram
	DraftsValidatedTotal     *prometheus.CounterVec

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec
	APIErrorsTotal            *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		PhoneNormalizationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textcast_phone_normalizations_total",
				Help: "Total number of phone normalizations by result",
			},
			[]string{"result"},
		),

		ImportBatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textcast_import_batches_total",
				Help: "Total number of import batches by result",
			},
			[]string{"result"},
		),
		ImportRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textcast_import_rows_total",
				Help: "Total number of import rows by outcome",
			},
			[]string{"outcome"},
		),
		ImportBatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "textcast_import_batch_rows",
				Help:    "Number of rows per import batch",
				Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2000},
			},
		),

		AudienceResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textcast_audience_resolutions_total",
				Help: "Total number of audience resolutions by rule kind and result",
			},
			[]string{"rule", "result"},
		),
		AudienceSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "textcast_audience_size",
				Help:    "Resolved recipient count per composed draft",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		DraftsValidatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textcast_drafts_validated_total",
				Help: "Total number of draft validations by result",
			},
			[]string{"result"},
		),

		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textcast_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "textcast_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		APIErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textcast_api_errors_total",
				Help: "Total number of API errors",
			},
			[]string{"error_type"},
		),

		registry: reg,
	}

	reg.MustRegister(
		m.PhoneNormalizationsTotal,
		m.ImportBatchesTotal,
		m.ImportRowsTotal,
		m.ImportBatchSize,
		m.AudienceResolutionsTotal,
		m.AudienceSize,
		m.DraftsValidatedTotal,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.APIErrorsTotal,
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetGlobal sets the global metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// IncPhoneNormalization counts a normalization attempt
func IncPhoneNormalization(ok bool) {
	m := Global()
	if m == nil {
		return
	}
	result := "valid"
	if !ok {
		result = "invalid"
	}
	m.PhoneNormalizationsTotal.WithLabelValues(result).Inc()
}

// ObserveImport records an import batch and its per-outcome row counts
func ObserveImport(result string, rows int, outcomes map[string]int) {
	m := Global()
	if m == nil {
		return
	}
	m.ImportBatchesTotal.WithLabelValues(result).Inc()
	m.ImportBatchSize.Observe(float64(rows))
	for outcome, n := range outcomes {
		if n > 0 {
			m.ImportRowsTotal.WithLabelValues(outcome).Add(float64(n))
		}
	}
}

// ObserveDraftValidation records a validation result and the audience size
func ObserveDraftValidation(valid bool, recipients int) {
	m := Global()
	if m == nil {
		return
	}
	result := "valid"
	if !valid {
		result = "invalid"
	}
	m.DraftsValidatedTotal.WithLabelValues(result).Inc()
	m.AudienceSize.Observe(float64(recipients))
}

// IncAPIErrors increments API error counter
func IncAPIErrors(errorType string) {
	m := Global()
	if m != nil {
		m.APIErrorsTotal.WithLabelValues(errorType).Inc()
	}
}
