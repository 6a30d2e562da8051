package observability

import (
	"time"

	"github.com/boddenberg/fincore/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	requestsTotal    *prometheus.CounterVec
	ledgerErrors     *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	cacheErrors      *prometheus.CounterVec
	alertsEmitted    prometheus.Counter
	reportsGenerated *prometheus.CounterVec
	eventsDropped    *prometheus.CounterVec
}

// Cache names used as label values.
const (
	CacheBudgets       = "budgets"
	CacheSpend         = "spend"
	CacheTrends        = "trends"
	CacheReports       = "reports"
	CacheSummaries     = "transaction_summaries"
	CacheCategoryStats = "category_stats"
)

// NewMetrics creates a dedicated Prometheus registry and registers all
// engine metrics in it. A private registry lets tests build as many
// instances as they like.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fincore_operation_duration_seconds",
				Help:    "Duration of engine operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincore_operations_total",
				Help: "Total engine operations by outcome.",
			},
			[]string{"status"},
		),
		ledgerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincore_ledger_errors_total",
				Help: "Total infrastructure errors from the ledger store.",
			},
			[]string{"operation"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincore_cache_hits_total",
				Help: "Total derived-value cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincore_cache_misses_total",
				Help: "Total derived-value cache misses.",
			},
			[]string{"cache"},
		),
		cacheErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincore_cache_errors_total",
				Help: "Total cache failures degraded to a direct store read.",
			},
			[]string{"cache"},
		),
		alertsEmitted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fincore_budget_alerts_total",
				Help: "Total budget alerts emitted.",
			},
		),
		reportsGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincore_reports_generated_total",
				Help: "Total reports generated by type.",
			},
			[]string{"type"},
		),
		eventsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincore_events_dropped_total",
				Help: "Total events or notifications that could not be delivered.",
			},
			[]string{"kind"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrRequest increments the operation counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// IncrLedgerError increments the ledger error counter.
func (m *Metrics) IncrLedgerError(operation string) {
	m.ledgerErrors.WithLabelValues(operation).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrCacheError increments the cache error counter.
func (m *Metrics) IncrCacheError(cache string) {
	m.cacheErrors.WithLabelValues(cache).Inc()
}

// AddAlerts adds n emitted alerts.
func (m *Metrics) AddAlerts(n int) {
	m.alertsEmitted.Add(float64(n))
}

// IncrReport increments the generated report counter.
func (m *Metrics) IncrReport(t domain.ReportType) {
	m.reportsGenerated.WithLabelValues(string(t)).Inc()
}

// IncrDropped increments the dropped event/notification counter.
func (m *Metrics) IncrDropped(kind string) {
	m.eventsDropped.WithLabelValues(kind).Inc()
}

// CacheHits returns the cumulative hit count of a cache.
func (m *Metrics) CacheHits(cache string) float64 {
	return getCounterValue(m.cacheHits, cache)
}

// CacheMisses returns the cumulative miss count of a cache.
func (m *Metrics) CacheMisses(cache string) float64 {
	return getCounterValue(m.cacheMisses, cache)
}

// CacheErrors returns the cumulative error count of a cache.
func (m *Metrics) CacheErrors(cache string) float64 {
	return getCounterValue(m.cacheErrors, cache)
}

var allCaches = []string{CacheBudgets, CacheSpend, CacheTrends, CacheReports, CacheSummaries, CacheCategoryStats}

var allReportTypes = []domain.ReportType{
	domain.ReportProfitLoss,
	domain.ReportCashFlow,
	domain.ReportExpenseAnalytics,
	domain.ReportBudgetVsActual,
}

// GetEngineSnapshot returns cumulative engine metrics suitable for the
// GET /v1/metrics/engine endpoint.
func (m *Metrics) GetEngineSnapshot() *domain.EngineMetrics {
	success := getCounterValue(m.requestsTotal, "success")
	errCount := getCounterValue(m.requestsTotal, "error")
	total := success + errCount

	var hits, misses, cacheErrs float64
	for _, c := range allCaches {
		hits += getCounterValue(m.cacheHits, c)
		misses += getCounterValue(m.cacheMisses, c)
		cacheErrs += getCounterValue(m.cacheErrors, c)
	}

	var ledgerErrs float64
	for _, op := range LedgerOperations {
		ledgerErrs += getCounterValue(m.ledgerErrors, op)
	}

	errorRate := float64(0)
	if total > 0 {
		errorRate = errCount / total
	}
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	reports := make(map[string]int64, len(allReportTypes))
	for _, t := range allReportTypes {
		reports[string(t)] = int64(getCounterValue(m.reportsGenerated, string(t)))
	}

	return &domain.EngineMetrics{
		TotalRequests:    int64(total),
		ErrorRate:        errorRate,
		CacheHitRate:     hitRate,
		CacheErrors:      int64(cacheErrs),
		LedgerErrors:     int64(ledgerErrs),
		AlertsEmitted:    int64(readCounter(m.alertsEmitted)),
		ReportsGenerated: reports,
		Period:           "all_time",
	}
}

// LedgerOperations are the label values used with IncrLedgerError.
var LedgerOperations = []string{"read", "write"}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return readCounter(cv.WithLabelValues(label))
}

func readCounter(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
