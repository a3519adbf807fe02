package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "cargotrack_"

	resultSuccess = "success"
	resultError   = "error"

	notificationSent       = "sent"
	notificationSuppressed = "suppressed"
	notificationFailed     = "failed"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	scanRuns    *prometheus.CounterVec
	scanItems   *prometheus.CounterVec
	scanLatency *prometheus.HistogramVec

	notificationsTotal *prometheus.CounterVec

	rateLimitVerdicts *prometheus.CounterVec
)

// Init registers observability metrics.
func Init() {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total telemetry ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total telemetry ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Telemetry ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		scanRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "scan_runs_total",
				Help: "Total scan invocations by kind and result",
			},
			[]string{"scan", "result"},
		)
		scanItems = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "scan_items_total",
				Help: "Total records examined by scans",
			},
			[]string{"scan"},
		)
		scanLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "scan_latency_seconds",
				Help:    "Scan latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"scan", "result"},
		)

		notificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Total notification decisions by type and outcome",
			},
			[]string{"type", "outcome"},
		)

		rateLimitVerdicts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rate_limit_verdicts_total",
				Help: "Total rate limiter verdicts",
			},
			[]string{"verdict"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			scanRuns,
			scanItems,
			scanLatency,
			notificationsTotal,
			rateLimitVerdicts,
		)
	})
}

// ObserveIngest records ingest request duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments the ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// ObserveScan records one scan invocation.
func ObserveScan(scan, result string, checked int, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if scanRuns != nil {
		scanRuns.WithLabelValues(scan, result).Inc()
	}
	if scanItems != nil && checked > 0 {
		scanItems.WithLabelValues(scan).Add(float64(checked))
	}
	if scanLatency != nil {
		scanLatency.WithLabelValues(scan, result).Observe(duration.Seconds())
	}
}

// IncNotification increments the notification outcome counter.
func IncNotification(notificationType, outcome string) {
	if notificationType == "" {
		notificationType = "unknown"
	}
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(notificationType, outcome).Inc()
	}
}

// IncRateLimitVerdict counts allow/deny decisions.
func IncRateLimitVerdict(allowed bool) {
	if rateLimitVerdicts == nil {
		return
	}
	verdict := "allowed"
	if !allowed {
		verdict = "denied"
	}
	rateLimitVerdicts.WithLabelValues(verdict).Inc()
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	NotificationSent       = notificationSent
	NotificationSuppressed = notificationSuppressed
	NotificationFailed     = notificationFailed
)
