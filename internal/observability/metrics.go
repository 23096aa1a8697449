package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	attendanceMarksTotal  *prometheus.CounterVec
	sharedDeviceTotal     prometheus.Counter
	ledgerRetriesTotal    prometheus.Counter
	reportBuildsTotal     *prometheus.CounterVec
	liveSubscribersActive prometheus.Gauge
	rateLimitedTotal      *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		attendanceMarksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_marks_total",
			Help: "Attendance mark attempts partitioned by outcome.",
		}, []string{"outcome"})

		sharedDeviceTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendance_shared_device_total",
			Help: "Check-ins whose device fingerprint was already used by another student in the same class and day.",
		})

		ledgerRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendance_ledger_retries_total",
			Help: "Ledger writes retried after a persistence failure.",
		})

		reportBuildsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_report_builds_total",
			Help: "Attendance report requests partitioned by cache result.",
		}, []string{"cache"})

		liveSubscribersActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "attendance_live_subscribers",
			Help: "Number of connected live attendance feed subscribers.",
		})

		rateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_rate_limited_total",
			Help: "Requests rejected by a rate limiter.",
		}, []string{"limiter"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			attendanceMarksTotal,
			sharedDeviceTotal,
			ledgerRetriesTotal,
			reportBuildsTotal,
			liveSubscribersActive,
			rateLimitedTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// AttendanceMarks exposes the mark outcome counter.
func AttendanceMarks() *prometheus.CounterVec {
	RegisterMetrics()
	return attendanceMarksTotal
}

// SharedDevices exposes the shared device fingerprint counter.
func SharedDevices() prometheus.Counter {
	RegisterMetrics()
	return sharedDeviceTotal
}

// LedgerRetries exposes the ledger retry counter.
func LedgerRetries() prometheus.Counter {
	RegisterMetrics()
	return ledgerRetriesTotal
}

// ReportBuilds exposes the report build counter.
func ReportBuilds() *prometheus.CounterVec {
	RegisterMetrics()
	return reportBuildsTotal
}

// LiveSubscribers exposes the live feed subscriber gauge.
func LiveSubscribers() prometheus.Gauge {
	RegisterMetrics()
	return liveSubscribersActive
}

// RateLimited exposes the counter for requests rejected by a limiter.
func RateLimited() *prometheus.CounterVec {
	RegisterMetrics()
	return rateLimitedTotal
}
