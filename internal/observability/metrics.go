package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	complaintsSubmitted   *prometheus.CounterVec
	complaintUpdates      *prometheus.CounterVec
	complaintEvents       *prometheus.CounterVec
	mailDeliveries        *prometheus.CounterVec
	notificationsTotal    *prometheus.CounterVec
	sseClientsActive      prometheus.Gauge
	notificationsDropped  prometheus.Counter
	screenshotLatency     prometheus.Histogram
	screenshotRejected    *prometheus.CounterVec
	analyticsCacheLookups *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors exported by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brovoice_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brovoice_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brovoice_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		complaintsSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brovoice_complaints_submitted_total",
			Help: "Complaints submitted by students, by category.",
		}, []string{"category"})

		complaintUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brovoice_complaint_updates_total",
			Help: "Staff updates applied to complaints, by resulting status.",
		}, []string{"status"})

		complaintEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brovoice_complaint_events_total",
			Help: "Complaint events emitted to the outbound queue, by type and outcome.",
		}, []string{"type", "outcome"})

		mailDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brovoice_mail_deliveries_total",
			Help: "Complaint emails handed to the mail provider, by provider and status.",
		}, []string{"provider", "status"})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brovoice_notifications_published_total",
			Help: "In-app notifications published, by type.",
		}, []string{"type"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "brovoice_notification_streams_active",
			Help: "Number of connected notification stream clients.",
		})

		notificationsDropped = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brovoice_notifications_dropped_total",
			Help: "Notifications skipped because a stream client was not keeping up.",
		})

		screenshotLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "brovoice_screenshot_upload_seconds",
			Help:    "Time spent validating and storing complaint screenshots.",
			Buckets: prometheus.DefBuckets,
		})

		screenshotRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brovoice_screenshot_rejected_total",
			Help: "Screenshot uploads rejected, by reason.",
		}, []string{"reason"})

		analyticsCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brovoice_analytics_cache_lookups_total",
			Help: "Analytics cache lookups, by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			complaintsSubmitted,
			complaintUpdates,
			complaintEvents,
			mailDeliveries,
			notificationsTotal,
			sseClientsActive,
			notificationsDropped,
			screenshotLatency,
			screenshotRejected,
			analyticsCacheLookups,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

func ComplaintsSubmitted() *prometheus.CounterVec {
	RegisterMetrics()
	return complaintsSubmitted
}

func ComplaintUpdates() *prometheus.CounterVec {
	RegisterMetrics()
	return complaintUpdates
}

func ComplaintEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return complaintEvents
}

func MailDeliveries() *prometheus.CounterVec {
	RegisterMetrics()
	return mailDeliveries
}

// NotificationsPublishedTotal counts in-app notifications, including those relayed from other nodes.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}

// SSEClientsActive tracks connected stream subscribers.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}

// NotificationsDropped counts notifications a slow stream client missed.
func NotificationsDropped() prometheus.Counter {
	RegisterMetrics()
	return notificationsDropped
}

func ScreenshotLatency() prometheus.Histogram {
	RegisterMetrics()
	return screenshotLatency
}

func ScreenshotRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return screenshotRejected
}

func AnalyticsCacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return analyticsCacheLookups
}
