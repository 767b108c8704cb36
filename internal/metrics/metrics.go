package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "facility_reports"

type Metrics struct {
	// Counters
	ReportsSubmitted       *prometheus.CounterVec
	StatusUpdates          *prometheus.CounterVec
	UnknownFacilityLookups prometheus.Counter
	NotificationsSent      prometheus.Counter
	MirrorRequests         *prometheus.CounterVec
	ErrorsTotal            *prometheus.CounterVec

	// Gauges
	Subscribers prometheus.Gauge
	Facilities  prometheus.Gauge

	// Histograms
	MirrorDuration prometheus.Histogram

	gatherer prometheus.Gatherer
}

// New registers the metrics with the default Prometheus registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		ReportsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_submitted_total",
			Help:      "Total number of submitted reports by facility",
		}, []string{"facility"}),
		StatusUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_updates_total",
			Help:      "Total number of report status changes by new status",
		}, []string{"status"}),
		UnknownFacilityLookups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_facility_lookups_total",
			Help:      "Total number of requests for facility ids missing from the registry",
		}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Total number of notifications delivered to subscribers",
		}),
		MirrorRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_requests_total",
			Help:      "Total number of requests to the report endpoint by result",
		}, []string{"result"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by type",
		}, []string{"type"}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Current number of chat subscribers",
		}),
		Facilities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "facilities",
			Help:      "Number of facilities in the registry",
		}),
		MirrorDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mirror_duration_seconds",
			Help:      "Duration of requests to the report endpoint",
			Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),
		gatherer: gatherer,
	}

	reg.MustRegister(
		m.ReportsSubmitted,
		m.StatusUpdates,
		m.UnknownFacilityLookups,
		m.NotificationsSent,
		m.MirrorRequests,
		m.ErrorsTotal,
		m.Subscribers,
		m.Facilities,
		m.MirrorDuration,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordReportSubmitted(facilityID string) {
	m.ReportsSubmitted.WithLabelValues(facilityID).Inc()
}

func (m *Metrics) RecordStatusUpdate(status string) {
	m.StatusUpdates.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordUnknownFacility() {
	m.UnknownFacilityLookups.Inc()
}

func (m *Metrics) RecordNotificationsSent(n int) {
	m.NotificationsSent.Add(float64(n))
}

func (m *Metrics) RecordMirror(result string, seconds float64) {
	m.MirrorRequests.WithLabelValues(result).Inc()
	m.MirrorDuration.Observe(seconds)
}

func (m *Metrics) RecordError(errorType string) {
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) SetSubscribers(count float64) {
	m.Subscribers.Set(count)
}

func (m *Metrics) SetFacilities(count float64) {
	m.Facilities.Set(count)
}
