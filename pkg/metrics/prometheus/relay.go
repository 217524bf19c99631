// Package prometheus provides the Prometheus-backed implementations of the
// metrics interfaces.
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ghostfacexx/nfcmitm/pkg/metrics"
)

// relayMetrics is the Prometheus implementation of metrics.RelayMetrics.
type relayMetrics struct {
	frames        *prometheus.CounterVec
	frameDuration *prometheus.HistogramVec
	edits         *prometheus.CounterVec

	activeSessions   prometheus.Gauge
	sessionsAccepted prometheus.Counter
	sessionsRejected prometheus.Counter
	sessionsClosed   prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration prometheus.Histogram

	eventsDropped prometheus.Gauge
}

// NewRelayMetrics creates a Prometheus-backed RelayMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewRelayMetrics() metrics.RelayMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &relayMetrics{
		frames: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfcmitm_frames_total",
				Help: "Total processed frames by kind, brand, strategy and outcome",
			},
			[]string{"kind", "brand", "strategy", "error_code"},
		),
		frameDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "nfcmitm_frame_duration_milliseconds",
				Help: "Frame processing duration in milliseconds",
				Buckets: []float64{
					0.1, // trivial passthrough
					0.5,
					1,
					5,
					10,
					50,
					100,
					250, // the per-frame budget
					1000,
				},
			},
			[]string{"kind"},
		),
		edits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfcmitm_edits_total",
				Help: "Total applied TLV edits by tag",
			},
			[]string{"tag"},
		),
		activeSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "nfcmitm_sessions_active",
				Help: "Current number of active TCP relay sessions",
			},
		),
		sessionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nfcmitm_sessions_accepted_total",
				Help: "Total accepted TCP relay sessions",
			},
		),
		sessionsRejected: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nfcmitm_sessions_rejected_total",
				Help: "Total sessions refused at the concurrency ceiling",
			},
		),
		sessionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nfcmitm_sessions_closed_total",
				Help: "Total closed TCP relay sessions",
			},
		),
		httpRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfcmitm_http_relay_requests_total",
				Help: "Total HTTP relay requests by status code",
			},
			[]string{"status"},
		),
		httpDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nfcmitm_http_relay_duration_milliseconds",
				Help:    "HTTP relay request duration in milliseconds",
				Buckets: []float64{0.5, 1, 5, 10, 50, 100, 250, 1000},
			},
		),
		eventsDropped: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "nfcmitm_events_dropped_total",
				Help: "Events dropped by the bounded logging sink",
			},
		),
	}
}

func (m *relayMetrics) RecordFrame(kind, brand, strategy string, duration time.Duration, errorCode string) {
	m.frames.WithLabelValues(kind, brand, strategy, errorCode).Inc()
	m.frameDuration.WithLabelValues(kind).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *relayMetrics) RecordEdit(tag string) {
	m.edits.WithLabelValues(tag).Inc()
}

func (m *relayMetrics) SetActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

func (m *relayMetrics) RecordSessionAccepted() {
	m.sessionsAccepted.Inc()
}

func (m *relayMetrics) RecordSessionRejected() {
	m.sessionsRejected.Inc()
}

func (m *relayMetrics) RecordSessionClosed() {
	m.sessionsClosed.Inc()
}

func (m *relayMetrics) RecordHTTPRelay(status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	m.httpDuration.Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *relayMetrics) SetEventsDropped(count uint64) {
	m.eventsDropped.Set(float64(count))
}
