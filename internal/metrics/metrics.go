package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "playersessions"

// Metrics holds the Prometheus collectors of the relay.
type Metrics struct {
	EventsTotal       *prometheus.CounterVec
	OpenSessions      prometheus.Gauge
	PendingSessions   prometheus.Gauge
	UploadsTotal      *prometheus.CounterVec
	UploadedSessions  prometheus.Counter
	RequeuedSessions  *prometheus.CounterVec
	AbandonedSessions prometheus.Counter
	UploadDuration    prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		EventsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "player_events_total",
				Help:      "Player lifecycle events handled",
			},
			[]string{"type"}, // login, join, quit, online
		),
		OpenSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "open_sessions",
				Help:      "Sessions currently open",
			},
		),
		PendingSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_sessions",
				Help:      "Sessions waiting to be uploaded",
			},
		),
		UploadsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_total",
				Help:      "Upload attempts by outcome",
			},
			[]string{"result"}, // ok, protocol, transport
		),
		UploadedSessions: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploaded_sessions_total",
				Help:      "Sessions accepted by the collection API",
			},
		),
		RequeuedSessions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requeued_sessions_total",
				Help:      "Sessions put back after a failed upload",
			},
			[]string{"reason"},
		),
		AbandonedSessions: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "abandoned_sessions_total",
				Help:      "Sessions dropped by the shutdown drain",
			},
		),
		UploadDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upload_duration_seconds",
				Help:      "Upload round trip duration",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}
