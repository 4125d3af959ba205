package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice service
type Metrics struct {
	// Session metrics
	ActiveSessions prometheus.Gauge
	SessionsOpened prometheus.Counter

	// Capture metrics
	CapturesStarted   prometheus.Counter
	CapturesCompleted prometheus.Counter
	CapturesEmpty     prometheus.Counter
	CaptureFailures   prometheus.Counter
	CaptureDuration   prometheus.Histogram
	RecognitionEvents prometheus.Counter

	// Notices surfaced to users, by error kind
	Notices *prometheus.CounterVec

	// Updates dropped because the consumer lagged, by update type
	UpdatesDropped *prometheus.CounterVec

	// Synthesis metrics
	Utterances        prometheus.Counter
	SynthesisFailures prometheus.Counter

	// Artifact metrics
	ArtifactsStored   prometheus.Counter
	ArtifactsReleased prometheus.Counter
	ArtifactSize      prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicedesk_active_sessions",
			Help: "Current number of connected voice sessions",
		}),
		SessionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicedesk_sessions_opened_total",
			Help: "Total number of voice sessions opened",
		}),

		CapturesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicedesk_captures_started_total",
			Help: "Total number of captures started",
		}),
		CapturesCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicedesk_captures_completed_total",
			Help: "Total number of captures that produced a transcript",
		}),
		CapturesEmpty: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicedesk_captures_empty_total",
			Help: "Total number of captures that ended with no speech",
		}),
		CaptureFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicedesk_capture_failures_total",
			Help: "Total number of captures that failed to start or were ended by an error",
		}),
		CaptureDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicedesk_capture_duration_seconds",
			Help:    "Duration of captures from start to finalization",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}),
		RecognitionEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicedesk_recognition_events_total",
			Help: "Total number of recognizer result events processed",
		}),

		Notices: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicedesk_notices_total",
			Help: "Total number of error notices surfaced to users",
		}, []string{"kind"}),

		UpdatesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicedesk_updates_dropped_total",
			Help: "Total number of session updates dropped because the consumer lagged",
		}, []string{"type"}),

		Utterances: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicedesk_utterances_total",
			Help: "Total number of utterances started",
		}),
		SynthesisFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicedesk_synthesis_failures_total",
			Help: "Total number of utterances that failed",
		}),

		ArtifactsStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicedesk_artifacts_stored_total",
			Help: "Total number of recorded artifacts stored",
		}),
		ArtifactsReleased: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicedesk_artifacts_released_total",
			Help: "Total number of recorded artifacts released",
		}),
		ArtifactSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicedesk_artifact_size_bytes",
			Help:    "Size of recorded artifacts in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicedesk_http_requests_total",
			Help: "Total number of HTTP API requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voicedesk_http_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// NewNopMetrics returns metrics registered with a private registry, for tests and tools
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
