package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"presstalk/internal/domain"
	"presstalk/internal/ports"
)

const (
	ResultSuccess   = "success"
	ResultServer    = "server_error"
	ResultNetwork   = "network_error"
	ResultMalformed = "malformed_reply"
	ResultCanceled  = "canceled"
)

// Metrics holds the Prometheus collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionTransitions *prometheus.CounterVec
	SessionErrors      *prometheus.CounterVec
	PlaybackRequests   prometheus.Counter

	// Upload metrics
	Uploads        *prometheus.CounterVec
	UploadDuration prometheus.Histogram
	UploadBytes    prometheus.Histogram

	// HTTP shell metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	WebsocketClients    prometheus.Gauge
}

// New creates the collectors on a dedicated registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SessionTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "presstalk_session_transitions_total",
			Help: "Session state transitions by target state and reason",
		}, []string{"state", "reason"}),
		SessionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "presstalk_session_errors_total",
			Help: "Errors surfaced to the user by error code",
		}, []string{"code"}),
		PlaybackRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "presstalk_playback_requests_total",
			Help: "Replies that carried audio for playback",
		}),

		Uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "presstalk_uploads_total",
			Help: "Recording submissions by result",
		}, []string{"result"}),
		UploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "presstalk_upload_duration_seconds",
			Help:    "Time from submission to backend reply",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		}),
		UploadBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "presstalk_upload_bytes",
			Help:    "Size of submitted WAV payloads",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~2MB
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "presstalk_http_requests_total",
			Help: "Browser shell HTTP requests",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "presstalk_http_request_duration_seconds",
			Help:    "Browser shell HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		WebsocketClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "presstalk_websocket_clients",
			Help: "Connected browser widgets",
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordUpload records one finished submission.
func (m *Metrics) RecordUpload(result string, duration time.Duration, sizeBytes int) {
	m.Uploads.WithLabelValues(result).Inc()
	m.UploadDuration.Observe(duration.Seconds())
	m.UploadBytes.Observe(float64(sizeBytes))
}

// RecordHTTPRequest records a browser shell request.
func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// InstrumentUploader wraps next so every submission is counted and timed.
func (m *Metrics) InstrumentUploader(next ports.Uploader) ports.Uploader {
	return &instrumentedUploader{next: next, metrics: m}
}

type instrumentedUploader struct {
	next    ports.Uploader
	metrics *Metrics
}

func (u *instrumentedUploader) Submit(ctx context.Context, recording domain.Recording) (domain.Reply, error) {
	started := time.Now()
	reply, err := u.next.Submit(ctx, recording)
	u.metrics.RecordUpload(uploadResult(err), time.Since(started), len(recording.Audio))
	return reply, err
}

func uploadResult(err error) string {
	var serverErr *domain.ServerError
	switch {
	case err == nil:
		return ResultSuccess
	case errors.As(err, &serverErr):
		return ResultServer
	case errors.Is(err, domain.ErrMalformedReply):
		return ResultMalformed
	case errors.Is(err, context.Canceled):
		return ResultCanceled
	default:
		return ResultNetwork
	}
}

// ObserveEvents returns an event sink that counts session events before
// forwarding them to next.
func (m *Metrics) ObserveEvents(next ports.EventSink) ports.EventSink {
	return &observedSink{next: next, metrics: m}
}

type observedSink struct {
	next    ports.EventSink
	metrics *Metrics
}

func (s *observedSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	s.metrics.SessionTransitions.WithLabelValues(string(state), string(reason)).Inc()
	s.next.SessionStateChanged(state, reason)
}

func (s *observedSink) ConversationUpdated(userText string, assistantText string) {
	s.next.ConversationUpdated(userText, assistantText)
}

func (s *observedSink) PlaybackRequested(source string) {
	s.metrics.PlaybackRequests.Inc()
	s.next.PlaybackRequested(source)
}

func (s *observedSink) SessionError(code domain.ErrorCode, detail string) {
	s.metrics.SessionErrors.WithLabelValues(string(code)).Inc()
	s.next.SessionError(code, detail)
}
