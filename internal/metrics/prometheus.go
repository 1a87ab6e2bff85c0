package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the transcription pipeline
type Metrics struct {
	// Audio ingestion metrics
	AudioBytesReceived  prometheus.Counter
	AudioChunksReceived prometheus.Counter
	BufferedSeconds     prometheus.Gauge

	// Flush / transcription cycle metrics
	Flushes               prometheus.Counter
	CyclesSkippedInFlight prometheus.Counter
	BatchesGated          prometheus.Counter
	BatchesTooSmall       prometheus.Counter

	// Recognition metrics
	RecognitionRequests  prometheus.Counter
	RecognitionFallbacks prometheus.Counter
	RecognitionFailures  prometheus.Counter
	RecognitionDuration  prometheus.Histogram

	// Conversation metrics
	SegmentsProduced prometheus.Counter
	TranscriptLength prometheus.Gauge

	// Dispatch metrics
	Dispatches       prometheus.Counter
	DispatchFailures prometheus.Counter
	DispatchDuration prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_audio_bytes_received_total",
			Help: "Total raw PCM bytes received from the capture source",
		}),
		AudioChunksReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_audio_chunks_received_total",
			Help: "Total audio chunks appended to the accumulator",
		}),
		BufferedSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "transcriber_buffered_audio_seconds",
			Help: "Seconds of audio currently buffered awaiting a flush",
		}),

		Flushes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_flushes_total",
			Help: "Total buffer flushes that started a transcription cycle",
		}),
		CyclesSkippedInFlight: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_cycles_skipped_in_flight_total",
			Help: "Flush ticks skipped because a transcription cycle was already running",
		}),
		BatchesGated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_batches_gated_total",
			Help: "Flushed batches dropped by the energy gate as silence",
		}),
		BatchesTooSmall: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_batches_too_small_total",
			Help: "Flushed batches dropped for being below the minimum byte threshold",
		}),

		RecognitionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_recognition_requests_total",
			Help: "Total recognition attempts (diarized and plain)",
		}),
		RecognitionFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_recognition_fallbacks_total",
			Help: "Batches that fell back to plain (non-diarized) recognition",
		}),
		RecognitionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_recognition_failures_total",
			Help: "Batches that yielded no usable transcript",
		}),
		RecognitionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcriber_recognition_duration_seconds",
			Help:    "Duration of recognition cycles",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		SegmentsProduced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_speaker_segments_total",
			Help: "Total speaker segments applied to the conversation state",
		}),
		TranscriptLength: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "transcriber_transcript_length_chars",
			Help: "Current length of the accumulated full transcript",
		}),

		Dispatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_dispatches_total",
			Help: "Total conversation payloads dispatched downstream",
		}),
		DispatchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_dispatch_failures_total",
			Help: "Total dispatch deliveries that failed",
		}),
		DispatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcriber_dispatch_duration_seconds",
			Help:    "Duration of dispatch deliveries",
			Buckets: prometheus.DefBuckets,
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "transcriber_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "transcriber_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "transcriber_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordAudioChunk records a received capture chunk
func (m *Metrics) RecordAudioChunk(bytes int) {
	m.AudioChunksReceived.Inc()
	m.AudioBytesReceived.Add(float64(bytes))
}

// SetBufferedSeconds sets the currently buffered audio duration
func (m *Metrics) SetBufferedSeconds(seconds float64) {
	m.BufferedSeconds.Set(seconds)
}

// RecordFlush increments the flush counter
func (m *Metrics) RecordFlush() {
	m.Flushes.Inc()
}

// RecordCycleSkipped increments the in-flight skip counter
func (m *Metrics) RecordCycleSkipped() {
	m.CyclesSkippedInFlight.Inc()
}

// RecordBatchGated increments the energy gate drop counter
func (m *Metrics) RecordBatchGated() {
	m.BatchesGated.Inc()
}

// RecordBatchTooSmall increments the undersized batch counter
func (m *Metrics) RecordBatchTooSmall() {
	m.BatchesTooSmall.Inc()
}

// RecordRecognition records a finished recognition cycle
func (m *Metrics) RecordRecognition(durationSeconds float64, usedFallback, usable bool) {
	m.RecognitionRequests.Inc()
	m.RecognitionDuration.Observe(durationSeconds)
	if usedFallback {
		m.RecognitionFallbacks.Inc()
	}
	if !usable {
		m.RecognitionFailures.Inc()
	}
}

// RecordSegments records speaker segments applied to the conversation
func (m *Metrics) RecordSegments(count int, transcriptLength int) {
	m.SegmentsProduced.Add(float64(count))
	m.TranscriptLength.Set(float64(transcriptLength))
}

// RecordDispatch records a dispatch attempt
func (m *Metrics) RecordDispatch(durationSeconds float64, failed bool) {
	m.Dispatches.Inc()
	m.DispatchDuration.Observe(durationSeconds)
	if failed {
		m.DispatchFailures.Inc()
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
