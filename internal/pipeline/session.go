package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hirestream/interview-transcriber/internal/audio"
	"github.com/hirestream/interview-transcriber/internal/conversation"
	"github.com/hirestream/interview-transcriber/internal/dispatch"
	"github.com/hirestream/interview-transcriber/internal/metrics"
	"github.com/hirestream/interview-transcriber/internal/transcription"
)

// Session owns all mutable pipeline state for one interview: the audio
// accumulator, the conversation, and the two periodic drivers. Nothing is
// global; several sessions can run side by side in one process.
type Session struct {
	id     string
	config Config
	logger *slog.Logger

	accumulator *audio.Accumulator
	gate        *audio.Gate
	transcriber *transcription.Transcriber
	segmenter   *conversation.Segmenter
	state       *conversation.State
	scheduler   *dispatch.Scheduler
	metrics     *metrics.Metrics

	// Cycle control. A flush tick arriving while a cycle is still running
	// is skipped, never queued.
	transcribing atomic.Bool
	dispatching  atomic.Bool
	wg           sync.WaitGroup

	startTime time.Time

	// Statistics
	cyclesStarted uint64
	cyclesSkipped uint64
	statsMu       sync.RWMutex
}

// Config contains session timing parameters
type Config struct {
	FlushCheckInterval time.Duration
	DispatchInterval   time.Duration
	MinBatchBytes      int
	TranscribeTimeout  time.Duration
	ShutdownGrace      time.Duration
}

// SessionInfo is a monitoring snapshot of the session
type SessionInfo struct {
	ID            string                  `json:"id"`
	StartTime     time.Time               `json:"start_time"`
	Uptime        time.Duration           `json:"uptime"`
	Accumulator   audio.AccumulatorStats  `json:"accumulator"`
	Gate          audio.GateStats         `json:"gate"`
	CyclesStarted uint64                  `json:"cycles_started"`
	CyclesSkipped uint64                  `json:"cycles_skipped"`
	SegmentCount  int                     `json:"segment_count"`
	CurrentTurn   conversation.Turn       `json:"current_turn"`
	Dispatch      dispatch.SchedulerStats `json:"dispatch"`
}

// NewSession wires a session from its collaborators
func NewSession(id string, config Config, accumulator *audio.Accumulator, gate *audio.Gate,
	transcriber *transcription.Transcriber, state *conversation.State,
	scheduler *dispatch.Scheduler, m *metrics.Metrics, logger *slog.Logger) *Session {

	if config.ShutdownGrace <= 0 {
		config.ShutdownGrace = 10 * time.Second
	}
	if config.TranscribeTimeout <= 0 {
		config.TranscribeTimeout = 60 * time.Second
	}

	return &Session{
		id:          id,
		config:      config,
		logger:      logger,
		accumulator: accumulator,
		gate:        gate,
		transcriber: transcriber,
		segmenter:   conversation.NewSegmenter(),
		state:       state,
		scheduler:   scheduler,
		metrics:     m,
		startTime:   time.Now(),
	}
}

// AppendAudio adds a capture chunk to the accumulator. It never waits on an
// in-flight transcription or dispatch call.
func (s *Session) AppendAudio(chunk []byte) {
	s.accumulator.Append(chunk)

	if s.metrics != nil {
		s.metrics.RecordAudioChunk(len(chunk))
		s.metrics.SetBufferedSeconds(s.accumulator.Duration().Seconds())
	}
}

// Consume appends chunks from a source channel until it closes
func (s *Session) Consume(chunks <-chan []byte) {
	for chunk := range chunks {
		s.AppendAudio(chunk)
	}
}

// Run drives the session until the context is canceled: a flush ticker
// checking buffer readiness and a dispatch ticker pacing downstream
// delivery, both feeding one coordinating loop
func (s *Session) Run(ctx context.Context) {
	flushTicker := time.NewTicker(s.config.FlushCheckInterval)
	defer flushTicker.Stop()

	dispatchTicker := time.NewTicker(s.config.DispatchInterval)
	defer dispatchTicker.Stop()

	s.logger.Info("Session started",
		slog.String("session_id", s.id),
		slog.Duration("flush_check_interval", s.config.FlushCheckInterval),
		slog.Duration("dispatch_interval", s.config.DispatchInterval),
	)

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return

		case <-flushTicker.C:
			s.maybeStartCycle(ctx)

		case <-dispatchTicker.C:
			s.maybeStartDispatch(ctx)
		}
	}
}

// maybeStartCycle flushes the accumulator and starts a transcription cycle
// when enough audio has accumulated and no cycle is in flight
func (s *Session) maybeStartCycle(ctx context.Context) {
	duration := s.accumulator.Duration()
	if s.metrics != nil {
		s.metrics.SetBufferedSeconds(duration.Seconds())
	}

	if !s.accumulator.ReadyToFlush() {
		s.logger.Debug("Audio buffer below flush threshold",
			slog.String("session_id", s.id),
			slog.Float64("buffered_seconds", duration.Seconds()),
		)
		return
	}

	if !s.transcribing.CompareAndSwap(false, true) {
		s.statsMu.Lock()
		s.cyclesSkipped++
		s.statsMu.Unlock()

		if s.metrics != nil {
			s.metrics.RecordCycleSkipped()
		}
		s.logger.Debug("Transcription cycle still in flight, skipping tick",
			slog.String("session_id", s.id),
		)
		return
	}

	pcm := s.accumulator.Flush()
	if s.metrics != nil {
		s.metrics.RecordFlush()
	}

	s.statsMu.Lock()
	s.cyclesStarted++
	s.statsMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.transcribing.Store(false)
		s.runCycle(ctx, pcm)
	}()
}

// runCycle recognizes one flushed batch and folds the result into the
// conversation. Every failure mode is terminal to this cycle only.
func (s *Session) runCycle(ctx context.Context, pcm []byte) {
	if len(pcm) < s.config.MinBatchBytes {
		if s.metrics != nil {
			s.metrics.RecordBatchTooSmall()
		}
		return
	}

	if !s.gate.HasSpeech(pcm) {
		if s.metrics != nil {
			s.metrics.RecordBatchGated()
		}
		s.logger.Debug("Batch gated as silence",
			slog.String("session_id", s.id),
			slog.Int("bytes", len(pcm)),
		)
		return
	}

	cycleCtx, cancel := context.WithTimeout(ctx, s.config.TranscribeTimeout)
	defer cancel()

	startTime := time.Now()
	utterances, diarized := s.transcriber.Transcribe(cycleCtx, pcm)
	elapsed := time.Since(startTime)

	if s.metrics != nil {
		s.metrics.RecordRecognition(elapsed.Seconds(), !diarized, len(utterances) > 0)
	}

	if len(utterances) == 0 {
		s.logger.Info("Nothing usable in batch",
			slog.String("session_id", s.id),
			slog.Int("bytes", len(pcm)),
			slog.Duration("elapsed", elapsed),
		)
		return
	}

	segments := s.segmenter.Segment(utterances, s.state.PreviousSpeaker())
	s.state.Apply(segments)

	snapshot := s.state.Snapshot()
	if s.metrics != nil {
		s.metrics.RecordSegments(len(segments), len(snapshot.FullTranscript))
	}

	s.logger.Info("Transcription cycle completed",
		slog.String("session_id", s.id),
		slog.Bool("diarized", diarized),
		slog.Int("utterances", len(utterances)),
		slog.Int("segments", len(segments)),
		slog.Duration("elapsed", elapsed),
	)
}

// maybeStartDispatch runs the dispatch decision off the coordinating loop
// so a slow sink never delays flush ticks
func (s *Session) maybeStartDispatch(ctx context.Context) {
	if !s.dispatching.CompareAndSwap(false, true) {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.dispatching.Store(false)

		failuresBefore := s.scheduler.Stats().Failures
		startTime := time.Now()

		if s.scheduler.MaybeDispatch(ctx, startTime) && s.metrics != nil {
			failed := s.scheduler.Stats().Failures > failuresBefore
			s.metrics.RecordDispatch(time.Since(startTime).Seconds(), failed)
		}
	}()
}

// shutdown waits out in-flight work with a bounded grace period and
// discards whatever audio tail remained below the flush threshold
func (s *Session) shutdown() {
	s.logger.Info("Session stopping", slog.String("session_id", s.id))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.config.ShutdownGrace):
		s.logger.Warn("Shutdown grace period elapsed, abandoning in-flight work",
			slog.String("session_id", s.id),
		)
	}

	discarded := s.accumulator.Size()
	s.accumulator.Discard()

	s.logger.Info("Session stopped",
		slog.String("session_id", s.id),
		slog.Int("discarded_tail_bytes", discarded),
		slog.Duration("uptime", time.Since(s.startTime)),
	)
}

// State returns the session's conversation state for monitoring reads
func (s *Session) State() *conversation.State {
	return s.state
}

// Info returns a monitoring snapshot of the session
func (s *Session) Info() SessionInfo {
	s.statsMu.RLock()
	cyclesStarted := s.cyclesStarted
	cyclesSkipped := s.cyclesSkipped
	s.statsMu.RUnlock()

	snapshot := s.state.Snapshot()

	return SessionInfo{
		ID:            s.id,
		StartTime:     s.startTime,
		Uptime:        time.Since(s.startTime),
		Accumulator:   s.accumulator.Stats(),
		Gate:          s.gate.Stats(),
		CyclesStarted: cyclesStarted,
		CyclesSkipped: cyclesSkipped,
		SegmentCount:  len(snapshot.SpeakerHistory),
		CurrentTurn:   snapshot.CurrentTurn,
		Dispatch:      s.scheduler.Stats(),
	}
}
