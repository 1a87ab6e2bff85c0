package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hirestream/interview-transcriber/internal/conversation"
)

// Payload is the conversation snapshot delivered downstream
type Payload struct {
	Transcript      string    `json:"transcript"`
	CurrentQuestion string    `json:"current_question"`
	CandidateAnswer string    `json:"candidate_answer"`
	Timestamp       time.Time `json:"timestamp"`
}

// Sink delivers a conversation payload to the downstream consumer. Delivery
// is best effort; the scheduler does not retry on top of it.
type Sink interface {
	Deliver(ctx context.Context, sessionID string, payload Payload) error
}

// Scheduler decides when the conversation state gets pushed downstream. It
// runs on its own clock, independent of flush timing: a dispatch fires when
// the interval has elapsed and there is any transcript content, whether or
// not the content changed since the last push.
type Scheduler struct {
	sessionID string
	interval  time.Duration
	sink      Sink
	state     *conversation.State
	logger    *slog.Logger

	lastDispatch time.Time

	// Statistics
	dispatches uint64
	failures   uint64

	mu sync.Mutex
}

// SchedulerStats represents scheduler statistics for monitoring
type SchedulerStats struct {
	Dispatches   uint64    `json:"dispatches"`
	Failures     uint64    `json:"failures"`
	LastDispatch time.Time `json:"last_dispatch"`
}

// NewScheduler creates a dispatch scheduler. The first dispatch becomes
// eligible one full interval after creation.
func NewScheduler(sessionID string, interval time.Duration, sink Sink, state *conversation.State, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		sessionID:    sessionID,
		interval:     interval,
		sink:         sink,
		state:        state,
		logger:       logger,
		lastDispatch: time.Now(),
	}
}

// MaybeDispatch pushes the current conversation state downstream if the
// dispatch interval has elapsed and there is content to send. It returns
// whether a dispatch fired. lastDispatch advances on every fire, sink
// success or not, so a failing sink is retried on the next interval rather
// than hot-looped.
func (s *Scheduler) MaybeDispatch(ctx context.Context, now time.Time) bool {
	s.mu.Lock()

	if now.Sub(s.lastDispatch) < s.interval {
		s.mu.Unlock()
		return false
	}

	snapshot := s.state.Snapshot()
	if snapshot.FullTranscript == "" {
		s.mu.Unlock()
		return false
	}

	s.lastDispatch = now
	s.dispatches++
	s.mu.Unlock()

	payload := Payload{
		Transcript:      snapshot.FullTranscript,
		CurrentQuestion: snapshot.CurrentQuestion,
		CandidateAnswer: snapshot.CandidateAnswer,
		Timestamp:       now.UTC(),
	}

	if err := s.sink.Deliver(ctx, s.sessionID, payload); err != nil {
		s.mu.Lock()
		s.failures++
		s.mu.Unlock()

		s.logger.Warn("Transcript delivery failed",
			slog.String("session_id", s.sessionID),
			slog.String("error", err.Error()),
		)
		return true
	}

	s.logger.Info("Transcript delivered",
		slog.String("session_id", s.sessionID),
		slog.Int("transcript_len", len(payload.Transcript)),
	)
	return true
}

// Stats returns current scheduler statistics
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SchedulerStats{
		Dispatches:   s.dispatches,
		Failures:     s.failures,
		LastDispatch: s.lastDispatch,
	}
}
