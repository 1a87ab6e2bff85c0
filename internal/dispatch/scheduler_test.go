package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hirestream/interview-transcriber/internal/conversation"
)

// fakeSink records delivered payloads
type fakeSink struct {
	payloads []Payload
	ids      []string
	err      error

	mu sync.Mutex
}

func (f *fakeSink) Deliver(ctx context.Context, sessionID string, payload Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ids = append(f.ids, sessionID)
	f.payloads = append(f.payloads, payload)
	return f.err
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScheduler(sink Sink, state *conversation.State) *Scheduler {
	return NewScheduler("interview-1", 30*time.Second, sink, state, testLogger())
}

func TestSchedulerFiresAfterInterval(t *testing.T) {
	sink := &fakeSink{}
	state := conversation.NewState(false)
	state.Apply([]conversation.SpeakerSegment{{Speaker: 1, Text: "Question?"}})

	scheduler := newTestScheduler(sink, state)

	fired := scheduler.MaybeDispatch(context.Background(), time.Now().Add(31*time.Second))
	if !fired {
		t.Fatal("Expected dispatch to fire after interval")
	}

	if sink.count() != 1 {
		t.Fatalf("Expected 1 delivery, got %d", sink.count())
	}

	payload := sink.payloads[0]
	if payload.Transcript != "[Speaker 1]: Question?" {
		t.Errorf("Unexpected transcript %q", payload.Transcript)
	}
	if payload.CurrentQuestion != "Question?" {
		t.Errorf("Unexpected current question %q", payload.CurrentQuestion)
	}
	if sink.ids[0] != "interview-1" {
		t.Errorf("Expected session id interview-1, got %s", sink.ids[0])
	}
}

func TestSchedulerNeverFiresBeforeInterval(t *testing.T) {
	sink := &fakeSink{}
	state := conversation.NewState(false)
	state.Apply([]conversation.SpeakerSegment{{Speaker: 1, Text: "Question?"}})

	scheduler := newTestScheduler(sink, state)

	if scheduler.MaybeDispatch(context.Background(), time.Now().Add(5*time.Second)) {
		t.Error("Expected no dispatch before interval elapsed")
	}
	if sink.count() != 0 {
		t.Errorf("Expected no deliveries, got %d", sink.count())
	}
}

func TestSchedulerNeverFiresTwiceWithinInterval(t *testing.T) {
	sink := &fakeSink{}
	state := conversation.NewState(false)
	state.Apply([]conversation.SpeakerSegment{{Speaker: 1, Text: "Question?"}})

	scheduler := newTestScheduler(sink, state)

	base := time.Now()
	if !scheduler.MaybeDispatch(context.Background(), base.Add(31*time.Second)) {
		t.Fatal("Expected first dispatch to fire")
	}

	if scheduler.MaybeDispatch(context.Background(), base.Add(45*time.Second)) {
		t.Error("Expected no second dispatch within the interval")
	}

	if !scheduler.MaybeDispatch(context.Background(), base.Add(62*time.Second)) {
		t.Error("Expected dispatch after another full interval")
	}

	if sink.count() != 2 {
		t.Errorf("Expected 2 deliveries, got %d", sink.count())
	}
}

func TestSchedulerSkipsEmptyTranscript(t *testing.T) {
	sink := &fakeSink{}
	state := conversation.NewState(false)

	scheduler := newTestScheduler(sink, state)

	if scheduler.MaybeDispatch(context.Background(), time.Now().Add(31*time.Second)) {
		t.Error("Expected no dispatch for empty transcript")
	}
	if sink.count() != 0 {
		t.Errorf("Expected no deliveries, got %d", sink.count())
	}
}

func TestSchedulerEmptySkipDoesNotAdvanceClock(t *testing.T) {
	sink := &fakeSink{}
	state := conversation.NewState(false)

	scheduler := newTestScheduler(sink, state)

	base := time.Now()

	// Interval elapsed but nothing to send
	scheduler.MaybeDispatch(context.Background(), base.Add(31*time.Second))

	// Content arrives; the very next check must fire without waiting
	// another full interval
	state.Apply([]conversation.SpeakerSegment{{Speaker: 1, Text: "Question?"}})

	if !scheduler.MaybeDispatch(context.Background(), base.Add(32*time.Second)) {
		t.Error("Expected dispatch as soon as content exists")
	}
}

func TestSchedulerRepeatsUnchangedContent(t *testing.T) {
	sink := &fakeSink{}
	state := conversation.NewState(false)
	state.Apply([]conversation.SpeakerSegment{{Speaker: 1, Text: "Question?"}})

	scheduler := newTestScheduler(sink, state)

	base := time.Now()
	scheduler.MaybeDispatch(context.Background(), base.Add(31*time.Second))
	scheduler.MaybeDispatch(context.Background(), base.Add(62*time.Second))

	if sink.count() != 2 {
		t.Fatalf("Expected unchanged content to be re-sent, got %d deliveries", sink.count())
	}
	if sink.payloads[0].Transcript != sink.payloads[1].Transcript {
		t.Error("Expected identical transcripts across dispatches")
	}
}

func TestSchedulerAdvancesClockOnSinkFailure(t *testing.T) {
	sink := &fakeSink{err: fmt.Errorf("downstream unavailable")}
	state := conversation.NewState(false)
	state.Apply([]conversation.SpeakerSegment{{Speaker: 1, Text: "Question?"}})

	scheduler := newTestScheduler(sink, state)

	base := time.Now()
	if !scheduler.MaybeDispatch(context.Background(), base.Add(31*time.Second)) {
		t.Fatal("Expected dispatch attempt despite failing sink")
	}

	// Failure must not cause an immediate retry
	if scheduler.MaybeDispatch(context.Background(), base.Add(35*time.Second)) {
		t.Error("Expected no retry before the next interval")
	}

	stats := scheduler.Stats()
	if stats.Dispatches != 1 {
		t.Errorf("Expected 1 dispatch, got %d", stats.Dispatches)
	}
	if stats.Failures != 1 {
		t.Errorf("Expected 1 failure, got %d", stats.Failures)
	}
}
