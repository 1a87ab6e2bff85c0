package pipeline

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hirestream/interview-transcriber/internal/audio"
	"github.com/hirestream/interview-transcriber/internal/conversation"
	"github.com/hirestream/interview-transcriber/internal/dispatch"
	"github.com/hirestream/interview-transcriber/internal/transcription"
)

const testBytesPerSecond = 32000

// fakeRecognizer returns a scripted diarized exchange for every request
type fakeRecognizer struct {
	delay time.Duration
	calls int32
}

func (f *fakeRecognizer) Recognize(ctx context.Context, pcm []byte, cfg transcription.RecognizeConfig) ([]transcription.Utterance, error) {
	atomic.AddInt32(&f.calls, 1)

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return []transcription.Utterance{{
		Transcript: "What is Go? A language.",
		Words: []transcription.Word{
			{Text: "What", SpeakerTag: 1, Start: 0.0, End: 0.3},
			{Text: "is", SpeakerTag: 1, Start: 0.3, End: 0.5},
			{Text: "Go?", SpeakerTag: 1, Start: 0.5, End: 0.9},
			{Text: "A", SpeakerTag: 2, Start: 1.5, End: 1.6},
			{Text: "language.", SpeakerTag: 2, Start: 1.6, End: 2.2},
		},
	}}, nil
}

// fakeSink records dispatched payloads
type fakeSink struct {
	payloads []dispatch.Payload
	mu       sync.Mutex
}

func (f *fakeSink) Deliver(ctx context.Context, sessionID string, payload dispatch.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestSession wires a session around a fake recognizer and sink with
// timings compressed for tests
func newTestSession(recognizer transcription.Recognizer, sink dispatch.Sink, gateEnabled bool) (*Session, *conversation.State) {
	logger := testLogger()

	// 10 simulated seconds before flush, 2 retained
	accumulator := audio.NewAccumulator(testBytesPerSecond, 10*time.Second, 2*time.Second)
	gate := audio.NewGate(gateEnabled, 100)

	transcriber := transcription.NewTranscriber(recognizer, transcription.RecognizeConfig{
		Encoding:          "LINEAR16",
		SampleRate:        16000,
		Language:          "en-US",
		EnableDiarization: true,
		SpeakerCount:      2,
	}, logger)

	state := conversation.NewState(false)
	scheduler := dispatch.NewScheduler("interview-1", 50*time.Millisecond, sink, state, logger)

	session := NewSession("interview-1", Config{
		FlushCheckInterval: 10 * time.Millisecond,
		DispatchInterval:   25 * time.Millisecond,
		MinBatchBytes:      testBytesPerSecond,
		TranscribeTimeout:  2 * time.Second,
		ShutdownGrace:      2 * time.Second,
	}, accumulator, gate, transcriber, state, scheduler, nil, logger)

	return session, state
}

// loudAudio generates PCM that clears the energy gate
func loudAudio(seconds int) []byte {
	pcm := make([]byte, seconds*testBytesPerSecond)
	for i := 0; i < len(pcm); i += 2 {
		pcm[i] = 0x00
		pcm[i+1] = 0x20 // 8192 amplitude square wave
		if (i/2)%2 == 1 {
			pcm[i+1] = 0xe0 // -8192
		}
	}
	return pcm
}

func TestSessionEndToEnd(t *testing.T) {
	recognizer := &fakeRecognizer{}
	sink := &fakeSink{}
	session, state := newTestSession(recognizer, sink, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		session.Run(ctx)
	}()

	// 12 simulated seconds of speech-level audio
	session.AppendAudio(loudAudio(12))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && sink.count() == 0 {
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	<-done

	if atomic.LoadInt32(&recognizer.calls) == 0 {
		t.Fatal("Expected at least one recognition call")
	}

	snap := state.Snapshot()
	if !strings.Contains(snap.FullTranscript, "[Speaker 1]: What is Go?") {
		t.Errorf("Expected interviewer segment in transcript, got %q", snap.FullTranscript)
	}
	if !strings.Contains(snap.FullTranscript, "[Speaker 2]: A language.") {
		t.Errorf("Expected candidate segment in transcript, got %q", snap.FullTranscript)
	}
	if snap.CurrentQuestion == "" {
		t.Error("Expected a current question")
	}
	if snap.CandidateAnswer == "" {
		t.Error("Expected a candidate answer")
	}

	if sink.count() == 0 {
		t.Fatal("Expected at least one dispatch")
	}
	payload := sink.payloads[0]
	if payload.Transcript == "" || payload.CurrentQuestion == "" {
		t.Errorf("Expected populated payload, got %+v", payload)
	}
}

func TestSessionSilenceProducesNoDispatch(t *testing.T) {
	recognizer := &fakeRecognizer{}
	sink := &fakeSink{}
	session, state := newTestSession(recognizer, sink, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		session.Run(ctx)
	}()

	// 12 simulated seconds of silence: flushes, but the gate stops it
	session.AppendAudio(make([]byte, 12*testBytesPerSecond))

	time.Sleep(200 * time.Millisecond)

	cancel()
	<-done

	if atomic.LoadInt32(&recognizer.calls) != 0 {
		t.Errorf("Expected no recognition calls for silence, got %d", recognizer.calls)
	}
	if state.HasContent() {
		t.Error("Expected empty conversation state for silence")
	}
	if sink.count() != 0 {
		t.Errorf("Expected no dispatches for silence, got %d", sink.count())
	}
}

func TestSessionBelowThresholdNeverFlushes(t *testing.T) {
	recognizer := &fakeRecognizer{}
	sink := &fakeSink{}
	session, _ := newTestSession(recognizer, sink, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		session.Run(ctx)
	}()

	// 5 simulated seconds, below the 10 second flush threshold
	session.AppendAudio(loudAudio(5))

	time.Sleep(150 * time.Millisecond)

	cancel()
	<-done

	if atomic.LoadInt32(&recognizer.calls) != 0 {
		t.Errorf("Expected no recognition below flush threshold, got %d calls", recognizer.calls)
	}

	// The sub-threshold tail is discarded on shutdown
	info := session.Info()
	if info.Accumulator.BufferedBytes != 0 {
		t.Errorf("Expected tail discarded on shutdown, got %d bytes", info.Accumulator.BufferedBytes)
	}
}

func TestSessionSkipsTicksWhileCycleInFlight(t *testing.T) {
	recognizer := &fakeRecognizer{delay: 300 * time.Millisecond}
	sink := &fakeSink{}
	session, _ := newTestSession(recognizer, sink, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		session.Run(ctx)
	}()

	// Enough for many flushes; the slow recognizer keeps one cycle in
	// flight across several ticks
	session.AppendAudio(loudAudio(30))
	time.Sleep(100 * time.Millisecond)
	session.AppendAudio(loudAudio(30))

	time.Sleep(300 * time.Millisecond)

	cancel()
	<-done

	info := session.Info()
	if info.CyclesSkipped == 0 {
		t.Error("Expected skipped ticks while a cycle was in flight")
	}

	// Skipped ticks never start concurrent recognition
	if calls := atomic.LoadInt32(&recognizer.calls); calls > 4 {
		t.Errorf("Expected serialized cycles, got %d recognition calls", calls)
	}
}

func TestSessionAppendNeverBlocks(t *testing.T) {
	recognizer := &fakeRecognizer{delay: 500 * time.Millisecond}
	sink := &fakeSink{}
	session, _ := newTestSession(recognizer, sink, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		session.Run(ctx)
	}()

	session.AppendAudio(loudAudio(15))
	time.Sleep(50 * time.Millisecond) // let a slow cycle start

	start := time.Now()
	for i := 0; i < 100; i++ {
		session.AppendAudio(make([]byte, 320))
	}
	elapsed := time.Since(start)

	cancel()
	<-done

	if elapsed > 100*time.Millisecond {
		t.Errorf("Appends took %v while a cycle was in flight", elapsed)
	}
}
