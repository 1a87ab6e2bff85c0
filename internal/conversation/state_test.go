package conversation

import (
	"strings"
	"sync"
	"testing"
)

func TestStateAccretesRoles(t *testing.T) {
	state := NewState(false)

	state.Apply([]SpeakerSegment{
		{Speaker: 1, Text: "What is Go?"},
		{Speaker: 2, Text: "A programming language."},
	})

	snap := state.Snapshot()

	if snap.CurrentQuestion != "What is Go?" {
		t.Errorf("Expected current question, got %q", snap.CurrentQuestion)
	}
	if snap.CandidateAnswer != "A programming language." {
		t.Errorf("Expected candidate answer, got %q", snap.CandidateAnswer)
	}
	if snap.CurrentTurn != TurnAnswer {
		t.Errorf("Expected turn %q, got %q", TurnAnswer, snap.CurrentTurn)
	}
	if snap.PreviousSpeaker != 2 {
		t.Errorf("Expected previous speaker 2, got %d", snap.PreviousSpeaker)
	}
}

func TestStateTranscriptFormat(t *testing.T) {
	state := NewState(false)

	state.Apply([]SpeakerSegment{
		{Speaker: 1, Text: "hello"},
		{Speaker: 2, Text: "hi"},
	})

	expected := "[Speaker 1]: hello [Speaker 2]: hi"
	if got := state.Snapshot().FullTranscript; got != expected {
		t.Errorf("Expected transcript %q, got %q", expected, got)
	}
}

func TestStateAccumulatesAcrossBatches(t *testing.T) {
	state := NewState(false)

	state.Apply([]SpeakerSegment{{Speaker: 1, Text: "First question."}})
	state.Apply([]SpeakerSegment{{Speaker: 2, Text: "First answer."}})
	state.Apply([]SpeakerSegment{{Speaker: 1, Text: "Second question."}})
	state.Apply([]SpeakerSegment{{Speaker: 2, Text: "Second answer."}})

	snap := state.Snapshot()

	if snap.CurrentQuestion != "First question. Second question." {
		t.Errorf("Expected accumulated questions, got %q", snap.CurrentQuestion)
	}
	if snap.CandidateAnswer != "First answer. Second answer." {
		t.Errorf("Expected accumulated answers, got %q", snap.CandidateAnswer)
	}
}

func TestStateResetAnswerOnNewQuestion(t *testing.T) {
	state := NewState(true)

	state.Apply([]SpeakerSegment{
		{Speaker: 1, Text: "First question."},
		{Speaker: 2, Text: "First answer."},
		{Speaker: 1, Text: "Second question."},
		{Speaker: 2, Text: "Second answer."},
	})

	snap := state.Snapshot()

	if snap.CandidateAnswer != "Second answer." {
		t.Errorf("Expected answer reset on new question, got %q", snap.CandidateAnswer)
	}

	// Questions still accumulate
	if snap.CurrentQuestion != "First question. Second question." {
		t.Errorf("Expected questions to accumulate, got %q", snap.CurrentQuestion)
	}

	// The answer clears when the interviewer takes the turn back, and a
	// continued question (1 after 1) leaves it cleared rather than erroring
	state2 := NewState(true)
	state2.Apply([]SpeakerSegment{
		{Speaker: 1, Text: "Question?"},
		{Speaker: 2, Text: "Answer."},
	})
	state2.Apply([]SpeakerSegment{
		{Speaker: 1, Text: "Next"},
		{Speaker: 1, Text: "question?"},
	})
	if got := state2.Snapshot().CandidateAnswer; got != "" {
		t.Errorf("Expected answer cleared on new question, got %q", got)
	}
}

func TestStateSkipsEmptySegments(t *testing.T) {
	state := NewState(false)

	state.Apply([]SpeakerSegment{
		{Speaker: 1, Text: "  "},
		{Speaker: 2, Text: ""},
	})

	if state.HasContent() {
		t.Error("Expected no content after blank segments")
	}
	if state.SegmentCount() != 0 {
		t.Errorf("Expected 0 segments, got %d", state.SegmentCount())
	}
}

func TestStateOtherSpeakersKeptInHistoryOnly(t *testing.T) {
	state := NewState(false)

	state.Apply([]SpeakerSegment{
		{Speaker: 3, Text: "Background voice."},
	})

	snap := state.Snapshot()

	if snap.CurrentQuestion != "" || snap.CandidateAnswer != "" {
		t.Error("Expected no role accumulation for speaker 3")
	}
	if !strings.Contains(snap.FullTranscript, "[Speaker 3]: Background voice.") {
		t.Errorf("Expected speaker 3 in transcript, got %q", snap.FullTranscript)
	}
	if snap.PreviousSpeaker != 3 {
		t.Errorf("Expected previous speaker 3, got %d", snap.PreviousSpeaker)
	}
	if len(snap.SpeakerHistory) != 1 {
		t.Errorf("Expected 1 history entry, got %d", len(snap.SpeakerHistory))
	}
}

func TestStateHistoryIsMonotonic(t *testing.T) {
	state := NewState(false)

	for i := 0; i < 5; i++ {
		state.Apply([]SpeakerSegment{{Speaker: 1 + i%2, Text: "segment"}})

		if state.SegmentCount() != i+1 {
			t.Errorf("Expected %d segments after batch %d, got %d", i+1, i, state.SegmentCount())
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	state := NewState(false)
	state.Apply([]SpeakerSegment{{Speaker: 1, Text: "original"}})

	snap := state.Snapshot()
	snap.SpeakerHistory[0].Text = "mutated"

	if state.Snapshot().SpeakerHistory[0].Text != "original" {
		t.Error("Snapshot mutation leaked into state")
	}
}

func TestStateConcurrentAccess(t *testing.T) {
	state := NewState(false)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				state.Apply([]SpeakerSegment{{Speaker: 1, Text: "q"}, {Speaker: 2, Text: "a"}})
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				state.Snapshot()
				state.PreviousSpeaker()
			}
		}()
	}
	wg.Wait()

	if state.SegmentCount() != 4*50*2 {
		t.Errorf("Expected %d segments, got %d", 4*50*2, state.SegmentCount())
	}
}
