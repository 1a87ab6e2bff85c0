package conversation

import (
	"fmt"
	"strings"
	"sync"
)

// Turn is the conversational role of the most recent segment
type Turn string

const (
	TurnQuestion Turn = "question"
	TurnAnswer   Turn = "answer"
)

// State is the accumulated conversation for one interview session. It grows
// monotonically for the process lifetime; callers needing bounded memory
// must truncate externally. All mutation goes through Apply; readers take a
// Snapshot, so a dispatch never observes a half-applied batch.
type State struct {
	fullTranscript  string
	currentQuestion string
	candidateAnswer string
	previousSpeaker int
	currentTurn     Turn
	speakerHistory  []SpeakerSegment

	resetAnswerOnNewQuestion bool

	mu sync.RWMutex
}

// Snapshot is a consistent read of the conversation state
type Snapshot struct {
	FullTranscript  string           `json:"full_transcript"`
	CurrentQuestion string           `json:"current_question"`
	CandidateAnswer string           `json:"candidate_answer"`
	PreviousSpeaker int              `json:"previous_speaker"`
	CurrentTurn     Turn             `json:"current_turn"`
	SpeakerHistory  []SpeakerSegment `json:"speaker_history"`
}

// NewState creates an empty conversation state. When resetAnswerOnNewQuestion
// is set, the accumulated candidate answer is cleared each time the
// interviewer takes the turn back; otherwise both roles accumulate for the
// whole session.
func NewState(resetAnswerOnNewQuestion bool) *State {
	return &State{
		currentTurn:              TurnQuestion,
		speakerHistory:           make([]SpeakerSegment, 0, 32),
		resetAnswerOnNewQuestion: resetAnswerOnNewQuestion,
	}
}

// Apply folds a batch of segments into the conversation in order. Speaker 1
// accretes the current question, speaker 2 the candidate answer; any other
// tag is kept in the history without role accumulation. Segments are never
// removed.
func (s *State) Apply(segments []SpeakerSegment) {
	if len(segments) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		s.fullTranscript += fmt.Sprintf("[Speaker %d]: %s ", seg.Speaker, text)

		switch seg.Speaker {
		case 1:
			if s.resetAnswerOnNewQuestion && s.previousSpeaker != 0 && s.previousSpeaker != 1 {
				s.candidateAnswer = ""
			}
			s.currentQuestion = appendText(s.currentQuestion, text)
			s.currentTurn = TurnQuestion
		case 2:
			s.candidateAnswer = appendText(s.candidateAnswer, text)
			s.currentTurn = TurnAnswer
		}

		s.previousSpeaker = seg.Speaker
		s.speakerHistory = append(s.speakerHistory, seg)
	}
}

// appendText accretes same-role segment text with a separating space
func appendText(existing, text string) string {
	if existing == "" {
		return text
	}
	return existing + " " + text
}

// Snapshot returns a consistent, trimmed copy of the conversation state
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]SpeakerSegment, len(s.speakerHistory))
	copy(history, s.speakerHistory)

	return Snapshot{
		FullTranscript:  strings.TrimSpace(s.fullTranscript),
		CurrentQuestion: strings.TrimSpace(s.currentQuestion),
		CandidateAnswer: strings.TrimSpace(s.candidateAnswer),
		PreviousSpeaker: s.previousSpeaker,
		CurrentTurn:     s.currentTurn,
		SpeakerHistory:  history,
	}
}

// PreviousSpeaker returns the last speaker tag observed, or 0 when none
func (s *State) PreviousSpeaker() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.previousSpeaker
}

// SegmentCount returns the number of segments applied so far
func (s *State) SegmentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.speakerHistory)
}

// HasContent reports whether any transcript text has accumulated
func (s *State) HasContent() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return strings.TrimSpace(s.fullTranscript) != ""
}
