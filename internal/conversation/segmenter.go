package conversation

import (
	"strings"

	"github.com/hirestream/interview-transcriber/internal/transcription"
)

// SpeakerSegment is a maximal contiguous run of words attributed to one
// speaker tag within a single recognition batch. Tags are only consistent
// within a batch, not across flushes.
type SpeakerSegment struct {
	Speaker int     `json:"speaker"`
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Interrogative openers used to classify untagged utterances. Matched
// case-insensitively against the start of the transcript.
var questionPrefixes = []string{
	"what", "how", "why", "when", "where", "who",
	"can you", "do you", "are you", "tell me", "describe", "explain",
}

// Segmenter converts recognition results into ordered speaker segments.
// When word-level speaker tags are present it splits on tag changes; when a
// result only carries a flat transcript it falls back to a question/answer
// text heuristic and turn alternation.
type Segmenter struct{}

// NewSegmenter creates a segmenter
func NewSegmenter() *Segmenter {
	return &Segmenter{}
}

// Segment walks the recognition results in order and produces speaker
// segments. previousSpeaker is the last speaker tag observed before this
// batch (0 when none); it seeds turn alternation for untagged utterances.
// In a partially tagged utterance, words without a speaker tag are skipped,
// never merged into a neighbor; an utterance with no tagged words at all is
// classified as a whole through the fallback heuristic.
func (s *Segmenter) Segment(utterances []transcription.Utterance, previousSpeaker int) []SpeakerSegment {
	segments := make([]SpeakerSegment, 0, len(utterances))
	prev := previousSpeaker

	for _, u := range utterances {
		// No tagged words means the batch came from the plain tier (or the
		// backend returned timing without attribution); either way the
		// utterance is classified as a whole.
		if !hasTaggedWords(u.Words) {
			if seg, ok := s.classifyUntagged(flatText(u), prev); ok {
				segments = append(segments, seg)
				prev = seg.Speaker
			}
			continue
		}

		var current *SpeakerSegment

		for _, w := range u.Words {
			if w.SpeakerTag == 0 {
				continue
			}

			if current == nil || current.Speaker != w.SpeakerTag {
				if current != nil {
					segments = append(segments, *current)
					prev = current.Speaker
				}
				current = &SpeakerSegment{
					Speaker: w.SpeakerTag,
					Text:    w.Text,
					Start:   w.Start,
					End:     w.End,
				}
			} else {
				current.Text += " " + w.Text
				current.End = w.End
			}
		}

		// Close the segment left open at the end of the utterance
		if current != nil {
			segments = append(segments, *current)
			prev = current.Speaker
		}
	}

	return segments
}

// hasTaggedWords reports whether any word carries a speaker tag
func hasTaggedWords(words []transcription.Word) bool {
	for _, w := range words {
		if w.SpeakerTag != 0 {
			return true
		}
	}
	return false
}

// flatText returns the utterance transcript, reconstructing it from word
// texts when the backend left the flat field empty
func flatText(u transcription.Utterance) string {
	if strings.TrimSpace(u.Transcript) != "" {
		return u.Transcript
	}

	parts := make([]string, 0, len(u.Words))
	for _, w := range u.Words {
		parts = append(parts, w.Text)
	}
	return strings.Join(parts, " ")
}

// classifyUntagged builds a single synthetic segment from a flat transcript.
// A question is attributed to the interviewer (speaker 1); anything else
// alternates from the previous speaker, defaulting to 1 when there is none.
func (s *Segmenter) classifyUntagged(transcript string, previousSpeaker int) (SpeakerSegment, bool) {
	text := strings.TrimSpace(transcript)
	if text == "" {
		return SpeakerSegment{}, false
	}

	speaker := 1
	if !IsQuestion(text) {
		switch previousSpeaker {
		case 1:
			speaker = 2
		case 2:
			speaker = 1
		default:
			speaker = 1
		}
	}

	return SpeakerSegment{Speaker: speaker, Text: text}, true
}

// IsQuestion reports whether a flat transcript reads like an interviewer
// question: it contains a question mark or opens with an interrogative
func IsQuestion(text string) bool {
	if strings.Contains(text, "?") {
		return true
	}

	lower := strings.ToLower(strings.TrimSpace(text))
	for _, prefix := range questionPrefixes {
		if lower == prefix || strings.HasPrefix(lower, prefix+" ") {
			return true
		}
	}

	return false
}
