package transcription

import "context"

// Word is a single recognized word with optional speaker attribution.
// SpeakerTag is 0 when the backend returned no attribution for the word.
type Word struct {
	Text       string  `json:"word"`
	SpeakerTag int     `json:"speaker_tag,omitempty"`
	Start      float64 `json:"start"` // seconds from batch start
	End        float64 `json:"end"`
}

// Utterance is one recognition result: a flat transcript plus, when the
// backend produced it, word-level detail
type Utterance struct {
	Transcript string `json:"transcript"`
	Words      []Word `json:"words,omitempty"`
}

// RecognizeConfig specifies encoding and behavior for a recognition request
type RecognizeConfig struct {
	Encoding          string `json:"encoding"`
	SampleRate        int    `json:"sample_rate"`
	Language          string `json:"language"`
	Punctuation       bool   `json:"punctuation"`
	Model             string `json:"model,omitempty"`
	EnableDiarization bool   `json:"enable_diarization"`
	SpeakerCount      int    `json:"speaker_count,omitempty"`
}

// Recognizer is the external transcription capability. Implementations may
// fail for transport or quota reasons; callers treat failure as "no usable
// result for this batch".
type Recognizer interface {
	Recognize(ctx context.Context, pcm []byte, cfg RecognizeConfig) ([]Utterance, error)
}

// HasSpeakerTags reports whether any word in the result set carries a
// speaker tag
func HasSpeakerTags(utterances []Utterance) bool {
	for _, u := range utterances {
		for _, w := range u.Words {
			if w.SpeakerTag != 0 {
				return true
			}
		}
	}
	return false
}

// HasText reports whether any result carries a non-empty transcript or words
func HasText(utterances []Utterance) bool {
	for _, u := range utterances {
		if u.Transcript != "" || len(u.Words) > 0 {
			return true
		}
	}
	return false
}
