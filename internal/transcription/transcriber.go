package transcription

import (
	"context"
	"log/slog"
)

// Transcriber runs the at-most-two-tier recognition fallback over a flushed
// audio batch: a diarized request first, then a plain one when diarization
// fails or comes back without speaker tags. An empty final result is not an
// error; the batch simply had nothing usable in it.
type Transcriber struct {
	recognizer Recognizer
	base       RecognizeConfig
	logger     *slog.Logger
}

// NewTranscriber creates a transcriber over the given recognition capability
func NewTranscriber(recognizer Recognizer, base RecognizeConfig, logger *slog.Logger) *Transcriber {
	return &Transcriber{
		recognizer: recognizer,
		base:       base,
		logger:     logger,
	}
}

// Transcribe recognizes a PCM batch. It returns the normalized utterance
// list and whether word-level diarization was usable. Recognition failures
// are logged and degrade to the next tier rather than propagating.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte) ([]Utterance, bool) {
	if t.base.EnableDiarization {
		cfg := t.base

		utterances, err := t.recognizer.Recognize(ctx, pcm, cfg)
		if err != nil {
			t.logger.Warn("Diarized recognition failed, falling back",
				slog.String("error", err.Error()),
			)
		} else if HasSpeakerTags(utterances) {
			return utterances, true
		} else if HasText(utterances) {
			t.logger.Info("No speaker tags in diarized response, falling back")
		}
	}

	cfg := t.base
	cfg.EnableDiarization = false
	cfg.SpeakerCount = 0

	utterances, err := t.recognizer.Recognize(ctx, pcm, cfg)
	if err != nil {
		t.logger.Warn("Plain recognition failed, skipping batch",
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	if !HasText(utterances) {
		return nil, false
	}

	return utterances, false
}
