// Package pipeline coordinates the per-interview session: audio
// accumulation, flush-triggered transcription cycles, conversation updates,
// and interval-gated dispatch, all driven by one coordinating loop.
package pipeline
