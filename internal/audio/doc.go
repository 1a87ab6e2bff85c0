// Package audio handles PCM audio accumulation, flush timing, and WAV
// encoding. It implements the growing capture buffer with a retained tail
// across flushes and an energy gate that filters silent batches before
// transcription.
package audio
