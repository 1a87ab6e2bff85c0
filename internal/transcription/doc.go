// Package transcription talks to the external speech recognition backend.
// It defines the Recognizer capability, an HTTP client implementation, and
// the diarized-then-plain fallback used for every flushed audio batch.
package transcription
