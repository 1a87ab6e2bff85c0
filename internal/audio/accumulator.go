package audio

import (
	"sync"
	"time"
)

// Accumulator buffers raw PCM audio from the capture source and decides when
// enough has piled up to attempt transcription. Chunks are appended in
// arrival order; a flush hands back the concatenated bytes and keeps only a
// short trailing window so words spanning the flush boundary survive into
// the next batch.
type Accumulator struct {
	chunks     [][]byte
	totalBytes int

	bytesPerSecond int
	minFlush       time.Duration
	retention      time.Duration

	// Lifetime counters, not reset by flushes
	totalReceived uint64
	flushCount    uint64
	lastAppend    time.Time

	mu sync.RWMutex
}

// AccumulatorStats represents accumulator statistics for monitoring
type AccumulatorStats struct {
	BufferedBytes   int     `json:"buffered_bytes"`
	BufferedSeconds float64 `json:"buffered_seconds"`
	TotalReceived   uint64  `json:"total_received_bytes"`
	FlushCount      uint64  `json:"flush_count"`
}

// NewAccumulator creates an empty accumulator for the given byte rate.
// bytesPerSecond is sampleRate * channels * bytesPerSample (32000 for
// 16 kHz 16-bit mono).
func NewAccumulator(bytesPerSecond int, minFlush, retention time.Duration) *Accumulator {
	return &Accumulator{
		chunks:         make([][]byte, 0, 64),
		bytesPerSecond: bytesPerSecond,
		minFlush:       minFlush,
		retention:      retention,
	}
}

// Append adds a chunk of raw PCM bytes to the buffer
func (a *Accumulator) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Copy so the caller can reuse its read buffer
	c := make([]byte, len(chunk))
	copy(c, chunk)

	a.chunks = append(a.chunks, c)
	a.totalBytes += len(c)
	a.totalReceived += uint64(len(c))
	a.lastAppend = time.Now()
}

// Duration returns the buffered audio duration. The byte count is cached so
// this never rescans the chunk list.
func (a *Accumulator) Duration() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.durationLocked()
}

func (a *Accumulator) durationLocked() time.Duration {
	return time.Duration(float64(a.totalBytes) / float64(a.bytesPerSecond) * float64(time.Second))
}

// ReadyToFlush reports whether enough audio has accumulated for a
// transcription attempt
func (a *Accumulator) ReadyToFlush() bool {
	return a.Duration() >= a.minFlush
}

// Flush returns all buffered bytes as one contiguous slice and resets the
// buffer to at most the retention window of trailing bytes. The whole
// operation holds the lock, so a concurrent Append sees either the pre- or
// post-flush buffer, never a partial one.
func (a *Accumulator) Flush() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.totalBytes == 0 {
		return nil
	}

	pcm := make([]byte, 0, a.totalBytes)
	for _, c := range a.chunks {
		pcm = append(pcm, c...)
	}

	keepBytes := int(a.retention.Seconds() * float64(a.bytesPerSecond))
	if keepBytes > 0 && len(pcm) > keepBytes {
		tail := make([]byte, keepBytes)
		copy(tail, pcm[len(pcm)-keepBytes:])
		a.chunks = [][]byte{tail}
		a.totalBytes = keepBytes
	} else {
		a.chunks = a.chunks[:0]
		a.totalBytes = 0
	}

	a.flushCount++
	return pcm
}

// Discard drops all buffered audio without returning it. Used on shutdown
// for a tail below the flush threshold.
func (a *Accumulator) Discard() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.chunks = a.chunks[:0]
	a.totalBytes = 0
}

// Size returns the number of currently buffered bytes
func (a *Accumulator) Size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.totalBytes
}

// LastAppend returns the time of the most recent append
func (a *Accumulator) LastAppend() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastAppend
}

// Stats returns current accumulator statistics
func (a *Accumulator) Stats() AccumulatorStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return AccumulatorStats{
		BufferedBytes:   a.totalBytes,
		BufferedSeconds: a.durationLocked().Seconds(),
		TotalReceived:   a.totalReceived,
		FlushCount:      a.flushCount,
	}
}
