package audio

import (
	"math"
	"sync"
)

// Gate performs a cheap energy-based speech presence check on a flushed
// batch. Batches that are effectively silence are skipped before spending a
// recognition call on them.
type Gate struct {
	enabled   bool
	threshold float64 // RMS threshold on int16 samples

	totalBatches  uint64
	passedBatches uint64

	mu sync.RWMutex
}

// GateStats represents gate statistics for monitoring
type GateStats struct {
	Enabled       bool    `json:"enabled"`
	Threshold     float64 `json:"threshold"`
	TotalBatches  uint64  `json:"total_batches"`
	PassedBatches uint64  `json:"passed_batches"`
}

// NewGate creates an energy gate. A disabled gate passes everything.
func NewGate(enabled bool, threshold float64) *Gate {
	return &Gate{
		enabled:   enabled,
		threshold: threshold,
	}
}

// HasSpeech reports whether the PCM batch carries enough energy to be worth
// transcribing. Odd trailing bytes are ignored.
func (g *Gate) HasSpeech(pcm []byte) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.totalBatches++

	if !g.enabled {
		g.passedBatches++
		return true
	}

	n := len(pcm) / 2
	if n == 0 {
		return false
	}

	var energy float64
	for i := 0; i < n; i++ {
		// Little-endian PCM-16
		sample := int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
		energy += float64(sample) * float64(sample)
	}
	rms := math.Sqrt(energy / float64(n))

	if rms >= g.threshold {
		g.passedBatches++
		return true
	}
	return false
}

// Stats returns current gate statistics
func (g *Gate) Stats() GateStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return GateStats{
		Enabled:       g.enabled,
		Threshold:     g.threshold,
		TotalBatches:  g.totalBatches,
		PassedBatches: g.passedBatches,
	}
}
