package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
)

// readChunkSize is the capture read granularity. Small enough to keep
// ingestion latency low, large enough to avoid per-read overhead.
const readChunkSize = 4096

// Source produces a continuous sequence of raw PCM byte chunks. The channel
// closes when the source ends or is closed; the pipeline only ever consumes
// chunks, the capture mechanism behind them is irrelevant to it.
type Source interface {
	Start(ctx context.Context) (<-chan []byte, error)
	Close() error
}

// FFmpegSource captures system call audio through an ffmpeg subprocess
// recording from PulseAudio into raw s16le on stdout
type FFmpegSource struct {
	device     string
	sampleRate int
	logger     *slog.Logger

	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}

	mu sync.Mutex
}

// NewFFmpegSource creates a capture source reading from the given
// PulseAudio device ("default" for the system mix)
func NewFFmpegSource(device string, sampleRate int, logger *slog.Logger) *FFmpegSource {
	return &FFmpegSource{
		device:     device,
		sampleRate: sampleRate,
		logger:     logger,
	}
}

// Start spawns ffmpeg and begins streaming chunks. The returned channel
// closes when the process exits or the context is canceled.
func (f *FFmpegSource) Start(ctx context.Context) (<-chan []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cmd != nil {
		return nil, fmt.Errorf("source already started")
	}

	ctx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-f", "pulse",
		"-i", f.device,
		"-ar", strconv.Itoa(f.sampleRate),
		"-ac", "1",
		"-acodec", "pcm_s16le",
		"-f", "s16le",
		"-y",
		"pipe:1",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open ffmpeg stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	f.cmd = cmd
	f.cancel = cancel
	f.done = make(chan struct{})

	// Drain ffmpeg's progress chatter so the process never blocks on it
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			f.logger.Debug("ffmpeg", slog.String("line", scanner.Text()))
		}
	}()

	chunks := make(chan []byte, 16)

	go func() {
		defer close(chunks)
		defer close(f.done)

		buf := make([]byte, readChunkSize)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])

				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF && ctx.Err() == nil {
					f.logger.Warn("Capture read failed", slog.String("error", err.Error()))
				}
				return
			}
		}
	}()

	f.logger.Info("Audio capture started",
		slog.String("device", f.device),
		slog.Int("sample_rate", f.sampleRate),
	)

	return chunks, nil
}

// Close stops the capture process and waits for the reader to drain
func (f *FFmpegSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cmd == nil {
		return nil
	}

	f.cancel()
	<-f.done

	err := f.cmd.Wait()
	f.cmd = nil

	// Killed-by-cancel is the expected exit path
	if err != nil && err.Error() != "signal: killed" {
		return fmt.Errorf("ffmpeg exited: %w", err)
	}
	return nil
}

// ReaderSource streams chunks from an arbitrary io.Reader. Used for tests
// and recorded-audio replay.
type ReaderSource struct {
	reader    io.Reader
	chunkSize int

	cancel context.CancelFunc
	done   chan struct{}

	mu sync.Mutex
}

// NewReaderSource creates a source over the given reader
func NewReaderSource(reader io.Reader, chunkSize int) *ReaderSource {
	if chunkSize <= 0 {
		chunkSize = readChunkSize
	}
	return &ReaderSource{
		reader:    reader,
		chunkSize: chunkSize,
	}
}

// Start begins streaming chunks until EOF or cancellation
func (r *ReaderSource) Start(ctx context.Context) (<-chan []byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done != nil {
		return nil, fmt.Errorf("source already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	chunks := make(chan []byte, 16)

	go func() {
		defer close(chunks)
		defer close(r.done)

		buf := make([]byte, r.chunkSize)
		for {
			n, err := r.reader.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])

				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	return chunks, nil
}

// Close stops the source and waits for the reader goroutine
func (r *ReaderSource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done == nil {
		return nil
	}

	r.cancel()
	<-r.done
	return nil
}
