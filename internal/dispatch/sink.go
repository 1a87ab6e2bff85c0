package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// HTTPSink posts conversation payloads to the analysis service. Retries
// here are transport level only; pacing between payloads belongs to the
// scheduler.
type HTTPSink struct {
	config     SinkConfig
	httpClient *http.Client

	// Statistics
	totalDeliveries  uint64
	failedDeliveries uint64

	mu sync.RWMutex
}

// SinkConfig contains analysis sink configuration
type SinkConfig struct {
	Endpoint   string
	Token      string
	Timeout    time.Duration
	MaxRetries int
}

// SinkStats represents sink statistics
type SinkStats struct {
	TotalDeliveries  uint64  `json:"total_deliveries"`
	FailedDeliveries uint64  `json:"failed_deliveries"`
	SuccessRate      float64 `json:"success_rate"`
}

// NewHTTPSink creates an analysis service sink
func NewHTTPSink(config SinkConfig) (*HTTPSink, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.Token == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	return &HTTPSink{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Deliver posts a payload to the session's realtime-analysis endpoint
func (s *HTTPSink) Deliver(ctx context.Context, sessionID string, payload Payload) error {
	s.mu.Lock()
	s.totalDeliveries++
	s.mu.Unlock()

	var lastErr error

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				s.mu.Lock()
				s.failedDeliveries++
				s.mu.Unlock()
				return ctx.Err()
			}
		}

		if err := s.doDeliver(ctx, sessionID, payload); err != nil {
			lastErr = err
			continue
		}

		return nil
	}

	s.mu.Lock()
	s.failedDeliveries++
	s.mu.Unlock()

	return fmt.Errorf("delivery failed after %d attempts: %w", s.config.MaxRetries+1, lastErr)
}

// doDeliver performs a single HTTP POST to the analysis service
func (s *HTTPSink) doDeliver(ctx context.Context, sessionID string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/realtime-analysis/", strings.TrimRight(s.config.Endpoint, "/"), sessionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+s.config.Token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// GetStats returns current sink statistics
func (s *HTTPSink) GetStats() SinkStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	successRate := float64(0)
	if s.totalDeliveries > 0 {
		successRate = float64(s.totalDeliveries-s.failedDeliveries) / float64(s.totalDeliveries) * 100
	}

	return SinkStats{
		TotalDeliveries:  s.totalDeliveries,
		FailedDeliveries: s.failedDeliveries,
		SuccessRate:      successRate,
	}
}
