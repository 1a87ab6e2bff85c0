package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Session       SessionConfig       `yaml:"session"`
	Capture       CaptureConfig       `yaml:"capture"`
	Audio         AudioConfig         `yaml:"audio"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Dispatch      DispatchConfig      `yaml:"dispatch"`
	HTTP          HTTPConfig          `yaml:"http"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// SessionConfig identifies the interview session being transcribed
type SessionConfig struct {
	InterviewID string `yaml:"interview_id"`
}

// CaptureConfig selects the PulseAudio capture device
type CaptureConfig struct {
	Device string `yaml:"device"`
}

// AudioConfig contains audio accumulation parameters
type AudioConfig struct {
	SampleRate         int              `yaml:"sample_rate"`
	Channels           int              `yaml:"channels"`
	BitDepth           int              `yaml:"bit_depth"`
	MinFlushDuration   float64          `yaml:"min_flush_duration"`   // seconds of audio required before a flush
	RetentionDuration  float64          `yaml:"retention_duration"`   // seconds of tail kept across a flush
	FlushCheckInterval float64          `yaml:"flush_check_interval"` // seconds between readiness checks
	MinBatchBytes      int              `yaml:"min_batch_bytes"`
	EnergyGate         EnergyGateConfig `yaml:"energy_gate"`
}

// EnergyGateConfig controls the pre-transcription speech presence check
type EnergyGateConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"` // RMS threshold on int16 samples
}

// TranscriptionConfig contains recognition backend configuration
type TranscriptionConfig struct {
	Endpoint      string            `yaml:"endpoint"`
	APIKey        string            `yaml:"api_key"`
	Timeout       int               `yaml:"timeout"` // seconds
	MaxRetries    int               `yaml:"max_retries"`
	MaxConcurrent int               `yaml:"max_concurrent"`
	Language      string            `yaml:"language"`
	Punctuation   bool              `yaml:"punctuation"`
	Model         string            `yaml:"model"`
	Diarization   DiarizationConfig `yaml:"diarization"`
}

// DiarizationConfig contains the speaker diarization hint
type DiarizationConfig struct {
	Enabled      bool `yaml:"enabled"`
	SpeakerCount int  `yaml:"speaker_count"`
}

// DispatchConfig contains downstream delivery configuration
type DispatchConfig struct {
	Endpoint   string  `yaml:"endpoint"`
	Token      string  `yaml:"token"`
	Interval   float64 `yaml:"interval"` // seconds between dispatch attempts
	Timeout    int     `yaml:"timeout"`  // seconds
	MaxRetries int     `yaml:"max_retries"`

	// ResetAnswerOnNewQuestion clears the accumulated candidate answer when
	// a new interviewer question starts instead of accumulating it for the
	// whole session.
	ResetAnswerOnNewQuestion bool `yaml:"reset_answer_on_new_question"`
}

// HTTPConfig contains monitoring API server configuration
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file, applying environment
// overrides for secrets and deployment identity before validation
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyEnvOverrides()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides pulls secrets from the environment so they never have to
// live in the YAML file
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("STT_API_KEY"); v != "" {
		c.Transcription.APIKey = v
	}
	if v := os.Getenv("ANALYSIS_API_TOKEN"); v != "" {
		c.Dispatch.Token = v
	}
	if v := os.Getenv("INTERVIEW_ID"); v != "" {
		c.Session.InterviewID = v
	}
}

// applyDefaults fills optional fields that have a sensible default
func (c *Config) applyDefaults() {
	if c.Capture.Device == "" {
		c.Capture.Device = "default"
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Dispatch.Validate(); err != nil {
		return fmt.Errorf("dispatch config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 16000 Hz for the capture pipeline, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", a.BitDepth)
	}

	if a.MinFlushDuration <= 0 {
		return fmt.Errorf("min_flush_duration must be positive, got %f", a.MinFlushDuration)
	}

	if a.RetentionDuration < 0 {
		return fmt.Errorf("retention_duration cannot be negative, got %f", a.RetentionDuration)
	}

	if a.RetentionDuration >= a.MinFlushDuration {
		return fmt.Errorf("retention_duration (%f) must be below min_flush_duration (%f)",
			a.RetentionDuration, a.MinFlushDuration)
	}

	if a.FlushCheckInterval <= 0 {
		return fmt.Errorf("flush_check_interval must be positive, got %f", a.FlushCheckInterval)
	}

	if a.MinBatchBytes < 0 {
		return fmt.Errorf("min_batch_bytes cannot be negative, got %d", a.MinBatchBytes)
	}

	if a.EnergyGate.Enabled && a.EnergyGate.Threshold <= 0 {
		return fmt.Errorf("energy_gate.threshold must be positive when enabled, got %f", a.EnergyGate.Threshold)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty (set STT_API_KEY)")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	if t.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}

	if t.Diarization.Enabled && t.Diarization.SpeakerCount < 2 {
		return fmt.Errorf("diarization.speaker_count must be at least 2, got %d", t.Diarization.SpeakerCount)
	}

	return nil
}

// Validate validates dispatch configuration
func (d *DispatchConfig) Validate() error {
	if d.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if d.Token == "" {
		return fmt.Errorf("token cannot be empty (set ANALYSIS_API_TOKEN)")
	}

	if d.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %f", d.Interval)
	}

	if d.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", d.Timeout)
	}

	if d.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", d.MaxRetries)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// BytesPerSecond returns the PCM byte rate implied by the audio parameters
func (a *AudioConfig) BytesPerSecond() int {
	return a.SampleRate * a.Channels * a.BitDepth / 8
}

// GetMinFlushDuration returns the minimum flush duration as a time.Duration
func (a *AudioConfig) GetMinFlushDuration() time.Duration {
	return time.Duration(a.MinFlushDuration * float64(time.Second))
}

// GetRetentionDuration returns the retention window as a time.Duration
func (a *AudioConfig) GetRetentionDuration() time.Duration {
	return time.Duration(a.RetentionDuration * float64(time.Second))
}

// GetFlushCheckInterval returns the flush check interval as a time.Duration
func (a *AudioConfig) GetFlushCheckInterval() time.Duration {
	return time.Duration(a.FlushCheckInterval * float64(time.Second))
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetInterval returns the dispatch interval as a time.Duration
func (d *DispatchConfig) GetInterval() time.Duration {
	return time.Duration(d.Interval * float64(time.Second))
}

// GetTimeoutDuration returns the dispatch timeout as a time.Duration
func (d *DispatchConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(d.Timeout) * time.Second
}
