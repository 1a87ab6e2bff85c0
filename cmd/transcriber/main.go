package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/hirestream/interview-transcriber/internal/audio"
	"github.com/hirestream/interview-transcriber/internal/config"
	"github.com/hirestream/interview-transcriber/internal/conversation"
	"github.com/hirestream/interview-transcriber/internal/dispatch"
	"github.com/hirestream/interview-transcriber/internal/metrics"
	"github.com/hirestream/interview-transcriber/internal/pipeline"
	"github.com/hirestream/interview-transcriber/internal/server"
	"github.com/hirestream/interview-transcriber/internal/source"
	"github.com/hirestream/interview-transcriber/internal/transcription"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "interview-transcriber"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Secrets come from a .env file in development; missing file is fine
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("interview_id", cfg.Session.InterviewID),
		slog.String("capture_device", cfg.Capture.Device),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Float64("min_flush_duration", cfg.Audio.MinFlushDuration),
		slog.Float64("retention_duration", cfg.Audio.RetentionDuration),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.Bool("diarization_enabled", cfg.Transcription.Diarization.Enabled),
		slog.String("dispatch_endpoint", cfg.Dispatch.Endpoint),
		slog.Float64("dispatch_interval", cfg.Dispatch.Interval),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// An interview id is normally injected by the deployment; generate one
	// for ad-hoc runs so dispatch URLs stay well-formed
	sessionID := cfg.Session.InterviewID
	if sessionID == "" {
		sessionID = uuid.NewString()
		logger.Warn("No interview id configured, generated one",
			slog.String("session_id", sessionID),
		)
	}

	// Build the audio side: accumulator and speech gate
	accumulator := audio.NewAccumulator(
		cfg.Audio.BytesPerSecond(),
		cfg.Audio.GetMinFlushDuration(),
		cfg.Audio.GetRetentionDuration(),
	)
	gate := audio.NewGate(cfg.Audio.EnergyGate.Enabled, cfg.Audio.EnergyGate.Threshold)

	// Build the recognition side: HTTP client behind the fallback transcriber
	recognizer, err := transcription.NewClient(transcription.ClientConfig{
		Endpoint:      cfg.Transcription.Endpoint,
		APIKey:        cfg.Transcription.APIKey,
		Timeout:       cfg.Transcription.GetTimeoutDuration(),
		MaxRetries:    cfg.Transcription.MaxRetries,
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
	})
	if err != nil {
		logger.Error("Failed to create recognition client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	transcriber := transcription.NewTranscriber(recognizer, transcription.RecognizeConfig{
		Encoding:          "LINEAR16",
		SampleRate:        cfg.Audio.SampleRate,
		Language:          cfg.Transcription.Language,
		Punctuation:       cfg.Transcription.Punctuation,
		Model:             cfg.Transcription.Model,
		EnableDiarization: cfg.Transcription.Diarization.Enabled,
		SpeakerCount:      cfg.Transcription.Diarization.SpeakerCount,
	}, logger)

	// Build the conversation side: state and periodic dispatch
	state := conversation.NewState(cfg.Dispatch.ResetAnswerOnNewQuestion)

	sink, err := dispatch.NewHTTPSink(dispatch.SinkConfig{
		Endpoint:   cfg.Dispatch.Endpoint,
		Token:      cfg.Dispatch.Token,
		Timeout:    cfg.Dispatch.GetTimeoutDuration(),
		MaxRetries: cfg.Dispatch.MaxRetries,
	})
	if err != nil {
		logger.Error("Failed to create dispatch sink", slog.String("error", err.Error()))
		os.Exit(1)
	}

	scheduler := dispatch.NewScheduler(sessionID, cfg.Dispatch.GetInterval(), sink, state, logger)

	session := pipeline.NewSession(sessionID, pipeline.Config{
		FlushCheckInterval: cfg.Audio.GetFlushCheckInterval(),
		DispatchInterval:   cfg.Dispatch.GetInterval(),
		MinBatchBytes:      cfg.Audio.MinBatchBytes,
		TranscribeTimeout:  cfg.Transcription.GetTimeoutDuration(),
	}, accumulator, gate, transcriber, state, scheduler, appMetrics, logger)
	logger.Info("Pipeline session initialized", slog.String("session_id", sessionID))

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, session, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Start audio capture
	capture := source.NewFFmpegSource(cfg.Capture.Device, cfg.Audio.SampleRate, logger)
	chunks, err := capture.Start(ctx)
	if err != nil {
		logger.Error("Failed to start audio capture", slog.String("error", err.Error()))
		os.Exit(1)
	}

	go session.Consume(chunks)

	// Run the pipeline session loop
	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		session.Run(ctx)
	}()

	// Start HTTP server (if enabled)
	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("session_id", sessionID),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop audio capture (no more chunks enter the accumulator)
	if err := capture.Close(); err != nil {
		logger.Error("Error stopping audio capture", slog.String("error", err.Error()))
	}

	// Stop the session loop and wait for in-flight cycles within the grace window
	cancel()
	<-sessionDone

	// Release recognition client resources
	recognizer.Close()

	// Get final statistics
	info := session.Info()
	logger.Info("Final session statistics",
		slog.Uint64("bytes_received", info.Accumulator.TotalReceived),
		slog.Uint64("flushes", info.Accumulator.FlushCount),
		slog.Uint64("cycles_started", info.CyclesStarted),
		slog.Uint64("cycles_skipped", info.CyclesSkipped),
		slog.Int("segments", info.SegmentCount),
		slog.Uint64("dispatches", info.Dispatch.Dispatches),
		slog.Uint64("dispatch_failures", info.Dispatch.Failures),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
