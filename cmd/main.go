package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/fraudshield/voicedesk/adapters"
	"github.com/fraudshield/voicedesk/adapters/mongo"
	"github.com/fraudshield/voicedesk/adapters/stt"
	"github.com/fraudshield/voicedesk/adapters/tts"
	"github.com/fraudshield/voicedesk/domain/entities"
	"github.com/fraudshield/voicedesk/domain/repositories"
	"github.com/fraudshield/voicedesk/internal/api"
	"github.com/fraudshield/voicedesk/internal/auth"
	"github.com/fraudshield/voicedesk/internal/config"
	"github.com/fraudshield/voicedesk/internal/metrics"
	"github.com/fraudshield/voicedesk/internal/voice"
	"github.com/fraudshield/voicedesk/internal/websocket"
	"github.com/fraudshield/voicedesk/usecase"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	// Initialize adapters
	artifacts, transcriptRepo, closeStorage := newStorage(ctx, cfg, logger)
	defer closeStorage()

	recognizer, closeRecognizer := newRecognizer(ctx, cfg.STT, logger)
	defer closeRecognizer()

	textToSpeech := newTextToSpeech(ctx, cfg.TTS, logger)

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatal("Failed to create token service", zap.Error(err))
	}

	// Initialize usecase services
	transcripts := usecase.NewTranscriptService(transcriptRepo, logger)
	voiceService := usecase.NewVoiceService(voice.Config{
		Language:        cfg.Voice.Language,
		SampleRate:      cfg.Voice.SampleRate,
		LevelInterval:   cfg.Voice.LevelInterval,
		FinalizeTimeout: cfg.Voice.FinalizeTimeout,
		SpeechRate:      cfg.Voice.SpeechRate,
	}, recognizer, artifacts, transcripts, m, logger)

	cleanup := usecase.NewArtifactCleanupService(artifacts, cfg.Artifacts.TTL, cfg.Artifacts.CleanupInterval, m, logger)
	cleanup.Start()
	defer cleanup.Stop()

	// Initialize WebSocket hub with the voice service
	hub := websocket.NewHub(voiceService, textToSpeech, logger)
	go hub.Run()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize API routes
	api.InitRoutes(e, api.Dependencies{
		Hub:         hub,
		Tokens:      tokens,
		DevTokens:   cfg.Auth.DevTokens,
		Artifacts:   artifacts,
		Transcripts: transcripts,
		Metrics:     m,
		Gatherer:    registry,
	}, logger)

	if cfg.Auth.DevTokens {
		logger.Warn("Development token endpoint is enabled")
	}

	address := cfg.Server.ListenAddress()

	// Graceful shutdown
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("address", address),
		zap.String("stt", cfg.STT.Provider),
		zap.String("tts", cfg.TTS.Provider),
		zap.String("storage", cfg.Storage.Driver))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(level string) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if level == "debug" {
		zapConfig = zap.NewDevelopmentConfig()
	}
	atomic, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zapConfig.Level = atomic
	return zapConfig.Build()
}

func newStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.ArtifactRepository, repositories.TranscriptRepository, func()) {
	if cfg.Storage.Driver != "mongo" {
		logger.Info("Using in-memory storage")
		return adapters.NewMemoryArtifactRepository(cfg.Artifacts.URLPrefix),
			adapters.NewMemoryTranscriptRepository(),
			func() {}
	}

	client, err := mongo.NewClient(ctx, mongo.Config{
		URI:      cfg.Storage.MongoURI,
		Database: cfg.Storage.Database,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}

	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Close(ctx)
	}
	return mongo.NewArtifactRepository(client.Database, cfg.Artifacts.URLPrefix, cfg.Artifacts.TTL, logger),
		mongo.NewTranscriptRepository(client.Database, logger),
		closeFn
}

func newRecognizer(ctx context.Context, cfg config.STTConfig, logger *zap.Logger) (repositories.SpeechRecognizer, func()) {
	if cfg.Provider != "google" {
		logger.Info("Using mock speech recognizer")
		return stt.NewMockSpeechRecognizer(logger), func() {}
	}

	recognizer, err := stt.NewGoogleSpeechRecognizer(ctx, logger)
	if err != nil {
		logger.Fatal("Failed to create Google speech recognizer", zap.Error(err))
	}
	return recognizer, func() { recognizer.Close() }
}

func newTextToSpeech(ctx context.Context, cfg config.TTSConfig, logger *zap.Logger) repositories.TextToSpeech {
	switch cfg.Provider {
	case "elevenlabs":
		engine, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
		if err != nil {
			logger.Fatal("Failed to create ElevenLabs speech engine", zap.Error(err))
		}
		return engine
	case "gemini":
		geminiConfig := tts.NewGeminiConfigFromEnv()
		for _, profile := range entities.LanguageProfiles() {
			geminiConfig.Locales = append(geminiConfig.Locales, profile.Locale)
		}
		engine, err := tts.NewGeminiTTS(ctx, geminiConfig, logger)
		if err != nil {
			logger.Fatal("Failed to create Gemini speech engine", zap.Error(err))
		}
		return engine
	default:
		logger.Info("Using mock speech engine")
		return tts.NewMockToneTTS(logger)
	}
}
