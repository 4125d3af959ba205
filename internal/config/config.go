package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fraudshield/voicedesk/domain/entities"
)

// Config represents the complete service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Voice     VoiceConfig     `yaml:"voice"`
	STT       STTConfig       `yaml:"stt"`
	TTS       TTSConfig       `yaml:"tts"`
	Storage   StorageConfig   `yaml:"storage"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Address         string        `yaml:"address"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig contains token signing configuration
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	DevTokens bool          `yaml:"dev_tokens"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// VoiceConfig contains the per-session defaults
type VoiceConfig struct {
	Language        string        `yaml:"language"`
	SampleRate      int           `yaml:"sample_rate"`
	LevelInterval   time.Duration `yaml:"level_interval"`
	FinalizeTimeout time.Duration `yaml:"finalize_timeout"`
	SpeechRate      float64       `yaml:"speech_rate"`
}

// STTConfig selects the speech recognizer
type STTConfig struct {
	Provider string `yaml:"provider"`
}

// TTSConfig selects the speech synthesis engine
type TTSConfig struct {
	Provider string `yaml:"provider"`
}

// StorageConfig selects where transcripts and recordings are kept
type StorageConfig struct {
	Driver   string `yaml:"driver"`
	MongoURI string `yaml:"mongo_uri"`
	Database string `yaml:"database"`
}

// ArtifactsConfig controls recorded audio retention
type ArtifactsConfig struct {
	URLPrefix       string        `yaml:"url_prefix"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// Default returns a configuration that runs locally with mock providers
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret: "change-me-in-production",
			TokenTTL:  24 * time.Hour,
			DevTokens: true,
		},
		Logging: LoggingConfig{Level: "info"},
		Voice: VoiceConfig{
			Language:        entities.DefaultLanguage,
			SampleRate:      16000,
			LevelInterval:   50 * time.Millisecond,
			FinalizeTimeout: 3 * time.Second,
			SpeechRate:      0.8,
		},
		STT:     STTConfig{Provider: "mock"},
		TTS:     TTSConfig{Provider: "mock"},
		Storage: StorageConfig{Driver: "memory", Database: "voicedesk"},
		Artifacts: ArtifactsConfig{
			URLPrefix:       "/api/v1/artifacts",
			TTL:             time.Hour,
			CleanupInterval: 5 * time.Minute,
		},
	}
}

// Load reads .env, then the YAML file at path if one is given, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	config := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, fmt.Errorf("environment override: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) applyEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		c.Server.Port = p
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if dev := os.Getenv("AUTH_DEV_TOKENS"); dev != "" {
		b, err := strconv.ParseBool(dev)
		if err != nil {
			return fmt.Errorf("invalid AUTH_DEV_TOKENS %q: %w", dev, err)
		}
		c.Auth.DevTokens = b
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if provider := os.Getenv("STT_PROVIDER"); provider != "" {
		c.STT.Provider = provider
	}
	if provider := os.Getenv("TTS_PROVIDER"); provider != "" {
		c.TTS.Provider = provider
	}
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		c.Storage.Driver = "mongo"
		c.Storage.MongoURI = uri
	}
	if db := os.Getenv("MONGODB_DATABASE"); db != "" {
		c.Storage.Database = db
	}
	return nil
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Voice.Validate(); err != nil {
		return fmt.Errorf("voice config: %w", err)
	}

	if err := c.STT.Validate(); err != nil {
		return fmt.Errorf("stt config: %w", err)
	}

	if err := c.TTS.Validate(); err != nil {
		return fmt.Errorf("tts config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := c.Artifacts.Validate(); err != nil {
		return fmt.Errorf("artifacts config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %s", s.ShutdownTimeout)
	}
	return nil
}

// ListenAddress returns host:port for the HTTP listener
func (s *ServerConfig) ListenAddress() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

// Validate validates auth configuration
func (a *AuthConfig) Validate() error {
	if len(a.JWTSecret) < 16 {
		return fmt.Errorf("jwt_secret must be at least 16 characters")
	}
	if a.TokenTTL < time.Minute {
		return fmt.Errorf("token_ttl must be at least 1m, got %s", a.TokenTTL)
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
	return nil
}

// Validate validates voice session defaults
func (v *VoiceConfig) Validate() error {
	if _, ok := entities.LookupLanguage(v.Language); !ok {
		return fmt.Errorf("unsupported language '%s'", v.Language)
	}
	switch v.SampleRate {
	case 8000, 16000, 24000, 48000:
	default:
		return fmt.Errorf("sample_rate must be 8000, 16000, 24000 or 48000 Hz, got %d", v.SampleRate)
	}
	if v.LevelInterval < 10*time.Millisecond {
		return fmt.Errorf("level_interval must be at least 10ms, got %s", v.LevelInterval)
	}
	if v.FinalizeTimeout <= 0 {
		return fmt.Errorf("finalize_timeout must be positive, got %s", v.FinalizeTimeout)
	}
	if v.SpeechRate < 0.1 || v.SpeechRate > 10 {
		return fmt.Errorf("speech_rate must be between 0.1 and 10, got %f", v.SpeechRate)
	}
	return nil
}

// Validate validates the recognizer provider
func (s *STTConfig) Validate() error {
	switch s.Provider {
	case "google", "mock":
		return nil
	}
	return fmt.Errorf("provider must be 'google' or 'mock', got '%s'", s.Provider)
}

// Validate validates the synthesis provider
func (t *TTSConfig) Validate() error {
	switch t.Provider {
	case "elevenlabs", "gemini", "mock":
		return nil
	}
	return fmt.Errorf("provider must be 'elevenlabs', 'gemini' or 'mock', got '%s'", t.Provider)
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	switch s.Driver {
	case "memory":
		return nil
	case "mongo":
		if s.MongoURI == "" {
			return fmt.Errorf("mongo_uri cannot be empty when driver is mongo")
		}
		if s.Database == "" {
			return fmt.Errorf("database cannot be empty when driver is mongo")
		}
		return nil
	}
	return fmt.Errorf("driver must be 'memory' or 'mongo', got '%s'", s.Driver)
}

// Validate validates artifact retention
func (a *ArtifactsConfig) Validate() error {
	if a.URLPrefix == "" {
		return fmt.Errorf("url_prefix cannot be empty")
	}
	if a.TTL < time.Minute {
		return fmt.Errorf("ttl must be at least 1m, got %s", a.TTL)
	}
	if a.CleanupInterval <= 0 || a.CleanupInterval > a.TTL {
		return fmt.Errorf("cleanup_interval must be positive and no longer than ttl, got %s", a.CleanupInterval)
	}
	return nil
}
