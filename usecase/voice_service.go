package usecase

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fraudshield/voicedesk/domain/repositories"
	"github.com/fraudshield/voicedesk/internal/metrics"
	"github.com/fraudshield/voicedesk/internal/voice"
)

// Devices are the user-side capabilities of one connection
type Devices struct {
	Microphone  repositories.Microphone
	Synthesizer repositories.SpeechSynthesizer
	Player      repositories.AudioPlayer
}

// VoiceService opens voice sessions wired to the server-side recognizer,
// artifact storage and transcript records
type VoiceService struct {
	config      voice.Config
	recognizer  repositories.SpeechRecognizer
	artifacts   repositories.ArtifactRepository
	transcripts *TranscriptService
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewVoiceService creates a new voice service
func NewVoiceService(
	config voice.Config,
	recognizer repositories.SpeechRecognizer,
	artifacts repositories.ArtifactRepository,
	transcripts *TranscriptService,
	m *metrics.Metrics,
	logger *zap.Logger,
) *VoiceService {
	return &VoiceService{
		config:      config,
		recognizer:  recognizer,
		artifacts:   artifacts,
		transcripts: transcripts,
		metrics:     m,
		logger:      logger,
	}
}

// OpenSession creates a session for userID driving the given devices.
// Completed transcripts are recorded for that user.
func (s *VoiceService) OpenSession(userID string, devices Devices) (*voice.Session, error) {
	deps := voice.Dependencies{
		Microphone:  devices.Microphone,
		Recognizer:  s.recognizer,
		Synthesizer: devices.Synthesizer,
		Player:      devices.Player,
		Artifacts:   s.artifacts,
	}
	if s.transcripts != nil {
		deps.OnTranscriptionComplete = s.transcripts.CompletionHandler(userID)
	}

	session, err := voice.NewSession(s.config, deps, s.metrics, s.logger.With(zap.String("userID", userID)))
	if err != nil {
		return nil, fmt.Errorf("failed to open voice session: %w", err)
	}
	return session, nil
}
