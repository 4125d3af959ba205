package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fraudshield/voicedesk/domain/entities"
	"github.com/fraudshield/voicedesk/domain/repositories"
	"github.com/fraudshield/voicedesk/internal/audio"
	"github.com/fraudshield/voicedesk/internal/metrics"
	"github.com/fraudshield/voicedesk/internal/saga"
)

// Config tunes a session. Zero values are replaced by defaults.
type Config struct {
	Language        string
	SampleRate      int
	Encoding        string
	LevelInterval   time.Duration
	FinalizeTimeout time.Duration
	UpdateBuffer    int
	SpeechRate      float64
	SpeechPitch     float64
	SpeechVolume    float64
}

const (
	defaultSampleRate      = 16000
	defaultEncoding        = "LINEAR16"
	defaultLevelInterval   = 50 * time.Millisecond
	defaultFinalizeTimeout = 3 * time.Second
	defaultUpdateBuffer    = 256
	defaultSpeechRate      = 0.8
	releaseTimeout         = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Language == "" {
		c.Language = entities.DefaultLanguage
	}
	if c.SampleRate <= 0 {
		c.SampleRate = defaultSampleRate
	}
	if c.Encoding == "" {
		c.Encoding = defaultEncoding
	}
	if c.LevelInterval <= 0 {
		c.LevelInterval = defaultLevelInterval
	}
	if c.FinalizeTimeout <= 0 {
		c.FinalizeTimeout = defaultFinalizeTimeout
	}
	if c.UpdateBuffer <= 0 {
		c.UpdateBuffer = defaultUpdateBuffer
	}
	if c.SpeechRate <= 0 {
		c.SpeechRate = defaultSpeechRate
	}
	if c.SpeechPitch <= 0 {
		c.SpeechPitch = 1
	}
	if c.SpeechVolume <= 0 {
		c.SpeechVolume = 1
	}
	return c
}

// Dependencies are the platform capabilities a session drives.
// Microphone and Recognizer are required.
type Dependencies struct {
	Microphone  repositories.Microphone
	Recognizer  repositories.SpeechRecognizer
	Synthesizer repositories.SpeechSynthesizer
	Player      repositories.AudioPlayer
	Artifacts   repositories.ArtifactRepository
	NewRecorder repositories.RecorderFactory

	OnTranscriptionComplete CompletionFunc
}

// Session is one voice capture session. All methods are safe for concurrent use.
type Session struct {
	id      string
	cfg     Config
	deps    Dependencies
	metrics *metrics.Metrics
	logger  *zap.Logger
	runner  *saga.Runner

	// serializes Speak so cancel-then-start is atomic per call
	speakMu sync.Mutex

	mu                sync.Mutex
	state             State
	closed            bool
	starting          bool
	permissionGranted bool
	profile           entities.LanguageProfile
	transcript        Transcript
	lastErr           *Error
	capture           *capture
	artifact          *entities.AudioArtifact
	speaking          bool
	speakingText      string
	utteranceSeq      uint64
	playing           bool

	updates chan Update

	// updates that did not fit in the buffer, delivered in order by flushBacklog
	backlog  []Update
	flushing bool
	flushWG  sync.WaitGroup
	closing  chan struct{}
}

// NewSession creates a session in the idle state
func NewSession(cfg Config, deps Dependencies, m *metrics.Metrics, logger *zap.Logger) (*Session, error) {
	if deps.Microphone == nil {
		return nil, fmt.Errorf("microphone is required")
	}
	if deps.Recognizer == nil {
		return nil, fmt.Errorf("speech recognizer is required")
	}
	if deps.NewRecorder == nil {
		deps.NewRecorder = audio.NewWAVRecorder
	}
	if m == nil {
		m = metrics.NewNopMetrics()
	}

	cfg = cfg.withDefaults()
	profile, ok := entities.LookupLanguage(cfg.Language)
	if !ok {
		logger.Warn("Unknown language, using default",
			zap.String("language", cfg.Language),
			zap.String("default", entities.DefaultLanguage))
	}

	id := uuid.New().String()
	s := &Session{
		id:      id,
		cfg:     cfg,
		deps:    deps,
		metrics: m,
		logger:  logger.With(zap.String("sessionID", id)),
		state:   StateIdle,
		profile: profile,
		updates: make(chan Update, cfg.UpdateBuffer),
		closing: make(chan struct{}),
	}
	s.runner = saga.NewRunner(s.logger)
	m.SessionsOpened.Inc()
	m.ActiveSessions.Inc()
	return s, nil
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Updates returns the ordered stream of session changes. It is closed by Close.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// Snapshot returns the current session view
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:                s.id,
		State:             s.state,
		Prompt:            s.state.Prompt(s.profile),
		Language:          s.profile.Code,
		PermissionGranted: s.permissionGranted,
		Transcript:        s.transcript.Final(),
		Interim:           s.transcript.Interim(),
		Speaking:          s.speaking,
		Playing:           s.playing,
	}
	if c, ok := s.transcript.Confidence(); ok {
		snap.Confidence = &c
	}
	if s.lastErr != nil {
		snap.Error = &Notice{Kind: s.lastErr.Kind, Message: s.lastErr.Message}
	}
	if s.artifact != nil {
		snap.ArtifactURL = s.artifact.URL
	}
	return snap
}

// RequestPermission asks for microphone access. A denial leaves the session in
// permission_denied until a later request succeeds.
func (s *Session) RequestPermission(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	switch s.state {
	case StateRecording, StateProcessing:
		s.mu.Unlock()
		return nil
	case StateRequestingPermission:
		s.mu.Unlock()
		return ErrPermissionPending
	}
	s.setStateLocked(StateRequestingPermission)
	s.mu.Unlock()

	err := s.deps.Microphone.RequestPermission(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if err != nil {
		e := ClassifyMicrophoneError(err)
		s.logger.Warn("Microphone permission not granted",
			zap.String("kind", string(e.Kind)),
			zap.Error(err))
		s.permissionGranted = false
		s.failLocked(StatePermissionDenied, e)
		return e
	}

	s.permissionGranted = true
	s.lastErr = nil
	s.setStateLocked(StateReady)
	s.logger.Info("Microphone permission granted")
	return nil
}

// SelectLanguage switches the language used by the next capture and by
// synthesis. Unknown codes fall back to English.
func (s *Session) SelectLanguage(code string) entities.LanguageProfile {
	profile, ok := entities.LookupLanguage(code)
	if !ok {
		s.logger.Warn("Unknown language, using default", zap.String("language", code))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile.Code == profile.Code {
		return profile
	}
	s.profile = profile
	s.publishStateLocked()
	return profile
}

// Clear resets the transcript, confidence, recorded artifact and error state.
// After a denial the session goes back to idle, so the next capture asks for
// permission again.
func (s *Session) Clear(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	s.transcript.Reset()
	art := s.artifact
	s.artifact = nil
	wasPlaying := s.playing
	s.playing = false

	s.lastErr = nil
	if s.state == StateError || s.state == StatePermissionDenied {
		if s.permissionGranted {
			s.setStateLocked(StateReady)
		} else {
			s.setStateLocked(StateIdle)
		}
	}

	s.publishLocked(Update{Type: UpdateTranscript})
	if art != nil {
		s.publishLocked(Update{Type: UpdateArtifact})
	}
	if wasPlaying {
		s.publishLocked(Update{Type: UpdatePlayback})
	}
	s.mu.Unlock()

	if wasPlaying && s.deps.Player != nil {
		guard(s.logger, "player", s.deps.Player.Stop)
	}
	if art != nil {
		s.releaseArtifact(ctx, art)
	}
}

// Close tears down every resource the session holds without finalizing an
// in-flight capture. It is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	c := s.capture
	s.capture = nil
	art := s.artifact
	s.artifact = nil
	wasPlaying := s.playing
	s.playing = false
	s.speaking = false
	s.utteranceSeq++
	s.backlog = nil
	close(s.closing)
	s.mu.Unlock()

	s.flushWG.Wait()
	close(s.updates)

	if c != nil {
		c.stopAll()
		c.cancel()
		s.logger.Info("Discarded in-flight capture on close")
	}
	if s.deps.Synthesizer != nil {
		guard(s.logger, "synthesizer", func() error {
			s.deps.Synthesizer.Cancel()
			return nil
		})
	}
	if wasPlaying && s.deps.Player != nil {
		guard(s.logger, "player", s.deps.Player.Stop)
	}
	if art != nil {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		s.releaseArtifact(ctx, art)
		cancel()
	}

	s.metrics.ActiveSessions.Dec()
	s.logger.Info("Voice session closed")
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.logger.Debug("State transition",
		zap.String("from", string(s.state)),
		zap.String("to", string(state)))
	s.state = state
	s.publishStateLocked()
}

func (s *Session) publishStateLocked() {
	s.publishLocked(Update{
		Type:     UpdateState,
		State:    s.state,
		Prompt:   s.state.Prompt(s.profile),
		Language: s.profile.Code,
	})
}

// failLocked records e, moves to state and raises a notice unless e is suppressed
func (s *Session) failLocked(state State, e *Error) {
	s.lastErr = e
	s.setStateLocked(state)
	s.noticeLocked(e)
}

func (s *Session) noticeLocked(e *Error) {
	if e.Suppressed() {
		return
	}
	s.metrics.Notices.WithLabelValues(string(e.Kind)).Inc()
	s.publishLocked(Update{
		Type:   UpdateNotice,
		Notice: &Notice{Kind: e.Kind, Message: e.Message},
	})
}

func (s *Session) publishTranscriptLocked() {
	u := Update{
		Type:       UpdateTranscript,
		Transcript: s.transcript.Final(),
		Interim:    s.transcript.Interim(),
		Display:    s.transcript.Display(),
	}
	if c, ok := s.transcript.Confidence(); ok {
		u.Confidence = &c
	}
	s.publishLocked(u)
}

// publishLocked delivers u without blocking. Callers hold s.mu.
//
// Level updates are dropped when the consumer lags. Every other update is
// kept: once the buffer is full it joins the backlog, and consecutive
// transcript updates there collapse into the latest one.
func (s *Session) publishLocked(u Update) {
	if s.closed {
		return
	}
	if len(s.backlog) == 0 {
		select {
		case s.updates <- u:
			return
		default:
		}
	}

	if u.Type == UpdateLevel {
		s.metrics.UpdatesDropped.WithLabelValues(string(u.Type)).Inc()
		return
	}

	// backlog[0] may be in flight, so it is never replaced
	if n := len(s.backlog); n > 1 && u.Type == UpdateTranscript && s.backlog[n-1].Type == UpdateTranscript {
		s.backlog[n-1] = u
		s.metrics.UpdatesDropped.WithLabelValues(string(u.Type)).Inc()
	} else {
		s.backlog = append(s.backlog, u)
	}

	if !s.flushing {
		s.flushing = true
		s.flushWG.Add(1)
		go s.flushBacklog()
		s.logger.Warn("Update consumer is not keeping up, queueing updates",
			zap.String("type", string(u.Type)))
	}
}

// flushBacklog waits for room in the buffer and delivers the backlog in order
func (s *Session) flushBacklog() {
	defer s.flushWG.Done()
	for {
		s.mu.Lock()
		if s.closed || len(s.backlog) == 0 {
			s.flushing = false
			s.mu.Unlock()
			return
		}
		u := s.backlog[0]
		s.mu.Unlock()

		select {
		case s.updates <- u:
		case <-s.closing:
			return
		}

		s.mu.Lock()
		if !s.closed {
			s.backlog = s.backlog[1:]
		}
		s.mu.Unlock()
	}
}

func (s *Session) releaseArtifact(ctx context.Context, art *entities.AudioArtifact) {
	if s.deps.Artifacts == nil || art.URL == "" {
		return
	}
	if err := s.deps.Artifacts.Release(ctx, art.URL); err != nil {
		s.logger.Warn("Failed to release recorded audio",
			zap.String("artifactID", art.ID),
			zap.Error(err))
		return
	}
	s.metrics.ArtifactsReleased.Inc()
}

// guard runs a release function, logging failures and recovering panics
func guard(logger *zap.Logger, resource string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Release panicked",
				zap.String("resource", resource),
				zap.Any("panic", r))
		}
	}()
	if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("Failed to release resource",
			zap.String("resource", resource),
			zap.Error(err))
	}
}
