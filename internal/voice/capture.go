package voice

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fraudshield/voicedesk/domain/entities"
	"github.com/fraudshield/voicedesk/domain/repositories"
	"github.com/fraudshield/voicedesk/internal/audio"
	"github.com/fraudshield/voicedesk/internal/saga"
)

const (
	stepStartRecognition saga.StepID = "start-recognition"
	stepOpenAudio        saga.StepID = "open-audio"
	stepStartRecorder    saga.StepID = "start-recorder"
)

// capture owns the resources of one recording. Every resource is released
// at most once no matter how many paths tear it down.
type capture struct {
	logger    *zap.Logger
	language  string
	startedAt time.Time

	recognition repositories.RecognitionStream
	stream      repositories.AudioStream
	recorder    repositories.AudioRecorder
	analyser    *audio.Analyser

	cancel          context.CancelFunc
	levelStop       chan struct{}
	recognitionDone chan struct{}

	recognitionOnce sync.Once
	recorderOnce    sync.Once
	levelOnce       sync.Once
	streamOnce      sync.Once

	recorded    []byte
	contentType string
}

func (c *capture) stopRecognition() {
	c.recognitionOnce.Do(func() {
		if c.recognition != nil {
			guard(c.logger, "recognizer", c.recognition.Stop)
		}
	})
}

func (c *capture) stopRecorder() {
	c.recorderOnce.Do(func() {
		if c.recorder == nil {
			return
		}
		guard(c.logger, "recorder", func() error {
			data, contentType, err := c.recorder.Stop()
			c.recorded, c.contentType = data, contentType
			return err
		})
	})
}

func (c *capture) stopLevel() {
	c.levelOnce.Do(func() {
		if c.levelStop != nil {
			close(c.levelStop)
		}
	})
}

func (c *capture) closeStream() {
	c.streamOnce.Do(func() {
		if c.stream != nil {
			guard(c.logger, "audio stream", c.stream.Close)
		}
	})
}

// stopAll releases recognizer, recorder, level loop and audio stream, in that order
func (c *capture) stopAll() {
	c.stopRecognition()
	c.stopRecorder()
	c.stopLevel()
	c.closeStream()
}

// StartCapture begins recording and recognition in the given language.
// From idle it requests permission first; from error it retries.
func (s *Session) StartCapture(ctx context.Context, language string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.starting {
		s.mu.Unlock()
		return ErrAlreadyRecording
	}
	switch s.state {
	case StateRecording, StateProcessing:
		s.mu.Unlock()
		return ErrAlreadyRecording
	case StateRequestingPermission:
		s.mu.Unlock()
		return ErrPermissionPending
	case StatePermissionDenied:
		e := s.lastErr
		if e == nil {
			e = ClassifyMicrophoneError(&repositories.MicrophoneError{Name: "NotAllowedError"})
		}
		s.noticeLocked(e)
		s.mu.Unlock()
		return e
	}
	needsPermission := s.state == StateIdle || !s.permissionGranted
	s.mu.Unlock()

	if needsPermission {
		if err := s.RequestPermission(ctx); err != nil {
			return err
		}
	}

	if language != "" {
		s.SelectLanguage(language)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.starting || !s.state.CanStartCapture() {
		s.mu.Unlock()
		return ErrAlreadyRecording
	}
	s.starting = true
	profile := s.profile
	s.transcript.Reset()
	s.lastErr = nil
	s.publishTranscriptLocked()
	s.mu.Unlock()

	c, err := s.acquire(ctx, profile)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starting = false

	if err != nil {
		e := asVoiceError(err, KindRecordingStart, "Could not start recording. Please try again.")
		s.metrics.CaptureFailures.Inc()
		s.logger.Error("Failed to start capture",
			zap.String("language", profile.Code),
			zap.String("kind", string(e.Kind)),
			zap.Error(err))
		if e.Kind == KindPermissionDenied {
			s.permissionGranted = false
			s.failLocked(StatePermissionDenied, e)
		} else {
			s.failLocked(StateError, e)
		}
		return e
	}

	if s.closed {
		c.stopAll()
		c.cancel()
		return ErrSessionClosed
	}

	s.capture = c
	s.setStateLocked(StateRecording)
	s.metrics.CapturesStarted.Inc()
	s.logger.Info("Capture started",
		zap.String("language", profile.Code),
		zap.String("locale", profile.Locale))
	return nil
}

// acquire runs the start sequence: recognizer, audio graph with level loop,
// then recorder. A failure releases whatever was already acquired.
func (s *Session) acquire(ctx context.Context, profile entities.LanguageProfile) (*capture, error) {
	format := repositories.AudioFormat{
		SampleRate: s.cfg.SampleRate,
		Channels:   1,
		Encoding:   s.cfg.Encoding,
	}
	pumpCtx, cancel := context.WithCancel(context.Background())
	c := &capture{
		logger:          s.logger,
		language:        profile.Code,
		analyser:        audio.NewAnalyser(),
		cancel:          cancel,
		levelStop:       make(chan struct{}),
		recognitionDone: make(chan struct{}),
	}

	steps := []saga.Step{
		{
			ID: stepStartRecognition,
			Execute: func(ctx context.Context) error {
				stream, err := s.deps.Recognizer.Start(ctx, repositories.RecognitionConfig{
					SampleRate:     format.SampleRate,
					Encoding:       format.Encoding,
					Language:       profile.Locale,
					InterimResults: true,
				})
				if err != nil {
					return err
				}
				c.recognition = stream
				return nil
			},
			Compensate: func(ctx context.Context) error {
				c.stopRecognition()
				return nil
			},
		},
		{
			ID: stepOpenAudio,
			Execute: func(ctx context.Context) error {
				stream, err := s.deps.Microphone.Open(ctx, format)
				if err != nil {
					return err
				}
				c.stream = stream
				go s.runLevelLoop(pumpCtx, c)
				return nil
			},
			Compensate: func(ctx context.Context) error {
				c.stopLevel()
				c.closeStream()
				return nil
			},
		},
		{
			ID: stepStartRecorder,
			Execute: func(ctx context.Context) error {
				c.recorder = s.deps.NewRecorder(format)
				return nil
			},
			Compensate: func(ctx context.Context) error {
				c.stopRecorder()
				return nil
			},
		},
	}

	if _, err := s.runner.Run(ctx, "start-capture", steps); err != nil {
		cancel()
		return nil, err
	}

	c.startedAt = time.Now()
	go s.pumpAudio(pumpCtx, c)
	go s.pumpRecognition(pumpCtx, c)
	return c, nil
}

// StopCapture stops recording, waits for the recognizer to deliver its last
// results and finalizes the transcript. The completion callback runs once if
// any speech was recognized.
func (s *Session) StopCapture(ctx context.Context) (*TranscriptionResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	c := s.capture
	if s.state != StateRecording || c == nil {
		s.mu.Unlock()
		return nil, ErrNotRecording
	}
	s.setStateLocked(StateProcessing)
	s.mu.Unlock()

	c.stopAll()

	timer := time.NewTimer(s.cfg.FinalizeTimeout)
	select {
	case <-c.recognitionDone:
	case <-timer.C:
		s.logger.Warn("Recognizer did not finish in time, finalizing with partial results",
			zap.Duration("timeout", s.cfg.FinalizeTimeout))
	case <-ctx.Done():
		s.logger.Warn("Finalization interrupted", zap.Error(ctx.Err()))
	}
	timer.Stop()
	c.cancel()

	artifactURL := s.storeRecording(ctx, c)

	s.mu.Lock()
	if s.capture != c {
		// closed or failed while finalizing
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.capture = nil
	s.metrics.CaptureDuration.Observe(time.Since(c.startedAt).Seconds())

	text := StripInterimMarkers(s.transcript.Final())
	s.transcript.ClearInterim()
	confidence, _ := s.transcript.Confidence()
	s.setStateLocked(StateReady)
	s.publishTranscriptLocked()

	if text == "" {
		e := &Error{Kind: KindNoSpeechDetected, Message: messageNoSpeech}
		s.lastErr = e
		s.noticeLocked(e)
		s.metrics.CapturesEmpty.Inc()
		s.mu.Unlock()
		s.logger.Info("Capture ended without speech")
		return nil, e
	}

	result := TranscriptionResult{
		SessionID:   s.id,
		Language:    c.language,
		Text:        text,
		Confidence:  confidence,
		ArtifactURL: artifactURL,
	}
	s.publishLocked(Update{
		Type:        UpdateCompleted,
		Transcript:  text,
		Confidence:  &confidence,
		ArtifactURL: artifactURL,
	})
	s.metrics.CapturesCompleted.Inc()
	s.mu.Unlock()

	s.logger.Info("Capture completed",
		zap.Int("characters", len(text)),
		zap.Int("confidence", confidence))

	if s.deps.OnTranscriptionComplete != nil {
		s.deps.OnTranscriptionComplete(ctx, result)
	}
	return &result, nil
}

// storeRecording turns the recorder output into the current artifact and
// releases the one it supersedes
func (s *Session) storeRecording(ctx context.Context, c *capture) string {
	if len(c.recorded) == 0 || s.deps.Artifacts == nil {
		return ""
	}

	art := &entities.AudioArtifact{
		SessionID:   s.id,
		ContentType: c.contentType,
		Data:        c.recorded,
		CreatedAt:   time.Now(),
	}
	if err := s.deps.Artifacts.Put(ctx, art); err != nil {
		s.logger.Error("Failed to store recorded audio", zap.Error(err))
		return ""
	}
	s.metrics.ArtifactsStored.Inc()
	s.metrics.ArtifactSize.Observe(float64(art.Size()))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.releaseArtifact(ctx, art)
		return ""
	}
	prev := s.artifact
	s.artifact = art
	s.publishLocked(Update{
		Type:        UpdateArtifact,
		ArtifactURL: art.URL,
		FileName:    art.FileName(),
	})
	s.mu.Unlock()

	if prev != nil {
		s.releaseArtifact(ctx, prev)
	}
	return art.URL
}

func (s *Session) pumpAudio(ctx context.Context, c *capture) {
	frames := c.stream.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			c.analyser.Observe(frame)
			if err := c.recognition.Write(frame); err != nil {
				s.logger.Debug("Recognizer rejected frame", zap.Error(err))
			}
			if err := c.recorder.Write(frame); err != nil && !errors.Is(err, audio.ErrRecorderStopped) {
				s.logger.Debug("Recorder rejected frame", zap.Error(err))
			}
		}
	}
}

// pumpRecognition is the only writer of recognizer results into the transcript
func (s *Session) pumpRecognition(ctx context.Context, c *capture) {
	defer close(c.recognitionDone)
	results := c.recognition.Results()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-results:
			if !ok {
				return
			}
			if fatal := s.handleRecognition(c, event); fatal {
				return
			}
		}
	}
}

// handleRecognition applies one recognizer event and reports whether it ended the capture
func (s *Session) handleRecognition(c *capture, event repositories.RecognitionEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture != c {
		return false
	}
	s.metrics.RecognitionEvents.Inc()

	if event.Err != nil {
		e := ClassifyRecognitionError(event.Err)
		if e.Suppressed() {
			s.logger.Debug("Recognition aborted")
			return false
		}
		if s.state != StateRecording {
			s.logger.Warn("Recognizer error while finalizing", zap.Error(event.Err))
			return false
		}

		s.logger.Warn("Recognition failed",
			zap.String("code", string(event.Err.Code)),
			zap.String("kind", string(e.Kind)),
			zap.Error(event.Err))
		s.capture = nil
		s.metrics.CaptureFailures.Inc()
		s.transcript.ClearInterim()
		if e.Kind == KindPermissionDenied {
			s.permissionGranted = false
			s.failLocked(StatePermissionDenied, e)
		} else {
			s.failLocked(StateError, e)
		}
		go func() {
			c.stopAll()
			c.cancel()
		}()
		return true
	}

	if s.transcript.Apply(event) {
		s.publishTranscriptLocked()
	}
	return false
}

func (s *Session) runLevelLoop(ctx context.Context, c *capture) {
	ticker := time.NewTicker(s.cfg.LevelInterval)
	defer ticker.Stop()

	last := -1
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.levelStop:
			return
		case <-ticker.C:
			level := c.analyser.Level()
			if level == last {
				continue
			}
			last = level

			s.mu.Lock()
			if s.capture == c && s.state == StateRecording {
				s.publishLocked(Update{Type: UpdateLevel, Level: level})
			}
			s.mu.Unlock()
		}
	}
}
