package voice

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// PlayRecordedAudio plays the current artifact, or stops it if already playing
func (s *Session) PlayRecordedAudio(ctx context.Context) error {
	if s.deps.Player == nil {
		return ErrPlaybackUnavailable
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	art := s.artifact
	if art == nil {
		s.mu.Unlock()
		return ErrNoRecording
	}
	if s.playing {
		s.playing = false
		s.publishLocked(Update{Type: UpdatePlayback, Active: false})
		s.mu.Unlock()
		guard(s.logger, "player", s.deps.Player.Stop)
		return nil
	}
	s.mu.Unlock()

	if err := s.deps.Player.Play(ctx, art.URL); err != nil {
		s.logger.Warn("Failed to play recorded audio",
			zap.String("artifactID", art.ID),
			zap.Error(err))
		return fmt.Errorf("failed to play recorded audio: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = true
	s.publishLocked(Update{Type: UpdatePlayback, Active: true, ArtifactURL: art.URL})
	return nil
}

// PlaybackEnded marks playback of the recorded audio as finished
func (s *Session) PlaybackEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return
	}
	s.playing = false
	s.publishLocked(Update{Type: UpdatePlayback, Active: false})
}

// DownloadRecordedAudio returns the current artifact with its download file name
func (s *Session) DownloadRecordedAudio(ctx context.Context) (*Download, error) {
	s.mu.Lock()
	art := s.artifact
	s.mu.Unlock()
	if art == nil {
		return nil, ErrNoRecording
	}

	data := art.Data
	if len(data) == 0 && s.deps.Artifacts != nil {
		stored, err := s.deps.Artifacts.Get(ctx, art.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load recorded audio: %w", err)
		}
		data = stored.Data
	}

	return &Download{
		FileName:    art.FileName(),
		ContentType: art.ContentType,
		URL:         art.URL,
		Data:        data,
	}, nil
}
