package voice

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fraudshield/voicedesk/domain/entities"
	"github.com/fraudshield/voicedesk/domain/repositories"
)

// PlaySample speaks the sample sentence of the given language
func (s *Session) PlaySample(ctx context.Context, language string) error {
	profile, _ := entities.LookupLanguage(language)
	return s.Speak(ctx, profile.Sample, profile.Code)
}

// Speak reads text aloud in the given language, or the session language when
// empty. Asking for the text already being spoken stops it instead; any other
// text cancels the current utterance first.
func (s *Session) Speak(ctx context.Context, text, language string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrNothingToSpeak
	}
	if s.deps.Synthesizer == nil {
		e := &Error{Kind: KindSynthesisError, Message: "Text to speech is not available."}
		s.mu.Lock()
		s.noticeLocked(e)
		s.mu.Unlock()
		return e
	}

	s.speakMu.Lock()
	defer s.speakMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	profile := s.profile
	if language != "" {
		profile, _ = entities.LookupLanguage(language)
	}
	wasSpeaking := s.speaking
	toggleOff := wasSpeaking && s.speakingText == text
	if wasSpeaking {
		s.utteranceSeq++
		s.speaking = false
		s.speakingText = ""
	}
	s.mu.Unlock()

	if wasSpeaking {
		s.deps.Synthesizer.Cancel()
	}
	if toggleOff {
		s.mu.Lock()
		s.publishLocked(Update{Type: UpdateSpeaking, Active: false})
		s.mu.Unlock()
		s.logger.Debug("Speech toggled off")
		return nil
	}

	voices, err := s.deps.Synthesizer.Voices(ctx)
	if err != nil {
		s.logger.Warn("Failed to list voices, using synthesizer default", zap.Error(err))
	}
	voice, found := SelectVoice(voices, profile.Locale)
	if !found {
		voice = repositories.Voice{Locale: profile.Locale}
	}

	utterance := repositories.Utterance{
		ID:    uuid.New().String(),
		Text:  text,
		Voice: voice,
		VoiceSettings: repositories.VoiceSettings{
			VoiceID: voice.ID,
			Locale:  profile.Locale,
			Rate:    s.cfg.SpeechRate,
			Pitch:   s.cfg.SpeechPitch,
			Volume:  s.cfg.SpeechVolume,
		},
	}

	done, err := s.deps.Synthesizer.Speak(ctx, utterance)
	if err != nil {
		e := &Error{Kind: KindSynthesisError, Message: "Could not play speech. Please try again.", Cause: err}
		s.metrics.SynthesisFailures.Inc()
		s.logger.Error("Failed to start speech",
			zap.String("utteranceID", utterance.ID),
			zap.Error(err))
		s.mu.Lock()
		if wasSpeaking {
			// the previous utterance was cancelled above
			s.publishLocked(Update{Type: UpdateSpeaking, Active: false})
		}
		s.noticeLocked(e)
		s.mu.Unlock()
		return e
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.deps.Synthesizer.Cancel()
		return ErrSessionClosed
	}
	s.utteranceSeq++
	seq := s.utteranceSeq
	s.speaking = true
	s.speakingText = text
	s.publishLocked(Update{Type: UpdateSpeaking, Active: true, Language: profile.Code})
	s.mu.Unlock()

	s.metrics.Utterances.Inc()
	s.logger.Debug("Speaking",
		zap.String("utteranceID", utterance.ID),
		zap.String("voiceID", voice.ID),
		zap.String("locale", profile.Locale))

	go s.awaitUtterance(seq, utterance.ID, done)
	return nil
}

// awaitUtterance clears the speaking flag when the utterance it started ends.
// Utterances superseded by a newer Speak or Close are ignored.
func (s *Session) awaitUtterance(seq uint64, utteranceID string, done <-chan error) {
	err := <-done

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.utteranceSeq || s.closed {
		return
	}
	s.speaking = false
	s.speakingText = ""
	s.publishLocked(Update{Type: UpdateSpeaking, Active: false})

	if err != nil && !errors.Is(err, context.Canceled) {
		s.metrics.SynthesisFailures.Inc()
		s.logger.Warn("Speech failed",
			zap.String("utteranceID", utteranceID),
			zap.Error(err))
		s.noticeLocked(&Error{Kind: KindSynthesisError, Message: "Speech playback failed.", Cause: err})
	}
}
