package stt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fraudshield/voicedesk/domain/entities"
	"github.com/fraudshield/voicedesk/domain/repositories"
)

// bytesPerWord is how much PCM16 audio the mock consumes per recognized word
// (a quarter second at 16 kHz)
const bytesPerWord = 8000

// MockSpeechRecognizer recognizes the language's sample sentence, one word per
// quarter second of audio, for development without cloud credentials
type MockSpeechRecognizer struct {
	logger *zap.Logger
	// phrases overrides the sentence recognized per locale
	phrases map[string]string
}

var _ repositories.SpeechRecognizer = (*MockSpeechRecognizer)(nil)

// NewMockSpeechRecognizer creates a new mock speech recognizer
func NewMockSpeechRecognizer(logger *zap.Logger) *MockSpeechRecognizer {
	return &MockSpeechRecognizer{
		logger:  logger,
		phrases: make(map[string]string),
	}
}

// WithPhrase makes the mock recognize phrase for locale
func (m *MockSpeechRecognizer) WithPhrase(locale, phrase string) *MockSpeechRecognizer {
	m.phrases[locale] = phrase
	return m
}

// Start creates a new mock recognition stream
func (m *MockSpeechRecognizer) Start(ctx context.Context, config repositories.RecognitionConfig) (repositories.RecognitionStream, error) {
	m.logger.Info("Initializing mock streaming recognition",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))

	phrase, ok := m.phrases[config.Language]
	if !ok {
		code, _, _ := strings.Cut(config.Language, "-")
		profile, known := entities.LookupLanguage(code)
		if !known {
			return nil, &repositories.RecognitionError{
				Code:    repositories.RecognitionErrorLanguageUnsupported,
				Message: config.Language,
			}
		}
		phrase = profile.Sample
	}

	return &mockRecognitionStream{
		logger:  m.logger,
		words:   strings.Fields(phrase),
		interim: config.InterimResults,
		results: make(chan repositories.RecognitionEvent, 64),
	}, nil
}

type mockRecognitionStream struct {
	logger  *zap.Logger
	words   []string
	interim bool

	mu       sync.Mutex
	received int
	heard    int
	stopped  bool
	results  chan repositories.RecognitionEvent
}

// Write advances recognition by one word for every bytesPerWord of audio
func (m *mockRecognitionStream) Write(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return fmt.Errorf("recognition stream stopped")
	}

	m.received += len(frame)
	heard := m.received / bytesPerWord
	if heard > len(m.words) {
		heard = len(m.words)
	}
	if heard == m.heard {
		return nil
	}
	m.heard = heard

	if m.interim {
		m.deliverLocked(repositories.RecognitionEvent{
			Results: []repositories.RecognitionSegment{{
				Text:       strings.Join(m.words[:heard], " "),
				Confidence: 0.5,
			}},
		})
	}
	return nil
}

// deliverLocked never blocks. Events are cumulative, so when the reader falls
// behind the oldest queued one is discarded to make room.
func (m *mockRecognitionStream) deliverLocked(ev repositories.RecognitionEvent) {
	for {
		select {
		case m.results <- ev:
			return
		default:
		}
		select {
		case <-m.results:
		default:
		}
	}
}

func (m *mockRecognitionStream) Results() <-chan repositories.RecognitionEvent {
	return m.results
}

// Stop finalizes whatever was heard and closes the results channel
func (m *mockRecognitionStream) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil
	}
	m.stopped = true

	if m.heard > 0 {
		text := strings.Join(m.words[:m.heard], " ")
		m.logger.Info("Ending mock recognition stream", zap.String("result", text))
		m.deliverLocked(repositories.RecognitionEvent{
			Results: []repositories.RecognitionSegment{{
				Text:       text,
				Confidence: 0.9,
				IsFinal:    true,
			}},
		})
	}
	close(m.results)
	return nil
}
