package tts

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/fraudshield/voicedesk/domain/entities"
	"github.com/fraudshield/voicedesk/domain/repositories"
)

const (
	toneSampleRate = 16000
	toneFrequency  = 440.0
	// seconds of tone per word at rate 1
	toneWordSeconds = 0.3
)

// MockToneTTS renders every utterance as a sine tone whose length follows the
// word count, for development without a speech API
type MockToneTTS struct {
	logger *zap.Logger
}

var _ repositories.TextToSpeech = (*MockToneTTS)(nil)

// NewMockToneTTS creates a new mock speech engine
func NewMockToneTTS(logger *zap.Logger) *MockToneTTS {
	return &MockToneTTS{logger: logger}
}

func (m *MockToneTTS) ConvertTextToSpeech(ctx context.Context, text string, settings repositories.VoiceSettings) (<-chan []byte, error) {
	words := len(strings.Fields(text))
	if words == 0 {
		return nil, fmt.Errorf("text cannot be empty")
	}

	rate := settings.Rate
	if rate <= 0 {
		rate = 1
	}
	volume := settings.Volume
	if volume <= 0 || volume > 1 {
		volume = 1
	}
	samples := int(math.Round(float64(words) * toneWordSeconds / rate * toneSampleRate))

	m.logger.Debug("Rendering mock speech",
		zap.Int("words", words),
		zap.Int("samples", samples),
		zap.String("locale", settings.Locale))

	audioChan := make(chan []byte, 4)
	go func() {
		defer close(audioChan)
		const chunkSamples = toneSampleRate / 10
		for start := 0; start < samples; start += chunkSamples {
			n := chunkSamples
			if start+n > samples {
				n = samples - start
			}
			chunk := make([]byte, n*2)
			for i := 0; i < n; i++ {
				t := float64(start+i) / toneSampleRate
				v := int16(volume * 0.3 * math.MaxInt16 * math.Sin(2*math.Pi*toneFrequency*t))
				binary.LittleEndian.PutUint16(chunk[i*2:], uint16(v))
			}
			select {
			case audioChan <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return audioChan, nil
}

// Voices offers one voice per supported language
func (m *MockToneTTS) Voices(ctx context.Context) ([]repositories.Voice, error) {
	profiles := entities.LanguageProfiles()
	voices := make([]repositories.Voice, 0, len(profiles))
	for _, p := range profiles {
		voices = append(voices, repositories.Voice{
			ID:     "tone-" + p.Code,
			Name:   "Tone (" + p.DisplayName + ")",
			Locale: p.Locale,
		})
	}
	return voices, nil
}

func (m *MockToneTTS) Format() repositories.AudioFormat {
	return repositories.AudioFormat{SampleRate: toneSampleRate, Channels: 1, Encoding: "pcm_s16le"}
}
