package tts

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/fraudshield/voicedesk/domain/repositories"
)

const (
	defaultGeminiModel = "gemini-2.5-flash-preview-tts"
	defaultGeminiVoice = "Kore"
	// Gemini speech output is 24 kHz mono PCM16
	geminiSampleRate = 24000
	geminiChunkSize  = 4800
)

// geminiVoices are the prebuilt voices offered to every supported locale
var geminiVoices = []string{"Kore", "Puck", "Charon", "Aoede", "Leda", "Orus"}

// GeminiConfig holds configuration for the Gemini speech adapter
type GeminiConfig struct {
	APIKey string
	Model  string
	Voice  string
	// Locales the voices are advertised for
	Locales []string
}

// NewGeminiConfigFromEnv reads GEMINI_API_KEY, GEMINI_TTS_MODEL and GEMINI_TTS_VOICE
func NewGeminiConfigFromEnv() GeminiConfig {
	return GeminiConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Model:  os.Getenv("GEMINI_TTS_MODEL"),
		Voice:  os.Getenv("GEMINI_TTS_VOICE"),
	}
}

// GeminiTTS implements TextToSpeech with Gemini's native audio output
type GeminiTTS struct {
	client  *genai.Client
	model   string
	voice   string
	locales []string
	logger  *zap.Logger
}

var _ repositories.TextToSpeech = (*GeminiTTS)(nil)

// NewGeminiTTS creates a new Gemini speech instance
func NewGeminiTTS(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiTTS, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultGeminiModel
		logger.Info("Using default Gemini speech model", zap.String("model", model))
	}
	voice := config.Voice
	if voice == "" {
		voice = defaultGeminiVoice
		logger.Info("Using default Gemini voice", zap.String("voice", voice))
	}

	return &GeminiTTS{
		client:  client,
		model:   model,
		voice:   voice,
		locales: config.Locales,
		logger:  logger,
	}, nil
}

// ConvertTextToSpeech generates the whole utterance and streams it back in chunks
func (g *GeminiTTS) ConvertTextToSpeech(ctx context.Context, text string, settings repositories.VoiceSettings) (<-chan []byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	voice := settings.VoiceID
	if voice == "" {
		voice = g.voice
	}

	g.logger.Info("Converting text to speech",
		zap.Int("characters", len(text)),
		zap.String("voice", voice),
		zap.String("locale", settings.Locale))

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(speechPrompt(text, settings.Rate)),
		&genai.GenerateContentConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &genai.SpeechConfig{
				LanguageCode: settings.Locale,
				VoiceConfig: &genai.VoiceConfig{
					PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
				},
			},
		})
	if err != nil {
		return nil, fmt.Errorf("failed to generate speech: %w", err)
	}

	audio, err := inlineAudio(resp)
	if err != nil {
		return nil, err
	}

	audioChan := make(chan []byte, 4)
	go func() {
		defer close(audioChan)
		for start := 0; start < len(audio); start += geminiChunkSize {
			end := start + geminiChunkSize
			if end > len(audio) {
				end = len(audio)
			}
			select {
			case audioChan <- audio[start:end]:
			case <-ctx.Done():
				return
			}
		}
	}()
	return audioChan, nil
}

// Voices lists the prebuilt voices for each configured locale
func (g *GeminiTTS) Voices(ctx context.Context) ([]repositories.Voice, error) {
	voices := make([]repositories.Voice, 0, len(geminiVoices)*len(g.locales))
	for _, locale := range g.locales {
		for _, name := range geminiVoices {
			voices = append(voices, repositories.Voice{ID: name, Name: name, Locale: locale})
		}
	}
	return voices, nil
}

// Format describes the audio produced by ConvertTextToSpeech
func (g *GeminiTTS) Format() repositories.AudioFormat {
	return repositories.AudioFormat{SampleRate: geminiSampleRate, Channels: 1, Encoding: "pcm_s16le"}
}

// speechPrompt asks for a slower delivery when the rate is below normal
func speechPrompt(text string, rate float64) string {
	if rate > 0 && rate < 1 {
		return "Say slowly and clearly: " + text
	}
	return text
}

func inlineAudio(resp *genai.GenerateContentResponse) ([]byte, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini returned no candidates")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, nil
		}
	}
	return nil, fmt.Errorf("gemini returned no audio")
}
