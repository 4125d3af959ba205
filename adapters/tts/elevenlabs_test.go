package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/fraudshield/voicedesk/domain/repositories"
)

func TestNewElevenLabsTTS(t *testing.T) {
	logger := zaptest.NewLogger(t)

	// Test without API key
	os.Unsetenv("ELEVEN_LABS_API_KEY")
	config := NewElevenLabsConfigFromEnv()
	_, err := NewElevenLabsTTS(config, logger)
	if err == nil {
		t.Error("Expected error when API key is not set")
	}

	// Test with API key
	os.Setenv("ELEVEN_LABS_API_KEY", "test-api-key")
	defer os.Unsetenv("ELEVEN_LABS_API_KEY")

	config = NewElevenLabsConfigFromEnv()
	tts, err := NewElevenLabsTTS(config, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	if tts.apiKey != "test-api-key" {
		t.Errorf("Expected API key 'test-api-key', got '%s'", tts.apiKey)
	}

	if tts.voiceID != defaultVoiceID {
		t.Errorf("Expected default voice ID '%s', got '%s'", defaultVoiceID, tts.voiceID)
	}
}

func TestValidateElevenLabsConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  ElevenLabsConfig
		wantErr bool
	}{
		{"valid", ElevenLabsConfig{APIKey: "k"}, false},
		{"missing key", ElevenLabsConfig{}, true},
		{"stability out of range", ElevenLabsConfig{APIKey: "k", Stability: 1.5}, true},
		{"clarity out of range", ElevenLabsConfig{APIKey: "k", Clarity: -0.2}, true},
		{"negative chunk size", ElevenLabsConfig{APIKey: "k", ChunkSize: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateElevenLabsConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestElevenLabsTTS_Format(t *testing.T) {
	tests := []struct {
		output string
		want   repositories.AudioFormat
	}{
		{"pcm_24000", repositories.AudioFormat{SampleRate: 24000, Channels: 1, Encoding: "pcm_s16le"}},
		{"mp3_44100_128", repositories.AudioFormat{SampleRate: 44100, Channels: 1, Encoding: "mp3"}},
	}

	for _, tt := range tests {
		if got := formatFromOutput(tt.output); got != tt.want {
			t.Errorf("formatFromOutput(%s): expected %+v, got %+v", tt.output, tt.want, got)
		}
	}
}

func TestElevenLabsTTS_ConvertTextToSpeech_EmptyText(t *testing.T) {
	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	ctx := context.Background()
	if _, err := tts.ConvertTextToSpeech(ctx, "", repositories.VoiceSettings{}); err == nil {
		t.Error("Expected error for empty text")
	}
	if _, err := tts.ConvertTextToSpeech(ctx, "   ", repositories.VoiceSettings{}); err == nil {
		t.Error("Expected error for whitespace-only text")
	}
}

func TestElevenLabsTTS_ConvertTextToSpeech(t *testing.T) {
	var got ElevenLabsRequest
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Header.Get("xi-api-key") != "test-api-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write(make([]byte, 3000))
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{
		APIKey:     "test-api-key",
		APIBaseURL: server.URL,
		ChunkSize:  1024,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	audioChan, err := tts.ConvertTextToSpeech(context.Background(), "मुझे एक धोखाधड़ी कॉल आई थी।", repositories.VoiceSettings{
		VoiceID: "hindi-voice",
		Locale:  "hi-IN",
		Rate:    0.5,
	})
	if err != nil {
		t.Fatalf("Failed to convert text to speech: %v", err)
	}

	total := 0
	for chunk := range audioChan {
		total += len(chunk)
	}
	if total != 3000 {
		t.Errorf("Expected 3000 bytes, got %d", total)
	}
	if gotPath != "/text-to-speech/hindi-voice/stream" {
		t.Errorf("Unexpected request path %s", gotPath)
	}
	if got.LanguageCode != "hi" {
		t.Errorf("Expected language code hi, got %s", got.LanguageCode)
	}
	if got.VoiceSettings.Speed != 0.7 {
		t.Errorf("Expected speed clamped to 0.7, got %v", got.VoiceSettings.Speed)
	}
}

func TestElevenLabsTTS_ConvertTextToSpeech_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"detail":"quota exceeded"}`))
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key", APIBaseURL: server.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	_, err = tts.ConvertTextToSpeech(context.Background(), "hello", repositories.VoiceSettings{})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("Expected a 429 error, got %v", err)
	}
}

func TestElevenLabsTTS_Voices(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(`{"voices":[
			{"voice_id":"a","name":"Aria","labels":{"language":"en"}},
			{"voice_id":"b","name":"Bela","verified_languages":[{"language":"hi","locale":"hi-IN"},{"language":"en","locale":"en-IN"}]}
		]}`))
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key", APIBaseURL: server.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	voices, err := tts.Voices(context.Background())
	if err != nil {
		t.Fatalf("Failed to list voices: %v", err)
	}
	if len(voices) != 3 {
		t.Fatalf("Expected 3 voice entries, got %d", len(voices))
	}
	if voices[1].ID != "b" || voices[1].Locale != "hi-IN" {
		t.Errorf("Expected Bela as hi-IN, got %+v", voices[1])
	}

	if _, err := tts.Voices(context.Background()); err != nil {
		t.Fatalf("Failed to list voices: %v", err)
	}
	if requests != 1 {
		t.Errorf("Expected voices to be cached, got %d requests", requests)
	}
}

// Integration test - only runs if ELEVEN_LABS_API_KEY is set with real API key
func TestElevenLabsTTS_ConvertTextToSpeech_Integration(t *testing.T) {
	apiKey := os.Getenv("ELEVEN_LABS_API_KEY")
	if apiKey == "" || apiKey == "test-api-key" {
		t.Skip("Skipping integration test - set ELEVEN_LABS_API_KEY environment variable with real API key")
	}

	logger := zap.NewNop()

	config := NewElevenLabsConfigFromEnv()
	tts, err := NewElevenLabsTTS(config, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}
	tts.SetOutputFormat("pcm_16000")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	audioChan, err := tts.ConvertTextToSpeech(ctx, "I received a fraud call.", repositories.VoiceSettings{Locale: "en-IN", Rate: 0.8})
	if err != nil {
		t.Fatalf("Failed to convert text to speech: %v", err)
	}

	totalBytes := 0
	chunkCount := 0
	for chunk := range audioChan {
		if len(chunk) == 0 {
			t.Error("Received empty audio chunk")
		}
		totalBytes += len(chunk)
		chunkCount++
	}

	if totalBytes == 0 {
		t.Error("No audio data received")
	}

	t.Logf("Integration test completed: received %d chunks, %d total bytes", chunkCount, totalBytes)
}
