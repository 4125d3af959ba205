package repositories

import "context"

// TextToSpeech produces synthesized audio for a piece of text
type TextToSpeech interface {
	ConvertTextToSpeech(ctx context.Context, text string, settings VoiceSettings) (<-chan []byte, error)
	Voices(ctx context.Context) ([]Voice, error)
	// Format describes the audio chunks ConvertTextToSpeech produces
	Format() AudioFormat
}

// Voice describes a synthesizer voice
type Voice struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Locale string `json:"locale"`
}

// VoiceSettings tunes a single synthesis request
type VoiceSettings struct {
	VoiceID string  `json:"voice_id"`
	Locale  string  `json:"locale"`
	Rate    float64 `json:"rate"`
	Pitch   float64 `json:"pitch"`
	Volume  float64 `json:"volume"`
}

// Utterance is a speak request handed to a SpeechSynthesizer
type Utterance struct {
	ID    string
	Text  string
	Voice Voice
	VoiceSettings
}

// SpeechSynthesizer speaks utterances to the user. Only one utterance plays at a time.
type SpeechSynthesizer interface {
	Voices(ctx context.Context) ([]Voice, error)
	// Speak starts an utterance. The returned channel yields one value (nil on
	// normal completion) and is then closed.
	Speak(ctx context.Context, utterance Utterance) (<-chan error, error)
	// Cancel stops the current utterance, if any
	Cancel()
}

// AudioPlayer plays a recorded artifact back to the user
type AudioPlayer interface {
	Play(ctx context.Context, url string) error
	Stop() error
}
