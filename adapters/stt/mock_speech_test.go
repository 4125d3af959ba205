package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/fraudshield/voicedesk/domain/repositories"
)

func TestMockSpeechRecognizer(t *testing.T) {
	m := NewMockSpeechRecognizer(zaptest.NewLogger(t)).WithPhrase("en-IN", "they asked for my OTP")

	stream, err := m.Start(context.Background(), repositories.RecognitionConfig{
		SampleRate:     16000,
		Encoding:       "LINEAR16",
		Language:       "en-IN",
		InterimResults: true,
	})
	if err != nil {
		t.Fatalf("Failed to start stream: %v", err)
	}

	// three words worth of audio
	if err := stream.Write(make([]byte, 3*bytesPerWord)); err != nil {
		t.Fatalf("Failed to write audio: %v", err)
	}
	if err := stream.Stop(); err != nil {
		t.Fatalf("Failed to stop stream: %v", err)
	}

	var events []repositories.RecognitionEvent
	for ev := range stream.Results() {
		events = append(events, ev)
	}
	if len(events) != 2 {
		t.Fatalf("Expected interim and final events, got %d", len(events))
	}
	last := events[len(events)-1].Results[0]
	if !last.IsFinal || last.Text != "they asked for" {
		t.Errorf("Expected final 'they asked for', got %+v", last)
	}

	if err := stream.Write([]byte{0, 0}); err == nil {
		t.Error("Expected write after stop to fail")
	}
}

func TestMockSpeechRecognizerUsesLanguageSample(t *testing.T) {
	m := NewMockSpeechRecognizer(zaptest.NewLogger(t))

	stream, err := m.Start(context.Background(), repositories.RecognitionConfig{Language: "hi-IN"})
	if err != nil {
		t.Fatalf("Failed to start stream: %v", err)
	}
	stream.Write(make([]byte, 100*bytesPerWord))
	stream.Stop()

	var final string
	for ev := range stream.Results() {
		final = ev.Results[0].Text
	}
	if final != "मुझे एक धोखाधड़ी कॉल आई थी।" {
		t.Errorf("Expected the Hindi sample sentence, got %q", final)
	}
}

func TestMockSpeechRecognizerUnsupportedLanguage(t *testing.T) {
	m := NewMockSpeechRecognizer(zaptest.NewLogger(t))

	_, err := m.Start(context.Background(), repositories.RecognitionConfig{Language: "fr-FR"})
	var recErr *repositories.RecognitionError
	if !errors.As(err, &recErr) || recErr.Code != repositories.RecognitionErrorLanguageUnsupported {
		t.Errorf("Expected language-not-supported, got %v", err)
	}
}

func TestMockSpeechRecognizerUnreadResultsDoNotBlock(t *testing.T) {
	words := make([]string, 100)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	phrase := strings.Join(words, " ")
	m := NewMockSpeechRecognizer(zaptest.NewLogger(t)).WithPhrase("en-IN", phrase)

	stream, err := m.Start(context.Background(), repositories.RecognitionConfig{
		Language:       "en-IN",
		InterimResults: true,
	})
	if err != nil {
		t.Fatalf("Failed to start stream: %v", err)
	}

	// one interim event per word, more than the results buffer holds
	for range words {
		if err := stream.Write(make([]byte, bytesPerWord)); err != nil {
			t.Fatalf("Failed to write audio: %v", err)
		}
	}
	if err := stream.Stop(); err != nil {
		t.Fatalf("Failed to stop stream: %v", err)
	}

	var last repositories.RecognitionEvent
	for ev := range stream.Results() {
		last = ev
	}
	if len(last.Results) != 1 || !last.Results[0].IsFinal || last.Results[0].Text != phrase {
		t.Errorf("Expected the full final transcript last, got %+v", last.Results)
	}
}
