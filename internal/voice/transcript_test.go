package voice

import (
	"testing"

	"github.com/fraudshield/voicedesk/domain/repositories"
)

func TestTranscriptAccumulatesFinalAndInterim(t *testing.T) {
	var tr Transcript

	tr.Apply(repositories.RecognitionEvent{
		ResultIndex: 0,
		Results:     []repositories.RecognitionSegment{final("hello", 0.92)},
	})
	if got := tr.Final(); got != "hello" {
		t.Errorf("Expected final 'hello', got %q", got)
	}
	if c, _ := tr.Confidence(); c != 92 {
		t.Errorf("Expected confidence 92, got %d", c)
	}

	tr.Apply(repositories.RecognitionEvent{
		ResultIndex: 1,
		Results:     []repositories.RecognitionSegment{final("hello", 0.92), interim("wor")},
	})
	if got := tr.Display(); got != "hello [wor]" {
		t.Errorf("Expected display 'hello [wor]', got %q", got)
	}

	tr.Apply(repositories.RecognitionEvent{
		ResultIndex: 1,
		Results:     []repositories.RecognitionSegment{final("hello", 0.92), final("world", 0.88)},
	})
	if got := tr.Display(); got != "hello world" {
		t.Errorf("Expected display 'hello world', got %q", got)
	}
	if c, _ := tr.Confidence(); c != 88 {
		t.Errorf("Expected confidence 88, got %d", c)
	}
}

func TestTranscriptDoesNotReprocessFinalizedIndices(t *testing.T) {
	var tr Transcript

	first := repositories.RecognitionEvent{
		Results: []repositories.RecognitionSegment{final("my bank called", 0.9)},
	}
	tr.Apply(first)
	// a recognizer re-sending the whole list from index 0
	tr.Apply(repositories.RecognitionEvent{
		Results: []repositories.RecognitionSegment{final("my bank called", 0.9), final("asking for OTP", 0.7)},
	})

	if got := tr.Final(); got != "my bank called asking for OTP" {
		t.Errorf("Expected each final segment once, got %q", got)
	}

	if changed := tr.Apply(first); changed {
		t.Error("Replaying a finalized event should not change the transcript")
	}
}

func TestTranscriptTrimsAndSkipsEmptySegments(t *testing.T) {
	var tr Transcript
	tr.Apply(repositories.RecognitionEvent{
		Results: []repositories.RecognitionSegment{final("  hello  ", 0.5), final("   ", 0.5), final("there ", 0.5)},
	})

	if got := tr.Final(); got != "hello there" {
		t.Errorf("Expected 'hello there', got %q", got)
	}
}

func TestTranscriptInterimIsReplaced(t *testing.T) {
	var tr Transcript
	tr.Apply(repositories.RecognitionEvent{Results: []repositories.RecognitionSegment{interim("he")}})
	tr.Apply(repositories.RecognitionEvent{Results: []repositories.RecognitionSegment{interim("hello")}})

	if got := tr.Display(); got != "[hello]" {
		t.Errorf("Expected '[hello]', got %q", got)
	}
	if got := tr.Final(); got != "" {
		t.Errorf("Expected no final text, got %q", got)
	}

	tr.Reset()
	if tr.Display() != "" {
		t.Error("Expected empty transcript after reset")
	}
	if _, ok := tr.Confidence(); ok {
		t.Error("Expected no confidence after reset")
	}
}

func TestStripInterimMarkers(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello [wor]", "hello"},
		{"hello world", "hello world"},
		{"[partial]", ""},
		{"one [two] three", "one three"},
		{"  spaced   out  ", "spaced out"},
	}

	for _, tt := range tests {
		if got := StripInterimMarkers(tt.in); got != tt.want {
			t.Errorf("StripInterimMarkers(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestConfidenceScore(t *testing.T) {
	tests := []struct {
		score float64
		want  int
	}{
		{0.92, 92},
		{0.875, 88},
		{0, 0},
		{-0.3, 0},
		{1, 100},
		{1.7, 100},
	}

	for _, tt := range tests {
		if got := ConfidenceScore(tt.score); got != tt.want {
			t.Errorf("ConfidenceScore(%v): expected %d, got %d", tt.score, tt.want, got)
		}
	}
}
