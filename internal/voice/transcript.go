package voice

import (
	"math"
	"regexp"
	"strings"

	"github.com/fraudshield/voicedesk/domain/repositories"
)

var interimMarker = regexp.MustCompile(`\[[^\]]*\]`)

// Transcript accumulates recognizer output. Final text is committed in result
// order; interim text is held aside and replaced on every event.
type Transcript struct {
	finals        []string
	interim       string
	finalized     int
	confidence    int
	hasConfidence bool
}

// Apply folds a recognizer event into the transcript and reports whether anything changed.
// Indices below the number already finalized are never processed again.
func (t *Transcript) Apply(event repositories.RecognitionEvent) bool {
	start := event.ResultIndex
	if start < 0 {
		start = 0
	}

	changed := false
	var interim []string
	for i := start; i < len(event.Results); i++ {
		segment := event.Results[i]
		text := strings.TrimSpace(segment.Text)

		if !segment.IsFinal {
			if i >= t.finalized && text != "" {
				interim = append(interim, text)
			}
			continue
		}

		if i < t.finalized {
			continue
		}
		t.finalized = i + 1
		if text != "" {
			t.finals = append(t.finals, text)
		}
		t.confidence = ConfidenceScore(segment.Confidence)
		t.hasConfidence = true
		changed = true
	}

	next := strings.Join(interim, " ")
	if next != t.interim {
		t.interim = next
		changed = true
	}
	return changed
}

// Final returns the committed text
func (t *Transcript) Final() string {
	return strings.Join(t.finals, " ")
}

// Interim returns the uncommitted text of the latest event
func (t *Transcript) Interim() string {
	return t.interim
}

// Display returns the committed text followed by the interim text in brackets
func (t *Transcript) Display() string {
	final := t.Final()
	if t.interim == "" {
		return final
	}
	if final == "" {
		return "[" + t.interim + "]"
	}
	return final + " [" + t.interim + "]"
}

// Confidence returns the score of the most recent final segment, 0-100
func (t *Transcript) Confidence() (int, bool) {
	return t.confidence, t.hasConfidence
}

// ClearInterim drops any uncommitted text
func (t *Transcript) ClearInterim() {
	t.interim = ""
}

// Reset discards everything, including the finalized index
func (t *Transcript) Reset() {
	*t = Transcript{}
}

// StripInterimMarkers removes bracketed interim text and normalizes whitespace
func StripInterimMarkers(text string) string {
	return strings.Join(strings.Fields(interimMarker.ReplaceAllString(text, " ")), " ")
}

// ConfidenceScore converts a 0-1 recognizer score to a clamped 0-100 integer
func ConfidenceScore(score float64) int {
	if math.IsNaN(score) || score <= 0 {
		return 0
	}
	if score >= 1 {
		return 100
	}
	return int(math.Round(score * 100))
}
