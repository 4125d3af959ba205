package audio

import "testing"

func TestLevelSilence(t *testing.T) {
	if got := Level(make([]byte, 320)); got != 0 {
		t.Errorf("Expected silence to be level 0, got %d", got)
	}
	if got := Level(nil); got != 0 {
		t.Errorf("Expected empty frame to be level 0, got %d", got)
	}
}

func TestLevelIncreasesWithAmplitude(t *testing.T) {
	quiet := Level(sineFrame(320, 100))
	loud := Level(sineFrame(320, 20000))

	if quiet <= 0 {
		t.Errorf("Expected quiet tone above 0, got %d", quiet)
	}
	if loud <= quiet {
		t.Errorf("Expected loud level %d to exceed quiet level %d", loud, quiet)
	}
	if loud > 100 {
		t.Errorf("Level must not exceed 100, got %d", loud)
	}
}

func TestAnalyserObserve(t *testing.T) {
	a := NewAnalyser()
	a.Observe(sineFrame(320, 20000))
	if a.Level() == 0 {
		t.Error("Expected non-zero level after a loud frame")
	}

	a.Reset()
	if a.Level() != 0 {
		t.Errorf("Expected level 0 after reset, got %d", a.Level())
	}
}
