package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

// Decibel window mapped onto the 0-100 level scale. These are the Web Audio
// AnalyserNode defaults, so levels match what the browser meter shows.
const (
	minDecibels = -100.0
	maxDecibels = -30.0
)

// Analyser tracks the energy of the most recent PCM16LE frame.
// It is safe for one writer and any number of readers.
type Analyser struct {
	mu    sync.RWMutex
	level int
}

// NewAnalyser creates an analyser reporting silence
func NewAnalyser() *Analyser {
	return &Analyser{}
}

// Observe measures a frame and makes it the current level
func (a *Analyser) Observe(frame []byte) {
	level := Level(frame)

	a.mu.Lock()
	a.level = level
	a.mu.Unlock()
}

// Level returns the last observed level, 0-100
func (a *Analyser) Level() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.level
}

// Reset returns the analyser to silence
func (a *Analyser) Reset() {
	a.mu.Lock()
	a.level = 0
	a.mu.Unlock()
}

// Level converts a PCM16LE frame into a 0-100 level from its RMS power in dBFS
func Level(frame []byte) int {
	samples := len(frame) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < samples; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(frame[i*2:]))) / 32768.0
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(samples))
	if rms == 0 {
		return 0
	}

	db := 20 * math.Log10(rms)
	scaled := (db - minDecibels) / (maxDecibels - minDecibels) * 100
	switch {
	case scaled < 0:
		return 0
	case scaled > 100:
		return 100
	default:
		return int(math.Round(scaled))
	}
}
