// Package audio holds the PCM helpers used by a capture: the level analyser,
// the WAV recorder that turns buffered frames into a playable artifact, and the
// WAV container codec.
package audio
