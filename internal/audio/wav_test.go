package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func sineFrame(samples int, amplitude float64) []byte {
	frame := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := amplitude * math.Sin(2*math.Pi*440*float64(i)/16000)
		binary.LittleEndian.PutUint16(frame[i*2:], uint16(int16(v)))
	}
	return frame
}

func TestEncodeWAV(t *testing.T) {
	pcm := sineFrame(1600, 16383)

	wavData, err := EncodeWAV(pcm, 16000, 1)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if len(wavData) != wavHeaderSize+len(pcm) {
		t.Errorf("Expected WAV size %d, got %d", wavHeaderSize+len(pcm), len(wavData))
	}

	if err := ValidateWAV(wavData); err != nil {
		t.Errorf("Generated WAV is invalid: %v", err)
	}

	info, err := GetWAVInfo(wavData)
	if err != nil {
		t.Fatalf("Failed to get WAV info: %v", err)
	}
	if info.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", info.SampleRate)
	}
	if info.Channels != 1 {
		t.Errorf("Expected 1 channel, got %d", info.Channels)
	}
	if math.Abs(info.Duration-0.1) > 0.001 {
		t.Errorf("Expected duration 0.1s, got %f", info.Duration)
	}
}

func TestDecodeWAVRoundTrip(t *testing.T) {
	pcm := sineFrame(800, 8000)

	wavData, err := EncodeWAV(pcm, 8000, 1)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	decoded, info, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if info.SampleRate != 8000 {
		t.Errorf("Expected sample rate 8000, got %d", info.SampleRate)
	}
	if string(decoded) != string(pcm) {
		t.Error("Decoded PCM differs from the encoded input")
	}
}

func TestEncodeWAVErrors(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000, 1); err == nil {
		t.Error("Expected error for empty audio")
	}
	if _, err := EncodeWAV([]byte{1, 2}, 0, 1); err == nil {
		t.Error("Expected error for zero sample rate")
	}
	if _, err := EncodeWAV([]byte{1, 2}, 16000, 0); err == nil {
		t.Error("Expected error for zero channels")
	}
}

func TestValidateWAVRejectsGarbage(t *testing.T) {
	if err := ValidateWAV([]byte("short")); err == nil {
		t.Error("Expected error for short data")
	}

	garbage := make([]byte, 64)
	copy(garbage, "JUNK")
	if err := ValidateWAV(garbage); err == nil {
		t.Error("Expected error for missing RIFF header")
	}
}
