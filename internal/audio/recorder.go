package audio

import (
	"errors"
	"sync"

	"github.com/fraudshield/voicedesk/domain/repositories"
)

// ContentTypeWAV is the content type of recordings assembled by WAVRecorder
const ContentTypeWAV = "audio/wav"

// ErrRecorderStopped is returned when writing to or stopping a stopped recorder
var ErrRecorderStopped = errors.New("recorder already stopped")

// WAVRecorder buffers PCM16 frames and assembles them into a WAV file on Stop
type WAVRecorder struct {
	mu         sync.Mutex
	sampleRate int
	channels   int
	chunks     [][]byte
	size       int
	stopped    bool
}

var _ repositories.AudioRecorder = (*WAVRecorder)(nil)

// NewWAVRecorder creates a recorder for the given format
func NewWAVRecorder(format repositories.AudioFormat) repositories.AudioRecorder {
	channels := format.Channels
	if channels <= 0 {
		channels = 1
	}
	return &WAVRecorder{
		sampleRate: format.SampleRate,
		channels:   channels,
	}
}

// Write buffers a copy of frame
func (r *WAVRecorder) Write(frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrRecorderStopped
	}
	if len(frame) == 0 {
		return nil
	}

	chunk := make([]byte, len(frame))
	copy(chunk, frame)
	r.chunks = append(r.chunks, chunk)
	r.size += len(chunk)
	return nil
}

// Stop assembles the buffered chunks. A recorder that never saw audio returns nil data.
func (r *WAVRecorder) Stop() ([]byte, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return nil, "", ErrRecorderStopped
	}
	r.stopped = true

	if r.size == 0 {
		return nil, ContentTypeWAV, nil
	}

	pcm := make([]byte, 0, r.size)
	for _, chunk := range r.chunks {
		pcm = append(pcm, chunk...)
	}
	r.chunks = nil

	data, err := EncodeWAV(pcm, r.sampleRate, r.channels)
	if err != nil {
		return nil, "", err
	}
	return data, ContentTypeWAV, nil
}
