package repositories

import "context"

// AudioFormat describes raw audio frames
type AudioFormat struct {
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Encoding   string `json:"encoding"`
}

// MicrophoneError reports a failed acquisition using the platform error name
// (NotAllowedError, NotFoundError, NotSupportedError, ...)
type MicrophoneError struct {
	Name    string
	Message string
}

func (e *MicrophoneError) Error() string {
	if e.Message == "" {
		return "microphone: " + e.Name
	}
	return "microphone: " + e.Name + ": " + e.Message
}

// Microphone negotiates access to the user's audio input
type Microphone interface {
	RequestPermission(ctx context.Context) error
	Open(ctx context.Context, format AudioFormat) (AudioStream, error)
}

// AudioStream is an open capture. Frames is closed when the capture ends.
type AudioStream interface {
	Frames() <-chan []byte
	Close() error
}

// AudioRecorder buffers captured frames and assembles them on Stop
type AudioRecorder interface {
	Write(frame []byte) error
	Stop() (data []byte, contentType string, err error)
}

// RecorderFactory creates one recorder per capture
type RecorderFactory func(format AudioFormat) AudioRecorder
