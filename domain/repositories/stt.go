package repositories

import "context"

// SpeechRecognizer abstracts continuous speech recognition services
type SpeechRecognizer interface {
	// Start opens a continuous, interim-enabled recognition stream
	Start(ctx context.Context, config RecognitionConfig) (RecognitionStream, error)
}

// RecognitionConfig represents audio and locale configuration for speech recognition
type RecognitionConfig struct {
	SampleRate     int    `json:"sample_rate"`
	Encoding       string `json:"encoding"`
	Language       string `json:"language"`
	InterimResults bool   `json:"interim_results"`
}

// RecognitionStream is a single running recognition session.
// Results is closed once the recognizer has delivered its last event.
type RecognitionStream interface {
	Write(frame []byte) error
	Results() <-chan RecognitionEvent
	Stop() error
}

// RecognitionErrorCode names a recognizer failure
type RecognitionErrorCode string

const (
	RecognitionErrorNoSpeech            RecognitionErrorCode = "no-speech"
	RecognitionErrorAudioCapture        RecognitionErrorCode = "audio-capture"
	RecognitionErrorNotAllowed          RecognitionErrorCode = "not-allowed"
	RecognitionErrorNetwork             RecognitionErrorCode = "network"
	RecognitionErrorServiceNotAllowed   RecognitionErrorCode = "service-not-allowed"
	RecognitionErrorLanguageUnsupported RecognitionErrorCode = "language-not-supported"
	RecognitionErrorAborted             RecognitionErrorCode = "aborted"
)

// RecognitionError is delivered on the results channel when recognition fails
type RecognitionError struct {
	Code    RecognitionErrorCode
	Message string
}

func (e *RecognitionError) Error() string {
	if e.Message == "" {
		return "recognition error: " + string(e.Code)
	}
	return "recognition error: " + string(e.Code) + ": " + e.Message
}

// RecognitionSegment is one recognizer result
type RecognitionSegment struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	IsFinal    bool    `json:"is_final"`
}

// RecognitionEvent carries the recognizer's full result list. Only entries at
// ResultIndex and later changed since the previous event.
type RecognitionEvent struct {
	ResultIndex int
	Results     []RecognitionSegment
	Err         *RecognitionError
}
