package voice

import (
	"errors"
	"fmt"

	"github.com/fraudshield/voicedesk/domain/repositories"
)

// ErrorKind classifies user-facing failures
type ErrorKind string

const (
	KindPermissionDenied    ErrorKind = "permission_denied"
	KindDeviceUnavailable   ErrorKind = "device_unavailable"
	KindNoSpeechDetected    ErrorKind = "no_speech"
	KindNetworkError        ErrorKind = "network"
	KindServiceUnavailable  ErrorKind = "service_unavailable"
	KindUnsupportedLanguage ErrorKind = "unsupported_language"
	KindRecognitionAborted  ErrorKind = "aborted"
	KindUnknownRecognition  ErrorKind = "recognition_error"
	KindSynthesisError      ErrorKind = "synthesis_error"
	KindRecordingStart      ErrorKind = "recording_start_failure"
)

// Error is a classified failure carrying the message shown to the user
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind when target carries no message,
// so errors.Is(err, ErrNoSpeechDetected) works for every no-speech error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Suppressed reports whether the error results from an intentional stop
// and must not be shown to the user
func (e *Error) Suppressed() bool {
	return e.Kind == KindRecognitionAborted
}

// Sentinels for errors.Is
var (
	ErrPermissionDenied    = &Error{Kind: KindPermissionDenied}
	ErrDeviceUnavailable   = &Error{Kind: KindDeviceUnavailable}
	ErrNoSpeechDetected    = &Error{Kind: KindNoSpeechDetected}
	ErrNetwork             = &Error{Kind: KindNetworkError}
	ErrServiceUnavailable  = &Error{Kind: KindServiceUnavailable}
	ErrUnsupportedLanguage = &Error{Kind: KindUnsupportedLanguage}
	ErrRecognitionAborted  = &Error{Kind: KindRecognitionAborted}
	ErrUnknownRecognition  = &Error{Kind: KindUnknownRecognition}
	ErrSynthesis           = &Error{Kind: KindSynthesisError}
	ErrRecordingStart      = &Error{Kind: KindRecordingStart}
)

// Operational errors returned by Session methods
var (
	ErrSessionClosed       = errors.New("session closed")
	ErrAlreadyRecording    = errors.New("already recording")
	ErrNotRecording        = errors.New("not recording")
	ErrPermissionPending   = errors.New("permission request in progress")
	ErrNoRecording         = errors.New("no recorded audio")
	ErrNothingToSpeak      = errors.New("nothing to speak")
	ErrPlaybackUnavailable = errors.New("audio playback unavailable")
)

const messageNoSpeech = "No speech was detected. Please try speaking again."

// ClassifyRecognitionError maps a recognizer failure to its user-facing error
func ClassifyRecognitionError(err *repositories.RecognitionError) *Error {
	e := &Error{Cause: err}
	switch err.Code {
	case repositories.RecognitionErrorNoSpeech:
		e.Kind, e.Message = KindNoSpeechDetected, messageNoSpeech
	case repositories.RecognitionErrorAudioCapture:
		e.Kind, e.Message = KindDeviceUnavailable, "No microphone was found, or it is being used by another application."
	case repositories.RecognitionErrorNotAllowed:
		e.Kind, e.Message = KindPermissionDenied, "Microphone access was denied. Please allow microphone access and try again."
	case repositories.RecognitionErrorNetwork:
		e.Kind, e.Message = KindNetworkError, "A network error interrupted speech recognition. Check your connection and try again."
	case repositories.RecognitionErrorServiceNotAllowed:
		e.Kind, e.Message = KindServiceUnavailable, "The speech recognition service is not available right now. Please try again later."
	case repositories.RecognitionErrorLanguageUnsupported:
		e.Kind, e.Message = KindUnsupportedLanguage, "Speech recognition is not available for the selected language."
	case repositories.RecognitionErrorAborted:
		e.Kind, e.Message = KindRecognitionAborted, "Speech recognition was stopped."
	default:
		e.Kind, e.Message = KindUnknownRecognition, fmt.Sprintf("Speech recognition failed (%s). Please try again.", err.Code)
	}
	return e
}

// ClassifyMicrophoneError maps a microphone acquisition failure by its platform error name
func ClassifyMicrophoneError(err error) *Error {
	var micErr *repositories.MicrophoneError
	if !errors.As(err, &micErr) {
		return &Error{
			Kind:    KindDeviceUnavailable,
			Message: "Could not access the microphone. Please try again.",
			Cause:   err,
		}
	}

	e := &Error{Cause: err}
	switch micErr.Name {
	case "NotAllowedError", "PermissionDeniedError", "SecurityError":
		e.Kind, e.Message = KindPermissionDenied, "Microphone permission was denied. Allow microphone access in your browser settings and try again."
	case "NotFoundError", "DevicesNotFoundError", "OverconstrainedError":
		e.Kind, e.Message = KindDeviceUnavailable, "No microphone was found. Connect a microphone and try again."
	case "NotSupportedError", "NotReadableError", "TypeError":
		e.Kind, e.Message = KindDeviceUnavailable, "Voice input is not supported on this device or browser."
	default:
		e.Kind, e.Message = KindDeviceUnavailable, "Could not access the microphone. Please try again."
	}
	return e
}

func asVoiceError(err error, fallback ErrorKind, message string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var recErr *repositories.RecognitionError
	if errors.As(err, &recErr) {
		return ClassifyRecognitionError(recErr)
	}
	var micErr *repositories.MicrophoneError
	if errors.As(err, &micErr) {
		return ClassifyMicrophoneError(err)
	}
	return &Error{Kind: fallback, Message: message, Cause: err}
}
