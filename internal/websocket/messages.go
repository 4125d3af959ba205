package websocket

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/fraudshield/voicedesk/domain/repositories"
	"github.com/fraudshield/voicedesk/internal/voice"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Client to server message types
const (
	MessageTypeRequestPermission MessageType = "request_permission"
	MessageTypePermissionResult  MessageType = "permission_result"
	MessageTypeStartCapture      MessageType = "start_capture"
	MessageTypeStopCapture       MessageType = "stop_capture"
	MessageTypeSpeak             MessageType = "speak"
	MessageTypePlaySample        MessageType = "play_sample"
	MessageTypePlayRecording     MessageType = "play_recording"
	MessageTypePlaybackEnded     MessageType = "playback_ended"
	MessageTypeSpeechEnded       MessageType = "speech_ended"
	MessageTypeDownloadRecording MessageType = "download_recording"
	MessageTypeClear             MessageType = "clear"
	MessageTypeSelectLanguage    MessageType = "select_language"
	MessageTypePing              MessageType = "ping"
)

// Server to client message types. Session updates use the voice.UpdateType
// names (state, transcript, level, notice, completed, artifact, speaking, playback).
const (
	MessageTypePermissionRequest MessageType = "permission_request"
	MessageTypeCaptureStart      MessageType = "capture_start"
	MessageTypeCaptureStop       MessageType = "capture_stop"
	MessageTypeSpeakingStart     MessageType = "speaking_start"
	MessageTypeSpeakingEnd       MessageType = "speaking_end"
	MessageTypeSpeakingCancel    MessageType = "speaking_cancel"
	MessageTypePlaybackStart     MessageType = "playback_start"
	MessageTypePlaybackStop      MessageType = "playback_stop"
	MessageTypeDownload          MessageType = "download"
	MessageTypePong              MessageType = "pong"
	MessageTypeError             MessageType = "error"
)

const (
	maxSpeakLength    = 5000
	maxLanguageLength = 16
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type" validate:"required"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: time.Now().Format(time.RFC3339)}
}

// PermissionResultMessage answers a permission_request. ErrorName carries the
// browser's DOMException name when access was not granted.
type PermissionResultMessage struct {
	BaseMessage
	Granted      bool   `json:"granted"`
	ErrorName    string `json:"error_name,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// StartCaptureMessage asks the server to start recording
type StartCaptureMessage struct {
	BaseMessage
	Language string `json:"language,omitempty"`
}

// SpeakMessage asks for text to be read aloud
type SpeakMessage struct {
	BaseMessage
	Text     string `json:"text" validate:"required"`
	Language string `json:"language,omitempty"`
}

// PlaySampleMessage asks for the sample sentence of a language
type PlaySampleMessage struct {
	BaseMessage
	Language string `json:"language,omitempty"`
}

// SpeechEndedMessage reports that the browser finished playing an utterance
type SpeechEndedMessage struct {
	BaseMessage
	UtteranceID string `json:"utterance_id" validate:"required"`
	Error       string `json:"error,omitempty"`
}

// SelectLanguageMessage switches the session language
type SelectLanguageMessage struct {
	BaseMessage
	Language string `json:"language" validate:"required"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// CaptureStartMessage tells the browser to start streaming PCM frames
type CaptureStartMessage struct {
	BaseMessage
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Encoding   string `json:"encoding"`
}

// SpeakingStartMessage precedes the binary audio of an utterance
type SpeakingStartMessage struct {
	BaseMessage
	UtteranceID string             `json:"utterance_id"`
	Voice       repositories.Voice `json:"voice"`
	SampleRate  int                `json:"sample_rate"`
	Channels    int                `json:"channels"`
	Encoding    string             `json:"encoding"`
}

// UtteranceMessage marks the end or cancellation of an utterance
type UtteranceMessage struct {
	BaseMessage
	UtteranceID string `json:"utterance_id"`
}

// PlaybackStartMessage asks the browser to play a recorded artifact
type PlaybackStartMessage struct {
	BaseMessage
	URL string `json:"url"`
}

// DownloadMessage hands the browser a recorded artifact to save
type DownloadMessage struct {
	BaseMessage
	URL         string `json:"url"`
	FileName    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// UpdateMessage carries one session update. Level and Active are pointers so
// that zero values still reach the browser.
type UpdateMessage struct {
	BaseMessage
	State       voice.State   `json:"state,omitempty"`
	Prompt      string        `json:"prompt,omitempty"`
	Language    string        `json:"language,omitempty"`
	Transcript  *string       `json:"transcript,omitempty"`
	Interim     *string       `json:"interim,omitempty"`
	Display     *string       `json:"display,omitempty"`
	Confidence  *int          `json:"confidence,omitempty"`
	Level       *int          `json:"level,omitempty"`
	Notice      *voice.Notice `json:"notice,omitempty"`
	ArtifactURL string        `json:"artifact_url,omitempty"`
	FileName    string        `json:"file_name,omitempty"`
	Active      *bool         `json:"active,omitempty"`
}

// NewUpdateMessage encodes a session update with the fields its type needs
func NewUpdateMessage(u voice.Update) *UpdateMessage {
	msg := &UpdateMessage{
		BaseMessage: newBase(MessageType(u.Type)),
		State:       u.State,
		Prompt:      u.Prompt,
		Language:    u.Language,
		Confidence:  u.Confidence,
		Notice:      u.Notice,
		ArtifactURL: u.ArtifactURL,
		FileName:    u.FileName,
	}
	switch u.Type {
	case voice.UpdateTranscript:
		msg.Transcript, msg.Interim, msg.Display = &u.Transcript, &u.Interim, &u.Display
	case voice.UpdateCompleted:
		msg.Transcript = &u.Transcript
	case voice.UpdateLevel:
		level := u.Level
		msg.Level = &level
	case voice.UpdateSpeaking, voice.UpdatePlayback:
		active := u.Active
		msg.Active = &active
	}
	return msg
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses and validates an incoming message. Messages without
// a payload come back as *BaseMessage.
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	// First parse as base message to get type
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	// Add timestamp if missing
	if base.Timestamp == "" {
		base.Timestamp = time.Now().Format(time.RFC3339)
	}

	switch base.Type {
	case MessageTypeRequestPermission, MessageTypeStopCapture, MessageTypePlayRecording,
		MessageTypePlaybackEnded, MessageTypeDownloadRecording, MessageTypeClear:
		return &base, nil

	case MessageTypePermissionResult:
		var msg PermissionResultMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid permission result message: %w", err)
		}
		if !msg.Granted && msg.ErrorName == "" {
			msg.ErrorName = "NotAllowedError"
		}
		return &msg, nil

	case MessageTypeStartCapture:
		var msg StartCaptureMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid start capture message: %w", err)
		}
		if err := validateLanguage(msg.Language, false); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeSpeak:
		var msg SpeakMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid speak message: %w", err)
		}
		if err := v.validateSpeak(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypePlaySample:
		var msg PlaySampleMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid play sample message: %w", err)
		}
		if err := validateLanguage(msg.Language, false); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeSpeechEnded:
		var msg SpeechEndedMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid speech ended message: %w", err)
		}
		if msg.UtteranceID == "" {
			return nil, fmt.Errorf("utterance_id is required")
		}
		return &msg, nil

	case MessageTypeSelectLanguage:
		var msg SelectLanguageMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid select language message: %w", err)
		}
		if err := validateLanguage(msg.Language, true); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// validateSpeak validates speak message fields
func (v *MessageValidator) validateSpeak(msg *SpeakMessage) error {
	if msg.Text == "" {
		return fmt.Errorf("text is required")
	}
	if utf8.RuneCountInString(msg.Text) > maxSpeakLength {
		return fmt.Errorf("text must be at most %d characters", maxSpeakLength)
	}
	return validateLanguage(msg.Language, false)
}

// validateLanguage only bounds the code; unknown languages fall back to English
func validateLanguage(code string, required bool) error {
	if code == "" && required {
		return fmt.Errorf("language is required")
	}
	if len(code) > maxLanguageLength {
		return fmt.Errorf("language must be at most %d characters", maxLanguageLength)
	}
	return nil
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong),
		Data:        data,
	}
}
