package voice

import "github.com/fraudshield/voicedesk/domain/entities"

// State is the session's position in the capture lifecycle
type State string

const (
	StateIdle                 State = "idle"
	StateRequestingPermission State = "requesting_permission"
	StateReady                State = "ready"
	StateRecording            State = "recording"
	StateProcessing           State = "processing"
	StatePermissionDenied     State = "permission_denied"
	StateError                State = "error"
)

// CanStartCapture reports whether StartCapture may be attempted from s.
// Idle starts with an implicit permission request.
func (s State) CanStartCapture() bool {
	switch s {
	case StateIdle, StateReady, StateError:
		return true
	default:
		return false
	}
}

// Prompt returns the localized status line for the state, if it has one
func (s State) Prompt(profile entities.LanguageProfile) string {
	switch s {
	case StateReady:
		return profile.Prompts.Ready
	case StateRecording:
		return profile.Prompts.Recording
	case StateProcessing:
		return profile.Prompts.Processing
	default:
		return ""
	}
}
