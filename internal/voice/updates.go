package voice

import "context"

// UpdateType identifies what changed in an Update
type UpdateType string

const (
	UpdateState      UpdateType = "state"
	UpdateTranscript UpdateType = "transcript"
	UpdateLevel      UpdateType = "level"
	UpdateNotice     UpdateType = "notice"
	UpdateCompleted  UpdateType = "completed"
	UpdateArtifact   UpdateType = "artifact"
	UpdateSpeaking   UpdateType = "speaking"
	UpdatePlayback   UpdateType = "playback"
)

// Notice is a user-facing error message
type Notice struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Update is a change pushed to the session's observer. Only the fields
// relevant to Type are set.
type Update struct {
	Type UpdateType `json:"type"`

	State    State  `json:"state,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
	Language string `json:"language,omitempty"`

	Transcript string `json:"transcript,omitempty"`
	Interim    string `json:"interim,omitempty"`
	Display    string `json:"display,omitempty"`
	Confidence *int   `json:"confidence,omitempty"`

	Level int `json:"level,omitempty"`

	Notice *Notice `json:"notice,omitempty"`

	ArtifactURL string `json:"artifact_url,omitempty"`
	FileName    string `json:"file_name,omitempty"`

	Active bool `json:"active,omitempty"`
}

// TranscriptionResult is handed to the completion callback once per
// successful capture
type TranscriptionResult struct {
	SessionID   string `json:"session_id"`
	Language    string `json:"language"`
	Text        string `json:"text"`
	Confidence  int    `json:"confidence"`
	ArtifactURL string `json:"artifact_url,omitempty"`
}

// CompletionFunc receives the final transcript of a capture
type CompletionFunc func(ctx context.Context, result TranscriptionResult)

// Snapshot is a point-in-time view of a session
type Snapshot struct {
	ID                string  `json:"id"`
	State             State   `json:"state"`
	Prompt            string  `json:"prompt,omitempty"`
	Language          string  `json:"language"`
	PermissionGranted bool    `json:"permission_granted"`
	Transcript        string  `json:"transcript"`
	Interim           string  `json:"interim,omitempty"`
	Confidence        *int    `json:"confidence,omitempty"`
	Error             *Notice `json:"error,omitempty"`
	ArtifactURL       string  `json:"artifact_url,omitempty"`
	Speaking          bool    `json:"speaking"`
	Playing           bool    `json:"playing"`
}

// Download is a recorded artifact ready to be saved by the user
type Download struct {
	FileName    string
	ContentType string
	URL         string
	Data        []byte
}
