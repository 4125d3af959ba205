package entities

import (
	"fmt"
	"mime"
	"strings"
	"time"
)

// AudioArtifact is a recorded-audio resource together with the URL it is served from
type AudioArtifact struct {
	ID          string    `json:"id" bson:"_id"`
	SessionID   string    `json:"session_id" bson:"session_id"`
	URL         string    `json:"url" bson:"url"`
	ContentType string    `json:"content_type" bson:"content_type"`
	Data        []byte    `json:"-" bson:"data"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// Size returns the artifact size in bytes
func (a *AudioArtifact) Size() int {
	return len(a.Data)
}

// Extension returns the file extension for the artifact's content type
func (a *AudioArtifact) Extension() string {
	return ExtensionFor(a.ContentType)
}

// FileName is the name the artifact is downloaded as
func (a *AudioArtifact) FileName() string {
	return fmt.Sprintf("voice-input-%d.%s", a.CreatedAt.UnixMilli(), a.Extension())
}

// ExtensionFor maps an audio MIME type to a file extension. Unknown types map to "webm",
// the container browsers record into by default.
func ExtensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}

	switch mediaType {
	case "audio/wav", "audio/wave", "audio/x-wav":
		return "wav"
	case "audio/ogg":
		return "ogg"
	case "audio/mpeg":
		return "mp3"
	case "audio/mp4":
		return "m4a"
	case "audio/pcm", "audio/l16":
		return "pcm"
	default:
		return "webm"
	}
}
