package entities

import (
	"errors"
	"time"
)

// TranscriptRecord is a completed voice transcription kept for the report form
type TranscriptRecord struct {
	ID          string    `json:"id" bson:"_id"`
	SessionID   string    `json:"session_id" bson:"session_id"`
	UserID      string    `json:"user_id" bson:"user_id"`
	Language    string    `json:"language" bson:"language"`
	Text        string    `json:"text" bson:"text"`
	Confidence  int       `json:"confidence" bson:"confidence"`
	ArtifactURL string    `json:"artifact_url,omitempty" bson:"artifact_url,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// NewTranscriptRecord creates a record stamped with the current time
func NewTranscriptRecord(sessionID, userID, language, text string, confidence int) *TranscriptRecord {
	return &TranscriptRecord{
		SessionID:  sessionID,
		UserID:     userID,
		Language:   language,
		Text:       text,
		Confidence: confidence,
		CreatedAt:  time.Now(),
	}
}

// Validate validates the record data
func (r *TranscriptRecord) Validate() error {
	if r.SessionID == "" {
		return errors.New("session_id is required")
	}

	if r.Text == "" {
		return errors.New("text is required")
	}

	if r.Confidence < 0 || r.Confidence > 100 {
		return errors.New("confidence must be between 0 and 100")
	}

	return nil
}
