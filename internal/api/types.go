package api

import (
	"time"

	"github.com/fraudshield/voicedesk/domain/entities"
)

// TokenRequest represents the request payload for a development token
type TokenRequest struct {
	UserID string `json:"user_id"`
}

// TokenResponse represents the response payload for token issuance
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
}

// LanguagesResponse lists the supported language profiles
type LanguagesResponse struct {
	Default   string                     `json:"default"`
	Languages []entities.LanguageProfile `json:"languages"`
}

// TranscriptsResponse lists a user's transcript records
type TranscriptsResponse struct {
	Transcripts []*entities.TranscriptRecord `json:"transcripts"`
	Count       int                          `json:"count"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
