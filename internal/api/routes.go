package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fraudshield/voicedesk/domain/entities"
	"github.com/fraudshield/voicedesk/domain/repositories"
	"github.com/fraudshield/voicedesk/internal/auth"
	"github.com/fraudshield/voicedesk/internal/metrics"
	"github.com/fraudshield/voicedesk/internal/websocket"
	"github.com/fraudshield/voicedesk/usecase"
)

// Dependencies are the services the HTTP API exposes
type Dependencies struct {
	Hub         *websocket.Hub
	Tokens      *auth.TokenService
	DevTokens   bool
	Artifacts   repositories.ArtifactRepository
	Transcripts *usecase.TranscriptService
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies, logger *zap.Logger) {
	if deps.Metrics != nil {
		e.Use(requestMetrics(deps.Metrics))
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "voicedesk",
		})
	})

	if deps.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.GET("/languages", listLanguages)

	if deps.DevTokens {
		v1.POST("/auth/token", func(c echo.Context) error {
			return issueToken(c, deps.Tokens, logger)
		})
	}

	v1.GET("/artifacts/:id", func(c echo.Context) error {
		return getArtifact(c, deps.Artifacts, logger)
	})

	citizen := requireCitizen(deps.Tokens, logger)

	v1.GET("/transcripts", func(c echo.Context) error {
		return listTranscripts(c, deps.Transcripts, logger)
	}, citizen)

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		claims := claimsFrom(c)
		logger.Info("WebSocket connection authenticated",
			zap.String("userID", claims.UserID),
			zap.String("role", claims.Role))
		return websocket.HandleWebSocket(deps.Hub, c, claims.UserID, logger)
	}, citizen)
}

func listLanguages(c echo.Context) error {
	return c.JSON(http.StatusOK, LanguagesResponse{
		Default:   entities.DefaultLanguage,
		Languages: entities.LanguageProfiles(),
	})
}

// issueToken hands out a citizen token for development. A user_id is
// generated when the request doesn't carry one.
func issueToken(c echo.Context, tokens *auth.TokenService, logger *zap.Logger) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind token request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.UserID == "" {
		req.UserID = uuid.New().String()
	}
	if len(req.UserID) > 128 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_user_id",
			Message: "user_id must be at most 128 characters",
		})
	}

	token, expiresAt, err := tokens.GenerateCitizenToken(req.UserID)
	if err != nil {
		logger.Error("Failed to generate citizen token",
			zap.String("userID", req.UserID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	logger.Info("Development token issued", zap.String("userID", req.UserID))

	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    req.UserID,
	})
}

// getArtifact serves recorded audio. Artifact IDs are unguessable UUIDs, so
// the URL itself is the capability, as with a browser object URL.
func getArtifact(c echo.Context, artifacts repositories.ArtifactRepository, logger *zap.Logger) error {
	id := c.Param("id")
	art, err := artifacts.Get(c.Request().Context(), id)
	if errors.Is(err, repositories.ErrNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Recording not found or already released",
		})
	}
	if err != nil {
		logger.Error("Failed to load artifact",
			zap.String("artifactID", id),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to load recording",
		})
	}

	if download, _ := strconv.ParseBool(c.QueryParam("download")); download {
		c.Response().Header().Set(echo.HeaderContentDisposition,
			fmt.Sprintf("attachment; filename=%q", art.FileName()))
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, art.ContentType, art.Data)
}

func listTranscripts(c echo.Context, transcripts *usecase.TranscriptService, logger *zap.Logger) error {
	claims := claimsFrom(c)

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_limit",
				Message: "limit must be a positive number",
			})
		}
		limit = n
	}

	records, err := transcripts.List(c.Request().Context(), claims.UserID, limit)
	if err != nil {
		logger.Error("Failed to list transcripts",
			zap.String("userID", claims.UserID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to list transcripts",
		})
	}

	return c.JSON(http.StatusOK, TranscriptsResponse{
		Transcripts: records,
		Count:       len(records),
	})
}
