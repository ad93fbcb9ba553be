// Package handlers provides HTTP API request handlers.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pdf-share-relay/backend/internal/model"
	"github.com/pdf-share-relay/backend/internal/repository"
	"github.com/pdf-share-relay/backend/internal/session"
)

// SessionHandler serves read-only views of live sessions and their history.
type SessionHandler struct {
	sessionManager *session.Manager
	repo           *repository.SessionRepository
}

// NewSessionHandler creates a new SessionHandler. repo may be nil, in which
// case the history endpoint reports it as unavailable.
func NewSessionHandler(sessionManager *session.Manager, repo *repository.SessionRepository) *SessionHandler {
	return &SessionHandler{
		sessionManager: sessionManager,
		repo:           repo,
	}
}

// SessionResponse represents a live session in API responses.
type SessionResponse struct {
	ID             string `json:"id"`
	HostConnected  bool   `json:"hostConnected"`
	GuestCount     int    `json:"guestCount"`
	FileName       string `json:"fileName,omitempty"`
	FileSize       int64  `json:"fileSize,omitempty"`
	Page           int    `json:"page"`
	HasPDF         bool   `json:"hasPdf"`
	PDFSize        int    `json:"pdfSize"`
	PDFDigest      string `json:"pdfDigest,omitempty"`
	Age            string `json:"age"`
	Idle           string `json:"idle"`
	CreatedAt      string `json:"createdAt"`
	LastActivityAt string `json:"lastActivityAt"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// toSessionResponse converts a model.SessionInfo to SessionResponse.
func toSessionResponse(s model.SessionInfo, now time.Time) *SessionResponse {
	return &SessionResponse{
		ID:             s.ID,
		HostConnected:  s.HostID != "",
		GuestCount:     s.GuestCount,
		FileName:       s.FileName,
		FileSize:       s.FileSize,
		Page:           s.Position,
		HasPDF:         s.HasArtifact,
		PDFSize:        s.ArtifactSize,
		PDFDigest:      s.ArtifactDigest,
		Age:            formatDuration(s.Age(now)),
		Idle:           formatDuration(s.Idle(now)),
		CreatedAt:      s.CreatedAt.Format(time.RFC3339),
		LastActivityAt: s.LastActivity.Format(time.RFC3339),
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return time.Duration(h*time.Hour + m*time.Minute + s*time.Second).String()
	}
	if m > 0 {
		return time.Duration(m*time.Minute + s*time.Second).String()
	}
	return time.Duration(s * time.Second).String()
}

// sendError sends an error response with the appropriate status code.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// List handles GET /api/sessions - lists live sessions.
func (h *SessionHandler) List(c *gin.Context) {
	now := time.Now()
	sessions := h.sessionManager.List()

	response := make([]*SessionResponse, len(sessions))
	for i, sess := range sessions {
		response[i] = toSessionResponse(sess, now)
	}

	c.JSON(http.StatusOK, response)
}

// Get handles GET /api/sessions/:id - gets a specific live session.
func (h *SessionHandler) Get(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Session ID is required")
		return
	}

	sess, err := h.sessionManager.Get(sessionID)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+sessionID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get session: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(sess, time.Now()))
}

// History handles GET /api/history - lists recorded sessions, newest first.
func (h *SessionHandler) History(c *gin.Context) {
	if h.repo == nil {
		sendError(c, http.StatusServiceUnavailable, "HISTORY_DISABLED", "Session history is not configured")
		return
	}

	limit := repository.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.repo.List(c.Request.Context(), limit)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list history: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, records)
}

// RegisterRoutes registers the session handler routes on a Gin router group.
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	{
		sessions.GET("", h.List)
		sessions.GET("/:id", h.Get)
	}
	rg.GET("/history", h.History)
}
