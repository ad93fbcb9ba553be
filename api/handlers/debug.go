package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pdf-share-relay/backend/internal/buffer"
	"github.com/pdf-share-relay/backend/internal/model"
	"github.com/pdf-share-relay/backend/internal/session"
)

const defaultLogLines = 100

// ConnectionCounter reports open connections per role and open sockets.
type ConnectionCounter interface {
	Counts() model.Counts
	ClientCount() int
}

// DebugHandler serves health and diagnostic snapshots.
type DebugHandler struct {
	counter        ConnectionCounter
	sessionManager *session.Manager
	logTail        *buffer.LogTail
	startedAt      time.Time
}

// NewDebugHandler creates a new DebugHandler. logTail may be nil.
func NewDebugHandler(counter ConnectionCounter, sessionManager *session.Manager, logTail *buffer.LogTail) *DebugHandler {
	return &DebugHandler{
		counter:        counter,
		sessionManager: sessionManager,
		logTail:        logTail,
		startedAt:      time.Now(),
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string       `json:"status"`
	Uptime      string       `json:"uptime"`
	Connections model.Counts `json:"connections"`
	Sockets     int          `json:"sockets"`
	Sessions    int          `json:"sessions"`
}

// DebugResponse is the body of GET /api/debug.
type DebugResponse struct {
	ServerTime  string              `json:"serverTime"`
	Connections model.Counts        `json:"connections"`
	Sessions    []model.SessionInfo `json:"sessions"`
	Logs        []string            `json:"logs"`
}

// Health handles GET /health.
func (h *DebugHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		Uptime:      formatDuration(time.Since(h.startedAt)),
		Connections: h.counter.Counts(),
		Sockets:     h.counter.ClientCount(),
		Sessions:    h.sessionManager.Count(),
	})
}

// Debug handles GET /api/debug?lines=N.
func (h *DebugHandler) Debug(c *gin.Context) {
	lines := defaultLogLines
	if raw := c.Query("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "lines must be a non-negative integer")
			return
		}
		lines = n
	}

	logs := []string{}
	if h.logTail != nil {
		logs = h.logTail.Lines(lines)
	}

	c.JSON(http.StatusOK, DebugResponse{
		ServerTime:  time.Now().UTC().Format(time.RFC3339),
		Connections: h.counter.Counts(),
		Sessions:    h.sessionManager.List(),
		Logs:        logs,
	})
}

// RegisterRoutes registers the debug route on an API group.
func (h *DebugHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/debug", h.Debug)
}
