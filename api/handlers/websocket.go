package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/pdf-share-relay/backend/internal/ws"
)

// WebSocketHandler accepts relay connections.
type WebSocketHandler struct {
	wsHandler *ws.Handler
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(wsHandler *ws.Handler) *WebSocketHandler {
	return &WebSocketHandler{
		wsHandler: wsHandler,
	}
}

// Connect handles GET /ws - upgrades to a relay connection.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	if err := h.wsHandler.HandleConnection(c.Writer, c.Request); err != nil {
		// The upgrader has already written the HTTP error.
		log.Printf("WebSocket upgrade from %s failed: %v", c.ClientIP(), err)
	}
}

// Root handles GET / - legacy clients open their socket on the root path.
// Plain requests get a short status line.
func (h *WebSocketHandler) Root(c *gin.Context) {
	if websocket.IsWebSocketUpgrade(c.Request) {
		h.Connect(c)
		return
	}
	c.String(http.StatusOK, "pdf share relay")
}

// RegisterRoutes registers the WebSocket routes on the engine root.
func (h *WebSocketHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws", h.Connect)
	r.GET("/", h.Root)
}
