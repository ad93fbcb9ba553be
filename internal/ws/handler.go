package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandlerConfig holds per-connection transport settings.
type HandlerConfig struct {
	HeartbeatInterval time.Duration
	SendQueueSize     int
	// MaxArtifactBytes caps inbound frame size; 0 means unlimited.
	MaxArtifactBytes int64
}

// Handler upgrades HTTP requests and runs the pumps of each connection.
type Handler struct {
	router    *Router
	heartbeat *Heartbeat
	config    HandlerConfig
}

// NewHandler creates a new WebSocket handler.
func NewHandler(router *Router, config HandlerConfig) *Handler {
	if config.SendQueueSize <= 0 {
		config.SendQueueSize = DefaultSendQueueSize
	}
	return &Handler{
		router:    router,
		heartbeat: NewHeartbeat(config.HeartbeatInterval),
		config:    config,
	}
}

// HandleConnection upgrades the request and starts serving the connection.
// It returns once the pumps are running.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := NewClient(uuid.New().String(), conn, h.config.SendQueueSize)
	h.router.Open(client, r.RemoteAddr)
	log.Printf("New connection %s from %s", client.ID(), r.RemoteAddr)

	done := make(chan struct{})
	go h.writePump(client)
	go h.heartbeat.Run(done, func() error {
		return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
	}, func(err error) {
		log.Printf("Liveness check failed for %s: %v", client.ID(), err)
		conn.Close()
	})
	go h.readPump(client, done)

	return nil
}

// readPump feeds frames to the router in arrival order and runs cleanup when
// the connection ends.
func (h *Handler) readPump(client *Client, done chan struct{}) {
	conn := client.Conn()
	defer func() {
		close(done)
		h.router.Close(client.ID())
		conn.Close()
	}()

	if h.config.MaxArtifactBytes > 0 {
		conn.SetReadLimit(h.config.MaxArtifactBytes)
	}
	pongWait := h.heartbeat.PongWait()
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		h.router.registry.Touch(client.ID())
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error on %s: %v", client.ID(), err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		h.router.HandleFrame(client, messageType, data)
	}
}

// writePump drains the client's queue, one frame per queued message. Data
// frames carry no write deadline, so a stalled peer only stalls this pump.
func (h *Handler) writePump(client *Client) {
	conn := client.Conn()
	defer conn.Close()

	for msg := range client.send {
		if err := conn.WriteMessage(msg.messageType, msg.data); err != nil {
			log.Printf("Write to %s failed: %v", client.ID(), err)
			client.Close()
			for range client.send {
			}
			return
		}
	}
	conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
}
