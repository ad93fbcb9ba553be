package ws

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/pdf-share-relay/backend/internal/model"
)

// DefaultSendQueueSize is the per-client outbound buffer length.
const DefaultSendQueueSize = 256

// outbound is one queued frame.
type outbound struct {
	messageType int
	data        []byte
}

// Client represents a WebSocket client connection. It carries transport
// state only; role and session binding live in the registry.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan outbound
	mu     sync.Mutex
	closed bool
}

// NewClient creates a new WebSocket client. conn may be nil in tests.
func NewClient(id string, conn *websocket.Conn, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = DefaultSendQueueSize
	}
	return &Client{
		id:   id,
		conn: conn,
		send: make(chan outbound, queueSize),
	}
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// Conn returns the underlying WebSocket connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

// SendBinary queues a binary frame.
func (c *Client) SendBinary(data []byte) error {
	return c.enqueue(outbound{messageType: websocket.BinaryMessage, data: data})
}

// SendText queues a text frame.
func (c *Client) SendText(data []byte) error {
	return c.enqueue(outbound{messageType: websocket.TextMessage, data: data})
}

// SendJSON marshals v and queues it as a text frame.
func (c *Client) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %T: %w", v, err)
	}
	return c.SendText(data)
}

// enqueue never blocks. A full queue closes the client.
func (c *Client) enqueue(msg outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("client %s closed: %w", c.id, model.ErrDelivery)
	}

	select {
	case c.send <- msg:
		return nil
	default:
		// Buffer full, close the client
		c.closeLocked()
		return fmt.Errorf("client %s send queue full: %w", c.id, model.ErrDelivery)
	}
}

// Close closes the client's send queue. The write pump then closes the socket.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// IsClosed returns true if the client is closed.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Hub indexes open clients by connection id.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.id] = client
}

// Unregister removes and closes the client with id.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	client, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()

	if ok {
		client.Close()
	}
}

// Get returns the client with id, or nil if not found.
func (h *Hub) Get(id string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[id]
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close closes all client connections.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
}
