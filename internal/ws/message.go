package ws

import (
	"encoding/json"

	"github.com/pdf-share-relay/backend/internal/model"
)

// MessageType represents the type of a JSON control message.
type MessageType string

const (
	// Client -> Server message types
	MessageTypeRegister      MessageType = "register"
	MessageTypeCreateSession MessageType = "create_session"
	MessageTypePageRequest   MessageType = "page_request"
	MessageTypePing          MessageType = "ping"
	MessageTypeTest          MessageType = "test"
	MessageTypeDebugRequest  MessageType = "debug_request"

	// Host -> Server -> Guests
	MessageTypePage MessageType = "page"

	// Server -> Client message types
	MessageTypeSessionCreated MessageType = "session_created"
	MessageTypeSessionJoined  MessageType = "session_joined"
	MessageTypeSessionError   MessageType = "session_error"
	MessageTypePong           MessageType = "pong"
	MessageTypeTestResponse   MessageType = "test_response"
	MessageTypeDebugResponse  MessageType = "debug_response"
)

// Page navigation actions carried by page_request.
const (
	ActionNext = "next"
	ActionPrev = "prev"
)

// Message is the JSON control message exchanged on the socket. Only the
// fields relevant to Type are set.
type Message struct {
	Type MessageType `json:"type"`

	Role      string `json:"role,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	FileName  string `json:"fileName,omitempty"`
	FileSize  int64  `json:"fileSize,omitempty"`
	Message   string `json:"message,omitempty"`

	Page          int    `json:"page,omitempty"`
	Action        string `json:"action,omitempty"`
	CurrentPage   int    `json:"currentPage,omitempty"`
	RequestedPage int    `json:"requestedPage,omitempty"`
	GuestID       string `json:"guestId,omitempty"`

	// Timestamps are echoed back verbatim.
	Timestamp         json.RawMessage `json:"timestamp,omitempty"`
	ServerTime        int64           `json:"serverTime,omitempty"`
	OriginalMessage   string          `json:"originalMessage,omitempty"`
	ReceivedTimestamp json.RawMessage `json:"receivedTimestamp,omitempty"`
	ResponseTimestamp int64           `json:"responseTimestamp,omitempty"`

	ClientInfo json.RawMessage `json:"clientInfo,omitempty"`
}

// DebugConnections lists open connection ids by role.
type DebugConnections struct {
	Hosts       []string `json:"hosts"`
	Guests      []string `json:"guests"`
	TotalHosts  int      `json:"totalHosts"`
	TotalGuests int      `json:"totalGuests"`
	Unset       int      `json:"unset"`
}

// DebugResponse is the reply to debug_request.
type DebugResponse struct {
	Type        MessageType         `json:"type"`
	ServerTime  string              `json:"serverTime"`
	Connections DebugConnections    `json:"connections"`
	Sessions    []model.SessionInfo `json:"sessions"`
	SessionID   string              `json:"sessionId,omitempty"`
	CurrentPage int                 `json:"currentPage"`
	HasPDF      bool                `json:"hasPdf"`
	PDFSize     int                 `json:"pdfSize"`
	ClientInfo  json.RawMessage     `json:"clientInfo,omitempty"`
}

func pageMessage(page int) *Message {
	return &Message{Type: MessageTypePage, Page: page}
}

func sessionError(message string) *Message {
	return &Message{Type: MessageTypeSessionError, Message: message}
}
