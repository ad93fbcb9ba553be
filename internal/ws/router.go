package ws

import (
	"errors"
	"log"
	"time"

	"github.com/pdf-share-relay/backend/internal/model"
	"github.com/pdf-share-relay/backend/internal/registry"
	"github.com/pdf-share-relay/backend/internal/session"
)

// Router dispatches classified frames from one connection. Session-scoped
// handling takes precedence; the legacy lobby is used only when the
// connection has no session of its own.
type Router struct {
	registry    *registry.Registry
	manager     *session.Manager
	hub         *Hub
	broadcaster *Broadcaster
	timeNow     func() time.Time
}

// NewRouter creates a new Router.
func NewRouter(reg *registry.Registry, manager *session.Manager, hub *Hub, broadcaster *Broadcaster) *Router {
	return &Router{
		registry:    reg,
		manager:     manager,
		hub:         hub,
		broadcaster: broadcaster,
		timeNow:     time.Now,
	}
}

// Open records a newly accepted client.
func (r *Router) Open(client *Client, remoteAddr string) {
	r.registry.Register(client.ID(), remoteAddr)
	r.hub.Register(client)
}

// Close runs the standard cleanup for a closed connection. Sessions hosted by
// the connection are kept for the reaper.
func (r *Router) Close(id string) {
	if conn, ok := r.registry.Get(id); ok {
		switch conn.Role {
		case model.RoleHost:
			r.manager.DetachHost(id)
		case model.RoleGuest:
			r.manager.Leave(id)
		}
		log.Printf("Connection %s closed (role %s, session %q)", id, conn.Role, conn.SessionID)
	}
	r.registry.Deregister(id)
	r.hub.Unregister(id)
}

// HandleFrame classifies and routes one inbound frame. Protocol errors are
// logged and the frame is dropped.
func (r *Router) HandleFrame(client *Client, messageType int, data []byte) {
	frame, err := ClassifyFrame(messageType, data)
	if err != nil {
		log.Printf("Dropped frame from %s: %v", client.ID(), err)
		return
	}
	r.Handle(client, frame)
}

// Handle routes a classified frame. A panic in a handler is logged and does
// not affect other connections.
func (r *Router) Handle(client *Client, frame Frame) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("Recovered from panic handling frame from %s: %v", client.ID(), p)
		}
	}()

	r.registry.Touch(client.ID())

	conn, ok := r.registry.Get(client.ID())
	if !ok {
		log.Printf("Frame from unregistered connection %s dropped", client.ID())
		return
	}

	if frame.Kind == FrameArtifact {
		r.handleArtifact(client, conn, frame.Data)
		return
	}

	msg := frame.Message
	switch msg.Type {
	case MessageTypeRegister:
		r.handleRegister(client, conn, msg)
	case MessageTypeCreateSession:
		r.handleCreateSession(client, conn, msg)
	case MessageTypePage:
		r.handlePage(conn, msg)
	case MessageTypePageRequest:
		r.handlePageRequest(conn, msg)
	case MessageTypePing:
		r.reply(client, &Message{
			Type:       MessageTypePong,
			Timestamp:  msg.Timestamp,
			ServerTime: r.timeNow().UnixMilli(),
		})
	case MessageTypeTest:
		r.reply(client, &Message{
			Type:              MessageTypeTestResponse,
			OriginalMessage:   msg.Message,
			ReceivedTimestamp: msg.Timestamp,
			ResponseTimestamp: r.timeNow().UnixMilli(),
		})
	case MessageTypeDebugRequest:
		r.reply(client, r.debugSnapshot(conn, msg))
	default:
		log.Printf("Unknown message type %q from %s dropped", msg.Type, conn.ID)
	}
}

func (r *Router) handleRegister(client *Client, conn model.Connection, msg *Message) {
	if model.ParseRole(msg.Role) == model.RoleHost {
		if conn.Role == model.RoleGuest {
			r.manager.Leave(conn.ID)
		}
		// A host keeps only a session it already hosts; a supplied sessionId
		// does not confer ownership.
		keep := ""
		if r.manager.IsHost(conn.SessionID, conn.ID) {
			keep = conn.SessionID
		}
		if msg.SessionID != "" && msg.SessionID != keep {
			log.Printf("Host %s registered with session %s it does not own; ignored", conn.ID, msg.SessionID)
		}
		r.setRole(conn.ID, model.RoleHost, keep)
		log.Printf("Registered host %s", conn.ID)
		return
	}

	target := msg.SessionID
	if target == "" {
		target = r.manager.EnsureLobby()
	}
	if err := r.manager.JoinSession(target, conn.ID); err != nil {
		log.Printf("Guest %s failed to join %s: %v", conn.ID, target, err)
		r.reply(client, sessionError(errorText(err)))
		return
	}
	if conn.Role == model.RoleHost {
		r.manager.DetachHost(conn.ID)
	}
	if !r.bindGuest(conn.ID, target) {
		log.Printf("Session %s ended while guest %s was joining", target, conn.ID)
		r.reply(client, sessionError("session expired"))
		return
	}
	log.Printf("Registered guest %s in session %s", conn.ID, target)

	if msg.SessionID != "" {
		r.reply(client, &Message{
			Type:      MessageTypeSessionJoined,
			SessionID: target,
			Message:   "Joined session",
		})
	}
	if err := r.broadcaster.CatchUp(target, conn.ID); err != nil {
		log.Printf("Catch-up for guest %s failed: %v", conn.ID, err)
	}
}

func (r *Router) handleCreateSession(client *Client, conn model.Connection, msg *Message) {
	if conn.Role == model.RoleGuest {
		r.manager.Leave(conn.ID)
	}
	id, created, err := r.manager.CreateSession(conn.ID, model.SessionMeta{
		FileName: msg.FileName,
		FileSize: msg.FileSize,
	})
	if err != nil {
		log.Printf("Create session for %s failed: %v", conn.ID, err)
		r.reply(client, sessionError(errorText(err)))
		return
	}
	r.setRole(conn.ID, model.RoleHost, id)
	if created {
		log.Printf("Created session %s for host %s (%s, %d bytes)", id, conn.ID, msg.FileName, msg.FileSize)
	}
	r.reply(client, &Message{Type: MessageTypeSessionCreated, SessionID: id})
}

func (r *Router) handlePage(conn model.Connection, msg *Message) {
	if conn.Role != model.RoleHost {
		log.Printf("Page change from non-host %s dropped", conn.ID)
		return
	}
	if msg.Page < 1 {
		log.Printf("Invalid page %d from host %s dropped", msg.Page, conn.ID)
		return
	}

	id := r.hostSession(conn)
	if err := r.manager.SetPosition(id, msg.Page); err != nil {
		log.Printf("Set position on %s failed: %v", id, err)
		return
	}
	if _, err := r.broadcaster.Position(id); err != nil {
		log.Printf("Position broadcast on %s failed: %v", id, err)
	}
}

func (r *Router) handlePageRequest(conn model.Connection, msg *Message) {
	if conn.Role != model.RoleGuest || conn.SessionID == "" {
		log.Printf("Page request from %s without a guest session dropped", conn.ID)
		return
	}

	var requested int
	switch msg.Action {
	case ActionNext:
		requested = msg.CurrentPage + 1
	case ActionPrev:
		requested = max(1, msg.CurrentPage-1)
	default:
		log.Printf("Page request with unknown action %q from %s dropped", msg.Action, conn.ID)
		return
	}

	advisory := &Message{
		Type:          MessageTypePageRequest,
		Action:        msg.Action,
		CurrentPage:   msg.CurrentPage,
		RequestedPage: requested,
		GuestID:       conn.ID,
	}
	if err := r.broadcaster.ToHost(conn.SessionID, advisory); err != nil {
		log.Printf("Page request from %s not forwarded: %v", conn.ID, err)
	}
}

func (r *Router) handleArtifact(client *Client, conn model.Connection, data []byte) {
	switch conn.Role {
	case model.RoleGuest:
		log.Printf("Upload from guest %s ignored", conn.ID)
		return
	case model.RoleUnset:
		r.setRole(conn.ID, model.RoleHost, "")
		conn.Role = model.RoleHost
		conn.SessionID = ""
		log.Printf("Unregistered connection %s promoted to host by upload", conn.ID)
	}

	id := r.hostSession(conn)
	info, err := r.manager.SetArtifact(id, data)
	if err != nil {
		log.Printf("Upload from %s to %s rejected: %v", conn.ID, id, err)
		r.reply(client, sessionError(errorText(err)))
		return
	}

	delivered, err := r.broadcaster.Artifact(id)
	if err != nil {
		log.Printf("Artifact broadcast on %s failed: %v", id, err)
		return
	}
	log.Printf("Artifact %s (%d bytes) on session %s delivered to %d guests", info.ArtifactDigest[:12], info.ArtifactSize, id, delivered)
}

// hostSession returns the session a host acts on: its own if it still hosts
// one, otherwise the lobby, which it claims.
func (r *Router) hostSession(conn model.Connection) string {
	if conn.SessionID != "" && r.manager.IsHost(conn.SessionID, conn.ID) {
		return conn.SessionID
	}
	id := r.manager.ClaimLobby(conn.ID)
	r.setRole(conn.ID, model.RoleHost, id)
	return id
}

// bindGuest records the guest's session binding, then confirms the session
// still holds the guest. A reap that ran in between leaves it unbound.
func (r *Router) bindGuest(guestID, sessionID string) bool {
	r.setRole(guestID, model.RoleGuest, sessionID)
	if current, ok := r.manager.SessionOfGuest(guestID); ok && current == sessionID {
		return true
	}
	r.registry.Unbind(guestID, sessionID)
	return false
}

// NotifyReaped unbinds the guests of reaped sessions and tells them why.
func (r *Router) NotifyReaped(reaped []session.Reaped) {
	for _, s := range reaped {
		for _, guestID := range s.Guests {
			r.registry.Unbind(guestID, s.Info.ID)
			if client := r.hub.Get(guestID); client != nil {
				r.reply(client, sessionError("session expired"))
			}
		}
	}
}

func (r *Router) debugSnapshot(conn model.Connection, msg *Message) *DebugResponse {
	resp := &DebugResponse{
		Type:       MessageTypeDebugResponse,
		ServerTime: r.timeNow().UTC().Format(time.RFC3339),
		Sessions:   r.manager.List(),
		ClientInfo: msg.ClientInfo,
		Connections: DebugConnections{
			Hosts:  []string{},
			Guests: []string{},
		},
	}

	for _, c := range r.registry.List() {
		switch c.Role {
		case model.RoleHost:
			resp.Connections.Hosts = append(resp.Connections.Hosts, c.ID)
		case model.RoleGuest:
			resp.Connections.Guests = append(resp.Connections.Guests, c.ID)
		default:
			resp.Connections.Unset++
		}
	}
	resp.Connections.TotalHosts = len(resp.Connections.Hosts)
	resp.Connections.TotalGuests = len(resp.Connections.Guests)

	id := conn.SessionID
	if id == "" {
		id = session.LobbyID
	}
	if info, err := r.manager.Get(id); err == nil {
		resp.SessionID = id
		resp.CurrentPage = info.Position
		resp.HasPDF = info.HasArtifact
		resp.PDFSize = info.ArtifactSize
	}
	return resp
}

func (r *Router) setRole(id string, role model.Role, sessionID string) {
	if err := r.registry.SetRole(id, role, sessionID); err != nil {
		log.Printf("Failed to set role for %s: %v", id, err)
	}
}

func (r *Router) reply(client *Client, v any) {
	if err := client.SendJSON(v); err != nil {
		log.Printf("Failed to reply to %s: %v", client.ID(), err)
	}
}

func errorText(err error) string {
	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		return "Session not found"
	case errors.Is(err, model.ErrInvalidArtifact):
		return "Invalid PDF data"
	}
	return err.Error()
}
