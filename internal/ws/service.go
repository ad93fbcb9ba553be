package ws

import (
	"github.com/pdf-share-relay/backend/internal/model"
	"github.com/pdf-share-relay/backend/internal/registry"
	"github.com/pdf-share-relay/backend/internal/session"
)

// Service wires the relay together: hub, broadcaster, router and handler
// over a shared registry and session manager.
type Service struct {
	registry    *registry.Registry
	manager     *session.Manager
	hub         *Hub
	broadcaster *Broadcaster
	router      *Router
	handler     *Handler
}

// NewService creates a new relay service.
func NewService(reg *registry.Registry, manager *session.Manager, config HandlerConfig) *Service {
	hub := NewHub()
	broadcaster := NewBroadcaster(hub, manager, reg)
	router := NewRouter(reg, manager, hub, broadcaster)

	return &Service{
		registry:    reg,
		manager:     manager,
		hub:         hub,
		broadcaster: broadcaster,
		router:      router,
		handler:     NewHandler(router, config),
	}
}

// Handler returns the WebSocket handler.
func (s *Service) Handler() *Handler {
	return s.handler
}

// Router returns the message router.
func (s *Service) Router() *Router {
	return s.router
}

// Hub returns the connection hub.
func (s *Service) Hub() *Hub {
	return s.hub
}

// SessionsReaped is passed to the session reaper so guests of expired
// sessions are unbound and notified.
func (s *Service) SessionsReaped(reaped []session.Reaped) {
	s.router.NotifyReaped(reaped)
}

// Counts returns the number of open connections per role.
func (s *Service) Counts() model.Counts {
	return s.registry.Counts()
}

// ClientCount returns the number of open sockets.
func (s *Service) ClientCount() int {
	return s.hub.ClientCount()
}

// Close closes all WebSocket connections.
func (s *Service) Close() {
	s.hub.Close()
}
