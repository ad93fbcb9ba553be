// Package registry keeps the per-connection identity records: role, session
// binding and liveness timestamps. Records are keyed by connection id and are
// never attached to the transport object itself.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/pdf-share-relay/backend/internal/model"
)

// Registry owns every open connection's record.
type Registry struct {
	mu      sync.RWMutex
	conns   map[string]*model.Connection
	timeNow func() time.Time
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		conns:   make(map[string]*model.Connection),
		timeNow: time.Now,
	}
}

// Register creates the record for a newly opened connection. Registering an id
// that is already present returns the existing record unchanged.
func (r *Registry) Register(id, remoteAddr string) model.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.conns[id]; ok {
		return *existing
	}

	now := r.timeNow()
	conn := &model.Connection{
		ID:          id,
		Role:        model.RoleUnset,
		RemoteAddr:  remoteAddr,
		ConnectedAt: now,
		LastSeen:    now,
	}
	r.conns[id] = conn
	return *conn
}

// SetRole replaces the connection's role and session binding. Setting the
// same role and session again is a no-op apart from refreshing LastSeen.
func (r *Registry) SetRole(id string, role model.Role, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return model.ErrConnectionNotFound
	}
	conn.Role = role
	conn.SessionID = sessionID
	conn.LastSeen = r.timeNow()
	return nil
}

// Unbind clears the session binding of a connection but keeps its role.
// It only acts when the connection is still bound to sessionID.
func (r *Registry) Unbind(id, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.conns[id]; ok && conn.SessionID == sessionID {
		conn.SessionID = ""
	}
}

// Deregister removes the record of a closed connection.
func (r *Registry) Deregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id string) (model.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	if !ok {
		return model.Connection{}, false
	}
	return *conn, true
}

// IsOpen reports whether a connection with this id is currently registered.
func (r *Registry) IsOpen(id string) bool {
	if id == "" {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[id]
	return ok
}

// Touch refreshes the LastSeen timestamp of a connection.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.conns[id]; ok {
		conn.LastSeen = r.timeNow()
	}
}

// Counts returns the number of connections per role.
func (r *Registry) Counts() model.Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var c model.Counts
	for _, conn := range r.conns {
		switch conn.Role {
		case model.RoleHost:
			c.Hosts++
		case model.RoleGuest:
			c.Guests++
		default:
			c.Unset++
		}
	}
	return c
}

// List returns copies of all records ordered by connection time.
func (r *Registry) List() []model.Connection {
	r.mu.RLock()
	result := make([]model.Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		result = append(result, *conn)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].ConnectedAt.Equal(result[j].ConnectedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].ConnectedAt.Before(result[j].ConnectedAt)
	})
	return result
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
