package session

import (
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/pdf-share-relay/backend/internal/model"
)

// LobbyID is the session shared by legacy clients that never name a session:
// guests that register without a sessionId and hosts that upload without one.
const LobbyID = "legacy"

const (
	// DefaultRetention is how long a hostless session survives without activity.
	DefaultRetention = 2 * time.Hour

	initialPosition = 1
)

// HostLookup reports whether a connection is still open.
type HostLookup interface {
	IsOpen(id string) bool
}

// Observer is notified after session state changes. Each observer receives
// its notifications in order on a goroutine of its own, never on the
// goroutine that made the change.
type Observer interface {
	SessionCreated(info model.SessionInfo)
	ArtifactChanged(info model.SessionInfo)
	PositionChanged(info model.SessionInfo)
	SessionReaped(info model.SessionInfo)
}

// Session is the live state of one sharing context.
type Session struct {
	id           string
	hostID       string
	guests       map[string]struct{}
	artifact     []byte
	digest       string
	position     int
	meta         model.SessionMeta
	createdAt    time.Time
	lastActivity time.Time
}

func (s *Session) info() model.SessionInfo {
	return model.SessionInfo{
		ID:             s.id,
		HostID:         s.hostID,
		GuestCount:     len(s.guests),
		FileName:       s.meta.FileName,
		FileSize:       s.meta.FileSize,
		Position:       s.position,
		HasArtifact:    s.artifact != nil,
		ArtifactSize:   len(s.artifact),
		ArtifactDigest: s.digest,
		CreatedAt:      s.createdAt,
		LastActivity:   s.lastActivity,
	}
}

// Reaped describes a session removed by Reap and the guests it still held.
type Reaped struct {
	Info   model.SessionInfo
	Guests []string
}

// Config holds configuration for the session manager.
type Config struct {
	Retention         time.Duration
	Observers         []Observer
	ObserverQueueSize int
}

// Manager is the process-wide session store.
type Manager struct {
	lookup    HostLookup
	retention time.Duration
	queueSize int
	observers []*dispatcher
	timeNow   func() time.Time

	mu           sync.RWMutex
	sessions     map[string]*Session
	hostSessions map[string]string // host connection id -> session it created
	guestOf      map[string]string // guest connection id -> session it joined
}

// NewManager creates a new session manager. lookup decides whether a
// session's host is still connected when reaping.
func NewManager(lookup HostLookup, config Config) *Manager {
	if config.Retention == 0 {
		config.Retention = DefaultRetention
	}
	if config.ObserverQueueSize <= 0 {
		config.ObserverQueueSize = DefaultObserverQueueSize
	}

	m := &Manager{
		lookup:       lookup,
		retention:    config.Retention,
		queueSize:    config.ObserverQueueSize,
		timeNow:      time.Now,
		sessions:     make(map[string]*Session),
		hostSessions: make(map[string]string),
		guestOf:      make(map[string]string),
	}
	for _, o := range config.Observers {
		m.observers = append(m.observers, newDispatcher(o, m.queueSize))
	}
	return m
}

// AddObserver registers an observer for subsequent changes.
func (m *Manager) AddObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, newDispatcher(o, m.queueSize))
}

func (m *Manager) observersLocked() []*dispatcher {
	return append([]*dispatcher(nil), m.observers...)
}

// notify queues fn for every observer. It never waits on an observer.
func notify(observers []*dispatcher, what, id string, fn func(Observer)) {
	for _, d := range observers {
		if !d.post(fn) {
			log.Printf("Observer %T queue full, dropped %s for session %s", d.observer, what, id)
		}
	}
}

// Flush waits until every observer has handled the notifications queued
// before the call.
func (m *Manager) Flush() {
	m.mu.RLock()
	observers := m.observersLocked()
	m.mu.RUnlock()

	for _, d := range observers {
		d.flush()
	}
}

func (m *Manager) newSessionLocked(id, hostID string, meta model.SessionMeta) *Session {
	now := m.timeNow()
	sess := &Session{
		id:           id,
		hostID:       hostID,
		guests:       make(map[string]struct{}),
		position:     initialPosition,
		meta:         meta,
		createdAt:    now,
		lastActivity: now,
	}
	m.sessions[id] = sess
	return sess
}

// CreateSession allocates a session owned by hostID. If hostID already owns
// a live session its id is returned unchanged and created is false.
func (m *Manager) CreateSession(hostID string, meta model.SessionMeta) (id string, created bool, err error) {
	if hostID == "" {
		return "", false, fmt.Errorf("create session: %w", model.ErrConnectionNotFound)
	}

	m.mu.Lock()
	if existing, ok := m.hostSessions[hostID]; ok {
		if sess, live := m.sessions[existing]; live {
			sess.lastActivity = m.timeNow()
			m.mu.Unlock()
			return existing, false, nil
		}
		delete(m.hostSessions, hostID)
	}

	id = uuid.New().String()
	sess := m.newSessionLocked(id, hostID, meta)
	m.hostSessions[hostID] = id
	info := sess.info()
	observers := m.observersLocked()
	m.mu.Unlock()

	notify(observers, "create", info.ID, func(o Observer) { o.SessionCreated(info) })
	return id, true, nil
}

// ClaimLobby makes hostID the host of the legacy lobby session, creating the
// lobby on first use. The most recent claim wins.
func (m *Manager) ClaimLobby(hostID string) string {
	m.mu.Lock()
	sess, ok := m.sessions[LobbyID]
	created := false
	if !ok {
		sess = m.newSessionLocked(LobbyID, hostID, model.SessionMeta{})
		created = true
	}
	if sess.hostID != hostID {
		if sess.hostID != "" {
			log.Printf("Lobby host changed from %s to %s", sess.hostID, hostID)
		}
		sess.hostID = hostID
	}
	sess.lastActivity = m.timeNow()
	info := sess.info()
	observers := m.observersLocked()
	m.mu.Unlock()

	if created {
		notify(observers, "create", info.ID, func(o Observer) { o.SessionCreated(info) })
	}
	return LobbyID
}

// EnsureLobby returns the lobby id, creating an unhosted lobby if needed.
func (m *Manager) EnsureLobby() string {
	m.mu.Lock()
	if _, ok := m.sessions[LobbyID]; ok {
		m.mu.Unlock()
		return LobbyID
	}
	info := m.newSessionLocked(LobbyID, "", model.SessionMeta{}).info()
	observers := m.observersLocked()
	m.mu.Unlock()

	notify(observers, "create", info.ID, func(o Observer) { o.SessionCreated(info) })
	return LobbyID
}

// JoinSession adds guestID to the guest set of session id. A guest that was
// in another session's guest set is moved.
func (m *Manager) JoinSession(id, guestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("join %s: %w", id, model.ErrSessionNotFound)
	}

	if prev, ok := m.guestOf[guestID]; ok && prev != id {
		if prevSess, live := m.sessions[prev]; live {
			delete(prevSess.guests, guestID)
		}
	}

	sess.guests[guestID] = struct{}{}
	sess.lastActivity = m.timeNow()
	m.guestOf[guestID] = id
	return nil
}

// Leave removes guestID from whichever session it joined.
func (m *Manager) Leave(guestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(guestID)
}

func (m *Manager) leaveLocked(guestID string) {
	id, ok := m.guestOf[guestID]
	if !ok {
		return
	}
	delete(m.guestOf, guestID)
	if sess, live := m.sessions[id]; live {
		delete(sess.guests, guestID)
	}
}

// RemoveGuest removes guestID from session id only. It reports whether the
// guest was a member.
func (m *Manager) RemoveGuest(id, guestID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return false
	}
	if _, member := sess.guests[guestID]; !member {
		return false
	}
	delete(sess.guests, guestID)
	if m.guestOf[guestID] == id {
		delete(m.guestOf, guestID)
	}
	return true
}

// DetachHost drops the host link of every session hostID was hosting. The
// sessions themselves are kept so the reaper can decide later.
func (m *Manager) DetachHost(hostID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.timeNow()
	for _, sess := range m.sessions {
		if sess.hostID == hostID {
			sess.hostID = ""
			sess.lastActivity = now
		}
	}
	delete(m.hostSessions, hostID)
}

// IsHost reports whether connID is the current host of session id.
func (m *Manager) IsHost(id, connID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	return ok && connID != "" && sess.hostID == connID
}

// HostOf returns the host connection id of session id, empty when hostless.
func (m *Manager) HostOf(id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return "", fmt.Errorf("host of %s: %w", id, model.ErrSessionNotFound)
	}
	return sess.hostID, nil
}

// SetArtifact validates data and replaces the session's snapshot with a copy
// of it. The previous snapshot is never modified.
func (m *Manager) SetArtifact(id string, data []byte) (model.SessionInfo, error) {
	if !model.IsArtifact(data) {
		return model.SessionInfo{}, model.ErrInvalidArtifact
	}

	snapshot := make([]byte, len(data))
	copy(snapshot, data)
	sum := blake3.Sum256(snapshot)
	digest := hex.EncodeToString(sum[:])

	m.mu.Lock()
	sess, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return model.SessionInfo{}, fmt.Errorf("upload to %s: %w", id, model.ErrSessionNotFound)
	}
	sess.artifact = snapshot
	sess.digest = digest
	sess.lastActivity = m.timeNow()
	info := sess.info()
	observers := m.observersLocked()
	m.mu.Unlock()

	notify(observers, "artifact", info.ID, func(o Observer) { o.ArtifactChanged(info) })
	return info, nil
}

// SetPosition records the session's current page.
func (m *Manager) SetPosition(id string, n int) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("position for %s: %w", id, model.ErrSessionNotFound)
	}
	sess.position = n
	sess.lastActivity = m.timeNow()
	info := sess.info()
	observers := m.observersLocked()
	m.mu.Unlock()

	notify(observers, "position", info.ID, func(o Observer) { o.PositionChanged(info) })
	return nil
}

// Snapshot returns the artifact reference and position captured together.
// The returned slice must not be modified.
func (m *Manager) Snapshot(id string) (artifact []byte, position int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, 0, fmt.Errorf("snapshot of %s: %w", id, model.ErrSessionNotFound)
	}
	return sess.artifact, sess.position, nil
}

// View is a consistent picture of one session for delivery.
type View struct {
	Artifact []byte
	Position int
	Guests   []string
}

// Deliver calls fn with the session's current view while holding the read
// lock, so no artifact or position change can land between reading the view
// and fn returning. fn must not block or call back into the manager. The
// artifact slice must not be modified.
func (m *Manager) Deliver(id string, fn func(View)) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("deliver on %s: %w", id, model.ErrSessionNotFound)
	}
	guests := make([]string, 0, len(sess.guests))
	for g := range sess.guests {
		guests = append(guests, g)
	}
	sort.Strings(guests)

	fn(View{Artifact: sess.artifact, Position: sess.position, Guests: guests})
	return nil
}

// Guests returns the guest ids of session id in a stable order.
func (m *Manager) Guests(id string) ([]string, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	if !ok {
		m.mu.RUnlock()
		return nil, fmt.Errorf("guests of %s: %w", id, model.ErrSessionNotFound)
	}
	guests := make([]string, 0, len(sess.guests))
	for g := range sess.guests {
		guests = append(guests, g)
	}
	m.mu.RUnlock()

	sort.Strings(guests)
	return guests, nil
}

// SessionOfGuest returns the session guestID belongs to.
func (m *Manager) SessionOfGuest(guestID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.guestOf[guestID]
	return id, ok
}

// Get returns a copy of session id's state.
func (m *Manager) Get(id string) (model.SessionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return model.SessionInfo{}, model.ErrSessionNotFound
	}
	return sess.info(), nil
}

// List returns copies of all sessions, oldest first.
func (m *Manager) List() []model.SessionInfo {
	m.mu.RLock()
	result := make([]model.SessionInfo, 0, len(m.sessions))
	for _, sess := range m.sessions {
		result = append(result, sess.info())
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Retention returns the idle period after which a hostless session is reaped.
func (m *Manager) Retention() time.Duration {
	return m.retention
}

// Reap removes every session whose host is not open and whose last activity
// is older than the retention period as of now.
func (m *Manager) Reap(now time.Time) []Reaped {
	m.mu.Lock()
	var reaped []Reaped
	for id, sess := range m.sessions {
		if sess.hostID != "" && m.lookup != nil && m.lookup.IsOpen(sess.hostID) {
			continue
		}
		if now.Sub(sess.lastActivity) <= m.retention {
			continue
		}

		guests := make([]string, 0, len(sess.guests))
		for g := range sess.guests {
			guests = append(guests, g)
			if m.guestOf[g] == id {
				delete(m.guestOf, g)
			}
		}
		sort.Strings(guests)

		if sess.hostID != "" && m.hostSessions[sess.hostID] == id {
			delete(m.hostSessions, sess.hostID)
		}
		delete(m.sessions, id)
		reaped = append(reaped, Reaped{Info: sess.info(), Guests: guests})
	}
	observers := m.observersLocked()
	m.mu.Unlock()

	for _, r := range reaped {
		info := r.Info
		notify(observers, "reap", info.ID, func(o Observer) { o.SessionReaped(info) })
	}
	return reaped
}

// Close drops all sessions and stops the observers once they have handled
// every queued notification.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.sessions = make(map[string]*Session)
	m.hostSessions = make(map[string]string)
	m.guestOf = make(map[string]string)
	observers := m.observers
	m.observers = nil
	m.mu.Unlock()

	for _, d := range observers {
		d.close()
	}
	return nil
}
