package model

import (
	"bytes"
	"time"
)

// Role is the part a connection plays in a session.
type Role string

const (
	RoleUnset Role = ""
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// ParseRole maps a wire role string to a Role. Anything other than "host"
// is treated as a guest, matching what viewer clients send.
func ParseRole(s string) Role {
	if s == string(RoleHost) {
		return RoleHost
	}
	return RoleGuest
}

// String returns the role name used in logs and debug output.
func (r Role) String() string {
	if r == RoleUnset {
		return "unset"
	}
	return string(r)
}

// ArtifactMagic is the signature every shared document must start with.
var ArtifactMagic = []byte("%PDF-")

// IsArtifact reports whether data starts with the PDF signature.
func IsArtifact(data []byte) bool {
	return len(data) >= len(ArtifactMagic) && bytes.HasPrefix(data, ArtifactMagic)
}

// Connection is the registry record for one open socket.
type Connection struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	SessionID   string    `json:"sessionId,omitempty"`
	RemoteAddr  string    `json:"remoteAddr,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
	LastSeen    time.Time `json:"lastSeen"`
}

// Counts summarizes the registry by role.
type Counts struct {
	Hosts  int `json:"hosts"`
	Guests int `json:"guests"`
	Unset  int `json:"unset"`
}

// Total returns the number of open connections.
func (c Counts) Total() int {
	return c.Hosts + c.Guests + c.Unset
}

// SessionMeta is what a host declares when it creates a session.
type SessionMeta struct {
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
}

// SessionInfo is a read-only copy of a session's state.
type SessionInfo struct {
	ID             string    `json:"id"`
	HostID         string    `json:"hostId,omitempty"`
	GuestCount     int       `json:"guestCount"`
	FileName       string    `json:"fileName,omitempty"`
	FileSize       int64     `json:"fileSize,omitempty"`
	Position       int       `json:"position"`
	HasArtifact    bool      `json:"hasArtifact"`
	ArtifactSize   int       `json:"artifactSize"`
	ArtifactDigest string    `json:"artifactDigest,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivity   time.Time `json:"lastActivity"`
}

// Age returns how long the session has existed as of now.
func (s *SessionInfo) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// Idle returns how long the session has gone without activity as of now.
func (s *SessionInfo) Idle(now time.Time) time.Duration {
	return now.Sub(s.LastActivity)
}
