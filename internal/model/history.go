package model

import "time"

// SessionRecord is the persisted history of one session. It is written as
// the session changes and never read back into live state.
type SessionRecord struct {
	ID             string     `json:"id"`
	FileName       string     `json:"fileName,omitempty"`
	FileSize       int64      `json:"fileSize,omitempty"`
	ArtifactSize   int        `json:"artifactSize"`
	ArtifactDigest string     `json:"artifactDigest,omitempty"`
	Position       int        `json:"position"`
	Uploads        int        `json:"uploads"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastActivity   time.Time  `json:"lastActivity"`
	ReapedAt       *time.Time `json:"reapedAt,omitempty"`
}

// Live reports whether the session has not been reaped.
func (r *SessionRecord) Live() bool {
	return r.ReapedAt == nil
}
