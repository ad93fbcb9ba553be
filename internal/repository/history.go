package repository

import (
	"context"
	"log"
	"time"

	"github.com/pdf-share-relay/backend/internal/model"
)

const historyWriteTimeout = 5 * time.Second

// History writes session changes to the repository. It satisfies the session
// manager's observer interface; write failures are logged, never returned.
type History struct {
	repo    *SessionRepository
	timeNow func() time.Time
}

// NewHistory creates a History over repo.
func NewHistory(repo *SessionRepository) *History {
	return &History{repo: repo, timeNow: time.Now}
}

func (h *History) write(what, id string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Printf("Failed to record %s for session %s: %v", what, id, err)
	}
}

func (h *History) SessionCreated(info model.SessionInfo) {
	h.write("creation", info.ID, func(ctx context.Context) error {
		return h.repo.Create(ctx, info)
	})
}

func (h *History) ArtifactChanged(info model.SessionInfo) {
	h.write("upload", info.ID, func(ctx context.Context) error {
		return h.repo.UpdateArtifact(ctx, info)
	})
}

func (h *History) PositionChanged(info model.SessionInfo) {
	h.write("position", info.ID, func(ctx context.Context) error {
		return h.repo.UpdatePosition(ctx, info.ID, info.Position, info.LastActivity)
	})
}

func (h *History) SessionReaped(info model.SessionInfo) {
	h.write("reap", info.ID, func(ctx context.Context) error {
		return h.repo.MarkReaped(ctx, info.ID, h.timeNow())
	})
}
