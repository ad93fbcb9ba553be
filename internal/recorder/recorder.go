// Package recorder writes a per-session timeline of uploads and page changes.
package recorder

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/pdf-share-relay/backend/internal/model"
)

// Recorder keeps one Timeline per live session under dir. It satisfies the
// session manager's observer interface.
type Recorder struct {
	dir       string
	mu        sync.Mutex
	timelines map[string]*Timeline
}

// New creates a Recorder writing into dir, creating it if needed.
func New(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create record dir: %w", err)
	}
	return &Recorder{
		dir:       dir,
		timelines: make(map[string]*Timeline),
	}, nil
}

// Path returns the file a session created at info.CreatedAt is recorded to.
func (r *Recorder) Path(info model.SessionInfo) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s-%d.jsonl", info.ID, info.CreatedAt.Unix()))
}

func (r *Recorder) SessionCreated(info model.SessionInfo) {
	timeline, err := NewTimeline(r.Path(info), info.CreatedAt)
	if err != nil {
		log.Printf("Failed to start recording for session %s: %v", info.ID, err)
		return
	}
	if err := timeline.WriteHeader(info.ID, info.FileName); err != nil {
		log.Printf("Failed to write recording header for session %s: %v", info.ID, err)
	}

	r.mu.Lock()
	old := r.timelines[info.ID]
	r.timelines[info.ID] = timeline
	r.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

func (r *Recorder) ArtifactChanged(info model.SessionInfo) {
	if timeline := r.get(info.ID); timeline != nil {
		if err := timeline.Artifact(info.ArtifactDigest); err != nil {
			log.Printf("Failed to record upload for session %s: %v", info.ID, err)
		}
	}
}

func (r *Recorder) PositionChanged(info model.SessionInfo) {
	if timeline := r.get(info.ID); timeline != nil {
		if err := timeline.Page(info.Position); err != nil {
			log.Printf("Failed to record page for session %s: %v", info.ID, err)
		}
	}
}

func (r *Recorder) SessionReaped(info model.SessionInfo) {
	r.mu.Lock()
	timeline := r.timelines[info.ID]
	delete(r.timelines, info.ID)
	r.mu.Unlock()

	if timeline != nil {
		timeline.Close()
	}
}

func (r *Recorder) get(id string) *Timeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timelines[id]
}

// Close closes every open timeline.
func (r *Recorder) Close() error {
	r.mu.Lock()
	timelines := r.timelines
	r.timelines = make(map[string]*Timeline)
	r.mu.Unlock()

	var firstErr error
	for _, timeline := range timelines {
		if err := timeline.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
