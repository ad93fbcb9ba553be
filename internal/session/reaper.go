package session

import (
	"context"
	"log"
	"time"
)

// DefaultReapInterval is how often the reaper sweeps when none is configured.
const DefaultReapInterval = 30 * time.Minute

// ReapFunc is called with every batch of sessions removed by a sweep.
type ReapFunc func(reaped []Reaped)

// Reaper periodically removes sessions whose host is gone and that have been
// idle for longer than the manager's retention.
type Reaper struct {
	manager  *Manager
	interval time.Duration
	onReap   ReapFunc
	timeNow  func() time.Time
}

// NewReaper creates a reaper for manager. onReap may be nil.
func NewReaper(manager *Manager, interval time.Duration, onReap ReapFunc) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	return &Reaper{
		manager:  manager,
		interval: interval,
		onReap:   onReap,
		timeNow:  time.Now,
	}
}

// Sweep runs one reap pass at now and returns what was removed.
func (r *Reaper) Sweep(now time.Time) []Reaped {
	reaped := r.manager.Reap(now)
	if len(reaped) == 0 {
		return nil
	}

	for _, s := range reaped {
		log.Printf("Reaped session %s (idle %s, %d guests)", s.Info.ID, s.Info.Idle(now).Round(time.Second), len(s.Guests))
	}
	if r.onReap != nil {
		r.onReap(reaped)
	}
	return reaped
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(r.timeNow())
		}
	}
}
