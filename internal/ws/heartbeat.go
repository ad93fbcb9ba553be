package ws

import (
	"fmt"
	"time"
)

const (
	// DefaultHeartbeatInterval is how often a ping is sent to each peer.
	DefaultHeartbeatInterval = 30 * time.Second

	// Time allowed to write a ping control frame.
	writeWait = 10 * time.Second
)

// Heartbeat schedules liveness probes for one connection.
type Heartbeat struct {
	interval time.Duration
}

// NewHeartbeat creates a heartbeat with the given probe interval.
func NewHeartbeat(interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Heartbeat{interval: interval}
}

// Interval returns the probe period.
func (h *Heartbeat) Interval() time.Duration {
	return h.interval
}

// PongWait is how long a connection may stay silent before its read times out.
func (h *Heartbeat) PongWait() time.Duration {
	return 2 * h.interval
}

// Run calls ping on every tick until done is closed. The first failed ping
// stops the schedule and is passed to onFail.
func (h *Heartbeat) Run(done <-chan struct{}, ping func() error, onFail func(error)) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := ping(); err != nil {
				if onFail != nil {
					onFail(fmt.Errorf("heartbeat: %w", err))
				}
				return
			}
		}
	}
}
