package ws

import (
	"fmt"
	"log"

	"github.com/pdf-share-relay/backend/internal/model"
	"github.com/pdf-share-relay/backend/internal/registry"
	"github.com/pdf-share-relay/backend/internal/session"
)

// Broadcaster fans artifacts and positions out to a session's guests.
// Sends only enqueue; each client's write pump does the socket I/O.
type Broadcaster struct {
	hub      *Hub
	manager  *session.Manager
	registry *registry.Registry
}

// NewBroadcaster creates a new Broadcaster.
func NewBroadcaster(hub *Hub, manager *session.Manager, reg *registry.Registry) *Broadcaster {
	return &Broadcaster{
		hub:      hub,
		manager:  manager,
		registry: reg,
	}
}

// failure is a guest a fan-out could not reach.
type failure struct {
	guestID string
	err     error
}

// Artifact sends the session's current artifact followed by its position to
// every guest. Guests that cannot take the frames are pruned. It returns the
// number of guests that received both.
func (b *Broadcaster) Artifact(sessionID string) (int, error) {
	return b.fanOut(sessionID, true)
}

// Position sends the session's current position to its guests only.
func (b *Broadcaster) Position(sessionID string) (int, error) {
	return b.fanOut(sessionID, false)
}

// fanOut queues frames for every guest inside one manager view, so guests
// always see the session's changes in the order they were made.
func (b *Broadcaster) fanOut(sessionID string, withArtifact bool) (int, error) {
	delivered := 0
	var failed []failure
	err := b.manager.Deliver(sessionID, func(v session.View) {
		var artifact []byte
		if withArtifact {
			if v.Artifact == nil {
				return
			}
			artifact = v.Artifact
		}
		page := pageMessage(v.Position)
		for _, guestID := range v.Guests {
			if err := b.deliver(guestID, artifact, page); err != nil {
				failed = append(failed, failure{guestID: guestID, err: err})
				continue
			}
			delivered++
		}
	})
	if err != nil {
		return 0, err
	}
	for _, f := range failed {
		b.prune(sessionID, f.guestID, f.err)
	}
	return delivered, nil
}

// CatchUp brings one guest up to date: the artifact if there is one, then
// the position.
func (b *Broadcaster) CatchUp(sessionID, guestID string) error {
	var sendErr error
	err := b.manager.Deliver(sessionID, func(v session.View) {
		sendErr = b.deliver(guestID, v.Artifact, pageMessage(v.Position))
	})
	if err != nil {
		return err
	}
	if sendErr != nil {
		b.prune(sessionID, guestID, sendErr)
		return sendErr
	}
	return nil
}

// ToHost delivers msg to the session's host alone.
func (b *Broadcaster) ToHost(sessionID string, msg any) error {
	hostID, err := b.manager.HostOf(sessionID)
	if err != nil {
		return err
	}
	client := b.hub.Get(hostID)
	if hostID == "" || client == nil {
		return fmt.Errorf("session %s has no open host: %w", sessionID, model.ErrDelivery)
	}
	return client.SendJSON(msg)
}

func (b *Broadcaster) deliver(clientID string, artifact []byte, page *Message) error {
	client := b.hub.Get(clientID)
	if client == nil {
		return fmt.Errorf("client %s not open: %w", clientID, model.ErrDelivery)
	}
	if artifact != nil {
		if err := client.SendBinary(artifact); err != nil {
			return err
		}
	}
	return client.SendJSON(page)
}

func (b *Broadcaster) prune(sessionID, guestID string, cause error) {
	if b.manager.RemoveGuest(sessionID, guestID) {
		b.registry.Unbind(guestID, sessionID)
		log.Printf("Pruned guest %s from session %s: %v", guestID, sessionID, cause)
	}
}
