package chat

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"school-chat/internal/metrics"
)

// Dispatcher owns live delivery and the connect/disconnect transitions that
// keep the three registries consistent. It is, together with the session
// supervisor, the only writer of shared connection state.
type Dispatcher struct {
	registry *Registry
	presence *PresenceTracker
	rooms    *RoomIndex

	// transitions serializes connect/disconnect sequences so the room
	// index never diverges from the registry when the same user connects
	// and disconnects concurrently. Plain sends don't take it.
	transitions sync.Mutex
}

func NewDispatcher(registry *Registry, presence *PresenceTracker, rooms *RoomIndex) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		presence: presence,
		rooms:    rooms,
	}
}

// Connect installs c into all three registries in registry -> presence ->
// room order and returns the superseded connection for the same user, if
// any. The caller decides what to do with the old channel.
func (d *Dispatcher) Connect(c *Client) *Client {
	d.transitions.Lock()
	prev := d.registry.Register(c)
	d.presence.MarkOnline(c.UserID, c.InstitutionID)
	d.rooms.Join(c.InstitutionID, c.UserID)
	d.transitions.Unlock()

	if prev == nil {
		// A replacement connection is net zero; the superseded one never
		// reaches the Dec in DisconnectClient.
		metrics.ActiveConnections.Inc()
	}
	metrics.TotalConnections.Inc()
	return prev
}

// Disconnect tears down whatever connection is currently registered for
// userID. Returns false when the user has no live connection.
func (d *Dispatcher) Disconnect(userID string) bool {
	c, ok := d.registry.Lookup(userID)
	if !ok {
		return false
	}
	return d.DisconnectClient(c)
}

// DisconnectClient removes c from room -> presence -> registry, closes its
// channel, and tells the remaining room members the user left. It is
// idempotent, and a no-op (beyond closing c) when c has already been
// superseded by a newer connection for the same user.
func (d *Dispatcher) DisconnectClient(c *Client) bool {
	d.transitions.Lock()
	if cur, ok := d.registry.Lookup(c.UserID); !ok || cur != c {
		d.transitions.Unlock()
		c.close(0, "")
		return false
	}
	d.rooms.Leave(c.InstitutionID, c.UserID)
	d.presence.MarkOffline(c.UserID)
	d.registry.Unregister(c.UserID)
	d.transitions.Unlock()

	c.close(0, "")
	metrics.ActiveConnections.Dec()

	d.BroadcastToInstitution(c.InstitutionID, marshalFrame(userEventFrame{
		Type:      TypeUserLeft,
		UserID:    c.UserID,
		Timestamp: time.Now().UTC(),
	}), c.UserID)
	return true
}

// SendToUser attempts best-effort live delivery of frame to userID. An
// offline recipient is not an error; it just returns false. A failed write
// means the peer is gone, so the stale registration is cleaned up before
// returning.
func (d *Dispatcher) SendToUser(userID string, frame []byte) bool {
	c, ok := d.registry.Lookup(userID)
	if !ok {
		return false
	}
	if err := c.enqueue(frame); err != nil {
		log.Printf("delivery to %s failed: %v", userID, err)
		metrics.DeliveryFailures.Inc()
		d.DisconnectClient(c)
		return false
	}
	return true
}

// BroadcastToInstitution fans frame out to every connected member of the
// institution except excludeUserID. It iterates a membership snapshot and
// defers cleanup of failed members until the pass is done, so the room is
// never mutated while being walked.
func (d *Dispatcher) BroadcastToInstitution(institutionID string, frame []byte, excludeUserID string) {
	var failed []*Client
	for _, userID := range d.rooms.Members(institutionID) {
		if userID == excludeUserID {
			continue
		}
		c, ok := d.registry.Lookup(userID)
		if !ok {
			continue
		}
		if err := c.enqueue(frame); err != nil {
			log.Printf("broadcast to %s failed: %v", userID, err)
			metrics.DeliveryFailures.Inc()
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		d.DisconnectClient(c)
	}
}

// OnlineUsers returns the presence records of the institution's currently
// connected members.
func (d *Dispatcher) OnlineUsers(institutionID string) []PresenceRecord {
	return d.presence.Snapshot(d.rooms.Members(institutionID))
}

// CloseAll force-closes every live connection, for shutdown.
func (d *Dispatcher) CloseAll(reason string) {
	for _, c := range d.registry.Snapshot() {
		c.close(websocket.CloseGoingAway, reason)
		d.DisconnectClient(c)
	}
}
