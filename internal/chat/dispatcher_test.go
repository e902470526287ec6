package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(NewRegistry(), NewPresenceTracker(), NewRoomIndex())
}

// recvFrame pops one queued outbound frame from the client, decoded into a
// generic map. Fails the test when nothing is queued.
func recvFrame(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case raw := <-c.send:
		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &frame))
		return frame
	default:
		t.Fatal("no frame queued")
		return nil
	}
}

func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func TestConnectRegistersEverywhere(t *testing.T) {
	d := newTestDispatcher()
	c := newTestClient("u1", "i1", 4)

	require.Nil(t, d.Connect(c))

	assert.True(t, d.registry.IsOnline("u1"))
	assert.True(t, d.rooms.Contains("i1", "u1"))
	rec, ok := d.presence.Get("u1")
	require.True(t, ok)
	assert.Equal(t, StatusOnline, rec.Status)
}

func TestSendToUserOffline(t *testing.T) {
	d := newTestDispatcher()
	assert.False(t, d.SendToUser("nobody", []byte(`{}`)))
}

func TestSendToUserDelivers(t *testing.T) {
	d := newTestDispatcher()
	c := newTestClient("u1", "i1", 4)
	d.Connect(c)

	require.True(t, d.SendToUser("u1", marshalFrame(pongFrame{Type: TypePong})))
	frame := recvFrame(t, c)
	assert.Equal(t, TypePong, frame["type"])
}

func TestSendFailureCleansUpAndNotifiesRoom(t *testing.T) {
	d := newTestDispatcher()
	stuck := newTestClient("u1", "i1", 0) // zero buffer: every enqueue fails
	witness := newTestClient("u2", "i1", 8)
	d.Connect(stuck)
	d.Connect(witness)
	drain(witness)

	assert.False(t, d.SendToUser("u1", []byte(`{}`)))

	// Cleanup totality: gone from registry and room, presence offline.
	assert.False(t, d.registry.IsOnline("u1"))
	assert.False(t, d.rooms.Contains("i1", "u1"))
	rec, ok := d.presence.Get("u1")
	require.True(t, ok)
	assert.Equal(t, StatusOffline, rec.Status)

	// The rest of the room hears about it.
	frame := recvFrame(t, witness)
	assert.Equal(t, TypeUserLeft, frame["type"])
	assert.Equal(t, "u1", frame["user_id"])
}

func TestBroadcastSnapshotIsolation(t *testing.T) {
	d := newTestDispatcher()
	a := newTestClient("a", "i1", 8)
	b := newTestClient("b", "i1", 0) // will fail mid-broadcast
	c := newTestClient("c", "i1", 8)
	d.Connect(a)
	d.Connect(b)
	d.Connect(c)
	drain(a)
	drain(c)

	d.BroadcastToInstitution("i1", marshalFrame(pongFrame{Type: TypePong}), "")

	// One recipient failing does not affect delivery to the others.
	assert.Equal(t, TypePong, recvFrame(t, a)["type"])
	assert.Equal(t, TypePong, recvFrame(t, c)["type"])

	// The room ends with exactly the failed member removed.
	assert.ElementsMatch(t, []string{"a", "c"}, d.rooms.Members("i1"))
	assert.False(t, d.registry.IsOnline("b"))
}

func TestBroadcastExcludesSender(t *testing.T) {
	d := newTestDispatcher()
	a := newTestClient("a", "i1", 8)
	b := newTestClient("b", "i1", 8)
	d.Connect(a)
	d.Connect(b)
	drain(a)
	drain(b)

	d.BroadcastToInstitution("i1", marshalFrame(pongFrame{Type: TypePong}), "a")

	assert.Empty(t, a.send)
	assert.Equal(t, TypePong, recvFrame(t, b)["type"])
}

func TestBroadcastStaysInsideInstitution(t *testing.T) {
	d := newTestDispatcher()
	a := newTestClient("a", "i1", 8)
	other := newTestClient("x", "i2", 8)
	d.Connect(a)
	d.Connect(other)
	drain(a)
	drain(other)

	d.BroadcastToInstitution("i1", marshalFrame(pongFrame{Type: TypePong}), "")

	assert.Equal(t, TypePong, recvFrame(t, a)["type"])
	assert.Empty(t, other.send)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	d := newTestDispatcher()
	c := newTestClient("u1", "i1", 4)
	d.Connect(c)

	assert.True(t, d.Disconnect("u1"))
	assert.False(t, d.Disconnect("u1"))
	assert.False(t, d.DisconnectClient(c))
}

func TestDisconnectStaleClientKeepsReplacement(t *testing.T) {
	d := newTestDispatcher()
	old := newTestClient("u1", "i1", 4)
	replacement := newTestClient("u1", "i1", 4)
	d.Connect(old)
	d.Connect(replacement)

	// Old session cleanup runs after the user reconnected.
	assert.False(t, d.DisconnectClient(old))

	got, ok := d.registry.Lookup("u1")
	require.True(t, ok)
	assert.Same(t, replacement, got)
	assert.True(t, d.rooms.Contains("i1", "u1"))
	rec, _ := d.presence.Get("u1")
	assert.Equal(t, StatusOnline, rec.Status)
}

func TestRoomMatchesRegistryAfterChurn(t *testing.T) {
	d := newTestDispatcher()
	users := []string{"a", "b", "c", "d"}
	clients := make(map[string]*Client)
	for _, id := range users {
		clients[id] = newTestClient(id, "i1", 16)
		d.Connect(clients[id])
	}
	d.Disconnect("b")
	d.Connect(newTestClient("b", "i1", 16))
	d.Disconnect("d")

	members := d.rooms.Members("i1")
	for _, id := range members {
		assert.True(t, d.registry.IsOnline(id), "room member %s has no registry entry", id)
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, members)
	assert.Equal(t, len(members), d.registry.Len())
}
