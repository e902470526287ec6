package chat

import "sync"

// RoomIndex groups connected users by institution so broadcasts never cross
// tenant boundaries. Membership is always a subset of users with a live
// registry entry; the session lifecycle keeps the two in sync.
type RoomIndex struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{}
}

func NewRoomIndex() *RoomIndex {
	return &RoomIndex{rooms: make(map[string]map[string]struct{})}
}

// Join adds userID to the institution's room, creating the room lazily.
func (ri *RoomIndex) Join(institutionID, userID string) {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	room, ok := ri.rooms[institutionID]
	if !ok {
		room = make(map[string]struct{})
		ri.rooms[institutionID] = room
	}
	room[userID] = struct{}{}
}

// Leave removes userID from the room and reports whether it was a member.
// Empty rooms stay in place; room count is bounded by tenant count, not
// connection churn.
func (ri *RoomIndex) Leave(institutionID, userID string) bool {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	room, ok := ri.rooms[institutionID]
	if !ok {
		return false
	}
	if _, member := room[userID]; !member {
		return false
	}
	delete(room, userID)
	return true
}

// Members returns a copy of the room's membership. Callers iterate the
// snapshot, never the live set.
func (ri *RoomIndex) Members(institutionID string) []string {
	ri.mu.RLock()
	defer ri.mu.RUnlock()

	room := ri.rooms[institutionID]
	members := make([]string, 0, len(room))
	for userID := range room {
		members = append(members, userID)
	}
	return members
}

// Contains reports whether userID is currently in the institution's room.
func (ri *RoomIndex) Contains(institutionID, userID string) bool {
	ri.mu.RLock()
	defer ri.mu.RUnlock()

	_, ok := ri.rooms[institutionID][userID]
	return ok
}
