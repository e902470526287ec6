package chat

import (
	"sync"
	"time"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// PresenceRecord holds the last-known status for a user identity. Records
// are a decaying log, not a set: going offline refreshes the record instead
// of deleting it.
type PresenceRecord struct {
	UserID        string    `json:"user_id"`
	InstitutionID string    `json:"-"`
	Status        string    `json:"status"`
	LastSeen      time.Time `json:"last_seen"`
}

// PresenceTracker tracks online/offline status per user. Presence is not
// institution-partitioned in storage; tenant scoping happens at query time
// through the room index.
type PresenceTracker struct {
	mu      sync.RWMutex
	records map[string]PresenceRecord
	now     func() time.Time
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		records: make(map[string]PresenceRecord),
		now:     time.Now,
	}
}

func (t *PresenceTracker) MarkOnline(userID, institutionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records[userID] = PresenceRecord{
		UserID:        userID,
		InstitutionID: institutionID,
		Status:        StatusOnline,
		LastSeen:      t.now(),
	}
}

// MarkOffline flips the record to offline and refreshes its timestamp. The
// record is retained so last-seen survives the disconnect.
func (t *PresenceTracker) MarkOffline(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[userID]
	if !ok {
		return
	}
	rec.Status = StatusOffline
	rec.LastSeen = t.now()
	t.records[userID] = rec
}

func (t *PresenceTracker) Get(userID string) (PresenceRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[userID]
	return rec, ok
}

// Snapshot returns the presence records for the given users, skipping IDs
// with no record. Callers pass a room membership snapshot to get an
// institution-scoped view.
func (t *PresenceTracker) Snapshot(userIDs []string) []PresenceRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]PresenceRecord, 0, len(userIDs))
	for _, id := range userIDs {
		if rec, ok := t.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// Prune drops offline records whose last-seen is older than maxAge and
// returns how many were removed. Purely opportunistic; nothing depends on
// it running.
func (t *PresenceTracker) Prune(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-maxAge)
	removed := 0
	for id, rec := range t.records {
		if rec.Status == StatusOffline && rec.LastSeen.Before(cutoff) {
			delete(t.records, id)
			removed++
		}
	}
	return removed
}
