package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkOnline(t *testing.T) {
	tr := NewPresenceTracker()
	tr.MarkOnline("u1", "i1")

	rec, ok := tr.Get("u1")
	require.True(t, ok)
	assert.Equal(t, StatusOnline, rec.Status)
	assert.Equal(t, "i1", rec.InstitutionID)
	assert.False(t, rec.LastSeen.IsZero())
}

func TestMarkOfflineRetainsRecord(t *testing.T) {
	tr := NewPresenceTracker()
	now := time.Now()
	tr.now = func() time.Time { return now }

	tr.MarkOnline("u1", "i1")
	tr.now = func() time.Time { return now.Add(time.Minute) }
	tr.MarkOffline("u1")

	rec, ok := tr.Get("u1")
	require.True(t, ok)
	assert.Equal(t, StatusOffline, rec.Status)
	assert.Equal(t, now.Add(time.Minute), rec.LastSeen)
}

func TestMarkOfflineUnknownUser(t *testing.T) {
	tr := NewPresenceTracker()
	tr.MarkOffline("ghost")

	_, ok := tr.Get("ghost")
	assert.False(t, ok)
}

func TestSnapshotFiltersToGivenUsers(t *testing.T) {
	tr := NewPresenceTracker()
	tr.MarkOnline("u1", "i1")
	tr.MarkOnline("u2", "i1")
	tr.MarkOnline("u3", "i2")

	recs := tr.Snapshot([]string{"u1", "u3", "unknown"})
	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.UserID)
	}
	assert.ElementsMatch(t, []string{"u1", "u3"}, ids)
}

func TestPruneDropsOnlyStaleOfflineRecords(t *testing.T) {
	tr := NewPresenceTracker()
	now := time.Now()

	tr.now = func() time.Time { return now.Add(-48 * time.Hour) }
	tr.MarkOnline("stale", "i1")
	tr.MarkOffline("stale")

	tr.now = func() time.Time { return now.Add(-48 * time.Hour) }
	tr.MarkOnline("oldButOnline", "i1")

	tr.now = func() time.Time { return now }
	tr.MarkOnline("fresh", "i1")
	tr.MarkOffline("fresh")

	removed := tr.Prune(24 * time.Hour)
	assert.Equal(t, 1, removed)

	_, ok := tr.Get("stale")
	assert.False(t, ok)
	_, ok = tr.Get("oldButOnline")
	assert.True(t, ok)
	_, ok = tr.Get("fresh")
	assert.True(t, ok)
}
