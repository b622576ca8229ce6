package awareness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/codesync/internal/models"
)

func presence(replica string, clock int64) models.Presence {
	return models.Presence{
		ReplicaID: replica,
		Clock:     clock,
		User:      models.User{Name: replica},
		Cursor:    &models.Cursor{DocumentID: "doc", Anchor: int(clock), Head: int(clock)},
	}
}

func TestNew_Defaults(t *testing.T) {
	tests := []struct {
		name            string
		timeout, grace  time.Duration
		expectedTimeout time.Duration
		expectedGrace   time.Duration
	}{
		{name: "zero values", expectedTimeout: DefaultTimeout, expectedGrace: DefaultGrace},
		{name: "custom", timeout: time.Minute, grace: 10 * time.Second, expectedTimeout: time.Minute, expectedGrace: 10 * time.Second},
		{name: "grace longer than timeout", timeout: 2 * time.Second, grace: time.Minute, expectedTimeout: 2 * time.Second, expectedGrace: 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.timeout, tt.grace)
			assert.Equal(t, tt.expectedTimeout, m.Timeout())
			assert.Equal(t, tt.expectedGrace, m.grace)
		})
	}
}

func TestMap_Apply_HigherClockWins(t *testing.T) {
	m := New(time.Minute, time.Second)
	now := time.Now()

	assert.True(t, m.Apply(presence("a", 2), now))
	assert.False(t, m.Apply(presence("a", 1), now), "Older record is discarded")
	assert.False(t, m.Apply(presence("a", 2), now), "Same clock is discarded")
	assert.True(t, m.Apply(presence("a", 5), now))

	got, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, int64(5), got.Clock)
	assert.Equal(t, 5, got.Cursor.Head)
}

func TestMap_Apply_StoresCopy(t *testing.T) {
	m := New(time.Minute, time.Second)
	p := presence("a", 1)

	m.Apply(p, time.Now())
	p.Cursor.Head = 100

	got, _ := m.Get("a")
	assert.Equal(t, 1, got.Cursor.Head)
}

func TestMap_Apply_Left(t *testing.T) {
	m := New(time.Minute, time.Second)
	now := time.Now()

	m.Apply(presence("a", 3), now)

	left := models.Presence{ReplicaID: "a", Clock: 4, Left: true}
	assert.True(t, m.Apply(left, now))
	assert.Equal(t, 0, m.Len())

	assert.False(t, m.Apply(presence("a", 3), now), "Record older than removal is stale")
	assert.True(t, m.Apply(presence("a", 5), now))

	assert.False(t, m.Apply(models.Presence{ReplicaID: "b", Clock: 1, Left: true}, now), "Unknown replica")
}

func TestMap_Expire(t *testing.T) {
	m := New(10*time.Second, 2*time.Second)
	start := time.Unix(1_700_000_000, 0)

	m.Apply(presence("a", 1), start)
	m.Apply(presence("b", 1), start.Add(5*time.Second))

	assert.Empty(t, m.Expire(start.Add(9*time.Second)))

	removed := m.Expire(start.Add(10 * time.Second))
	require.Len(t, removed, 1)
	assert.Equal(t, "a", removed[0].ReplicaID)
	assert.True(t, removed[0].Left)
	assert.Equal(t, int64(2), removed[0].Clock, "Removal outranks the last record")

	assert.Equal(t, []models.Presence{presence("b", 1)}, m.Snapshot())
}

func TestMap_TouchExtends(t *testing.T) {
	m := New(10*time.Second, 2*time.Second)
	start := time.Unix(1_700_000_000, 0)

	m.Apply(presence("a", 1), start)
	m.Touch("a", start.Add(8*time.Second))

	assert.Empty(t, m.Expire(start.Add(12*time.Second)))

	_, ok := m.Get("a")
	assert.True(t, ok)

	assert.Len(t, m.Expire(start.Add(18*time.Second)), 1)
}

func TestMap_DisconnectGrace(t *testing.T) {
	m := New(30*time.Second, 5*time.Second)
	start := time.Unix(1_700_000_000, 0)

	m.Apply(presence("a", 1), start)
	m.Disconnect("a", start.Add(time.Second))

	assert.Empty(t, m.Expire(start.Add(5*time.Second)), "Entry is retained for the grace period")
	assert.Len(t, m.Expire(start.Add(6*time.Second)), 1)

	// Разрыв незадолго до таймаута не продлевает запись
	m.Apply(presence("b", 1), start)
	m.Disconnect("b", start.Add(28*time.Second))
	assert.Len(t, m.Expire(start.Add(30*time.Second)), 1)
}

func TestMap_RemoveAndForget(t *testing.T) {
	m := New(time.Minute, time.Second)
	now := time.Now()

	_, ok := m.Remove("a")
	assert.False(t, ok)

	m.Apply(presence("a", 7), now)
	left, ok := m.Remove("a")
	require.True(t, ok)
	assert.Equal(t, int64(8), left.Clock)
	assert.True(t, left.Left)

	assert.False(t, m.Apply(presence("a", 1), now))

	m.Forget("a")
	assert.True(t, m.Apply(presence("a", 1), now), "Rejoined replica may restart its clock")
}

func TestMap_SnapshotSortedAndClear(t *testing.T) {
	m := New(time.Minute, time.Second)
	now := time.Now()

	for _, id := range []string{"c", "a", "b"} {
		m.Apply(presence(id, 1), now)
	}

	snapshot := m.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "a", snapshot[0].ReplicaID)
	assert.Equal(t, "b", snapshot[1].ReplicaID)
	assert.Equal(t, "c", snapshot[2].ReplicaID)

	m.Clear()
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.Snapshot())
}
