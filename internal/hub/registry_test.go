package hub

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryAdmitLookup(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	sink := &fakeSink{}

	prev := r.Admit(1, "alice", sink)
	require.Nil(t, prev)

	entry, ok := r.Lookup(1)
	require.True(t, ok)
	require.Equal(t, int64(1), entry.UserID)
	require.Equal(t, "alice", entry.Username)
}

func TestRegistryLookupAbsent(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	_, ok := r.Lookup(1)
	require.False(t, ok)
}

func TestRegistryAdmitReplaces(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	first := &fakeSink{}
	second := &fakeSink{}

	require.Nil(t, r.Admit(1, "alice", first))
	prev := r.Admit(1, "alice", second)
	require.Equal(t, Sink(first), prev)

	// the replaced handle must not evict the live entry
	require.False(t, r.Evict(1, first))

	entry, ok := r.Lookup(1)
	require.True(t, ok)
	require.Equal(t, Sink(second), entry.sink)
}

func TestRegistryEvict(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	sink := &fakeSink{}
	r.Admit(1, "alice", sink)

	require.True(t, r.Evict(1, sink))
	_, ok := r.Lookup(1)
	require.False(t, ok)

	// idempotent when already absent
	require.False(t, r.Evict(1, sink))
}

func TestRegistryPublish(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	sink := &fakeSink{}
	r.Admit(1, "alice", sink)

	require.True(t, r.Publish(1, Event{Name: EventUserOnline}))
	require.False(t, r.Publish(2, Event{Name: EventUserOnline}))

	events := sink.recorded()
	require.Len(t, events, 1)
	require.Equal(t, EventUserOnline, events[0].Name)
}

func TestRegistryBroadcastExcludesOrigin(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	alice := &fakeSink{}
	bob := &fakeSink{}
	carol := &fakeSink{}
	r.Admit(1, "alice", alice)
	r.Admit(2, "bob", bob)
	r.Admit(3, "carol", carol)

	r.Broadcast(1, Event{Name: EventUserOnline, Data: PresencePayload{UserID: 1, Username: "alice"}})

	require.Empty(t, alice.recorded())
	require.Len(t, bob.recorded(), 1)
	require.Len(t, carol.recorded(), 1)
}

func TestRegistrySnapshot(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Admit(1, "alice", &fakeSink{})
	r.Admit(2, "bob", &fakeSink{})

	entries := r.Snapshot()
	require.Len(t, entries, 2)

	ids := []int64{entries[0].UserID, entries[1].UserID}
	require.ElementsMatch(t, []int64{1, 2}, ids)
}
