package hub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackerOnline(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	registry := NewRegistry()
	tracker := NewTracker(testLogger(), store, registry)

	bob := &fakeSink{}
	registry.Admit(2, "bob", bob)
	registry.Admit(1, "alice", &fakeSink{})

	tracker.Online(context.Background(), 1, "alice")

	require.True(t, store.online(1))

	events := bob.recorded()
	require.Len(t, events, 1)
	require.Equal(t, EventUserOnline, events[0].Name)
	require.Equal(t, PresencePayload{UserID: 1, Username: "alice"}, events[0].Data)
}

func TestTrackerOffline(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	registry := NewRegistry()
	tracker := NewTracker(testLogger(), store, registry)

	bob := &fakeSink{}
	registry.Admit(2, "bob", bob)

	tracker.Offline(context.Background(), 1, "alice")

	require.False(t, store.online(1))

	events := bob.recorded()
	require.Len(t, events, 1)
	require.Equal(t, EventUserOffline, events[0].Name)
	require.Equal(t, PresencePayload{UserID: 1, Username: "alice"}, events[0].Data)
}

func TestTrackerOfflineSupersededByReconnect(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	registry := NewRegistry()
	tracker := NewTracker(testLogger(), store, registry)

	bob := &fakeSink{}
	registry.Admit(2, "bob", bob)

	// alice disconnects and reconnects before her offline transition runs
	registry.Admit(1, "alice", &fakeSink{})
	tracker.Online(context.Background(), 1, "alice")
	bobEvents := len(bob.recorded())

	tracker.Offline(context.Background(), 1, "alice")

	require.True(t, store.online(1))
	require.Len(t, bob.recorded(), bobEvents)
}

func TestTrackerOnlineStoreFailureStillBroadcasts(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.failWith = errors.New("store unavailable")
	registry := NewRegistry()
	tracker := NewTracker(testLogger(), store, registry)

	bob := &fakeSink{}
	registry.Admit(2, "bob", bob)

	tracker.Online(context.Background(), 1, "alice")

	// stored record lags, broadcast proceeds
	require.Len(t, bob.recorded(), 1)
}

func TestTrackerDrain(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	registry := NewRegistry()
	tracker := NewTracker(testLogger(), store, registry)

	registry.Admit(1, "alice", &fakeSink{})
	registry.Admit(2, "bob", &fakeSink{})

	tracker.Online(context.Background(), 1, "alice")
	tracker.Online(context.Background(), 2, "bob")
	require.True(t, store.online(1))
	require.True(t, store.online(2))

	tracker.Drain(context.Background())

	require.False(t, store.online(1))
	require.False(t, store.online(2))
}

func TestTrackerDrainSkipsFailures(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	registry := NewRegistry()
	tracker := NewTracker(testLogger(), store, registry)

	registry.Admit(1, "alice", &fakeSink{})
	store.failWith = errors.New("store unavailable")

	// must return instead of blocking or panicking
	tracker.Drain(context.Background())
}
