package hub

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypingNotify(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	relay := NewTypingRelay(registry)

	bob := &fakeSink{}
	registry.Admit(1, "alice", &fakeSink{})
	registry.Admit(2, "bob", bob)

	relay.Notify(1, 2, true)
	relay.Notify(1, 2, false)

	events := bob.recorded()
	require.Len(t, events, 2)
	require.Equal(t, EventUserTyping, events[0].Name)
	require.Equal(t, TypingPayload{UserID: 1, Username: "alice", IsTyping: true}, events[0].Data)
	require.Equal(t, TypingPayload{UserID: 1, Username: "alice", IsTyping: false}, events[1].Data)
}

func TestTypingUnauthenticatedSenderIgnored(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	relay := NewTypingRelay(registry)

	bob := &fakeSink{}
	registry.Admit(2, "bob", bob)

	relay.Notify(1, 2, true)

	require.Empty(t, bob.recorded())
}

func TestTypingMissingReceiverIgnored(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	relay := NewTypingRelay(registry)

	alice := &fakeSink{}
	registry.Admit(1, "alice", alice)

	relay.Notify(1, 0, true)

	require.Empty(t, alice.recorded())
}

func TestTypingOfflineReceiverDropped(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	relay := NewTypingRelay(registry)

	registry.Admit(1, "alice", &fakeSink{})

	// nothing to assert beyond it not panicking or erroring
	relay.Notify(1, 2, true)
}
