package hub

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Tracker derives online/offline transitions from connection lifecycle and
// broadcasts them. Together with Drain it is the only writer of the store's
// presence fields; REST handlers never touch them.
type Tracker struct {
	logger   *zap.SugaredLogger
	store    PresenceStore
	registry *Registry
}

func NewTracker(logger *zap.SugaredLogger, store PresenceStore, registry *Registry) *Tracker {
	return &Tracker{
		logger:   logger,
		store:    store,
		registry: registry,
	}
}

// Online persists the online transition and announces it to all other rooms.
// A store failure is logged and does not stop the broadcast: the registry is
// the source of truth for routing, the stored record is allowed to lag.
func (t *Tracker) Online(ctx context.Context, userID int64, username string) {
	if err := t.store.SetPresence(ctx, userID, true, time.Now()); err != nil {
		t.logger.Errorf("persisting online presence for user %d: %v", userID, err)
	}

	t.registry.Broadcast(userID, Event{
		Name: EventUserOnline,
		Data: PresencePayload{UserID: userID, Username: username},
	})
}

// Offline persists the offline transition and announces it to all other rooms.
// A reconnect admitted between the caller's eviction and this call supersedes
// the transition: the user is live again, so neither the store write nor the
// broadcast happens.
func (t *Tracker) Offline(ctx context.Context, userID int64, username string) {
	if _, ok := t.registry.Lookup(userID); ok {
		return
	}

	if err := t.store.SetPresence(ctx, userID, false, time.Now()); err != nil {
		t.logger.Errorf("persisting offline presence for user %d: %v", userID, err)
	}

	t.registry.Broadcast(userID, Event{
		Name: EventUserOffline,
		Data: PresencePayload{UserID: userID, Username: username},
	})
}

// Drain flips every currently admitted user to offline in the store.
// Used on process termination; individual failures are logged and skipped so
// one bad record never blocks the sweep. No broadcasts are sent, peers are
// about to lose the process anyway.
func (t *Tracker) Drain(ctx context.Context) {
	entries := t.registry.Snapshot()
	now := time.Now()

	for _, entry := range entries {
		if err := t.store.SetPresence(ctx, entry.UserID, false, now); err != nil {
			t.logger.Errorf("draining presence for user %d: %v", entry.UserID, err)
		}
	}

	t.logger.Infof("Drained presence for %d connected users", len(entries))
}
