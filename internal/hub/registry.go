package hub

import "sync"

// Entry is the registry record for one admitted user.
// The entry itself is the user's room membership: holding an entry means the
// user's room has exactly one live member, its sink.
type Entry struct {
	UserID   int64
	Username string
	sink     Sink
}

// Registry maps authenticated user ids to their single live connection.
// All methods are safe for concurrent use; the mutex guards map access only
// and is never held across I/O.
type Registry struct {
	mu    sync.RWMutex
	rooms map[int64]Entry
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[int64]Entry),
	}
}

// Admit records the connection as the live entry for userID, replacing any
// previous entry. The replaced sink is returned so the caller can revoke it;
// nil when the user had no live connection. Registry membership and room
// membership are the same write, so fanout is addressable the moment Admit
// returns.
func (r *Registry) Admit(userID int64, username string, sink Sink) Sink {
	r.mu.Lock()
	defer r.mu.Unlock()

	var prev Sink
	if old, ok := r.rooms[userID]; ok {
		prev = old.sink
	}
	r.rooms[userID] = Entry{
		UserID:   userID,
		Username: username,
		sink:     sink,
	}
	return prev
}

// Evict removes the entry for userID if its live sink is the provided handle.
// A stale handle (already replaced by a newer admission) is a no-op, which
// keeps a replaced connection's teardown from evicting its successor.
// Returns whether an entry was removed.
func (r *Registry) Evict(userID int64, sink Sink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rooms[userID]
	if !ok || entry.sink != sink {
		return false
	}
	delete(r.rooms, userID)
	return true
}

// Lookup returns the live entry for userID, if any.
func (r *Registry) Lookup(userID int64) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.rooms[userID]
	return entry, ok
}

// Publish pushes an event to the room addressed by userID.
// Returns false when the room has no live member; such events are dropped.
func (r *Registry) Publish(userID int64, e Event) bool {
	r.mu.RLock()
	entry, ok := r.rooms[userID]
	r.mu.RUnlock()

	if !ok {
		return false
	}
	return entry.sink.Push(e)
}

// Broadcast pushes an event to every room except the one addressed by exceptUserID.
// Delivery is best-effort; unreachable peers are skipped.
func (r *Registry) Broadcast(exceptUserID int64, e Event) {
	r.mu.RLock()
	sinks := make([]Sink, 0, len(r.rooms))
	for id, entry := range r.rooms {
		if id == exceptUserID {
			continue
		}
		sinks = append(sinks, entry.sink)
	}
	r.mu.RUnlock()

	for _, sink := range sinks {
		sink.Push(e)
	}
}

// Snapshot returns a copy of every live entry.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.rooms))
	for _, entry := range r.rooms {
		entries = append(entries, entry)
	}
	return entries
}
