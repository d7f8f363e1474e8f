package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"dialog/internal/storage"

	"go.uber.org/zap"
)

// fakeSink collects pushed events in memory.
type fakeSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (s *fakeSink) Push(e Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.events = append(s.events, e)
	return true
}

func (s *fakeSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeSink) recorded() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// fakeStore implements MessageStore and PresenceStore in memory.
type fakeStore struct {
	mu        sync.Mutex
	nextID    int64
	messages  []storage.Message
	presence  map[int64]bool
	lastSeen  map[int64]time.Time
	failWith  error
	markFails bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:   1,
		presence: make(map[int64]bool),
		lastSeen: make(map[int64]time.Time),
	}
}

func (s *fakeStore) CreateMessage(_ context.Context, sender, receiver int64, content string, createdAt time.Time) (storage.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return storage.Message{}, s.failWith
	}
	m := storage.Message{
		ID:        s.nextID,
		Sender:    sender,
		Receiver:  receiver,
		Content:   content,
		CreatedAt: createdAt,
	}
	s.nextID++
	s.messages = append(s.messages, m)
	return m, nil
}

func (s *fakeStore) MarkDelivered(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markFails {
		return errors.New("store unavailable")
	}
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].Delivered = true
			return nil
		}
	}
	return storage.ErrMessageNotExist
}

func (s *fakeStore) SetPresence(_ context.Context, userID int64, online bool, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.presence[userID] = online
	s.lastSeen[userID] = lastSeen
	return nil
}

func (s *fakeStore) stored() []storage.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *fakeStore) online(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence[userID]
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
