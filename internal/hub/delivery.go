package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"dialog/internal/storage"

	"go.uber.org/zap"
)

// MaxContentLength bounds message content in runes.
const MaxContentLength = 1000

var (
	ErrInvalidInput    = errors.New("invalid message input")
	ErrUnauthenticated = errors.New("sender has no active connection")
)

// Pipeline validates, persists and fans out direct messages.
// Each accepted send is a new distinct message; there is no deduplication.
type Pipeline struct {
	logger   *zap.SugaredLogger
	store    MessageStore
	registry *Registry

	// senderMu serializes sends per sender so that createdAt stamping and
	// persistence happen in acceptance order. Cross-sender sends stay
	// concurrent.
	mu       sync.Mutex
	senderMu map[int64]*sync.Mutex
}

func NewPipeline(logger *zap.SugaredLogger, store MessageStore, registry *Registry) *Pipeline {
	return &Pipeline{
		logger:   logger,
		store:    store,
		registry: registry,
		senderMu: make(map[int64]*sync.Mutex),
	}
}

// Send delivers a message on behalf of an externally authenticated identity
// (the REST path); the sender needs no live connection.
func (p *Pipeline) Send(ctx context.Context, sender, receiver int64, content string) (storage.Message, error) {
	return p.send(ctx, sender, receiver, content)
}

// SendFromSocket delivers a message originating on a persistent channel.
// The sender must hold a live registry entry; a connection that was never
// admitted (or has been replaced) cannot trigger a fanout.
func (p *Pipeline) SendFromSocket(ctx context.Context, sender, receiver int64, content string) (storage.Message, error) {
	if _, ok := p.registry.Lookup(sender); !ok {
		return storage.Message{}, ErrUnauthenticated
	}
	return p.send(ctx, sender, receiver, content)
}

func (p *Pipeline) send(ctx context.Context, sender, receiver int64, content string) (storage.Message, error) {
	content = strings.TrimSpace(content)
	if receiver < 1 || len(content) == 0 || utf8.RuneCountInString(content) > MaxContentLength {
		return storage.Message{}, ErrInvalidInput
	}

	// createdAt is stamped and the message persisted under the sender's lock,
	// so per-sender creation times are non-decreasing in acceptance order.
	lock := p.senderLock(sender)
	lock.Lock()
	msg, err := p.store.CreateMessage(ctx, sender, receiver, content, time.Now())
	lock.Unlock()
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrMessageBadReceiver), errors.Is(err, storage.ErrMessageBadSender):
			return storage.Message{}, ErrInvalidInput
		default:
			// no fanout without successful persistence
			return storage.Message{}, fmt.Errorf("persisting message: %w", err)
		}
	}

	// Receiver room first, then the sender's acknowledgment. The delivered
	// flag is decided before emission so both rooms observe the same value.
	// An empty receiver room just drops the event: history retrieval is the
	// offline delivery mechanism.
	_, online := p.registry.Lookup(receiver)
	msg.Delivered = online
	if online && !p.registry.Publish(receiver, Event{Name: EventReceiveMessage, Data: msg}) {
		msg.Delivered = false
	}
	p.registry.Publish(sender, Event{Name: EventMessageSent, Data: msg})

	if msg.Delivered {
		if err := p.store.MarkDelivered(ctx, msg.ID); err != nil {
			// soft-state write, the message itself is not rolled back
			p.logger.Errorf("marking message %d delivered: %v", msg.ID, err)
		}
	}

	return msg, nil
}

func (p *Pipeline) senderLock(sender int64) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.senderMu[sender]
	if !ok {
		lock = &sync.Mutex{}
		p.senderMu[sender] = lock
	}
	return lock
}
