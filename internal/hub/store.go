package hub

import (
	"context"
	"time"

	"dialog/internal/storage"
)

// MessageStore is the slice of the message store consumed by the delivery pipeline.
type MessageStore interface {
	CreateMessage(ctx context.Context, sender, receiver int64, content string, createdAt time.Time) (storage.Message, error)
	MarkDelivered(ctx context.Context, id int64) error
}

// PresenceStore is the slice of the message store consumed by the presence tracker.
type PresenceStore interface {
	SetPresence(ctx context.Context, userID int64, online bool, lastSeen time.Time) error
}
