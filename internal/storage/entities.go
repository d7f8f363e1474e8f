package storage

import "time"

// User is the stored account projection used by handlers and presence.
// IsOnline and LastSeen are written only by connection-lifecycle transitions.
type User struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	IsOnline  bool       `json:"isOnline"`
	LastSeen  *time.Time `json:"lastSeen"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Message is a persisted direct message between two users.
type Message struct {
	ID        int64     `json:"id"`
	Sender    int64     `json:"sender"`
	Receiver  int64     `json:"receiver"`
	Content   string    `json:"content"`
	Delivered bool      `json:"delivered"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
