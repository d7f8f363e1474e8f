package hub

import "dialog/internal/storage"

// Event names pushed to live connections.
const (
	EventAuthenticated  = "authenticated"
	EventAuthError      = "authentication-error"
	EventReceiveMessage = "receive-message"
	EventMessageSent    = "message-sent"
	EventUserTyping     = "user-typing"
	EventUserOnline     = "user-online"
	EventUserOffline    = "user-offline"
	EventError          = "error"
)

// Event is a single named frame pushed into a room.
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data"`
}

// Sink is the writable end of a live connection held by the registry.
// Push must not block; it reports false when the connection can no longer
// accept events. Close revokes the connection's send capability.
type Sink interface {
	Push(e Event) bool
	Close()
}

// PresencePayload is carried by user-online and user-offline events.
type PresencePayload struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// TypingPayload is carried by user-typing events.
type TypingPayload struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// ErrorPayload is carried by error and authentication-error events.
type ErrorPayload struct {
	Reason string `json:"reason"`
}

// AuthenticatedPayload is carried by the handshake success event.
type AuthenticatedPayload struct {
	User storage.User `json:"user"`
}
