package hub

// TypingRelay broadcasts ephemeral typing state to the receiver's room.
// Nothing is persisted or acknowledged; a malformed or unauthenticated call
// is ignored because typing indicators are never a source of user-visible
// errors.
type TypingRelay struct {
	registry *Registry
}

func NewTypingRelay(registry *Registry) *TypingRelay {
	return &TypingRelay{registry: registry}
}

// Notify pushes the sender's typing state to the receiver's room.
func (r *TypingRelay) Notify(sender, receiver int64, isTyping bool) {
	if receiver < 1 {
		return
	}
	entry, ok := r.registry.Lookup(sender)
	if !ok {
		return
	}

	r.registry.Publish(receiver, Event{
		Name: EventUserTyping,
		Data: TypingPayload{
			UserID:   entry.UserID,
			Username: entry.Username,
			IsTyping: isTyping,
		},
	})
}
