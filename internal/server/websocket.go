package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"dialog/internal/hub"
	"dialog/internal/storage"
	"dialog/internal/storage/zapadapter"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"
	"github.com/valyala/fastjson"
)

const (
	maxFrameSize  = 64 * 1024
	sendQueueSize = 16
	writeTimeout  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// session is the server side of one persistent client channel.
// It is the hub.Sink registered for the authenticated user: Push feeds the
// write loop, Close revokes the connection (used both on disconnect and when
// a newer handshake for the same user replaces this one).
type session struct {
	id       string
	conn     *websocket.Conn
	userID   int64
	username string

	send chan hub.Event
	done chan struct{}
	once sync.Once
}

func newSession(conn *websocket.Conn) *session {
	return &session{
		id:   xid.New().String(),
		conn: conn,
		send: make(chan hub.Event, sendQueueSize),
		done: make(chan struct{}),
	}
}

// Push enqueues an event for the write loop without blocking.
// A closed session or a full queue drops the event; fanout is best-effort.
func (s *session) Push(e hub.Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- e:
		return true
	case <-s.done:
		return false
	default:
		return false
	}
}

// Close revokes the session. Safe to call from any goroutine, any number of times.
func (s *session) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// storeContext builds a bounded context carrying the session id, so pgx query
// logs for socket-originated store calls correlate with the connection.
func (s *session) storeContext(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(zapadapter.NewContextWithID(context.Background(), s.id), d)
}

func (s *session) writeLoop() {
	defer s.conn.Close()

	for {
		select {
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
			return
		case e := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteJSON(e); err != nil {
				return
			}
		}
	}
}

// serveWs handles the persistent channel on "/ws": authenticated handshake,
// admission, event loop, and the presence transitions tied to the connection
// lifecycle.
func (h *handler) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sess := newSession(conn)

	user, err := h.handshake(sess)
	if err != nil {
		// one opaque reason for expired, malformed and unknown-subject tokens
		_ = conn.WriteJSON(hub.Event{
			Name: hub.EventAuthError,
			Data: hub.ErrorPayload{Reason: "authentication failed"},
		})
		conn.Close()
		return
	}

	sess.userID = user.ID
	sess.username = user.Username

	// Admission and room membership are one registry write. A previous
	// session for the same user is replaced and explicitly revoked, so the
	// stale connection loses its send capability instead of lingering.
	if prev := h.registry.Admit(user.ID, user.Username, sess); prev != nil {
		prev.Close()
	}

	if err := conn.WriteJSON(hub.Event{
		Name: hub.EventAuthenticated,
		Data: hub.AuthenticatedPayload{User: user},
	}); err != nil {
		if h.registry.Evict(user.ID, sess) {
			sess.Close()
		}
		conn.Close()
		return
	}

	ctx, cancel := sess.storeContext(h.storeTimeout)
	h.presence.Online(ctx, user.ID, user.Username)
	cancel()

	h.logger.Infof("User %d (%s) connected, session %s", user.ID, user.Username, sess.id)

	go sess.writeLoop()
	h.readLoop(sess)

	// Eviction is unconditional on disconnect and never waits for in-flight
	// sends. A session that was already replaced is a no-op here, which keeps
	// the successor's presence intact.
	if h.registry.Evict(sess.userID, sess) {
		ctx, cancel := sess.storeContext(h.storeTimeout)
		h.presence.Offline(ctx, sess.userID, sess.username)
		cancel()
		h.logger.Infof("User %d (%s) disconnected, session %s", sess.userID, sess.username, sess.id)
	}
	sess.Close()
}

var errHandshakeFailed = errors.New("handshake failed")

// handshake reads the first frame of a fresh connection and verifies the
// carried credential within the configured timeout. A connection that does
// not authenticate in time, or presents anything but a valid authenticate
// frame, is rejected without distinguishing the cause.
func (h *handler) handshake(sess *session) (storage.User, error) {
	conn := sess.conn
	conn.SetReadLimit(maxFrameSize)
	if err := conn.SetReadDeadline(time.Now().Add(h.handshakeTimeout)); err != nil {
		return storage.User{}, errHandshakeFailed
	}

	_, frame, err := conn.ReadMessage()
	if err != nil {
		return storage.User{}, errHandshakeFailed
	}

	parser := h.parsers.socketPool.Get()
	defer h.parsers.socketPool.Put(parser)

	v, err := parser.ParseBytes(frame)
	if err != nil {
		return storage.User{}, errHandshakeFailed
	}

	if eventName(v) != "authenticate" {
		return storage.User{}, errHandshakeFailed
	}

	token := stringField(v.Get("data"), "token")
	if token == "" {
		return storage.User{}, errHandshakeFailed
	}

	userID, err := h.verifier.Verify(token)
	if err != nil {
		return storage.User{}, errHandshakeFailed
	}

	ctx, cancel := sess.storeContext(h.storeTimeout)
	defer cancel()

	user, err := h.store.UserByID(ctx, userID)
	if err != nil {
		return storage.User{}, errHandshakeFailed
	}

	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return storage.User{}, errHandshakeFailed
	}

	return user, nil
}

// readLoop consumes client frames until the connection drops or the session
// is revoked. Malformed frames and unknown event names report an error event
// instead of closing the channel.
func (h *handler) readLoop(sess *session) {
	for {
		_, frame, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}

		select {
		case <-sess.done:
			return
		default:
		}

		parser := h.parsers.socketPool.Get()
		v, err := parser.ParseBytes(frame)
		if err != nil {
			h.parsers.socketPool.Put(parser)
			sess.Push(hub.Event{Name: hub.EventError, Data: hub.ErrorPayload{Reason: "invalid message"}})
			continue
		}

		name := eventName(v)
		data := v.Get("data")

		switch name {
		case "send-message":
			h.socketSend(sess, data)
		case "typing":
			h.socketTyping(sess, data, true)
		case "stop-typing":
			h.socketTyping(sess, data, false)
		default:
			sess.Push(hub.Event{Name: hub.EventError, Data: hub.ErrorPayload{Reason: "invalid message"}})
		}

		h.parsers.socketPool.Put(parser)
	}
}

func (h *handler) socketSend(sess *session, data *fastjson.Value) {
	receiver := int64Field(data, "receiver")
	content := stringField(data, "content")
	if receiver < 1 {
		sess.Push(hub.Event{Name: hub.EventError, Data: hub.ErrorPayload{Reason: "invalid message"}})
		return
	}

	ctx, cancel := sess.storeContext(h.storeTimeout)
	defer cancel()

	_, err := h.delivery.SendFromSocket(ctx, sess.userID, receiver, content)
	if err != nil {
		switch {
		case errors.Is(err, hub.ErrInvalidInput):
			sess.Push(hub.Event{Name: hub.EventError, Data: hub.ErrorPayload{Reason: "invalid message"}})
		case errors.Is(err, hub.ErrUnauthenticated):
			sess.Push(hub.Event{Name: hub.EventError, Data: hub.ErrorPayload{Reason: "authentication required"}})
		default:
			h.logger.Errorf("sending message from session %s: %v", sess.id, err)
			sess.Push(hub.Event{Name: hub.EventError, Data: hub.ErrorPayload{Reason: "message could not be stored"}})
		}
	}
}

func (h *handler) socketTyping(sess *session, data *fastjson.Value, isTyping bool) {
	receiver := int64Field(data, "receiver")
	// typing is fire-and-forget, malformed frames are dropped silently
	h.typing.Notify(sess.userID, receiver, isTyping)
}

func eventName(v *fastjson.Value) string {
	if v == nil {
		return ""
	}
	name := v.Get("event")
	if name == nil || name.Type() != fastjson.TypeString {
		return ""
	}
	b, _ := name.StringBytes()
	return string(b)
}

func stringField(v *fastjson.Value, key string) string {
	if v == nil {
		return ""
	}
	field := v.Get(key)
	if field == nil || field.Type() != fastjson.TypeString {
		return ""
	}
	b, _ := field.StringBytes()
	return string(b)
}

func int64Field(v *fastjson.Value, key string) int64 {
	if v == nil {
		return 0
	}
	field := v.Get(key)
	if field == nil {
		return 0
	}
	n, err := field.Int64()
	if err != nil {
		return 0
	}
	return n
}
