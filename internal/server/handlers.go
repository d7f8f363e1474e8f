package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dialog/internal/auth"
	"dialog/internal/hub"
	"dialog/internal/storage"

	"github.com/valyala/fastjson"
	"go.uber.org/zap"
)

// Store is the slice of the message store consumed by the REST surface.
// Presence fields are read-only here; only connection-lifecycle transitions write them.
type Store interface {
	CreateUser(ctx context.Context, username, passwordHash string) (int64, error)
	UserByID(ctx context.Context, id int64) (storage.User, error)
	UserByUsername(ctx context.Context, username string) (storage.User, string, error)
	MessagesBetween(ctx context.Context, userOne, userTwo int64) ([]storage.Message, error)
	Contacts(ctx context.Context, userID int64) ([]storage.User, error)
}

type parsers struct {
	registerPool fastjson.ParserPool
	loginPool    fastjson.ParserPool
	sendPool     fastjson.ParserPool
	historyPool  fastjson.ParserPool
	socketPool   fastjson.ParserPool
}

type handler struct {
	logger   *zap.SugaredLogger
	store    Store
	verifier *auth.Verifier

	registry *hub.Registry
	presence *hub.Tracker
	delivery *hub.Pipeline
	typing   *hub.TypingRelay

	handshakeTimeout time.Duration
	storeTimeout     time.Duration

	parsers parsers
}

// register handles HTTP requests on "/users/register" endpoint
func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	parser := h.parsers.registerPool.Get()
	defer h.parsers.registerPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	username, password, ok := credentials(w, v)
	if !ok {
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, err := h.store.CreateUser(r.Context(), username, hash)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			http.Error(w, "User already exists", http.StatusBadRequest)
			return
		}
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token, err := h.verifier.Issue(id)
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	payload := []byte(`{"id":` + strconv.FormatInt(id, 10) + `,"token":"` + token + `"}`)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, err = w.Write(payload)
	if err != nil {
		h.logger.Errorf("writing marshaled data to ResponseWriter: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// login handles HTTP requests on "/users/login" endpoint.
// It authenticates credentials and issues a token; it never touches presence,
// which belongs to the connection lifecycle alone.
func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	parser := h.parsers.loginPool.Get()
	defer h.parsers.loginPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	username, password, ok := credentials(w, v)
	if !ok {
		return
	}

	user, hash, err := h.store.UserByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			http.Error(w, "Authentication failed", http.StatusUnauthorized)
			return
		}
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := auth.CheckPassword(hash, password); err != nil {
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
		return
	}

	token, err := h.verifier.Issue(user.ID)
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	payload := []byte(`{"id":` + strconv.FormatInt(user.ID, 10) + `,"token":"` + token + `"}`)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(payload)
	if err != nil {
		h.logger.Errorf("writing marshaled data to ResponseWriter: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// sendMessage handles HTTP requests on "/messages/send" endpoint.
// It feeds the same delivery pipeline as the websocket path, so a connected
// receiver gets the realtime event even for REST-originated messages.
func (h *handler) sendMessage(w http.ResponseWriter, r *http.Request, userID int64) {
	body, _ := io.ReadAll(r.Body)

	parser := h.parsers.sendPool.Get()
	defer h.parsers.sendPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	// retrieving receiver id
	if !v.Exists("receiver") {
		http.Error(w, "Missing Field \"receiver\"", http.StatusBadRequest)
		return
	}

	receiver, err := v.Get("receiver").Int64()
	if err != nil {
		http.Error(w, "Field \"receiver\" must be a 64-bit integer value", http.StatusBadRequest)
		return
	}

	if receiver < 1 {
		http.Error(w, "Field \"receiver\" must be a valid user id greater than zero", http.StatusBadRequest)
		return
	}

	// retrieving content
	if !v.Exists("content") {
		http.Error(w, "Missing Field \"content\"", http.StatusBadRequest)
		return
	}

	contentValue := v.Get("content")
	if contentValue.Type() != fastjson.TypeString {
		http.Error(w, "Field \"content\" must be a string", http.StatusBadRequest)
		return
	}

	contentBytes, err := contentValue.StringBytes()
	if err != nil {
		http.Error(w, "Field \"content\" must be a string", http.StatusBadRequest)
		return
	}
	content := string(contentBytes)

	msg, err := h.delivery.Send(r.Context(), userID, receiver, content)
	if err != nil {
		switch {
		case errors.Is(err, hub.ErrInvalidInput):
			http.Error(w, "Invalid message input", http.StatusBadRequest)
			return
		default:
			h.logger.Error(err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, err = w.Write(payload)
	if err != nil {
		h.logger.Errorf("writing marshaled data to ResponseWriter: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// history handles HTTP requests on "/messages/history" endpoint
func (h *handler) history(w http.ResponseWriter, r *http.Request, userID int64) {
	body, _ := io.ReadAll(r.Body)

	parser := h.parsers.historyPool.Get()
	defer h.parsers.historyPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	if !v.Exists("with") {
		http.Error(w, "Missing Field \"with\"", http.StatusBadRequest)
		return
	}

	with, err := v.Get("with").Int64()
	if err != nil {
		http.Error(w, "Field \"with\" must be a 64-bit integer value", http.StatusBadRequest)
		return
	}

	if with < 1 {
		http.Error(w, "Field \"with\" must be a valid user id greater than zero", http.StatusBadRequest)
		return
	}

	messages, err := h.store.MessagesBetween(r.Context(), userID, with)
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if messages == nil {
		messages = []storage.Message{}
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(payload)
	if err != nil {
		h.logger.Errorf("writing marshaled data to ResponseWriter: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// contacts handles HTTP requests on "/contacts/get" endpoint
func (h *handler) contacts(w http.ResponseWriter, r *http.Request, userID int64) {
	users, err := h.store.Contacts(r.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			http.Error(w, "User does not exist", http.StatusBadRequest)
			return
		}
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if users == nil {
		users = []storage.User{}
	}

	payload, err := json.Marshal(users)
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(payload)
	if err != nil {
		h.logger.Errorf("writing marshaled data to ResponseWriter: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// credentials extracts and validates the username/password pair shared by
// the register and login endpoints; on failure the response is already written.
func credentials(w http.ResponseWriter, v *fastjson.Value) (string, string, bool) {
	if v == nil || !v.Exists("username") {
		http.Error(w, "Missing Field \"username\"", http.StatusBadRequest)
		return "", "", false
	}

	usernameValue := v.Get("username")
	if usernameValue.Type() != fastjson.TypeString {
		http.Error(w, "Field \"username\" must be a string", http.StatusBadRequest)
		return "", "", false
	}

	username := strings.TrimSpace(strings.Trim(string(usernameValue.MarshalTo(nil)), `"`))
	if len(username) == 0 {
		http.Error(w, "Field \"username\" must have non-zero length", http.StatusBadRequest)
		return "", "", false
	}

	if !v.Exists("password") {
		http.Error(w, "Missing Field \"password\"", http.StatusBadRequest)
		return "", "", false
	}

	passwordValue := v.Get("password")
	if passwordValue.Type() != fastjson.TypeString {
		http.Error(w, "Field \"password\" must be a string", http.StatusBadRequest)
		return "", "", false
	}

	password := strings.Trim(string(passwordValue.MarshalTo(nil)), `"`)
	if len(password) < 8 {
		http.Error(w, "Field \"password\" must be at least 8 characters long", http.StatusBadRequest)
		return "", "", false
	}

	return username, password, true
}
