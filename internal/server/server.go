package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dialog/internal/auth"
	"dialog/internal/hub"

	"github.com/valyala/fastjson"
	"go.uber.org/zap"
)

// Server defines fields used in HTTP and websocket processing
type Server struct {
	logger        *zap.SugaredLogger
	httpServer    *http.Server
	afterShutdown []func()
	h             handler
}

// NewServer returns new Server struct wiring the REST surface and the
// websocket endpoint onto one http.Server
func NewServer(
	logger *zap.SugaredLogger,
	store Store,
	verifier *auth.Verifier,
	registry *hub.Registry,
	presence *hub.Tracker,
	delivery *hub.Pipeline,
	typing *hub.TypingRelay,
	opts ...Option,
) (*Server, error) {
	cfg := &config{
		httpServer: &http.Server{
			Addr: "0.0.0.0:9000",
		},
		handshakeTimeout: 10 * time.Second,
		storeTimeout:     5 * time.Second,
	}

	for _, opt := range opts {
		opt.apply(cfg)
	}

	srv := &Server{
		logger:        logger,
		httpServer:    cfg.httpServer,
		afterShutdown: cfg.afterShutdown,
		h: handler{
			logger:           logger,
			store:            store,
			verifier:         verifier,
			registry:         registry,
			presence:         presence,
			delivery:         delivery,
			typing:           typing,
			handshakeTimeout: cfg.handshakeTimeout,
			storeTimeout:     cfg.storeTimeout,
			parsers: parsers{
				registerPool: fastjson.ParserPool{},
				loginPool:    fastjson.ParserPool{},
				sendPool:     fastjson.ParserPool{},
				historyPool:  fastjson.ParserPool{},
				socketPool:   fastjson.ParserPool{},
			},
		},
	}

	mux := http.NewServeMux()
	mux.Handle("/users/register", log(enforcePostJson(http.HandlerFunc(srv.h.register)), logger.Desugar()))
	mux.Handle("/users/login", log(enforcePostJson(http.HandlerFunc(srv.h.login)), logger.Desugar()))
	mux.Handle("/messages/send", log(enforcePostJson(srv.h.requireAuth(srv.h.sendMessage)), logger.Desugar()))
	mux.Handle("/messages/history", log(enforcePostJson(srv.h.requireAuth(srv.h.history)), logger.Desugar()))
	mux.Handle("/contacts/get", log(srv.h.requireAuth(srv.h.contacts), logger.Desugar()))
	mux.Handle("/ws", log(http.HandlerFunc(srv.h.serveWs), logger.Desugar()))

	srv.httpServer.Handler = mux

	return srv, nil
}

// Start calls ListenAndServe on http.Server instance inside Server struct
// and implements graceful shutdown via goroutine waiting for signals.
// Registered after-shutdown hooks run once the listener has drained, so the
// presence sweep and the store close happen after no new events can arrive.
func (s *Server) Start() error {
	idleConnsClosed := make(chan struct{})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		s.logger.Info("Shutting down HTTP server")

		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			s.logger.Errorf("srv.Shutdown: %v", err)
		}
		s.logger.Info("HTTP server is stopped")

		close(idleConnsClosed)
	}()

	s.logger.Infof("Starting HTTP server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("s.httpServer.ListenAndServe: %v", err)
	}

	<-idleConnsClosed

	for _, f := range s.afterShutdown {
		f()
	}

	return nil
}
