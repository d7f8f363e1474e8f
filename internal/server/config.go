package server

import (
	"net/http"
	"strconv"
	"time"
)

type Option interface {
	apply(*config)
}

type optionFunc func(c *config)

func (f optionFunc) apply(c *config) { f(c) }

// config defines fields used for configuring Server instance
type config struct {
	httpServer       *http.Server
	handshakeTimeout time.Duration
	storeTimeout     time.Duration
	afterShutdown    []func()
}

// EnvConfig defines fields used for parsing from environment variables
type EnvConfig struct {
	Host             string        `env:"HOST" envDefault:"0.0.0.0"`
	Port             uint16        `env:"PORT" envDefault:"9000"`
	TokenSecret      string        `env:"TOKEN_SECRET" envDefault:"dialog-dev-secret"`
	TokenTTL         time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	HandshakeTimeout time.Duration `env:"HANDSHAKE_TIMEOUT" envDefault:"10s"`
	StoreTimeout     time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
}

// WithEnvConfig enables processing exported EnvConfig struct to act as a source of config parameters
func WithEnvConfig(cfg EnvConfig) Option {
	return optionFunc(func(c *config) {
		c.httpServer.Addr = cfg.Host + ":" + strconv.FormatUint(uint64(cfg.Port), 10)
		if cfg.HandshakeTimeout > 0 {
			c.handshakeTimeout = cfg.HandshakeTimeout
		}
		if cfg.StoreTimeout > 0 {
			c.storeTimeout = cfg.StoreTimeout
		}
	})
}

// ReadTimeout sets read timeout for http.Server.
// Upgraded websocket connections hijack the underlying conn and are not affected.
func ReadTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.httpServer.ReadTimeout = d
	})
}

// HandshakeTimeout bounds how long a fresh websocket connection may take to authenticate
func HandshakeTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.handshakeTimeout = d
	})
}

// StoreTimeout bounds every store call made on behalf of a websocket event
func StoreTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.storeTimeout = d
	})
}

// RegisterAfterShutdown registers a function to call after http.Server shutdown.
// Functions run in registration order and are not called in separated goroutines,
// which lets callers order the presence drain before the store close.
func RegisterAfterShutdown(f func()) Option {
	return optionFunc(func(c *config) {
		c.afterShutdown = append(c.afterShutdown, f)
	})
}
