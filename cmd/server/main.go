package main

import (
	"context"
	"log"
	"time"

	"dialog/internal/auth"
	"dialog/internal/hub"
	"dialog/internal/server"
	"dialog/internal/storage"

	"github.com/caarlos0/env/v6"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("zap.NewDevelopment: %v", err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Info("Application is starting")

	cfg := server.EnvConfig{}
	if err := env.Parse(&cfg); err != nil {
		sugar.Fatalf("Cannot parse env config: %v", err)
	}

	storeCfg := storage.Config{}
	if err := env.Parse(&storeCfg); err != nil {
		sugar.Fatalf("Cannot parse store env config: %v", err)
	}

	store, err := storage.New(sugar, storeCfg, storage.ConnectionTimeout(30*time.Second))
	if err != nil {
		sugar.Fatalf("Cannot create Store instance: %v", err)
	}

	verifier := auth.NewVerifier([]byte(cfg.TokenSecret), cfg.TokenTTL)

	registry := hub.NewRegistry()
	presence := hub.NewTracker(sugar, store, registry)
	delivery := hub.NewPipeline(sugar, store, registry)
	typing := hub.NewTypingRelay(registry)

	serverOpts := []server.Option{
		server.WithEnvConfig(cfg),
		server.ReadTimeout(5 * time.Second),
		server.RegisterAfterShutdown(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			presence.Drain(ctx)
		}),
		server.RegisterAfterShutdown(func() {
			sugar.Info("Closing store")
			store.Close()
			sugar.Info("Store is closed")
		}),
	}

	srv, err := server.NewServer(sugar, store, verifier, registry, presence, delivery, typing, serverOpts...)
	if err != nil {
		sugar.Fatalf("Cannot create Server instance: %v", err)
	}

	if err := srv.Start(); err != nil {
		sugar.Fatalf("Cannot start http srv: %v", err)
	}
}
