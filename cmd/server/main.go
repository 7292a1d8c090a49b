package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"elo-sync/internal/app"
	"elo-sync/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	bootstrap, cleanup, err := app.Bootstrap(cfg)
	if err != nil {
		log.Fatalf("failed to bootstrap app: %v", err)
	}
	defer func() {
		if err := cleanup(); err != nil {
			log.Printf("cleanup error: %v", err)
		}
	}()

	addr, err := app.ListenAddr(cfg.App.HTTPPort)
	if err != nil {
		log.Fatalf("invalid HTTP port: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("HTTP listening | addr=%s backend=%s key=%s", addr, cfg.Store.Backend, bootstrap.Container.Store.Key())
	if err := bootstrap.Run(ctx, addr); err != nil {
		log.Printf("server error: %v", err)
		return
	}
	log.Printf("HTTP stopped")
}
