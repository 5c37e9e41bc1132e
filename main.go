package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"kolabnaskah/config"
	"kolabnaskah/config/database"
	"kolabnaskah/internal/changefeed"
	"kolabnaskah/internal/livesync"
	"kolabnaskah/internal/session"
	"kolabnaskah/pkg/logger"
	"kolabnaskah/router"
	"kolabnaskah/socket"
)

func main() {
	cfg, loaded := config.Load()
	logger.Init(cfg.LogLevel)
	defer logger.Sync()
	if !loaded {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}
	if err := cfg.Validate(); err != nil {
		logger.Sugar.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Sugar.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		logger.Sugar.Fatalf("Failed to apply schema: %v", err)
	}

	store, err := session.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		logger.Sugar.Fatalf("Could not connect to Redis: %v", err)
	}
	sessions := session.NewManager(cfg.JWTSecret, cfg.SessionTTL, store)
	defer sessions.Close()

	var feed changefeed.Feed
	switch cfg.ChangefeedDriver {
	case config.ChangefeedRedis:
		feed = changefeed.NewRedisFeed(store.Client())
	default:
		pgFeed, err := changefeed.NewPostgresFeed(db, cfg.DatabaseURL)
		if err != nil {
			logger.Sugar.Fatalf("Could not listen for changes: %v", err)
		}
		feed = pgFeed
	}
	defer feed.Close()

	hub := socket.NewHub()
	go hub.Run()
	defer hub.Stop()

	var relay livesync.Relay = hub
	if cfg.RelayURL != "" {
		relay = socket.NewDialer(cfg.RelayURL)
		logger.Sugar.Infof("Editors join the relay at %s", cfg.RelayURL)
	}

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.Setup(router.Deps{
			DB:         db,
			Feed:       feed,
			Hub:        hub,
			Relay:      relay,
			Sessions:   sessions,
			RoomFor:    cfg.RoomFor,
			CORSOrigin: cfg.CORSOrigin,
			StaticDir:  cfg.StaticDir,
			Base:       ctx,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Sugar.Infof("Go Backend listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Sugar.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Sugar.Errorf("Graceful shutdown failed: %v", err)
	}
}
