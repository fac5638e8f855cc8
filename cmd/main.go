package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"peerline/backend/internal/analysis"
	"peerline/backend/internal/api/handler"
	"peerline/backend/internal/chathub"
	"peerline/backend/internal/config"
	"peerline/backend/internal/identity"
	"peerline/backend/internal/observability"
	"peerline/backend/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := observability.NewLogger(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// setupStorage returns the store, the lifecycle publisher and a cleanup func
// for the configured backend.
func setupStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Storage, storage.EventPublisher, func() error, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		log.Warn("using in-memory storage, state is lost on restart")
		return storage.NewMemoryStore(), storage.NopPublisher{}, func() error { return nil }, nil
	case config.BackendBadger:
		store, err := storage.OpenBadger(cfg.BadgerPath)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info("badger storage ready", "path", cfg.BadgerPath)
		return store, storage.NopPublisher{}, store.Close, nil
	}

	db, err := storage.OpenPostgres(cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	svc := storage.NewStorageService(db, rdb)
	if err := svc.Migrate(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	seq, err := svc.SyncRoomSequence(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info("database and redis ready", "room_sequence", seq)
	return svc, svc, svc.Close, nil
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, publisher, closeStore, err := setupStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("close storage", "error", err)
		}
	}()

	var classifier analysis.Classifier
	if cfg.SentimentEnabled {
		lex, err := analysis.NewLexiconClassifier(analysis.DefaultLexicon)
		if err != nil {
			return err
		}
		classifier = analysis.NewEnglishOnly(lex)
	}

	hub := chathub.NewHub(chathub.Options{
		Store:      store,
		Publisher:  publisher,
		Classifier: classifier,
		Logger:     log,
	})
	tokens := identity.NewJWTProvider(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL, store)

	gin.SetMode(gin.ReleaseMode)
	h := handler.NewHandler(hub.Gateway, store, tokens, tokens, log, cfg.SendBufferSize)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        h.Router(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.HTTPAddr, "storage", cfg.StorageBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		// hijacked websocket connections are not tracked by the http server
		return errors.Join(hub.Shutdown(shutdownCtx), server.Shutdown(shutdownCtx))
	})
	return g.Wait()
}
