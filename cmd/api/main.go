package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"signflow/agreement"
	"signflow/auth"
	"signflow/config"
	"signflow/db"
	"signflow/esign"
	"signflow/httpx"
)

func main() {
	configPath := flag.String("config", os.Getenv("SIGNFLOW_CONFIG"), "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := httpx.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, health, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	tokens, err := auth.NewService(cfg.JWTSecret, auth.WithIssuer(cfg.JWTIssuer))
	if err != nil {
		return err
	}

	controller := esign.NewController(store,
		esign.WithEmailPolicy(agreement.DomainPolicy{Domains: cfg.EmailDomains}),
		esign.WithLogger(logger),
	)

	server := &Server{
		documents:     controller,
		verifier:      tokens,
		publicBaseURL: cfg.PublicBaseURL,
		maxBodyBytes:  cfg.MaxBodyBytes,
		health:        health,
	}
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", slog.String("addr", httpServer.Addr), slog.String("store", cfg.Store.Driver))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStore builds the configured store along with a health probe and a
// closer.
func openStore(ctx context.Context, cfg config.StoreConfig) (esign.Store, func(context.Context) error, func(), error) {
	switch cfg.Driver {
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.WithMaxConns(cfg.MaxConns))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("bootstrap database pool: %w", err)
		}
		return esign.NewPGStore(pool), pool.Ping, pool.Close, nil
	case config.StoreRedis:
		store, err := esign.NewRedisStoreFromAddr(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return store, store.Ping, func() { _ = store.Close() }, nil
	default:
		return esign.NewMemoryStore(), nil, func() {}, nil
	}
}
