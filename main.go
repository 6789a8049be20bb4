package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nostrfeed/feedcache/api"
	"github.com/nostrfeed/feedcache/cache"
	"github.com/nostrfeed/feedcache/config"
	"github.com/nostrfeed/feedcache/feed"
	"github.com/nostrfeed/feedcache/relay"
	"github.com/nostrfeed/feedcache/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open event store", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	pool := relay.NewPool(cfg, db)

	// Start background health checking so fan-outs skip offline relays.
	hc := relay.NewHealthChecker(pool, cfg.RelayHealthInterval)
	pool.SetHealthChecker(hc)
	hc.Start(context.Background())

	resolver := feed.NewResolver(db, pool)
	agg := feed.NewAggregator(
		pool,
		cache.New[string, feed.Counts](cfg.CountsCacheSize, cfg.CountsCacheTTL, nil),
		cfg.InteractionFanout,
		cfg.MaxQueryLimit,
	)
	profiles := feed.NewProfiles(
		resolver,
		cache.New[string, feed.Profile](cfg.ProfileCacheSize, cfg.ProfileCacheTTL, nil),
		nil,
	)

	h := api.NewRouter(cfg, resolver, agg, profiles, pool, db)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	// Start server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("feedcache listening", "addr", cfg.ListenAddr, "relays", len(cfg.Relays))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt or SIGTERM (e.g. from container orchestration).
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	hc.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	slog.Info("server stopped")
}
