package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8787"`
	// DatabasePath is the SQLite file holding the local event store.
	// ":memory:" keeps the store in RAM (useful for tests and kiosk setups).
	DatabasePath string `env:"DATABASE_PATH" envDefault:"feedcache.db"`
	// Relays is the comma-separated list of relay websocket URLs to fan
	// queries out to.
	Relays []string `env:"RELAYS" envSeparator:"," envDefault:"wss://relay.damus.io,wss://nos.lol,wss://relay.nostr.band"`
	// Pubkey is the current identity's public key (hex). Used when handlers
	// build identity-scoped filters; never touched otherwise.
	Pubkey string `env:"PUBKEY"`
	// FetchTimeout bounds every relay query, foreground or background.
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"10s"`
	// CountsCacheSize is the capacity of the interaction-count cache.
	CountsCacheSize int `env:"COUNTS_CACHE_SIZE" envDefault:"10000"`
	// CountsCacheTTL is how long cached interaction counts stay valid.
	CountsCacheTTL time.Duration `env:"COUNTS_CACHE_TTL" envDefault:"2m"`
	// ProfileCacheSize is the capacity of the profile cache.
	ProfileCacheSize int `env:"PROFILE_CACHE_SIZE" envDefault:"5000"`
	// ProfileCacheTTL is how long cached profiles stay valid.
	ProfileCacheTTL time.Duration `env:"PROFILE_CACHE_TTL" envDefault:"5m"`
	// InteractionFanout is the expected number of interaction events per
	// item, used to size the batched query's limit before capping.
	InteractionFanout int `env:"INTERACTION_FANOUT" envDefault:"100"`
	// MaxQueryLimit caps the limit of any single relay query. Relays reject
	// or silently truncate oversized requests; a capped query undercounts
	// under extreme fan-in, which is accepted.
	MaxQueryLimit int `env:"MAX_QUERY_LIMIT" envDefault:"5000"`
	// FeedCacheTTL is how long merged feed responses are served from the
	// HTTP-layer response cache.
	FeedCacheTTL time.Duration `env:"FEED_CACHE_TTL" envDefault:"30s"`
	// RelayHealthInterval is how often each relay is pinged. Relays that
	// fail 2 consecutive checks are skipped in fan-outs until they recover.
	RelayHealthInterval time.Duration `env:"RELAY_HEALTH_INTERVAL" envDefault:"60s"`
	// ShutdownTimeout is the maximum duration to wait for in-flight
	// requests during graceful shutdown.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	// CORSOrigins is the set of origins (comma-separated) allowed to make
	// cross-origin requests, e.g. the web client's dev server.
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
}

// Load parses configuration from environment variables.
// Returns an error if a value cannot be parsed into the expected type.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
