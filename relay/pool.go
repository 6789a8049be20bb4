// Package relay is the network tier: a pool of independent Nostr relays
// queried over websocket with the REQ/EVENT/EOSE subscription protocol.
// Relays overlap and disagree; the pool fans every filter out to all
// available relays, deduplicates by event id, and persists what it fetched
// into the local store so the fast tier catches up.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nostrfeed/feedcache/config"
	"github.com/nostrfeed/feedcache/nostr"
)

// ErrNoRelays is returned when a fetch is attempted with no relay
// configured or every configured relay marked unavailable.
var ErrNoRelays = errors.New("relay: no relays available")

// Saver persists fetched events. Implemented by the local store; the pool
// writes through so that tiered reads find relay results on the next pass.
type Saver interface {
	Save(ctx context.Context, events []nostr.Event) error
}

// Pool manages websocket connections to all configured relays.
// A single Pool is created at startup and shared across all resolvers.
type Pool struct {
	urls   []string
	saver  Saver
	dialer *websocket.Dialer
	health *HealthChecker
}

func NewPool(cfg config.Config, saver Saver) *Pool {
	return &Pool{
		urls:  cfg.Relays,
		saver: saver,
		dialer: &websocket.Dialer{
			NetDialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			HandshakeTimeout: 5 * time.Second,
		},
	}
}

// SetHealthChecker attaches a health checker to the pool. Must be called
// before the pool is used to serve requests.
func (p *Pool) SetHealthChecker(hc *HealthChecker) { p.health = hc }

// GetHealthChecker returns the attached health checker, or nil if none is set.
func (p *Pool) GetHealthChecker() *HealthChecker { return p.health }

// URLs returns the configured relay URLs.
func (p *Pool) URLs() []string { return p.urls }

// isAvailable returns true if the relay is considered reachable.
// If no health checker is configured, all relays are assumed available.
func (p *Pool) isAvailable(url string) bool {
	if p.health == nil {
		return true
	}
	return p.health.IsAvailable(url)
}

// Fetch runs the filter against every available relay concurrently and
// returns the deduplicated union, newest first, trimmed to the filter's
// limit. Events a relay returns outside the filter are discarded. Whatever
// was fetched is written through to the store before returning.
//
// An error is returned only when no relay produced anything and at least
// one failed — a partial fan-out result is a success.
func (p *Pool) Fetch(ctx context.Context, f nostr.Filter, timeout time.Duration) ([]nostr.Event, error) {
	var targets []string
	for _, url := range p.urls {
		if p.isAvailable(url) {
			targets = append(targets, url)
		}
	}
	if len(targets) == 0 {
		return nil, ErrNoRelays
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		events []nostr.Event
		err    error
	}
	results := make([]result, len(targets))
	var wg sync.WaitGroup
	for i, url := range targets {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			events, err := p.fetchOne(fetchCtx, url, f)
			if err != nil {
				if p.health != nil {
					p.health.RecordRequestFailure(url)
				}
			} else if p.health != nil {
				p.health.RecordRequestSuccess(url)
			}
			results[i] = result{events: events, err: err}
		}(i, url)
	}
	wg.Wait()

	seen := make(map[string]bool)
	var merged []nostr.Event
	var lastErr error
	for i, r := range results {
		if r.err != nil {
			// A relay that delivered events before erroring still counts.
			if len(r.events) == 0 {
				lastErr = r.err
				slog.Debug("relay fetch failed", "relay", targets[i], "error", r.err)
			}
		}
		for _, e := range r.events {
			if seen[e.ID] || !f.Match(&e) {
				continue
			}
			seen[e.ID] = true
			merged = append(merged, e)
		}
	}

	if len(merged) == 0 && lastErr != nil {
		return nil, fmt.Errorf("relay: fetch failed: %w", lastErr)
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].CreatedAt > merged[j].CreatedAt })
	if f.Limit > 0 && len(merged) > f.Limit {
		merged = merged[:f.Limit]
	}

	if p.saver != nil && len(merged) > 0 {
		// Persist on a fresh context: the fetch succeeded even if the
		// caller's context is about to expire.
		saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer saveCancel()
		if err := p.saver.Save(saveCtx, merged); err != nil {
			slog.Warn("persisting fetched events failed", "count", len(merged), "error", err)
		}
	}

	return merged, nil
}
