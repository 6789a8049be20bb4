package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/nostrfeed/feedcache/nostr"
)

// Resolver answers queries store-first. A store hit is returned
// immediately and a relay refresh runs behind it; only a cold store pays
// relay latency synchronously.
type Resolver struct {
	store   Store
	network Network
}

// NewResolver builds a resolver over the two tiers. store may be nil, in
// which case every query goes straight to the network.
func NewResolver(store Store, network Network) *Resolver {
	return &Resolver{store: store, network: network}
}

// Resolve returns events matching the filter.
//
// The local store is tried first. When it holds at least one match those
// events are returned at once and the same filter is replayed against the
// relays in a detached goroutine — the relay pool writes what it fetches
// back into the store, so the next Resolve sees fresh data. The caller is
// never blocked on, and never sees a failure of, that refresh.
//
// When the store is empty (or its query fails) the relays are queried
// synchronously with the same bounded timeout, and a failure there is the
// caller's to handle.
func (r *Resolver) Resolve(ctx context.Context, f nostr.Filter, timeout time.Duration) ([]nostr.Event, error) {
	if r.network == nil {
		return nil, ErrNoNetwork
	}

	if r.store != nil {
		events, err := r.store.Query(ctx, f)
		switch {
		case err != nil:
			slog.Warn("store query failed, falling back to relays", "error", err)
		case len(events) > 0:
			// Detached from the caller's context: if the request that
			// triggered the refresh ends, the refresh still completes and
			// updates the store, which is the longer-lived resource.
			go r.refresh(context.WithoutCancel(ctx), f, timeout)
			return events, nil
		}
	}

	return r.network.Fetch(ctx, f, timeout)
}

// refresh replays a filter against the relays for its side effect of
// updating the store. Failures are logged and counted, never surfaced.
func (r *Resolver) refresh(ctx context.Context, f nostr.Filter, timeout time.Duration) {
	if _, err := r.network.Fetch(ctx, f, timeout); err != nil {
		backgroundRefreshes.WithLabelValues("error").Inc()
		slog.Warn("background refresh failed", "filter", f.String(), "error", err)
		return
	}
	backgroundRefreshes.WithLabelValues("ok").Inc()
}
