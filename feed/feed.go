// Package feed contains the retrieval core: the tiered store-then-relay
// resolver, the batched interaction-count aggregator and the profile
// resolver. It depends on the store and relay tiers only through the two
// collaborator interfaces below, which keeps every piece testable with
// in-memory fakes.
package feed

import (
	"context"
	"errors"
	"time"

	"github.com/nostrfeed/feedcache/nostr"
)

// Store is the fast local tier. Expected to answer quickly; an empty
// result is legitimate and simply means the network must be asked.
type Store interface {
	Query(ctx context.Context, f nostr.Filter) ([]nostr.Event, error)
}

// Network is the slow remote tier. May time out or fail entirely; a single
// filter may request multiple kinds and multiple target references at once.
type Network interface {
	Fetch(ctx context.Context, f nostr.Filter, timeout time.Duration) ([]nostr.Event, error)
}

// ErrNoNetwork is returned when an operation that must reach the network
// has no network collaborator configured.
var ErrNoNetwork = errors.New("feed: no network configured")
