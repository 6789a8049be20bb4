package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/nostrfeed/feedcache/cache"
	"github.com/nostrfeed/feedcache/nostr"
)

// Counts is the aggregated interaction tally for one content item.
type Counts struct {
	Replies       uint64 `json:"replies"`
	Likes         uint64 `json:"likes"`
	Reposts       uint64 `json:"reposts"`
	Zaps          uint64 `json:"zaps"`
	ZapAmountSats uint64 `json:"zap_amount_sats"`
}

// Aggregator computes interaction counts for many items with one batched
// relay query instead of one query per item, caching the result per item.
type Aggregator struct {
	network  Network
	cache    *cache.TTL[string, Counts]
	fanout   int // expected interaction events per item
	maxLimit int // relay-side ceiling for a single query's limit
}

// NewAggregator builds an aggregator over the given network tier and count
// cache. fanout sizes the batched query's limit (missing × fanout);
// maxLimit caps it so oversized requests aren't rejected relay-side.
func NewAggregator(network Network, c *cache.TTL[string, Counts], fanout, maxLimit int) *Aggregator {
	if fanout <= 0 {
		fanout = 100
	}
	return &Aggregator{network: network, cache: c, fanout: fanout, maxLimit: maxLimit}
}

// interactionKinds is every event kind that counts as an interaction.
var interactionKinds = []int{
	nostr.KindTextNote,
	nostr.KindRepost,
	nostr.KindReaction,
	nostr.KindZapReceipt,
}

// CountsFor returns interaction counts for every requested id. Cached ids
// are served from memory; the rest are covered by a single batched relay
// query. The result always contains an entry per requested id — an id with
// no interactions (or one the relays failed to answer for) reads as
// all-zero rather than being absent.
//
// CountsFor never returns an error: count display is decoration, and a
// relay failure should render as "no interactions yet", not break a feed.
func (a *Aggregator) CountsFor(ctx context.Context, ids []string, timeout time.Duration) map[string]Counts {
	if len(ids) == 0 {
		return map[string]Counts{}
	}

	cached := a.cache.GetBatch(ids)

	missing := make([]string, 0, len(ids)-len(cached))
	for _, id := range ids {
		if _, ok := cached[id]; ok {
			cacheLookups.WithLabelValues("counts", "hit").Inc()
			continue
		}
		cacheLookups.WithLabelValues("counts", "miss").Inc()
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return cached
	}

	// Zero-initialise every missing id so items with no interactions are
	// present in the output instead of silently absent.
	fresh := make(map[string]Counts, len(missing))
	for _, id := range missing {
		fresh[id] = Counts{}
	}

	if a.network == nil {
		return merge(cached, fresh)
	}

	// One query covering all interaction kinds for all missing ids. The
	// limit is a best-effort sizing; the cap trades completeness under
	// extreme fan-in for not being rejected by the relay.
	limit := len(missing) * a.fanout
	if a.maxLimit > 0 && limit > a.maxLimit {
		limit = a.maxLimit
	}
	filter := nostr.Filter{
		Kinds: interactionKinds,
		ETags: missing,
		Limit: limit,
	}

	events, err := a.network.Fetch(ctx, filter, timeout)
	if err != nil {
		batchQueries.WithLabelValues("counts", "error").Inc()
		slog.Warn("interaction count fetch failed", "items", len(missing), "error", err)
		// Zero counts are returned but not cached: the next call retries.
		return merge(cached, fresh)
	}
	batchQueries.WithLabelValues("counts", "ok").Inc()

	wanted := make(map[string]bool, len(missing))
	for _, id := range missing {
		wanted[id] = true
	}

	for i := range events {
		e := &events[i]
		target := nostr.ReferencedEventID(e)
		if !wanted[target] {
			continue // unsolicited or untargeted event — not ours to count
		}
		counts := fresh[target]
		switch e.Kind {
		case nostr.KindTextNote:
			counts.Replies++
		case nostr.KindRepost:
			counts.Reposts++
		case nostr.KindReaction:
			// A reaction whose content is exactly "-" is a downvote
			// (NIP-25) and must not be counted as a like.
			if e.Content != "-" {
				counts.Likes++
			}
		case nostr.KindZapReceipt:
			counts.Zaps++
			if sats, ok := nostr.ZapAmountSats(e); ok {
				counts.ZapAmountSats += sats
			}
		}
		fresh[target] = counts
	}

	a.cache.SetBatch(fresh)
	return merge(cached, fresh)
}

// Invalidate drops cached counts so the next CountsFor recomputes from the
// relays. Called right after the user publishes an interaction: one extra
// round trip buys an immediately-correct count instead of waiting out the
// TTL.
func (a *Aggregator) Invalidate(ids ...string) {
	a.cache.Invalidate(ids...)
}

func merge(cached, fresh map[string]Counts) map[string]Counts {
	out := make(map[string]Counts, len(cached)+len(fresh))
	for id, c := range cached {
		out[id] = c
	}
	for id, c := range fresh {
		out[id] = c
	}
	return out
}
