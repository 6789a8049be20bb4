package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nostrfeed/feedcache/cache"
	"github.com/nostrfeed/feedcache/nostr"
)

// Profile is a subject's kind-0 metadata. An all-empty record (FetchedAt
// aside) means the pubkey has published nothing discoverable; those are
// cached exactly like populated records so silent pubkeys stay cheap.
type Profile struct {
	Pubkey      string    `json:"pubkey"`
	Name        string    `json:"name,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	About       string    `json:"about,omitempty"`
	Picture     string    `json:"picture,omitempty"`
	Banner      string    `json:"banner,omitempty"`
	Nip05       string    `json:"nip05,omitempty"`
	Lud16       string    `json:"lud16,omitempty"`
	Website     string    `json:"website,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// DisplayLabel returns the name to render for the profile: the display
// name, then the name, then a truncated pubkey.
func (p Profile) DisplayLabel() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.Name != "" {
		return p.Name
	}
	if len(p.Pubkey) > 12 {
		return p.Pubkey[:12] + "…"
	}
	return p.Pubkey
}

// Profiles resolves subject metadata with the same hit/miss partitioning
// as the interaction aggregator, but single-valued per pubkey and routed
// through the tiered resolver so the local store is consulted first.
type Profiles struct {
	resolver *Resolver
	cache    *cache.TTL[string, Profile]
	now      func() time.Time
}

// NewProfiles builds a profile resolver. now may be nil (defaults to
// time.Now); it stamps FetchedAt on freshly built records.
func NewProfiles(resolver *Resolver, c *cache.TTL[string, Profile], now func() time.Time) *Profiles {
	if now == nil {
		now = time.Now
	}
	return &Profiles{resolver: resolver, cache: c, now: now}
}

// ProfileFor returns the profile for one pubkey, fetching on a cache miss.
// Never fails: an unreachable network yields an (uncached) empty record.
func (p *Profiles) ProfileFor(ctx context.Context, pubkey string, timeout time.Duration) Profile {
	return p.ProfilesFor(ctx, []string{pubkey}, timeout)[pubkey]
}

// ProfilesFor returns one profile per requested pubkey. Cache misses are
// covered by a single kind-0 query through the tiered resolver; when a
// pubkey yields several metadata events the newest wins. Pubkeys with no
// discoverable metadata get an explicit empty record, which is cached so
// repeated lookups of silent subjects skip the network.
func (p *Profiles) ProfilesFor(ctx context.Context, pubkeys []string, timeout time.Duration) map[string]Profile {
	if len(pubkeys) == 0 {
		return map[string]Profile{}
	}

	cached := p.cache.GetBatch(pubkeys)

	missing := make([]string, 0, len(pubkeys)-len(cached))
	for _, pk := range pubkeys {
		if _, ok := cached[pk]; ok {
			cacheLookups.WithLabelValues("profiles", "hit").Inc()
			continue
		}
		cacheLookups.WithLabelValues("profiles", "miss").Inc()
		missing = append(missing, pk)
	}
	if len(missing) == 0 {
		return cached
	}

	filter := nostr.Filter{
		Kinds:   []int{nostr.KindMetadata},
		Authors: missing,
	}

	events, err := p.resolver.Resolve(ctx, filter, timeout)
	if err != nil {
		batchQueries.WithLabelValues("profiles", "error").Inc()
		slog.Warn("profile fetch failed", "subjects", len(missing), "error", err)
		// Empty records are returned but not cached so the next call retries.
		fresh := make(map[string]Profile, len(missing))
		for _, pk := range missing {
			fresh[pk] = Profile{Pubkey: pk, FetchedAt: p.now()}
		}
		return mergeProfiles(cached, fresh)
	}
	batchQueries.WithLabelValues("profiles", "ok").Inc()

	wanted := make(map[string]bool, len(missing))
	for _, pk := range missing {
		wanted[pk] = true
	}

	// Newest metadata event per pubkey wins; older ones and events for
	// pubkeys outside the miss set are dropped.
	newest := make(map[string]*nostr.Event, len(missing))
	for i := range events {
		e := &events[i]
		if e.Kind != nostr.KindMetadata || !wanted[e.Pubkey] {
			continue
		}
		if cur, ok := newest[e.Pubkey]; !ok || e.CreatedAt > cur.CreatedAt {
			newest[e.Pubkey] = e
		}
	}

	fresh := make(map[string]Profile, len(missing))
	for _, pk := range missing {
		record := Profile{Pubkey: pk, FetchedAt: p.now()}
		if e, ok := newest[pk]; ok {
			if parsed, err := parseProfileEvent(e); err == nil {
				record = parsed
				record.FetchedAt = p.now()
			} else {
				// One undecodable metadata event degrades to an empty
				// record; it never aborts the batch.
				slog.Debug("skipping unparsable profile metadata", "pubkey", pk, "error", err)
			}
		}
		fresh[pk] = record
	}

	p.cache.SetBatch(fresh)
	return mergeProfiles(cached, fresh)
}

// Invalidate drops cached profiles, forcing a refetch on the next lookup.
// Called after the current identity edits their own metadata.
func (p *Profiles) Invalidate(pubkeys ...string) {
	p.cache.Invalidate(pubkeys...)
}

// parseProfileEvent decodes a kind-0 event's content into a Profile.
func parseProfileEvent(e *nostr.Event) (Profile, error) {
	var meta struct {
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
		About       string `json:"about"`
		Picture     string `json:"picture"`
		Banner      string `json:"banner"`
		Nip05       string `json:"nip05"`
		Lud16       string `json:"lud16"`
		Website     string `json:"website"`
	}
	if err := json.Unmarshal([]byte(e.Content), &meta); err != nil {
		return Profile{}, err
	}
	return Profile{
		Pubkey:      e.Pubkey,
		Name:        meta.Name,
		DisplayName: meta.DisplayName,
		About:       meta.About,
		Picture:     meta.Picture,
		Banner:      meta.Banner,
		Nip05:       meta.Nip05,
		Lud16:       meta.Lud16,
		Website:     meta.Website,
	}, nil
}

func mergeProfiles(cached, fresh map[string]Profile) map[string]Profile {
	out := make(map[string]Profile, len(cached)+len(fresh))
	for pk, p := range cached {
		out[pk] = p
	}
	for pk, p := range fresh {
		out[pk] = p
	}
	return out
}
