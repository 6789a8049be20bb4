package nostr

import "encoding/json"

// Filter is a NIP-01 subscription filter. A single filter may constrain
// multiple kinds and multiple tag references at once, which is what makes
// batched interaction queries possible.
type Filter struct {
	IDs     []string `json:"ids,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Kinds   []int    `json:"kinds,omitempty"`
	ETags   []string `json:"#e,omitempty"` // referenced event ids
	PTags   []string `json:"#p,omitempty"` // referenced pubkeys
	Since   int64    `json:"since,omitempty"`
	Until   int64    `json:"until,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// Match reports whether an event satisfies the filter. Used by the store's
// tests and by the relay pool to discard unsolicited events a misbehaving
// relay returns outside the subscription.
func (f Filter) Match(e *Event) bool {
	if len(f.IDs) > 0 && !contains(f.IDs, e.ID) {
		return false
	}
	if len(f.Authors) > 0 && !contains(f.Authors, e.Pubkey) {
		return false
	}
	if len(f.Kinds) > 0 && !containsInt(f.Kinds, e.Kind) {
		return false
	}
	if len(f.ETags) > 0 && !intersects(f.ETags, e.TagValues("e")) {
		return false
	}
	if len(f.PTags) > 0 && !intersects(f.PTags, e.TagValues("p")) {
		return false
	}
	if f.Since > 0 && e.CreatedAt < f.Since {
		return false
	}
	if f.Until > 0 && e.CreatedAt > f.Until {
		return false
	}
	return true
}

// String returns the filter's canonical JSON form. Stable for a given
// filter value, so it doubles as a cache key for response caches.
func (f Filter) String() string {
	b, err := json.Marshal(f)
	if err != nil {
		return ""
	}
	return string(b)
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsInt(haystack []int, needle int) bool {
	for _, n := range haystack {
		if n == needle {
			return true
		}
	}
	return false
}

func intersects(want, have []string) bool {
	for _, h := range have {
		if contains(want, h) {
			return true
		}
	}
	return false
}
