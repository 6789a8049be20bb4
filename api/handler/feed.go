package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v3"

	"github.com/nostrfeed/feedcache/config"
	"github.com/nostrfeed/feedcache/feed"
	"github.com/nostrfeed/feedcache/nostr"
)

const defaultFeedLimit = 50

// FeedHandler serves timeline queries through the tiered resolver. A
// short-TTL response cache keyed by the canonical filter absorbs rapid
// repeat loads (page reloads, several UI panes asking for the same view)
// without another store round-trip.
type FeedHandler struct {
	resolver  *feed.Resolver
	cfg       config.Config
	responses *ttlcache.Cache[string, []nostr.Event]
}

func NewFeedHandler(resolver *feed.Resolver, cfg config.Config) *FeedHandler {
	responses := ttlcache.New[string, []nostr.Event](
		ttlcache.WithTTL[string, []nostr.Event](cfg.FeedCacheTTL),
		ttlcache.WithDisableTouchOnHit[string, []nostr.Event](),
	)
	go responses.Start() // starts the automatic expired-item eviction loop
	return &FeedHandler{resolver: resolver, cfg: cfg, responses: responses}
}

// GetFeed handles GET /feed.
// Query params map onto the event filter: authors, kinds, ids, e, p
// (comma-separated), since, until (unix seconds), limit. Kinds default to
// text notes and reposts.
func (h *FeedHandler) GetFeed(c *gin.Context) {
	f, err := buildFeedFilter(c, h.cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key := f.String()
	if item := h.responses.Get(key); item != nil {
		c.JSON(http.StatusOK, gin.H{"events": item.Value()})
		return
	}

	events, err := h.resolver.Resolve(c.Request.Context(), f, h.cfg.FetchTimeout)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "feed fetch failed"})
		return
	}

	h.responses.Set(key, events, ttlcache.DefaultTTL)
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// buildFeedFilter translates request query params into an event filter.
func buildFeedFilter(c *gin.Context, cfg config.Config) (nostr.Filter, error) {
	f := nostr.Filter{
		IDs:     csvParam(c, "ids"),
		Authors: csvParam(c, "authors"),
		ETags:   csvParam(c, "e"),
		PTags:   csvParam(c, "p"),
		Kinds:   []int{nostr.KindTextNote, nostr.KindRepost},
		Limit:   defaultFeedLimit,
	}

	if raw := c.Query("kinds"); raw != "" {
		kinds, err := splitInts(raw)
		if err != nil {
			return nostr.Filter{}, err
		}
		f.Kinds = kinds
	}
	for _, p := range []struct {
		name string
		dst  *int64
	}{{"since", &f.Since}, {"until", &f.Until}} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			return nostr.Filter{}, errInvalidParam(p.name)
		}
		*p.dst = v
	}
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return nostr.Filter{}, errInvalidParam("limit")
		}
		f.Limit = v
	}
	if f.Limit > cfg.MaxQueryLimit {
		f.Limit = cfg.MaxQueryLimit
	}
	return f, nil
}

func csvParam(c *gin.Context, name string) []string {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func splitInts(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, errInvalidParam("kinds")
		}
		out = append(out, v)
	}
	return out, nil
}

type errInvalidParam string

func (e errInvalidParam) Error() string { return "invalid query parameter: " + string(e) }
