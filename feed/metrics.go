package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedcache_cache_lookups_total",
		Help: "Cache lookups by the aggregation and profile resolvers.",
	}, []string{"cache", "status" /* hit | miss */})

	backgroundRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedcache_background_refreshes_total",
		Help: "Fire-and-forget relay refreshes triggered by store hits.",
	}, []string{"status" /* ok | error */})

	batchQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedcache_batch_queries_total",
		Help: "Batched relay queries issued for cache-miss sets.",
	}, []string{"kind" /* counts | profiles */, "status" /* ok | error */})
)
