package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nostrfeed/feedcache/api/handler"
	"github.com/nostrfeed/feedcache/api/middleware"
	"github.com/nostrfeed/feedcache/config"
	"github.com/nostrfeed/feedcache/feed"
	"github.com/nostrfeed/feedcache/relay"
)

// corsMiddleware returns a gin-contrib/cors middleware. Configured origins
// are accepted with credentials. Unknown origins receive a wildcard
// Allow-Origin without credentials so public resources (avatars) still
// render when hot-linked.
func corsMiddleware(cfg config.Config) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.CORSOrigins))
	for _, o := range cfg.CORSOrigins {
		allowed[strings.ToLower(o)] = true
	}

	return cors.New(cors.Config{
		AllowOriginWithContextFunc: func(c *gin.Context, origin string) bool {
			if !allowed[strings.ToLower(origin)] {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Writer.Header().Del("Access-Control-Allow-Credentials")
			}
			return true
		},
		AllowMethods:     []string{"GET", "POST", "OPTIONS", "HEAD"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept", "Accept-Encoding", "Cache-Control", "Pragma", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	})
}

// NewRouter builds and returns the service's http.Handler.
func NewRouter(
	cfg config.Config,
	resolver *feed.Resolver,
	agg *feed.Aggregator,
	profiles *feed.Profiles,
	pool *relay.Pool,
	store handler.Pinger,
) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), corsMiddleware(cfg))

	feedH := handler.NewFeedHandler(resolver, cfg)
	interactionsH := handler.NewInteractionsHandler(agg, cfg)
	profilesH := handler.NewProfilesHandler(profiles, cfg)
	systemH := handler.NewSystemHandler(store, pool)

	r.GET("/feed", feedH.GetFeed)

	r.GET("/interactions/counts", interactionsH.GetCounts)
	r.POST("/interactions/invalidate", interactionsH.Invalidate)

	r.GET("/profiles", profilesH.GetProfiles)
	r.POST("/profiles/invalidate", profilesH.Invalidate)
	r.GET("/profiles/:pubkey", profilesH.GetProfile)
	r.GET("/profiles/:pubkey/avatar", profilesH.GetAvatar)

	r.GET("/relays/health", systemH.RelayHealth)

	// Probes and metrics — unauthenticated, for orchestrators and scrapers.
	r.GET("/health", systemH.HealthLive)
	r.GET("/ready", systemH.HealthReady)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return r
}
