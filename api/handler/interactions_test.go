package handler_test

import (
	"encoding/json"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gin-gonic/gin"

	"github.com/nostrfeed/feedcache/api/handler"
	"github.com/nostrfeed/feedcache/cache"
	"github.com/nostrfeed/feedcache/feed"
	"github.com/nostrfeed/feedcache/nostr"
)

var _ = Describe("InteractionsHandler", func() {
	var (
		network *fakeNetwork
		router  *gin.Engine
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		network = &fakeNetwork{}

		cfg := testConfig()
		agg := feed.NewAggregator(
			network,
			cache.New[string, feed.Counts](100, time.Minute, nil),
			cfg.InteractionFanout,
			cfg.MaxQueryLimit,
		)
		h := handler.NewInteractionsHandler(agg, cfg)
		router = gin.New()
		router.GET("/interactions/counts", h.GetCounts)
		router.POST("/interactions/invalidate", h.Invalidate)
	})

	Describe("GetCounts", func() {
		It("returns a counts object per requested id", func() {
			network.events = []nostr.Event{
				{ID: "r1", Kind: nostr.KindTextNote, Tags: [][]string{{"e", "a"}}},
				{ID: "l1", Kind: nostr.KindReaction, Tags: [][]string{{"e", "a"}}, Content: "+"},
			}

			w := doRequest(router, http.MethodGet, "/interactions/counts?ids=a,b", "")

			Expect(w.Code).To(Equal(http.StatusOK))
			var counts map[string]feed.Counts
			Expect(json.Unmarshal(decodeBody(w)["counts"], &counts)).To(Succeed())
			Expect(counts).To(HaveLen(2))
			Expect(counts["a"]).To(Equal(feed.Counts{Replies: 1, Likes: 1}))
			Expect(counts["b"]).To(Equal(feed.Counts{}))
		})

		It("requires the ids parameter", func() {
			w := doRequest(router, http.MethodGet, "/interactions/counts", "")
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns zero counts when the relays are down", func() {
			network.err = errRelayDown

			w := doRequest(router, http.MethodGet, "/interactions/counts?ids=a", "")

			Expect(w.Code).To(Equal(http.StatusOK))
			var counts map[string]feed.Counts
			Expect(json.Unmarshal(decodeBody(w)["counts"], &counts)).To(Succeed())
			Expect(counts["a"]).To(Equal(feed.Counts{}))
		})
	})

	Describe("Invalidate", func() {
		It("drops cached counts so the next lookup refetches", func() {
			doRequest(router, http.MethodGet, "/interactions/counts?ids=a", "")
			Expect(network.fetchCount()).To(Equal(1))

			w := doRequest(router, http.MethodPost, "/interactions/invalidate", `{"ids":["a"]}`)
			Expect(w.Code).To(Equal(http.StatusNoContent))

			doRequest(router, http.MethodGet, "/interactions/counts?ids=a", "")
			Expect(network.fetchCount()).To(Equal(2))
		})

		It("rejects an empty body", func() {
			w := doRequest(router, http.MethodPost, "/interactions/invalidate", `{}`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
