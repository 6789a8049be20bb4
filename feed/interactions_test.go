package feed_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nostrfeed/feedcache/cache"
	"github.com/nostrfeed/feedcache/feed"
	"github.com/nostrfeed/feedcache/nostr"
)

var _ = Describe("Aggregator", func() {
	var (
		ctx     context.Context
		network *fakeNetwork
		counts  *cache.TTL[string, feed.Counts]
		agg     *feed.Aggregator
	)

	const timeout = 5 * time.Second

	BeforeEach(func() {
		ctx = context.Background()
		network = &fakeNetwork{}
		counts = cache.New[string, feed.Counts](100, time.Minute, nil)
		agg = feed.NewAggregator(network, counts, 100, 5000)
	})

	It("returns an empty map for no ids without touching the network", func() {
		Expect(agg.CountsFor(ctx, nil, timeout)).To(BeEmpty())
		Expect(network.fetchCount()).To(BeZero())
	})

	It("issues exactly one query for a full miss and returns an entry per id", func() {
		network.events = []nostr.Event{reply("r1", "a")}

		result := agg.CountsFor(ctx, []string{"a", "b", "c"}, timeout)

		Expect(network.fetchCount()).To(Equal(1))
		Expect(result).To(HaveLen(3))
		Expect(result["a"].Replies).To(Equal(uint64(1)))
		Expect(result["b"]).To(Equal(feed.Counts{}))
		Expect(result["c"]).To(Equal(feed.Counts{}))
	})

	It("requests every interaction kind restricted to the miss set", func() {
		agg.CountsFor(ctx, []string{"a", "b"}, timeout)

		f := network.lastFilter()
		Expect(f.Kinds).To(ConsistOf(
			nostr.KindTextNote, nostr.KindRepost, nostr.KindReaction, nostr.KindZapReceipt,
		))
		Expect(f.ETags).To(ConsistOf("a", "b"))
		Expect(f.Limit).To(Equal(200)) // 2 ids × fanout 100
	})

	It("caps the query limit at the configured ceiling", func() {
		small := feed.NewAggregator(network, counts, 100, 150)

		small.CountsFor(ctx, []string{"a", "b", "c"}, timeout)

		Expect(network.lastFilter().Limit).To(Equal(150))
	})

	It("serves a repeated call entirely from cache with identical results", func() {
		network.events = []nostr.Event{
			reply("r1", "a"), reaction("l1", "a", "🔥"), repost("b1", "b"),
		}

		first := agg.CountsFor(ctx, []string{"a", "b"}, timeout)
		second := agg.CountsFor(ctx, []string{"a", "b"}, timeout)

		Expect(network.fetchCount()).To(Equal(1))
		Expect(second).To(Equal(first))
	})

	It("queries only the miss subset when the id set partially overlaps", func() {
		agg.CountsFor(ctx, []string{"a"}, timeout)
		Expect(network.fetchCount()).To(Equal(1))

		agg.CountsFor(ctx, []string{"a", "b"}, timeout)

		Expect(network.fetchCount()).To(Equal(2))
		Expect(network.lastFilter().ETags).To(Equal([]string{"b"}))
	})

	Describe("tallying", func() {
		It("counts each interaction kind into its own counter", func() {
			network.events = []nostr.Event{
				reply("r1", "a"), reply("r2", "a"),
				reaction("l1", "a", "+"),
				repost("b1", "a"),
				zap("z1", "a", []string{"amount", "5000"}),
			}

			result := agg.CountsFor(ctx, []string{"a"}, timeout)

			Expect(result["a"]).To(Equal(feed.Counts{
				Replies: 2, Likes: 1, Reposts: 1, Zaps: 1, ZapAmountSats: 5,
			}))
		})

		It("does not count a bare \"-\" reaction as a like", func() {
			network.events = []nostr.Event{
				reaction("l1", "a", "-"),
				reaction("l2", "a", "-1"),
				reaction("l3", "a", ""),
			}

			result := agg.CountsFor(ctx, []string{"a"}, timeout)

			Expect(result["a"].Likes).To(Equal(uint64(2)))
		})

		It("counts a zap with an unparsable amount without adding to the total", func() {
			network.events = []nostr.Event{
				zap("z1", "a", []string{"amount", "not-a-number"}),
				zap("z2", "a", []string{"description", `{"amount":"21000"}`}),
			}

			result := agg.CountsFor(ctx, []string{"a"}, timeout)

			Expect(result["a"].Zaps).To(Equal(uint64(2)))
			Expect(result["a"].ZapAmountSats).To(Equal(uint64(21)))
		})

		It("discards interactions referencing ids outside the requested set", func() {
			network.events = []nostr.Event{
				reply("r1", "a"),
				reply("r2", "someone-elses-note"),
				nostr.Event{ID: "untargeted", Kind: nostr.KindTextNote}, // no e tag at all
			}

			result := agg.CountsFor(ctx, []string{"a"}, timeout)

			Expect(result).To(HaveLen(1))
			Expect(result["a"].Replies).To(Equal(uint64(1)))
		})
	})

	Describe("failure handling", func() {
		It("returns zero counts instead of an error when the relays fail", func() {
			network.err = errors.New("all relays down")

			result := agg.CountsFor(ctx, []string{"a", "b"}, timeout)

			Expect(result).To(Equal(map[string]feed.Counts{"a": {}, "b": {}}))
		})

		It("does not cache counts from a failed fetch", func() {
			network.err = errors.New("all relays down")
			agg.CountsFor(ctx, []string{"a"}, timeout)

			network.err = nil
			network.events = []nostr.Event{reply("r1", "a")}
			result := agg.CountsFor(ctx, []string{"a"}, timeout)

			Expect(network.fetchCount()).To(Equal(2))
			Expect(result["a"].Replies).To(Equal(uint64(1)))
		})
	})

	Describe("Invalidate", func() {
		It("forces the next call back to the relays even within the TTL", func() {
			network.events = []nostr.Event{reply("r1", "a")}
			agg.CountsFor(ctx, []string{"a"}, timeout)
			Expect(network.fetchCount()).To(Equal(1))

			agg.Invalidate("a")

			agg.CountsFor(ctx, []string{"a"}, timeout)
			Expect(network.fetchCount()).To(Equal(2))
		})
	})
})
