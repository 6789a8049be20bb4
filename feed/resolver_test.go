package feed_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nostrfeed/feedcache/feed"
	"github.com/nostrfeed/feedcache/nostr"
)

var _ = Describe("Resolver", func() {
	var (
		ctx     context.Context
		store   *fakeStore
		network *fakeNetwork
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = &fakeStore{}
		network = &fakeNetwork{}
	})

	It("returns store items immediately without waiting on the relays", func() {
		store.events = []nostr.Event{reply("n1", "x"), reply("n2", "x"), reply("n3", "x")}
		network.events = []nostr.Event{
			reply("n1", "x"), reply("n2", "x"), reply("n3", "x"), reply("n4", "x"), reply("n5", "x"),
		}

		r := feed.NewResolver(store, network)
		events, err := r.Resolve(ctx, nostr.Filter{}, 5*time.Second)

		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(3)) // the store's 3, not the network's 5
	})

	It("refreshes from the relays in the background after a store hit", func() {
		store.events = []nostr.Event{reply("n1", "x")}

		r := feed.NewResolver(store, network)
		_, err := r.Resolve(ctx, nostr.Filter{}, 5*time.Second)

		Expect(err).NotTo(HaveOccurred())
		Eventually(network.fetchCount, 2*time.Second).Should(Equal(1))
	})

	It("swallows background refresh failures", func() {
		store.events = []nostr.Event{reply("n1", "x")}
		network.err = errors.New("relay down")

		r := feed.NewResolver(store, network)
		events, err := r.Resolve(ctx, nostr.Filter{}, 5*time.Second)

		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(1))
		Eventually(network.fetchCount, 2*time.Second).Should(Equal(1))
	})

	It("queries the relays synchronously when the store is empty", func() {
		network.events = []nostr.Event{reply("n1", "x")}

		r := feed.NewResolver(store, network)
		events, err := r.Resolve(ctx, nostr.Filter{}, 5*time.Second)

		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(1))
		Expect(network.fetchCount()).To(Equal(1))
	})

	It("falls back to the relays when the store query fails", func() {
		store.err = errors.New("corrupt database")
		network.events = []nostr.Event{reply("n1", "x")}

		events, err := feed.NewResolver(store, network).Resolve(ctx, nostr.Filter{}, 5*time.Second)

		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(1))
	})

	It("surfaces a relay failure on the synchronous path", func() {
		network.err = errors.New("timeout")

		_, err := feed.NewResolver(store, network).Resolve(ctx, nostr.Filter{}, time.Second)

		Expect(err).To(MatchError(network.err))
	})

	It("works without a store by going straight to the relays", func() {
		network.events = []nostr.Event{reply("n1", "x")}

		events, err := feed.NewResolver(nil, network).Resolve(ctx, nostr.Filter{}, time.Second)

		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(1))
	})

	It("returns ErrNoNetwork when no network is configured", func() {
		_, err := feed.NewResolver(store, nil).Resolve(ctx, nostr.Filter{}, time.Second)

		Expect(err).To(MatchError(feed.ErrNoNetwork))
	})
})
