package nostr_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nostrfeed/feedcache/nostr"
)

var _ = Describe("ReferencedEventID", func() {
	It("returns the first e tag value", func() {
		e := &nostr.Event{Tags: [][]string{
			{"p", "pubkey-1"},
			{"e", "event-a", "wss://relay.example", "root"},
			{"e", "event-b"},
		}}
		Expect(nostr.ReferencedEventID(e)).To(Equal("event-a"))
	})

	It("returns empty when the event has no e tag", func() {
		e := &nostr.Event{Tags: [][]string{{"p", "pubkey-1"}}}
		Expect(nostr.ReferencedEventID(e)).To(BeEmpty())
	})

	It("skips malformed single-element tags", func() {
		e := &nostr.Event{Tags: [][]string{{"e"}, {"e", "event-c"}}}
		Expect(nostr.ReferencedEventID(e)).To(Equal("event-c"))
	})
})

var _ = Describe("ZapAmountSats", func() {
	It("reads millisats from the amount tag and truncates to sats", func() {
		e := &nostr.Event{Kind: nostr.KindZapReceipt, Tags: [][]string{{"amount", "5000"}}}
		sats, ok := nostr.ZapAmountSats(e)
		Expect(ok).To(BeTrue())
		Expect(sats).To(Equal(uint64(5)))
	})

	It("drops sub-sat remainders instead of rounding", func() {
		e := &nostr.Event{Tags: [][]string{{"amount", "5999"}}}
		sats, ok := nostr.ZapAmountSats(e)
		Expect(ok).To(BeTrue())
		Expect(sats).To(Equal(uint64(5)))
	})

	It("falls back to the description zap request with a string amount", func() {
		e := &nostr.Event{Tags: [][]string{
			{"bolt11", "lnbc50n1..."},
			{"description", `{"amount":"21000","content":"great post"}`},
		}}
		sats, ok := nostr.ZapAmountSats(e)
		Expect(ok).To(BeTrue())
		Expect(sats).To(Equal(uint64(21)))
	})

	It("falls back to the description zap request with a numeric amount", func() {
		e := &nostr.Event{Tags: [][]string{
			{"description", `{"amount":3000}`},
		}}
		sats, ok := nostr.ZapAmountSats(e)
		Expect(ok).To(BeTrue())
		Expect(sats).To(Equal(uint64(3)))
	})

	It("prefers the amount tag over the description", func() {
		e := &nostr.Event{Tags: [][]string{
			{"amount", "1000"},
			{"description", `{"amount":"99000"}`},
		}}
		sats, ok := nostr.ZapAmountSats(e)
		Expect(ok).To(BeTrue())
		Expect(sats).To(Equal(uint64(1)))
	})

	It("returns not-ok for an unparsable amount tag and description", func() {
		e := &nostr.Event{Tags: [][]string{
			{"amount", "a lot"},
			{"description", "not json"},
		}}
		sats, ok := nostr.ZapAmountSats(e)
		Expect(ok).To(BeFalse())
		Expect(sats).To(BeZero())
	})

	It("returns not-ok when neither tag is present", func() {
		e := &nostr.Event{}
		_, ok := nostr.ZapAmountSats(e)
		Expect(ok).To(BeFalse())
	})
})
