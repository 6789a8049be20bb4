// Package nostr holds the event and filter model shared by the store, the
// relay pool and the feed resolvers, plus typed extraction helpers for the
// tag conventions the aggregation layer depends on.
package nostr

// Event kinds the service works with.
const (
	KindMetadata   = 0    // profile metadata (NIP-01)
	KindTextNote   = 1    // text note; a note with an "e" tag is a reply
	KindRepost     = 6    // repost (NIP-18)
	KindReaction   = 7    // reaction (NIP-25)
	KindZapReceipt = 9735 // zap receipt (NIP-57)
)

// Event is a signed Nostr event as received from a relay. The service never
// mutates events; they are stored, counted and served as-is.
type Event struct {
	ID        string     `json:"id"`
	Pubkey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// TagValue returns the first value of the first tag with the given name,
// or "" when the event carries no such tag.
func (e *Event) TagValue(name string) string {
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1]
		}
	}
	return ""
}

// TagValues returns the first value of every tag with the given name.
func (e *Event) TagValues(name string) []string {
	var values []string
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name {
			values = append(values, tag[1])
		}
	}
	return values
}
