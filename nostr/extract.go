package nostr

import (
	"encoding/json"
	"strconv"
)

// ReferencedEventID returns the id of the event an interaction (reply,
// reaction, repost, zap receipt) points at: the first "e" tag value.
// Returns "" when the event references nothing.
func ReferencedEventID(e *Event) string {
	return e.TagValue("e")
}

// ZapAmountSats extracts the amount of a zap receipt in whole sats.
//
// The "amount" tag carries millisats per NIP-57. When it is absent or
// unparsable, the zap request embedded in the "description" tag is parsed
// as JSON and its "amount" field (also millisats, string or number) is used
// instead. Millisats are truncated to sats; sub-sat remainders are dropped.
//
// Returns 0 and false when neither source yields a number. Extraction is
// best-effort: a zap with no recoverable amount still counts as a zap.
func ZapAmountSats(e *Event) (uint64, bool) {
	if raw := e.TagValue("amount"); raw != "" {
		if msats, err := strconv.ParseUint(raw, 10, 64); err == nil {
			return msats / 1000, true
		}
	}
	if desc := e.TagValue("description"); desc != "" {
		if msats, ok := amountFromZapRequest(desc); ok {
			return msats / 1000, true
		}
	}
	return 0, false
}

// amountFromZapRequest reads the millisat "amount" field out of a zap
// request JSON document. Wallets disagree on whether the field is a string
// or a number, so both are accepted.
func amountFromZapRequest(desc string) (uint64, bool) {
	var req struct {
		Amount json.RawMessage `json:"amount"`
	}
	if err := json.Unmarshal([]byte(desc), &req); err != nil || len(req.Amount) == 0 {
		return 0, false
	}

	var asNum uint64
	if err := json.Unmarshal(req.Amount, &asNum); err == nil {
		return asNum, true
	}
	var asStr string
	if err := json.Unmarshal(req.Amount, &asStr); err == nil {
		if msats, err := strconv.ParseUint(asStr, 10, 64); err == nil {
			return msats, true
		}
	}
	return 0, false
}
