package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nostrfeed/feedcache/nostr"
)

// fetchOne runs a single REQ subscription against one relay and collects
// events until the relay signals EOSE, the filter's limit is reached, or
// the context deadline passes. The connection is dialled per fetch and
// closed on return; relays drop idle sockets aggressively, so there is
// little to gain from pooling them.
func (p *Pool) fetchOne(ctx context.Context, url string, f nostr.Filter) ([]nostr.Event, error) {
	conn, _, err := p.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("relay: dialling %s: %w", url, err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	subID := uuid.New().String()
	req, err := json.Marshal([]any{"REQ", subID, f})
	if err != nil {
		return nil, fmt.Errorf("relay: encoding request: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, req); err != nil {
		return nil, fmt.Errorf("relay: sending request to %s: %w", url, err)
	}

	var events []nostr.Event
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return events, fmt.Errorf("relay: reading from %s: %w", url, err)
		}

		var frame []json.RawMessage
		if err := json.Unmarshal(raw, &frame); err != nil || len(frame) < 2 {
			continue // not a protocol frame — ignore
		}
		var kind string
		if err := json.Unmarshal(frame[0], &kind); err != nil {
			continue
		}

		switch kind {
		case "EVENT":
			if len(frame) < 3 {
				continue
			}
			var e nostr.Event
			if err := json.Unmarshal(frame[2], &e); err != nil {
				continue // one undecodable event never aborts the batch
			}
			events = append(events, e)
			if f.Limit > 0 && len(events) >= f.Limit {
				p.endSubscription(conn, subID)
				return events, nil
			}
		case "EOSE":
			p.endSubscription(conn, subID)
			return events, nil
		case "CLOSED":
			return events, fmt.Errorf("relay: %s closed subscription", url)
		default:
			// NOTICE, AUTH, OK — nothing to do for a read-only fetch.
		}
	}
}

// endSubscription tells the relay to stop the subscription before the
// socket is torn down. Best effort; the deferred close handles the rest.
func (p *Pool) endSubscription(conn *websocket.Conn, subID string) {
	msg, err := json.Marshal([]any{"CLOSE", subID})
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = conn.WriteMessage(websocket.TextMessage, msg)
}
