// Package store is the persistent local tier: a SQLite-backed event store
// queried before any relay is contacted. It is expected to be fast and may
// legitimately return nothing; freshness is the relay pool's job.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/nostrfeed/feedcache/nostr"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	pubkey     TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	kind       INTEGER NOT NULL,
	tags       TEXT NOT NULL,
	content    TEXT NOT NULL,
	sig        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_pubkey_kind ON events (pubkey, kind);
CREATE INDEX IF NOT EXISTS idx_events_kind_created ON events (kind, created_at DESC);

CREATE TABLE IF NOT EXISTS event_tags (
	event_id TEXT NOT NULL REFERENCES events (id) ON DELETE CASCADE,
	name     TEXT NOT NULL,
	value    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_event_tags_lookup ON event_tags (name, value, event_id);
`

// Store owns the SQLite connection. One Store is opened at startup and
// shared; database/sql serialises access internally.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the event database at path and applies
// the schema. ":memory:" opens a shared in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	// SQLite allows one writer; keeping a single connection avoids
	// SQLITE_BUSY between the saver and concurrent readers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping checks database connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Save inserts events, ignoring ids already present. Events are immutable
// once signed, so insert-or-ignore is sufficient for idempotence.
func (s *Store) Save(ctx context.Context, events []nostr.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertEvent, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO events (id, pubkey, created_at, kind, tags, content, sig)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare insert: %w", err)
	}
	defer func() { _ = insertEvent.Close() }()

	insertTag, err := tx.PrepareContext(ctx,
		`INSERT INTO event_tags (event_id, name, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare tag insert: %w", err)
	}
	defer func() { _ = insertTag.Close() }()

	for _, e := range events {
		tags, err := json.Marshal(e.Tags)
		if err != nil {
			continue // unencodable tags — skip the event, not the batch
		}
		res, err := insertEvent.ExecContext(ctx, e.ID, e.Pubkey, e.CreatedAt, e.Kind, string(tags), e.Content, e.Sig)
		if err != nil {
			return fmt.Errorf("store: inserting event %s: %w", e.ID, err)
		}
		inserted, _ := res.RowsAffected()
		if inserted == 0 {
			continue // already present
		}
		for _, tag := range e.Tags {
			if len(tag) >= 2 && len(tag[0]) == 1 {
				if _, err := insertTag.ExecContext(ctx, e.ID, tag[0], tag[1]); err != nil {
					return fmt.Errorf("store: indexing tag for %s: %w", e.ID, err)
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit save: %w", err)
	}
	return nil
}

// Query returns locally stored events matching the filter, newest first.
func (s *Store) Query(ctx context.Context, f nostr.Filter) ([]nostr.Event, error) {
	query, args := buildQuery(f)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []nostr.Event
	for rows.Next() {
		var e nostr.Event
		var tags string
		if err := rows.Scan(&e.ID, &e.Pubkey, &e.CreatedAt, &e.Kind, &tags, &e.Content, &e.Sig); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
			continue // corrupt tag column — skip the row, not the result
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: rows: %w", err)
	}
	return events, nil
}

// buildQuery translates a filter into SQL. Tag constraints go through the
// event_tags index with EXISTS so a filter can combine kinds, authors and
// referenced ids in one statement.
func buildQuery(f nostr.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)

	addIn := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		where = append(where, column+" IN ("+placeholders(len(values))+")")
		for _, v := range values {
			args = append(args, v)
		}
	}

	addIn("id", f.IDs)
	addIn("pubkey", f.Authors)

	if len(f.Kinds) > 0 {
		where = append(where, "kind IN ("+placeholders(len(f.Kinds))+")")
		for _, k := range f.Kinds {
			args = append(args, k)
		}
	}

	addTag := func(name string, values []string) {
		if len(values) == 0 {
			return
		}
		where = append(where,
			"EXISTS (SELECT 1 FROM event_tags t WHERE t.event_id = events.id AND t.name = ? AND t.value IN ("+
				placeholders(len(values))+"))")
		args = append(args, name)
		for _, v := range values {
			args = append(args, v)
		}
	}

	addTag("e", f.ETags)
	addTag("p", f.PTags)

	if f.Since > 0 {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since)
	}
	if f.Until > 0 {
		where = append(where, "created_at <= ?")
		args = append(args, f.Until)
	}

	query := "SELECT id, pubkey, created_at, kind, tags, content, sig FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return query, args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
