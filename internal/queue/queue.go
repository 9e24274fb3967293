// Package queue is the local durable store for mutations that could not be
// applied to the remote store. Records survive restarts and are replayed in
// enqueue order by the syncer.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Kind is the operation kind of a queued mutation.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// PendingOperation is one queued mutation intent. Exactly one record exists
// per intent; it is removed on successful replay or on abandonment.
type PendingOperation struct {
	ID         int64
	Kind       Kind
	Collection string
	DocumentID string
	Payload    map[string]any
	OwnerID    string
	EnqueuedAt time.Time
	RetryCount int
	LastError  string
}

type Queue struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS pending_operations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	kind        TEXT NOT NULL,
	collection  TEXT NOT NULL,
	document_id TEXT NOT NULL DEFAULT '',
	payload     TEXT NOT NULL,
	owner_id    TEXT NOT NULL,
	enqueued_at TEXT NOT NULL,
	retry_count INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_pending_collection ON pending_operations(collection);
`

// Open opens (or creates) the queue database at path. ":memory:" is
// accepted for throwaway queues.
func Open(path string) (*Queue, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening queue store: %w", err)
	}

	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating queue schema: %w", err)
	}

	return &Queue{db: db}, nil
}

func (q *Queue) Close() error {
	return q.db.Close()
}

// Enqueue durably records one mutation intent and returns its id. Nil-valued
// payload keys are stripped before storing so a malformed caller cannot
// poison the eventual remote write.
func (q *Queue) Enqueue(ctx context.Context, kind Kind, collection, documentID string, payload map[string]any, ownerID string) (int64, error) {
	raw, err := json.Marshal(StripNil(payload))
	if err != nil {
		return 0, fmt.Errorf("encoding payload: %w", err)
	}

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO pending_operations (kind, collection, document_id, payload, owner_id, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(kind), collection, documentID, string(raw), ownerID,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("enqueueing operation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading queue id: %w", err)
	}

	return id, nil
}

// DequeueAllOrdered returns every queued record in FIFO replay order, so a
// create-then-update on the same logical entity replays in that order. The
// autoincrement id is the ordering key; enqueued_at is RFC3339Nano text,
// which does not sort chronologically on whole-second values.
func (q *Queue) DequeueAllOrdered(ctx context.Context) ([]PendingOperation, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, kind, collection, document_id, payload, owner_id, enqueued_at, retry_count, last_error
		FROM pending_operations
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []PendingOperation

	for rows.Next() {
		var (
			op         PendingOperation
			rawPayload string
			enqueuedAt string
		)

		if err := rows.Scan(
			&op.ID, (*string)(&op.Kind), &op.Collection, &op.DocumentID,
			&rawPayload, &op.OwnerID, &enqueuedAt, &op.RetryCount, &op.LastError,
		); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}

		if err := json.Unmarshal([]byte(rawPayload), &op.Payload); err != nil {
			return nil, fmt.Errorf("decoding payload of operation %d: %w", op.ID, err)
		}

		if t, err := time.Parse(time.RFC3339Nano, enqueuedAt); err == nil {
			op.EnqueuedAt = t
		}

		ops = append(ops, op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operations: %w", err)
	}

	return ops, nil
}

// Remove deletes a queued record. Removing an unknown id is a no-op.
func (q *Queue) Remove(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM pending_operations WHERE id = ?`, id,
	); err != nil {
		return fmt.Errorf("removing operation %d: %w", id, err)
	}

	return nil
}

// UpdateRetry persists retry bookkeeping without touching the payload or the
// record's position in replay order.
func (q *Queue) UpdateRetry(ctx context.Context, id int64, retryCount int, lastError string) error {
	if _, err := q.db.ExecContext(ctx, `
		UPDATE pending_operations SET retry_count = ?, last_error = ? WHERE id = ?
	`, retryCount, lastError, id); err != nil {
		return fmt.Errorf("updating retry state of operation %d: %w", id, err)
	}

	return nil
}

// Count returns the number of currently queued records.
func (q *Queue) Count(ctx context.Context) (int, error) {
	var n int

	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_operations`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting operations: %w", err)
	}

	return n, nil
}

// StripNil returns a copy of payload without nil-valued keys. Persisting an
// explicit undefined-equivalent value breaks downstream remote writes.
func StripNil(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))

	for k, v := range payload {
		if v == nil {
			continue
		}

		out[k] = v
	}

	return out
}
