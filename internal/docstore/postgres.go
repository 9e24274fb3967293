package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres stores documents as JSONB rows, one table for all collections.
// Revision comes from a shared sequence bumped on every write and delete,
// which is what Watch polls as the change signal.
type Postgres struct {
	db           *sql.DB
	pollInterval time.Duration
}

func NewPostgres(db *sql.DB, pollInterval time.Duration) *Postgres {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}

	return &Postgres{db: db, pollInterval: pollInterval}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDocument(ctx context.Context, q querier, collection, id string) (Document, error) {
	var raw []byte

	err := q.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("getting document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}

	return doc, nil
}

func putDocument(ctx context.Context, q querier, collection, id string, doc Document) error {
	stored := doc.Clone()
	stored["id"] = id

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO documents (collection, id, doc, revision, updated_at)
		VALUES ($1, $2, $3, nextval('documents_revision_seq'), NOW())
		ON CONFLICT (collection, id)
		DO UPDATE SET doc = EXCLUDED.doc, revision = nextval('documents_revision_seq'), updated_at = NOW()
	`, collection, id, raw)
	if err != nil {
		return fmt.Errorf("putting document: %w", err)
	}

	return nil
}

func deleteDocument(ctx context.Context, q querier, collection, id string) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	// Deletes must move the revision too, or watchers never see them.
	if _, err := q.ExecContext(ctx, `SELECT nextval('documents_revision_seq')`); err != nil {
		return fmt.Errorf("bumping revision: %w", err)
	}

	return nil
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	return getDocument(ctx, p.db, collection, id)
}

func (p *Postgres) Put(ctx context.Context, collection, id string, doc Document) error {
	return putDocument(ctx, p.db, collection, id, doc)
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	return deleteDocument(ctx, p.db, collection, id)
}

// buildPredicate compiles filters to doc->>'field' predicates. Values are
// compared as text, which is exact for the string fields the sync core
// filters on (owner ids, calendar-day dates).
func buildPredicate(filters []Filter) (string, []any) {
	clauses := []string{"collection = $1"}

	var args []any

	for _, f := range filters {
		n := len(args) + 2
		field := fmt.Sprintf("doc->>'%s'", f.Field)

		switch f.Op {
		case OpEqual:
			clauses = append(clauses, fmt.Sprintf("%s = $%d", field, n))
			args = append(args, fmt.Sprint(f.Value))
		case OpIn:
			clauses = append(clauses, fmt.Sprintf("%s = ANY($%d)", field, n))
			args = append(args, toStringSlice(f.Value))
		case OpLessOrEqual:
			clauses = append(clauses, fmt.Sprintf("%s <= $%d", field, n))
			args = append(args, fmt.Sprint(f.Value))
		case OpGreaterOrEqual:
			clauses = append(clauses, fmt.Sprintf("%s >= $%d", field, n))
			args = append(args, fmt.Sprint(f.Value))
		}
	}

	return strings.Join(clauses, " AND "), args
}

func toStringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			out = append(out, fmt.Sprint(e))
		}

		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}

func (p *Postgres) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	predicate, args := buildPredicate(q.Filters)
	query := `SELECT doc FROM documents WHERE ` + predicate

	if q.OrderBy != "" {
		query += fmt.Sprintf(" ORDER BY doc->>'%s'", q.OrderBy)
		if q.Descending {
			query += " DESC"
		}
	}

	rows, err := p.db.QueryContext(ctx, query, append([]any{collection}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []Document

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}

		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decoding document: %w", err)
		}

		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

type pgTxn struct {
	tx *sql.Tx
}

func (t *pgTxn) Get(ctx context.Context, collection, id string) (Document, error) {
	return getDocument(ctx, t.tx, collection, id)
}

func (t *pgTxn) Put(ctx context.Context, collection, id string, doc Document) error {
	return putDocument(ctx, t.tx, collection, id, doc)
}

func (t *pgTxn) Delete(ctx context.Context, collection, id string) error {
	return deleteDocument(ctx, t.tx, collection, id)
}

const txnAttempts = 3

// RunTransaction executes fn in a serializable transaction, retrying on
// serialization failures so concurrent balance recomputes never lose
// updates.
func (p *Postgres) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Txn) error) error {
	var lastErr error

	for attempt := 0; attempt < txnAttempts; attempt++ {
		tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}

		if err := fn(ctx, &pgTxn{tx: tx}); err != nil {
			tx.Rollback()

			if isSerializationFailure(err) {
				lastErr = err
				continue
			}

			return err
		}

		if err := tx.Commit(); err != nil {
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}

			return fmt.Errorf("committing transaction: %w", err)
		}

		return nil
	}

	return fmt.Errorf("transaction retries exhausted: %w", lastErr)
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

type pgSub struct {
	updates chan Snapshot
	done    chan struct{}
	once    sync.Once

	mu  sync.Mutex
	err error
}

func (s *pgSub) Updates() <-chan Snapshot { return s.updates }

func (s *pgSub) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

func (s *pgSub) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *pgSub) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Watch polls the revision sequence and re-runs the query when it moves.
// The underlying store has no push primitive over database/sql, so polling
// is the subscription mechanism; delivery order still follows revisions.
func (p *Postgres) Watch(ctx context.Context, collection string, q Query) (Subscription, error) {
	sub := &pgSub{
		updates: make(chan Snapshot),
		done:    make(chan struct{}),
	}

	go p.poll(ctx, sub, collection, q)

	return sub, nil
}

func (p *Postgres) poll(ctx context.Context, sub *pgSub, collection string, q Query) {
	defer close(sub.updates)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	var lastRevision int64 = -1

	for {
		revision, err := p.currentRevision(ctx)
		if err != nil {
			sub.setErr(err)
			return
		}

		if revision > lastRevision {
			docs, err := p.Query(ctx, collection, q)
			if err != nil {
				sub.setErr(err)
				return
			}

			select {
			case sub.updates <- Snapshot{Docs: docs, Revision: revision}:
				lastRevision = revision
			case <-sub.done:
				return
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ticker.C:
		case <-sub.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *Postgres) currentRevision(ctx context.Context) (int64, error) {
	var revision int64

	err := p.db.QueryRowContext(ctx,
		`SELECT last_value FROM documents_revision_seq`,
	).Scan(&revision)
	if err != nil {
		return 0, fmt.Errorf("reading revision: %w", err)
	}

	return revision, nil
}
