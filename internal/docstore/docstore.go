// Package docstore defines the contract the sync core requires from the
// remote document database: CRUD by id, equality/range queries, a
// transactional primitive for multi-document writes, and ordered snapshot
// subscriptions.
package docstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no document exists under the id.
var ErrNotFound = errors.New("docstore: document not found")

// Document is the schemaless unit of storage. Values are the JSON scalar
// types plus nested maps/slices; readers use the tolerant accessors below
// rather than asserting concrete types.
type Document map[string]any

// Op is a query filter operator.
type Op string

const (
	OpEqual          Op = "=="
	OpIn             Op = "in"
	OpLessOrEqual    Op = "<="
	OpGreaterOrEqual Op = ">="
)

// Filter restricts a query to documents whose field satisfies the operator.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query describes an equality/range query against one collection.
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
}

// Snapshot is the full current result set of a watched query. Revision
// increases monotonically per store; a later snapshot never carries a lower
// revision.
type Snapshot struct {
	Docs     []Document
	Revision int64
}

// Subscription delivers snapshots of a watched query until closed.
type Subscription interface {
	// Updates yields snapshots in increasing revision order. The channel is
	// closed after Close or on a subscription error.
	Updates() <-chan Snapshot

	// Err reports why the subscription stopped, nil after a plain Close.
	Err() error

	// Close stops delivery. It is idempotent.
	Close()
}

// Txn is the mutation surface available inside RunTransaction.
type Txn interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Put(ctx context.Context, collection, id string, doc Document) error
	Delete(ctx context.Context, collection, id string) error
}

// Store is a key-partitioned document database.
type Store interface {
	Txn

	// Query returns all documents in the collection matching q.
	Query(ctx context.Context, collection string, q Query) ([]Document, error)

	// RunTransaction executes fn atomically. Implementations retry fn on
	// optimistic-concurrency conflicts, so fn must be safe to re-run.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Txn) error) error

	// Watch subscribes to the query's result set; a snapshot is delivered
	// after every matching document change.
	Watch(ctx context.Context, collection string, q Query) (Subscription, error)
}

// String returns the value under key as a string, or "" when absent or not
// a string.
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Int64 coerces the value under key to int64. JSON decoding hands back
// float64 for numbers, so all numeric shapes are accepted.
func (d Document) Int64(key string) int64 {
	switch v := d[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	default:
		return 0
	}
}

// Bool returns the value under key as a bool, defaulting to false.
func (d Document) Bool(key string) bool {
	b, _ := d[key].(bool)
	return b
}

// Strings returns the value under key as a string slice, accepting both
// []string and the []any produced by JSON decoding.
func (d Document) Strings(key string) []string {
	switch v := d[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}

// Time coerces the backend's timestamp representations to time.Time:
// time.Time itself, RFC3339 strings, and unix seconds or milliseconds.
func (d Document) Time(key string) (time.Time, bool) {
	switch v := d[key].(type) {
	case time.Time:
		return v, true
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t, true
		}

		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, true
		}

		return time.Time{}, false
	case float64:
		return unixTime(int64(v)), true
	case int64:
		return unixTime(v), true
	default:
		return time.Time{}, false
	}
}

// unixTime treats values past the year ~2286 in seconds as milliseconds.
func unixTime(v int64) time.Time {
	if v > 1e11 {
		return time.UnixMilli(v).UTC()
	}

	return time.Unix(v, 0).UTC()
}

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}

	return out
}
