package docstore

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store with the same semantics as the postgres
// implementation. It backs tests and the TUI's demo mode.
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[string]Document
	revision    int64
	subs        map[int]*memSub
	nextSub     int
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]Document),
		subs:        make(map[int]*memSub),
	}
}

func (m *Memory) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.getLocked(collection, id)
}

func (m *Memory) getLocked(collection, id string) (Document, error) {
	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}

	return doc.Clone(), nil
}

func (m *Memory) Put(_ context.Context, collection, id string, doc Document) error {
	m.mu.Lock()
	m.putLocked(collection, id, doc)
	m.mu.Unlock()

	m.notify(collection)

	return nil
}

func (m *Memory) putLocked(collection, id string, doc Document) {
	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]Document)
		m.collections[collection] = docs
	}

	stored := doc.Clone()
	stored["id"] = id
	docs[id] = stored
	m.revision++
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	m.deleteLocked(collection, id)
	m.mu.Unlock()

	m.notify(collection)

	return nil
}

func (m *Memory) deleteLocked(collection, id string) {
	if docs, ok := m.collections[collection]; ok {
		delete(docs, id)
		m.revision++
	}
}

func (m *Memory) Query(_ context.Context, collection string, q Query) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.queryLocked(collection, q), nil
}

func (m *Memory) queryLocked(collection string, q Query) []Document {
	var out []Document

	for _, doc := range m.collections[collection] {
		if matches(doc, q.Filters) {
			out = append(out, doc.Clone())
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			less := compareValues(out[i][q.OrderBy], out[j][q.OrderBy]) < 0
			if q.Descending {
				return !less
			}

			return less
		})
	}

	return out
}

// memTxn stages writes so that fn sees its own mutations but nothing is
// visible (or notified) until the whole callback succeeds.
type memTxn struct {
	m *Memory
	// staged[collection][id] == nil marks a staged delete.
	staged map[string]map[string]Document
}

func (t *memTxn) stagedFor(collection string) map[string]Document {
	docs, ok := t.staged[collection]
	if !ok {
		docs = make(map[string]Document)
		t.staged[collection] = docs
	}

	return docs
}

func (t *memTxn) Get(_ context.Context, collection, id string) (Document, error) {
	if docs, ok := t.staged[collection]; ok {
		if doc, ok := docs[id]; ok {
			if doc == nil {
				return nil, ErrNotFound
			}

			return doc.Clone(), nil
		}
	}

	return t.m.getLocked(collection, id)
}

func (t *memTxn) Put(_ context.Context, collection, id string, doc Document) error {
	stored := doc.Clone()
	stored["id"] = id
	t.stagedFor(collection)[id] = stored

	return nil
}

func (t *memTxn) Delete(_ context.Context, collection, id string) error {
	t.stagedFor(collection)[id] = nil
	return nil
}

func (m *Memory) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Txn) error) error {
	m.mu.Lock()

	tx := &memTxn{m: m, staged: make(map[string]map[string]Document)}
	if err := fn(ctx, tx); err != nil {
		m.mu.Unlock()
		return err
	}

	var touched []string

	for collection, docs := range tx.staged {
		touched = append(touched, collection)

		for id, doc := range docs {
			if doc == nil {
				m.deleteLocked(collection, id)
			} else {
				m.putLocked(collection, id, doc)
			}
		}
	}

	m.mu.Unlock()

	for _, collection := range touched {
		m.notify(collection)
	}

	return nil
}

type memSub struct {
	store      *Memory
	id         int
	collection string
	query      Query

	updates chan Snapshot
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func (m *Memory) Watch(_ context.Context, collection string, q Query) (Subscription, error) {
	m.mu.Lock()

	sub := &memSub{
		store:      m,
		id:         m.nextSub,
		collection: collection,
		query:      q,
		updates:    make(chan Snapshot),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	m.nextSub++
	m.subs[sub.id] = sub
	m.mu.Unlock()

	// Initial snapshot.
	sub.wake <- struct{}{}

	go sub.run()

	return sub, nil
}

func (s *memSub) run() {
	defer close(s.updates)

	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		s.store.mu.Lock()
		snap := Snapshot{
			Docs:     s.store.queryLocked(s.collection, s.query),
			Revision: s.store.revision,
		}
		s.store.mu.Unlock()

		select {
		case s.updates <- snap:
		case <-s.done:
			return
		}
	}
}

func (s *memSub) Updates() <-chan Snapshot { return s.updates }
func (s *memSub) Err() error               { return nil }

func (s *memSub) Close() {
	s.once.Do(func() {
		close(s.done)

		s.store.mu.Lock()
		delete(s.store.subs, s.id)
		s.store.mu.Unlock()
	})
}

// notify wakes subscribers of the collection. The wake channel has capacity
// one, so bursts coalesce into a single fresh snapshot.
func (m *Memory) notify(collection string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sub := range m.subs {
		if sub.collection != collection {
			continue
		}

		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}

func matches(doc Document, filters []Filter) bool {
	for _, f := range filters {
		v, ok := doc[f.Field]
		if !ok {
			return false
		}

		switch f.Op {
		case OpEqual:
			if !equalValues(v, f.Value) {
				return false
			}
		case OpIn:
			if !containsValue(f.Value, v) {
				return false
			}
		case OpLessOrEqual:
			if compareValues(v, f.Value) > 0 {
				return false
			}
		case OpGreaterOrEqual:
			if compareValues(v, f.Value) < 0 {
				return false
			}
		default:
			return false
		}
	}

	return true
}

func containsValue(set, v any) bool {
	switch s := set.(type) {
	case []string:
		for _, e := range s {
			if equalValues(v, e) {
				return true
			}
		}
	case []any:
		for _, e := range s {
			if equalValues(v, e) {
				return true
			}
		}
	}

	return false
}

func equalValues(a, b any) bool {
	return compareValues(a, b) == 0
}

// compareValues orders two scalar values: numbers numerically, everything
// else by string form.
func compareValues(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)

	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	as, _ := a.(string)
	bs, _ := b.(string)

	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
