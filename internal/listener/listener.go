// Package listener subscribes to remote change notifications scoped to one
// owner, normalizes incoming documents and feeds a bounded-staleness cache.
package listener

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrJamesThe3rd/pocketbook/internal/docstore"
	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
)

const (
	// DefaultDebounce is the minimum interval between deliveries for one
	// collection. Bursts coalesce; the final state always flushes.
	DefaultDebounce = 200 * time.Millisecond

	// DefaultStaleAfter bounds how old a cache entry may be and still be
	// served as fresh.
	DefaultStaleAfter = 5 * time.Minute
)

// Update is one normalized delivery for a collection.
type Update struct {
	Collection string
	Docs       []docstore.Document
	Revision   int64
}

// Options tune delivery timing. The timing values are tuning, not contract;
// only ordering and teardown behavior are guaranteed.
type Options struct {
	Debounce   time.Duration
	StaleAfter time.Duration
}

type cacheEntry struct {
	docs      []docstore.Document
	revision  int64
	fetchedAt time.Time
	degraded  bool
}

type Listener struct {
	store    docstore.Store
	ownerID  string
	onUpdate func(Update)
	opts     Options

	mu       sync.Mutex
	active   bool
	subs     []docstore.Subscription
	cache    map[string]cacheEntry
	latest   map[string]*Update
	lastEmit map[string]time.Time
	timers   map[string]*time.Timer
}

func New(store docstore.Store, ownerID string, opts Options, onUpdate func(Update)) *Listener {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}

	return &Listener{
		store:    store,
		ownerID:  ownerID,
		onUpdate: onUpdate,
		opts:     opts,
		cache:    make(map[string]cacheEntry),
		latest:   make(map[string]*Update),
		lastEmit: make(map[string]time.Time),
		timers:   make(map[string]*time.Timer),
	}
}

// Start opens one subscription per collection. Categories also match the
// shared system defaults (empty owner id).
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	l.active = true
	l.mu.Unlock()

	for _, collection := range ledger.Collections {
		q := docstore.Query{
			Filters: []docstore.Filter{
				{Field: "owner_id", Op: docstore.OpEqual, Value: l.ownerID},
			},
		}
		if collection == ledger.CollectionCategories {
			q.Filters = []docstore.Filter{
				{Field: "owner_id", Op: docstore.OpIn, Value: []string{l.ownerID, ""}},
			}
		}

		sub, err := l.store.Watch(ctx, collection, q)
		if err != nil {
			l.Close()
			return fmt.Errorf("watching %s: %w", collection, err)
		}

		l.mu.Lock()
		l.subs = append(l.subs, sub)
		l.mu.Unlock()

		go l.consume(collection, sub)
	}

	return nil
}

func (l *Listener) consume(collection string, sub docstore.Subscription) {
	for snap := range sub.Updates() {
		l.handleSnapshot(collection, snap)
	}

	if err := sub.Err(); err != nil {
		l.mu.Lock()
		if l.active {
			// Cached data is now a degraded fallback, served explicitly
			// as such rather than silently pretending to be live.
			entry := l.cache[collection]
			entry.degraded = true
			l.cache[collection] = entry

			slog.Warn("subscription failed, cache degraded to fallback",
				"collection", collection, "error", err)
		}
		l.mu.Unlock()
	}
}

func (l *Listener) handleSnapshot(collection string, snap docstore.Snapshot) {
	docs := make([]docstore.Document, 0, len(snap.Docs))

	for _, doc := range snap.Docs {
		normalized, ok := normalize(collection, doc)
		if !ok {
			slog.Warn("skipping malformed document", "collection", collection)
			continue
		}

		docs = append(docs, normalized)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return
	}

	// Deliveries are ordered by revision; a late lower-revision snapshot
	// is dropped rather than delivered out of order.
	if prev, ok := l.latest[collection]; ok && snap.Revision <= prev.Revision {
		return
	}

	if entry, ok := l.cache[collection]; ok && snap.Revision <= entry.revision {
		return
	}

	l.latest[collection] = &Update{Collection: collection, Docs: docs, Revision: snap.Revision}

	since := time.Since(l.lastEmit[collection])
	if since >= l.opts.Debounce {
		l.emitLocked(collection)
		return
	}

	if _, pending := l.timers[collection]; !pending {
		l.timers[collection] = time.AfterFunc(l.opts.Debounce-since, func() {
			l.flush(collection)
		})
	}
}

// flush delivers the newest undelivered state of a burst.
func (l *Listener) flush(collection string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.timers, collection)

	if !l.active {
		return
	}

	if _, ok := l.latest[collection]; ok {
		l.emitLocked(collection)
	}
}

// emitLocked updates the cache and invokes the callback. The callback runs
// under the listener lock, which is what makes teardown synchronous: Close
// cannot return while a delivery is in flight, and no delivery can start
// after Close flipped the active flag.
func (l *Listener) emitLocked(collection string) {
	update := l.latest[collection]
	delete(l.latest, collection)

	l.cache[collection] = cacheEntry{
		docs:      update.Docs,
		revision:  update.Revision,
		fetchedAt: time.Now(),
	}
	l.lastEmit[collection] = time.Now()

	if l.onUpdate != nil {
		l.onUpdate(*update)
	}
}

// Snapshot serves the cached state of a collection. fresh is false once the
// entry has outlived the staleness bound or the live subscription failed;
// such data is a degraded fallback, not current truth.
func (l *Listener) Snapshot(collection string) (docs []docstore.Document, fresh, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.cache[collection]
	if !ok {
		return nil, false, false
	}

	fresh = !entry.degraded && time.Since(entry.fetchedAt) < l.opts.StaleAfter
	if !fresh {
		slog.Info("serving stale cache entry as fallback", "collection", collection)
	}

	return entry.docs, fresh, true
}

// Close tears the listener down: all subscriptions stop and no callback
// fires after it returns, including for in-flight snapshots.
func (l *Listener) Close() {
	l.mu.Lock()

	if !l.active {
		l.mu.Unlock()
		return
	}

	l.active = false

	for _, timer := range l.timers {
		timer.Stop()
	}

	l.timers = make(map[string]*time.Timer)
	subs := l.subs
	l.subs = nil

	l.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
