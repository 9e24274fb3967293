package listener_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/pocketbook/internal/docstore"
	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
	"github.com/MrJamesThe3rd/pocketbook/internal/listener"
)

type updateRecorder struct {
	mu      sync.Mutex
	updates []listener.Update
}

func (r *updateRecorder) record(u listener.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.updates = append(r.updates, u)
}

func (r *updateRecorder) forCollection(collection string) []listener.Update {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]listener.Update, 0, len(r.updates))
	for _, u := range r.updates {
		if u.Collection == collection {
			out = append(out, u)
		}
	}

	return out
}

// waitFor polls until cond holds or the deadline expires.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}

		select {
		case <-deadline:
			t.Fatal("condition not met within deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestListener_NormalizesIncomingDocuments(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, ledger.CollectionAccounts, "a1", docstore.Document{
		"id":       "a1",
		"owner_id": "alice",
	}))
	require.NoError(t, store.Put(ctx, ledger.CollectionTransactions, "t1", docstore.Document{
		"id":       "t1",
		"owner_id": "alice",
		"tags":     nil,
	}))

	rec := &updateRecorder{}
	l := listener.New(store, "alice", listener.Options{Debounce: time.Millisecond}, rec.record)
	require.NoError(t, l.Start(ctx))
	defer l.Close()

	waitFor(t, func() bool {
		accounts := rec.forCollection(ledger.CollectionAccounts)
		txs := rec.forCollection(ledger.CollectionTransactions)
		return len(accounts) > 0 && len(accounts[len(accounts)-1].Docs) == 1 &&
			len(txs) > 0 && len(txs[len(txs)-1].Docs) == 1
	})

	accounts := rec.forCollection(ledger.CollectionAccounts)
	account := accounts[len(accounts)-1].Docs[0]
	assert.Equal(t, "Unnamed account", account.String("name"))
	assert.Equal(t, string(ledger.AccountWallet), account.String("type"))

	txs := rec.forCollection(ledger.CollectionTransactions)
	tx := txs[len(txs)-1].Docs[0]
	assert.Equal(t, []string{}, tx["tags"])
}

func TestListener_SeesSharedDefaultCategories(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, ledger.CollectionCategories, "c1", docstore.Document{
		"id": "c1", "owner_id": "", "name": "Groceries",
	}))
	require.NoError(t, store.Put(ctx, ledger.CollectionCategories, "c2", docstore.Document{
		"id": "c2", "owner_id": "alice", "name": "Hobby",
	}))
	require.NoError(t, store.Put(ctx, ledger.CollectionCategories, "c3", docstore.Document{
		"id": "c3", "owner_id": "bob", "name": "Not mine",
	}))

	rec := &updateRecorder{}
	l := listener.New(store, "alice", listener.Options{Debounce: time.Millisecond}, rec.record)
	require.NoError(t, l.Start(ctx))
	defer l.Close()

	waitFor(t, func() bool {
		cats := rec.forCollection(ledger.CollectionCategories)
		return len(cats) > 0 && len(cats[len(cats)-1].Docs) == 2
	})
}

func TestListener_DebounceCoalescesBursts(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()

	rec := &updateRecorder{}
	l := listener.New(store, "alice", listener.Options{Debounce: 150 * time.Millisecond}, rec.record)
	require.NoError(t, l.Start(ctx))
	defer l.Close()

	// Wait for the initial empty snapshot so the burst starts from a
	// known delivery baseline.
	waitFor(t, func() bool {
		return len(rec.forCollection(ledger.CollectionAccounts)) > 0
	})

	for i := 0; i < 10; i++ {
		require.NoError(t, store.Put(ctx, ledger.CollectionAccounts, "a1", docstore.Document{
			"id": "a1", "owner_id": "alice", "name": "wallet", "balance": int64(i),
		}))
	}

	// The trailing flush must deliver the final state of the burst.
	waitFor(t, func() bool {
		accounts := rec.forCollection(ledger.CollectionAccounts)
		if len(accounts) == 0 {
			return false
		}
		last := accounts[len(accounts)-1]
		return len(last.Docs) == 1 && last.Docs[0].Int64("balance") == 9
	})

	accounts := rec.forCollection(ledger.CollectionAccounts)
	assert.Less(t, len(accounts), 11, "burst writes should coalesce into fewer deliveries")
}

func TestListener_RevisionsStrictlyIncrease(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()

	rec := &updateRecorder{}
	l := listener.New(store, "alice", listener.Options{Debounce: time.Millisecond}, rec.record)
	require.NoError(t, l.Start(ctx))
	defer l.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Put(ctx, ledger.CollectionGoals, "g1", docstore.Document{
			"id": "g1", "owner_id": "alice", "saved": int64(i),
		}))
		time.Sleep(20 * time.Millisecond)
	}

	waitFor(t, func() bool {
		goals := rec.forCollection(ledger.CollectionGoals)
		return len(goals) > 0 && len(goals[len(goals)-1].Docs) == 1 &&
			goals[len(goals)-1].Docs[0].Int64("saved") == 4
	})

	goals := rec.forCollection(ledger.CollectionGoals)
	for i := 1; i < len(goals); i++ {
		assert.Greater(t, goals[i].Revision, goals[i-1].Revision)
	}
}

func TestListener_NoCallbackAfterClose(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()

	rec := &updateRecorder{}
	l := listener.New(store, "alice", listener.Options{Debounce: time.Millisecond}, rec.record)
	require.NoError(t, l.Start(ctx))

	waitFor(t, func() bool {
		return len(rec.forCollection(ledger.CollectionAccounts)) > 0
	})

	l.Close()

	before := len(rec.forCollection(ledger.CollectionAccounts))

	require.NoError(t, store.Put(ctx, ledger.CollectionAccounts, "a1", docstore.Document{
		"id": "a1", "owner_id": "alice", "name": "late",
	}))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, before, len(rec.forCollection(ledger.CollectionAccounts)))

	// Close is idempotent.
	l.Close()
}

func TestListener_SnapshotFreshness(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, ledger.CollectionAccounts, "a1", docstore.Document{
		"id": "a1", "owner_id": "alice", "name": "wallet",
	}))

	rec := &updateRecorder{}
	l := listener.New(store, "alice", listener.Options{
		Debounce:   time.Millisecond,
		StaleAfter: 50 * time.Millisecond,
	}, rec.record)
	require.NoError(t, l.Start(ctx))
	defer l.Close()

	waitFor(t, func() bool {
		accounts := rec.forCollection(ledger.CollectionAccounts)
		return len(accounts) > 0 && len(accounts[len(accounts)-1].Docs) == 1
	})

	docs, fresh, ok := l.Snapshot(ledger.CollectionAccounts)
	require.True(t, ok)
	assert.True(t, fresh)
	require.Len(t, docs, 1)

	_, _, ok = l.Snapshot("unknown")
	assert.False(t, ok)

	time.Sleep(80 * time.Millisecond)

	_, fresh, ok = l.Snapshot(ledger.CollectionAccounts)
	require.True(t, ok)
	assert.False(t, fresh, "entry past the staleness bound is a degraded fallback")
}
