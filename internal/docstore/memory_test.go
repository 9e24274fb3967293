package docstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/pocketbook/internal/docstore"
)

func TestMemory_GetPutDelete(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()

	_, err := store.Get(ctx, "accounts", "a1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	require.NoError(t, store.Put(ctx, "accounts", "a1", docstore.Document{"id": "a1", "name": "wallet"}))

	doc, err := store.Get(ctx, "accounts", "a1")
	require.NoError(t, err)
	assert.Equal(t, "wallet", doc.String("name"))

	require.NoError(t, store.Delete(ctx, "accounts", "a1"))

	_, err = store.Get(ctx, "accounts", "a1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestMemory_QueryFiltersAndOrder(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()

	docs := []docstore.Document{
		{"id": "t1", "owner_id": "alice", "date": "2024-01-03", "amount": int64(100)},
		{"id": "t2", "owner_id": "alice", "date": "2024-01-01", "amount": int64(200)},
		{"id": "t3", "owner_id": "bob", "date": "2024-01-02", "amount": int64(300)},
	}
	for _, d := range docs {
		require.NoError(t, store.Put(ctx, "transactions", d.String("id"), d))
	}

	got, err := store.Query(ctx, "transactions", docstore.Query{
		Filters: []docstore.Filter{
			{Field: "owner_id", Op: docstore.OpEqual, Value: "alice"},
		},
		OrderBy: "date",
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t2", got[0].String("id"))
	assert.Equal(t, "t1", got[1].String("id"))

	got, err = store.Query(ctx, "transactions", docstore.Query{
		Filters: []docstore.Filter{
			{Field: "owner_id", Op: docstore.OpIn, Value: []any{"alice", "bob"}},
			{Field: "amount", Op: docstore.OpGreaterOrEqual, Value: int64(200)},
		},
		OrderBy:    "amount",
		Descending: true,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t3", got[0].String("id"))
	assert.Equal(t, "t2", got[1].String("id"))
}

func TestMemory_RunTransactionAtomicity(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "accounts", "a1", docstore.Document{"id": "a1", "balance": int64(100)}))

	boom := errors.New("boom")

	err := store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Txn) error {
		if err := tx.Put(ctx, "accounts", "a1", docstore.Document{"id": "a1", "balance": int64(999)}); err != nil {
			return err
		}

		return boom
	})
	require.ErrorIs(t, err, boom)

	doc, err := store.Get(ctx, "accounts", "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), doc.Int64("balance"))

	err = store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Txn) error {
		doc, err := tx.Get(ctx, "accounts", "a1")
		if err != nil {
			return err
		}

		doc["balance"] = doc.Int64("balance") + 50

		return tx.Put(ctx, "accounts", "a1", doc)
	})
	require.NoError(t, err)

	doc, err = store.Get(ctx, "accounts", "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(150), doc.Int64("balance"))
}

func TestMemory_WatchDeliversSnapshots(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()

	sub, err := store.Watch(ctx, "goals", docstore.Query{
		Filters: []docstore.Filter{
			{Field: "owner_id", Op: docstore.OpEqual, Value: "alice"},
		},
	})
	require.NoError(t, err)
	defer sub.Close()

	// Initial snapshot of the empty collection.
	snap := waitForSnapshot(t, sub)
	assert.Empty(t, snap.Docs)

	require.NoError(t, store.Put(ctx, "goals", "g1", docstore.Document{"id": "g1", "owner_id": "alice"}))

	snap = waitForSnapshot(t, sub)
	for len(snap.Docs) == 0 {
		snap = waitForSnapshot(t, sub)
	}

	require.Len(t, snap.Docs, 1)
	assert.Equal(t, "g1", snap.Docs[0].String("id"))

	lastRev := snap.Revision

	require.NoError(t, store.Delete(ctx, "goals", "g1"))

	snap = waitForSnapshot(t, sub)
	for len(snap.Docs) != 0 {
		snap = waitForSnapshot(t, sub)
	}

	assert.Greater(t, snap.Revision, lastRev)
}

func waitForSnapshot(t *testing.T, sub docstore.Subscription) docstore.Snapshot {
	t.Helper()

	select {
	case snap, ok := <-sub.Updates():
		require.True(t, ok, "subscription closed unexpectedly")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return docstore.Snapshot{}
	}
}

func TestDocument_Accessors(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	doc := docstore.Document{
		"name":    "wallet",
		"balance": float64(1500), // JSON numbers decode as float64
		"tags":    []any{"a", "b"},
		"created": now.Format(time.RFC3339Nano),
		"flag":    true,
	}

	assert.Equal(t, "wallet", doc.String("name"))
	assert.Equal(t, int64(1500), doc.Int64("balance"))
	assert.Equal(t, []string{"a", "b"}, doc.Strings("tags"))
	assert.True(t, doc.Bool("flag"))

	got, ok := doc.Time("created")
	require.True(t, ok)
	assert.True(t, got.Equal(now))

	_, ok = doc.Time("missing")
	assert.False(t, ok)

	clone := doc.Clone()
	clone["name"] = "changed"
	assert.Equal(t, "wallet", doc.String("name"))
}
