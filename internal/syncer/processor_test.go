package syncer_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
	"github.com/MrJamesThe3rd/pocketbook/internal/queue"
	"github.com/MrJamesThe3rd/pocketbook/internal/syncer"
)

func openQueue(t *testing.T) *queue.Queue {
	t.Helper()

	q, err := queue.Open(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)

	t.Cleanup(func() { q.Close() })

	return q
}

func TestProcessor_OfflineIsNoOp(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	q := openQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, queue.KindCreate, ledger.CollectionAccounts, "", map[string]any{"name": "wallet"}, "alice")
	require.NoError(t, err)

	applier := syncer.NewMockApplier(ctrl)
	conn := syncer.NewMockConnectivity(ctrl)
	conn.EXPECT().Online().Return(false)

	p := syncer.New(q, applier, conn)

	synced, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, synced)

	count, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "offline run must not consume the queue")
}

func TestProcessor_AppliesInFIFOOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	q := openQueue(t)
	ctx := context.Background()

	ids := make([]int64, 0, 3)
	for _, name := range []string{"first", "second", "third"} {
		id, err := q.Enqueue(ctx, queue.KindCreate, ledger.CollectionGoals, "", map[string]any{"name": name}, "alice")
		require.NoError(t, err)
		ids = append(ids, id)
	}

	applier := syncer.NewMockApplier(ctrl)
	conn := syncer.NewMockConnectivity(ctrl)
	conn.EXPECT().Online().Return(true)

	var applied []int64

	applier.EXPECT().
		Apply(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, op queue.PendingOperation) error {
			applied = append(applied, op.ID)
			return nil
		}).
		Times(3)

	p := syncer.New(q, applier, conn)

	synced, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, synced)
	assert.Equal(t, ids, applied)

	count, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestProcessor_TransientFailureStaysQueued(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	q := openQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, queue.KindCreate, ledger.CollectionAccounts, "", map[string]any{"name": "wallet"}, "alice")
	require.NoError(t, err)

	applier := syncer.NewMockApplier(ctrl)
	conn := syncer.NewMockConnectivity(ctrl)
	conn.EXPECT().Online().Return(true)

	applier.EXPECT().
		Apply(gomock.Any(), gomock.Any()).
		Return(errors.New("remote unavailable"))

	p := syncer.New(q, applier, conn)

	synced, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, synced)

	ops, err := q.DequeueAllOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, id, ops[0].ID)
	assert.Equal(t, 1, ops[0].RetryCount)
	assert.Equal(t, "remote unavailable", ops[0].LastError)
}

func TestProcessor_RetryCapAbandons(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	q := openQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, queue.KindCreate, ledger.CollectionAccounts, "", map[string]any{"name": "wallet"}, "alice")
	require.NoError(t, err)

	applier := syncer.NewMockApplier(ctrl)
	conn := syncer.NewMockConnectivity(ctrl)
	conn.EXPECT().Online().Return(true).Times(syncer.MaxRetries)

	applier.EXPECT().
		Apply(gomock.Any(), gomock.Any()).
		Return(errors.New("remote unavailable")).
		Times(syncer.MaxRetries)

	p := syncer.New(q, applier, conn)

	for i := 0; i < syncer.MaxRetries; i++ {
		synced, err := p.Run(ctx)
		require.NoError(t, err)
		assert.Zero(t, synced)
	}

	count, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "record must be abandoned after the retry cap")
}

func TestProcessor_TerminalFailureRepairedAndApplied(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	q := openQueue(t)
	ctx := context.Background()

	// A create-transaction payload with no tags key: the first attempt is
	// rejected as invalid, the repair pass normalizes tags to empty and the
	// second attempt lands.
	_, err := q.Enqueue(ctx, queue.KindCreate, ledger.CollectionTransactions, "", map[string]any{
		"account_id":  "a1",
		"type":        "expense",
		"amount":      int64(700),
		"category_id": "cat-1",
		"description": "bus ticket",
		"date":        "2024-04-02",
	}, "alice")
	require.NoError(t, err)

	applier := syncer.NewMockApplier(ctrl)
	conn := syncer.NewMockConnectivity(ctrl)
	conn.EXPECT().Online().Return(true)

	gomock.InOrder(
		applier.EXPECT().
			Apply(gomock.Any(), gomock.Any()).
			Return(&ledger.ValidationError{Field: "tags", Reason: "required (may be empty)"}),
		applier.EXPECT().
			Apply(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, op queue.PendingOperation) error {
				tags, ok := op.Payload["tags"]
				require.True(t, ok, "repair must add the tags key")
				assert.Empty(t, tags)
				return nil
			}),
	)

	p := syncer.New(q, applier, conn)

	synced, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, synced)

	count, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestProcessor_TerminalFailurePersistedBeforeRepair(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	q := openQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, queue.KindCreate, ledger.CollectionTransactions, "", map[string]any{
		"account_id":  "a1",
		"type":        "expense",
		"amount":      int64(700),
		"category_id": "cat-1",
		"description": "bus ticket",
		"date":        "2024-04-02",
	}, "alice")
	require.NoError(t, err)

	applier := syncer.NewMockApplier(ctrl)
	conn := syncer.NewMockConnectivity(ctrl)
	conn.EXPECT().Online().Return(true)

	gomock.InOrder(
		applier.EXPECT().
			Apply(gomock.Any(), gomock.Any()).
			Return(&ledger.ValidationError{Field: "tags", Reason: "required (may be empty)"}),
		applier.EXPECT().
			Apply(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ queue.PendingOperation) error {
				// The repaired attempt runs after the failure was written
				// back, so the stored record already carries it.
				ops, err := q.DequeueAllOrdered(ctx)
				require.NoError(t, err)
				require.Len(t, ops, 1)
				assert.Equal(t, id, ops[0].ID)
				assert.Equal(t, 1, ops[0].RetryCount)
				assert.Contains(t, ops[0].LastError, "tags")
				return nil
			}),
	)

	p := syncer.New(q, applier, conn)

	synced, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, synced)
}

func TestProcessor_TerminalFailureWithoutRepairAbandons(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	q := openQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, queue.KindDelete, ledger.CollectionAccounts, "missing", nil, "alice")
	require.NoError(t, err)

	applier := syncer.NewMockApplier(ctrl)
	conn := syncer.NewMockConnectivity(ctrl)
	conn.EXPECT().Online().Return(true)

	applier.EXPECT().
		Apply(gomock.Any(), gomock.Any()).
		Return(ledger.ErrNotFound)

	p := syncer.New(q, applier, conn)

	synced, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, synced)

	count, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "terminal failures are abandoned, not retried")
}

func TestProcessor_CustomRepairRule(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	q := openQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, queue.KindCreate, ledger.CollectionGoals, "", map[string]any{"name": ""}, "alice")
	require.NoError(t, err)

	applier := syncer.NewMockApplier(ctrl)
	conn := syncer.NewMockConnectivity(ctrl)
	conn.EXPECT().Online().Return(true)

	gomock.InOrder(
		applier.EXPECT().
			Apply(gomock.Any(), gomock.Any()).
			Return(&ledger.ValidationError{Field: "name", Reason: "required"}),
		applier.EXPECT().
			Apply(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, op queue.PendingOperation) error {
				assert.Equal(t, "Untitled goal", op.Payload["name"])
				return nil
			}),
	)

	p := syncer.New(q, applier, conn)
	p.RegisterRepair(syncer.RepairRule{
		Name: "goal-default-name",
		Applies: func(op queue.PendingOperation) bool {
			return op.Collection == ledger.CollectionGoals && op.Payload["name"] == ""
		},
		Repair: func(op queue.PendingOperation) queue.PendingOperation {
			op.Payload["name"] = "Untitled goal"
			return op
		},
	})

	synced, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, synced)
}
