package matching_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
	"github.com/MrJamesThe3rd/pocketbook/internal/matching"
)

type stubHistory struct {
	txs []*ledger.Transaction
	err error
}

func (s stubHistory) ListTransactionsByOwner(context.Context, string) ([]*ledger.Transaction, error) {
	return s.txs, s.err
}

func TestSuggestCategory(t *testing.T) {
	history := stubHistory{txs: []*ledger.Transaction{
		{Description: "UBER *TRIP HELP.UBER.COM", CategoryID: "cat-transport"},
		{Description: "PINGO DOCE GONDOMAR", CategoryID: "cat-groceries"},
		{Description: "uber", CategoryID: "cat-rides"},
		{Description: "no category yet", CategoryID: ""},
	}}

	svc := matching.NewService(history)
	ctx := context.Background()

	tests := []struct {
		name        string
		description string
		want        string
	}{
		{
			name:        "exact match ignoring case",
			description: "pingo doce gondomar",
			want:        "cat-groceries",
		},
		{
			name:        "longest overlapping description wins",
			description: "UBER *TRIP HELP.UBER.COM AMSTERDAM",
			want:        "cat-transport",
		},
		{
			name:        "short history entry matches inside new description",
			description: "UBER EATS LISBOA",
			want:        "cat-rides",
		},
		{
			name:        "no similar history",
			description: "FARMACIA CENTRAL",
			want:        "",
		},
		{
			name:        "blank description",
			description: "   ",
			want:        "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.SuggestCategory(ctx, "alice", tt.description)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSuggestCategory_RecencyBreaksTies(t *testing.T) {
	history := stubHistory{txs: []*ledger.Transaction{
		{Description: "IKEA LOURES", CategoryID: "cat-home"},
		{Description: "IKEA LOURES", CategoryID: "cat-furniture"},
	}}

	svc := matching.NewService(history)

	got, err := svc.SuggestCategory(context.Background(), "alice", "IKEA LOURES")
	require.NoError(t, err)
	assert.Equal(t, "cat-furniture", got)
}

func TestSuggestCategory_HistoryError(t *testing.T) {
	svc := matching.NewService(stubHistory{err: errors.New("store down")})

	_, err := svc.SuggestCategory(context.Background(), "alice", "UBER")
	require.Error(t, err)
}
