package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
)

func TestTransaction_Effect(t *testing.T) {
	tests := []struct {
		name string
		tx   ledger.Transaction
		want int64
	}{
		{
			name: "Income",
			tx:   ledger.Transaction{Type: ledger.TypeIncome, Amount: 1500},
			want: 1500,
		},
		{
			name: "Expense",
			tx:   ledger.Transaction{Type: ledger.TypeExpense, Amount: 1500},
			want: -1500,
		},
		{
			name: "PendingIncome",
			tx:   ledger.Transaction{Type: ledger.TypeIncome, Amount: 1500, Pending: true},
			want: 0,
		},
		{
			name: "PendingExpense",
			tx:   ledger.Transaction{Type: ledger.TypeExpense, Amount: 1500, Pending: true},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tx.Effect())
		})
	}
}

func TestGoal_Recompute(t *testing.T) {
	tests := []struct {
		name string
		goal ledger.Goal
		want bool
	}{
		{name: "Reached", goal: ledger.Goal{TargetAmount: 1000, CurrentAmount: 1000}, want: true},
		{name: "Exceeded", goal: ledger.Goal{TargetAmount: 1000, CurrentAmount: 1500}, want: true},
		{name: "Short", goal: ledger.Goal{TargetAmount: 1000, CurrentAmount: 999}, want: false},
		{name: "ZeroTarget", goal: ledger.Goal{TargetAmount: 0, CurrentAmount: 500}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.goal.Recompute()
			assert.Equal(t, tt.want, tt.goal.IsCompleted)
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    string
		wantErr bool
	}{
		{name: "DateOnly", in: "2024-03-15", want: "2024-03-15"},
		{name: "RFC3339", in: "2024-03-15T13:45:00Z", want: "2024-03-15"},
		{name: "Time", in: time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC), want: "2024-03-15"},
		{name: "Garbage", in: "not a date", wantErr: true},
		{name: "WrongType", in: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ledger.NormalizeDate(tt.in)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultCategories(t *testing.T) {
	categories := ledger.DefaultCategories("owner-1")

	require.Len(t, categories, 10)

	names := make(map[string]bool, len(categories))
	for _, c := range categories {
		assert.Equal(t, "owner-1", c.OwnerID)
		assert.NotEmpty(t, c.Name)
		assert.NotEmpty(t, c.Color)
		assert.False(t, names[c.Name], "duplicate category %s", c.Name)
		names[c.Name] = true
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, ledger.Terminal(&ledger.ValidationError{Field: "amount", Reason: "required"}))
	assert.True(t, ledger.Terminal(ledger.ErrPermissionDenied))
	assert.True(t, ledger.Terminal(ledger.ErrNotFound))
	assert.False(t, ledger.Terminal(assert.AnError))
	assert.False(t, ledger.Terminal(nil))
}
