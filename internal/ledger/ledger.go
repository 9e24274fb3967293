package ledger

import (
	"fmt"
	"time"
)

// Collection names used across the remote store, the queue and the listener.
const (
	CollectionAccounts     = "accounts"
	CollectionTransactions = "transactions"
	CollectionCategories   = "categories"
	CollectionGoals        = "goals"
)

// Collections lists every logical collection in replay-safe order.
var Collections = []string{
	CollectionAccounts,
	CollectionTransactions,
	CollectionCategories,
	CollectionGoals,
}

// AccountType classifies an account.
type AccountType string

const (
	AccountWallet     AccountType = "wallet"
	AccountSavings    AccountType = "savings"
	AccountInvestment AccountType = "investment"
)

// TransactionType represents the direction of a transaction (income or expense).
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// Account represents a money account. Balance is the running sum of all
// non-pending transaction effects against it; it is only ever written by the
// transaction-mutation side-effect path in the gateway.
type Account struct {
	ID        string
	Name      string
	Type      AccountType
	Balance   int64 // cents
	OwnerID   string
	Pending   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction represents a single income or expense entry. Amount is always
// positive; the sign of its effect on the account balance is implied by Type.
type Transaction struct {
	ID          string
	AccountID   string
	Type        TransactionType
	Amount      int64 // cents, > 0
	CategoryID  string
	Description string
	Date        string // calendar day, YYYY-MM-DD
	Tags        []string
	Pending     bool
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Effect returns the signed contribution this transaction makes to its
// account's balance: zero while pending, +Amount for income, -Amount for
// expense.
func (t *Transaction) Effect() int64 {
	if t.Pending {
		return 0
	}

	if t.Type == TypeIncome {
		return t.Amount
	}

	return -t.Amount
}

// Category groups transactions. OwnerID is empty for the system default
// categories shared across all users.
type Category struct {
	ID      string
	Name    string
	Type    TransactionType
	Color   string
	OwnerID string
	Pending bool
}

// Goal is a savings goal.
type Goal struct {
	ID            string
	OwnerID       string
	Name          string
	TargetAmount  int64 // cents
	CurrentAmount int64 // cents
	Deadline      string // calendar day, YYYY-MM-DD
	IsCompleted   bool
}

// Recompute refreshes IsCompleted from the amounts. Called on every goal
// mutation so the flag never drifts from the amounts.
func (g *Goal) Recompute() {
	g.IsCompleted = g.TargetAmount > 0 && g.CurrentAmount >= g.TargetAmount
}

// DefaultCategories returns the fixed category set seeded for each new owner.
func DefaultCategories(ownerID string) []Category {
	defaults := []Category{
		{Name: "Salary", Type: TypeIncome, Color: "#2E7D32"},
		{Name: "Other Income", Type: TypeIncome, Color: "#558B2F"},
		{Name: "Groceries", Type: TypeExpense, Color: "#EF6C00"},
		{Name: "Dining", Type: TypeExpense, Color: "#D84315"},
		{Name: "Transport", Type: TypeExpense, Color: "#1565C0"},
		{Name: "Utilities", Type: TypeExpense, Color: "#6A1B9A"},
		{Name: "Health", Type: TypeExpense, Color: "#C62828"},
		{Name: "Entertainment", Type: TypeExpense, Color: "#00838F"},
		{Name: "Shopping", Type: TypeExpense, Color: "#AD1457"},
		{Name: "Other", Type: TypeExpense, Color: "#546E7A"},
	}

	for i := range defaults {
		defaults[i].OwnerID = ownerID
	}

	return defaults
}

// NormalizeDate coerces the supported calendar-day representations to the
// canonical YYYY-MM-DD form. Time-of-day information is discarded.
func NormalizeDate(v any) (string, error) {
	switch d := v.(type) {
	case time.Time:
		return d.Format(time.DateOnly), nil
	case string:
		for _, layout := range []string{time.DateOnly, time.RFC3339, "02/01/2006", "02-01-2006"} {
			if t, err := time.Parse(layout, d); err == nil {
				return t.Format(time.DateOnly), nil
			}
		}

		return "", &ValidationError{Field: "date", Reason: fmt.Sprintf("unparseable date %q", d)}
	default:
		return "", &ValidationError{Field: "date", Reason: fmt.Sprintf("unsupported date type %T", v)}
	}
}
