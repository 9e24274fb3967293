package ledger

import (
	"time"

	"github.com/MrJamesThe3rd/pocketbook/internal/docstore"
)

// Mapping between entities and their stored document shape. Timestamps are
// stored as RFC3339 strings, the canonical form the listener normalizes to.

func AccountToDoc(a *Account) docstore.Document {
	return docstore.Document{
		"id":         a.ID,
		"name":       a.Name,
		"type":       string(a.Type),
		"balance":    a.Balance,
		"owner_id":   a.OwnerID,
		"pending":    a.Pending,
		"created_at": a.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": a.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func AccountFromDoc(d docstore.Document) *Account {
	a := &Account{
		ID:      d.String("id"),
		Name:    d.String("name"),
		Type:    AccountType(d.String("type")),
		Balance: d.Int64("balance"),
		OwnerID: d.String("owner_id"),
		Pending: d.Bool("pending"),
	}

	a.CreatedAt, _ = d.Time("created_at")
	a.UpdatedAt, _ = d.Time("updated_at")

	return a
}

func TransactionToDoc(t *Transaction) docstore.Document {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}

	return docstore.Document{
		"id":          t.ID,
		"account_id":  t.AccountID,
		"type":        string(t.Type),
		"amount":      t.Amount,
		"category_id": t.CategoryID,
		"description": t.Description,
		"date":        t.Date,
		"tags":        tags,
		"pending":     t.Pending,
		"owner_id":    t.OwnerID,
		"created_at":  t.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":  t.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func TransactionFromDoc(d docstore.Document) *Transaction {
	t := &Transaction{
		ID:          d.String("id"),
		AccountID:   d.String("account_id"),
		Type:        TransactionType(d.String("type")),
		Amount:      d.Int64("amount"),
		CategoryID:  d.String("category_id"),
		Description: d.String("description"),
		Date:        d.String("date"),
		Tags:        d.Strings("tags"),
		Pending:     d.Bool("pending"),
		OwnerID:     d.String("owner_id"),
	}

	t.CreatedAt, _ = d.Time("created_at")
	t.UpdatedAt, _ = d.Time("updated_at")

	return t
}

func CategoryToDoc(c *Category) docstore.Document {
	return docstore.Document{
		"id":       c.ID,
		"name":     c.Name,
		"type":     string(c.Type),
		"color":    c.Color,
		"owner_id": c.OwnerID,
		"pending":  c.Pending,
	}
}

func CategoryFromDoc(d docstore.Document) *Category {
	return &Category{
		ID:      d.String("id"),
		Name:    d.String("name"),
		Type:    TransactionType(d.String("type")),
		Color:   d.String("color"),
		OwnerID: d.String("owner_id"),
		Pending: d.Bool("pending"),
	}
}

func GoalToDoc(g *Goal) docstore.Document {
	return docstore.Document{
		"id":             g.ID,
		"owner_id":       g.OwnerID,
		"name":           g.Name,
		"target_amount":  g.TargetAmount,
		"current_amount": g.CurrentAmount,
		"deadline":       g.Deadline,
		"is_completed":   g.IsCompleted,
	}
}

func GoalFromDoc(d docstore.Document) *Goal {
	return &Goal{
		ID:            d.String("id"),
		OwnerID:       d.String("owner_id"),
		Name:          d.String("name"),
		TargetAmount:  d.Int64("target_amount"),
		CurrentAmount: d.Int64("current_amount"),
		Deadline:      d.String("deadline"),
		IsCompleted:   d.Bool("is_completed"),
	}
}
