package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/MrJamesThe3rd/pocketbook/internal/docstore"
	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
)

// applyBalanceDelta adjusts an account's balance inside the surrounding
// store transaction. This is the only code path that writes the balance.
func applyBalanceDelta(ctx context.Context, tx docstore.Txn, accountID, ownerID string, delta int64) error {
	doc, err := load(ctx, tx, ledger.CollectionAccounts, accountID, ownerID)
	if err != nil {
		return err
	}

	doc["balance"] = doc.Int64("balance") + delta
	doc["updated_at"] = now().Format(time.RFC3339Nano)

	if err := tx.Put(ctx, ledger.CollectionAccounts, accountID, doc); err != nil {
		return fmt.Errorf("writing account balance: %w", err)
	}

	return nil
}

// CreateTransaction validates and persists a transaction. When it is not
// pending, the owning account's balance is recomputed in the same store
// transaction, so the two writes land atomically or not at all.
func (g *Gateway) CreateTransaction(ctx context.Context, t *ledger.Transaction) error {
	if err := validateTransaction(t); err != nil {
		return err
	}

	date, err := ledger.NormalizeDate(t.Date)
	if err != nil {
		return err
	}

	t.Date = date

	if t.ID == "" {
		t.ID = newID()
	}

	t.CreatedAt = now()
	t.UpdatedAt = t.CreatedAt

	return g.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Txn) error {
		// The referenced account must exist and belong to the caller.
		if _, err := load(ctx, tx, ledger.CollectionAccounts, t.AccountID, t.OwnerID); err != nil {
			return err
		}

		if err := tx.Put(ctx, ledger.CollectionTransactions, t.ID, ledger.TransactionToDoc(t)); err != nil {
			return fmt.Errorf("creating transaction: %w", err)
		}

		if effect := t.Effect(); effect != 0 {
			return applyBalanceDelta(ctx, tx, t.AccountID, t.OwnerID, effect)
		}

		return nil
	})
}

func (g *Gateway) GetTransaction(ctx context.Context, ownerID, id string) (*ledger.Transaction, error) {
	doc, err := load(ctx, g.store, ledger.CollectionTransactions, id, ownerID)
	if err != nil {
		return nil, err
	}

	return ledger.TransactionFromDoc(doc), nil
}

func (g *Gateway) ListTransactionsByOwner(ctx context.Context, ownerID string) ([]*ledger.Transaction, error) {
	docs, err := g.store.Query(ctx, ledger.CollectionTransactions, ownerQuery(ownerID, "date"))
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	txs := make([]*ledger.Transaction, 0, len(docs))
	for _, doc := range docs {
		txs = append(txs, ledger.TransactionFromDoc(doc))
	}

	return txs, nil
}

// UpdateTransaction merges the patch into the stored transaction and applies
// the compensating balance delta (new effect minus old effect) atomically
// with the mutation. A zero delta skips the account write entirely so the
// account's update timestamp does not churn.
func (g *Gateway) UpdateTransaction(ctx context.Context, ownerID, id string, patch docstore.Document) (*ledger.Transaction, error) {
	var updated *ledger.Transaction

	err := g.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Txn) error {
		doc, err := load(ctx, tx, ledger.CollectionTransactions, id, ownerID)
		if err != nil {
			return err
		}

		old := ledger.TransactionFromDoc(doc)

		if v, ok := patch["account_id"]; ok && v != old.AccountID {
			return &ledger.ValidationError{Field: "account_id", Reason: "cannot be changed"}
		}

		merged := mergePatch(doc, patch, "owner_id", "created_at", "account_id")

		if _, ok := patch["date"]; ok {
			date, err := ledger.NormalizeDate(merged["date"])
			if err != nil {
				return err
			}

			merged["date"] = date
		}

		next := ledger.TransactionFromDoc(merged)
		if err := validateTransaction(next); err != nil {
			return err
		}

		merged["updated_at"] = now().Format(time.RFC3339Nano)

		if err := tx.Put(ctx, ledger.CollectionTransactions, id, merged); err != nil {
			return fmt.Errorf("updating transaction: %w", err)
		}

		if delta := next.Effect() - old.Effect(); delta != 0 {
			if err := applyBalanceDelta(ctx, tx, old.AccountID, ownerID, delta); err != nil {
				return err
			}
		}

		updated = next

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteTransaction reverses the transaction's current effect on the account
// balance, then deletes the record. Both happen in one store transaction, so
// the deletion cannot proceed if the reversal write fails.
func (g *Gateway) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	return g.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Txn) error {
		doc, err := load(ctx, tx, ledger.CollectionTransactions, id, ownerID)
		if err != nil {
			return err
		}

		t := ledger.TransactionFromDoc(doc)

		if effect := t.Effect(); effect != 0 {
			if err := applyBalanceDelta(ctx, tx, t.AccountID, ownerID, -effect); err != nil {
				return err
			}
		}

		if err := tx.Delete(ctx, ledger.CollectionTransactions, id); err != nil {
			return fmt.Errorf("deleting transaction: %w", err)
		}

		return nil
	})
}

func validateTransaction(t *ledger.Transaction) error {
	if t.AccountID == "" {
		return &ledger.ValidationError{Field: "account_id", Reason: "required"}
	}

	if t.OwnerID == "" {
		return &ledger.ValidationError{Field: "owner_id", Reason: "required"}
	}

	if t.Amount <= 0 {
		return &ledger.ValidationError{Field: "amount", Reason: "must be positive"}
	}

	switch t.Type {
	case ledger.TypeIncome, ledger.TypeExpense:
	default:
		return &ledger.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown transaction type %q", t.Type)}
	}

	if t.CategoryID == "" {
		return &ledger.ValidationError{Field: "category_id", Reason: "required"}
	}

	if t.Description == "" {
		return &ledger.ValidationError{Field: "description", Reason: "required"}
	}

	if t.Date == "" {
		return &ledger.ValidationError{Field: "date", Reason: "required"}
	}

	if t.Tags == nil {
		return &ledger.ValidationError{Field: "tags", Reason: "required (may be empty)"}
	}

	return nil
}
