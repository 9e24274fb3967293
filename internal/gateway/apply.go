package gateway

import (
	"context"
	"fmt"

	"github.com/MrJamesThe3rd/pocketbook/internal/docstore"
	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
	"github.com/MrJamesThe3rd/pocketbook/internal/queue"
)

// Apply replays one queued operation against the matching typed method.
// Payloads are opaque until this point, so they are decoded and validated
// here, at replay time.
func (g *Gateway) Apply(ctx context.Context, op queue.PendingOperation) error {
	switch op.Collection {
	case ledger.CollectionAccounts:
		return g.applyAccount(ctx, op)
	case ledger.CollectionTransactions:
		return g.applyTransaction(ctx, op)
	case ledger.CollectionCategories:
		return g.applyCategory(ctx, op)
	case ledger.CollectionGoals:
		return g.applyGoal(ctx, op)
	default:
		return &ledger.ValidationError{Field: "collection", Reason: fmt.Sprintf("unknown collection %q", op.Collection)}
	}
}

func needDocumentID(op queue.PendingOperation) error {
	if op.DocumentID == "" {
		return &ledger.ValidationError{Field: "document_id", Reason: fmt.Sprintf("required for %s", op.Kind)}
	}

	return nil
}

func (g *Gateway) applyAccount(ctx context.Context, op queue.PendingOperation) error {
	switch op.Kind {
	case queue.KindCreate:
		d := docstore.Document(op.Payload)
		a := ledger.AccountFromDoc(d)
		a.ID = "" // replayed creates always get a fresh server id
		a.OwnerID = op.OwnerID

		return g.CreateAccount(ctx, a)
	case queue.KindUpdate:
		if err := needDocumentID(op); err != nil {
			return err
		}

		return g.UpdateAccount(ctx, op.OwnerID, op.DocumentID, docstore.Document(op.Payload))
	case queue.KindDelete:
		if err := needDocumentID(op); err != nil {
			return err
		}

		return g.DeleteAccount(ctx, op.OwnerID, op.DocumentID)
	default:
		return unknownKind(op)
	}
}

func (g *Gateway) applyTransaction(ctx context.Context, op queue.PendingOperation) error {
	switch op.Kind {
	case queue.KindCreate:
		t, err := transactionFromPayload(op.Payload, op.OwnerID)
		if err != nil {
			return err
		}

		return g.CreateTransaction(ctx, t)
	case queue.KindUpdate:
		if err := needDocumentID(op); err != nil {
			return err
		}

		_, err := g.UpdateTransaction(ctx, op.OwnerID, op.DocumentID, docstore.Document(op.Payload))

		return err
	case queue.KindDelete:
		if err := needDocumentID(op); err != nil {
			return err
		}

		return g.DeleteTransaction(ctx, op.OwnerID, op.DocumentID)
	default:
		return unknownKind(op)
	}
}

// transactionFromPayload decodes a queued create payload. The tags key must
// be present, even if empty; historical clients produced payloads without
// it, which the syncer's repair pass normalizes before the final attempt.
func transactionFromPayload(payload map[string]any, ownerID string) (*ledger.Transaction, error) {
	d := docstore.Document(payload)
	t := ledger.TransactionFromDoc(d)
	t.ID = "" // replayed creates always get a fresh server id
	t.OwnerID = ownerID

	if _, ok := payload["tags"]; !ok {
		t.Tags = nil
	} else if t.Tags == nil {
		t.Tags = []string{}
	}

	return t, nil
}

func (g *Gateway) applyCategory(ctx context.Context, op queue.PendingOperation) error {
	switch op.Kind {
	case queue.KindCreate:
		c := ledger.CategoryFromDoc(docstore.Document(op.Payload))
		c.ID = ""
		c.OwnerID = op.OwnerID

		return g.CreateCategory(ctx, c)
	case queue.KindUpdate:
		if err := needDocumentID(op); err != nil {
			return err
		}

		return g.UpdateCategory(ctx, op.OwnerID, op.DocumentID, docstore.Document(op.Payload))
	case queue.KindDelete:
		if err := needDocumentID(op); err != nil {
			return err
		}

		return g.DeleteCategory(ctx, op.OwnerID, op.DocumentID)
	default:
		return unknownKind(op)
	}
}

func (g *Gateway) applyGoal(ctx context.Context, op queue.PendingOperation) error {
	switch op.Kind {
	case queue.KindCreate:
		goal := ledger.GoalFromDoc(docstore.Document(op.Payload))
		goal.ID = ""
		goal.OwnerID = op.OwnerID

		return g.CreateGoal(ctx, goal)
	case queue.KindUpdate:
		if err := needDocumentID(op); err != nil {
			return err
		}

		_, err := g.UpdateGoal(ctx, op.OwnerID, op.DocumentID, docstore.Document(op.Payload))

		return err
	case queue.KindDelete:
		if err := needDocumentID(op); err != nil {
			return err
		}

		return g.DeleteGoal(ctx, op.OwnerID, op.DocumentID)
	default:
		return unknownKind(op)
	}
}

func unknownKind(op queue.PendingOperation) error {
	return &ledger.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown operation kind %q", op.Kind)}
}
