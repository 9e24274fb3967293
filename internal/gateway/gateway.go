// Package gateway performs validated CRUD against the remote document store
// for each logical collection, enforcing per-record ownership and the
// account-balance invariant on transaction mutations.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/pocketbook/internal/docstore"
	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
)

type Gateway struct {
	store docstore.Store
}

func New(store docstore.Store) *Gateway {
	return &Gateway{store: store}
}

// Store exposes the underlying document store for subscription setup.
func (g *Gateway) Store() docstore.Store { return g.store }

// load fetches a document and verifies ownership before any mutation may
// touch it. A mismatched owner fails with ErrPermissionDenied and the
// record is never partially applied.
func load(ctx context.Context, tx docstore.Txn, collection, id, callerOwnerID string) (docstore.Document, error) {
	doc, err := tx.Get(ctx, collection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ledger.ErrNotFound
		}

		return nil, fmt.Errorf("loading %s/%s: %w", collection, id, err)
	}

	if doc.String("owner_id") != callerOwnerID {
		return nil, ledger.ErrPermissionDenied
	}

	return doc, nil
}

func now() time.Time {
	return time.Now().UTC()
}

func newID() string {
	return uuid.NewString()
}

// ownerQuery matches all documents belonging to ownerID, ordered by field.
func ownerQuery(ownerID, orderBy string) docstore.Query {
	return docstore.Query{
		Filters: []docstore.Filter{
			{Field: "owner_id", Op: docstore.OpEqual, Value: ownerID},
		},
		OrderBy: orderBy,
	}
}

// CreateAccount validates and persists a new account. The balance starts at
// whatever the caller supplied (normally zero) and is only ever changed by
// transaction mutations afterwards.
func (g *Gateway) CreateAccount(ctx context.Context, a *ledger.Account) error {
	if err := validateAccount(a); err != nil {
		return err
	}

	if a.ID == "" {
		a.ID = newID()
	}

	a.CreatedAt = now()
	a.UpdatedAt = a.CreatedAt

	if err := g.store.Put(ctx, ledger.CollectionAccounts, a.ID, ledger.AccountToDoc(a)); err != nil {
		return fmt.Errorf("creating account: %w", err)
	}

	return nil
}

func (g *Gateway) GetAccount(ctx context.Context, ownerID, id string) (*ledger.Account, error) {
	doc, err := load(ctx, g.store, ledger.CollectionAccounts, id, ownerID)
	if err != nil {
		return nil, err
	}

	return ledger.AccountFromDoc(doc), nil
}

func (g *Gateway) ListAccountsByOwner(ctx context.Context, ownerID string) ([]*ledger.Account, error) {
	docs, err := g.store.Query(ctx, ledger.CollectionAccounts, ownerQuery(ownerID, "created_at"))
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	accounts := make([]*ledger.Account, 0, len(docs))
	for _, doc := range docs {
		accounts = append(accounts, ledger.AccountFromDoc(doc))
	}

	return accounts, nil
}

// UpdateAccount merges the patch into the stored account. The balance field
// is never writable through this path; only the transaction-mutation side
// effect may move it.
func (g *Gateway) UpdateAccount(ctx context.Context, ownerID, id string, patch docstore.Document) error {
	doc, err := load(ctx, g.store, ledger.CollectionAccounts, id, ownerID)
	if err != nil {
		return err
	}

	merged := mergePatch(doc, patch, "balance", "owner_id", "created_at")

	a := ledger.AccountFromDoc(merged)
	if err := validateAccount(a); err != nil {
		return err
	}

	merged["updated_at"] = now().Format(time.RFC3339Nano)

	if err := g.store.Put(ctx, ledger.CollectionAccounts, id, merged); err != nil {
		return fmt.Errorf("updating account: %w", err)
	}

	return nil
}

func (g *Gateway) DeleteAccount(ctx context.Context, ownerID, id string) error {
	if _, err := load(ctx, g.store, ledger.CollectionAccounts, id, ownerID); err != nil {
		return err
	}

	if err := g.store.Delete(ctx, ledger.CollectionAccounts, id); err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}

	return nil
}

func validateAccount(a *ledger.Account) error {
	if a.Name == "" {
		return &ledger.ValidationError{Field: "name", Reason: "required"}
	}

	if a.OwnerID == "" {
		return &ledger.ValidationError{Field: "owner_id", Reason: "required"}
	}

	switch a.Type {
	case ledger.AccountWallet, ledger.AccountSavings, ledger.AccountInvestment:
	default:
		return &ledger.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown account type %q", a.Type)}
	}

	return nil
}

// mergePatch overlays patch onto base, dropping nil-valued patch keys and
// any key listed in protected.
func mergePatch(base, patch docstore.Document, protected ...string) docstore.Document {
	merged := base.Clone()

	for k, v := range patch {
		if v == nil {
			continue
		}

		if isProtected(k, protected) {
			continue
		}

		merged[k] = v
	}

	return merged
}

func isProtected(key string, protected []string) bool {
	for _, p := range protected {
		if key == p || key == "id" {
			return true
		}
	}

	return key == "id"
}
