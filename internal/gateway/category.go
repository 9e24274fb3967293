package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/pocketbook/internal/docstore"
	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
)

func (g *Gateway) CreateCategory(ctx context.Context, c *ledger.Category) error {
	if err := validateCategory(c); err != nil {
		return err
	}

	if c.ID == "" {
		c.ID = newID()
	}

	if err := g.store.Put(ctx, ledger.CollectionCategories, c.ID, ledger.CategoryToDoc(c)); err != nil {
		return fmt.Errorf("creating category: %w", err)
	}

	return nil
}

// ListCategoriesForOwner returns the owner's categories plus the shared
// system defaults (empty owner id).
func (g *Gateway) ListCategoriesForOwner(ctx context.Context, ownerID string) ([]*ledger.Category, error) {
	q := docstore.Query{
		Filters: []docstore.Filter{
			{Field: "owner_id", Op: docstore.OpIn, Value: []string{ownerID, ""}},
		},
		OrderBy: "name",
	}

	docs, err := g.store.Query(ctx, ledger.CollectionCategories, q)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}

	categories := make([]*ledger.Category, 0, len(docs))
	for _, doc := range docs {
		categories = append(categories, ledger.CategoryFromDoc(doc))
	}

	return categories, nil
}

// UpdateCategory merges the patch into an owned category. Shared system
// defaults (empty owner id) are read-only, which the ownership check in
// load enforces for free.
func (g *Gateway) UpdateCategory(ctx context.Context, ownerID, id string, patch docstore.Document) error {
	doc, err := load(ctx, g.store, ledger.CollectionCategories, id, ownerID)
	if err != nil {
		return err
	}

	merged := mergePatch(doc, patch, "owner_id")

	c := ledger.CategoryFromDoc(merged)
	if err := validateCategory(c); err != nil {
		return err
	}

	if err := g.store.Put(ctx, ledger.CollectionCategories, id, merged); err != nil {
		return fmt.Errorf("updating category: %w", err)
	}

	return nil
}

func (g *Gateway) DeleteCategory(ctx context.Context, ownerID, id string) error {
	if _, err := load(ctx, g.store, ledger.CollectionCategories, id, ownerID); err != nil {
		return err
	}

	if err := g.store.Delete(ctx, ledger.CollectionCategories, id); err != nil {
		return fmt.Errorf("deleting category: %w", err)
	}

	return nil
}

// EnsureDefaultCategories seeds the fixed default category set for ownerID
// on first use. Existing categories make it a no-op, and the deterministic
// ids keep a concurrent double-seed from duplicating records.
func (g *Gateway) EnsureDefaultCategories(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return &ledger.ValidationError{Field: "owner_id", Reason: "required"}
	}

	existing, err := g.store.Query(ctx, ledger.CollectionCategories, ownerQuery(ownerID, ""))
	if err != nil {
		return fmt.Errorf("checking existing categories: %w", err)
	}

	if len(existing) > 0 {
		return nil
	}

	defaults := ledger.DefaultCategories(ownerID)

	return g.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Txn) error {
		for i := range defaults {
			c := &defaults[i]
			c.ID = defaultCategoryID(ownerID, c.Name)

			if err := tx.Put(ctx, ledger.CollectionCategories, c.ID, ledger.CategoryToDoc(c)); err != nil {
				return fmt.Errorf("seeding category %q: %w", c.Name, err)
			}
		}

		return nil
	})
}

// defaultCategoryID derives a stable id from the owner and category name so
// re-seeding writes the same documents instead of new ones.
func defaultCategoryID(ownerID, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("category:"+ownerID+":"+name)).String()
}

func validateCategory(c *ledger.Category) error {
	if c.Name == "" {
		return &ledger.ValidationError{Field: "name", Reason: "required"}
	}

	switch c.Type {
	case ledger.TypeIncome, ledger.TypeExpense:
	default:
		return &ledger.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown category type %q", c.Type)}
	}

	return nil
}
