package facade

import (
	"context"
	"fmt"

	"github.com/MrJamesThe3rd/pocketbook/internal/docstore"
	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
	"github.com/MrJamesThe3rd/pocketbook/internal/queue"
)

// queueWrite records the operation in the durable queue and stages the
// optimistic view of it. The staged document may be nil for deletes.
func (s *Service) queueWrite(ctx context.Context, kind queue.Kind, collection, id string, payload, staged docstore.Document) error {
	qid, err := s.queue.Enqueue(ctx, kind, collection, id, map[string]any(payload), s.owner)
	if err != nil {
		return fmt.Errorf("queueing %s %s: %w", kind, collection, err)
	}

	s.stage(collection, id, staged, qid)

	return nil
}

// fallbackToQueue decides what to do with a failed direct write. Validation
// and permission failures are the caller's to fix and never enter the queue;
// everything else is treated as transient and queued for replay.
func (s *Service) fallbackToQueue(err error, collection string) bool {
	if err == nil || ledger.Terminal(err) {
		return false
	}

	s.logger.Warn("remote write failed, queueing for replay", "collection", collection, "error", err)

	return true
}

// currentDoc finds the merged view of one record, nil when absent.
func (s *Service) currentDoc(collection, id string) docstore.Document {
	for _, doc := range s.merged(collection) {
		if doc.String("id") == id {
			return doc
		}
	}

	return nil
}

// patchedDoc overlays patch onto the current merged view of the record so
// the optimistic read reflects the edit immediately.
func (s *Service) patchedDoc(collection, id string, patch docstore.Document) docstore.Document {
	base := s.currentDoc(collection, id)
	if base == nil {
		base = docstore.Document{}
	}

	merged := base.Clone()
	for k, v := range patch {
		if v == nil || k == "id" {
			continue
		}

		merged[k] = v
	}

	merged["id"] = id

	return merged
}

// guardTemp rejects mutations against records the server has not confirmed
// yet. Their queued create still carries the temp id, so a follow-up edit
// would have nothing stable to address.
func guardTemp(id string) error {
	if IsTempID(id) {
		return &ledger.ValidationError{Field: "id", Reason: "record not yet synced, retry after the queue drains"}
	}

	return nil
}

func (s *Service) AddAccount(ctx context.Context, a *ledger.Account) error {
	a.OwnerID = s.owner

	if s.conn.Online() {
		err := s.remote.CreateAccount(ctx, a)
		if !s.fallbackToQueue(err, ledger.CollectionAccounts) {
			if err == nil {
				s.stage(ledger.CollectionAccounts, a.ID, ledger.AccountToDoc(a), 0)
			}

			return err
		}
	}

	if a.ID == "" {
		a.ID = s.tempID()
	}

	doc := ledger.AccountToDoc(a)

	return s.queueWrite(ctx, queue.KindCreate, ledger.CollectionAccounts, a.ID, doc, doc)
}

func (s *Service) EditAccount(ctx context.Context, id string, patch docstore.Document) error {
	if err := guardTemp(id); err != nil {
		return err
	}

	staged := s.patchedDoc(ledger.CollectionAccounts, id, patch)

	if s.conn.Online() {
		// Optimistic view first, remote attempt second. A failed remote
		// write is never rolled back; the next listener update reconciles.
		s.stage(ledger.CollectionAccounts, id, staged, 0)

		err := s.remote.UpdateAccount(ctx, s.owner, id, patch)
		if !s.fallbackToQueue(err, ledger.CollectionAccounts) {
			return err
		}
	}

	return s.queueWrite(ctx, queue.KindUpdate, ledger.CollectionAccounts, id, patch, staged)
}

func (s *Service) RemoveAccount(ctx context.Context, id string) error {
	if err := guardTemp(id); err != nil {
		return err
	}

	if s.conn.Online() {
		s.stage(ledger.CollectionAccounts, id, nil, 0)

		err := s.remote.DeleteAccount(ctx, s.owner, id)
		if !s.fallbackToQueue(err, ledger.CollectionAccounts) {
			return err
		}
	}

	return s.queueWrite(ctx, queue.KindDelete, ledger.CollectionAccounts, id, docstore.Document{}, nil)
}

func (s *Service) AddTransaction(ctx context.Context, t *ledger.Transaction) error {
	t.OwnerID = s.owner

	if s.conn.Online() {
		err := s.remote.CreateTransaction(ctx, t)
		if !s.fallbackToQueue(err, ledger.CollectionTransactions) {
			if err == nil {
				s.stage(ledger.CollectionTransactions, t.ID, ledger.TransactionToDoc(t), 0)
			}

			return err
		}
	}

	if t.ID == "" {
		t.ID = s.tempID()
	}

	doc := ledger.TransactionToDoc(t)

	return s.queueWrite(ctx, queue.KindCreate, ledger.CollectionTransactions, t.ID, doc, doc)
}

func (s *Service) EditTransaction(ctx context.Context, id string, patch docstore.Document) error {
	if err := guardTemp(id); err != nil {
		return err
	}

	staged := s.patchedDoc(ledger.CollectionTransactions, id, patch)

	if s.conn.Online() {
		s.stage(ledger.CollectionTransactions, id, staged, 0)

		_, err := s.remote.UpdateTransaction(ctx, s.owner, id, patch)
		if !s.fallbackToQueue(err, ledger.CollectionTransactions) {
			return err
		}
	}

	return s.queueWrite(ctx, queue.KindUpdate, ledger.CollectionTransactions, id, patch, staged)
}

func (s *Service) RemoveTransaction(ctx context.Context, id string) error {
	if err := guardTemp(id); err != nil {
		return err
	}

	if s.conn.Online() {
		s.stage(ledger.CollectionTransactions, id, nil, 0)

		err := s.remote.DeleteTransaction(ctx, s.owner, id)
		if !s.fallbackToQueue(err, ledger.CollectionTransactions) {
			return err
		}
	}

	return s.queueWrite(ctx, queue.KindDelete, ledger.CollectionTransactions, id, docstore.Document{}, nil)
}

func (s *Service) AddCategory(ctx context.Context, c *ledger.Category) error {
	c.OwnerID = s.owner

	if s.conn.Online() {
		err := s.remote.CreateCategory(ctx, c)
		if !s.fallbackToQueue(err, ledger.CollectionCategories) {
			if err == nil {
				s.stage(ledger.CollectionCategories, c.ID, ledger.CategoryToDoc(c), 0)
			}

			return err
		}
	}

	if c.ID == "" {
		c.ID = s.tempID()
	}

	doc := ledger.CategoryToDoc(c)

	return s.queueWrite(ctx, queue.KindCreate, ledger.CollectionCategories, c.ID, doc, doc)
}

func (s *Service) EditCategory(ctx context.Context, id string, patch docstore.Document) error {
	if err := guardTemp(id); err != nil {
		return err
	}

	staged := s.patchedDoc(ledger.CollectionCategories, id, patch)

	if s.conn.Online() {
		s.stage(ledger.CollectionCategories, id, staged, 0)

		err := s.remote.UpdateCategory(ctx, s.owner, id, patch)
		if !s.fallbackToQueue(err, ledger.CollectionCategories) {
			return err
		}
	}

	return s.queueWrite(ctx, queue.KindUpdate, ledger.CollectionCategories, id, patch, staged)
}

func (s *Service) RemoveCategory(ctx context.Context, id string) error {
	if err := guardTemp(id); err != nil {
		return err
	}

	if s.conn.Online() {
		s.stage(ledger.CollectionCategories, id, nil, 0)

		err := s.remote.DeleteCategory(ctx, s.owner, id)
		if !s.fallbackToQueue(err, ledger.CollectionCategories) {
			return err
		}
	}

	return s.queueWrite(ctx, queue.KindDelete, ledger.CollectionCategories, id, docstore.Document{}, nil)
}

// SeedDefaults provisions the stock category set for the owner. Only
// meaningful online; offline it is a silent no-op since the seeding is
// idempotent and will happen on the next connected session.
func (s *Service) SeedDefaults(ctx context.Context) error {
	if !s.conn.Online() {
		return nil
	}

	if err := s.remote.EnsureDefaultCategories(ctx, s.owner); err != nil {
		return fmt.Errorf("seeding default categories: %w", err)
	}

	return nil
}

func (s *Service) AddGoal(ctx context.Context, g *ledger.Goal) error {
	g.OwnerID = s.owner

	if s.conn.Online() {
		err := s.remote.CreateGoal(ctx, g)
		if !s.fallbackToQueue(err, ledger.CollectionGoals) {
			if err == nil {
				s.stage(ledger.CollectionGoals, g.ID, ledger.GoalToDoc(g), 0)
			}

			return err
		}
	}

	if g.ID == "" {
		g.ID = s.tempID()
	}

	doc := ledger.GoalToDoc(g)

	return s.queueWrite(ctx, queue.KindCreate, ledger.CollectionGoals, g.ID, doc, doc)
}

func (s *Service) EditGoal(ctx context.Context, id string, patch docstore.Document) error {
	if err := guardTemp(id); err != nil {
		return err
	}

	staged := s.patchedDoc(ledger.CollectionGoals, id, patch)

	if s.conn.Online() {
		s.stage(ledger.CollectionGoals, id, staged, 0)

		_, err := s.remote.UpdateGoal(ctx, s.owner, id, patch)
		if !s.fallbackToQueue(err, ledger.CollectionGoals) {
			return err
		}
	}

	return s.queueWrite(ctx, queue.KindUpdate, ledger.CollectionGoals, id, patch, staged)
}

func (s *Service) RemoveGoal(ctx context.Context, id string) error {
	if err := guardTemp(id); err != nil {
		return err
	}

	if s.conn.Online() {
		s.stage(ledger.CollectionGoals, id, nil, 0)

		err := s.remote.DeleteGoal(ctx, s.owner, id)
		if !s.fallbackToQueue(err, ledger.CollectionGoals) {
			return err
		}
	}

	return s.queueWrite(ctx, queue.KindDelete, ledger.CollectionGoals, id, docstore.Document{}, nil)
}
