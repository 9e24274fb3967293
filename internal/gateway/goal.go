package gateway

import (
	"context"
	"fmt"

	"github.com/MrJamesThe3rd/pocketbook/internal/docstore"
	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
)

func (g *Gateway) CreateGoal(ctx context.Context, goal *ledger.Goal) error {
	if err := validateGoal(goal); err != nil {
		return err
	}

	if goal.ID == "" {
		goal.ID = newID()
	}

	goal.Recompute()

	if err := g.store.Put(ctx, ledger.CollectionGoals, goal.ID, ledger.GoalToDoc(goal)); err != nil {
		return fmt.Errorf("creating goal: %w", err)
	}

	return nil
}

func (g *Gateway) ListGoalsByOwner(ctx context.Context, ownerID string) ([]*ledger.Goal, error) {
	docs, err := g.store.Query(ctx, ledger.CollectionGoals, ownerQuery(ownerID, "deadline"))
	if err != nil {
		return nil, fmt.Errorf("listing goals: %w", err)
	}

	goals := make([]*ledger.Goal, 0, len(docs))
	for _, doc := range docs {
		goals = append(goals, ledger.GoalFromDoc(doc))
	}

	return goals, nil
}

// UpdateGoal merges the patch and recomputes the completion flag, which is
// derived state and never trusted from the caller.
func (g *Gateway) UpdateGoal(ctx context.Context, ownerID, id string, patch docstore.Document) (*ledger.Goal, error) {
	doc, err := load(ctx, g.store, ledger.CollectionGoals, id, ownerID)
	if err != nil {
		return nil, err
	}

	merged := mergePatch(doc, patch, "owner_id", "is_completed")

	goal := ledger.GoalFromDoc(merged)
	if err := validateGoal(goal); err != nil {
		return nil, err
	}

	goal.Recompute()

	if err := g.store.Put(ctx, ledger.CollectionGoals, id, ledger.GoalToDoc(goal)); err != nil {
		return nil, fmt.Errorf("updating goal: %w", err)
	}

	return goal, nil
}

func (g *Gateway) DeleteGoal(ctx context.Context, ownerID, id string) error {
	if _, err := load(ctx, g.store, ledger.CollectionGoals, id, ownerID); err != nil {
		return err
	}

	if err := g.store.Delete(ctx, ledger.CollectionGoals, id); err != nil {
		return fmt.Errorf("deleting goal: %w", err)
	}

	return nil
}

func validateGoal(goal *ledger.Goal) error {
	if goal.Name == "" {
		return &ledger.ValidationError{Field: "name", Reason: "required"}
	}

	if goal.OwnerID == "" {
		return &ledger.ValidationError{Field: "owner_id", Reason: "required"}
	}

	if goal.TargetAmount <= 0 {
		return &ledger.ValidationError{Field: "target_amount", Reason: "must be positive"}
	}

	if goal.CurrentAmount < 0 {
		return &ledger.ValidationError{Field: "current_amount", Reason: "must not be negative"}
	}

	return nil
}
