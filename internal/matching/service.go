// Package matching suggests a category for imported transactions based on
// how the owner categorized similar descriptions in the past.
package matching

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
)

// Repository supplies the transaction history the suggestions are learned
// from. Satisfied by *gateway.Gateway.
type Repository interface {
	ListTransactionsByOwner(ctx context.Context, ownerID string) ([]*ledger.Transaction, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SuggestCategory returns the category id of the best historical match for
// description, or empty when nothing similar has been seen. The longest
// overlapping description wins; ties go to the most recent transaction.
func (s *Service) SuggestCategory(ctx context.Context, ownerID, description string) (string, error) {
	txs, err := s.repo.ListTransactionsByOwner(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("loading transaction history: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(description))
	if needle == "" {
		return "", nil
	}

	var (
		bestCategory string
		bestLen      int
	)

	for _, t := range txs {
		if t.CategoryID == "" {
			continue
		}

		candidate := strings.ToLower(strings.TrimSpace(t.Description))
		if candidate == "" {
			continue
		}

		if !strings.Contains(needle, candidate) && !strings.Contains(candidate, needle) {
			continue
		}

		// Later transactions overwrite equal-length matches, so recency
		// breaks ties.
		if len(candidate) >= bestLen {
			bestLen = len(candidate)
			bestCategory = t.CategoryID
		}
	}

	return bestCategory, nil
}
