package facade

import (
	"context"
	"fmt"
	"io"

	"github.com/MrJamesThe3rd/pocketbook/internal/importer"
)

// ImportCSV parses a bank export and records every row through
// AddTransaction, so imported rows queue like any other write while
// offline and land as pending transactions either way. Returns how many
// rows were recorded.
func (s *Service) ImportCSV(ctx context.Context, bank importer.Bank, r io.Reader, accountID, categoryID string) (int, error) {
	txs, err := s.imports.Import(bank, r)
	if err != nil {
		return 0, fmt.Errorf("parsing %s export: %w", bank, err)
	}

	for i, t := range txs {
		t.AccountID = accountID
		t.CategoryID = categoryID

		if err := s.AddTransaction(ctx, t); err != nil {
			return i, fmt.Errorf("recording imported row %d: %w", i+1, err)
		}
	}

	return len(txs), nil
}
