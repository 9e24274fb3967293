package importer

import (
	"io"

	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
)

type Bank string

const (
	BankCGD Bank = "cgd"
)

// Importer parses one bank's statement export into draft transactions.
// Parsed rows come back pending, with no account or category assigned;
// the caller fills those in before persisting.
type Importer interface {
	Parse(r io.Reader) ([]*ledger.Transaction, error)
}
