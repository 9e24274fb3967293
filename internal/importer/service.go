package importer

import (
	"fmt"
	"io"

	"github.com/MrJamesThe3rd/pocketbook/internal/importer/cgd"
	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
)

type Service struct {
	cgdParser Importer
}

func NewService() *Service {
	return &Service{
		cgdParser: cgd.NewParser(),
	}
}

func (s *Service) Import(bank Bank, r io.Reader) ([]*ledger.Transaction, error) {
	var parser Importer

	switch bank {
	case BankCGD:
		parser = s.cgdParser
	default:
		return nil, fmt.Errorf("unknown bank: %s", bank)
	}

	return parser.Parse(r)
}
