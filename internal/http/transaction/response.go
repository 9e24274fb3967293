package transaction

import (
	"time"

	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
)

type transactionResponse struct {
	ID          string                 `json:"id"`
	AccountID   string                 `json:"account_id"`
	Type        ledger.TransactionType `json:"type"`
	Amount      int64                  `json:"amount"`
	CategoryID  string                 `json:"category_id"`
	Description string                 `json:"description"`
	Date        string                 `json:"date"`
	Tags        []string               `json:"tags"`
	Pending     bool                   `json:"pending"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

func toResponse(t *ledger.Transaction) transactionResponse {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}

	return transactionResponse{
		ID:          t.ID,
		AccountID:   t.AccountID,
		Type:        t.Type,
		Amount:      t.Amount,
		CategoryID:  t.CategoryID,
		Description: t.Description,
		Date:        t.Date,
		Tags:        tags,
		Pending:     t.Pending,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func toResponseList(txs []*ledger.Transaction) []transactionResponse {
	resp := make([]transactionResponse, len(txs))
	for i, t := range txs {
		resp[i] = toResponse(t)
	}

	return resp
}
