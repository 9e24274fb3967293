package importcsv

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/pocketbook/internal/gateway"
	"github.com/MrJamesThe3rd/pocketbook/internal/http/auth"
	"github.com/MrJamesThe3rd/pocketbook/internal/http/respond"
	"github.com/MrJamesThe3rd/pocketbook/internal/importer"
	"github.com/MrJamesThe3rd/pocketbook/internal/matching"
)

type Handler struct {
	importSvc *importer.Service
	matchSvc  *matching.Service
	gw        *gateway.Gateway
}

func NewHandler(importSvc *importer.Service, matchSvc *matching.Service, gw *gateway.Gateway) *Handler {
	return &Handler{importSvc: importSvc, matchSvc: matchSvc, gw: gw}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.importCSV)
}

type importedTransaction struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

type importResponse struct {
	Imported     int                   `json:"imported"`
	Transactions []importedTransaction `json:"transactions"`
}

// importCSV ingests a bank statement upload. Every parsed row is stored as
// a pending transaction against the given account so the import never moves
// the balance until the user confirms each entry.
func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	bank := importer.Bank(r.FormValue("bank"))
	if bank == "" {
		http.Error(w, "bank field is required", http.StatusBadRequest)
		return
	}

	accountID := r.FormValue("account_id")
	if accountID == "" {
		http.Error(w, "account_id field is required", http.StatusBadRequest)
		return
	}

	categoryID := r.FormValue("category_id")
	if categoryID == "" {
		http.Error(w, "category_id field is required", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	txs, err := h.importSvc.Import(bank, file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	owner := auth.OwnerID(r.Context())

	resp := importResponse{Transactions: make([]importedTransaction, 0, len(txs))}

	for _, t := range txs {
		t.AccountID = accountID
		t.CategoryID = categoryID
		t.OwnerID = owner

		if suggested, err := h.matchSvc.SuggestCategory(r.Context(), owner, t.Description); err == nil && suggested != "" {
			t.CategoryID = suggested
		}

		if err := h.gw.CreateTransaction(r.Context(), t); err != nil {
			respond.Error(w, err)
			return
		}

		resp.Imported++
		resp.Transactions = append(resp.Transactions, importedTransaction{
			ID:          t.ID,
			Amount:      t.Amount,
			Type:        string(t.Type),
			Description: t.Description,
			Date:        t.Date,
		})
	}

	respond.JSON(w, http.StatusCreated, resp)
}
