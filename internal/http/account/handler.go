package account

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/pocketbook/internal/docstore"
	"github.com/MrJamesThe3rd/pocketbook/internal/gateway"
	"github.com/MrJamesThe3rd/pocketbook/internal/http/auth"
	"github.com/MrJamesThe3rd/pocketbook/internal/http/respond"
	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
)

type Handler struct {
	gw *gateway.Gateway
}

func NewHandler(gw *gateway.Gateway) *Handler {
	return &Handler{gw: gw}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type createAccountRequest struct {
	Name    string             `json:"name"`
	Type    ledger.AccountType `json:"type"`
	Balance int64              `json:"balance"`
}

type accountResponse struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Type      ledger.AccountType `json:"type"`
	Balance   int64              `json:"balance"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func toResponse(a *ledger.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Name:      a.Name,
		Type:      a.Type,
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	a := &ledger.Account{
		Name:    req.Name,
		Type:    req.Type,
		Balance: req.Balance,
		OwnerID: auth.OwnerID(r.Context()),
	}

	if err := h.gw.CreateAccount(r.Context(), a); err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toResponse(a))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.gw.ListAccountsByOwner(r.Context(), auth.OwnerID(r.Context()))
	if err != nil {
		respond.Error(w, err)
		return
	}

	resp := make([]accountResponse, len(accounts))
	for i, a := range accounts {
		resp[i] = toResponse(a)
	}

	respond.JSON(w, http.StatusOK, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	a, err := h.gw.GetAccount(r.Context(), auth.OwnerID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(a))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var patch docstore.Document
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	owner := auth.OwnerID(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.gw.UpdateAccount(r.Context(), owner, id, patch); err != nil {
		respond.Error(w, err)
		return
	}

	a, err := h.gw.GetAccount(r.Context(), owner, id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(a))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.gw.DeleteAccount(r.Context(), auth.OwnerID(r.Context()), chi.URLParam(r, "id")); err != nil {
		respond.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
