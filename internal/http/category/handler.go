package category

import (
	"encoding/json"
	"net/http"

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
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/defaults", h.seedDefaults)
}

type categoryRequest struct {
	Name  string                 `json:"name"`
	Type  ledger.TransactionType `json:"type"`
	Color string                 `json:"color"`
}

type categoryResponse struct {
	ID      string                 `json:"id"`
	Name    string                 `json:"name"`
	Type    ledger.TransactionType `json:"type"`
	Color   string                 `json:"color"`
	Shared  bool                   `json:"shared"`
}

func toResponse(c *ledger.Category) categoryResponse {
	return categoryResponse{
		ID:     c.ID,
		Name:   c.Name,
		Type:   c.Type,
		Color:  c.Color,
		Shared: c.OwnerID == "",
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c := &ledger.Category{
		Name:    req.Name,
		Type:    req.Type,
		Color:   req.Color,
		OwnerID: auth.OwnerID(r.Context()),
	}

	if err := h.gw.CreateCategory(r.Context(), c); err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toResponse(c))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	categories, err := h.gw.ListCategoriesForOwner(r.Context(), auth.OwnerID(r.Context()))
	if err != nil {
		respond.Error(w, err)
		return
	}

	resp := make([]categoryResponse, len(categories))
	for i, c := range categories {
		resp[i] = toResponse(c)
	}

	respond.JSON(w, http.StatusOK, resp)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var patch docstore.Document
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.gw.UpdateCategory(r.Context(), auth.OwnerID(r.Context()), chi.URLParam(r, "id"), patch); err != nil {
		respond.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.gw.DeleteCategory(r.Context(), auth.OwnerID(r.Context()), chi.URLParam(r, "id")); err != nil {
		respond.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// seedDefaults provisions the stock category set for the caller. Idempotent,
// safe to call on every login.
func (h *Handler) seedDefaults(w http.ResponseWriter, r *http.Request) {
	if err := h.gw.EnsureDefaultCategories(r.Context(), auth.OwnerID(r.Context())); err != nil {
		respond.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
