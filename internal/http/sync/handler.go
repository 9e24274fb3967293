// Package sync exposes the state of the offline queue over HTTP: how many
// operations are waiting, a manual drain trigger, and a connectivity toggle
// used by clients that can observe network state themselves.
package sync

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/pocketbook/internal/connectivity"
	"github.com/MrJamesThe3rd/pocketbook/internal/http/respond"
)

// Engine is the part of the facade the sync endpoints need.
type Engine interface {
	PendingCount(ctx context.Context) (int, error)
	ProcessPending(ctx context.Context) (int, error)
}

type Handler struct {
	engine Engine
	conn   *connectivity.Monitor
}

func NewHandler(engine Engine, conn *connectivity.Monitor) *Handler {
	return &Handler{engine: engine, conn: conn}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/status", h.status)
	r.Get("/pending", h.pending)
	r.Post("/process", h.process)
	r.Put("/online", h.setOnline)
}

type statusResponse struct {
	Online  bool `json:"online"`
	Pending int  `json:"pending"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	pending, err := h.engine.PendingCount(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, statusResponse{
		Online:  h.conn.Online(),
		Pending: pending,
	})
}

func (h *Handler) pending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.engine.PendingCount(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]int{"pending": pending})
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	if !h.conn.Online() {
		http.Error(w, "offline", http.StatusServiceUnavailable)
		return
	}

	processed, err := h.engine.ProcessPending(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]int{"processed": processed})
}

type onlineRequest struct {
	Online bool `json:"online"`
}

func (h *Handler) setOnline(w http.ResponseWriter, r *http.Request) {
	var req onlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.conn.SetOnline(req.Online)

	w.WriteHeader(http.StatusNoContent)
}
