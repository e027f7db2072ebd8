package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Handler exposes stock-log HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stock-logs", func(r chi.Router) {
		r.Post("/", h.adjust)  // POST /stock-logs
		r.Get("/", h.history)  // GET  /stock-logs?item_id=...&limit=...
	})
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	entry, err := h.service.Adjust(r.Context(), req)
	if err != nil {
		var insufficient *InsufficientStockError
		var validation *ValidationError
		switch {
		case errors.As(err, &insufficient):
			respond(w, http.StatusBadRequest, map[string]interface{}{
				"error":     insufficient.Error(),
				"shortages": insufficient.Shortages,
			})
		case errors.Is(err, ErrUnknownItem):
			respond(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.As(err, &validation):
			respond(w, http.StatusBadRequest, map[string]string{"error": validation.Reason})
		default:
			respond(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}
	respond(w, http.StatusOK, entry)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.History(r.Context(), r.URL.Query().Get("item_id"), limit)
	if err != nil {
		code := http.StatusInternalServerError
		var validation *ValidationError
		if errors.As(err, &validation) {
			code = http.StatusBadRequest
		}
		respond(w, code, map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, entries)
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
