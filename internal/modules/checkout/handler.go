package checkout

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/stockyardhq/stockyard-backend/internal/modules/auth"
	"github.com/stockyardhq/stockyard-backend/internal/modules/ledger"
)

// Handler exposes order HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.checkout)                 // POST  /orders
		r.Get("/", h.listOrders)                // GET   /orders?status=PAID
		r.Get("/{id}", h.getOrder)              // GET   /orders/{id}
		r.Patch("/{id}/status", h.updateStatus) // PATCH /orders/{id}/status
	})
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	// The authenticated user is the acting cashier unless the request names one.
	if req.UserID == "" {
		if uid, ok := auth.UserIDFromContext(r.Context()); ok {
			req.UserID = uid.String()
		}
	}

	o, err := h.service.Checkout(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, o)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	orders, err := h.service.ListOrders(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, orders)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	o, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, o)
}

// respondError maps engine errors onto the wire contract: 400 validation,
// 409 insufficient stock or write conflict (retryable), 404 unknown order,
// 500 persistence.
func respondError(w http.ResponseWriter, err error) {
	var validation *ValidationError
	var insufficient *ledger.InsufficientStockError
	switch {
	case errors.As(err, &validation):
		respond(w, http.StatusBadRequest, map[string]string{"error": validation.Reason})
	case errors.As(err, &insufficient):
		respond(w, http.StatusConflict, map[string]interface{}{
			"error":     insufficient.Error(),
			"shortages": insufficient.Shortages,
		})
	case errors.Is(err, ledger.ErrUnknownItem):
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrConflict):
		respond(w, http.StatusConflict, map[string]string{"error": err.Error(), "retryable": "true"})
	case errors.Is(err, ErrNotFound):
		respond(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		respond(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
