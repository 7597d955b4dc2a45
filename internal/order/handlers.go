package order

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/resto-pricing/internal/common"
)

// Handler exposes read endpoints for submitted orders.
type Handler struct {
	Service *Service
}

// List handles GET /api/v1/orders?restaurantId=&page=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	restaurantID := strings.TrimSpace(r.URL.Query().Get("restaurantId"))
	if restaurantID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "restaurantId is required", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20, 100)
	orders, total, err := h.Service.List(r.Context(), restaurantID, page, perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       orders,
		"pagination": common.NewPagination(page, perPage, total),
	})
}

// Get handles GET /api/v1/orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	ord, err := h.Service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ord})
}
