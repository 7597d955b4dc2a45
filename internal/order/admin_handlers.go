package order

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/resto-pricing/internal/common"
)

// AdminHandler exposes staff-only order management endpoints.
type AdminHandler struct {
	Service *Service
}

type patchStatusRequest struct {
	Status string `json:"status"`
}

// PatchStatus handles PATCH /api/v1/admin/orders/{id}/status.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var req patchStatusRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	target := strings.ToUpper(strings.TrimSpace(req.Status))
	if target == StatusSubmitted || (statusRank(target) < 0 && target != StatusVoided) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unsupported status", map[string]any{"status": req.Status})
		return
	}
	ord, err := h.Service.UpdateStatus(r.Context(), id, target)
	switch {
	case err == nil:
		common.JSON(w, http.StatusOK, map[string]any{"data": ord})
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, ErrStatusConflict):
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update order status", nil)
	}
}
