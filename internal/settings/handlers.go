package settings

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/resto-pricing/internal/common"
	"github.com/noah-isme/resto-pricing/internal/loyalty"
	"github.com/noah-isme/resto-pricing/internal/pricing"
)

// AdminHandler exposes settings maintenance endpoints.
type AdminHandler struct {
	Service *Service
}

// Get handles GET /api/v1/admin/settings/{restaurantId}.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.Load(r.Context(), strings.TrimSpace(chi.URLParam(r, "restaurantId")))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

// Invalidate handles POST /api/v1/admin/settings/{restaurantId}/invalidate.
func (h *AdminHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	restaurantID := strings.TrimSpace(chi.URLParam(r, "restaurantId"))
	if err := h.Service.Invalidate(r.Context(), restaurantID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "restaurant settings not found", nil)
	case errors.Is(err, pricing.ErrInvalidTaxRate), errors.Is(err, loyalty.ErrInvalidSettings):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_SETTINGS", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load settings", nil)
	}
}
