package session

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/resto-pricing/internal/common"
	"github.com/noah-isme/resto-pricing/internal/lock"
	"github.com/noah-isme/resto-pricing/internal/loyalty"
	"github.com/noah-isme/resto-pricing/internal/money"
	"github.com/noah-isme/resto-pricing/internal/obs"
	"github.com/noah-isme/resto-pricing/internal/order"
	"github.com/noah-isme/resto-pricing/internal/pricing"
	"github.com/noah-isme/resto-pricing/internal/settings"
)

// Handler exposes the pricing session endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service   *Service
	Validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validator
	if v == nil {
		v = validator.New(validator.WithRequiredStructEnabled())
	}
	return &Handler{service: cfg.Service, validate: v}
}

type createRequest struct {
	RestaurantID string `json:"restaurantId" validate:"required,max=64"`
	CustomerID   string `json:"customerId" validate:"omitempty,uuid"`
}

type addItemRequest struct {
	ID        string          `json:"id" validate:"omitempty,max=64"`
	Name      string          `json:"name" validate:"max=120"`
	UnitPrice money.Money     `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	AddOns    []pricing.AddOn `json:"addOns"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type compRequest struct {
	Comped *bool `json:"comped" validate:"required"`
}

type discountRequest struct {
	Percent *decimal.Decimal `json:"percent" validate:"required"`
}

type redeemRequest struct {
	Points *int64 `json:"points" validate:"required"`
}

// Routes mounts the session endpoints. submit wraps the submission handler
// with rate limiting and idempotency middleware.
func (h *Handler) Routes(r chi.Router, submit func(http.Handler) http.Handler) {
	r.Post("/sessions", h.Create)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/items", h.AddItem)
		r.Patch("/items/{itemId}", h.SetQuantity)
		r.Delete("/items/{itemId}", h.RemoveItem)
		r.Post("/items/{itemId}/comp", h.ToggleComp)
		r.Put("/discount", h.SetDiscount)
		r.Delete("/discount", h.ClearDiscount)
		r.Post("/loyalty/redeem", h.Redeem)
		r.Get("/receipt", h.Receipt)
		if submit != nil {
			r.With(submit).Post("/submit", h.Submit)
		} else {
			r.Post("/submit", h.Submit)
		}
	})
}

// Create handles POST /api/v1/sessions.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.service.Create(r.Context(), strings.TrimSpace(req.RestaurantID), strings.TrimSpace(req.CustomerID))
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	annotate(r, view)
	common.JSON(w, http.StatusCreated, map[string]any{"data": view})
}

// Get handles GET /api/v1/sessions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// AddItem handles POST /api/v1/sessions/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	item := pricing.LineItem{
		ID:        strings.TrimSpace(req.ID),
		Name:      strings.TrimSpace(req.Name),
		UnitPrice: req.UnitPrice,
		Quantity:  req.Quantity,
		AddOns:    req.AddOns,
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	h.mutate(w, r, "add_item", http.StatusCreated, func(s *Session) error { return s.AddItem(item) })
}

// SetQuantity handles PATCH /api/v1/sessions/{id}/items/{itemId}.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if !h.decode(w, r, &req) {
		return
	}
	itemID := chi.URLParam(r, "itemId")
	h.mutate(w, r, "set_quantity", http.StatusOK, func(s *Session) error { return s.SetQuantity(itemID, *req.Quantity) })
}

// RemoveItem handles DELETE /api/v1/sessions/{id}/items/{itemId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")
	h.mutate(w, r, "remove_item", http.StatusOK, func(s *Session) error { return s.RemoveItem(itemID) })
}

// ToggleComp handles POST /api/v1/sessions/{id}/items/{itemId}/comp.
func (h *Handler) ToggleComp(w http.ResponseWriter, r *http.Request) {
	var req compRequest
	if !h.decode(w, r, &req) {
		return
	}
	itemID := chi.URLParam(r, "itemId")
	h.mutate(w, r, "toggle_comp", http.StatusOK, func(s *Session) error { return s.ToggleComp(itemID, *req.Comped) })
}

// SetDiscount handles PUT /api/v1/sessions/{id}/discount.
func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.mutate(w, r, "set_discount", http.StatusOK, func(s *Session) error { return s.SetFlatDiscount(*req.Percent) })
}

// ClearDiscount handles DELETE /api/v1/sessions/{id}/discount.
func (h *Handler) ClearDiscount(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "clear_discount", http.StatusOK, func(s *Session) error { return s.ClearDiscount() })
}

// Redeem handles POST /api/v1/sessions/{id}/loyalty/redeem.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.mutate(w, r, "redeem_points", http.StatusOK, func(s *Session) error { return s.RedeemPoints(*req.Points) })
}

// Receipt handles GET /api/v1/sessions/{id}/receipt.
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	text, err := h.service.Receipt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

// Submit handles POST /api/v1/sessions/{id}/submit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	ord, err := h.service.Submit(r.Context(), chi.URLParam(r, "id"), key)
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	obs.Annotate(r.Context(), "restaurant_id", ord.RestaurantID)
	obs.Annotate(r.Context(), "order_id", ord.ID.String())
	common.JSON(w, http.StatusCreated, map[string]any{"data": ord})
}

func annotate(r *http.Request, view View) {
	if view.Session == nil {
		return
	}
	obs.Annotate(r.Context(), "restaurant_id", view.Session.RestaurantID)
	obs.Annotate(r.Context(), "session_id", view.Session.ID)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op string, status int, fn func(*Session) error) {
	view, err := h.service.Mutate(r.Context(), chi.URLParam(r, "id"), op, fn)
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	annotate(r, view)
	obs.Annotate(r.Context(), "operation", op)
	common.JSON(w, status, map[string]any{"data": view})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := common.DecodeJSON(r, dst); err != nil {
		common.WriteError(w, err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		details := map[string]any{}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
		}
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "request validation failed", details)
		return false
	}
	return true
}

func unprocessable(code, message string, err error) *common.AppError {
	return common.NewAppError(code, message, http.StatusUnprocessableEntity, err)
}

// mapError translates domain errors into API errors.
func mapError(err error) error {
	if active, ok := pricing.IsDiscountAlreadyActive(err); ok {
		return unprocessable("DISCOUNT_ALREADY_ACTIVE", "another discount is already active", err).
			WithDetails(map[string]any{"activeType": active})
	}
	switch {
	case common.IsAppError(err):
		return err
	case errors.Is(err, pricing.ErrInvalidPercent):
		return unprocessable("INVALID_PERCENT", "discount percent must be between 0 and 100", err)
	case errors.Is(err, loyalty.ErrBelowMinimum):
		return unprocessable("BELOW_MINIMUM", "points below the minimum redemption", err)
	case errors.Is(err, loyalty.ErrInsufficientPoints):
		return unprocessable("INSUFFICIENT_POINTS", "not enough loyalty points", err)
	case errors.Is(err, loyalty.ErrLoyaltyDisabled):
		return unprocessable("LOYALTY_DISABLED", "loyalty program is disabled", err)
	case errors.Is(err, ErrCustomerRequired):
		return unprocessable("CUSTOMER_REQUIRED", "a customer is required to redeem points", err)
	case errors.Is(err, pricing.ErrAllItemsFree):
		return unprocessable("ALL_ITEMS_FREE", "order must keep at least one paid item", err)
	case errors.Is(err, pricing.ErrInsufficientSubtotal):
		return unprocessable("INSUFFICIENT_SUBTOTAL", "order subtotal too low for redemption", err)
	case errors.Is(err, pricing.ErrInvalidItem):
		return unprocessable("INVALID_ITEM", err.Error(), err)
	case errors.Is(err, ErrDuplicateItem):
		return unprocessable("DUPLICATE_ITEM", err.Error(), err)
	case errors.Is(err, ErrEmptyOrder):
		return unprocessable("EMPTY_ORDER", "order has no items", err)
	case errors.Is(err, order.ErrExternalIDConflict):
		return common.NewAppError("IDEMPOTENCY_CONFLICT", "idempotency key already used for another order", http.StatusConflict, err)
	case errors.Is(err, order.ErrInvalidPayload):
		return unprocessable("INVALID_ORDER", err.Error(), err)
	case errors.Is(err, pricing.ErrItemNotFound):
		return common.NewAppError("NOT_FOUND", "line item not found", http.StatusNotFound, err)
	case errors.Is(err, ErrNotFound):
		return common.NewAppError("NOT_FOUND", "session not found", http.StatusNotFound, err)
	case errors.Is(err, settings.ErrNotFound):
		return common.NewAppError("NOT_FOUND", "restaurant settings not found", http.StatusNotFound, err)
	case errors.Is(err, loyalty.ErrCustomerNotFound):
		return common.NewAppError("NOT_FOUND", "customer not found", http.StatusNotFound, err)
	case errors.Is(err, ErrInvalidCustomer):
		return common.NewAppError("BAD_REQUEST", "invalid customer id", http.StatusBadRequest, err)
	case errors.Is(err, lock.ErrBusy):
		return common.NewAppError("SESSION_BUSY", "session is being modified, retry", http.StatusConflict, err)
	case errors.Is(err, ErrSubmissionInFlight):
		return common.NewAppError("SUBMISSION_IN_FLIGHT", "order submission in progress", http.StatusConflict, err)
	default:
		return common.NewAppError("INTERNAL", "internal error", http.StatusInternalServerError, err)
	}
}
