package order

import (
	"context"
	"errors"
	"fmt"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/resto-pricing/internal/events"
	"github.com/noah-isme/resto-pricing/internal/money"
	"github.com/noah-isme/resto-pricing/internal/obs"
)

// Repository persists orders.
type Repository interface {
	Create(ctx context.Context, p Payload) (Order, bool, error)
	Get(ctx context.Context, id uuid.UUID) (Order, error)
	List(ctx context.Context, restaurantID string, limit, offset int) ([]Order, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// ErrInvalidPayload wraps payload validation failures.
var ErrInvalidPayload = errors.New("invalid order payload")

// Service validates, stores and announces submitted orders.
type Service struct {
	repo     Repository
	emitter  Emitter
	validate *validator.Validate
	logger   zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Repo      Repository
	Emitter   Emitter
	Validator *validator.Validate
	Logger    zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repo == nil {
		return nil, errors.New("order: repository is required")
	}
	v := cfg.Validator
	if v == nil {
		v = validator.New(validator.WithRequiredStructEnabled())
	}
	return &Service{repo: cfg.Repo, emitter: cfg.Emitter, validate: v, logger: cfg.Logger}, nil
}

// Submit stores the payload. Replaying an external id returns the original
// order without emitting a second event, provided that order was placed for
// the same restaurant and customer. Event failures are logged only.
func (s *Service) Submit(ctx context.Context, p Payload) (Order, error) {
	if err := s.validate.Struct(p); err != nil {
		observeSubmission("invalid")
		return Order{}, fmt.Errorf("%w: %s", ErrInvalidPayload, err.Error())
	}
	ord, created, err := s.repo.Create(ctx, p)
	if err != nil {
		observeSubmission("error")
		return Order{}, err
	}
	if !created {
		full, err := s.repo.Get(ctx, ord.ID)
		if err != nil {
			full = ord
		}
		if full.RestaurantID != p.RestaurantID || full.CustomerID != p.CustomerID {
			observeSubmission("conflict")
			s.logger.Warn().
				Str("external_id", p.ExternalID).
				Str("restaurant_id", p.RestaurantID).
				Msg("external id reused across orders")
			return Order{}, fmt.Errorf("%w: %s", ErrExternalIDConflict, p.ExternalID)
		}
		observeSubmission("replayed")
		return full, nil
	}
	observeSubmission("created")
	if obs.PricingDiscountAmount != nil && p.DiscountUsed.Amount.GreaterThan(money.Zero()) {
		amount, _ := p.DiscountUsed.Amount.Decimal().Float64()
		obs.PricingDiscountAmount.WithLabelValues(string(p.DiscountUsed.Type)).Observe(amount)
	}
	s.emit(ctx, events.TopicOrderSubmitted, ord, ord)
	if ord.CustomerID != "" && (ord.DiscountUsed.Points > 0 || ord.PointsEarned > 0) {
		s.emit(ctx, events.TopicLoyaltySettled, ord, loyaltySettled{
			OrderID:    ord.ID,
			CustomerID: ord.CustomerID,
			Redeemed:   ord.DiscountUsed.Points,
			Earned:     ord.PointsEarned,
		})
	}
	return ord, nil
}

type loyaltySettled struct {
	OrderID    uuid.UUID `json:"orderId"`
	CustomerID string    `json:"customerId"`
	Redeemed   int64     `json:"redeemed"`
	Earned     int64     `json:"earned"`
}

// Get returns a stored order.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	return s.repo.Get(ctx, id)
}

// List pages through a restaurant's orders.
func (s *Service) List(ctx context.Context, restaurantID string, page, perPage int) ([]Order, int64, error) {
	if page < 1 {
		page = 1
	}
	return s.repo.List(ctx, restaurantID, perPage, (page-1)*perPage)
}

type statusChanged struct {
	OrderID uuid.UUID `json:"orderId"`
	From    string    `json:"from"`
	To      string    `json:"to"`
}

// UpdateStatus advances an order through its lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, target string) (Order, error) {
	ord, err := s.repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !CanTransition(ord.Status, target) {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrStatusConflict, ord.Status, target)
	}
	if err := s.repo.UpdateStatus(ctx, id, ord.Status, target); err != nil {
		return Order{}, err
	}
	from := ord.Status
	ord.Status = target
	s.emit(ctx, events.TopicOrderStatusChanged, ord, statusChanged{OrderID: ord.ID, From: from, To: target})
	return ord, nil
}

func (s *Service) emit(ctx context.Context, topic string, ord Order, payload any) {
	if s.emitter == nil {
		return
	}
	if _, err := s.emitter.Emit(context.WithoutCancel(ctx), topic, ord.ID, payload); err != nil {
		if obs.OrderEventsTotal != nil {
			obs.OrderEventsTotal.WithLabelValues(topic, "failed").Inc()
		}
		s.logger.Error().Err(err).
			Str("topic", topic).
			Str("order_id", ord.ID.String()).
			Str("external_id", ord.ExternalID).
			Msg("order event emit failed")
	}
}

func observeSubmission(result string) {
	if obs.OrderSubmissionsTotal != nil {
		obs.OrderSubmissionsTotal.WithLabelValues(result).Inc()
	}
}
