package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/resto-pricing/internal/loyalty"
	"github.com/noah-isme/resto-pricing/internal/obs"
	"github.com/noah-isme/resto-pricing/internal/order"
	"github.com/noah-isme/resto-pricing/internal/pricing"
	"github.com/noah-isme/resto-pricing/internal/receipt"
	"github.com/noah-isme/resto-pricing/internal/settings"
)

// ErrInvalidCustomer is returned for a customer id that is not a UUID.
var ErrInvalidCustomer = errors.New("invalid customer id")

// Locker serialises work on a key across instances.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// SettingsLoader resolves restaurant settings.
type SettingsLoader interface {
	Load(ctx context.Context, restaurantID string) (settings.Snapshot, error)
}

// BalanceReader returns a customer's loyalty balance.
type BalanceReader interface {
	Balance(ctx context.Context, customerID uuid.UUID) (int64, error)
}

// OrderSubmitter stores a submitted order.
type OrderSubmitter interface {
	Submit(ctx context.Context, p order.Payload) (order.Order, error)
}

// View is a session together with its current price breakdown.
type View struct {
	Session   *Session          `json:"session"`
	Breakdown pricing.Breakdown `json:"breakdown"`
	// ActiveDiscount includes the FreeComp projection.
	ActiveDiscount pricing.DiscountType `json:"activeDiscount"`
}

// Service coordinates session persistence, locking and submission.
type Service struct {
	store         *Store
	locker        Locker
	settings      SettingsLoader
	balances      BalanceReader
	orders        OrderSubmitter
	engine        pricing.Engine
	logger        zerolog.Logger
	lockTTL       time.Duration
	submitTimeout time.Duration
	now           func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store         *Store
	Locker        Locker
	Settings      SettingsLoader
	Balances      BalanceReader
	Orders        OrderSubmitter
	Logger        zerolog.Logger
	LockTTL       time.Duration
	SubmitTimeout time.Duration
	Now           func() time.Time
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("session: store is required")
	}
	if cfg.Locker == nil {
		return nil, errors.New("session: locker is required")
	}
	if cfg.Settings == nil {
		return nil, errors.New("session: settings loader is required")
	}
	if cfg.Orders == nil {
		return nil, errors.New("session: order submitter is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	submitTimeout := cfg.SubmitTimeout
	if submitTimeout <= 0 {
		submitTimeout = 30 * time.Second
	}
	logger := cfg.Logger
	return &Service{
		store:         cfg.Store,
		locker:        cfg.Locker,
		settings:      cfg.Settings,
		balances:      cfg.Balances,
		orders:        cfg.Orders,
		engine:        pricing.Engine{Logger: &logger},
		logger:        logger,
		lockTTL:       lockTTL,
		submitTimeout: submitTimeout,
		now:           now,
	}, nil
}

// Create opens a session with the restaurant's current tax and loyalty
// settings. A customer id attaches their loyalty ledger.
func (s *Service) Create(ctx context.Context, restaurantID, customerID string) (View, error) {
	snap, err := s.settings.Load(ctx, restaurantID)
	if err != nil {
		return View{}, err
	}
	now := s.now().UTC()
	sess := &Session{
		ID:             uuid.NewString(),
		RestaurantID:   restaurantID,
		Taxes:          snap.Tax.Schedule(),
		Discount:       pricing.NoDiscount(),
		Currency:       snap.Currency.Code,
		CurrencySymbol: snap.Currency.Symbol,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if customerID != "" {
		id, err := uuid.Parse(customerID)
		if err != nil {
			return View{}, fmt.Errorf("%s: %w", customerID, ErrInvalidCustomer)
		}
		ledger := &loyalty.Ledger{Settings: snap.Loyalty.Rules()}
		if ledger.Settings.Enabled && s.balances != nil {
			points, err := s.balances.Balance(ctx, id)
			if err != nil {
				return View{}, err
			}
			ledger.AvailablePoints = points
		}
		sess.CustomerID = id.String()
		sess.Ledger = ledger
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return View{}, fmt.Errorf("save session: %w", err)
	}
	return s.view(sess), nil
}

// Get returns the session and a fresh breakdown.
func (s *Service) Get(ctx context.Context, id string) (View, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.view(sess), nil
}

// Mutate applies fn under the session lock. When fn fails nothing is saved.
func (s *Service) Mutate(ctx context.Context, id, op string, fn func(*Session) error) (View, error) {
	var out View
	err := s.locker.WithLock(ctx, s.store.LockKey(id), s.lockTTL, func(ctx context.Context) error {
		sess, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if sess.ReleaseStale(s.now(), s.submitTimeout) {
			s.logger.Warn().Str("session_id", id).Msg("stale submission flag released")
		}
		if err := fn(sess); err != nil {
			return err
		}
		sess.UpdatedAt = s.now().UTC()
		if err := s.store.Save(ctx, sess); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		out = s.view(sess)
		return nil
	})
	obs.ObserveMutation(op, err)
	if err != nil {
		s.logger.Debug().Err(err).Str("session_id", id).Str("op", op).Msg("session mutation rejected")
		return View{}, err
	}
	return out, nil
}

// Receipt renders the current session as plain text.
func (s *Service) Receipt(ctx context.Context, id string) (string, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	buf := &bytes.Buffer{}
	err = receipt.Render(buf, receipt.Receipt{
		Title:     sess.RestaurantID,
		Reference: sess.ID,
		Symbol:    sess.CurrencySymbol,
		Items:     sess.Items,
		Breakdown: sess.Quote(s.engine),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Submit prices a snapshot taken under the session lock and sends it with
// ctx. Mutations are refused until the send finishes; cancelling ctx aborts
// the send and leaves the session as it was before submission.
func (s *Service) Submit(ctx context.Context, id, idempotencyKey string) (order.Order, error) {
	var snap Snapshot
	err := s.locker.WithLock(ctx, s.store.LockKey(id), s.lockTTL, func(ctx context.Context) error {
		sess, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		sess.ReleaseStale(s.now(), s.submitTimeout)
		snap, err = sess.BeginSubmit(s.now().UTC())
		if err != nil {
			return err
		}
		return s.store.Save(ctx, sess)
	})
	if err != nil {
		obs.ObserveMutation("submit", err)
		return order.Order{}, err
	}

	breakdown := s.engine.Compute(snap.Items, snap.Taxes, snap.Discount, snap.Ledger)
	// client keys are only unique per till, so they are scoped to the session
	externalID := fmt.Sprintf("%s:%d", snap.SessionID, snap.Version)
	if idempotencyKey != "" {
		externalID = snap.SessionID + ":" + idempotencyKey
	}
	payload := order.NewPayload(snap.RestaurantID, snap.CustomerID, snap.Currency, externalID, snap.Items, breakdown)
	if snap.Ledger != nil {
		payload.PointsEarned = snap.Ledger.PointsEarned(breakdown.Total)
	}

	started := s.now()
	sendCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()
	ord, sendErr := s.orders.Submit(sendCtx, payload)
	obs.ObserveSubmit(s.now().Sub(started), sendErr)

	// the caller's context may already be cancelled; the flag must still clear
	releaseCtx, releaseCancel := context.WithTimeout(context.WithoutCancel(ctx), s.lockTTL)
	defer releaseCancel()
	releaseErr := s.locker.WithLock(releaseCtx, s.store.LockKey(id), s.lockTTL, func(ctx context.Context) error {
		sess, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		sess.EndSubmit(sendErr == nil, payload.RedeemedPoints(), payload.PointsEarned)
		sess.UpdatedAt = s.now().UTC()
		return s.store.Save(ctx, sess)
	})
	if releaseErr != nil {
		s.logger.Error().Err(releaseErr).Str("session_id", id).Msg("release submission flag failed")
	}
	obs.ObserveMutation("submit", sendErr)
	if sendErr != nil {
		return order.Order{}, sendErr
	}
	return ord, nil
}

func (s *Service) view(sess *Session) View {
	obs.ObserveQuote()
	return View{Session: sess, Breakdown: sess.Quote(s.engine), ActiveDiscount: sess.ActiveDiscount()}
}
