package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/resto-pricing/internal/loyalty"
	"github.com/noah-isme/resto-pricing/internal/money"
	"github.com/noah-isme/resto-pricing/internal/pricing"
)

var (
	// ErrNotFound indicates the session does not exist or has expired.
	ErrNotFound = errors.New("pricing session not found")
	// ErrSubmissionInFlight is returned for mutations attempted while the order is being submitted.
	ErrSubmissionInFlight = errors.New("order submission in flight")
	// ErrEmptyOrder is returned when submitting a session without items.
	ErrEmptyOrder = errors.New("order has no items")
	// ErrDuplicateItem is returned when an item id is already present.
	ErrDuplicateItem = errors.New("line item already in order")
	// ErrCustomerRequired is returned when redeeming points without a customer.
	ErrCustomerRequired = errors.New("customer required for loyalty redemption")
)

// Session is the caller-owned pricing state of one order being built. Every
// mutation validates first and only then replaces state, so a rejected call
// leaves the session exactly as it was.
type Session struct {
	ID              string              `json:"id"`
	RestaurantID    string              `json:"restaurantId"`
	CustomerID      string              `json:"customerId,omitempty"`
	Items           []pricing.LineItem  `json:"items"`
	Discount        pricing.Discount    `json:"discount"`
	Taxes           pricing.TaxSchedule `json:"taxes"`
	Ledger          *loyalty.Ledger     `json:"ledger,omitempty"`
	Currency        string              `json:"currency"`
	CurrencySymbol  string              `json:"currencySymbol"`
	Submitting      bool                `json:"submitting"`
	SubmittingSince time.Time           `json:"submittingSince,omitempty"`
	Version         int64               `json:"version"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// Snapshot is the state captured for a submission.
type Snapshot struct {
	SessionID    string
	RestaurantID string
	CustomerID   string
	Currency     string
	Items        []pricing.LineItem
	Discount     pricing.Discount
	Taxes        pricing.TaxSchedule
	Ledger       *loyalty.Ledger
	Version      int64
}

// ActiveDiscount returns the mechanism currently in effect, FreeComp included.
func (s *Session) ActiveDiscount() pricing.DiscountType {
	return s.Discount.Active(s.Items)
}

// Quote prices the current state.
func (s *Session) Quote(engine pricing.Engine) pricing.Breakdown {
	return engine.Compute(s.Items, s.Taxes, s.Discount, s.Ledger)
}

// AddItem appends a new, uncomped line.
func (s *Session) AddItem(item pricing.LineItem) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if item.ID == "" {
		return fmt.Errorf("missing id: %w", pricing.ErrInvalidItem)
	}
	if err := item.Validate(); err != nil {
		return err
	}
	if _, ok := s.indexOf(item.ID); ok {
		return fmt.Errorf("%s: %w", item.ID, ErrDuplicateItem)
	}
	next := append(pricing.CloneItems(s.Items), item.WithComped(false))
	if err := pricing.ValidateOrder(next); err != nil {
		return err
	}
	s.commit(next, s.Discount)
	return nil
}

// RemoveItem drops a line. Removing the last paid line while comped lines
// remain is rejected.
func (s *Session) RemoveItem(id string) error {
	if err := s.mutable(); err != nil {
		return err
	}
	idx, ok := s.indexOf(id)
	if !ok {
		return fmt.Errorf("%s: %w", id, pricing.ErrItemNotFound)
	}
	next := make([]pricing.LineItem, 0, len(s.Items)-1)
	for i, it := range s.Items {
		if i != idx {
			next = append(next, it.Clone())
		}
	}
	if _, paid := pricing.CountComped(next); len(next) > 0 && paid == 0 {
		return pricing.ErrAllItemsFree
	}
	s.commit(next, s.Discount)
	return nil
}

// SetQuantity replaces a line with a new quantity.
func (s *Session) SetQuantity(id string, qty int) error {
	if err := s.mutable(); err != nil {
		return err
	}
	idx, ok := s.indexOf(id)
	if !ok {
		return fmt.Errorf("%s: %w", id, pricing.ErrItemNotFound)
	}
	updated := s.Items[idx].WithQuantity(qty)
	if err := updated.Validate(); err != nil {
		return err
	}
	next := pricing.CloneItems(s.Items)
	next[idx] = updated
	if err := pricing.ValidateOrder(next); err != nil {
		return err
	}
	s.commit(next, s.Discount)
	return nil
}

// ToggleComp marks a line free or paid. Comping is refused while a flat or
// loyalty discount is selected, and when no paid line would remain.
func (s *Session) ToggleComp(id string, comped bool) error {
	if err := s.mutable(); err != nil {
		return err
	}
	idx, ok := s.indexOf(id)
	if !ok {
		return fmt.Errorf("%s: %w", id, pricing.ErrItemNotFound)
	}
	if s.Items[idx].Comped == comped {
		return nil
	}
	next := pricing.CloneItems(s.Items)
	next[idx] = next[idx].WithComped(comped)
	if comped {
		if !s.Discount.IsNone() {
			return &pricing.DiscountAlreadyActiveError{Active: s.Discount.Type()}
		}
		if _, paid := pricing.CountComped(next); paid == 0 {
			return pricing.ErrAllItemsFree
		}
	}
	s.commit(next, s.Discount)
	return nil
}

// SetFlatDiscount selects a percentage discount. Re-selecting a flat
// percentage replaces the previous one.
func (s *Session) SetFlatDiscount(pct decimal.Decimal) error {
	if err := s.mutable(); err != nil {
		return err
	}
	d, err := pricing.FlatPercent(pct)
	if err != nil {
		return err
	}
	if err := s.exclusive(pricing.DiscountFlatPercent); err != nil {
		return err
	}
	s.commit(s.Items, d)
	return nil
}

// RedeemPoints selects a loyalty redemption against the customer's ledger.
func (s *Session) RedeemPoints(points int64) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if err := s.exclusive(pricing.DiscountLoyalty); err != nil {
		return err
	}
	if s.Ledger == nil {
		return ErrCustomerRequired
	}
	if err := s.Ledger.ValidateRedeem(points); err != nil {
		return err
	}
	if !pricing.OrderSubtotal(s.Items).GreaterThan(money.Zero()) {
		return pricing.ErrInsufficientSubtotal
	}
	d, err := pricing.LoyaltyRedemption(points)
	if err != nil {
		return err
	}
	s.commit(s.Items, d)
	return nil
}

// ClearDiscount drops the flat or loyalty selection. Comped items are untouched.
func (s *Session) ClearDiscount() error {
	if err := s.mutable(); err != nil {
		return err
	}
	s.commit(s.Items, pricing.NoDiscount())
	return nil
}

// BeginSubmit captures the submission snapshot and blocks further mutation.
func (s *Session) BeginSubmit(now time.Time) (Snapshot, error) {
	if err := s.mutable(); err != nil {
		return Snapshot{}, err
	}
	if len(s.Items) == 0 {
		return Snapshot{}, ErrEmptyOrder
	}
	if _, paid := pricing.CountComped(s.Items); paid == 0 {
		return Snapshot{}, pricing.ErrAllItemsFree
	}
	s.Submitting = true
	s.SubmittingSince = now
	snap := Snapshot{
		SessionID:    s.ID,
		RestaurantID: s.RestaurantID,
		CustomerID:   s.CustomerID,
		Currency:     s.Currency,
		Items:        pricing.CloneItems(s.Items),
		Discount:     s.Discount,
		Taxes:        s.Taxes.Clone(),
		Version:      s.Version,
	}
	if s.Ledger != nil {
		ledger := *s.Ledger
		snap.Ledger = &ledger
	}
	return snap, nil
}

// EndSubmit releases the in-flight flag. A successful submission resets the
// order and debits redeemed points from the cached ledger.
func (s *Session) EndSubmit(succeeded bool, redeemed, earned int64) {
	s.Submitting = false
	s.SubmittingSince = time.Time{}
	if !succeeded {
		return
	}
	if s.Ledger != nil {
		s.Ledger.AvailablePoints += earned - redeemed
		if s.Ledger.AvailablePoints < 0 {
			s.Ledger.AvailablePoints = 0
		}
	}
	s.commit(nil, pricing.NoDiscount())
}

// ReleaseStale clears an in-flight flag older than timeout. It reports
// whether the flag was cleared.
func (s *Session) ReleaseStale(now time.Time, timeout time.Duration) bool {
	if !s.Submitting || timeout <= 0 {
		return false
	}
	if now.Sub(s.SubmittingSince) < timeout {
		return false
	}
	s.Submitting = false
	s.SubmittingSince = time.Time{}
	return true
}

func (s *Session) mutable() error {
	if s.Submitting {
		return ErrSubmissionInFlight
	}
	return nil
}

// exclusive rejects selecting want while a different mechanism is active.
func (s *Session) exclusive(want pricing.DiscountType) error {
	active := s.ActiveDiscount()
	if active != pricing.DiscountNone && active != want {
		return &pricing.DiscountAlreadyActiveError{Active: active}
	}
	return nil
}

func (s *Session) indexOf(id string) (int, bool) {
	for i, it := range s.Items {
		if it.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (s *Session) commit(items []pricing.LineItem, discount pricing.Discount) {
	s.Items = items
	s.Discount = discount
	s.Version++
}
