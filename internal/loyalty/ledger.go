package loyalty

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/resto-pricing/internal/money"
)

var (
	// ErrBelowMinimum is returned when fewer points than the configured minimum are redeemed.
	ErrBelowMinimum = errors.New("loyalty redemption below minimum points")
	// ErrInsufficientPoints indicates the customer does not hold enough points.
	ErrInsufficientPoints = errors.New("loyalty points insufficient")
	// ErrLoyaltyDisabled is returned when redemption is attempted with loyalty switched off.
	ErrLoyaltyDisabled = errors.New("loyalty program disabled")
	// ErrInvalidSettings indicates the loyalty settings cannot produce a conversion.
	ErrInvalidSettings = errors.New("loyalty settings invalid")
)

// Settings captures the restaurant level loyalty configuration.
// RedeemRate points convert to RedeemValue currency, e.g. 200 points = 5.00.
// The rate may be fractional (12.5 points = 1.00).
type Settings struct {
	Enabled         bool            `json:"enabled"`
	MinRedeemPoints int64           `json:"minRedeemPoints"`
	RedeemRate      decimal.Decimal `json:"redeemRate"`
	RedeemValue     money.Money     `json:"redeemValue"`
	EarnRate        decimal.Decimal `json:"earnRate"`
}

// Validate ensures enabled settings describe a usable conversion.
func (s Settings) Validate() error {
	if !s.Enabled {
		return nil
	}
	if !s.RedeemRate.IsPositive() {
		return fmt.Errorf("redeemRate must be positive: %w", ErrInvalidSettings)
	}
	if !s.RedeemValue.GreaterThan(money.Zero()) {
		return fmt.Errorf("redeemValue must be positive: %w", ErrInvalidSettings)
	}
	if s.MinRedeemPoints < 0 {
		return fmt.Errorf("minRedeemPoints must not be negative: %w", ErrInvalidSettings)
	}
	if s.EarnRate.IsNegative() {
		return fmt.Errorf("earnRate must not be negative: %w", ErrInvalidSettings)
	}
	return nil
}

// Ledger tracks a customer's redeemable balance against the loyalty settings.
type Ledger struct {
	AvailablePoints int64    `json:"availablePoints"`
	Settings        Settings `json:"settings"`
}

// PointsToCurrency converts points into their currency value.
func (l Ledger) PointsToCurrency(points int64) money.Money {
	if points <= 0 || !l.Settings.RedeemRate.IsPositive() {
		return money.Zero()
	}
	value := l.Settings.RedeemValue.Decimal().Mul(decimal.NewFromInt(points)).Div(l.Settings.RedeemRate)
	converted, err := money.FromDecimalChecked(value)
	if err != nil {
		// larger than any order can absorb; the engine caps at the subtotal
		return money.FromMicros(money.MaxMicros)
	}
	return converted
}

// MaxRedeemablePoints returns the largest redemption the order subtotal can absorb.
func (l Ledger) MaxRedeemablePoints(subtotal money.Money) int64 {
	if !l.Settings.RedeemRate.IsPositive() || !l.Settings.RedeemValue.GreaterThan(money.Zero()) || !subtotal.GreaterThan(money.Zero()) {
		return 0
	}
	absorbable := subtotal.Decimal().
		Mul(l.Settings.RedeemRate).
		Div(l.Settings.RedeemValue.Decimal()).
		Floor().
		IntPart()
	if absorbable > l.AvailablePoints {
		return l.AvailablePoints
	}
	return absorbable
}

// ValidateRedeem checks a redemption request against the minimum and the balance.
func (l Ledger) ValidateRedeem(points int64) error {
	if !l.Settings.Enabled {
		return ErrLoyaltyDisabled
	}
	if points < l.Settings.MinRedeemPoints || points <= 0 {
		return ErrBelowMinimum
	}
	if points > l.AvailablePoints {
		return ErrInsufficientPoints
	}
	return nil
}

// PointsEarned returns the points credited for a paid amount.
func (l Ledger) PointsEarned(paid money.Money) int64 {
	if !l.Settings.Enabled || !l.Settings.EarnRate.IsPositive() || !paid.GreaterThan(money.Zero()) {
		return 0
	}
	return paid.Decimal().Mul(l.Settings.EarnRate).Floor().IntPart()
}
