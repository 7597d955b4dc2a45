package pricing

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/resto-pricing/internal/loyalty"
)

// DiscountType names a discount mechanism.
type DiscountType string

const (
	DiscountNone        DiscountType = "none"
	DiscountFlatPercent DiscountType = "flat_percent"
	DiscountLoyalty     DiscountType = "loyalty"
	// DiscountFreeComp is derived from comped items and can never be selected directly.
	DiscountFreeComp DiscountType = "free_item"
)

func (t DiscountType) String() string { return string(t) }

// Discount is the mechanism chosen for an order: none, a flat percentage or a
// loyalty redemption. The zero value is no discount.
type Discount struct {
	kind    DiscountType
	percent decimal.Decimal
	points  int64
}

// NoDiscount returns the empty selection.
func NoDiscount() Discount { return Discount{kind: DiscountNone} }

// FlatPercent builds a percentage discount. Values outside [0,100] are rejected.
func FlatPercent(pct decimal.Decimal) (Discount, error) {
	if pct.IsNegative() || pct.GreaterThan(maxRate) {
		return Discount{}, fmt.Errorf("%s: %w", pct.String(), ErrInvalidPercent)
	}
	return Discount{kind: DiscountFlatPercent, percent: pct}, nil
}

// LoyaltyRedemption builds a points redemption.
func LoyaltyRedemption(points int64) (Discount, error) {
	if points < 0 {
		return Discount{}, fmt.Errorf("negative points %d: %w", points, loyalty.ErrBelowMinimum)
	}
	return Discount{kind: DiscountLoyalty, points: points}, nil
}

// Type returns the selected mechanism.
func (d Discount) Type() DiscountType {
	if d.kind == "" {
		return DiscountNone
	}
	return d.kind
}

// Percent returns the flat percentage, zero for other mechanisms.
func (d Discount) Percent() decimal.Decimal { return d.percent }

// Points returns the redeemed points, zero for other mechanisms.
func (d Discount) Points() int64 { return d.points }

// IsNone reports whether no mechanism is selected.
func (d Discount) IsNone() bool { return d.Type() == DiscountNone }

// Active projects the selection onto the items: with nothing selected, any
// comped item makes FreeComp the active mechanism.
func (d Discount) Active(items []LineItem) DiscountType {
	if !d.IsNone() {
		return d.Type()
	}
	if comped, _ := CountComped(items); comped > 0 {
		return DiscountFreeComp
	}
	return DiscountNone
}

type discountWire struct {
	Type    DiscountType     `json:"type"`
	Percent *decimal.Decimal `json:"percent,omitempty"`
	Points  int64            `json:"points,omitempty"`
}

// MarshalJSON encodes the selection.
func (d Discount) MarshalJSON() ([]byte, error) {
	w := discountWire{Type: d.Type()}
	switch w.Type {
	case DiscountFlatPercent:
		p := d.percent
		w.Percent = &p
	case DiscountLoyalty:
		w.Points = d.points
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes and re-validates a selection.
func (d *Discount) UnmarshalJSON(data []byte) error {
	var w discountWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var (
		out Discount
		err error
	)
	switch w.Type {
	case "", DiscountNone:
		out = NoDiscount()
	case DiscountFlatPercent:
		pct := decimal.Zero
		if w.Percent != nil {
			pct = *w.Percent
		}
		out, err = FlatPercent(pct)
	case DiscountLoyalty:
		out, err = LoyaltyRedemption(w.Points)
	default:
		err = fmt.Errorf("discount type %q cannot be selected", w.Type)
	}
	if err != nil {
		return err
	}
	*d = out
	return nil
}
