package pricing

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/resto-pricing/internal/loyalty"
	"github.com/noah-isme/resto-pricing/internal/money"
)

// AppliedDiscount describes the discount line of a breakdown.
type AppliedDiscount struct {
	Type    DiscountType     `json:"type"`
	Amount  money.Money      `json:"amount"`
	Percent *decimal.Decimal `json:"percent,omitempty"`
	Points  int64            `json:"points,omitempty"`
}

// Breakdown is the immutable result of pricing an order.
type Breakdown struct {
	Subtotal  money.Money     `json:"subtotal"`
	TaxLines  []TaxLine       `json:"taxLines"`
	TotalTax  money.Money     `json:"totalTax"`
	Discount  AppliedDiscount `json:"discount"`
	CompValue money.Money     `json:"compValue"`
	Total     money.Money     `json:"total"`
	Clamped   bool            `json:"clamped,omitempty"`
}

// Engine prices orders. The zero value is ready to use.
type Engine struct {
	Logger *zerolog.Logger
}

// Compute prices items with the zero-value engine.
func Compute(items []LineItem, taxes TaxSchedule, discount Discount, ledger *loyalty.Ledger) Breakdown {
	return Engine{}.Compute(items, taxes, discount, ledger)
}

// Compute turns items, tax schedule, discount selection and loyalty ledger
// into a breakdown. Inputs are never modified.
//
// Tax is charged on the post-comp subtotal before any discount. Comped value
// is reported as the FreeComp discount line but is already absent from the
// subtotal, so it is not deducted a second time.
func (e Engine) Compute(items []LineItem, taxes TaxSchedule, discount Discount, ledger *loyalty.Ledger) Breakdown {
	raw := OrderSubtotal(items)
	subtotal := raw.RoundToCents()
	compValue := CompValue(items).RoundToCents()

	applied := AppliedDiscount{Type: discount.Active(items), Amount: money.Zero()}
	deducted := money.Zero()
	switch applied.Type {
	case DiscountFlatPercent:
		pct := discount.Percent()
		applied.Percent = &pct
		applied.Amount = raw.PercentOf(pct).RoundToCents()
		deducted = applied.Amount
	case DiscountLoyalty:
		applied.Points = discount.Points()
		if ledger != nil {
			applied.Amount = money.Min(ledger.PointsToCurrency(discount.Points()), raw).RoundToCents()
		}
		deducted = applied.Amount
	case DiscountFreeComp:
		applied.Amount = compValue
	}

	tax := taxes.ComputeTax(raw)

	// derived from the displayed figures so the receipt adds up
	total := subtotal.Add(tax.Total).Sub(deducted)
	clamped := false
	if total.IsNegative() {
		clamped = true
		e.logger().Warn().
			Str("subtotal", subtotal.String()).
			Str("tax", tax.Total.String()).
			Str("discount", deducted.String()).
			Str("discount_type", applied.Type.String()).
			Msg("pricing total clamped to zero")
		total = money.Zero()
	}

	return Breakdown{
		Subtotal:  subtotal,
		TaxLines:  tax.Lines,
		TotalTax:  tax.Total,
		Discount:  applied,
		CompValue: compValue,
		Total:     total,
		Clamped:   clamped,
	}
}

func (e Engine) logger() *zerolog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	nop := zerolog.Nop()
	return &nop
}
