package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/resto-pricing/internal/money"
)

var maxRate = decimal.NewFromInt(100)

// TaxComponent is one independently togglable tax, e.g. GST at 5%.
type TaxComponent struct {
	Name    string          `json:"name"`
	Rate    decimal.Decimal `json:"rate"`
	Enabled bool            `json:"enabled"`
}

// TaxSchedule is the ordered set of tax components applied to an order.
type TaxSchedule struct {
	Components []TaxComponent `json:"components"`
}

// TaxLine is the computed amount for one enabled component.
type TaxLine struct {
	Name   string          `json:"name"`
	Rate   decimal.Decimal `json:"rate"`
	Amount money.Money     `json:"amount"`
}

// TaxResult holds the per-component lines and their sum.
type TaxResult struct {
	Lines []TaxLine   `json:"lines"`
	Total money.Money `json:"total"`
}

// Validate rejects rates outside [0,100].
func (s TaxSchedule) Validate() error {
	for _, c := range s.Components {
		if c.Rate.IsNegative() || c.Rate.GreaterThan(maxRate) {
			return fmt.Errorf("%s rate %s: %w", c.Name, c.Rate.String(), ErrInvalidTaxRate)
		}
	}
	return nil
}

// ComputeTax applies every enabled component to base. Each line is rounded to
// cents before summing so the displayed lines always add up to the total.
func (s TaxSchedule) ComputeTax(base money.Money) TaxResult {
	res := TaxResult{Lines: make([]TaxLine, 0, len(s.Components))}
	if base.IsNegative() {
		base = money.Zero()
	}
	for _, c := range s.Components {
		if !c.Enabled {
			continue
		}
		amount := base.PercentOf(c.Rate).RoundToCents()
		res.Lines = append(res.Lines, TaxLine{Name: c.Name, Rate: c.Rate, Amount: amount})
		res.Total = res.Total.Add(amount)
	}
	return res
}

// Clone returns a deep copy of the schedule.
func (s TaxSchedule) Clone() TaxSchedule {
	if s.Components == nil {
		return TaxSchedule{}
	}
	out := make([]TaxComponent, len(s.Components))
	copy(out, s.Components)
	return TaxSchedule{Components: out}
}
