package settings

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/resto-pricing/internal/loyalty"
	"github.com/noah-isme/resto-pricing/internal/money"
	"github.com/noah-isme/resto-pricing/internal/pricing"
)

// TaxToggle is one entry of the tax settings payload.
type TaxToggle struct {
	Enabled bool            `json:"enabled"`
	TaxRate decimal.Decimal `json:"taxRate"`
}

// TaxSettings mirrors the stored shape {gst:{enabled,taxRate}, pst:{...}, hst:{...}}.
type TaxSettings struct {
	GST TaxToggle `json:"gst"`
	PST TaxToggle `json:"pst"`
	HST TaxToggle `json:"hst"`
}

// Schedule converts the settings into a tax schedule in GST, PST, HST order.
func (t TaxSettings) Schedule() pricing.TaxSchedule {
	return pricing.TaxSchedule{Components: []pricing.TaxComponent{
		{Name: "GST", Rate: t.GST.TaxRate, Enabled: t.GST.Enabled},
		{Name: "PST", Rate: t.PST.TaxRate, Enabled: t.PST.Enabled},
		{Name: "HST", Rate: t.HST.TaxRate, Enabled: t.HST.Enabled},
	}}
}

// LoyaltySettings mirrors {enabled, minRedeemPoints, redeemRate, redeemValue, earnRate}.
type LoyaltySettings struct {
	Enabled         bool            `json:"enabled"`
	MinRedeemPoints int64           `json:"minRedeemPoints"`
	RedeemRate      decimal.Decimal `json:"redeemRate"`
	RedeemValue     decimal.Decimal `json:"redeemValue"`
	EarnRate        decimal.Decimal `json:"earnRate"`
}

// Rules converts the payload into ledger settings.
func (l LoyaltySettings) Rules() loyalty.Settings {
	return loyalty.Settings{
		Enabled:         l.Enabled,
		MinRedeemPoints: l.MinRedeemPoints,
		RedeemRate:      l.RedeemRate,
		RedeemValue:     money.FromDecimal(l.RedeemValue),
		EarnRate:        l.EarnRate,
	}
}

// Currency only affects presentation.
type Currency struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
}

// Snapshot is everything needed to price orders for one restaurant.
type Snapshot struct {
	RestaurantID string          `json:"restaurantId"`
	Tax          TaxSettings     `json:"tax"`
	Loyalty      LoyaltySettings `json:"loyalty"`
	Currency     Currency        `json:"currency"`
}

// Validate checks the tax rates and loyalty conversion.
func (s Snapshot) Validate() error {
	if err := s.Tax.Schedule().Validate(); err != nil {
		return err
	}
	return s.Loyalty.Rules().Validate()
}

func (s Snapshot) withDefaults() Snapshot {
	if s.Currency.Symbol == "" {
		s.Currency.Symbol = "$"
	}
	if s.Currency.Code == "" {
		s.Currency.Code = "CAD"
	}
	return s
}
