package order

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/resto-pricing/internal/money"
	"github.com/noah-isme/resto-pricing/internal/pricing"
)

// Item is a submitted order line.
type Item struct {
	ID        string          `json:"id" validate:"required"`
	Name      string          `json:"name"`
	UnitPrice money.Money     `json:"unitPrice"`
	Quantity  int             `json:"quantity" validate:"min=1"`
	AddOns    []pricing.AddOn `json:"addOns,omitempty"`
	Comped    bool            `json:"isComped"`
	LineTotal money.Money     `json:"lineTotal"`
}

// DiscountUsed records which mechanism priced the order.
type DiscountUsed struct {
	Amount money.Money          `json:"amount"`
	Type   pricing.DiscountType `json:"type" validate:"oneof=none flat_percent loyalty free_item"`
	Points int64                `json:"points,omitempty" validate:"min=0"`
}

// Payload is the order-creation request built from a priced session.
type Payload struct {
	RestaurantID string            `json:"restaurantId" validate:"required"`
	CustomerID   string            `json:"customerId,omitempty" validate:"omitempty,uuid"`
	Items        []Item            `json:"items" validate:"required,min=1,dive"`
	Subtotal     money.Money       `json:"subtotal"`
	Tax          money.Money       `json:"tax"`
	TaxLines     []pricing.TaxLine `json:"taxLines"`
	Discount     money.Money       `json:"discount"`
	DiscountUsed DiscountUsed      `json:"discountUsed"`
	Total        money.Money       `json:"total"`
	Currency     string            `json:"currency" validate:"required,len=3"`
	ExternalID   string            `json:"externalId" validate:"required,max=128"`
	PointsEarned int64             `json:"pointsEarned,omitempty" validate:"min=0"`
}

// NewPayload captures items and their breakdown into a submission payload.
func NewPayload(restaurantID, customerID, currency, externalID string, items []pricing.LineItem, b pricing.Breakdown) Payload {
	lines := make([]Item, 0, len(items))
	for _, it := range items {
		lines = append(lines, Item{
			ID:        it.ID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			AddOns:    append([]pricing.AddOn(nil), it.AddOns...),
			Comped:    it.Comped,
			LineTotal: it.LineTotal().RoundToCents(),
		})
	}
	taxLines := append([]pricing.TaxLine(nil), b.TaxLines...)
	return Payload{
		RestaurantID: restaurantID,
		CustomerID:   customerID,
		Items:        lines,
		Subtotal:     b.Subtotal,
		Tax:          b.TotalTax,
		TaxLines:     taxLines,
		Discount:     b.Discount.Amount,
		DiscountUsed: DiscountUsed{
			Amount: b.Discount.Amount,
			Type:   b.Discount.Type,
			Points: b.Discount.Points,
		},
		Total:      b.Total,
		Currency:   currency,
		ExternalID: externalID,
	}
}

// RedeemedPoints returns the points debited by a loyalty discount.
func (p Payload) RedeemedPoints() int64 {
	if p.DiscountUsed.Type != pricing.DiscountLoyalty {
		return 0
	}
	return p.DiscountUsed.Points
}

// Order is a persisted submission.
type Order struct {
	ID           uuid.UUID         `json:"id"`
	ExternalID   string            `json:"externalId"`
	RestaurantID string            `json:"restaurantId"`
	CustomerID   string            `json:"customerId,omitempty"`
	Status       string            `json:"status"`
	Items        []Item            `json:"items,omitempty"`
	Subtotal     money.Money       `json:"subtotal"`
	Tax          money.Money       `json:"tax"`
	TaxLines     []pricing.TaxLine `json:"taxLines,omitempty"`
	Discount     money.Money       `json:"discount"`
	DiscountUsed DiscountUsed      `json:"discountUsed"`
	Total        money.Money       `json:"total"`
	Currency     string            `json:"currency"`
	PointsEarned int64             `json:"pointsEarned,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// Order lifecycle. Every order starts SUBMITTED and only moves forward;
// VOIDED is terminal and reachable until the food is served.
const (
	StatusSubmitted = "SUBMITTED"
	StatusPreparing = "PREPARING"
	StatusServed    = "SERVED"
	StatusPaid      = "PAID"
	StatusVoided    = "VOIDED"
)

func statusRank(status string) int {
	switch status {
	case StatusSubmitted:
		return 0
	case StatusPreparing:
		return 1
	case StatusServed:
		return 2
	case StatusPaid:
		return 3
	default:
		return -1
	}
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	if to == StatusVoided {
		return from == StatusSubmitted || from == StatusPreparing
	}
	fromRank, toRank := statusRank(from), statusRank(to)
	return fromRank >= 0 && toRank > fromRank
}
