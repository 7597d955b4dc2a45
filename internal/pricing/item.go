package pricing

import (
	"fmt"

	"github.com/noah-isme/resto-pricing/internal/money"
)

// AddOn is a priced customisation attached to a line item.
type AddOn struct {
	Name      string      `json:"name"`
	UnitPrice money.Money `json:"unitPrice"`
}

// LineItem is one priced entry of an order. Items are replaced as a whole,
// never mutated in place.
type LineItem struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	UnitPrice money.Money `json:"unitPrice"`
	Quantity  int         `json:"quantity"`
	AddOns    []AddOn     `json:"addOns,omitempty"`
	Comped    bool        `json:"isComped"`
}

// MaxQuantity caps the quantity of a single line.
const MaxQuantity = 10_000

// Validate checks quantity and prices, and that the undiscounted line total
// stays within money.MaxMicros.
func (it LineItem) Validate() error {
	if it.Quantity < 1 || it.Quantity > MaxQuantity {
		return fmt.Errorf("item %q quantity %d: %w", it.ID, it.Quantity, ErrInvalidItem)
	}
	if it.UnitPrice.IsNegative() {
		return fmt.Errorf("item %q negative price: %w", it.ID, ErrInvalidItem)
	}
	unit := it.UnitPrice
	for _, a := range it.AddOns {
		if a.UnitPrice.IsNegative() {
			return fmt.Errorf("item %q add-on %q negative price: %w", it.ID, a.Name, ErrInvalidItem)
		}
		if !a.UnitPrice.InRange() {
			return fmt.Errorf("item %q add-on %q price out of range: %w", it.ID, a.Name, ErrInvalidItem)
		}
		unit = unit.Add(a.UnitPrice)
		if !unit.InRange() {
			return fmt.Errorf("item %q unit total out of range: %w", it.ID, ErrInvalidItem)
		}
	}
	if _, ok := unit.CheckedMulQty(it.Quantity); !ok {
		return fmt.Errorf("item %q line total out of range: %w", it.ID, ErrInvalidItem)
	}
	return nil
}

// ValidateOrder validates every line and bounds the undiscounted order
// subtotal by money.MaxMicros.
func ValidateOrder(items []LineItem) error {
	total := money.Zero()
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return err
		}
		total = total.Add(it.PreCompTotal())
		if !total.InRange() {
			return fmt.Errorf("order subtotal out of range: %w", ErrInvalidItem)
		}
	}
	return nil
}

// UnitTotal is the unit price plus every add-on, for a single unit.
func (it LineItem) UnitTotal() money.Money {
	total := it.UnitPrice
	for _, a := range it.AddOns {
		total = total.Add(a.UnitPrice)
	}
	return total
}

// PreCompTotal is the line value as if the item were not comped.
func (it LineItem) PreCompTotal() money.Money {
	if it.Quantity <= 0 {
		return money.Zero()
	}
	return it.UnitTotal().MulQty(it.Quantity)
}

// LineTotal is the amount actually charged for the line. Comped lines
// contribute nothing, add-ons included.
func (it LineItem) LineTotal() money.Money {
	if it.Comped {
		return money.Zero()
	}
	return it.PreCompTotal()
}

// WithComped returns a copy with the comped flag set.
func (it LineItem) WithComped(comped bool) LineItem {
	out := it.Clone()
	out.Comped = comped
	return out
}

// WithQuantity returns a copy with a new quantity.
func (it LineItem) WithQuantity(qty int) LineItem {
	out := it.Clone()
	out.Quantity = qty
	return out
}

// Clone returns a deep copy of the item.
func (it LineItem) Clone() LineItem {
	out := it
	if it.AddOns != nil {
		out.AddOns = make([]AddOn, len(it.AddOns))
		copy(out.AddOns, it.AddOns)
	}
	return out
}

// OrderSubtotal sums the charged line totals.
func OrderSubtotal(items []LineItem) money.Money {
	total := money.Zero()
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// CompValue sums the pre-comp totals of every comped item.
func CompValue(items []LineItem) money.Money {
	total := money.Zero()
	for _, it := range items {
		if it.Comped {
			total = total.Add(it.PreCompTotal())
		}
	}
	return total
}

// CountComped returns the number of comped and paid lines.
func CountComped(items []LineItem) (comped, paid int) {
	for _, it := range items {
		if it.Comped {
			comped++
		} else {
			paid++
		}
	}
	return comped, paid
}

// CloneItems deep copies a slice of items.
func CloneItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}
