package pricing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPercent is returned when a flat discount percent falls outside [0,100].
	ErrInvalidPercent = errors.New("discount percent must be between 0 and 100")
	// ErrAllItemsFree indicates an operation would leave no paid item in the order.
	ErrAllItemsFree = errors.New("order must keep at least one paid item")
	// ErrInsufficientSubtotal is returned when redeeming against a zero subtotal.
	ErrInsufficientSubtotal = errors.New("order subtotal too low for redemption")
	// ErrInvalidItem indicates a line item with a non-positive quantity or negative price.
	ErrInvalidItem = errors.New("invalid line item")
	// ErrItemNotFound is returned when the referenced line item is not in the order.
	ErrItemNotFound = errors.New("line item not found")
	// ErrInvalidTaxRate indicates a tax component rate outside [0,100].
	ErrInvalidTaxRate = errors.New("tax rate must be between 0 and 100")
)

// DiscountAlreadyActiveError is returned when a second discount mechanism is
// activated while another one is in effect.
type DiscountAlreadyActiveError struct {
	Active DiscountType
}

func (e *DiscountAlreadyActiveError) Error() string {
	return fmt.Sprintf("discount already active: %s", e.Active)
}

// IsDiscountAlreadyActive reports whether err carries a DiscountAlreadyActiveError.
func IsDiscountAlreadyActive(err error) (DiscountType, bool) {
	var target *DiscountAlreadyActiveError
	if errors.As(err, &target) {
		return target.Active, true
	}
	return DiscountNone, false
}
