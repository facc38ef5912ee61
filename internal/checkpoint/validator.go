package checkpoint

import (
	"fmt"
	"math"
)

// InvalidReason classifies why a candidate price was rejected. Used for
// audit logging of discarded data.
type InvalidReason string

const (
	ReasonNotFinite   InvalidReason = "not_finite"
	ReasonNonPositive InvalidReason = "non_positive"
	ReasonOutOfBounds InvalidReason = "out_of_bounds"
)

// ValidationError carries the rejected price and the typed reason.
type ValidationError struct {
	Price  float64
	Reason InvalidReason
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid price %.4f: %s", e.Price, e.Reason)
}

// Validator applies sanity bounds to candidate prices before they reach
// the aggregate. The [min, max] guard band is parameterized per instrument
// and blocks zero-prints, stale-cache artifacts, and unit errors.
type Validator struct {
	min float64
	max float64
}

// NewValidator creates a validator with the instrument's guard band.
func NewValidator(min, max float64) *Validator {
	return &Validator{min: min, max: max}
}

// Validate returns a *ValidationError when the price is unusable.
func (v *Validator) Validate(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return &ValidationError{Price: price, Reason: ReasonNotFinite}
	}
	if price <= 0 {
		return &ValidationError{Price: price, Reason: ReasonNonPositive}
	}
	if price < v.min || price > v.max {
		return &ValidationError{Price: price, Reason: ReasonOutOfBounds}
	}
	return nil
}
