package checkpoint

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator(t *testing.T) {
	v := NewValidator(100, 2000)

	tests := []struct {
		name       string
		price      float64
		wantReason InvalidReason
	}{
		{name: "normal price", price: 582.5},
		{name: "at lower bound", price: 100},
		{name: "at upper bound", price: 2000},
		{name: "NaN", price: math.NaN(), wantReason: ReasonNotFinite},
		{name: "positive infinity", price: math.Inf(1), wantReason: ReasonNotFinite},
		{name: "negative infinity", price: math.Inf(-1), wantReason: ReasonNotFinite},
		{name: "zero print", price: 0, wantReason: ReasonNonPositive},
		{name: "negative", price: -5, wantReason: ReasonNonPositive},
		{name: "below guard band", price: 12.5, wantReason: ReasonOutOfBounds},
		{name: "unit error above band", price: 58250, wantReason: ReasonOutOfBounds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.price)
			if tt.wantReason == "" {
				assert.NoError(t, err)
				return
			}

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.wantReason, vErr.Reason)
		})
	}
}
