package stripeapi

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"
)

func TestIsResourceAlreadyExists(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
		{
			name: "stripe already exists",
			err:  &stripe.Error{Code: stripe.ErrorCodeResourceAlreadyExists},
			want: true,
		},
		{
			name: "wrapped stripe already exists",
			err:  fmt.Errorf("create: %w", &stripe.Error{Code: stripe.ErrorCodeResourceAlreadyExists}),
			want: true,
		},
		{
			name: "other stripe error",
			err:  &stripe.Error{Code: stripe.ErrorCodeCardDeclined},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isResourceAlreadyExists(tt.err))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.False(t, isNotFound(nil))
	assert.False(t, isNotFound(errors.New("boom")))
	assert.True(t, isNotFound(&stripe.Error{HTTPStatusCode: 404}))
	assert.True(t, isNotFound(&stripe.Error{Code: stripe.ErrorCodeResourceMissing}))
	assert.False(t, isNotFound(&stripe.Error{HTTPStatusCode: 500}))
}

func TestToPrice_NilProduct(t *testing.T) {
	p := toPrice(&stripe.Price{ID: "price_1", UnitAmount: 1500, Currency: stripe.CurrencyUSD, Active: true})
	require.Equal(t, "price_1", p.PriceID)
	require.Empty(t, p.ProductID)
	require.Equal(t, int64(1500), p.UnitAmountInCents)
	require.Equal(t, "usd", p.Currency)
}

func TestToCoupon_OmitsZeroDiscounts(t *testing.T) {
	c := toCoupon(&stripe.Coupon{ID: "SAVE10", PercentOff: 10, Duration: stripe.CouponDurationOnce, Valid: true})
	require.NotNil(t, c.PercentOff)
	assert.Equal(t, 10.0, *c.PercentOff)
	assert.Nil(t, c.AmountOffInCents)
	assert.Equal(t, "once", c.Duration)
}

func TestAPISelection_RequiresDefaultKey(t *testing.T) {
	c := &stripeClient{}
	_, err := c.api("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_SECRET_KEY")

	api, err := c.api("sk_test_override")
	require.NoError(t, err)
	assert.NotNil(t, api)
}
