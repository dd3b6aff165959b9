// Package stripeapi wraps the Stripe SDK behind a typed client used by the
// HTTP handlers and the webhook reconciler. Every mutation accepts an
// optional per-call secret key so requests carrying an appId can charge
// against the resolved tenant credential; an empty key selects the default
// client built once from config. Tests inject a stub.
package stripeapi

import (
	"context"
	"errors"

	stripe "github.com/stripe/stripe-go/v82"
)

// ErrNotFound is returned when the processor reports the resource missing.
var ErrNotFound = errors.New("stripeapi: resource not found")

type LineItem struct {
	PriceID  string
	Quantity int64
}

type Discount struct {
	Coupon        string
	PromotionCode string
}

type CreateCheckoutSessionParams struct {
	LineItems     []LineItem
	SuccessURL    string
	CancelURL     string
	CustomerID    string
	CustomerEmail string
	Mode          string // "payment" or "subscription"
	Metadata      map[string]string
	Discounts     []Discount
}

type CheckoutSession struct {
	SessionID string
	URL       string
}

type CreatePaymentIntentParams struct {
	AmountInCents int64
	Currency      string
	CustomerID    string
	Description   string
	Metadata      map[string]string
}

type PaymentIntent struct {
	PaymentIntentID string
	ClientSecret    string
	Status          string
}

type CreateProductParams struct {
	// ID is the caller-supplied product id enabling idempotent creates.
	ID          string
	Name        string
	Description string
	Metadata    map[string]string
}

type Product struct {
	ProductID   string
	Name        string
	Description string
}

type Recurring struct {
	Interval      string // day, week, month, year
	IntervalCount int64
}

type CreatePriceParams struct {
	ProductID         string
	UnitAmountInCents int64
	Currency          string
	Recurring         *Recurring
	Metadata          map[string]string
}

type Price struct {
	PriceID           string
	ProductID         string
	UnitAmountInCents int64
	Currency          string
	Active            bool
}

type CreateCouponParams struct {
	// ID is the caller-supplied coupon id enabling idempotent creates.
	ID               string
	Name             string
	PercentOff       *float64
	AmountOffInCents *int64
	Currency         string
	Duration         string // once, repeating, forever
	DurationInMonths int64
	MaxRedemptions   int64
	RedeemBy         int64 // unix seconds, 0 when unset
	Metadata         map[string]string
}

type Coupon struct {
	CouponID         string
	Name             string
	PercentOff       *float64
	AmountOffInCents *int64
	Currency         string
	Duration         string
	Valid            bool
}

type CreateCustomerParams struct {
	Email       string
	Name        string
	Description string
	Metadata    map[string]string
}

type UpdateCustomerParams struct {
	Email       *string
	Name        *string
	Description *string
	Metadata    map[string]string
}

type Customer struct {
	CustomerID  string
	Email       string
	Name        string
	Description string
	Metadata    map[string]string
}

type ListCustomersParams struct {
	Email string
	Limit int64
}

type CustomerList struct {
	Customers []Customer
	HasMore   bool
}

// Client is the boundary to the payment processor. secretKey overrides the
// default credential when non-empty.
type Client interface {
	CreateCheckoutSession(ctx context.Context, p CreateCheckoutSessionParams, secretKey string) (CheckoutSession, error)
	CreatePaymentIntent(ctx context.Context, p CreatePaymentIntentParams, secretKey string) (PaymentIntent, error)

	// CreateProduct and CreateCoupon are idempotent on a caller-supplied id:
	// when the processor reports the resource already exists, the existing
	// resource is fetched and returned instead of an error.
	CreateProduct(ctx context.Context, p CreateProductParams, secretKey string) (Product, error)
	GetProduct(ctx context.Context, productID string, secretKey string) (Product, error)
	CreatePrice(ctx context.Context, p CreatePriceParams, secretKey string) (Price, error)
	GetPrice(ctx context.Context, priceID string, secretKey string) (Price, error)
	ListPricesByProduct(ctx context.Context, productID string, secretKey string) ([]Price, error)
	CreateCoupon(ctx context.Context, p CreateCouponParams, secretKey string) (Coupon, error)
	GetCoupon(ctx context.Context, couponID string, secretKey string) (Coupon, error)

	CreateCustomer(ctx context.Context, p CreateCustomerParams, secretKey string) (Customer, error)
	GetCustomer(ctx context.Context, customerID string, secretKey string) (Customer, error)
	ListCustomers(ctx context.Context, p ListCustomersParams, secretKey string) (CustomerList, error)
	UpdateCustomer(ctx context.Context, customerID string, p UpdateCustomerParams, secretKey string) (Customer, error)

	// VerifyWebhook validates the Stripe-Signature header against the literal
	// raw request body and returns the parsed event.
	VerifyWebhook(payload []byte, sigHeader string, secret string) (stripe.Event, error)
}
