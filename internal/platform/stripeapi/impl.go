package stripeapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	stripe "github.com/stripe/stripe-go/v82"
	sclient "github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	cfgpkg "github.com/mcpfactory/stripe-service/pkg/config"
)

type stripeClient struct {
	defaultKey string
	defaultAPI *sclient.API
	log        *zap.SugaredLogger
}

// NewClient builds the processor client. The default SDK handle is
// constructed once here and reused for every call that does not carry a
// tenant key override.
func NewClient(cfg *cfgpkg.Config, log *zap.SugaredLogger) Client {
	c := &stripeClient{defaultKey: cfg.Stripe.SecretKey, log: log}
	if c.defaultKey != "" {
		c.defaultAPI = newAPI(c.defaultKey)
	}
	return c
}

func newAPI(key string) *sclient.API {
	api := &sclient.API{}
	api.Init(key, nil)
	return api
}

// api picks the SDK handle for a call: a fresh one for a tenant key
// override, the cached default otherwise.
func (c *stripeClient) api(secretKey string) (*sclient.API, error) {
	if secretKey != "" {
		return newAPI(secretKey), nil
	}
	if c.defaultAPI == nil {
		return nil, errors.New("stripeapi: STRIPE_SECRET_KEY not configured")
	}
	return c.defaultAPI, nil
}

func (c *stripeClient) CreateCheckoutSession(ctx context.Context, p CreateCheckoutSessionParams, secretKey string) (CheckoutSession, error) {
	api, err := c.api(secretKey)
	if err != nil {
		return CheckoutSession{}, err
	}

	mode := p.Mode
	if mode == "" {
		mode = string(stripe.CheckoutSessionModePayment)
	}
	params := &stripe.CheckoutSessionParams{
		LineItems: lo.Map(p.LineItems, func(li LineItem, _ int) *stripe.CheckoutSessionLineItemParams {
			return &stripe.CheckoutSessionLineItemParams{
				Price:    stripe.String(li.PriceID),
				Quantity: stripe.Int64(li.Quantity),
			}
		}),
		Mode:       stripe.String(mode),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		Metadata:   p.Metadata,
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	} else if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	if len(p.Discounts) > 0 {
		params.Discounts = lo.Map(p.Discounts, func(d Discount, _ int) *stripe.CheckoutSessionDiscountParams {
			dp := &stripe.CheckoutSessionDiscountParams{}
			if d.Coupon != "" {
				dp.Coupon = stripe.String(d.Coupon)
			}
			if d.PromotionCode != "" {
				dp.PromotionCode = stripe.String(d.PromotionCode)
			}
			return dp
		})
	}
	params.Context = ctx

	sess, err := api.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripeapi: create checkout session: %w", err)
	}
	return CheckoutSession{SessionID: sess.ID, URL: sess.URL}, nil
}

func (c *stripeClient) CreatePaymentIntent(ctx context.Context, p CreatePaymentIntentParams, secretKey string) (PaymentIntent, error) {
	api, err := c.api(secretKey)
	if err != nil {
		return PaymentIntent{}, err
	}

	currency := p.Currency
	if currency == "" {
		currency = "usd"
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.AmountInCents),
		Currency: stripe.String(currency),
		Metadata: p.Metadata,
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}
	params.Context = ctx

	pi, err := api.PaymentIntents.New(params)
	if err != nil {
		return PaymentIntent{}, fmt.Errorf("stripeapi: create payment intent: %w", err)
	}
	return PaymentIntent{PaymentIntentID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
}

func (c *stripeClient) CreateProduct(ctx context.Context, p CreateProductParams, secretKey string) (Product, error) {
	api, err := c.api(secretKey)
	if err != nil {
		return Product{}, err
	}

	params := &stripe.ProductParams{
		Name:     stripe.String(p.Name),
		Metadata: p.Metadata,
	}
	if p.ID != "" {
		params.ID = stripe.String(p.ID)
	}
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}
	params.Context = ctx

	prod, err := api.Products.New(params)
	if err != nil {
		// Create-with-custom-id is an idempotency contract: an existing
		// product with the same id is fetched and returned, not an error.
		if p.ID != "" && isResourceAlreadyExists(err) {
			return c.GetProduct(ctx, p.ID, secretKey)
		}
		return Product{}, fmt.Errorf("stripeapi: create product: %w", err)
	}
	return toProduct(prod), nil
}

func (c *stripeClient) GetProduct(ctx context.Context, productID string, secretKey string) (Product, error) {
	api, err := c.api(secretKey)
	if err != nil {
		return Product{}, err
	}

	params := &stripe.ProductParams{}
	params.Context = ctx
	prod, err := api.Products.Get(productID, params)
	if err != nil {
		if isNotFound(err) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("stripeapi: get product %s: %w", productID, err)
	}
	return toProduct(prod), nil
}

func (c *stripeClient) CreatePrice(ctx context.Context, p CreatePriceParams, secretKey string) (Price, error) {
	api, err := c.api(secretKey)
	if err != nil {
		return Price{}, err
	}

	currency := p.Currency
	if currency == "" {
		currency = "usd"
	}
	params := &stripe.PriceParams{
		Product:    stripe.String(p.ProductID),
		UnitAmount: stripe.Int64(p.UnitAmountInCents),
		Currency:   stripe.String(currency),
		Metadata:   p.Metadata,
	}
	if p.Recurring != nil {
		count := p.Recurring.IntervalCount
		if count == 0 {
			count = 1
		}
		params.Recurring = &stripe.PriceRecurringParams{
			Interval:      stripe.String(p.Recurring.Interval),
			IntervalCount: stripe.Int64(count),
		}
	}
	params.Context = ctx

	price, err := api.Prices.New(params)
	if err != nil {
		return Price{}, fmt.Errorf("stripeapi: create price: %w", err)
	}
	return toPrice(price), nil
}

func (c *stripeClient) GetPrice(ctx context.Context, priceID string, secretKey string) (Price, error) {
	api, err := c.api(secretKey)
	if err != nil {
		return Price{}, err
	}

	params := &stripe.PriceParams{}
	params.Context = ctx
	price, err := api.Prices.Get(priceID, params)
	if err != nil {
		if isNotFound(err) {
			return Price{}, ErrNotFound
		}
		return Price{}, fmt.Errorf("stripeapi: get price %s: %w", priceID, err)
	}
	return toPrice(price), nil
}

func (c *stripeClient) ListPricesByProduct(ctx context.Context, productID string, secretKey string) ([]Price, error) {
	api, err := c.api(secretKey)
	if err != nil {
		return nil, err
	}

	params := &stripe.PriceListParams{
		Product: stripe.String(productID),
		Active:  stripe.Bool(true),
	}
	params.Context = ctx

	var prices []Price
	it := api.Prices.List(params)
	for it.Next() {
		prices = append(prices, toPrice(it.Price()))
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("stripeapi: list prices for product %s: %w", productID, err)
	}
	return prices, nil
}

func (c *stripeClient) CreateCoupon(ctx context.Context, p CreateCouponParams, secretKey string) (Coupon, error) {
	api, err := c.api(secretKey)
	if err != nil {
		return Coupon{}, err
	}

	duration := p.Duration
	if duration == "" {
		duration = string(stripe.CouponDurationOnce)
	}
	params := &stripe.CouponParams{
		Duration: stripe.String(duration),
		Metadata: p.Metadata,
	}
	if p.ID != "" {
		params.ID = stripe.String(p.ID)
	}
	if p.Name != "" {
		params.Name = stripe.String(p.Name)
	}
	if p.PercentOff != nil {
		params.PercentOff = stripe.Float64(*p.PercentOff)
	}
	if p.AmountOffInCents != nil {
		params.AmountOff = stripe.Int64(*p.AmountOffInCents)
	}
	if p.Currency != "" {
		params.Currency = stripe.String(p.Currency)
	}
	if p.DurationInMonths > 0 {
		params.DurationInMonths = stripe.Int64(p.DurationInMonths)
	}
	if p.MaxRedemptions > 0 {
		params.MaxRedemptions = stripe.Int64(p.MaxRedemptions)
	}
	if p.RedeemBy > 0 {
		params.RedeemBy = stripe.Int64(p.RedeemBy)
	}
	params.Context = ctx

	coupon, err := api.Coupons.New(params)
	if err != nil {
		if p.ID != "" && isResourceAlreadyExists(err) {
			return c.GetCoupon(ctx, p.ID, secretKey)
		}
		return Coupon{}, fmt.Errorf("stripeapi: create coupon: %w", err)
	}
	return toCoupon(coupon), nil
}

func (c *stripeClient) GetCoupon(ctx context.Context, couponID string, secretKey string) (Coupon, error) {
	api, err := c.api(secretKey)
	if err != nil {
		return Coupon{}, err
	}

	params := &stripe.CouponParams{}
	params.Context = ctx
	coupon, err := api.Coupons.Get(couponID, params)
	if err != nil {
		if isNotFound(err) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("stripeapi: get coupon %s: %w", couponID, err)
	}
	return toCoupon(coupon), nil
}

func (c *stripeClient) CreateCustomer(ctx context.Context, p CreateCustomerParams, secretKey string) (Customer, error) {
	api, err := c.api(secretKey)
	if err != nil {
		return Customer{}, err
	}

	params := &stripe.CustomerParams{Metadata: p.Metadata}
	if p.Email != "" {
		params.Email = stripe.String(p.Email)
	}
	if p.Name != "" {
		params.Name = stripe.String(p.Name)
	}
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}
	params.Context = ctx

	cust, err := api.Customers.New(params)
	if err != nil {
		return Customer{}, fmt.Errorf("stripeapi: create customer: %w", err)
	}
	return toCustomer(cust), nil
}

func (c *stripeClient) GetCustomer(ctx context.Context, customerID string, secretKey string) (Customer, error) {
	api, err := c.api(secretKey)
	if err != nil {
		return Customer{}, err
	}

	params := &stripe.CustomerParams{}
	params.Context = ctx
	cust, err := api.Customers.Get(customerID, params)
	if err != nil {
		if isNotFound(err) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, fmt.Errorf("stripeapi: get customer %s: %w", customerID, err)
	}
	return toCustomer(cust), nil
}

func (c *stripeClient) ListCustomers(ctx context.Context, p ListCustomersParams, secretKey string) (CustomerList, error) {
	api, err := c.api(secretKey)
	if err != nil {
		return CustomerList{}, err
	}

	params := &stripe.CustomerListParams{}
	if p.Email != "" {
		params.Email = stripe.String(p.Email)
	}
	if p.Limit > 0 {
		params.Limit = stripe.Int64(p.Limit)
	}
	// One page only; HasMore tells the caller to paginate.
	params.Single = true
	params.Context = ctx

	out := CustomerList{Customers: []Customer{}}
	it := api.Customers.List(params)
	for it.Next() {
		out.Customers = append(out.Customers, toCustomer(it.Customer()))
	}
	if err := it.Err(); err != nil {
		return CustomerList{}, fmt.Errorf("stripeapi: list customers: %w", err)
	}
	if meta := it.Meta(); meta != nil {
		out.HasMore = meta.HasMore
	}
	return out, nil
}

func (c *stripeClient) UpdateCustomer(ctx context.Context, customerID string, p UpdateCustomerParams, secretKey string) (Customer, error) {
	api, err := c.api(secretKey)
	if err != nil {
		return Customer{}, err
	}

	params := &stripe.CustomerParams{Metadata: p.Metadata}
	if p.Email != nil {
		params.Email = stripe.String(*p.Email)
	}
	if p.Name != nil {
		params.Name = stripe.String(*p.Name)
	}
	if p.Description != nil {
		params.Description = stripe.String(*p.Description)
	}
	params.Context = ctx

	cust, err := api.Customers.Update(customerID, params)
	if err != nil {
		if isNotFound(err) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, fmt.Errorf("stripeapi: update customer %s: %w", customerID, err)
	}
	return toCustomer(cust), nil
}

// VerifyWebhook validates the signature over the raw payload bytes. Secret is
// passed in by the caller so the webhook route stays usable even when the
// default API key is absent. The signature alone gates authenticity: events
// from endpoints pinned to an older API version must still be accepted, so
// the SDK's version check is disabled.
func (c *stripeClient) VerifyWebhook(payload []byte, sigHeader string, secret string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripeapi: webhook verification failed: %w", err)
	}
	return event, nil
}

// --- mapping helpers ---

func toProduct(p *stripe.Product) Product {
	return Product{ProductID: p.ID, Name: p.Name, Description: p.Description}
}

func toPrice(p *stripe.Price) Price {
	out := Price{PriceID: p.ID, UnitAmountInCents: p.UnitAmount, Currency: string(p.Currency), Active: p.Active}
	if p.Product != nil {
		out.ProductID = p.Product.ID
	}
	return out
}

func toCoupon(c *stripe.Coupon) Coupon {
	out := Coupon{
		CouponID: c.ID,
		Name:     c.Name,
		Duration: string(c.Duration),
		Currency: string(c.Currency),
		Valid:    c.Valid,
	}
	if c.PercentOff != 0 {
		out.PercentOff = lo.ToPtr(c.PercentOff)
	}
	if c.AmountOff != 0 {
		out.AmountOffInCents = lo.ToPtr(c.AmountOff)
	}
	return out
}

func toCustomer(c *stripe.Customer) Customer {
	return Customer{
		CustomerID:  c.ID,
		Email:       c.Email,
		Name:        c.Name,
		Description: c.Description,
		Metadata:    c.Metadata,
	}
}

// --- error classification ---

func isResourceAlreadyExists(err error) bool {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		return sErr.Code == stripe.ErrorCodeResourceAlreadyExists
	}
	return false
}

func isNotFound(err error) bool {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		return sErr.HTTPStatusCode == 404 || sErr.Code == stripe.ErrorCodeResourceMissing
	}
	return false
}
