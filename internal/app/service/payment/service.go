// Package payment owns the creation and querying of payment records: it
// resolves the tenant key, creates the run, calls the processor, persists the
// local record, and reports costs. After creation the record belongs to the
// webhook reconciler.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mcpfactory/stripe-service/internal/models"
	"github.com/mcpfactory/stripe-service/internal/platform/keyservice"
	"github.com/mcpfactory/stripe-service/internal/platform/runs"
	"github.com/mcpfactory/stripe-service/internal/platform/stripeapi"
	"github.com/mcpfactory/stripe-service/pkg/tool"
)

const serviceName = "stripe-service"

var (
	// ErrKeyResolution: an explicitly supplied appId could not be resolved to
	// a tenant key. The request fails instead of falling back, since the default key would
	// charge the wrong tenant.
	ErrKeyResolution = errors.New("failed to resolve Stripe key from key-service")
	// ErrRunCreation: the synchronous run-create call before payment creation
	// failed.
	ErrRunCreation = errors.New("failed to create run in runs-service")
	// ErrPaymentNotFound: no payment record with the requested id.
	ErrPaymentNotFound = errors.New("payment not found")
)

type LineItemRequest struct {
	PriceID  string `json:"priceId" binding:"required"`
	Quantity int64  `json:"quantity" binding:"required,gt=0"`
}

type DiscountRequest struct {
	Coupon        string `json:"coupon,omitempty"`
	PromotionCode string `json:"promotionCode,omitempty"`
}

type CreateCheckoutRequest struct {
	OrgID         string            `json:"orgId,omitempty"`
	RunID         string            `json:"runId,omitempty"`
	BrandID       string            `json:"brandId,omitempty"`
	AppID         string            `json:"appId,omitempty"`
	CampaignID    string            `json:"campaignId,omitempty"`
	LineItems     []LineItemRequest `json:"lineItems" binding:"required,min=1,dive"`
	SuccessURL    string            `json:"successUrl" binding:"required,url"`
	CancelURL     string            `json:"cancelUrl" binding:"required,url"`
	CustomerID    string            `json:"customerId,omitempty"`
	CustomerEmail string            `json:"customerEmail,omitempty" binding:"omitempty,email"`
	Mode          string            `json:"mode,omitempty" binding:"omitempty,oneof=payment subscription"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Discounts     []DiscountRequest `json:"discounts,omitempty"`
}

type CreateCheckoutResult struct {
	PaymentID string
	SessionID string
	URL       string
}

type CreateIntentRequest struct {
	OrgID         string            `json:"orgId,omitempty"`
	RunID         string            `json:"runId,omitempty"`
	BrandID       string            `json:"brandId,omitempty"`
	AppID         string            `json:"appId,omitempty"`
	CampaignID    string            `json:"campaignId,omitempty"`
	AmountInCents int64             `json:"amountInCents" binding:"required,gt=0"`
	Currency      string            `json:"currency,omitempty"`
	CustomerID    string            `json:"customerId,omitempty"`
	Description   string            `json:"description,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type CreateIntentResult struct {
	PaymentID       string
	PaymentIntentID string
	ClientSecret    string
	Status          string
}

type StatusResult struct {
	Payment   *models.Payment          `json:"payment"`
	Successes []models.PaymentSuccess  `json:"successes"`
	Failures  []models.PaymentFailure  `json:"failures"`
	Refunds   []models.Refund          `json:"refunds"`
	Disputes  []models.Dispute         `json:"disputes"`
}

type StatsFilter struct {
	RunIDs     []string `json:"runIds,omitempty"`
	ClerkOrgID string   `json:"clerkOrgId,omitempty"`
	BrandID    string   `json:"brandId,omitempty"`
	AppID      string   `json:"appId,omitempty"`
	CampaignID string   `json:"campaignId,omitempty"`
}

type StatsResult struct {
	TotalPayments      int64 `json:"totalPayments"`
	TotalAmountInCents int64 `json:"totalAmountInCents"`
	SuccessCount       int64 `json:"successCount"`
	FailureCount       int64 `json:"failureCount"`
	RefundCount        int64 `json:"refundCount"`
	DisputeCount       int64 `json:"disputeCount"`
}

type Service struct {
	db       *gorm.DB
	stripe   stripeapi.Client
	keys     keyservice.Resolver
	reporter runs.Reporter
	log      *zap.SugaredLogger
}

func NewService(db *gorm.DB, stripe stripeapi.Client, keys keyservice.Resolver, reporter runs.Reporter, log *zap.SugaredLogger) *Service {
	return &Service{db: db, stripe: stripe, keys: keys, reporter: reporter, log: log}
}

// prepare resolves the tenant key and ensures a run exists. Both steps are
// blocking and fail the request on error.
func (s *Service) prepare(ctx context.Context, appID, orgID, runID, brandID, campaignID, taskName string) (secretKey, resolvedRunID string, err error) {
	if appID != "" {
		secretKey, err = s.keys.Resolve(ctx, appID)
		if err != nil {
			s.log.Errorw("key resolution failed", "app_id", appID, "err", err)
			return "", "", fmt.Errorf("%w: %v", ErrKeyResolution, err)
		}
	}

	resolvedRunID = runID
	if orgID != "" && resolvedRunID == "" {
		run, runErr := s.reporter.CreateRun(ctx, runs.CreateRunParams{
			ClerkOrgID:  orgID,
			AppID:       lo.Ternary(appID != "", appID, serviceName),
			ServiceName: serviceName,
			TaskName:    taskName,
			BrandID:     brandID,
			CampaignID:  campaignID,
		})
		if runErr != nil {
			s.log.Errorw("run creation failed", "org_id", orgID, "err", runErr)
			return "", "", fmt.Errorf("%w: %v", ErrRunCreation, runErr)
		}
		resolvedRunID = run.ID
	}
	return secretKey, resolvedRunID, nil
}

// enrichMetadata adds the correlation ids that webhooks need to find their
// way back to a run.
func enrichMetadata(base map[string]string, runID, orgID string) map[string]string {
	out := make(map[string]string, len(base)+2)
	for k, v := range base {
		out[k] = v
	}
	if runID != "" {
		out["runId"] = runID
	}
	if orgID != "" {
		out["orgId"] = orgID
	}
	return out
}

func metadataJSON(m map[string]string) datatypes.JSON {
	if len(m) == 0 {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Service) CreateCheckout(ctx context.Context, req *CreateCheckoutRequest) (*CreateCheckoutResult, error) {
	secretKey, runID, err := s.prepare(ctx, req.AppID, req.OrgID, req.RunID, req.BrandID, req.CampaignID, "create-checkout-session")
	if err != nil {
		return nil, err
	}

	sess, err := s.stripe.CreateCheckoutSession(ctx, stripeapi.CreateCheckoutSessionParams{
		LineItems: lo.Map(req.LineItems, func(li LineItemRequest, _ int) stripeapi.LineItem {
			return stripeapi.LineItem{PriceID: li.PriceID, Quantity: li.Quantity}
		}),
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
		CustomerID:    req.CustomerID,
		CustomerEmail: req.CustomerEmail,
		Mode:          req.Mode,
		Metadata:      enrichMetadata(req.Metadata, runID, req.OrgID),
		Discounts: lo.Map(req.Discounts, func(d DiscountRequest, _ int) stripeapi.Discount {
			return stripeapi.Discount{Coupon: d.Coupon, PromotionCode: d.PromotionCode}
		}),
	}, secretKey)
	if err != nil {
		s.failRun(runID, err)
		return nil, err
	}

	payment := &models.Payment{
		ID:                      tool.GenerateUUIDV7(),
		OrgID:                   optStr(req.OrgID),
		RunID:                   optStr(runID),
		BrandID:                 optStr(req.BrandID),
		AppID:                   optStr(req.AppID),
		CampaignID:              optStr(req.CampaignID),
		StripeCheckoutSessionID: optStr(sess.SessionID),
		// Amount determined at checkout completion.
		AmountInCents: 0,
		Currency:      "usd",
		Status:        models.PaymentStatusCheckoutCreated,
		Metadata:      metadataJSON(req.Metadata),
	}
	if err := s.db.WithContext(ctx).Create(payment).Error; err != nil {
		s.failRun(runID, err)
		return nil, fmt.Errorf("persist payment record: %w", err)
	}

	s.completeRun(runID, "stripe-checkout-session")
	return &CreateCheckoutResult{PaymentID: payment.ID, SessionID: sess.SessionID, URL: sess.URL}, nil
}

func (s *Service) CreateIntent(ctx context.Context, req *CreateIntentRequest) (*CreateIntentResult, error) {
	secretKey, runID, err := s.prepare(ctx, req.AppID, req.OrgID, req.RunID, req.BrandID, req.CampaignID, "create-payment-intent")
	if err != nil {
		return nil, err
	}

	pi, err := s.stripe.CreatePaymentIntent(ctx, stripeapi.CreatePaymentIntentParams{
		AmountInCents: req.AmountInCents,
		Currency:      req.Currency,
		CustomerID:    req.CustomerID,
		Description:   req.Description,
		Metadata:      enrichMetadata(req.Metadata, runID, req.OrgID),
	}, secretKey)
	if err != nil {
		s.failRun(runID, err)
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = "usd"
	}
	status := pi.Status
	if status == "" {
		status = "requires_payment_method"
	}
	payment := &models.Payment{
		ID:                    tool.GenerateUUIDV7(),
		OrgID:                 optStr(req.OrgID),
		RunID:                 optStr(runID),
		BrandID:               optStr(req.BrandID),
		AppID:                 optStr(req.AppID),
		CampaignID:            optStr(req.CampaignID),
		StripePaymentIntentID: optStr(pi.PaymentIntentID),
		AmountInCents:         req.AmountInCents,
		Currency:              currency,
		Status:                status,
		Description:           optStr(req.Description),
		Metadata:              metadataJSON(req.Metadata),
	}
	if err := s.db.WithContext(ctx).Create(payment).Error; err != nil {
		s.failRun(runID, err)
		return nil, fmt.Errorf("persist payment record: %w", err)
	}

	s.completeRun(runID, "stripe-payment-intent")
	return &CreateIntentResult{
		PaymentID:       payment.ID,
		PaymentIntentID: pi.PaymentIntentID,
		ClientSecret:    pi.ClientSecret,
		Status:          pi.Status,
	}, nil
}

// failRun and completeRun are fire-and-forget: the payment outcome is already
// decided when they run.
func (s *Service) failRun(runID string, cause error) {
	if runID == "" {
		return
	}
	s.reporter.ReportStatus(runID, runs.StatusFailed, cause)
}

func (s *Service) completeRun(runID, costName string) {
	if runID == "" {
		return
	}
	s.reporter.ReportCosts(runID, []runs.CostItem{{CostName: costName, Quantity: 1}})
	s.reporter.ReportStatus(runID, runs.StatusCompleted, nil)
}

// GetStatus returns the payment record with every related processor event,
// matched through its payment-intent id.
func (s *Service) GetStatus(ctx context.Context, paymentID string) (*StatusResult, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).First(&payment, "id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("load payment %s: %w", paymentID, err)
	}

	out := &StatusResult{
		Payment:   &payment,
		Successes: []models.PaymentSuccess{},
		Failures:  []models.PaymentFailure{},
		Refunds:   []models.Refund{},
		Disputes:  []models.Dispute{},
	}
	if payment.StripePaymentIntentID == nil {
		return out, nil
	}
	intentID := *payment.StripePaymentIntentID

	if err := s.db.WithContext(ctx).Where("stripe_payment_intent_id = ?", intentID).Find(&out.Successes).Error; err != nil {
		return nil, fmt.Errorf("load successes: %w", err)
	}
	if err := s.db.WithContext(ctx).Where("stripe_payment_intent_id = ?", intentID).Find(&out.Failures).Error; err != nil {
		return nil, fmt.Errorf("load failures: %w", err)
	}
	if err := s.db.WithContext(ctx).Where("stripe_payment_intent_id = ?", intentID).Find(&out.Refunds).Error; err != nil {
		return nil, fmt.Errorf("load refunds: %w", err)
	}
	if err := s.db.WithContext(ctx).Where("stripe_payment_intent_id = ?", intentID).Find(&out.Disputes).Error; err != nil {
		return nil, fmt.Errorf("load disputes: %w", err)
	}
	return out, nil
}

func (s *Service) ListByOrg(ctx context.Context, orgID string) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at desc").
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("list payments by org %s: %w", orgID, err)
	}
	return payments, nil
}

func (s *Service) ListByRun(ctx context.Context, runID string) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at desc").
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("list payments by run %s: %w", runID, err)
	}
	return payments, nil
}

// Stats aggregates payments matching the filter plus event counts across
// their payment-intent ids.
func (s *Service) Stats(ctx context.Context, filter *StatsFilter) (*StatsResult, error) {
	q := s.db.WithContext(ctx).Model(&models.Payment{})
	if filter.ClerkOrgID != "" {
		q = q.Where("org_id = ?", filter.ClerkOrgID)
	}
	if filter.BrandID != "" {
		q = q.Where("brand_id = ?", filter.BrandID)
	}
	if filter.AppID != "" {
		q = q.Where("app_id = ?", filter.AppID)
	}
	if filter.CampaignID != "" {
		q = q.Where("campaign_id = ?", filter.CampaignID)
	}
	if len(filter.RunIDs) > 0 {
		q = q.Where("run_id IN ?", filter.RunIDs)
	}

	var payments []models.Payment
	if err := q.Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("load payments for stats: %w", err)
	}

	out := &StatsResult{TotalPayments: int64(len(payments))}
	for _, p := range payments {
		out.TotalAmountInCents += p.AmountInCents
	}

	intentIDs := lo.FilterMap(payments, func(p models.Payment, _ int) (string, bool) {
		if p.StripePaymentIntentID == nil {
			return "", false
		}
		return *p.StripePaymentIntentID, true
	})
	if len(intentIDs) == 0 {
		return out, nil
	}

	counts := []struct {
		model any
		dst   *int64
	}{
		{&models.PaymentSuccess{}, &out.SuccessCount},
		{&models.PaymentFailure{}, &out.FailureCount},
		{&models.Refund{}, &out.RefundCount},
		{&models.Dispute{}, &out.DisputeCount},
	}
	for _, c := range counts {
		if err := s.db.WithContext(ctx).Model(c.model).
			Where("stripe_payment_intent_id IN ?", intentIDs).
			Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("count events for stats: %w", err)
		}
	}
	return out, nil
}
