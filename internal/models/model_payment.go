package models

import (
	"time"

	"gorm.io/datatypes"
)

// Payment statuses written by this service. The column itself is an open
// string: the reconciler overwrites it with whatever the latest processor
// event implies, without validating transitions.
const (
	PaymentStatusPending         = "pending"
	PaymentStatusCheckoutCreated = "checkout_created"
	PaymentStatusSucceeded       = "succeeded"
	PaymentStatusFailed          = "failed"
	PaymentStatusRefunded        = "refunded"
	PaymentStatusDisputed        = "disputed"
)

// Payment is the locally-owned record of one checkout-session or
// payment-intent creation attempt. Created by the API layer, mutated only by
// the webhook reconciler afterwards, never deleted.
type Payment struct {
	ID string `gorm:"column:id;primary_key;type:uuid" json:"id"`

	// Correlation keys, externally supplied, used for filtering only.
	OrgID      *string `gorm:"column:org_id;type:varchar(128);index:idx_stripe_payments_org_id" json:"org_id"`
	RunID      *string `gorm:"column:run_id;type:varchar(128);index:idx_stripe_payments_run_id" json:"run_id"`
	BrandID    *string `gorm:"column:brand_id;type:varchar(128);index:idx_stripe_payments_brand_id" json:"brand_id"`
	AppID      *string `gorm:"column:app_id;type:varchar(128);index:idx_stripe_payments_app_id" json:"app_id"`
	CampaignID *string `gorm:"column:campaign_id;type:varchar(128);index:idx_stripe_payments_campaign_id" json:"campaign_id"`

	// Processor references, populated at creation or later via webhook.
	StripePaymentIntentID   *string `gorm:"column:stripe_payment_intent_id;type:varchar(128);index:idx_stripe_payments_payment_intent_id" json:"stripe_payment_intent_id"`
	StripeCheckoutSessionID *string `gorm:"column:stripe_checkout_session_id;type:varchar(128);index:idx_stripe_payments_checkout_session_id" json:"stripe_checkout_session_id"`
	StripeCustomerID        *string `gorm:"column:stripe_customer_id;type:varchar(128)" json:"stripe_customer_id"`

	AmountInCents int64          `gorm:"column:amount_in_cents;type:bigint;not null" json:"amount_in_cents"`
	Currency      string         `gorm:"column:currency;type:varchar(16);not null;default:usd" json:"currency"`
	Status        string         `gorm:"column:status;type:varchar(64);not null;default:pending" json:"status"`
	Description   *string        `gorm:"column:description;type:text" json:"description"`
	Metadata      datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Payment) TableName() string { return "stripe_payments" }
