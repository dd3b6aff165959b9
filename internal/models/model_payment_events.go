package models

import (
	"time"

	"gorm.io/datatypes"
)

// Append-only event-log tables, one row per processor webhook event of the
// category. Successes, refunds, disputes and checkout sessions carry a unique
// index on their natural processor id so redeliveries insert-if-absent.
// Failures deliberately do not: every delivery of a failure event inserts a
// new row, capturing each distinct failure attempt.

// PaymentSuccess records one payment_intent.succeeded event.
type PaymentSuccess struct {
	ID                    string         `gorm:"column:id;primary_key;type:uuid" json:"id"`
	StripePaymentIntentID string         `gorm:"column:stripe_payment_intent_id;type:varchar(128);not null;uniqueIndex:idx_payment_successes_intent_id" json:"stripe_payment_intent_id"`
	StripeChargeID        *string        `gorm:"column:stripe_charge_id;type:varchar(128)" json:"stripe_charge_id"`
	AmountInCents         int64          `gorm:"column:amount_in_cents;type:bigint;not null" json:"amount_in_cents"`
	Currency              string         `gorm:"column:currency;type:varchar(16);not null" json:"currency"`
	ReceiptURL            *string        `gorm:"column:receipt_url;type:text" json:"receipt_url"`
	RawPayload            datatypes.JSON `gorm:"column:raw_payload;type:jsonb" json:"raw_payload"`
	CreatedAt             time.Time      `json:"created_at"`
}

func (PaymentSuccess) TableName() string { return "stripe_payment_successes" }

// PaymentFailure records one payment_intent.payment_failed event.
type PaymentFailure struct {
	ID                    string         `gorm:"column:id;primary_key;type:uuid" json:"id"`
	StripePaymentIntentID string         `gorm:"column:stripe_payment_intent_id;type:varchar(128);not null;index:idx_payment_failures_intent_id" json:"stripe_payment_intent_id"`
	FailureCode           *string        `gorm:"column:failure_code;type:varchar(128)" json:"failure_code"`
	FailureMessage        *string        `gorm:"column:failure_message;type:text" json:"failure_message"`
	RawPayload            datatypes.JSON `gorm:"column:raw_payload;type:jsonb" json:"raw_payload"`
	CreatedAt             time.Time      `json:"created_at"`
}

func (PaymentFailure) TableName() string { return "stripe_payment_failures" }

// Refund records one refund line item from a charge.refunded event. A single
// charge may carry several refunds, each deduplicated by its own id.
type Refund struct {
	ID                    string         `gorm:"column:id;primary_key;type:uuid" json:"id"`
	StripeRefundID        string         `gorm:"column:stripe_refund_id;type:varchar(128);not null;uniqueIndex:idx_refunds_refund_id" json:"stripe_refund_id"`
	StripePaymentIntentID *string        `gorm:"column:stripe_payment_intent_id;type:varchar(128);index:idx_refunds_payment_intent_id" json:"stripe_payment_intent_id"`
	StripeChargeID        string         `gorm:"column:stripe_charge_id;type:varchar(128);not null" json:"stripe_charge_id"`
	AmountInCents         int64          `gorm:"column:amount_in_cents;type:bigint;not null" json:"amount_in_cents"`
	Currency              string         `gorm:"column:currency;type:varchar(16);not null" json:"currency"`
	Reason                *string        `gorm:"column:reason;type:varchar(128)" json:"reason"`
	Status                string         `gorm:"column:status;type:varchar(64);not null" json:"status"`
	RawPayload            datatypes.JSON `gorm:"column:raw_payload;type:jsonb" json:"raw_payload"`
	CreatedAt             time.Time      `json:"created_at"`
}

func (Refund) TableName() string { return "stripe_refunds" }

// Dispute records one charge.dispute.created event.
type Dispute struct {
	ID                    string         `gorm:"column:id;primary_key;type:uuid" json:"id"`
	StripeDisputeID       string         `gorm:"column:stripe_dispute_id;type:varchar(128);not null;uniqueIndex:idx_disputes_dispute_id" json:"stripe_dispute_id"`
	StripePaymentIntentID *string        `gorm:"column:stripe_payment_intent_id;type:varchar(128);index:idx_disputes_payment_intent_id" json:"stripe_payment_intent_id"`
	StripeChargeID        string         `gorm:"column:stripe_charge_id;type:varchar(128);not null" json:"stripe_charge_id"`
	AmountInCents         int64          `gorm:"column:amount_in_cents;type:bigint;not null" json:"amount_in_cents"`
	Currency              string         `gorm:"column:currency;type:varchar(16);not null" json:"currency"`
	Reason                *string        `gorm:"column:reason;type:varchar(128)" json:"reason"`
	Status                string         `gorm:"column:status;type:varchar(64);not null" json:"status"`
	RawPayload            datatypes.JSON `gorm:"column:raw_payload;type:jsonb" json:"raw_payload"`
	CreatedAt             time.Time      `json:"created_at"`
}

func (Dispute) TableName() string { return "stripe_disputes" }

// CheckoutSessionRecord snapshots a completed checkout session.
type CheckoutSessionRecord struct {
	ID                    string         `gorm:"column:id;primary_key;type:uuid" json:"id"`
	StripeSessionID       string         `gorm:"column:stripe_session_id;type:varchar(128);not null;uniqueIndex:idx_checkout_sessions_session_id" json:"stripe_session_id"`
	StripePaymentIntentID *string        `gorm:"column:stripe_payment_intent_id;type:varchar(128);index:idx_checkout_sessions_payment_intent_id" json:"stripe_payment_intent_id"`
	StripeCustomerID      *string        `gorm:"column:stripe_customer_id;type:varchar(128)" json:"stripe_customer_id"`
	AmountTotalInCents    *int64         `gorm:"column:amount_total_in_cents;type:bigint" json:"amount_total_in_cents"`
	Currency              *string        `gorm:"column:currency;type:varchar(16)" json:"currency"`
	PaymentStatus         string         `gorm:"column:payment_status;type:varchar(64);not null" json:"payment_status"`
	Status                string         `gorm:"column:status;type:varchar(64);not null" json:"status"`
	RawPayload            datatypes.JSON `gorm:"column:raw_payload;type:jsonb" json:"raw_payload"`
	CreatedAt             time.Time      `json:"created_at"`
}

func (CheckoutSessionRecord) TableName() string { return "stripe_checkout_sessions" }
