package reconciler

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mcpfactory/stripe-service/internal/models"
	"github.com/mcpfactory/stripe-service/pkg/tool"
)

// CheckoutCompletion is the set of fields a completed checkout session
// back-fills onto the payment record it originated from.
type CheckoutCompletion struct {
	PaymentIntentID string
	CustomerID      *string
	AmountInCents   int64
	Currency        string
	Status          string
}

// Store is the reconciler's view of the payment record store. The *IfAbsent
// inserts are no-ops when a row with the same natural processor id already
// exists, which is what makes redelivered webhooks safe; InsertFailure has no
// such guard on purpose.
type Store interface {
	InsertSuccessIfAbsent(ctx context.Context, row *models.PaymentSuccess) error
	InsertFailure(ctx context.Context, row *models.PaymentFailure) error
	InsertRefundIfAbsent(ctx context.Context, row *models.Refund) error
	InsertDisputeIfAbsent(ctx context.Context, row *models.Dispute) error
	InsertCheckoutSessionIfAbsent(ctx context.Context, row *models.CheckoutSessionRecord) error

	// SetPaymentStatusByIntentID overwrites the status of every payment row
	// carrying the given processor payment-intent id. Last writer wins.
	SetPaymentStatusByIntentID(ctx context.Context, intentID, status string) error

	// ApplyCheckoutCompletion updates the payment row located by checkout
	// SESSION id, since the record may not hold a payment-intent id yet.
	ApplyCheckoutCompletion(ctx context.Context, sessionID string, upd CheckoutCompletion) error
}

type gormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// insertIfAbsent relies on the table's unique index: two racing deliveries of
// the same event are resolved by the database constraint, not by locking.
func (s *gormStore) insertIfAbsent(ctx context.Context, row any) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
}

func (s *gormStore) InsertSuccessIfAbsent(ctx context.Context, row *models.PaymentSuccess) error {
	if row.ID == "" {
		row.ID = tool.GenerateUUIDV7()
	}
	if err := s.insertIfAbsent(ctx, row); err != nil {
		return fmt.Errorf("insert payment success: %w", err)
	}
	return nil
}

func (s *gormStore) InsertFailure(ctx context.Context, row *models.PaymentFailure) error {
	if row.ID == "" {
		row.ID = tool.GenerateUUIDV7()
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("insert payment failure: %w", err)
	}
	return nil
}

func (s *gormStore) InsertRefundIfAbsent(ctx context.Context, row *models.Refund) error {
	if row.ID == "" {
		row.ID = tool.GenerateUUIDV7()
	}
	if err := s.insertIfAbsent(ctx, row); err != nil {
		return fmt.Errorf("insert refund: %w", err)
	}
	return nil
}

func (s *gormStore) InsertDisputeIfAbsent(ctx context.Context, row *models.Dispute) error {
	if row.ID == "" {
		row.ID = tool.GenerateUUIDV7()
	}
	if err := s.insertIfAbsent(ctx, row); err != nil {
		return fmt.Errorf("insert dispute: %w", err)
	}
	return nil
}

func (s *gormStore) InsertCheckoutSessionIfAbsent(ctx context.Context, row *models.CheckoutSessionRecord) error {
	if row.ID == "" {
		row.ID = tool.GenerateUUIDV7()
	}
	if err := s.insertIfAbsent(ctx, row); err != nil {
		return fmt.Errorf("insert checkout session: %w", err)
	}
	return nil
}

func (s *gormStore) SetPaymentStatusByIntentID(ctx context.Context, intentID, status string) error {
	err := s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("stripe_payment_intent_id = ?", intentID).
		Update("status", status).Error
	if err != nil {
		return fmt.Errorf("update payment status by intent %s: %w", intentID, err)
	}
	return nil
}

func (s *gormStore) ApplyCheckoutCompletion(ctx context.Context, sessionID string, upd CheckoutCompletion) error {
	err := s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("stripe_checkout_session_id = ?", sessionID).
		Updates(map[string]any{
			"stripe_payment_intent_id": upd.PaymentIntentID,
			"stripe_customer_id":       upd.CustomerID,
			"amount_in_cents":          upd.AmountInCents,
			"currency":                 upd.Currency,
			"status":                   upd.Status,
		}).Error
	if err != nil {
		return fmt.Errorf("apply checkout completion for session %s: %w", sessionID, err)
	}
	return nil
}
