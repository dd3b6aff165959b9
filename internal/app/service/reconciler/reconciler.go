// Package reconciler maps verified processor webhook events onto the locally
// owned payment records and their append-only event logs.
//
// Stripe delivers events at-least-once. Event-log writes are idempotent via
// insert-if-absent on each event's natural processor id (except failures,
// which record every delivery). Payment status updates are unconditional
// overwrites keyed by payment-intent or checkout-session id, with no transition
// validation, last writer wins. A handler error fails the whole delivery so
// the processor redelivers it; there is no internal retry.
package reconciler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
	stripe "github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/mcpfactory/stripe-service/internal/models"
)

type Reconciler struct {
	store Store
	log   *zap.SugaredLogger
}

func New(store Store, log *zap.SugaredLogger) *Reconciler {
	return &Reconciler{store: store, log: log}
}

// HandleEvent applies one verified processor event. Unrecognized event types
// are accepted and ignored so the endpoint stays forward-compatible.
func (r *Reconciler) HandleEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		return r.handlePaymentIntentSucceeded(ctx, event)
	case stripe.EventTypePaymentIntentPaymentFailed:
		return r.handlePaymentIntentFailed(ctx, event)
	case stripe.EventTypeChargeRefunded:
		return r.handleChargeRefunded(ctx, event)
	case stripe.EventTypeChargeDisputeCreated:
		return r.handleDisputeCreated(ctx, event)
	case stripe.EventTypeCheckoutSessionCompleted:
		return r.handleCheckoutSessionCompleted(ctx, event)
	default:
		r.log.Infow("unhandled event type", "type", event.Type, "event_id", event.ID)
		return nil
	}
}

func (r *Reconciler) handlePaymentIntentSucceeded(ctx context.Context, event stripe.Event) error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return fmt.Errorf("unmarshal payment intent: %w", err)
	}

	row := &models.PaymentSuccess{
		StripePaymentIntentID: pi.ID,
		AmountInCents:         pi.Amount,
		Currency:              string(pi.Currency),
		RawPayload:            datatypes.JSON(event.Data.Raw),
	}
	if pi.LatestCharge != nil {
		row.StripeChargeID = lo.ToPtr(pi.LatestCharge.ID)
	}
	if err := r.store.InsertSuccessIfAbsent(ctx, row); err != nil {
		return err
	}

	return r.store.SetPaymentStatusByIntentID(ctx, pi.ID, models.PaymentStatusSucceeded)
}

func (r *Reconciler) handlePaymentIntentFailed(ctx context.Context, event stripe.Event) error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return fmt.Errorf("unmarshal payment intent: %w", err)
	}

	// Failures are not deduplicated: every delivery records one more attempt.
	row := &models.PaymentFailure{
		StripePaymentIntentID: pi.ID,
		RawPayload:            datatypes.JSON(event.Data.Raw),
	}
	if lastErr := pi.LastPaymentError; lastErr != nil {
		if lastErr.Code != "" {
			row.FailureCode = lo.ToPtr(string(lastErr.Code))
		}
		if lastErr.Msg != "" {
			row.FailureMessage = lo.ToPtr(lastErr.Msg)
		}
	}
	if err := r.store.InsertFailure(ctx, row); err != nil {
		return err
	}

	return r.store.SetPaymentStatusByIntentID(ctx, pi.ID, models.PaymentStatusFailed)
}

func (r *Reconciler) handleChargeRefunded(ctx context.Context, event stripe.Event) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return fmt.Errorf("unmarshal charge: %w", err)
	}

	var intentID *string
	if charge.PaymentIntent != nil {
		intentID = lo.ToPtr(charge.PaymentIntent.ID)
	}

	// A charge may carry multiple refunds; each line item dedups on its own
	// refund id.
	if charge.Refunds != nil {
		for _, refund := range charge.Refunds.Data {
			status := string(refund.Status)
			if status == "" {
				status = "unknown"
			}
			raw, _ := json.Marshal(refund)
			row := &models.Refund{
				StripeRefundID:        refund.ID,
				StripePaymentIntentID: intentID,
				StripeChargeID:        charge.ID,
				AmountInCents:         refund.Amount,
				Currency:              string(refund.Currency),
				Status:                status,
				RawPayload:            datatypes.JSON(raw),
			}
			if refund.Reason != "" {
				row.Reason = lo.ToPtr(string(refund.Reason))
			}
			if err := r.store.InsertRefundIfAbsent(ctx, row); err != nil {
				return err
			}
		}
	}

	// Status flips to refunded only once the charge is fully refunded;
	// partial refunds update the log but leave the payment status alone.
	if charge.Refunded && intentID != nil {
		return r.store.SetPaymentStatusByIntentID(ctx, *intentID, models.PaymentStatusRefunded)
	}
	return nil
}

func (r *Reconciler) handleDisputeCreated(ctx context.Context, event stripe.Event) error {
	var dispute stripe.Dispute
	if err := json.Unmarshal(event.Data.Raw, &dispute); err != nil {
		return fmt.Errorf("unmarshal dispute: %w", err)
	}

	row := &models.Dispute{
		StripeDisputeID: dispute.ID,
		AmountInCents:   dispute.Amount,
		Currency:        string(dispute.Currency),
		Status:          string(dispute.Status),
		RawPayload:      datatypes.JSON(event.Data.Raw),
	}
	if dispute.PaymentIntent != nil {
		row.StripePaymentIntentID = lo.ToPtr(dispute.PaymentIntent.ID)
	}
	if dispute.Charge != nil {
		row.StripeChargeID = dispute.Charge.ID
	}
	if dispute.Reason != "" {
		row.Reason = lo.ToPtr(string(dispute.Reason))
	}
	if err := r.store.InsertDisputeIfAbsent(ctx, row); err != nil {
		return err
	}

	if dispute.PaymentIntent != nil {
		return r.store.SetPaymentStatusByIntentID(ctx, dispute.PaymentIntent.ID, models.PaymentStatusDisputed)
	}
	return nil
}

func (r *Reconciler) handleCheckoutSessionCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("unmarshal checkout session: %w", err)
	}

	status := string(session.Status)
	if status == "" {
		status = "complete"
	}
	row := &models.CheckoutSessionRecord{
		StripeSessionID: session.ID,
		PaymentStatus:   string(session.PaymentStatus),
		Status:          status,
		RawPayload:      datatypes.JSON(event.Data.Raw),
	}
	if session.PaymentIntent != nil {
		row.StripePaymentIntentID = lo.ToPtr(session.PaymentIntent.ID)
	}
	if session.Customer != nil {
		row.StripeCustomerID = lo.ToPtr(session.Customer.ID)
	}
	if session.AmountTotal != 0 {
		row.AmountTotalInCents = lo.ToPtr(session.AmountTotal)
	}
	if session.Currency != "" {
		row.Currency = lo.ToPtr(string(session.Currency))
	}
	if err := r.store.InsertCheckoutSessionIfAbsent(ctx, row); err != nil {
		return err
	}

	if session.PaymentIntent == nil {
		return nil
	}

	// Bridge session → intent: the payment row was created knowing only the
	// checkout-session id, so it is located by that id and back-filled here.
	currency := string(session.Currency)
	if currency == "" {
		currency = "usd"
	}
	paymentStatus := models.PaymentStatusPending
	if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		paymentStatus = models.PaymentStatusSucceeded
	}
	upd := CheckoutCompletion{
		PaymentIntentID: session.PaymentIntent.ID,
		AmountInCents:   session.AmountTotal,
		Currency:        currency,
		Status:          paymentStatus,
	}
	if session.Customer != nil {
		upd.CustomerID = lo.ToPtr(session.Customer.ID)
	}
	return r.store.ApplyCheckoutCompletion(ctx, session.ID, upd)
}
