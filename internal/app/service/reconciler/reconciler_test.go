package reconciler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/mcpfactory/stripe-service/internal/models"
)

// memStore mimics the store's unique-index semantics in memory: the IfAbsent
// inserts dedup on the natural processor id, failures always append, and
// payment updates match on the lookup column.
type memStore struct {
	successes map[string]*models.PaymentSuccess
	failures  []*models.PaymentFailure
	refunds   map[string]*models.Refund
	disputes  map[string]*models.Dispute
	sessions  map[string]*models.CheckoutSessionRecord
	payments  []*models.Payment
}

func newMemStore() *memStore {
	return &memStore{
		successes: map[string]*models.PaymentSuccess{},
		refunds:   map[string]*models.Refund{},
		disputes:  map[string]*models.Dispute{},
		sessions:  map[string]*models.CheckoutSessionRecord{},
	}
}

func (m *memStore) InsertSuccessIfAbsent(_ context.Context, row *models.PaymentSuccess) error {
	if _, ok := m.successes[row.StripePaymentIntentID]; !ok {
		m.successes[row.StripePaymentIntentID] = row
	}
	return nil
}

func (m *memStore) InsertFailure(_ context.Context, row *models.PaymentFailure) error {
	m.failures = append(m.failures, row)
	return nil
}

func (m *memStore) InsertRefundIfAbsent(_ context.Context, row *models.Refund) error {
	if _, ok := m.refunds[row.StripeRefundID]; !ok {
		m.refunds[row.StripeRefundID] = row
	}
	return nil
}

func (m *memStore) InsertDisputeIfAbsent(_ context.Context, row *models.Dispute) error {
	if _, ok := m.disputes[row.StripeDisputeID]; !ok {
		m.disputes[row.StripeDisputeID] = row
	}
	return nil
}

func (m *memStore) InsertCheckoutSessionIfAbsent(_ context.Context, row *models.CheckoutSessionRecord) error {
	if _, ok := m.sessions[row.StripeSessionID]; !ok {
		m.sessions[row.StripeSessionID] = row
	}
	return nil
}

func (m *memStore) SetPaymentStatusByIntentID(_ context.Context, intentID, status string) error {
	for _, p := range m.payments {
		if p.StripePaymentIntentID != nil && *p.StripePaymentIntentID == intentID {
			p.Status = status
		}
	}
	return nil
}

func (m *memStore) ApplyCheckoutCompletion(_ context.Context, sessionID string, upd CheckoutCompletion) error {
	for _, p := range m.payments {
		if p.StripeCheckoutSessionID != nil && *p.StripeCheckoutSessionID == sessionID {
			intentID := upd.PaymentIntentID
			p.StripePaymentIntentID = &intentID
			p.StripeCustomerID = upd.CustomerID
			p.AmountInCents = upd.AmountInCents
			p.Currency = upd.Currency
			p.Status = upd.Status
		}
	}
	return nil
}

func newEvent(t *testing.T, eventType stripe.EventType, payload string) stripe.Event {
	t.Helper()
	return stripe.Event{
		ID:   "evt_test",
		Type: eventType,
		Data: &stripe.EventData{Raw: json.RawMessage(payload)},
	}
}

func strPtr(s string) *string { return &s }

func TestHandleEvent_SucceededIsIdempotent(t *testing.T) {
	store := newMemStore()
	store.payments = []*models.Payment{{
		ID:                    "pay_1",
		StripePaymentIntentID: strPtr("pi_test_succeeded"),
		Status:                "requires_payment_method",
	}}
	r := New(store, zap.NewNop().Sugar())

	ev := newEvent(t, stripe.EventTypePaymentIntentSucceeded,
		`{"id":"pi_test_succeeded","amount":2000,"currency":"usd","latest_charge":"ch_1"}`)

	// Delivered twice: exactly one success row, status ends at succeeded.
	require.NoError(t, r.HandleEvent(context.Background(), ev))
	require.NoError(t, r.HandleEvent(context.Background(), ev))

	require.Len(t, store.successes, 1)
	row := store.successes["pi_test_succeeded"]
	require.NotNil(t, row)
	assert.Equal(t, int64(2000), row.AmountInCents)
	assert.Equal(t, "usd", row.Currency)
	require.NotNil(t, row.StripeChargeID)
	assert.Equal(t, "ch_1", *row.StripeChargeID)
	assert.Equal(t, models.PaymentStatusSucceeded, store.payments[0].Status)
}

func TestHandleEvent_FailuresAreNotDeduplicated(t *testing.T) {
	store := newMemStore()
	store.payments = []*models.Payment{{
		ID:                    "pay_1",
		StripePaymentIntentID: strPtr("pi_fail"),
		Status:                "pending",
	}}
	r := New(store, zap.NewNop().Sugar())

	ev := newEvent(t, stripe.EventTypePaymentIntentPaymentFailed,
		`{"id":"pi_fail","last_payment_error":{"code":"card_declined","message":"Your card was declined."}}`)

	require.NoError(t, r.HandleEvent(context.Background(), ev))
	require.NoError(t, r.HandleEvent(context.Background(), ev))

	require.Len(t, store.failures, 2)
	require.NotNil(t, store.failures[0].FailureCode)
	assert.Equal(t, "card_declined", *store.failures[0].FailureCode)
	require.NotNil(t, store.failures[0].FailureMessage)
	assert.Equal(t, "Your card was declined.", *store.failures[0].FailureMessage)
	assert.Equal(t, models.PaymentStatusFailed, store.payments[0].Status)
}

func TestHandleEvent_RefundStatusGatedOnFullyRefunded(t *testing.T) {
	tests := []struct {
		name       string
		refunded   bool
		wantStatus string
	}{
		{name: "partial refund keeps status", refunded: false, wantStatus: "succeeded"},
		{name: "full refund flips status", refunded: true, wantStatus: models.PaymentStatusRefunded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.payments = []*models.Payment{{
				ID:                    "pay_1",
				StripePaymentIntentID: strPtr("pi_ref"),
				Status:                "succeeded",
			}}
			r := New(store, zap.NewNop().Sugar())

			refunded := "false"
			if tt.refunded {
				refunded = "true"
			}
			ev := newEvent(t, stripe.EventTypeChargeRefunded,
				`{"id":"ch_ref","payment_intent":"pi_ref","refunded":`+refunded+`,
				  "refunds":{"data":[{"id":"re_1","amount":500,"currency":"usd","reason":"requested_by_customer","status":"succeeded"}]}}`)

			require.NoError(t, r.HandleEvent(context.Background(), ev))

			require.Len(t, store.refunds, 1)
			got := store.refunds["re_1"]
			assert.Equal(t, int64(500), got.AmountInCents)
			assert.Equal(t, "ch_ref", got.StripeChargeID)
			assert.Equal(t, tt.wantStatus, store.payments[0].Status)
		})
	}
}

func TestHandleEvent_MultipleRefundLineItems(t *testing.T) {
	store := newMemStore()
	r := New(store, zap.NewNop().Sugar())

	ev := newEvent(t, stripe.EventTypeChargeRefunded,
		`{"id":"ch_multi","payment_intent":"pi_multi","refunded":false,
		  "refunds":{"data":[
			{"id":"re_a","amount":100,"currency":"usd","status":"succeeded"},
			{"id":"re_b","amount":200,"currency":"usd","status":"pending"}
		  ]}}`)

	require.NoError(t, r.HandleEvent(context.Background(), ev))
	// Redelivery adds nothing.
	require.NoError(t, r.HandleEvent(context.Background(), ev))

	require.Len(t, store.refunds, 2)
	assert.Equal(t, "pending", store.refunds["re_b"].Status)
}

func TestHandleEvent_RefundStatusDefaultsToUnknown(t *testing.T) {
	store := newMemStore()
	r := New(store, zap.NewNop().Sugar())

	ev := newEvent(t, stripe.EventTypeChargeRefunded,
		`{"id":"ch_x","refunded":false,"refunds":{"data":[{"id":"re_x","amount":100,"currency":"usd"}]}}`)

	require.NoError(t, r.HandleEvent(context.Background(), ev))
	assert.Equal(t, "unknown", store.refunds["re_x"].Status)
}

func TestHandleEvent_DisputeCreated(t *testing.T) {
	store := newMemStore()
	store.payments = []*models.Payment{{
		ID:                    "pay_1",
		StripePaymentIntentID: strPtr("pi_disp"),
		Status:                "succeeded",
	}}
	r := New(store, zap.NewNop().Sugar())

	ev := newEvent(t, stripe.EventTypeChargeDisputeCreated,
		`{"id":"dp_1","payment_intent":"pi_disp","charge":"ch_disp","amount":2000,"currency":"usd","reason":"fraudulent","status":"needs_response"}`)

	require.NoError(t, r.HandleEvent(context.Background(), ev))
	require.NoError(t, r.HandleEvent(context.Background(), ev))

	require.Len(t, store.disputes, 1)
	got := store.disputes["dp_1"]
	assert.Equal(t, "ch_disp", got.StripeChargeID)
	require.NotNil(t, got.Reason)
	assert.Equal(t, "fraudulent", *got.Reason)
	assert.Equal(t, models.PaymentStatusDisputed, store.payments[0].Status)
}

func TestHandleEvent_CheckoutCompletionBridgesSessionToIntent(t *testing.T) {
	tests := []struct {
		name          string
		paymentStatus string
		wantStatus    string
	}{
		{name: "paid session succeeds", paymentStatus: "paid", wantStatus: models.PaymentStatusSucceeded},
		{name: "unpaid session stays pending", paymentStatus: "unpaid", wantStatus: models.PaymentStatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			// Payment row created at checkout time: session id only, no
			// intent id yet.
			store.payments = []*models.Payment{{
				ID:                      "pay_1",
				StripeCheckoutSessionID: strPtr("cs_1"),
				Status:                  models.PaymentStatusCheckoutCreated,
			}}
			r := New(store, zap.NewNop().Sugar())

			ev := newEvent(t, stripe.EventTypeCheckoutSessionCompleted,
				`{"id":"cs_1","payment_intent":"pi_new","customer":"cus_1","amount_total":4500,"currency":"eur","payment_status":"`+tt.paymentStatus+`","status":"complete"}`)

			require.NoError(t, r.HandleEvent(context.Background(), ev))

			p := store.payments[0]
			require.NotNil(t, p.StripePaymentIntentID)
			assert.Equal(t, "pi_new", *p.StripePaymentIntentID)
			require.NotNil(t, p.StripeCustomerID)
			assert.Equal(t, "cus_1", *p.StripeCustomerID)
			assert.Equal(t, int64(4500), p.AmountInCents)
			assert.Equal(t, "eur", p.Currency)
			assert.Equal(t, tt.wantStatus, p.Status)

			require.Len(t, store.sessions, 1)
			assert.Equal(t, tt.paymentStatus, store.sessions["cs_1"].PaymentStatus)
		})
	}
}

func TestHandleEvent_CheckoutWithoutIntentOnlyLogs(t *testing.T) {
	store := newMemStore()
	store.payments = []*models.Payment{{
		ID:                      "pay_1",
		StripeCheckoutSessionID: strPtr("cs_nopi"),
		Status:                  models.PaymentStatusCheckoutCreated,
	}}
	r := New(store, zap.NewNop().Sugar())

	ev := newEvent(t, stripe.EventTypeCheckoutSessionCompleted,
		`{"id":"cs_nopi","payment_status":"unpaid","status":"complete"}`)

	require.NoError(t, r.HandleEvent(context.Background(), ev))
	require.Len(t, store.sessions, 1)
	// No payment-intent id on the session: the payment row is untouched.
	assert.Equal(t, models.PaymentStatusCheckoutCreated, store.payments[0].Status)
	assert.Nil(t, store.payments[0].StripePaymentIntentID)
}

func TestHandleEvent_UnknownTypeIsAcceptedAndWritesNothing(t *testing.T) {
	store := newMemStore()
	r := New(store, zap.NewNop().Sugar())

	ev := newEvent(t, "invoice.created", `{"id":"in_1"}`)
	require.NoError(t, r.HandleEvent(context.Background(), ev))

	assert.Empty(t, store.successes)
	assert.Empty(t, store.failures)
	assert.Empty(t, store.refunds)
	assert.Empty(t, store.disputes)
	assert.Empty(t, store.sessions)
}

func TestHandleEvent_MalformedPayloadFailsDelivery(t *testing.T) {
	store := newMemStore()
	r := New(store, zap.NewNop().Sugar())

	ev := newEvent(t, stripe.EventTypePaymentIntentSucceeded, `{"id":`)
	require.Error(t, r.HandleEvent(context.Background(), ev))
	assert.Empty(t, store.successes)
}
