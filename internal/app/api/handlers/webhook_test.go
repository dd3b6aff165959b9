package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/mcpfactory/stripe-service/internal/app/service/reconciler"
	"github.com/mcpfactory/stripe-service/internal/models"
	"github.com/mcpfactory/stripe-service/internal/platform/stripeapi"
	cfgpkg "github.com/mcpfactory/stripe-service/pkg/config"
)

// stubVerifier only implements webhook verification; the catalog and payment
// methods are never reached from the webhook route.
type stubVerifier struct {
	stripeapi.Client

	verified int
}

func (s *stubVerifier) VerifyWebhook(payload []byte, sigHeader string, secret string) (stripe.Event, error) {
	if sigHeader != "t=1,v1=good" || secret != "whsec_test" {
		return stripe.Event{}, errors.New("signature mismatch")
	}
	s.verified++
	var ev stripe.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return stripe.Event{}, err
	}
	return ev, nil
}

// countingStore records writes so tests can assert nothing reached the
// database on rejected deliveries.
type countingStore struct {
	writes int
	fail   bool
}

func (s *countingStore) bump() error {
	if s.fail {
		return errors.New("db down")
	}
	s.writes++
	return nil
}

func (s *countingStore) InsertSuccessIfAbsent(context.Context, *models.PaymentSuccess) error {
	return s.bump()
}
func (s *countingStore) InsertFailure(context.Context, *models.PaymentFailure) error {
	return s.bump()
}
func (s *countingStore) InsertRefundIfAbsent(context.Context, *models.Refund) error {
	return s.bump()
}
func (s *countingStore) InsertDisputeIfAbsent(context.Context, *models.Dispute) error {
	return s.bump()
}
func (s *countingStore) InsertCheckoutSessionIfAbsent(context.Context, *models.CheckoutSessionRecord) error {
	return s.bump()
}
func (s *countingStore) SetPaymentStatusByIntentID(context.Context, string, string) error {
	return s.bump()
}
func (s *countingStore) ApplyCheckoutCompletion(context.Context, string, reconciler.CheckoutCompletion) error {
	return s.bump()
}

func newWebhookRouter(t *testing.T, secret string, store *countingStore) (*gin.Engine, *stubVerifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop().Sugar()
	cfg := &cfgpkg.Config{}
	cfg.Stripe.WebhookSecret = secret
	v := &stubVerifier{}

	r := gin.New()
	RegisterWebhookRoutes(r, cfg, v, reconciler.New(store, log), log)
	return r, v
}

func postWebhook(r *gin.Engine, sig string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func intentEventBody(t *testing.T, eventType string) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id": "pi_test_succeeded", "amount": 2000, "currency": "usd",
	})
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{
		"id":   "evt_1",
		"type": eventType,
		"data": map[string]any{"object": json.RawMessage(raw)},
	})
	require.NoError(t, err)
	return body
}

func TestApiStripeWebhook_MissingSecretConfig(t *testing.T) {
	store := &countingStore{}
	r, _ := newWebhookRouter(t, "", store)

	w := postWebhook(r, "t=1,v1=good", intentEventBody(t, "payment_intent.succeeded"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "Webhook secret not configured")
	require.Zero(t, store.writes)
}

func TestApiStripeWebhook_MissingSignatureHeader(t *testing.T) {
	store := &countingStore{}
	r, _ := newWebhookRouter(t, "whsec_test", store)

	w := postWebhook(r, "", intentEventBody(t, "payment_intent.succeeded"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "Missing stripe-signature header")
	require.Zero(t, store.writes)
}

func TestApiStripeWebhook_InvalidSignature(t *testing.T) {
	store := &countingStore{}
	r, _ := newWebhookRouter(t, "whsec_test", store)

	w := postWebhook(r, "t=1,v1=bad", intentEventBody(t, "payment_intent.succeeded"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "Invalid signature")
	require.Zero(t, store.writes)
}

func TestApiStripeWebhook_ValidDeliveryWritesAndAcks(t *testing.T) {
	store := &countingStore{}
	r, v := newWebhookRouter(t, "whsec_test", store)

	w := postWebhook(r, "t=1,v1=good", intentEventBody(t, "payment_intent.succeeded"))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"received":true}`, w.Body.String())
	require.Equal(t, 1, v.verified)
	require.Positive(t, store.writes)
}

func TestApiStripeWebhook_UnknownEventTypeAcksWithoutWrites(t *testing.T) {
	store := &countingStore{}
	r, _ := newWebhookRouter(t, "whsec_test", store)

	w := postWebhook(r, "t=1,v1=good", intentEventBody(t, "invoice.finalized"))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"received":true}`, w.Body.String())
	require.Zero(t, store.writes)
}

func TestApiStripeWebhook_HandlerFailureReturns500(t *testing.T) {
	store := &countingStore{fail: true}
	r, _ := newWebhookRouter(t, "whsec_test", store)

	w := postWebhook(r, "t=1,v1=good", intentEventBody(t, "payment_intent.succeeded"))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "Webhook processing failed")
}

func TestRegisterWebhookRoutes_RegistersEndpoint(t *testing.T) {
	store := &countingStore{}
	r, _ := newWebhookRouter(t, "whsec_test", store)

	found := false
	for _, rt := range r.Routes() {
		if rt.Method == http.MethodPost && rt.Path == "/webhooks/stripe" {
			found = true
		}
	}
	require.True(t, found)
}
