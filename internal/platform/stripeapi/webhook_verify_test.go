package stripeapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const verifySecret = "whsec_test_secret"

func signPayload(t *testing.T, payload []byte, ts time.Time, secret string) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func newVerifyClient() Client {
	return &stripeClient{log: zap.NewNop().Sugar()}
}

func TestVerifyWebhook_ValidSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`)
	sig := signPayload(t, payload, time.Now(), verifySecret)

	event, err := newVerifyClient().VerifyWebhook(payload, sig, verifySecret)
	require.NoError(t, err)
	require.Equal(t, "evt_1", event.ID)
	require.Equal(t, "payment_intent.succeeded", string(event.Type))
}

func TestVerifyWebhook_AcceptsOlderAPIVersion(t *testing.T) {
	payload := []byte(`{"id":"evt_1","api_version":"2023-10-16","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`)
	sig := signPayload(t, payload, time.Now(), verifySecret)

	event, err := newVerifyClient().VerifyWebhook(payload, sig, verifySecret)
	require.NoError(t, err)
	require.Equal(t, "evt_1", event.ID)
	require.Equal(t, "2023-10-16", event.APIVersion)
}

func TestVerifyWebhook_WrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	sig := signPayload(t, payload, time.Now(), "whsec_other")

	_, err := newVerifyClient().VerifyWebhook(payload, sig, verifySecret)
	require.Error(t, err)
}

func TestVerifyWebhook_TamperedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"amount":2000}}}`)
	sig := signPayload(t, payload, time.Now(), verifySecret)
	tampered := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"amount":1}}}`)

	_, err := newVerifyClient().VerifyWebhook(tampered, sig, verifySecret)
	require.Error(t, err)
}

func TestVerifyWebhook_StaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	sig := signPayload(t, payload, time.Now().Add(-time.Hour), verifySecret)

	_, err := newVerifyClient().VerifyWebhook(payload, sig, verifySecret)
	require.Error(t, err)
}
