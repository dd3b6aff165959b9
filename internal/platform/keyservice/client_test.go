package keyservice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, baseURL, defaultKey string) *client {
	t.Helper()
	return &client{
		baseURL:    baseURL,
		apiKey:     "svc-key",
		defaultKey: defaultKey,
		httpc:      &http.Client{Timeout: time.Second},
		log:        zap.NewNop().Sugar(),
	}
}

func TestResolve_DefaultKeyWithoutAppID(t *testing.T) {
	c := newTestClient(t, "http://unused", "sk_test_default")
	key, err := c.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "sk_test_default", key)
}

func TestResolve_NoAppIDNoDefaultFails(t *testing.T) {
	c := newTestClient(t, "http://unused", "")
	_, err := c.Resolve(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_SECRET_KEY")
}

func TestResolve_FetchesTenantKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/internal/app-keys/stripe/decrypt", r.URL.Path)
		assert.Equal(t, "app_42", r.URL.Query().Get("appId"))
		assert.Equal(t, "svc-key", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"provider":"stripe","key":"sk_test_tenant"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "sk_test_default")
	key, err := c.Resolve(context.Background(), "app_42")
	require.NoError(t, err)
	assert.Equal(t, "sk_test_tenant", key)
}

func TestResolve_NeverFallsBackOnTenantFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "key not found", http.StatusNotFound)
	}))
	defer srv.Close()

	// A default key is configured, but an explicit appId must not use it.
	c := newTestClient(t, srv.URL, "sk_test_default")
	_, err := c.Resolve(context.Background(), "app_unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestResolve_EmptyKeyInResponseIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"provider":"stripe","key":""}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "")
	_, err := c.Resolve(context.Background(), "app_42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty key")
}
