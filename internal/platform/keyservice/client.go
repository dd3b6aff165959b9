// Package keyservice resolves per-app Stripe secret keys from the key
// service. Requests that name an appId must use that tenant's key: a
// resolution failure is surfaced to the caller rather than silently falling
// back to the default credential, which would charge the wrong tenant.
package keyservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/mcpfactory/stripe-service/pkg/config"
)

// Resolver maps an optional appId to the Stripe secret key for the request.
type Resolver interface {
	// Resolve returns the tenant key for appID, or the configured default key
	// when appID is empty. An empty appID with no default configured is an
	// error.
	Resolve(ctx context.Context, appID string) (string, error)
}

type decryptResponse struct {
	Provider string `json:"provider"`
	Key      string `json:"key"`
}

type client struct {
	baseURL    string
	apiKey     string
	defaultKey string
	httpc      *http.Client
	log        *zap.SugaredLogger
}

func NewResolver(cfg *cfgpkg.Config, log *zap.SugaredLogger) Resolver {
	return &client{
		baseURL:    cfg.KeyService.URL,
		apiKey:     cfg.KeyService.APIKey,
		defaultKey: cfg.Stripe.SecretKey,
		httpc:      &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

func (c *client) Resolve(ctx context.Context, appID string) (string, error) {
	if appID == "" {
		if c.defaultKey == "" {
			return "", errors.New("keyservice: no appId and STRIPE_SECRET_KEY not configured")
		}
		return c.defaultKey, nil
	}

	u := fmt.Sprintf("%s/internal/app-keys/stripe/decrypt?appId=%s", c.baseURL, url.QueryEscape(appID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("keyservice: build request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("keyservice: decrypt request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("keyservice: GET /internal/app-keys/stripe/decrypt failed: %d - %s", resp.StatusCode, string(body))
	}

	var out decryptResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("keyservice: decode response: %w", err)
	}
	if out.Key == "" {
		return "", errors.New("keyservice: empty key in response")
	}
	return out.Key, nil
}

var Module = fx.Options(
	fx.Provide(NewResolver),
)
