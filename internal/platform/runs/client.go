// Package runs is the HTTP client for the runs-tracking service. Run
// creation before a payment is synchronous; status updates and cost lines
// after the payment record is persisted are best-effort and never fail the
// caller.
package runs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/mcpfactory/stripe-service/pkg/config"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Run struct {
	ID             string  `json:"id"`
	ParentRunID    *string `json:"parentRunId"`
	OrganizationID string  `json:"organizationId"`
	UserID         *string `json:"userId"`
	AppID          string  `json:"appId"`
	BrandID        *string `json:"brandId"`
	CampaignID     *string `json:"campaignId"`
	ServiceName    string  `json:"serviceName"`
	TaskName       string  `json:"taskName"`
	Status         string  `json:"status"`
}

type CreateRunParams struct {
	ClerkOrgID  string `json:"clerkOrgId"`
	AppID       string `json:"appId"`
	ServiceName string `json:"serviceName"`
	TaskName    string `json:"taskName"`
	ParentRunID string `json:"parentRunId,omitempty"`
	ClerkUserID string `json:"clerkUserId,omitempty"`
	BrandID     string `json:"brandId,omitempty"`
	CampaignID  string `json:"campaignId,omitempty"`
}

type CostItem struct {
	CostName string `json:"costName"`
	Quantity int64  `json:"quantity"`
}

// Reporter records run lifecycle and cost lines in the runs service.
type Reporter interface {
	CreateRun(ctx context.Context, p CreateRunParams) (Run, error)
	UpdateRun(ctx context.Context, runID, status string, runErr error) (Run, error)
	AddCosts(ctx context.Context, runID string, items []CostItem) error

	// ReportStatus and ReportCosts are the fire-and-forget variants: they run
	// in the background and log failures instead of returning them.
	ReportStatus(runID, status string, runErr error)
	ReportCosts(runID string, items []CostItem)
}

type client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	log     *zap.SugaredLogger
}

func NewReporter(cfg *cfgpkg.Config, log *zap.SugaredLogger) Reporter {
	return &client{
		baseURL: cfg.RunsService.URL,
		apiKey:  cfg.RunsService.APIKey,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

func (c *client) request(ctx context.Context, method, path string, body any, out any) error {
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("runs: marshal body: %w", err)
		}
		buf = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("runs: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("runs: %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("runs: %s %s failed: %d - %s", method, path, resp.StatusCode, string(raw))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("runs: decode response: %w", err)
		}
	}
	return nil
}

func (c *client) CreateRun(ctx context.Context, p CreateRunParams) (Run, error) {
	var run Run
	if err := c.request(ctx, http.MethodPost, "/v1/runs", p, &run); err != nil {
		return Run{}, err
	}
	return run, nil
}

func (c *client) UpdateRun(ctx context.Context, runID, status string, runErr error) (Run, error) {
	body := map[string]any{"status": status}
	if runErr != nil {
		body["error"] = runErr.Error()
	}
	var run Run
	if err := c.request(ctx, http.MethodPatch, "/v1/runs/"+runID, body, &run); err != nil {
		return Run{}, err
	}
	return run, nil
}

func (c *client) AddCosts(ctx context.Context, runID string, items []CostItem) error {
	body := map[string]any{"items": items}
	return c.request(ctx, http.MethodPost, "/v1/runs/"+runID+"/costs", body, nil)
}

// ReportStatus updates the run status in the background. The payment record
// is already persisted by the time this runs, so failures are only logged.
func (c *client) ReportStatus(runID, status string, runErr error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if _, err := c.UpdateRun(ctx, runID, status, runErr); err != nil {
			c.log.Errorw("runs: report status failed", "run_id", runID, "status", status, "err", err)
		}
	}()
}

// ReportCosts appends cost lines in the background, same contract as
// ReportStatus.
func (c *client) ReportCosts(runID string, items []CostItem) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := c.AddCosts(ctx, runID, items); err != nil {
			c.log.Errorw("runs: report costs failed", "run_id", runID, "err", err)
		}
	}()
}

var Module = fx.Options(
	fx.Provide(NewReporter),
)
