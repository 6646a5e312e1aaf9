/**
 * @description
 * Client used by the scheduler to trigger the lease service's internal sweeps.
 */
package leaseclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SweepResult mirrors the counts returned by every sweep endpoint.
type SweepResult struct {
	Evaluated int `json:"evaluated"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Client provides methods to interact with the lease service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new lease service client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

// GenerateInvoices triggers the invoice generation sweep.
func (c *Client) GenerateInvoices(ctx context.Context) (*SweepResult, error) {
	return c.post(ctx, "/internal/leases/invoices/generate")
}

// MarkOverdue triggers the overdue sweep.
func (c *Client) MarkOverdue(ctx context.Context) (*SweepResult, error) {
	return c.post(ctx, "/internal/leases/overdue/run")
}

// RecomputeLateFees triggers the late fee sweep.
func (c *Client) RecomputeLateFees(ctx context.Context) (*SweepResult, error) {
	return c.post(ctx, "/internal/leases/late-fees/run")
}

// PlanPayouts triggers the payout scheduling sweep.
func (c *Client) PlanPayouts(ctx context.Context) (*SweepResult, error) {
	return c.post(ctx, "/internal/leases/payouts/run")
}

// RunRenewals triggers renewal automation.
func (c *Client) RunRenewals(ctx context.Context) (*SweepResult, error) {
	return c.post(ctx, "/internal/leases/renewals/run")
}

// ReconcilePayments triggers the paid-invoice reconciliation sweep.
func (c *Client) ReconcilePayments(ctx context.Context) (*SweepResult, error) {
	return c.post(ctx, "/internal/leases/reconciliation/run")
}

func (c *Client) post(ctx context.Context, path string) (*SweepResult, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("lease service base URL is not configured")
	}

	url := fmt.Sprintf("%s%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Internal-API-Key", c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("lease service returned status %d", resp.StatusCode)
	}

	var result SweepResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse sweep result: %w", err)
	}
	return &result, nil
}
