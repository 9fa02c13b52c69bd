// Package provider wraps the external payment gateway. It is the only
// network dependency of the transaction core: a black box returning a
// terminal success/failure plus an opaque reference. Calls are single-attempt
// with an explicit timeout; retry policy belongs to callers.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type ChargeRequest struct {
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
}

type Result struct {
	Success           bool   `json:"success"`
	ProviderReference string `json:"provider_reference"`
	FailureReason     string `json:"failure_reason,omitempty"`
}

type Provider interface {
	Authorize(ctx context.Context, req ChargeRequest) (Result, error)
	Capture(ctx context.Context, req ChargeRequest) (Result, error)
	Refund(ctx context.Context, req ChargeRequest) (Result, error)
}

type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) Authorize(ctx context.Context, req ChargeRequest) (Result, error) {
	return p.post(ctx, "/authorize", req)
}

func (p *HTTPProvider) Capture(ctx context.Context, req ChargeRequest) (Result, error) {
	return p.post(ctx, "/capture", req)
}

func (p *HTTPProvider) Refund(ctx context.Context, req ChargeRequest) (Result, error) {
	return p.post(ctx, "/refund", req)
}

func (p *HTTPProvider) post(ctx context.Context, path string, payload ChargeRequest) (Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("provider: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("provider: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("provider: unexpected status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("provider: decode response: %w", err)
	}
	return result, nil
}
