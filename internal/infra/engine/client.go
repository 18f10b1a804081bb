// Package engine is the adapter for the external deployment-execution
// engine. Its identity, hostnames, and error text never reach callers
// unredacted.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"drydock/internal/config"
	"drydock/internal/domain/deploy"
	"drydock/internal/usecase"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(cfg config.Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.EngineBaseURL, "/"),
		token:      cfg.EngineToken,
		httpClient: &http.Client{Timeout: cfg.EngineTimeout()},
	}
}

func (c *Client) TriggerDeploy(ctx context.Context, intent usecase.EngineIntent, idempotencyKey string) (usecase.EngineExecution, error) {
	return c.trigger(ctx, "/executions/deploy", intent, idempotencyKey)
}

func (c *Client) TriggerRollback(ctx context.Context, intent usecase.EngineIntent, idempotencyKey string) (usecase.EngineExecution, error) {
	return c.trigger(ctx, "/executions/rollback", intent, idempotencyKey)
}

func (c *Client) trigger(ctx context.Context, path string, intent usecase.EngineIntent, idempotencyKey string) (usecase.EngineExecution, error) {
	body, err := json.Marshal(intent)
	if err != nil {
		return usecase.EngineExecution{}, err
	}
	var payload struct {
		ExecutionID  string `json:"execution_id"`
		ExecutionURL string `json:"execution_url"`
	}
	if err := c.do(ctx, http.MethodPost, path, idempotencyKey, body, &payload); err != nil {
		return usecase.EngineExecution{}, err
	}
	if payload.ExecutionID == "" {
		return usecase.EngineExecution{}, deploy.ErrEngineUnavailable("engine returned no execution id")
	}
	return usecase.EngineExecution{ID: payload.ExecutionID, URL: payload.ExecutionURL}, nil
}

func (c *Client) GetExecution(ctx context.Context, executionID string) (usecase.EngineStatus, error) {
	var payload struct {
		State        string `json:"state"`
		ExecutionURL string `json:"execution_url"`
		Failures     []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"failures"`
	}
	if err := c.do(ctx, http.MethodGet, "/executions/"+executionID, "", nil, &payload); err != nil {
		return usecase.EngineStatus{}, err
	}
	status := usecase.EngineStatus{State: payload.State, URL: payload.ExecutionURL}
	for _, f := range payload.Failures {
		status.Failures = append(status.Failures, deploy.RawFailure{Code: f.Code, Message: f.Message})
	}
	return status, nil
}

// do performs one request with at most one retry on transport errors.
// Non-2xx responses are terminal; adapter errors are never retried
// beyond that.
func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, body []byte, out any) error {
	if c.baseURL == "" {
		return deploy.ErrEngineUnavailable("engine base URL is not configured")
	}
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		resp, err := c.send(ctx, method, path, idempotencyKey, body)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return c.decode(resp, out)
	}
	return deploy.ErrEngineUnavailable(deploy.Redact(fmt.Sprintf("engine request failed: %v", lastErr)))
}

func (c *Client) send(ctx context.Context, method, path, idempotencyKey string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	return c.httpClient.Do(req)
}

func (c *Client) decode(resp *http.Response, out any) error {
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return deploy.ErrEngineUnavailable("engine response could not be read")
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return deploy.ErrEngineUnauthorized(deploy.Redact(strings.TrimSpace(string(raw))))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return deploy.ErrEngineUnavailable(deploy.Redact(fmt.Sprintf("engine returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return deploy.ErrEngineUnavailable("engine response could not be decoded")
	}
	return nil
}

var _ usecase.EngineAdapter = (*Client)(nil)
