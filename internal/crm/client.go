package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dennisdiepolder/monti/agentdesk/internal/types"
	"github.com/rs/zerolog"
)

const maxErrorBody = 4 << 10

// TokenSource supplies the bearer credential for each request
type TokenSource interface {
	Token() string
}

// StatusError is returned for any non-2xx response
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client talks to the CRM REST API
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a client for baseURL (e.g. "http://localhost:8000")
func NewClient(baseURL string, tokens TokenSource, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With().Str("component", "crm").Logger(),
	}
}

// LogCall posts a call-log record
func (c *Client) LogCall(ctx context.Context, log types.CallLog) error {
	return c.do(ctx, http.MethodPost, "/api/v1/calls/log", log, nil, nil)
}

// CreateOrder posts a call-center order. The idempotency key lets the CRM
// drop a duplicate when a response was lost and the agent retries.
func (c *Client) CreateOrder(ctx context.Context, req types.OrderRequest, idempotencyKey string) (types.OrderCreated, error) {
	var created types.OrderCreated
	header := http.Header{}
	if idempotencyKey != "" {
		header.Set("Idempotency-Key", idempotencyKey)
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders/call-center", req, header, &created); err != nil {
		return types.OrderCreated{}, err
	}
	return created, nil
}

// ScheduleCallback posts a standalone callback request for a lead
func (c *Client) ScheduleCallback(ctx context.Context, leadID int, req types.CallbackRequest) error {
	path := fmt.Sprintf("/api/v1/leads/%d/schedule-callback", leadID)
	return c.do(ctx, http.MethodPost, path, req, nil, nil)
}

// GetLead fetches one lead
func (c *Client) GetLead(ctx context.Context, leadID int) (types.Lead, error) {
	var lead types.Lead
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/leads/%d", leadID), nil, nil, &lead); err != nil {
		return types.Lead{}, err
	}
	return lead, nil
}

// FocusQueue returns the agent's prioritized lead list
func (c *Client) FocusQueue(ctx context.Context) ([]types.Lead, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/v1/call-center/focus-queue", nil, nil, &raw); err != nil {
		return nil, err
	}
	return decodeLeads(raw)
}

// Callbacks returns leads with a scheduled callback
func (c *Client) Callbacks(ctx context.Context) ([]types.Lead, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/v1/call-center/callbacks", nil, nil, &raw); err != nil {
		return nil, err
	}
	return decodeLeads(raw)
}

// Stats returns the agent's counters for period (today, week, month)
func (c *Client) Stats(ctx context.Context, period string) (types.Stats, error) {
	var stats types.Stats
	path := "/api/v1/call-center/stats?period=" + url.QueryEscape(period)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &stats); err != nil {
		return types.Stats{}, err
	}
	if stats.Period == "" {
		stats.Period = period
	}
	return stats, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, header http.Header, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("crm request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// decodeLeads accepts a bare array or a paginated envelope
func decodeLeads(raw json.RawMessage) ([]types.Lead, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '[' {
		var leads []types.Lead
		if err := json.Unmarshal(raw, &leads); err != nil {
			return nil, fmt.Errorf("decode leads: %w", err)
		}
		return leads, nil
	}

	var envelope struct {
		Results []types.Lead `json:"results"`
		Leads   []types.Lead `json:"leads"`
		Data    []types.Lead `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode leads: %w", err)
	}
	switch {
	case envelope.Results != nil:
		return envelope.Results, nil
	case envelope.Leads != nil:
		return envelope.Leads, nil
	default:
		return envelope.Data, nil
	}
}
