// Package httpapi talks to the financial records HTTP API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finrecords/internal/core"
	"finrecords/internal/remote"
)

const DefaultTimeout = 10 * time.Second

var _ remote.RecordSync = (*Client)(nil)

type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, e.g. with an httptest one.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New builds a client for the API rooted at baseURL. A zero timeout uses
// DefaultTimeout.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) FetchByOwner(ctx context.Context, userID string) ([]core.FinancialRecord, error) {
	var out []core.FinancialRecord
	path := "/financial-records/getAllByUserID/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch records of %s: %w", userID, err)
	}
	if out == nil {
		out = []core.FinancialRecord{}
	}
	return out, nil
}

func (c *Client) Create(ctx context.Context, d core.Draft) (core.FinancialRecord, error) {
	var out core.FinancialRecord
	if err := c.do(ctx, http.MethodPost, "/financial-records", d, &out); err != nil {
		return core.FinancialRecord{}, fmt.Errorf("create record: %w", err)
	}
	return out, nil
}

func (c *Client) Update(ctx context.Context, id string, p core.Patch) (core.FinancialRecord, error) {
	var out core.FinancialRecord
	if err := c.do(ctx, http.MethodPut, "/financial-records/"+url.PathEscape(id), p, &out); err != nil {
		return core.FinancialRecord{}, fmt.Errorf("update record %s: %w", id, err)
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, id string) (core.FinancialRecord, error) {
	var out core.FinancialRecord
	if err := c.do(ctx, http.MethodDelete, "/financial-records/"+url.PathEscape(id), nil, &out); err != nil {
		return core.FinancialRecord{}, fmt.Errorf("delete record %s: %w", id, err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", core.ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", core.ErrNetwork, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	msg := resp.Status
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", core.ErrNotFound, msg)
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", core.ErrValidation, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", core.ErrNetwork, resp.StatusCode, msg)
	}
}
