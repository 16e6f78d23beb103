// Package store persists player profiles and cosmetic inventory through the
// Supabase REST API, with in-memory fallbacks for running without
// credentials (local development and tests).
package store

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

	"shipwars/internal/config"
)

// Client is a thin Supabase PostgREST client using the service-role key.
type Client struct {
	baseURL string
	key     string
	http    *http.Client
}

// NewClient creates a Supabase client from configuration.
func NewClient(cfg config.SupabaseConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/") + "/rest/v1",
		key:     cfg.ServiceRoleKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// APIError is a non-2xx response from Supabase.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase: status %d: %s", e.Status, e.Body)
}

// Select fetches rows from table matching query into out (a slice pointer).
func (c *Client) Select(ctx context.Context, table string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, table, query, nil, out, "")
}

// Insert adds rows to table. out may be nil.
func (c *Client) Insert(ctx context.Context, table string, body, out any) error {
	return c.do(ctx, http.MethodPost, table, nil, body, out, "return=representation")
}

// Upsert inserts rows, merging on conflict. Duplicate-safe.
func (c *Client) Upsert(ctx context.Context, table string, body, out any) error {
	return c.do(ctx, http.MethodPost, table, nil, body, out,
		"resolution=merge-duplicates,return=representation")
}

// Update patches rows matching query.
func (c *Client) Update(ctx context.Context, table string, query url.Values, body, out any) error {
	return c.do(ctx, http.MethodPatch, table, query, body, out, "return=representation")
}

func (c *Client) do(ctx context.Context, method, table string, query url.Values, body, out any, prefer string) error {
	u := c.baseURL + "/" + table
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("supabase: encode body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("supabase: %s %s: %w", method, table, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: string(data)}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("supabase: decode %s response: %w", table, err)
		}
	}
	return nil
}
