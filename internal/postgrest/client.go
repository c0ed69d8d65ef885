// Package postgrest is a minimal client for PostgREST-style endpoints
// (hosted Postgres with an RPC surface). Only the two shapes digestbot
// needs are implemented: stored-procedure calls and table selects.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	base string
	key  string
	http *http.Client
}

func NewClient(baseURL, apiKey string) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, errors.New("postgrest: base url is empty")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("postgrest: invalid base url: %w", err)
	}
	return &Client{
		base: base,
		key:  strings.TrimSpace(apiKey),
		http: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// RPC calls a stored procedure: POST {base}/rest/v1/rpc/{fn}.
// args may be nil; out may be nil when the caller ignores the result.
func (c *Client) RPC(ctx context.Context, fn string, args any, out any) error {
	if strings.TrimSpace(fn) == "" {
		return errors.New("postgrest: rpc function name is empty")
	}
	body := []byte("{}")
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("postgrest: marshal rpc args: %w", err)
		}
		body = b
	}
	return c.do(ctx, http.MethodPost, c.base+"/rest/v1/rpc/"+url.PathEscape(fn), body, out)
}

// Select reads rows from a table: GET {base}/rest/v1/{table}?{query}.
// query is a raw PostgREST filter string, e.g. "select=user_id&category_id=eq.1".
func (c *Client) Select(ctx context.Context, table, query string, out any) error {
	if strings.TrimSpace(table) == "" {
		return errors.New("postgrest: table name is empty")
	}
	u := c.base + "/rest/v1/" + url.PathEscape(table)
	if query != "" {
		u += "?" + query
	}
	return c.do(ctx, http.MethodGet, u, nil, out)
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != "" {
		req.Header.Set("apikey", c.key)
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var pgErr struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&pgErr)
		if pgErr.Message != "" {
			return fmt.Errorf("postgrest: %s (code=%s http=%d)", pgErr.Message, pgErr.Code, resp.StatusCode)
		}
		return fmt.Errorf("postgrest: http=%d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty body is fine for void procedures.
			return nil
		}
		return fmt.Errorf("postgrest: decode response: %w", err)
	}
	return nil
}
