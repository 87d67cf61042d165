// Package zoho is a client for the Zoho CRM REST API: record operations, field metadata and
// search criteria.
package zoho

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

const (
	defaultTimeout = 30 * time.Second
	pageSize       = 200
)

// APIError is an error reported by Zoho, either as a non-2xx response or as a failed record
// inside a 2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("zoho: %s (%s)", e.Message, e.Code)
	}
	return "zoho: " + e.Message
}

// Client calls one company's Zoho CRM.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a client for baseURL authorized by source. base may be nil.
func NewClient(baseURL string, source oauth2.TokenSource, base http.RoundTripper) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: &transport{source: source, base: base},
		},
	}
}

// Do sends one request. POST and PUT bodies are wrapped as {"data": [body]}. An empty response
// body yields an empty result.
func (c *Client) Do(ctx context.Context, method, path string, body map[string]any, qs url.Values) (gjson.Result, error) {
	u := c.BaseURL + path
	if len(qs) > 0 {
		u += "?" + qs.Encode()
	}
	var reader io.Reader
	if body != nil && (method == http.MethodPost || method == http.MethodPut) {
		raw, err := json.Marshal(map[string]any{"data": []any{body}})
		if err != nil {
			return gjson.Result{}, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return gjson.Result{}, err
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("zoho: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("zoho: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gjson.Result{}, newAPIError(resp.StatusCode, raw)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return gjson.Result{}, nil
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("zoho: invalid JSON response from %s", path)
	}
	res := gjson.ParseBytes(raw)
	if first := res.Get("data.0"); first.Get("status").String() == "error" {
		return gjson.Result{}, &APIError{
			StatusCode: resp.StatusCode,
			Code:       first.Get("code").String(),
			Message:    first.Get("message").String(),
		}
	}
	return res, nil
}

// ListAll pages through a list endpoint. limit <= 0 returns every record.
func (c *Client) ListAll(ctx context.Context, path string, qs url.Values, limit int) ([]map[string]any, error) {
	q := url.Values{}
	for k, v := range qs {
		q[k] = v
	}
	perPage := pageSize
	if limit > 0 && limit < perPage {
		perPage = limit
	}
	q.Set("per_page", strconv.Itoa(perPage))

	var out []map[string]any
	for page := 1; ; page++ {
		q.Set("page", strconv.Itoa(page))
		res, err := c.Do(ctx, http.MethodGet, path, nil, q)
		if err != nil {
			return nil, err
		}
		out = append(out, Records(res.Get("data"))...)
		if limit > 0 && len(out) >= limit {
			return out[:limit], nil
		}
		if !res.Get("info.more_records").Bool() {
			return out, nil
		}
	}
}

// Records converts a JSON object or array into records. Non-object elements are skipped.
func Records(res gjson.Result) []map[string]any {
	var out []map[string]any
	add := func(r gjson.Result) {
		if m, ok := r.Value().(map[string]any); ok {
			out = append(out, m)
		}
	}
	if res.IsArray() {
		res.ForEach(func(_, r gjson.Result) bool {
			add(r)
			return true
		})
		return out
	}
	add(res)
	return out
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status}
	if gjson.ValidBytes(body) {
		res := gjson.ParseBytes(body)
		e.Code = res.Get("code").String()
		e.Message = res.Get("message").String()
		if e.Message == "" {
			e.Code = res.Get("data.0.code").String()
			e.Message = res.Get("data.0.message").String()
		}
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}
