// Package retell is a minimal client for the Retell voice AI phone-call API.
package retell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	defaultBaseURL = "https://api.retellai.com"
	defaultTimeout = 15 * time.Second
	createCallPath = "/v2/create-phone-call"
)

// ErrMissingAPIKey is returned when the company has no Retell key configured.
var ErrMissingAPIKey = errors.New("Retell API key not found.")

// PhoneCallRequest is the body of a create-phone-call request.
type PhoneCallRequest struct {
	FromNumber       string         `json:"from_number"`
	ToNumber         string         `json:"to_number"`
	DynamicVariables map[string]any `json:"retell_llm_dynamic_variables,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// PhoneCall is the subset of the provider's call object used here.
type PhoneCall struct {
	CallID     string `json:"call_id"`
	CallStatus string `json:"call_status"`
	CallType   string `json:"call_type"`
	AgentID    string `json:"agent_id"`
	FromNumber string `json:"from_number"`
	ToNumber   string `json:"to_number"`
}

// Client calls the Retell API with a per-company bearer key.
type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a client for apiKey. An empty baseURL uses the public API.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		APIKey:     apiKey,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// CreatePhoneCall starts an outbound call. Non-2xx responses return an *APIError.
func (c *Client) CreatePhoneCall(ctx context.Context, req PhoneCallRequest) (*PhoneCall, error) {
	if c.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+createCallPath, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("retell: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("retell: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, body)
	}
	var call PhoneCall
	if err := json.Unmarshal(body, &call); err != nil {
		return nil, fmt.Errorf("retell: decode response: %w", err)
	}
	return &call, nil
}

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("retell: request failed status=%d: %s", e.StatusCode, e.Message)
}

func newAPIError(status int, body []byte) *APIError {
	msg := ""
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error_message", "message", "error"} {
			if r := gjson.GetBytes(body, path); r.Exists() && r.String() != "" {
				msg = r.String()
				break
			}
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg}
}
