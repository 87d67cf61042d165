// Package enginehook notifies the host workflow engine about agent runs and trigger fires.
package enginehook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// RunningStatus is the body of a running-status notification.
type RunningStatus struct {
	AgentID    string `json:"agentId"`
	IsRunning  bool   `json:"isRunning"`
	PlaybookID string `json:"playbookId"`
}

// Client posts to the engine's webhook endpoints. A zero BaseURL disables it.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient returns a client for baseURL. logger may be nil.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		Logger:     logger,
	}
}

// ReportRunningStatus tells the engine an agent started or stopped running a playbook.
// Failures are logged and never returned.
func (c *Client) ReportRunningStatus(ctx context.Context, agentID, playbookID string, running bool) {
	if c == nil || c.BaseURL == "" {
		return
	}
	err := c.post(ctx, "/webhooks/sdragent/running-status", RunningStatus{
		AgentID: agentID, IsRunning: running, PlaybookID: playbookID,
	})
	if err != nil {
		c.Logger.WarnContext(ctx, "enginehook: running-status update failed",
			"agent_id", agentID, "playbook_id", playbookID, "running", running, "error", err)
	}
}

// EmitTrigger delivers a trigger payload to the engine so it starts a workflow execution.
func (c *Client) EmitTrigger(ctx context.Context, workflowID string, payload map[string]any) error {
	if c == nil || c.BaseURL == "" {
		return fmt.Errorf("enginehook: ENGINE_WEBHOOK_URL is not configured")
	}
	return c.post(ctx, "/webhooks/workflow/"+url.PathEscape(workflowID)+"/trigger", payload)
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("enginehook: %s returned status=%d body=%s", path, resp.StatusCode, string(b))
	}
	return nil
}
