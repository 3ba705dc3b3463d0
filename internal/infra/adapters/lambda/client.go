// File: internal/infra/adapters/lambda/client.go
package lambda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"content-enrichment/internal/domain"
	"content-enrichment/internal/domain/model"
	"content-enrichment/internal/domain/ports/adapter"
)

var _ adapter.ExecutorAdapter = (*Client)(nil)

// Client talks to the remote Lambda execution API. One client serves every
// action (claude_code, screenshot, seo_extract, transcribe, teller_sync);
// per-action differences live entirely in the payload the caller builds.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

type submitResponse struct {
	Success *bool           `json:"success"`
	JobID   string          `json:"job_id"`
	Result  json.RawMessage `json:"result"`
	Error   string          `json:"error"`
}

// Submit posts {action, payload} and returns the outcome. The executor
// either queues the work and answers with a job id, or runs cheap actions
// inline and answers with the result directly. Submission failures are not
// retried; retry policy lives in the polling loop only.
func (c *Client) Submit(ctx context.Context, action string, payload any) (*adapter.SubmitOutcome, error) {
	body, raw, err := c.post(ctx, map[string]any{"action": action, "payload": payload})
	if err != nil {
		return nil, err
	}

	var out submitResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: malformed submit response: %v", domain.ErrSubmissionRejected, err)
	}

	switch {
	case out.JobID != "":
		return &adapter.SubmitOutcome{JobID: out.JobID}, nil
	case out.Success != nil && *out.Success:
		// Executed synchronously; hand back the payload as-is.
		res := out.Result
		if res == nil {
			res = raw
		}
		return &adapter.SubmitOutcome{Done: true, Result: res}, nil
	default:
		msg := out.Error
		if msg == "" {
			msg = "lambda rejected submission"
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrSubmissionRejected, msg)
	}
}

// Status queries the job and normalizes the answer; see normalize.go for
// the two shapes the endpoint returns.
func (c *Client) Status(ctx context.Context, jobID string) (*model.JobSnapshot, error) {
	body, _, err := c.post(ctx, map[string]any{
		"action":  "job_status",
		"payload": map[string]string{"job_id": jobID},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStatusQuery, err)
	}
	snap, err := normalizeStatus(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStatusQuery, err)
	}
	return snap, nil
}

func (c *Client) post(ctx context.Context, reqBody any) (json.RawMessage, json.RawMessage, error) {
	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("lambda error (status %d): %s", resp.StatusCode, truncate(raw, 200))
	}
	return raw, raw, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
