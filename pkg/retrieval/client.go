package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/codeready-toolchain/critique/pkg/metrics"
)

// Client is the HTTP implementation of Service. A circuit breaker trips after
// consecutive failures so a dead retrieval service degrades every batch to
// empty context immediately instead of stacking timeouts.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a retrieval client. timeout bounds every call.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "retrieval",
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			Timeout: 30 * time.Second,
		}),
	}
}

// PRContext implements Service.
func (c *Client) PRContext(ctx context.Context, query *PRContextQuery) (*PRContextResult, error) {
	var result PRContextResult
	if err := c.post(ctx, "/api/v1/pr-context", query, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeterministicContext implements Service.
func (c *Client) DeterministicContext(ctx context.Context, query *DeterministicQuery) (*DeterministicResult, error) {
	var result DeterministicResult
	if err := c.post(ctx, "/api/v1/deterministic-context", query, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// IndexPRFiles implements Service.
func (c *Client) IndexPRFiles(ctx context.Context, req *IndexRequest) (*IndexResult, error) {
	var result IndexResult
	if err := c.post(ctx, "/api/v1/pr-files/index", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeletePRFiles implements Service.
func (c *Client) DeletePRFiles(ctx context.Context, workspace, project, prNumber string) error {
	body := map[string]string{
		"workspace": workspace,
		"project":   project,
		"pr_number": prNumber,
	}
	return c.post(ctx, "/api/v1/pr-files/delete", body, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) (err error) {
	operation := path[strings.LastIndexByte(path, '/')+1:]
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		metrics.RetrievalCalls.WithLabelValues(operation, outcome).Inc()
	}()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("retrieval: failed to encode %s request: %w", path, err)
	}

	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(data), 200))
		}
		return data, nil
	})
	if err != nil {
		return fmt.Errorf("retrieval %s: %w", path, err)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(result.([]byte), out); err != nil {
		return fmt.Errorf("retrieval %s: failed to decode response: %w", path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
