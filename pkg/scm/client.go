// Package scm is the client for the source-control host, backing the
// repository tools the LLM can call (branch file content, PR comments).
package scm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxFileBytes caps tool responses so one huge file can't blow the prompt.
const maxFileBytes = 1 << 20

// Client fetches repository data over the SCM host's REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates an SCM client. token is sent as a bearer credential when
// non-empty.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// GetBranchFileContent returns the raw content of a file on a branch,
// truncated to maxFileBytes.
func (c *Client) GetBranchFileContent(ctx context.Context, workspace, repoSlug, branch, filePath string) (string, error) {
	path := fmt.Sprintf("/api/v1/repos/%s/%s/raw/%s",
		url.PathEscape(workspace), url.PathEscape(repoSlug), escapePath(filePath))
	data, err := c.get(ctx, path+"?at="+url.QueryEscape(branch))
	if err != nil {
		return "", err
	}
	if len(data) > maxFileBytes {
		data = data[:maxFileBytes]
	}
	return string(data), nil
}

// prComment is one comment record from the PR comments endpoint.
type prComment struct {
	Author  string `json:"author"`
	Text    string `json:"text"`
	Created string `json:"created,omitempty"`
}

// GetPullRequestComments returns the comments on a PR, rendered as plain text
// for the LLM.
func (c *Client) GetPullRequestComments(ctx context.Context, workspace, repoSlug, pullRequestID string) (string, error) {
	path := fmt.Sprintf("/api/v1/repos/%s/%s/pull-requests/%s/comments",
		url.PathEscape(workspace), url.PathEscape(repoSlug), url.PathEscape(pullRequestID))
	data, err := c.get(ctx, path)
	if err != nil {
		return "", err
	}

	var comments []prComment
	if err := json.Unmarshal(data, &comments); err != nil {
		return "", fmt.Errorf("scm: failed to decode PR comments: %w", err)
	}
	if len(comments) == 0 {
		return "No comments on this pull request.", nil
	}

	var b strings.Builder
	for _, comment := range comments {
		fmt.Fprintf(&b, "%s: %s\n", comment.Author, comment.Text)
	}
	return b.String(), nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scm %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("scm %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("scm %s: status %d", path, resp.StatusCode)
	}
	return data, nil
}

// escapePath escapes each path segment while keeping the separators.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
