package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/critique/pkg/config"
	"github.com/codeready-toolchain/critique/pkg/events"
	"github.com/codeready-toolchain/critique/pkg/llm"
	"github.com/codeready-toolchain/critique/pkg/models"
	"github.com/codeready-toolchain/critique/pkg/orchestrator"
	"github.com/codeready-toolchain/critique/pkg/prompt"
)

const testDiff = `diff --git a/src/app.py b/src/app.py
--- a/src/app.py
+++ b/src/app.py
@@ -1,2 +1,3 @@
 import os
+import hmac
 def handle(request): pass
`

func stubPipelineClient() *llm.StubClient {
	return &llm.StubClient{Respond: func(req *llm.Request) (string, error) {
		switch req.System {
		case prompt.PlanSystem:
			return `{"summary": "s", "file_groups": [
				{"priority": "MEDIUM", "rationale": "r", "files": [{"path": "src/app.py"}]}
			]}`, nil
		case prompt.ReviewSystem:
			return `{"reviews": []}`, nil
		case prompt.CrossFileSystem:
			return `{"pr_risk_level": "low", "cross_file_issues": []}`, nil
		case prompt.AggregateSystem:
			return "Looks good overall.", nil
		default:
			return "", errors.New("unexpected system prompt")
		}
	}}
}

func testServer(client llm.Client) *Server {
	cfg := &config.Config{Defaults: config.Load(), Providers: &config.ProviderRegistry{}}
	coordinator := orchestrator.NewCoordinator(cfg, nil, nil).
		WithClientFactory(func(context.Context, *models.ReviewRequest) (llm.Client, error) {
			return client, nil
		})
	return NewServer(cfg, coordinator)
}

func validBody() map[string]any {
	return map[string]any{
		"workspace":       "acme",
		"repo_slug":       "billing",
		"pull_request_id": "42",
		"target_branch":   "main",
		"provider":        "anthropic",
		"diff":            testDiff,
	}
}

func postReview(t *testing.T, s *Server, body map[string]any, accept string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/review", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestReviewValidation(t *testing.T) {
	s := testServer(&llm.StubClient{})

	tests := []struct {
		name   string
		mutate func(map[string]any)
		want   string
	}{
		{"missing workspace", func(b map[string]any) { delete(b, "workspace") }, "'workspace' is required"},
		{"missing repo", func(b map[string]any) { delete(b, "repo_slug") }, "'repo_slug' is required"},
		{"missing pr id", func(b map[string]any) { delete(b, "pull_request_id") }, "'pull_request_id' is required"},
		{"missing target branch", func(b map[string]any) { delete(b, "target_branch") }, "'target_branch' is required"},
		{"missing provider", func(b map[string]any) { delete(b, "provider") }, "'provider' is required"},
		{"blank diff", func(b map[string]any) { b["diff"] = "   " }, "'diff' is required"},
		{"bad mode", func(b map[string]any) { b["mode"] = "PARTIAL" }, "'mode' must be FULL or INCREMENTAL"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body := validBody()
			tc.mutate(body)
			w := postReview(t, s, body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tc.want)
		})
	}
}

func TestReviewMalformedBody(t *testing.T) {
	s := testServer(&llm.StubClient{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/review", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReviewJSONEnvelope(t *testing.T) {
	s := testServer(stubPipelineClient())
	w := postReview(t, s, validBody(), "")
	require.Equal(t, http.StatusOK, w.Code)

	var envelope reviewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Result)
	assert.Equal(t, "Looks good overall.", envelope.Result.Comment)
	assert.Empty(t, envelope.Error)
}

func TestReviewJSONEnvelopeError(t *testing.T) {
	s := testServer(&llm.StubClient{Err: errors.New("provider down")})
	w := postReview(t, s, validBody(), "")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var envelope reviewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Nil(t, envelope.Result)
	assert.Equal(t, "Review failed due to an internal error.", envelope.Error)
}

func TestReviewNDJSONStream(t *testing.T) {
	s := testServer(stubPipelineClient())
	w := postReview(t, s, validBody(), "application/x-ndjson")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

	var evs []events.Event
	scanner := bufio.NewScanner(w.Body)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev events.Event
		require.NoError(t, json.Unmarshal([]byte(line), &ev), "every line is one JSON event: %s", line)
		evs = append(evs, ev)
	}
	require.NoError(t, scanner.Err())
	require.NotEmpty(t, evs)

	terminal := 0
	for _, ev := range evs {
		if ev.Terminal() {
			terminal++
		}
	}
	assert.Equal(t, 1, terminal, "the stream ends with exactly one terminal event")

	last := evs[len(evs)-1]
	require.Equal(t, events.TypeFinal, last.Type)
	require.NotNil(t, last.Result)
	assert.Equal(t, "Looks good overall.", last.Result.Comment)

	var sawStatus bool
	for _, ev := range evs {
		if ev.Type == events.TypeStatus {
			sawStatus = true
		}
	}
	assert.True(t, sawStatus, "progress of the pipeline is visible on the stream")
}

func TestReviewNDJSONStreamError(t *testing.T) {
	s := testServer(&llm.StubClient{Err: fmt.Errorf("boom")})
	w := postReview(t, s, validBody(), "application/x-ndjson")
	require.Equal(t, http.StatusOK, w.Code, "stream errors are in-band, the HTTP status is already sent")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	var last events.Event
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	assert.Equal(t, events.TypeError, last.Type)
	assert.Equal(t, "Review failed due to an internal error.", last.Message)
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(&llm.StubClient{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestRequestIDMiddleware(t *testing.T) {
	s := testServer(&llm.StubClient{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"), "a request id is minted when absent")

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, "caller-supplied", w.Header().Get("X-Request-ID"))
}
