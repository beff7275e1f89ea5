package scm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBranchFileContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/repos/acme/billing/raw/src/app.py", r.URL.Path)
		assert.Equal(t, "feature/x", r.URL.Query().Get("at"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("print('hello')"))
	}))
	defer server.Close()

	c := NewClient(server.URL, "tok", time.Second)
	content, err := c.GetBranchFileContent(context.Background(), "acme", "billing", "feature/x", "src/app.py")
	require.NoError(t, err)
	assert.Equal(t, "print('hello')", content)
}

func TestGetBranchFileContentEscapesSegments(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte("x"))
	}))
	defer server.Close()

	c := NewClient(server.URL, "", time.Second)
	_, err := c.GetBranchFileContent(context.Background(), "acme", "billing", "main", "dir with space/a b.py")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/repos/acme/billing/raw/dir%20with%20space/a%20b.py", gotPath)
}

func TestGetPullRequestComments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/repos/acme/billing/pull-requests/42/comments", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"author": "reviewer1", "text": "please add a test"},
			{"author": "author", "text": "done"}
		]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "", time.Second)
	text, err := c.GetPullRequestComments(context.Background(), "acme", "billing", "42")
	require.NoError(t, err)
	assert.Equal(t, "reviewer1: please add a test\nauthor: done\n", text)
}

func TestGetPullRequestCommentsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "", time.Second)
	text, err := c.GetPullRequestComments(context.Background(), "acme", "billing", "42")
	require.NoError(t, err)
	assert.Equal(t, "No comments on this pull request.", text)
}

func TestErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(server.URL, "", time.Second)
	_, err := c.GetBranchFileContent(context.Background(), "acme", "billing", "main", "missing.py")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
