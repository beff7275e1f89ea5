package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/critique/pkg/events"
	"github.com/codeready-toolchain/critique/pkg/llm"
	"github.com/codeready-toolchain/critique/pkg/models"
	"github.com/codeready-toolchain/critique/pkg/retrieval"
	"github.com/codeready-toolchain/critique/pkg/structured"
)

// fakeRetriever scripts retrieval responses and records calls.
type fakeRetriever struct {
	prContext     *retrieval.PRContextResult
	deterministic *retrieval.DeterministicResult
	err           error

	prContextCalls   atomic.Int32
	lastContextQuery atomic.Pointer[retrieval.PRContextQuery]
	deleted          atomic.Int32
	indexed          atomic.Int32
	indexErr         error
}

func (f *fakeRetriever) PRContext(_ context.Context, q *retrieval.PRContextQuery) (*retrieval.PRContextResult, error) {
	f.prContextCalls.Add(1)
	f.lastContextQuery.Store(q)
	if f.err != nil {
		return nil, f.err
	}
	if f.prContext == nil {
		return &retrieval.PRContextResult{}, nil
	}
	return f.prContext, nil
}

func (f *fakeRetriever) DeterministicContext(_ context.Context, _ *retrieval.DeterministicQuery) (*retrieval.DeterministicResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.deterministic == nil {
		return &retrieval.DeterministicResult{}, nil
	}
	return f.deterministic, nil
}

func (f *fakeRetriever) IndexPRFiles(_ context.Context, _ *retrieval.IndexRequest) (*retrieval.IndexResult, error) {
	f.indexed.Add(1)
	if f.indexErr != nil {
		return nil, f.indexErr
	}
	return &retrieval.IndexResult{Status: "ok", ChunksIndexed: 3}, nil
}

func (f *fakeRetriever) DeletePRFiles(_ context.Context, _, _, _ string) error {
	f.deleted.Add(1)
	return nil
}

var _ retrieval.Service = (*fakeRetriever)(nil)

func reviewRequest() *models.ReviewRequest {
	return &models.ReviewRequest{
		Workspace:     "acme",
		RepoSlug:      "billing",
		PullRequestID: "42",
		Title:         "Fix token validation",
		TargetBranch:  "main",
		Provider:      "anthropic",
	}
}

func singleFileBatches(paths ...string) ([]*models.FileRecord, []*models.Batch) {
	var files []*models.FileRecord
	var batches []*models.Batch
	for i, p := range paths {
		f := &models.FileRecord{Path: p, ChangeType: models.ChangeModified, DiffText: "+code change in " + p}
		files = append(files, f)
		batches = append(batches, &models.Batch{
			Index: i,
			Items: []models.BatchItem{{File: f, Priority: models.PriorityMedium}},
		})
	}
	return files, batches
}

func batchReviewJSON(file, reason string) string {
	return fmt.Sprintf(`{"reviews": [{"file": %q, "analysis_summary": "s", "issues": [
		{"severity": "HIGH", "category": "BUG_RISK", "file": %q, "line": "10", "reason": %q}
	], "confidence": 0.9}]}`, file, file, reason)
}

func TestReviewAllCollectsIssues(t *testing.T) {
	client := &llm.StubClient{Respond: func(req *llm.Request) (string, error) {
		switch {
		case strings.Contains(req.Prompt, "code change in a.py"):
			return batchReviewJSON("a.py", "nil dereference in token handling"), nil
		default:
			return batchReviewJSON("b.py", "unbounded retry loop hammers the API"), nil
		}
	}}
	files, batches := singleFileBatches("a.py", "b.py")
	emitter := events.NewEmitter(16)

	r := NewReviewer(testDefaults(), client, structured.NewDriver(client, 0), nil, nil, emitter)
	issues, err := r.ReviewAll(context.Background(), reviewRequest(), files, batches, false)
	require.NoError(t, err)
	assert.Len(t, issues, 2)
}

func TestReviewAllBatchFailureIsolated(t *testing.T) {
	client := &llm.StubClient{Respond: func(req *llm.Request) (string, error) {
		if strings.Contains(req.Prompt, "code change in bad.py") {
			return "", fmt.Errorf("provider exploded")
		}
		return batchReviewJSON("good.py", "leaked file handle on early return"), nil
	}}
	files, batches := singleFileBatches("good.py", "bad.py")
	emitter := events.NewEmitter(16)

	r := NewReviewer(testDefaults(), client, structured.NewDriver(client, 0), nil, nil, emitter)
	issues, err := r.ReviewAll(context.Background(), reviewRequest(), files, batches, false)
	require.NoError(t, err, "a failing batch must not fail the request")
	require.Len(t, issues, 1)
	assert.Equal(t, "good.py", issues[0].File)
}

func TestReviewAllProgressEvents(t *testing.T) {
	client := &llm.StubClient{Respond: func(*llm.Request) (string, error) {
		return `{"reviews": []}`, nil
	}}
	// 12 batches with parallelism 5 → waves of 5, 5, 2.
	var paths []string
	for i := 0; i < 12; i++ {
		paths = append(paths, fmt.Sprintf("f%02d.py", i))
	}
	files, batches := singleFileBatches(paths...)
	emitter := events.NewEmitter(32)

	r := NewReviewer(testDefaults(), client, structured.NewDriver(client, 0), nil, nil, emitter)
	_, err := r.ReviewAll(context.Background(), reviewRequest(), files, batches, false)
	require.NoError(t, err)

	var percents []int
	emitter.Final(events.Event{})
	for ev := range emitter.Events() {
		if ev.Type == events.TypeProgress {
			percents = append(percents, ev.Percent)
		}
	}
	assert.Equal(t, []int{31, 52, 60}, percents)
}

func TestReviewAllCrossBatchDedup(t *testing.T) {
	client := &llm.StubClient{Respond: func(req *llm.Request) (string, error) {
		if strings.Contains(req.Prompt, "a.py") {
			return batchReviewJSON("a.py", "duplicate reason reported by two batches"), nil
		}
		return batchReviewJSON("b.py", "duplicate reason reported by two batches"), nil
	}}
	files, batches := singleFileBatches("a.py", "b.py")
	emitter := events.NewEmitter(16)

	r := NewReviewer(testDefaults(), client, structured.NewDriver(client, 0), nil, nil, emitter)
	issues, err := r.ReviewAll(context.Background(), reviewRequest(), files, batches, false)
	require.NoError(t, err)
	require.Len(t, issues, 1, "near-identical reasons collapse to the first batch's issue")
	assert.Equal(t, "a.py", issues[0].File)
}

func TestReviewBatchHybridQuery(t *testing.T) {
	client := &llm.StubClient{Respond: func(*llm.Request) (string, error) {
		return `{"reviews": []}`, nil
	}}
	retriever := &fakeRetriever{}
	files, batches := singleFileBatches("a.py")
	emitter := events.NewEmitter(16)

	r := NewReviewer(testDefaults(), client, structured.NewDriver(client, 0), retriever, nil, emitter)
	_, err := r.ReviewAll(context.Background(), reviewRequest(), files, batches, true)
	require.NoError(t, err)

	query := retriever.lastContextQuery.Load()
	require.NotNil(t, query)
	assert.Equal(t, "42", query.PRNumber, "hybrid mode passes the PR id")
	assert.Equal(t, []string{"a.py"}, query.AllPRChangedFiles)
}

func TestFilterChunks(t *testing.T) {
	r := NewReviewer(testDefaults(), nil, nil, nil, nil, events.NewEmitter(1))
	chunks := []retrieval.Chunk{
		{Metadata: retrieval.ChunkMetadata{Path: "deleted.py"}, Score: 0.99},
		{Metadata: retrieval.ChunkMetadata{Path: "modified.py"}, Score: 0.50},
		{Metadata: retrieval.ChunkMetadata{Path: "modified.py"}, Score: 0.50, Source: "pr_indexed"},
		{Metadata: retrieval.ChunkMetadata{Path: "modified.py"}, Score: 0.85, Source: "deterministic"},
		{Metadata: retrieval.ChunkMetadata{Path: "other.py"}, Score: 0.10},
	}
	kept := r.filterChunks(chunks, []string{"deleted.py"}, map[string]bool{"modified.py": true})

	var paths []string
	for _, c := range kept {
		paths = append(paths, c.Metadata.Path+":"+c.Source)
	}
	assert.Equal(t, []string{"modified.py:pr_indexed", "other.py:"}, paths)
}

func TestPreviousForBatch(t *testing.T) {
	_, batches := singleFileBatches("a.py")
	previous := []models.PreviousIssue{
		{ID: "1", File: "a.py", Status: models.StatusOpen},
		{ID: "2", File: "a.py", Status: models.StatusResolved},
		{ID: "3", File: "a.py", Status: models.StatusIgnored},
		{ID: "4", File: "other.py", Status: models.StatusOpen},
	}
	open, resolved := previousForBatch(previous, batches[0])
	require.Len(t, open, 1)
	require.Len(t, resolved, 1)
	assert.Equal(t, "1", open[0].ID)
	assert.Equal(t, "2", resolved[0].ID)
}
