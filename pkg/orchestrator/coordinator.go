// Package orchestrator drives the four-stage review pipeline: planning,
// batched per-file review, cross-file analysis, and aggregation, with the
// optional verification and reconciliation passes in between.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/critique/pkg/config"
	"github.com/codeready-toolchain/critique/pkg/diff"
	"github.com/codeready-toolchain/critique/pkg/events"
	"github.com/codeready-toolchain/critique/pkg/llm"
	"github.com/codeready-toolchain/critique/pkg/metrics"
	"github.com/codeready-toolchain/critique/pkg/models"
	"github.com/codeready-toolchain/critique/pkg/retrieval"
	"github.com/codeready-toolchain/critique/pkg/structured"
)

// ClientFactory builds the LLM client for one request. Swapped out in tests.
type ClientFactory func(ctx context.Context, req *models.ReviewRequest) (llm.Client, error)

// Coordinator owns the per-request pipeline. It is stateless across requests;
// everything request-scoped lives on the stack of Orchestrate.
type Coordinator struct {
	cfg       *config.Config
	retriever retrieval.Service
	tools     ToolBackend
	newClient ClientFactory
}

// NewCoordinator wires the coordinator. retriever and tools may be nil; the
// pipeline degrades to no retrieval context and no tool calling.
func NewCoordinator(cfg *config.Config, retriever retrieval.Service, tools ToolBackend) *Coordinator {
	c := &Coordinator{cfg: cfg, retriever: retriever, tools: tools}
	c.newClient = c.defaultClientFactory
	return c
}

// WithClientFactory overrides LLM client construction, for tests.
func (c *Coordinator) WithClientFactory(f ClientFactory) *Coordinator {
	c.newClient = f
	return c
}

func (c *Coordinator) defaultClientFactory(ctx context.Context, req *models.ReviewRequest) (llm.Client, error) {
	binding, pcfg, err := llm.Resolve(c.cfg.Providers, req.Provider, req.Model, req.Credential)
	if err != nil {
		return nil, err
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = pcfg.MaxTokens
	}
	client, err := llm.NewClient(ctx, binding, pcfg)
	if err != nil {
		return nil, err
	}
	return llm.WithTimeout(client, c.cfg.Defaults.LLMTimeout), nil
}

// Orchestrate runs one review end to end. Events go to the emitter as the
// pipeline progresses; exactly one terminal event is delivered. The returned
// result mirrors the final event for non-streaming callers.
func (c *Coordinator) Orchestrate(ctx context.Context, req *models.ReviewRequest, emitter *events.Emitter) (*models.ReviewResult, error) {
	log := slog.With("workspace", req.Workspace, "repo", req.RepoSlug, "pr", req.PullRequestID)
	log.Info("Review started", "mode", req.Mode, "provider", req.Provider)

	result, err := c.run(ctx, req, emitter, log)
	switch {
	case err == nil:
		metrics.Reviews.WithLabelValues("final").Inc()
		for _, issue := range result.Issues {
			metrics.IssuesFound.WithLabelValues(string(issue.Severity)).Inc()
		}
		emitter.Progress(100, "")
		emitter.Status(events.StateCompleted, "Review complete")
		emitter.Final(events.Event{State: events.StateCompleted, Result: result})
		log.Info("Review completed", "issues", len(result.Issues))
		return result, nil

	case errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled):
		metrics.Reviews.WithLabelValues("cancelled").Inc()
		emitter.Error("cancelled")
		log.Info("Review cancelled")
		return nil, ErrCancelled

	default:
		metrics.Reviews.WithLabelValues("error").Inc()
		emitter.Error(llm.UserMessage(err))
		log.Error("Review failed", "error", err)
		return nil, err
	}
}

func (c *Coordinator) run(ctx context.Context, req *models.ReviewRequest, emitter *events.Emitter, log *slog.Logger) (*models.ReviewResult, error) {
	files := diff.Parse(req.Diff, diff.Limits{
		MaxFileBytes: c.cfg.Defaults.LargeContentBytes,
		MaxHunkLines: c.cfg.Defaults.MaxHunkLines,
	})
	attachEnrichment(files, req.Enrichment)

	if !hasReviewable(files) {
		log.Info("No reviewable files in diff")
		return emptyResult(req), nil
	}

	client, err := c.newClient(ctx, req)
	if err != nil {
		return nil, stageFailure(StagePlan, err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn("Failed to close LLM client", "error", err)
		}
	}()
	driver := structured.NewDriver(client, c.cfg.Defaults.RepairRetries)

	// PR-scoped retrieval index. The finalizer runs on every exit path,
	// including cancellation, on a fresh context.
	indexed := c.indexPRFiles(ctx, req, files, log)
	if c.retriever != nil && (indexed || req.Enrichment.HasFileContents()) {
		defer c.unindexPRFiles(req, log)
	}

	// Stage 0: plan.
	emitter.Status(events.StateStage0Started, "Planning the review")
	plan, err := NewPlanner(client, driver).Plan(ctx, req, files)
	if err != nil {
		return nil, err
	}
	emitter.Status(events.StateStage0Complete, "Plan ready")
	emitter.Progress(10, "")

	// Batching.
	emitter.Status(events.StateBatching, "Grouping changed files")
	batches := NewBatcher(c.cfg.Defaults, c.retriever).Batch(ctx, req, plan, files)
	log.Info("Batched changed files", "files", len(files), "batches", len(batches))

	// Stage 1: batched review in waves.
	emitter.Status(events.StateStage1Started, "Reviewing file batches")
	reviewer := NewReviewer(c.cfg.Defaults, client, driver, c.retriever, c.tools, emitter)
	issues, err := reviewer.ReviewAll(ctx, req, files, batches, indexed)
	if err != nil {
		return nil, stageFailure(StageReview, err)
	}
	emitter.Status(events.StateStage1Complete, "Batch review done")
	emitter.Progress(60, "")

	// Stage 1.5: verification, only with file-content enrichment.
	if req.Enrichment.HasFileContents() {
		emitter.Status(events.StateVerifying, "Verifying findings against file contents")
		issues = NewVerifier(client, driver).Verify(ctx, issues, req.Enrichment)
	}

	// Reconciliation, only with previous issues.
	if len(req.PreviousIssues) > 0 {
		emitter.Status(events.StateReconciling, "Reconciling with the previous review")
		issues = NewReconciler(c.cfg.Defaults).Reconcile(issues, req.PreviousIssues)
	}

	// Stage 2: cross-file analysis.
	emitter.Status(events.StateStage2Started, "Analyzing cross-file interactions")
	analysis, err := NewCrossFileAnalyzer(client, driver).Analyze(ctx, req, issues, plan)
	if err != nil {
		return nil, err
	}
	issues = append(issues, analysis.CrossFileIssues...)
	emitter.Status(events.StateStage2Complete, "Cross-file analysis done")
	emitter.Progress(75, "")

	// Post-processing before the final comment is written.
	issues = NewPostProcessor(c.cfg.Defaults).Process(issues, diff.LineMaps(files), enrichmentContents(req.Enrichment), req.PreviousIssues)
	mintIDs(issues)
	SortForOutput(issues)

	// Stage 3: aggregate.
	emitter.Status(events.StateStage3Started, "Writing the review comment")
	emitter.Progress(90, "")
	comment, err := NewAggregator(c.cfg.Defaults, client, c.tools).Aggregate(ctx, req, plan, issues, analysis)
	if err != nil {
		return nil, err
	}

	return &models.ReviewResult{Comment: comment, Issues: issues}, nil
}

// indexPRFiles pushes enrichment file contents into the PR-scoped retrieval
// index so Stage-1 queries can run in hybrid mode. Failure downgrades to
// non-hybrid retrieval.
func (c *Coordinator) indexPRFiles(ctx context.Context, req *models.ReviewRequest, files []*models.FileRecord, log *slog.Logger) bool {
	if c.retriever == nil || !req.Enrichment.HasFileContents() {
		return false
	}
	var indexFiles []retrieval.IndexFile
	for _, f := range files {
		if !f.Skipped && f.Content != "" {
			indexFiles = append(indexFiles, retrieval.IndexFile{Path: f.Path, Content: f.Content})
		}
	}
	if len(indexFiles) == 0 {
		return false
	}

	idxCtx, cancel := context.WithTimeout(ctx, c.cfg.Defaults.RetrievalTimeout)
	defer cancel()
	result, err := c.retriever.IndexPRFiles(idxCtx, &retrieval.IndexRequest{
		Workspace: req.Workspace,
		Project:   req.RepoSlug,
		PRNumber:  req.PullRequestID,
		Branch:    req.SourceBranch,
		Files:     indexFiles,
	})
	if err != nil {
		log.Warn("PR file indexing failed, reviewing without hybrid retrieval", "error", err)
		return false
	}
	log.Debug("Indexed PR files", "files", len(indexFiles), "chunks", result.ChunksIndexed)
	return true
}

// unindexPRFiles removes the PR-scoped index. Runs on a fresh context so
// cleanup survives request cancellation.
func (c *Coordinator) unindexPRFiles(req *models.ReviewRequest, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Defaults.RetrievalTimeout)
	defer cancel()
	if err := c.retriever.DeletePRFiles(ctx, req.Workspace, req.RepoSlug, req.PullRequestID); err != nil {
		log.Warn("Failed to delete PR-scoped index", "error", err)
	}
}

// attachEnrichment copies caller-supplied file contents onto the matching
// file records.
func attachEnrichment(files []*models.FileRecord, enrichment *models.Enrichment) {
	if enrichment == nil {
		return
	}
	for _, f := range files {
		if ef := enrichment.Files[f.Path]; ef != nil {
			f.Content = ef.Content
		}
	}
}

func enrichmentContents(enrichment *models.Enrichment) map[string]string {
	if enrichment == nil {
		return nil
	}
	contents := make(map[string]string, len(enrichment.Files))
	for path, f := range enrichment.Files {
		if f != nil && f.Content != "" {
			contents[path] = f.Content
		}
	}
	return contents
}

func hasReviewable(files []*models.FileRecord) bool {
	for _, f := range files {
		if !f.Skipped {
			return true
		}
	}
	return false
}

// emptyResult is the terminal result for a diff with nothing to review.
// Previous issues are carried forward untouched.
func emptyResult(req *models.ReviewRequest) *models.ReviewResult {
	issues := make([]models.ReviewIssue, 0, len(req.PreviousIssues))
	for _, prev := range req.PreviousIssues {
		issues = append(issues, models.FromPrevious(prev))
	}
	return &models.ReviewResult{
		Comment: "No reviewable changes in this pull request.",
		Issues:  issues,
	}
}

// mintIDs gives every issue a stable identifier so callers can track it
// across PR versions.
func mintIDs(issues []models.ReviewIssue) {
	for i := range issues {
		if issues[i].ID == "" {
			issues[i].ID = uuid.NewString()
		}
	}
}
