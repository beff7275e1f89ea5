package orchestrator

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codeready-toolchain/critique/pkg/config"
	"github.com/codeready-toolchain/critique/pkg/events"
	"github.com/codeready-toolchain/critique/pkg/llm"
	"github.com/codeready-toolchain/critique/pkg/metrics"
	"github.com/codeready-toolchain/critique/pkg/models"
	"github.com/codeready-toolchain/critique/pkg/prompt"
	"github.com/codeready-toolchain/critique/pkg/retrieval"
	"github.com/codeready-toolchain/critique/pkg/similarity"
	"github.com/codeready-toolchain/critique/pkg/structured"
)

// Reviewer runs Stage 1: per-batch LLM review in waves of bounded
// parallelism. A failed batch contributes zero issues; the request continues.
type Reviewer struct {
	cfg       *config.Defaults
	client    llm.Client
	driver    *structured.Driver
	retriever retrieval.Service
	tools     ToolBackend
	emitter   *events.Emitter
}

func NewReviewer(
	cfg *config.Defaults,
	client llm.Client,
	driver *structured.Driver,
	retriever retrieval.Service,
	tools ToolBackend,
	emitter *events.Emitter,
) *Reviewer {
	return &Reviewer{cfg: cfg, client: client, driver: driver, retriever: retriever, tools: tools, emitter: emitter}
}

// batchReview mirrors the Stage-1 output schema.
type batchReview struct {
	Reviews []fileReview `json:"reviews"`
}

type fileReview struct {
	File            string               `json:"file"`
	AnalysisSummary string               `json:"analysis_summary"`
	Issues          []models.ReviewIssue `json:"issues"`
	Confidence      float64              `json:"confidence,omitempty"`
	Note            string               `json:"note,omitempty"`
}

// ReviewAll processes every batch in contiguous waves of at most
// MaxParallelStage1 and returns the deduplicated union of issues. prIndexed
// flips retrieval into hybrid mode.
func (r *Reviewer) ReviewAll(
	ctx context.Context,
	req *models.ReviewRequest,
	files []*models.FileRecord,
	batches []*models.Batch,
	prIndexed bool,
) ([]models.ReviewIssue, error) {
	defer metrics.ObserveStage(StageReview, time.Now())

	var allPaths, deleted []string
	modified := make(map[string]bool)
	for _, f := range files {
		allPaths = append(allPaths, f.Path)
		if f.ChangeType == models.ChangeDeleted {
			deleted = append(deleted, f.Path)
		}
		if f.ChangeType == models.ChangeModified {
			modified[f.Path] = true
		}
	}

	perBatch := make([][]models.ReviewIssue, len(batches))
	width := r.cfg.MaxParallelStage1
	done := 0

	for start := 0; start < len(batches); start += width {
		end := start + width
		if end > len(batches) {
			end = len(batches)
		}

		g, waveCtx := errgroup.WithContext(ctx)
		for _, batch := range batches[start:end] {
			g.Go(func() error {
				issues, err := r.reviewBatch(waveCtx, req, batch, allPaths, deleted, modified, prIndexed)
				if err != nil {
					if waveCtx.Err() != nil {
						return waveCtx.Err()
					}
					slog.Warn("Batch review failed, continuing without its issues",
						"batch", batch.Index, "files", len(batch.Items), "error", err)
					return nil
				}
				perBatch[batch.Index] = issues
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		done = end
		percent := 10 + int(math.Round(50*float64(done)/float64(len(batches))))
		r.emitter.Progress(percent, "")
	}

	return r.dedupAcrossBatches(perBatch), nil
}

// reviewBatch runs one batch: snippets, two-pronged retrieval, prompt, LLM,
// parse.
func (r *Reviewer) reviewBatch(
	ctx context.Context,
	req *models.ReviewRequest,
	batch *models.Batch,
	allPaths, deleted []string,
	modified map[string]bool,
	prIndexed bool,
) ([]models.ReviewIssue, error) {
	slog.Debug("Reviewing batch", "batch", batch.Index, "files", batch.Paths(), "priority", batch.Priority())

	chunks := r.fetchContext(ctx, req, batch, allPaths, prIndexed)
	chunks = r.filterChunks(chunks, deleted, modified)

	open, resolved := previousForBatch(req.PreviousIssues, batch)
	previousSection := prompt.PreviousIssues(open, resolved)

	var toolSection string
	llmReq := &llm.Request{
		System:    prompt.ReviewSystem,
		JSONMode:  true,
		MaxTokens: req.MaxTokens,
	}
	if req.EnableTools {
		toolSection = prompt.Stage1Tools
		llmReq.Tools = NewStage1ToolExecutor(req, r.tools, r.cfg.Stage1ToolBudget)
	}
	llmReq.Prompt = prompt.BatchReview(req, batch, allPaths, deleted, chunks, previousSection, toolSection)

	resp, err := r.client.Generate(ctx, llmReq)
	if err != nil {
		return nil, &BatchFailure{BatchIndex: batch.Index, Cause: err}
	}

	var out batchReview
	if err := r.driver.Parse(ctx, resp.Text, "batch_review", prompt.BatchReviewSchema, &out); err != nil {
		return nil, &BatchFailure{BatchIndex: batch.Index, Cause: err}
	}

	var issues []models.ReviewIssue
	for _, review := range out.Reviews {
		for _, issue := range review.Issues {
			issue.Sanitize()
			if issue.File == "" {
				issue.File = review.File
			}
			if issue.Reason == "" {
				continue
			}
			issues = append(issues, issue)
		}
	}
	slog.Debug("Batch reviewed", "batch", batch.Index, "issues", len(issues))
	return issues, nil
}

// fetchContext runs the semantic and deterministic retrieval queries for a
// batch. Failures are logged and treated as empty context.
func (r *Reviewer) fetchContext(
	ctx context.Context,
	req *models.ReviewRequest,
	batch *models.Batch,
	allPaths []string,
	prIndexed bool,
) []retrieval.Chunk {
	if r.retriever == nil {
		return nil
	}
	paths := batch.Paths()

	query := &retrieval.PRContextQuery{
		Workspace:     req.Workspace,
		Project:       req.RepoSlug,
		Branch:        req.TargetBranch,
		ChangedFiles:  paths,
		DiffSnippets:  extractSnippets(batch),
		PRTitle:       req.Title,
		PRDescription: req.Description,
		TopK:          r.cfg.ContextTopK,
	}
	if prIndexed {
		query.PRNumber = req.PullRequestID
		query.AllPRChangedFiles = allPaths
	}

	var chunks []retrieval.Chunk

	semCtx, cancel := context.WithTimeout(ctx, r.cfg.RetrievalTimeout)
	semantic, err := r.retriever.PRContext(semCtx, query)
	cancel()
	if err != nil {
		slog.Warn("Semantic retrieval failed, proceeding without it", "batch", batch.Index, "error", err)
	} else {
		chunks = append(chunks, semantic.RelevantCode...)
	}

	detCtx, cancel := context.WithTimeout(ctx, r.cfg.RetrievalTimeout)
	det, err := r.retriever.DeterministicContext(detCtx, &retrieval.DeterministicQuery{
		Workspace:    req.Workspace,
		Project:      req.RepoSlug,
		Branches:     []string{req.TargetBranch},
		FilePaths:    paths,
		LimitPerFile: r.cfg.DeterministicPerFile,
	})
	cancel()
	if err != nil {
		slog.Warn("Deterministic retrieval failed, proceeding without it", "batch", batch.Index, "error", err)
		return chunks
	}
	for _, def := range det.RelatedDefinitions {
		if def.Content == "" {
			continue
		}
		chunks = append(chunks, retrieval.Chunk{
			Text: def.Content,
			Metadata: retrieval.ChunkMetadata{
				Path:        def.Path,
				Namespace:   def.Namespace,
				PrimaryName: def.Symbol,
			},
			Score:  0.85,
			Source: "deterministic",
		})
	}
	return chunks
}

// filterChunks drops context that would mislead the reviewer: anything from a
// deleted file, and stale low-score chunks shadowing a modified file. Chunks
// served from the PR-scoped index are always fresh and bypass the score gate.
func (r *Reviewer) filterChunks(chunks []retrieval.Chunk, deleted []string, modified map[string]bool) []retrieval.Chunk {
	deletedSet := make(map[string]bool, len(deleted))
	for _, p := range deleted {
		deletedSet[p] = true
	}

	kept := chunks[:0:0]
	for _, chunk := range chunks {
		path := chunk.Metadata.Path
		if deletedSet[path] {
			continue
		}
		if modified[path] && chunk.Source != "pr_indexed" {
			threshold := r.cfg.MinChunkScore
			if chunk.Source == "deterministic" {
				threshold = r.cfg.MinDeterministicScore
			}
			if chunk.Score < threshold {
				continue
			}
		}
		kept = append(kept, chunk)
	}
	return kept
}

// previousForBatch partitions the previous issues touching this batch's files
// into open and resolved.
func previousForBatch(previous []models.PreviousIssue, batch *models.Batch) (open, resolved []models.PreviousIssue) {
	if len(previous) == 0 {
		return nil, nil
	}
	inBatch := make(map[string]bool, len(batch.Items))
	for _, item := range batch.Items {
		inBatch[item.File.Path] = true
	}
	for _, issue := range previous {
		if !inBatch[issue.File] {
			continue
		}
		if issue.Status == models.StatusResolved {
			resolved = append(resolved, issue)
		} else if issue.Status != models.StatusIgnored {
			open = append(open, issue)
		}
	}
	return open, resolved
}

// dedupAcrossBatches suppresses issues whose reason is near-identical to one
// already accepted from an earlier batch. Batches are visited in index order
// so ties resolve to the lowest batch index.
func (r *Reviewer) dedupAcrossBatches(perBatch [][]models.ReviewIssue) []models.ReviewIssue {
	var accepted []models.ReviewIssue
	suppressed := 0
	for _, issues := range perBatch {
		for _, issue := range issues {
			dup := false
			for _, prev := range accepted {
				if similarity.Ratio(issue.Reason, prev.Reason) >= r.cfg.CrossBatchDedupThreshold {
					dup = true
					break
				}
			}
			if dup {
				suppressed++
				continue
			}
			accepted = append(accepted, issue)
		}
	}
	if suppressed > 0 {
		slog.Debug("Cross-batch dedup suppressed issues", "suppressed", suppressed, "kept", len(accepted))
	}
	sort.SliceStable(accepted, func(i, j int) bool {
		if accepted[i].File != accepted[j].File {
			return accepted[i].File < accepted[j].File
		}
		return accepted[i].Line.Start() < accepted[j].Line.Start()
	})
	return accepted
}
