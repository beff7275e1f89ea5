package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/codeready-toolchain/critique/pkg/config"
	"github.com/codeready-toolchain/critique/pkg/llm"
	"github.com/codeready-toolchain/critique/pkg/metrics"
	"github.com/codeready-toolchain/critique/pkg/models"
	"github.com/codeready-toolchain/critique/pkg/prompt"
)

// Aggregator runs Stage 3: one LLM call producing the final markdown review
// comment. Output is free-form text, not JSON.
type Aggregator struct {
	cfg    *config.Defaults
	client llm.Client
	tools  ToolBackend
}

func NewAggregator(cfg *config.Defaults, client llm.Client, tools ToolBackend) *Aggregator {
	return &Aggregator{cfg: cfg, client: client, tools: tools}
}

// Aggregate writes the final comment. In incremental mode the prompt opens
// with the resolved/new counts so the comment reads as an update.
func (a *Aggregator) Aggregate(
	ctx context.Context,
	req *models.ReviewRequest,
	plan *models.ReviewPlan,
	issues []models.ReviewIssue,
	analysis *models.CrossFileAnalysis,
) (string, error) {
	defer metrics.ObserveStage(StageAggregate, time.Now())

	var incremental *prompt.IncrementalCounts
	if req.Mode == models.ModeIncremental && len(req.PreviousIssues) > 0 {
		incremental = countIncremental(req.PreviousIssues, issues)
	}

	var toolSection string
	llmReq := &llm.Request{
		System:    prompt.AggregateSystem,
		MaxTokens: req.MaxTokens,
	}
	if req.EnableTools {
		toolSection = prompt.Stage3Tools
		llmReq.Tools = NewStage3ToolExecutor(req, a.tools, a.cfg.Stage3ToolBudget)
	}
	llmReq.Prompt = prompt.Aggregate(req, plan, issues, analysis, incremental, toolSection)

	resp, err := a.client.Generate(ctx, llmReq)
	if err != nil {
		return "", stageFailure(StageAggregate, err)
	}
	comment := strings.TrimSpace(resp.Text)
	if comment == "" {
		return "", stageFailure(StageAggregate, errEmptyComment)
	}
	return comment, nil
}

var errEmptyComment = errors.New("empty aggregation output")

func countIncremental(previous []models.PreviousIssue, issues []models.ReviewIssue) *prompt.IncrementalCounts {
	prevResolved := make(map[string]bool, len(previous))
	for _, p := range previous {
		prevResolved[p.ID] = p.Status == models.StatusResolved
	}

	counts := &prompt.IncrementalCounts{Previous: len(previous), Total: len(issues)}
	for _, issue := range issues {
		wasResolved, known := prevResolved[issue.ID]
		switch {
		case issue.IsResolved && known && !wasResolved:
			counts.ResolvedNow++
		case !known || issue.ID == "":
			counts.NewlyFound++
		}
	}
	return counts
}
