package orchestrator

import (
	"context"
	"time"

	"github.com/codeready-toolchain/critique/pkg/llm"
	"github.com/codeready-toolchain/critique/pkg/metrics"
	"github.com/codeready-toolchain/critique/pkg/models"
	"github.com/codeready-toolchain/critique/pkg/prompt"
	"github.com/codeready-toolchain/critique/pkg/structured"
)

// CrossFileAnalyzer runs Stage 2: one LLM call assessing the PR as a whole
// against the plan's cross-file hypotheses. No tools.
type CrossFileAnalyzer struct {
	client llm.Client
	driver *structured.Driver
}

func NewCrossFileAnalyzer(client llm.Client, driver *structured.Driver) *CrossFileAnalyzer {
	return &CrossFileAnalyzer{client: client, driver: driver}
}

// Analyze returns the cross-file analysis. Issues it reports are sanitized
// and forced into the ARCHITECTURE-adjacent categories the schema allows.
func (a *CrossFileAnalyzer) Analyze(
	ctx context.Context,
	req *models.ReviewRequest,
	issues []models.ReviewIssue,
	plan *models.ReviewPlan,
) (*models.CrossFileAnalysis, error) {
	defer metrics.ObserveStage(StageCrossFile, time.Now())

	resp, err := a.client.Generate(ctx, &llm.Request{
		System:    prompt.CrossFileSystem,
		Prompt:    prompt.CrossFile(req, issues, plan.CrossFileConcerns),
		JSONMode:  true,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return nil, stageFailure(StageCrossFile, err)
	}

	var analysis models.CrossFileAnalysis
	if err := a.driver.Parse(ctx, resp.Text, "cross_file", prompt.CrossFileSchema, &analysis); err != nil {
		return nil, stageFailure(StageCrossFile, err)
	}

	for i := range analysis.CrossFileIssues {
		analysis.CrossFileIssues[i].Sanitize()
	}
	return &analysis, nil
}
