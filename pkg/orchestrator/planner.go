package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/critique/pkg/llm"
	"github.com/codeready-toolchain/critique/pkg/metrics"
	"github.com/codeready-toolchain/critique/pkg/models"
	"github.com/codeready-toolchain/critique/pkg/prompt"
	"github.com/codeready-toolchain/critique/pkg/structured"
)

// Planner runs Stage 0: classify the changed files into priority groups and
// hypothesize cross-file concerns. No tools are available here.
type Planner struct {
	client llm.Client
	driver *structured.Driver
}

func NewPlanner(client llm.Client, driver *structured.Driver) *Planner {
	return &Planner{client: client, driver: driver}
}

// Plan produces the review plan. Any file the plan misses is appended to a
// synthetic MEDIUM "uncategorized" group so the plan always covers the diff.
func (p *Planner) Plan(ctx context.Context, req *models.ReviewRequest, files []*models.FileRecord) (*models.ReviewPlan, error) {
	defer metrics.ObserveStage(StagePlan, time.Now())

	resp, err := p.client.Generate(ctx, &llm.Request{
		System:   prompt.PlanSystem,
		Prompt:   prompt.Plan(req, files),
		JSONMode: true,
	})
	if err != nil {
		return nil, stageFailure(StagePlan, err)
	}

	var plan models.ReviewPlan
	if err := p.driver.Parse(ctx, resp.Text, "plan", prompt.PlanSchema, &plan); err != nil {
		return nil, stageFailure(StagePlan, err)
	}

	for i := range plan.Groups {
		plan.Groups[i].Priority = models.NormalizePriority(string(plan.Groups[i].Priority))
	}

	ensureCoverage(&plan, files)
	return &plan, nil
}

// ensureCoverage appends files the planner never mentioned to an
// "uncategorized" MEDIUM group.
func ensureCoverage(plan *models.ReviewPlan, files []*models.FileRecord) {
	covered := plan.PlannedPaths()
	var missing []models.PlannedFile
	for _, f := range files {
		if f.Skipped || covered[f.Path] {
			continue
		}
		missing = append(missing, models.PlannedFile{Path: f.Path})
	}
	if len(missing) == 0 {
		return
	}
	slog.Debug("Plan missed files, appending uncategorized group", "count", len(missing))
	plan.Groups = append(plan.Groups, models.FileGroup{
		Priority:  models.PriorityMedium,
		Rationale: "uncategorized",
		Files:     missing,
	})
}
