package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/codeready-toolchain/critique/pkg/llm"
	"github.com/codeready-toolchain/critique/pkg/models"
)

// Tool names exposed to the LLM.
const (
	ToolGetBranchFileContent   = "getBranchFileContent"
	ToolGetPullRequestComments = "getPullRequestComments"
)

// ToolBackend is the external capability the executor forwards to. Workspace
// and repo slug are pre-bound from the request before forwarding.
type ToolBackend interface {
	GetBranchFileContent(ctx context.Context, workspace, repoSlug, branch, filePath string) (string, error)
	GetPullRequestComments(ctx context.Context, workspace, repoSlug, pullRequestID string) (string, error)
}

// ToolExecutor wraps the backend with a per-stage whitelist, a call budget,
// and mutual exclusion. Out-of-whitelist, out-of-budget, and failing calls
// return textual outcomes so the LLM can keep reasoning.
//
// Compile-time check that it satisfies the adapter-side interface.
var _ llm.ToolRunner = (*ToolExecutor)(nil)

type ToolExecutor struct {
	stage     string
	whitelist map[string]bool
	budget    int
	backend   ToolBackend
	req       *models.ReviewRequest

	// mu serializes calls and guards used. Increment-before-dispatch: a call
	// that passes the budget check consumes its slot even if it fails.
	mu   sync.Mutex
	used int
}

// NewStage1ToolExecutor creates the Stage-1 executor: file content only,
// budget of budget calls.
func NewStage1ToolExecutor(req *models.ReviewRequest, backend ToolBackend, budget int) *ToolExecutor {
	return &ToolExecutor{
		stage:     StageReview,
		whitelist: map[string]bool{ToolGetBranchFileContent: true},
		budget:    budget,
		backend:   backend,
		req:       req,
	}
}

// NewStage3ToolExecutor creates the Stage-3 executor: file content plus PR
// comments.
func NewStage3ToolExecutor(req *models.ReviewRequest, backend ToolBackend, budget int) *ToolExecutor {
	return &ToolExecutor{
		stage:     StageAggregate,
		whitelist: map[string]bool{ToolGetBranchFileContent: true, ToolGetPullRequestComments: true},
		budget:    budget,
		backend:   backend,
		req:       req,
	}
}

// Definitions implements llm.ToolRunner.
func (t *ToolExecutor) Definitions() []llm.ToolDefinition {
	var defs []llm.ToolDefinition
	if t.whitelist[ToolGetBranchFileContent] {
		defs = append(defs, llm.ToolDefinition{
			Name:        ToolGetBranchFileContent,
			Description: "Read the full content of a file on a branch of this repository.",
			Parameters: map[string]any{
				"branch":   map[string]any{"type": "string", "description": "Branch name; defaults to the PR target branch."},
				"filePath": map[string]any{"type": "string", "description": "Repository-relative file path."},
			},
			Required: []string{"filePath"},
		})
	}
	if t.whitelist[ToolGetPullRequestComments] {
		defs = append(defs, llm.ToolDefinition{
			Name:        ToolGetPullRequestComments,
			Description: "List the comments already posted on this pull request.",
			Parameters: map[string]any{
				"pullRequestId": map[string]any{"type": "string", "description": "PR id; defaults to the PR under review."},
			},
		})
	}
	return defs
}

// Run implements llm.ToolRunner.
func (t *ToolExecutor) Run(ctx context.Context, call llm.ToolCall) llm.ToolOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.whitelist[call.Name] {
		return llm.ToolOutcome{
			Content: fmt.Sprintf("Tool %q is not available in %s.", call.Name, t.stage),
			IsError: true,
		}
	}
	if t.used >= t.budget {
		return llm.ToolOutcome{
			Content: fmt.Sprintf("Tool budget exhausted (%d calls used in %s).", t.budget, t.stage),
			IsError: true,
		}
	}
	t.used++

	content, err := t.dispatch(ctx, call)
	if err != nil {
		slog.Warn("Tool call failed", "tool", call.Name, "stage", t.stage, "error", err)
		return llm.ToolOutcome{
			Content: fmt.Sprintf("Tool %s failed: %v", call.Name, err),
			IsError: true,
		}
	}
	return llm.ToolOutcome{Content: content}
}

// Used returns the number of budget slots consumed.
func (t *ToolExecutor) Used() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.used
}

func (t *ToolExecutor) dispatch(ctx context.Context, call llm.ToolCall) (string, error) {
	if t.backend == nil {
		return "", fmt.Errorf("no tool backend configured")
	}

	switch call.Name {
	case ToolGetBranchFileContent:
		var args struct {
			Branch   string `json:"branch"`
			FilePath string `json:"filePath"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		if args.FilePath == "" {
			return "", fmt.Errorf("'filePath' is required")
		}
		if args.Branch == "" {
			args.Branch = t.req.TargetBranch
		}
		return t.backend.GetBranchFileContent(ctx, t.req.Workspace, t.req.RepoSlug, args.Branch, args.FilePath)

	case ToolGetPullRequestComments:
		var args struct {
			PullRequestID string `json:"pullRequestId"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		if args.PullRequestID == "" {
			args.PullRequestID = t.req.PullRequestID
		}
		return t.backend.GetPullRequestComments(ctx, t.req.Workspace, t.req.RepoSlug, args.PullRequestID)

	default:
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}
}
