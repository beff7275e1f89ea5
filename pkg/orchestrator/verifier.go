package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codeready-toolchain/critique/pkg/llm"
	"github.com/codeready-toolchain/critique/pkg/metrics"
	"github.com/codeready-toolchain/critique/pkg/models"
	"github.com/codeready-toolchain/critique/pkg/prompt"
	"github.com/codeready-toolchain/critique/pkg/structured"
)

// suspectPhrases mark reasons that claim a symbol is missing. These are the
// claims an LLM most often gets wrong when it only sees a diff.
var suspectPhrases = []string{
	"undefined",
	"missing import",
	"not defined",
	"does not exist",
	"cannot find",
	"unresolved",
	"missing property",
	"missing method",
}

// suspectCategories limits verification to issue kinds where a missing-symbol
// claim is plausible.
var suspectCategories = map[models.Category]bool{
	models.CategoryBugRisk:      true,
	models.CategoryCodeQuality:  true,
	models.CategoryArchitecture: true,
}

// Verifier is the optional Stage-1.5 pass: an LLM agent with a file-search
// tool re-checks missing-symbol claims against the enrichment file contents
// and discards confirmed false positives. Fails open.
type Verifier struct {
	client llm.Client
	driver *structured.Driver
}

func NewVerifier(client llm.Client, driver *structured.Driver) *Verifier {
	return &Verifier{client: client, driver: driver}
}

type verifyVerdict struct {
	SymbolExists bool   `json:"symbol_exists"`
	Evidence     string `json:"evidence,omitempty"`
}

// Verify returns the issue list with confirmed false positives removed. Any
// failure keeps the issue under scrutiny.
func (v *Verifier) Verify(ctx context.Context, issues []models.ReviewIssue, enrichment *models.Enrichment) []models.ReviewIssue {
	if !enrichment.HasFileContents() {
		return issues
	}
	defer metrics.ObserveStage(StageVerify, time.Now())

	search := &searchTool{files: enrichment.Files}
	kept := issues[:0:0]
	discarded := 0

	for _, issue := range issues {
		if !isSuspect(issue) {
			kept = append(kept, issue)
			continue
		}

		resp, err := v.client.Generate(ctx, &llm.Request{
			System:   prompt.VerifySystem,
			Prompt:   prompt.Verify(issue),
			JSONMode: true,
			Tools:    search,
		})
		if err != nil {
			slog.Warn("Verification call failed, keeping issue", "file", issue.File, "error", err)
			kept = append(kept, issue)
			continue
		}

		var verdict verifyVerdict
		if err := structured.Decode(resp.Text, &verdict); err != nil {
			slog.Warn("Verification verdict unparseable, keeping issue", "file", issue.File, "error", err)
			kept = append(kept, issue)
			continue
		}

		if verdict.SymbolExists {
			discarded++
			slog.Debug("Discarding false positive", "file", issue.File, "line", issue.Line, "evidence", verdict.Evidence)
			continue
		}
		kept = append(kept, issue)
	}

	if discarded > 0 {
		slog.Info("Verifier discarded false positives", "discarded", discarded, "kept", len(kept))
	}
	return kept
}

func isSuspect(issue models.ReviewIssue) bool {
	if !suspectCategories[issue.Category] {
		return false
	}
	reason := strings.ToLower(issue.Reason)
	for _, phrase := range suspectPhrases {
		if strings.Contains(reason, phrase) {
			return true
		}
	}
	return false
}

// searchTool exposes searchFileContent over the enrichment file map.
type searchTool struct {
	files map[string]*models.EnrichedFile
}

var _ llm.ToolRunner = (*searchTool)(nil)

func (s *searchTool) Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{{
		Name:        "searchFileContent",
		Description: "Search a repository file for a substring. Returns found with the matching line, notFound, or fileUnavailable.",
		Parameters: map[string]any{
			"path":   map[string]any{"type": "string", "description": "Repository-relative file path."},
			"needle": map[string]any{"type": "string", "description": "Substring to search for."},
		},
		Required: []string{"path", "needle"},
	}}
}

func (s *searchTool) Run(_ context.Context, call llm.ToolCall) llm.ToolOutcome {
	if call.Name != "searchFileContent" {
		return llm.ToolOutcome{Content: fmt.Sprintf("Unknown tool %q.", call.Name), IsError: true}
	}
	var args struct {
		Path   string `json:"path"`
		Needle string `json:"needle"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil || args.Path == "" || args.Needle == "" {
		return llm.ToolOutcome{Content: "Invalid arguments: 'path' and 'needle' are required.", IsError: true}
	}

	file := s.files[args.Path]
	if file == nil || file.Content == "" {
		return llm.ToolOutcome{Content: "fileUnavailable"}
	}
	for _, line := range strings.Split(file.Content, "\n") {
		if strings.Contains(line, args.Needle) {
			return llm.ToolOutcome{Content: "found: " + strings.TrimSpace(line)}
		}
	}
	return llm.ToolOutcome{Content: "notFound"}
}
