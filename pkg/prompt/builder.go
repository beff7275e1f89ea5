// Package prompt builds the stage prompts. Each builder composes plain-text
// sections with explicit output-format instructions; schema hints live in
// schemas.go.
package prompt

import (
	"fmt"
	"strings"

	"github.com/codeready-toolchain/critique/pkg/models"
	"github.com/codeready-toolchain/critique/pkg/retrieval"
)

// PlanSystem is the Stage-0 system prompt.
const PlanSystem = "You are a senior code reviewer planning a pull-request review. " +
	"You classify changed files into priority groups and hypothesize cross-file concerns. " +
	"You respond with a single JSON object and nothing else."

// Plan builds the Stage-0 prompt from PR metadata and the changed-file list.
func Plan(req *models.ReviewRequest, files []*models.FileRecord) string {
	var b strings.Builder
	writePRHeader(&b, req)

	b.WriteString("## Changed files\n\n")
	for _, f := range files {
		fmt.Fprintf(&b, "- %s (%s, +%d/-%d)", f.Path, f.ChangeType, f.Additions, f.Deletions)
		if f.Skipped {
			fmt.Fprintf(&b, " [skipped: %s]", f.SkipReason)
		}
		b.WriteByte('\n')
	}

	b.WriteString("\nGroup the files by review priority (CRITICAL, HIGH, MEDIUM, LOW), ")
	b.WriteString("give each file focus areas and a risk level, list files that can be skipped with a reason, ")
	b.WriteString("and list cross-file concerns worth checking once per-file review is done.\n\n")
	b.WriteString("Respond with JSON matching this schema:\n")
	b.WriteString(PlanSchema)
	return b.String()
}

// ReviewSystem is the Stage-1 system prompt.
const ReviewSystem = "You are an expert code reviewer. You review unified diffs for real defects: " +
	"security problems, bug risks, performance issues, error handling gaps. " +
	"You never invent issues to fill space. You respond with a single JSON object and nothing else."

// BatchReview builds the Stage-1 prompt for one batch.
func BatchReview(
	req *models.ReviewRequest,
	batch *models.Batch,
	allFiles []string,
	deletedFiles []string,
	chunks []retrieval.Chunk,
	previousSection string,
	toolSection string,
) string {
	var b strings.Builder
	writePRHeader(&b, req)

	b.WriteString("## All files changed in this PR\n\n")
	for _, path := range allFiles {
		fmt.Fprintf(&b, "- %s\n", path)
	}
	if len(deletedFiles) > 0 {
		b.WriteString("\nDeleted in this PR (do not report issues against these):\n")
		for _, path := range deletedFiles {
			fmt.Fprintf(&b, "- %s\n", path)
		}
	}

	fmt.Fprintf(&b, "\n## Files to review in this batch (priority %s)\n\n", batch.Priority())
	for _, item := range batch.Items {
		fmt.Fprintf(&b, "### %s (priority %s)\n", item.File.Path, item.Priority)
		if len(item.RelatedPeers) > 0 {
			fmt.Fprintf(&b, "Related files in this batch: %s\n", strings.Join(item.RelatedPeers, ", "))
		}
		b.WriteString("```diff\n")
		b.WriteString(item.File.DiffText)
		b.WriteString("\n```\n\n")
	}

	writeChunks(&b, chunks)

	if previousSection != "" {
		b.WriteString(previousSection)
	}
	if toolSection != "" {
		b.WriteString(toolSection)
	}

	b.WriteString("\nRespond with JSON matching this schema:\n")
	b.WriteString(BatchReviewSchema)
	return b.String()
}

// CrossFileSystem is the Stage-2 system prompt.
const CrossFileSystem = "You are an architect reviewing a pull request as a whole. " +
	"Given per-file findings and cross-file hypotheses, you assess architecture-level risk. " +
	"You respond with a single JSON object and nothing else."

// CrossFile builds the Stage-2 prompt.
func CrossFile(req *models.ReviewRequest, issues []models.ReviewIssue, concerns []string) string {
	var b strings.Builder
	writePRHeader(&b, req)

	b.WriteString("## Cross-file concerns hypothesized during planning\n\n")
	if len(concerns) == 0 {
		b.WriteString("(none)\n")
	}
	for _, c := range concerns {
		fmt.Fprintf(&b, "- %s\n", c)
	}

	b.WriteString("\n## Per-file issues found so far\n\n")
	if len(issues) == 0 {
		b.WriteString("(none)\n")
	}
	for _, issue := range issues {
		fmt.Fprintf(&b, "- [%s/%s] %s:%s %s\n",
			issue.Severity, issue.Category, issue.File, issue.Line, issue.Reason)
	}

	b.WriteString("\nAssess the PR's overall risk, confirm or reject the cross-file concerns, ")
	b.WriteString("and report any architecture-level issues the per-file passes missed.\n\n")
	b.WriteString("Respond with JSON matching this schema:\n")
	b.WriteString(CrossFileSchema)
	return b.String()
}

// AggregateSystem is the Stage-3 system prompt.
const AggregateSystem = "You write the final review comment for a pull request. " +
	"You summarize honestly: a clean PR gets a short positive comment, a risky PR gets clear warnings. " +
	"You respond in GitHub-flavored markdown, no JSON."

// IncrementalCounts carries the summary numbers prefixed to incremental
// aggregation prompts.
type IncrementalCounts struct {
	Previous    int
	ResolvedNow int
	NewlyFound  int
	Total       int
}

// Aggregate builds the Stage-3 prompt.
func Aggregate(
	req *models.ReviewRequest,
	plan *models.ReviewPlan,
	issues []models.ReviewIssue,
	analysis *models.CrossFileAnalysis,
	incremental *IncrementalCounts,
	toolSection string,
) string {
	var b strings.Builder
	writePRHeader(&b, req)

	if incremental != nil {
		b.WriteString("## Incremental review update\n\n")
		fmt.Fprintf(&b, "- Issues from previous review: %d\n", incremental.Previous)
		fmt.Fprintf(&b, "- Resolved in this update: %d\n", incremental.ResolvedNow)
		fmt.Fprintf(&b, "- Newly found: %d\n", incremental.NewlyFound)
		fmt.Fprintf(&b, "- Total open and resolved: %d\n\n", incremental.Total)
	}

	if plan != nil && plan.Summary != "" {
		fmt.Fprintf(&b, "## Review plan summary\n\n%s\n\n", plan.Summary)
	}

	b.WriteString("## Issues\n\n")
	if len(issues) == 0 {
		b.WriteString("No issues found.\n")
	}
	for _, issue := range issues {
		status := "open"
		if issue.IsResolved {
			status = "resolved"
		}
		fmt.Fprintf(&b, "- [%s/%s/%s] %s:%s %s\n",
			issue.Severity, issue.Category, status, issue.File, issue.Line, issue.Reason)
	}

	if analysis != nil {
		b.WriteString("\n## Cross-file analysis\n\n")
		fmt.Fprintf(&b, "Risk level: %s\n", analysis.PRRiskLevel)
		if analysis.PRRecommendation != "" {
			fmt.Fprintf(&b, "Recommendation: %s\n", analysis.PRRecommendation)
		}
		for _, c := range analysis.DataFlowConcerns {
			fmt.Fprintf(&b, "- Data flow: %s\n", c)
		}
	}

	if toolSection != "" {
		b.WriteString(toolSection)
	}

	b.WriteString("\nWrite the final review comment in markdown. Open with a one-paragraph summary, ")
	b.WriteString("then list the significant issues grouped by severity. Do not repeat every minor issue verbatim.")
	return b.String()
}

func writePRHeader(b *strings.Builder, req *models.ReviewRequest) {
	fmt.Fprintf(b, "# Pull request: %s\n\n", req.Title)
	if req.Description != "" {
		fmt.Fprintf(b, "%s\n\n", req.Description)
	}
	fmt.Fprintf(b, "Repository: %s/%s, target branch: %s\n\n", req.Workspace, req.RepoSlug, req.TargetBranch)
}

func writeChunks(b *strings.Builder, chunks []retrieval.Chunk) {
	if len(chunks) == 0 {
		return
	}
	b.WriteString("## Related code from the repository\n\n")
	for _, chunk := range chunks {
		fmt.Fprintf(b, "### %s", chunk.Metadata.Path)
		if chunk.Metadata.PrimaryName != "" {
			fmt.Fprintf(b, " (%s)", chunk.Metadata.PrimaryName)
		}
		if chunk.Source != "" {
			fmt.Fprintf(b, " [source: %s]", chunk.Source)
		}
		b.WriteString("\n```\n")
		b.WriteString(chunk.Text)
		b.WriteString("\n```\n\n")
	}
}
