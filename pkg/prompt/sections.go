package prompt

import (
	"fmt"
	"strings"

	"github.com/codeready-toolchain/critique/pkg/models"
)

// PreviousIssues builds the prior-findings section for a Stage-1 prompt.
// open and resolved are the previous issues relevant to the batch's files.
func PreviousIssues(open, resolved []models.PreviousIssue) string {
	if len(open) == 0 && len(resolved) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n## Issues from the previous review of this PR\n\n")

	if len(open) > 0 {
		b.WriteString("### Still open\n\n")
		for _, issue := range open {
			fmt.Fprintf(&b, "- id=%s [%s/%s] %s:%s %s\n",
				issue.ID, issue.Severity, issue.Category, issue.File, issue.Line, issue.Reason)
		}
		b.WriteString("\nFor each open issue: if the new diff fixes it, report it with the same id and ")
		b.WriteString("\"is_resolved\": true. If it is still present, report it again with the same id. ")
		b.WriteString("Always reuse the id field; never mint a new id for a known issue.\n")
	}

	if len(resolved) > 0 {
		b.WriteString("\n### Already resolved (do NOT re-report these)\n\n")
		for _, issue := range resolved {
			fmt.Fprintf(&b, "- id=%s %s:%s %s\n", issue.ID, issue.File, issue.Line, issue.Reason)
		}
	}
	return b.String()
}

// Stage1Tools is the tool section appended to batch prompts when tools are
// enabled.
const Stage1Tools = "\n## Tools\n\n" +
	"You may call getBranchFileContent(branch, filePath) to read the full content of a file " +
	"on the target branch when the diff alone is not enough to judge an issue. " +
	"The call budget is small; use it only when a finding depends on unseen code.\n"

// Stage3Tools is the tool section appended to aggregation prompts when tools
// are enabled.
const Stage3Tools = "\n## Tools\n\n" +
	"You may call getBranchFileContent(branch, filePath) to verify a claim against file content, " +
	"and getPullRequestComments(pullRequestId) to avoid repeating feedback already posted on the PR.\n"

// Verify builds the Stage-1.5 verification prompt for one suspect issue.
func Verify(issue models.ReviewIssue) string {
	var b strings.Builder
	b.WriteString("A code review flagged this issue:\n\n")
	fmt.Fprintf(&b, "File: %s\nLine: %s\nReason: %s\n\n", issue.File, issue.Line, issue.Reason)
	b.WriteString("The reason claims a symbol, import, property, or method is missing. ")
	b.WriteString("Use searchFileContent(path, needle) to check whether the symbol actually exists ")
	b.WriteString("in the repository files available to you. Search the flagged file first, then ")
	b.WriteString("likely definition sites.\n\n")
	b.WriteString("When you have enough evidence, respond with JSON matching this schema:\n")
	b.WriteString(VerifySchema)
	return b.String()
}

// VerifySystem is the Stage-1.5 system prompt.
const VerifySystem = "You verify whether code-review findings about missing symbols are real. " +
	"You use the search tool before judging. You respond with a single JSON object and nothing else."
