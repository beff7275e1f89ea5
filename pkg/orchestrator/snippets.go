package orchestrator

import (
	"strings"

	"github.com/codeready-toolchain/critique/pkg/models"
)

const (
	snippetMinLineLen   = 10
	snippetGroupMax     = 5
	maxSnippetsPerBatch = 10
)

// extractSnippets pulls representative added lines out of a batch's diffs for
// the semantic retrieval query. Consecutive qualifying lines are joined into
// snippets of up to five lines; short runs are used as-is.
func extractSnippets(batch *models.Batch) []string {
	var snippets []string
	for _, item := range batch.Items {
		var run []string
		flush := func() {
			for len(run) > 0 {
				n := len(run)
				if n > snippetGroupMax {
					n = snippetGroupMax
				}
				snippets = append(snippets, strings.Join(run[:n], "\n"))
				run = run[n:]
			}
		}
		for _, line := range strings.Split(item.File.DiffText, "\n") {
			if !qualifiesForSnippet(line) {
				flush()
				continue
			}
			run = append(run, strings.TrimPrefix(line, "+"))
			if len(run) >= snippetGroupMax {
				flush()
			}
		}
		flush()
		if len(snippets) >= maxSnippetsPerBatch {
			return snippets[:maxSnippetsPerBatch]
		}
	}
	return snippets
}

// qualifiesForSnippet accepts added lines that carry real code: long enough,
// not comments, not bare braces.
func qualifiesForSnippet(line string) bool {
	if !strings.HasPrefix(line, "+") || strings.HasPrefix(line, "+++") {
		return false
	}
	content := strings.TrimSpace(line[1:])
	if len(content) <= snippetMinLineLen {
		return false
	}
	for _, prefix := range []string{"//", "#", "*", "/*", "--"} {
		if strings.HasPrefix(content, prefix) {
			return false
		}
	}
	trimmed := strings.Trim(content, "{}();, \t")
	return trimmed != ""
}
