package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/critique/pkg/models"
)

func batchWithDiff(diffText string) *models.Batch {
	return &models.Batch{Items: []models.BatchItem{{
		File: &models.FileRecord{Path: "a.py", DiffText: diffText},
	}}}
}

func TestExtractSnippets(t *testing.T) {
	diffText := strings.Join([]string{
		"--- a/a.py",
		"+++ b/a.py",
		"@@ -1,3 +1,6 @@",
		"+def handle_payment(amount):",
		"+    validate_amount(amount)",
		"+    charge_customer(amount)",
		" unchanged context line",
		"+# just a comment here",
		"+{",
		"+x=1",
		"+final_processing_step(amount)",
	}, "\n")

	snippets := extractSnippets(batchWithDiff(diffText))
	require.NotEmpty(t, snippets)

	joined := strings.Join(snippets, "\n")
	assert.Contains(t, joined, "def handle_payment(amount):")
	assert.Contains(t, joined, "charge_customer(amount)")
	assert.NotContains(t, joined, "just a comment")
	assert.NotContains(t, joined, "unchanged context")
	assert.NotContains(t, joined, "+++")
	// Short lines and bare braces are excluded.
	assert.NotContains(t, joined, "x=1")
}

func TestExtractSnippetsGroupsConsecutiveLines(t *testing.T) {
	var lines []string
	for i := 0; i < 8; i++ {
		lines = append(lines, "+some_meaningful_statement_number()")
	}
	snippets := extractSnippets(batchWithDiff(strings.Join(lines, "\n")))
	require.Len(t, snippets, 2)
	assert.Len(t, strings.Split(snippets[0], "\n"), 5)
	assert.Len(t, strings.Split(snippets[1], "\n"), 3)
}

func TestExtractSnippetsCap(t *testing.T) {
	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, "+another_meaningful_statement_here()", " context")
	}
	snippets := extractSnippets(batchWithDiff(strings.Join(lines, "\n")))
	assert.Len(t, snippets, maxSnippetsPerBatch)
}
