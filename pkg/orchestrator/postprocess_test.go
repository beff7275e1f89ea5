package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/critique/pkg/models"
)

func TestPostProcessRestoresDiffFromPrevious(t *testing.T) {
	previous := []models.PreviousIssue{{
		ID:                      "i1",
		SuggestedFixDescription: "add the guard",
		SuggestedFixDiff:        "--- a\n+++ b\n@@ -1 +1 @@\n-x\n+y",
	}}
	issues := []models.ReviewIssue{{
		ID:               "i1",
		File:             "a.py",
		Line:             "10",
		Reason:           "missing guard",
		SuggestedFixDiff: "N/A",
	}}

	out := NewPostProcessor(testDefaults()).Process(issues, nil, nil, previous)
	require.Len(t, out, 1)
	assert.Contains(t, out[0].SuggestedFixDiff, "@@")
	assert.Equal(t, "add the guard", out[0].SuggestedFixDescription)
}

func TestPostProcessDoesNotRestoreForResolved(t *testing.T) {
	previous := []models.PreviousIssue{{
		ID:               "i1",
		SuggestedFixDiff: "--- a\n+++ b\n@@ -1 +1 @@\n-x\n+y",
	}}
	issues := []models.ReviewIssue{{
		ID:         "i1",
		File:       "a.py",
		Reason:     "was fixed",
		IsResolved: true,
	}}

	out := NewPostProcessor(testDefaults()).Process(issues, nil, nil, previous)
	assert.Empty(t, out[0].SuggestedFixDiff)
	assert.True(t, out[0].IsResolved)
}

func TestPostProcessLineCorrection(t *testing.T) {
	lineMaps := map[string]map[int]string{
		"a.py": {
			38: "def unrelated():",
			40: "    total = 0",
			43: "    charge_customer(amount)  # no validation",
			45: "    return total",
		},
	}
	issues := []models.ReviewIssue{{
		File:   "a.py",
		Line:   "40",
		Reason: "charge_customer called without validation of amount",
	}}

	out := NewPostProcessor(testDefaults()).Process(issues, lineMaps, nil, nil)
	assert.Equal(t, models.LineRef("43"), out[0].Line)
}

func TestPostProcessLineCorrectionOutOfRadius(t *testing.T) {
	lineMaps := map[string]map[int]string{
		"a.py": {200: "charge_customer(amount)"},
	}
	issues := []models.ReviewIssue{{
		File:   "a.py",
		Line:   "40",
		Reason: "charge_customer called without validation",
	}}

	out := NewPostProcessor(testDefaults()).Process(issues, lineMaps, nil, nil)
	assert.Equal(t, models.LineRef("40"), out[0].Line, "matches beyond the radius are ignored")
}

func TestPostProcessDedupMergesCluster(t *testing.T) {
	issues := []models.ReviewIssue{
		{
			ID:               "keep",
			File:             "a.py",
			Line:             "12",
			Severity:         models.SeverityMedium,
			Category:         models.CategoryBugRisk,
			Reason:           "possible nil dereference of user token in session handler",
			SuggestedFixDiff: "--- a\n+++ b\n@@ -1 +1 @@\n-x\n+y",
		},
		{
			ID:       "dup",
			File:     "a.py",
			Line:     "14",
			Severity: models.SeverityHigh,
			Category: models.CategoryBugRisk,
			Reason:   "possible nil dereference of user token in session handlers",
		},
		{
			ID:       "other",
			File:     "b.py",
			Line:     "14",
			Severity: models.SeverityLow,
			Category: models.CategoryStyle,
			Reason:   "inconsistent naming convention for constants",
		},
	}

	out := NewPostProcessor(testDefaults()).Process(issues, nil, nil, nil)
	require.Len(t, out, 2)

	merged := out[0]
	assert.Equal(t, "keep", merged.ID, "the issue with the diff wins the merge")
	assert.Equal(t, models.SeverityHigh, merged.Severity, "highest severity in the cluster")
	assert.Equal(t, models.LineRef("12"), merged.Line, "minimum line in the cluster")
	assert.Contains(t, merged.SuggestedFixDiff, "@@")
}

func TestPostProcessDedupRespectsDifferentFiles(t *testing.T) {
	issues := []models.ReviewIssue{
		{File: "a.py", Line: "12", Reason: "identical reason text here", Category: models.CategoryBugRisk},
		{File: "b.py", Line: "12", Reason: "identical reason text here", Category: models.CategoryBugRisk},
	}
	out := NewPostProcessor(testDefaults()).Process(issues, nil, nil, nil)
	assert.Len(t, out, 2, "dedup only applies within a file")
}

func TestPostProcessDiffHygiene(t *testing.T) {
	issues := []models.ReviewIssue{
		{File: "a.py", Reason: "x", SuggestedFixDiff: "```diff\n--- a\n+++ b\n@@ -1 +1 @@\n-x\n+y\n```"},
		{File: "b.py", Reason: "y", SuggestedFixDiff: "just use a mutex here"},
	}

	out := NewPostProcessor(testDefaults()).Process(issues, nil, nil, nil)
	require.Len(t, out, 2)

	assert.NotContains(t, out[0].SuggestedFixDiff, "```")
	assert.False(t, out[0].NeedsDiffReview)
	assert.True(t, out[1].NeedsDiffReview, "non-diff text is flagged, not dropped")
	assert.Equal(t, "just use a mutex here", out[1].SuggestedFixDiff)
}

func TestPostProcessInvariants(t *testing.T) {
	issues := []models.ReviewIssue{
		{ID: "r1", File: "a.py", Line: "3", Reason: "was fixed earlier", IsResolved: true},
		{ID: "n1", File: "a.py", Line: "9", Reason: "totally different problem with imports"},
	}

	p := NewPostProcessor(testDefaults())
	out := p.Process(issues, nil, nil, nil)

	require.Len(t, out, 2, "post-processing never creates or invents issues")
	for _, issue := range out {
		assert.Contains(t, []string{"r1", "n1"}, issue.ID, "ids are never changed")
	}
	assert.True(t, findByID(t, out, "r1").IsResolved, "resolved is never flipped back")
}

func TestPostProcessIdempotent(t *testing.T) {
	issues := []models.ReviewIssue{
		{ID: "a", File: "a.py", Line: "12", Reason: "possible nil dereference of user token", Category: models.CategoryBugRisk},
		{ID: "b", File: "a.py", Line: "13", Reason: "possible nil dereference of user tokens", Category: models.CategoryBugRisk},
		{ID: "c", File: "b.py", Line: "1", Reason: "missing docstring on public function"},
	}

	p := NewPostProcessor(testDefaults())
	once := p.Process(issues, nil, nil, nil)
	twice := p.Process(once, nil, nil, nil)
	assert.Equal(t, once, twice)
}
