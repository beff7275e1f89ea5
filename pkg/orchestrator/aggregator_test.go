package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/critique/pkg/llm"
	"github.com/codeready-toolchain/critique/pkg/models"
)

func aggregatePlan() *models.ReviewPlan {
	return &models.ReviewPlan{Summary: "touches the payment flow"}
}

func TestAggregateReturnsComment(t *testing.T) {
	client := &llm.StubClient{Responses: []string{"\n## Review\n\nTwo findings.\n"}}
	a := NewAggregator(testDefaults(), client, nil)

	comment, err := a.Aggregate(context.Background(), reviewRequest(), aggregatePlan(), nil, &models.CrossFileAnalysis{})
	require.NoError(t, err)
	assert.Equal(t, "## Review\n\nTwo findings.", comment, "surrounding whitespace is trimmed")
}

func TestAggregateEmptyOutputIsFatal(t *testing.T) {
	client := &llm.StubClient{Responses: []string{"   \n  "}}
	a := NewAggregator(testDefaults(), client, nil)

	_, err := a.Aggregate(context.Background(), reviewRequest(), aggregatePlan(), nil, &models.CrossFileAnalysis{})
	require.Error(t, err)
	var sf *StageFailure
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, StageAggregate, sf.Stage)
}

func TestAggregateIncrementalCountsInPrompt(t *testing.T) {
	client := &llm.StubClient{Responses: []string{"Updated review."}}
	a := NewAggregator(testDefaults(), client, nil)

	req := reviewRequest()
	req.Mode = models.ModeIncremental
	req.PreviousIssues = []models.PreviousIssue{
		{ID: "p1", Status: models.StatusOpen},
		{ID: "p2", Status: models.StatusOpen},
	}
	issues := []models.ReviewIssue{
		{ID: "p1", IsResolved: true},
		{ID: "p2"},
		{ID: "fresh", Reason: "new finding"},
	}

	_, err := a.Aggregate(context.Background(), req, aggregatePlan(), issues, &models.CrossFileAnalysis{})
	require.NoError(t, err)

	calls := client.Calls()
	require.Len(t, calls, 1)
	prompt := calls[0].Prompt
	assert.Contains(t, prompt, "Resolved in this update: 1")
	assert.Contains(t, prompt, "Newly found: 1")
}

func TestCountIncremental(t *testing.T) {
	previous := []models.PreviousIssue{
		{ID: "a", Status: models.StatusOpen},
		{ID: "b", Status: models.StatusResolved},
		{ID: "c", Status: models.StatusOpen},
	}
	issues := []models.ReviewIssue{
		{ID: "a", IsResolved: true}, // newly resolved
		{ID: "b", IsResolved: true}, // was already resolved
		{ID: "c"},                   // still open
		{ID: "d"},                   // brand new
		{Reason: "no id yet"},       // also new
	}

	counts := countIncremental(previous, issues)
	assert.Equal(t, 3, counts.Previous)
	assert.Equal(t, 5, counts.Total)
	assert.Equal(t, 1, counts.ResolvedNow)
	assert.Equal(t, 2, counts.NewlyFound)
}
