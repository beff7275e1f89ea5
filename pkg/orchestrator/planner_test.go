package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/critique/pkg/llm"
	"github.com/codeready-toolchain/critique/pkg/models"
	"github.com/codeready-toolchain/critique/pkg/structured"
)

func TestPlanCoversEveryFile(t *testing.T) {
	client := &llm.StubClient{Responses: []string{`{
		"summary": "touches auth and billing",
		"file_groups": [
			{"priority": "critical", "rationale": "auth", "files": [{"path": "auth.py"}]}
		]
	}`}}
	p := NewPlanner(client, structured.NewDriver(client, 0))

	files := fileRecords("auth.py", "billing.py", "util.py")
	plan, err := p.Plan(context.Background(), reviewRequest(), files)
	require.NoError(t, err)

	require.Len(t, plan.Groups, 2)
	assert.Equal(t, models.PriorityCritical, plan.Groups[0].Priority, "priorities are normalized")

	uncategorized := plan.Groups[1]
	assert.Equal(t, models.PriorityMedium, uncategorized.Priority)
	assert.Equal(t, "uncategorized", uncategorized.Rationale)
	var paths []string
	for _, f := range uncategorized.Files {
		paths = append(paths, f.Path)
	}
	assert.ElementsMatch(t, []string{"billing.py", "util.py"}, paths)
}

func TestPlanSkippedFilesNotAppended(t *testing.T) {
	client := &llm.StubClient{Responses: []string{`{"summary": "s", "file_groups": []}`}}
	p := NewPlanner(client, structured.NewDriver(client, 0))

	files := fileRecords("a.py")
	files = append(files, &models.FileRecord{Path: "big.bin", Skipped: true})

	plan, err := p.Plan(context.Background(), reviewRequest(), files)
	require.NoError(t, err)
	require.Len(t, plan.Groups, 1)
	assert.Equal(t, "a.py", plan.Groups[0].Files[0].Path)
}

func TestPlanFailureIsFatal(t *testing.T) {
	client := &llm.StubClient{Responses: []string{`not json at all, and no braces either`}}
	p := NewPlanner(client, structured.NewDriver(client, 0))

	_, err := p.Plan(context.Background(), reviewRequest(), fileRecords("a.py"))
	require.Error(t, err)
	var sf *StageFailure
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, StagePlan, sf.Stage)
}
