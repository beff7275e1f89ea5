package orchestrator

import (
	"errors"
	"fmt"
)

// Stage names used in failures and events.
const (
	StagePlan      = "stage_0"
	StageBatch     = "batching"
	StageReview    = "stage_1"
	StageVerify    = "stage_1_5"
	StageReconcile = "reconcile"
	StageCrossFile = "stage_2"
	StageAggregate = "stage_3"
)

// StageFailure is request-fatal: a stage could not produce its output.
type StageFailure struct {
	Stage string
	Cause error
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Cause)
}

func (e *StageFailure) Unwrap() error { return e.Cause }

// BatchFailure is isolated to one Stage-1 batch: logged, zero issues, the
// wave continues.
type BatchFailure struct {
	BatchIndex int
	Cause      error
}

func (e *BatchFailure) Error() string {
	return fmt.Sprintf("batch %d failed: %v", e.BatchIndex, e.Cause)
}

func (e *BatchFailure) Unwrap() error { return e.Cause }

// ErrCancelled reports cooperative cancellation from the caller.
var ErrCancelled = errors.New("review cancelled")

func stageFailure(stage string, err error) error {
	var sf *StageFailure
	if errors.As(err, &sf) {
		return err
	}
	return &StageFailure{Stage: stage, Cause: err}
}
