// Package events provides the per-request event stream: a bounded,
// append-only sequence of status/progress records terminated by exactly one
// final or error record.
package events

import "github.com/codeready-toolchain/critique/pkg/models"

// Type discriminates event records on the stream.
type Type string

const (
	TypeStatus   Type = "status"
	TypeProgress Type = "progress"
	TypeError    Type = "error"
	TypeFinal    Type = "final"
)

// State values for status events, one per stage boundary.
const (
	StateStage0Started  = "stage_0_started"
	StateStage0Complete = "stage_0_complete"
	StateBatching       = "batching"
	StateStage1Started  = "stage_1_started"
	StateStage1Complete = "stage_1_complete"
	StateVerifying      = "verifying"
	StateReconciling    = "reconciling"
	StateStage2Started  = "stage_2_started"
	StateStage2Complete = "stage_2_complete"
	StateStage3Started  = "stage_3_started"
	StateCompleted      = "completed"
)

// Event is one NDJSON record on the review stream.
type Event struct {
	Type    Type                 `json:"type"`
	State   string               `json:"state,omitempty"`
	Percent int                  `json:"percent,omitempty"`
	Message string               `json:"message,omitempty"`
	Result  *models.ReviewResult `json:"result,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == TypeFinal || e.Type == TypeError
}
