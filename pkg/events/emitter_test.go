package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/critique/pkg/models"
)

func TestEmitterOrderAndTermination(t *testing.T) {
	e := NewEmitter(8)
	e.Status(StateStage0Started, "")
	e.Progress(10, "")
	e.Status(StateStage1Started, "")
	e.Final(Event{Result: &models.ReviewResult{Comment: "done"}})

	var got []Event
	for ev := range e.Events() {
		got = append(got, ev)
	}
	require.Len(t, got, 4)
	assert.Equal(t, StateStage0Started, got[0].State)
	assert.Equal(t, 10, got[1].Percent)
	assert.Equal(t, StateStage1Started, got[2].State)
	assert.True(t, got[3].Terminal())
	assert.Equal(t, "done", got[3].Result.Comment)
}

func TestEmitterNoEventsAfterTerminal(t *testing.T) {
	e := NewEmitter(8)
	e.Error("boom")
	e.Status(StateCompleted, "")
	e.Progress(99, "")
	e.Final(Event{})

	var got []Event
	for ev := range e.Events() {
		got = append(got, ev)
	}
	require.Len(t, got, 1)
	assert.Equal(t, TypeError, got[0].Type)
	assert.Equal(t, "boom", got[0].Message)
}

func TestEmitterDropsWhenFull(t *testing.T) {
	e := NewEmitter(2)
	for i := 0; i < 10; i++ {
		e.Progress(i, "")
	}
	assert.Equal(t, 8, e.Dropped())

	// The terminal event still gets through.
	done := make(chan struct{})
	go func() {
		for range e.Events() {
		}
		close(done)
	}()
	e.Final(Event{})
	<-done
}

func TestProgressClamped(t *testing.T) {
	e := NewEmitter(4)
	e.Progress(-5, "")
	e.Progress(150, "")
	e.Final(Event{})

	var got []Event
	for ev := range e.Events() {
		got = append(got, ev)
	}
	require.Len(t, got, 3)
	assert.Equal(t, 0, got[0].Percent)
	assert.Equal(t, 100, got[1].Percent)
}
