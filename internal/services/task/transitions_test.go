package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []Status{
	StatusTodo, StatusInProgress, StatusInReview, StatusBlocked, StatusCompleted, StatusCancelled,
}

func TestCanTransition_NoReflexiveEdges(t *testing.T) {
	for _, s := range allStatuses {
		assert.False(t, CanTransition(s, s), "status %s must not transition to itself", s)
	}
}

func TestCanTransition_FromTodo(t *testing.T) {
	assert.True(t, CanTransition(StatusTodo, StatusInProgress))
	assert.True(t, CanTransition(StatusTodo, StatusCancelled))

	assert.False(t, CanTransition(StatusTodo, StatusInReview))
	assert.False(t, CanTransition(StatusTodo, StatusBlocked))
	assert.False(t, CanTransition(StatusTodo, StatusCompleted))
}

func TestCanTransition_BlockedCannotComplete(t *testing.T) {
	// A blocked task has to go back through in_progress before completion.
	assert.False(t, CanTransition(StatusBlocked, StatusCompleted))
	assert.False(t, CanTransition(StatusBlocked, StatusInReview))
	assert.False(t, CanTransition(StatusBlocked, StatusCancelled))

	assert.True(t, CanTransition(StatusBlocked, StatusTodo))
	assert.True(t, CanTransition(StatusBlocked, StatusInProgress))
	assert.True(t, CanTransition(StatusInProgress, StatusCompleted))
}

func TestCanTransition_TerminalStates(t *testing.T) {
	// Completed tasks can be sent back for review or reopened.
	assert.True(t, CanTransition(StatusCompleted, StatusInReview))
	assert.True(t, CanTransition(StatusCompleted, StatusTodo))
	assert.False(t, CanTransition(StatusCompleted, StatusInProgress))
	assert.False(t, CanTransition(StatusCompleted, StatusCancelled))

	// Cancelled tasks can only be reopened.
	assert.True(t, CanTransition(StatusCancelled, StatusTodo))
	for _, s := range allStatuses {
		if s == StatusTodo || s == StatusCancelled {
			continue
		}
		assert.False(t, CanTransition(StatusCancelled, s), "cancelled must not reach %s", s)
	}
}

func TestCanTransition_InReview(t *testing.T) {
	assert.True(t, CanTransition(StatusInReview, StatusCompleted))
	assert.True(t, CanTransition(StatusInReview, StatusInProgress))
	assert.True(t, CanTransition(StatusInReview, StatusTodo))
	assert.False(t, CanTransition(StatusInReview, StatusBlocked))
	assert.False(t, CanTransition(StatusInReview, StatusCancelled))
}

func TestCanTransition_UnknownStatus(t *testing.T) {
	assert.False(t, CanTransition(Status("archived"), StatusTodo))
	assert.False(t, CanTransition(StatusTodo, Status("archived")))
}

func TestValidPriority(t *testing.T) {
	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical} {
		assert.True(t, ValidPriority(p), "priority %s", p)
	}
	assert.False(t, ValidPriority(Priority("urgent")))
	assert.False(t, ValidPriority(Priority("")))
}

func TestValidType(t *testing.T) {
	for _, tt := range []Type{TypeTask, TypeBug, TypeFeature, TypeEpic} {
		assert.True(t, ValidType(tt), "type %s", tt)
	}
	assert.False(t, ValidType(Type("chore")))
	assert.False(t, ValidType(Type("")))
}

func TestAllowedTransitions(t *testing.T) {
	assert.ElementsMatch(t,
		[]Status{StatusInReview, StatusBlocked, StatusCompleted, StatusTodo},
		AllowedTransitions(StatusInProgress))
	assert.Empty(t, AllowedTransitions(Status("archived")))
}
