package core

import (
	"errors"
	"fmt"
)

// User-facing signals for the planner. These strings are part of the tool
// surface contract: planners pattern-match on them, so changes here are
// breaking changes.
const (
	MsgNoActiveSubtasks   = "No active subtasks. Use add_subtask to add a new subtask."
	MsgTaskLimitReached   = "You have reached the limit of available subtasks. Complete or decompose existing work first."
	MsgResultMalformed    = "Task result is malformed."
	MsgSkipReasonEmpty    = "Skip reason must not be empty."
	MsgEmptyDecomposition = "Decomposition must contain at least one subtask."
)

// Sentinel errors carrying the stable message strings.
var (
	ErrNoActiveSubtasks   = errors.New(MsgNoActiveSubtasks)
	ErrTaskLimitReached   = errors.New(MsgTaskLimitReached)
	ErrSkipReasonEmpty    = errors.New(MsgSkipReasonEmpty)
	ErrEmptyDecomposition = errors.New(MsgEmptyDecomposition)
)

// NotCurrentError reports an operation addressed at a task other than the
// current one, naming both ids.
func NotCurrentError(taskID, currentID string) error {
	return fmt.Errorf("Task %s is not the current task (current is %s). Check the current subtask to get the task_id.", taskID, currentID)
}

// NeedsDecompositionMessage is the guidance returned when an incomplete
// result holds the pointer in place.
func NeedsDecompositionMessage(taskID string) string {
	return fmt.Sprintf("Task %s is incomplete and must be decomposed before advancing.", taskID)
}
