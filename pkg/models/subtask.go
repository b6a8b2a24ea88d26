// Package models defines the data model for the subtask orchestration core:
// subtasks with a dotted hierarchical id, execution results reported by a
// worker, and the audit records combining the two.
package models

import (
	"fmt"
	"regexp"
)

// TaskStatus represents the lifecycle state of a subtask.
type TaskStatus string

const (
	StatusNew        TaskStatus = "new"
	StatusDone       TaskStatus = "done"
	StatusIncomplete TaskStatus = "incomplete"
	StatusSkipped    TaskStatus = "skipped"
)

// statusTransitions is the allowed forward transition table. Done and
// skipped are terminal. An incomplete subtask is resolved by decomposing
// it into children; its own record only ever moves to done.
var statusTransitions = map[TaskStatus][]TaskStatus{
	StatusNew:        {StatusDone, StatusIncomplete, StatusSkipped},
	StatusIncomplete: {StatusDone},
	StatusDone:       {},
	StatusSkipped:    {},
}

// ValidStatus reports whether s is a known task status.
func ValidStatus(s TaskStatus) bool {
	_, ok := statusTransitions[s]
	return ok
}

// ValidResultStatus reports whether s is a status a worker may report.
// Workers never report "new".
func ValidResultStatus(s TaskStatus) bool {
	return s == StatusDone || s == StatusIncomplete || s == StatusSkipped
}

// subtaskIDPattern matches dotted-numeric hierarchical ids: "0", "3", "1.2", "0.1.4".
var subtaskIDPattern = regexp.MustCompile(`^\d+(\.\d+)*$`)

// ValidSubtaskID reports whether id is a well-formed dotted-numeric id.
func ValidSubtaskID(id string) bool {
	return subtaskIDPattern.MatchString(id)
}

// Subtask is one unit of plannable, executable work. Root subtasks carry
// sequential integer ids starting at 0; children of a decomposed subtask
// get "{parent}.{1..n}" in insertion order.
type Subtask struct {
	ID          string     `json:"task_id" yaml:"task_id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Status      TaskStatus `json:"status" yaml:"status"`
}

// CanTransition reports whether the subtask may move to the given status.
func (s *Subtask) CanTransition(to TaskStatus) bool {
	for _, allowed := range statusTransitions[s.Status] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionTo applies a status transition, enforcing the transition table.
func (s *Subtask) TransitionTo(to TaskStatus) error {
	if !s.CanTransition(to) {
		return fmt.Errorf("invalid transition %s -> %s for task %s", s.Status, to, s.ID)
	}
	s.Status = to
	return nil
}

// SubtaskSpec describes a subtask to be created via add or decompose.
type SubtaskSpec struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

// Decomposition is an ordered list of subtask specs produced when a
// planner breaks an incomplete subtask into smaller pieces.
type Decomposition struct {
	Subtasks []SubtaskSpec `json:"subtasks" yaml:"subtasks"`
}
