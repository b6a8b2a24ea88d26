package models

import "fmt"

// ExecutionResult is the worker's report on one subtask. TaskID must match
// the current subtask's id for the result to be accepted.
type ExecutionResult struct {
	TaskID  string     `json:"task_id" yaml:"task_id"`
	Status  TaskStatus `json:"status" yaml:"status"`
	Output  string     `json:"output" yaml:"output"`
	Summary string     `json:"summary" yaml:"summary"`
}

// ExecutionResultFromMap attempts to construct an ExecutionResult from a
// generic decoded value. All four fields are required; status must be one
// of done, incomplete, or skipped. Scalar values decoded as non-strings
// (YAML turning "3" into an int, for example) are stringified.
func ExecutionResultFromMap(m map[string]any) (*ExecutionResult, error) {
	taskID, ok := stringField(m, "task_id")
	if !ok || taskID == "" {
		return nil, fmt.Errorf("missing or invalid task_id")
	}
	status, ok := stringField(m, "status")
	if !ok {
		return nil, fmt.Errorf("missing or invalid status")
	}
	if !ValidResultStatus(TaskStatus(status)) {
		return nil, fmt.Errorf("invalid result status %q", status)
	}
	output, ok := stringField(m, "output")
	if !ok {
		return nil, fmt.Errorf("missing or invalid output")
	}
	summary, ok := stringField(m, "summary")
	if !ok {
		return nil, fmt.Errorf("missing or invalid summary")
	}

	return &ExecutionResult{
		TaskID:  taskID,
		Status:  TaskStatus(status),
		Output:  output,
		Summary: summary,
	}, nil
}

// stringField extracts a scalar field as a string. Numeric and boolean
// scalars are stringified; maps, slices, and nil are rejected.
func stringField(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case int, int64, float64, bool:
		return fmt.Sprint(t), true
	default:
		return "", false
	}
}

// ExecutionRecord is an append-only audit entry merging a subtask snapshot
// with its execution result. Status reflects the subtask's state after the
// result was applied.
type ExecutionRecord struct {
	TaskID      string     `json:"task_id" yaml:"task_id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Status      TaskStatus `json:"status" yaml:"status"`
	Output      string     `json:"output" yaml:"output"`
	Summary     string     `json:"summary" yaml:"summary"`
}

// NewExecutionRecord merges a subtask snapshot and its result into one
// audit record. The duplicate task_id is collapsed; the result's status
// wins since it reflects the applied transition.
func NewExecutionRecord(s Subtask, r ExecutionResult) ExecutionRecord {
	return ExecutionRecord{
		TaskID:      s.ID,
		Title:       s.Title,
		Description: s.Description,
		Status:      r.Status,
		Output:      r.Output,
		Summary:     r.Summary,
	}
}
