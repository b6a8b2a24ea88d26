package models

import "testing"

func TestExecutionResultFromMap_Valid(t *testing.T) {
	res, err := ExecutionResultFromMap(map[string]any{
		"task_id": "3",
		"status":  "done",
		"output":  "did the thing",
		"summary": "ok",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TaskID != "3" || res.Status != StatusDone || res.Output != "did the thing" || res.Summary != "ok" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestExecutionResultFromMap_MissingField(t *testing.T) {
	base := map[string]any{
		"task_id": "3",
		"status":  "done",
		"output":  "o",
		"summary": "s",
	}
	for _, key := range []string{"task_id", "status", "output", "summary"} {
		m := make(map[string]any, len(base))
		for k, v := range base {
			m[k] = v
		}
		delete(m, key)
		if _, err := ExecutionResultFromMap(m); err == nil {
			t.Errorf("expected error when %s is missing", key)
		}
	}
}

func TestExecutionResultFromMap_InvalidStatus(t *testing.T) {
	for _, status := range []string{"new", "pending", "", "DONE"} {
		_, err := ExecutionResultFromMap(map[string]any{
			"task_id": "1",
			"status":  status,
			"output":  "o",
			"summary": "s",
		})
		if err == nil {
			t.Errorf("expected error for status %q", status)
		}
	}
}

func TestExecutionResultFromMap_StringifiesScalars(t *testing.T) {
	res, err := ExecutionResultFromMap(map[string]any{
		"task_id": 3,
		"status":  "done",
		"output":  42.5,
		"summary": true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TaskID != "3" {
		t.Errorf("expected task_id %q, got %q", "3", res.TaskID)
	}
	if res.Output != "42.5" {
		t.Errorf("expected output %q, got %q", "42.5", res.Output)
	}
	if res.Summary != "true" {
		t.Errorf("expected summary %q, got %q", "true", res.Summary)
	}
}

func TestExecutionResultFromMap_RejectsStructuredValues(t *testing.T) {
	for _, v := range []any{map[string]any{"x": 1}, []any{"x"}, nil} {
		_, err := ExecutionResultFromMap(map[string]any{
			"task_id": "1",
			"status":  "done",
			"output":  v,
			"summary": "s",
		})
		if err == nil {
			t.Errorf("expected error for output value %#v", v)
		}
	}
}

func TestNewExecutionRecord_MergesSnapshotAndResult(t *testing.T) {
	sub := Subtask{ID: "2", Title: "t", Description: "d", Status: StatusNew}
	res := ExecutionResult{TaskID: "2", Status: StatusDone, Output: "o", Summary: "s"}

	rec := NewExecutionRecord(sub, res)
	if rec.TaskID != "2" || rec.Title != "t" || rec.Description != "d" {
		t.Errorf("snapshot fields lost: %+v", rec)
	}
	if rec.Status != StatusDone || rec.Output != "o" || rec.Summary != "s" {
		t.Errorf("result fields lost: %+v", rec)
	}
}
