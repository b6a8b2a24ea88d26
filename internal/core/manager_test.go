package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/valter-silva-au/conductor/internal/codec"
	"github.com/valter-silva-au/conductor/internal/storage"
	"github.com/valter-silva-au/conductor/internal/worker"
	"github.com/valter-silva-au/conductor/pkg/models"
)

// scriptedWorker reports a canned status for whatever task it is handed,
// echoing the task id back as valid JSON. With raw set, it returns that
// text verbatim instead; with fail set, Invoke errors.
type scriptedWorker struct {
	status models.TaskStatus
	raw    string
	fail   error

	calls []worker.Request
}

func (w *scriptedWorker) Invoke(_ context.Context, req worker.Request) (worker.Response, error) {
	w.calls = append(w.calls, req)
	if w.fail != nil {
		return worker.Response{}, w.fail
	}
	if w.raw != "" {
		return worker.Response{Text: w.raw}, nil
	}
	text := fmt.Sprintf(
		`{"task_id": %q, "status": %q, "output": "completed %s", "summary": "ok"}`,
		req.TaskID, w.status, req.TaskID,
	)
	return worker.Response{Text: text}, nil
}

func newTestManager(t *testing.T, w worker.Worker) *Manager {
	t.Helper()
	mgr, err := NewManager(ManagerOptions{
		Key:      testKey(),
		Store:    storage.NewMemoryStateStore(),
		Codec:    codec.New(codec.FormatJSON),
		Worker:   w,
		MaxTasks: 100,
	})
	if err != nil {
		t.Fatalf("creating manager: %v", err)
	}
	return mgr
}

func addTasks(t *testing.T, mgr *Manager, titles ...string) {
	t.Helper()
	for _, title := range titles {
		if _, err := mgr.Add(title, "description of "+title); err != nil {
			t.Fatalf("adding %q: %v", title, err)
		}
	}
}

func currentID(t *testing.T, mgr *Manager) string {
	t.Helper()
	cur, err := mgr.CurrentSubtask()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if cur == nil {
		return ""
	}
	return cur.ID
}

// Executing three tasks with an always-done worker walks the pointer to
// the end; a fresh add picks it back up.
func TestManager_ExecuteAllDoneThenAddResumes(t *testing.T) {
	w := &scriptedWorker{status: models.StatusDone}
	mgr := newTestManager(t, w)
	addTasks(t, mgr, "t0", "t1", "t2")

	if got := currentID(t, mgr); got != "0" {
		t.Fatalf("expected current 0, got %s", got)
	}

	for _, want := range []string{"0", "1", "2"} {
		outcome, err := mgr.ExecuteCurrent(context.Background())
		if err != nil {
			t.Fatalf("executing %s: %v", want, err)
		}
		if outcome.Record.TaskID != want {
			t.Errorf("expected record for %s, got %s", want, outcome.Record.TaskID)
		}
		if outcome.Record.Status != models.StatusDone {
			t.Errorf("expected done record, got %s", outcome.Record.Status)
		}
		if outcome.Malformed {
			t.Error("unexpected malformed flag")
		}
	}

	// Pointer rests on the terminal tail until new work arrives.
	if got := currentID(t, mgr); got != "2" {
		t.Errorf("expected pointer on 2, got %s", got)
	}

	addTasks(t, mgr, "t3")
	if got := currentID(t, mgr); got != "3" {
		t.Errorf("expected pointer to move to 3, got %s", got)
	}
}

// An incomplete result holds the pointer and demands decomposition; the
// decomposition makes the first child current.
func TestManager_IncompleteHoldsThenDecompose(t *testing.T) {
	w := &scriptedWorker{status: models.StatusIncomplete}
	mgr := newTestManager(t, w)
	addTasks(t, mgr, "t0", "t1")

	outcome, err := mgr.ExecuteCurrent(context.Background())
	if err != nil {
		t.Fatalf("executing: %v", err)
	}
	if outcome.Record.Status != models.StatusIncomplete {
		t.Fatalf("expected incomplete record, got %s", outcome.Record.Status)
	}
	if !strings.Contains(outcome.Action, "decomposed") {
		t.Errorf("expected decomposition guidance, got %q", outcome.Action)
	}
	if got := currentID(t, mgr); got != "0" {
		t.Fatalf("incomplete must hold the pointer, got %s", got)
	}

	inserted, err := mgr.Decompose("0", models.Decomposition{Subtasks: []models.SubtaskSpec{
		{Title: "sub.t1", Description: "sub.d1"},
		{Title: "sub.t2", Description: "sub.d2"},
	}})
	if err != nil {
		t.Fatalf("decomposing: %v", err)
	}
	if len(inserted) != 2 || inserted[0].ID != "0.1" {
		t.Fatalf("unexpected children: %+v", inserted)
	}
	if got := currentID(t, mgr); got != "0.1" {
		t.Errorf("expected current 0.1, got %s", got)
	}

	// Finish both children as done; the pointer should reach root task 1.
	w.status = models.StatusDone
	for _, want := range []string{"0.1", "0.2"} {
		outcome, err := mgr.ExecuteCurrent(context.Background())
		if err != nil {
			t.Fatalf("executing %s: %v", want, err)
		}
		if outcome.Record.TaskID != want {
			t.Errorf("expected record for %s, got %s", want, outcome.Record.TaskID)
		}
	}
	if got := currentID(t, mgr); got != "1" {
		t.Errorf("expected current 1 after children, got %s", got)
	}
}

// Unparseable worker output is recorded as incomplete with the malformed
// marker, never surfaced as an error.
func TestManager_MalformedOutputRecordedAsIncomplete(t *testing.T) {
	w := &scriptedWorker{raw: "this is not a valid TaskExecutionResult"}
	mgr := newTestManager(t, w)
	addTasks(t, mgr, "t0")

	outcome, err := mgr.ExecuteCurrent(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Malformed {
		t.Fatal("expected malformed flag")
	}
	rec := outcome.Record
	if rec.TaskID != "0" || rec.Status != models.StatusIncomplete {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Summary != MsgResultMalformed {
		t.Errorf("expected malformed marker summary, got %q", rec.Summary)
	}
	if !strings.Contains(rec.Output, "this is not a valid TaskExecutionResult") {
		t.Errorf("raw output lost: %q", rec.Output)
	}
	if got := currentID(t, mgr); got != "0" {
		t.Errorf("malformed result must hold the pointer, got %s", got)
	}
}

// A worker error is downgraded exactly like unparseable output.
func TestManager_WorkerErrorDowngradedToMalformed(t *testing.T) {
	w := &scriptedWorker{fail: errors.New("agent exploded")}
	mgr := newTestManager(t, w)
	addTasks(t, mgr, "t0")

	outcome, err := mgr.ExecuteCurrent(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Malformed {
		t.Fatal("expected malformed flag")
	}
	if !strings.Contains(outcome.Record.Output, "agent exploded") {
		t.Errorf("error text lost: %q", outcome.Record.Output)
	}
	if outcome.Record.Status != models.StatusIncomplete {
		t.Errorf("expected incomplete, got %s", outcome.Record.Status)
	}
}

// A syntactically valid result addressed at the wrong task id is not
// applied; it is downgraded to a malformed record for the current task.
func TestManager_WrongTaskIDDowngraded(t *testing.T) {
	w := &scriptedWorker{raw: `{"task_id": "99", "status": "done", "output": "o", "summary": "s"}`}
	mgr := newTestManager(t, w)
	addTasks(t, mgr, "t0")

	outcome, err := mgr.ExecuteCurrent(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Malformed {
		t.Fatal("expected malformed flag")
	}
	if outcome.Record.TaskID != "0" {
		t.Errorf("record must target the current task, got %s", outcome.Record.TaskID)
	}
	if got := currentID(t, mgr); got != "0" {
		t.Errorf("pointer moved on rejected result: %s", got)
	}
}

func TestManager_ExecuteWithEmptyTree(t *testing.T) {
	mgr := newTestManager(t, &scriptedWorker{status: models.StatusDone})

	_, err := mgr.ExecuteCurrent(context.Background())
	if !errors.Is(err, ErrNoActiveSubtasks) {
		t.Errorf("expected ErrNoActiveSubtasks, got %v", err)
	}
}

func TestManager_ExecuteWithoutWorker(t *testing.T) {
	mgr := newTestManager(t, nil)
	addTasks(t, mgr, "t0")

	_, err := mgr.ExecuteCurrent(context.Background())
	if err == nil || !strings.Contains(err.Error(), "no worker configured") {
		t.Errorf("expected no-worker error, got %v", err)
	}
}

func TestManager_DecomposeWrongIDRejectedWithoutMutation(t *testing.T) {
	mgr := newTestManager(t, &scriptedWorker{status: models.StatusDone})
	addTasks(t, mgr, "t0", "t1")

	_, err := mgr.Decompose("1", models.Decomposition{Subtasks: []models.SubtaskSpec{
		{Title: "c", Description: "d"},
	}})
	if err == nil {
		t.Fatal("expected not-current error")
	}
	if !strings.Contains(err.Error(), "1") || !strings.Contains(err.Error(), "0") {
		t.Errorf("error must name both ids, got %q", err.Error())
	}

	subtasks, err := mgr.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subtasks) != 2 {
		t.Errorf("tree mutated by rejected decompose: %d entries", len(subtasks))
	}
}

func TestManager_SkipValidationsAndAdvance(t *testing.T) {
	mgr := newTestManager(t, &scriptedWorker{status: models.StatusDone})
	addTasks(t, mgr, "t0", "t1")

	// Blank reason rejected.
	if _, err := mgr.Skip("0", "   "); !errors.Is(err, ErrSkipReasonEmpty) {
		t.Errorf("expected ErrSkipReasonEmpty, got %v", err)
	}

	// Wrong task id rejected.
	if _, err := mgr.Skip("1", "nope"); err == nil {
		t.Error("expected not-current error")
	}

	// Valid skip advances and records the reason.
	next, err := mgr.Skip("0", "redundant")
	if err != nil {
		t.Fatalf("skipping: %v", err)
	}
	if next == nil || next.ID != "1" {
		t.Fatalf("expected next subtask 1, got %+v", next)
	}

	subtasks, err := mgr.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if subtasks[0].Status != models.StatusSkipped {
		t.Errorf("expected 0 skipped, got %s", subtasks[0].Status)
	}

	records, err := mgr.Records()
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	last := records[len(records)-1]
	if last.TaskID != "0" || last.Status != models.StatusSkipped || last.Output != "redundant" {
		t.Errorf("unexpected skip record: %+v", last)
	}
}

func TestManager_RecordsAccumulateInCallOrder(t *testing.T) {
	mgr := newTestManager(t, &scriptedWorker{status: models.StatusDone})
	addTasks(t, mgr, "t0", "t1")

	for i := 0; i < 2; i++ {
		if _, err := mgr.ExecuteCurrent(context.Background()); err != nil {
			t.Fatalf("executing: %v", err)
		}
	}

	records, err := mgr.Records()
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].TaskID != "0" || records[1].TaskID != "1" {
		t.Errorf("records out of order: %s, %s", records[0].TaskID, records[1].TaskID)
	}
}

// Two managers in the same scope feed one pool; per-manager logs stay
// separate.
func TestManager_PoolSharedAcrossInvocations(t *testing.T) {
	store := storage.NewMemoryStateStore()
	newMgr := func(invocation string) *Manager {
		key := testKey()
		key.InvocationID = invocation
		mgr, err := NewManager(ManagerOptions{
			Key:      key,
			Store:    store,
			Codec:    codec.New(codec.FormatJSON),
			Worker:   &scriptedWorker{status: models.StatusDone},
			MaxTasks: 100,
		})
		if err != nil {
			t.Fatalf("creating manager: %v", err)
		}
		return mgr
	}

	a := newMgr("inv-a")
	b := newMgr("inv-b")
	addTasks(t, a, "a0")
	addTasks(t, b, "b0")

	if _, err := a.ExecuteCurrent(context.Background()); err != nil {
		t.Fatalf("executing a: %v", err)
	}
	if _, err := b.ExecuteCurrent(context.Background()); err != nil {
		t.Fatalf("executing b: %v", err)
	}

	own, err := a.Records()
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(own) != 1 {
		t.Errorf("expected 1 record in a's log, got %d", len(own))
	}

	pool, err := a.PoolRecords()
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if len(pool) != 2 {
		t.Errorf("expected 2 pool records, got %d", len(pool))
	}
}

func TestManager_AddRejectedAtLimit(t *testing.T) {
	mgr, err := NewManager(ManagerOptions{
		Key:      testKey(),
		Store:    storage.NewMemoryStateStore(),
		Codec:    codec.New(codec.FormatJSON),
		MaxTasks: 2,
	})
	if err != nil {
		t.Fatalf("creating manager: %v", err)
	}
	addTasks(t, mgr, "t0", "t1")

	if _, err := mgr.Add("t2", "d2"); !errors.Is(err, ErrTaskLimitReached) {
		t.Errorf("expected ErrTaskLimitReached, got %v", err)
	}
}

// The worker receives the formatted payload and the result-shape
// instructions, not just the bare task fields.
func TestManager_WorkerRequestCarriesPayload(t *testing.T) {
	w := &scriptedWorker{status: models.StatusDone}
	mgr := newTestManager(t, w)
	addTasks(t, mgr, "t0")

	if _, err := mgr.ExecuteCurrent(context.Background()); err != nil {
		t.Fatalf("executing: %v", err)
	}

	if len(w.calls) != 1 {
		t.Fatalf("expected 1 worker call, got %d", len(w.calls))
	}
	req := w.calls[0]
	if req.TaskID != "0" || req.Title != "t0" {
		t.Errorf("unexpected request identity: %+v", req)
	}
	payload, ok := req.Payload.(map[string]any)
	if !ok {
		t.Fatalf("json codec must hand the worker a map, got %T", req.Payload)
	}
	if payload["task_id"] != "0" {
		t.Errorf("unexpected payload: %#v", payload)
	}
	if !strings.Contains(req.Instructions, "```json") {
		t.Errorf("instructions missing shape example: %q", req.Instructions)
	}
}
