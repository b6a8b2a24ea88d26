package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/valter-silva-au/conductor/internal/codec"
	"github.com/valter-silva-au/conductor/internal/storage"
	"github.com/valter-silva-au/conductor/internal/worker"
	"github.com/valter-silva-au/conductor/pkg/models"
)

// EventSink receives orchestration events. Defining it here keeps core
// independent of the observability package; implementations may drop
// events, and a nil sink disables them entirely.
type EventSink interface {
	Emit(eventType, taskID, message string, data map[string]any)
}

// DefaultMaxTasks is the subtask ceiling applied when the configuration
// does not set one.
const DefaultMaxTasks = 15

// ManagerOptions collects the dependencies of a Manager. Store, Key, and
// Codec are required; Worker may be nil for planner-only surfaces that
// never execute, and Events may be nil to disable event emission.
type ManagerOptions struct {
	Key      storage.StateKey
	Store    storage.StateStore
	Codec    codec.Codec
	Worker   worker.Worker
	MaxTasks int
	TypeHint bool
	Events   EventSink
}

// Manager is the execution controller: it owns the current-pointer state
// machine, drives the execute/parse/transition/advance cycle, and appends
// the audit trail. All state passes through load-mutate-save on the tree
// store; the manager itself is stateless between calls.
type Manager struct {
	key      storage.StateKey
	store    storage.StateStore
	trees    *TreeStore
	codec    codec.Codec
	worker   worker.Worker
	maxTasks int
	typeHint bool
	events   EventSink
}

// NewManager validates the options and builds a Manager.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("creating manager: state store is required")
	}
	trees, err := NewTreeStore(opts.Store, opts.Key)
	if err != nil {
		return nil, fmt.Errorf("creating manager: %w", err)
	}
	maxTasks := opts.MaxTasks
	if maxTasks <= 0 {
		maxTasks = DefaultMaxTasks
	}
	return &Manager{
		key:      opts.Key,
		store:    opts.Store,
		trees:    trees,
		codec:    opts.Codec,
		worker:   opts.Worker,
		maxTasks: maxTasks,
		typeHint: opts.TypeHint,
		events:   opts.Events,
	}, nil
}

// Codec returns the wire codec the manager formats and parses with.
func (m *Manager) Codec() codec.Codec {
	return m.codec
}

// Key returns the composite state key the manager persists under.
func (m *Manager) Key() storage.StateKey {
	return m.key
}

// Add appends a new root subtask and returns it.
func (m *Manager) Add(title, description string) (*models.Subtask, error) {
	tree, err := m.trees.Load()
	if err != nil {
		return nil, err
	}
	sub, err := tree.Add(models.SubtaskSpec{Title: title, Description: description}, m.maxTasks)
	if err != nil {
		return nil, err
	}
	if err := m.trees.Save(tree); err != nil {
		return nil, err
	}
	m.emit("subtask.added", sub.ID, sub.Title, nil)
	return sub, nil
}

// List returns the full subtask sequence in order.
func (m *Manager) List() ([]models.Subtask, error) {
	tree, err := m.trees.Load()
	if err != nil {
		return nil, err
	}
	return tree.Subtasks, nil
}

// CurrentSubtask returns the subtask under the pointer, or nil when the
// tree is empty or every task is terminal with no successor.
func (m *Manager) CurrentSubtask() (*models.Subtask, error) {
	tree, err := m.trees.Load()
	if err != nil {
		return nil, err
	}
	cur := tree.Current()
	if cur == nil {
		return nil, nil
	}
	c := *cur
	return &c, nil
}

// ExecuteOutcome is the result of one execute cycle. Record is always
// populated; Malformed marks records synthesized from unusable worker
// output; Action carries guidance for the planner when the pointer could
// not advance.
type ExecuteOutcome struct {
	Record    models.ExecutionRecord
	Action    string
	Malformed bool
}

// ExecuteCurrent runs one execute cycle against the current subtask:
// format the task, invoke the worker, parse and validate the result,
// apply the status transition, append the audit record, and advance or
// hold the pointer.
//
// Worker misbehavior is never an error return. A worker failure,
// unparseable output, or a result addressed at the wrong task id is
// downgraded to a synthesized incomplete result carrying the raw output
// and the malformed marker, so the planner can decompose or retry.
func (m *Manager) ExecuteCurrent(ctx context.Context) (*ExecuteOutcome, error) {
	tree, err := m.trees.Load()
	if err != nil {
		return nil, err
	}
	cur := tree.Current()
	if cur == nil {
		return nil, ErrNoActiveSubtasks
	}
	if m.worker == nil {
		return nil, fmt.Errorf("executing subtask %s: no worker configured", cur.ID)
	}

	result, malformed := m.runWorker(ctx, *cur)

	// Same-status results (incomplete reported twice) are a no-op; only
	// genuine transitions go through the table.
	if result.Status != cur.Status {
		if cur.CanTransition(result.Status) {
			if err := cur.TransitionTo(result.Status); err != nil {
				return nil, fmt.Errorf("executing subtask %s: %w", cur.ID, err)
			}
		} else {
			// A terminal or otherwise locked task cannot absorb the
			// reported status; keep the record honest about worker intent
			// but do not corrupt the tree.
			result.Status = cur.Status
		}
	}

	record := models.NewExecutionRecord(*cur, *result)
	if err := m.appendRecord(record); err != nil {
		return nil, fmt.Errorf("executing subtask %s: %w", cur.ID, err)
	}

	var action string
	if result.Status == models.StatusIncomplete {
		action = NeedsDecompositionMessage(cur.ID)
	} else if !tree.advance() {
		action = MsgNoActiveSubtasks
	}

	if err := m.trees.Save(tree); err != nil {
		return nil, fmt.Errorf("executing subtask %s: %w", record.TaskID, err)
	}

	m.emit("subtask.executed", record.TaskID, string(record.Status), map[string]any{
		"malformed": malformed,
	})
	if malformed {
		m.emit("result.malformed", record.TaskID, MsgResultMalformed, nil)
	}

	return &ExecuteOutcome{Record: record, Action: action, Malformed: malformed}, nil
}

// runWorker invokes the worker for one subtask and reduces whatever comes
// back to a validated ExecutionResult, synthesizing a malformed one when
// the response is unusable.
func (m *Manager) runWorker(ctx context.Context, cur models.Subtask) (*models.ExecutionResult, bool) {
	req := worker.Request{
		TaskID:       cur.ID,
		Title:        cur.Title,
		Description:  cur.Description,
		Payload:      m.codec.FormatSubtask(cur, m.typeHint),
		Instructions: m.codec.ResultShapeDescription(),
	}

	resp, err := m.worker.Invoke(ctx, req)
	if err != nil {
		return malformedResult(cur.ID, err.Error()), true
	}

	var result *models.ExecutionResult
	raw := resp.Text
	if resp.Data != nil {
		parsed, err := models.ExecutionResultFromMap(resp.Data)
		if err != nil {
			if data, jerr := json.Marshal(resp.Data); jerr == nil {
				raw = string(data)
			}
			return malformedResult(cur.ID, raw), true
		}
		result = parsed
	} else {
		result = codec.ParseTaskResult(raw)
	}

	if result == nil {
		return malformedResult(cur.ID, raw), true
	}
	if result.TaskID != cur.ID {
		return malformedResult(cur.ID, raw), true
	}
	return result, false
}

// malformedResult synthesizes the incomplete result recorded for unusable
// worker output. The raw output is preserved so nothing is lost.
func malformedResult(taskID, raw string) *models.ExecutionResult {
	return &models.ExecutionResult{
		TaskID:  taskID,
		Status:  models.StatusIncomplete,
		Output:  raw,
		Summary: MsgResultMalformed,
	}
}

// Decompose splits the current subtask into children. taskID must name
// the current subtask; the error for a mismatch names both ids and no
// mutation occurs.
func (m *Manager) Decompose(taskID string, d models.Decomposition) ([]models.Subtask, error) {
	tree, err := m.trees.Load()
	if err != nil {
		return nil, err
	}
	cur := tree.Current()
	if cur == nil {
		return nil, ErrNoActiveSubtasks
	}
	if taskID != cur.ID {
		return nil, NotCurrentError(taskID, cur.ID)
	}

	children, err := tree.DecomposeCurrent(d.Subtasks)
	if err != nil {
		return nil, err
	}
	if err := m.trees.Save(tree); err != nil {
		return nil, err
	}
	m.emit("subtask.decomposed", taskID, fmt.Sprintf("%d children", len(children)), nil)
	return children, nil
}

// Skip marks the current subtask skipped with a mandatory reason, records
// the decision with output=reason, and advances. Returns the new current
// subtask, or nil when no successor exists.
func (m *Manager) Skip(taskID, reason string) (*models.Subtask, error) {
	if isBlank(reason) {
		return nil, ErrSkipReasonEmpty
	}

	tree, err := m.trees.Load()
	if err != nil {
		return nil, err
	}
	cur := tree.Current()
	if cur == nil {
		return nil, ErrNoActiveSubtasks
	}
	if taskID != cur.ID {
		return nil, NotCurrentError(taskID, cur.ID)
	}
	if err := cur.TransitionTo(models.StatusSkipped); err != nil {
		return nil, fmt.Errorf("skipping subtask %s: %w", taskID, err)
	}

	record := models.NewExecutionRecord(*cur, models.ExecutionResult{
		TaskID:  cur.ID,
		Status:  models.StatusSkipped,
		Output:  reason,
		Summary: "Task skipped.",
	})
	if err := m.appendRecord(record); err != nil {
		return nil, fmt.Errorf("skipping subtask %s: %w", taskID, err)
	}

	tree.advance()
	if err := m.trees.Save(tree); err != nil {
		return nil, fmt.Errorf("skipping subtask %s: %w", taskID, err)
	}
	m.emit("subtask.skipped", taskID, reason, nil)

	next := tree.Current()
	if next == nil || next.ID == taskID {
		return nil, nil
	}
	n := *next
	return &n, nil
}

// Records returns this manager's audit log in append order.
func (m *Manager) Records() ([]models.ExecutionRecord, error) {
	return m.loadRecords(m.key.RecordsKey())
}

// PoolRecords returns the cross-invocation record pool for the namespace.
func (m *Manager) PoolRecords() ([]models.ExecutionRecord, error) {
	return m.loadRecords(m.key.PoolKey())
}

func (m *Manager) loadRecords(key string) ([]models.ExecutionRecord, error) {
	raw, err := m.store.GetRecords(key)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	records := make([]models.ExecutionRecord, 0, len(raw))
	for _, entry := range raw {
		data, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("loading records: re-encoding entry: %w", err)
		}
		var rec models.ExecutionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("loading records: decoding entry: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// appendRecord writes one execution record to the manager's audit log and
// to the shared pool. Pool entries carry the manager and invocation so
// cross-invocation readers can attribute them.
func (m *Manager) appendRecord(record models.ExecutionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		return fmt.Errorf("decoding record to map: %w", err)
	}

	if err := m.store.AppendRecord(m.key.RecordsKey(), entry); err != nil {
		return fmt.Errorf("appending record: %w", err)
	}

	poolEntry := make(map[string]any, len(entry)+2)
	for k, v := range entry {
		poolEntry[k] = v
	}
	poolEntry["manager"] = m.key.Manager
	poolEntry["invocation_id"] = m.key.InvocationID
	if err := m.store.AppendRecord(m.key.PoolKey(), poolEntry); err != nil {
		return fmt.Errorf("appending pool record: %w", err)
	}
	return nil
}

func (m *Manager) emit(eventType, taskID, message string, data map[string]any) {
	if m.events == nil {
		return
	}
	m.events.Emit(eventType, taskID, message, data)
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
