package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/valter-silva-au/conductor/internal/storage"
	"github.com/valter-silva-au/conductor/pkg/models"
)

// TaskTree is the ordered subtask sequence plus the single current
// pointer. The tree is the source of truth for planning state; it is
// loaded from and saved to a StateStore as a whole value around every
// mutation.
type TaskTree struct {
	Subtasks     []models.Subtask `json:"subtasks"`
	CurrentIndex *int             `json:"current_index"`
}

// Current returns the subtask under the pointer, or nil when the pointer
// is unset or out of bounds (stale persisted state is treated defensively,
// not as a crash).
func (t *TaskTree) Current() *models.Subtask {
	if t.CurrentIndex == nil {
		return nil
	}
	i := *t.CurrentIndex
	if i < 0 || i >= len(t.Subtasks) {
		return nil
	}
	return &t.Subtasks[i]
}

// nextRootID computes the next root-level id: the integer prefix of the
// last entry plus one, or the origin 0 for an empty tree.
func (t *TaskTree) nextRootID() string {
	if len(t.Subtasks) == 0 {
		return "0"
	}
	last := t.Subtasks[len(t.Subtasks)-1].ID
	root := strings.SplitN(last, ".", 2)[0]
	n, err := strconv.Atoi(root)
	if err != nil {
		// Ids are generated internally, so this indicates corrupted
		// persisted state; restart numbering after the list length.
		return strconv.Itoa(len(t.Subtasks))
	}
	return strconv.Itoa(n + 1)
}

// Add appends a new root subtask. The pointer is initialized on the first
// add; if it was resting on a terminal last task, it advances to the new
// one so the current subtask is always actionable when a successor exists.
// An incomplete current task holds the pointer: it must be decomposed, not
// bypassed by appending.
func (t *TaskTree) Add(spec models.SubtaskSpec, maxTasks int) (*models.Subtask, error) {
	if len(t.Subtasks) >= maxTasks {
		return nil, ErrTaskLimitReached
	}
	if strings.TrimSpace(spec.Title) == "" {
		return nil, fmt.Errorf("subtask title must not be empty")
	}
	if strings.TrimSpace(spec.Description) == "" {
		return nil, fmt.Errorf("subtask description must not be empty")
	}

	sub := models.Subtask{
		ID:          t.nextRootID(),
		Title:       spec.Title,
		Description: spec.Description,
		Status:      models.StatusNew,
	}
	t.Subtasks = append(t.Subtasks, sub)
	appended := len(t.Subtasks) - 1

	switch {
	case t.CurrentIndex == nil:
		t.CurrentIndex = &appended
	case *t.CurrentIndex == appended-1 && isTerminal(t.Subtasks[*t.CurrentIndex].Status):
		*t.CurrentIndex = appended
	}

	return &t.Subtasks[appended], nil
}

// DecomposeCurrent splices child subtasks {current.id}.{1..n} immediately
// after the current entry, keeping the parent in place as a record, and
// moves the pointer to the first child.
func (t *TaskTree) DecomposeCurrent(specs []models.SubtaskSpec) ([]models.Subtask, error) {
	cur := t.Current()
	if cur == nil {
		return nil, ErrNoActiveSubtasks
	}
	if len(specs) == 0 {
		return nil, ErrEmptyDecomposition
	}

	children := make([]models.Subtask, len(specs))
	for i, spec := range specs {
		children[i] = models.Subtask{
			ID:          fmt.Sprintf("%s.%d", cur.ID, i+1),
			Title:       spec.Title,
			Description: spec.Description,
			Status:      models.StatusNew,
		}
	}

	idx := *t.CurrentIndex
	tail := make([]models.Subtask, len(t.Subtasks[idx+1:]))
	copy(tail, t.Subtasks[idx+1:])
	t.Subtasks = append(t.Subtasks[:idx+1], append(children, tail...)...)

	first := idx + 1
	t.CurrentIndex = &first

	return children, nil
}

// advance moves the pointer to the successor if one exists, reporting
// whether it moved. The pointer never moves backward.
func (t *TaskTree) advance() bool {
	if t.CurrentIndex == nil {
		return false
	}
	if *t.CurrentIndex+1 >= len(t.Subtasks) {
		return false
	}
	*t.CurrentIndex++
	return true
}

func isTerminal(s models.TaskStatus) bool {
	return s == models.StatusDone || s == models.StatusSkipped
}

// TreeStore loads and saves a TaskTree under its composite state key.
// Persistence is explicit: callers load, mutate, and save; nothing is
// flushed implicitly.
type TreeStore struct {
	store storage.StateStore
	key   storage.StateKey
}

// NewTreeStore validates the key and binds a TaskTree to its slot in the
// state store.
func NewTreeStore(store storage.StateStore, key storage.StateKey) (*TreeStore, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("creating tree store: %w", err)
	}
	return &TreeStore{store: store, key: key}, nil
}

// Key returns the composite state key this store is bound to.
func (ts *TreeStore) Key() storage.StateKey {
	return ts.key
}

// Load reads the tree from the store. A never-written key yields an empty
// tree rather than an error.
func (ts *TreeStore) Load() (*TaskTree, error) {
	raw, ok, err := ts.store.Get(ts.key.String())
	if err != nil {
		return nil, fmt.Errorf("loading task tree: %w", err)
	}
	if !ok {
		return &TaskTree{}, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("loading task tree: re-encoding state: %w", err)
	}
	var tree TaskTree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("loading task tree: decoding state: %w", err)
	}
	return &tree, nil
}

// Save writes the tree back as a plain nested map.
func (ts *TreeStore) Save(tree *TaskTree) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("saving task tree: encoding: %w", err)
	}
	var value map[string]any
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("saving task tree: decoding to map: %w", err)
	}
	if err := ts.store.Put(ts.key.String(), value); err != nil {
		return fmt.Errorf("saving task tree: %w", err)
	}
	return nil
}
