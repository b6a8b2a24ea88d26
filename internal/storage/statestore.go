// Package storage provides the key-value persistence layer for conductor
// state. Values are plain nested maps and slices that round-trip through
// JSON, so the state blob is transport and backend agnostic. Each key is
// read and written as a whole value; there are no partial writes.
//
// The store assumes a single writer per key: one planner conversation
// owns one (namespace, invocation) scope at a time. Sharing a scope
// across processes requires an external mutual-exclusion layer.
package storage

import (
	"fmt"
	"strings"
)

// StateKey identifies one manager's persisted state within the store.
type StateKey struct {
	Namespace    string
	Scope        string
	InvocationID string
	Manager      string
}

// String renders the composite state key for the task tree blob.
func (k StateKey) String() string {
	return strings.Join([]string{k.Namespace, k.Scope, k.InvocationID, k.Manager}, "::")
}

// RecordsKey is the key holding this manager's append-only audit log.
func (k StateKey) RecordsKey() string {
	return k.String() + "::records"
}

// PoolKey is the cross-invocation record pool shared by all managers in
// the namespace.
func (k StateKey) PoolKey() string {
	return strings.Join([]string{k.Namespace, k.Scope, "pool"}, "::")
}

// Validate rejects keys with empty components or components containing
// the "::" separator.
func (k StateKey) Validate() error {
	parts := map[string]string{
		"namespace":     k.Namespace,
		"scope":         k.Scope,
		"invocation_id": k.InvocationID,
		"manager":       k.Manager,
	}
	for name, v := range parts {
		if v == "" {
			return fmt.Errorf("state key %s must not be empty", name)
		}
		if strings.Contains(v, "::") {
			return fmt.Errorf("state key %s %q must not contain %q", name, v, "::")
		}
	}
	return nil
}

// StateStore is the persistence contract consumed by the task tree store
// and the execution controller. Get returns a deep copy; mutating the
// returned value never changes stored state until Put is called.
type StateStore interface {
	// Get loads the value at key. The second return is false when the key
	// has never been written.
	Get(key string) (map[string]any, bool, error)

	// Put replaces the whole value at key.
	Put(key string, value map[string]any) error

	// AppendRecord appends one entry to the append-only list stored at
	// key, creating the list if absent.
	AppendRecord(key string, entry map[string]any) error

	// GetRecords loads the list stored at key; empty when never written.
	GetRecords(key string) ([]map[string]any, error)

	// Close releases backend resources.
	Close() error
}
