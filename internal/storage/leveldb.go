package storage

import (
	"encoding/json"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

// Key prefixes separate whole-value state blobs from append-only lists so
// the two namespaces cannot collide.
const (
	prefixState = "s|"
	prefixList  = "l|"
)

// LevelDBStateStore is a durable StateStore backed by a local LevelDB
// directory. LevelDB is single-writer, which matches the one-conversation-
// per-scope ownership model; a second conductor process on the same
// directory fails at open time rather than corrupting state.
type LevelDBStateStore struct {
	db *leveldb.DB
}

// OpenLevelDBStateStore opens (or creates) a LevelDB database at path.
func OpenLevelDBStateStore(path string) (*LevelDBStateStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening state store at %s: %w", path, err)
	}
	return &LevelDBStateStore{db: db}, nil
}

// Get loads the state blob at key.
func (s *LevelDBStateStore) Get(key string) (map[string]any, bool, error) {
	data, err := s.db.Get([]byte(prefixState+key), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading state at %s: %w", key, err)
	}

	var value map[string]any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, false, fmt.Errorf("decoding state at %s: %w", key, err)
	}
	return value, true, nil
}

// Put replaces the state blob at key.
func (s *LevelDBStateStore) Put(key string, value map[string]any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding state for %s: %w", key, err)
	}
	if err := s.db.Put([]byte(prefixState+key), data, nil); err != nil {
		return fmt.Errorf("writing state at %s: %w", key, err)
	}
	return nil
}

// AppendRecord appends one entry to the list at key. The list is stored
// as a single JSON value and rewritten whole, consistent with the
// whole-value write discipline of the store.
func (s *LevelDBStateStore) AppendRecord(key string, entry map[string]any) error {
	list, err := s.GetRecords(key)
	if err != nil {
		return err
	}
	list = append(list, entry)

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encoding list for %s: %w", key, err)
	}
	if err := s.db.Put([]byte(prefixList+key), data, nil); err != nil {
		return fmt.Errorf("writing list at %s: %w", key, err)
	}
	return nil
}

// GetRecords loads the list at key; never-written keys yield an empty list.
func (s *LevelDBStateStore) GetRecords(key string) ([]map[string]any, error) {
	data, err := s.db.Get([]byte(prefixList+key), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading list at %s: %w", key, err)
	}

	var list []map[string]any
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decoding list at %s: %w", key, err)
	}
	return list, nil
}

// Close closes the underlying database.
func (s *LevelDBStateStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing state store: %w", err)
	}
	return nil
}
