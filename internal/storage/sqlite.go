package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nearlyhq/nearly-go/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS toggle_sets (
	key TEXT PRIMARY KEY,
	ids TEXT NOT NULL
);
`

// SQLiteStore is the durable ToggleStore implementation. The on-disk
// layout is one row per namespaced key holding a JSON array of entity
// ids; the layout is additive-only across client versions. All sets
// are held in memory and written through on mutation.
type SQLiteStore struct {
	db *sqlx.DB

	mu   sync.RWMutex
	sets map[string]map[string]struct{} // storage key -> id set
}

// OpenSQLite opens (creating if needed) the store at path and loads
// all sets into memory.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &SQLiteStore{
		db:   db,
		sets: make(map[string]map[string]struct{}),
	}

	if err := s.loadAll(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load toggle sets: %w", err)
	}

	return s, nil
}

type toggleRow struct {
	Key string `db:"key"`
	IDs string `db:"ids"`
}

func (s *SQLiteStore) loadAll() error {
	var rows []toggleRow
	if err := s.db.Select(&rows, `SELECT key, ids FROM toggle_sets`); err != nil {
		return err
	}

	for _, row := range rows {
		var ids []string
		if err := json.Unmarshal([]byte(row.IDs), &ids); err != nil {
			return fmt.Errorf("corrupt toggle set %q: %w", row.Key, err)
		}
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		s.sets[row.Key] = set
	}

	return nil
}

// Has reports whether id is a member of the kind's set.
func (s *SQLiteStore) Has(kind model.ToggleKind, id string) bool {
	key, err := kind.StorageKey()
	if err != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sets[key][id]
	return ok
}

// All returns the kind's members sorted ascending.
func (s *SQLiteStore) All(kind model.ToggleKind) []string {
	key, err := kind.StorageKey()
	if err != nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedIDs(s.sets[key])
}

// Add inserts id into the kind's set, persisting before the change
// becomes visible to readers.
func (s *SQLiteStore) Add(kind model.ToggleKind, id string) error {
	return s.mutate(kind, id, true)
}

// Remove deletes id from the kind's set, persisting before the change
// becomes visible to readers.
func (s *SQLiteStore) Remove(kind model.ToggleKind, id string) error {
	return s.mutate(kind, id, false)
}

func (s *SQLiteStore) mutate(kind model.ToggleKind, id string, add bool) error {
	key, err := kind.StorageKey()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.sets[key]
	if _, ok := set[id]; ok == add {
		return nil // already in the requested state
	}

	// Build the next membership and persist it first; the in-memory
	// set only moves once the disk write succeeded.
	next := make(map[string]struct{}, len(set)+1)
	for member := range set {
		next[member] = struct{}{}
	}
	if add {
		next[id] = struct{}{}
	} else {
		delete(next, id)
	}

	payload, err := json.Marshal(sortedIDs(next))
	if err != nil {
		return fmt.Errorf("failed to encode toggle set %q: %w", key, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO toggle_sets (key, ids) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET ids = excluded.ids`,
		key, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to persist toggle set %q: %w", key, err)
	}

	s.sets[key] = next
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
