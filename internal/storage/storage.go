// Package storage provides the durable toggle store: namespaced
// key → JSON array-of-ids sets that survive process restart. Every
// mutation is written through before it becomes visible, so a
// successful Add or Remove is durable and immediately readable.
package storage

import (
	"fmt"

	"github.com/nearlyhq/nearly-go/internal/config"
	"github.com/nearlyhq/nearly-go/internal/model"
)

// ToggleStore is the injectable persistence interface for membership
// sets (liked, saved, followed, pending-follow). Reads are synchronous
// and local; a write error means the medium failed and the caller must
// surface it, the store never retries.
type ToggleStore interface {
	// Has reports whether id is a member of the kind's set.
	Has(kind model.ToggleKind, id string) bool
	// Add inserts id into the kind's set. Adding an existing member
	// is a no-op.
	Add(kind model.ToggleKind, id string) error
	// Remove deletes id from the kind's set. Removing a non-member
	// is a no-op.
	Remove(kind model.ToggleKind, id string) error
	// All returns the kind's members, sorted for determinism.
	All(kind model.ToggleKind) []string
	// Close releases the underlying storage.
	Close() error
}

// New creates a toggle store for the configured driver.
func New(cfg *config.Storage) (ToggleStore, error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
		}
		return s, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

// SetFollowState moves targetID to the set the state names, clearing
// both follow sets first so an id is never in following and
// pending_follow at the same time.
func SetFollowState(s ToggleStore, targetID string, state model.FollowState) error {
	if err := s.Remove(model.KindFollowing, targetID); err != nil {
		return err
	}
	if err := s.Remove(model.KindPendingFollow, targetID); err != nil {
		return err
	}

	switch state {
	case model.FollowFollowing:
		return s.Add(model.KindFollowing, targetID)
	case model.FollowPending:
		return s.Add(model.KindPendingFollow, targetID)
	case model.FollowNone:
		return nil
	default:
		return fmt.Errorf("unknown follow state: %s", state)
	}
}

// FollowStateOf reports the stored relationship with targetID.
func FollowStateOf(s ToggleStore, targetID string) model.FollowState {
	if s.Has(model.KindFollowing, targetID) {
		return model.FollowFollowing
	}
	if s.Has(model.KindPendingFollow, targetID) {
		return model.FollowPending
	}
	return model.FollowNone
}
