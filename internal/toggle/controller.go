// Package toggle implements the optimistic mutation controller for
// like/save/follow actions: local state flips first, the remote call
// follows, and a remote failure reverses the flip exactly. There is no
// automatic retry; the user re-invokes the action after a failure.
package toggle

import (
	"context"
	"fmt"

	"github.com/nearlyhq/nearly-go/internal/metrics"
	"github.com/nearlyhq/nearly-go/internal/model"
	"github.com/nearlyhq/nearly-go/internal/ops"
	"github.com/nearlyhq/nearly-go/internal/storage"
)

// Counter adjusts a UI-visible count (like count, save count) by
// delta. The controller calls it optimistically and again with the
// opposite sign on revert.
type Counter func(delta int)

// RevertedError reports that an optimistic mutation was rolled back
// after the remote call failed. Local state equals its pre-call value;
// the failure is toast-level, not fatal.
type RevertedError struct {
	Kind model.ToggleKind
	ID   string
	Err  error
}

func (e *RevertedError) Error() string {
	return fmt.Sprintf("%s %s reverted: %v", e.Kind, e.ID, e.Err)
}

func (e *RevertedError) Unwrap() error {
	return e.Err
}

// Controller applies toggle-style actions exactly once per "on"
// transition, backed by the durable toggle store.
type Controller struct {
	store storage.ToggleStore
	log   *ops.Logger
}

// NewController creates a controller over the given store.
func NewController(store storage.ToggleStore, log *ops.Logger) *Controller {
	return &Controller{
		store: store,
		log:   log.WithComponent("toggle"),
	}
}

// Apply performs a turn-on action (like, save). If the id is already
// in the set the call is a no-op and the remote is never invoked;
// this is what absorbs rapid repeated taps. Otherwise the store and
// counter flip before the remote call, and flip back if it fails.
//
// Store write failures propagate as-is: once the durable layer
// misbehaves no local invariant can be trusted.
func (c *Controller) Apply(ctx context.Context, kind model.ToggleKind, id string, counter Counter, remote func(context.Context) error) error {
	if c.store.Has(kind, id) {
		return nil // already on, duplicate tap
	}

	if counter != nil {
		counter(1)
	}
	if err := c.store.Add(kind, id); err != nil {
		c.log.LogStoreOperation("add", string(kind), err)
		if counter != nil {
			counter(-1)
		}
		return err
	}
	c.log.LogStoreOperation("add", string(kind), nil)

	if err := remote(ctx); err != nil {
		if removeErr := c.store.Remove(kind, id); removeErr != nil {
			c.log.LogStoreOperation("remove", string(kind), removeErr)
			return removeErr
		}
		if counter != nil {
			counter(-1)
		}
		metrics.OptimisticReverts.WithLabelValues(string(kind)).Inc()
		c.log.LogRevert(string(kind), id, err)
		return &RevertedError{Kind: kind, ID: id, Err: err}
	}

	metrics.OptimisticApplies.WithLabelValues(string(kind)).Inc()
	return nil
}

// Revoke performs the turn-off mirror of Apply (unlike, unsave).
func (c *Controller) Revoke(ctx context.Context, kind model.ToggleKind, id string, counter Counter, remote func(context.Context) error) error {
	if !c.store.Has(kind, id) {
		return nil // already off
	}

	if counter != nil {
		counter(-1)
	}
	if err := c.store.Remove(kind, id); err != nil {
		c.log.LogStoreOperation("remove", string(kind), err)
		if counter != nil {
			counter(1)
		}
		return err
	}
	c.log.LogStoreOperation("remove", string(kind), nil)

	if err := remote(ctx); err != nil {
		if addErr := c.store.Add(kind, id); addErr != nil {
			c.log.LogStoreOperation("add", string(kind), addErr)
			return addErr
		}
		if counter != nil {
			counter(1)
		}
		metrics.OptimisticReverts.WithLabelValues(string(kind)).Inc()
		c.log.LogRevert(string(kind), id, err)
		return &RevertedError{Kind: kind, ID: id, Err: err}
	}

	metrics.OptimisticApplies.WithLabelValues(string(kind)).Inc()
	return nil
}
