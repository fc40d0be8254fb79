package toggle

import (
	"context"

	"github.com/nearlyhq/nearly-go/internal/metrics"
	"github.com/nearlyhq/nearly-go/internal/model"
	"github.com/nearlyhq/nearly-go/internal/storage"
)

// Follow is the three-state variant of Apply. The target lands in
// pending_follow optimistically; the remote call's discriminator
// decides whether it settles there (private target) or moves to
// following (public target). A remote failure returns the target to
// none. The store helper keeps the two sets mutually exclusive
// throughout.
func (c *Controller) Follow(ctx context.Context, targetID string, remote func(context.Context) (model.FollowState, error)) (model.FollowState, error) {
	if state := storage.FollowStateOf(c.store, targetID); state != model.FollowNone {
		return state, nil // already following or requested
	}

	if err := storage.SetFollowState(c.store, targetID, model.FollowPending); err != nil {
		return model.FollowNone, err
	}

	state, err := remote(ctx)
	if err != nil {
		if revertErr := storage.SetFollowState(c.store, targetID, model.FollowNone); revertErr != nil {
			return model.FollowNone, revertErr
		}
		metrics.OptimisticReverts.WithLabelValues(string(model.KindFollowing)).Inc()
		c.log.LogRevert(string(model.KindFollowing), targetID, err)
		return model.FollowNone, &RevertedError{Kind: model.KindFollowing, ID: targetID, Err: err}
	}

	if err := storage.SetFollowState(c.store, targetID, state); err != nil {
		return model.FollowNone, err
	}

	metrics.OptimisticApplies.WithLabelValues(string(model.KindFollowing)).Inc()
	return state, nil
}

// Unfollow transitions either follow state back to none, clearing
// both sets defensively, and restores the exact prior state if the
// remote call fails.
func (c *Controller) Unfollow(ctx context.Context, targetID string, remote func(context.Context) error) error {
	prior := storage.FollowStateOf(c.store, targetID)
	if prior == model.FollowNone {
		return nil
	}

	if err := storage.SetFollowState(c.store, targetID, model.FollowNone); err != nil {
		return err
	}

	if err := remote(ctx); err != nil {
		if revertErr := storage.SetFollowState(c.store, targetID, prior); revertErr != nil {
			return revertErr
		}
		metrics.OptimisticReverts.WithLabelValues(string(model.KindFollowing)).Inc()
		c.log.LogRevert(string(model.KindFollowing), targetID, err)
		return &RevertedError{Kind: model.KindFollowing, ID: targetID, Err: err}
	}

	metrics.OptimisticApplies.WithLabelValues(string(model.KindFollowing)).Inc()
	return nil
}
