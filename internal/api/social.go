package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/nearlyhq/nearly-go/internal/model"
)

// CommentDraft is the client-side payload for posting a comment.
type CommentDraft struct {
	UserID          string `json:"userId"`
	Content         string `json:"content"`
	ParentCommentID string `json:"parentCommentId,omitempty"`
}

// ListComments fetches the flat comment collection for an entity.
func (c *Client) ListComments(ctx context.Context, entityID string) ([]model.Comment, error) {
	path := fmt.Sprintf("/entities/%s/comments", url.PathEscape(entityID))
	body, err := c.get(ctx, "list_comments", path)
	if err != nil {
		return nil, err
	}
	return decodeComments(body, entityID)
}

// CreateComment posts a comment and returns the server echo.
func (c *Client) CreateComment(ctx context.Context, entityID string, draft CommentDraft) (model.Comment, error) {
	path := fmt.Sprintf("/entities/%s/comments", url.PathEscape(entityID))
	body, err := c.post(ctx, "create_comment", path, draft)
	if err != nil {
		return model.Comment{}, err
	}
	return decodeComment(body, entityID)
}

func (c *Client) socialAction(ctx context.Context, entityKind, id, action string) ([]byte, error) {
	path := fmt.Sprintf("/social/%s/%s/%s",
		url.PathEscape(entityKind), url.PathEscape(id), action)
	return c.post(ctx, "social_"+action, path, nil)
}

// Like records a like on an entity.
func (c *Client) Like(ctx context.Context, entityKind, id string) error {
	_, err := c.socialAction(ctx, entityKind, id, "like")
	return err
}

// Unlike removes a like from an entity.
func (c *Client) Unlike(ctx context.Context, entityKind, id string) error {
	_, err := c.socialAction(ctx, entityKind, id, "unlike")
	return err
}

// Save records a save on an entity.
func (c *Client) Save(ctx context.Context, entityKind, id string) error {
	_, err := c.socialAction(ctx, entityKind, id, "save")
	return err
}

// Unsave removes a save from an entity.
func (c *Client) Unsave(ctx context.Context, entityKind, id string) error {
	_, err := c.socialAction(ctx, entityKind, id, "unsave")
	return err
}

// Follow requests to follow a user. The service answers with a status
// discriminator: "followed" for public targets, "requested" for
// private ones.
func (c *Client) Follow(ctx context.Context, targetID string) (model.FollowState, error) {
	body, err := c.socialAction(ctx, "user", targetID, "follow")
	if err != nil {
		return model.FollowNone, err
	}

	status := gjson.GetBytes(body, "status").String()
	state, err := model.ParseFollowStatus(status)
	if err != nil {
		return model.FollowNone, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return state, nil
}

// Unfollow removes a follow or a pending follow request.
func (c *Client) Unfollow(ctx context.Context, targetID string) error {
	_, err := c.socialAction(ctx, "user", targetID, "unfollow")
	return err
}
