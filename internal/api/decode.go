package api

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/nearlyhq/nearly-go/internal/model"
)

// The service's payload shapes are irregular across server versions:
// status and seenBy come and go, createdAt is sometimes RFC3339 and
// sometimes a unix number, poll and reactions are only present on
// messages that have them. Decoding goes through gjson so a missing or
// oddly-typed field degrades instead of failing the whole list.

// decodeMessages decodes a message-list response. The list may arrive
// bare or wrapped in a "messages"/"data" envelope.
func decodeMessages(body []byte, conversationID string) ([]model.Message, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("message list is not JSON: %w", ErrMalformed)
	}

	root := gjson.ParseBytes(body)
	list := root
	if !root.IsArray() {
		for _, key := range []string{"messages", "data"} {
			if candidate := root.Get(key); candidate.IsArray() {
				list = candidate
				break
			}
		}
		if !list.IsArray() {
			return nil, fmt.Errorf("message list has no array: %w", ErrMalformed)
		}
	}

	var messages []model.Message
	for _, item := range list.Array() {
		msg := decodeMessageValue(item, conversationID)
		if msg.ID == "" {
			continue // no id means nothing to merge on; skip the record
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// decodeMessage decodes a single message response (send echo).
func decodeMessage(body []byte, conversationID string) (model.Message, error) {
	if !gjson.ValidBytes(body) {
		return model.Message{}, fmt.Errorf("message is not JSON: %w", ErrMalformed)
	}

	root := gjson.ParseBytes(body)
	if data := root.Get("data"); data.Exists() && data.IsObject() {
		root = data
	}
	return decodeMessageValue(root, conversationID), nil
}

func decodeMessageValue(v gjson.Result, conversationID string) model.Message {
	msg := model.Message{
		ID:             v.Get("id").String(),
		ConversationID: conversationID,
		SenderID:       v.Get("senderId").String(),
		Content:        v.Get("content").String(),
		MediaURL:       v.Get("mediaUrl").String(),
		Kind:           model.ParseMessageKind(v.Get("messageType").String()),
		ReplyToID:      v.Get("replyToId").String(),
		CreatedAt:      decodeTimestamp(v.Get("createdAt")),
		Status:         model.ParseMessageStatus(v.Get("status").String()),
	}

	if seenBy := v.Get("seenBy"); seenBy.IsArray() {
		for _, s := range seenBy.Array() {
			if id := s.String(); id != "" {
				msg.SeenBy = append(msg.SeenBy, id)
			}
		}
	}

	if reactions := v.Get("reactions"); reactions.IsArray() {
		for _, r := range reactions.Array() {
			emoji := r.Get("emoji").String()
			userID := r.Get("userId").String()
			if emoji == "" || userID == "" {
				continue
			}
			msg.Reactions = append(msg.Reactions, model.Reaction{Emoji: emoji, UserID: userID})
		}
	}

	if poll := v.Get("poll"); poll.IsObject() {
		msg.Poll = decodePoll(poll)
		msg.Kind = model.MessagePoll
	}

	return msg
}

func decodePoll(v gjson.Result) *model.Poll {
	poll := &model.Poll{
		ID:        v.Get("id").String(),
		Question:  v.Get("question").String(),
		CreatedBy: v.Get("createdBy").String(),
	}

	for _, opt := range v.Get("options").Array() {
		option := model.PollOption{
			ID:   opt.Get("id").String(),
			Text: opt.Get("text").String(),
		}
		for _, voter := range opt.Get("voterIds").Array() {
			if id := voter.String(); id != "" {
				option.VoterIDs = append(option.VoterIDs, id)
			}
		}
		poll.Options = append(poll.Options, option)
	}

	return poll
}

// decodeTimestamp accepts RFC3339 strings and unix numbers in either
// seconds or milliseconds.
func decodeTimestamp(v gjson.Result) time.Time {
	switch v.Type {
	case gjson.String:
		if t, err := time.Parse(time.RFC3339, v.String()); err == nil {
			return t
		}
		return time.Time{}
	case gjson.Number:
		n := v.Int()
		if n > 1e12 {
			return time.UnixMilli(n)
		}
		if n > 0 {
			return time.Unix(n, 0)
		}
	}
	return time.Time{}
}

// decodeComments decodes a comment-list response.
func decodeComments(body []byte, entityID string) ([]model.Comment, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("comment list is not JSON: %w", ErrMalformed)
	}

	root := gjson.ParseBytes(body)
	list := root
	if !root.IsArray() {
		for _, key := range []string{"comments", "data"} {
			if candidate := root.Get(key); candidate.IsArray() {
				list = candidate
				break
			}
		}
		if !list.IsArray() {
			return nil, fmt.Errorf("comment list has no array: %w", ErrMalformed)
		}
	}

	var comments []model.Comment
	for _, item := range list.Array() {
		c := decodeCommentValue(item, entityID)
		if c.ID == "" {
			continue
		}
		comments = append(comments, c)
	}
	return comments, nil
}

func decodeComment(body []byte, entityID string) (model.Comment, error) {
	if !gjson.ValidBytes(body) {
		return model.Comment{}, fmt.Errorf("comment is not JSON: %w", ErrMalformed)
	}

	root := gjson.ParseBytes(body)
	if data := root.Get("data"); data.Exists() && data.IsObject() {
		root = data
	}
	return decodeCommentValue(root, entityID), nil
}

func decodeCommentValue(v gjson.Result, entityID string) model.Comment {
	return model.Comment{
		ID:              v.Get("id").String(),
		EntityID:        entityID,
		EntityKind:      v.Get("entityKind").String(),
		UserID:          v.Get("userId").String(),
		Content:         v.Get("content").String(),
		CreatedAt:       decodeTimestamp(v.Get("createdAt")),
		ParentCommentID: v.Get("parentCommentId").String(),
		LikesCount:      int(v.Get("likesCount").Int()),
	}
}
