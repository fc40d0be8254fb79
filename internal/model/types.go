package model

import (
	"fmt"
	"time"
)

// ToggleKind identifies one durable membership set (liked posts,
// followed users, ...). The zero value is not a valid kind.
type ToggleKind string

const (
	KindLikedActivity ToggleKind = "liked_activity"
	KindLikedPost     ToggleKind = "liked_post"
	KindLikedEvent    ToggleKind = "liked_event"
	KindSavedPost     ToggleKind = "saved_post"
	KindSavedEvent    ToggleKind = "saved_event"
	KindSavedShot     ToggleKind = "saved_shot"
	KindFollowing     ToggleKind = "following"
	KindPendingFollow ToggleKind = "pending_follow"
)

// storageKeys maps each kind to its on-device key. Keys are part of the
// persisted layout and must stay backward-compatible (additive only).
var storageKeys = map[ToggleKind]string{
	KindLikedActivity: "liked_activities",
	KindLikedPost:     "liked_posts",
	KindLikedEvent:    "liked_events",
	KindSavedPost:     "saved_posts",
	KindSavedEvent:    "saved_events",
	KindSavedShot:     "saved_shots",
	KindFollowing:     "following",
	KindPendingFollow: "pending_follows",
}

// StorageKey returns the stable namespaced key for this kind.
func (k ToggleKind) StorageKey() (string, error) {
	key, ok := storageKeys[k]
	if !ok {
		return "", fmt.Errorf("unknown toggle kind: %s", k)
	}
	return key, nil
}

// Valid reports whether k is a known toggle kind.
func (k ToggleKind) Valid() bool {
	_, ok := storageKeys[k]
	return ok
}

// MessageStatus is a message's delivery state. Sending through Seen
// form a monotonic chain; Failed is a terminal state for placeholders
// that never correlated with a server echo and sits outside the chain.
type MessageStatus int

const (
	StatusSending MessageStatus = iota
	StatusSent
	StatusDelivered
	StatusSeen
	StatusFailed
)

func (s MessageStatus) String() string {
	switch s {
	case StatusSending:
		return "sending"
	case StatusSent:
		return "sent"
	case StatusDelivered:
		return "delivered"
	case StatusSeen:
		return "seen"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseMessageStatus maps a wire status string to a MessageStatus.
// Unknown or empty strings map to StatusSent, the lowest status a
// server-confirmed message can hold.
func ParseMessageStatus(s string) MessageStatus {
	switch s {
	case "sent":
		return StatusSent
	case "delivered":
		return StatusDelivered
	case "seen":
		return StatusSeen
	default:
		return StatusSent
	}
}

// MaxStatus returns the higher of two statuses on the monotonic chain.
// Failed never wins against a confirmed status: a server report always
// supersedes a local failure guess.
func MaxStatus(a, b MessageStatus) MessageStatus {
	if a == StatusFailed {
		return b
	}
	if b == StatusFailed {
		return a
	}
	if a > b {
		return a
	}
	return b
}

// MessageKind is the payload type of a message.
type MessageKind string

const (
	MessageText  MessageKind = "text"
	MessageImage MessageKind = "image"
	MessageVideo MessageKind = "video"
	MessagePoll  MessageKind = "poll"
)

// ParseMessageKind maps a wire messageType to a MessageKind, defaulting
// to text for unknown values.
func ParseMessageKind(s string) MessageKind {
	switch MessageKind(s) {
	case MessageImage, MessageVideo, MessagePoll:
		return MessageKind(s)
	default:
		return MessageText
	}
}

// Message is one conversation message. Identity is tagged: a local
// placeholder carries only TempID, a server-confirmed record carries
// only ID. Correlation replaces a placeholder rather than mutating it.
type Message struct {
	ID     string // server-assigned, empty while sending
	TempID string // client-generated, empty once confirmed

	ConversationID string
	SenderID       string
	Content        string
	MediaURL       string
	Kind           MessageKind
	ReplyToID      string
	CreatedAt      time.Time
	Status         MessageStatus

	// SeenBy lists user ids that have seen the message (group
	// conversations only; the server omits it for direct ones).
	SeenBy []string

	Reactions []Reaction
	Poll      *Poll
}

// Confirmed reports whether the message carries a server id.
func (m *Message) Confirmed() bool {
	return m.ID != ""
}

// Key returns the identity to deduplicate on: the server id when
// confirmed, the temp id otherwise.
func (m *Message) Key() string {
	if m.ID != "" {
		return m.ID
	}
	return m.TempID
}

// ConversationKind distinguishes direct from group conversations.
type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
)

// Conversation is the sync engine's unit of work. Direct conversation
// ids are derived from the unordered participant pair; group ids are
// the group id. Conversations are created lazily on first open and
// never destroyed by the client.
type Conversation struct {
	ID             string
	Kind           ConversationKind
	ParticipantIDs []string
	LastSyncedAt   time.Time
}

// DirectConversationID derives the stable id for a direct conversation
// from the unordered pair of participant ids. Both peers derive the
// same id regardless of argument order.
func DirectConversationID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "dm:" + a + ":" + b
}

// Comment is one flat comment record. A comment with no
// ParentCommentID is a root; replies reference a root's id.
type Comment struct {
	ID              string
	EntityID        string
	EntityKind      string
	UserID          string
	Content         string
	CreatedAt       time.Time
	ParentCommentID string
	LikesCount      int
}

// IsRoot reports whether the comment is a top-level comment.
func (c *Comment) IsRoot() bool {
	return c.ParentCommentID == ""
}

// PollOption is one choice in a poll with the set of users who chose it.
type PollOption struct {
	ID       string
	Text     string
	VoterIDs []string
}

// Poll is a single-choice poll. A user id appears in at most one
// option's VoterIDs across the whole poll; votes are permanent.
type Poll struct {
	ID        string
	Question  string
	Options   []PollOption
	CreatedBy string
}

// TotalVotes returns the sum of voters across all options.
func (p *Poll) TotalVotes() int {
	total := 0
	for _, opt := range p.Options {
		total += len(opt.VoterIDs)
	}
	return total
}

// VotedOption returns the id of the option userID voted for, or "" if
// the user has not voted.
func (p *Poll) VotedOption(userID string) string {
	for _, opt := range p.Options {
		for _, v := range opt.VoterIDs {
			if v == userID {
				return opt.ID
			}
		}
	}
	return ""
}

// Reaction is an emoji reaction on a message. At most one reaction per
// (message, user) pair; a new emoji from the same user replaces the old.
type Reaction struct {
	Emoji  string
	UserID string
}

// FollowState is the client's relationship with a target user.
type FollowState string

const (
	FollowNone      FollowState = "none"
	FollowPending   FollowState = "pending"
	FollowFollowing FollowState = "following"
)

// ParseFollowStatus maps the follow endpoint's status discriminator to
// a FollowState.
func ParseFollowStatus(s string) (FollowState, error) {
	switch s {
	case "followed":
		return FollowFollowing, nil
	case "requested":
		return FollowPending, nil
	default:
		return FollowNone, fmt.Errorf("unknown follow status: %q", s)
	}
}
