package aggregates

import (
	"sort"
	"sync"

	"github.com/nearlyhq/nearly-go/internal/model"
)

// ReactionGroup is one emoji's display group on a message.
type ReactionGroup struct {
	Emoji   string
	Count   int
	UserIDs []string
}

// ReactionBoard collates emoji reactions per message with one slot per
// (message, user): a user's new emoji replaces their old one.
// Reactions are best-effort in this system, so the board has no error
// conditions of its own.
type ReactionBoard struct {
	mu sync.RWMutex
	// messageID -> userID -> emoji
	byMessage map[string]map[string]string
	// messageID -> user ids in first-reaction order, for stable display
	order map[string][]string
}

// NewReactionBoard creates an empty board.
func NewReactionBoard() *ReactionBoard {
	return &ReactionBoard{
		byMessage: make(map[string]map[string]string),
		order:     make(map[string][]string),
	}
}

// React records userID's reaction, replacing any prior emoji from the
// same user on the same message.
func (b *ReactionBoard) React(messageID, userID, emoji string) {
	if messageID == "" || userID == "" || emoji == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	users, ok := b.byMessage[messageID]
	if !ok {
		users = make(map[string]string)
		b.byMessage[messageID] = users
	}
	if _, seen := users[userID]; !seen {
		b.order[messageID] = append(b.order[messageID], userID)
	}
	users[userID] = emoji
}

// Merge folds a polled message's reaction list into the board.
// Applied after local React calls in any order, the last write per
// user wins.
func (b *ReactionBoard) Merge(messageID string, reactions []model.Reaction) {
	for _, r := range reactions {
		b.React(messageID, r.UserID, r.Emoji)
	}
}

// ReactionsFor returns the message's reactions, one per user, in
// first-reaction order.
func (b *ReactionBoard) ReactionsFor(messageID string) []model.Reaction {
	b.mu.RLock()
	defer b.mu.RUnlock()

	users := b.byMessage[messageID]
	if len(users) == 0 {
		return nil
	}

	reactions := make([]model.Reaction, 0, len(users))
	for _, userID := range b.order[messageID] {
		if emoji, ok := users[userID]; ok {
			reactions = append(reactions, model.Reaction{Emoji: emoji, UserID: userID})
		}
	}
	return reactions
}

// Grouped returns the message's reactions grouped by emoji for
// display, most popular first.
func (b *ReactionBoard) Grouped(messageID string) []ReactionGroup {
	reactions := b.ReactionsFor(messageID)
	if len(reactions) == 0 {
		return nil
	}

	byEmoji := make(map[string]*ReactionGroup)
	var emojiOrder []string
	for _, r := range reactions {
		group, ok := byEmoji[r.Emoji]
		if !ok {
			group = &ReactionGroup{Emoji: r.Emoji}
			byEmoji[r.Emoji] = group
			emojiOrder = append(emojiOrder, r.Emoji)
		}
		group.Count++
		group.UserIDs = append(group.UserIDs, r.UserID)
	}

	groups := make([]ReactionGroup, 0, len(byEmoji))
	for _, emoji := range emojiOrder {
		groups = append(groups, *byEmoji[emoji])
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Count > groups[j].Count
	})
	return groups
}
