// Package aggregates turns flat collections polled from the service
// into render-ready structures: comment threads, poll results, and
// reaction groups. The builders are recomputed from the raw collection
// on every sync rather than maintained incrementally, so a re-run on
// the same input always yields the same output.
package aggregates

import (
	"sort"

	"github.com/nearlyhq/nearly-go/internal/model"
)

// Thread is one root comment with its ordered replies.
type Thread struct {
	Root    model.Comment
	Replies []model.Comment
}

// BuildThreads converts a flat, unordered comment collection into a
// two-level tree. Roots are ordered newest-first, replies oldest-first
// within their root. Replies whose parent id matches no root are
// dropped silently; a dangling reply is a data hiccup, not an error.
// Pure function of its input.
func BuildThreads(comments []model.Comment) []Thread {
	roots := make([]model.Comment, 0, len(comments))
	replies := make(map[string][]model.Comment)

	for _, c := range comments {
		if c.IsRoot() {
			roots = append(roots, c)
		} else {
			replies[c.ParentCommentID] = append(replies[c.ParentCommentID], c)
		}
	}

	// Newest discussion first; id breaks timestamp ties so the order
	// is total and stable across rebuilds.
	sort.SliceStable(roots, func(i, j int) bool {
		if !roots[i].CreatedAt.Equal(roots[j].CreatedAt) {
			return roots[i].CreatedAt.After(roots[j].CreatedAt)
		}
		return roots[i].ID > roots[j].ID
	})

	threads := make([]Thread, 0, len(roots))
	for _, root := range roots {
		group := replies[root.ID]
		sorted := make([]model.Comment, len(group))
		copy(sorted, group)
		sort.SliceStable(sorted, func(i, j int) bool {
			if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
				return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
			}
			return sorted[i].ID < sorted[j].ID
		})

		threads = append(threads, Thread{Root: root, Replies: sorted})
	}

	return threads
}

// ReplyCount returns the number of attached replies across all threads.
func ReplyCount(threads []Thread) int {
	total := 0
	for _, th := range threads {
		total += len(th.Replies)
	}
	return total
}
