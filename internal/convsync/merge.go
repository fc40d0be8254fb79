package convsync

import (
	"sort"
	"time"

	"github.com/nearlyhq/nearly-go/internal/model"
)

// matchPlaceholder returns the index of the first unused fetched
// record that is the server echo for p, or -1. The server never
// returns the client temp id, so the match is by content identity:
// same sender, same content and media, created within the correlation
// window of the local enqueue. used marks records already claimed by
// another placeholder, so identical back-to-back sends each need their
// own echo.
func matchPlaceholder(p *placeholder, fetched []model.Message, window time.Duration, used []bool) int {
	for i := range fetched {
		if used[i] {
			continue
		}
		m := &fetched[i]
		if m.SenderID != p.msg.SenderID {
			continue
		}
		if m.Content != p.msg.Content || m.MediaURL != p.msg.MediaURL {
			continue
		}
		delta := m.CreatedAt.Sub(p.enqueuedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= window {
			return i
		}
	}
	return -1
}

// groupSeen reports whether every peer has seen the message: the
// distinct non-sender ids in SeenBy reach participantCount-1.
func groupSeen(m *model.Message, participantCount int) bool {
	if participantCount < 2 {
		return false
	}
	peers := make(map[string]struct{}, len(m.SeenBy))
	for _, id := range m.SeenBy {
		if id != "" && id != m.SenderID {
			peers[id] = struct{}{}
		}
	}
	return len(peers) >= participantCount-1
}

// sortMessages orders msgs oldest first. Ties on the timestamp break
// on the identity key, so the order is a strict total order and stable
// across cycles.
func sortMessages(msgs []model.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].Key() < msgs[j].Key()
	})
}

// BuildDayGroups splits an ordered message list into calendar-day
// groups. It is pure: the groups are recomputed wholesale from the
// input every call.
func BuildDayGroups(msgs []model.Message) []DayGroup {
	var groups []DayGroup
	for _, m := range msgs {
		day := dayOf(m.CreatedAt)
		if len(groups) == 0 || !groups[len(groups)-1].Date.Equal(day) {
			groups = append(groups, DayGroup{Date: day})
		}
		last := &groups[len(groups)-1]
		last.Messages = append(last.Messages, m)
	}
	return groups
}

// dayOf truncates t to its UTC calendar day. Normalizing to one
// location keeps a day from splitting into adjacent groups when the
// service mixes timestamp offsets within a list.
func dayOf(t time.Time) time.Time {
	y, m, d := t.In(time.UTC).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
