// Package convsync keeps one open conversation's message list in sync
// with the server over polling. The engine owns the rendered snapshot:
// optimistic placeholders are appended locally, correlated against
// polled server records, and delivery statuses only ever advance.
package convsync

import (
	"context"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/oklog/ulid/v2"

	"github.com/nearlyhq/nearly-go/internal/api"
	"github.com/nearlyhq/nearly-go/internal/config"
	"github.com/nearlyhq/nearly-go/internal/metrics"
	"github.com/nearlyhq/nearly-go/internal/model"
	"github.com/nearlyhq/nearly-go/internal/ops"
)

// API is the slice of the service client the engine needs.
type API interface {
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	SendMessage(ctx context.Context, conversationID string, draft api.MessageDraft) (model.Message, error)
	MarkSeenDirect(ctx context.Context, recipientID, senderID string) error
	MarkSeenGroup(ctx context.Context, conversationID, userID string) error
}

// Snapshot is the stable rendered view of a conversation. It is a
// value: the engine hands out copies, never its internal state.
type Snapshot struct {
	Messages []model.Message
	Days     []DayGroup
	TakenAt  time.Time
}

// DayGroup is one calendar day's slice of the ordered message list.
type DayGroup struct {
	Date     time.Time
	Messages []model.Message
}

// placeholder is a locally enqueued message awaiting its server echo.
type placeholder struct {
	msg        model.Message
	enqueuedAt time.Time
	cycles     int // completed sync cycles without a correlation
}

type sendJob struct {
	tempID string
	draft  api.MessageDraft
}

// Engine synchronizes a single open conversation. Create one per open
// view, Start it, and Stop it when the view closes.
type Engine struct {
	client    API
	conv      model.Conversation
	selfID    string
	interval  time.Duration
	failAfter int
	window    time.Duration
	log       *ops.Logger

	mu          sync.Mutex
	confirmed   map[string]model.Message // by server id
	pending     []*placeholder           // submission order
	snapshot    Snapshot
	lastMerged  time.Time            // stamp of the newest fetch merged so far
	seenCovered map[string]time.Time // newest peer message time mark-seen has covered

	debounced func(func())
	sendCh    chan sendJob

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates an engine for one conversation. selfID is the
// local user all seen/sent semantics are judged against.
func NewEngine(cfg *config.Sync, client API, conv model.Conversation, selfID string, log *ops.Logger) *Engine {
	return &Engine{
		client:      client,
		conv:        conv,
		selfID:      selfID,
		interval:    cfg.PollInterval(),
		failAfter:   cfg.FailAfterCycles,
		window:      cfg.CorrelationWindow(),
		log:         log.WithComponent("convsync").WithFields("conversation", conv.ID),
		confirmed:   make(map[string]model.Message),
		seenCovered: make(map[string]time.Time),
		debounced:   debounce.New(cfg.MarkSeenDebounce()),
		sendCh:      make(chan sendJob, 64),
	}
}

// Start begins the poll loop and the send worker. The loop runs until
// Stop or until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go e.pollLoop()

	e.wg.Add(1)
	go e.sendLoop()
}

// Stop cancels the loops and waits for them to drain. The snapshot
// remains readable after Stop.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	e.wg.Wait()
}

// pollLoop ticks at the fixed interval. An immediate first sync avoids
// an empty view for a full interval after open.
func (e *Engine) pollLoop() {
	defer e.wg.Done()

	if err := e.syncOnce(e.ctx); err != nil {
		e.log.Warn("sync cycle failed", "error", err)
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			if err := e.syncOnce(e.ctx); err != nil {
				e.log.Warn("sync cycle failed", "error", err)
			}
		}
	}
}

// sendLoop posts enqueued drafts one at a time, preserving submission
// order. A send failure leaves the placeholder in place; the cycle
// counter marks it failed if no echo ever correlates.
func (e *Engine) sendLoop() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return
		case job := <-e.sendCh:
			echo, err := e.client.SendMessage(e.ctx, e.conv.ID, job.draft)
			if err != nil {
				e.log.Warn("send failed", "temp_id", job.tempID, "error", err)
				continue
			}
			e.adoptEcho(job.tempID, echo)
		}
	}
}

// Enqueue appends a sending placeholder for the draft and queues the
// POST. The returned message carries the client-generated temp id.
func (e *Engine) Enqueue(draft api.MessageDraft) model.Message {
	now := time.Now()
	msg := model.Message{
		TempID:         ulid.Make().String(),
		ConversationID: e.conv.ID,
		SenderID:       draft.SenderID,
		Content:        draft.Content,
		MediaURL:       draft.MediaURL,
		Kind:           draft.Kind,
		ReplyToID:      draft.ReplyToID,
		CreatedAt:      now,
		Status:         model.StatusSending,
	}

	e.mu.Lock()
	e.pending = append(e.pending, &placeholder{msg: msg, enqueuedAt: now})
	e.rebuildLocked(now)
	e.mu.Unlock()

	select {
	case e.sendCh <- sendJob{tempID: msg.TempID, draft: draft}:
	default:
		// Queue full; the placeholder stays and ages out via the
		// cycle counter.
		e.log.Warn("send queue full", "temp_id", msg.TempID)
	}

	return msg
}

// adoptEcho replaces the placeholder with the server's echo. The echo
// never reports less than sent.
func (e *Engine) adoptEcho(tempID string, echo model.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, p := range e.pending {
		if p.msg.TempID == tempID {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			break
		}
	}
	echo.Status = model.MaxStatus(model.StatusSent, echo.Status)
	e.confirmed[echo.ID] = echo
	e.rebuildLocked(time.Now())
}

// View returns a copy of the current snapshot, safe to render from any
// goroutine.
func (e *Engine) View() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copySnapshot(e.snapshot)
}

// syncOnce runs a single poll cycle: fetch, discard if stale, merge,
// reorder, regroup, and schedule mark-seen side effects. A fetch error
// leaves the previous snapshot untouched.
func (e *Engine) syncOnce(ctx context.Context) error {
	start := time.Now()
	metrics.SyncCycles.Inc()

	fetched, err := e.client.ListMessages(ctx, e.conv.ID)
	if err != nil {
		metrics.SyncFailures.Inc()
		return err
	}

	merged, pending := e.mergeFetch(start, fetched)
	metrics.ObserveSyncDuration(start)
	e.log.LogSyncCycle(e.conv.ID, len(fetched), merged, pending, time.Since(start))

	e.scheduleMarkSeen()
	return nil
}

// mergeFetch reconciles one fetched server list into the engine state.
// stamp is the time the fetch was issued; a stamp older than the last
// merged fetch means the response raced a newer one and is discarded.
// Returns the confirmed message count and the remaining placeholder
// count.
func (e *Engine) mergeFetch(stamp time.Time, fetched []model.Message) (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if stamp.Before(e.lastMerged) {
		metrics.StaleDiscards.Inc()
		e.log.Debug("discarded stale poll response", "stamp", stamp)
		return len(e.confirmed), len(e.pending)
	}
	e.lastMerged = stamp

	e.correlateLocked(fetched)

	// Fetched records merge into the known set rather than replacing
	// it: a confirmed send can lag out of the server's read path for a
	// poll or two and must not flicker out of the view. Known statuses
	// only ratchet forward.
	for _, msg := range fetched {
		if msg.ID == "" {
			continue
		}
		if msg.Status == model.StatusSending {
			msg.Status = model.StatusSent
		}
		if prev, ok := e.confirmed[msg.ID]; ok {
			msg.Status = model.MaxStatus(prev.Status, msg.Status)
		}
		if e.conv.Kind == model.ConversationGroup && groupSeen(&msg, len(e.conv.ParticipantIDs)) {
			msg.Status = model.MaxStatus(msg.Status, model.StatusSeen)
		}
		e.confirmed[msg.ID] = msg
	}

	e.rebuildLocked(stamp)
	return len(e.confirmed), len(e.pending)
}

// correlateLocked matches placeholders against fetched records and
// ages the rest. Each fetched record pairs with at most one
// placeholder, in submission order, so two sends with identical
// content reconcile independently. A placeholder that survives
// failAfter completed cycles without a match is marked failed; it
// stays in the view so the user can retry.
func (e *Engine) correlateLocked(fetched []model.Message) {
	used := make([]bool, len(fetched))
	remaining := e.pending[:0]
	for _, p := range e.pending {
		if i := matchPlaceholder(p, fetched, e.window, used); i >= 0 {
			used[i] = true
			continue // the server record replaces it in the merge
		}
		p.cycles++
		if p.cycles >= e.failAfter && p.msg.Status != model.StatusFailed {
			p.msg.Status = model.StatusFailed
			metrics.PlaceholdersFailed.Inc()
			e.log.Warn("placeholder never confirmed", "temp_id", p.msg.TempID, "cycles", p.cycles)
		}
		remaining = append(remaining, p)
	}
	e.pending = remaining
}

// rebuildLocked recomputes the ordered snapshot from confirmed records
// plus placeholders. Day groups are a pure function of the sorted
// list, so missed-midnight drift heals on the next cycle.
func (e *Engine) rebuildLocked(at time.Time) {
	msgs := make([]model.Message, 0, len(e.confirmed)+len(e.pending))
	for _, m := range e.confirmed {
		msgs = append(msgs, m)
	}
	for _, p := range e.pending {
		msgs = append(msgs, p.msg)
	}
	sortMessages(msgs)

	e.snapshot = Snapshot{
		Messages: msgs,
		Days:     BuildDayGroups(msgs),
		TakenAt:  at,
	}
}

// scheduleMarkSeen debounces fire-and-forget mark-seen calls for peer
// messages the local user just rendered. Direct conversations mark per
// sender; groups mark the conversation once.
func (e *Engine) scheduleMarkSeen() {
	e.mu.Lock()
	targets := e.markSeenTargetsLocked()
	e.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	e.debounced(func() {
		for _, senderID := range targets {
			var err error
			if e.conv.Kind == model.ConversationGroup {
				err = e.client.MarkSeenGroup(context.Background(), e.conv.ID, e.selfID)
			} else {
				err = e.client.MarkSeenDirect(context.Background(), e.selfID, senderID)
			}
			if err != nil {
				e.log.Debug("mark-seen failed", "sender", senderID, "error", err)
			}
		}
	})
}

// markSeenTargetsLocked returns the senders with peer messages newer
// than what mark-seen has covered, and advances the coverage mark so
// each message triggers at most one call. A peer message arriving on a
// later cycle re-arms its sender.
func (e *Engine) markSeenTargetsLocked() []string {
	newest := make(map[string]time.Time)
	senderOf := make(map[string]string)
	for _, m := range e.confirmed {
		if m.SenderID == e.selfID {
			continue
		}
		key := m.SenderID
		if e.conv.Kind == model.ConversationGroup {
			key = e.conv.ID
		}
		if m.CreatedAt.After(newest[key]) {
			newest[key] = m.CreatedAt
			senderOf[key] = m.SenderID
		}
	}

	var targets []string
	for key, at := range newest {
		if !at.After(e.seenCovered[key]) {
			continue
		}
		e.seenCovered[key] = at
		targets = append(targets, senderOf[key])
	}
	return targets
}

func copySnapshot(s Snapshot) Snapshot {
	out := Snapshot{
		Messages: make([]model.Message, len(s.Messages)),
		Days:     make([]DayGroup, len(s.Days)),
		TakenAt:  s.TakenAt,
	}
	copy(out.Messages, s.Messages)
	for i, d := range s.Days {
		out.Days[i] = DayGroup{Date: d.Date, Messages: make([]model.Message, len(d.Messages))}
		copy(out.Days[i].Messages, d.Messages)
	}
	return out
}
