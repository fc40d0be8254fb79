package aggregates

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nearlyhq/nearly-go/internal/model"
)

// ErrAlreadyVoted marks a vote by a user who already appears in one of
// the poll's options. Voting is single-choice and permanent; the UI
// treats this as a no-op, not a failure.
var ErrAlreadyVoted = errors.New("user already voted")

// ErrUnknownPoll marks a vote against a poll the book has never seen.
var ErrUnknownPoll = errors.New("unknown poll")

// ErrUnknownOption marks a vote for an option the poll does not have.
var ErrUnknownOption = errors.New("unknown option")

// OptionResult is one option's tally for display.
type OptionResult struct {
	OptionID   string
	Text       string
	Votes      int
	Percentage float64
}

// PollBook maintains the vote state of every poll the client has seen.
// Merging a polled snapshot and applying local votes commute: each
// voter occupies a disjoint set entry, so arrival order cannot corrupt
// the counts.
type PollBook struct {
	mu    sync.RWMutex
	polls map[string]*model.Poll
}

// NewPollBook creates an empty poll book.
func NewPollBook() *PollBook {
	return &PollBook{
		polls: make(map[string]*model.Poll),
	}
}

// Put merges an authoritative poll snapshot into the book. Voter sets
// are unioned with local state so an optimistic local vote the server
// has not echoed yet survives the merge without double-counting.
func (b *PollBook) Put(poll model.Poll) {
	if poll.ID == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	existing, ok := b.polls[poll.ID]
	if !ok {
		copied := clonePoll(&poll)
		b.polls[poll.ID] = copied
		return
	}

	merged := clonePoll(&poll)
	for i := range merged.Options {
		local := optionByID(existing, merged.Options[i].ID)
		if local == nil {
			continue
		}
		for _, voter := range local.VoterIDs {
			// Keep a local voter only if the snapshot does not place
			// them anywhere; the server's placement wins otherwise.
			if merged.VotedOption(voter) == "" {
				merged.Options[i].VoterIDs = append(merged.Options[i].VoterIDs, voter)
			}
		}
	}
	b.polls[poll.ID] = merged
}

// Get returns a copy of the poll, or false if unknown.
func (b *PollBook) Get(pollID string) (model.Poll, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	poll, ok := b.polls[pollID]
	if !ok {
		return model.Poll{}, false
	}
	return *clonePoll(poll), true
}

// Vote records userID's single-choice vote. It fails with
// ErrAlreadyVoted if the user appears in any option of the poll, and
// leaves all counts unchanged on any failure.
func (b *PollBook) Vote(pollID, optionID, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	poll, ok := b.polls[pollID]
	if !ok {
		return fmt.Errorf("poll %s: %w", pollID, ErrUnknownPoll)
	}

	if voted := poll.VotedOption(userID); voted != "" {
		return fmt.Errorf("user %s already voted for %s: %w", userID, voted, ErrAlreadyVoted)
	}

	opt := optionByID(poll, optionID)
	if opt == nil {
		return fmt.Errorf("option %s: %w", optionID, ErrUnknownOption)
	}

	opt.VoterIDs = append(opt.VoterIDs, userID)
	return nil
}

// Results computes the display tally for a poll. Percentages are 0
// when the poll has no votes.
func (b *PollBook) Results(pollID string) ([]OptionResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	poll, ok := b.polls[pollID]
	if !ok {
		return nil, fmt.Errorf("poll %s: %w", pollID, ErrUnknownPoll)
	}

	total := poll.TotalVotes()
	results := make([]OptionResult, 0, len(poll.Options))
	for _, opt := range poll.Options {
		r := OptionResult{
			OptionID: opt.ID,
			Text:     opt.Text,
			Votes:    len(opt.VoterIDs),
		}
		if total > 0 {
			r.Percentage = float64(r.Votes) / float64(total)
		}
		results = append(results, r)
	}
	return results, nil
}

func clonePoll(p *model.Poll) *model.Poll {
	copied := *p
	copied.Options = make([]model.PollOption, len(p.Options))
	for i, opt := range p.Options {
		copied.Options[i] = opt
		copied.Options[i].VoterIDs = append([]string(nil), opt.VoterIDs...)
	}
	return &copied
}

func optionByID(p *model.Poll, optionID string) *model.PollOption {
	for i := range p.Options {
		if p.Options[i].ID == optionID {
			return &p.Options[i]
		}
	}
	return nil
}
