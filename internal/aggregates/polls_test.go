package aggregates

import (
	"errors"
	"testing"

	"github.com/nearlyhq/nearly-go/internal/model"
)

func twoOptionPoll() model.Poll {
	return model.Poll{
		ID:       "pl1",
		Question: "lunch?",
		Options: []model.PollOption{
			{ID: "optA", Text: "A"},
			{ID: "optB", Text: "B"},
		},
	}
}

func TestVoteSingleChoice(t *testing.T) {
	// Scenario C: second vote by the same user fails and changes nothing.
	book := NewPollBook()
	book.Put(twoOptionPoll())

	if err := book.Vote("pl1", "optA", "u1"); err != nil {
		t.Fatalf("first Vote() error = %v", err)
	}

	err := book.Vote("pl1", "optB", "u1")
	if !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}

	poll, ok := book.Get("pl1")
	if !ok {
		t.Fatal("poll should exist")
	}
	if got := poll.VotedOption("u1"); got != "optA" {
		t.Errorf("u1 voted option = %s, want optA", got)
	}
	if poll.TotalVotes() != 1 {
		t.Errorf("TotalVotes() = %d, want 1", poll.TotalVotes())
	}
	if len(poll.Options[1].VoterIDs) != 0 {
		t.Errorf("optB voters = %v, want empty", poll.Options[1].VoterIDs)
	}
}

func TestVoteAtMostOneOptionPerUser(t *testing.T) {
	// After any vote sequence a user appears in at most one option.
	book := NewPollBook()
	book.Put(twoOptionPoll())

	_ = book.Vote("pl1", "optA", "u1")
	_ = book.Vote("pl1", "optB", "u1")
	_ = book.Vote("pl1", "optA", "u1")

	poll, _ := book.Get("pl1")
	appearances := 0
	for _, opt := range poll.Options {
		for _, voter := range opt.VoterIDs {
			if voter == "u1" {
				appearances++
			}
		}
	}
	if appearances != 1 {
		t.Errorf("u1 appears %d times, want 1", appearances)
	}
}

func TestVoteUnknowns(t *testing.T) {
	book := NewPollBook()
	book.Put(twoOptionPoll())

	if err := book.Vote("nope", "optA", "u1"); !errors.Is(err, ErrUnknownPoll) {
		t.Errorf("expected ErrUnknownPoll, got %v", err)
	}
	if err := book.Vote("pl1", "optZ", "u1"); !errors.Is(err, ErrUnknownOption) {
		t.Errorf("expected ErrUnknownOption, got %v", err)
	}

	// A failed vote leaves counts unchanged.
	poll, _ := book.Get("pl1")
	if poll.TotalVotes() != 0 {
		t.Errorf("TotalVotes() = %d, want 0", poll.TotalVotes())
	}
}

func TestResultsPercentages(t *testing.T) {
	book := NewPollBook()
	book.Put(twoOptionPoll())

	// No votes: all percentages are 0, not NaN.
	results, err := book.Results("pl1")
	if err != nil {
		t.Fatalf("Results() error = %v", err)
	}
	for _, r := range results {
		if r.Percentage != 0 {
			t.Errorf("empty poll percentage = %f, want 0", r.Percentage)
		}
	}

	_ = book.Vote("pl1", "optA", "u1")
	_ = book.Vote("pl1", "optA", "u2")
	_ = book.Vote("pl1", "optB", "u3")

	results, err = book.Results("pl1")
	if err != nil {
		t.Fatalf("Results() error = %v", err)
	}
	if results[0].Votes != 2 || results[1].Votes != 1 {
		t.Errorf("votes = %d/%d, want 2/1", results[0].Votes, results[1].Votes)
	}
	if results[0].Percentage < 0.66 || results[0].Percentage > 0.67 {
		t.Errorf("optA percentage = %f, want 2/3", results[0].Percentage)
	}
}

func TestVotesCommute(t *testing.T) {
	// Two users on different options produce the same state in either
	// arrival order.
	tally := func(order [][2]string) model.Poll {
		book := NewPollBook()
		book.Put(twoOptionPoll())
		for _, v := range order {
			if err := book.Vote("pl1", v[0], v[1]); err != nil {
				t.Fatalf("Vote(%v) error = %v", v, err)
			}
		}
		poll, _ := book.Get("pl1")
		return poll
	}

	forward := tally([][2]string{{"optA", "u1"}, {"optB", "u2"}})
	backward := tally([][2]string{{"optB", "u2"}, {"optA", "u1"}})

	if forward.VotedOption("u1") != backward.VotedOption("u1") ||
		forward.VotedOption("u2") != backward.VotedOption("u2") ||
		forward.TotalVotes() != backward.TotalVotes() {
		t.Error("vote application is not commutative")
	}
}

func TestPutMergePreservesLocalVote(t *testing.T) {
	book := NewPollBook()
	book.Put(twoOptionPoll())

	// Local optimistic vote the server has not echoed yet.
	if err := book.Vote("pl1", "optA", "me"); err != nil {
		t.Fatalf("Vote() error = %v", err)
	}

	// Next poll snapshot knows about u9 but not about our vote.
	snapshot := twoOptionPoll()
	snapshot.Options[1].VoterIDs = []string{"u9"}
	book.Put(snapshot)

	poll, _ := book.Get("pl1")
	if got := poll.VotedOption("me"); got != "optA" {
		t.Errorf("local vote lost in merge, VotedOption = %q", got)
	}
	if poll.TotalVotes() != 2 {
		t.Errorf("TotalVotes() = %d, want 2", poll.TotalVotes())
	}

	// Once the server places us, its placement wins and we are not
	// counted twice.
	echoed := twoOptionPoll()
	echoed.Options[0].VoterIDs = []string{"me"}
	echoed.Options[1].VoterIDs = []string{"u9"}
	book.Put(echoed)

	poll, _ = book.Get("pl1")
	if poll.TotalVotes() != 2 {
		t.Errorf("TotalVotes() after echo = %d, want 2", poll.TotalVotes())
	}
}
