package model

import "testing"

func TestMaxStatus(t *testing.T) {
	tests := []struct {
		name string
		a, b MessageStatus
		want MessageStatus
	}{
		{"advance", StatusSent, StatusDelivered, StatusDelivered},
		{"no regress", StatusSeen, StatusSent, StatusSeen},
		{"equal", StatusDelivered, StatusDelivered, StatusDelivered},
		{"failed loses to confirmed", StatusFailed, StatusSent, StatusSent},
		{"confirmed beats failed", StatusSeen, StatusFailed, StatusSeen},
		{"both failed", StatusFailed, StatusFailed, StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaxStatus(tt.a, tt.b); got != tt.want {
				t.Errorf("MaxStatus(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestParseMessageStatusDefaultsToSent(t *testing.T) {
	if got := ParseMessageStatus("exploded"); got != StatusSent {
		t.Errorf("unknown status = %v, want sent", got)
	}
	if got := ParseMessageStatus(""); got != StatusSent {
		t.Errorf("empty status = %v, want sent", got)
	}
	if got := ParseMessageStatus("seen"); got != StatusSeen {
		t.Errorf("seen = %v", got)
	}
}

func TestDirectConversationIDOrderIndependent(t *testing.T) {
	a := DirectConversationID("user-9", "user-10")
	b := DirectConversationID("user-10", "user-9")
	if a != b {
		t.Fatalf("ids differ: %s vs %s", a, b)
	}
	if a != "dm:user-10:user-9" {
		t.Errorf("id = %s", a)
	}
}

func TestMessageKey(t *testing.T) {
	confirmed := Message{ID: "srv", TempID: ""}
	if confirmed.Key() != "srv" {
		t.Errorf("confirmed key = %s", confirmed.Key())
	}
	local := Message{TempID: "tmp"}
	if local.Key() != "tmp" {
		t.Errorf("local key = %s", local.Key())
	}
	if local.Confirmed() {
		t.Error("placeholder reported confirmed")
	}
}

func TestParseFollowStatus(t *testing.T) {
	if state, err := ParseFollowStatus("followed"); err != nil || state != FollowFollowing {
		t.Errorf("followed = %v, %v", state, err)
	}
	if state, err := ParseFollowStatus("requested"); err != nil || state != FollowPending {
		t.Errorf("requested = %v, %v", state, err)
	}
	if _, err := ParseFollowStatus("banana"); err == nil {
		t.Error("expected error for unknown discriminator")
	}
}

func TestToggleKindStorageKeys(t *testing.T) {
	for _, kind := range []ToggleKind{
		KindLikedActivity, KindLikedPost, KindLikedEvent,
		KindSavedPost, KindSavedEvent, KindSavedShot,
		KindFollowing, KindPendingFollow,
	} {
		key, err := kind.StorageKey()
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if key == "" {
			t.Errorf("%s: empty storage key", kind)
		}
	}

	if _, err := ToggleKind("bogus").StorageKey(); err == nil {
		t.Error("expected error for unknown kind")
	}
	if ToggleKind("bogus").Valid() {
		t.Error("bogus kind reported valid")
	}
}

func TestPollVotedOption(t *testing.T) {
	p := Poll{
		ID: "p1",
		Options: []PollOption{
			{ID: "o1", VoterIDs: []string{"alice"}},
			{ID: "o2", VoterIDs: []string{"bob", "carol"}},
		},
	}
	if p.TotalVotes() != 3 {
		t.Errorf("TotalVotes = %d, want 3", p.TotalVotes())
	}
	if got := p.VotedOption("bob"); got != "o2" {
		t.Errorf("VotedOption(bob) = %s, want o2", got)
	}
	if got := p.VotedOption("dave"); got != "" {
		t.Errorf("VotedOption(dave) = %s, want empty", got)
	}
}
