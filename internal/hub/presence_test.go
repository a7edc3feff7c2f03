package hub

import (
	"testing"
	"time"
)

func newTestPresence(ttl time.Duration) (*PresenceCoordinator, *time.Time) {
	p := NewPresenceCoordinator(ttl)
	now := time.Now()
	p.now = func() time.Time { return now }
	return p, &now
}

func TestTypingExpiresAfterTTL(t *testing.T) {
	p, now := newTestPresence(5 * time.Second)

	p.SetTyping("conv1", "userA", true)
	if !p.IsTypingNow("conv1", "userA") {
		t.Fatal("expected typing to be true right after the signal")
	}

	*now = now.Add(4 * time.Second)
	if !p.IsTypingNow("conv1", "userA") {
		t.Fatal("expected typing to still be true inside the TTL window")
	}

	*now = now.Add(2 * time.Second)
	if p.IsTypingNow("conv1", "userA") {
		t.Fatal("expected typing to read false after the TTL lapsed")
	}
}

func TestSetTypingRefreshesTTL(t *testing.T) {
	p, now := newTestPresence(5 * time.Second)

	p.SetTyping("conv1", "userA", true)
	*now = now.Add(4 * time.Second)
	p.SetTyping("conv1", "userA", true)

	// 6s after the first signal, 2s after the refresh.
	*now = now.Add(2 * time.Second)
	if !p.IsTypingNow("conv1", "userA") {
		t.Fatal("expected refreshed typing state to still be live")
	}
}

func TestStopTypingClearsImmediately(t *testing.T) {
	p, _ := newTestPresence(5 * time.Second)

	p.SetTyping("conv1", "userA", true)
	p.SetTyping("conv1", "userA", false)
	if p.IsTypingNow("conv1", "userA") {
		t.Fatal("expected explicit stop to clear typing state")
	}
}

func TestTypingUsersSkipsExpiredAndOtherConversations(t *testing.T) {
	p, now := newTestPresence(5 * time.Second)

	p.SetTyping("conv1", "userA", true)
	*now = now.Add(3 * time.Second)
	p.SetTyping("conv1", "userB", true)
	p.SetTyping("conv2", "userC", true)

	// userA's signal is now 3s older than userB's.
	*now = now.Add(3 * time.Second)

	users := p.TypingUsers("conv1")
	if len(users) != 1 || users[0] != "userB" {
		t.Fatalf("expected only userB typing in conv1, got %v", users)
	}

	snap := p.Snapshot("conv1")
	if len(snap) != 1 || snap[0].UserID != "userB" || !snap[0].IsTyping {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestUnknownStateReadsFalse(t *testing.T) {
	p, _ := newTestPresence(5 * time.Second)
	if p.IsTypingNow("conv1", "nobody") {
		t.Fatal("expected false for a user with no recorded state")
	}
}
