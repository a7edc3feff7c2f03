package hub

import (
	"sync"
	"time"

	"github.com/abhinay-x/skillnest-connect-sub002/internal/model"
)

// DefaultTypingTTL is the freshness window after which an unrefreshed typing
// signal is treated as false.
const DefaultTypingTTL = 5 * time.Second

type presenceKey struct {
	conversationID string
	userID         string
}

type typingEntry struct {
	isTyping  bool
	updatedAt time.Time
}

// PresenceCoordinator holds ephemeral per-(conversation, user) typing state.
// State lives only for the process lifetime and expires lazily at read time;
// no background sweep runs, so a crashed client can never pin a permanent
// "typing" indicator.
type PresenceCoordinator struct {
	mu     sync.RWMutex
	states map[presenceKey]typingEntry
	ttl    time.Duration
	now    func() time.Time
}

func NewPresenceCoordinator(ttl time.Duration) *PresenceCoordinator {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &PresenceCoordinator{
		states: make(map[presenceKey]typingEntry),
		ttl:    ttl,
		now:    time.Now,
	}
}

// SetTyping overwrites prior state and resets the TTL clock. Fire-and-forget.
func (p *PresenceCoordinator) SetTyping(conversationID, userID string, isTyping bool) {
	key := presenceKey{conversationID: conversationID, userID: userID}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !isTyping {
		delete(p.states, key)
		return
	}
	p.states[key] = typingEntry{isTyping: true, updatedAt: p.now()}
}

// IsTypingNow evaluates the stored state against the TTL at read time.
func (p *PresenceCoordinator) IsTypingNow(conversationID, userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.states[presenceKey{conversationID: conversationID, userID: userID}]
	if !ok || !entry.isTyping {
		return false
	}
	return p.now().Sub(entry.updatedAt) < p.ttl
}

// TypingUsers returns the users currently typing in the conversation,
// skipping expired entries.
func (p *PresenceCoordinator) TypingUsers(conversationID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	now := p.now()
	var users []string
	for key, entry := range p.states {
		if key.conversationID != conversationID {
			continue
		}
		if entry.isTyping && now.Sub(entry.updatedAt) < p.ttl {
			users = append(users, key.userID)
		}
	}
	return users
}

// Snapshot returns the live typing states for a conversation.
func (p *PresenceCoordinator) Snapshot(conversationID string) []model.TypingState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	now := p.now()
	var out []model.TypingState
	for key, entry := range p.states {
		if key.conversationID != conversationID {
			continue
		}
		if !entry.isTyping || now.Sub(entry.updatedAt) >= p.ttl {
			continue
		}
		out = append(out, model.TypingState{
			ConversationID: key.conversationID,
			UserID:         key.userID,
			IsTyping:       true,
			UpdatedAt:      entry.updatedAt,
		})
	}
	return out
}
