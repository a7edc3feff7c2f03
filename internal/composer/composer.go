package composer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abhinay-x/skillnest-connect-sub002/internal/model"

	"github.com/google/uuid"
)

// Pending message states.
const (
	StateSending = "sending"
	StateSent    = "sent"
	StateFailed  = "failed" // retryable; the draft payload is preserved
)

var ErrNothingToSend = errors.New("draft is empty")

// Store is the durable append side of the message store.
type Store interface {
	Append(ctx context.Context, senderID, conversationID string, p model.Payload) (*model.Message, error)
}

// TypingSignaller carries the debounced typing signal to the presence
// coordinator.
type TypingSignaller interface {
	SetTyping(ctx context.Context, userID, conversationID string, isTyping bool) error
}

// Locator captures the device's current position. Acquisition failure aborts
// a location send; no partial message is ever produced.
type Locator interface {
	Current(ctx context.Context) (model.GeoPoint, error)
}

// PendingMessage is the local, speculative copy of a message awaiting (or
// having failed) durable confirmation.
type PendingMessage struct {
	LocalID   string
	Payload   model.Payload
	State     string
	Message   *model.Message // set once confirmed
	Err       error          // set when State is StateFailed
	CreatedAt time.Time
}

// Composer builds outgoing payloads for one participant in one conversation,
// manages the debounced typing signal and applies optimistic local state.
type Composer struct {
	store   Store
	typing  TypingSignaller
	locator Locator

	userID         string
	conversationID string
	signalWindow   time.Duration

	mu           sync.Mutex
	draft        string
	typingActive bool
	lastSignal   time.Time
	pending      []*PendingMessage
	now          func() time.Time
}

func New(store Store, typing TypingSignaller, locator Locator, userID, conversationID string, signalWindow time.Duration) *Composer {
	if signalWindow <= 0 {
		signalWindow = 5 * time.Second
	}
	return &Composer{
		store:          store,
		typing:         typing,
		locator:        locator,
		userID:         userID,
		conversationID: conversationID,
		signalWindow:   signalWindow,
		now:            time.Now,
	}
}

// OnInputChange tracks the draft and emits typing signals: start on the first
// non-empty keystroke after idle, stop when the input empties. Refreshes are
// debounced against the TTL window so rapid keystrokes do not flood the
// coordinator.
func (c *Composer) OnInputChange(ctx context.Context, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.draft = text

	if text == "" {
		if c.typingActive {
			c.typingActive = false
			_ = c.typing.SetTyping(ctx, c.userID, c.conversationID, false)
		}
		return
	}

	// Refresh before the TTL lapses, but no more than twice per window.
	if c.typingActive && c.now().Sub(c.lastSignal) < c.signalWindow/2 {
		return
	}
	c.typingActive = true
	c.lastSignal = c.now()
	_ = c.typing.SetTyping(ctx, c.userID, c.conversationID, true)
}

// Compose validates that exactly one payload variant is present, then appends
// it. On success the draft clears and typing stops; on failure the draft and
// a retryable pending entry survive.
func (c *Composer) Compose(ctx context.Context, p model.Payload) (*model.Message, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	entry := &PendingMessage{
		LocalID:   uuid.New().String(),
		Payload:   p,
		State:     StateSending,
		CreatedAt: c.now(),
	}
	c.mu.Lock()
	c.pending = append(c.pending, entry)
	c.mu.Unlock()

	return c.submit(ctx, entry)
}

// SendText submits the current draft as a text message.
func (c *Composer) SendText(ctx context.Context) (*model.Message, error) {
	c.mu.Lock()
	draft := c.draft
	c.mu.Unlock()

	if draft == "" {
		return nil, ErrNothingToSend
	}
	return c.Compose(ctx, model.Payload{Text: draft})
}

// SendLocation captures the device position and sends it as a location pin.
// Acquisition failure is returned to the caller and nothing is sent.
func (c *Composer) SendLocation(ctx context.Context) (*model.Message, error) {
	point, err := c.locator.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("location acquisition failed: %w", err)
	}
	return c.Compose(ctx, model.Payload{Location: &point})
}

// Retry resubmits a failed pending message.
func (c *Composer) Retry(ctx context.Context, localID string) (*model.Message, error) {
	c.mu.Lock()
	var entry *PendingMessage
	for _, p := range c.pending {
		if p.LocalID == localID && p.State == StateFailed {
			entry = p
			break
		}
	}
	if entry != nil {
		entry.State = StateSending
		entry.Err = nil
	}
	c.mu.Unlock()

	if entry == nil {
		return nil, fmt.Errorf("no failed pending message %s", localID)
	}
	return c.submit(ctx, entry)
}

func (c *Composer) submit(ctx context.Context, entry *PendingMessage) (*model.Message, error) {
	msg, err := c.store.Append(ctx, c.userID, c.conversationID, entry.Payload)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		// The unsent draft is preserved for retry, never silently dropped.
		entry.State = StateFailed
		entry.Err = err
		return nil, err
	}

	entry.State = StateSent
	entry.Message = msg
	c.draft = ""
	c.typingActive = false // send implies stop-typing; the store already cleared it server-side
	return msg, nil
}

// Draft returns the current unsent draft text.
func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Pending returns a snapshot of the optimistic message entries.
func (c *Composer) Pending() []PendingMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]PendingMessage, len(c.pending))
	for i, p := range c.pending {
		out[i] = *p
	}
	return out
}
