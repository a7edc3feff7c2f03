package composer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abhinay-x/skillnest-connect-sub002/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeStore struct {
	mu       sync.Mutex
	appended []model.Payload
	fail     bool
}

func (s *fakeStore) Append(_ context.Context, senderID, conversationID string, p model.Payload) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, model.ErrStorageUnavailable
	}
	s.appended = append(s.appended, p)
	return &model.Message{
		ID:        primitive.NewObjectID(),
		SenderID:  senderID,
		Text:      p.Text,
		ImageRef:  p.ImageRef,
		Location:  p.Location,
		Seq:       int64(len(s.appended)),
		CreatedAt: time.Now().UTC(),
	}, nil
}

type fakeTyping struct {
	mu      sync.Mutex
	signals []bool
}

func (f *fakeTyping) SetTyping(_ context.Context, _, _ string, isTyping bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, isTyping)
	return nil
}

func (f *fakeTyping) all() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.signals...)
}

type fakeLocator struct {
	point model.GeoPoint
	err   error
}

func (f *fakeLocator) Current(context.Context) (model.GeoPoint, error) {
	return f.point, f.err
}

func newTestComposer(store *fakeStore, typing *fakeTyping, locator *fakeLocator) (*Composer, *time.Time) {
	c := New(store, typing, locator, "customer1", "conv1", 5*time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }
	return c, &now
}

func TestComposeRejectsInvalidPayloads(t *testing.T) {
	c, _ := newTestComposer(&fakeStore{}, &fakeTyping{}, &fakeLocator{})
	ctx := context.Background()

	cases := []struct {
		name    string
		payload model.Payload
		wantErr error
	}{
		{"empty", model.Payload{}, model.ErrInvalidPayload},
		{"text and image", model.Payload{Text: "hi", ImageRef: "img/1.jpg"}, model.ErrInvalidPayload},
		{"text and location", model.Payload{Text: "hi", Location: &model.GeoPoint{Latitude: 1, Longitude: 2}}, model.ErrInvalidPayload},
		{"oversized text", model.Payload{Text: strings.Repeat("a", model.MaxTextLength+1)}, model.ErrPayloadTooLarge},
	}
	for _, tc := range cases {
		if _, err := c.Compose(ctx, tc.payload); !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
		}
	}

	// Exactly at the bound is fine.
	if _, err := c.Compose(ctx, model.Payload{Text: strings.Repeat("a", model.MaxTextLength)}); err != nil {
		t.Fatalf("text at the length bound rejected: %v", err)
	}
}

func TestTypingSignalIsDebounced(t *testing.T) {
	typing := &fakeTyping{}
	c, now := newTestComposer(&fakeStore{}, typing, &fakeLocator{})
	ctx := context.Background()

	c.OnInputChange(ctx, "h")
	c.OnInputChange(ctx, "he")
	c.OnInputChange(ctx, "hel")
	if got := typing.all(); len(got) != 1 || !got[0] {
		t.Fatalf("expected a single start signal for rapid keystrokes, got %v", got)
	}

	// Past half the window the signal refreshes so the TTL never lapses
	// mid-typing.
	*now = now.Add(3 * time.Second)
	c.OnInputChange(ctx, "hell")
	if got := typing.all(); len(got) != 2 {
		t.Fatalf("expected a refresh signal after the debounce window, got %v", got)
	}

	c.OnInputChange(ctx, "")
	got := typing.all()
	if len(got) != 3 || got[2] {
		t.Fatalf("expected an explicit stop signal when the input empties, got %v", got)
	}

	// Clearing an already-idle input emits nothing.
	c.OnInputChange(ctx, "")
	if got := typing.all(); len(got) != 3 {
		t.Fatalf("expected no extra signal on repeated clear, got %v", got)
	}
}

func TestSendTextSubmitsDraftAndClearsIt(t *testing.T) {
	store := &fakeStore{}
	c, _ := newTestComposer(store, &fakeTyping{}, &fakeLocator{})
	ctx := context.Background()

	if _, err := c.SendText(ctx); !errors.Is(err, ErrNothingToSend) {
		t.Fatalf("expected ErrNothingToSend on empty draft, got %v", err)
	}

	c.OnInputChange(ctx, "Hello")
	msg, err := c.SendText(ctx)
	if err != nil {
		t.Fatalf("SendText failed: %v", err)
	}
	if msg.Text != "Hello" {
		t.Fatalf("expected text %q, got %q", "Hello", msg.Text)
	}
	if c.Draft() != "" {
		t.Fatalf("expected draft to clear after send, got %q", c.Draft())
	}

	pending := c.Pending()
	if len(pending) != 1 || pending[0].State != StateSent || pending[0].Message == nil {
		t.Fatalf("unexpected pending state: %+v", pending)
	}
}

func TestSendLocationAbortsOnAcquisitionFailure(t *testing.T) {
	store := &fakeStore{}
	locator := &fakeLocator{err: errors.New("gps unavailable")}
	c, _ := newTestComposer(store, &fakeTyping{}, locator)

	if _, err := c.SendLocation(context.Background()); err == nil {
		t.Fatal("expected error when location acquisition fails")
	}
	if len(store.appended) != 0 {
		t.Fatal("expected no message when location acquisition fails")
	}
	if len(c.Pending()) != 0 {
		t.Fatal("expected no pending entry when location acquisition fails")
	}
}

func TestSendLocationUsesCapturedCoordinates(t *testing.T) {
	store := &fakeStore{}
	locator := &fakeLocator{point: model.GeoPoint{Latitude: 48.8584, Longitude: 2.2945}}
	c, _ := newTestComposer(store, &fakeTyping{}, locator)

	msg, err := c.SendLocation(context.Background())
	if err != nil {
		t.Fatalf("SendLocation failed: %v", err)
	}
	if msg.Location == nil || msg.Location.Latitude != 48.8584 || msg.Location.Longitude != 2.2945 {
		t.Fatalf("unexpected location payload: %+v", msg.Location)
	}
}

func TestFailedSendPreservesDraftForRetry(t *testing.T) {
	store := &fakeStore{fail: true}
	c, _ := newTestComposer(store, &fakeTyping{}, &fakeLocator{})
	ctx := context.Background()

	c.OnInputChange(ctx, "Hello")
	if _, err := c.SendText(ctx); !errors.Is(err, model.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}

	if c.Draft() != "Hello" {
		t.Fatalf("expected draft preserved after failure, got %q", c.Draft())
	}
	pending := c.Pending()
	if len(pending) != 1 || pending[0].State != StateFailed {
		t.Fatalf("expected one failed pending entry, got %+v", pending)
	}

	// Store recovers; the retry submits the same payload.
	store.fail = false
	msg, err := c.Retry(ctx, pending[0].LocalID)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if msg.Text != "Hello" {
		t.Fatalf("expected retried text %q, got %q", "Hello", msg.Text)
	}
	after := c.Pending()
	if len(after) != 1 || after[0].State != StateSent {
		t.Fatalf("expected pending entry to flip to sent, got %+v", after)
	}

	if _, err := c.Retry(ctx, "no-such-id"); err == nil {
		t.Fatal("expected error retrying an unknown pending id")
	}
}
