package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abhinay-x/skillnest-connect-sub002/internal/event"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/hub"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/model"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/repo"

	"go.uber.org/zap"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	items []model.Notification
}

func (d *recordingDispatcher) Enqueue(n model.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(d.items, n)
}

func (d *recordingDispatcher) all() []model.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.Notification(nil), d.items...)
}

type chatFixture struct {
	svc        *ChatService
	broker     *hub.Broker
	presence   *hub.PresenceCoordinator
	dispatcher *recordingDispatcher
	convRepo   *repo.MemoryConversationRepository
	msgRepo    *repo.MemoryMessageRepository
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()

	dispatcher := &recordingDispatcher{}
	presence := hub.NewPresenceCoordinator(0)
	broker := hub.NewBroker(presence, dispatcher)
	t.Cleanup(broker.Stop)

	convRepo := repo.NewMemoryConversationRepository()
	msgRepo := repo.NewMemoryMessageRepository()

	svc := NewChatService(convRepo, msgRepo, broker, presence, zap.NewNop())
	broker.SetSink(svc)

	return &chatFixture{
		svc:        svc,
		broker:     broker,
		presence:   presence,
		dispatcher: dispatcher,
		convRepo:   convRepo,
		msgRepo:    msgRepo,
	}
}

func (f *chatFixture) conversation(t *testing.T) *model.Conversation {
	t.Helper()
	conv, err := f.svc.GetOrCreateConversation(context.Background(), "booking-1", "customer1", "worker1")
	if err != nil {
		t.Fatalf("GetOrCreateConversation failed: %v", err)
	}
	return conv
}

func receiveEvent(t *testing.T, sub *hub.Subscription) event.Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for an event on the live feed")
		return event.Event{}
	}
}

func TestAppendDeliversToLiveSubscriber(t *testing.T) {
	f := newChatFixture(t)
	conv := f.conversation(t)
	ctx := context.Background()

	sub := f.broker.Subscribe(conv.ID.Hex(), "worker1")
	defer sub.Cancel()

	msg, err := f.svc.Append(ctx, "customer1", conv.ID.Hex(), model.Payload{Text: "Hello"})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	ev := receiveEvent(t, sub)
	if ev.Type != event.TypeMessage || ev.SenderID != "customer1" {
		t.Fatalf("unexpected event envelope: %+v", ev)
	}
	var body event.MessageBody
	if err := json.Unmarshal(ev.Body, &body); err != nil {
		t.Fatalf("bad event body: %v", err)
	}
	if body.Text != "Hello" || body.MessageID != msg.ID.Hex() || body.Seq != msg.Seq {
		t.Fatalf("unexpected event body: %+v", body)
	}

	// The durable write preceded fan-out, so a fresh list sees the message.
	listed, err := f.svc.ListMessages(ctx, "worker1", conv.ID.Hex(), repo.Cursor{}, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(listed) != 1 || listed[0].Text != "Hello" {
		t.Fatalf("unexpected listing: %+v", listed)
	}

	if n := f.dispatcher.all(); len(n) != 0 {
		t.Fatalf("expected no notification for a live subscriber, got %d", len(n))
	}
}

func TestAppendNotifiesOfflinePeer(t *testing.T) {
	f := newChatFixture(t)
	conv := f.conversation(t)

	msg, err := f.svc.Append(context.Background(), "customer1", conv.ID.Hex(), model.Payload{Text: "Hello"})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	items := f.dispatcher.all()
	if len(items) != 1 {
		t.Fatalf("expected 1 notification for the offline peer, got %d", len(items))
	}
	n := items[0]
	if n.UserID != "worker1" || n.Body != "Hello" {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if n.Data.MessageID != msg.ID.Hex() || n.Data.ConversationID != conv.ID.Hex() {
		t.Fatalf("unexpected deep-link data: %+v", n.Data)
	}
}

func TestAppendRejectsNonParticipantSender(t *testing.T) {
	f := newChatFixture(t)
	conv := f.conversation(t)

	_, err := f.svc.Append(context.Background(), "stranger", conv.ID.Hex(), model.Payload{Text: "hi"})
	if !errors.Is(err, model.ErrInvalidSender) {
		t.Fatalf("expected ErrInvalidSender, got %v", err)
	}
	if len(f.dispatcher.all()) != 0 {
		t.Fatal("rejected append must not notify anyone")
	}
}

func TestAppendLocationRoundTripsCoordinates(t *testing.T) {
	f := newChatFixture(t)
	conv := f.conversation(t)

	point := &model.GeoPoint{Latitude: 12.9716, Longitude: 77.5946}
	msg, err := f.svc.Append(context.Background(), "worker1", conv.ID.Hex(), model.Payload{Location: point})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := f.msgRepo.Get(context.Background(), msg.ID.Hex())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Location == nil || got.Location.Latitude != 12.9716 || got.Location.Longitude != 77.5946 {
		t.Fatalf("stored location does not match: %+v", got.Location)
	}

	items := f.dispatcher.all()
	if len(items) != 1 || items[0].Body != "Shared a location" {
		t.Fatalf("unexpected notification snippet: %+v", items)
	}
}

func TestAppendFailureLeavesNoTrace(t *testing.T) {
	f := newChatFixture(t)
	conv := f.conversation(t)
	f.msgRepo.FailWrites = true

	_, err := f.svc.Append(context.Background(), "customer1", conv.ID.Hex(), model.Payload{Text: "Hello"})
	if !errors.Is(err, model.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if len(f.dispatcher.all()) != 0 {
		t.Fatal("failed append must not fan out or notify")
	}
}

func TestAppendUpdatesConversationSummary(t *testing.T) {
	f := newChatFixture(t)
	conv := f.conversation(t)
	ctx := context.Background()

	if _, err := f.svc.Append(ctx, "customer1", conv.ID.Hex(), model.Payload{Text: "first"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if _, err := f.svc.Append(ctx, "worker1", conv.ID.Hex(), model.Payload{ImageRef: "uploads/receipt.jpg"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	convs, err := f.svc.ListConversations(ctx, "customer1")
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(convs))
	}
	last := convs[0].LastMessage
	if last == nil || last.Snippet != "Sent a photo" || last.SenderID != "worker1" {
		t.Fatalf("unexpected summary: %+v", last)
	}
}

func TestMarkReadOnlyByCounterpart(t *testing.T) {
	f := newChatFixture(t)
	conv := f.conversation(t)
	ctx := context.Background()

	msg, err := f.svc.Append(ctx, "customer1", conv.ID.Hex(), model.Payload{Text: "Hello"})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// The sender cannot mark their own message read.
	if err := f.svc.MarkRead(ctx, "customer1", msg.ID.Hex()); !errors.Is(err, model.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant for the sender, got %v", err)
	}

	if err := f.svc.MarkRead(ctx, "worker1", msg.ID.Hex()); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	// Re-marking is a no-op.
	if err := f.svc.MarkRead(ctx, "worker1", msg.ID.Hex()); err != nil {
		t.Fatalf("repeat MarkRead failed: %v", err)
	}

	got, err := f.msgRepo.Get(ctx, msg.ID.Hex())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Read {
		t.Fatal("expected message to be read")
	}
}

func TestSetTypingFansOut(t *testing.T) {
	f := newChatFixture(t)
	conv := f.conversation(t)
	ctx := context.Background()

	sub := f.broker.Subscribe(conv.ID.Hex(), "worker1")
	defer sub.Cancel()

	if err := f.svc.SetTyping(ctx, "customer1", conv.ID.Hex(), true); err != nil {
		t.Fatalf("SetTyping failed: %v", err)
	}

	ev := receiveEvent(t, sub)
	if ev.Type != event.TypeTyping {
		t.Fatalf("expected typing event, got %s", ev.Type)
	}
	var body event.TypingBody
	if err := json.Unmarshal(ev.Body, &body); err != nil {
		t.Fatalf("bad typing body: %v", err)
	}
	if body.UserID != "customer1" || !body.IsTyping {
		t.Fatalf("unexpected typing body: %+v", body)
	}

	if !f.svc.IsTypingNow(conv.ID.Hex(), "customer1") {
		t.Fatal("expected typing state to read true")
	}
	if err := f.svc.SetTyping(ctx, "stranger", conv.ID.Hex(), true); !errors.Is(err, model.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant for stranger typing, got %v", err)
	}
	if len(f.dispatcher.all()) != 0 {
		t.Fatal("typing must never escalate to a notification")
	}
}

func TestSendImpliesStopTyping(t *testing.T) {
	f := newChatFixture(t)
	conv := f.conversation(t)
	ctx := context.Background()

	if err := f.svc.SetTyping(ctx, "customer1", conv.ID.Hex(), true); err != nil {
		t.Fatalf("SetTyping failed: %v", err)
	}
	if _, err := f.svc.Append(ctx, "customer1", conv.ID.Hex(), model.Payload{Text: "done typing"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if f.svc.IsTypingNow(conv.ID.Hex(), "customer1") {
		t.Fatal("expected sending a message to clear the typing state")
	}
}

func TestHandleInboundAppendsMessage(t *testing.T) {
	f := newChatFixture(t)
	conv := f.conversation(t)
	ctx := context.Background()

	body, _ := json.Marshal(event.MessageBody{Text: "from socket"})
	f.svc.HandleInbound(ctx, "customer1", event.Event{
		Type:           event.TypeMessage,
		ConversationID: conv.ID.Hex(),
		SenderID:       "customer1",
		Body:           body,
	})

	listed, err := f.svc.ListMessages(ctx, "worker1", conv.ID.Hex(), repo.Cursor{}, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(listed) != 1 || listed[0].Text != "from socket" {
		t.Fatalf("unexpected listing after inbound: %+v", listed)
	}
}

func TestGetConversationEnforcesParticipation(t *testing.T) {
	f := newChatFixture(t)
	conv := f.conversation(t)
	ctx := context.Background()

	if _, err := f.svc.GetConversation(ctx, "stranger", conv.ID.Hex()); !errors.Is(err, model.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if _, err := f.svc.GetConversation(ctx, "worker1", conv.ID.Hex()); err != nil {
		t.Fatalf("participant lookup failed: %v", err)
	}
}
