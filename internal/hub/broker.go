package hub

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abhinay-x/skillnest-connect-sub002/internal/event"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/model"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	shardCount = 64 // tune: 16/64/128 depending on load
)

// Dispatcher is the asynchronous notification path for participants without
// a live subscription. Enqueue must never block the broker.
type Dispatcher interface {
	Enqueue(n model.Notification)
}

// MessageSink consumes inbound client events drained from the worker pool.
type MessageSink interface {
	HandleInbound(ctx context.Context, senderID string, ev event.Event)
}

// Subscription is one live, cancellable, per-subscriber ordered feed of
// conversation events. A user may hold several (one per device).
type Subscription struct {
	ID             string
	ConversationID string
	UserID         string

	events chan event.Event
	broker *Broker
	once   sync.Once
}

// Events is the feed. It is closed by Cancel or broker shutdown.
func (s *Subscription) Events() <-chan event.Event {
	return s.events
}

// Cancel synchronously removes the subscriber and closes the feed. Safe to
// call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.broker.remove(s)
		close(s.events)
	})
}

type inboundEvent struct {
	senderID string
	ev       event.Event
}

type subscriberBucket struct {
	sync.Mutex
	conversations map[string]map[string]*Subscription
}

// Broker routes published conversation events to live subscribers in publish
// order and hands message events for unsubscribed participants to the
// Dispatcher. Conversation state is sharded so unrelated conversations never
// contend.
type Broker struct {
	shards     [shardCount]*subscriberBucket
	presence   *PresenceCoordinator
	dispatcher Dispatcher
	sink       MessageSink
	inbound    chan inboundEvent
	dropped    atomic.Uint64
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewBroker(presence *PresenceCoordinator, dispatcher Dispatcher) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Broker{
		presence:   presence,
		dispatcher: dispatcher,
		inbound:    make(chan inboundEvent, 4096), // buffer for burst handling
		ctx:        ctx,
		cancel:     cancel,
	}

	for i := 0; i < shardCount; i++ {
		b.shards[i] = &subscriberBucket{
			conversations: make(map[string]map[string]*Subscription),
		}
	}

	// start worker loop
	for i := 0; i < workerPoolSize; i++ {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for {
				select {
				case <-b.ctx.Done():
					return
				case in := <-b.inbound:
					b.handleEvent(in)
				}
			}
		}()
	}

	return b
}

// SetSink wires the inbound consumer. Must be called before any client
// connects; kept separate from NewBroker because the sink itself publishes
// through the broker.
func (b *Broker) SetSink(sink MessageSink) {
	b.sink = sink
}

// Subscribe opens a live feed for one device of a participant.
func (b *Broker) Subscribe(conversationID, userID string) *Subscription {
	sub := &Subscription{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		UserID:         userID,
		events:         make(chan event.Event, sendBufSize),
		broker:         b,
	}

	bucket := b.shards[getShard(conversationID)]
	bucket.Lock()
	defer bucket.Unlock()

	subs, ok := bucket.conversations[conversationID]
	if !ok {
		subs = make(map[string]*Subscription)
		bucket.conversations[conversationID] = subs
	}
	subs[sub.ID] = sub

	log.Printf("subscription %s opened for user %s in conversation %s", sub.ID, userID, conversationID)
	return sub
}

func (b *Broker) remove(s *Subscription) {
	bucket := b.shards[getShard(s.ConversationID)]
	bucket.Lock()
	defer bucket.Unlock()

	if subs, ok := bucket.conversations[s.ConversationID]; ok {
		delete(subs, s.ID)
		if len(subs) == 0 {
			delete(bucket.conversations, s.ConversationID)
		}
	}
	log.Printf("subscription %s closed for user %s in conversation %s", s.ID, s.UserID, s.ConversationID)
}

// Publish delivers ev to every live subscriber of its conversation and, for
// message events, enqueues a notification for each participant with no live
// subscription. Delivery runs under the conversation's shard lock, so each
// feed observes events in publish order; a full subscriber buffer drops the
// event (best-effort, at-most-once).
func (b *Broker) Publish(ev event.Event, participants []string) {
	bucket := b.shards[getShard(ev.ConversationID)]

	live := make(map[string]bool, 2)

	bucket.Lock()
	for _, sub := range bucket.conversations[ev.ConversationID] {
		live[sub.UserID] = true
		select {
		case sub.events <- ev:
			// enqueued
		default:
			// feed buffer full -> drop; the client re-fetches history on reconnect
			b.dropped.Add(1)
			log.Printf("feed full for subscription %s in conversation %s, event dropped", sub.ID, ev.ConversationID)
		}
	}
	bucket.Unlock()

	if ev.Type != event.TypeMessage {
		return
	}
	for _, userID := range participants {
		if userID == ev.SenderID || live[userID] {
			continue
		}
		b.dispatcher.Enqueue(notificationFor(ev, userID))
	}
}

// notificationFor converts an undelivered message event into the push record
// for the target participant.
func notificationFor(ev event.Event, userID string) model.Notification {
	var body event.MessageBody
	_ = json.Unmarshal(ev.Body, &body)

	snippet := model.Payload{Text: body.Text, ImageRef: body.ImageRef, Location: body.Location}.Snippet()
	params, _ := json.Marshal(map[string]string{
		"conversationId": ev.ConversationID,
		"messageId":      body.MessageID,
	})

	return model.Notification{
		UserID:   userID,
		Category: model.CategoryNewMessage,
		Title:    "New message",
		Body:     snippet,
		Data: model.NotificationData{
			ConversationID: ev.ConversationID,
			MessageID:      body.MessageID,
			Screen:         "Conversation",
			Params:         string(params),
		},
		CreatedAt: time.Now().UTC(),
	}
}

// enqueueInbound hands a client event to the worker pool without blocking the
// reader for long.
func (b *Broker) enqueueInbound(senderID string, ev event.Event) bool {
	select {
	case b.inbound <- inboundEvent{senderID: senderID, ev: ev}:
		return true
	case <-time.After(inboundSendTimeout):
		return false
	case <-b.ctx.Done():
		return false
	}
}

func (b *Broker) handleEvent(in inboundEvent) {
	if b.sink == nil {
		log.Printf("no sink configured, dropping inbound %s event", in.ev.Type)
		return
	}

	switch in.ev.Type {
	case event.TypeMessage, event.TypeTyping:
		b.sink.HandleInbound(b.ctx, in.senderID, in.ev)
	default:
		log.Printf("unknown event type: %s", in.ev.Type)
	}
}

// DroppedEvents reports how many events were shed on full feed buffers.
func (b *Broker) DroppedEvents() uint64 {
	return b.dropped.Load()
}

// Stop cancels every live subscription and drains the worker pool. The
// inbound channel is never closed; read pumps racing shutdown unblock on
// ctx.Done instead.
func (b *Broker) Stop() {
	b.cancel()

	// Collect under the shard locks, cancel outside them. A concurrent
	// Cancel already inside its sync.Once may be waiting on a shard lock;
	// holding it while entering the same Once would wedge both sides.
	var subs []*Subscription
	for _, bucket := range b.shards {
		bucket.Lock()
		for convID, convSubs := range bucket.conversations {
			for _, sub := range convSubs {
				subs = append(subs, sub)
			}
			delete(bucket.conversations, convID)
		}
		bucket.Unlock()
	}

	for _, sub := range subs {
		sub.Cancel()
	}

	b.wg.Wait()
}

func getShard(conversationID string) uint32 {
	if conversationID == "" {
		return 0
	}

	h := sha1.Sum([]byte(conversationID))
	return binary.BigEndian.Uint32(h[:4]) % shardCount
}

var (
	websocketUpgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}
)

func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	switch origin {
	case "", "http://localhost:19006":
		return true
	case "https://app.skillnest.in":
		return true
	default:
		return false
	}
}

// ServeWS upgrades the request and attaches a connected client to the
// conversation feed.
func (b *Broker) ServeWS(w http.ResponseWriter, r *http.Request, userID, conversationID string) {
	conn, err := websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	RegisterClient(userID, conversationID, conn, b)
}
