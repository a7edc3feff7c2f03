package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/abhinay-x/skillnest-connect-sub002/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory repository implementations. They back tests and single-process
// development runs and honor the same contracts as the Mongo repositories.

// MemoryConversationRepository keeps conversations in process memory. The
// booking index map plays the role of the unique index: first writer wins.
type MemoryConversationRepository struct {
	mu        sync.RWMutex
	byID      map[string]*model.Conversation
	byBooking map[string]string
}

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{
		byID:      make(map[string]*model.Conversation),
		byBooking: make(map[string]string),
	}
}

func (r *MemoryConversationRepository) GetOrCreate(_ context.Context, bookingID, customerID, workerID string) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byBooking[bookingID]; ok {
		return copyConversation(r.byID[id]), nil
	}

	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:             primitive.NewObjectID(),
		BookingID:      bookingID,
		ParticipantIDs: []string{customerID, workerID},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.byID[conv.ID.Hex()] = conv
	r.byBooking[bookingID] = conv.ID.Hex()
	return copyConversation(conv), nil
}

func (r *MemoryConversationRepository) GetByID(_ context.Context, id string) (*model.Conversation, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, ErrInvalidConversationID
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.byID[id]
	if !ok {
		return nil, model.ErrConversationNotFound
	}
	return copyConversation(conv), nil
}

func (r *MemoryConversationRepository) NextSeq(_ context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.byID[id]
	if !ok {
		return 0, model.ErrConversationNotFound
	}
	conv.MessageSeq++
	return conv.MessageSeq, nil
}

func (r *MemoryConversationRepository) UpdateSummary(_ context.Context, id string, last model.LastMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.byID[id]
	if !ok {
		return model.ErrConversationNotFound
	}
	// Monotonic: stale updates are ignored, not errors.
	if !last.SentAt.After(conv.LastMessageAt) {
		return nil
	}
	cp := last
	conv.LastMessage = &cp
	conv.LastMessageAt = last.SentAt
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryConversationRepository) ListForUser(_ context.Context, userID string) ([]model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Conversation
	for _, conv := range r.byID {
		if conv.HasParticipant(userID) {
			out = append(out, *copyConversation(conv))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out, nil
}

// Count returns the number of stored conversations.
func (r *MemoryConversationRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func copyConversation(c *model.Conversation) *model.Conversation {
	cp := *c
	cp.ParticipantIDs = append([]string(nil), c.ParticipantIDs...)
	if c.LastMessage != nil {
		lm := *c.LastMessage
		cp.LastMessage = &lm
	}
	return &cp
}

// MemoryMessageRepository keeps per-conversation message logs in memory.
// FailWrites simulates a durable-store outage.
type MemoryMessageRepository struct {
	mu         sync.RWMutex
	byConv     map[string][]*model.Message
	byID       map[string]*model.Message
	FailWrites bool
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{
		byConv: make(map[string][]*model.Message),
		byID:   make(map[string]*model.Message),
	}
}

func (r *MemoryMessageRepository) Insert(_ context.Context, msg *model.Message) (string, error) {
	if msg == nil {
		return "", ErrInvalidMessage
	}
	if msg.ConversationID.IsZero() {
		return "", ErrInvalidConversationID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailWrites {
		return "", model.ErrStorageUnavailable
	}

	stored := *msg
	stored.ID = primitive.NewObjectID()
	convID := stored.ConversationID.Hex()
	r.byConv[convID] = append(r.byConv[convID], &stored)
	r.byID[stored.ID.Hex()] = &stored

	msg.ID = stored.ID
	return stored.ID.Hex(), nil
}

func (r *MemoryMessageRepository) List(_ context.Context, conversationID string, cur Cursor, limit int64) ([]model.Message, error) {
	if conversationID == "" {
		return nil, ErrInvalidConversationID
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	log := r.byConv[conversationID]
	out := make([]model.Message, 0, len(log))
	for _, m := range log {
		if !afterCursor(m, cur) {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func afterCursor(m *model.Message, cur Cursor) bool {
	if cur.After.IsZero() {
		return true
	}
	if m.CreatedAt.After(cur.After) {
		return true
	}
	return m.CreatedAt.Equal(cur.After) && m.Seq > cur.AfterSeq
}

func (r *MemoryMessageRepository) Get(_ context.Context, id string) (*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msg, ok := r.byID[id]
	if !ok {
		return nil, model.ErrMessageNotFound
	}
	cp := *msg
	return &cp, nil
}

func (r *MemoryMessageRepository) MarkRead(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.byID[id]
	if !ok {
		return model.ErrMessageNotFound
	}
	msg.Read = true
	return nil
}

// MemoryNotificationRepository keeps notification records in memory.
type MemoryNotificationRepository struct {
	mu     sync.RWMutex
	byUser map[string][]*model.Notification
	byID   map[string]*model.Notification
}

func NewMemoryNotificationRepository() *MemoryNotificationRepository {
	return &MemoryNotificationRepository{
		byUser: make(map[string][]*model.Notification),
		byID:   make(map[string]*model.Notification),
	}
}

func (r *MemoryNotificationRepository) Insert(_ context.Context, n *model.Notification) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *n
	stored.ID = primitive.NewObjectID()
	r.byUser[stored.UserID] = append(r.byUser[stored.UserID], &stored)
	r.byID[stored.ID.Hex()] = &stored

	n.ID = stored.ID
	return stored.ID.Hex(), nil
}

func (r *MemoryNotificationRepository) ListForUser(_ context.Context, userID string, unreadOnly bool) ([]model.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := r.byUser[userID]
	out := make([]model.Notification, 0, len(items))
	for _, n := range items {
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryNotificationRepository) MarkRead(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.byID[id]
	if !ok || n.UserID != userID {
		return model.ErrNotificationNotFound
	}
	n.Read = true
	return nil
}
