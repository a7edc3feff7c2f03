package service

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"
	"time"

	"github.com/abhinay-x/skillnest-connect-sub002/internal/event"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/hub"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/model"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/repo"

	"go.uber.org/zap"
)

const (
	appendStripes   = 64
	defaultPageSize = 50
	maxPageSize     = 100
)

// Publisher is the live fan-out side of the delivery broker.
type Publisher interface {
	Publish(ev event.Event, participants []string)
}

// ChatService orchestrates the message store, conversation registry, presence
// coordinator and delivery broker. The caller's identity is passed explicitly
// into every operation; nothing is read from ambient state.
type ChatService struct {
	conversations repo.ConversationRepository
	messages      repo.MessageRepository
	broker        Publisher
	presence      *hub.PresenceCoordinator
	logger        *zap.Logger

	// appendLocks serialize writes within a conversation so seq assignment
	// and insert stay in step; appends across conversations run in parallel.
	appendLocks [appendStripes]sync.Mutex
}

func NewChatService(
	conversations repo.ConversationRepository,
	messages repo.MessageRepository,
	broker Publisher,
	presence *hub.PresenceCoordinator,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		messages:      messages,
		broker:        broker,
		presence:      presence,
		logger:        logger,
	}
}

func (s *ChatService) appendLock(conversationID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(conversationID))
	return &s.appendLocks[h.Sum32()%appendStripes]
}

// GetOrCreateConversation resolves the conversation for a booking,
// idempotently. Concurrent callers for the same booking all observe the same
// conversation id.
func (s *ChatService) GetOrCreateConversation(ctx context.Context, bookingID, customerID, workerID string) (*model.Conversation, error) {
	return s.conversations.GetOrCreate(ctx, bookingID, customerID, workerID)
}

// ListConversations returns the user's conversations, most recent activity
// first.
func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	return s.conversations.ListForUser(ctx, userID)
}

// GetConversation returns a conversation the requester participates in.
func (s *ChatService) GetConversation(ctx context.Context, requesterID, conversationID string) (*model.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(requesterID) {
		return nil, model.ErrNotParticipant
	}
	return conv, nil
}

// Append validates, durably stores and fans out one message. The durable
// write strictly precedes fan-out, so a subscriber never observes a message
// that a subsequent List would miss. Sending implies stop-typing.
func (s *ChatService) Append(ctx context.Context, senderID, conversationID string, p model.Payload) (*model.Message, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		return nil, model.ErrInvalidSender
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	lock := s.appendLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	seq, err := s.conversations.NextSeq(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	msg := &model.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Text:           p.Text,
		ImageRef:       p.ImageRef,
		Location:       p.Location,
		Seq:            seq,
		CreatedAt:      time.Now().UTC(),
	}

	if _, err := s.messages.Insert(ctx, msg); err != nil {
		return nil, err
	}

	// The message is durable from here on; everything below is best-effort
	// and must not surface as a send failure.
	if err := s.conversations.UpdateSummary(ctx, conversationID, model.LastMessage{
		MessageID: msg.ID.Hex(),
		Snippet:   p.Snippet(),
		SenderID:  senderID,
		SentAt:    msg.CreatedAt,
	}); err != nil {
		s.logger.Warn("summary update failed after durable write",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}

	s.presence.SetTyping(conversationID, senderID, false)
	s.broker.Publish(event.NewMessageEvent(msg), conv.ParticipantIDs)

	return msg, nil
}

// ListMessages returns messages strictly after the cursor in (timestamp, seq)
// order, bounded by limit.
func (s *ChatService) ListMessages(ctx context.Context, requesterID, conversationID string, cur repo.Cursor, limit int64) ([]model.Message, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(requesterID) {
		return nil, model.ErrNotParticipant
	}

	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return s.messages.List(ctx, conversationID, cur, limit)
}

// MarkRead flips the read flag on behalf of the non-sender participant.
// Re-marking an already-read message is a no-op.
func (s *ChatService) MarkRead(ctx context.Context, readerID, messageID string) error {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	conv, err := s.conversations.GetByID(ctx, msg.ConversationID.Hex())
	if err != nil {
		return err
	}
	if conv.OtherParticipant(msg.SenderID) != readerID {
		return model.ErrNotParticipant
	}
	if msg.Read {
		return nil
	}
	return s.messages.MarkRead(ctx, messageID)
}

// SetTyping records the typing signal and fans it out to live subscribers.
// Typing never escalates to a push notification.
func (s *ChatService) SetTyping(ctx context.Context, userID, conversationID string, isTyping bool) error {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return model.ErrNotParticipant
	}

	s.presence.SetTyping(conversationID, userID, isTyping)
	s.broker.Publish(event.NewTypingEvent(conversationID, userID, isTyping), conv.ParticipantIDs)
	return nil
}

// IsTypingNow evaluates the counterpart's typing state against the TTL.
func (s *ChatService) IsTypingNow(conversationID, userID string) bool {
	return s.presence.IsTypingNow(conversationID, userID)
}

// TypingSnapshot returns the live typing states for a conversation the
// requester participates in.
func (s *ChatService) TypingSnapshot(ctx context.Context, requesterID, conversationID string) ([]model.TypingState, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(requesterID) {
		return nil, model.ErrNotParticipant
	}
	return s.presence.Snapshot(conversationID), nil
}

// HandleInbound consumes events drained from the broker's worker pool. The
// socket layer already pinned sender and conversation to the connection.
func (s *ChatService) HandleInbound(ctx context.Context, senderID string, ev event.Event) {
	switch ev.Type {
	case event.TypeMessage:
		var body event.MessageBody
		if err := json.Unmarshal(ev.Body, &body); err != nil {
			s.logger.Warn("malformed inbound message body", zap.String("sender_id", senderID), zap.Error(err))
			return
		}
		p := model.Payload{Text: body.Text, ImageRef: body.ImageRef, Location: body.Location}
		if _, err := s.Append(ctx, senderID, ev.ConversationID, p); err != nil {
			s.logger.Warn("inbound append rejected",
				zap.String("sender_id", senderID),
				zap.String("conversation_id", ev.ConversationID),
				zap.Error(err),
			)
		}
	case event.TypeTyping:
		var body event.TypingBody
		if err := json.Unmarshal(ev.Body, &body); err != nil {
			s.logger.Warn("malformed inbound typing body", zap.String("sender_id", senderID), zap.Error(err))
			return
		}
		if err := s.SetTyping(ctx, senderID, ev.ConversationID, body.IsTyping); err != nil {
			s.logger.Debug("inbound typing rejected",
				zap.String("sender_id", senderID),
				zap.String("conversation_id", ev.ConversationID),
				zap.Error(err),
			)
		}
	}
}
