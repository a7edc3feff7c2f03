package event

import (
	"encoding/json"
	"time"

	"github.com/abhinay-x/skillnest-connect-sub002/internal/model"
)

const (
	// Server -> client and client -> server event tags.
	TypeMessage = "message"
	TypeTyping  = "typing"
)

// Event is the tagged envelope carried over a live feed. Body holds the
// type-specific payload.
type Event struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId"`
	SenderID       string          `json:"senderId"`
	EventID        string          `json:"eventId"`
	Body           json.RawMessage `json:"body"`
	Timestamp      int64           `json:"timestamp"`
}

// MessageBody is the body of a TypeMessage event.
type MessageBody struct {
	MessageID string          `json:"messageId"`
	Text      string          `json:"text,omitempty"`
	ImageRef  string          `json:"imageRef,omitempty"`
	Location  *model.GeoPoint `json:"location,omitempty"`
	Seq       int64           `json:"seq"`
	CreatedAt time.Time       `json:"createdAt"`
}

// TypingBody is the body of a TypeTyping event.
type TypingBody struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// NewMessageEvent wraps a stored message for fan-out.
func NewMessageEvent(msg *model.Message) Event {
	body, _ := json.Marshal(MessageBody{
		MessageID: msg.ID.Hex(),
		Text:      msg.Text,
		ImageRef:  msg.ImageRef,
		Location:  msg.Location,
		Seq:       msg.Seq,
		CreatedAt: msg.CreatedAt,
	})
	return Event{
		Type:           TypeMessage,
		ConversationID: msg.ConversationID.Hex(),
		SenderID:       msg.SenderID,
		EventID:        msg.ID.Hex(),
		Body:           body,
		Timestamp:      msg.CreatedAt.UnixMilli(),
	}
}

// NewTypingEvent wraps a typing-state change for fan-out.
func NewTypingEvent(conversationID, userID string, isTyping bool) Event {
	body, _ := json.Marshal(TypingBody{UserID: userID, IsTyping: isTyping})
	return Event{
		Type:           TypeTyping,
		ConversationID: conversationID,
		SenderID:       userID,
		Body:           body,
		Timestamp:      time.Now().UnixMilli(),
	}
}
