package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxTextLength is the upper bound for a text payload, in runes.
const MaxTextLength = 1000

// Message is one entry in a conversation's append-only log. Payload and
// sender are immutable after insert; only the Read flag may change, and only
// by the non-sender participant.
type Message struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ConversationID primitive.ObjectID `json:"conversationId" bson:"conversation_id"`
	SenderID       string             `json:"senderId" bson:"sender_id"`
	Text           string             `json:"text,omitempty" bson:"text,omitempty"`
	ImageRef       string             `json:"imageRef,omitempty" bson:"image_ref,omitempty"`
	Location       *GeoPoint          `json:"location,omitempty" bson:"location,omitempty"`
	Seq            int64              `json:"seq" bson:"seq"`
	Read           bool               `json:"read" bson:"read"`
	CreatedAt      time.Time          `json:"createdAt" bson:"created_at"`
}

// GeoPoint is a location pin shared in a conversation.
type GeoPoint struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

// Payload holds the outgoing message content before it is stored. Exactly one
// of the three variants must be set.
type Payload struct {
	Text     string    `json:"text,omitempty"`
	ImageRef string    `json:"imageRef,omitempty"`
	Location *GeoPoint `json:"location,omitempty"`
}

// Validate checks the exactly-one-variant rule and the text length bound.
func (p Payload) Validate() error {
	variants := 0
	if p.Text != "" {
		variants++
	}
	if p.ImageRef != "" {
		variants++
	}
	if p.Location != nil {
		variants++
	}
	if variants != 1 {
		return ErrInvalidPayload
	}
	if len([]rune(p.Text)) > MaxTextLength {
		return ErrPayloadTooLarge
	}
	return nil
}

// Snippet returns the conversation-list preview for this payload.
func (p Payload) Snippet() string {
	switch {
	case p.ImageRef != "":
		return "Sent a photo"
	case p.Location != nil:
		return "Shared a location"
	default:
		runes := []rune(p.Text)
		if len(runes) > 80 {
			return string(runes[:80])
		}
		return p.Text
	}
}

// ErrorPayload represents an error response sent to a client over WebSocket.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
