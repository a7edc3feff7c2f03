package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification categories.
const (
	CategoryNewMessage = "new_message"
	CategoryBooking    = "booking"
	CategorySystem     = "system"
)

// Notification is a durable per-user notification record. Push delivery is
// best-effort; this record backs the in-app notification list regardless of
// push outcome. Only the owning user may flip the Read flag.
type Notification struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    string             `json:"userId" bson:"user_id"`
	Category  string             `json:"category" bson:"category"`
	Title     string             `json:"title" bson:"title"`
	Body      string             `json:"body" bson:"body"`
	Data      NotificationData   `json:"data" bson:"data"`
	Read      bool               `json:"read" bson:"read"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
}

// NotificationData is the structured payload attached to a push notification
// for deep-linking on activation.
type NotificationData struct {
	ConversationID string `json:"conversationId,omitempty" bson:"conversation_id,omitempty"`
	MessageID      string `json:"messageId,omitempty" bson:"message_id,omitempty"`
	BookingID      string `json:"bookingId,omitempty" bson:"booking_id,omitempty"`
	Screen         string `json:"screen,omitempty" bson:"screen,omitempty"`
	Params         string `json:"params,omitempty" bson:"params,omitempty"`
}
