package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation is the persistent thread between the two participants of a
// booking. Exactly one conversation exists per booking; the participant pair
// is fixed at creation.
type Conversation struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	BookingID      string             `json:"bookingId" bson:"booking_id"`
	ParticipantIDs []string           `json:"participantIds" bson:"participant_ids"`
	LastMessage    *LastMessage       `json:"lastMessage" bson:"last_message"`
	MessageSeq     int64              `json:"-" bson:"message_seq"`
	CreatedAt      time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updated_at"`
	LastMessageAt  time.Time          `json:"lastMessageAt" bson:"last_message_at"`
}

// LastMessage stores the most recent message preview shown in conversation lists.
type LastMessage struct {
	MessageID string    `json:"messageId" bson:"message_id"`
	Snippet   string    `json:"snippet" bson:"snippet"`
	SenderID  string    `json:"senderId" bson:"sender_id"`
	SentAt    time.Time `json:"sentAt" bson:"sent_at"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the counterpart of userID, or "" when userID is
// not a participant.
func (c *Conversation) OtherParticipant(userID string) string {
	if len(c.ParticipantIDs) != 2 || !c.HasParticipant(userID) {
		return ""
	}
	if c.ParticipantIDs[0] == userID {
		return c.ParticipantIDs[1]
	}
	return c.ParticipantIDs[0]
}
