package model

import "time"

// TypingState is the ephemeral per-(conversation, user) typing signal. It is
// hub-owned process state, never persisted, and treated as false once
// UpdatedAt falls outside the freshness TTL.
type TypingState struct {
	ConversationID string    `json:"conversationId"`
	UserID         string    `json:"userId"`
	IsTyping       bool      `json:"isTyping"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
