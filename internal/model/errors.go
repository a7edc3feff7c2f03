package model

import "errors"

var (
	ErrInvalidSender      = errors.New("sender is not a conversation participant")
	ErrNotParticipant     = errors.New("user is not allowed to act on this conversation")
	ErrPayloadTooLarge    = errors.New("text payload exceeds maximum length")
	ErrInvalidPayload     = errors.New("exactly one payload variant must be set")
	ErrStorageUnavailable = errors.New("durable write failed")

	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotificationNotFound = errors.New("notification not found")
)
