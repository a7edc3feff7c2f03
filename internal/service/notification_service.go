package service

import (
	"context"

	"github.com/abhinay-x/skillnest-connect-sub002/internal/model"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/repo"

	"go.uber.org/zap"
)

// TokenRegistrar manages the device push-token registry.
type TokenRegistrar interface {
	Register(ctx context.Context, userID, token string) error
	Remove(ctx context.Context, userID, token string) error
}

// NotificationService exposes the user-facing notification surface: the
// authoritative in-app list plus device token management.
type NotificationService struct {
	records repo.NotificationRepository
	tokens  TokenRegistrar
	logger  *zap.Logger
}

func NewNotificationService(records repo.NotificationRepository, tokens TokenRegistrar, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		records: records,
		tokens:  tokens,
		logger:  logger,
	}
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool) ([]model.Notification, error) {
	return s.records.ListForUser(ctx, userID, unreadOnly)
}

// MarkRead flips the read flag; only the owning user's records match.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.records.MarkRead(ctx, userID, notificationID)
}

// RegisterDevice records a device push token for the user.
func (s *NotificationService) RegisterDevice(ctx context.Context, userID, token string) error {
	if err := s.tokens.Register(ctx, userID, token); err != nil {
		s.logger.Error("device token registration failed", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	return nil
}

// RemoveDevice forgets a device push token.
func (s *NotificationService) RemoveDevice(ctx context.Context, userID, token string) error {
	return s.tokens.Remove(ctx, userID, token)
}
