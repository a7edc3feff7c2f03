package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhinay-x/skillnest-connect-sub002/internal/db"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// NotificationRepository owns durable notification records. These back the
// in-app notification list and stay authoritative whether or not the push
// leg delivered.
type NotificationRepository interface {
	Insert(ctx context.Context, n *model.Notification) (string, error)
	ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

type notificationRepository struct {
	mongoRepo *db.Repository[model.Notification]
	logger    *zap.Logger
}

func NewNotificationRepository(repo *db.Repository[model.Notification], logger *zap.Logger) NotificationRepository {
	return &notificationRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// EnsureNotificationIndexes creates the per-user listing index.
func EnsureNotificationIndexes(ctx context.Context, repo *db.Repository[model.Notification]) error {
	_, err := repo.Collection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}

func (r *notificationRepository) Insert(ctx context.Context, n *model.Notification) (string, error) {
	if n == nil || n.UserID == "" {
		return "", errors.New("invalid notification: target user required")
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := r.mongoRepo.Create(ctx, *n)
	if err != nil {
		r.logger.Error("failed to insert notification",
			zap.String("user_id", n.UserID),
			zap.String("category", n.Category),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %v", model.ErrStorageUnavailable, err)
	}

	insertedID := ""
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		insertedID = oid.Hex()
		n.ID = oid
	}
	return insertedID, nil
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]model.Notification, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	builder := db.NewFilter().Eq("user_id", userID)
	if unreadOnly {
		builder.Eq("read", false)
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	items, err := r.mongoRepo.Find(ctx, builder.Build(), opts)
	if err != nil {
		r.logger.Error("failed to list notifications", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("list notifications failed: %w", err)
	}
	return items, nil
}

// MarkRead flips the read flag for a notification owned by userID. Unknown or
// foreign ids report ErrNotificationNotFound; repeats are a no-op.
func (r *notificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return model.ErrNotificationNotFound
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	res, err := r.mongoRepo.UpdateOne(ctx,
		bson.M{"_id": objectID, "user_id": userID},
		bson.M{"read": true},
	)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrStorageUnavailable, err)
	}
	if res.MatchedCount == 0 {
		return model.ErrNotificationNotFound
	}
	return nil
}
