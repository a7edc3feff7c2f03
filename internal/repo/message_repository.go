package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abhinay-x/skillnest-connect-sub002/internal/db"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var (
	ErrInvalidMessage        = errors.New("invalid message: message cannot be nil")
	ErrInvalidConversationID = errors.New("invalid conversation ID: cannot be empty")
	ErrOperationTimeout      = errors.New("operation timeout exceeded")
)

const (
	// Timeouts
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second

	// Retry configuration
	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second
)

// Cursor restarts a forward listing strictly after the given position. The
// zero Cursor lists from the start of the conversation.
type Cursor struct {
	After    time.Time
	AfterSeq int64
}

// MessageRepository owns the durable, append-only per-conversation message
// log. Ordering is (created_at, seq) ascending; seq breaks timestamp ties in
// insertion order.
type MessageRepository interface {
	Insert(ctx context.Context, msg *model.Message) (string, error)
	List(ctx context.Context, conversationID string, cur Cursor, limit int64) ([]model.Message, error)
	Get(ctx context.Context, id string) (*model.Message, error)
	MarkRead(ctx context.Context, id string) error
}

type messageRepository struct {
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger
}

func NewMessageRepository(repo *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// EnsureMessageIndexes creates the listing index. Called once at startup.
func EnsureMessageIndexes(ctx context.Context, repo *db.Repository[model.Message]) error {
	_, err := repo.Collection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "conversation_id", Value: 1},
			{Key: "created_at", Value: 1},
			{Key: "seq", Value: 1},
		},
	})
	return err
}

// -----------------------------------------------------------------------------
// Insert
// -----------------------------------------------------------------------------

func (m *messageRepository) Insert(ctx context.Context, msg *model.Message) (string, error) {
	if msg == nil {
		return "", ErrInvalidMessage
	}
	if msg.ConversationID.IsZero() {
		return "", ErrInvalidConversationID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return "", err
			}
		}

		result, err := m.mongoRepo.Create(ctx, *msg)
		if err == nil {
			insertedID := ""
			if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
				insertedID = oid.Hex()
				msg.ID = oid
			}

			m.logger.Info("message inserted",
				zap.String("inserted_id", insertedID),
				zap.String("conversation_id", msg.ConversationID.Hex()),
				zap.Int("attempt", attempt+1),
			)
			return insertedID, nil
		}

		lastErr = err

		// Don't retry on context cancellation or non-retryable errors
		if !isRetryableError(err) {
			break
		}

		m.logger.Warn("insert attempt failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
		)
	}

	m.logger.Error("failed to insert message after all retries",
		zap.Error(lastErr),
		zap.String("conversation_id", msg.ConversationID.Hex()),
	)

	return "", fmt.Errorf("%w: %v", model.ErrStorageUnavailable, lastErr)
}

// -----------------------------------------------------------------------------
// List
// -----------------------------------------------------------------------------

func (m *messageRepository) List(ctx context.Context, conversationID string, cur Cursor, limit int64) ([]model.Message, error) {
	if conversationID == "" {
		return nil, ErrInvalidConversationID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	builder := db.NewFilter().ObjectID("conversation_id", conversationID)
	if !cur.After.IsZero() {
		// Strictly after (created_at, seq). Timestamp ties fall back to seq.
		builder.Or(
			db.NewFilter().Gt("created_at", cur.After).Build(),
			db.NewFilter().Eq("created_at", cur.After).Gt("seq", cur.AfterSeq).Build(),
		)
	}
	filter := builder.Build()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "seq", Value: 1}}).
		SetLimit(limit)

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return nil, err
			}
			m.logger.Warn("retrying message list",
				zap.String("conversation_id", conversationID),
				zap.Int("attempt", attempt+1),
			)
		}

		msgs, err := m.mongoRepo.Find(ctx, filter, opts)
		if err == nil {
			m.logger.Debug("messages listed",
				zap.String("conversation_id", conversationID),
				zap.Int("count", len(msgs)),
			)
			return msgs, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	return nil, m.handleReadError(lastErr, conversationID)
}

func (m *messageRepository) Get(ctx context.Context, id string) (*model.Message, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, model.ErrMessageNotFound
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	msg, err := m.mongoRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrMessageNotFound
		}
		return nil, fmt.Errorf("get message failed: %w", err)
	}
	return msg, nil
}

// MarkRead flips the read flag. Re-marking an already-read message matches
// zero documents and stays a no-op.
func (m *messageRepository) MarkRead(ctx context.Context, id string) error {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return model.ErrMessageNotFound
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	_, err := m.mongoRepo.UpdateByID(ctx, id, bson.M{"read": true})
	if err != nil {
		m.logger.Error("failed to mark message read", zap.String("message_id", id), zap.Error(err))
		return fmt.Errorf("%w: %v", model.ErrStorageUnavailable, err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Private Helper Methods
// -----------------------------------------------------------------------------

func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

func waitForRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	// Check for MongoDB transient errors
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return true
	}

	return false
}

func (m *messageRepository) handleReadError(err error, conversationID string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		m.logger.Error("read timeout", zap.String("conversation_id", conversationID))
		return ErrOperationTimeout
	}

	if errors.Is(err, context.Canceled) {
		m.logger.Debug("read cancelled", zap.String("conversation_id", conversationID))
		return err
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil // Not an error, just empty result
	}

	m.logger.Error("read failed", zap.Error(err), zap.String("conversation_id", conversationID))
	return fmt.Errorf("list messages failed: %w", err)
}
