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

// ConversationRepository owns Conversation records. GetOrCreate is the single
// linearization point across callers sharing a booking id, implemented with a
// unique index rather than a process-wide lock.
type ConversationRepository interface {
	GetOrCreate(ctx context.Context, bookingID, customerID, workerID string) (*model.Conversation, error)
	GetByID(ctx context.Context, id string) (*model.Conversation, error)
	NextSeq(ctx context.Context, id string) (int64, error)
	UpdateSummary(ctx context.Context, id string, last model.LastMessage) error
	ListForUser(ctx context.Context, userID string) ([]model.Conversation, error)
}

type conversationRepository struct {
	mongoRepo *db.Repository[model.Conversation]
	logger    *zap.Logger
}

func NewConversationRepository(repo *db.Repository[model.Conversation], logger *zap.Logger) ConversationRepository {
	return &conversationRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// EnsureConversationIndexes creates the unique booking index that backs
// first-writer-wins GetOrCreate, plus the per-user listing index.
func EnsureConversationIndexes(ctx context.Context, repo *db.Repository[model.Conversation]) error {
	_, err := repo.Collection().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "booking_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "participant_ids", Value: 1}, {Key: "last_message_at", Value: -1}},
		},
	})
	return err
}

// GetOrCreate returns the conversation for the booking, creating it on first
// call. Concurrent losers hit the unique index and re-fetch the winner, so
// every caller observes the same conversation id.
func (r *conversationRepository) GetOrCreate(ctx context.Context, bookingID, customerID, workerID string) (*model.Conversation, error) {
	if bookingID == "" {
		return nil, errors.New("booking ID cannot be empty")
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("booking_id", bookingID).Build()

	existing, err := r.mongoRepo.FindOne(ctx, filter)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("conversation lookup failed: %w", err)
	}

	now := time.Now().UTC()
	candidate := model.Conversation{
		BookingID:      bookingID,
		ParticipantIDs: []string{customerID, workerID},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	result, err := r.mongoRepo.Create(ctx, candidate)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost the race: discard the candidate, return the winner.
			winner, ferr := r.mongoRepo.FindOne(ctx, filter)
			if ferr != nil {
				return nil, fmt.Errorf("conversation re-fetch after race failed: %w", ferr)
			}
			r.logger.Debug("getOrCreate race resolved",
				zap.String("booking_id", bookingID),
				zap.String("conversation_id", winner.ID.Hex()),
			)
			return winner, nil
		}
		return nil, fmt.Errorf("%w: %v", model.ErrStorageUnavailable, err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		candidate.ID = oid
	}
	r.logger.Info("conversation created",
		zap.String("booking_id", bookingID),
		zap.String("conversation_id", candidate.ID.Hex()),
	)
	return &candidate, nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, ErrInvalidConversationID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	conv, err := r.mongoRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}
	return conv, nil
}

// NextSeq atomically claims the next insertion sequence for the conversation.
// Gaps after a failed insert are harmless; seq only breaks timestamp ties.
func (r *conversationRepository) NextSeq(ctx context.Context, id string) (int64, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, ErrInvalidConversationID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var updated model.Conversation
	err = r.mongoRepo.Collection().FindOneAndUpdate(ctx,
		bson.M{"_id": objectID},
		bson.M{"$inc": bson.M{"message_seq": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, model.ErrConversationNotFound
		}
		return 0, fmt.Errorf("%w: %v", model.ErrStorageUnavailable, err)
	}
	return updated.MessageSeq, nil
}

// UpdateSummary applies the last-message preview monotonically: an update
// carrying an older timestamp than the stored one matches nothing and is
// ignored.
func (r *conversationRepository) UpdateSummary(ctx context.Context, id string, last model.LastMessage) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidConversationID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := bson.M{
		"_id":             objectID,
		"last_message_at": bson.M{"$lt": last.SentAt},
	}
	res, err := r.mongoRepo.UpdateOne(ctx, filter, bson.M{
		"last_message":    last,
		"last_message_at": last.SentAt,
		"updated_at":      time.Now().UTC(),
	})
	if err != nil {
		r.logger.Error("summary update failed",
			zap.String("conversation_id", id),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", model.ErrStorageUnavailable, err)
	}

	if res.MatchedCount == 0 {
		r.logger.Debug("stale summary update ignored",
			zap.String("conversation_id", id),
			zap.Time("sent_at", last.SentAt),
		)
	}
	return nil
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("participant_ids", userID).Build()
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}})

	convs, err := r.mongoRepo.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("failed to list conversations", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("list conversations failed: %w", err)
	}
	return convs, nil
}
