package configuration

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/abhinay-x/skillnest-connect-sub002/internal/auth"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/db"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/handler"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/hub"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/model"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/notify"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/repo"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/service"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Container struct {
	ChatHandler         handler.ChatHandler
	NotificationHandler handler.NotificationHandler
	ChatService         *service.ChatService
	Broker              *hub.Broker
	Presence            *hub.PresenceCoordinator
	Dispatcher          *notify.Dispatcher
	TokenManager        *auth.TokenManager
	Config              Config
	Logger              *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
	redisClient *redis.Client
}

func BuildContainer() (*Container, error) {
	config, err := LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	con, err := db.OpenConnection(config.Mongo.Uri, config.Mongo.Database)
	if err != nil {
		return nil, err
	}

	logger, _ := zap.NewProduction()

	messageStore := db.NewRepository[model.Message](con, config.Mongo.MessagesCollection)
	conversationStore := db.NewRepository[model.Conversation](con, config.Mongo.ConversationsCollection)
	notificationStore := db.NewRepository[model.Notification](con, config.Mongo.NotificationsCollection)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repo.EnsureConversationIndexes(ctx, conversationStore); err != nil {
		return nil, fmt.Errorf("failed to ensure conversation indexes: %w", err)
	}
	if err := repo.EnsureMessageIndexes(ctx, messageStore); err != nil {
		return nil, fmt.Errorf("failed to ensure message indexes: %w", err)
	}
	if err := repo.EnsureNotificationIndexes(ctx, notificationStore); err != nil {
		return nil, fmt.Errorf("failed to ensure notification indexes: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	messageRepo := repo.NewMessageRepository(messageStore, logger)
	conversationRepo := repo.NewConversationRepository(conversationStore, logger)
	notificationRepo := repo.NewNotificationRepository(notificationStore, logger)

	tokenStore := notify.NewRedisTokenStore(redisClient)
	pusher := notify.NewHTTPPusher(config.Push.Endpoint)
	dispatcher := notify.NewDispatcher(notificationRepo, tokenStore, pusher,
		config.Notify.QueueSize, config.Notify.Workers, logger)

	presence := hub.NewPresenceCoordinator(time.Duration(config.Chat.TypingTTLSeconds) * time.Second)
	broker := hub.NewBroker(presence, dispatcher)

	chatService := service.NewChatService(conversationRepo, messageRepo, broker, presence, logger)
	// The service publishes through the broker and the broker drains inbound
	// socket events into the service, so the sink is wired after construction.
	broker.SetSink(chatService)

	notificationService := service.NewNotificationService(notificationRepo, tokenStore, logger)

	tokenManager := auth.NewTokenManager(config.Auth.Secret,
		time.Duration(config.Auth.TokenTTLHours)*time.Hour)

	return &Container{
		ChatHandler:         handler.NewChatHandler(chatService),
		NotificationHandler: handler.NewNotificationHandler(notificationService),
		ChatService:         chatService,
		Broker:              broker,
		Presence:            presence,
		Dispatcher:          dispatcher,
		TokenManager:        tokenManager,
		Config:              *config,
		Logger:              logger,
		mongoClient:         con,
		redisClient:         redisClient,
	}, nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the broker first (closes all live feeds)
	if c.Broker != nil {
		c.Broker.Stop()
	}

	// Drain the notification workers
	if c.Dispatcher != nil {
		c.Dispatcher.Stop()
	}

	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			return fmt.Errorf("failed to close redis connection: %w", err)
		}
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
