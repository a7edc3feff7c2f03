package configuration

import (
	"encoding/json"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type MongoConfig struct {
	Uri                     string `json:"uri"`
	Database                string `json:"database"`
	MessagesCollection      string `json:"messagesCollection"`
	ConversationsCollection string `json:"conversationsCollection"`
	NotificationsCollection string `json:"notificationsCollection"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type ServerConfig struct {
	AppPort     int    `json:"app_port"`
	SocketPort  int    `json:"socket_port"`
	SocketRoute string `json:"socket_route"`
}

type AuthConfig struct {
	Secret        string `json:"secret"`
	TokenTTLHours int    `json:"token_ttl_hours"`
}

type PushConfig struct {
	Endpoint string `json:"endpoint"`
}

type ChatConfig struct {
	TypingTTLSeconds int `json:"typing_ttl_seconds"`
}

type NotifyConfig struct {
	QueueSize int `json:"queue_size"`
	Workers   int `json:"workers"`
}

type Config struct {
	Mongo  MongoConfig  `json:"mongo"`
	Redis  RedisConfig  `json:"redis"`
	Server ServerConfig `json:"server"`
	Auth   AuthConfig   `json:"auth"`
	Push   PushConfig   `json:"push"`
	Chat   ChatConfig   `json:"chat"`
	Notify NotifyConfig `json:"notify"`
}

func defaults() Config {
	return Config{
		Mongo: MongoConfig{
			Uri:                     "mongodb://localhost:27017",
			Database:                "skillnest_chat",
			MessagesCollection:      "messages",
			ConversationsCollection: "conversations",
			NotificationsCollection: "notifications",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Server: ServerConfig{
			AppPort:     8080,
			SocketPort:  8081,
			SocketRoute: "chat",
		},
		Auth: AuthConfig{
			TokenTTLHours: 24,
		},
		Chat: ChatConfig{
			TypingTTLSeconds: 5,
		},
		Notify: NotifyConfig{
			QueueSize: 1024,
			Workers:   4,
		},
	}
}

// LoadConfig reads the JSON config file when present and applies environment
// overrides on top. A .env file is honored for local development.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := defaults()

	if configPath != "" {
		file, err := os.ReadFile(configPath)
		if err == nil {
			if err := json.Unmarshal(file, &config); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(&config)
	return &config, nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("MONGO_URI"); v != "" {
		config.Mongo.Uri = v
	}
	if v := os.Getenv("MONGO_DATABASE"); v != "" {
		config.Mongo.Database = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		config.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		config.Redis.Password = v
	}
	if v := os.Getenv("ACCESS_TOKEN_SECRET"); v != "" {
		config.Auth.Secret = v
	}
	if v := os.Getenv("PUSH_ENDPOINT"); v != "" {
		config.Push.Endpoint = v
	}
	if v := os.Getenv("APP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.AppPort = port
		}
	}
	if v := os.Getenv("SOCKET_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.SocketPort = port
		}
	}
}
