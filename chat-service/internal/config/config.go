package config

import (
	"time"

	"github.com/filmnt/chat/chat-service/internal/persist"
	"github.com/filmnt/chat/chat-service/internal/ratelimit"
	pkgconfig "github.com/filmnt/chat/pkg/config"
	"github.com/filmnt/chat/pkg/database"
	"github.com/filmnt/chat/pkg/log"
	"github.com/filmnt/chat/pkg/storage"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	GRPC      GRPCConfig
	WebSocket WebSocketConfig
	Room      RoomConfig
	Rate      ratelimit.Config
	Admin     AdminConfig
	Verify    VerifyConfig
	Storage   StorageConfig
	Kafka     KafkaConfig
	Redis     persist.RedisConfig
	Database  database.Config
	Blob      storage.Config
	Log       log.Config
}

type ServerConfig struct {
	Host string
	Port int
}

type GRPCConfig struct {
	Enabled bool
	Host    string
	Port    int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

// RoomConfig describes the single chat room.
type RoomConfig struct {
	Name              string
	WindowHours       int           `mapstructure:"window_hours"`
	MaxMessages       int           `mapstructure:"max_messages"`
	MaxMessageLength  int           `mapstructure:"max_message_length"`
	MaxNicknameLength int           `mapstructure:"max_nickname_length"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	AdminRole         string        `mapstructure:"admin_role"`
	Greeting          string
}

// Window is the retention window of the room log.
func (r RoomConfig) Window() time.Duration {
	return time.Duration(r.WindowHours) * time.Hour
}

type AdminConfig struct {
	Secret string
}

type VerifyConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

type StorageConfig struct {
	Driver string
}

type KafkaConfig struct {
	Enabled      bool
	Brokers      string
	Topic        string
	FlushTimeout time.Duration `mapstructure:"flush_timeout"`
}

// Persist returns the state store configuration.
func (c *Config) Persist() persist.Config {
	return persist.Config{
		Driver:   c.Storage.Driver,
		Redis:    c.Redis,
		Database: c.Database,
		Blob:     c.Blob,
	}
}

// Load reads ./config/config.yaml and the environment.
func Load() (*Config, error) {
	return LoadFrom("./config")
}

// LoadFrom reads config.yaml from configPath and the environment.
func LoadFrom(configPath string) (*Config, error) {
	v, err := pkgconfig.Load(configPath, "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8787)
	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50052)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("room.name", "main")
	v.SetDefault("room.window_hours", 24)
	v.SetDefault("room.max_messages", 100)
	v.SetDefault("room.max_message_length", 500)
	v.SetDefault("room.max_nickname_length", 32)
	v.SetDefault("room.sweep_interval", "1m")
	v.SetDefault("room.admin_role", "Admin")
	v.SetDefault("room.greeting", "")
	v.SetDefault("rate.max_messages", 5)
	v.SetDefault("rate.window", "10s")
	v.SetDefault("rate.timeout", "60s")
	v.SetDefault("admin.secret", "")
	v.SetDefault("verify.url", "https://challenges.cloudflare.com/turnstile/v0/siteverify")
	v.SetDefault("verify.secret", "")
	v.SetDefault("verify.timeout", "10s")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "chat-room-events")
	v.SetDefault("kafka.flush_timeout", "5s")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "chat")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.file_path", "chat.db")
	v.SetDefault("blob.driver", "local")
	v.SetDefault("blob.local.base_path", "data")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "chat-service")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("grpc.port", "GRPC_PORT")
	v.BindEnv("admin.secret", "ADMIN_SECRET")
	v.BindEnv("verify.secret", "VERIFY_SECRET")
	v.BindEnv("verify.url", "VERIFY_URL")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("kafka.enabled", "KAFKA_ENABLED")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("blob.s3.bucket", "S3_BUCKET")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Room.SweepInterval = parseDuration(v, "room.sweep_interval", time.Minute)
	cfg.Rate.Window = parseDuration(v, "rate.window", 10*time.Second)
	cfg.Rate.Timeout = parseDuration(v, "rate.timeout", time.Minute)
	cfg.Verify.Timeout = parseDuration(v, "verify.timeout", 10*time.Second)
	cfg.Kafka.FlushTimeout = parseDuration(v, "kafka.flush_timeout", 5*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
