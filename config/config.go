package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned by Load when API_KEY is not set.
var ErrMissingAPIKey = errors.New("API key is required")

type Config struct {
	Env    string
	Server ServerConfig
	Upload UploadConfig
	Redis  RedisConfig
	Log    LogConfig
	Kafka  KafkaConfig
}

type ServerConfig struct {
	HTTPPort     int
	GRpcPort     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type UploadConfig struct {
	Endpoint          string
	APIKey            string
	Timeout           time.Duration
	BatchSize         int
	MaxStalls         int
	DrainInterval     time.Duration
	HeartbeatInterval time.Duration
	RetryDelay        time.Duration
	ShutdownTimeout   time.Duration
}

type RedisConfig struct {
	Enabled       bool
	Addr          string
	Password      string
	DB            int
	MaxRetries    int
	PoolSize      int
	MinIdleConns  int
	EventsChannel string
}

type KafkaConfig struct {
	Brokers              []string
	ProducerRetryMax     int
	ProducerRequiredAcks int
	Enabled              bool
	ConsumerGroupID      string
}

type LogConfig struct {
	Level    string
	Mode     string
	Encoding string
}

func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("ENV", "development"),
		Server: ServerConfig{
			HTTPPort:     getEnvAsInt("SERVER_HTTP_PORT", 8080),
			GRpcPort:     getEnvAsInt("SERVER_GRPC_PORT", 50057),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Upload: UploadConfig{
			Endpoint:          getEnv("UPLOAD_ENDPOINT", "http://api.mcservers.org/track/sessions"),
			APIKey:            getEnv("API_KEY", ""),
			Timeout:           getEnvAsDuration("UPLOAD_TIMEOUT", 30*time.Second),
			BatchSize:         getEnvAsInt("UPLOAD_BATCH_SIZE", 50),
			MaxStalls:         getEnvAsInt("UPLOAD_MAX_STALLS", 10),
			DrainInterval:     getEnvAsDuration("UPLOAD_DRAIN_INTERVAL", 1*time.Second),
			HeartbeatInterval: getEnvAsDuration("UPLOAD_HEARTBEAT_INTERVAL", 30*time.Minute),
			RetryDelay:        getEnvAsDuration("UPLOAD_RETRY_DELAY", 0),
			ShutdownTimeout:   getEnvAsDuration("UPLOAD_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			Enabled:       getEnvAsBool("REDIS_ENABLED", false),
			Addr:          getEnv("REDIS_ADDR", "localhost:6379"),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvAsInt("REDIS_DB", 0),
			MaxRetries:    getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:      getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns:  getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
			EventsChannel: getEnv("REDIS_EVENTS_CHANNEL", "playersessions:events"),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Mode:     getEnv("LOG_MODE", "development"),
			Encoding: getEnv("LOG_ENCODING", "console"),
		},
		Kafka: KafkaConfig{
			Brokers:              getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ProducerRetryMax:     getEnvAsInt("KAFKA_PRODUCER_RETRY_MAX", 3),
			ProducerRequiredAcks: getEnvAsInt("KAFKA_PRODUCER_REQUIRED_ACKS", 1),
			Enabled:              getEnvAsBool("KAFKA_ENABLED", false),
			ConsumerGroupID:      getEnv("KAFKA_CONSUMER_GROUP_ID", "playersessions"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Upload.APIKey == "" {
		return ErrMissingAPIKey
	}

	if c.Upload.Endpoint == "" {
		return fmt.Errorf("upload endpoint is required")
	}

	if c.Upload.BatchSize <= 0 {
		return fmt.Errorf("invalid upload batch size: %d", c.Upload.BatchSize)
	}

	if c.Upload.MaxStalls < 0 {
		return fmt.Errorf("invalid upload max stalls: %d", c.Upload.MaxStalls)
	}

	if c.Upload.DrainInterval <= 0 || c.Upload.HeartbeatInterval <= 0 {
		return fmt.Errorf("drain and heartbeat intervals must be positive")
	}

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port: %d", c.Server.HTTPPort)
	}

	if c.Server.GRpcPort <= 0 || c.Server.GRpcPort > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.Server.GRpcPort)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
