package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Delivery DeliveryConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	LogFile      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuthConfig selects the authentication provider for the connect handshake.
// Mode "jwt" validates HS256 tokens; "insecure" trusts the declared user id
// and exists for local development and tests.
type AuthConfig struct {
	Mode      string
	JWTSecret string
}

type DatabaseConfig struct {
	// ConnectionString enables the Postgres persistence provider when set
	ConnectionString string
}

type RedisConfig struct {
	// Address enables the recent-message cache when set
	Address  string
	Username string
	Password string
	DB       int
}

type KafkaConfig struct {
	// Address enables the mutation feed when set
	Address string
	Topic   string
}

type DeliveryConfig struct {
	// SessionQueueSize is the per-session outbound event buffer
	SessionQueueSize int

	// PingInterval is the websocket keepalive interval
	PingInterval time.Duration

	// PongTimeout is the read deadline extension granted per pong
	PongTimeout time.Duration

	// WriteTimeout bounds a single outbound websocket write
	WriteTimeout time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8000),
			LogFile:      getEnv("LOG_FILE", "stdout"),
			ReadTimeout:  getEnvAsDuration("READ_TIMEOUT", 5*time.Minute),
			WriteTimeout: 0, // No write timeout; websocket connections are long-lived
		},
		Auth: AuthConfig{
			Mode:      getEnv("AUTH_MODE", "jwt"),
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			ConnectionString: getEnv("POSTGRES_DSN", ""),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDR", ""),
			Username: getEnv("REDIS_USERNAME", "default"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Address: getEnv("KAFKA_ADDR", ""),
			Topic:   getEnv("KAFKA_TOPIC", "chat-mutations"),
		},
		Delivery: DeliveryConfig{
			SessionQueueSize: getEnvAsInt("SESSION_QUEUE_SIZE", 256),
			PingInterval:     getEnvAsDuration("WS_PING_INTERVAL", 30*time.Second),
			PongTimeout:      getEnvAsDuration("WS_PONG_TIMEOUT", 60*time.Second),
			WriteTimeout:     getEnvAsDuration("WS_WRITE_TIMEOUT", 10*time.Second),
		},
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}

	switch c.Auth.Mode {
	case "jwt":
		if c.Auth.JWTSecret == "" {
			errs = append(errs, "JWT secret (AUTH_JWT_SECRET) is required when AUTH_MODE=jwt")
		}
	case "insecure":
		// Trusts declared user ids; fine for development
	default:
		errs = append(errs, fmt.Sprintf("unknown auth mode: %q (must be jwt or insecure)", c.Auth.Mode))
	}

	if c.Kafka.Address != "" && c.Kafka.Topic == "" {
		errs = append(errs, "kafka topic (KAFKA_TOPIC) is required when KAFKA_ADDR is set")
	}

	if c.Delivery.SessionQueueSize <= 0 {
		errs = append(errs, "session queue size must be > 0")
	}
	if c.Delivery.PingInterval <= 0 {
		errs = append(errs, "websocket ping interval must be > 0")
	}
	if c.Delivery.PongTimeout <= c.Delivery.PingInterval {
		errs = append(errs, "websocket pong timeout must exceed the ping interval")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", joinErrors(errs))
	}

	return nil
}

func joinErrors(errs []string) string {
	result := ""
	for i, err := range errs {
		if i > 0 {
			result += "\n  - "
		}
		result += err
	}
	return result
}

func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// PrintSummary logs a summary of the loaded configuration
func (c *Config) PrintSummary() {
	fmt.Println("Configuration Summary:")
	fmt.Printf("  Server: %s\n", c.ServerAddress())
	fmt.Printf("  Auth mode: %s\n", c.Auth.Mode)
	fmt.Printf("  Postgres: %s\n", enabledWhen(c.Database.ConnectionString != ""))
	fmt.Printf("  Redis cache: %s\n", enabledWhen(c.Redis.Address != ""))
	fmt.Printf("  Kafka feed: %s\n", enabledWhen(c.Kafka.Address != ""))
	fmt.Printf("  Session queue: %d events\n", c.Delivery.SessionQueueSize)
}

func enabledWhen(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

// Helper functions to read environment variables with defaults

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if val, err := strconv.Atoi(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	valStr := os.Getenv(key)
	if val, err := time.ParseDuration(valStr); err == nil {
		return val
	}
	return defaultVal
}
