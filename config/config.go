package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds the project config values
type Config struct {
	URL          string
	DatabaseName string
	BaseURL      string
	Port         string
	Env          string

	// shard identity
	RegionHandle uint64
	RegionName   string

	// inter-shard transfer
	AMQPURL      string
	AMQPExchange string

	JWTSecret        string
	MessagingEnabled bool
	ForwardQueueSize int
	ForwardWorkers   int
	CredentialTTL    time.Duration
	EventTTL         time.Duration
	DropTombstoneTTL time.Duration
	EnqueueTimeout   time.Duration
	EnqueueMaxBody   int64
}

// New sets up all config related services
func New() *Config {
	// .env is optional, real deployments set the environment directly
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	//setup zap logger and replace default logger
	logger, err := setLogger(env)
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:              os.Getenv("DB_URI"),
		DatabaseName:     getEnv("DB_NAME", "regionchat"),
		BaseURL:          os.Getenv("BASE_URL"),
		Port:             getEnv("PORT", "8080"),
		Env:              env,
		RegionHandle:     getUint("REGION_HANDLE", 0),
		RegionName:       os.Getenv("REGION_NAME"),
		AMQPURL:          os.Getenv("AMQP_URL"),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "groupchat"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		MessagingEnabled: getEnv("GROUPS_MESSAGING_ENABLED", "true") == "true",
		ForwardQueueSize: getInt("FORWARD_QUEUE_SIZE", 1024),
		ForwardWorkers:   getInt("FORWARD_WORKERS", 4),
		CredentialTTL:    getDuration("CREDENTIAL_TTL", 24*time.Hour),
		EventTTL:         getDuration("EVENT_TTL", 10*time.Minute),
		DropTombstoneTTL: getDuration("DROP_TOMBSTONE_TTL", 24*time.Hour),
		EnqueueTimeout:   getDuration("ENQUEUE_TIMEOUT", 5*time.Second),
		EnqueueMaxBody:   int64(getInt("ENQUEUE_MAX_BODY", 64*1024)),
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func setLogger(env string) (*zap.Logger, error) {
	switch env {
	case "production":
		return zap.NewProduction()
	case "development":
		return zap.NewDevelopment()
	default:
		return zap.NewExample(), nil
	}
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	w.WriteHeader(httpStatusCode)
	w.Write([]byte(fmt.Sprintf(`{"response": "%s, %v"}`, message, err)))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

func getUint(key string, defaultValue uint64) uint64 {
	v, err := strconv.ParseUint(os.Getenv(key), 10, 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}
