package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotkeeper/libs/config"
	"github.com/md-rashed-zaman/slotkeeper/libs/httpx"
)

type serviceConfig struct {
	Service  string
	Port     string
	GRPCPort string
	LogLevel string

	DatabaseURL string

	CacheBackend string
	CacheTTL     time.Duration
	CacheSize    int
	RedisAddr    string

	KafkaBrokers  []string
	EventsSink    string
	PaymentsTopic string
	KafkaGroupID  string

	StripeWebhookSecret string
	JWTSecret           string
	TrustActorHeaders   bool
	Smart               bool
	HistoryWeeks        int

	RateLimit         int
	RateLimitWindow   time.Duration
	RateLimitFailOpen bool
	RequestTimeout    time.Duration
	CORS              httpx.CORSPolicy
}

func loadConfig() (serviceConfig, error) {
	if err := config.LoadDotEnv(); err != nil {
		return serviceConfig{}, err
	}
	cfg := serviceConfig{
		Service:             config.String("SERVICE_NAME", "booking-service"),
		LogLevel:            config.String("LOG_LEVEL", "info"),
		DatabaseURL:         config.String("DATABASE_URL", ""),
		CacheTTL:            config.Duration("CACHE_TTL", 5*time.Minute),
		CacheSize:           config.Int("CACHE_SIZE", 4096),
		RedisAddr:           config.String("REDIS_ADDR", ""),
		KafkaBrokers:        config.List("KAFKA_BROKERS", ""),
		EventsSink:          strings.ToLower(config.String("EVENTS_SINK", "log")),
		PaymentsTopic:       config.String("PAYMENTS_TOPIC", "payments.status.v1"),
		KafkaGroupID:        config.String("KAFKA_GROUP_ID", "booking-service"),
		StripeWebhookSecret: config.String("STRIPE_WEBHOOK_SECRET", ""),
		JWTSecret:           config.String("JWT_SECRET", ""),
		TrustActorHeaders:   config.Bool("TRUST_ACTOR_HEADERS", false),
		Smart:               config.Bool("SMART_SCHEDULING", true),
		HistoryWeeks:        config.Int("SMART_HISTORY_WEEKS", 8),
		RateLimit:           config.Int("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:     config.Duration("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitFailOpen:   config.Bool("RATE_LIMIT_FAIL_OPEN", true),
		RequestTimeout:      config.Duration("REQUEST_TIMEOUT", 10*time.Second),
		CORS: httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id", "X-Actor-Id", "X-Actor-Role"},
			MaxAge:         10 * time.Minute,
		},
	}

	cfg.CacheBackend = strings.ToLower(config.String("CACHE_BACKEND", defaultCacheBackend(cfg)))
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}

	var err error
	if cfg.Port, err = config.Port("PORT", "8083"); err != nil {
		return serviceConfig{}, err
	}
	if cfg.GRPCPort, err = config.Port("GRPC_PORT", "9093"); err != nil {
		return serviceConfig{}, err
	}

	switch cfg.CacheBackend {
	case "memory", "redis", "none":
	default:
		return serviceConfig{}, fmt.Errorf("CACHE_BACKEND must be memory, redis or none (got %q)", cfg.CacheBackend)
	}
	switch cfg.EventsSink {
	case "log":
	case "kafka":
		if len(cfg.KafkaBrokers) == 0 {
			return serviceConfig{}, fmt.Errorf("EVENTS_SINK=kafka requires KAFKA_BROKERS")
		}
	case "outbox":
		if cfg.DatabaseURL == "" {
			return serviceConfig{}, fmt.Errorf("EVENTS_SINK=outbox requires DATABASE_URL")
		}
	default:
		return serviceConfig{}, fmt.Errorf("EVENTS_SINK must be log, kafka or outbox (got %q)", cfg.EventsSink)
	}
	if cfg.JWTSecret == "" && !cfg.TrustActorHeaders {
		return serviceConfig{}, fmt.Errorf("JWT_SECRET is required unless TRUST_ACTOR_HEADERS=true")
	}
	return cfg, nil
}

// defaultCacheBackend picks a cache every replica sees the same way: Redis when one is
// configured, none when the stores are shared through Postgres, the in-process LRU otherwise.
func defaultCacheBackend(cfg serviceConfig) string {
	switch {
	case cfg.RedisAddr != "":
		return "redis"
	case cfg.DatabaseURL != "":
		return "none"
	default:
		return "memory"
	}
}
