package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Stripe     StripeConfig
	JWT        JWTConfig
	Migrations MigrationsConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	URL          string
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// DSN returns POSTGRES_DSN when set, otherwise a lib/pq URL built from parts.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

type RedisConfig struct {
	Addr              string
	Password          string
	DB                int
	BookingLockTTL    time.Duration
	PrincipalCacheTTL time.Duration
	IdempotencyTTL    time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	PaymentCreated   string
	PaymentConfirmed string
	PaymentFailed    string
	PaymentRefunded  string
	BookingCreated   string
}

func (t TopicConfig) All() []string {
	return []string{t.PaymentCreated, t.PaymentConfirmed, t.PaymentFailed, t.PaymentRefunded, t.BookingCreated}
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type MigrationsConfig struct {
	Dir         string
	AutoMigrate bool
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			URL:          getEnv("POSTGRES_DSN", ""),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Database:     getEnv("DB_NAME", "vitotrips"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:              getEnv("REDIS_ADDR", "localhost:6379"),
			Password:          getEnv("REDIS_PASSWORD", ""),
			DB:                getEnvInt("REDIS_DB", 0),
			BookingLockTTL:    getEnvDuration("BOOKING_LOCK_TTL", 30*time.Second),
			PrincipalCacheTTL: getEnvDuration("PRINCIPAL_CACHE_TTL", time.Minute),
			IdempotencyTTL:    getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				PaymentCreated:   getEnv("KAFKA_TOPIC_PAYMENT_CREATED", "vitotrips.payment.created"),
				PaymentConfirmed: getEnv("KAFKA_TOPIC_PAYMENT_CONFIRMED", "vitotrips.payment.confirmed"),
				PaymentFailed:    getEnv("KAFKA_TOPIC_PAYMENT_FAILED", "vitotrips.payment.failed"),
				PaymentRefunded:  getEnv("KAFKA_TOPIC_PAYMENT_REFUNDED", "vitotrips.payment.refunded"),
				BookingCreated:   getEnv("KAFKA_TOPIC_BOOKING_CREATED", "vitotrips.booking.created"),
			},
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      strings.ToLower(getEnv("STRIPE_CURRENCY", "usd")),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", ""),
			Expiration: getEnvDuration("JWT_EXPIRATION", 24*time.Hour),
		},
		Migrations: MigrationsConfig{
			Dir:         getEnv("MIGRATIONS_DIR", "./migrations"),
			AutoMigrate: getEnvBool("AUTO_MIGRATE", true),
		},
	}
}

// Validate reports settings the service cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.JWT.Secret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.Stripe.SecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.Stripe.WebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
