// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// PromotionPolicy controls what happens to the waitlist when a confirmed
// registration is cancelled.
type PromotionPolicy string

const (
	// PromotionAuto promotes the head of the waitlist on every cancellation.
	PromotionAuto PromotionPolicy = "auto"
	// PromotionManual leaves the waitlist untouched; administrators promote.
	PromotionManual PromotionPolicy = "manual"
)

// Config is the full server configuration.
type Config struct {
	Addr        string `env:"CLUBHOUSE_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	Redis       RedisConfig
	Kafka       KafkaConfig
	Notify      NotifyConfig
	Auth        AuthConfig
	Admission   AdmissionConfig
	Log         LogConfig
	Tracing     TracingConfig

	// OrgTimezone is the IANA zone used for default scheduling.
	OrgTimezone string `env:"ORG_TIMEZONE" envDefault:"America/New_York"`

	location *time.Location
}

// RedisConfig configures the availability cache connection.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig configures the audit outbox relay.
type KafkaConfig struct {
	Brokers       []string      `env:"KAFKA_BROKERS" envSeparator:","`
	AuditTopic    string        `env:"AUDIT_TOPIC" envDefault:"clubhouse.audit"`
	RelayInterval time.Duration `env:"AUDIT_RELAY_INTERVAL" envDefault:"1s"`
}

// NotifyConfig configures member notifications.
type NotifyConfig struct {
	AMQPURL string `env:"AMQP_URL"`
	Queue   string `env:"NOTIFY_QUEUE" envDefault:"registration.notifications"`
}

// AuthConfig configures member and administrator authentication.
type AuthConfig struct {
	JWTSigningKey  string `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer      string `env:"JWT_ISSUER" envDefault:"clubhouse"`
	AdminTokenHash string `env:"ADMIN_TOKEN_HASH"`
}

// AdmissionConfig holds the registration policy knobs.
type AdmissionConfig struct {
	PromotionPolicy      PromotionPolicy `env:"PROMOTION_POLICY" envDefault:"auto"`
	AuditFailClosed      bool            `env:"AUDIT_FAIL_CLOSED" envDefault:"false"`
	AvailabilityCacheTTL time.Duration   `env:"AVAILABILITY_CACHE_TTL" envDefault:"30s"`
	SectionTimeout       time.Duration   `env:"ADMISSION_SECTION_TIMEOUT" envDefault:"10s"`

	// MemberRequestsPerMinute caps member-route requests per member; zero
	// disables the limit.
	MemberRequestsPerMinute int `env:"RATE_LIMIT_MEMBER_PER_MINUTE" envDefault:"60"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// TracingConfig configures span export. An empty endpoint disables it.
type TracingConfig struct {
	Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"clubhouse"`
}

// Load reads an optional .env file and parses the environment.
func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalises and checks values env tags cannot express.
func (c *Config) Validate() error {
	c.Admission.PromotionPolicy = PromotionPolicy(strings.ToLower(strings.TrimSpace(string(c.Admission.PromotionPolicy))))
	switch c.Admission.PromotionPolicy {
	case PromotionAuto, PromotionManual:
	default:
		return fmt.Errorf("invalid PROMOTION_POLICY %q: want auto or manual", c.Admission.PromotionPolicy)
	}

	loc, err := time.LoadLocation(c.OrgTimezone)
	if err != nil {
		return fmt.Errorf("invalid ORG_TIMEZONE %q: %w", c.OrgTimezone, err)
	}
	c.location = loc

	if c.Admission.AvailabilityCacheTTL < 0 {
		return errors.New("AVAILABILITY_CACHE_TTL must not be negative")
	}
	if c.Admission.SectionTimeout <= 0 {
		return errors.New("ADMISSION_SECTION_TIMEOUT must be positive")
	}
	if c.Auth.JWTSigningKey == "" {
		return errors.New("JWT_SIGNING_KEY is required")
	}
	return nil
}

// Location returns the organisation timezone resolved by Validate.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}
