// Package config builds process configuration from the environment.
//
// Secrets have no defaults: a missing SMTP password, CMS token or gateway
// credential is a startup error, never a silent fallback.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	pstrings "confreg/pkg/platform/strings"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	AdminToken      string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// SMTP is the mail transport and sender identity.
type SMTP struct {
	Host     string
	Port     int
	Secure   bool
	User     string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

// Sanity addresses the CMS project holding registrations and settings.
type Sanity struct {
	ProjectID  string
	Dataset    string
	APIVersion string
	Token      string
	Timeout    time.Duration
}

// PayPal gateway credentials.
type PayPal struct {
	ClientID     string
	ClientSecret string
	Environment  string
	// WebhookID enables POST /paypal/webhook; deliveries are verified
	// against it through the PayPal API.
	WebhookID string
	Timeout   time.Duration
}

// Production reports whether live endpoints should be used.
func (p PayPal) Production() bool {
	return p.Environment == "production" || p.Environment == "live"
}

// Razorpay gateway credentials.
type Razorpay struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

// RedisConfig configures the optional lock backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig configures the optional payment-record mirror.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// KafkaConfig configures the optional pipeline outcome stream.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// MaxLookupAttempts caps registration lookups per run.
const MaxLookupAttempts = 3

// Receipt tunes the post-payment pipeline.
type Receipt struct {
	LookupAttempts    int
	LookupBackoffStep time.Duration
	LockTTL           time.Duration
	LogoFetchTimeout  time.Duration
	SettingsTTL       time.Duration
}

type Config struct {
	Server   Server
	SMTP     SMTP
	Sanity   Sanity
	PayPal   PayPal
	Razorpay Razorpay
	Redis    RedisConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Receipt  Receipt
	LogLevel string
}

// FromEnv loads an optional .env file and then reads the process environment.
func FromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Load(os.Getenv)
}

// Load parses configuration from getenv without validating required keys.
func Load(getenv func(string) string) (Config, error) {
	e := env{get: getenv}
	cfg := Config{
		Server: Server{
			Addr:            e.str("CONFREG_ADDR", ":8080"),
			AdminToken:      e.str("ADMIN_TOKEN", ""),
			ShutdownTimeout: e.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  e.duration("REQUEST_TIMEOUT", 60*time.Second),
		},
		SMTP: SMTP{
			Host:     e.str("SMTP_HOST", ""),
			Port:     e.int("SMTP_PORT", 465),
			Secure:   e.bool("SMTP_SECURE", true),
			User:     e.str("SMTP_USER", ""),
			Password: e.str("SMTP_PASS", ""),
			From:     e.str("EMAIL_FROM", ""),
			FromName: e.str("EMAIL_FROM_NAME", ""),
			Timeout:  e.duration("SMTP_TIMEOUT", 30*time.Second),
		},
		Sanity: Sanity{
			ProjectID:  e.str("SANITY_PROJECT_ID", ""),
			Dataset:    e.str("SANITY_DATASET", ""),
			APIVersion: e.str("SANITY_API_VERSION", "2023-05-03"),
			Token:      e.str("SANITY_API_TOKEN", ""),
			Timeout:    e.duration("SANITY_TIMEOUT", 15*time.Second),
		},
		PayPal: PayPal{
			ClientID:     e.str("PAYPAL_CLIENT_ID", ""),
			ClientSecret: e.str("PAYPAL_CLIENT_SECRET", ""),
			Environment:  strings.ToLower(e.str("PAYPAL_ENVIRONMENT", "sandbox")),
			WebhookID:    e.str("PAYPAL_WEBHOOK_ID", ""),
			Timeout:      e.duration("PAYPAL_TIMEOUT", 20*time.Second),
		},
		Razorpay: Razorpay{
			KeyID:         e.str("RAZORPAY_KEY_ID", ""),
			KeySecret:     e.str("RAZORPAY_KEY_SECRET", ""),
			WebhookSecret: e.str("RAZORPAY_WEBHOOK_SECRET", ""),
		},
		Redis: RedisConfig{
			URL:          e.str("REDIS_URL", ""),
			PoolSize:     e.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Database: DatabaseConfig{
			URL:             e.str("DATABASE_URL", ""),
			MaxOpenConns:    e.int("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    e.int("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: e.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: e.list("KAFKA_BROKERS"),
			Topic:   e.str("KAFKA_TOPIC", "confreg.receipt-outcomes"),
		},
		Receipt: Receipt{
			LookupAttempts:    e.int("RECEIPT_LOOKUP_ATTEMPTS", 3),
			LookupBackoffStep: e.duration("RECEIPT_LOOKUP_BACKOFF", time.Second),
			LockTTL:           e.duration("RECEIPT_LOCK_TTL", 2*time.Minute),
			LogoFetchTimeout:  e.duration("RECEIPT_LOGO_TIMEOUT", 5*time.Second),
			SettingsTTL:       e.duration("RECEIPT_SETTINGS_TTL", time.Minute),
		},
		LogLevel: strings.ToLower(e.str("LOG_LEVEL", "info")),
	}
	if len(e.errs) > 0 {
		return Config{}, errors.Join(e.errs...)
	}
	return cfg, nil
}

// ValidateCore checks what every entry point needs: mail and CMS access.
func (c Config) ValidateCore() error {
	var missing []string
	req := func(key, val string) {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, key)
		}
	}
	req("SMTP_HOST", c.SMTP.Host)
	req("SMTP_USER", c.SMTP.User)
	req("SMTP_PASS", c.SMTP.Password)
	req("EMAIL_FROM", c.SMTP.From)
	req("SANITY_PROJECT_ID", c.Sanity.ProjectID)
	req("SANITY_DATASET", c.Sanity.Dataset)
	req("SANITY_API_TOKEN", c.Sanity.Token)
	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", ")))
	}
	if c.Receipt.LookupAttempts < 1 || c.Receipt.LookupAttempts > MaxLookupAttempts {
		errs = append(errs, fmt.Errorf("RECEIPT_LOOKUP_ATTEMPTS must be between 1 and %d, got %d", MaxLookupAttempts, c.Receipt.LookupAttempts))
	}
	return errors.Join(errs...)
}

// Validate checks everything the HTTP server needs, gateways included.
func (c Config) Validate() error {
	var errs []error
	if err := c.ValidateCore(); err != nil {
		errs = append(errs, err)
	}
	var missing []string
	req := func(key, val string) {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, key)
		}
	}
	req("PAYPAL_CLIENT_ID", c.PayPal.ClientID)
	req("PAYPAL_CLIENT_SECRET", c.PayPal.ClientSecret)
	req("RAZORPAY_KEY_ID", c.Razorpay.KeyID)
	req("RAZORPAY_KEY_SECRET", c.Razorpay.KeySecret)
	req("ADMIN_TOKEN", c.Server.AdminToken)
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", ")))
	}
	switch c.PayPal.Environment {
	case "sandbox", "production", "live":
	default:
		errs = append(errs, fmt.Errorf("PAYPAL_ENVIRONMENT must be sandbox or production, got %q", c.PayPal.Environment))
	}
	return errors.Join(errs...)
}

type env struct {
	get  func(string) string
	errs []error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	raw := strings.TrimSpace(e.get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (e *env) bool(key string, def bool) bool {
	raw := strings.TrimSpace(e.get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(e.get(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (e *env) list(key string) []string {
	return pstrings.SplitList(e.get(key), ",")
}
