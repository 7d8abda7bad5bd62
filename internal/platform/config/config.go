package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full process configuration, read once at startup.
type Config struct {
	Server    Server
	Security  Security
	Redis     RedisConfig
	Postgres  PostgresConfig
	SMTP      SMTPConfig
	Kafka     KafkaConfig
	OTP       OTPConfig
	RateLimit RateLimitConfig
	LogLevel  string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// DemoMode relaxes the admin token requirement for local runs.
	DemoMode bool
}

// Security holds process-wide secrets. MasterKey is the encoded 32-byte
// key that wraps issuer private keys; it is decoded by the issuer keys package.
type Security struct {
	MasterKey  string
	AdminToken string
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether outbound mail is configured.
func (c SMTPConfig) Enabled() bool { return c.Host != "" }

type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

type OTPConfig struct {
	TTL         time.Duration
	MaxAttempts int
}

// RateLimitConfig bounds how often codes can be requested and checked.
// Counts apply per sliding Window.
type RateLimitConfig struct {
	Disabled        bool
	Window          time.Duration
	OTPSendPerEmail int
	OTPSendPerIP    int
	OTPVerifyPerIP  int
}

// FromEnv builds the configuration from environment variables, loading a
// .env file first when one exists. Missing secrets are startup errors.
func FromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Server: Server{
			Addr:            getEnv("CREDIFY_ADDR", ":8080"),
			ReadTimeout:     getDuration("CREDIFY_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDuration("CREDIFY_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getDuration("CREDIFY_SHUTDOWN_TIMEOUT", 10*time.Second),
			DemoMode:        os.Getenv("CREDIFY_DEMO_MODE") == "true",
		},
		Security: Security{
			MasterKey:  os.Getenv("CREDIFY_MASTER_KEY"),
			AdminToken: os.Getenv("ADMIN_API_TOKEN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("SMTP_FROM", "no-reply@credify.local"),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "credify.audit"),
		},
		OTP: OTPConfig{
			TTL:         getDuration("OTP_TTL", 5*time.Minute),
			MaxAttempts: getInt("OTP_MAX_ATTEMPTS", 3),
		},
		RateLimit: RateLimitConfig{
			Disabled:        os.Getenv("RATE_LIMIT_DISABLED") == "true",
			Window:          getDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
			OTPSendPerEmail: getInt("RATE_LIMIT_OTP_SEND_PER_EMAIL", 5),
			OTPSendPerIP:    getInt("RATE_LIMIT_OTP_SEND_PER_IP", 30),
			OTPVerifyPerIP:  getInt("RATE_LIMIT_OTP_VERIFY_PER_IP", 60),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration errors that must stop the process.
func (c Config) Validate() error {
	var errs []error
	if c.Security.MasterKey == "" {
		errs = append(errs, errors.New("CREDIFY_MASTER_KEY is required"))
	}
	if c.Security.AdminToken == "" && !c.Server.DemoMode {
		errs = append(errs, errors.New("ADMIN_API_TOKEN is required outside demo mode"))
	}
	if c.Postgres.URL != "" {
		if u, err := url.Parse(c.Postgres.URL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errs = append(errs, errors.New("DATABASE_URL must be a postgres:// URL"))
		}
	}
	if c.OTP.TTL <= 0 {
		errs = append(errs, errors.New("OTP_TTL must be positive"))
	}
	if c.OTP.MaxAttempts <= 0 {
		errs = append(errs, errors.New("OTP_MAX_ATTEMPTS must be positive"))
	}
	if !c.RateLimit.Disabled && (c.RateLimit.Window <= 0 || c.RateLimit.OTPSendPerEmail <= 0 ||
		c.RateLimit.OTPSendPerIP <= 0 || c.RateLimit.OTPVerifyPerIP <= 0) {
		errs = append(errs, errors.New("rate limits must be positive unless RATE_LIMIT_DISABLED=true"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
