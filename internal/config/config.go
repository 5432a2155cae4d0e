package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL    string
	HTTPListenAddr string
	LogLevel       string
	ServiceName    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Endpoint      string
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3Prefix        string
	S3RetentionDays int

	StripeSigningSecret string
	PaddlePublicKey     string
	WebhookSecret       string

	SlackWebhookURL string
	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPassword    string
	AlertEmailTo    string
	AlertEmailFrom  string

	// Postgres connection the CommandRunner uses for createdb/pg_dump and
	// friends. Separate from DatabaseURL, which is the registry store.
	PGHost string
	PGPort string
	PGUser string

	// Path to the hosted application's management CLI (module
	// install/upgrade) and its systemd unit name.
	AppCLIBin  string
	AppService string

	// Optional YAML file overriding the built-in role capability table.
	RolesFile string

	WorkerConcurrency int
}

func Load() (*Config, error) {
	paddleKey, err := decodeBase64(getEnv("PADDLE_PUBLIC_KEY_BASE64", ""))
	if err != nil {
		return nil, fmt.Errorf("decode PADDLE_PUBLIC_KEY_BASE64: %w", err)
	}

	cfg := &Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		HTTPListenAddr: getEnv("HTTP_LISTEN_ADDR", ":9090"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ServiceName:    getEnv("SERVICE_NAME", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3Region:        getEnv("S3_REGION", "us-east-1"),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3AccessKey:     getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:     getEnv("S3_SECRET_KEY", ""),
		S3Prefix:        getEnv("S3_PREFIX", "tenants"),
		S3RetentionDays: getEnvInt("S3_RETENTION_DAYS", 30),

		StripeSigningSecret: getEnv("STRIPE_SIGNING_SECRET", ""),
		PaddlePublicKey:     paddleKey,
		WebhookSecret:       getEnv("WEBHOOK_SECRET", ""),

		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getEnvInt("SMTP_PORT", 587),
		SMTPUser:        getEnv("SMTP_USER", ""),
		SMTPPassword:    getEnv("SMTP_PASS", ""),
		AlertEmailTo:    getEnv("ALERT_EMAIL_TO", ""),
		AlertEmailFrom:  getEnv("ALERT_EMAIL_FROM", "tenantctl@localhost"),

		PGHost: getEnv("PG_HOST", "127.0.0.1"),
		PGPort: getEnv("PG_PORT", "5432"),
		PGUser: getEnv("PG_USER", "postgres"),

		AppCLIBin:  getEnv("APP_CLI_BIN", ""),
		AppService: getEnv("APP_SERVICE", ""),

		RolesFile: getEnv("ROLES_FILE", ""),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 2),
	}

	return cfg, nil
}

// Validate checks the config for the given component ("admin-api" or
// "worker"). Optional integrations (Stripe, Paddle, Slack, SMTP) are
// allowed to be absent; call sites degrade when unconfigured.
func (c *Config) Validate(component string) error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.RedisAddr == "" {
		missing = append(missing, "REDIS_ADDR")
	}
	if component == "worker" {
		if c.S3Bucket == "" {
			missing = append(missing, "S3_BUCKET")
		}
		if c.WorkerConcurrency < 1 {
			return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

func decodeBase64(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
