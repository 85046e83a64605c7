// Package config handles configuration for the server component: defaults,
// a JSON overlay, a dotenv/environment overlay and command-line flags, applied
// in that order.
package config

import "time"

// DevSecretKey is the base64 HMAC key used when nothing else is configured.
// It is public; never run production with it.
const DevSecretKey = "YWNjb3VudGtlZXBlci1kZXYtc2lnbmluZy1rZXktMzJi"

// Config holds runtime settings for the accountkeeper server.
//
// Fields:
//   - EndpointAddrHTTP: bind address of the public HTTP API.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty selects the in-memory store.
//   - SecretKey: base64 HMAC key for signing access tokens (HS256).
//   - KafkaBrokers / KafkaGroupID: event bus. No brokers selects the in-memory bus.
//   - RedisAddr: optional cache used to suppress duplicate emails.
//   - SMTP*: outbound mail transport. Empty SMTPHost logs mails instead of sending.
//   - VerificationURL: base of the link embedded into verification mails.
//   - S3*: object storage for profile pictures.
//   - Outbox*: relay polling settings.
type Config struct {
	EndpointAddrHTTP string   `env:"HTTP_ADDR"`
	DatabaseDSN      string   `env:"DATABASE_DSN"`
	SecretKey        string   `env:"SECRET_KEY"`
	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaGroupID     string   `env:"KAFKA_GROUP_ID"`
	RedisAddr        string   `env:"REDIS_ADDR"`

	SMTPHost        string        `env:"SMTP_HOST"`
	SMTPPort        string        `env:"SMTP_PORT"`
	SMTPUser        string        `env:"SMTP_USER"`
	SMTPPassword    string        `env:"SMTP_PASSWORD"`
	MailFrom        string        `env:"MAIL_FROM"`
	VerificationURL string        `env:"VERIFICATION_URL"`
	MailDedupeTTL   time.Duration `env:"MAIL_DEDUPE_TTL"`

	S3RootUser     string `env:"S3_ROOT_USER"`
	S3RootPassword string `env:"S3_ROOT_PASSWORD"`
	S3Bucket       string `env:"S3_BUCKET"`
	S3Region       string `env:"S3_REGION"`
	S3BaseEndpoint string `env:"S3_BASE_ENDPOINT"`

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE"`

	LogBackend string `env:"LOG_BACKEND"`
}

// LoadDefaults populates Config with development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.DatabaseDSN = ""
	c.SecretKey = DevSecretKey
	c.KafkaBrokers = nil
	c.KafkaGroupID = "accountkeeper"
	c.RedisAddr = ""
	c.SMTPHost = ""
	c.SMTPPort = "465"
	c.MailFrom = "no-reply@accountkeeper.local"
	c.VerificationURL = "http://localhost:8080/api/v1/verify-email"
	c.MailDedupeTTL = 24 * time.Hour
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "avatars"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.OutboxPollInterval = time.Second
	c.OutboxBatchSize = 100
	c.LogBackend = "slog"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
