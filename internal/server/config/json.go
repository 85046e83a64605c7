package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/accountkeeper/internal/flagx"
	"github.com/dmitrijs2005/accountkeeper/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations use timex.Duration so
// they can be written as "1s" strings. Absent keys leave Config untouched.
type JsonConfig struct {
	EndpointAddrHTTP   *string         `json:"endpoint_addr_http"`
	DatabaseDSN        *string         `json:"database_dsn"`
	SecretKey          *string         `json:"secret_key"`
	KafkaBrokers       []string        `json:"kafka_brokers"`
	KafkaGroupID       *string         `json:"kafka_group_id"`
	RedisAddr          *string         `json:"redis_addr"`
	SMTPHost           *string         `json:"smtp_host"`
	SMTPPort           *string         `json:"smtp_port"`
	SMTPUser           *string         `json:"smtp_user"`
	SMTPPassword       *string         `json:"smtp_password"`
	MailFrom           *string         `json:"mail_from"`
	VerificationURL    *string         `json:"verification_url"`
	MailDedupeTTL      *timex.Duration `json:"mail_dedupe_ttl"`
	S3RootUser         *string         `json:"s3_root_user"`
	S3RootPassword     *string         `json:"s3_root_password"`
	S3Bucket           *string         `json:"s3_bucket"`
	S3Region           *string         `json:"s3_region"`
	S3BaseEndpoint     *string         `json:"s3_base_endpoint"`
	OutboxPollInterval *timex.Duration `json:"outbox_poll_interval"`
	OutboxBatchSize    *int            `json:"outbox_batch_size"`
	LogBackend         *string         `json:"log_backend"`
}

// parseJson overlays the JSON file named by -c/-config onto config. Nothing
// happens when the flag is absent; an unreadable or invalid file panics.
func parseJson(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.KafkaBrokers != nil {
		config.KafkaBrokers = c.KafkaBrokers
	}
	setString(&config.KafkaGroupID, c.KafkaGroupID)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.SMTPHost, c.SMTPHost)
	setString(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.VerificationURL, c.VerificationURL)
	if c.MailDedupeTTL != nil {
		config.MailDedupeTTL = c.MailDedupeTTL.Duration
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	if c.OutboxPollInterval != nil {
		config.OutboxPollInterval = c.OutboxPollInterval.Duration
	}
	if c.OutboxBatchSize != nil {
		config.OutboxBatchSize = *c.OutboxBatchSize
	}
	setString(&config.LogBackend, c.LogBackend)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
