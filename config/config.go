package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port      int    `env:"PORT" envDefault:"3000"`
	PgURL     string `env:"PG_URL" required:"true"`
	PgPoolMax int    `env:"PG_POOL_MAX" envDefault:"10"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	MollieBaseURL     string        `env:"MOLLIE_BASE_URL" envDefault:"https://api.mollie.com"`
	MollieAPIKey      string        `env:"MOLLIE_API_KEY" required:"true"`
	MollieTestmode    bool          `env:"MOLLIE_TESTMODE" envDefault:"false"`
	MollieHTTPTimeout time.Duration `env:"MOLLIE_HTTP_TIMEOUT" envDefault:"15s"`

	// Audit trail mode: "off", "kafka" or "opensearch"
	AuditMode string `env:"AUDIT_MODE" envDefault:"off"`

	KafkaBrokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaAuditTopic string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"payments.webhook-audit"`

	OpensearchUrls       []string `env:"OPENSEARCH_URLS" envSeparator:","`
	OpensearchAuditIndex string   `env:"OPENSEARCH_AUDIT_INDEX" envDefault:"payment-webhook-audit"`
}

func New() (Config, error) {
	c, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}

	return c, nil
}
