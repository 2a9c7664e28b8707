package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration for the exchange.
type Config struct {
	Port            int           `envconfig:"PORT" default:"8080"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"` // debug, info, warn or error
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"5s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	MaxOpenOrders     int           `envconfig:"MAX_OPEN_ORDERS" default:"10000"`
	OrderRetention    time.Duration `envconfig:"ORDER_RETENTION" default:"24h"`
	RetentionInterval time.Duration `envconfig:"RETENTION_INTERVAL" default:"1m"`

	ExchangeID     string            `envconfig:"EXCHANGE_ID" default:"tokenswap"`
	AdminPrincipal string            `envconfig:"ADMIN_PRINCIPAL"`
	Tokens         map[string]string `envconfig:"TOKENS"` // id:SYMBOL,id:SYMBOL

	LedgerURL     string        `envconfig:"LEDGER_URL"` // empty selects the in-memory ledger
	LedgerTimeout time.Duration `envconfig:"LEDGER_TIMEOUT" default:"10s"`

	DataDir          string        `envconfig:"DATA_DIR"` // empty disables persistence
	SnapshotInterval time.Duration `envconfig:"SNAPSHOT_INTERVAL" default:"30s"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"tokenswap.events"`
}

// Load reads an optional .env file, then configuration from environment
// variables, applies defaults, and validates values. Variables already set
// in the environment take precedence over the file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks semantic constraints envconfig cannot express.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", c.LogLevel)
	}
	if c.MaxOpenOrders < 1 {
		return fmt.Errorf("invalid MAX_OPEN_ORDERS: %d, must be >= 1", c.MaxOpenOrders)
	}
	if c.ExchangeID == "" {
		return fmt.Errorf("invalid EXCHANGE_ID: must not be empty")
	}

	durations := []struct {
		key string
		val time.Duration
	}{
		{"READ_TIMEOUT", c.ReadTimeout},
		{"WRITE_TIMEOUT", c.WriteTimeout},
		{"IDLE_TIMEOUT", c.IdleTimeout},
		{"SHUTDOWN_TIMEOUT", c.ShutdownTimeout},
		{"ORDER_RETENTION", c.OrderRetention},
		{"RETENTION_INTERVAL", c.RetentionInterval},
		{"LEDGER_TIMEOUT", c.LedgerTimeout},
		{"SNAPSHOT_INTERVAL", c.SnapshotInterval},
	}
	for _, d := range durations {
		if d.val <= 0 {
			return fmt.Errorf("invalid %s: %v, must be positive", d.key, d.val)
		}
	}

	for id, symbol := range c.Tokens {
		if id == "" || symbol == "" {
			return fmt.Errorf("invalid TOKENS entry %q:%q", id, symbol)
		}
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("invalid KAFKA_TOPIC: required when KAFKA_BROKERS is set")
	}
	return nil
}

// TokenIDs returns the configured token ids in sorted order.
func (c *Config) TokenIDs() []string {
	ids := make([]string, 0, len(c.Tokens))
	for id := range c.Tokens {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
