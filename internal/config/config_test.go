package config

import (
	"os"
	"testing"
	"time"
)

var configKeys = []string{
	"PORT", "LOG_LEVEL", "READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT",
	"SHUTDOWN_TIMEOUT", "MAX_OPEN_ORDERS", "ORDER_RETENTION", "RETENTION_INTERVAL",
	"EXCHANGE_ID", "ADMIN_PRINCIPAL", "TOKENS", "LEDGER_URL", "LEDGER_TIMEOUT",
	"DATA_DIR", "SNAPSHOT_INTERVAL", "KAFKA_BROKERS", "KAFKA_TOPIC",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.MaxOpenOrders != 10000 {
		t.Errorf("MaxOpenOrders = %d, want 10000", cfg.MaxOpenOrders)
	}
	if cfg.OrderRetention != 24*time.Hour {
		t.Errorf("OrderRetention = %v, want 24h", cfg.OrderRetention)
	}
	if cfg.RetentionInterval != time.Minute {
		t.Errorf("RetentionInterval = %v, want 1m", cfg.RetentionInterval)
	}
	if cfg.LedgerTimeout != 10*time.Second {
		t.Errorf("LedgerTimeout = %v, want 10s", cfg.LedgerTimeout)
	}
	if cfg.SnapshotInterval != 30*time.Second {
		t.Errorf("SnapshotInterval = %v, want 30s", cfg.SnapshotInterval)
	}
	if cfg.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.ReadTimeout)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
	}
	if cfg.ExchangeID != "tokenswap" {
		t.Errorf("ExchangeID = %q, want tokenswap", cfg.ExchangeID)
	}
	if cfg.LedgerURL != "" || cfg.DataDir != "" || len(cfg.KafkaBrokers) != 0 {
		t.Errorf("expected optional integrations disabled, got %+v", cfg)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MAX_OPEN_ORDERS", "5")
	t.Setenv("ORDER_RETENTION", "1h")
	t.Setenv("ADMIN_PRINCIPAL", "ops")
	t.Setenv("TOKENS", "ryjl3:ICP,mxzaz:CKBTC")
	t.Setenv("LEDGER_URL", "http://ledger:8000")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("KAFKA_TOPIC", "swaps")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.MaxOpenOrders != 5 {
		t.Errorf("MaxOpenOrders = %d, want 5", cfg.MaxOpenOrders)
	}
	if cfg.OrderRetention != time.Hour {
		t.Errorf("OrderRetention = %v, want 1h", cfg.OrderRetention)
	}
	if cfg.AdminPrincipal != "ops" {
		t.Errorf("AdminPrincipal = %q, want ops", cfg.AdminPrincipal)
	}
	if cfg.Tokens["ryjl3"] != "ICP" || cfg.Tokens["mxzaz"] != "CKBTC" {
		t.Errorf("Tokens = %v", cfg.Tokens)
	}
	ids := cfg.TokenIDs()
	if len(ids) != 2 || ids[0] != "mxzaz" || ids[1] != "ryjl3" {
		t.Errorf("TokenIDs = %v", ids)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if cfg.KafkaTopic != "swaps" {
		t.Errorf("KafkaTopic = %q, want swaps", cfg.KafkaTopic)
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	for _, v := range []string{"not-a-number", "0", "70000"} {
		t.Run(v, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("PORT", v)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for PORT=%q", v)
			}
		})
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "verbose")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid LOG_LEVEL")
	}
}

func TestLoad_InvalidMaxOpenOrders(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_OPEN_ORDERS", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for MAX_OPEN_ORDERS=0")
	}
}

func TestLoad_InvalidTokens(t *testing.T) {
	for _, v := range []string{"X", "X:", ":SYM"} {
		t.Run(v, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("TOKENS", v)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for TOKENS=%q", v)
			}
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	keys := []string{
		"READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT", "SHUTDOWN_TIMEOUT",
		"ORDER_RETENTION", "RETENTION_INTERVAL", "LEDGER_TIMEOUT", "SNAPSHOT_INTERVAL",
	}

	for _, key := range keys {
		for _, v := range []string{"not-a-duration", "0s", "-5s"} {
			t.Run(key+"="+v, func(t *testing.T) {
				clearEnv(t)
				t.Setenv(key, v)

				if _, err := Load(); err == nil {
					t.Fatalf("expected error for %s=%q", key, v)
				}
			})
		}
	}
}
