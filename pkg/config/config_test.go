package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("expected default port 5000, got %d", cfg.Server.Port)
	}
	if got := cfg.Server.Addr(); got != "0.0.0.0:5000" {
		t.Errorf("expected addr 0.0.0.0:5000, got %q", got)
	}
	if cfg.Storage.DataDir != "data" {
		t.Errorf("expected data dir %q, got %q", "data", cfg.Storage.DataDir)
	}
	if cfg.Kafka.Enabled() {
		t.Error("expected kafka to be disabled by default")
	}
	if cfg.Redis.Enabled() {
		t.Error("expected redis to be disabled by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("WEBHOOK_DATA_DIR", "/var/lib/webhooks")
	t.Setenv("WEBHOOK_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,,")
	t.Setenv("WEBHOOK_REDIS_ADDR", "redis:6379")
	t.Setenv("WEBHOOK_METRICS_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8088 {
		t.Errorf("expected port 8088, got %d", cfg.Server.Port)
	}
	if cfg.Storage.DataDir != "/var/lib/webhooks" {
		t.Errorf("unexpected data dir %q", cfg.Storage.DataDir)
	}
	want := []string{"kafka-1:9092", "kafka-2:9092"}
	if !reflect.DeepEqual(cfg.Kafka.Brokers, want) {
		t.Errorf("brokers = %v, want %v", cfg.Kafka.Brokers, want)
	}
	if !cfg.Redis.Enabled() {
		t.Error("expected redis to be enabled")
	}
	if cfg.Metrics.Enabled {
		t.Error("expected metrics to be disabled")
	}
}

func TestLoadInvalidEnvRejected(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric port", "PORT", "abc"},
		{"port with suffix", "PORT", "5000x"},
		{"non-numeric metrics port", "WEBHOOK_METRICS_PORT", "metrics"},
		{"non-boolean metrics flag", "WEBHOOK_METRICS_ENABLED", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg, err := Load("")
			if err == nil {
				t.Fatalf("expected error for %s=%q, got config %+v", tt.key, tt.value, cfg)
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error %q should name %s", err, tt.key)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("PORT", "")
	path := filepath.Join(t.TempDir(), "receiver.yaml")
	content := `
server:
  port: 7000
  shutdownTimeout: 5s
storage:
  dataDir: /tmp/payloads
  fsync: false
kafka:
  brokers: ["localhost:9092"]
  topic: hooks
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("expected port 7000, got %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("expected shutdown timeout 5s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Storage.Fsync {
		t.Error("expected fsync disabled")
	}
	if cfg.Kafka.Topic != "hooks" || !cfg.Kafka.Enabled() {
		t.Errorf("unexpected kafka config %+v", cfg.Kafka)
	}
	// Untouched sections keep defaults.
	if cfg.Webhook.MaxBodyBytes != 10<<20 {
		t.Errorf("expected default max body, got %d", cfg.Webhook.MaxBodyBytes)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("PORT", "")
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad yaml", content: "server: [unterminated"},
		{name: "port out of range", content: "server:\n  port: 70000\n"},
		{name: "empty data dir", content: "storage:\n  dataDir: \"\"\n"},
		{name: "zero body limit", content: "webhook:\n  maxBodyBytes: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("writing config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
