package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	// 1. Credentials referenced as ${VAR} expand from the environment
	t.Setenv("TEST_SENSOR_PASS", "s3cret")

	path := writeConfig(t, `
collector:
  interval: 5m
  retry_attempts: 2
  metrics_addr: ":9091"
sensors:
  - name: front-door
    type: linecounter
    connection:
      host: 10.0.0.5
      port: 8080
      auth:
        username: admin
        password: ${TEST_SENSOR_PASS}
    data_mapping:
      line_count: 4
writers:
  - name: main
    type: clickhouse
    enabled: true
    clickhouse:
      host: 127.0.0.1
      port: 9000
      database: footfall
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// 2. Sensor fields, including the expanded credential
	if len(cfg.Sensors) != 1 {
		t.Fatalf("Expected 1 sensor, got %d", len(cfg.Sensors))
	}
	sensor := cfg.Sensors[0]
	if sensor.Connection.Auth.Password != "s3cret" {
		t.Errorf("Expected expanded password, got %q", sensor.Connection.Auth.Password)
	}
	if sensor.DataMapping.LineCount != 4 {
		t.Errorf("Expected line_count 4, got %d", sensor.DataMapping.LineCount)
	}

	// 3. Explicit collector values survive, omitted ones get defaults
	if cfg.Collector.Interval != "5m" {
		t.Errorf("Expected interval 5m, got %s", cfg.Collector.Interval)
	}
	if cfg.Collector.RetryAttempts != 2 {
		t.Errorf("Expected 2 retry attempts, got %d", cfg.Collector.RetryAttempts)
	}
	if cfg.Collector.ChunkThreshold != "24h" {
		t.Errorf("Expected default chunk threshold 24h, got %s", cfg.Collector.ChunkThreshold)
	}
	if cfg.Collector.DefaultUTCOffset != 1 {
		t.Errorf("Expected default UTC offset 1, got %d", cfg.Collector.DefaultUTCOffset)
	}
	if cfg.Collector.MetricsAddr != ":9091" {
		t.Errorf("Expected metrics_addr :9091, got %s", cfg.Collector.MetricsAddr)
	}

	// 4. Writer definitions
	if len(cfg.Writers) != 1 || cfg.Writers[0].ClickHouse.Database != "footfall" {
		t.Errorf("Unexpected writers: %+v", cfg.Writers)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("/no/such/file.yaml"); err == nil {
		t.Error("Expected error for missing config file, got nil")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "sensors: [unclosed")
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for invalid YAML, got nil")
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("90s", time.Minute); got != 90*time.Second {
		t.Errorf("Expected 90s, got %v", got)
	}
	if got := Duration("", time.Minute); got != time.Minute {
		t.Errorf("Expected fallback for empty value, got %v", got)
	}
	if got := Duration("not-a-duration", time.Minute); got != time.Minute {
		t.Errorf("Expected fallback for malformed value, got %v", got)
	}
	if got := Duration("-5s", time.Minute); got != time.Minute {
		t.Errorf("Expected fallback for non-positive value, got %v", got)
	}
}
