package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AuthConfig holds the credentials for a sensor's HTTP interface.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ConnectionConfig describes a sensor's network location.
type ConnectionConfig struct {
	Host     string     `yaml:"host"`
	Port     int        `yaml:"port"`
	Protocol string     `yaml:"protocol"` // http or https
	Auth     AuthConfig `yaml:"auth"`
}

// DataMappingConfig describes how a sensor's raw payloads map onto the
// canonical record shape.
type DataMappingConfig struct {
	TimestampFormat          string            `yaml:"timestamp_format"` // Go reference layout
	LineCount                int               `yaml:"line_count"`
	RegionCount              int               `yaml:"region_count"`
	SupportsRegionalCounting bool              `yaml:"supports_regional_counting"`
	SupportsRealTimeStatus   bool              `yaml:"supports_real_time_status"`
	FieldOverrides           map[string]string `yaml:"field_overrides"` // raw column name -> canonical field
}

// SensorConfig is the static descriptor for one sensor. It is immutable
// after load.
type SensorConfig struct {
	Name        string                       `yaml:"name"`
	Type        string                       `yaml:"type"`  // connector registry key
	Store       string                       `yaml:"store"` // writer name, empty means all writers
	Connection  ConnectionConfig             `yaml:"connection"`
	Endpoints   map[string]map[string]string `yaml:"endpoints"` // logical name -> request parameters
	DataMapping DataMappingConfig            `yaml:"data_mapping"`
}

// CollectorConfig holds the scheduling and normalization knobs shared by all
// sensors.
type CollectorConfig struct {
	Interval         string `yaml:"interval"`           // cycle interval, e.g. "15m"
	Lookback         string `yaml:"lookback"`           // window collected per cycle
	FetchTimeout     string `yaml:"fetch_timeout"`      // per-request HTTP timeout
	RetryAttempts    int    `yaml:"retry_attempts"`     // bounded retries at the connector boundary
	RetryBackoff     string `yaml:"retry_backoff"`      // fixed backoff between attempts
	ChunkThreshold   string `yaml:"chunk_threshold"`    // ranges longer than this are split
	ProbeWindow      string `yaml:"probe_window"`       // recent window used for offset detection
	DefaultUTCOffset int    `yaml:"default_utc_offset"` // fallback when the probe sees no activity
	MetricsAddr      string `yaml:"metrics_addr"`       // daemon metrics listen address, empty disables
}

// ClickHouseConfig holds connection details for a ClickHouse writer.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// PostgresConfig holds connection details for a Postgres writer.
type PostgresConfig struct {
	URL string `yaml:"url"`
}

// WriterDef declares one rollup store destination.
type WriterDef struct {
	Name       string           `yaml:"name"`
	Type       string           `yaml:"type"` // clickhouse or postgres
	Enabled    bool             `yaml:"enabled"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Postgres   PostgresConfig   `yaml:"postgres"`
}

// RedisConfig holds the real-time status cache settings.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	TTL     string `yaml:"ttl"`
}

// NATSConfig holds the record transport settings.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// APIConfig holds the query API settings.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// AlerterRule defines a single alerting rule evaluated after each cycle.
type AlerterRule struct {
	Name      string  `yaml:"name"`
	Sensor    string  `yaml:"sensor"` // empty matches every sensor
	Metric    string  `yaml:"metric"` // consecutive_failures or peak_occupancy
	Operator  string  `yaml:"operator"`
	Threshold float64 `yaml:"threshold"`
}

// AlerterConfig holds the alerting settings.
type AlerterConfig struct {
	Enabled bool          `yaml:"enabled"`
	Rules   []AlerterRule `yaml:"rules"`
}

// SMTPConfig holds the email notification settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Sensors   []SensorConfig  `yaml:"sensors"`
	Collector CollectorConfig `yaml:"collector"`
	Writers   []WriterDef     `yaml:"writers"`
	Redis     RedisConfig     `yaml:"redis"`
	NATS      NATSConfig      `yaml:"nats"`
	API       APIConfig       `yaml:"api"`
	Alerter   AlerterConfig   `yaml:"alerter"`
	SMTP      SMTPConfig      `yaml:"smtp"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config
// struct. ${VAR} references are expanded from the environment before
// unmarshalling, so credentials can be kept out of the file.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.Collector.applyDefaults()
	return &cfg, nil
}

func (c *CollectorConfig) applyDefaults() {
	if c.Interval == "" {
		c.Interval = "15m"
	}
	if c.Lookback == "" {
		c.Lookback = "1h"
	}
	if c.FetchTimeout == "" {
		c.FetchTimeout = "30s"
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBackoff == "" {
		c.RetryBackoff = "5s"
	}
	if c.ChunkThreshold == "" {
		c.ChunkThreshold = "24h"
	}
	if c.ProbeWindow == "" {
		c.ProbeWindow = "3h"
	}
	if c.DefaultUTCOffset == 0 {
		c.DefaultUTCOffset = 1
	}
}

// Duration parses a duration field, falling back to the given default when
// the field is empty or malformed.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
