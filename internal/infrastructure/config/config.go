package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Operational bounds enforced by Validate.
const (
	// MaxPollIntervalMS is the hard ceiling for the poll period. Above it the
	// broker client reconnects but does not resume the data flow.
	MaxPollIntervalMS = 9000

	// MaxTokenLifetimeSecs caps the bearer token lifetime (24h).
	MaxTokenLifetimeSecs = 86400
)

// Credential sources.
const (
	CredentialSourceInline = "inline"
	CredentialSourceFile   = "file"
)

// Storage backends.
const (
	StorageBackendSQLite = "sqlite"
	StorageBackendFile   = "file"
)

// Change detection strategies.
const (
	ChangeDetectionPoll  = "poll"
	ChangeDetectionEvent = "event"
)

// Config is the root configuration structure for the cloudlink agent.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	Credentials CredentialsConfig `yaml:"credentials"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Poll        PollConfig        `yaml:"poll"`
	Storage     StorageConfig     `yaml:"storage"`
	Driver      DriverConfig      `yaml:"driver"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Watchdog    WatchdogConfig    `yaml:"watchdog"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// DeviceConfig identifies the device towards the cloud registry.
type DeviceConfig struct {
	ProjectID  string `yaml:"project_id"`
	Location   string `yaml:"location"`
	RegistryID string `yaml:"registry_id"`
	DeviceID   string `yaml:"device_id"`
}

// CredentialsConfig contains the signing key, trust anchors and token settings.
type CredentialsConfig struct {
	// Source selects where the key and trust anchors come from: "inline" or "file".
	Source string `yaml:"source"`

	// PrivateKey is the EC private scalar as colon-separated hex pairs,
	// as printed by `openssl ec -in key.pem -noout -text` (priv: section).
	PrivateKey string `yaml:"private_key"`

	// PrimaryCA and BackupCA are PEM encoded certificate authorities.
	PrimaryCA string `yaml:"primary_ca"`
	BackupCA  string `yaml:"backup_ca"`

	File CredentialFilesConfig `yaml:"file"`
	JWT  TokenConfig           `yaml:"jwt"`
}

// CredentialFilesConfig locates DER encoded credentials on the flash file store.
type CredentialFilesConfig struct {
	Dir            string `yaml:"dir"`
	PrimaryCAPath  string `yaml:"primary_ca_path"`
	BackupCAPath   string `yaml:"backup_ca_path"`
	PrivateKeyPath string `yaml:"private_key_path"`
}

// TokenConfig contains bearer token lifetime settings.
type TokenConfig struct {
	ExpSecs         int `yaml:"exp_secs"`
	DriftMarginSecs int `yaml:"drift_margin_secs"`
}

// MQTTConfig contains broker connection settings.
type MQTTConfig struct {
	Broker             MQTTBrokerConfig `yaml:"broker"`
	UseLTS             bool             `yaml:"use_lts"`
	QoS                int              `yaml:"qos"`
	KeepAliveSecs      int              `yaml:"keepalive_secs"`
	TimeoutMS          int              `yaml:"timeout_ms"`
	ConnectTimeoutSecs int              `yaml:"connect_timeout_secs"`
	CleanSession       bool             `yaml:"clean_session"`
	ConnectAttempts    int              `yaml:"connect_attempts"`
}

// MQTTBrokerConfig contains broker address details.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// PollConfig contains the polling scheduler settings.
type PollConfig struct {
	IntervalMS      int    `yaml:"interval_ms"`
	ChangeDetection string `yaml:"change_detection"`
}

// StorageConfig selects where setpoints are persisted.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	Dir     string `yaml:"dir"`
}

// DriverConfig selects the heat pump driver.
type DriverConfig struct {
	Kind string `yaml:"kind"`
}

// InfluxDBConfig contains InfluxDB connection settings for the telemetry mirror.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DiagnosticsConfig contains the local diagnostics HTTP server settings.
type DiagnosticsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// WatchdogConfig controls systemd watchdog integration.
type WatchdogConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CLOUDLINK_SECTION_KEY
// For example: CLOUDLINK_PRIVATE_KEY, CLOUDLINK_POLL_INTERVAL_MS
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Credentials: CredentialsConfig{
			Source: CredentialSourceInline,
			File: CredentialFilesConfig{
				Dir:            "/",
				PrimaryCAPath:  "gtsltsr.crt",
				BackupCAPath:   "GSR4.crt",
				PrivateKeyPath: "private-key.der",
			},
			JWT: TokenConfig{
				ExpSecs:         3600,
				DriftMarginSecs: 60,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "mqtt.googleapis.com",
				Port: 8883,
			},
			UseLTS:             true,
			QoS:                1,
			KeepAliveSecs:      180,
			TimeoutMS:          1000,
			ConnectTimeoutSecs: 10,
			CleanSession:       true,
			ConnectAttempts:    1,
		},
		Poll: PollConfig{
			IntervalMS:      500,
			ChangeDetection: ChangeDetectionPoll,
		},
		Storage: StorageConfig{
			Backend: StorageBackendSQLite,
			Path:    "./data/cloudlink.db",
			Dir:     "./data/setpoints",
		},
		Driver: DriverConfig{
			Kind: "simulated",
		},
		Diagnostics: DiagnosticsConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CLOUDLINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device identity
	if v := os.Getenv("CLOUDLINK_DEVICE_ID"); v != "" {
		cfg.Device.DeviceID = v
	}

	// Credentials (IMPORTANT: prefer the environment for the key in production)
	if v := os.Getenv("CLOUDLINK_PRIVATE_KEY"); v != "" {
		cfg.Credentials.PrivateKey = v
	}

	// MQTT
	if v := os.Getenv("CLOUDLINK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}

	// Poll
	if v := os.Getenv("CLOUDLINK_POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Poll.IntervalMS = n
		}
	}

	// InfluxDB
	if v := os.Getenv("CLOUDLINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Every violation is collected so the operator sees all of them at once.
func (c *Config) Validate() error {
	var errs []string

	// Device identity
	if c.Device.ProjectID == "" {
		errs = append(errs, "device.project_id is required")
	}
	if c.Device.Location == "" {
		errs = append(errs, "device.location is required")
	}
	if c.Device.RegistryID == "" {
		errs = append(errs, "device.registry_id is required")
	}
	if c.Device.DeviceID == "" {
		errs = append(errs, "device.device_id is required")
	}

	// Credentials
	switch c.Credentials.Source {
	case CredentialSourceInline:
		if c.Credentials.PrivateKey == "" {
			errs = append(errs, "credentials.private_key is required (set CLOUDLINK_PRIVATE_KEY environment variable)")
		}
		if c.Credentials.PrimaryCA == "" && c.Credentials.BackupCA == "" {
			errs = append(errs, "credentials.primary_ca or credentials.backup_ca is required")
		}
	case CredentialSourceFile:
		if c.Credentials.File.Dir == "" {
			errs = append(errs, "credentials.file.dir is required")
		}
	default:
		errs = append(errs, "credentials.source must be inline or file")
	}
	if c.Credentials.JWT.ExpSecs < 1 || c.Credentials.JWT.ExpSecs > MaxTokenLifetimeSecs {
		errs = append(errs, fmt.Sprintf("credentials.jwt.exp_secs must be between 1 and %d", MaxTokenLifetimeSecs))
	}
	if c.Credentials.JWT.DriftMarginSecs < 0 || c.Credentials.JWT.DriftMarginSecs >= c.Credentials.JWT.ExpSecs {
		errs = append(errs, "credentials.jwt.drift_margin_secs must be >= 0 and less than exp_secs")
	}

	// MQTT
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 1 {
		errs = append(errs, "mqtt.qos must be 0 or 1")
	}
	if c.MQTT.KeepAliveSecs < 1 {
		errs = append(errs, "mqtt.keepalive_secs must be positive")
	}
	if c.MQTT.TimeoutMS < 1 {
		errs = append(errs, "mqtt.timeout_ms must be positive")
	}
	if c.MQTT.ConnectTimeoutSecs < 1 {
		errs = append(errs, "mqtt.connect_timeout_secs must be positive")
	}
	if c.MQTT.ConnectAttempts < 1 {
		errs = append(errs, "mqtt.connect_attempts must be at least 1")
	}

	// Poll
	if c.Poll.IntervalMS <= 0 || c.Poll.IntervalMS > MaxPollIntervalMS {
		errs = append(errs, fmt.Sprintf("poll.interval_ms must be in (0, %d]", MaxPollIntervalMS))
	}
	switch c.Poll.ChangeDetection {
	case ChangeDetectionPoll, ChangeDetectionEvent:
	default:
		errs = append(errs, "poll.change_detection must be poll or event")
	}

	// Storage
	switch c.Storage.Backend {
	case StorageBackendSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, "storage.path is required for the sqlite backend")
		}
	case StorageBackendFile:
		if c.Storage.Dir == "" {
			errs = append(errs, "storage.dir is required for the file backend")
		}
	default:
		errs = append(errs, "storage.backend must be sqlite or file")
	}

	// Driver
	if c.Driver.Kind != "simulated" {
		errs = append(errs, "driver.kind must be simulated")
	}

	// InfluxDB (optional)
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// Diagnostics
	if c.Diagnostics.Enabled && (c.Diagnostics.Port < 1 || c.Diagnostics.Port > 65535) {
		errs = append(errs, "diagnostics.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// PollInterval returns the poll period as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalMS) * time.Millisecond
}

// TokenLifetime returns the configured bearer token lifetime.
func (c *Config) TokenLifetime() time.Duration {
	return time.Duration(c.Credentials.JWT.ExpSecs) * time.Second
}

// DriftMargin returns the token expiry safety window.
func (c *Config) DriftMargin() time.Duration {
	return time.Duration(c.Credentials.JWT.DriftMarginSecs) * time.Second
}

// PublishTimeout returns the per-operation MQTT timeout.
func (c *Config) PublishTimeout() time.Duration {
	return time.Duration(c.MQTT.TimeoutMS) * time.Millisecond
}

// ConnectTimeout returns the MQTT connection timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.MQTT.ConnectTimeoutSecs) * time.Second
}

// KeepAlive returns the MQTT keepalive interval.
func (c *Config) KeepAlive() time.Duration {
	return time.Duration(c.MQTT.KeepAliveSecs) * time.Second
}
