package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// testKey is a syntactically valid 32-pair private key used across tests.
const testKey = "00:11:22:33:44:55:66:77:88:99:aa:bb:cc:dd:ee:ff:00:11:22:33:44:55:66:77:88:99:aa:bb:cc:dd:ee:ff"

// validConfig returns a configuration that passes validation.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Device = DeviceConfig{
		ProjectID:  "proj",
		Location:   "europe-west1",
		RegistryID: "reg",
		DeviceID:   "hp-01",
	}
	cfg.Credentials.PrivateKey = testKey
	cfg.Credentials.PrimaryCA = "-----BEGIN CERTIFICATE-----"
	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
device:
  project_id: "proj"
  location: "europe-west1"
  registry_id: "reg"
  device_id: "hp-01"
credentials:
  private_key: "` + testKey + `"
  primary_ca: "pem"
mqtt:
  broker:
    host: "broker.local"
    port: 8883
poll:
  interval_ms: 750
storage:
  backend: "file"
  dir: "/tmp/setpoints"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.DeviceID != "hp-01" {
		t.Errorf("Device.DeviceID = %q, want %q", cfg.Device.DeviceID, "hp-01")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.PollInterval() != 750*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 750ms", cfg.PollInterval())
	}
	if cfg.Storage.Backend != StorageBackendFile {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, StorageBackendFile)
	}
	// Defaults survive partial files
	if cfg.Credentials.JWT.ExpSecs != 3600 {
		t.Errorf("JWT.ExpSecs = %d, want 3600", cfg.Credentials.JWT.ExpSecs)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_PollIntervalRejectedAtLoad(t *testing.T) {
	content := `
device:
  project_id: "proj"
  location: "europe-west1"
  registry_id: "reg"
  device_id: "hp-01"
credentials:
  private_key: "` + testKey + `"
  primary_ca: "pem"
poll:
  interval_ms: 9001
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected error for poll.interval_ms above ceiling, got nil")
	}
	if !strings.Contains(err.Error(), "poll.interval_ms") {
		t.Errorf("Load() error = %v, want mention of poll.interval_ms", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	content := `
device:
  project_id: "proj"
  location: "europe-west1"
  registry_id: "reg"
  device_id: "hp-01"
credentials:
  primary_ca: "pem"
`
	t.Setenv("CLOUDLINK_PRIVATE_KEY", testKey)
	t.Setenv("CLOUDLINK_POLL_INTERVAL_MS", "2000")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Credentials.PrivateKey != testKey {
		t.Error("CLOUDLINK_PRIVATE_KEY override not applied")
	}
	if cfg.Poll.IntervalMS != 2000 {
		t.Errorf("Poll.IntervalMS = %d, want 2000", cfg.Poll.IntervalMS)
	}
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}, wantErr: false},
		{name: "missing device id", mutate: func(c *Config) { c.Device.DeviceID = "" }, wantErr: true},
		{name: "missing project id", mutate: func(c *Config) { c.Device.ProjectID = "" }, wantErr: true},
		{name: "missing private key", mutate: func(c *Config) { c.Credentials.PrivateKey = "" }, wantErr: true},
		{name: "no trust anchors", mutate: func(c *Config) { c.Credentials.PrimaryCA = "" }, wantErr: true},
		{name: "backup CA only", mutate: func(c *Config) {
			c.Credentials.PrimaryCA = ""
			c.Credentials.BackupCA = "pem"
		}, wantErr: false},
		{name: "file source without key", mutate: func(c *Config) {
			c.Credentials.Source = CredentialSourceFile
			c.Credentials.PrivateKey = ""
			c.Credentials.PrimaryCA = ""
		}, wantErr: false},
		{name: "unknown credential source", mutate: func(c *Config) { c.Credentials.Source = "tpm" }, wantErr: true},
		{name: "poll interval zero", mutate: func(c *Config) { c.Poll.IntervalMS = 0 }, wantErr: true},
		{name: "poll interval negative", mutate: func(c *Config) { c.Poll.IntervalMS = -5 }, wantErr: true},
		{name: "poll interval at ceiling", mutate: func(c *Config) { c.Poll.IntervalMS = MaxPollIntervalMS }, wantErr: false},
		{name: "poll interval above ceiling", mutate: func(c *Config) { c.Poll.IntervalMS = MaxPollIntervalMS + 1 }, wantErr: true},
		{name: "poll interval minimum", mutate: func(c *Config) { c.Poll.IntervalMS = 1 }, wantErr: false},
		{name: "token lifetime above 24h", mutate: func(c *Config) { c.Credentials.JWT.ExpSecs = MaxTokenLifetimeSecs + 1 }, wantErr: true},
		{name: "token lifetime at 24h", mutate: func(c *Config) { c.Credentials.JWT.ExpSecs = MaxTokenLifetimeSecs }, wantErr: false},
		{name: "drift margin not below lifetime", mutate: func(c *Config) {
			c.Credentials.JWT.ExpSecs = 60
			c.Credentials.JWT.DriftMarginSecs = 60
		}, wantErr: true},
		{name: "invalid qos", mutate: func(c *Config) { c.MQTT.QoS = 2 }, wantErr: true},
		{name: "zero connect attempts", mutate: func(c *Config) { c.MQTT.ConnectAttempts = 0 }, wantErr: true},
		{name: "unknown change detection", mutate: func(c *Config) { c.Poll.ChangeDetection = "magic" }, wantErr: true},
		{name: "unknown storage backend", mutate: func(c *Config) { c.Storage.Backend = "eeprom" }, wantErr: true},
		{name: "influx enabled without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Device.DeviceID = ""
	cfg.Poll.IntervalMS = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	msg := err.Error()
	for _, want := range []string{"device.device_id", "poll.interval_ms"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Validate() error = %q, want it to mention %q", msg, want)
		}
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := validConfig()

	if got := cfg.TokenLifetime(); got != time.Hour {
		t.Errorf("TokenLifetime() = %v, want 1h", got)
	}
	if got := cfg.DriftMargin(); got != time.Minute {
		t.Errorf("DriftMargin() = %v, want 1m", got)
	}
	if got := cfg.PublishTimeout(); got != time.Second {
		t.Errorf("PublishTimeout() = %v, want 1s", got)
	}
	if got := cfg.KeepAlive(); got != 180*time.Second {
		t.Errorf("KeepAlive() = %v, want 180s", got)
	}
	if got := cfg.ConnectTimeout(); got != 10*time.Second {
		t.Errorf("ConnectTimeout() = %v, want 10s", got)
	}
}
