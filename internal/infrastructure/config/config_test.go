package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-site"
grid:
  rows: 4
  columns: 6
  short_topic: "command/sp_command"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
directory:
  backend: etcd
  key_prefix: "/toad/ips"
  refresh_interval: 15s
  etcd:
    endpoints: ["10.0.0.5:2379"]
dispatch:
  command_timeout: 2500ms
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Grid.Rows != 4 || cfg.Grid.Columns != 6 {
		t.Errorf("Grid = %dx%d, want 4x6", cfg.Grid.Rows, cfg.Grid.Columns)
	}
	if cfg.Directory.KeyPrefix != "/toad/ips" {
		t.Errorf("Directory.KeyPrefix = %q, want %q", cfg.Directory.KeyPrefix, "/toad/ips")
	}
	if cfg.Directory.RefreshInterval != 15*time.Second {
		t.Errorf("Directory.RefreshInterval = %v, want 15s", cfg.Directory.RefreshInterval)
	}
	if len(cfg.Directory.Etcd.Endpoints) != 1 || cfg.Directory.Etcd.Endpoints[0] != "10.0.0.5:2379" {
		t.Errorf("Directory.Etcd.Endpoints = %v, want [10.0.0.5:2379]", cfg.Directory.Etcd.Endpoints)
	}
	if cfg.Dispatch.CommandTimeout != 2500*time.Millisecond {
		t.Errorf("Dispatch.CommandTimeout = %v, want 2.5s", cfg.Dispatch.CommandTimeout)
	}

	// Untouched sections keep their defaults
	if cfg.Device.Port != 9999 {
		t.Errorf("Device.Port = %d, want 9999", cfg.Device.Port)
	}
	if cfg.Device.ReadBufferSize != 2048 {
		t.Errorf("Device.ReadBufferSize = %d, want 2048", cfg.Device.ReadBufferSize)
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

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
grid:
  rows: 0
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected validation error for zero grid.rows, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	validJWTSecret := "test-secret-key-at-least-32-chars!"

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(_ *Config) {},
			wantErr: false,
		},
		{
			name:    "missing site ID",
			mutate:  func(c *Config) { c.Site.ID = "" },
			wantErr: true,
		},
		{
			name:    "zero columns",
			mutate:  func(c *Config) { c.Grid.Columns = 0 },
			wantErr: true,
		},
		{
			name:    "empty short topic",
			mutate:  func(c *Config) { c.Grid.ShortTopic = "" },
			wantErr: true,
		},
		{
			name:    "invalid grid QoS",
			mutate:  func(c *Config) { c.Grid.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid mqtt QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = -1 },
			wantErr: true,
		},
		{
			name:    "unknown directory backend",
			mutate:  func(c *Config) { c.Directory.Backend = "consul" },
			wantErr: true,
		},
		{
			name:    "etcd backend without endpoints",
			mutate:  func(c *Config) { c.Directory.Etcd.Endpoints = nil },
			wantErr: true,
		},
		{
			name: "sqlite backend with path",
			mutate: func(c *Config) {
				c.Directory.Backend = DirectoryBackendSQLite
				c.Directory.Etcd.Endpoints = nil
			},
			wantErr: false,
		},
		{
			name: "sqlite backend without path",
			mutate: func(c *Config) {
				c.Directory.Backend = DirectoryBackendSQLite
				c.Directory.SQLite.Path = ""
			},
			wantErr: true,
		},
		{
			name:    "empty key prefix",
			mutate:  func(c *Config) { c.Directory.KeyPrefix = "" },
			wantErr: true,
		},
		{
			name:    "zero refresh interval",
			mutate:  func(c *Config) { c.Directory.RefreshInterval = 0 },
			wantErr: true,
		},
		{
			name:    "device port too high",
			mutate:  func(c *Config) { c.Device.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "zero read buffer",
			mutate:  func(c *Config) { c.Device.ReadBufferSize = 0 },
			wantErr: true,
		},
		{
			name:    "zero command timeout",
			mutate:  func(c *Config) { c.Dispatch.CommandTimeout = 0 },
			wantErr: true,
		},
		{
			name: "api enabled with valid secret",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.Security.JWT.Secret = validJWTSecret
			},
			wantErr: false,
		},
		{
			name:    "api enabled without secret",
			mutate:  func(c *Config) { c.API.Enabled = true },
			wantErr: true,
		},
		{
			name: "api enabled with short secret",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.Security.JWT.Secret = "short"
			},
			wantErr: true,
		},
		{
			name: "api enabled with invalid port",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Port = 0
				c.Security.JWT.Secret = validJWTSecret
			},
			wantErr: true,
		},
		{
			name:    "api disabled ignores port",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRIDSWITCH_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRIDSWITCH_MQTT_USERNAME", "testuser")
	t.Setenv("GRIDSWITCH_MQTT_PASSWORD", "testpass")
	t.Setenv("GRIDSWITCH_DIRECTORY_PREFIX", "/lab/ips")
	t.Setenv("GRIDSWITCH_ETCD_ENDPOINTS", "etcd-a:2379, etcd-b:2379,")
	t.Setenv("GRIDSWITCH_ETCD_PASSWORD", "etcdpass")
	t.Setenv("GRIDSWITCH_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("GRIDSWITCH_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.Directory.KeyPrefix != "/lab/ips" {
		t.Errorf("Directory.KeyPrefix = %q, want %q", cfg.Directory.KeyPrefix, "/lab/ips")
	}

	wantEndpoints := []string{"etcd-a:2379", "etcd-b:2379"}
	if len(cfg.Directory.Etcd.Endpoints) != len(wantEndpoints) {
		t.Fatalf("Directory.Etcd.Endpoints = %v, want %v", cfg.Directory.Etcd.Endpoints, wantEndpoints)
	}
	for i, e := range wantEndpoints {
		if cfg.Directory.Etcd.Endpoints[i] != e {
			t.Errorf("Directory.Etcd.Endpoints[%d] = %q, want %q", i, cfg.Directory.Etcd.Endpoints[i], e)
		}
	}

	if cfg.Directory.Etcd.Password != "etcdpass" {
		t.Errorf("Directory.Etcd.Password = %q, want %q", cfg.Directory.Etcd.Password, "etcdpass")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Security.JWT.Secret != "jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q, want %q", cfg.Security.JWT.Secret, "jwt-secret")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Device.Port != 9999 {
		t.Errorf("defaultConfig Device.Port = %d, want 9999", cfg.Device.Port)
	}
	if cfg.Directory.Backend != DirectoryBackendEtcd {
		t.Errorf("defaultConfig Directory.Backend = %q, want %q", cfg.Directory.Backend, DirectoryBackendEtcd)
	}
	if cfg.API.Enabled {
		t.Error("defaultConfig API.Enabled = true, want false")
	}
}
