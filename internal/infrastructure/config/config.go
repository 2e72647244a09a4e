package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Directory backends.
const (
	DirectoryBackendEtcd   = "etcd"
	DirectoryBackendSQLite = "sqlite"
)

// Config is the root configuration structure for gridswitch.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Grid      GridConfig      `yaml:"grid"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Directory DirectoryConfig `yaml:"directory"`
	Device    DeviceConfig    `yaml:"device"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// SiteConfig identifies the installation.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// GridConfig describes the smartplug grid and the command topic namespace.
type GridConfig struct {
	// Rows is the number of rows in the grid (identifiers w.r0 .. w.r{Rows-1}).
	Rows int `yaml:"rows"`

	// Columns is the number of columns in the grid (identifiers .c0 .. .c{Columns-1}).
	Columns int `yaml:"columns"`

	// ShortTopic is the topic prefix that marks command messages.
	// The remainder of the topic after this prefix is the addressing query.
	ShortTopic string `yaml:"short_topic"`

	// QoS is the subscription QoS for command messages.
	QoS int `yaml:"qos"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// DirectoryConfig controls where device addresses come from and how often
// the in-memory snapshot is rebuilt.
type DirectoryConfig struct {
	// Backend is "etcd" or "sqlite".
	Backend string `yaml:"backend"`

	// KeyPrefix is the parent key of all identifier -> address entries.
	KeyPrefix string `yaml:"key_prefix"`

	// RefreshInterval is how often the snapshot is rebuilt from the store.
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	Etcd   EtcdConfig     `yaml:"etcd"`
	SQLite DatabaseConfig `yaml:"sqlite"`
}

// EtcdConfig contains etcd v3 client settings.
type EtcdConfig struct {
	Endpoints      []string      `yaml:"endpoints"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// DeviceConfig contains smartplug connection settings.
type DeviceConfig struct {
	// Port is the TCP port smartplugs listen on.
	Port int `yaml:"port"`

	// DialTimeout bounds the TCP connect to a single device.
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// IOTimeout bounds the write and read on a single device connection.
	IOTimeout time.Duration `yaml:"io_timeout"`

	// ReadBufferSize is the maximum response size read from a device.
	ReadBufferSize int `yaml:"read_buffer_size"`
}

// DispatchConfig contains fan-out settings.
type DispatchConfig struct {
	// CommandTimeout is the single deadline shared by every target of one command.
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRIDSWITCH_SECTION_KEY
// For example: GRIDSWITCH_MQTT_HOST, GRIDSWITCH_ETCD_ENDPOINTS
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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
		Site: SiteConfig{
			ID:   "site-001",
			Name: "gridswitch",
		},
		Grid: GridConfig{
			Rows:       8,
			Columns:    8,
			ShortTopic: "command/sp_command",
			QoS:        0,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "gridswitch",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Directory: DirectoryConfig{
			Backend:         DirectoryBackendEtcd,
			KeyPrefix:       "/smartplugs/ips",
			RefreshInterval: 30 * time.Second,
			Etcd: EtcdConfig{
				Endpoints:      []string{"127.0.0.1:2379"},
				DialTimeout:    5 * time.Second,
				RequestTimeout: 5 * time.Second,
			},
			SQLite: DatabaseConfig{
				Path:        "./data/gridswitch.db",
				WALMode:     true,
				BusyTimeout: 5,
			},
		},
		Device: DeviceConfig{
			Port:           9999,
			DialTimeout:    3 * time.Second,
			IOTimeout:      5 * time.Second,
			ReadBufferSize: 2048,
		},
		Dispatch: DispatchConfig{
			CommandTimeout: 5 * time.Second,
		},
		API: APIConfig{
			Enabled: false,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRIDSWITCH_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("GRIDSWITCH_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRIDSWITCH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRIDSWITCH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Directory
	if v := os.Getenv("GRIDSWITCH_DIRECTORY_PREFIX"); v != "" {
		cfg.Directory.KeyPrefix = v
	}
	if v := os.Getenv("GRIDSWITCH_ETCD_ENDPOINTS"); v != "" {
		var endpoints []string
		for _, e := range strings.Split(v, ",") {
			if e = strings.TrimSpace(e); e != "" {
				endpoints = append(endpoints, e)
			}
		}
		cfg.Directory.Etcd.Endpoints = endpoints
	}
	if v := os.Getenv("GRIDSWITCH_ETCD_PASSWORD"); v != "" {
		cfg.Directory.Etcd.Password = v
	}

	// InfluxDB
	if v := os.Getenv("GRIDSWITCH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("GRIDSWITCH_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Grid
	if c.Grid.Rows < 1 {
		errs = append(errs, "grid.rows must be at least 1")
	}
	if c.Grid.Columns < 1 {
		errs = append(errs, "grid.columns must be at least 1")
	}
	if c.Grid.ShortTopic == "" {
		errs = append(errs, "grid.short_topic is required")
	}
	if c.Grid.QoS < 0 || c.Grid.QoS > 2 {
		errs = append(errs, "grid.qos must be 0, 1, or 2")
	}

	// MQTT
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Directory
	switch c.Directory.Backend {
	case DirectoryBackendEtcd:
		if len(c.Directory.Etcd.Endpoints) == 0 {
			errs = append(errs, "directory.etcd.endpoints is required for the etcd backend")
		}
	case DirectoryBackendSQLite:
		if c.Directory.SQLite.Path == "" {
			errs = append(errs, "directory.sqlite.path is required for the sqlite backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("directory.backend must be %q or %q", DirectoryBackendEtcd, DirectoryBackendSQLite))
	}
	if c.Directory.KeyPrefix == "" {
		errs = append(errs, "directory.key_prefix is required")
	}
	if c.Directory.RefreshInterval <= 0 {
		errs = append(errs, "directory.refresh_interval must be positive")
	}

	// Device
	if c.Device.Port < 1 || c.Device.Port > 65535 {
		errs = append(errs, "device.port must be between 1 and 65535")
	}
	if c.Device.ReadBufferSize < 1 {
		errs = append(errs, "device.read_buffer_size must be positive")
	}

	// Dispatch
	if c.Dispatch.CommandTimeout <= 0 {
		errs = append(errs, "dispatch.command_timeout must be positive")
	}

	// API and its authentication only matter when the API is served.
	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}

		const minJWTSecretLength = 32
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required when the API is enabled (set GRIDSWITCH_JWT_SECRET)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
