package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BootstrapFilename is the file LoadBootstrapConfig reads from the config directory.
const BootstrapFilename = "teleop_config.yaml"

// BootstrapConfig holds everything loaded from teleop_config.yaml
type BootstrapConfig struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Server    ServerConfig    `yaml:"server"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Teleop    TeleopConfig    `yaml:"teleop"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Store     StoreConfig     `yaml:"store"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogPath string `yaml:"log_path,omitempty"`
}

// ServerConfig holds the HTTP/websocket server settings
type ServerConfig struct {
	HTTPPort int `yaml:"http_port"`
}

// LoadBootstrapConfig loads <configDir>/teleop_config.yaml, applies defaults
// and environment overrides, then validates the result.
func LoadBootstrapConfig(configDir string) (*BootstrapConfig, error) {
	path := filepath.Join(configDir, BootstrapFilename)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading bootstrap config file '%s': %w", path, err)
	}

	cfg, err := ParseBootstrapConfig(data)
	if err != nil {
		return nil, fmt.Errorf("error in bootstrap config file '%s': %w", path, err)
	}
	return cfg, nil
}

// ParseBootstrapConfig parses raw YAML the same way LoadBootstrapConfig does.
func ParseBootstrapConfig(data []byte) (*BootstrapConfig, error) {
	var cfg BootstrapConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	cfg.ApplyDefaults()
	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides selected fields from the environment. lookup is
// os.Getenv in production.
func (c *BootstrapConfig) ApplyEnv(lookup func(string) string) {
	if v := lookup("PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			c.Server.HTTPPort = port
		}
	}
	if v := lookup("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := lookup("BRIDGE_URL"); v != "" {
		c.Bridge.URL = v
	}
	if v := lookup("MQTT_BROKER"); v != "" {
		c.Telemetry.Broker = v
	}
	if v := lookup("STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
}

// Validate checks required fields and enumerations.
func (c *BootstrapConfig) Validate() error {
	switch c.Bridge.Transport {
	case TransportRosbridge:
		if c.Bridge.URL == "" {
			return fmt.Errorf("missing required field in bootstrap config: bridge.url")
		}
	case TransportZeroMQ:
		if c.Bridge.ZeroMQ.PublishAddress == "" {
			return fmt.Errorf("missing required field in bootstrap config: bridge.zeromq.publish_address")
		}
		if c.Bridge.ZeroMQ.ResponseAddress == "" {
			return fmt.Errorf("missing required field in bootstrap config: bridge.zeromq.response_address")
		}
	default:
		return fmt.Errorf("invalid bridge.transport %q (expected %q or %q)", c.Bridge.Transport, TransportRosbridge, TransportZeroMQ)
	}

	switch c.Teleop.TrackingFrame {
	case FrameUnity, FrameROS:
	default:
		return fmt.Errorf("invalid teleop.tracking_frame %q (expected %q or %q)", c.Teleop.TrackingFrame, FrameUnity, FrameROS)
	}

	if c.Teleop.FixedTickMs <= 0 {
		return fmt.Errorf("teleop.fixed_tick_ms must be positive, got %d", c.Teleop.FixedTickMs)
	}
	if c.Teleop.FrameRateHz <= 0 {
		return fmt.Errorf("teleop.frame_rate_hz must be positive, got %d", c.Teleop.FrameRateHz)
	}

	if c.Telemetry.Enabled && c.Telemetry.Broker == "" {
		return fmt.Errorf("missing required field in bootstrap config: telemetry.broker")
	}

	if c.Store.Enabled {
		switch c.Store.Driver {
		case DriverSQLite, DriverMySQL:
		default:
			return fmt.Errorf("invalid store.driver %q (expected %q or %q)", c.Store.Driver, DriverSQLite, DriverMySQL)
		}
		if c.Store.DSN == "" {
			return fmt.Errorf("missing required field in bootstrap config: store.dsn")
		}
	}

	return nil
}
