package config

import (
	"path"
	"strings"
	"time"
)

// Bridge transports
const (
	TransportRosbridge = "rosbridge"
	TransportZeroMQ    = "zeromq"
)

// Tracking frame conventions for pose input
const (
	FrameUnity = "unity" // left-handed, Y up, Z forward
	FrameROS   = "ros"   // right-handed, Z up, X forward
)

// Store drivers
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Remote action keys. Values in TeleopConfig.Actions map these to service names.
const (
	ActionSit          = "sit"
	ActionStand        = "stand"
	ActionArmStow      = "arm_stow"
	ActionArmUnstow    = "arm_unstow"
	ActionOpenGripper  = "open_gripper"
	ActionCloseGripper = "close_gripper"
)

// AllActions lists every remote action the trigger component can invoke.
var AllActions = []string{
	ActionSit, ActionStand,
	ActionArmStow, ActionArmUnstow,
	ActionOpenGripper, ActionCloseGripper,
}

// BridgeConfig selects and configures the middleware bridge
type BridgeConfig struct {
	Transport     string       `yaml:"transport"`
	URL           string       `yaml:"url"`
	Namespace     string       `yaml:"namespace"`
	VelocityTopic string       `yaml:"velocity_topic"`
	VelocityType  string       `yaml:"velocity_type"`
	ServiceType   string       `yaml:"service_type"`
	ZeroMQ        ZeroMQConfig `yaml:"zeromq"`
}

// ZeroMQConfig holds the gateway socket addresses used by the zeromq transport
type ZeroMQConfig struct {
	PublishAddress  string `yaml:"publish_address"`
	ResponseAddress string `yaml:"response_address"`
}

// TeleopConfig tunes the trigger and shaping components
type TeleopConfig struct {
	FrameRateHz      int               `yaml:"frame_rate_hz"`
	FixedTickMs      int               `yaml:"fixed_tick_ms"`
	TurnRate         float64           `yaml:"turn_rate"`
	SmoothingDivisor float64           `yaml:"smoothing_divisor"`
	MaxLinear        float64           `yaml:"max_linear"`
	TrackingFrame    string            `yaml:"tracking_frame"`
	Actions          map[string]string `yaml:"actions"`
}

// TelemetryConfig configures the MQTT event publisher and its worker pool
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Workers     int    `yaml:"workers"`
	QueueSize   int    `yaml:"queue_size"`
}

// StoreConfig configures the action audit log database
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
}

// ApplyDefaults fills every zero-valued field with its default.
func (c *BootstrapConfig) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}

	b := &c.Bridge
	if b.Transport == "" {
		b.Transport = TransportRosbridge
	}
	if b.Namespace == "" {
		b.Namespace = "/spot1"
	}
	if b.VelocityTopic == "" {
		b.VelocityTopic = "cmd_vel"
	}
	if b.VelocityType == "" {
		b.VelocityType = "geometry_msgs/Twist"
	}
	if b.ServiceType == "" {
		b.ServiceType = "std_srvs/Trigger"
	}

	t := &c.Teleop
	if t.FrameRateHz == 0 {
		t.FrameRateHz = 72
	}
	if t.FixedTickMs == 0 {
		t.FixedTickMs = 20
	}
	if t.TurnRate == 0 {
		t.TurnRate = 1.5
	}
	if t.SmoothingDivisor == 0 {
		t.SmoothingDivisor = 5
	}
	if t.MaxLinear == 0 {
		t.MaxLinear = 1.0
	}
	if t.TrackingFrame == "" {
		t.TrackingFrame = FrameUnity
	}
	if t.Actions == nil {
		t.Actions = make(map[string]string, len(AllActions))
	}
	for _, action := range AllActions {
		if t.Actions[action] == "" {
			t.Actions[action] = action
		}
	}

	tm := &c.Telemetry
	if tm.ClientID == "" {
		tm.ClientID = "vrteleop"
	}
	if tm.TopicPrefix == "" {
		tm.TopicPrefix = "vrteleop"
	}
	if tm.Workers == 0 {
		tm.Workers = 1
	}
	if tm.QueueSize == 0 {
		tm.QueueSize = 256
	}

	if c.Store.Driver == "" {
		c.Store.Driver = DriverSQLite
	}
}

// ServiceName resolves an action key to a fully qualified service name,
// e.g. "sit" -> "/spot1/sit". Names that are already absolute are kept.
func (c *BootstrapConfig) ServiceName(action string) string {
	name := action
	if mapped, ok := c.Teleop.Actions[action]; ok && mapped != "" {
		name = mapped
	}
	return qualify(c.Bridge.Namespace, name)
}

// VelocityTopic returns the fully qualified velocity command topic.
func (c *BootstrapConfig) VelocityTopic() string {
	return qualify(c.Bridge.Namespace, c.Bridge.VelocityTopic)
}

// TickDuration is the fixed timestep of the shaping component.
func (c *BootstrapConfig) TickDuration() time.Duration {
	return time.Duration(c.Teleop.FixedTickMs) * time.Millisecond
}

// FramePeriod is the period of the trigger component's frame tick.
func (c *BootstrapConfig) FramePeriod() time.Duration {
	return time.Second / time.Duration(c.Teleop.FrameRateHz)
}

func qualify(namespace, name string) string {
	if strings.HasPrefix(name, "/") {
		return name
	}
	return path.Join("/", namespace, name)
}
