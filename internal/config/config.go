// Package config loads the robowave YAML configuration shared by the camera
// and robot processes.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "robowave.yaml"

// Config is the full configuration. Each process reads the sections it needs.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Camera     CameraConfig     `yaml:"camera"`
	Detector   DetectorConfig   `yaml:"detector"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Arbiter    ArbiterConfig    `yaml:"arbiter"`
	Channel    ChannelConfig    `yaml:"channel"`
	SCP        SCPConfig        `yaml:"scp"`
	Redis      RedisConfig      `yaml:"redis"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Receiver   ReceiverConfig   `yaml:"receiver"`
	Robot      RobotConfig      `yaml:"robot"`
	Server     ServerConfig     `yaml:"server"`
	Tray       bool             `yaml:"tray"`
}

// LogConfig selects the zap logger flavour.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// CameraConfig describes where frames come from.
type CameraConfig struct {
	// Source is a device index ("0") or a stream URL. FallbackDevice is
	// opened when Source fails; -1 disables it.
	Source         string `yaml:"source"`
	FallbackDevice int    `yaml:"fallback_device"`
	Width          int    `yaml:"width"`
	Height         int    `yaml:"height"`
	Mirror         bool   `yaml:"mirror"`
}

// DetectorConfig configures the MediaPipe landmark service.
type DetectorConfig struct {
	Python          string  `yaml:"python"`
	Script          string  `yaml:"script"`
	MaxHands        int     `yaml:"max_hands"`
	MinConfidence   float64 `yaml:"min_confidence"`
	MinTrackingConf float64 `yaml:"min_tracking_conf"`
}

// ClassifierConfig holds the wave detector parameters.
type ClassifierConfig struct {
	Window      int     `yaml:"window"`
	ThresholdPx float64 `yaml:"threshold_px"`
}

// ArbiterConfig holds the send policy.
type ArbiterConfig struct {
	Cooldown time.Duration `yaml:"cooldown"`
}

// ChannelConfig selects the local record slot and the transport.
type ChannelConfig struct {
	RecordPath string `yaml:"record_path"`
	// Transport is one of "scp", "file", "redis", "mqtt".
	Transport string `yaml:"transport"`
	// RemotePath is the destination for the "file" transport.
	RemotePath string `yaml:"remote_path"`
}

// SCPConfig configures the SSH copy to the robot.
type SCPConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	User       string        `yaml:"user"`
	Password   string        `yaml:"password"`
	KeyFile    string        `yaml:"key_file"`
	KnownHosts string        `yaml:"known_hosts"`
	RemotePath string        `yaml:"remote_path"`
	Timeout    time.Duration `yaml:"timeout"`
}

// RedisConfig configures the Redis single-key slot.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// MQTTConfig configures the retained-topic slot.
type MQTTConfig struct {
	Broker   string        `yaml:"broker"`
	Topic    string        `yaml:"topic"`
	ClientID string        `yaml:"client_id"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	QoS      byte          `yaml:"qos"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ReceiverConfig configures the robot-side polling loop.
type ReceiverConfig struct {
	// Source is one of "file", "redis", "mqtt".
	Source       string        `yaml:"source"`
	RecordPath   string        `yaml:"record_path"`
	StatePath    string        `yaml:"state_path"`
	PollInterval time.Duration `yaml:"poll_interval"`
	ErrorBackoff time.Duration `yaml:"error_backoff"`
	Settle       time.Duration `yaml:"settle"`
	ServoRuntime time.Duration `yaml:"servo_runtime"`
	WaveRepeats  int           `yaml:"wave_repeats"`
	Greeting     string        `yaml:"greeting"`
	// MaxFutureSkew clamps a restored watermark that is further ahead of
	// the local clock. Zero disables the check.
	MaxFutureSkew time.Duration `yaml:"max_future_skew"`
}

// RobotConfig selects and configures the actuator driver.
type RobotConfig struct {
	// Driver is one of "yanshee", "servo", "log".
	Driver           string        `yaml:"driver"`
	Address          string        `yaml:"address"`
	Port             int           `yaml:"port"`
	Timeout          time.Duration `yaml:"timeout"`
	Volume           int           `yaml:"volume"`
	StreamResolution string        `yaml:"stream_resolution"`
	Servo            ServoConfig   `yaml:"servo"`
}

// ServoConfig maps joints onto a feetech servo bus.
type ServoConfig struct {
	Port     string             `yaml:"port"`
	BaudRate int                `yaml:"baud_rate"`
	IDs      map[string]int     `yaml:"ids"`
	Home     map[string]float64 `yaml:"home"`
}

// ServerConfig configures the camera-side status API.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// Default returns the configuration matching the reference deployment.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Camera: CameraConfig{
			Source:         "http://192.168.31.234:8000/stream.mjpg",
			FallbackDevice: 0,
			Width:          640,
			Height:         480,
			Mirror:         true,
		},
		Detector: DetectorConfig{
			MaxHands:        2,
			MinConfidence:   0.7,
			MinTrackingConf: 0.5,
		},
		Classifier: ClassifierConfig{Window: 15, ThresholdPx: 25},
		Arbiter:    ArbiterConfig{Cooldown: 2500 * time.Millisecond},
		Channel: ChannelConfig{
			RecordPath: "command.json",
			Transport:  "scp",
		},
		SCP: SCPConfig{
			Host:       "192.168.31.234",
			Port:       2000,
			User:       "pi",
			RemotePath: "/home/pi/jupyter/command.json",
			Timeout:    2 * time.Second,
		},
		Redis: RedisConfig{Addr: "127.0.0.1:6379", Key: "robowave:command"},
		MQTT: MQTTConfig{
			Broker:   "tcp://127.0.0.1:1883",
			Topic:    "robowave/command",
			ClientID: "robowave",
			QoS:      1,
			Timeout:  5 * time.Second,
		},
		Receiver: ReceiverConfig{
			Source:        "file",
			RecordPath:    "command.json",
			PollInterval:  50 * time.Millisecond,
			ErrorBackoff:  500 * time.Millisecond,
			Settle:        300 * time.Millisecond,
			ServoRuntime:  300 * time.Millisecond,
			WaveRepeats:   1,
			Greeting:      "Hello, my name is Yanshee.",
			MaxFutureSkew: time.Hour,
		},
		Robot: RobotConfig{
			Driver:           "yanshee",
			Address:          "192.168.31.234",
			Port:             9090,
			Timeout:          5 * time.Second,
			Volume:           90,
			StreamResolution: "640x480",
			Servo: ServoConfig{
				BaudRate: 1_000_000,
			},
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads a YAML file over the defaults. A missing file at the default
// location is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultFile {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %q: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the values the pipelines cannot run without.
func (c Config) Validate() error {
	if c.Classifier.Window <= 0 {
		return fmt.Errorf("classifier.window must be positive, got %d", c.Classifier.Window)
	}
	if c.Classifier.ThresholdPx < 0 {
		return fmt.Errorf("classifier.threshold_px must not be negative")
	}
	if c.Arbiter.Cooldown < 0 {
		return fmt.Errorf("arbiter.cooldown must not be negative")
	}
	if c.Receiver.PollInterval <= 0 {
		return fmt.Errorf("receiver.poll_interval must be positive")
	}
	if c.Receiver.WaveRepeats < 0 {
		return fmt.Errorf("receiver.wave_repeats must not be negative")
	}
	if c.Receiver.MaxFutureSkew < 0 {
		return fmt.Errorf("receiver.max_future_skew must not be negative")
	}

	switch c.Channel.Transport {
	case "scp", "file", "redis", "mqtt":
	default:
		return fmt.Errorf("unknown channel.transport %q", c.Channel.Transport)
	}
	switch c.Receiver.Source {
	case "file", "redis", "mqtt":
	default:
		return fmt.Errorf("unknown receiver.source %q", c.Receiver.Source)
	}
	switch c.Robot.Driver {
	case "yanshee", "servo", "log":
	default:
		return fmt.Errorf("unknown robot.driver %q", c.Robot.Driver)
	}

	return nil
}

// ValidateSender checks what the camera side needs to deliver records. It is
// separate from Validate because a robot host never reads the scp section.
func (c Config) ValidateSender() error {
	switch c.Channel.Transport {
	case "scp":
		if c.SCP.Host == "" || c.SCP.RemotePath == "" {
			return fmt.Errorf("channel.transport scp needs scp.host and scp.remote_path")
		}
		if c.SCP.Password == "" && c.SCP.KeyFile == "" {
			return fmt.Errorf("channel.transport scp needs scp.password or scp.key_file")
		}
	case "redis":
		if c.Redis.Addr == "" || c.Redis.Key == "" {
			return fmt.Errorf("channel.transport redis needs redis.addr and redis.key")
		}
	case "mqtt":
		if c.MQTT.Broker == "" || c.MQTT.Topic == "" {
			return fmt.Errorf("channel.transport mqtt needs mqtt.broker and mqtt.topic")
		}
	}
	return nil
}
