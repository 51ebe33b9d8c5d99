// Package config loads settings from defaults, an optional config file,
// JOYBRIDGE_* environment variables and command line flags, in that order
// of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrHelp is returned when -h/--help was requested.
var ErrHelp = pflag.ErrHelp

const (
	BackendSDL      = "sdl"
	BackendJoystick = "joystick"
)

type Config struct {
	Addr         string          `mapstructure:"addr"`
	Backend      string          `mapstructure:"backend"`
	PollInterval time.Duration   `mapstructure:"poll_interval"`
	Debounce     float64         `mapstructure:"debounce"`
	Tray         bool            `mapstructure:"tray"`
	Telemetry    TelemetryConfig `mapstructure:"telemetry"`
	Heartbeat    HeartbeatConfig `mapstructure:"heartbeat"`
	MQTT         MQTTConfig      `mapstructure:"mqtt"`
}

type TelemetryConfig struct {
	Capacity int           `mapstructure:"capacity"`
	Wait     time.Duration `mapstructure:"wait"`
	Delay    time.Duration `mapstructure:"delay"`
	Keys     []string      `mapstructure:"keys"`
}

type HeartbeatConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// MQTTConfig enables the broker mirror when Broker is set,
// e.g. "tcp://localhost:1883".
type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":5000")
	v.SetDefault("backend", BackendSDL)
	v.SetDefault("poll_interval", 10*time.Millisecond)
	v.SetDefault("debounce", 0.01)
	v.SetDefault("tray", true)
	v.SetDefault("telemetry.capacity", 5)
	v.SetDefault("telemetry.wait", 200*time.Millisecond)
	v.SetDefault("telemetry.delay", 10*time.Millisecond)
	v.SetDefault("telemetry.keys", []string{"CurrentSpeed", "Occupied"})
	v.SetDefault("heartbeat.timeout", 10*time.Second)
	v.SetDefault("mqtt.client_id", "joybridge")
	v.SetDefault("mqtt.topic_prefix", "joybridge")
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("joybridge", pflag.ContinueOnError)
	fs.StringP("config", "c", "", "Path to a config file (yaml, toml or json)")
	fs.StringP("addr", "a", ":5000", "HTTP listen address")
	fs.String("backend", BackendSDL, "Joystick backend: sdl or joystick")
	fs.Duration("poll-interval", 10*time.Millisecond, "Joystick polling interval")
	fs.Float64("debounce", 0.01, "Minimum change of a control value that is republished")
	fs.Bool("tray", true, "Show the system tray icon (Windows)")
	fs.Int("telemetry-capacity", 5, "Telemetry relay queue capacity")
	fs.StringSlice("telemetry-keys", []string{"CurrentSpeed", "Occupied"}, "Field names that mark an update as telemetry")
	fs.Duration("heartbeat-timeout", 10*time.Second, "Time without heartbeats before the game client counts as disconnected")
	fs.String("mqtt-broker", "", "MQTT broker URL; empty disables the mirror")
	fs.String("mqtt-topic-prefix", "joybridge", "MQTT topic prefix")
	return fs
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"addr":               "addr",
	"backend":            "backend",
	"poll-interval":      "poll_interval",
	"debounce":           "debounce",
	"tray":               "tray",
	"telemetry-capacity": "telemetry.capacity",
	"telemetry-keys":     "telemetry.keys",
	"heartbeat-timeout":  "heartbeat.timeout",
	"mqtt-broker":        "mqtt.broker",
	"mqtt-topic-prefix":  "mqtt.topic_prefix",
}

// Load parses args (without the program name) and returns a validated
// configuration.
func Load(args []string) (*Config, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("JOYBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Millisecond
	}
	if c.Telemetry.Capacity <= 0 {
		c.Telemetry.Capacity = 5
	}
	if c.Telemetry.Wait <= 0 {
		c.Telemetry.Wait = 200 * time.Millisecond
	}
	if c.Heartbeat.Timeout <= 0 {
		c.Heartbeat.Timeout = 10 * time.Second
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	switch c.Backend {
	case BackendSDL, BackendJoystick:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendSDL, BackendJoystick)
	}
	if c.Debounce <= 0 || c.Debounce >= 1 {
		return fmt.Errorf("debounce must be in (0, 1), got %v", c.Debounce)
	}
	if c.Telemetry.Delay < 0 {
		return fmt.Errorf("telemetry.delay must not be negative, got %s", c.Telemetry.Delay)
	}
	if c.MQTT.Broker != "" && c.MQTT.TopicPrefix == "" {
		return errors.New("mqtt.topic_prefix is required when mqtt.broker is set")
	}
	return nil
}

// URL returns the local address of the web interface.
func (c *Config) URL() string {
	host := c.Addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	return "http://" + host
}
