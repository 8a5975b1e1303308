// Package config holds the options shared by the binaries. Defaults come
// from RTSERIAL_* environment variables, then command line flags, then an
// optional YAML file which overrides the fields it names.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/rtserial/pkg/realtime"
	"github.com/robotalks/rtserial/pkg/serial"
)

// Wire modes.
const (
	WireSim       = "sim"
	WireSerial    = "serial"
	WireWebsocket = "websocket"
)

// Config is the complete configuration.
type Config struct {
	RxBufferSize int  `yaml:"rx_buffer_size"`
	TxBufferSize int  `yaml:"tx_buffer_size"`
	DebugReport  bool `yaml:"debug_report"`
	Mist         bool `yaml:"mist"`
	// LoopIntervalMs is the main loop period when no byte wakes it up.
	LoopIntervalMs int `yaml:"loop_interval_ms"`

	Wire      WireConfig      `yaml:"wire"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// WireConfig selects where the host is.
type WireConfig struct {
	// Mode is one of WireSim, WireSerial, WireWebsocket.
	Mode   string `yaml:"mode"`
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
	// Listen is the websocket listen address.
	Listen string `yaml:"listen"`
}

// TelemetryConfig configures the MQTT bridge. It is disabled when
// BrokerURL is empty.
type TelemetryConfig struct {
	// BrokerURL is like mqtt://host:port/topic-prefix/
	BrokerURL  string `yaml:"broker_url"`
	DeviceID   string `yaml:"device_id"`
	IntervalMs int    `yaml:"interval_ms"`
}

// ValidationError reports an invalid field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

var defaultConfig = Config{
	RxBufferSize:   serial.DefaultRxBufferSize,
	TxBufferSize:   serial.DefaultTxBufferSize,
	LoopIntervalMs: 10,
	Wire: WireConfig{
		Mode:   WireSim,
		Baud:   115200,
		Listen: ":8080",
	},
	Telemetry: TelemetryConfig{
		IntervalMs: 200,
	},
}

func init() {
	if val := os.Getenv("RTSERIAL_WIRE"); val != "" {
		defaultConfig.Wire.Mode = val
	}
	if val := os.Getenv("RTSERIAL_DEVICE"); val != "" {
		defaultConfig.Wire.Device = val
	}
	if val, err := strconv.Atoi(os.Getenv("RTSERIAL_BAUD")); err == nil {
		defaultConfig.Wire.Baud = val
	}
	if val := os.Getenv("RTSERIAL_LISTEN"); val != "" {
		defaultConfig.Wire.Listen = val
	}
	if val := os.Getenv("RTSERIAL_MQTT_URL"); val != "" {
		defaultConfig.Telemetry.BrokerURL = val
	}
	if val := os.Getenv("RTSERIAL_DEVICE_ID"); val != "" {
		defaultConfig.Telemetry.DeviceID = val
	}
}

// SetupFlags sets up command line flags on the default config.
func SetupFlags() {
	flag.IntVar(&defaultConfig.RxBufferSize, "rx-buffer", defaultConfig.RxBufferSize, "RX buffer size.")
	flag.IntVar(&defaultConfig.TxBufferSize, "tx-buffer", defaultConfig.TxBufferSize, "TX buffer size.")
	flag.BoolVar(&defaultConfig.DebugReport, "debug-report", defaultConfig.DebugReport, "Enable debug report command.")
	flag.BoolVar(&defaultConfig.Mist, "mist", defaultConfig.Mist, "Enable mist coolant command.")
	flag.IntVar(&defaultConfig.LoopIntervalMs, "loop-interval", defaultConfig.LoopIntervalMs, "Main loop interval in ms.")
	flag.StringVar(&defaultConfig.Wire.Mode, "wire", defaultConfig.Wire.Mode, "Wire mode: sim, serial or websocket.")
	flag.StringVar(&defaultConfig.Wire.Device, "device", defaultConfig.Wire.Device, "Serial device path.")
	flag.IntVar(&defaultConfig.Wire.Baud, "baud", defaultConfig.Wire.Baud, "Serial baud rate.")
	flag.StringVar(&defaultConfig.Wire.Listen, "listen", defaultConfig.Wire.Listen, "Websocket listen address.")
	flag.StringVar(&defaultConfig.Telemetry.BrokerURL, "mqtt", defaultConfig.Telemetry.BrokerURL, "MQTT broker URL, empty to disable telemetry.")
	flag.StringVar(&defaultConfig.Telemetry.DeviceID, "device-id", defaultConfig.Telemetry.DeviceID, "Telemetry device ID, machine ID if empty.")
	flag.IntVar(&defaultConfig.Telemetry.IntervalMs, "telemetry-interval", defaultConfig.Telemetry.IntervalMs, "Telemetry interval in ms.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Load reads a YAML file on top of the default configuration.
func Load(path string) (*Config, error) {
	conf := NewConfig()
	if path == "" {
		return conf, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return conf, nil
}

// Validate checks the configuration without changing it.
func (c *Config) Validate() error {
	const maxBuffer = 1 << 16
	if c.RxBufferSize <= 0 || c.RxBufferSize > maxBuffer {
		return &ValidationError{Field: "rx_buffer_size", Reason: "must be in 1..65536"}
	}
	if c.TxBufferSize <= 0 || c.TxBufferSize > maxBuffer {
		return &ValidationError{Field: "tx_buffer_size", Reason: "must be in 1..65536"}
	}
	if c.LoopIntervalMs <= 0 {
		return &ValidationError{Field: "loop_interval_ms", Reason: "must be positive"}
	}
	switch c.Wire.Mode {
	case WireSim:
	case WireSerial:
		if c.Wire.Device == "" {
			return &ValidationError{Field: "wire.device", Reason: "required in serial mode"}
		}
		if c.Wire.Baud <= 0 {
			return &ValidationError{Field: "wire.baud", Reason: "must be positive"}
		}
	case WireWebsocket:
		if c.Wire.Listen == "" {
			return &ValidationError{Field: "wire.listen", Reason: "required in websocket mode"}
		}
	default:
		return &ValidationError{Field: "wire.mode", Reason: fmt.Sprintf("unknown mode %q", c.Wire.Mode)}
	}
	if c.Telemetry.BrokerURL != "" && c.Telemetry.IntervalMs <= 0 {
		return &ValidationError{Field: "telemetry.interval_ms", Reason: "must be positive"}
	}
	return nil
}

// Classifier returns the real-time command set enabled by the config.
func (c *Config) Classifier() realtime.Classifier {
	return realtime.Classifier{DebugReport: c.DebugReport, Mist: c.Mist}
}

// LoopInterval returns the main loop period.
func (c *Config) LoopInterval() time.Duration {
	return time.Duration(c.LoopIntervalMs) * time.Millisecond
}

// TelemetryInterval returns the telemetry publishing period.
func (c *Config) TelemetryInterval() time.Duration {
	return time.Duration(c.Telemetry.IntervalMs) * time.Millisecond
}

// DeviceID returns the telemetry device ID, falling back to the machine ID.
func (c *Config) DeviceID() (string, error) {
	if c.Telemetry.DeviceID != "" {
		return c.Telemetry.DeviceID, nil
	}
	id, err := machineid.ProtectedID("rtserial")
	if err != nil {
		return "", fmt.Errorf("machine id: %w", err)
	}
	return id, nil
}
