package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rtserial/pkg/realtime"
)

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "rtserial.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	conf, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default().RxBufferSize, conf.RxBufferSize)
	require.NoError(t, conf.Validate())
	conf.RxBufferSize = 1
	require.NotEqual(t, 1, Default().RxBufferSize)
}

func TestLoadFileOverridesNamedFields(t *testing.T) {
	path := writeFile(t, `
rx_buffer_size: 256
mist: true
wire:
  mode: serial
  device: /dev/ttyUSB0
telemetry:
  broker_url: mqtt://localhost:1883/cnc/
  device_id: bench
`)
	conf, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 256, conf.RxBufferSize)
	require.Equal(t, Default().TxBufferSize, conf.TxBufferSize)
	require.Equal(t, WireSerial, conf.Wire.Mode)
	require.Equal(t, Default().Wire.Baud, conf.Wire.Baud)
	require.Equal(t, realtime.Classifier{Mist: true}, conf.Classifier())
	require.NoError(t, conf.Validate())

	id, err := conf.DeviceID()
	require.NoError(t, err)
	require.Equal(t, "bench", id)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	_, err = Load(writeFile(t, "wire: [1, 2"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		field  string
		modify func(*Config)
	}{
		{"rx_buffer_size", func(c *Config) { c.RxBufferSize = 0 }},
		{"tx_buffer_size", func(c *Config) { c.TxBufferSize = 1 << 20 }},
		{"loop_interval_ms", func(c *Config) { c.LoopIntervalMs = 0 }},
		{"wire.device", func(c *Config) { c.Wire.Mode, c.Wire.Device = WireSerial, "" }},
		{"wire.listen", func(c *Config) { c.Wire.Mode, c.Wire.Listen = WireWebsocket, "" }},
		{"wire.mode", func(c *Config) { c.Wire.Mode = "tcp" }},
		{"telemetry.interval_ms", func(c *Config) {
			c.Telemetry.BrokerURL, c.Telemetry.IntervalMs = "mqtt://localhost/", 0
		}},
	}
	for _, c := range cases {
		t.Run(c.field, func(t *testing.T) {
			conf := NewConfig()
			conf.Wire.Mode = WireSim
			c.modify(conf)
			var verr *ValidationError
			require.True(t, errors.As(conf.Validate(), &verr))
			require.Equal(t, c.field, verr.Field)
		})
	}
}
