package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Address)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)
	assert.Equal(t, "N", cfg.Serial.Parity)
	assert.Equal(t, time.Second, cfg.Serial.Timeout)
	assert.Equal(t, uint8(1), cfg.Inverter.Address)
	assert.True(t, cfg.Inverter.Register)
	assert.Equal(t, 10*time.Second, cfg.Poll.Interval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.Enable)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "jfy.yaml", `
serial:
  address: /dev/ttyS1
  timeout: 2s
inverter:
  address: 3
  register: false
poll:
  interval: 30s
  count: 5
logging:
  level: debug
  format: json
metrics:
  enable: true
  addr: ":9200"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyS1", cfg.Serial.Address)
	assert.Equal(t, 2*time.Second, cfg.Serial.Timeout)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)
	assert.Equal(t, uint8(3), cfg.Inverter.Address)
	assert.False(t, cfg.Inverter.Register)
	assert.Equal(t, 30*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 5, cfg.Poll.Count)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enable)
	assert.Equal(t, ":9200", cfg.Metrics.Addr)
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "jfy.toml", `
[serial]
address = "COM3"
baudRate = 19200
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "COM3", cfg.Serial.Address)
	assert.Equal(t, 19200, cfg.Serial.BaudRate)
}

func TestLoad_Env(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("JFY_SERIAL_ADDRESS", "/dev/ttyAMA0")
	t.Setenv("JFY_POLL_INTERVAL", "3s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyAMA0", cfg.Serial.Address)
	assert.Equal(t, 3*time.Second, cfg.Poll.Interval)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"broadcast address", "inverter:\n  address: 0\n"},
		{"zero interval", "poll:\n  interval: 0s\n"},
		{"malformed", "serial: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "jfy.yaml", tt.body))
			assert.Error(t, err)
		})
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
