package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SerialConfig describes the serial line the inverters hang off.
type SerialConfig struct {
	Address     string        `mapstructure:"address"`
	BaudRate    int           `mapstructure:"baudRate"`
	DataBits    int           `mapstructure:"dataBits"`
	StopBits    int           `mapstructure:"stopBits"`
	Parity      string        `mapstructure:"parity"`
	Timeout     time.Duration `mapstructure:"timeout"`
	IdleTimeout time.Duration `mapstructure:"idleTimeout"`
}

// InverterConfig holds the address to register the inverter on.
type InverterConfig struct {
	Address  uint8 `mapstructure:"address"`
	Register bool  `mapstructure:"register"`
}

// PollConfig controls telemetry polling.
type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Count    int           `mapstructure:"count"`
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Addr   string `mapstructure:"addr"`
	Path   string `mapstructure:"path"`
}

// Config 顶层配置结构
type Config struct {
	Serial   SerialConfig   `mapstructure:"serial"`
	Inverter InverterConfig `mapstructure:"inverter"`
	Poll     PollConfig     `mapstructure:"poll"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// Load reads configuration from a YAML/TOML/JSON file and JFY_ environment
// variables. An empty path falls back to JFY_CONFIG, then ./jfy.yaml or
// ./configs/jfy.yaml; a missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("JFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("config")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("jfy")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.address", "/dev/ttyUSB0")
	v.SetDefault("serial.baudRate", 9600)
	v.SetDefault("serial.dataBits", 8)
	v.SetDefault("serial.stopBits", 1)
	v.SetDefault("serial.parity", "N")
	v.SetDefault("serial.timeout", time.Second)
	v.SetDefault("serial.idleTimeout", time.Minute)

	v.SetDefault("inverter.address", 1)
	v.SetDefault("inverter.register", true)

	v.SetDefault("poll.interval", 10*time.Second)
	v.SetDefault("poll.count", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.maxSize", 10)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 7)

	v.SetDefault("metrics.enable", false)
	v.SetDefault("metrics.addr", ":9100")
	v.SetDefault("metrics.path", "/metrics")
}

func (c *Config) validate() error {
	if c.Serial.Address == "" {
		return errors.New("config: serial.address is required")
	}
	if c.Inverter.Address == 0 {
		return errors.New("config: inverter.address 0 is reserved for broadcast")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("config: poll.interval must be positive, got %v", c.Poll.Interval)
	}
	return nil
}
