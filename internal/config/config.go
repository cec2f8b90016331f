package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the root configuration for the retrolock server.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Actuator ActuatorConfig `mapstructure:"actuator"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	InfluxDB InfluxDBConfig `mapstructure:"influxdb"`
}

type ServerConfig struct {
	ListenAddress string    `mapstructure:"listen_address"`
	TLS           TLSConfig `mapstructure:"tls"`
}

type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// AuthConfig selects where the shared bearer secret comes from.
// Token takes precedence over TokenFile and is meant for RETROLOCK_AUTH_TOKEN.
type AuthConfig struct {
	TokenFile string `mapstructure:"token_file"`
	Token     string `mapstructure:"token"`
}

type ActuatorConfig struct {
	Driver          string `mapstructure:"driver"` // periph | rpio | sim
	Pin             int    `mapstructure:"pin"`    // BCM numbering
	ActiveLow       bool   `mapstructure:"active_low"`
	PulseDurationMs int    `mapstructure:"pulse_duration_ms"`
	BusyPolicy      string `mapstructure:"busy_policy"` // wait | reject
}

// PulseDuration returns the configured pulse length.
func (a ActuatorConfig) PulseDuration() time.Duration {
	return time.Duration(a.PulseDurationMs) * time.Millisecond
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// DBConfig points at the sqlite event log. An empty path disables it.
type DBConfig struct {
	Path string `mapstructure:"path"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"` // tcp://host:1883 or ssl://host:8883
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	QoS         int    `mapstructure:"qos"`
}

type InfluxDBConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Org     string `mapstructure:"org"`
	Bucket  string `mapstructure:"bucket"`
}

// Supported actuator drivers and busy policies.
const (
	DriverPeriph = "periph"
	DriverRPIO   = "rpio"
	DriverSim    = "sim"

	BusyPolicyWait   = "wait"
	BusyPolicyReject = "reject"
)

// MaxPulseDurationMs keeps a pulse, plus one queued behind it, inside the
// server's shutdown grace period and write timeout.
const MaxPulseDurationMs = 5000

const (
	envPrefix         = "RETROLOCK"
	defaultConfigDir  = "configs"
	defaultConfigName = "config"
)

// FlagKeys maps command line flag names to configuration keys.
var FlagKeys = map[string]string{
	"listen":     "server.listen_address",
	"token-file": "auth.token_file",
	"driver":     "actuator.driver",
	"log-level":  "log.level",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_address", ":5000")
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.cert_file", "")
	v.SetDefault("server.tls.key_file", "")
	v.SetDefault("auth.token_file", "/etc/retrolock/token.txt")
	v.SetDefault("auth.token", "")
	v.SetDefault("actuator.driver", DriverPeriph)
	v.SetDefault("actuator.pin", 17)
	v.SetDefault("actuator.active_low", true)
	v.SetDefault("actuator.pulse_duration_ms", 1000)
	v.SetDefault("actuator.busy_policy", BusyPolicyWait)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("db.path", "retrolock.db")
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.client_id", "retrolock")
	v.SetDefault("mqtt.topic_prefix", "retrolock/door")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("influxdb.enabled", false)
	v.SetDefault("influxdb.url", "")
	v.SetDefault("influxdb.token", "")
	v.SetDefault("influxdb.org", "")
	v.SetDefault("influxdb.bucket", "retrolock")
}

// Load reads configuration from path (or configs/config.yml when empty),
// applies RETROLOCK_* environment overrides and any flags that were set.
// A missing default config file is not an error.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(defaultConfigDir)
		v.SetConfigName(defaultConfigName)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range FlagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", name, err)
		}
	}
	return nil
}

// Validate checks settings that would otherwise fail late at runtime.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Server.ListenAddress) == "" {
		return errors.New("server.listen_address must be set")
	}
	if cfg.Server.TLS.Enabled && (cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "") {
		return errors.New("server.tls requires cert_file and key_file")
	}

	switch cfg.Actuator.Driver {
	case DriverPeriph, DriverRPIO, DriverSim:
	default:
		return fmt.Errorf("unknown actuator.driver %q (want periph, rpio or sim)", cfg.Actuator.Driver)
	}
	if cfg.Actuator.Pin < 0 {
		return fmt.Errorf("actuator.pin must be >= 0, got %d", cfg.Actuator.Pin)
	}
	if cfg.Actuator.PulseDurationMs <= 0 || cfg.Actuator.PulseDurationMs > MaxPulseDurationMs {
		return fmt.Errorf("actuator.pulse_duration_ms must be in 1..%d, got %d",
			MaxPulseDurationMs, cfg.Actuator.PulseDurationMs)
	}
	switch cfg.Actuator.BusyPolicy {
	case BusyPolicyWait, BusyPolicyReject:
	default:
		return fmt.Errorf("unknown actuator.busy_policy %q (want wait or reject)", cfg.Actuator.BusyPolicy)
	}

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return errors.New("mqtt.broker must be set when mqtt is enabled")
		}
		if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS)
		}
	}
	if cfg.InfluxDB.Enabled && (cfg.InfluxDB.URL == "" || cfg.InfluxDB.Org == "" || cfg.InfluxDB.Bucket == "") {
		return errors.New("influxdb requires url, org and bucket when enabled")
	}
	return nil
}
