package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "AGRISMART"

// Config is the typed view of configs/config.yml plus AGRISMART_* overrides.
type Config struct {
	Port     string
	LogLevel  string
	LogFormat string
	DBPath    string

	Device    DeviceConfig
	Camera    CameraConfig
	Link      LinkConfig
	Health    HealthConfig
	MQTT      MQTTConfig
	Recorder  RecorderConfig
	Retention RetentionConfig
}

type DeviceConfig struct {
	Host     string
	WSPort   int
	HTTPPort int
	Zones    int

	// SensorInterval is the default reporting interval in seconds.
	SensorInterval int
}

type CameraConfig struct {
	Host     string
	HTTPPort int
}

// LinkConfig holds the reconnect, polling and debounce knobs.
type LinkConfig struct {
	MaxAttempts      int
	BackoffStep      time.Duration
	BackoffMax       time.Duration
	HandshakeTimeout time.Duration
	PollInterval     time.Duration
	PollMaxRetries   int
	RecoveryDelay    time.Duration
	RecoveryRetry    time.Duration
	Debounce         time.Duration
}

type HealthConfig struct {
	StaleAfter time.Duration
}

// MQTTConfig enables the state bridge when Broker is set.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	DeviceName  string
}

// Enabled reports whether a broker is configured.
func (m MQTTConfig) Enabled() bool { return m.Broker != "" }

type RecorderConfig struct {
	Interval time.Duration
}

type RetentionConfig struct {
	Days     int
	Schedule string
}

// SetDefaults registers the built-in values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("db.path", "agrismart.db")

	v.SetDefault("device.host", "192.168.1.11")
	v.SetDefault("device.ws_port", 81)
	v.SetDefault("device.http_port", 80)
	v.SetDefault("device.zones", 2)
	v.SetDefault("device.sensor_interval", 5)

	v.SetDefault("camera.host", "192.168.1.93")
	v.SetDefault("camera.http_port", 80)

	v.SetDefault("link.max_attempts", 5)
	v.SetDefault("link.backoff_step", "5s")
	v.SetDefault("link.backoff_max", "30s")
	v.SetDefault("link.handshake_timeout", "5s")
	v.SetDefault("link.poll_interval", "10s")
	v.SetDefault("link.poll_max_retries", 3)
	v.SetDefault("link.recovery_delay", "30s")
	v.SetDefault("link.recovery_retry", "15s")
	v.SetDefault("link.debounce", "300ms")

	v.SetDefault("health.stale_after", "30s")

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "agrismart-link")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", "agrismart")
	v.SetDefault("mqtt.device_name", "field-1")

	v.SetDefault("recorder.interval", "1m")

	v.SetDefault("retention.days", 30)
	v.SetDefault("retention.schedule", "@daily")
}

// Load reads .env (if present), then configs/config.yml from the given
// search paths. A missing config file is not an error; defaults and
// environment variables still apply.
func Load(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	SetDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	if len(paths) == 0 {
		paths = []string{"configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:      v.GetString("port"),
		LogLevel:  v.GetString("log.level"),
		LogFormat: strings.ToLower(strings.TrimSpace(v.GetString("log.format"))),
		DBPath:    v.GetString("db.path"),
		Device: DeviceConfig{
			Host:           v.GetString("device.host"),
			WSPort:         v.GetInt("device.ws_port"),
			HTTPPort:       v.GetInt("device.http_port"),
			Zones:          v.GetInt("device.zones"),
			SensorInterval: v.GetInt("device.sensor_interval"),
		},
		Camera: CameraConfig{
			Host:     v.GetString("camera.host"),
			HTTPPort: v.GetInt("camera.http_port"),
		},
		Link: LinkConfig{
			MaxAttempts:      v.GetInt("link.max_attempts"),
			BackoffStep:      v.GetDuration("link.backoff_step"),
			BackoffMax:       v.GetDuration("link.backoff_max"),
			HandshakeTimeout: v.GetDuration("link.handshake_timeout"),
			PollInterval:     v.GetDuration("link.poll_interval"),
			PollMaxRetries:   v.GetInt("link.poll_max_retries"),
			RecoveryDelay:    v.GetDuration("link.recovery_delay"),
			RecoveryRetry:    v.GetDuration("link.recovery_retry"),
			Debounce:         v.GetDuration("link.debounce"),
		},
		Health: HealthConfig{StaleAfter: v.GetDuration("health.stale_after")},
		MQTT: MQTTConfig{
			Broker:      v.GetString("mqtt.broker"),
			ClientID:    v.GetString("mqtt.client_id"),
			Username:    v.GetString("mqtt.username"),
			Password:    v.GetString("mqtt.password"),
			TopicPrefix: v.GetString("mqtt.topic_prefix"),
			DeviceName:  v.GetString("mqtt.device_name"),
		},
		Recorder: RecorderConfig{Interval: v.GetDuration("recorder.interval")},
		Retention: RetentionConfig{
			Days:     v.GetInt("retention.days"),
			Schedule: v.GetString("retention.schedule"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the link cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Device.WSPort <= 0 || c.Device.WSPort > 65535:
		return fmt.Errorf("device.ws_port out of range: %d", c.Device.WSPort)
	case c.Device.SensorInterval < 1:
		return fmt.Errorf("device.sensor_interval must be at least 1, got %d", c.Device.SensorInterval)
	case c.Device.Zones < 1:
		return fmt.Errorf("device.zones must be at least 1, got %d", c.Device.Zones)
	case c.Link.MaxAttempts < 1:
		return fmt.Errorf("link.max_attempts must be at least 1, got %d", c.Link.MaxAttempts)
	case c.Link.PollMaxRetries < 1:
		return fmt.Errorf("link.poll_max_retries must be at least 1, got %d", c.Link.PollMaxRetries)
	case c.Link.BackoffStep <= 0 || c.Link.BackoffMax < c.Link.BackoffStep:
		return fmt.Errorf("link backoff invalid: step=%s max=%s", c.Link.BackoffStep, c.Link.BackoffMax)
	case c.LogFormat != "console" && c.LogFormat != "json":
		return fmt.Errorf("log.format must be console or json, got %q", c.LogFormat)
	case c.Retention.Days < 0:
		return fmt.Errorf("retention.days must not be negative, got %d", c.Retention.Days)
	}
	return nil
}
