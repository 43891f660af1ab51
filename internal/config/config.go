package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// RedisConfig Redis stream mirror settings. An empty Addr disables the mirror.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

// Enabled reports whether a Redis address was configured.
func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// MQTTConfig MQTT broker settings
type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	QoS         byte
	TopicPrefix string
}

// IPMIConfig ipmi-sensors invocation settings
type IPMIConfig struct {
	Command  string
	Host     string
	User     string
	Password string
	Timeout  time.Duration
}

// Config ipmi2mqtt service configuration
type Config struct {
	IPMI  IPMIConfig
	MQTT  MQTTConfig
	Redis RedisConfig

	Cache struct {
		TTL  time.Duration // CACHE_TIME, seconds
		Size int
	}

	// UpdateInterval is the period between scheduled cycles.
	UpdateInterval time.Duration

	HTTP struct {
		Addr string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads the configuration from environment variables, falling back to defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.IPMI.Command = getEnv("IPMI_COMMAND", "ipmi-sensors")
	cfg.IPMI.Host = getEnv("IPMI_HOST", "127.0.0.1")
	cfg.IPMI.User = getEnv("IPMI_USER", "")
	cfg.IPMI.Password = getEnv("IPMI_PASS", "")
	cfg.IPMI.Timeout = getEnvSeconds("IPMI_TIMEOUT", 5)

	cfg.Cache.TTL = getEnvSeconds("CACHE_TIME", 300)
	cfg.Cache.Size = getEnvInt("CACHE_SIZE", 256)

	cfg.UpdateInterval = getEnvSeconds("UPDATE_INTERVAL", 60)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "ipmi2mqtt")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	qos := getEnvInt("MQTT_QOS", 1)
	if qos < 0 || qos > 2 {
		return nil, fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", qos)
	}
	cfg.MQTT.QoS = byte(qos)
	cfg.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", "ipmi2mqtt")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)
	cfg.Redis.Stream = getEnv("REDIS_STREAM", "ipmi2mqtt:sensors")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values Load cannot repair with a default.
func (c *Config) Validate() error {
	var errs []error
	if c.IPMI.Command == "" {
		errs = append(errs, errors.New("IPMI_COMMAND must not be empty"))
	}
	if c.IPMI.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("IPMI_TIMEOUT must be positive, got %s", c.IPMI.Timeout))
	}
	if c.UpdateInterval <= 0 {
		errs = append(errs, fmt.Errorf("UPDATE_INTERVAL must be positive, got %s", c.UpdateInterval))
	}
	if c.Cache.Size <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_SIZE must be positive, got %d", c.Cache.Size))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("CACHE_TIME must not be negative, got %s", c.Cache.TTL))
	}
	if c.MQTT.Broker == "" {
		errs = append(errs, errors.New("MQTT_BROKER must not be empty"))
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt falls back to the default when the variable is unset or not a number.
func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}
