package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Language   string           `yaml:"language"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type MQTTConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// TopicIn is the subscription pattern for inbound classification
	// requests; individual messages must match yaic/input/{id}/image.
	TopicIn     string `yaml:"topic_in"`
	TopicOut    string `yaml:"topic_out"`
	TopicStatus string `yaml:"topic_status"`
	TopicLog    string `yaml:"topic_log"`
}

type ClassifierConfig struct {
	APIKey     string        `yaml:"api_key"`
	Endpoint   string        `yaml:"endpoint"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from an optional YAML file, applies environment
// variable overrides, fills defaults and validates. An empty path means
// environment-only configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast with one itemized list of missing required values,
// named by their environment variable.
func (c *Config) Validate() error {
	var missing []string
	require := func(value, name string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	require(c.MQTT.Host, "MQTT_HOST")
	require(c.MQTT.TopicIn, "MQTT_TOPIC_IN")
	require(c.MQTT.TopicOut, "MQTT_TOPIC_OUT")
	require(c.MQTT.TopicStatus, "MQTT_TOPIC_STATUS")
	require(c.MQTT.TopicLog, "MQTT_TOPIC_LOG")
	require(c.Classifier.APIKey, "QWEN_API_KEY")
	require(c.Classifier.Endpoint, "QWEN_ENDPOINT")
	require(c.Language, "YAIC_LANGUAGE")

	if len(missing) > 0 {
		return fmt.Errorf("missing required config values: %s", strings.Join(missing, ", "))
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.MQTT.Port == 0 {
		cfg.MQTT.Port = 1883
	}
	if cfg.Classifier.Model == "" {
		cfg.Classifier.Model = "qwen-vl-plus"
	}
	if cfg.Classifier.Timeout == 0 {
		cfg.Classifier.Timeout = 30 * time.Second
	}
	if cfg.Classifier.MaxRetries == 0 {
		cfg.Classifier.MaxRetries = 3
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MQTT_HOST"); v != "" {
		cfg.MQTT.Host = v
	}
	if v := os.Getenv("MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Port = port
		}
	}
	if v := os.Getenv("MQTT_TOPIC_IN"); v != "" {
		cfg.MQTT.TopicIn = v
	}
	if v := os.Getenv("MQTT_TOPIC_OUT"); v != "" {
		cfg.MQTT.TopicOut = v
	}
	if v := os.Getenv("MQTT_TOPIC_STATUS"); v != "" {
		cfg.MQTT.TopicStatus = v
	}
	if v := os.Getenv("MQTT_TOPIC_LOG"); v != "" {
		cfg.MQTT.TopicLog = v
	}
	if v := os.Getenv("QWEN_API_KEY"); v != "" {
		cfg.Classifier.APIKey = v
	}
	if v := os.Getenv("QWEN_ENDPOINT"); v != "" {
		cfg.Classifier.Endpoint = v
	}
	if v := os.Getenv("QWEN_MODEL"); v != "" {
		cfg.Classifier.Model = v
	}
	if v := os.Getenv("YAIC_LANGUAGE"); v != "" {
		cfg.Language = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("YAIC_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("YAIC_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
}
