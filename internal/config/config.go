// Package config loads service settings from defaults, an optional YAML
// file, and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfigPaths lists where config files are searched, first hit wins.
var defaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/address-correction/config.yaml",
}

// Config holds all service settings.
type Config struct {
	HTTPAddr        string        `koanf:"http_addr"`
	LogLevel        string        `koanf:"log_level"`
	LogFormat       string        `koanf:"log_format"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	Postal  PostalConfig  `koanf:"postal"`
	Geocode GeocodeConfig `koanf:"geocode"`
	Breaker BreakerConfig `koanf:"breaker"`
	Dedup   DedupConfig   `koanf:"dedup"`
	Kafka   KafkaConfig   `koanf:"kafka"`
}

// PostalConfig configures the postal standardization upstream.
type PostalConfig struct {
	BaseURL      string        `koanf:"base_url"`
	TokenURL     string        `koanf:"token_url"`
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	Timeout      time.Duration `koanf:"timeout"`
}

// GeocodeConfig configures the geocoding upstream and its response cache.
type GeocodeConfig struct {
	APIKey        string        `koanf:"api_key"`
	BaseURL       string        `koanf:"base_url"`
	Timeout       time.Duration `koanf:"timeout"`
	CacheCapacity int           `koanf:"cache_capacity"`
	CacheTTL      time.Duration `koanf:"cache_ttl"`
}

// BreakerConfig tunes the per-upstream circuit breakers.
type BreakerConfig struct {
	FailureThreshold uint32        `koanf:"failure_threshold"`
	ResetTimeout     time.Duration `koanf:"reset_timeout"`
	MonitoringPeriod time.Duration `koanf:"monitoring_period"`
	SuccessThreshold uint32        `koanf:"success_threshold"`
}

// DedupConfig tunes the in-flight request deduplicator.
type DedupConfig struct {
	TTL           time.Duration `koanf:"ttl"`
	Grace         time.Duration `koanf:"grace"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// KafkaConfig configures the optional corrected-locations publisher.
type KafkaConfig struct {
	Enabled bool     `koanf:"enabled"`
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

func defaultConfig() *Config {
	return &Config{
		HTTPAddr:        ":8080",
		LogLevel:        "info",
		LogFormat:       "json",
		ShutdownTimeout: 30 * time.Second,
		Postal: PostalConfig{
			Timeout: 10 * time.Second,
		},
		Geocode: GeocodeConfig{
			BaseURL:       "https://maps.googleapis.com/maps/api/geocode/json",
			Timeout:       5 * time.Second,
			CacheCapacity: 1000,
			CacheTTL:      24 * time.Hour,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			MonitoringPeriod: 60 * time.Second,
			SuccessThreshold: 2,
		},
		Dedup: DedupConfig{
			TTL:           30 * time.Second,
			Grace:         2 * time.Second,
			SweepInterval: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled: false,
			Brokers: []string{"localhost:9092"},
			Topic:   "corrected-locations",
		},
	}
}

// Load reads configuration in three layers: struct defaults, then an
// optional YAML file, then ACS_-prefixed environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("ACS_", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// Broker lists arrive from the environment as comma-separated strings.
	if v, ok := k.Get("kafka.brokers").(string); ok {
		parts := strings.Split(v, ",")
		brokers := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				brokers = append(brokers, p)
			}
		}
		if err := k.Set("kafka.brokers", brokers); err != nil {
			return nil, fmt.Errorf("parse kafka brokers: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Postal.BaseURL == "" {
		return errors.New("postal.base_url is required")
	}
	if c.Postal.TokenURL == "" {
		return errors.New("postal.token_url is required")
	}
	if c.Postal.ClientID == "" || c.Postal.ClientSecret == "" {
		return errors.New("postal.client_id and postal.client_secret are required")
	}
	if c.Geocode.APIKey == "" {
		return errors.New("geocode.api_key is required")
	}
	if c.Geocode.CacheCapacity <= 0 {
		return errors.New("geocode.cache_capacity must be positive")
	}
	if c.Geocode.CacheTTL <= 0 {
		return errors.New("geocode.cache_ttl must be positive")
	}
	if c.Postal.Timeout <= 0 || c.Geocode.Timeout <= 0 {
		return errors.New("upstream timeouts must be positive")
	}
	if c.Breaker.FailureThreshold == 0 || c.Breaker.SuccessThreshold == 0 {
		return errors.New("breaker thresholds must be positive")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka.brokers is required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return errors.New("kafka.topic is required when kafka is enabled")
		}
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range defaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// configSections are the env-var prefixes that map to nested config blocks:
// ACS_POSTAL_CLIENT_ID becomes postal.client_id, ACS_HTTP_ADDR stays flat.
var configSections = []string{"postal", "geocode", "breaker", "dedup", "kafka"}

func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "ACS_"))
	for _, section := range configSections {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok {
			return section + "." + rest
		}
	}
	return key
}
