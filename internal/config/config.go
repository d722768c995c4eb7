package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is constructed once at startup and handed to every component
// constructor. Nothing reads environment state after Load returns.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Store      StoreConfig      `mapstructure:"store"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Sinks      SinksConfig      `mapstructure:"sinks"`
	Sweeper    SweeperConfig    `mapstructure:"sweeper"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type WebhookConfig struct {
	// SignatureKey is the shared secret the platform signs deliveries with.
	SignatureKey string `mapstructure:"signature_key"`
	// RetrySecret guards POST access to the on-demand retry endpoint.
	RetrySecret string `mapstructure:"retry_secret"`
	// MaxConcurrent bounds detached processing goroutines.
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type StoreConfig struct {
	// Backend selects the idempotency store: "redis" or "postgres".
	Backend     string        `mapstructure:"backend"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`
	Retention   time.Duration `mapstructure:"retention"`
}

type EnrichmentConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	AccessToken string        `mapstructure:"access_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type SinkConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SinksConfig struct {
	Analytics SinkConfig `mapstructure:"analytics"`
	CRM       SinkConfig `mapstructure:"crm"`
	Alert     SinkConfig `mapstructure:"alert"`
	Log       SinkConfig `mapstructure:"log"`
	// AlertThreshold is the order/payment value in major currency units
	// above which the alert sink fires.
	AlertThreshold float64 `mapstructure:"alert_threshold"`
}

type SweeperConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional YAML file with environment
// overrides under the HOOKRELAY_ prefix.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8085)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "120s")

	v.SetDefault("webhook.max_concurrent", 256)

	v.SetDefault("redis.url", "redis://localhost:6379")

	v.SetDefault("store.backend", "redis")
	v.SetDefault("store.retention", "24h")

	v.SetDefault("enrichment.enabled", true)
	v.SetDefault("enrichment.base_url", "https://connect.commerce-platform.com")
	v.SetDefault("enrichment.timeout", "5s")

	v.SetDefault("sinks.analytics.enabled", false)
	v.SetDefault("sinks.analytics.timeout", "8s")
	v.SetDefault("sinks.crm.enabled", false)
	v.SetDefault("sinks.crm.timeout", "5s")
	v.SetDefault("sinks.alert.enabled", false)
	v.SetDefault("sinks.alert.timeout", "5s")
	v.SetDefault("sinks.log.enabled", true)
	v.SetDefault("sinks.log.timeout", "3s")
	v.SetDefault("sinks.alert_threshold", 100.0)

	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.interval", "2h")
	v.SetDefault("sweeper.max_retries", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/hookrelay")
	}

	v.SetEnvPrefix("HOOKRELAY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
