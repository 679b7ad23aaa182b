package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Logging     struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Redis struct {
		Addr        string        `yaml:"addr" default:"localhost:6379"`
		Password    string        `yaml:"password"`
		DB          int           `yaml:"db" validate:"gte=0"`
		PollTimeout time.Duration `yaml:"poll_timeout" default:"1s" validate:"gt=0"`
	} `yaml:"redis"`
	Buffer struct {
		Capacity  int           `yaml:"capacity" default:"1000" validate:"gt=0"`
		Staleness time.Duration `yaml:"staleness" default:"5m" validate:"gt=0"`
	} `yaml:"buffer"`
	Breaker struct {
		FailureThreshold int           `yaml:"failure_threshold" default:"5" validate:"gt=0"`
		RecoveryTimeout  time.Duration `yaml:"recovery_timeout" default:"30s" validate:"gt=0"`
		HalfOpenMaxCalls int           `yaml:"half_open_max_calls" default:"3" validate:"gt=0"`
	} `yaml:"breaker"`
	Retry struct {
		MaxAttempts int           `yaml:"max_attempts" default:"5" validate:"gt=0"`
		BaseDelay   time.Duration `yaml:"base_delay" default:"1s" validate:"gt=0"`
		MaxDelay    time.Duration `yaml:"max_delay" default:"60s" validate:"gt=0"`
		Jitter      bool          `yaml:"jitter" default:"true"`
	} `yaml:"retry"`
	Aggregator struct {
		Weights struct {
			Sentiment float64 `yaml:"sentiment" default:"0.3" validate:"gt=0"`
			Technical float64 `yaml:"technical" default:"0.5" validate:"gt=0"`
			Regime    float64 `yaml:"regime" default:"0.2" validate:"gt=0"`
		} `yaml:"weights"`
		BuyThreshold  float64 `yaml:"buy_threshold" default:"60"`
		SellThreshold float64 `yaml:"sell_threshold" default:"-60"`
		MaxEvents     int     `yaml:"max_events" default:"10" validate:"gt=0"`
	} `yaml:"aggregator"`
	ClickHouse struct {
		Enabled     bool          `yaml:"enabled"`
		Host        string        `yaml:"host" default:"localhost"`
		Port        int           `yaml:"port" default:"9000"`
		Database    string        `yaml:"database" default:"sigfuse"`
		User        string        `yaml:"user" default:"default"`
		Password    string        `yaml:"password"`
		DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"signals.audit"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`
}

// Load reads and parses a YAML configuration file, applies defaults and
// validates the result. A missing file is an error; misconfiguration aborts
// startup here rather than surfacing as runtime degradation.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// Default returns a config with every field at its default value, for use
// when no config file is given.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SIGFUSE_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("SIGFUSE_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Aggregator.BuyThreshold <= c.Aggregator.SellThreshold {
		return fmt.Errorf("aggregator.buy_threshold (%v) must exceed sell_threshold (%v)",
			c.Aggregator.BuyThreshold, c.Aggregator.SellThreshold)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
