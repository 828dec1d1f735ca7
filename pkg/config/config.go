package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // json or console
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Hub struct {
		WatchlistSymbols []string      `yaml:"watchlist_symbols"`
		IndexTickers     []string      `yaml:"index_tickers"`
		RefreshInterval  time.Duration `yaml:"refresh_interval"`
		WSEnabled        *bool         `yaml:"ws_enabled"` // nil means true
		BatchWindow      time.Duration `yaml:"batch_window"`
	} `yaml:"hub"`
	Quality struct {
		GoodAge       time.Duration `yaml:"good_age"`
		FairAge       time.Duration `yaml:"fair_age"`
		AcceptableAge time.Duration `yaml:"acceptable_age"`
		MinConfidence float64       `yaml:"min_confidence"`
	} `yaml:"quality"`
	Tradier struct {
		APIKey         string        `yaml:"api_key"`
		BaseURL        string        `yaml:"base_url"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Timeout        time.Duration `yaml:"timeout"`
		MaxRetries     int           `yaml:"max_retries"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"tradier"`
	MarketFeed struct {
		APIKey     string        `yaml:"api_key"`
		BaseURL    string        `yaml:"base_url"`
		Timeout    time.Duration `yaml:"timeout"`
		MaxRetries int           `yaml:"max_retries"`
	} `yaml:"marketfeed"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		RequiredAcks int           `yaml:"required_acks"`
		Compression  string        `yaml:"compression"`
		MaxAttempts  int           `yaml:"max_attempts"`
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		Async        bool          `yaml:"async"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Database     string        `yaml:"database"`
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML, overrides with environment
// variables, then validates.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("TRADIER_API_KEY"); v != "" {
		c.Tradier.APIKey = v
	}
	if v := os.Getenv("MARKETFEED_API_KEY"); v != "" {
		c.MarketFeed.APIKey = v
	}
	if v := os.Getenv("WATCHLIST"); v != "" {
		c.Hub.WatchlistSymbols = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	return &c, nil
}

// WSEnabled resolves the tri-state flag; push is on unless disabled.
func (c *Config) WSEnabled() bool {
	return c.Hub.WSEnabled == nil || *c.Hub.WSEnabled
}

func (c *Config) applyDefaults() {
	if len(c.Hub.IndexTickers) == 0 {
		c.Hub.IndexTickers = []string{"SPX", "NDX", "DJI"}
	}
	if c.Hub.RefreshInterval <= 0 {
		c.Hub.RefreshInterval = 5 * time.Second
	}
	if c.Hub.BatchWindow <= 0 {
		c.Hub.BatchWindow = 100 * time.Millisecond
	}
	if c.Tradier.Timeout <= 0 {
		c.Tradier.Timeout = 10 * time.Second
	}
	if c.Tradier.MaxRetries <= 0 {
		c.Tradier.MaxRetries = 3
	}
	if c.MarketFeed.Timeout <= 0 {
		c.MarketFeed.Timeout = 10 * time.Second
	}
	if c.MarketFeed.MaxRetries <= 0 {
		c.MarketFeed.MaxRetries = 3
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Hub.WatchlistSymbols) == 0 {
		return fmt.Errorf("hub.watchlist_symbols cannot be empty")
	}
	if c.Tradier.APIKey == "" {
		return fmt.Errorf("tradier.api_key is required")
	}
	if c.Tradier.BaseURL == "" {
		return fmt.Errorf("tradier.base_url is required")
	}
	if c.MarketFeed.BaseURL == "" {
		return fmt.Errorf("marketfeed.base_url is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host required when clickhouse is enabled")
	}
	return nil
}
