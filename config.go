package falkorpersist

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds connection and logging settings. It can be loaded from a YAML
// file and overridden from the environment.
type Config struct {
	// URL is a redis:// or rediss:// URL. When set it takes precedence over
	// Addr, Username, Password and DB.
	URL      string `yaml:"url"`
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// Graph is the default graph selected by tools built on this package.
	Graph string `yaml:"graph"`

	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PoolSize     int           `yaml:"pool_size"`

	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns settings for a local server.
func DefaultConfig() Config {
	return Config{
		Addr:        "localhost:6379",
		Graph:       "default",
		DialTimeout: 5 * time.Second,
		LogLevel:    "info",
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig and then applies the
// environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// ApplyEnv overrides fields from FALKORDB_URL, FALKORDB_GRAPH and
// FALKORDB_LOG_LEVEL.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("FALKORDB_URL"); ok && v != "" {
		c.URL = v
	}
	if v, ok := lookup("FALKORDB_GRAPH"); ok && v != "" {
		c.Graph = v
	}
	if v, ok := lookup("FALKORDB_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
}

// RedisOptions converts the configuration to go-redis options. The protocol
// is pinned to RESP2, whose reply shapes the decoder expects.
func (c Config) RedisOptions() (*redis.Options, error) {
	var opts *redis.Options
	if c.URL != "" {
		parsed, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid url: %w", err)
		}
		opts = parsed
	} else {
		if c.Addr == "" {
			return nil, fmt.Errorf("neither url nor addr configured")
		}
		opts = &redis.Options{
			Addr:     c.Addr,
			Username: c.Username,
			Password: c.Password,
			DB:       c.DB,
		}
	}
	opts.Protocol = 2
	if c.DialTimeout > 0 {
		opts.DialTimeout = c.DialTimeout
	}
	if c.ReadTimeout > 0 {
		opts.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		opts.WriteTimeout = c.WriteTimeout
	}
	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	}
	return opts, nil
}

// NewLogger builds a logrus logger at the configured level.
func (c Config) NewLogger() (*logrus.Logger, error) {
	logger := logrus.New()
	level := strings.TrimSpace(c.LogLevel)
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	logger.SetLevel(lvl)
	return logger, nil
}
