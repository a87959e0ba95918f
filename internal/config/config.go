package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"bondsignal/internal/cache"
	"bondsignal/internal/engine"
	"bondsignal/internal/scanner"
	"bondsignal/pkg/logger"
)

// Environment variables that override the file
const (
	EnvDataDir    = "BONDSIGNAL_DATA_DIR"
	EnvHTTPURL    = "BONDSIGNAL_HTTP_URL"
	EnvReferences = "BONDSIGNAL_REFERENCES"
	EnvRedisAddr  = "BONDSIGNAL_REDIS_ADDR"
	EnvLogLevel   = "BONDSIGNAL_LOG_LEVEL"
)

// Config represents the application configuration
type Config struct {
	Log     logger.Config  `yaml:"log"`
	Data    DataConfig     `yaml:"data"`
	Cache   CacheConfig    `yaml:"cache"`
	Scanner scanner.Config `yaml:"scanner"`
	Server  ServerConfig   `yaml:"server"`
	Engine  engine.Config  `yaml:"engine"`
}

// DataConfig holds bar source and reference settings
type DataConfig struct {
	// Dir holds one <code>.csv file per bond
	Dir string `yaml:"dir" default:"data"`

	// HTTPURL is an optional JSON bar service tried after the CSV directory
	HTTPURL string `yaml:"http_url" validate:"omitempty,url"`

	// RateLimit is in requests per minute; 0 disables pacing
	RateLimit  int           `yaml:"rate_limit" default:"60" validate:"gte=0"`
	Timeout    time.Duration `yaml:"timeout" default:"15s" validate:"gt=0"`
	References string        `yaml:"references" default:"bonds.yaml"`
}

// CacheConfig holds bar cache settings. An empty Redis address selects
// the in-process cache.
type CacheConfig struct {
	TTL     time.Duration     `yaml:"ttl" default:"10m" validate:"gte=0"`
	MaxDays int               `yaml:"max_days" default:"250" validate:"gte=0"`
	Redis   cache.RedisConfig `yaml:"redis"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr         string        `yaml:"addr" default:":8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"60s"`
	MaxBars      int           `yaml:"max_bars" default:"2000" validate:"gt=0"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	cfg := &Config{Engine: engine.DefaultConfig()}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; a .env file in the working directory is read first.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv(EnvHTTPURL); v != "" {
		c.Data.HTTPURL = v
	}
	if v := os.Getenv(EnvReferences); v != "" {
		c.Data.References = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q (%d problems)", verrs[0].Namespace(), verrs[0].Tag(), len(verrs))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
