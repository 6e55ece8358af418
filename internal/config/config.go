package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	DefaultAPIURL         = "http://api-service:3000"
	DefaultEnvironment    = "prod"
	DefaultLogLevel       = "info"
	DefaultLogType        = "default"
	DefaultRedisDB        = 0
	DefaultLockKey        = "producer:run-lock"
	DefaultLockTTLSeconds = 300
)

// Config is read once from the environment at process start and passed down explicitly.
// Only the delivery settings are hard requirements. A bad logging or lock setting
// falls back to its default and is reported in Warnings.
type Config struct {
	APIURL            string `env:"API_URL,default=http://api-service:3000" validate:"required"`
	GithubToken       string `env:"GITHUB_TOKEN"`
	Environment       string `env:"ENVIRONMENT,default=prod" validate:"required"`
	MaxRetries        int    `env:"MAX_RETRIES,default=3" validate:"min=1"`
	RetryDelaySeconds int    `env:"RETRY_DELAY_SECONDS,default=30" validate:"min=0"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
	LogType  string `env:"LOG_TYPE,default=default"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDBValue  string `env:"REDIS_DB"`
	LockKey       string `env:"LOCK_KEY,default=producer:run-lock"`
	LockTTLValue  string `env:"LOCK_TTL_SECONDS"`

	SinkAddr string `env:"SINK_ADDR,default=:3000"`

	RedisDB        int
	LockTTLSeconds int
	Warnings       []string
}

// Load reads an optional .env file, then the process environment, and validates the result.
// Variables already present in the environment are never overridden by the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, errors.Wrap(err, "failed to read .env file")
	}
	return FromEnviron()
}

// FromEnviron builds a Config from the current process environment only.
func FromEnviron() (Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse environment")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Environment == "" {
		cfg.Environment = DefaultEnvironment
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) warnf(format string, args ...interface{}) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func (c *Config) normalize() {
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "error", "fatal":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.warnf("LOG_LEVEL %q is not a known level, using %q", c.LogLevel, DefaultLogLevel)
		c.LogLevel = DefaultLogLevel
	}

	switch strings.ToLower(c.LogType) {
	case "default", "json":
		c.LogType = strings.ToLower(c.LogType)
	default:
		c.warnf("LOG_TYPE %q is not one of default, json; using %q", c.LogType, DefaultLogType)
		c.LogType = DefaultLogType
	}

	c.RedisDB = DefaultRedisDB
	if c.RedisDBValue != "" {
		db, err := strconv.Atoi(c.RedisDBValue)
		if err != nil || db < 0 {
			c.warnf("REDIS_DB %q is not a database number, using %d", c.RedisDBValue, DefaultRedisDB)
		} else {
			c.RedisDB = db
		}
	}

	c.LockTTLSeconds = DefaultLockTTLSeconds
	if c.LockTTLValue != "" {
		ttl, err := strconv.Atoi(c.LockTTLValue)
		if err != nil || ttl < 1 {
			c.warnf("LOCK_TTL_SECONDS %q is not a positive number, using %d", c.LockTTLValue, DefaultLockTTLSeconds)
		} else {
			c.LockTTLSeconds = ttl
		}
	}

	if c.LockKey == "" {
		c.LockKey = DefaultLockKey
	}
}

var validate = validator.New()

// Validate checks the settings delivery cannot run without.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

func (c Config) Endpoint() string {
	return c.APIURL + "/api/messages"
}

func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

func (c Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

func (c Config) LockEnabled() bool {
	return c.RedisAddr != ""
}

// MarshalZerologObject logs the configuration without secrets.
func (c Config) MarshalZerologObject(e *zerolog.Event) {
	e.Str("api_url", c.APIURL).
		Str("environment", c.Environment).
		Bool("github_token_set", c.GithubToken != "").
		Int("max_retries", c.MaxRetries).
		Str("retry_delay", c.RetryDelay().String()).
		Bool("run_lock", c.LockEnabled())
}
