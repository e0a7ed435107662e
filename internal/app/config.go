package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the security core.
type Config struct {
	AppEnv    string `envconfig:"APP_ENV" default:"development"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	SessionTTL       time.Duration `envconfig:"SESSION_TTL" default:"8h"`
	LockoutThreshold int           `envconfig:"LOCKOUT_THRESHOLD" default:"5"`
	LockoutWindow    time.Duration `envconfig:"LOCKOUT_WINDOW" default:"1h"`
	KDFIterations    int           `envconfig:"KDF_ITERATIONS" default:"100000"`

	AuditCapacity int    `envconfig:"AUDIT_CAPACITY" default:"10000"`
	AuditSink     string `envconfig:"AUDIT_SINK" default:"file"`
	AuditFile     string `envconfig:"AUDIT_FILE" default:"audit.log"`
	AuditRedisKey string `envconfig:"AUDIT_REDIS_KEY" default:"dbguard:audit"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionTTL <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	if cfg.KDFIterations < 100000 {
		return nil, errors.New("kdf iterations below the minimum of 100000")
	}
	switch cfg.AuditSink {
	case "file", "redis", "none":
	default:
		return nil, errors.New("audit sink must be file, redis or none")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
