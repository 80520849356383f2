package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds every knob the client reads from the environment.
type Config struct {
	APIBaseURL     string        `env:"AGENDA_API_URL,        default=http://localhost:8080/api"`
	RequestTimeout time.Duration `env:"AGENDA_API_TIMEOUT,    default=15s"`
	LogLevel       string        `env:"AGENDA_LOG_LEVEL,      default=info"`
	LogPretty      bool          `env:"AGENDA_LOG_PRETTY,     default=true"`
	StateDir       string        `env:"AGENDA_STATE_DIR"` // defaults to os.UserConfigDir()/agenda
	ReadRetries    int           `env:"AGENDA_READ_RETRIES,   default=2"`
	StaleTTL       time.Duration `env:"AGENDA_STALE_TTL,      default=5m"`
	MetricsAddr    string        `env:"AGENDA_METRICS_ADDR"` // empty disables the metrics listener

	Cache CacheConfig
}

// CacheConfig selects and tunes the query cache backend.
type CacheConfig struct {
	Backend string `env:"AGENDA_CACHE_BACKEND, default=memory"` // memory | redis
	Redis   RedisConfig
}

type RedisConfig struct {
	Addr   string `env:"AGENDA_REDIS_ADDR,   default=localhost:6379"`
	DB     int    `env:"AGENDA_REDIS_DB,     default=0"`
	Prefix string `env:"AGENDA_REDIS_PREFIX, default=agenda"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}
