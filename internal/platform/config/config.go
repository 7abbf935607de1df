package config

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/caarlos0/env/v11"

	liststrings "warden/pkg/platform/strings"
)

// Config is the full process configuration, read once at startup.
type Config struct {
	Server     Server
	Logging    Logging
	Postgres   PostgresConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Verify     VerifyConfig
	Addresses  AddressConfig
	IPHub      IPHubConfig
	Sessions   SessionConfig
	Punishment PunishmentConfig
	RateLimit  RateLimitConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"WARDEN_ADDR"      envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	// AuthSigningKey enables bearer auth on /v1 when set.
	AuthSigningKey string `env:"AUTH_SIGNING_KEY"`
	// TrustedProxies lists the CIDRs whose forwarding headers are believed.
	TrustedProxies []netip.Prefix `env:"TRUSTED_PROXIES" envSeparator:","`
}

type Logging struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type PostgresConfig struct {
	URL string `env:"DATABASE_URL"`
}

type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE"      envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT"   envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT"   envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT"  envDefault:"3s"`
}

type KafkaConfig struct {
	Brokers    []string `env:"KAFKA_BROKERS"     envSeparator:","`
	AuditTopic string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"warden.audit"`
}

type VerifyConfig struct {
	Timeout time.Duration `env:"VERIFY_TIMEOUT" envDefault:"10s"`
}

type AddressConfig struct {
	// Providers lists built-in sources by name; empty means all of them.
	Providers       []string      `env:"ADDRESS_PROVIDERS"         envSeparator:","`
	Feeds           []string      `env:"ADDRESS_FEEDS"             envSeparator:","`
	Concurrency     int           `env:"ADDRESS_FETCH_CONCURRENCY" envDefault:"4"`
	FetchTimeout    time.Duration `env:"ADDRESS_FETCH_TIMEOUT"     envDefault:"60s"`
	RefreshInterval time.Duration `env:"ADDRESS_REFRESH_INTERVAL"  envDefault:"0s"`
}

type IPHubConfig struct {
	Token     string        `env:"IPHUB_TOKEN"`
	CacheSize int           `env:"IPHUB_CACHE_SIZE" envDefault:"10000"`
	CacheTTL  time.Duration `env:"IPHUB_CACHE_TTL"  envDefault:"6h"`
}

const (
	SessionBackendMemory   = "memory"
	SessionBackendRedis    = "redis"
	SessionBackendPostgres = "postgres"
)

type SessionConfig struct {
	Backend string        `env:"SESSION_BACKEND" envDefault:"memory"`
	TTL     time.Duration `env:"SESSION_TTL"     envDefault:"720h"`
}

type PunishmentConfig struct {
	FailClosed bool   `env:"PUNISHMENT_FAIL_CLOSED" envDefault:"false"`
	ServerName string `env:"SERVER_NAME"`
	AppealURL  string `env:"APPEAL_URL"`
}

// RateLimitConfig bounds /v1 requests per caller address. A zero limit
// disables limiting. The window is shared through Redis when it is configured.
type RateLimitConfig struct {
	Limit  int           `env:"RATE_LIMIT_REQUESTS" envDefault:"600"`
	Window time.Duration `env:"RATE_LIMIT_WINDOW"   envDefault:"1m"`
}

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Addresses.Providers = liststrings.NormalizeLower(cfg.Addresses.Providers)
	cfg.Addresses.Feeds = liststrings.Normalize(cfg.Addresses.Feeds)
	cfg.Kafka.Brokers = liststrings.Normalize(cfg.Kafka.Brokers)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c Config) Validate() error {
	switch c.Sessions.Backend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis session backend")
		}
	case SessionBackendPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres session backend")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Sessions.Backend)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}
