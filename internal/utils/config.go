package utils

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendRedis    = "redis"
)

var (
	ErrMissingTokenSecret = errors.New("access and refresh token secrets are required")
	ErrSharedTokenSecret  = errors.New("access and refresh token secrets must differ")
	ErrInvalidTokenTTL    = errors.New("token lifetimes must be positive")
	ErrUnknownStore       = errors.New("unknown store backend")
)

type DatabaseConfig struct {
	Host             string `env:"HOST" envDefault:"localhost"`
	Port             int    `env:"PORT" envDefault:"5432"`
	PostgresUser     string `env:"USER"`
	PostgresPassword string `env:"PASSWORD"`
	PostgresDB       string `env:"DB"`
	SSLMode          string `env:"SSLMODE" envDefault:"disable"`
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		c.Host, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.Port, c.SSLMode)
}

type RedisConfig struct {
	Addr      string `env:"ADDR" envDefault:"localhost:6379"`
	Password  string `env:"PASSWORD"`
	DB        int    `env:"DB" envDefault:"0"`
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"rt"`
}

type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
}

type AdminConfig struct {
	Username string `env:"USERNAME" envDefault:"admin"`
	Password string `env:"PASSWORD"`
}

type TokenConfig struct {
	AccessTokenSecret  string        `env:"ACCESS_SECRET"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshTokenSecret string        `env:"REFRESH_SECRET"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
	CookieName         string        `env:"COOKIE_NAME" envDefault:"refresh_token"`
	CookiePath         string        `env:"COOKIE_PATH" envDefault:"/api/v1/auth"`
	CookieDomain       string        `env:"COOKIE_DOMAIN"`
	PurgeSchedule      string        `env:"PURGE_SCHEDULE" envDefault:"5 3 * * *"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64       `env:"RPS" envDefault:"5"`
	TTL               time.Duration `env:"TTL" envDefault:"1h"`
}

type Config struct {
	StoreBackend string          `env:"STORE_BACKEND" envDefault:"postgres"`
	Database     DatabaseConfig  `envPrefix:"POSTGRES_"`
	Redis        RedisConfig     `envPrefix:"REDIS_"`
	Server       ServerConfig    `envPrefix:"SERVER_"`
	Admin        AdminConfig     `envPrefix:"ADMIN_"`
	Token        TokenConfig     `envPrefix:"TOKEN_"`
	Log          LogConfig       `envPrefix:"LOG_"`
	RateLimit    RateLimitConfig `envPrefix:"RATE_LIMIT_"`
}

// LoadConfig reads an optional dotenv file into the environment and parses it.
// A missing file is not an error; values may come from the real environment.
func LoadConfig(dotenvPath string) (*Config, error) {
	if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Token.AccessTokenSecret == "" || c.Token.RefreshTokenSecret == "" {
		return ErrMissingTokenSecret
	}
	if c.Token.AccessTokenSecret == c.Token.RefreshTokenSecret {
		return ErrSharedTokenSecret
	}
	if c.Token.AccessTokenTTL <= 0 || c.Token.RefreshTokenTTL <= 0 {
		return ErrInvalidTokenTTL
	}
	switch c.StoreBackend {
	case StoreBackendPostgres, StoreBackendRedis:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStore, c.StoreBackend)
	}
	return nil
}
