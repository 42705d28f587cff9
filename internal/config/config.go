package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	AuthIssuer         string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL        string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience       string        `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS       float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `mapstructure:"RATE_LIMIT_BURST"`
	RateLimitIdle      time.Duration `mapstructure:"RATE_LIMIT_IDLE"`
	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	SlotWriteTimeout   time.Duration `mapstructure:"SLOT_WRITE_TIMEOUT"`
	TimeZone           string        `mapstructure:"TIMEZONE"`
	PublishHorizonDays int           `mapstructure:"PUBLISH_HORIZON_DAYS"`
	PublishInterval    time.Duration `mapstructure:"PUBLISH_INTERVAL"`
	SweepInterval      time.Duration `mapstructure:"SWEEP_INTERVAL"`
	SearchCacheTTL     time.Duration `mapstructure:"SEARCH_CACHE_TTL"`
	MigrationsDir      string        `mapstructure:"MIGRATIONS_DIR"`
}

var envKeys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "CORS_ORIGINS", "RATE_LIMIT_RPS",
	"RATE_LIMIT_BURST", "RATE_LIMIT_IDLE", "REQUEST_TIMEOUT", "SLOT_WRITE_TIMEOUT", "TIMEZONE",
	"PUBLISH_HORIZON_DAYS", "PUBLISH_INTERVAL", "SWEEP_INTERVAL", "SEARCH_CACHE_TTL",
	"MIGRATIONS_DIR",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("RATE_LIMIT_IDLE", "3m")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("SLOT_WRITE_TIMEOUT", "3s")
	v.SetDefault("TIMEZONE", "Africa/Casablanca")
	v.SetDefault("PUBLISH_HORIZON_DAYS", 28)
	v.SetDefault("PUBLISH_INTERVAL", "1h")
	v.SetDefault("SWEEP_INTERVAL", "15m")
	v.SetDefault("SEARCH_CACHE_TTL", "60s")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode (ENV=development); requests are authenticated from X-Dev-User.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Location resolves TIMEZONE. Slot dates and times are wall-clock values in this zone.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// Validate checks that the configuration is safe to run. Outside development
// AUTH_ISSUER must be set so that real JWT authentication is enforced.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" {
		return fmt.Errorf("AUTH_ISSUER must be set when ENV=%q; refusing to start without authentication", c.Env)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.PublishHorizonDays <= 0 {
		return fmt.Errorf("PUBLISH_HORIZON_DAYS must be positive, got %d", c.PublishHorizonDays)
	}
	if c.SlotWriteTimeout <= 0 {
		return fmt.Errorf("SLOT_WRITE_TIMEOUT must be positive")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
