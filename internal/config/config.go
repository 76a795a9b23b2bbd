package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	StorageDriver  string        `mapstructure:"STORAGE_DRIVER"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	JWTIssuer      string        `mapstructure:"JWT_ISSUER"`
	JWTTTL         time.Duration `mapstructure:"JWT_TTL"`
	BcryptCost     int           `mapstructure:"BCRYPT_COST"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`

	NotifyWorkers       int           `mapstructure:"NOTIFY_WORKERS"`
	NotifyQueueSize     int           `mapstructure:"NOTIFY_QUEUE_SIZE"`
	NotifyTimeout       time.Duration `mapstructure:"NOTIFY_TIMEOUT"`
	NotifyWebhookURL    string        `mapstructure:"NOTIFY_WEBHOOK_URL"`
	NotifyWebhookSecret string        `mapstructure:"NOTIFY_WEBHOOK_SECRET"`
	NotifyRetention     time.Duration `mapstructure:"NOTIFY_RETENTION"`
	NotifyPruneSchedule string        `mapstructure:"NOTIFY_PRUNE_SCHEDULE"`

	ConsultAPIURL  string        `mapstructure:"CONSULT_API_URL"`
	ConsultAPIKey  string        `mapstructure:"CONSULT_API_KEY"`
	ConsultModel   string        `mapstructure:"CONSULT_MODEL"`
	ConsultTimeout time.Duration `mapstructure:"CONSULT_TIMEOUT"`
}

var defaults = map[string]any{
	"PORT":                  "8000",
	"ENV":                   "development",
	"STORAGE_DRIVER":        StoragePostgres,
	"DB_MAX_CONNS":          20,
	"DB_MIN_CONNS":          2,
	"JWT_ISSUER":            "doclogs",
	"JWT_TTL":               "12h",
	"BCRYPT_COST":           10,
	"CORS_ORIGINS":          "http://localhost:3000",
	"RATE_LIMIT_RPS":        50,
	"RATE_LIMIT_BURST":      100,
	"NOTIFY_WORKERS":        2,
	"NOTIFY_QUEUE_SIZE":     256,
	"NOTIFY_TIMEOUT":        "5s",
	"NOTIFY_RETENTION":      "24h",
	"NOTIFY_PRUNE_SCHEDULE": "@every 15m",
	"CONSULT_API_URL":       "https://generativelanguage.googleapis.com",
	"CONSULT_MODEL":         "gemini-2.0-flash",
	"CONSULT_TIMEOUT":       "20s",
}

var unset = []string{
	"DATABASE_URL",
	"JWT_SECRET",
	"NOTIFY_WEBHOOK_URL",
	"NOTIFY_WEBHOOK_SECRET",
	"CONSULT_API_KEY",
}

// Load reads .env (when present) and the environment. Environment values win.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for key, val := range defaults {
		v.SetDefault(key, val)
		_ = v.BindEnv(key)
	}
	// Bind env vars explicitly so Unmarshal picks up keys without defaults.
	for _, key := range unset {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) UsesPostgres() bool {
	return c.StorageDriver == StoragePostgres
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT secret of at least 32 bytes is required.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER is %q", StoragePostgres)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StoragePostgres, StorageMemory, c.StorageDriver)
	}

	if !c.IsDev() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(c.JWTSecret))
		}
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.NotifyWorkers < 1 {
		return fmt.Errorf("NOTIFY_WORKERS must be at least 1, got %d", c.NotifyWorkers)
	}
	if c.NotifyQueueSize < 1 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be at least 1, got %d", c.NotifyQueueSize)
	}
	if c.NotifyWebhookSecret != "" && c.NotifyWebhookURL == "" {
		return fmt.Errorf("NOTIFY_WEBHOOK_SECRET is set but NOTIFY_WEBHOOK_URL is empty")
	}
	if c.NotifyRetention <= 0 {
		return fmt.Errorf("NOTIFY_RETENTION must be positive")
	}
	return nil
}
