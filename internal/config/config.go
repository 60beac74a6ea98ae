package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	ServerPort      int           `env:"PORT,default=8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`

	DatabaseDriver string `env:"DATABASE_DRIVER,default=sqlite"`
	DatabaseURL    string `env:"DATABASE_URL"`

	// Discrete postgres settings, only consulted when DatabaseURL is empty.
	DBHost    string `env:"DB_HOST"`
	DBPort    string `env:"DB_PORT,default=5432"`
	DBName    string `env:"DB_NAME"`
	DBUser    string `env:"DB_USER"`
	DBPass    string `env:"DB_PASS"`
	DBSSLMode string `env:"DB_SSLMODE,default=require"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=console"`

	BcryptCost         int    `env:"BCRYPT_COST,default=10"`
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS,default=*"`
	ProtectUserRoutes  bool   `env:"PROTECT_USER_ROUTES,default=true"`
	MetricsEnabled     bool   `env:"METRICS_ENABLED,default=true"`

	// StatsSchedule is a cron spec for the account statistics job. "off" disables it.
	StatsSchedule string `env:"STATS_SCHEDULE,default=@every 1m"`
}

// Load reads the optional dotenv file named by ENV_FILE (default ".env") and
// then decodes the process environment into a Config. Variables already set in
// the process environment win over the file.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
	}

	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	if cfg.DatabaseURL == "" {
		switch cfg.DatabaseDriver {
		case DriverSQLite:
			cfg.DatabaseURL = "./turu.db"
		case DriverPostgres:
			cfg.DatabaseURL = cfg.postgresDSN()
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid PORT %d", c.ServerPort)
	}
	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL or DB_HOST/DB_NAME/DB_USER must be set for postgres")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// AllowedOrigins splits CORSAllowedOrigins on commas.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// StatsEnabled reports whether the statistics job should be scheduled.
func (c *Config) StatsEnabled() bool {
	s := strings.TrimSpace(c.StatsSchedule)
	return s != "" && !strings.EqualFold(s, "off")
}

func (c *Config) postgresDSN() string {
	if c.DBHost == "" || c.DBName == "" || c.DBUser == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPass),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
