package app

import (
	"flag"
	"net/url"
	"os"
	"time"
)

type Config struct {
	RunAddress       string
	DatabaseURI      string
	LogLevel         string
	JWTSecretKey     string
	TokenTTL         time.Duration
	MigrationsPath   string
	AdminEmail       string
	MaxLoginAttempts int
	LockoutWindow    time.Duration
	QueryTimeout     time.Duration
}

func NewConfigFromFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "Server address (env: RUN_ADDRESS)")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "Database URI (env: DATABASE_URI)")
	flag.StringVar(&cfg.LogLevel, "l", "debug", "Log level (debug|info|warn|error) (env: LOG_LEVEL)")
	flag.StringVar(&cfg.JWTSecretKey, "jwt-secret", "", "JWT secret key (env: JWT_SECRET_KEY)")
	flag.DurationVar(&cfg.TokenTTL, "token-ttl", 24*time.Hour, "Token lifetime")
	flag.StringVar(&cfg.MigrationsPath, "migrations", "./migrations", "Path to migrations folder (env: MIGRATIONS_PATH)")
	flag.StringVar(&cfg.AdminEmail, "admin-email", "admin@example.com", "Admin user email (env: ADMIN_EMAIL)")
	flag.IntVar(&cfg.MaxLoginAttempts, "max-login-attempts", 5, "Failed logins before lockout")
	flag.DurationVar(&cfg.LockoutWindow, "lockout-window", 30*time.Minute, "Lockout cooldown window")
	flag.DurationVar(&cfg.QueryTimeout, "query-timeout", 5*time.Second, "Per-operation storage timeout")
	flag.Parse()

	cfg.applyEnvVars()
	cfg.validate()

	return cfg
}

func (c *Config) applyEnvVars() {
	if envAddr := os.Getenv("RUN_ADDRESS"); envAddr != "" {
		c.RunAddress = envAddr
	}
	if envDB := os.Getenv("DATABASE_URI"); envDB != "" {
		c.DatabaseURI = envDB
	}
	if envLogLevel := os.Getenv("LOG_LEVEL"); envLogLevel != "" {
		c.LogLevel = envLogLevel
	}
	if envSecret := os.Getenv("JWT_SECRET_KEY"); envSecret != "" {
		c.JWTSecretKey = envSecret
	}
	if envMigrations := os.Getenv("MIGRATIONS_PATH"); envMigrations != "" {
		c.MigrationsPath = envMigrations
	}
	if envAdmin := os.Getenv("ADMIN_EMAIL"); envAdmin != "" {
		c.AdminEmail = envAdmin
	}
}

func (c *Config) validate() {
	if c.DatabaseURI == "" {
		panic("Database URI is required (use -d flag or DATABASE_URI env)")
	}
	if c.JWTSecretKey == "" {
		panic("JWT secret key is required (use -jwt-secret flag or JWT_SECRET_KEY env)")
	}
}

func (c *Config) MaskDBPassword() string {
	u, err := url.Parse(c.DatabaseURI)
	if err != nil {
		return c.DatabaseURI
	}

	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}
