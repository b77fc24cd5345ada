package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const defaultSecretKey = "your-secret-key-change-in-production"

// Config holds application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Email    EmailConfig
	SMS      SMSConfig
	Intake   IntakeConfig
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name    string
	Version string
	Debug   bool
	Port    string
	Host    string

	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	SecretKey          string
	TokenExpiryMinutes int
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// EmailConfig holds email service configuration
type EmailConfig struct {
	Enabled   bool
	SMTPHost  string
	SMTPPort  int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	// NotifyTo receives a copy of every submitted query.
	NotifyTo string
}

// SMSConfig holds SMS service configuration
type SMSConfig struct {
	Enabled    bool
	Provider   string // "twilio" or "console"
	TwilioSID  string
	TwilioAuth string
	TwilioFrom string
}

// IntakeConfig holds query intake limits
type IntakeConfig struct {
	SubmissionsPerMinute int
}

var globalConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	config := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "Tax Desk API"),
			Version: getEnv("APP_VERSION", "1.0.0"),
			Debug:   getEnvAsBool("DEBUG", false),
			Port:    getEnv("PORT", "8000"),
			Host:    getEnv("HOST", "0.0.0.0"),

			TrustProxy: getEnvAsBool("TRUST_PROXY", false),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", "sqlite:///./taxdesk.db"),
		},
		Auth: AuthConfig{
			SecretKey:          getEnv("SECRET_KEY", defaultSecretKey),
			TokenExpiryMinutes: getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS", "HEAD"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
			MaxAge:         86400,
		},
		Email: EmailConfig{
			Enabled:   getEnvAsBool("EMAIL_ENABLED", false),
			SMTPHost:  getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:  getEnvAsInt("SMTP_PORT", 587),
			Username:  getEnv("SMTP_USERNAME", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			FromEmail: getEnv("EMAIL_FROM", "noreply@taxdesk.co.uk"),
			FromName:  getEnv("EMAIL_FROM_NAME", "Tax Desk"),
			NotifyTo:  getEnv("EMAIL_NOTIFY_TO", "queries@taxdesk.co.uk"),
		},
		SMS: SMSConfig{
			Enabled:    getEnvAsBool("SMS_ENABLED", false),
			Provider:   getEnv("SMS_PROVIDER", "console"),
			TwilioSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
			TwilioAuth: getEnv("TWILIO_AUTH_TOKEN", ""),
			TwilioFrom: getEnv("TWILIO_PHONE_NUMBER", ""),
		},
		Intake: IntakeConfig{
			SubmissionsPerMinute: getEnvAsInt("INTAKE_SUBMISSIONS_PER_MINUTE", 5),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	globalConfig = config
	return config, nil
}

// Validate checks the values the server cannot start without
func (c *Config) Validate() error {
	if c.App.Port == "" {
		return fmt.Errorf("PORT must be set")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	if c.Auth.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY must be set")
	}
	if c.Auth.TokenExpiryMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be greater than 0")
	}
	if c.Intake.SubmissionsPerMinute <= 0 {
		return fmt.Errorf("INTAKE_SUBMISSIONS_PER_MINUTE must be greater than 0")
	}
	return nil
}

// ValidateForProduction applies the stricter rules used by the API server
func (c *Config) ValidateForProduction() error {
	if c.Auth.SecretKey == defaultSecretKey {
		return fmt.Errorf("SECRET_KEY must be changed from default value")
	}
	if len(c.Auth.SecretKey) < 32 {
		return fmt.Errorf("SECRET_KEY must be at least 32 characters")
	}
	return nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		config, _ := Load()
		return config
	}
	return globalConfig
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsPostgres checks if the database URL is for PostgreSQL
func (c *DatabaseConfig) IsPostgres() bool {
	return strings.HasPrefix(c.URL, "postgres://") || strings.HasPrefix(c.URL, "postgresql://") ||
		strings.Contains(c.URL, "host=")
}

// GetPostgresDSN converts a postgres:// URL to a key=value DSN.
// DSNs already in key=value form are returned unchanged.
func (c *DatabaseConfig) GetPostgresDSN() string {
	url := c.URL
	if strings.Contains(url, " ") || strings.Contains(url, "=") && !strings.Contains(url, "://") {
		return url
	}

	var prefix string
	switch {
	case strings.HasPrefix(url, "postgresql://"):
		prefix = "postgresql://"
	case strings.HasPrefix(url, "postgres://"):
		prefix = "postgres://"
	default:
		return url
	}
	url = strings.TrimPrefix(url, prefix)

	at := strings.LastIndex(url, "@")
	if at < 0 {
		return c.URL
	}
	credentials, rest := url[:at], url[at+1:]

	user, password, _ := strings.Cut(credentials, ":")

	host, port, dbname, sslmode := "localhost", "5432", "postgres", "disable"

	hostPort, dbAndParams, hasDB := strings.Cut(rest, "/")
	if h, p, ok := strings.Cut(hostPort, ":"); ok {
		host, port = h, p
	} else if hostPort != "" {
		host = hostPort
	}
	if hasDB {
		name, params, _ := strings.Cut(dbAndParams, "?")
		if name != "" {
			dbname = name
		}
		for _, param := range strings.Split(params, "&") {
			if v, ok := strings.CutPrefix(param, "sslmode="); ok {
				sslmode = v
			}
		}
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s", host, port, user, dbname, sslmode)
	if password != "" {
		dsn += " password=" + password
	}
	return dsn
}

// GetSQLitePath extracts SQLite database path from URL
func (c *DatabaseConfig) GetSQLitePath() string {
	if path, ok := strings.CutPrefix(c.URL, "sqlite:///"); ok {
		return path
	}
	return c.URL
}
