package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration (HR sessions)
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Device session cookie configuration
	Session SessionConfig

	// Notification configuration
	Notification NotificationConfig

	// Reconciliation scheduler configuration
	Scheduler SchedulerConfig

	// Redis configuration (optional, cross-instance sweep locks)
	Redis RedisConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds the HR session token configuration
type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SessionConfig holds the kiosk device session cookie settings
type SessionConfig struct {
	CookieName   string
	HRCookieName string
	MaxAge       time.Duration
	Secure       bool
}

// NotificationConfig holds mail transport and recipient routing.
// DepartmentRecipients maps a department code to its primary recipients.
type NotificationConfig struct {
	Mode                 string // "smtp" sends mail, "log" only logs the rendered message
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	FromAddress          string
	DepartmentRecipients map[string][]string
	HRRecipients         []string
	OpsManagerRecipients []string
	Workers              int
	QueueSize            int
	SendTimeout          time.Duration
}

// SchedulerConfig holds the reconciliation sweep settings
type SchedulerConfig struct {
	Timezone             string
	PendingSweepSchedule string
	PendingMaxAge        time.Duration
	TokenSweepSchedule   string
	TokenRetention       time.Duration
	DailySweepSchedule   string
	JobTimeout           time.Duration
}

// RedisConfig holds the optional Redis connection used for sweep locks
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// Location resolves the scheduler timezone, falling back to local time.
func (s SchedulerConfig) Location() *time.Location {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		log.Printf("Invalid SCHEDULER_TIMEZONE %q, using local time", s.Timezone)
		return time.Local
	}
	return loc
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	environment := getEnv("ENVIRONMENT", "development")

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: environment,
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			Expiry: time.Duration(getEnvAsInt("JWT_HR_SESSION_EXPIRY", 28800)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", ",", []string{"http://localhost:3000"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", ",", []string{"GET", "POST", "PUT", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", ",", []string{"Content-Type"}),
		},
		Session: SessionConfig{
			CookieName:   getEnv("SESSION_COOKIE_NAME", "checkout_session"),
			HRCookieName: getEnv("HR_SESSION_COOKIE_NAME", "hr_session"),
			MaxAge:       time.Duration(getEnvAsInt("SESSION_COOKIE_MAX_AGE", 86400)) * time.Second,
			Secure:       getEnvAsBool("SESSION_COOKIE_SECURE", environment == "production"),
		},
		Notification: NotificationConfig{
			Mode:                 getEnv("NOTIFICATION_MODE", "log"),
			SMTPHost:             getEnv("SMTP_HOST", ""),
			SMTPPort:             getEnvAsInt("SMTP_PORT", 587),
			SMTPUsername:         getEnv("SMTP_USERNAME", ""),
			SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
			FromAddress:          getEnv("NOTIFICATION_FROM", ""),
			DepartmentRecipients: ParseRouting(getEnv("NOTIFICATION_DEPARTMENT_ROUTING", "")),
			HRRecipients:         getEnvAsSlice("NOTIFICATION_HR_RECIPIENTS", ",", nil),
			OpsManagerRecipients: getEnvAsSlice("NOTIFICATION_OPS_MANAGER_RECIPIENTS", ",", nil),
			Workers:              getEnvAsInt("NOTIFICATION_WORKERS", 4),
			QueueSize:            getEnvAsInt("NOTIFICATION_QUEUE_SIZE", 100),
			SendTimeout:          time.Duration(getEnvAsInt("NOTIFICATION_SEND_TIMEOUT", 30)) * time.Second,
		},
		Scheduler: SchedulerConfig{
			Timezone:             getEnv("SCHEDULER_TIMEZONE", "Local"),
			PendingSweepSchedule: getEnv("PENDING_SWEEP_SCHEDULE", "@every 1m"),
			PendingMaxAge:        time.Duration(getEnvAsInt("PENDING_MAX_AGE_MINUTES", 20)) * time.Minute,
			TokenSweepSchedule:   getEnv("TOKEN_SWEEP_SCHEDULE", "@every 5m"),
			TokenRetention:       time.Duration(getEnvAsInt("TOKEN_RETENTION_MINUTES", 15)) * time.Minute,
			DailySweepSchedule:   getEnv("DAILY_SWEEP_SCHEDULE", "0 0 20 * * *"),
			JobTimeout:           time.Duration(getEnvAsInt("SWEEP_JOB_TIMEOUT", 30)) * time.Second,
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Session.CookieName == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME cannot be empty")
	}

	switch c.Notification.Mode {
	case "log":
	case "smtp":
		if c.Notification.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required in smtp notification mode")
		}
		if c.Notification.FromAddress == "" {
			return fmt.Errorf("NOTIFICATION_FROM is required in smtp notification mode")
		}
	default:
		return fmt.Errorf("invalid NOTIFICATION_MODE: %s (must be 'smtp' or 'log')", c.Notification.Mode)
	}

	if c.Notification.Workers < 1 {
		return fmt.Errorf("NOTIFICATION_WORKERS must be at least 1")
	}

	if c.Notification.QueueSize < 1 {
		return fmt.Errorf("NOTIFICATION_QUEUE_SIZE must be at least 1")
	}

	return nil
}

// ParseRouting parses a department routing table of the form
// "HI=hi@example.com|hi2@example.com;QA=qa@example.com".
func ParseRouting(raw string) map[string][]string {
	routing := make(map[string][]string)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		dept, list, ok := strings.Cut(entry, "=")
		dept = strings.TrimSpace(dept)
		if !ok || dept == "" {
			log.Printf("Ignoring malformed routing entry %q", entry)
			continue
		}
		for _, addr := range strings.Split(list, "|") {
			if addr = strings.TrimSpace(addr); addr != "" {
				routing[dept] = append(routing[dept], addr)
			}
		}
	}
	return routing
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
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
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key, sep string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, sep) {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
