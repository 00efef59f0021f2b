package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Environment  string
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Email        EmailConfig
	Scheduler    SchedulerConfig
	FrontendURL  string
}

// SchedulerConfig holds the spaced-repetition scheduler's tunables (spec §0,
// §4.D, §4.G, §4.H). All have spec-mandated defaults and may be overridden
// per-environment for experimentation.
type SchedulerConfig struct {
	RevealTimeout      time.Duration
	NewItemRatio       float64
	OverdueCapRatio    float64
	HighAccuracyCutoff float64
	LowAccuracyCutoff  float64
	AnalysisWindow     int
	SessionTTL         time.Duration
	AutoConfirmQuality int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// EmailConfig holds email configuration
type EmailConfig struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	SupportEmail   string
	AWSRegion      string
}

// Load loads configuration from environment variables
func Load() *Config {
	// Load .env file from the backend directory
	_, b, _, _ := runtime.Caller(0)
	backendDir := filepath.Dir(b)
	envPath := filepath.Join(backendDir, "..", "..", ".env")

	// Try to load .env file, but don't fail if it doesn't exist
	if err := godotenv.Load(envPath); err != nil {
		// Try loading from current directory as fallback
		godotenv.Load()
	}

	env := getEnv("ENVIRONMENT", "development")

	// JWT secret handling: require a real secret in production
	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" || jwtSecret == "your-secret-key" {
		if env == "production" {
			log.Fatal("FATAL: JWT_SECRET must be set to a strong random value in production. " +
				"Generate one with: openssl rand -hex 32")
		}
		// In development, generate a random secret if not set
		jwtSecret = generateDevSecret()
		log.Printf("⚠️  [DEV] No JWT_SECRET set — using auto-generated secret (sessions won't survive restarts)")
	}

	// DB password handling: refuse to start in production if using the default
	dbPassword := getEnv("DB_PASSWORD", "password")
	if env == "production" && dbPassword == "password" {
		log.Fatal("FATAL: DB_PASSWORD must be changed from default in production")
	}

	// Parse CORS origins
	corsOrigins := getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	allowedOrigins := strings.Split(corsOrigins, ",")
	for i, origin := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(origin)
	}

	// DB SSL mode: warn (but still start) in production if SSL is disabled
	dbSSLMode := getEnv("DB_SSLMODE", "disable")
	if env == "production" && dbSSLMode == "disable" {
		log.Println("⚠️  WARNING: DB_SSLMODE is 'disable' in production. Consider using 'require' or 'verify-full'")
	}

	return &Config{
		Environment: env,
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "chinese_learning"),
			User:     getEnv("DB_USER", "postgres"),
			Password: dbPassword,
			SSLMode:  dbSSLMode,
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       0,
		},
		JWT: JWTConfig{
			Secret: jwtSecret,
		},
		CORS: CORSConfig{
			AllowedOrigins: allowedOrigins,
		},
		Email: EmailConfig{
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			FromEmail:      getEnv("EMAIL_FROM", "noreply@mandarinflash.com"),
			FromName:       getEnv("EMAIL_FROM_NAME", "MandarinFlash"),
			SupportEmail:   getEnv("SUPPORT_EMAIL", "support@mandarinflash.com"),
			AWSRegion:      getEnv("AWS_REGION", ""),
		},
		Scheduler: SchedulerConfig{
			RevealTimeout:      getEnvDuration("SCHEDULER_REVEAL_TIMEOUT", 3*time.Second),
			NewItemRatio:       getEnvFloat("SCHEDULER_NEW_ITEM_RATIO", 0.20),
			OverdueCapRatio:    getEnvFloat("SCHEDULER_OVERDUE_CAP_RATIO", 0.60),
			HighAccuracyCutoff: getEnvFloat("SCHEDULER_HIGH_ACCURACY_CUTOFF", 0.90),
			LowAccuracyCutoff:  getEnvFloat("SCHEDULER_LOW_ACCURACY_CUTOFF", 0.80),
			AnalysisWindow:     getEnvInt("SCHEDULER_ANALYSIS_WINDOW", 50),
			SessionTTL:         getEnvDuration("SCHEDULER_SESSION_TTL", 2*time.Hour),
			AutoConfirmQuality: getEnvInt("SCHEDULER_AUTO_CONFIRM_QUALITY", 3),
		},
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvFloat gets an environment variable as a float64, or returns a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an int, or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a time.Duration (Go
// duration syntax, e.g. "3s"), or returns a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// generateDevSecret generates a random secret for development use
func generateDevSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "dev-fallback-secret-do-not-use-in-production"
	}
	return hex.EncodeToString(bytes)
}
