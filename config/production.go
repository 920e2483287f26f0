// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/linktum-io/linktum/utils"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database DatabaseConfig `json:"database"`
	Server   ServerConfig   `json:"server"`
	Security SecurityConfig `json:"security"`
	JWT      JWTConfig      `json:"jwt"`
	Logging  LoggingConfig  `json:"logging"`
	Cache    CacheConfig    `json:"cache"`
	Billing  BillingConfig  `json:"billing"`
	Gateway  GatewayConfig  `json:"gateway"`
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	Notify   NotifyConfig   `json:"notify"`
	Deploy   DeployConfig   `json:"deploy"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	PublicBaseURL   string        `json:"public_base_url"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
	EnableMetrics   bool          `json:"enable_metrics"`
	TrustedProxies  []string      `json:"trusted_proxies"`
	ProxyHeader     string        `json:"proxy_header"`
}

type SecurityConfig struct {
	// Per-account action limiting
	RateLimitWindow time.Duration `json:"rate_limit_window"`
	RateLimitMax    int           `json:"rate_limit_max"`

	// Salt for click fingerprints; raw IPs never hit storage
	FingerprintSalt string `json:"-"`

	// HMAC secret for gateway callback signatures
	CallbackSecret string `json:"-"`

	// CORS
	AllowedOrigins []string `json:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers"`
	CORSMaxAge     int      `json:"cors_max_age"`

	BcryptCost int `json:"bcrypt_cost"`
}

type JWTConfig struct {
	SecretKey      string        `json:"-"`
	AccessTokenTTL time.Duration `json:"access_token_ttl"`
	Issuer         string        `json:"issuer"`
	Audience       string        `json:"audience"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

type CacheConfig struct {
	Enabled     bool   `json:"enabled"`
	Provider    string `json:"provider"` // redis, memory
	RedisURL    string `json:"redis_url"`
	RedisPrefix string `json:"redis_prefix"`
}

// BillingConfig carries the token economics. All amounts are in tums.
type BillingConfig struct {
	SignupBonus      uint64 `json:"signup_bonus"`
	LinkCreationCost uint64 `json:"link_creation_cost"`
	DailyFee         uint64 `json:"daily_fee"`
	TemporalFee      uint64 `json:"temporal_fee"`
	TumsPerFiatUnit  uint64 `json:"tums_per_fiat_unit"`

	BillingCycle      time.Duration `json:"billing_cycle"`
	GraceWindow       time.Duration `json:"grace_window"`
	PendingPaymentTTL time.Duration `json:"pending_payment_ttl"`
	ClaimTTL          time.Duration `json:"claim_ttl"`

	SweepInterval  time.Duration `json:"sweep_interval"`
	SweepBatchSize int           `json:"sweep_batch_size"`
}

type GatewayConfig struct {
	BaseURL  string        `json:"base_url"`
	APIKey   string        `json:"-"`
	Currency string        `json:"currency"`
	Timeout  time.Duration `json:"timeout"`
}

type WhatsAppConfig struct {
	APIURL      string        `json:"api_url"`
	AccessToken string        `json:"-"`
	SenderPhone string        `json:"sender_phone"`
	Timeout     time.Duration `json:"timeout"`
}

type NotifyConfig struct {
	BatchSize  int           `json:"batch_size"`
	BatchPause time.Duration `json:"batch_pause"`
	QueueSize  int           `json:"queue_size"`
}

type DeployConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "linktum"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			PublicBaseURL:   getEnvString("PUBLIC_BASE_URL", "https://lt.example.com"),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 1*1024*1024),
			EnableMetrics:   getEnvBool("SERVER_ENABLE_METRICS", true),
			TrustedProxies:  getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{}),
			ProxyHeader:     getEnvString("SERVER_PROXY_HEADER", "X-Forwarded-For"),
		},
		Security: SecurityConfig{
			RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", utils.RateLimitWindow),
			RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", utils.RateLimitMaxActions),
			FingerprintSalt: getEnvString("FINGERPRINT_SALT", ""),
			CallbackSecret:  getEnvString("GATEWAY_CALLBACK_SECRET", ""),
			AllowedOrigins:  getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{}),
			AllowedMethods:  getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:  getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization"}),
			CORSMaxAge:      getEnvInt("CORS_MAX_AGE", 86400),
			BcryptCost:      getEnvInt("BCRYPT_COST", 12),
		},
		JWT: JWTConfig{
			SecretKey:      getEnvString("JWT_SECRET_KEY", ""),
			AccessTokenTTL: getEnvDuration("JWT_ACCESS_TOKEN_TTL", utils.AdminAccessTokenTTL),
			Issuer:         getEnvString("JWT_ISSUER", "linktum"),
			Audience:       getEnvString("JWT_AUDIENCE", "linktum-admin"),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			Output:     getEnvString("LOG_OUTPUT", "both"),
			FilePath:   getEnvString("LOG_FILE_PATH", "/var/log/linktum/api.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 7),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", false),
			Provider:    getEnvString("CACHE_PROVIDER", "memory"),
			RedisURL:    getEnvString("CACHE_REDIS_URL", ""),
			RedisPrefix: getEnvString("CACHE_REDIS_PREFIX", "linktum:"),
		},
		Billing: BillingConfig{
			SignupBonus:       uint64(getEnvInt("BILLING_SIGNUP_BONUS", utils.SignupBonusTums)),
			LinkCreationCost:  uint64(getEnvInt("BILLING_LINK_CREATION_COST", utils.LinkCreationCostTums)),
			DailyFee:          uint64(getEnvInt("BILLING_DAILY_FEE", utils.DailyMaintenanceFeeTums)),
			TemporalFee:       uint64(getEnvInt("BILLING_TEMPORAL_FEE", utils.TemporalRedirectFeeTums)),
			TumsPerFiatUnit:   uint64(getEnvInt("BILLING_TUMS_PER_FIAT_UNIT", utils.TumsPerFiatUnit)),
			BillingCycle:      getEnvDuration("BILLING_CYCLE", utils.BillingCycle),
			GraceWindow:       getEnvDuration("BILLING_GRACE_WINDOW", utils.DeletionGraceWindow),
			PendingPaymentTTL: getEnvDuration("BILLING_PENDING_PAYMENT_TTL", utils.PendingPaymentTTL),
			ClaimTTL:          getEnvDuration("BILLING_CLAIM_TTL", utils.BillingClaimTTL),
			SweepInterval:     getEnvDuration("BILLING_SWEEP_INTERVAL", time.Hour),
			SweepBatchSize:    getEnvInt("BILLING_SWEEP_BATCH_SIZE", 200),
		},
		Gateway: GatewayConfig{
			BaseURL:  getEnvString("GATEWAY_BASE_URL", ""),
			APIKey:   getEnvString("GATEWAY_API_KEY", ""),
			Currency: getEnvString("GATEWAY_CURRENCY", utils.FiatCurrency),
			Timeout:  getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		},
		WhatsApp: WhatsAppConfig{
			APIURL:      getEnvString("WHATSAPP_API_URL", ""),
			AccessToken: getEnvString("WHATSAPP_ACCESS_TOKEN", ""),
			SenderPhone: getEnvString("WHATSAPP_SENDER_PHONE", ""),
			Timeout:     getEnvDuration("WHATSAPP_TIMEOUT", 10*time.Second),
		},
		Notify: NotifyConfig{
			BatchSize:  getEnvInt("NOTIFY_BATCH_SIZE", utils.NotificationBatchSize),
			BatchPause: getEnvDuration("NOTIFY_BATCH_PAUSE", utils.NotificationBatchPause),
			QueueSize:  getEnvInt("NOTIFY_QUEUE_SIZE", 10000),
		},
		Deploy: DeployConfig{
			Environment: getEnvString("ENVIRONMENT", "production"),
			Version:     getEnvString("VERSION", "dev"),
		},
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from a .env file in the working
// directory. Existing environment variables win.
func loadEnvFile() error {
	envFile := ".env"

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}

	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required")
	}

	if cfg.JWT.SecretKey == "" {
		errors = append(errors, "JWT_SECRET_KEY is required")
	}
	if len(cfg.JWT.SecretKey) < 32 {
		errors = append(errors, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		errors = append(errors, "JWT_ACCESS_TOKEN_TTL must be positive")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.PublicBaseURL == "" {
		errors = append(errors, "PUBLIC_BASE_URL is required")
	}

	if cfg.Security.FingerprintSalt == "" {
		errors = append(errors, "FINGERPRINT_SALT is required")
	}
	if cfg.Security.CallbackSecret == "" {
		errors = append(errors, "GATEWAY_CALLBACK_SECRET is required")
	}
	if cfg.Security.RateLimitWindow <= 0 {
		errors = append(errors, "RATE_LIMIT_WINDOW must be positive")
	}
	if cfg.Security.RateLimitMax <= 0 {
		errors = append(errors, "RATE_LIMIT_MAX must be positive")
	}
	if cfg.Security.BcryptCost < 10 || cfg.Security.BcryptCost > 14 {
		errors = append(errors, "BCRYPT_COST must be between 10 and 14")
	}

	if cfg.Billing.TumsPerFiatUnit == 0 {
		errors = append(errors, "BILLING_TUMS_PER_FIAT_UNIT must be positive")
	}
	if cfg.Billing.BillingCycle <= 0 {
		errors = append(errors, "BILLING_CYCLE must be positive")
	}
	if cfg.Billing.SweepBatchSize <= 0 {
		errors = append(errors, "BILLING_SWEEP_BATCH_SIZE must be positive")
	}

	if cfg.Cache.Enabled && cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
		errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
	}

	if cfg.Gateway.BaseURL == "" {
		errors = append(errors, "GATEWAY_BASE_URL is required")
	}
	if cfg.WhatsApp.APIURL == "" {
		errors = append(errors, "WHATSAPP_API_URL is required")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
