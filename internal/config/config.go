package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Discord  DiscordConfig
	Auth     AuthConfig
	Email    EmailConfig
	Redis    RedisConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	AutoMigrate       bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	BaseURL        string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// DiscordConfig holds the OAuth2 application settings for the Discord login.
type DiscordConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
	CDNBaseURL   string
	HTTPTimeout  time.Duration
}

type AuthConfig struct {
	StateSecret   string
	StateTTL      time.Duration
	DashboardPath string
	CallbackPath  string

	// failed email signins are padded to FailureFloor plus up to FailureJitter
	FailureFloor  time.Duration
	FailureJitter time.Duration
}

type EmailConfig struct {
	AWSRegion           string
	FromAddress         string
	VerificationURLBase string
	TokenExpiry         time.Duration
	CleanupInterval     time.Duration
}

// RedisConfig points at the Redis instance that remembers consumed OAuth states
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether single-use OAuth state tracking is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// Enabled reports whether SES delivery is configured.
func (c EmailConfig) Enabled() bool {
	return c.AWSRegion != "" && c.FromAddress != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	stateSecret := getEnv("OAUTH_STATE_SECRET", "")
	if stateSecret == "" {
		return nil, fmt.Errorf("OAUTH_STATE_SECRET is required")
	}

	env := getEnv("ENV", "development")
	baseURL := strings.TrimRight(getEnv("BASE_URL", "https://www.boundless-saga.com"), "/")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "boundless_saga"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			BaseURL:        baseURL,
			AllowedOrigins: parseAllowedOrigins(env, baseURL),
			TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout: getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
		},
		Discord: DiscordConfig{
			ClientID:     getEnv("DISCORD_CLIENT_ID", ""),
			ClientSecret: getEnv("DISCORD_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("DISCORD_REDIRECT_URI", baseURL+"/auth/discord/callback"),
			AuthURL:      getEnv("DISCORD_AUTH_URL", "https://discord.com/oauth2/authorize"),
			TokenURL:     getEnv("DISCORD_TOKEN_URL", "https://discord.com/api/oauth2/token"),
			APIBaseURL:   strings.TrimRight(getEnv("DISCORD_API_BASE_URL", "https://discord.com/api"), "/"),
			CDNBaseURL:   strings.TrimRight(getEnv("DISCORD_CDN_BASE_URL", "https://cdn.discordapp.com"), "/"),
			HTTPTimeout:  getEnvAsDuration("DISCORD_HTTP_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			StateSecret:   stateSecret,
			StateTTL:      getEnvAsDuration("OAUTH_STATE_TTL", 10*time.Minute),
			DashboardPath: getEnv("DASHBOARD_PATH", "/dashboard"),
			CallbackPath:  getEnv("OAUTH_CALLBACK_PAGE", "/discord-oauth-callback"),
			FailureFloor:  getEnvAsDuration("AUTH_FAILURE_FLOOR", 250*time.Millisecond),
			FailureJitter: getEnvAsDuration("AUTH_FAILURE_JITTER", 100*time.Millisecond),
		},
		Email: EmailConfig{
			AWSRegion:           getEnv("AWS_REGION", ""),
			FromAddress:         getEnv("EMAIL_FROM_ADDRESS", ""),
			VerificationURLBase: strings.TrimRight(getEnv("EMAIL_VERIFICATION_URL_BASE", baseURL), "/"),
			TokenExpiry:         getEnvAsDuration("EMAIL_TOKEN_EXPIRY", 24*time.Hour),
			CleanupInterval:     getEnvAsDuration("EMAIL_TOKEN_CLEANUP_INTERVAL", time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if cfg.Discord.ClientID == "" || cfg.Discord.ClientSecret == "" {
		return nil, fmt.Errorf("DISCORD_CLIENT_ID and DISCORD_CLIENT_SECRET are required")
	}

	if _, err := url.ParseRequestURI(cfg.Discord.RedirectURI); err != nil {
		return nil, fmt.Errorf("DISCORD_REDIRECT_URI is not a valid URL: %w", err)
	}

	if err := validateStateSecret(stateSecret, env); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateStateSecret enforces minimum strength for the OAuth state signing key
func validateStateSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("OAUTH_STATE_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("OAUTH_STATE_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func splitList(raw string) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env, baseURL string) []string {
	if env == "production" {
		origins := splitList(getEnv("ALLOWED_ORIGINS", ""))
		if len(origins) == 0 {
			return []string{baseURL}
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
