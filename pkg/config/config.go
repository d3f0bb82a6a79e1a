package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Cache backends supported by the query cache.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	Timezone  string

	Database     DatabaseConfig
	Redis        RedisConfig
	Auth         AuthConfig
	CORS         CORSConfig
	Log          LogConfig
	Cache        CacheConfig
	Retry        RetryConfig
	Exchange     ExchangeConfig
	Notification NotificationConfig
	Invitation   InvitationConfig
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	MigrateOnStart bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AuthConfig describes how access tokens minted by the identity provider are verified.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig selects the query cache backend and its garbage-collection horizon.
type CacheConfig struct {
	Backend string
	GCTime  time.Duration
}

// RetryConfig bounds retries for read paths.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// ExchangeConfig toggles optional exchange request behaviour.
type ExchangeConfig struct {
	ReassignOnApproval bool
}

// NotificationConfig sizes the notification worker queue.
type NotificationConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// InvitationConfig controls invitation defaults.
type InvitationConfig struct {
	DefaultTTL time.Duration
	CodeLength int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Timezone = v.GetString("TIMEZONE")

	cfg.Database = DatabaseConfig{
		Host:           v.GetString("DB_HOST"),
		Port:           v.GetInt("DB_PORT"),
		User:           v.GetString("DB_USER"),
		Password:       v.GetString("DB_PASSWORD"),
		Name:           v.GetString("DB_NAME"),
		SSLMode:        v.GetString("DB_SSL_MODE"),
		MaxOpenConns:   v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:   v.GetInt("DB_MAX_IDLE_CONNS"),
		MigrateOnStart: v.GetBool("MIGRATE_ON_START"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Auth = AuthConfig{
		JWTSecret: v.GetString("AUTH_JWT_SECRET"),
		Issuer:    v.GetString("AUTH_ISSUER"),
		Audience:  v.GetString("AUTH_AUDIENCE"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Backend: strings.ToLower(strings.TrimSpace(v.GetString("CACHE_BACKEND"))),
		GCTime:  parseDuration(v.GetString("CACHE_GC_TIME"), 10*time.Minute),
	}
	if cfg.Cache.Backend != CacheBackendRedis {
		cfg.Cache.Backend = CacheBackendMemory
	}

	cfg.Retry = RetryConfig{
		MaxRetries:      v.GetInt("RETRY_MAX_ATTEMPTS"),
		InitialInterval: parseDuration(v.GetString("RETRY_INITIAL_INTERVAL"), time.Second),
		MaxInterval:     parseDuration(v.GetString("RETRY_MAX_INTERVAL"), 30*time.Second),
	}
	if cfg.Retry.MaxInterval > 30*time.Second {
		cfg.Retry.MaxInterval = 30 * time.Second
	}

	cfg.Exchange = ExchangeConfig{
		ReassignOnApproval: v.GetBool("EXCHANGE_REASSIGN_ON_APPROVAL"),
	}

	cfg.Notification = NotificationConfig{
		Workers:    v.GetInt("NOTIFY_WORKERS"),
		MaxRetries: v.GetInt("NOTIFY_RETRIES"),
		RetryDelay: parseDuration(v.GetString("NOTIFY_RETRY_DELAY"), 2*time.Second),
	}

	cfg.Invitation = InvitationConfig{
		DefaultTTL: parseDuration(v.GetString("INVITE_TTL"), 7*24*time.Hour),
		CodeLength: v.GetInt("INVITE_CODE_LENGTH"),
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("AUTH_JWT_SECRET is required")
	}

	return cfg, nil
}

// Location resolves Timezone, falling back to a fixed KST offset when the zone database is missing.
func (c *Config) Location() *time.Location {
	if c.Timezone != "" {
		if loc, err := time.LoadLocation(c.Timezone); err == nil {
			return loc
		}
	}
	return time.FixedZone("KST", 9*60*60)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("TIMEZONE", "Asia/Seoul")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "workeasy")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("MIGRATE_ON_START", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AUTH_JWT_SECRET", "dev_secret")
	v.SetDefault("AUTH_ISSUER", "")
	v.SetDefault("AUTH_AUDIENCE", "authenticated")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CACHE_BACKEND", CacheBackendMemory)
	v.SetDefault("CACHE_GC_TIME", "10m")

	v.SetDefault("RETRY_MAX_ATTEMPTS", 3)
	v.SetDefault("RETRY_INITIAL_INTERVAL", "1s")
	v.SetDefault("RETRY_MAX_INTERVAL", "30s")

	v.SetDefault("EXCHANGE_REASSIGN_ON_APPROVAL", false)

	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_RETRIES", 3)
	v.SetDefault("NOTIFY_RETRY_DELAY", "2s")

	v.SetDefault("INVITE_TTL", "168h")
	v.SetDefault("INVITE_CODE_LENGTH", 8)
}

// SetConfigFile bypasses viper's lookup, so a missing .env surfaces as a path error.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
