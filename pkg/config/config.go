package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Checkin   CheckinConfig
	Biometric BiometricConfig
	Reports   ReportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CheckinConfig governs the eligibility and recording pipeline.
type CheckinConfig struct {
	// AllowBasicMode lets students without an active subscription check in
	// with the degraded BASIC mode recorded on the attendance row.
	AllowBasicMode bool
	// WindowBefore/WindowAfter frame the allowed check-in interval around
	// the session start time. Only enforced when EnforceWindow is set.
	WindowBefore  time.Duration
	WindowAfter   time.Duration
	EnforceWindow bool
}

// BiometricConfig tunes face matching and the attempt limiter.
type BiometricConfig struct {
	// MatchThreshold is the minimum similarity (0-1) for a match. Callers
	// may override it per request.
	MatchThreshold float64
	// MaxDistance bounds the linear distance-to-similarity mapping;
	// distances at or beyond it map to similarity 0.
	MaxDistance  float64
	EmbeddingDim int
	// RateLimit attempts per RateWindow per student.
	RateLimit  int
	RateWindow time.Duration
	CacheTTL   time.Duration
}

// ReportsConfig gates the export endpoints.
type ReportsConfig struct {
	Enabled bool
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Checkin = CheckinConfig{
		AllowBasicMode: v.GetBool("CHECKIN_ALLOW_BASIC_MODE"),
		WindowBefore:   parseDuration(v.GetString("CHECKIN_WINDOW_BEFORE"), 30*time.Minute),
		WindowAfter:    parseDuration(v.GetString("CHECKIN_WINDOW_AFTER"), 15*time.Minute),
		EnforceWindow:  v.GetBool("CHECKIN_ENFORCE_WINDOW"),
	}

	cfg.Biometric = BiometricConfig{
		MatchThreshold: v.GetFloat64("BIOMETRIC_MATCH_THRESHOLD"),
		MaxDistance:    v.GetFloat64("BIOMETRIC_MAX_DISTANCE"),
		EmbeddingDim:   v.GetInt("BIOMETRIC_EMBEDDING_DIM"),
		RateLimit:      v.GetInt("BIOMETRIC_RATE_LIMIT"),
		RateWindow:     parseDuration(v.GetString("BIOMETRIC_RATE_WINDOW"), time.Minute),
		CacheTTL:       parseDuration(v.GetString("BIOMETRIC_CACHE_TTL"), time.Minute),
	}

	cfg.Reports = ReportsConfig{
		Enabled: v.GetBool("ENABLE_REPORTS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "academy_checkin")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "academy-checkin-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CHECKIN_ALLOW_BASIC_MODE", false)
	v.SetDefault("CHECKIN_WINDOW_BEFORE", "30m")
	v.SetDefault("CHECKIN_WINDOW_AFTER", "15m")
	v.SetDefault("CHECKIN_ENFORCE_WINDOW", false)

	v.SetDefault("BIOMETRIC_MATCH_THRESHOLD", 0.65)
	v.SetDefault("BIOMETRIC_MAX_DISTANCE", 0.6)
	v.SetDefault("BIOMETRIC_EMBEDDING_DIM", 128)
	v.SetDefault("BIOMETRIC_RATE_LIMIT", 5)
	v.SetDefault("BIOMETRIC_RATE_WINDOW", "60s")
	v.SetDefault("BIOMETRIC_CACHE_TTL", "1m")

	v.SetDefault("ENABLE_REPORTS", false)
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
