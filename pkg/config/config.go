package config

import (
	"errors"
	"io/fs"
	"strconv"
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
	Env           string
	Port          int
	APIPrefix     string
	RunMigrations bool
	DefaultLocale string

	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	CORS      CORSConfig
	Log       LogConfig
	Grid      GridConfig
	RateLimit RateLimitConfig
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

// AuthConfig validates access tokens issued by the identity service.
type AuthConfig struct {
	Enabled bool
	Secret  string
	Issuer  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// GridConfig sets the visible calendar grid and its caching.
type GridConfig struct {
	FirstSlotStart     string
	LastSlotEnd        string
	PixelsPerHour      float64
	ContentMinHeightPx float64
	Days               []int
	CacheEnabled       bool
	CacheTTL           time.Duration
	RefreshWorkers     int
}

// RateLimitConfig throttles schedule writes per client.
type RateLimitConfig struct {
	WritesPerMinute int
	Burst           int
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.RunMigrations = v.GetBool("RUN_MIGRATIONS")
	cfg.DefaultLocale = v.GetString("DEFAULT_LOCALE")

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

	cfg.Auth = AuthConfig{
		Enabled: v.GetBool("AUTH_ENABLED"),
		Secret:  v.GetString("JWT_SECRET"),
		Issuer:  v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Grid = GridConfig{
		FirstSlotStart:     v.GetString("GRID_FIRST_SLOT_START"),
		LastSlotEnd:        v.GetString("GRID_LAST_SLOT_END"),
		PixelsPerHour:      v.GetFloat64("GRID_PIXELS_PER_HOUR"),
		ContentMinHeightPx: v.GetFloat64("GRID_CONTENT_MIN_HEIGHT"),
		Days:               parseDays(v.GetString("GRID_DAYS")),
		CacheEnabled:       v.GetBool("GRID_CACHE_ENABLED"),
		CacheTTL:           parseDuration(v.GetString("GRID_CACHE_TTL"), 5*time.Minute),
		RefreshWorkers:     v.GetInt("GRID_REFRESH_WORKERS"),
	}

	cfg.RateLimit = RateLimitConfig{
		WritesPerMinute: v.GetInt("WRITE_RATE_PER_MINUTE"),
		Burst:           v.GetInt("WRITE_RATE_BURST"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("RUN_MIGRATIONS", false)
	v.SetDefault("DEFAULT_LOCALE", "en")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sma_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AUTH_ENABLED", false)
	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GRID_FIRST_SLOT_START", "07:00")
	v.SetDefault("GRID_LAST_SLOT_END", "15:00")
	v.SetDefault("GRID_PIXELS_PER_HOUR", 60)
	v.SetDefault("GRID_CONTENT_MIN_HEIGHT", 0)
	v.SetDefault("GRID_DAYS", "1,2,3,4,5")
	v.SetDefault("GRID_CACHE_ENABLED", false)
	v.SetDefault("GRID_CACHE_TTL", "5m")
	v.SetDefault("GRID_REFRESH_WORKERS", 1)

	v.SetDefault("WRITE_RATE_PER_MINUTE", 60)
	v.SetDefault("WRITE_RATE_BURST", 10)
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

// parseDays reads a comma separated list of weekday indexes, skipping junk
// and repeats. The first occurrence of a day fixes its column position.
func parseDays(raw string) []int {
	var days []int
	seen := make(map[int]bool, 7)
	for _, part := range splitAndTrim(raw) {
		day, err := strconv.Atoi(part)
		if err != nil || day < 0 || day > 6 || seen[day] {
			continue
		}
		seen[day] = true
		days = append(days, day)
	}
	return days
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
