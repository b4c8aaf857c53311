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

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Scoring       ScoringConfig
	RateLimit     RateLimitConfig
	Anomaly       AnomalyConfig
	Normalization NormalizationConfig
	Leaderboard   LeaderboardConfig
	Exports       ExportsConfig
	Accounts      ServiceAccountsConfig
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

// ScoringConfig tunes the point calculation engine.
type ScoringConfig struct {
	UsageStore   string // "memory" or "redis"
	UsageTTL     time.Duration
	FallbackBase int
	RepeatFactor float64
}

// RateLimitConfig holds the default limiter window; per-activity overrides
// live in the activity table.
type RateLimitConfig struct {
	Window           time.Duration
	MaxPointsPerHour int
	DefaultCooldown  time.Duration
	MaxPerInstance   int
}

// AnomalyConfig carries the detection thresholds.
type AnomalyConfig struct {
	MaxPointsPerEvent       int
	MaxPointsPerWindow      int
	RateWindow              time.Duration
	OutlierThreshold        float64
	MinEventsForAnalysis    int
	MaxDailyIncreasePercent float64
	SchoolHoursStart        int
	SchoolHoursEnd          int
}

// NormalizationConfig controls score normalization adjustments.
type NormalizationConfig struct {
	TermLookback time.Duration
}

// LeaderboardConfig governs leaderboard exposure and cache tuning.
type LeaderboardConfig struct {
	Enabled  bool
	CacheTTL time.Duration
}

// ExportsConfig configures asynchronous leaderboard exports.
type ExportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// ServiceAccountsConfig lists callers allowed to request tokens, as
// comma-separated "clientID:bcryptHash:role" triples.
type ServiceAccountsConfig struct {
	Entries []string
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

	cfg.Scoring = ScoringConfig{
		UsageStore:   v.GetString("SCORING_USAGE_STORE"),
		UsageTTL:     parseDuration(v.GetString("SCORING_USAGE_TTL"), 8*24*time.Hour),
		FallbackBase: v.GetInt("SCORING_FALLBACK_BASE_POINTS"),
		RepeatFactor: v.GetFloat64("SCORING_REPEAT_FACTOR"),
	}

	cfg.RateLimit = RateLimitConfig{
		Window:           parseDuration(v.GetString("RATE_LIMIT_WINDOW"), time.Hour),
		MaxPointsPerHour: v.GetInt("RATE_LIMIT_MAX_POINTS"),
		DefaultCooldown:  parseDuration(v.GetString("RATE_LIMIT_DEFAULT_COOLDOWN"), 5*time.Minute),
		MaxPerInstance:   v.GetInt("RATE_LIMIT_MAX_PER_INSTANCE"),
	}

	cfg.Anomaly = AnomalyConfig{
		MaxPointsPerEvent:       v.GetInt("ANOMALY_MAX_POINTS_PER_EVENT"),
		MaxPointsPerWindow:      v.GetInt("ANOMALY_MAX_POINTS_PER_WINDOW"),
		RateWindow:              parseDuration(v.GetString("ANOMALY_RATE_WINDOW"), time.Hour),
		OutlierThreshold:        v.GetFloat64("ANOMALY_OUTLIER_THRESHOLD"),
		MinEventsForAnalysis:    v.GetInt("ANOMALY_MIN_EVENTS"),
		MaxDailyIncreasePercent: v.GetFloat64("ANOMALY_MAX_DAILY_INCREASE_PCT"),
		SchoolHoursStart:        v.GetInt("ANOMALY_SCHOOL_HOURS_START"),
		SchoolHoursEnd:          v.GetInt("ANOMALY_SCHOOL_HOURS_END"),
	}

	cfg.Normalization = NormalizationConfig{
		TermLookback: parseDuration(v.GetString("NORMALIZATION_TERM_LOOKBACK"), 4*30*24*time.Hour),
	}

	cfg.Leaderboard = LeaderboardConfig{
		Enabled:  v.GetBool("ENABLE_LEADERBOARD"),
		CacheTTL: parseDuration(v.GetString("LEADERBOARD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Exports = ExportsConfig{
		Enabled:           v.GetBool("ENABLE_EXPORTS"),
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
	}

	cfg.Accounts = ServiceAccountsConfig{
		Entries: splitAndTrim(v.GetString("SERVICE_ACCOUNTS")),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8081)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sma_rewards")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "sma-rewards-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCORING_USAGE_STORE", "memory")
	v.SetDefault("SCORING_USAGE_TTL", "192h")
	v.SetDefault("SCORING_FALLBACK_BASE_POINTS", 10)
	v.SetDefault("SCORING_REPEAT_FACTOR", 0.5)

	v.SetDefault("RATE_LIMIT_WINDOW", "1h")
	v.SetDefault("RATE_LIMIT_MAX_POINTS", 500)
	v.SetDefault("RATE_LIMIT_DEFAULT_COOLDOWN", "5m")
	v.SetDefault("RATE_LIMIT_MAX_PER_INSTANCE", 100)

	v.SetDefault("ANOMALY_MAX_POINTS_PER_EVENT", 500)
	v.SetDefault("ANOMALY_MAX_POINTS_PER_WINDOW", 1000)
	v.SetDefault("ANOMALY_RATE_WINDOW", "1h")
	v.SetDefault("ANOMALY_OUTLIER_THRESHOLD", 3.0)
	v.SetDefault("ANOMALY_MIN_EVENTS", 10)
	v.SetDefault("ANOMALY_MAX_DAILY_INCREASE_PCT", 200.0)
	v.SetDefault("ANOMALY_SCHOOL_HOURS_START", 7)
	v.SetDefault("ANOMALY_SCHOOL_HOURS_END", 18)

	v.SetDefault("NORMALIZATION_TERM_LOOKBACK", "2880h")

	v.SetDefault("ENABLE_LEADERBOARD", true)
	v.SetDefault("LEADERBOARD_CACHE_TTL", "5m")

	v.SetDefault("ENABLE_EXPORTS", false)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)

	v.SetDefault("SERVICE_ACCOUNTS", "")
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
