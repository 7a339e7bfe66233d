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

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	OpenAI   OpenAIConfig
	Lesson   LessonConfig
	Drafts   DraftsConfig
	Cache    CacheConfig
	Reports  ReportsConfig
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

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// OpenAIConfig configures the feedback generator backend.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// LessonConfig locates the curriculum context injected into prompts.
type LessonConfig struct {
	StandardPath string
	LessonID     string
	Grade        string
	Semester     string
	Subject      string
	Language     string
}

// DraftsConfig tunes the background drafting queue.
type DraftsConfig struct {
	WorkerConcurrency int
	QueueBuffer       int
	MaxRetries        int
	RetryDelay        time.Duration
	RecoveryLimit     int
}

// CacheConfig governs essay listing cache behaviour.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// ReportsConfig controls rendered feedback report storage. RetentionTTL zero
// disables the retention sweep.
type ReportsConfig struct {
	StorageDir      string
	FontPath        string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	RetentionTTL    time.Duration
}

// defaultSignedURLSecret only protects local development. Production must
// supply its own secret or the server refuses to start.
const defaultSignedURLSecret = "dev_reports_secret"

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

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.OpenAI = OpenAIConfig{
		APIKey:      v.GetString("OPENAI_API_KEY"),
		BaseURL:     v.GetString("OPENAI_BASE_URL"),
		Model:       v.GetString("OPENAI_MODEL"),
		Temperature: v.GetFloat64("OPENAI_TEMPERATURE"),
		MaxTokens:   v.GetInt("OPENAI_MAX_TOKENS"),
		Timeout:     parseDuration(v.GetString("OPENAI_TIMEOUT"), 90*time.Second),
	}

	cfg.Lesson = LessonConfig{
		StandardPath: v.GetString("LESSON_STANDARD_PATH"),
		LessonID:     v.GetString("LESSON_ID"),
		Grade:        v.GetString("LESSON_GRADE"),
		Semester:     v.GetString("LESSON_SEMESTER"),
		Subject:      v.GetString("LESSON_SUBJECT"),
		Language:     v.GetString("LESSON_LANGUAGE"),
	}

	cfg.Drafts = DraftsConfig{
		WorkerConcurrency: v.GetInt("DRAFT_WORKER_CONCURRENCY"),
		QueueBuffer:       v.GetInt("DRAFT_QUEUE_BUFFER"),
		MaxRetries:        v.GetInt("DRAFT_MAX_RETRIES"),
		RetryDelay:        parseDuration(v.GetString("DRAFT_RETRY_DELAY"), 5*time.Second),
		RecoveryLimit:     v.GetInt("DRAFT_RECOVERY_LIMIT"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 30*time.Second),
	}

	cfg.Reports = ReportsConfig{
		StorageDir:      v.GetString("REPORTS_STORAGE_DIR"),
		FontPath:        v.GetString("REPORTS_FONT_PATH"),
		SignedURLSecret: v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		RetentionTTL:    parseDuration(v.GetString("REPORTS_RETENTION_TTL"), 720*time.Hour),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Env == EnvProduction {
		if c.Reports.SignedURLSecret == "" || c.Reports.SignedURLSecret == defaultSignedURLSecret {
			return errors.New("REPORTS_SIGNED_URL_SECRET must be set to a non-default value in production")
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "essay_feedback")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_BASE_URL", "")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI_TEMPERATURE", 0.7)
	v.SetDefault("OPENAI_MAX_TOKENS", 2000)
	v.SetDefault("OPENAI_TIMEOUT", "90s")

	v.SetDefault("LESSON_STANDARD_PATH", "./lesson_standard.json")
	v.SetDefault("LESSON_ID", "")
	v.SetDefault("LESSON_GRADE", "elementary-5")
	v.SetDefault("LESSON_SEMESTER", "2")
	v.SetDefault("LESSON_SUBJECT", "korean")
	v.SetDefault("LESSON_LANGUAGE", "ko")

	v.SetDefault("DRAFT_WORKER_CONCURRENCY", 2)
	v.SetDefault("DRAFT_QUEUE_BUFFER", 32)
	v.SetDefault("DRAFT_MAX_RETRIES", 0)
	v.SetDefault("DRAFT_RETRY_DELAY", "5s")
	v.SetDefault("DRAFT_RECOVERY_LIMIT", 50)

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "30s")

	v.SetDefault("REPORTS_STORAGE_DIR", "./reports")
	v.SetDefault("REPORTS_FONT_PATH", "")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", defaultSignedURLSecret)
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("REPORTS_RETENTION_TTL", "720h")
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
