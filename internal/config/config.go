package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings sourced from environment variables.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Export   ExportConfig   `mapstructure:"export"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Log      LogConfig      `mapstructure:"log"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig 描述持久化后端。Driver 为 postgres、sqlite 或 memory。
type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Name       string `mapstructure:"name"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	SSLMode    string `mapstructure:"sslmode"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	PublicEndpoint   string `mapstructure:"public_endpoint"`
	Region           string `mapstructure:"region"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	PublicUseSSL     bool   `mapstructure:"public_use_ssl"`
	Bucket           string `mapstructure:"bucket"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// AuthConfig 包含 JWT 与登录限流配置。
type AuthConfig struct {
	PrivateKeyPath   string        `mapstructure:"private_key_path"`
	PublicKeyPath    string        `mapstructure:"public_key_path"`
	AccessTokenTTL   time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL  time.Duration `mapstructure:"refresh_token_ttl"`
	LoginRateLimit   int64         `mapstructure:"login_rate_limit"`
	LoginRateWindow  time.Duration `mapstructure:"login_rate_window"`
	LoginMaxFailures int64         `mapstructure:"login_max_failures"`
	LoginLockTTL     time.Duration `mapstructure:"login_lock_ttl"`
	CookieDomain     string        `mapstructure:"cookie_domain"`
	CookieSecure     bool          `mapstructure:"cookie_secure"`
}

// ExportConfig 控制导出任务与下载链接。
type ExportConfig struct {
	PDFEngine         string        `mapstructure:"pdf_engine"`
	PresignTTL        time.Duration `mapstructure:"presign_ttl"`
	MaxRetry          int           `mapstructure:"max_retry"`
	WorkerConcurrency int           `mapstructure:"worker_concurrency"`
	RenderTimeout     time.Duration `mapstructure:"render_timeout"`

	// MetricsAddr 为空时 worker 不暴露 /metrics
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// UploadConfig controls photo uploads.
type UploadConfig struct {
	ClamdAddr string `mapstructure:"clamd_addr"`
	MaxBytes  int64  `mapstructure:"max_bytes"`
}

// LogConfig 日志级别：debug / info / warn / error。
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// PDF engines.
const (
	PDFEngineNative   = "native"
	PDFEngineChromium = "chromium"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// viper 对逗号分隔的环境变量不会自动拆分
	cfg.API.AllowedOrigins = splitList(cfg.API.AllowedOrigins)
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	cfg.Export.PDFEngine = strings.ToLower(strings.TrimSpace(cfg.Export.PDFEngine))

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.allowed_origins", []string{})
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "ebookgen")
	v.SetDefault("database.user", "ebookgen")
	v.SetDefault("database.password", "ebookgen")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.sqlite_path", "ebookgen.db")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.region", "us-east-1")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "ebooks")
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("auth.private_key_path", "keys/jwt_private.pem")
	v.SetDefault("auth.public_key_path", "keys/jwt_public.pem")
	v.SetDefault("auth.access_token_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.login_rate_limit", 20)
	v.SetDefault("auth.login_rate_window", time.Minute)
	v.SetDefault("auth.login_max_failures", 5)
	v.SetDefault("auth.login_lock_ttl", 15*time.Minute)
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("export.pdf_engine", PDFEngineNative)
	v.SetDefault("export.presign_ttl", 15*time.Minute)
	v.SetDefault("export.max_retry", 3)
	v.SetDefault("export.worker_concurrency", 4)
	v.SetDefault("export.render_timeout", 60*time.Second)
	v.SetDefault("upload.max_bytes", 10<<20)
	v.SetDefault("log.level", "info")
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                  "API_PORT",
		"api.allowed_origins":       "API_ALLOWED_ORIGINS",
		"database.driver":           "DATABASE_DRIVER",
		"database.host":             "DATABASE_HOST",
		"database.port":             "DATABASE_PORT",
		"database.name":             "POSTGRES_DB",
		"database.user":             "POSTGRES_USER",
		"database.password":         "POSTGRES_PASSWORD",
		"database.sslmode":          "DATABASE_SSLMODE",
		"database.sqlite_path":      "DATABASE_SQLITE_PATH",
		"redis.host":                "REDIS_HOST",
		"redis.port":                "REDIS_PORT",
		"redis.password":            "REDIS_PASSWORD",
		"minio.endpoint":            "MINIO_ENDPOINT",
		"minio.public_endpoint":     "MINIO_PUBLIC_ENDPOINT",
		"minio.region":              "MINIO_REGION",
		"minio.access_key_id":       "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":   "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":             "MINIO_USE_SSL",
		"minio.public_use_ssl":      "MINIO_PUBLIC_USE_SSL",
		"minio.bucket":              "MINIO_BUCKET",
		"minio.bucket_lookup":       "MINIO_BUCKET_LOOKUP",
		"minio.auto_create_bucket":  "MINIO_AUTO_CREATE_BUCKET",
		"auth.private_key_path":     "JWT_PRIVATE_KEY_PATH",
		"auth.public_key_path":      "JWT_PUBLIC_KEY_PATH",
		"auth.access_token_ttl":     "JWT_ACCESS_TOKEN_TTL",
		"auth.refresh_token_ttl":    "JWT_REFRESH_TOKEN_TTL",
		"auth.login_rate_limit":     "AUTH_LOGIN_RATE_LIMIT",
		"auth.login_rate_window":    "AUTH_LOGIN_RATE_WINDOW",
		"auth.login_max_failures":   "AUTH_LOGIN_MAX_FAILURES",
		"auth.login_lock_ttl":       "AUTH_LOGIN_LOCK_TTL",
		"auth.cookie_domain":        "AUTH_COOKIE_DOMAIN",
		"auth.cookie_secure":        "AUTH_COOKIE_SECURE",
		"export.pdf_engine":         "EXPORT_PDF_ENGINE",
		"export.presign_ttl":        "EXPORT_PRESIGN_TTL",
		"export.max_retry":          "EXPORT_MAX_RETRY",
		"export.worker_concurrency": "EXPORT_WORKER_CONCURRENCY",
		"export.metrics_addr":       "EXPORT_METRICS_ADDR",
		"export.render_timeout":     "EXPORT_RENDER_TIMEOUT",
		"upload.clamd_addr":         "CLAMD_ADDR",
		"upload.max_bytes":          "UPLOAD_MAX_BYTES",
		"log.level":                 "LOG_LEVEL",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	switch cfg.Database.Driver {
	case DriverPostgres:
		if cfg.Database.Host == "" {
			return errors.New("database host is required")
		}
		if cfg.Database.Port <= 0 {
			return errors.New("database port must be positive")
		}
		if cfg.Database.Name == "" {
			return errors.New("database name is required")
		}
		if cfg.Database.User == "" {
			return errors.New("database user is required")
		}
		if cfg.Database.Password == "" {
			return errors.New("database password is required")
		}
		if cfg.Database.SSLMode == "" {
			return errors.New("database sslmode is required")
		}
	case DriverSQLite:
		if cfg.Database.SQLitePath == "" {
			return errors.New("database sqlite path is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	if cfg.Auth.AccessTokenTTL <= 0 || cfg.Auth.RefreshTokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	if cfg.Export.PDFEngine != PDFEngineNative && cfg.Export.PDFEngine != PDFEngineChromium {
		return fmt.Errorf("unsupported pdf engine %q", cfg.Export.PDFEngine)
	}
	if cfg.Export.MaxRetry < 0 {
		return errors.New("export max retry must not be negative")
	}
	if cfg.Export.WorkerConcurrency <= 0 {
		return errors.New("export worker concurrency must be positive")
	}
	if cfg.Upload.MaxBytes <= 0 {
		return errors.New("upload max bytes must be positive")
	}
	return nil
}
