package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Redis     RedisConfig
	Cache     CacheConfig `mapstructure:"cache"`
	Storage   StorageConfig
	Tracing   TracingConfig   `mapstructure:"tracing"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Mail      MailConfig      `mapstructure:"mail"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Attempt   AttemptConfig   `mapstructure:"attempt"`
	App       AppConfig       `mapstructure:"app"`
	Log       LogConfig       `mapstructure:"log"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver    string `mapstructure:"driver"` // mysql / postgres / sqlite
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
	SSLMode   string `mapstructure:"sslmode"`
	Path      string `mapstructure:"path"` // sqlite 文件路径
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type RedisConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	Host           string
	Port           int
	Password       string
	DB             int
	PoolSize       int `mapstructure:"pool_size"`
	MinIdleConns   int `mapstructure:"min_idle_conns"`
	DialTimeoutSec int `mapstructure:"dial_timeout_seconds"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (r RedisConfig) DialTimeout() time.Duration {
	if r.DialTimeoutSec <= 0 {
		return 3 * time.Second
	}
	return time.Duration(r.DialTimeoutSec) * time.Second
}

// LogConfig 日志文件与轮转设置，level 为空时按 server.mode 决定
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type CacheConfig struct {
	Prefix              string `mapstructure:"prefix"`
	AvailableQuizTTLSec int    `mapstructure:"available_quiz_ttl_seconds"`
}

func (c CacheConfig) AvailableQuizTTL() time.Duration {
	if c.AvailableQuizTTLSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.AvailableQuizTTLSec) * time.Second
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
}

// SchedulerConfig 使用标准 cron 表达式（分 时 日 月 周）
type SchedulerConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	DailyReminderSpec string `mapstructure:"daily_reminder_spec"`
	MonthlyReportSpec string `mapstructure:"monthly_report_spec"`
	ExpirySweepSpec   string `mapstructure:"expiry_sweep_spec"`
	ExportCleanupSpec string `mapstructure:"export_cleanup_spec"`
}

type AttemptConfig struct {
	ExpiryEnabled      bool `mapstructure:"expiry_enabled"`
	ExpiryGraceMinutes int  `mapstructure:"expiry_grace_minutes"`
}

type AppConfig struct {
	Name          string `mapstructure:"name"`
	URL           string `mapstructure:"url"`
	Timezone      string `mapstructure:"timezone"`
	AdminUsername string `mapstructure:"admin_username"`
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

// Location 返回排期计算所用时区，未配置或无效时使用本地时区
func (a AppConfig) Location() *time.Location {
	if a.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "quiz_master.db")
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("redis.pool_size", 50)
	v.SetDefault("redis.min_idle_conns", 5)
	v.SetDefault("redis.dial_timeout_seconds", 3)
	v.SetDefault("log.path", "logs/quiz_master.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("cache.prefix", "quiz_master")
	v.SetDefault("cache.available_quiz_ttl_seconds", 60)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "storage")
	v.SetDefault("rate_limit.max_requests", 600)
	v.SetDefault("rate_limit.window_minutes", 1)
	v.SetDefault("mail.port", 1025)
	v.SetDefault("mail.from", "noreply@quizmaster.com")
	v.SetDefault("mail.from_name", "Quiz Master")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.daily_reminder_spec", "0 18 * * *")
	v.SetDefault("scheduler.monthly_report_spec", "0 9 1 * *")
	v.SetDefault("scheduler.expiry_sweep_spec", "*/5 * * * *")
	v.SetDefault("scheduler.export_cleanup_spec", "0 * * * *")
	v.SetDefault("attempt.expiry_grace_minutes", 5)
	v.SetDefault("app.name", "Quiz Master")
	v.SetDefault("app.url", "http://localhost:5173")
	v.SetDefault("app.admin_username", "admin")
	v.SetDefault("app.admin_email", "admin@gmail.com")
}

func LoadConfig(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("QUIZ_MASTER")
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET_KEY")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("log.level", "LOG_LEVEL")

	// Mail
	v.BindEnv("mail.host", "SMTP_SERVER")
	v.BindEnv("mail.port", "SMTP_PORT")
	v.BindEnv("mail.from", "SENDER_EMAIL")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// App
	v.BindEnv("app.url", "APP_URL")
	v.BindEnv("app.admin_password", "ADMIN_PASSWORD")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}
