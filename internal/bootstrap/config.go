package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"discussion-room/internal/agenda"
)

// 支持的房间存储后端
const (
	StoreRedis  = "redis"
	StoreMySQL  = "mysql"
	StoreSQLite = "sqlite"
)

// Config 结构体用于存储从环境变量或 .env 文件加载的配置
type Config struct {
	ServerPort string
	AppEnv     string // development / production
	LogLevel   string

	StoreBackend  string // redis / mysql / sqlite
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string // Redis Key 前缀
	DBUser        string
	DBPassword    string
	DBHost        string
	DBPort        string
	DBName        string
	SQLitePath    string
	TxMaxRetries  int

	CORSAllowedOrigins []string
	RateLimitMax       int
	RateLimitWindow    time.Duration

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	AgendaTimeout time.Duration

	RoomMaxAge        time.Duration // 为 0 时不注册清理任务
	RoomSweepSchedule string        // asynq cron 表达式，例如 "@every 10m"
	BroadcastRelay    bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", StoreRedis)
	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "dr:")
	v.SetDefault("DB_HOST", "127.0.0.1")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_NAME", "discussion_room")
	v.SetDefault("SQLITE_PATH", "discussion_room.db")
	v.SetDefault("TX_MAX_RETRIES", 5)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_MAX", 100)
	v.SetDefault("RATE_LIMIT_WINDOW", "1s")
	v.SetDefault("GEMINI_MODEL", agenda.DefaultModel)
	v.SetDefault("GEMINI_BASE_URL", agenda.DefaultBaseURL)
	v.SetDefault("AGENDA_TIMEOUT", agenda.DefaultTimeout.String())
	v.SetDefault("ROOM_SWEEP_SCHEDULE", "@every 10m")
	v.SetDefault("BROADCAST_RELAY", false)
}

// LoadConfig 先加载 .env 文件，再从环境变量读取配置。
// envFile 为空时尝试加载当前目录下的 .env，不存在也不报错。
func LoadConfig(envFile string) (*Config, error) {
	if envFile == "" {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFile); err != nil {
		return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		ServerPort:         v.GetString("SERVER_PORT"),
		AppEnv:             v.GetString("APP_ENV"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		StoreBackend:       strings.ToLower(v.GetString("STORE_BACKEND")),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		KeyPrefix:          v.GetString("REDIS_KEY_PREFIX"),
		DBUser:             v.GetString("DB_USER"),
		DBPassword:         v.GetString("DB_PASSWORD"),
		DBHost:             v.GetString("DB_HOST"),
		DBPort:             v.GetString("DB_PORT"),
		DBName:             v.GetString("DB_NAME"),
		SQLitePath:         v.GetString("SQLITE_PATH"),
		TxMaxRetries:       v.GetInt("TX_MAX_RETRIES"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		RateLimitMax:       v.GetInt("RATE_LIMIT_MAX"),
		RateLimitWindow:    v.GetDuration("RATE_LIMIT_WINDOW"),
		GeminiAPIKey:       v.GetString("GEMINI_API_KEY"),
		GeminiModel:        v.GetString("GEMINI_MODEL"),
		GeminiBaseURL:      v.GetString("GEMINI_BASE_URL"),
		AgendaTimeout:      v.GetDuration("AGENDA_TIMEOUT"),
		RoomSweepSchedule:  v.GetString("ROOM_SWEEP_SCHEDULE"),
		BroadcastRelay:     v.GetBool("BROADCAST_RELAY"),
	}
	// 清理任务默认关闭，只有显式配置 ROOM_MAX_AGE 才启用
	if raw := v.GetString("ROOM_MAX_AGE"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("ROOM_MAX_AGE must be a positive duration, got %q", raw)
		}
		cfg.RoomMaxAge = d
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case StoreRedis, StoreMySQL, StoreSQLite:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of redis, mysql, sqlite, got %q", c.StoreBackend)
	}
	// 限流、清理任务和跨实例广播都依赖 Redis
	if c.RedisAddr == "" {
		return fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if c.StoreBackend == StoreMySQL && c.DBUser == "" {
		return fmt.Errorf("environment variable DB_USER must be set for the mysql store")
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	if c.AgendaTimeout <= 0 {
		return fmt.Errorf("AGENDA_TIMEOUT must be a positive duration")
	}
	if c.RoomMaxAge < 0 {
		return fmt.Errorf("ROOM_MAX_AGE must not be negative")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", c.LogLevel)
		c.LogLevel = "info"
	}
	if c.GeminiAPIKey == "" {
		logrus.Warn("GEMINI_API_KEY is not set, agenda generation requests will fail")
	}
	return nil
}

// splitList 解析逗号分隔的列表，忽略空项
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
