package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Redis   RedisConfig
	NATS    NATSConfig
	Storage StorageConfig
	OpenAI  OpenAIConfig
	Quota   QuotaConfig
	Cache   CacheConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL string
}

type StorageConfig struct {
	AccountID       string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicURL       string
}

// Enabled reports whether report storage is configured at all.
func (c StorageConfig) Enabled() bool {
	return c.Bucket != ""
}

type OpenAIConfig struct {
	APIKey     string
	Model      string
	MaxTokens  int
	SOLUSDRate float64
	Timeout    time.Duration
}

type QuotaConfig struct {
	// System-wide admission ceilings across all users.
	GlobalPerMinute int
	GlobalPerHour   int
}

type CacheConfig struct {
	Capacity    int
	TTL         time.Duration
	DedupWindow time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		Storage: StorageConfig{
			AccountID:       k.String("storage.account.id"),
			Endpoint:        k.String("storage.endpoint"),
			AccessKeyID:     k.String("storage.access.key.id"),
			SecretAccessKey: k.String("storage.secret.access.key"),
			Bucket:          k.String("storage.bucket"),
			PublicURL:       k.String("storage.public.url"),
		},
		OpenAI: OpenAIConfig{
			APIKey:     k.String("openai.api.key"),
			Model:      k.String("openai.model"),
			MaxTokens:  k.Int("openai.max.tokens"),
			SOLUSDRate: k.Float64("openai.sol.usd.rate"),
		},
		Quota: QuotaConfig{
			GlobalPerMinute: k.Int("quota.global.per.minute"),
			GlobalPerHour:   k.Int("quota.global.per.hour"),
		},
		Cache: CacheConfig{
			Capacity: k.Int("cache.capacity"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "auditgate"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "auditgate"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.Quota.GlobalPerMinute == 0 {
		cfg.Quota.GlobalPerMinute = 100
	}
	if cfg.Quota.GlobalPerHour == 0 {
		cfg.Quota.GlobalPerHour = 10000
	}
	if cfg.Cache.Capacity == 0 {
		cfg.Cache.Capacity = 1000
	}
	if cfg.OpenAI.MaxTokens == 0 {
		cfg.OpenAI.MaxTokens = 2000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "debug"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	cfg.Cache.TTL, err = parseDuration(k.String("cache.ttl"), 72*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("parsing cache ttl: %w", err)
	}
	cfg.Cache.DedupWindow, err = parseDuration(k.String("cache.dedup.window"), 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("parsing dedup window: %w", err)
	}
	cfg.OpenAI.Timeout, err = parseDuration(k.String("openai.timeout"), 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("parsing openai timeout: %w", err)
	}

	return cfg, nil
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}
