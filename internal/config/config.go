package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultJWTSecret = "dev-secret-change-me"

type Config struct {
	Port                   string   `yaml:"port"`
	DatabaseDSN            string   `yaml:"database_dsn"`
	JWTSecret              string   `yaml:"jwt_secret"`
	Env                    string   `yaml:"env"`
	LogLevel               string   `yaml:"log_level"`
	AccessTokenTTLMinutes  int      `yaml:"access_token_ttl_minutes"`
	RefreshTokenTTLDays    int      `yaml:"refresh_token_ttl_days"`
	ChannelLayer           string   `yaml:"channel_layer"`
	RedisAddr              string   `yaml:"redis_addr"`
	NATSURL                string   `yaml:"nats_url"`
	ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds"`
	WSSendBuffer           int      `yaml:"ws_send_buffer"`
	WSEventsPerSecond      int      `yaml:"ws_events_per_second"`
	CORSAllowedOrigins     []string `yaml:"cors_allowed_origins"`
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// getenvInt 读取正整数环境变量，非法或非正数时回退到默认值。
func getenvInt(key string, def int) int {
	v, err := strconv.Atoi(getenv(key, strconv.Itoa(def)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func defaults() Config {
	return Config{
		Port:                   "8080",
		DatabaseDSN:            "host=localhost user=postgres password=postgres dbname=rentchat port=5432 sslmode=disable TimeZone=UTC",
		JWTSecret:              defaultJWTSecret,
		Env:                    "dev",
		LogLevel:               "info",
		AccessTokenTTLMinutes:  15,
		RefreshTokenTTLDays:    7,
		ChannelLayer:           "memory",
		RedisAddr:              "localhost:6379",
		NATSURL:                "nats://localhost:4222",
		ShutdownTimeoutSeconds: 30,
		WSSendBuffer:           256,
		WSEventsPerSecond:      20,
	}
}

// Load 先读取 APP_CONFIG 指定的 YAML 文件（可选），再用环境变量覆盖。
func Load() Config {
	cfg := defaults()
	if path := os.Getenv("APP_CONFIG"); path != "" {
		if fileCfg, err := LoadFile(path); err == nil {
			cfg = fileCfg
		}
	}
	cfg.Port = getenv("APP_PORT", cfg.Port)
	cfg.DatabaseDSN = getenv("DATABASE_DSN", cfg.DatabaseDSN)
	cfg.JWTSecret = getenv("JWT_SECRET", cfg.JWTSecret)
	cfg.Env = getenv("APP_ENV", cfg.Env)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.AccessTokenTTLMinutes = getenvInt("ACCESS_TOKEN_TTL_MINUTES", cfg.AccessTokenTTLMinutes)
	cfg.RefreshTokenTTLDays = getenvInt("REFRESH_TOKEN_TTL_DAYS", cfg.RefreshTokenTTLDays)
	cfg.ChannelLayer = getenv("CHANNEL_LAYER", cfg.ChannelLayer)
	cfg.RedisAddr = getenv("REDIS_ADDR", cfg.RedisAddr)
	cfg.NATSURL = getenv("NATS_URL", cfg.NATSURL)
	cfg.ShutdownTimeoutSeconds = getenvInt("SHUTDOWN_TIMEOUT_SECONDS", cfg.ShutdownTimeoutSeconds)
	cfg.WSSendBuffer = getenvInt("WS_SEND_BUFFER", cfg.WSSendBuffer)
	cfg.WSEventsPerSecond = getenvInt("WS_EVENTS_PER_SECOND", cfg.WSEventsPerSecond)
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = strings.Split(v, ",")
	}
	return cfg
}

// LoadFile 解析 YAML 配置文件，未出现的字段保留默认值。
func LoadFile(path string) (Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Validate 检查启动所需的关键配置，非 dev 环境禁止使用默认密钥。
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("port is required")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("database dsn is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("jwt secret is required")
	}
	if cfg.Env != "dev" && cfg.JWTSecret == defaultJWTSecret {
		return errors.New("default jwt secret is not allowed outside dev")
	}
	switch cfg.ChannelLayer {
	case "", "memory", "redis", "nats":
	default:
		return fmt.Errorf("unknown channel layer %q", cfg.ChannelLayer)
	}
	return nil
}
