package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Razorpay RazorpayConfig
	Telegram TelegramConfig
	Redis    RedisConfig
	Sweep    SweepConfig
	Admin    AdminConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

// RazorpayConfig holds the API key pair plus the webhook signing secret.
// CallbackURL is the public browser-redirect endpoint, e.g.
// https://yourdomain.com/api/v1/payments/callback.
type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	CallbackURL   string
}

type TelegramConfig struct {
	Token string
	Debug bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SweepConfig struct {
	Interval      time.Duration
	LookbackHours int
}

// AdminConfig seeds the dashboard admin account on first boot.
type AdminConfig struct {
	Email    string
	Password string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         envStr("PORT", "8080"),
			Env:          envStr("APP_ENV", "development"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             envStr("DATABASE_DSN", "jobly:jobly@tcp(localhost:3306)/jobly?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret: envStr("JWT_ACCESS_SECRET", "change-me-in-production"),
			AccessExpiry: envDuration("JWT_ACCESS_EXPIRY", 24*time.Hour),
			Issuer:       "jobly",
		},
		Razorpay: RazorpayConfig{
			KeyID:         envStr("RAZORPAY_KEY_ID", ""),
			KeySecret:     envStr("RAZORPAY_KEY_SECRET", ""),
			WebhookSecret: envStr("RAZORPAY_WEBHOOK_SECRET", ""),
			CallbackURL:   envStr("RAZORPAY_CALLBACK_URL", "http://localhost:8080/api/v1/payments/callback"),
		},
		Telegram: TelegramConfig{
			Token: envStr("TELEGRAM_BOT_TOKEN", ""),
			Debug: envStr("TELEGRAM_DEBUG", "") == "true",
		},
		Redis: RedisConfig{
			Addr:     envStr("REDIS_ADDR", "localhost:6379"),
			Password: envStr("REDIS_PASSWORD", ""),
			DB:       envInt("REDIS_DB", 0),
		},
		Sweep: SweepConfig{
			Interval:      envDuration("SWEEP_INTERVAL", time.Hour),
			LookbackHours: envInt("SWEEP_LOOKBACK_HOURS", 24),
		},
		Admin: AdminConfig{
			Email:    envStr("ADMIN_EMAIL", "admin@jobly.local"),
			Password: envStr("ADMIN_PASSWORD", ""),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
