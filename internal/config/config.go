package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Upstream  UpstreamConfig  `json:"upstream"`
	Access    AccessConfig    `json:"access"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Auth      AuthConfig      `json:"auth"`
	AppConfig AppConfigConfig `json:"app_config"`
	Redis     RedisConfig     `json:"redis"`
	Postgres  PostgresConfig  `json:"postgres"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

type UpstreamConfig struct {
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"-"` // from env only, never serialized
	TimeoutSeconds int    `json:"timeout_seconds"`
	BackoffSeconds int    `json:"backoff_seconds"`
	MaxAttempts    int    `json:"max_attempts"`
}

type AccessConfig struct {
	AllowedApps      []string `json:"allowed_apps"`
	ExposedEndpoints []string `json:"exposed_endpoints"`
}

type RateLimitConfig struct {
	General   TierConfig `json:"general"`
	Burst     TierConfig `json:"burst"`
	Sustained TierConfig `json:"sustained"`

	// When true, a failed upstream call refunds the admission charge.
	// Default false: admission cost is charged regardless of outcome.
	SkipFailedRequests bool `json:"skip_failed_requests"`
}

type TierConfig struct {
	WindowSeconds int `json:"window_seconds"`
	Limit         int `json:"limit"`
}

func (t TierConfig) Window() time.Duration {
	return time.Duration(t.WindowSeconds) * time.Second
}

type AuthConfig struct {
	AdminEmail        string `json:"admin_email"`
	AdminPasswordHash string `json:"-"` // bcrypt hash, from env only
	JWTSecret         string `json:"-"` // from env only
	TokenExpiryHours  int    `json:"token_expiry_hours"`
}

type AppConfigConfig struct {
	Path string `json:"path"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

func (r RedisConfig) GetRedisAddr() string {
	return r.Host + ":" + r.Port
}

type PostgresConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"-"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// Load reads config.json (if present), fills defaults for anything absent,
// then applies env overrides for secrets.
func Load(path string) (*Config, error) {
	config := Default()

	file, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	config.applyEnv()

	return config, nil
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "3000",
			Environment: "development",
		},
		Upstream: UpstreamConfig{
			BaseURL:        "https://api.neoxr.my.id/api",
			TimeoutSeconds: 30,
			BackoffSeconds: 2,
			MaxAttempts:    2,
		},
		Access: AccessConfig{
			AllowedApps: []string{"com.mever.android", "com.mever.ios"},
			ExposedEndpoints: []string{
				"/api/facebook", "/api/instagram", "/api/tiktok", "/api/twitter",
				"/api/pinterest", "/api/spotify", "/api/terabox", "/api/threads",
				"/api/generic-video", "/api/youtube",
				"/api/meta", "/api/image-search",
				"/api/app-config", "/api/auth-check",
			},
		},
		RateLimit: RateLimitConfig{
			General:   TierConfig{WindowSeconds: 60, Limit: 200},
			Burst:     TierConfig{WindowSeconds: 20, Limit: 10},
			Sustained: TierConfig{WindowSeconds: 60, Limit: 30},
		},
		Auth: AuthConfig{
			AdminEmail:       "admin@mever.app",
			TokenExpiryHours: 24,
		},
		AppConfig: AppConfigConfig{
			Path: "app-config.json",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: "6379",
		},
		Postgres: PostgresConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "gateway",
			DBName:  "gateway",
			SSLMode: "disable",
		},
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("UPSTREAM_API_KEY"); v != "" {
		c.Upstream.APIKey = v
	}
	if v := os.Getenv("UPSTREAM_BASE_URL"); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_PASSWORD_HASH"); v != "" {
		c.Auth.AdminPasswordHash = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		c.Postgres.Password = v
	}
}
