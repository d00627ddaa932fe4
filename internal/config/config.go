// Package config loads application configuration from the environment and an
// optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
)

type Config struct {
	Environment    string   `mapstructure:"ENV"`
	Port           string   `mapstructure:"PORT"`
	Host           string   `mapstructure:"HOST"`
	FrontendURL    string   `mapstructure:"FRONTEND_URL"`
	AllowedOrigins []string `mapstructure:"-"`
	MetricsAddr    string   `mapstructure:"METRICS_ADDR"`

	JWTSecret     string        `mapstructure:"JWT_SECRET"`
	JWTIssuer     string        `mapstructure:"JWT_ISSUER"`
	SessionTTL    time.Duration `mapstructure:"SESSION_TTL"`
	EncryptionKey string        `mapstructure:"ENCRYPTION_KEY"`

	StoreDriver string `mapstructure:"STORE_DRIVER"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	PostgresURI string `mapstructure:"POSTGRES_URI"`
	RedisURI    string `mapstructure:"REDIS_URI"`

	TwitterClientID     string `mapstructure:"TWITTER_CLIENT_ID"`
	TwitterClientSecret string `mapstructure:"TWITTER_CLIENT_SECRET"`
	TwitterRedirectURL  string `mapstructure:"TWITTER_REDIRECT_URL"`
	TwitterAPIBaseURL   string `mapstructure:"TWITTER_API_BASE_URL"`

	YouTubeAPIKey   string        `mapstructure:"YOUTUBE_API_KEY"`
	HFAPIToken      string        `mapstructure:"HF_API_TOKEN"`
	HFModel         string        `mapstructure:"HF_MODEL"`
	HFAPIBaseURL    string        `mapstructure:"HF_API_BASE_URL"`
	ArxivAPIURL     string        `mapstructure:"ARXIV_API_URL"`
	UpstreamTimeout time.Duration `mapstructure:"UPSTREAM_TIMEOUT"`

	CloudinaryName      string `mapstructure:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `mapstructure:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `mapstructure:"CLOUDINARY_API_SECRET"`
}

const defaultJWTSecret = "your-secret-key-change-in-production"

// Load reads .env (if present), then builds and validates Config from the
// environment. Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", "5000")
	v.SetDefault("HOST", "http://localhost:5000")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("METRICS_ADDR", "127.0.0.1:9090")
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_ISSUER", "agentdesk")
	v.SetDefault("SESSION_TTL", "720h") // 30 days
	v.SetDefault("ENCRYPTION_KEY", "")
	v.SetDefault("STORE_DRIVER", StoreMongo)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/agentdesk")
	v.SetDefault("POSTGRES_URI", "postgres://localhost:5432/agentdesk?sslmode=disable")
	v.SetDefault("REDIS_URI", "redis://localhost:6379/0")
	v.SetDefault("TWITTER_CLIENT_ID", "")
	v.SetDefault("TWITTER_CLIENT_SECRET", "")
	v.SetDefault("TWITTER_REDIRECT_URL", "http://localhost:5000/api/auth/twitter/callback")
	v.SetDefault("TWITTER_API_BASE_URL", "https://api.twitter.com")
	v.SetDefault("YOUTUBE_API_KEY", "")
	v.SetDefault("HF_API_TOKEN", "")
	v.SetDefault("HF_MODEL", "gpt2")
	v.SetDefault("HF_API_BASE_URL", "https://api-inference.huggingface.co")
	v.SetDefault("ARXIV_API_URL", "http://export.arxiv.org/api/query")
	v.SetDefault("UPSTREAM_TIMEOUT", "30s")
	v.SetDefault("CLOUDINARY_CLOUD_NAME", "")
	v.SetDefault("CLOUDINARY_API_KEY", "")
	v.SetDefault("CLOUDINARY_API_SECRET", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if strings.EqualFold(strings.TrimSpace(cfg.MetricsAddr), "off") {
		cfg.MetricsAddr = ""
	}
	cfg.AllowedOrigins = parseOrigins(v.GetString("ALLOWED_ORIGINS"))
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{strings.TrimRight(cfg.FrontendURL, "/")}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreMongo, StorePostgres:
	default:
		return fmt.Errorf("config: STORE_DRIVER must be %q or %q, got %q", StoreMongo, StorePostgres, c.StoreDriver)
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}
	if c.UpstreamTimeout <= 0 {
		return errors.New("config: UPSTREAM_TIMEOUT must be positive")
	}
	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret || len(c.JWTSecret) < 32 {
			return errors.New("config: JWT_SECRET must be set to at least 32 bytes in production")
		}
	}
	return nil
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimRight(strings.TrimSpace(part), "/")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// TwitterEnabled reports whether OAuth client credentials are configured.
func (c *Config) TwitterEnabled() bool {
	return c.TwitterClientID != ""
}

// CloudinaryEnabled reports whether avatar uploads can be served.
func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}
