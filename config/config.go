package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"stock-ledger/database"
)

const (
	ProviderHTTP         = "http"
	ProviderAlphaVantage = "alphavantage"

	minSecretLength = 32
)

type Config struct {
	DBHost     string `mapstructure:"db_host"`
	DBPort     int    `mapstructure:"db_port"`
	DBUser     string `mapstructure:"db_user"`
	DBPassword string `mapstructure:"db_password"`
	DBName     string `mapstructure:"db_name"`
	DBSSLMode  string `mapstructure:"db_sslmode"`
	DBTimeZone string `mapstructure:"db_timezone"`

	HTTPAddr           string   `mapstructure:"http_addr"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	JWTSecret       string        `mapstructure:"jwt_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`

	// Empty RedisAddr disables refresh tokens and the price cache.
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	MarketDataProvider string        `mapstructure:"market_data_provider"`
	MarketDataURL      string        `mapstructure:"market_data_url"`
	AlphaVantageAPIKey string        `mapstructure:"alpha_vantage_api_key"`
	MarketDataTimeout  time.Duration `mapstructure:"market_data_timeout"`
	PriceCacheTTL      time.Duration `mapstructure:"price_cache_ttl"`

	AdminUsername string `mapstructure:"admin_username"`
	AdminPassword string `mapstructure:"admin_password"`

	LogDebug bool `mapstructure:"log_debug"`
}

var defaults = map[string]interface{}{
	"db_host":               "localhost",
	"db_port":               5432,
	"db_user":               "postgres",
	"db_password":           "",
	"db_name":               "stock_ledger",
	"db_sslmode":            "disable",
	"db_timezone":           "UTC",
	"http_addr":             ":8080",
	"cors_allowed_origins":  []string{"http://localhost:3001"},
	"jwt_secret":            "",
	"access_token_ttl":      10 * time.Hour,
	"refresh_token_ttl":     7 * 24 * time.Hour,
	"redis_addr":            "",
	"redis_password":        "",
	"redis_db":              0,
	"market_data_provider":  ProviderHTTP,
	"market_data_url":       "http://localhost:8000",
	"alpha_vantage_api_key": "",
	"market_data_timeout":   30 * time.Second,
	"price_cache_ttl":       5 * time.Minute,
	"admin_username":        "admin",
	"admin_password":        "admin123",
	"log_debug":             false,
}

// Load reads configuration from the environment, after loading envFiles (or
// .env when none are given) if they exist.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && len(envFiles) > 0 {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.CORSAllowedOrigins = splitList(cfg.CORSAllowedOrigins)
	cfg.MarketDataProvider = strings.ToLower(strings.TrimSpace(cfg.MarketDataProvider))

	return &cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLength)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	switch c.MarketDataProvider {
	case ProviderHTTP:
		if c.MarketDataURL == "" {
			return errors.New("MARKET_DATA_URL is required for the http provider")
		}
	case ProviderAlphaVantage:
		if c.AlphaVantageAPIKey == "" {
			return errors.New("ALPHA_VANTAGE_API_KEY is required for the alphavantage provider")
		}
	default:
		return fmt.Errorf("unknown MARKET_DATA_PROVIDER %q", c.MarketDataProvider)
	}
	if c.MarketDataTimeout <= 0 {
		return errors.New("MARKET_DATA_TIMEOUT must be positive")
	}
	if c.PriceCacheTTL < 0 {
		return errors.New("PRICE_CACHE_TTL must not be negative")
	}
	return nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode, c.DBTimeZone)
}

func (c *Config) OpenDB(logger *zap.Logger) (*gorm.DB, error) {
	db, err := database.Open(postgres.Open(c.DSN()), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}
	return db, nil
}

// OpenRedis returns nil without error when Redis is not configured.
func (c *Config) OpenRedis(ctx context.Context) (*redis.Client, error) {
	if c.RedisAddr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
