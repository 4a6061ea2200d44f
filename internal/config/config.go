// Package config loads runtime configuration from environment variables, an optional
// config file and the .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	// Load .env file to environments
	_ "github.com/joho/godotenv/autoload"
)

// Config is the top-level application configuration
type Config struct {
	Port           int
	RequestTimeout time.Duration

	DB DatabaseConfig

	SecretKey    string
	AllowOrigins []string

	RateLimitPerSecond int
	RedisURL           string

	RabbitMQURL       string
	NotificationQueue string

	LogLevel  string
	LogFormat string

	AdminUsername string
	AdminPassword string

	MatchingMaxRetries int
}

// DatabaseConfig holds the settings used to build the postgres DSN
type DatabaseConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	Name          string
	UseConnString bool
	ConnString    string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8080)
	v.SetDefault("REQUEST_TIMEOUT", 10*time.Second)
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("USE_CONNECTION_STR", false)
	v.SetDefault("ALLOW_ORIGIN", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_REQUESTS_PER_SECOND", 5)
	v.SetDefault("NOTIFICATION_QUEUE", "withdrawal_notifications")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("MATCHING_MAX_RETRIES", 3)
}

// Load reads configuration. If AOTF_CONFIG points to a file it is read first and
// environment variables override its values.
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:               v.GetInt("PORT"),
		RequestTimeout:     v.GetDuration("REQUEST_TIMEOUT"),
		DB:                 databaseConfig(v),
		SecretKey:          v.GetString("SECRET_KEY"),
		AllowOrigins:       splitList(v.GetString("ALLOW_ORIGIN")),
		RateLimitPerSecond: v.GetInt("RATE_LIMIT_REQUESTS_PER_SECOND"),
		RedisURL:           v.GetString("REDIS_URL"),
		RabbitMQURL:        v.GetString("RABBITMQ_URL"),
		NotificationQueue:  v.GetString("NOTIFICATION_QUEUE"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
		AdminUsername:      v.GetString("ADMIN_USERNAME"),
		AdminPassword:      v.GetString("ADMIN_PASSWORD"),
		MatchingMaxRetries: v.GetInt("MATCHING_MAX_RETRIES"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase reads only the database settings, for tools that never serve HTTP
func LoadDatabase() (DatabaseConfig, error) {
	v, err := newViper()
	if err != nil {
		return DatabaseConfig{}, err
	}
	cfg := databaseConfig(v)
	return cfg, cfg.Validate()
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString("AOTF_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file %s: %w", path, err)
			}
		}
	}
	return v, nil
}

func databaseConfig(v *viper.Viper) DatabaseConfig {
	return DatabaseConfig{
		Host:          v.GetString("DB_HOST"),
		Port:          v.GetString("DB_PORT"),
		User:          v.GetString("DB_USERNAME"),
		Password:      v.GetString("DB_PASSWORD"),
		Name:          v.GetString("DB_DATABASE"),
		UseConnString: v.GetBool("USE_CONNECTION_STR"),
		ConnString:    v.GetString("DB_CONNECTION_STR"),
	}
}

// Validate checks the values the server cannot start without
func (c *Config) Validate() error {
	if c.Port <= 0 {
		return fmt.Errorf("PORT must be positive, got %d", c.Port)
	}
	if c.SecretKey == "" {
		return errors.New("SECRET_KEY is required")
	}
	if c.RateLimitPerSecond <= 0 {
		c.RateLimitPerSecond = 5
	}
	if c.MatchingMaxRetries < 0 {
		return fmt.Errorf("MATCHING_MAX_RETRIES must not be negative, got %d", c.MatchingMaxRetries)
	}
	return c.DB.Validate()
}

// Validate checks that either a connection string or every DSN part is set
func (d DatabaseConfig) Validate() error {
	if d.UseConnString {
		if d.ConnString == "" {
			return errors.New("DB_CONNECTION_STR is empty")
		}
		return nil
	}
	if d.Host == "" || d.Port == "" || d.User == "" || d.Password == "" || d.Name == "" {
		return errors.New("database configuration is incomplete")
	}
	return nil
}

// DSN returns the postgres connection string
func (d DatabaseConfig) DSN() string {
	if d.UseConnString {
		return d.ConnString
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", d.User, d.Password, d.Host, d.Port, d.Name)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
