// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported values for STORE_DRIVER.
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMongo    = "mongo"
)

// Supported values for VOTE_CONSISTENCY.
const (
	ConsistencyVersioned = "versioned"
	ConsistencyTwoStep   = "two-step"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	RateLimit      int    `mapstructure:"RATE_LIMIT_PER_MINUTE"`

	// RateLimitFailClosed rejects writes with 503 while the rate limit store is unreachable.
	RateLimitFailClosed bool `mapstructure:"RATE_LIMIT_FAIL_CLOSED"`

	StoreDriver         string `mapstructure:"STORE_DRIVER"`
	StoreTimeoutSeconds int    `mapstructure:"STORE_TIMEOUT_SECONDS"`
	PostsCollection     string `mapstructure:"POSTS_COLLECTION"`
	CommentsCollection  string `mapstructure:"COMMENTS_COLLECTION"`

	RedisURL       string `mapstructure:"REDIS_URL"`
	RedisKeyPrefix string `mapstructure:"REDIS_KEY_PREFIX"`

	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`
	SQLitePath string `mapstructure:"SQLITE_PATH"`

	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	VoteConsistency      string `mapstructure:"VOTE_CONSISTENCY"`
	VoteMaxAttempts      int    `mapstructure:"VOTE_MAX_ATTEMPTS"`
	VoteRetryBudgetMS    int    `mapstructure:"VOTE_RETRY_BUDGET_MS"`
	PostDuplicateVote    string `mapstructure:"POST_DUPLICATE_VOTE"`
	CommentDuplicateVote string `mapstructure:"COMMENT_DUPLICATE_VOTE"`
	CascadeDelete        bool   `mapstructure:"CASCADE_DELETE"`
	SanitizeContent      bool   `mapstructure:"SANITIZE_CONTENT"`
	FanoutConcurrency    int    `mapstructure:"FANOUT_CONCURRENCY"`

	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint       string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("RATE_LIMIT_PER_MINUTE", 100)

	viper.SetDefault("STORE_DRIVER", StoreRedis)
	viper.SetDefault("STORE_TIMEOUT_SECONDS", 5)
	viper.SetDefault("POSTS_COLLECTION", "Posts")
	viper.SetDefault("COMMENTS_COLLECTION", "Comments")

	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("REDIS_KEY_PREFIX", "agora")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "agora")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("SQLITE_PATH", "agora.db")

	viper.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	viper.SetDefault("MONGO_DATABASE", "agora")

	viper.SetDefault("RATE_LIMIT_FAIL_CLOSED", false)

	viper.SetDefault("VOTE_CONSISTENCY", ConsistencyVersioned)
	viper.SetDefault("VOTE_MAX_ATTEMPTS", 5)
	viper.SetDefault("VOTE_RETRY_BUDGET_MS", 3000)
	viper.SetDefault("POST_DUPLICATE_VOTE", "ignore")
	viper.SetDefault("COMMENT_DUPLICATE_VOTE", "conflict")
	viper.SetDefault("CASCADE_DELETE", false)
	viper.SetDefault("SANITIZE_CONTENT", true)
	viper.SetDefault("FANOUT_CONCURRENCY", 8)

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.VoteConsistency = strings.ToLower(strings.TrimSpace(c.VoteConsistency))
	c.PostDuplicateVote = strings.ToLower(strings.TrimSpace(c.PostDuplicateVote))
	c.CommentDuplicateVote = strings.ToLower(strings.TrimSpace(c.CommentDuplicateVote))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
}

// IsProduction reports whether the app runs with a production profile.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// StoreTimeout is the upper bound applied to each document store call.
func (c *Config) StoreTimeout() time.Duration {
	if c.StoreTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.StoreTimeoutSeconds) * time.Second
}

// VoteRetryBudget bounds how long one vote keeps retrying after losing races to other voters.
func (c *Config) VoteRetryBudget() time.Duration {
	if c.VoteRetryBudgetMS <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.VoteRetryBudgetMS) * time.Millisecond
}

// Validate ensures that required configuration values are present and consistent.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}

	switch c.StoreDriver {
	case StoreRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis store")
		}
	case StorePostgres:
		if c.DBHost == "" || c.DBName == "" {
			return errors.New("DB_HOST and DB_NAME are required for the postgres store")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite store")
		}
	case StoreMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return errors.New("MONGO_URI and MONGO_DATABASE are required for the mongo store")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}

	if c.PostsCollection == "" || c.CommentsCollection == "" {
		return errors.New("POSTS_COLLECTION and COMMENTS_COLLECTION must not be empty")
	}
	if c.PostsCollection == c.CommentsCollection {
		return errors.New("POSTS_COLLECTION and COMMENTS_COLLECTION must differ")
	}

	switch c.VoteConsistency {
	case ConsistencyVersioned, ConsistencyTwoStep:
	default:
		return fmt.Errorf("unsupported VOTE_CONSISTENCY %q", c.VoteConsistency)
	}
	if c.VoteMaxAttempts < 1 {
		return errors.New("VOTE_MAX_ATTEMPTS must be at least 1")
	}

	for name, policy := range map[string]string{
		"POST_DUPLICATE_VOTE":    c.PostDuplicateVote,
		"COMMENT_DUPLICATE_VOTE": c.CommentDuplicateVote,
	} {
		if policy != "ignore" && policy != "conflict" {
			return fmt.Errorf("%s must be 'ignore' or 'conflict', got %q", name, policy)
		}
	}

	if c.FanoutConcurrency < 1 {
		return errors.New("FANOUT_CONCURRENCY must be at least 1")
	}

	if c.IsProduction() {
		if c.StoreDriver == StorePostgres {
			if c.DBPassword == "password" || c.DBPassword == "" {
				return errors.New("a strong DB_PASSWORD is required in production")
			}
			if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
				return errors.New("DB_SSLMODE must not be 'disable' in production")
			}
		}
		if c.StoreDriver == StoreSQLite {
			log.Println("WARNING: STORE_DRIVER is 'sqlite' in production. It is intended for local development.")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	}

	return nil
}
