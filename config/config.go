package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type ServerConfig struct {
	Port int `toml:"port"`
	// RateLimit is requests per minute per client IP. Zero disables
	// the limiter.
	RateLimit int `toml:"rate_limit"`
}

type AuthConfig struct {
	// Secret signs and verifies bearer tokens. Empty disables auth,
	// which is only sensible behind a trusted gateway.
	Secret string `toml:"secret"`
}

type GraphConfig struct {
	TenantID     string `toml:"tenant_id"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	UserID       string `toml:"user_id"`
	BaseURL      string `toml:"base_url"`
}

type DatabaseConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
	SSLMode  string `toml:"ssl_mode"`
}

type CacheConfig struct {
	TTLSeconds int `toml:"ttl_seconds"`
}

type CollectionConfig struct {
	PageSize             int `toml:"page_size"`
	TranslationBatchSize int `toml:"translation_batch_size"`
	ProcessingChunkSize  int `toml:"processing_chunk_size"`
	MaxConcurrentPages   int `toml:"max_concurrent_pages"`
}

type AttachmentConfig struct {
	// Dir is where downloaded attachments are written.
	Dir string `toml:"dir"`
}

type Config struct {
	Server      ServerConfig     `toml:"server"`
	Auth        AuthConfig       `toml:"auth"`
	Graph       GraphConfig      `toml:"graph"`
	Database    DatabaseConfig   `toml:"database"`
	Cache       CacheConfig      `toml:"cache"`
	Collection  CollectionConfig `toml:"collection"`
	Attachments AttachmentConfig `toml:"attachments"`
}

func LoadConfig(filepath string) (*Config, error) {
	var config Config

	// Set default values
	config.Server.Port = 3000
	config.Server.RateLimit = 120
	config.Database.Port = 5432
	config.Database.SSLMode = "disable"
	config.Cache.TTLSeconds = 300
	config.Collection.PageSize = 50
	config.Collection.TranslationBatchSize = 1000
	config.Collection.ProcessingChunkSize = 100
	config.Collection.MaxConcurrentPages = 5
	config.Attachments.Dir = "attachments"

	_, err := toml.DecodeFile(filepath, &config)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the fields without which the service cannot start.
func (c *Config) Validate() error {
	if c.Graph.TenantID == "" || c.Graph.ClientID == "" || c.Graph.ClientSecret == "" {
		return fmt.Errorf("graph tenant_id, client_id and client_secret are required")
	}
	if c.Database.Host == "" || c.Database.User == "" || c.Database.Name == "" {
		return fmt.Errorf("database host, user and name are required")
	}
	if c.Collection.PageSize <= 0 || c.Collection.MaxConcurrentPages <= 0 {
		return fmt.Errorf("collection page_size and max_concurrent_pages must be positive")
	}
	return nil
}

// DSN returns the pgx connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password),
		c.Host, c.Port, c.Name, c.SSLMode)
}

// MigrateURL returns the database URL for schema migrations, using the
// scheme the migrate pgx/v5 driver registers.
func (c *DatabaseConfig) MigrateURL() string {
	return "pgx5" + strings.TrimPrefix(c.DSN(), "postgres")
}

// CacheTTL returns the configured cache lifetime as a duration.
func (c *CacheConfig) CacheTTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}
