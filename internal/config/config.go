package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server  ServerConfig
	App     AppConfig
	Remote  RemoteConfig
	QueueDB QueueDBConfig
	Cache   CacheConfig
	Network NetworkConfig
	Scanner ScannerConfig
	Sync    SyncConfig
}

// ServerConfig holds HTTP control-API server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"127.0.0.1"`
	Port            int           `envconfig:"SERVER_PORT" default:"8484"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"cellarsync"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// RemoteConfig holds settings for the hosted catalog backend.
type RemoteConfig struct {
	BaseURL     string        `envconfig:"REMOTE_BASE_URL" default:"http://localhost:54321"`
	APIKey      string        `envconfig:"REMOTE_API_KEY" default:""`
	HTTPTimeout time.Duration `envconfig:"REMOTE_HTTP_TIMEOUT" default:"10s"`
}

// QueueDBConfig holds the durable offline-job queue settings.
type QueueDBConfig struct {
	Type string `envconfig:"QUEUE_DB_TYPE" default:"sqlite"` // sqlite, mysql, or memory
	Path string `envconfig:"QUEUE_DB_PATH" default:"./data/queue.db"`
	// MySQL settings (shared multi-station deployments)
	Host     string `envconfig:"QUEUE_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"QUEUE_DB_PORT" default:"3306"`
	Name     string `envconfig:"QUEUE_DB_NAME" default:"cellarsync"`
	User     string `envconfig:"QUEUE_DB_USER" default:"root"`
	Password string `envconfig:"QUEUE_DB_PASS" default:""`
}

// CacheConfig holds catalog-metadata cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"`
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"10m"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// NetworkConfig holds connectivity-monitor settings.
type NetworkConfig struct {
	ProbeURL     string        `envconfig:"NETWORK_PROBE_URL" default:"http://clients3.google.com/generate_204"`
	ProbeTimeout time.Duration `envconfig:"NETWORK_PROBE_TIMEOUT" default:"3s"`
	PollInterval time.Duration `envconfig:"NETWORK_POLL_INTERVAL" default:"10s"`
}

// ScannerConfig holds scan-resolution settings.
type ScannerConfig struct {
	DebounceWindow time.Duration `envconfig:"SCANNER_DEBOUNCE_WINDOW" default:"1500ms"`
	ResolveTimeout time.Duration `envconfig:"SCANNER_RESOLVE_TIMEOUT" default:"4s"`
	DefaultMode    string        `envconfig:"SCANNER_DEFAULT_MODE" default:"cigar"` // cigar or bottle
}

// SyncConfig holds sync-engine retry and drain settings.
type SyncConfig struct {
	MaxRetries    int           `envconfig:"SYNC_MAX_RETRIES" default:"3"`
	BaseDelay     time.Duration `envconfig:"SYNC_BASE_DELAY" default:"1s"`
	DrainInterval time.Duration `envconfig:"SYNC_DRAIN_INTERVAL" default:"5m"` // 0 disables the periodic drain
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// DSN returns the MySQL data source name for the queue database.
func (q *QueueDBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		q.User, q.Password, q.Host, q.Port, q.Name)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
