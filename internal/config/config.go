package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Redis   RedisConfig
	Notify  NotifyConfig
	Catalog CatalogConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port     int
	MaxConns int
	MCPStdio bool
}

type StorageConfig struct {
	Backend string // "sqlite" or "redis"
	DataDir string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type NotifyConfig struct {
	AMQPURL      string // empty disables publishing
	Exchange     string
	PollInterval time.Duration
}

type CatalogConfig struct {
	Path string // empty uses the built-in catalog
}

type LogConfig struct {
	Level string
}

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:     4100,
			MaxConns: 64,
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
			DataDir: defaultDataDir(),
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Notify: NotifyConfig{
			Exchange:     "provider.profile.events",
			PollInterval: 500 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, a .env file in
// the working directory, and environment variables.
//
// On macOS the backend is UserDefaults (domain: com.provform.app).
// Elsewhere it is a YAML file at $XDG_CONFIG_HOME/provform/config.yaml.
//
// Environment variables (PROVFORM_*) override everything; .env values only
// fill in variables the real environment leaves unset. Secrets are read
// from the environment only.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), ".env")
}

func loadWith(b Backend, envFile string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	dotenv, err := readDotenv(envFile)
	if err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg, func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	})

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readDotenv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	vals, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return vals, nil
}

func (c Config) validate() error {
	switch c.Storage.Backend {
	case BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("invalid storage.backend %q: want %q or %q", c.Storage.Backend, BackendSQLite, BackendRedis)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Server.MaxConns <= 0 {
		return fmt.Errorf("server.max_conns must be positive, got %d", c.Server.MaxConns)
	}
	if c.Notify.PollInterval <= 0 {
		return fmt.Errorf("notify.poll_interval must be positive, got %s", c.Notify.PollInterval)
	}
	return nil
}
