package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Location  LocationConfig  `yaml:"location"`
	Map       MapConfig       `yaml:"map"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AuthConfig protects mutating routes when APIKey is set.
type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type StorageConfig struct {
	Driver string `yaml:"driver"`
	// Path is a directory for the file driver and a database file for sqlite.
	Path string `yaml:"path"`
	Key  string `yaml:"key"`
}

type DatabaseConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Name       string `yaml:"name"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	SSLMode    string `yaml:"sslmode"`
	Migrations string `yaml:"migrations"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Location modes.
const (
	LocationStatic  = "static"
	LocationBrowser = "browser"
	LocationHTTP    = "http"
)

type LocationConfig struct {
	Mode    string        `yaml:"mode"`
	Lat     float64       `yaml:"lat"`
	Lng     float64       `yaml:"lng"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type MapConfig struct {
	Zoom int `yaml:"zoom"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel maps the configured level name onto slog. Unknown names log at info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix MAPTY_ and underscore-separated paths:
//
//	MAPTY_SERVER_HOST, MAPTY_SERVER_PORT, MAPTY_AUTH_API_KEY,
//	MAPTY_STORAGE_DRIVER, MAPTY_STORAGE_PATH, MAPTY_STORAGE_KEY,
//	MAPTY_DB_HOST, MAPTY_DB_PORT, MAPTY_DB_NAME,
//	MAPTY_DB_USER, MAPTY_DB_PASSWORD, MAPTY_DB_SSLMODE,
//	MAPTY_REDIS_ADDR, MAPTY_REDIS_PASSWORD, MAPTY_REDIS_DB,
//	MAPTY_LOCATION_MODE, MAPTY_LOCATION_LAT, MAPTY_LOCATION_LNG, MAPTY_LOCATION_URL,
//	MAPTY_MAP_ZOOM, MAPTY_TAILSCALE_ENABLED, MAPTY_LOG_LEVEL
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setFloat := func(name string, dst *float64) {
		if v := os.Getenv(name); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}

	setString("MAPTY_SERVER_HOST", &cfg.Server.Host)
	setInt("MAPTY_SERVER_PORT", &cfg.Server.Port)
	setString("MAPTY_AUTH_API_KEY", &cfg.Auth.APIKey)

	setString("MAPTY_STORAGE_DRIVER", &cfg.Storage.Driver)
	setString("MAPTY_STORAGE_PATH", &cfg.Storage.Path)
	setString("MAPTY_STORAGE_KEY", &cfg.Storage.Key)

	setString("MAPTY_DB_HOST", &cfg.Database.Host)
	setInt("MAPTY_DB_PORT", &cfg.Database.Port)
	setString("MAPTY_DB_NAME", &cfg.Database.Name)
	setString("MAPTY_DB_USER", &cfg.Database.User)
	setString("MAPTY_DB_PASSWORD", &cfg.Database.Password)
	setString("MAPTY_DB_SSLMODE", &cfg.Database.SSLMode)

	setString("MAPTY_REDIS_ADDR", &cfg.Redis.Addr)
	setString("MAPTY_REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("MAPTY_REDIS_DB", &cfg.Redis.DB)

	setString("MAPTY_LOCATION_MODE", &cfg.Location.Mode)
	setFloat("MAPTY_LOCATION_LAT", &cfg.Location.Lat)
	setFloat("MAPTY_LOCATION_LNG", &cfg.Location.Lng)
	setString("MAPTY_LOCATION_URL", &cfg.Location.URL)

	setInt("MAPTY_MAP_ZOOM", &cfg.Map.Zoom)
	if v := os.Getenv("MAPTY_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	setString("MAPTY_LOG_LEVEL", &cfg.Log.Level)
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverFile
	}
	if cfg.Storage.Key == "" {
		cfg.Storage.Key = "workouts"
	}
	if cfg.Storage.Path == "" {
		switch cfg.Storage.Driver {
		case DriverFile:
			cfg.Storage.Path = "data"
		case DriverSQLite:
			cfg.Storage.Path = "mapty.db"
		}
	}
	if cfg.Database.Migrations == "" {
		cfg.Database.Migrations = "migrations"
	}
	if cfg.Location.Mode == "" {
		cfg.Location.Mode = LocationBrowser
	}
	if cfg.Location.Timeout == 0 {
		cfg.Location.Timeout = 10 * time.Second
	}
	if cfg.Map.Zoom == 0 {
		cfg.Map.Zoom = 13
	}
	if cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "mapty"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}

	switch c.Storage.Driver {
	case DriverMemory, DriverFile, DriverSQLite:
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	case DriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required")
		}
	default:
		return fmt.Errorf("storage.driver %q is not one of memory, file, sqlite, postgres, redis", c.Storage.Driver)
	}

	switch c.Location.Mode {
	case LocationStatic:
		if c.Location.Lat < -90 || c.Location.Lat > 90 || c.Location.Lng < -180 || c.Location.Lng > 180 {
			return fmt.Errorf("location lat/lng out of range")
		}
	case LocationBrowser:
	case LocationHTTP:
		if c.Location.URL == "" {
			return fmt.Errorf("location.url is required for http mode")
		}
	default:
		return fmt.Errorf("location.mode %q is not one of static, browser, http", c.Location.Mode)
	}

	if c.Map.Zoom < 0 || c.Map.Zoom > 22 {
		return fmt.Errorf("map.zoom must be between 0 and 22")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}
