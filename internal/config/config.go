// Package config loads lobby server settings from an optional YAML file,
// a .env file and the environment, in that order of increasing priority.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeFile   = "file"
	StorageTypeRedis  = "redis"
	StorageTypeSQLite = "sqlite"
)

// Environment variables read by Load
const (
	EnvConfigPath    = "LOBBY_CONFIG"
	EnvListenAddr    = "LOBBY_LISTEN_ADDR"
	EnvPublicPort    = "LOBBY_PUBLIC_PORT"
	EnvAdminAddr     = "LOBBY_ADMIN_ADDR"
	EnvAdminToken    = "LOBBY_ADMIN_TOKEN"
	EnvStorageType   = "LOBBY_STORAGE_TYPE"
	EnvDataPath      = "LOBBY_DATA_PATH"
	EnvRedisURL      = "REDIS_URL"
	EnvBundleDir     = "LOBBY_STORAGE_DIR"
	EnvPortFirst     = "LOBBY_PORT_FIRST"
	EnvPortLast      = "LOBBY_PORT_LAST"
	EnvBcryptCost    = "LOBBY_BCRYPT_COST"
	EnvRequireToken  = "LOBBY_REQUIRE_WORKER_TOKEN"
	EnvPassTokenFlag = "LOBBY_PASS_TOKEN_FLAG"
	EnvLogLevel      = "LOG_LEVEL"
)

// Config is the complete server configuration
type Config struct {
	// ListenAddr is the lobby's TCP listen address
	ListenAddr string `yaml:"listen_addr"`
	// PublicPort is the lobby port workers are told to call back on. Zero
	// means the port of ListenAddr.
	PublicPort int `yaml:"public_port"`
	// AdminAddr is the admin HTTP listen address; empty disables it
	AdminAddr  string `yaml:"admin_addr"`
	AdminToken string `yaml:"admin_token"`
	LogLevel   string `yaml:"log_level"`

	Storage StorageConfig `yaml:"storage"`
	Ports   PortsConfig   `yaml:"ports"`
	Session SessionConfig `yaml:"session"`
	Workers WorkersConfig `yaml:"workers"`
}

// StorageConfig selects the persistence gateway and the bundle directory
type StorageConfig struct {
	Type     string `yaml:"type"`
	DataPath string `yaml:"data_path"`
	RedisURL string `yaml:"redis_url"`
	// BundleDir holds uploaded game bundles
	BundleDir     string `yaml:"bundle_dir"`
	MaxBundleSize int64  `yaml:"max_bundle_size"`
}

// PortsConfig is the worker port range; Last is exclusive
type PortsConfig struct {
	First int `yaml:"first"`
	Last  int `yaml:"last"`
}

// SessionConfig holds account settings
type SessionConfig struct {
	BcryptCost int `yaml:"bcrypt_cost"`
}

// WorkersConfig holds worker process settings
type WorkersConfig struct {
	RequireWorkerToken bool          `yaml:"require_worker_token"`
	PassTokenFlag      bool          `yaml:"pass_token_flag"`
	CallbackFlag       string        `yaml:"callback_flag"`
	ExitGrace          time.Duration `yaml:"exit_grace"`
	TerminateGrace     time.Duration `yaml:"terminate_grace"`
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		ListenAddr: ":7000",
		AdminAddr:  "",
		LogLevel:   "info",
		Storage: StorageConfig{
			Type:          StorageTypeFile,
			DataPath:      "lobby_database.json",
			BundleDir:     "storage",
			MaxBundleSize: 512 << 20,
		},
		Ports: PortsConfig{
			First: 9000,
			Last:  9100,
		},
		Session: SessionConfig{
			BcryptCost: 10,
		},
		Workers: WorkersConfig{
			CallbackFlag:   "--lobby-port",
			ExitGrace:      3 * time.Second,
			TerminateGrace: 5 * time.Second,
		},
	}
}

// Load builds the configuration. A .env file in the working directory is
// loaded first when present; it never overrides variables already set.
// The YAML file named by LOBBY_CONFIG is applied next, then individual
// environment variables.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return LoadFrom(os.Getenv(EnvConfigPath), os.LookupEnv)
}

// LoadFrom builds the configuration from an optional YAML file and lookup,
// which stands in for the environment
func LoadFrom(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	strs := map[string]*string{
		EnvListenAddr:  &cfg.ListenAddr,
		EnvAdminAddr:   &cfg.AdminAddr,
		EnvAdminToken:  &cfg.AdminToken,
		EnvStorageType: &cfg.Storage.Type,
		EnvDataPath:    &cfg.Storage.DataPath,
		EnvRedisURL:    &cfg.Storage.RedisURL,
		EnvBundleDir:   &cfg.Storage.BundleDir,
		EnvLogLevel:    &cfg.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		EnvPublicPort: &cfg.PublicPort,
		EnvPortFirst:  &cfg.Ports.First,
		EnvPortLast:   &cfg.Ports.Last,
		EnvBcryptCost: &cfg.Session.BcryptCost,
	}
	for key, dst := range ints {
		v, ok := get(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	bools := map[string]*bool{
		EnvRequireToken:  &cfg.Workers.RequireWorkerToken,
		EnvPassTokenFlag: &cfg.Workers.PassTokenFlag,
	}
	for key, dst := range bools {
		v, ok := get(key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
	}
	return nil
}

// Validate checks the configuration for values the server cannot run with
func (c Config) Validate() error {
	var errs []error

	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	if c.PublicPort < 0 || c.PublicPort > 65535 {
		errs = append(errs, fmt.Errorf("public_port %d out of range", c.PublicPort))
	}

	switch c.Storage.Type {
	case StorageTypeMemory:
	case StorageTypeFile, StorageTypeSQLite:
		if c.Storage.DataPath == "" {
			errs = append(errs, fmt.Errorf("data_path is required for %s storage", c.Storage.Type))
		}
	case StorageTypeRedis:
		if c.Storage.RedisURL == "" {
			errs = append(errs, errors.New("redis_url is required for redis storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid storage type %q: must be memory, file, redis or sqlite", c.Storage.Type))
	}
	if c.Storage.BundleDir == "" {
		errs = append(errs, errors.New("bundle_dir is required"))
	}

	if c.Ports.First < 1 || c.Ports.Last > 65536 || c.Ports.First >= c.Ports.Last {
		errs = append(errs, fmt.Errorf("invalid port range [%d, %d)", c.Ports.First, c.Ports.Last))
	}
	if c.Session.BcryptCost < 4 || c.Session.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("bcrypt_cost %d out of range 4-31", c.Session.BcryptCost))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// LobbyPort returns the port workers call back on
func (c Config) LobbyPort() int {
	if c.PublicPort != 0 {
		return c.PublicPort
	}
	if i := strings.LastIndex(c.ListenAddr, ":"); i >= 0 {
		if n, err := strconv.Atoi(c.ListenAddr[i+1:]); err == nil {
			return n
		}
	}
	return 0
}

// ParseLogLevel converts a level name to a slog.Level
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
	}
}
