package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Storage backends.
const (
	BackendFile    = "file"    // One file per entity under Storage.Root.
	BackendMemory  = "memory"  // Same layout as "file", kept in memory.
	BackendSQL     = "sql"     // Table "entities" in the configured database.
	BackendLevelDB = "leveldb" // Embedded LevelDB at Storage.Root.
)

// Read modes of the file backend.
const (
	ReadModeLines = "lines" // Lines are concatenated and line breaks dropped.
	ReadModeExact = "exact" // Payload is read back byte for byte.
)

// Config is the main config struct
type Config struct {
	Environment string         `yaml:"environment" env:"ENVIRONMENT" env-default:"production" env-description:"Environment name"`
	Verbose     string         `yaml:"verbose" env:"VERBOSE" env-default:"info" env-description:"Verbose mode for debug output"`
	Storage     StorageConfig  `yaml:"storage"`
	Database    DatabaseConfig `yaml:"database"`
	Cache       CacheConfig    `yaml:"cache"`
	Metrics     MetricsConfig  `yaml:"metrics"`
	API         APIConfig      `yaml:"api"`
}

// Entity storage config
type StorageConfig struct {
	Backend   string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"file" env-description:"Storage backend: file, memory, sql or leveldb"`
	Root      string `yaml:"root" env:"STORAGE_ROOT" env-default:"./data/" env-description:"Prefix of entity file paths, end it with a separator to use a directory"`
	ReadMode  string `yaml:"read_mode" env:"STORAGE_READ_MODE" env-default:"lines" env-description:"How the file backend reads payloads back: lines or exact"`
	FileMode  uint32 `yaml:"file_mode" env:"STORAGE_FILE_MODE" env-default:"0644" env-description:"Permissions of created entity files"`
	SafePaths bool   `yaml:"safe_paths" env:"STORAGE_SAFE_PATHS" env-default:"false" env-description:"Reject uids that do not name a single file inside root"`
}

// SQLite, PostgreSQL or MySQL config, used by the "sql" backend
type DatabaseConfig struct {
	// Driver is the database driver to use. Supported drivers are "sqlite3", "postgres" and "mysql".
	Driver     string `yaml:"driver" env:"DATABASE_DRIVER" env-default:"sqlite3" env-description:"Database driver to use"`
	Connection string `yaml:"connection" env:"DATABASE_CONNECTION" env-default:":memory:" env-description:"Database connection string"`
}

// Read cache config
type CacheConfig struct {
	Enabled     bool  `yaml:"enabled" env:"CACHE_ENABLED" env-default:"false" env-description:"Keep recently read entities in memory"`
	NumCounters int64 `yaml:"num_counters" env:"CACHE_NUM_COUNTERS" env-default:"100000" env-description:"Number of keys tracked for admission"`
	MaxCost     int64 `yaml:"max_cost" env:"CACHE_MAX_COST" env-default:"67108864" env-description:"Cache capacity in payload bytes"`
}

// InfluxDB metrics config, metrics are disabled when URL is empty
type MetricsConfig struct {
	URL    string      `yaml:"url" env:"METRICS_URL" env-default:"" env-description:"InfluxDB URL"`
	Token  string      `yaml:"token" env:"METRICS_TOKEN" env-default:"" env-description:"InfluxDB token"`
	Org    string      `yaml:"org" env:"METRICS_ORG" env-default:"" env-description:"InfluxDB organization"`
	Bucket string      `yaml:"bucket" env:"METRICS_BUCKET" env-default:"entities" env-description:"InfluxDB bucket"`
	Proxy  ProxyConfig `yaml:"proxy"`
}

// SOCKS5 proxy config for the metrics client, unused when Address is empty
type ProxyConfig struct {
	Address  string `yaml:"address" env:"METRICS_PROXY_ADDRESS" env-default:"" env-description:"SOCKS5 proxy host"`
	Port     int    `yaml:"port" env:"METRICS_PROXY_PORT" env-default:"0" env-description:"SOCKS5 proxy port"`
	Username string `yaml:"username" env:"METRICS_PROXY_USERNAME" env-default:"" env-description:"SOCKS5 proxy username"`
	Password string `yaml:"password" env:"METRICS_PROXY_PASSWORD" env-default:"" env-description:"SOCKS5 proxy password"`
}

// API config
type APIConfig struct {
	Host         string        `yaml:"host" env:"API_HOST" env-default:"localhost" env-description:"API host address to bind to"`
	Port         int           `yaml:"port" env:"API_PORT" env-default:"8080" env-description:"API port to bind to"`
	Secret       string        `yaml:"secret" env:"API_SECRET" env-default:"" env-description:"Bearer token required for writes, empty disables auth"`
	Timeout      time.Duration `yaml:"timeout" env:"API_TIMEOUT" env-default:"15s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"API_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"API_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"API_IDLE_TIMEOUT" env-default:"15s"`
}

// ConfigError - error returned when the config cannot be loaded
type ConfigError struct {
	Message string
}

// Error - implements the error interface
func (e *ConfigError) Error() string {
	return e.Message
}

// Validate - check enumerated settings
func (c *Config) Validate() error {
	switch strings.ToLower(c.Storage.Backend) {
	case BackendFile, BackendMemory, BackendSQL, BackendLevelDB:
	default:
		return &ConfigError{Message: fmt.Sprintf("Unsupported storage backend: %q", c.Storage.Backend)}
	}

	switch strings.ToLower(c.Storage.ReadMode) {
	case ReadModeExact, ReadModeLines:
	default:
		return &ConfigError{Message: fmt.Sprintf("Unsupported read mode: %q", c.Storage.ReadMode)}
	}

	if c.Cache.Enabled && (c.Cache.NumCounters <= 0 || c.Cache.MaxCost <= 0) {
		return &ConfigError{Message: "Cache num_counters and max_cost must be positive"}
	}

	return nil
}

// LoadConfig reads the YAML file at CONFIG_PATH (config.yml by default)
// and overlays environment variables. Without CONFIG_PATH and without
// config.yml only the environment is read.
func LoadConfig() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	explicit := configPath != ""
	if !explicit {
		configPath = "config.yml"
	}

	var config Config

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if explicit {
			return nil, &ConfigError{
				Message: fmt.Sprintf("Config file does not exist: %s", configPath),
			}
		}

		if err := cleanenv.ReadEnv(&config); err != nil {
			return nil, &ConfigError{
				Message: fmt.Sprintf("Cannot read environment: %s", err),
			}
		}
	} else if err := cleanenv.ReadConfig(configPath, &config); err != nil {
		return nil, &ConfigError{
			Message: fmt.Sprintf("Cannot read config file: %s", err),
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
