package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the annoq API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Search     SearchConfig     `yaml:"search"`
	Limits     LimitsConfig     `yaml:"limits"`
	Attributes AttributesConfig `yaml:"attributes"`
	Gene       GeneConfig       `yaml:"gene"`
	Export     ExportConfig     `yaml:"export"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port           int `yaml:"port"`
	ReadTimeoutSec int `yaml:"read_timeout_sec"`
	// WriteTimeoutSec 0 disables the write deadline so long downloads are not cut.
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// SearchConfig holds search engine connection settings.
type SearchConfig struct {
	Driver            string   `yaml:"driver"` // elastic, local (default: elastic)
	Addrs             []string `yaml:"addrs"`
	Index             string   `yaml:"index"`
	Username          string   `yaml:"username"`
	Password          string   `yaml:"password"`
	APIKey            string   `yaml:"api_key"`
	MaxRetries        int      `yaml:"max_retries"`
	RequestTimeoutSec int      `yaml:"request_timeout_sec"`
	LocalPath         string   `yaml:"local_path"` // bleve index directory; empty keeps it in memory
	ReadinessTimeout  int      `yaml:"readiness_timeout_sec"`
}

// LimitsConfig bounds what a single request may ask for.
type LimitsConfig struct {
	MaxFields         int           `yaml:"max_fields"`
	MaxPageWindow     int           `yaml:"max_page_window"`
	DefaultPageSize   int           `yaml:"default_page_size"`
	StreamBatchSize   int           `yaml:"stream_batch_size"`
	MaxExportRecords  int           `yaml:"max_export_records"`
	SnapshotKeepAlive time.Duration `yaml:"snapshot_keep_alive"`
	BatchKeepAlive    time.Duration `yaml:"batch_keep_alive"`
}

// AttributesConfig points at the attribute definition tree.
type AttributesConfig struct {
	Path string `yaml:"path"`
}

// GeneConfig holds gene locator settings. Each source is optional.
type GeneConfig struct {
	TablePath  string          `yaml:"table_path"`
	APIURL     string          `yaml:"api_url"`
	RatePerSec float64         `yaml:"rate_per_sec"`
	Burst      int             `yaml:"burst"`
	TimeoutSec int             `yaml:"timeout_sec"`
	Cache      GeneCacheConfig `yaml:"cache"`
}

// GeneCacheConfig holds the Redis cache in front of the gene locators.
type GeneCacheConfig struct {
	Addrs    []string      `yaml:"addrs"`
	Password string        `yaml:"password"`
	TTL      time.Duration `yaml:"ttl"`
}

// ExportConfig holds export artifact settings.
type ExportConfig struct {
	Dir   string      `yaml:"dir"`
	Gzip  bool        `yaml:"gzip"`
	MinIO MinIOConfig `yaml:"minio"`
}

// MinIOConfig holds the S3-compatible artifact store. Empty endpoint disables uploads.
type MinIOConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	Bucket        string        `yaml:"bucket"`
	Prefix        string        `yaml:"prefix"`
	Region        string        `yaml:"region"`
	AccessKey     string        `yaml:"access_key"`
	SecretKey     string        `yaml:"secret_key"`
	UseSSL        bool          `yaml:"use_ssl"`
	PresignExpiry time.Duration `yaml:"presign_expiry"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit YAML path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands ${VAR} references, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec < 0 {
		c.HTTP.WriteTimeoutSec = 0
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Search.Driver == "" {
		c.Search.Driver = DriverElastic
	}
	if c.Search.Index == "" {
		c.Search.Index = "annoq-annotations"
	}
	if c.Search.MaxRetries <= 0 {
		c.Search.MaxRetries = 10
	}
	if c.Search.RequestTimeoutSec <= 0 {
		c.Search.RequestTimeoutSec = 120
	}
	if c.Search.ReadinessTimeout <= 0 {
		c.Search.ReadinessTimeout = 30
	}

	if c.Limits.MaxFields <= 0 {
		c.Limits.MaxFields = 20
	}
	if c.Limits.MaxPageWindow <= 0 {
		c.Limits.MaxPageWindow = 10_000
	}
	if c.Limits.DefaultPageSize <= 0 {
		c.Limits.DefaultPageSize = 50
	}
	if c.Limits.StreamBatchSize <= 0 {
		c.Limits.StreamBatchSize = 10_000
	}
	if c.Limits.MaxExportRecords <= 0 {
		c.Limits.MaxExportRecords = 1_000_000
	}
	if c.Limits.SnapshotKeepAlive <= 0 {
		c.Limits.SnapshotKeepAlive = 5 * time.Minute
	}
	if c.Limits.BatchKeepAlive <= 0 {
		c.Limits.BatchKeepAlive = time.Minute
	}

	if c.Gene.TimeoutSec <= 0 {
		c.Gene.TimeoutSec = 10
	}
	if c.Gene.Cache.TTL <= 0 {
		c.Gene.Cache.TTL = 24 * time.Hour
	}

	if c.Export.Dir == "" {
		c.Export.Dir = filepath.Join(os.TempDir(), "annoq-exports")
	}
	if c.Export.MinIO.PresignExpiry <= 0 {
		c.Export.MinIO.PresignExpiry = 24 * time.Hour
	}
}

// Search drivers.
const (
	DriverElastic = "elastic"
	DriverLocal   = "local"
)

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Search.Driver {
	case DriverElastic:
		if len(c.Search.Addrs) == 0 {
			return fmt.Errorf("search.addrs is required for the elastic driver")
		}
	case DriverLocal:
	default:
		return fmt.Errorf("search.driver must be \"elastic\" or \"local\", got %q", c.Search.Driver)
	}
	if c.Attributes.Path == "" {
		return fmt.Errorf("attributes.path is required")
	}
	if c.Limits.DefaultPageSize > c.Limits.MaxPageWindow {
		return fmt.Errorf("limits.default_page_size %d exceeds limits.max_page_window %d",
			c.Limits.DefaultPageSize, c.Limits.MaxPageWindow)
	}
	if c.Gene.RatePerSec < 0 {
		return fmt.Errorf("gene.rate_per_sec must be >= 0, got %v", c.Gene.RatePerSec)
	}
	if c.Export.MinIO.Endpoint != "" && c.Export.MinIO.Bucket == "" {
		return fmt.Errorf("export.minio.bucket is required when an endpoint is set")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
