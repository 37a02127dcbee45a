package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vango-dev/localstate/internal/errors"
	"github.com/vango-dev/localstate/pkg/codec"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "localstate.json"

	// DefaultKind is the default store kind.
	DefaultKind = KindFile

	// DefaultDir is the default directory of the file store.
	DefaultDir = ".localstate"

	// DefaultPath is the default SQLite database path.
	DefaultPath = ".localstate/items.db"

	// DefaultTable is the default SQL table name.
	DefaultTable = "localstate_items"

	// DefaultPollInterval is the default SQL change polling interval.
	DefaultPollInterval = "500ms"

	// DefaultPrefix is the default S3 object key prefix.
	DefaultPrefix = "localstate/"

	// DefaultRegion is the default S3 region.
	DefaultRegion = "us-east-1"
)

// Store kinds.
const (
	KindMemory = "memory"
	KindFile   = "file"
	KindSQLite = "sqlite"
	KindS3     = "s3"
	KindNull   = "null"
)

// Kinds lists the supported store kinds.
var Kinds = []string{KindMemory, KindFile, KindSQLite, KindS3, KindNull}

// Config represents the complete localstate.json configuration.
type Config struct {
	// Store selects and configures the backing store.
	Store StoreConfig `json:"store"`

	// Codec is the serialization format (default: "json").
	Codec string `json:"codec,omitempty"`

	// Log configures the CLI logger.
	Log LogConfig `json:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// StoreConfig contains store settings. Fields apply to the kinds noted.
type StoreConfig struct {
	// Kind is one of memory, file, sqlite, s3 or null.
	Kind string `json:"kind,omitempty"`

	// Dir is the file store directory.
	Dir string `json:"dir,omitempty"`

	// Path is the SQLite database path.
	Path string `json:"path,omitempty"`

	// Table is the SQL table name.
	Table string `json:"table,omitempty"`

	// PollInterval is the SQL change polling interval (e.g., "500ms").
	PollInterval string `json:"pollInterval,omitempty"`

	// Bucket is the S3 bucket.
	Bucket string `json:"bucket,omitempty"`

	// Prefix is the S3 object key prefix.
	Prefix string `json:"prefix,omitempty"`

	// Region is the S3 region.
	Region string `json:"region,omitempty"`

	// Endpoint overrides the S3 endpoint, for S3-compatible services.
	Endpoint string `json:"endpoint,omitempty"`

	// PathStyle enables path-style S3 addressing.
	PathStyle bool `json:"pathStyle,omitempty"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	// Level is debug, info, warn or error (default: "info").
	Level string `json:"level,omitempty"`

	// Format is text or json (default: "text").
	Format string `json:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads configuration from the specified directory.
// It looks for localstate.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigNotFound).
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path))
		}
		return nil, errors.New(errors.CodeInvalidConfig).Wrap(err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(errors.CodeInvalidConfig).
			WithDetail("Failed to parse " + ConfigFileName + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New(errors.CodeInvalidConfig).Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New(errors.CodeInvalidConfig).Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file, or "" for a
// config that was not loaded from a file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Store.Kind == "" {
		c.Store.Kind = DefaultKind
	}
	if c.Store.Dir == "" {
		c.Store.Dir = DefaultDir
	}
	if c.Store.Path == "" {
		c.Store.Path = DefaultPath
	}
	if c.Store.Table == "" {
		c.Store.Table = DefaultTable
	}
	if c.Store.PollInterval == "" {
		c.Store.PollInterval = DefaultPollInterval
	}
	if c.Store.Prefix == "" {
		c.Store.Prefix = DefaultPrefix
	}
	if c.Store.Region == "" {
		c.Store.Region = DefaultRegion
	}
	if c.Codec == "" {
		c.Codec = codec.JSON.Name()
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// ApplyEnv overrides fields from LOCALSTATE_* environment variables.
func (c *Config) ApplyEnv() {
	c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	strs := []struct {
		name string
		dst  *string
	}{
		{"LOCALSTATE_STORE", &c.Store.Kind},
		{"LOCALSTATE_DIR", &c.Store.Dir},
		{"LOCALSTATE_PATH", &c.Store.Path},
		{"LOCALSTATE_TABLE", &c.Store.Table},
		{"LOCALSTATE_POLL", &c.Store.PollInterval},
		{"LOCALSTATE_BUCKET", &c.Store.Bucket},
		{"LOCALSTATE_PREFIX", &c.Store.Prefix},
		{"LOCALSTATE_REGION", &c.Store.Region},
		{"LOCALSTATE_ENDPOINT", &c.Store.Endpoint},
		{"LOCALSTATE_CODEC", &c.Codec},
		{"LOCALSTATE_LOG_LEVEL", &c.Log.Level},
		{"LOCALSTATE_LOG_FORMAT", &c.Log.Format},
	}
	for _, s := range strs {
		if v, ok := lookup(s.name); ok && v != "" {
			*s.dst = v
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case KindMemory, KindNull:
	case KindFile:
		if c.Store.Dir == "" {
			return errors.New(errors.CodeInvalidConfig).WithDetail("store.dir is required for the file store")
		}
	case KindSQLite:
		if c.Store.Path == "" {
			return errors.New(errors.CodeInvalidConfig).WithDetail("store.path is required for the sqlite store")
		}
		if _, err := c.PollInterval(); err != nil {
			return err
		}
	case KindS3:
		if c.Store.Bucket == "" {
			return errors.New(errors.CodeInvalidConfig).WithDetail("store.bucket is required for the s3 store")
		}
	default:
		return errors.New(errors.CodeUnknownStore).WithDetail(fmt.Sprintf("store.kind %q", c.Store.Kind))
	}

	if _, err := codec.ByName(c.Codec); err != nil {
		return errors.New(errors.CodeUnknownCodec).Wrap(err)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return errors.New(errors.CodeInvalidConfig).
			WithDetail(fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}
	return nil
}

// PollInterval returns the parsed SQL polling interval.
func (c *Config) PollInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Store.PollInterval)
	if err != nil || d <= 0 {
		return 0, errors.New(errors.CodeInvalidConfig).
			WithDetail(fmt.Sprintf("store.pollInterval %q must be a positive duration", c.Store.PollInterval))
	}
	return d, nil
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, errors.New(errors.CodeInvalidConfig).
			WithDetail(fmt.Sprintf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}
	return level, nil
}

// CodecValue returns the configured codec.
func (c *Config) CodecValue() (codec.Codec, error) {
	cd, err := codec.ByName(c.Codec)
	if err != nil {
		return nil, errors.New(errors.CodeUnknownCodec).Wrap(err)
	}
	return cd, nil
}

// DirPath returns the absolute path to the file store directory.
func (c *Config) DirPath() string {
	return c.resolve(c.Store.Dir)
}

// DBPath returns the absolute path to the SQLite database.
func (c *Config) DBPath() string {
	return c.resolve(c.Store.Path)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) || c.Dir() == "" {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindRoot walks up directories to find the directory containing
// localstate.json.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New(errors.CodeConfigNotFound).
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working
// directory or its nearest ancestor that has one. Without a config file
// the defaults are used. Environment overrides are applied and the
// result is validated.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return LoadFrom(wd)
}

// LoadFrom is LoadFromWorkingDir starting at dir.
func LoadFrom(dir string) (*Config, error) {
	cfg := New()
	root, err := FindRoot(dir)
	switch {
	case err == nil:
		if cfg, err = Load(root); err != nil {
			return nil, err
		}
	case !errors.HasCode(err, errors.CodeConfigNotFound):
		return nil, err
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
