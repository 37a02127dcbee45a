package config

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/localstate/internal/errors"
	"github.com/vango-dev/localstate/pkg/storage"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Store.Kind != DefaultKind {
		t.Errorf("Store.Kind = %q, want %q", cfg.Store.Kind, DefaultKind)
	}
	if cfg.Store.Dir != DefaultDir {
		t.Errorf("Store.Dir = %q, want %q", cfg.Store.Dir, DefaultDir)
	}
	if cfg.Codec != "json" {
		t.Errorf("Codec = %q, want json", cfg.Codec)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v, want info/text", cfg.Log)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := Load(tmpDir)
	if !errors.HasCode(err, errors.CodeConfigNotFound) {
		t.Errorf("Load on empty dir = %v, want %s", err, errors.CodeConfigNotFound)
	}

	configJSON := `{
  "store": {
    "kind": "sqlite",
    "path": "data/items.db",
    "pollInterval": "250ms"
  },
  "codec": "yaml",
  "log": {
    "level": "debug"
  }
}
`
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Store.Kind != KindSQLite {
		t.Errorf("Store.Kind = %q, want sqlite", cfg.Store.Kind)
	}
	if cfg.Codec != "yaml" {
		t.Errorf("Codec = %q, want yaml", cfg.Codec)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want default text", cfg.Log.Format)
	}
	if got, want := cfg.DBPath(), filepath.Join(tmpDir, "data/items.db"); got != want {
		t.Errorf("DBPath() = %q, want %q", got, want)
	}
	if d, err := cfg.PollInterval(); err != nil || d != 250*time.Millisecond {
		t.Errorf("PollInterval() = %v, %v", d, err)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(tmpDir)
	if !errors.HasCode(err, errors.CodeInvalidConfig) {
		t.Errorf("Load = %v, want %s", err, errors.CodeInvalidConfig)
	}
}

func TestSaveAndReload(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := New()
	cfg.Store.Kind = KindMemory
	cfg.Codec = "toml"

	path := filepath.Join(tmpDir, ConfigFileName)
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo error: %v", err)
	}
	if cfg.Path() != path {
		t.Errorf("Path() = %q, want %q", cfg.Path(), path)
	}

	loaded, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if loaded.Store.Kind != KindMemory || loaded.Codec != "toml" {
		t.Errorf("loaded = %+v", loaded)
	}

	if err := New().Save(); err == nil {
		t.Error("Save without a path should fail")
	}
}

func TestFindRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := FindRoot(nested); !errors.HasCode(err, errors.CodeConfigNotFound) {
		t.Errorf("FindRoot without config = %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, ConfigFileName), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := FindRoot(nested)
	if err != nil {
		t.Fatalf("FindRoot error: %v", err)
	}
	want, _ := filepath.Abs(root)
	if got != want {
		t.Errorf("FindRoot() = %q, want %q", got, want)
	}
}

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom error: %v", err)
	}
	if cfg.Path() != "" {
		t.Errorf("Path() = %q, want empty", cfg.Path())
	}
	if cfg.DirPath() != DefaultDir {
		t.Errorf("DirPath() = %q, want %q", cfg.DirPath(), DefaultDir)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LOCALSTATE_STORE":      "s3",
		"LOCALSTATE_BUCKET":     "prefs",
		"LOCALSTATE_ENDPOINT":   "http://localhost:9000",
		"LOCALSTATE_CODEC":      "toml",
		"LOCALSTATE_LOG_FORMAT": "json",
		"LOCALSTATE_DIR":        "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := New()
	cfg.applyEnv(lookup)
	if cfg.Store.Kind != KindS3 || cfg.Store.Bucket != "prefs" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Store.Endpoint != "http://localhost:9000" {
		t.Errorf("Endpoint = %q", cfg.Store.Endpoint)
	}
	if cfg.Store.Dir != DefaultDir {
		t.Errorf("empty env value should not override: Dir = %q", cfg.Store.Dir)
	}
	if cfg.Codec != "toml" || cfg.Log.Format != "json" {
		t.Errorf("cfg = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate error: %v", err)
	}
}

func TestApplyEnvFromProcess(t *testing.T) {
	t.Setenv("LOCALSTATE_STORE", "memory")
	t.Setenv("LOCALSTATE_LOG_LEVEL", "warn")

	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom error: %v", err)
	}
	if cfg.Store.Kind != KindMemory {
		t.Errorf("Store.Kind = %q, want memory", cfg.Store.Kind)
	}
	if level, _ := cfg.LogLevel(); level.String() != "WARN" {
		t.Errorf("LogLevel() = %v, want WARN", level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   string
	}{
		{"unknown store", func(c *Config) { c.Store.Kind = "redis" }, errors.CodeUnknownStore},
		{"unknown codec", func(c *Config) { c.Codec = "xml" }, errors.CodeUnknownCodec},
		{"s3 without bucket", func(c *Config) { c.Store.Kind = KindS3 }, errors.CodeInvalidConfig},
		{"file without dir", func(c *Config) { c.Store.Dir = "" }, errors.CodeInvalidConfig},
		{"bad poll interval", func(c *Config) {
			c.Store.Kind = KindSQLite
			c.Store.PollInterval = "-1s"
		}, errors.CodeInvalidConfig},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, errors.CodeInvalidConfig},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, errors.CodeInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.HasCode(err, tt.code) {
				t.Errorf("Validate() = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestOpenStore(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		kind      string
		available bool
	}{
		{KindMemory, true},
		{KindNull, false},
		{KindFile, true},
		{KindSQLite, true},
		{KindS3, true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			cfg := New()
			cfg.Store.Kind = tt.kind
			cfg.Store.Dir = filepath.Join(tmpDir, "files")
			cfg.Store.Path = filepath.Join(tmpDir, "db", "items.db")
			cfg.Store.Bucket = "bucket"

			store, err := cfg.OpenStore(nil)
			if err != nil {
				t.Fatalf("OpenStore error: %v", err)
			}
			if c, ok := store.(io.Closer); ok {
				defer c.Close()
			}
			if store.Available() != tt.available {
				t.Errorf("Available() = %v, want %v", store.Available(), tt.available)
			}
		})
	}

	cfg := New()
	cfg.Store.Kind = "tape"
	if _, err := cfg.OpenStore(nil); !errors.HasCode(err, errors.CodeUnknownStore) {
		t.Errorf("OpenStore(tape) = %v, want %s", err, errors.CodeUnknownStore)
	}
}

func TestOpenStoreFileRoundTrip(t *testing.T) {
	cfg := New()
	cfg.Store.Dir = t.TempDir()

	store, err := cfg.OpenStore(nil)
	if err != nil {
		t.Fatalf("OpenStore error: %v", err)
	}
	defer store.(io.Closer).Close()

	if err := store.SetItem("theme", `"dark"`); err != nil {
		t.Fatalf("SetItem error: %v", err)
	}
	got, ok, err := store.GetItem("theme")
	if err != nil || !ok || got != `"dark"` {
		t.Errorf("GetItem() = %q, %v, %v", got, ok, err)
	}
	if _, isFile := store.(*storage.File); !isFile {
		t.Errorf("store type = %T, want *storage.File", store)
	}
}

func TestEnvCredentials(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	if _, err := (envCredentials{}).Retrieve(context.Background()); err == nil || !strings.Contains(err.Error(), "AWS_ACCESS_KEY_ID") {
		t.Errorf("Retrieve without env = %v", err)
	}

	t.Setenv("AWS_ACCESS_KEY_ID", "id")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	creds, err := (envCredentials{}).Retrieve(context.Background())
	if err != nil || creds.AccessKeyID != "id" {
		t.Errorf("Retrieve() = %+v, %v", creds, err)
	}
}
