// Package config loads the host configuration shared by both sides.
package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// FileName is looked up in the workspace root when no explicit path is given.
const FileName = ".exthost.yaml"

// Config is the host configuration.
type Config struct {
	// Workspace is the folder the session serves. Relative paths resolve
	// against the directory of the config file.
	Workspace string `yaml:"workspace" validate:"required"`
	// DataDir holds storage and settings. Derived from Workspace when empty.
	DataDir string `yaml:"dataDir"`

	Log       LogConfig       `yaml:"log"`
	Transport TransportConfig `yaml:"transport"`
	Watcher   WatcherConfig   `yaml:"watcher"`
	Caches    CacheConfig     `yaml:"caches"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	// Development switches to the console encoder.
	Development bool `yaml:"development"`
	// WireTrace logs every jsonrpc2 message.
	WireTrace bool `yaml:"wireTrace"`
}

type TransportConfig struct {
	Mode string `yaml:"mode" validate:"oneof=stdio websocket"`
	// Listen is the address `serve` binds in websocket mode.
	Listen string `yaml:"listen" validate:"required_if=Mode websocket"`
	// URL is the address `run` dials in websocket mode.
	URL string `yaml:"url" validate:"omitempty,url"`
	// ReadyTimeout bounds how long command execution waits for the
	// extension side to become ready.
	ReadyTimeout time.Duration `yaml:"readyTimeout" validate:"gte=0"`
}

type WatcherConfig struct {
	Disabled bool          `yaml:"disabled"`
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
	SkipDirs []string      `yaml:"skipDirs"`
}

// CacheConfig bounds the extension-side result caches.
type CacheConfig struct {
	Completions int `yaml:"completions" validate:"min=1"`
	CodeLenses  int `yaml:"codeLenses" validate:"min=1"`
	Links       int `yaml:"links" validate:"min=1"`
}

var validate = validator.New()

// Default returns the configuration used when no file exists.
func Default(workspace string) Config {
	return Config{
		Workspace: workspace,
		Log:       LogConfig{Level: "info"},
		Transport: TransportConfig{
			Mode:         "stdio",
			Listen:       "127.0.0.1:7777",
			ReadyTimeout: 30 * time.Second,
		},
		Watcher: WatcherConfig{Debounce: 200 * time.Millisecond},
		Caches:  CacheConfig{Completions: 64, CodeLenses: 64, Links: 64},
	}
}

// Load reads path over the defaults for workspace. A missing file yields
// the defaults.
func Load(path, workspace string) (Config, error) {
	cfg := Default(workspace)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if cfg.Workspace != "" && !filepath.IsAbs(cfg.Workspace) {
		cfg.Workspace = filepath.Join(filepath.Dir(path), cfg.Workspace)
	}
	if cfg.Workspace != "" {
		cfg.Workspace = filepath.Clean(cfg.Workspace)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the struct tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ResolveDataDir returns DataDir, deriving and creating a per-workspace
// folder under the user config dir when it is unset.
func (c Config) ResolveDataDir() (string, error) {
	dir := c.DataDir
	if dir == "" {
		configDir, err := userConfigDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(configDir, "exthost", workspaceSlug(c.Workspace))
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

func workspaceSlug(root string) string {
	return strings.NewReplacer("/", "_", ":", "_", "\\", "_").Replace(root)
}

func userConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		usr, err := user.Current()
		if err != nil {
			return "", fmt.Errorf("failed to get current user: %w", err)
		}
		return filepath.Join(usr.HomeDir, ".config"), nil
	}
	return configDir, nil
}

// NewLogger builds the zap logger described by the log section. Output
// goes to stderr so stdio transports keep stdout for the wire.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}

	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
