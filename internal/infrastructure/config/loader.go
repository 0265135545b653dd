package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/vocmd/assets"
	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/pkg/filesystem"
	"github.com/doeshing/vocmd/internal/ports"
)

// EnvConfigPath overrides the default config location.
const EnvConfigPath = "VOCMD_CONFIG"

// FileLoader loads configuration from ~/.vocmd/config.yaml (overridable via VOCMD_CONFIG).
// Paths ending in .toml are decoded as TOML.
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader. An empty path uses the default resolution.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider. A missing file is created with defaults.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.Path()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg, err := Defaults()
			if err != nil {
				return domain.Config{}, err
			}
			if err := l.Save(cfg); err != nil {
				return domain.Config{}, err
			}
			return cfg, nil
		}
		return domain.Config{}, err
	}

	var cfg domain.Config
	if err := decode(path, data, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return hydrateDefaults(cfg), nil
}

// Save writes cfg to the resolved path in the format its extension implies.
func (l *FileLoader) Save(cfg domain.Config) error {
	path := l.Path()
	if err := ensureConfigDir(path); err != nil {
		return err
	}
	var (
		raw []byte
		err error
	)
	if isTOML(path) {
		raw, err = toml.Marshal(cfg)
	} else {
		raw, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, domain.SecureFilePermissions)
}

// Path resolves the config file location.
func (l *FileLoader) Path() string {
	if l.overridePath != "" {
		return filesystem.ExpandPath(l.overridePath)
	}
	if custom := os.Getenv(EnvConfigPath); custom != "" {
		return filesystem.ExpandPath(custom)
	}
	return filesystem.AppPath("config.yaml")
}

// Defaults decodes the embedded default configuration.
func Defaults() (domain.Config, error) {
	var cfg domain.Config
	if err := yaml.Unmarshal(assets.DefaultConfigYAML, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse embedded config: %w", err)
	}
	return hydrateDefaults(cfg), nil
}

func decode(path string, data []byte, cfg *domain.Config) error {
	if isTOML(path) {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func ensureConfigDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions)
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = "1"
	}
	if cfg.User.ID == "" {
		cfg.User.ID = "local"
	}
	if cfg.Safety.Level == "" {
		cfg.Safety.Level = domain.SafetyModerate
	}
	if cfg.Safety.PermissionTTL == "" {
		cfg.Safety.PermissionTTL = domain.DefaultPermissionTTL.String()
	}
	if cfg.History.MaxEntries == 0 {
		cfg.History.MaxEntries = domain.DefaultHistoryEntries
	}
	if cfg.Context.Default == "" {
		cfg.Context.Default = domain.ContextUnknown
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:7878"
	}
	return cfg
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
