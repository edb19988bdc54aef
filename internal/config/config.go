// Package config loads lead book settings from a YAML file, LEADBOOK_*
// environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	apperrors "github.com/kimhsiao/leadbook/internal/errors"
	"github.com/kimhsiao/leadbook/internal/logging"
)

const (
	// AppName names the per-user config and data directories.
	AppName = "leadbook"
	// EnvPrefix prefixes every environment override, e.g. LEADBOOK_STORAGE_BACKEND.
	EnvPrefix = "LEADBOOK"
	// PasswordEnv holds the backup archive password.
	PasswordEnv = EnvPrefix + "_BACKUP_PASSWORD"
	// DataFileName is the default JSON store file name.
	DataFileName = "leads_data.json"

	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// StorageSettings selects where leads are persisted.
type StorageSettings struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // json or sqlite
	Path    string `mapstructure:"path" yaml:"path"`       // JSON file; sqlite keeps leads.db in its directory
}

// Dir returns the directory holding the store.
func (s StorageSettings) Dir() string {
	return filepath.Dir(s.Path)
}

// LogSettings controls logging output.
type LogSettings struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // console or json
}

// ExportSettings controls exporters.
type ExportSettings struct {
	Dir  string `mapstructure:"dir" yaml:"dir"`   // default directory for relative export paths
	Logo string `mapstructure:"logo" yaml:"logo"` // optional image placed above the PDF table
}

// BackupSettings controls timestamped backup archives.
type BackupSettings struct {
	Dir    string `mapstructure:"dir" yaml:"dir"`
	Keep   int    `mapstructure:"keep" yaml:"keep"`       // archives kept after pruning, 0 keeps all
	OnExit bool   `mapstructure:"on_exit" yaml:"on_exit"` // desktop writes a backup at shutdown

	// Password encrypts archives. It is only read from LEADBOOK_BACKUP_PASSWORD;
	// a backup.password key in a config file is ignored.
	Password string `mapstructure:"-" yaml:"-"`
}

// DesktopSettings controls the local API used by the desktop front end.
type DesktopSettings struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Settings is the complete configuration.
type Settings struct {
	Storage StorageSettings `mapstructure:"storage" yaml:"storage"`
	Log     LogSettings     `mapstructure:"log" yaml:"log"`
	Export  ExportSettings  `mapstructure:"export" yaml:"export"`
	Backup  BackupSettings  `mapstructure:"backup" yaml:"backup"`
	Desktop DesktopSettings `mapstructure:"desktop" yaml:"desktop"`

	// ConfigFile is the file the settings were read from, empty if none.
	ConfigFile string `mapstructure:"-" yaml:"-"`
}

// Load reads settings into v. An explicit configFile must exist; otherwise
// the default search paths are tried and a missing file is not an error.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		configFile = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range SearchPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, apperrors.Wrap(apperrors.ErrConfigInvalid, "read config file", err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrConfigInvalid, "decode config", err)
	}
	settings.ConfigFile = v.ConfigFileUsed()
	settings.Backup.Password = os.Getenv(PasswordEnv)

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate checks enumerated settings and normalises their spelling.
func (s *Settings) Validate() error {
	s.Storage.Backend = strings.ToLower(strings.TrimSpace(s.Storage.Backend))
	switch s.Storage.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return apperrors.Newf(apperrors.ErrConfigInvalid, "storage.backend must be %q or %q, got %q",
			BackendJSON, BackendSQLite, s.Storage.Backend)
	}
	if strings.TrimSpace(s.Storage.Path) == "" {
		return apperrors.New(apperrors.ErrConfigInvalid, "storage.path must not be empty")
	}

	if s.Backup.Keep < 0 {
		return apperrors.Newf(apperrors.ErrConfigInvalid, "backup.keep must not be negative, got %d", s.Backup.Keep)
	}

	level, err := logging.ParseLevel(s.Log.Level)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "log.level", err)
	}
	s.Log.Level = string(level)

	format, err := logging.ParseFormat(s.Log.Format)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "log.format", err)
	}
	s.Log.Format = string(format)
	return nil
}

// SearchPaths returns the directories searched for config.yaml, most
// specific first.
func SearchPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, AppName))
	}
	return paths
}

// DefaultDataPath is the JSON store location used when none is configured.
func DefaultDataPath() string {
	if dir, err := userDataDir(); err == nil {
		return filepath.Join(dir, AppName, DataFileName)
	}
	return DataFileName
}

// userDataDir returns $XDG_DATA_HOME or ~/.local/share on Unix. Windows,
// macOS and Plan 9 keep application data next to configuration, so they
// use os.UserConfigDir.
func userDataDir() (string, error) {
	switch runtime.GOOS {
	case "windows", "darwin", "ios", "plan9":
		return os.UserConfigDir()
	}
	if dir := os.Getenv("XDG_DATA_HOME"); filepath.IsAbs(dir) {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share"), nil
}

// DefaultBackupDir is where backup archives go when none is configured.
func DefaultBackupDir() string {
	return filepath.Join(filepath.Dir(DefaultDataPath()), "backups")
}

// WriteDefault writes s as YAML to path, refusing to overwrite an existing
// file unless force is set.
func WriteDefault(path string, s *Settings, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return apperrors.Newf(apperrors.ErrConfigInvalid, "config file %s already exists", path)
		}
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
