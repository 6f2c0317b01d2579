// Package config loads the runtime settings of the terminal process. Game
// data (sequence, commands) lives in the JSON data files owned by the store
// package; this package only says where they are and how the process runs.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultSettingsFile    = "settings.json"
	defaultCommandsFile    = "commands.json"
	defaultAdminToken      = "agartha"
	defaultInactivityGrace = 3 * time.Second
	defaultLogLevel        = "info"
	defaultLogMaxFiles     = 10

	// DirName is the per-user and per-project config directory.
	DirName = ".hackterm"
	// FileName is the runtime config file inside DirName.
	FileName = "config.toml"
)

var validLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Config stores runtime settings loaded from TOML files.
type Config struct {
	DataDir         string
	SettingsFile    string
	CommandsFile    string
	AdminToken      string
	// BannerTitle replaces the intro banner title when set.
	BannerTitle     string
	InactivityGrace time.Duration
	AlarmSound      string
	LogDir          string
	LogLevel        string
	LogMaxFiles     int
	WatchFiles      bool
	OTelEndpoint    string

	// Sources lists the files that were applied, in order.
	Sources []string
}

type fileConfig struct {
	DataDir         *string `toml:"data_dir"`
	SettingsFile    *string `toml:"settings_file"`
	CommandsFile    *string `toml:"commands_file"`
	AdminToken      *string `toml:"admin_token"`
	BannerTitle     *string `toml:"banner_title"`
	InactivityGrace *string `toml:"inactivity_grace"`
	AlarmSound      *string `toml:"alarm_sound"`
	LogDir          *string `toml:"log_dir"`
	LogLevel        *string `toml:"log_level"`
	LogMaxFiles     *int    `toml:"log_max_files"`
	WatchFiles      *bool   `toml:"watch_files"`
	OTelEndpoint    *string `toml:"otel_endpoint"`
}

// Load reads config from ~/.hackterm/config.toml, overlays a project-local
// .hackterm/config.toml and then each extra path in order. Missing default
// files are skipped; a missing extra path is an error.
func Load(ctx context.Context, extraPaths ...string) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	workingDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	cfg := defaults(homeDir, workingDir)
	paths := []string{
		filepath.Join(homeDir, DirName, FileName),
		filepath.Join(workingDir, DirName, FileName),
	}
	for _, path := range paths {
		if err := overlayFromFile(&cfg, path, false); err != nil {
			return nil, err
		}
	}
	for _, path := range extraPaths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if err := overlayFromFile(&cfg, path, true); err != nil {
			return nil, err
		}
	}

	_ = ctx
	return &cfg, nil
}

func defaults(homeDir, workingDir string) Config {
	return Config{
		DataDir:         workingDir,
		SettingsFile:    defaultSettingsFile,
		CommandsFile:    defaultCommandsFile,
		AdminToken:      defaultAdminToken,
		InactivityGrace: defaultInactivityGrace,
		LogDir:          filepath.Join(homeDir, DirName, "logs"),
		LogLevel:        defaultLogLevel,
		LogMaxFiles:     defaultLogMaxFiles,
		WatchFiles:      true,
	}
}

func overlayFromFile(cfg *Config, path string, required bool) error {
	if cfg == nil {
		return errors.New("config must not be nil")
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("stat config file %q: %w", path, err)
	}

	var decoded fileConfig
	meta, err := toml.DecodeFile(path, &decoded)
	if err != nil {
		return fmt.Errorf("decode config file %q: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("decode config file %q: unsupported key %q", path, undecoded[0].String())
	}

	base := filepath.Dir(path)
	applyPathOverrides(cfg, decoded, base)
	if err := applyScalarOverrides(cfg, decoded, path); err != nil {
		return err
	}
	if decoded.InactivityGrace != nil {
		value, err := parseDuration(*decoded.InactivityGrace, "inactivity_grace", path)
		if err != nil {
			return err
		}
		cfg.InactivityGrace = value
	}
	cfg.Sources = append(cfg.Sources, path)
	return nil
}

// applyPathOverrides resolves relative data_dir and log_dir against the
// directory holding the config file.
func applyPathOverrides(cfg *Config, decoded fileConfig, base string) {
	if decoded.DataDir != nil {
		cfg.DataDir = resolvePath(*decoded.DataDir, base)
	}
	if decoded.LogDir != nil {
		cfg.LogDir = resolvePath(*decoded.LogDir, base)
	}
	if decoded.SettingsFile != nil {
		cfg.SettingsFile = strings.TrimSpace(*decoded.SettingsFile)
	}
	if decoded.CommandsFile != nil {
		cfg.CommandsFile = strings.TrimSpace(*decoded.CommandsFile)
	}
}

func applyScalarOverrides(cfg *Config, decoded fileConfig, path string) error {
	if decoded.AdminToken != nil {
		token := strings.ToLower(strings.TrimSpace(*decoded.AdminToken))
		if token == "" {
			return fmt.Errorf("parse admin_token in %q: must not be empty", path)
		}
		cfg.AdminToken = token
	}
	if decoded.BannerTitle != nil {
		cfg.BannerTitle = strings.TrimSpace(*decoded.BannerTitle)
	}
	if decoded.AlarmSound != nil {
		cfg.AlarmSound = strings.TrimSpace(*decoded.AlarmSound)
	}
	if decoded.LogLevel != nil {
		level := strings.ToLower(strings.TrimSpace(*decoded.LogLevel))
		if _, ok := validLogLevels[level]; !ok {
			return fmt.Errorf("parse log_level in %q: unsupported level %q", path, *decoded.LogLevel)
		}
		cfg.LogLevel = level
	}
	if decoded.LogMaxFiles != nil {
		if *decoded.LogMaxFiles <= 0 {
			return fmt.Errorf("parse log_max_files in %q: must be > 0", path)
		}
		cfg.LogMaxFiles = *decoded.LogMaxFiles
	}
	if decoded.WatchFiles != nil {
		cfg.WatchFiles = *decoded.WatchFiles
	}
	if decoded.OTelEndpoint != nil {
		cfg.OTelEndpoint = strings.TrimSpace(*decoded.OTelEndpoint)
	}
	return nil
}

func parseDuration(value, key, path string) (time.Duration, error) {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse %s in %q: %w", key, path, err)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("parse %s in %q: must be >= 0", key, path)
	}
	return parsed, nil
}

func resolvePath(value, base string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return base
	}
	if strings.HasPrefix(value, "~"+string(filepath.Separator)) || value == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(value, "~"))
		}
	}
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}
	return filepath.Join(base, value)
}

// SettingsPath returns the absolute path of the settings data file.
func (c *Config) SettingsPath() string {
	return dataPath(c.DataDir, c.SettingsFile)
}

// CommandsPath returns the absolute path of the command table data file.
func (c *Config) CommandsPath() string {
	return dataPath(c.DataDir, c.CommandsFile)
}

func dataPath(dir, file string) string {
	if filepath.IsAbs(file) {
		return filepath.Clean(file)
	}
	return filepath.Join(dir, file)
}

// Redacted renders the config as TOML with the admin token masked, for
// support bundles.
func (c *Config) Redacted() ([]byte, error) {
	if c == nil {
		return nil, errors.New("config must not be nil")
	}
	out := struct {
		DataDir         string `toml:"data_dir"`
		SettingsFile    string `toml:"settings_file"`
		CommandsFile    string `toml:"commands_file"`
		AdminToken      string `toml:"admin_token"`
		BannerTitle     string `toml:"banner_title"`
		InactivityGrace string `toml:"inactivity_grace"`
		AlarmSound      string `toml:"alarm_sound"`
		LogDir          string `toml:"log_dir"`
		LogLevel        string `toml:"log_level"`
		LogMaxFiles     int    `toml:"log_max_files"`
		WatchFiles      bool   `toml:"watch_files"`
		OTelEndpoint    string `toml:"otel_endpoint"`
	}{
		DataDir:         c.DataDir,
		SettingsFile:    c.SettingsFile,
		CommandsFile:    c.CommandsFile,
		AdminToken:      "[redacted]",
		BannerTitle:     c.BannerTitle,
		InactivityGrace: c.InactivityGrace.String(),
		AlarmSound:      c.AlarmSound,
		LogDir:          c.LogDir,
		LogLevel:        c.LogLevel,
		LogMaxFiles:     c.LogMaxFiles,
		WatchFiles:      c.WatchFiles,
		OTelEndpoint:    c.OTelEndpoint,
	}
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(out); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return []byte(buf.String()), nil
}
