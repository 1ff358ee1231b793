// Package config resolves feedscout settings from defaults, JSONC files, the environment
// and command-line overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailscale/hujson"
)

var (
	// ErrInvalid wraps every validation and parse failure.
	ErrInvalid = errors.New("invalid config")
	// ErrFileNotFound is returned when an explicit config file is missing.
	ErrFileNotFound = errors.New("config file not found")
)

// Sources.
const (
	SourceUsers   = "users"
	SourceThreads = "threads"
)

// Config holds the resolved settings.
type Config struct {
	Endpoint  string
	Token     string
	Source    string
	PageSize  int
	Overscan  int
	StateFile string
	Timeout   time.Duration

	// Files lists the config files that were applied, lowest precedence first.
	Files []string
}

// fileConfig is the on-disk shape. Pointers distinguish "unset" from zero values.
type fileConfig struct {
	Endpoint  *string `json:"endpoint"`
	Source    *string `json:"source"`
	PageSize  *int    `json:"page_size"`
	Overscan  *int    `json:"overscan"`
	StateFile *string `json:"state_file"`
	Timeout   *string `json:"timeout"`
}

// Overrides are command-line values; zero values mean "not given". Overscan is a pointer
// because zero is a valid setting.
type Overrides struct {
	Endpoint  string
	Source    string
	PageSize  int
	Overscan  *int
	StateFile string
	Timeout   time.Duration
}

// Input describes where to load configuration from.
type Input struct {
	// ConfigPath is an explicit file; it must exist when set.
	ConfigPath string
	Env        map[string]string
	Overrides  Overrides
}

// Default returns the built-in settings.
func Default(env map[string]string) Config {
	return Config{
		Endpoint:  "http://localhost:3000",
		Source:    SourceUsers,
		PageSize:  30,
		Overscan:  10,
		StateFile: defaultStatePath(env),
		Timeout:   10 * time.Second,
	}
}

// Load applies, lowest precedence first: defaults, the global config file, the explicit
// config file, the environment and the overrides.
func Load(in Input) (Config, error) {
	cfg := Default(in.Env)

	if path := GlobalPath(in.Env); path != "" {
		fc, ok, err := readFile(path, false)
		if err != nil {
			return Config{}, err
		}
		if ok {
			if err := cfg.apply(fc); err != nil {
				return Config{}, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
			}
			cfg.Files = append(cfg.Files, path)
		}
	}
	if in.ConfigPath != "" {
		fc, _, err := readFile(in.ConfigPath, true)
		if err != nil {
			return Config{}, err
		}
		if err := cfg.apply(fc); err != nil {
			return Config{}, fmt.Errorf("%w %s: %w", ErrInvalid, in.ConfigPath, err)
		}
		cfg.Files = append(cfg.Files, in.ConfigPath)
	}

	if v := in.Env["FEEDSCOUT_ENDPOINT"]; v != "" {
		cfg.Endpoint = v
	}
	if v := in.Env["FEEDSCOUT_STATE"]; v != "" {
		cfg.StateFile = v
	}
	cfg.Token = in.Env["FEEDSCOUT_TOKEN"]

	o := in.Overrides
	if o.Endpoint != "" {
		cfg.Endpoint = o.Endpoint
	}
	if o.Source != "" {
		cfg.Source = o.Source
	}
	if o.PageSize != 0 {
		cfg.PageSize = o.PageSize
	}
	if o.Overscan != nil {
		cfg.Overscan = *o.Overscan
	}
	if o.StateFile != "" {
		cfg.StateFile = o.StateFile
	}
	if o.Timeout != 0 {
		cfg.Timeout = o.Timeout
	}

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, nil
}

// GlobalPath returns $XDG_CONFIG_HOME/feedscout/config.jsonc, falling back to ~/.config.
func GlobalPath(env map[string]string) string {
	if dir := env["XDG_CONFIG_HOME"]; dir != "" {
		return filepath.Join(dir, "feedscout", "config.jsonc")
	}
	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "feedscout", "config.jsonc")
	}
	return ""
}

func defaultStatePath(env map[string]string) string {
	if dir := env["XDG_STATE_HOME"]; dir != "" {
		return filepath.Join(dir, "feedscout", "positions.json")
	}
	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".local", "state", "feedscout", "positions.json")
	}
	return ""
}

func readFile(path string, mustExist bool) (fileConfig, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if mustExist {
				return fileConfig{}, false, fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}
			return fileConfig{}, false, nil
		}
		return fileConfig{}, false, err
	}
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, false, fmt.Errorf("%w %s: invalid JSONC: %w", ErrInvalid, path, err)
	}
	var fc fileConfig
	dec := json.NewDecoder(strings.NewReader(string(standardized)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return fileConfig{}, false, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}
	return fc, true, nil
}

func (c *Config) apply(fc fileConfig) error {
	if fc.Endpoint != nil {
		c.Endpoint = *fc.Endpoint
	}
	if fc.Source != nil {
		c.Source = *fc.Source
	}
	if fc.PageSize != nil {
		c.PageSize = *fc.PageSize
	}
	if fc.Overscan != nil {
		c.Overscan = *fc.Overscan
	}
	if fc.StateFile != nil {
		c.StateFile = *fc.StateFile
	}
	if fc.Timeout != nil {
		d, err := time.ParseDuration(*fc.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		c.Timeout = d
	}
	return nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is empty")
	}
	if c.Source != SourceUsers && c.Source != SourceThreads {
		return fmt.Errorf("source %q must be %q or %q", c.Source, SourceUsers, SourceThreads)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("page_size %d must be positive", c.PageSize)
	}
	if c.Overscan < 0 {
		return fmt.Errorf("overscan %d must not be negative", c.Overscan)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout %s must be positive", c.Timeout)
	}
	return nil
}
