// Package config loads the user's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adhocore/gronx"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel slog.Level   `yaml:"log_level"`
	DataDir  string       `yaml:"data_dir,omitempty"`
	InboxDir string       `yaml:"inbox_dir,omitempty"`
	Heatmap  bool         `yaml:"heatmap"`
	Search   SearchConfig `yaml:"search"`
	Sync     SyncConfig   `yaml:"sync"`
	Serve    ServeConfig  `yaml:"serve"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if err := c.Sync.Validate(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := c.Serve.Validate(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

type SearchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0)), validation.Max(5*time.Second)),
	)
}

// SyncConfig points at a remote file host.
type SyncConfig struct {
	URL               string        `yaml:"url,omitempty"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Schedule          string        `yaml:"schedule,omitempty"`
	Timeout           time.Duration `yaml:"timeout"`
}

func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.By(httpURL)),
		validation.Field(&c.RequestsPerSecond, validation.Min(0.0)),
		validation.Field(&c.Schedule, validation.By(cronExpr)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
	)
}

// NextRun returns the next scheduled sync after now. ok is false when no
// schedule is configured.
func (c *SyncConfig) NextRun(now time.Time) (next time.Time, ok bool) {
	if c.Schedule == "" || c.URL == "" {
		return time.Time{}, false
	}
	next, err := gronx.NextTickAfter(c.Schedule, now, false)
	if err != nil {
		return time.Time{}, false
	}
	return next, true
}

type ServeConfig struct {
	Port     int    `yaml:"port"`
	Password string `yaml:"password,omitempty"`
}

// Address returns the listen address.
func (c *ServeConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *ServeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

func httpURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an http or https URL")
	}
	return nil
}

func cronExpr(value any) error {
	s, _ := value.(string)
	if s == "" || gronx.IsValid(s) {
		return nil
	}
	return errors.New("must be a valid cron expression")
}

func DefaultConfig() Config {
	return Config{
		LogLevel: slog.LevelInfo,
		Heatmap:  false,
		Search:   SearchConfig{Debounce: 300 * time.Millisecond},
		Sync: SyncConfig{
			RequestsPerSecond: 4,
			Timeout:           30 * time.Second,
		},
		Serve: ServeConfig{Port: 3000},
	}
}

func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "cbv")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "cbv")
}

func Path() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Load reads the config file, expanding environment variables. A missing
// file yields the defaults; fields absent from the file keep their default.
func Load() (Config, error) {
	cfg := DefaultConfig()
	path := Path()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(Path(), data, 0o644)
}
