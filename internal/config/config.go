// Package config loads designboard settings from ~/.designboard/config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fentz26/designboard/internal/models"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// ErrUnknownActor is returned when an actor id is not configured.
var ErrUnknownActor = errors.New("unknown actor")

// Config holds daemon and client settings.
type Config struct {
	// Listen is the daemon bind address.
	Listen string `yaml:"listen"`
	// API is the daemon base URL used by clients.
	API string `yaml:"api"`
	// DB is the SQLite database path.
	DB string `yaml:"db"`
	// Actor is the id of the local operator.
	Actor string `yaml:"actor"`
	// PollInterval is the periodic reload cadence.
	PollInterval time.Duration `yaml:"poll_interval"`
	// DragThreshold is the pointer travel, in cells, that turns a press
	// into a drag.
	DragThreshold int `yaml:"drag_threshold"`
	// Locale selects the collation used for text sorts (BCP 47).
	Locale string `yaml:"locale"`
	// StrictWrites rejects status writes against a stale revision.
	StrictWrites bool `yaml:"strict_writes"`
	// FeedBuffer is the per-subscriber change feed capacity.
	FeedBuffer int `yaml:"feed_buffer"`
	// Actors lists the operators the daemon accepts.
	Actors []models.Actor `yaml:"actors"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	dir := Dir()
	return &Config{
		Listen:        "127.0.0.1:7466",
		API:           "http://127.0.0.1:7466",
		DB:            filepath.Join(dir, "designboard.db"),
		Actor:         "admin",
		PollInterval:  60 * time.Second,
		DragThreshold: 3,
		Locale:        "en",
		FeedBuffer:    64,
		Actors: []models.Actor{
			{ID: "admin", Name: "Administrator", Roles: []models.Role{models.RoleSuperAdmin}},
		},
	}
}

// Dir returns the designboard settings directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".designboard"
	}
	return filepath.Join(home, ".designboard")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromHome loads ~/.designboard/config.yaml.
func LoadFromHome() (*Config, error) {
	return Load(DefaultPath())
}

// Save writes configuration to a YAML file, creating parent directories if
// needed.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.DragThreshold < 0 {
		return fmt.Errorf("drag_threshold cannot be negative")
	}
	if c.FeedBuffer < 1 {
		return fmt.Errorf("feed_buffer must be at least 1")
	}
	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("invalid locale %q: %w", c.Locale, err)
	}

	seen := map[string]bool{}
	for _, a := range c.Actors {
		if a.ID == "" {
			return fmt.Errorf("actor id cannot be empty")
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate actor %q", a.ID)
		}
		seen[a.ID] = true
		for _, r := range a.Roles {
			if !r.IsValid() {
				return fmt.Errorf("actor %q: unknown role %q", a.ID, r)
			}
		}
		for _, col := range a.AllowedColumns {
			if _, ok := models.ParseBucket(string(col)); !ok {
				return fmt.Errorf("actor %q: unknown column %q", a.ID, col)
			}
		}
	}
	return nil
}

// LookupActor returns the configured actor with the given id.
func (c *Config) LookupActor(id string) (models.Actor, error) {
	for _, a := range c.Actors {
		if a.ID == id {
			return a, nil
		}
	}
	return models.Actor{}, fmt.Errorf("%w: %q", ErrUnknownActor, id)
}
