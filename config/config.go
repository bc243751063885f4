package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/whitekid/goxp/fx"
	"github.com/whitekid/goxp/log"
	"gopkg.in/yaml.v3"

	"drg/pkg/helper"
)

const defaultFileName = "drg_config.yaml"

var (
	ErrConfigNotFound  = errors.New("config file not found, please login first")
	ErrInvalidConfig   = errors.New("invalid config")
	ErrContextNotFound = errors.New("context not found")
	ErrContextExists   = errors.New("context already exists")
	ErrNoActiveContext = errors.New("no active context")
	ErrNoApplication   = errors.New("missing application: set a default application or use --app")
)

// Config context store
type Config struct {
	ActiveContext string     `yaml:"active_context" json:"active_context"`
	Contexts      []*Context `yaml:"contexts" json:"contexts"`

	dirty bool
}

// DefaultPath returns $XDG_CONFIG_HOME/drg_config.yaml
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}

	return filepath.Join(dir, defaultFileName)
}

// Load read config file. missing or malformed file is an error.
func Load(path string) (*Config, error) {
	log.Debugf("load config from %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrap(ErrConfigNotFound, path)
		}
		return nil, errors.Wrapf(err, "fail to read config %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		if errors.Is(err, ErrInvalidConfig) {
			return nil, err
		}
		return nil, errors.Wrapf(ErrInvalidConfig, "%s: %s", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrNew read config file or returns empty config if the file does not exist
func LoadOrNew(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, ErrConfigNotFound) {
		return &Config{}, nil
	}

	return cfg, err
}

// Validate validate contexts and the active context pointer
func (cfg *Config) Validate() error {
	names := map[string]struct{}{}
	for _, c := range cfg.Contexts {
		if err := c.Validate(); err != nil {
			return err
		}

		if _, ok := names[c.Name]; ok {
			return errors.Wrapf(ErrInvalidConfig, "duplicated context %q", c.Name)
		}
		names[c.Name] = struct{}{}
	}

	if cfg.ActiveContext != "" {
		if _, ok := names[cfg.ActiveContext]; !ok {
			return errors.Wrapf(ErrInvalidConfig, "active context %q does not exist", cfg.ActiveContext)
		}
	}

	return nil
}

// Save write config atomically
func (cfg *Config) Save(path string) error {
	data, err := helper.MarshalYAML(cfg)
	if err != nil {
		return errors.Wrap(err, "fail to encode config")
	}

	if err := helper.WriteFileAtomic(path, data, 0o600); err != nil {
		return errors.Wrapf(err, "fail to write config %s", path)
	}

	log.Debugf("config saved to %s", path)
	cfg.dirty = false
	return nil
}

// Dirty returns true if config was changed after load or save
func (cfg *Config) Dirty() bool { return cfg.dirty }

// MarkDirty mark config changed; used when a context was changed in place, e.g. token refresh
func (cfg *Config) MarkDirty() { cfg.dirty = true }

func (cfg *Config) index(name string) int {
	for i, c := range cfg.Contexts {
		if c.Name == name {
			return i
		}
	}

	return -1
}

// Names returns context names
func (cfg *Config) Names() []string {
	return fx.Map(cfg.Contexts, func(c *Context) string { return c.Name })
}

// AddOrReplace append context or replace the context with the same name.
// The first context becomes active.
func (cfg *Config) AddOrReplace(c *Context) (replaced bool) {
	cfg.dirty = true

	if i := cfg.index(c.Name); i >= 0 {
		log.Infof("context %q exists, replaced", c.Name)
		cfg.Contexts[i] = c
		return true
	}

	cfg.Contexts = append(cfg.Contexts, c)
	if len(cfg.Contexts) == 1 {
		cfg.ActiveContext = c.Name
	}

	return false
}

// Get returns context by name
func (cfg *Config) Get(name string) (*Context, error) {
	if i := cfg.index(name); i >= 0 {
		return cfg.Contexts[i], nil
	}

	return nil, errors.Wrapf(ErrContextNotFound, "%q", name)
}

// Active returns active context
func (cfg *Config) Active() (*Context, error) {
	if cfg.ActiveContext == "" {
		return nil, ErrNoActiveContext
	}

	return cfg.Get(cfg.ActiveContext)
}

// Resolve returns named context or active context if name is empty
func (cfg *Config) Resolve(name string) (*Context, error) {
	if name != "" {
		return cfg.Get(name)
	}

	return cfg.Active()
}

func (cfg *Config) SetActive(name string) error {
	if _, err := cfg.Get(name); err != nil {
		return err
	}

	cfg.ActiveContext = name
	cfg.dirty = true
	return nil
}

// Delete delete context. if it was active, the first remaining context becomes active.
func (cfg *Config) Delete(name string) error {
	i := cfg.index(name)
	if i < 0 {
		return errors.Wrapf(ErrContextNotFound, "%q", name)
	}

	cfg.Contexts = append(cfg.Contexts[:i], cfg.Contexts[i+1:]...)
	cfg.dirty = true

	if cfg.ActiveContext == name {
		cfg.ActiveContext = fx.TernaryCF(len(cfg.Contexts) > 0,
			func() string { return cfg.Contexts[0].Name },
			func() string { return "" })
		log.Debugf("active context changed to %q", cfg.ActiveContext)
	}

	return nil
}

// Rename rename context; the store is unchanged on error
func (cfg *Config) Rename(oldName, newName string) error {
	i := cfg.index(oldName)
	if i < 0 {
		return errors.Wrapf(ErrContextNotFound, "%q", oldName)
	}

	if cfg.index(newName) >= 0 {
		return errors.Wrapf(ErrContextExists, "%q", newName)
	}

	cfg.Contexts[i].Name = newName
	if cfg.ActiveContext == oldName {
		cfg.ActiveContext = newName
	}
	cfg.dirty = true

	return nil
}

// SetDefaultApp set default application of the context
func (cfg *Config) SetDefaultApp(c *Context, app string) {
	c.DefaultApp = app
	cfg.dirty = true
}

// SetDefaultAlgo set default signing algorithm of the context
func (cfg *Config) SetDefaultAlgo(c *Context, algo string) error {
	a, err := c.Algorithm(algo)
	if err != nil {
		return err
	}

	c.DefaultAlgo = a.String()
	cfg.dirty = true
	return nil
}
