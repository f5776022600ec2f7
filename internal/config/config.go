// Package config loads stubgen settings from stubgen.yaml, a .env file and
// the environment.
//
// Layers apply in order, later ones winning: built-in defaults, the YAML
// file, .env entries, real environment variables. Command-line flags are
// applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stubgen/internal/defaults"
	"stubgen/internal/group"
	"stubgen/internal/model"
	"stubgen/internal/toolchain"
)

// DefaultPath is where the CLI looks for the config file.
const DefaultPath = "stubgen.yaml"

// DotenvFile is read from the working directory when present.
const DotenvFile = ".env"

// Environment variables understood by ApplyEnv.
const (
	EnvHeaders         = "STUBGEN_HEADERS"
	EnvOutput          = "STUBGEN_OUTPUT"
	EnvFeatures        = "STUBGEN_FEATURES"
	EnvToolchainPrefix = "STUBGEN_TOOLCHAIN_PREFIX"
	EnvIncludeDirs     = "STUBGEN_INCLUDE_DIRS"
	EnvParallel        = "STUBGEN_PARALLEL"
)

// Config is the complete build configuration.
type Config struct {
	Headers       string              `yaml:"headers"`
	Output        string              `yaml:"output"`
	Features      []string            `yaml:"features,omitempty"`
	Parallel      bool                `yaml:"parallel"`
	StrictSymbols bool                `yaml:"strict_symbols"`
	Toolchain     toolchain.Toolchain `yaml:"toolchain"`
	Defaults      map[string]string   `yaml:"defaults,omitempty"`
	Groups        []model.HeaderGroup `yaml:"groups,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Headers:   filepath.Join("rss", "include"),
		Output:    filepath.Join("build", "stubs"),
		Toolchain: toolchain.Default(),
	}
}

// Load reads path on top of the defaults.
// A missing file is not an error: the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return cfg, nil
}

// Create writes cfg to path. It refuses to replace an existing file.
func Create(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("config %s already exists", path)
	}
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write config: %w", err)
	}
	return f.Close()
}

// LookupFunc resolves one environment variable.
type LookupFunc func(key string) (string, bool)

// Environ returns a lookup over the process environment backed by the
// entries of dotenv. Real environment variables win over .env entries.
// A missing dotenv file contributes nothing.
func Environ(dotenv string) (LookupFunc, error) {
	vars, err := godotenv.Read(dotenv)
	if errors.Is(err, os.ErrNotExist) {
		vars = nil
	} else if err != nil {
		return nil, fmt.Errorf("read %s: %w", dotenv, err)
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := vars[key]
		return v, ok
	}, nil
}

// ApplyEnv overlays the STUBGEN_* variables found through lookup.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if v, ok := lookup(EnvHeaders); ok && v != "" {
		c.Headers = v
	}
	if v, ok := lookup(EnvOutput); ok && v != "" {
		c.Output = v
	}
	if v, ok := lookup(EnvFeatures); ok {
		c.Features = []string{v}
	}
	if v, ok := lookup(EnvToolchainPrefix); ok {
		c.Toolchain.Prefix = v
	}
	if v, ok := lookup(EnvIncludeDirs); ok && v != "" {
		c.Toolchain.IncludeDirs = filepath.SplitList(v)
	}
	if v, ok := lookup(EnvParallel); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvParallel, err)
		}
		c.Parallel = b
	}
	return nil
}

// Registry returns the built-in default-value registry with the
// configured overrides applied.
func (c *Config) Registry() (*defaults.Registry, error) {
	if len(c.Defaults) == 0 {
		return defaults.Default(), nil
	}
	reg, err := defaults.Default().With(c.Defaults)
	if err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return reg, nil
}

// Capabilities parses the configured feature names.
func (c *Config) Capabilities() (group.Capabilities, error) {
	return group.ParseCapabilities(c.Features)
}

// Catalog returns the configured groups, or the built-in catalog when the
// config names none.
func (c *Config) Catalog() []model.HeaderGroup {
	if len(c.Groups) > 0 {
		return c.Groups
	}
	return group.Catalog()
}

// EnabledGroups resolves the groups this configuration builds.
func (c *Config) EnabledGroups() ([]model.HeaderGroup, error) {
	caps, err := c.Capabilities()
	if err != nil {
		return nil, err
	}
	return group.Enabled(c.Catalog(), caps)
}
