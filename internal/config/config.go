// Package config loads listscope settings from defaults, an optional YAML
// file, LISTSCOPE_ environment variables and explicitly set flags, in
// increasing order of precedence.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "LISTSCOPE_"

// DefaultConfigFile is looked up in the working directory when no file is
// named explicitly.
const DefaultConfigFile = "listscope.yaml"

// Registry backends.
const (
	RegistryMemory = "memory"
	RegistrySQLite = "sqlite"
)

// Config holds every setting of a session.
type Config struct {
	Prompt         string `koanf:"prompt"`
	HistoryFile    string `koanf:"history_file"`
	FailFast       bool   `koanf:"fail_fast"`
	Registry       string `koanf:"registry"`
	RegistryDSN    string `koanf:"registry_dsn"`
	CompileWorkers int    `koanf:"compile_workers"`
	MaxCallDepth   int    `koanf:"max_call_depth"`
	EchoAST        bool   `koanf:"echo_ast"`
	DumpUnit       bool   `koanf:"dump_unit"`
	NoStdlib       bool   `koanf:"no_stdlib"`
	LogLevel       string `koanf:"log_level"`
	LogFormat      string `koanf:"log_format"`

	// File is the config file that was read, if any.
	File string `koanf:"-"`
}

// Defaults returns the default settings as koanf keys.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"prompt":          "ready> ",
		"history_file":    "",
		"fail_fast":       false,
		"registry":        RegistryMemory,
		"registry_dsn":    ":memory:",
		"compile_workers": 4,
		"max_call_depth":  10000,
		"echo_ast":        true,
		"dump_unit":       false,
		"no_stdlib":       false,
		"log_level":       "warn",
		"log_format":      "text",
	}
}

// Load builds a Config. cfgFile may be empty, in which case
// DefaultConfigFile is used if present. Only flags marked Changed override
// lower layers.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used := cfgFile
	if used == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			used = DefaultConfigFile
		}
	}
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// LISTSCOPE_MAX_CALL_DEPTH -> max_call_depth
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no session could run with.
func (c *Config) Validate() error {
	switch c.Registry {
	case RegistryMemory, RegistrySQLite:
	default:
		return fmt.Errorf("invalid registry %q (want %s or %s)", c.Registry, RegistryMemory, RegistrySQLite)
	}
	if c.Registry == RegistrySQLite && c.RegistryDSN == "" {
		return fmt.Errorf("registry_dsn is required for the %s registry", RegistrySQLite)
	}
	if c.MaxCallDepth < 0 {
		return fmt.Errorf("max_call_depth must not be negative, got %d", c.MaxCallDepth)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q (want text or json)", c.LogFormat)
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", s, err)
	}
	return level, nil
}

// NewLogger builds the session logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
