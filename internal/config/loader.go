package config

import (
	"fmt"
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

// defaultFiles are looked up in the working directory when no file is given.
var defaultFiles = []string{"tablejoin.yaml", "tablejoin.yml"}

// findConfigFile finds the config file to use.
// Priority: explicit path > tablejoin.yaml > tablejoin.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range defaultFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// envKey maps TABLEJOIN_PARALLEL_MIN_ROWS to parallel.min_rows and
// TABLEJOIN_LEFT_ON to left_on.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if rest, ok := strings.CutPrefix(key, "parallel_"); ok {
		return "parallel." + rest
	}
	return key
}

// flagKey maps a command-line flag to its config key and value. Flags the
// user did not set are skipped.
func flagKey(flags *pflag.FlagSet, f *pflag.Flag) (string, interface{}) {
	if !f.Changed {
		return "", nil
	}
	switch f.Name {
	case "config":
		return "", nil
	case "ignore-case":
		ignore, _ := flags.GetBool("ignore-case")
		return "case_sensitive", !ignore
	case "verbose":
		if v, _ := flags.GetBool("verbose"); v {
			return "log_level", "debug"
		}
		return "", nil
	case "no-parallel":
		off, _ := flags.GetBool("no-parallel")
		return "parallel.enabled", !off
	case "parallel-min-rows":
		return "parallel.min_rows", posflag.FlagVal(flags, f)
	}
	return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
}

// Load loads configuration from defaults, the config file, environment
// variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	def := Default()

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"how":               def.How,
		"case_sensitive":    def.CaseSensitive,
		"format":            def.Format,
		"max_rows":          def.MaxRows,
		"log_level":         def.LogLevel,
		"log_format":        def.LogFormat,
		"parallel.min_rows": def.Parallel.MinRows,
		"parallel.enabled":  def.Parallel.Enabled,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. Environment variables (TABLEJOIN_ prefix)
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			return flagKey(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used
	return &cfg, nil
}
