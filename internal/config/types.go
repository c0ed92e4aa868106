// Package config loads tablejoin CLI settings from defaults, a YAML job
// file, TABLEJOIN_ environment variables and command-line flags.
package config

import (
	"context"
	"strings"
)

// Default values applied before any other source.
const (
	DefaultHow       = "inner"
	DefaultFormat    = "table"
	DefaultMaxRows   = 20
	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
	DefaultMinRows   = 8192
	EnvPrefix        = "TABLEJOIN_"
)

// List is a list of strings that also accepts a comma-separated string, so
// `--on id,region` and `on: [id, region]` load the same way.
type List []string

// UnmarshalText splits text on commas, dropping blanks.
func (l *List) UnmarshalText(text []byte) error {
	var out List
	for _, part := range strings.Split(string(text), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*l = out
	return nil
}

// ParallelConfig controls when the joiner gathers result columns concurrently.
type ParallelConfig struct {
	MinRows int  `koanf:"min_rows"`
	Enabled bool `koanf:"enabled"`
}

// Config holds all CLI configuration options.
type Config struct {
	Left          string         `koanf:"left"`
	Right         string         `koanf:"right"`
	On            List           `koanf:"on"`
	LeftOn        List           `koanf:"left_on"`
	RightOn       List           `koanf:"right_on"`
	How           string         `koanf:"how"`
	CaseSensitive bool           `koanf:"case_sensitive"`
	KeepRightKeys bool           `koanf:"keep_right_keys"`
	Output        string         `koanf:"output"`
	Format        string         `koanf:"format"`
	MaxRows       int            `koanf:"max_rows"`
	LogLevel      string         `koanf:"log_level"`
	LogFormat     string         `koanf:"log_format"`
	SeqURL        string         `koanf:"seq_url"`
	Parallel      ParallelConfig `koanf:"parallel"`

	// File is the config file that was loaded, if any.
	File string `koanf:"-"`
}

// Default returns the configuration used when no other source sets a value.
func Default() *Config {
	return &Config{
		How:           DefaultHow,
		CaseSensitive: true,
		Format:        DefaultFormat,
		MaxRows:       DefaultMaxRows,
		LogLevel:      DefaultLogLevel,
		LogFormat:     DefaultLogFormat,
		Parallel:      ParallelConfig{MinRows: DefaultMinRows, Enabled: true},
	}
}

// KeyColumns returns the left and right key references. On applies to both
// sides and wins over LeftOn/RightOn.
func (c *Config) KeyColumns() (left, right []string) {
	if len(c.On) > 0 {
		return c.On, c.On
	}
	return c.LeftOn, c.RightOn
}

type configKey struct{}

// WithConfig stores cfg in ctx.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config stored by WithConfig, or the defaults.
func FromContext(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	return Default()
}
