package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TYPEGRAPH_LOG_LEVEL.
const EnvPrefix = "TYPEGRAPH"

// Config holds all application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Store    StoreConfig    `mapstructure:"store"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
}

// LogConfig selects the slog level ("debug", "info", "warn", "error") and
// handler ("text" or "json").
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig locates the SQLite database analysis runs are persisted in.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// AnalysisConfig tunes graph loading and validation.
type AnalysisConfig struct {
	// Strict turns pointer-loop warnings into validation errors.
	Strict bool `mapstructure:"strict"`

	// Jobs bounds how many binaries are read in parallel. Zero means one
	// per CPU.
	Jobs int `mapstructure:"jobs"`
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	return &Config{
		Log:   LogConfig{Level: "info", Format: "text"},
		Store: StoreConfig{Path: "typegraph.db"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("analysis.strict", d.Analysis.Strict)
	v.SetDefault("analysis.jobs", d.Analysis.Jobs)
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if _, err := parseLevel(c.Log.Level); err != nil {
		warnings = append(warnings, fmt.Sprintf("log level %q is not one of debug, info, warn, error; using info", c.Log.Level))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		warnings = append(warnings, fmt.Sprintf("log format %q is not text or json; using text", c.Log.Format))
	}
	if c.Store.Path == "" {
		warnings = append(warnings, "store path is empty; runs will not be persisted")
	}
	if c.Analysis.Jobs < 0 {
		warnings = append(warnings, fmt.Sprintf("analysis jobs %d is negative; using one per CPU", c.Analysis.Jobs))
	}
	return warnings
}

// Load reads configuration from file and environment. An empty path skips
// the file, leaving defaults and TYPEGRAPH_* overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// NewLogger builds a logger writing to w as configured. Unknown levels
// fall back to info and unknown formats to text.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return level, nil
}
