package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/KaramelBytes/vo2scope/internal/dataset"
	"github.com/KaramelBytes/vo2scope/internal/logging"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Default input files, used when no flag or session names them.
	MetadataPath     string `mapstructure:"metadata_path" yaml:"metadata_path"`
	MeasurementsPath string `mapstructure:"measurements_path" yaml:"measurements_path"`

	// Parsing: empty means auto-detect.
	Delimiter          string `mapstructure:"delimiter" yaml:"delimiter"`
	DecimalSeparator   string `mapstructure:"decimal_separator" yaml:"decimal_separator"`
	ThousandsSeparator string `mapstructure:"thousands_separator" yaml:"thousands_separator"`
	Sheet              string `mapstructure:"sheet" yaml:"sheet"`

	// Histogram
	BinCount   int  `mapstructure:"bin_count" yaml:"bin_count"`
	NiceDomain bool `mapstructure:"nice_domain" yaml:"nice_domain"`

	// VO2 normalization
	VO2Scale float64 `mapstructure:"vo2_scale" yaml:"vo2_scale"`
	VO2Min   float64 `mapstructure:"vo2_min" yaml:"vo2_min"`
	VO2Max   float64 `mapstructure:"vo2_max" yaml:"vo2_max"`

	SessionsDir string `mapstructure:"sessions_dir" yaml:"sessions_dir"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Defaults returns the built-in configuration. SessionsDir is left empty and
// resolved by Load.
func Defaults() Global {
	norm := dataset.DefaultNormalizeOptions()
	return Global{
		BinCount:   30,
		NiceDomain: true,
		VO2Scale:   norm.Scale,
		VO2Min:     norm.Min,
		VO2Max:     norm.Max,
		LogLevel:   "warn",
		LogFormat:  "console",
	}
}

// Dir returns ~/.vo2scope.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".vo2scope"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.vo2scope/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults, and validates the
// result. Precedence: flags (applied by the caller) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("VO2SCOPE")
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("metadata_path", d.MetadataPath)
	v.SetDefault("measurements_path", d.MeasurementsPath)
	v.SetDefault("delimiter", d.Delimiter)
	v.SetDefault("decimal_separator", d.DecimalSeparator)
	v.SetDefault("thousands_separator", d.ThousandsSeparator)
	v.SetDefault("sheet", d.Sheet)
	v.SetDefault("bin_count", d.BinCount)
	v.SetDefault("nice_domain", d.NiceDomain)
	v.SetDefault("vo2_scale", d.VO2Scale)
	v.SetDefault("vo2_min", d.VO2Min)
	v.SetDefault("vo2_max", d.VO2Max)
	v.SetDefault("sessions_dir", d.SessionsDir)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.SessionsDir == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		c.SessionsDir = filepath.Join(dir, "sessions")
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

// Validate checks values that cannot be corrected silently.
func (c *Global) Validate() error {
	if c.BinCount <= 0 {
		return fmt.Errorf("bin_count must be positive, got %d", c.BinCount)
	}
	if c.VO2Scale <= 0 {
		return fmt.Errorf("vo2_scale must be positive, got %g", c.VO2Scale)
	}
	if c.VO2Min > c.VO2Max {
		return fmt.Errorf("vo2_min (%g) exceeds vo2_max (%g)", c.VO2Min, c.VO2Max)
	}
	for key, s := range map[string]string{
		"delimiter":           c.Delimiter,
		"decimal_separator":   c.DecimalSeparator,
		"thousands_separator": c.ThousandsSeparator,
	} {
		if _, err := SingleRune(s); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// SingleRune converts a one-character setting to a rune. The empty string
// means auto-detect and yields 0. "tab" and `\t` name the tab character.
func SingleRune(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	case "space":
		return ' ', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("expected a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// ReadOptions returns the parsing options for dataset sources.
func (c *Global) ReadOptions() dataset.ReadOptions {
	d, _ := SingleRune(c.Delimiter)
	return dataset.ReadOptions{Delimiter: d, SheetName: c.Sheet}
}

// NormalizeOptions returns the VO2 normalization settings.
func (c *Global) NormalizeOptions() dataset.NormalizeOptions {
	dec, _ := SingleRune(c.DecimalSeparator)
	th, _ := SingleRune(c.ThousandsSeparator)
	return dataset.NormalizeOptions{
		Scale:   c.VO2Scale,
		Min:     c.VO2Min,
		Max:     c.VO2Max,
		Numbers: dataset.NumberFormat{DecimalSeparator: dec, ThousandsSeparator: th},
	}
}

// LogConfig returns the logger settings.
func (c *Global) LogConfig() logging.LogConfig {
	return logging.LogConfig{Level: c.LogLevel, Format: c.LogFormat}
}
