// Package config loads converter settings from defaults, an optional
// bornlite.yaml, BORNLITE_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Default paths of the Android app layout the converter was built for.
const (
	DefaultInputPath       = "app/src/main/cpp/llama.cpp/build/gemma3nlu.onnx"
	DefaultIntermediateDir = "app/src/main/assets/models/gemma3nlu_saved_model"
	DefaultOutputPath      = "app/src/main/assets/models/gemma3nlu.tflite"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "BORNLITE"

// Config holds all converter settings.
type Config struct {
	InputPath         string       `mapstructure:"input_path" validate:"required"`
	IntermediateDir   string       `mapstructure:"intermediate_dir" validate:"required"`
	OutputPath        string       `mapstructure:"output_path" validate:"required"`
	OptimizationLevel string       `mapstructure:"optimization_level" validate:"oneof=none default q8_0"`
	MinElements       int          `mapstructure:"min_elements" validate:"gte=1"`
	Strict            bool         `mapstructure:"strict"`
	Compress          bool         `mapstructure:"compress"`
	Compat            CompatConfig `mapstructure:"compat"`
	Log               LogConfig    `mapstructure:"log"`
}

// CompatConfig controls the legacy name shim.
type CompatConfig struct {
	// Disabled skips the shim so the translator sees the bare namespace.
	Disabled bool              `mapstructure:"disabled"`
	Aliases  map[string]string `mapstructure:"aliases"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// Options controls Load.
type Options struct {
	// ConfigFile, when set, must exist. Otherwise bornlite.yaml is looked up
	// in . and ./config and skipped when absent.
	ConfigFile string

	// Flags are bound over every other source. Flags missing from the set
	// are ignored.
	Flags *pflag.FlagSet
}

// FlagNames maps configuration keys to the command-line flags bound to them.
var FlagNames = map[string]string{
	"input_path":         "input",
	"intermediate_dir":   "intermediate-dir",
	"output_path":        "output",
	"optimization_level": "optimization",
	"min_elements":       "min-elements",
	"strict":             "strict",
	"compress":           "compress",
	"compat.disabled":    "no-shim",
	"log.level":          "log-level",
	"log.format":         "log-format",
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		InputPath:         DefaultInputPath,
		IntermediateDir:   DefaultIntermediateDir,
		OutputPath:        DefaultOutputPath,
		OptimizationLevel: "default",
		MinElements:       1024,
		Compat:            CompatConfig{Aliases: map[string]string{}},
		Log:               LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads and validates the configuration.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName("bornlite")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	if opts.Flags != nil {
		for key, name := range FlagNames {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.Compat.Aliases == nil {
		cfg.Compat.Aliases = map[string]string{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("input_path", d.InputPath)
	v.SetDefault("intermediate_dir", d.IntermediateDir)
	v.SetDefault("output_path", d.OutputPath)
	v.SetDefault("optimization_level", d.OptimizationLevel)
	v.SetDefault("min_elements", d.MinElements)
	v.SetDefault("strict", d.Strict)
	v.SetDefault("compress", d.Compress)
	v.SetDefault("compat.disabled", false)
	v.SetDefault("compat.aliases", map[string]string{})
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

var validate = validator.New()

// Validate checks field values and path relationships.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			msgs := make([]string, 0, len(errs))
			for _, e := range errs {
				msgs = append(msgs, fmt.Sprintf("%s: %s", e.Namespace(), message(e)))
			}
			return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}

	// The intermediate directory is deleted on every run.
	if within(c.InputPath, c.IntermediateDir) {
		return fmt.Errorf("config: input_path %q is inside intermediate_dir %q", c.InputPath, c.IntermediateDir)
	}
	if within(c.OutputPath, c.IntermediateDir) {
		return fmt.Errorf("config: output_path %q is inside intermediate_dir %q", c.OutputPath, c.IntermediateDir)
	}
	return nil
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s (got %q)", e.Param(), e.Value())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", e.Param())
	default:
		return fmt.Sprintf("failed validation: %s", e.Tag())
	}
}

// within reports whether path is dir or lies below it.
func within(path, dir string) bool {
	p, err1 := filepath.Abs(path)
	d, err2 := filepath.Abs(dir)
	if err1 != nil || err2 != nil {
		return false
	}
	rel, err := filepath.Rel(d, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
