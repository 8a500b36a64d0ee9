package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "app/src/main/cpp/llama.cpp/build/gemma3nlu.onnx", cfg.InputPath)
	assert.Equal(t, "app/src/main/assets/models/gemma3nlu_saved_model", cfg.IntermediateDir)
	assert.Equal(t, "app/src/main/assets/models/gemma3nlu.tflite", cfg.OutputPath)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("BORNLITE_OUTPUT_PATH", "/tmp/out.tflite")
	t.Setenv("BORNLITE_MIN_ELEMENTS", "2048")
	t.Setenv("BORNLITE_STRICT", "true")
	t.Setenv("BORNLITE_LOG_LEVEL", "debug")

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/out.tflite", cfg.OutputPath)
	assert.Equal(t, 2048, cfg.MinElements)
	assert.True(t, cfg.Strict)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bornlite.yaml")
	content := `
input_path: models/nlu.onnx
optimization_level: q8_0
compress: true
compat:
  aliases:
    tan: math.sin
log:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(Options{ConfigFile: path})
	require.NoError(t, err)

	assert.Equal(t, "models/nlu.onnx", cfg.InputPath)
	assert.Equal(t, "q8_0", cfg.OptimizationLevel)
	assert.True(t, cfg.Compress)
	assert.Equal(t, map[string]string{"tan": "math.sin"}, cfg.Compat.Aliases)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(Options{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("BORNLITE_INPUT_PATH", "from-env.onnx")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("input", "", "")
	flags.String("optimization", "default", "")
	require.NoError(t, flags.Parse([]string{"--input", "from-flag.onnx"}))

	cfg, err := Load(Options{Flags: flags})
	require.NoError(t, err)

	assert.Equal(t, "from-flag.onnx", cfg.InputPath)
	assert.Equal(t, "default", cfg.OptimizationLevel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"empty input", func(c *Config) { c.InputPath = "" }, "InputPath: is required"},
		{"bad level", func(c *Config) { c.OptimizationLevel = "float16" }, "OptimizationLevel: must be one of"},
		{"bad min elements", func(c *Config) { c.MinElements = 0 }, "MinElements"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "Format"},
		{"input inside intermediate", func(c *Config) {
			c.IntermediateDir = "work"
			c.InputPath = "work/model.onnx"
		}, "inside intermediate_dir"},
		{"output is intermediate", func(c *Config) {
			c.IntermediateDir = "work"
			c.OutputPath = "work"
		}, "inside intermediate_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestWithin(t *testing.T) {
	assert.True(t, within("a/b/c", "a"))
	assert.True(t, within("a", "a"))
	assert.False(t, within("ab/c", "a"))
	assert.False(t, within("..a/c", "."+string(filepath.Separator)+"b"))
	assert.False(t, within("a", "a/b"))
}
