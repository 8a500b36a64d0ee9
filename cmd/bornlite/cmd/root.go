package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/born-ml/bornlite/internal/config"
	"github.com/born-ml/bornlite/internal/lite"
	"github.com/born-ml/bornlite/internal/logger"
)

// NewRootCommand builds the bornlite command tree. Running the root command
// with no subcommand converts.
func NewRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "bornlite",
		Short: "Convert ONNX models into quantized flat artifacts",
		Long: `bornlite converts a single ONNX model into a native directory bundle and
then into a flat, optionally quantized artifact for on-device inference.

Configuration is read from defaults, bornlite.yaml, BORNLITE_* environment
variables and flags, in increasing order of precedence.

Example:
  bornlite --input model.onnx --output model.tflite
  bornlite inspect model.onnx
  bornlite verify --value x=1,2,3`,
		Version:       lite.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./bornlite.yaml)")
	addConfigFlags(root.PersistentFlags())

	convert := newConvertCommand(&configFile)
	root.RunE = convert.RunE
	root.AddCommand(
		convert,
		newInspectCommand(),
		newVerifyCommand(&configFile),
		newOpsCommand(&configFile),
		newVersionCommand(),
	)
	return root
}

// Execute runs the CLI and prints any error to stderr.
func Execute() error {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func addConfigFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.String(config.FlagNames["input_path"], d.InputPath, "ONNX model to convert")
	fs.String(config.FlagNames["intermediate_dir"], d.IntermediateDir, "directory for the native bundle (replaced on every run)")
	fs.String(config.FlagNames["output_path"], d.OutputPath, "flat artifact path")
	fs.String(config.FlagNames["optimization_level"], d.OptimizationLevel, "quantization level: none, default, q8_0")
	fs.Int(config.FlagNames["min_elements"], d.MinElements, "smallest tensor size eligible for quantization")
	fs.Bool(config.FlagNames["strict"], d.Strict, "fail on unsupported ONNX ops")
	fs.Bool(config.FlagNames["compress"], d.Compress, "zstd-compress the artifact data section")
	fs.Bool(config.FlagNames["compat.disabled"], d.Compat.Disabled, "do not install the legacy kernel name shim")
	fs.String(config.FlagNames["log.level"], d.Log.Level, "log level: debug, info, warn, error")
	fs.String(config.FlagNames["log.format"], d.Log.Format, "log format: console, json")
}

// loadConfig resolves configuration for cmd and builds its logger.
func loadConfig(cmd *cobra.Command, configFile string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(config.Options{ConfigFile: configFile, Flags: cmd.Flags()})
	if err != nil {
		return nil, nil, err
	}
	sink := zapcore.Lock(zapcore.AddSync(cmd.ErrOrStderr()))
	log := logger.NewWithSink(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, sink)
	return cfg, log, nil
}
