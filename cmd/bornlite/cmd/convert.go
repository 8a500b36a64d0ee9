package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/bornlite/internal/pipeline"
)

func newConvertCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "convert",
		Short: "Convert the configured ONNX model (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd, *configFile)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			res, err := pipeline.Run(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote flat model to %s\n", res.OutputPath)
			return nil
		},
	}
}
