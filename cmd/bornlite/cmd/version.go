package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/bornlite/internal/flatbuf"
	"github.com/born-ml/bornlite/internal/lite"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the converter and artifact format versions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bornlite %s (artifact format v%d)\n", lite.Version, flatbuf.FormatVersion)
		},
	}
}
