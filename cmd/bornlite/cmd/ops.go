package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/born-ml/bornlite/internal/compat"
	"github.com/born-ml/bornlite/internal/numlib"
	"github.com/born-ml/bornlite/internal/translate"
)

func newOpsCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List the ONNX op types the translator supports and the shim aliases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd, *configFile)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			adapter, err := compat.New(numlib.New(), cfg.Compat.Aliases)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, op := range translate.SupportedOps() {
				fmt.Fprintln(out, op)
			}

			aliases := adapter.Aliases()
			names := make([]string, 0, len(aliases))
			for name := range aliases {
				names = append(names, name)
			}
			sort.Strings(names)

			usedBy := make(map[string]string)
			for op, sym := range translate.LegacySymbols() {
				usedBy[sym] = op
			}

			fmt.Fprintln(out, "\nShim aliases:")
			for _, name := range names {
				line := fmt.Sprintf("  %-8s -> %s", name, aliases[name])
				if op, ok := usedBy[name]; ok {
					line += " (" + op + ")"
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}
