package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/born-ml/bornlite/internal/compat"
	"github.com/born-ml/bornlite/internal/interp"
	"github.com/born-ml/bornlite/internal/numlib"
	"github.com/born-ml/bornlite/internal/onnx"
	"github.com/born-ml/bornlite/internal/tensor"
)

func newVerifyCommand(configFile *string) *cobra.Command {
	var (
		values    []string
		tolerance float32
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare the flat artifact against the ONNX model on the same inputs",
		Long: `verify evaluates the written artifact and the source ONNX model with the
same input values and prints the largest absolute difference per output.

Example:
  bornlite verify --value x=1,2,3 --tolerance 0.05`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd, *configFile)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			inputs, err := parseValues(values)
			if err != nil {
				return err
			}

			model, err := onnx.Load(cfg.InputPath)
			if err != nil {
				return err
			}
			resolver, err := compat.New(numlib.New(), cfg.Compat.Aliases)
			if err != nil {
				return err
			}
			want, err := interp.RunONNX(model, resolver, inputs)
			if err != nil {
				return fmt.Errorf("reference: %w", err)
			}

			b, err := os.ReadFile(cfg.OutputPath)
			if err != nil {
				return err
			}
			prog, err := interp.LoadArtifact(b)
			if err != nil {
				return err
			}
			got, err := prog.Run(inputs)
			if err != nil {
				return fmt.Errorf("artifact: %w", err)
			}

			var failed []string
			for _, spec := range prog.Outputs() {
				ref, ok := want[spec.Name]
				if !ok {
					return fmt.Errorf("reference produced no output %q", spec.Name)
				}
				diff, err := interp.MaxAbsDiff(ref, got[spec.Name])
				if err != nil {
					return fmt.Errorf("output %q: %w", spec.Name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: max abs diff %g\n", spec.Name, diff)
				if diff > tolerance {
					failed = append(failed, spec.Name)
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("outputs exceed tolerance %g: %s", tolerance, strings.Join(failed, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&values, "value", nil, "input values as name=v1,v2,... (repeatable)")
	cmd.Flags().Float32Var(&tolerance, "tolerance", 0.05, "largest accepted absolute difference")
	return cmd
}

// parseValues turns name=v1,v2 pairs into flat float32 tensors. The
// interpreter reshapes them to the declared input shapes.
func parseValues(values []string) (map[string]*tensor.Tensor, error) {
	inputs := make(map[string]*tensor.Tensor, len(values))
	for _, kv := range values {
		name, list, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --value %q: want name=v1,v2", kv)
		}
		fields := strings.Split(list, ",")
		data := make([]float32, 0, len(fields))
		for _, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
			if err != nil {
				return nil, fmt.Errorf("invalid --value %q: %w", kv, err)
			}
			data = append(data, float32(v))
		}
		t, err := tensor.FromFloat32(tensor.Shape{len(data)}, data)
		if err != nil {
			return nil, err
		}
		inputs[name] = t
	}
	return inputs, nil
}
