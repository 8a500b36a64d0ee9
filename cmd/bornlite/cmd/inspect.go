package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/born-ml/bornlite/internal/flatbuf"
	"github.com/born-ml/bornlite/internal/onnx"
)

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <model.onnx|artifact>",
		Short: "Print a summary of an ONNX model or a flat artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if art, err := flatbuf.ReadFile(args[0]); err == nil {
				printArtifact(out, art)
				return nil
			}
			info, err := onnx.GetModelInfo(args[0])
			if err != nil {
				return err
			}
			printModelInfo(out, info)
			return nil
		},
	}
}

func printModelInfo(w io.Writer, info *onnx.ModelInfo) {
	fmt.Fprintf(w, "Graph:    %s\n", info.GraphName)
	fmt.Fprintf(w, "IR:       %d\n", info.IRVersion)
	fmt.Fprintf(w, "Opset:    %d\n", info.OpsetVersion)
	fmt.Fprintf(w, "Producer: %s %s\n", info.ProducerName, info.ProducerVersion)
	fmt.Fprintf(w, "Inputs:   %s\n", strings.Join(info.InputNames, ", "))
	fmt.Fprintf(w, "Outputs:  %s\n", strings.Join(info.OutputNames, ", "))
	fmt.Fprintf(w, "Nodes:    %d\n", info.NodeCount)
	fmt.Fprintf(w, "Weights:  %d\n", info.WeightCount)

	ops := make([]string, 0, len(info.OpTypes))
	for op := range info.OpTypes {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	for _, op := range ops {
		fmt.Fprintf(w, "  %-20s %d\n", op, info.OpTypes[op])
	}
}

func printArtifact(w io.Writer, a *flatbuf.Artifact) {
	m := a.Model
	fmt.Fprintf(w, "Graph:      %s\n", m.Name)
	fmt.Fprintf(w, "Format:     v%d\n", a.Header.Version)
	fmt.Fprintf(w, "Converter:  %s\n", m.ConverterVersion)
	fmt.Fprintf(w, "Compressed: %t\n", a.Compressed())
	fmt.Fprintf(w, "Ops:        %d\n", len(m.Ops))
	fmt.Fprintf(w, "Tensors:    %d (%d quantized)\n", len(m.Tensors), m.QuantizedCount())
	for _, t := range m.Tensors {
		fmt.Fprintf(w, "  %-24s %-6s %v %s\n", t.Name, t.DType, t.Shape, t.Scheme)
	}

	keys := make([]string, 0, len(m.Metadata))
	for k := range m.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s=%s\n", k, m.Metadata[k])
	}
}
