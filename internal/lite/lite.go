// Package lite converts a native bundle directory into a flat model artifact,
// optionally quantizing its constants.
package lite

import (
	"fmt"
	"sort"

	"github.com/born-ml/bornlite/internal/flatbuf"
	"github.com/born-ml/bornlite/internal/quantize"
	"github.com/born-ml/bornlite/internal/savedmodel"
)

// Version is stamped into every artifact.
const Version = "0.1.0"

// Converter turns a loaded bundle into artifact bytes.
type Converter struct {
	// Optimization selects the quantization level. Zero value means none.
	Optimization quantize.Level

	// MinElements is the smallest float32 constant that gets quantized.
	MinElements int

	// Compress stores the data section zstd compressed.
	Compress bool

	// Metadata is copied into the artifact.
	Metadata map[string]string

	// Report describes the last successful Convert call.
	Report Report

	bundle *savedmodel.Bundle
}

// Report summarizes a conversion.
type Report struct {
	Ops         int
	Tensors     int
	Quantized   []string
	Unsupported []string
	Bytes       int
}

// FromSavedModel loads the bundle in dir.
func FromSavedModel(dir string) (*Converter, error) {
	b, err := savedmodel.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("lite: %w", err)
	}
	return FromBundle(b), nil
}

// FromBundle wraps an in-memory bundle.
func FromBundle(b *savedmodel.Bundle) *Converter {
	return &Converter{
		Optimization: quantize.LevelNone,
		MinElements:  quantize.DefaultMinElements,
		bundle:       b,
	}
}

// Convert produces the artifact bytes.
func (c *Converter) Convert() ([]byte, error) {
	g := c.bundle.Graph
	if err := c.check(); err != nil {
		return nil, fmt.Errorf("lite: %w", err)
	}

	model := &flatbuf.Model{
		Name:             g.Name,
		ConverterVersion: Version,
		Opset:            g.Opset,
		Inputs:           valueSpecs(g.Inputs),
		Outputs:          valueSpecs(g.Outputs),
		Ops:              make([]flatbuf.Op, len(g.Nodes)),
		Metadata:         c.metadata(),
	}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		model.Ops[i] = flatbuf.Op{
			Name:    n.Name,
			Kind:    n.Op,
			Kernel:  n.Kernel,
			Inputs:  n.Inputs,
			Outputs: n.Outputs,
			Attrs:   n.Attrs,
		}
	}

	names := make([]string, 0, len(c.bundle.Constants))
	for name := range c.bundle.Constants {
		names = append(names, name)
	}
	sort.Strings(names)

	report := Report{Ops: len(model.Ops), Tensors: len(names), Unsupported: g.Unsupported()}
	tensors := make([]flatbuf.TensorData, 0, len(names))
	for _, name := range names {
		t := c.bundle.Constants[name]
		td := flatbuf.TensorData{
			Meta: flatbuf.TensorMeta{Name: name, DType: t.DType().String(), Shape: t.Shape().Clone()},
			Data: t.Data(),
		}
		if q, ok := quantize.Apply(t, c.Optimization, c.MinElements); ok {
			td.Meta.DType = "int8"
			td.Meta.Scheme = q.Scheme
			td.Meta.Scale = q.Scale
			td.Data = q.Data
			report.Quantized = append(report.Quantized, name)
		}
		tensors = append(tensors, td)
	}

	out, err := flatbuf.Encode(model, tensors, flatbuf.EncodeOptions{Compress: c.Compress})
	if err != nil {
		return nil, fmt.Errorf("lite: %w", err)
	}
	report.Bytes = len(out)
	c.Report = report
	return out, nil
}

// check verifies that every op input resolves and every executable op names
// a kernel.
func (c *Converter) check() error {
	g := c.bundle.Graph
	available := make(map[string]bool, len(c.bundle.Constants)+len(g.Inputs))
	for name := range c.bundle.Constants {
		available[name] = true
	}
	for _, in := range g.Inputs {
		available[in.Name] = true
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Op != savedmodel.OpUnsupported && n.Kernel == "" {
			return fmt.Errorf("op %q (%s) has no kernel", n.Name, n.Op)
		}
		for _, in := range n.Inputs {
			if in != "" && !available[in] {
				return fmt.Errorf("op %q reads undefined tensor %q", n.Name, in)
			}
		}
		for _, out := range n.Outputs {
			if out != "" {
				available[out] = true
			}
		}
	}
	for _, out := range g.Outputs {
		if !available[out.Name] {
			return fmt.Errorf("graph output %q is never produced", out.Name)
		}
	}
	return nil
}

func (c *Converter) metadata() map[string]string {
	meta := make(map[string]string, len(c.Metadata)+2)
	for k, v := range c.bundle.Graph.Producer {
		meta["source."+k] = v
	}
	for k, v := range c.Metadata {
		meta[k] = v
	}
	level := c.Optimization
	if level == "" {
		level = quantize.LevelNone
	}
	meta["optimization"] = string(level)
	return meta
}

func valueSpecs(specs []savedmodel.TensorSpec) []flatbuf.ValueSpec {
	out := make([]flatbuf.ValueSpec, len(specs))
	for i, s := range specs {
		out[i] = flatbuf.ValueSpec{Name: s.Name, DType: s.DType, Shape: s.Shape}
	}
	return out
}
