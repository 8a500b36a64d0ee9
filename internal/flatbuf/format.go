package flatbuf

import (
	"github.com/born-ml/bornlite/internal/quantize"
)

// Format constants.
const (
	MagicBytes      = "BLIT"
	FormatVersion   = 1
	Alignment       = 64
	FixedHeaderSize = 64
	ChecksumSize    = 32
	ChecksumOffset  = 0x20
)

// Flags stored in the fixed header.
const (
	FlagCompressed  uint32 = 1 << 0 // data section is zstd compressed
	FlagQuantized   uint32 = 1 << 1 // at least one tensor is quantized
	FlagHasMetadata uint32 = 1 << 2 // model metadata is present
)

// Model is the graph section of an artifact.
type Model struct {
	Name             string            `msgpack:"name"`
	ConverterVersion string            `msgpack:"converter_version"`
	Opset            int64             `msgpack:"opset"`
	Inputs           []ValueSpec       `msgpack:"inputs"`
	Outputs          []ValueSpec       `msgpack:"outputs"`
	Ops              []Op              `msgpack:"ops"`
	Tensors          []TensorMeta      `msgpack:"tensors"`
	Metadata         map[string]string `msgpack:"metadata,omitempty"`
}

// ValueSpec describes a graph input or output.
type ValueSpec struct {
	Name  string `msgpack:"name"`
	DType string `msgpack:"dtype"`
	Shape []int  `msgpack:"shape,omitempty"`
}

// Op is one executable graph node.
type Op struct {
	Name    string         `msgpack:"name"`
	Kind    string         `msgpack:"kind"`
	Kernel  string         `msgpack:"kernel,omitempty"`
	Inputs  []string       `msgpack:"inputs"`
	Outputs []string       `msgpack:"outputs"`
	Attrs   map[string]any `msgpack:"attrs,omitempty"`
}

// TensorMeta locates a constant tensor in the data section.
type TensorMeta struct {
	Name   string          `msgpack:"name"`
	DType  string          `msgpack:"dtype"`
	Shape  []int           `msgpack:"shape"`
	Scheme quantize.Scheme `msgpack:"scheme,omitempty"`
	Scale  float32         `msgpack:"scale,omitempty"`
	Offset int64           `msgpack:"offset"`
	Size   int64           `msgpack:"size"`
}

// Tensor returns the metadata of the named tensor.
func (m *Model) Tensor(name string) (*TensorMeta, bool) {
	for i := range m.Tensors {
		if m.Tensors[i].Name == name {
			return &m.Tensors[i], true
		}
	}
	return nil, false
}

// QuantizedCount returns how many tensors use a quantized scheme.
func (m *Model) QuantizedCount() int {
	n := 0
	for i := range m.Tensors {
		if m.Tensors[i].Scheme != quantize.SchemeNone {
			n++
		}
	}
	return n
}

func alignUp(n int64) int64 {
	return (n + Alignment - 1) / Alignment * Alignment
}
