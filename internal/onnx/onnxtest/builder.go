// Package onnxtest builds small ONNX models for tests.
package onnxtest

import (
	"encoding/binary"
	"math"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/born-ml/bornlite/internal/onnx"
)

// Builder assembles a single-graph ONNX model.
type Builder struct {
	model *onnx.ModelProto
	count int
}

// NewBuilder starts a model with the given graph name at opset 13.
func NewBuilder(name string) *Builder {
	return &Builder{
		model: &onnx.ModelProto{
			IRVersion:       8,
			ProducerName:    "onnxtest",
			ProducerVersion: "1",
			OpsetImport:     []onnx.OperatorSetID{{Domain: "", Version: 13}},
			Graph:           &onnx.GraphProto{Name: name},
		},
	}
}

// Input declares a float32 graph input.
func (b *Builder) Input(name string, dims ...int64) *Builder {
	b.model.Graph.Inputs = append(b.model.Graph.Inputs, ValueInfo(name, onnx.TensorProtoFloat, dims...))
	return b
}

// Output declares a float32 graph output.
func (b *Builder) Output(name string, dims ...int64) *Builder {
	b.model.Graph.Outputs = append(b.model.Graph.Outputs, ValueInfo(name, onnx.TensorProtoFloat, dims...))
	return b
}

// Initializer adds a float32 weight stored as raw_data.
func (b *Builder) Initializer(name string, values []float32, dims ...int64) *Builder {
	b.model.Graph.Initializers = append(b.model.Graph.Initializers, FloatTensor(name, values, dims...))
	return b
}

// Int64Initializer adds an int64 weight stored in int64_data.
func (b *Builder) Int64Initializer(name string, values []int64, dims ...int64) *Builder {
	b.model.Graph.Initializers = append(b.model.Graph.Initializers, onnx.TensorProto{
		Name:      name,
		DataType:  onnx.TensorProtoInt64,
		Dims:      dims,
		Int64Data: values,
	})
	return b
}

// Node appends an operator node. Nodes are named after their op type.
func (b *Builder) Node(opType string, inputs, outputs []string, attrs ...onnx.AttributeProto) *Builder {
	b.count++
	b.model.Graph.Nodes = append(b.model.Graph.Nodes, onnx.NodeProto{
		Name:       opType + "_" + strconv.Itoa(b.count),
		OpType:     opType,
		Inputs:     inputs,
		Outputs:    outputs,
		Attributes: attrs,
	})
	return b
}

// Model returns the assembled model.
func (b *Builder) Model() *onnx.ModelProto {
	return b.model
}

// Bytes returns the encoded model.
func (b *Builder) Bytes() []byte {
	return onnx.Marshal(b.model)
}

// WriteFile encodes the model into a temp directory and returns its path.
func (b *Builder) WriteFile(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), b.model.Graph.Name+".onnx")
	if err := onnx.WriteFile(path, b.model); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return path
}

// ValueInfo builds a typed value declaration.
func ValueInfo(name string, elemType int32, dims ...int64) onnx.ValueInfoProto {
	shape := &onnx.TensorShapeProto{}
	for _, d := range dims {
		shape.Dims = append(shape.Dims, onnx.DimensionProto{DimValue: d})
	}
	return onnx.ValueInfoProto{
		Name: name,
		Type: &onnx.TypeProto{TensorType: &onnx.TensorTypeProto{ElemType: elemType, Shape: shape}},
	}
}

// FloatTensor builds a float32 TensorProto with raw_data.
func FloatTensor(name string, values []float32, dims ...int64) onnx.TensorProto {
	raw := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	return onnx.TensorProto{
		Name:     name,
		DataType: onnx.TensorProtoFloat,
		Dims:     dims,
		RawData:  raw,
	}
}

// AttrInt builds an INT attribute.
func AttrInt(name string, v int64) onnx.AttributeProto {
	return onnx.AttributeProto{Name: name, Type: onnx.AttributeProtoInt, I: v}
}

// AttrFloat builds a FLOAT attribute.
func AttrFloat(name string, v float32) onnx.AttributeProto {
	return onnx.AttributeProto{Name: name, Type: onnx.AttributeProtoFloat, F: v}
}

// AttrInts builds an INTS attribute.
func AttrInts(name string, v ...int64) onnx.AttributeProto {
	return onnx.AttributeProto{Name: name, Type: onnx.AttributeProtoInts, Ints: v}
}

// AttrTensor builds a TENSOR attribute.
func AttrTensor(name string, t onnx.TensorProto) onnx.AttributeProto {
	return onnx.AttributeProto{Name: name, Type: onnx.AttributeProtoTensor, T: &t}
}

// AddConstants returns the model c = a + b with both operands as initializers.
func AddConstants(a, b []float32, dims ...int64) *Builder {
	return NewBuilder("add_constants").
		Initializer("a", a, dims...).
		Initializer("b", b, dims...).
		Node("Add", []string{"a", "b"}, []string{"c"}).
		Output("c", dims...)
}

// Unary returns the model y = op(x) for a float32 input of the given shape.
func Unary(opType string, dims ...int64) *Builder {
	return NewBuilder("unary_"+opType).
		Input("x", dims...).
		Node(opType, []string{"x"}, []string{"y"}).
		Output("y", dims...)
}
