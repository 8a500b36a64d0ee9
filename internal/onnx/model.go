package onnx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/bornlite/internal/tensor"
)

// ErrCycle is returned by TopologicalSort when the graph is not a DAG.
var ErrCycle = errors.New("graph contains a cycle")

// OpsetVersion returns the default-domain opset version, or 0 when absent.
func (m *ModelProto) OpsetVersion() int64 {
	for _, opset := range m.OpsetImport {
		if opset.Domain == "" || opset.Domain == "ai.onnx" {
			return opset.Version
		}
	}
	return 0
}

// Metadata returns model metadata as key-value pairs.
func (m *ModelProto) Metadata() map[string]string {
	meta := make(map[string]string)
	for _, prop := range m.MetadataProps {
		meta[prop.Key] = prop.Value
	}
	meta["producer_name"] = m.ProducerName
	meta["producer_version"] = m.ProducerVersion
	meta["domain"] = m.Domain
	return meta
}

// InputNames returns graph inputs that are not initializers.
func (g *GraphProto) InputNames() []string {
	initNames := make(map[string]bool, len(g.Initializers))
	for i := range g.Initializers {
		initNames[g.Initializers[i].Name] = true
	}

	var names []string
	for i := range g.Inputs {
		if !initNames[g.Inputs[i].Name] {
			names = append(names, g.Inputs[i].Name)
		}
	}
	return names
}

// OutputNames returns graph output names.
func (g *GraphProto) OutputNames() []string {
	names := make([]string, len(g.Outputs))
	for i := range g.Outputs {
		names[i] = g.Outputs[i].Name
	}
	return names
}

// Input returns the value info of a named graph input.
func (g *GraphProto) Input(name string) (*ValueInfoProto, bool) {
	for i := range g.Inputs {
		if g.Inputs[i].Name == name {
			return &g.Inputs[i], true
		}
	}
	return nil, false
}

// StaticShape returns the declared shape of a value, with dynamic dimensions
// replaced by 1.
func (vi *ValueInfoProto) StaticShape() tensor.Shape {
	if vi.Type == nil || vi.Type.TensorType == nil || vi.Type.TensorType.Shape == nil {
		return nil
	}
	dims := vi.Type.TensorType.Shape.Dims
	shape := make(tensor.Shape, len(dims))
	for i, d := range dims {
		shape[i] = int(d.DimValue)
		if d.DimParam != "" || d.DimValue <= 0 {
			shape[i] = 1
		}
	}
	return shape
}

// TensorFromProto converts TensorProto to a tensor. Doubles are narrowed to
// float32.
func TensorFromProto(proto *TensorProto) (*tensor.Tensor, error) {
	if proto.DataLocation == 1 {
		return nil, fmt.Errorf("tensor %s: external data is not supported", proto.Name)
	}

	shape := make(tensor.Shape, len(proto.Dims))
	for i, dim := range proto.Dims {
		shape[i] = int(dim)
	}

	switch proto.DataType {
	case TensorProtoFloat:
		if len(proto.RawData) > 0 {
			return tensor.FromBytes(shape, tensor.Float32, proto.RawData)
		}
		return tensor.FromFloat32(shape, proto.FloatData)

	case TensorProtoDouble:
		vals := proto.DoubleData
		if len(proto.RawData) > 0 {
			if len(proto.RawData)%8 != 0 {
				return nil, fmt.Errorf("tensor %s: raw double data has %d bytes", proto.Name, len(proto.RawData))
			}
			vals = make([]float64, len(proto.RawData)/8)
			for i := range vals {
				vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(proto.RawData[i*8:]))
			}
		}
		narrowed := make([]float32, len(vals))
		for i, v := range vals {
			narrowed[i] = float32(v)
		}
		return tensor.FromFloat32(shape, narrowed)

	case TensorProtoInt64:
		if len(proto.RawData) > 0 {
			return tensor.FromBytes(shape, tensor.Int64, proto.RawData)
		}
		return tensor.FromInt64(shape, proto.Int64Data)

	case TensorProtoInt32:
		if len(proto.RawData) > 0 {
			return tensor.FromBytes(shape, tensor.Int32, proto.RawData)
		}
		raw := make([]byte, 4*len(proto.Int32Data))
		for i, v := range proto.Int32Data {
			binary.LittleEndian.PutUint32(raw[i*4:], uint32(v)) //nolint:gosec // G115: bit-preserving cast.
		}
		return tensor.FromBytes(shape, tensor.Int32, raw)

	case TensorProtoInt8, TensorProtoUint8, TensorProtoBool:
		dtype := map[int32]tensor.DataType{
			TensorProtoInt8:  tensor.Int8,
			TensorProtoUint8: tensor.Uint8,
			TensorProtoBool:  tensor.Bool,
		}[proto.DataType]
		if len(proto.RawData) > 0 {
			return tensor.FromBytes(shape, dtype, proto.RawData)
		}
		raw := make([]byte, len(proto.Int32Data))
		for i, v := range proto.Int32Data {
			raw[i] = byte(v) //nolint:gosec // G115: values are 8-bit by definition.
		}
		return tensor.FromBytes(shape, dtype, raw)

	default:
		return nil, fmt.Errorf("tensor %s: unsupported data type %d", proto.Name, proto.DataType)
	}
}

// AttributeValue converts an attribute to a plain Go value: float32, int64,
// string, []float32, []int64, []string or *TensorProto.
func AttributeValue(attr *AttributeProto) any {
	switch attr.Type {
	case AttributeProtoFloat:
		return attr.F
	case AttributeProtoInt:
		return attr.I
	case AttributeProtoString:
		return string(attr.S)
	case AttributeProtoTensor:
		return attr.T
	case AttributeProtoFloats:
		return attr.Floats
	case AttributeProtoInts:
		return attr.Ints
	case AttributeProtoStrings:
		out := make([]string, len(attr.Strings))
		for i, s := range attr.Strings {
			out[i] = string(s)
		}
		return out
	default:
		return nil
	}
}

// TopologicalSort orders nodes so that producers precede consumers.
// Inputs not produced by any node (graph inputs, initializers) are ignored.
func TopologicalSort(nodes []NodeProto) ([]NodeProto, error) {
	outputToNode := make(map[string]int)
	for i := range nodes {
		for _, output := range nodes[i].Outputs {
			if output != "" {
				outputToNode[output] = i
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(nodes))
	result := make([]NodeProto, 0, len(nodes))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w at node %q", ErrCycle, nodes[i].Name)
		}
		state[i] = visiting

		for _, input := range nodes[i].Inputs {
			if depIdx, ok := outputToNode[input]; ok {
				if err := visit(depIdx); err != nil {
					return err
				}
			}
		}

		state[i] = done
		result = append(result, nodes[i])
		return nil
	}

	for i := range nodes {
		if err := visit(i); err != nil {
			return nil, err
		}
	}

	return result, nil
}
