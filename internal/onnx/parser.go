package onnx

import (
	"fmt"
	"math"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// ParseFile parses an ONNX model from file.
//
//nolint:gosec // G304: Path is provided by user, file inclusion is intentional for ONNX model loading
func ParseFile(path string) (*ModelProto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}

// Parse parses an ONNX model from bytes.
func Parse(data []byte) (*ModelProto, error) {
	model := &ModelProto{}
	if err := readModelProto(data, model); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return model, nil
}

// field is one decoded protobuf field. Varint and fixed-width values land in u,
// length-delimited values in b.
type field struct {
	num protowire.Number
	typ protowire.Type
	u   uint64
	b   []byte
}

// eachField walks the fields of a message, calling fn for every one of them.
func eachField(data []byte, fn func(f field) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(data)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(data)
			f.u = uint64(v)
		case protowire.Fixed64Type:
			f.u, n = protowire.ConsumeFixed64(data)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(data)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
		}
		if n < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}
		data = data[n:]

		if err := fn(f); err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
	}
	return nil
}

func (f field) str() string {
	return string(f.b)
}

func (f field) int64() int64 {
	return int64(f.u) //nolint:gosec // G115: Protobuf varint fits in int64.
}

func (f field) int32() int32 {
	return int32(f.u) //nolint:gosec // G115: Protobuf varint fits in int32.
}

// varints decodes a repeated varint field, packed or not.
func (f field) varints() ([]int64, error) {
	if f.typ != protowire.BytesType {
		return []int64{f.int64()}, nil
	}
	var out []int64
	data := f.b
	for len(data) > 0 {
		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		out = append(out, int64(v)) //nolint:gosec // G115: Protobuf varint fits in int64.
		data = data[n:]
	}
	return out, nil
}

// floats decodes a repeated float field, packed or not.
func (f field) floats() ([]float32, error) {
	if f.typ == protowire.Fixed32Type {
		return []float32{math.Float32frombits(uint32(f.u))}, nil //nolint:gosec // G115: fixed32 value.
	}
	if f.typ != protowire.BytesType || len(f.b)%4 != 0 {
		return nil, fmt.Errorf("malformed packed float field")
	}
	out := make([]float32, 0, len(f.b)/4)
	data := f.b
	for len(data) > 0 {
		v, n := protowire.ConsumeFixed32(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		out = append(out, math.Float32frombits(v))
		data = data[n:]
	}
	return out, nil
}

// doubles decodes a repeated double field, packed or not.
func (f field) doubles() ([]float64, error) {
	if f.typ == protowire.Fixed64Type {
		return []float64{math.Float64frombits(f.u)}, nil
	}
	if f.typ != protowire.BytesType || len(f.b)%8 != 0 {
		return nil, fmt.Errorf("malformed packed double field")
	}
	out := make([]float64, 0, len(f.b)/8)
	data := f.b
	for len(data) > 0 {
		v, n := protowire.ConsumeFixed64(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		out = append(out, math.Float64frombits(v))
		data = data[n:]
	}
	return out, nil
}

// readModelProto reads ModelProto message.
func readModelProto(data []byte, m *ModelProto) error {
	return eachField(data, func(f field) error {
		switch f.num {
		case 1: // ir_version
			m.IRVersion = f.int64()
		case 2: // producer_name
			m.ProducerName = f.str()
		case 3: // producer_version
			m.ProducerVersion = f.str()
		case 4: // domain
			m.Domain = f.str()
		case 5: // model_version
			m.ModelVersion = f.int64()
		case 6: // doc_string
			m.DocString = f.str()
		case 7: // graph
			m.Graph = &GraphProto{}
			return readGraphProto(f.b, m.Graph)
		case 8: // opset_import
			var opset OperatorSetID
			if err := readOperatorSetID(f.b, &opset); err != nil {
				return err
			}
			m.OpsetImport = append(m.OpsetImport, opset)
		case 14: // metadata_props
			var entry StringStringEntry
			if err := readStringStringEntry(f.b, &entry); err != nil {
				return err
			}
			m.MetadataProps = append(m.MetadataProps, entry)
		}
		return nil
	})
}

// readGraphProto reads GraphProto message.
func readGraphProto(data []byte, m *GraphProto) error {
	return eachField(data, func(f field) error {
		switch f.num {
		case 1: // node
			var node NodeProto
			if err := readNodeProto(f.b, &node); err != nil {
				return err
			}
			m.Nodes = append(m.Nodes, node)
		case 2: // name
			m.Name = f.str()
		case 5: // initializer
			var t TensorProto
			if err := readTensorProto(f.b, &t); err != nil {
				return err
			}
			m.Initializers = append(m.Initializers, t)
		case 10: // doc_string
			m.DocString = f.str()
		case 11, 12, 13: // input, output, value_info
			var vi ValueInfoProto
			if err := readValueInfoProto(f.b, &vi); err != nil {
				return err
			}
			switch f.num {
			case 11:
				m.Inputs = append(m.Inputs, vi)
			case 12:
				m.Outputs = append(m.Outputs, vi)
			default:
				m.ValueInfo = append(m.ValueInfo, vi)
			}
		}
		return nil
	})
}

// readNodeProto reads NodeProto message.
func readNodeProto(data []byte, m *NodeProto) error {
	return eachField(data, func(f field) error {
		switch f.num {
		case 1: // input
			m.Inputs = append(m.Inputs, f.str())
		case 2: // output
			m.Outputs = append(m.Outputs, f.str())
		case 3: // name
			m.Name = f.str()
		case 4: // op_type
			m.OpType = f.str()
		case 5: // attribute
			var attr AttributeProto
			if err := readAttributeProto(f.b, &attr); err != nil {
				return err
			}
			m.Attributes = append(m.Attributes, attr)
		case 6: // doc_string
			m.DocString = f.str()
		case 7: // domain
			m.Domain = f.str()
		}
		return nil
	})
}

// readTensorProto reads TensorProto message.
func readTensorProto(data []byte, m *TensorProto) error {
	return eachField(data, func(f field) error {
		switch f.num {
		case 1: // dims
			dims, err := f.varints()
			if err != nil {
				return err
			}
			m.Dims = append(m.Dims, dims...)
		case 2: // data_type
			m.DataType = f.int32()
		case 4: // float_data
			vals, err := f.floats()
			if err != nil {
				return err
			}
			m.FloatData = append(m.FloatData, vals...)
		case 5: // int32_data
			vals, err := f.varints()
			if err != nil {
				return err
			}
			for _, v := range vals {
				m.Int32Data = append(m.Int32Data, int32(v)) //nolint:gosec // G115: ONNX protobuf varint fits in int32.
			}
		case 7: // int64_data
			vals, err := f.varints()
			if err != nil {
				return err
			}
			m.Int64Data = append(m.Int64Data, vals...)
		case 8: // name
			m.Name = f.str()
		case 9: // raw_data
			m.RawData = f.b
		case 10: // double_data
			vals, err := f.doubles()
			if err != nil {
				return err
			}
			m.DoubleData = append(m.DoubleData, vals...)
		case 12: // doc_string
			m.DocString = f.str()
		case 14: // data_location
			m.DataLocation = f.int32()
		}
		return nil
	})
}

// readValueInfoProto reads ValueInfoProto message.
func readValueInfoProto(data []byte, m *ValueInfoProto) error {
	return eachField(data, func(f field) error {
		switch f.num {
		case 1: // name
			m.Name = f.str()
		case 2: // type
			m.Type = &TypeProto{}
			return readTypeProto(f.b, m.Type)
		case 3: // doc_string
			m.DocString = f.str()
		}
		return nil
	})
}

// readTypeProto reads TypeProto message.
func readTypeProto(data []byte, m *TypeProto) error {
	return eachField(data, func(f field) error {
		if f.num == 1 { // tensor_type
			m.TensorType = &TensorTypeProto{}
			return readTensorTypeProto(f.b, m.TensorType)
		}
		return nil
	})
}

// readTensorTypeProto reads TypeProto.Tensor message.
func readTensorTypeProto(data []byte, m *TensorTypeProto) error {
	return eachField(data, func(f field) error {
		switch f.num {
		case 1: // elem_type
			m.ElemType = f.int32()
		case 2: // shape
			m.Shape = &TensorShapeProto{}
			return readTensorShapeProto(f.b, m.Shape)
		}
		return nil
	})
}

// readTensorShapeProto reads TensorShapeProto message.
func readTensorShapeProto(data []byte, m *TensorShapeProto) error {
	return eachField(data, func(f field) error {
		if f.num == 1 { // dim
			var dim DimensionProto
			if err := readDimensionProto(f.b, &dim); err != nil {
				return err
			}
			m.Dims = append(m.Dims, dim)
		}
		return nil
	})
}

// readDimensionProto reads TensorShapeProto.Dimension message.
func readDimensionProto(data []byte, m *DimensionProto) error {
	return eachField(data, func(f field) error {
		switch f.num {
		case 1: // dim_value
			m.DimValue = f.int64()
		case 2: // dim_param
			m.DimParam = f.str()
		}
		return nil
	})
}

// readAttributeProto reads AttributeProto message.
func readAttributeProto(data []byte, m *AttributeProto) error {
	return eachField(data, func(f field) error {
		switch f.num {
		case 1: // name
			m.Name = f.str()
		case 2: // f
			m.F = math.Float32frombits(uint32(f.u)) //nolint:gosec // G115: fixed32 value.
		case 3: // i
			m.I = f.int64()
		case 4: // s
			m.S = f.b
		case 5: // t
			m.T = &TensorProto{}
			return readTensorProto(f.b, m.T)
		case 6: // g
			m.G = &GraphProto{}
			return readGraphProto(f.b, m.G)
		case 7: // floats
			vals, err := f.floats()
			if err != nil {
				return err
			}
			m.Floats = append(m.Floats, vals...)
		case 8: // ints
			vals, err := f.varints()
			if err != nil {
				return err
			}
			m.Ints = append(m.Ints, vals...)
		case 9: // strings
			m.Strings = append(m.Strings, f.b)
		case 10: // tensors
			var t TensorProto
			if err := readTensorProto(f.b, &t); err != nil {
				return err
			}
			m.Tensors = append(m.Tensors, t)
		case 13: // doc_string
			m.DocString = f.str()
		case 20: // type
			m.Type = f.int32()
		}
		return nil
	})
}

// readOperatorSetID reads OperatorSetIdProto message.
func readOperatorSetID(data []byte, m *OperatorSetID) error {
	return eachField(data, func(f field) error {
		switch f.num {
		case 1: // domain
			m.Domain = f.str()
		case 2: // version
			m.Version = f.int64()
		}
		return nil
	})
}

// readStringStringEntry reads StringStringEntryProto message.
func readStringStringEntry(data []byte, m *StringStringEntry) error {
	return eachField(data, func(f field) error {
		switch f.num {
		case 1: // key
			m.Key = f.str()
		case 2: // value
			m.Value = f.str()
		}
		return nil
	})
}
