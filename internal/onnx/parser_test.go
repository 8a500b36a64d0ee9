package onnx_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/bornlite/internal/onnx"
	"github.com/born-ml/bornlite/internal/onnx/onnxtest"
)

// TestParseSimpleAdd tests parsing a simple Add operation.
func TestParseSimpleAdd(t *testing.T) {
	data := onnxtest.NewBuilder("add").
		Input("X", 2, 3).
		Input("Y", 2, 3).
		Node("Add", []string{"X", "Y"}, []string{"Z"}).
		Output("Z", 2, 3).
		Bytes()

	model, err := onnx.Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if model.IRVersion != 8 {
		t.Errorf("Expected IR version 8, got %d", model.IRVersion)
	}
	if model.OpsetVersion() != 13 {
		t.Errorf("Expected opset 13, got %d", model.OpsetVersion())
	}
	if model.Graph == nil {
		t.Fatal("Graph is nil")
	}
	if len(model.Graph.Nodes) != 1 {
		t.Fatalf("Expected 1 node, got %d", len(model.Graph.Nodes))
	}

	node := model.Graph.Nodes[0]
	if node.OpType != "Add" {
		t.Errorf("Expected OpType 'Add', got '%s'", node.OpType)
	}
	if len(node.Inputs) != 2 || len(node.Outputs) != 1 {
		t.Errorf("Expected 2 inputs and 1 output, got %d and %d", len(node.Inputs), len(node.Outputs))
	}

	input := model.Graph.Inputs[0]
	if input.Type == nil || input.Type.TensorType == nil {
		t.Fatal("Input type info is nil")
	}
	if input.Type.TensorType.ElemType != onnx.TensorProtoFloat {
		t.Errorf("Expected float32 type, got %d", input.Type.TensorType.ElemType)
	}
	if got := input.StaticShape(); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("Expected shape [2 3], got %v", got)
	}
}

// TestParseWithInitializer tests parsing a model with weight tensors.
func TestParseWithInitializer(t *testing.T) {
	data := onnxtest.NewBuilder("matmul").
		Input("X", 1, 2).
		Initializer("W", []float32{1, 2, 3, 4}, 2, 2).
		Node("MatMul", []string{"X", "W"}, []string{"Y"}).
		Output("Y", 1, 2).
		Bytes()

	model, err := onnx.Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(model.Graph.Initializers) != 1 {
		t.Fatalf("Expected 1 initializer, got %d", len(model.Graph.Initializers))
	}
	init := model.Graph.Initializers[0]
	if init.Name != "W" {
		t.Errorf("Expected initializer name 'W', got '%s'", init.Name)
	}
	if len(init.RawData) != 16 {
		t.Errorf("Expected raw data size 16, got %d", len(init.RawData))
	}

	w, err := onnx.TensorFromProto(&init)
	if err != nil {
		t.Fatalf("TensorFromProto failed: %v", err)
	}
	if got := w.Float32s(); got[3] != 4 {
		t.Errorf("Expected W[3] = 4, got %v", got)
	}

	names := model.Graph.InputNames()
	if len(names) != 1 || names[0] != "X" {
		t.Errorf("Expected inputs [X], got %v", names)
	}
}

// TestParseAttributes tests round-tripping every attribute kind we emit.
func TestParseAttributes(t *testing.T) {
	data := onnxtest.NewBuilder("attrs").
		Input("X", 2, 2).
		Node("Gemm", []string{"X", "X"}, []string{"Y"},
			onnxtest.AttrFloat("alpha", 0.5),
			onnxtest.AttrInt("transB", 1),
			onnxtest.AttrInts("perm", 1, 0),
			onnxtest.AttrTensor("value", onnxtest.FloatTensor("v", []float32{7}, 1)),
		).
		Output("Y").
		Bytes()

	model, err := onnx.Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	attrs := model.Graph.Nodes[0].Attributes
	if len(attrs) != 4 {
		t.Fatalf("Expected 4 attributes, got %d", len(attrs))
	}
	if attrs[0].Name != "alpha" || attrs[0].F != 0.5 {
		t.Errorf("Unexpected alpha attribute: %+v", attrs[0])
	}
	if attrs[1].I != 1 {
		t.Errorf("Expected transB = 1, got %d", attrs[1].I)
	}
	if v, ok := onnx.AttributeValue(&attrs[2]).([]int64); !ok || len(v) != 2 || v[0] != 1 {
		t.Errorf("Unexpected perm: %v", onnx.AttributeValue(&attrs[2]))
	}
	if attrs[3].T == nil || attrs[3].T.Name != "v" {
		t.Fatalf("Expected tensor attribute, got %+v", attrs[3])
	}
}

// TestLegacyTensorFields covers float_data, int64_data, int32_data and double_data.
func TestLegacyTensorFields(t *testing.T) {
	tests := []struct {
		name  string
		proto onnx.TensorProto
		want  []float32
	}{
		{"float_data", onnx.TensorProto{DataType: onnx.TensorProtoFloat, Dims: []int64{2}, FloatData: []float32{1.5, -2}}, []float32{1.5, -2}},
		{"int64_data", onnx.TensorProto{DataType: onnx.TensorProtoInt64, Dims: []int64{2}, Int64Data: []int64{-3, 4}}, []float32{-3, 4}},
		{"int32_data", onnx.TensorProto{DataType: onnx.TensorProtoInt32, Dims: []int64{1}, Int32Data: []int32{9}}, []float32{9}},
		{"int8 in int32_data", onnx.TensorProto{DataType: onnx.TensorProtoInt8, Dims: []int64{2}, Int32Data: []int32{-1, 5}}, []float32{-1, 5}},
		{"double_data", onnx.TensorProto{DataType: onnx.TensorProtoDouble, Dims: []int64{1}, DoubleData: []float64{0.25}}, []float32{0.25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := onnxtest.NewBuilder("legacy").Model()
			p := tt.proto
			p.Name = "w"
			model.Graph.Initializers = append(model.Graph.Initializers, p)

			decoded, err := onnx.Parse(onnx.Marshal(model))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			w, err := onnx.TensorFromProto(&decoded.Graph.Initializers[0])
			if err != nil {
				t.Fatalf("TensorFromProto failed: %v", err)
			}
			got := w.Float32s()
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Expected %v, got %v", tt.want, got)
					break
				}
			}
		})
	}
}

func TestTensorFromProtoRejectsExternalData(t *testing.T) {
	_, err := onnx.TensorFromProto(&onnx.TensorProto{Name: "w", DataType: onnx.TensorProtoFloat, DataLocation: 1})
	if err == nil {
		t.Fatal("Expected error for external data")
	}
}

func TestTensorFromProtoRejectsStrings(t *testing.T) {
	_, err := onnx.TensorFromProto(&onnx.TensorProto{Name: "s", DataType: onnx.TensorProtoString})
	if err == nil {
		t.Fatal("Expected error for string tensor")
	}
}

func TestLoad(t *testing.T) {
	path := onnxtest.AddConstants([]float32{1, 2}, []float32{3, 4}, 2).WriteFile(t)

	model, err := onnx.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if model.Graph.Name != "add_constants" {
		t.Errorf("Expected graph add_constants, got %s", model.Graph.Name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := onnx.Load(filepath.Join(t.TempDir(), "missing.onnx"))
	if !errors.Is(err, onnx.ErrLoad) {
		t.Fatalf("Expected ErrLoad, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected wrapped os.ErrNotExist, got %v", err)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.onnx")
	if err := os.WriteFile(path, []byte{0x0f, 0xff, 0xff}, 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := onnx.Load(path); !errors.Is(err, onnx.ErrLoad) {
		t.Fatalf("Expected ErrLoad, got %v", err)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.onnx")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := onnx.Load(path); !errors.Is(err, onnx.ErrLoad) {
		t.Fatalf("Expected ErrLoad for model without graph, got %v", err)
	}
}

func TestGetModelInfo(t *testing.T) {
	path := onnxtest.NewBuilder("info").
		Input("x", 3).
		Initializer("w", []float32{1, 2, 3}, 3).
		Node("Mul", []string{"x", "w"}, []string{"m"}).
		Node("Relu", []string{"m"}, []string{"y"}).
		Output("y", 3).
		WriteFile(t)

	info, err := onnx.GetModelInfo(path)
	if err != nil {
		t.Fatalf("GetModelInfo failed: %v", err)
	}
	if info.NodeCount != 2 || info.WeightCount != 1 {
		t.Errorf("Expected 2 nodes and 1 weight, got %d and %d", info.NodeCount, info.WeightCount)
	}
	if info.OpTypes["Relu"] != 1 {
		t.Errorf("Expected one Relu, got %v", info.OpTypes)
	}
	if len(info.OutputNames) != 1 || info.OutputNames[0] != "y" {
		t.Errorf("Expected outputs [y], got %v", info.OutputNames)
	}
}
