package onnx

import (
	"errors"
	"testing"
)

func TestTopologicalSort(t *testing.T) {
	// Nodes deliberately out of order: C depends on B depends on A.
	nodes := []NodeProto{
		{Name: "C", Inputs: []string{"b_out"}, Outputs: []string{"c_out"}},
		{Name: "A", Inputs: []string{"x"}, Outputs: []string{"a_out"}},
		{Name: "B", Inputs: []string{"a_out"}, Outputs: []string{"b_out"}},
	}

	sorted, err := TopologicalSort(nodes)
	if err != nil {
		t.Fatalf("TopologicalSort failed: %v", err)
	}

	order := make([]string, len(sorted))
	for i := range sorted {
		order[i] = sorted[i].Name
	}
	if order[0] != "A" || order[1] != "B" || order[2] != "C" {
		t.Errorf("Expected order [A B C], got %v", order)
	}
}

func TestTopologicalSortCycle(t *testing.T) {
	nodes := []NodeProto{
		{Name: "A", Inputs: []string{"b_out"}, Outputs: []string{"a_out"}},
		{Name: "B", Inputs: []string{"a_out"}, Outputs: []string{"b_out"}},
	}

	_, err := TopologicalSort(nodes)
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("Expected ErrCycle, got %v", err)
	}
}

func TestMetadata(t *testing.T) {
	m := &ModelProto{
		ProducerName:  "pytorch",
		MetadataProps: []StringStringEntry{{Key: "author", Value: "me"}},
	}
	meta := m.Metadata()
	if meta["author"] != "me" || meta["producer_name"] != "pytorch" {
		t.Errorf("Unexpected metadata: %v", meta)
	}
}

func TestParseTruncatedMessage(t *testing.T) {
	// Field 7 (graph), length 10, but only 1 byte follows.
	if _, err := Parse([]byte{0x3a, 0x0a, 0x01}); err == nil {
		t.Fatal("Expected error for truncated message")
	}
}

func TestTensorFromProtoHugeDims(t *testing.T) {
	tests := []struct {
		name string
		dims []int64
	}{
		{"larger than its data", []int64{1 << 40}},
		{"element count overflows", []int64{1 << 32, 1 << 32}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proto := &TensorProto{Name: "w", DataType: TensorProtoFloat, Dims: tt.dims}
			got, err := TensorFromProto(proto)
			if err == nil {
				t.Fatalf("Expected error for dims %v, got tensor with %d elements", tt.dims, got.NumElements())
			}
		})
	}
}
