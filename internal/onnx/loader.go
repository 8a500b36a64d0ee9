package onnx

import (
	"errors"
	"fmt"
)

// ErrLoad wraps every failure to read or decode a model file.
var ErrLoad = errors.New("onnx: load failed")

// Load reads and decodes an ONNX model. A missing file, undecodable bytes, or a
// model without a graph all fail with an error wrapping ErrLoad.
//
// Example:
//
//	model, err := onnx.Load("model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
func Load(path string) (*ModelProto, error) {
	proto, err := ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}
	if proto.Graph == nil {
		return nil, fmt.Errorf("%w: %s: model has no graph", ErrLoad, path)
	}
	return proto, nil
}

// ModelInfo contains basic information about an ONNX model.
type ModelInfo struct {
	IRVersion       int64
	OpsetVersion    int64
	ProducerName    string
	ProducerVersion string
	GraphName       string
	InputNames      []string
	OutputNames     []string
	OpTypes         map[string]int
	NodeCount       int
	WeightCount     int
}

// GetModelInfo extracts basic info from an ONNX file.
func GetModelInfo(path string) (*ModelInfo, error) {
	proto, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Info(proto), nil
}

// Info summarizes a decoded model.
func Info(proto *ModelProto) *ModelInfo {
	info := &ModelInfo{
		IRVersion:       proto.IRVersion,
		OpsetVersion:    proto.OpsetVersion(),
		ProducerName:    proto.ProducerName,
		ProducerVersion: proto.ProducerVersion,
		OpTypes:         make(map[string]int),
	}

	if g := proto.Graph; g != nil {
		info.GraphName = g.Name
		info.InputNames = g.InputNames()
		info.OutputNames = g.OutputNames()
		info.NodeCount = len(g.Nodes)
		info.WeightCount = len(g.Initializers)
		for i := range g.Nodes {
			info.OpTypes[g.Nodes[i].OpType]++
		}
	}

	return info
}
