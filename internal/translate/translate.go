// Package translate converts an ONNX graph into the native graph
// representation and exports it as a bundle directory.
package translate

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/born-ml/bornlite/internal/numlib"
	"github.com/born-ml/bornlite/internal/onnx"
	"github.com/born-ml/bornlite/internal/savedmodel"
	"github.com/born-ml/bornlite/internal/tensor"
)

var (
	// ErrUnsupportedOp is returned in strict mode for ops with no native mapping.
	ErrUnsupportedOp = errors.New("translate: unsupported op")

	// ErrStructure is returned for graphs that cannot be translated in any mode.
	ErrStructure = errors.New("translate: malformed graph")
)

// Options controls translation.
type Options struct {
	// Strict rejects unsupported ops instead of emitting placeholders.
	Strict bool

	// Resolver binds the kernel names ops are written against.
	Resolver numlib.Resolver

	// Logger receives warnings about skipped ops. Nil disables logging.
	Logger *zap.Logger
}

// Rep is a translated model ready for export.
type Rep struct {
	Graph     *savedmodel.Graph
	Constants map[string]*tensor.Tensor

	// Skipped lists the op types replaced by placeholders, one entry per node.
	Skipped []string

	logger *zap.Logger
}

// Prepare translates model into its native representation.
func Prepare(model *onnx.ModelProto, opts Options) (*Rep, error) {
	if model == nil || model.Graph == nil {
		return nil, fmt.Errorf("%w: model has no graph", ErrStructure)
	}
	if opts.Resolver == nil {
		return nil, errors.New("translate: no kernel resolver")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	g := model.Graph
	rep := &Rep{
		Graph: &savedmodel.Graph{
			Name:     g.Name,
			Opset:    model.OpsetVersion(),
			Producer: model.Metadata(),
		},
		Constants: make(map[string]*tensor.Tensor),
		logger:    log,
	}
	available := make(map[string]bool)

	for i := range g.Initializers {
		tp := &g.Initializers[i]
		t, err := onnx.TensorFromProto(tp)
		if err != nil {
			return nil, fmt.Errorf("translate: initializer %q: %w", tp.Name, err)
		}
		rep.Constants[tp.Name] = t
		available[tp.Name] = true
	}

	for _, name := range g.InputNames() {
		vi, _ := g.Input(name)
		rep.Graph.Inputs = append(rep.Graph.Inputs, tensorSpec(vi))
		available[name] = true
	}

	nodes, err := onnx.TopologicalSort(g.Nodes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStructure, err)
	}

	t := &translator{rep: rep, opts: opts, log: log, opset: model.OpsetVersion()}
	for i := range nodes {
		node := &nodes[i]
		if node.Name == "" {
			node.Name = fmt.Sprintf("%s_%d", node.OpType, i)
		}

		for _, in := range node.Inputs {
			if in != "" && !available[in] {
				return nil, fmt.Errorf("%w: node %q reads %q, which no node, initializer or graph input produces",
					ErrStructure, node.Name, in)
			}
		}

		outputs, err := t.node(node)
		if err != nil {
			return nil, err
		}
		for _, out := range outputs {
			// An empty name marks an omitted optional output.
			if out == "" {
				continue
			}
			if available[out] {
				return nil, fmt.Errorf("%w: tensor %q has more than one producer", ErrStructure, out)
			}
			available[out] = true
		}
	}

	for i := range g.Outputs {
		out := &g.Outputs[i]
		if !available[out.Name] {
			return nil, fmt.Errorf("%w: graph output %q is never produced", ErrStructure, out.Name)
		}
		rep.Graph.Outputs = append(rep.Graph.Outputs, tensorSpec(out))
	}

	return rep, nil
}

// ExportGraph writes the native bundle to dir. An existing dir is removed
// first, so nothing from a previous export survives.
func (r *Rep) ExportGraph(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("translate: clear %s: %w", dir, err)
	}
	if err := savedmodel.Save(dir, &savedmodel.Bundle{Graph: r.Graph, Constants: r.Constants}); err != nil {
		return err
	}
	r.logger.Debug("exported native bundle",
		zap.String("dir", dir),
		zap.Int("nodes", len(r.Graph.Nodes)),
		zap.Int("constants", len(r.Constants)))
	return nil
}

type translator struct {
	rep   *Rep
	opts  Options
	log   *zap.Logger
	opset int64
}

// node translates one ONNX node and returns the tensor names it produces.
func (t *translator) node(node *onnx.NodeProto) ([]string, error) {
	if node.OpType == "Constant" && isDefaultDomain(node.Domain) {
		return t.constant(node)
	}

	spec, ok := opTable[node.OpType]
	if !ok || !isDefaultDomain(node.Domain) {
		return t.unsupported(node)
	}

	if n := len(node.Inputs); n < spec.minInputs || (spec.maxInputs >= 0 && n > spec.maxInputs) {
		return nil, fmt.Errorf("%w: node %q (%s) has %d inputs", ErrStructure, node.Name, node.OpType, n)
	}
	if len(node.Outputs) == 0 || node.Outputs[0] == "" {
		return nil, fmt.Errorf("%w: node %q (%s) has no output", ErrStructure, node.Name, node.OpType)
	}

	sym, err := t.opts.Resolver.Resolve(spec.symbol)
	if err != nil {
		return nil, fmt.Errorf("translate: node %q (%s): %w", node.Name, node.OpType, err)
	}

	inputs, outputs := node.Inputs, node.Outputs
	attrs := nodeAttrs(node, spec.attrs)
	switch node.OpType {
	case "Dropout":
		// Inference mode: only the data path survives.
		inputs, outputs = inputs[:1], outputs[:1]
	case "Softmax":
		if _, set := attrs["axis"]; !set && t.opset > 0 && t.opset < 13 {
			attrs = map[string]any{"axis": int64(1)}
		}
	}

	t.rep.Graph.Nodes = append(t.rep.Graph.Nodes, savedmodel.Node{
		Name:    node.Name,
		Op:      node.OpType,
		Kernel:  sym.Name,
		Inputs:  inputs,
		Outputs: outputs,
		Attrs:   attrs,
	})
	return outputs, nil
}

func (t *translator) unsupported(node *onnx.NodeProto) ([]string, error) {
	if t.opts.Strict {
		return nil, fmt.Errorf("%w: %s (node %q)", ErrUnsupportedOp, node.OpType, node.Name)
	}

	t.log.Warn("unsupported op kept as placeholder",
		zap.String("op_type", node.OpType),
		zap.String("domain", node.Domain),
		zap.String("node", node.Name))
	t.rep.Skipped = append(t.rep.Skipped, node.OpType)

	attrs := map[string]any{"op_type": node.OpType}
	if node.Domain != "" {
		attrs["domain"] = node.Domain
	}
	t.rep.Graph.Nodes = append(t.rep.Graph.Nodes, savedmodel.Node{
		Name:    node.Name,
		Op:      savedmodel.OpUnsupported,
		Inputs:  node.Inputs,
		Outputs: node.Outputs,
		Attrs:   attrs,
	})
	return node.Outputs, nil
}

// constant folds a Constant node into the constant table.
func (t *translator) constant(node *onnx.NodeProto) ([]string, error) {
	if len(node.Outputs) != 1 {
		return nil, fmt.Errorf("%w: constant %q must have one output", ErrStructure, node.Name)
	}

	value, err := constantValue(node)
	if err != nil {
		return nil, fmt.Errorf("%w: constant %q: %w", ErrStructure, node.Name, err)
	}
	t.rep.Constants[node.Outputs[0]] = value
	return node.Outputs, nil
}

func constantValue(node *onnx.NodeProto) (*tensor.Tensor, error) {
	for i := range node.Attributes {
		attr := &node.Attributes[i]
		switch attr.Name {
		case "value":
			if attr.T == nil {
				return nil, errors.New("value attribute holds no tensor")
			}
			return onnx.TensorFromProto(attr.T)
		case "value_float":
			return tensor.Scalar(attr.F), nil
		case "value_floats":
			return tensor.FromFloat32(tensor.Shape{len(attr.Floats)}, attr.Floats)
		case "value_int":
			return tensor.FromInt64(tensor.Shape{}, []int64{attr.I})
		case "value_ints":
			return tensor.FromInt64(tensor.Shape{len(attr.Ints)}, attr.Ints)
		}
	}
	return nil, errors.New("no supported value attribute")
}

func isDefaultDomain(domain string) bool {
	return domain == "" || domain == "ai.onnx"
}

func tensorSpec(vi *onnx.ValueInfoProto) savedmodel.TensorSpec {
	spec := savedmodel.TensorSpec{Name: vi.Name, DType: tensor.Float32.String()}
	if vi.Type == nil || vi.Type.TensorType == nil {
		return spec
	}
	if dt, ok := dataTypes[vi.Type.TensorType.ElemType]; ok {
		spec.DType = dt.String()
	}
	if vi.Type.TensorType.Shape != nil {
		spec.Shape = vi.StaticShape()
	}
	return spec
}

var dataTypes = map[int32]tensor.DataType{
	onnx.TensorProtoFloat:  tensor.Float32,
	onnx.TensorProtoDouble: tensor.Float32,
	onnx.TensorProtoInt64:  tensor.Int64,
	onnx.TensorProtoInt32:  tensor.Int32,
	onnx.TensorProtoInt8:   tensor.Int8,
	onnx.TensorProtoUint8:  tensor.Uint8,
	onnx.TensorProtoBool:   tensor.Bool,
}
