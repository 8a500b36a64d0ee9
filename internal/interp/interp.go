// Package interp evaluates flat model artifacts and, for reference, ONNX
// models directly.
package interp

import (
	"errors"
	"fmt"

	"github.com/born-ml/bornlite/internal/compat"
	"github.com/born-ml/bornlite/internal/flatbuf"
	"github.com/born-ml/bornlite/internal/numlib"
	"github.com/born-ml/bornlite/internal/onnx"
	"github.com/born-ml/bornlite/internal/savedmodel"
	"github.com/born-ml/bornlite/internal/tensor"
	"github.com/born-ml/bornlite/internal/translate"
)

// ErrPlaceholder is returned when evaluation reaches an op that translation
// kept as an unsupported placeholder.
var ErrPlaceholder = errors.New("interp: op has no kernel")

// Spec describes a program input or output.
type Spec struct {
	Name  string
	DType string
	Shape tensor.Shape
}

type step struct {
	name    string
	kind    string
	kernel  numlib.Kernel
	inputs  []string
	outputs []string
	attrs   numlib.Attrs
}

// Program is an executable graph.
type Program struct {
	name      string
	inputs    []Spec
	outputs   []Spec
	steps     []step
	constants map[string]*tensor.Tensor
}

// LoadArtifact decodes artifact bytes into a program. Kernels are resolved by
// their canonical names; quantized constants are dequantized.
func LoadArtifact(b []byte) (*Program, error) {
	a, err := flatbuf.Decode(b, flatbuf.ReadOptions{})
	if err != nil {
		return nil, err
	}

	ns := numlib.New()
	p := &Program{
		name:      a.Model.Name,
		constants: make(map[string]*tensor.Tensor, len(a.Model.Tensors)),
	}
	for _, s := range a.Model.Inputs {
		p.inputs = append(p.inputs, Spec{Name: s.Name, DType: s.DType, Shape: s.Shape})
	}
	for _, s := range a.Model.Outputs {
		p.outputs = append(p.outputs, Spec{Name: s.Name, DType: s.DType, Shape: s.Shape})
	}

	for i := range a.Model.Tensors {
		name := a.Model.Tensors[i].Name
		t, err := a.Tensor(name)
		if err != nil {
			return nil, fmt.Errorf("interp: %w", err)
		}
		p.constants[name] = t
	}

	for i := range a.Model.Ops {
		op := &a.Model.Ops[i]
		s := step{name: op.Name, kind: op.Kind, inputs: op.Inputs, outputs: op.Outputs, attrs: op.Attrs}
		if op.Kind != savedmodel.OpUnsupported {
			sym, err := ns.Resolve(op.Kernel)
			if err != nil {
				return nil, fmt.Errorf("interp: op %q: %w", op.Name, err)
			}
			s.kernel = sym.Kernel
		}
		p.steps = append(p.steps, s)
	}

	return p, nil
}

// RunONNX evaluates an ONNX model directly with full-precision weights. A nil
// resolver uses the numlib namespace behind the default compat aliases.
func RunONNX(model *onnx.ModelProto, resolver numlib.Resolver, inputs map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	if resolver == nil {
		a, err := compat.New(numlib.New(), nil)
		if err != nil {
			return nil, err
		}
		resolver = a
	}

	rep, err := translate.Prepare(model, translate.Options{Strict: true, Resolver: resolver})
	if err != nil {
		return nil, err
	}
	p, err := fromGraph(rep.Graph, rep.Constants, resolver)
	if err != nil {
		return nil, err
	}
	return p.Run(inputs)
}

func fromGraph(g *savedmodel.Graph, constants map[string]*tensor.Tensor, resolver numlib.Resolver) (*Program, error) {
	p := &Program{name: g.Name, constants: constants}
	for _, s := range g.Inputs {
		p.inputs = append(p.inputs, Spec{Name: s.Name, DType: s.DType, Shape: s.Shape})
	}
	for _, s := range g.Outputs {
		p.outputs = append(p.outputs, Spec{Name: s.Name, DType: s.DType, Shape: s.Shape})
	}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		sym, err := resolver.Resolve(n.Kernel)
		if err != nil {
			return nil, fmt.Errorf("interp: op %q: %w", n.Name, err)
		}
		p.steps = append(p.steps, step{
			name: n.Name, kind: n.Op, kernel: sym.Kernel,
			inputs: n.Inputs, outputs: n.Outputs, attrs: n.Attrs,
		})
	}
	return p, nil
}

// Name returns the graph name.
func (p *Program) Name() string { return p.name }

// Inputs returns the graph input specs.
func (p *Program) Inputs() []Spec { return p.inputs }

// Outputs returns the graph output specs.
func (p *Program) Outputs() []Spec { return p.outputs }

// Run evaluates the program. Inputs whose element count matches the declared
// shape are reshaped to it.
func (p *Program) Run(inputs map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	values := make(map[string]*tensor.Tensor, len(p.constants)+len(inputs))
	for name, t := range p.constants {
		values[name] = t
	}

	for _, spec := range p.inputs {
		t, ok := inputs[spec.Name]
		if !ok {
			return nil, fmt.Errorf("interp: missing input %q", spec.Name)
		}
		if len(spec.Shape) > 0 && !t.Shape().Equal(spec.Shape) && t.NumElements() == spec.Shape.NumElements() {
			reshaped, err := t.Reshape(spec.Shape)
			if err != nil {
				return nil, fmt.Errorf("interp: input %q: %w", spec.Name, err)
			}
			t = reshaped
		}
		values[spec.Name] = t
	}

	for i := range p.steps {
		s := &p.steps[i]
		if s.kernel == nil {
			return nil, fmt.Errorf("%w: %q (%v)", ErrPlaceholder, s.name, s.attrs["op_type"])
		}

		args := make([]*tensor.Tensor, len(s.inputs))
		for j, name := range s.inputs {
			if name == "" {
				continue
			}
			v, ok := values[name]
			if !ok {
				return nil, fmt.Errorf("interp: op %q: tensor %q is undefined", s.name, name)
			}
			args[j] = v
		}

		out, err := s.kernel(args, s.attrs)
		if err != nil {
			return nil, fmt.Errorf("interp: op %q (%s): %w", s.name, s.kind, err)
		}
		if len(s.outputs) == 0 || s.outputs[0] == "" {
			return nil, fmt.Errorf("interp: op %q (%s) has no named output", s.name, s.kind)
		}
		values[s.outputs[0]] = out
	}

	results := make(map[string]*tensor.Tensor, len(p.outputs))
	for _, spec := range p.outputs {
		v, ok := values[spec.Name]
		if !ok {
			return nil, fmt.Errorf("interp: output %q was not computed", spec.Name)
		}
		results[spec.Name] = v
	}
	return results, nil
}

// MaxAbsDiff returns the largest elementwise difference between two tensors
// of equal element count.
func MaxAbsDiff(a, b *tensor.Tensor) (float32, error) {
	if a.NumElements() != b.NumElements() {
		return 0, fmt.Errorf("interp: element count %d != %d", a.NumElements(), b.NumElements())
	}
	av, bv := a.Float32s(), b.Float32s()
	var worst float32
	for i := range av {
		d := av[i] - bv[i]
		if d < 0 {
			d = -d
		}
		if d > worst {
			worst = d
		}
	}
	return worst, nil
}
