package numlib

import (
	"fmt"

	"github.com/born-ml/bornlite/internal/tensor"
)

// registerArray adds shape manipulation kernels to the namespace.
func (n *Namespace) registerArray() {
	n.Register("array.identity", identity)
	n.Register("array.reshape", reshape)
	n.Register("array.transpose", transposeKernel)
	n.Register("array.flatten", flatten)
}

func identity(inputs []*tensor.Tensor, _ Attrs) (*tensor.Tensor, error) {
	if len(inputs) < 1 || inputs[0] == nil {
		return nil, fmt.Errorf("array.identity requires 1 input")
	}
	return inputs[0], nil
}

// reshape takes the target shape as a second int64 input. A 0 copies the input
// dimension at that position and a single -1 is inferred.
func reshape(inputs []*tensor.Tensor, _ Attrs) (*tensor.Tensor, error) {
	if err := arity("array.reshape", inputs, 2); err != nil {
		return nil, err
	}
	data := inputs[0]
	target := inputs[1].Int64s()

	shape := make(tensor.Shape, len(target))
	infer := -1
	known := 1
	for i, d := range target {
		switch {
		case d == -1:
			if infer >= 0 {
				return nil, fmt.Errorf("array.reshape: more than one -1 in %v", target)
			}
			infer = i
			continue
		case d == 0:
			if i >= len(data.Shape()) {
				return nil, fmt.Errorf("array.reshape: 0 at index %d exceeds input rank %d", i, len(data.Shape()))
			}
			shape[i] = data.Shape()[i]
		case d < 0:
			return nil, fmt.Errorf("array.reshape: invalid dimension %d", d)
		default:
			shape[i] = int(d)
		}
		known *= shape[i]
	}
	if infer >= 0 {
		if known == 0 || data.NumElements()%known != 0 {
			return nil, fmt.Errorf("array.reshape: cannot infer dimension for %v from %v", target, data.Shape())
		}
		shape[infer] = data.NumElements() / known
	}

	out, err := data.Reshape(shape)
	if err != nil {
		return nil, fmt.Errorf("array.reshape: %w", err)
	}
	return out, nil
}

func transposeKernel(inputs []*tensor.Tensor, attrs Attrs) (*tensor.Tensor, error) {
	if err := arity("array.transpose", inputs, 1); err != nil {
		return nil, err
	}
	var perm []int
	for _, p := range attrs.Ints("perm") {
		perm = append(perm, int(p))
	}
	return transpose(inputs[0], perm)
}

// transpose permutes axes; an empty perm reverses them.
func transpose(t *tensor.Tensor, perm []int) (*tensor.Tensor, error) {
	shape := t.Shape()
	rank := len(shape)
	if len(perm) == 0 {
		perm = make([]int, rank)
		for i := range perm {
			perm[i] = rank - 1 - i
		}
	}
	if len(perm) != rank {
		return nil, fmt.Errorf("array.transpose: perm %v does not match rank %d", perm, rank)
	}

	seen := make([]bool, rank)
	outShape := make(tensor.Shape, rank)
	for i, p := range perm {
		if p < 0 || p >= rank || seen[p] {
			return nil, fmt.Errorf("array.transpose: invalid perm %v", perm)
		}
		seen[p] = true
		outShape[i] = shape[p]
	}

	src := t.Float32s()
	inStrides := shape.ComputeStrides()
	outStrides := outShape.ComputeStrides()
	dst := make([]float32, len(src))

	for i := range dst {
		rem := i
		srcIdx := 0
		for d := 0; d < rank; d++ {
			idx := rem / outStrides[d]
			rem %= outStrides[d]
			srcIdx += idx * inStrides[perm[d]]
		}
		dst[i] = src[srcIdx]
	}

	return tensor.FromFloat32(outShape, dst)
}

// flatten collapses dimensions before and after axis into a 2-D tensor.
func flatten(inputs []*tensor.Tensor, attrs Attrs) (*tensor.Tensor, error) {
	if err := arity("array.flatten", inputs, 1); err != nil {
		return nil, err
	}
	shape := inputs[0].Shape()
	axis := int(attrs.Int("axis", 1))
	if axis < 0 {
		axis += len(shape)
	}
	if axis < 0 || axis > len(shape) {
		return nil, fmt.Errorf("array.flatten: axis %d out of range for rank %d", axis, len(shape))
	}

	outer := tensor.Shape(shape[:axis]).NumElements()
	return inputs[0].Reshape(tensor.Shape{outer, inputs[0].NumElements() / max(outer, 1)})
}
