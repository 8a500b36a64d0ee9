package numlib

import (
	"fmt"
	"math"

	"github.com/born-ml/bornlite/internal/tensor"
)

// registerNN adds activation kernels to the namespace.
func (n *Namespace) registerNN() {
	n.Register("nn.relu", unary("nn.relu", func(x float32) float32 {
		if x < 0 {
			return 0
		}
		return x
	}))
	n.Register("nn.leaky_relu", leakyRelu)
	n.Register("nn.softmax", softmax)
}

func leakyRelu(inputs []*tensor.Tensor, attrs Attrs) (*tensor.Tensor, error) {
	if err := arity("nn.leaky_relu", inputs, 1); err != nil {
		return nil, err
	}
	alpha := attrs.Float("alpha", 0.01)
	x := inputs[0].Float32s()
	for i, v := range x {
		if v < 0 {
			x[i] = alpha * v
		}
	}
	return tensor.FromFloat32(inputs[0].Shape(), x)
}

// softmax normalizes along a single axis (default: last).
func softmax(inputs []*tensor.Tensor, attrs Attrs) (*tensor.Tensor, error) {
	if err := arity("nn.softmax", inputs, 1); err != nil {
		return nil, err
	}
	shape := inputs[0].Shape()
	if len(shape) == 0 {
		return tensor.FromFloat32(shape, []float32{1})
	}
	if shape.NumElements() == 0 {
		return tensor.New(shape, tensor.Float32)
	}

	axis := int(attrs.Int("axis", -1))
	if axis < 0 {
		axis += len(shape)
	}
	if axis < 0 || axis >= len(shape) {
		return nil, fmt.Errorf("nn.softmax: axis %d out of range for rank %d", attrs.Int("axis", -1), len(shape))
	}

	x := inputs[0].Float32s()
	strides := shape.ComputeStrides()
	dim, stride := shape[axis], strides[axis]
	outer := shape.NumElements() / (dim * stride)

	for o := 0; o < outer; o++ {
		for in := 0; in < stride; in++ {
			base := o*dim*stride + in
			maxV := float32(math.Inf(-1))
			for k := 0; k < dim; k++ {
				maxV = max(maxV, x[base+k*stride])
			}
			var sum float64
			for k := 0; k < dim; k++ {
				e := math.Exp(float64(x[base+k*stride] - maxV))
				x[base+k*stride] = float32(e)
				sum += e
			}
			for k := 0; k < dim; k++ {
				x[base+k*stride] = float32(float64(x[base+k*stride]) / sum)
			}
		}
	}

	return tensor.FromFloat32(shape, x)
}
