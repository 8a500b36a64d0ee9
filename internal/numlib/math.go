package numlib

import (
	"fmt"
	"math"

	"github.com/born-ml/bornlite/internal/tensor"
)

// registerMath adds elementwise kernels to the namespace.
func (n *Namespace) registerMath() {
	n.Register("math.add", binary("math.add", func(a, b float32) float32 { return a + b }))
	n.Register("math.subtract", binary("math.subtract", func(a, b float32) float32 { return a - b }))
	n.Register("math.multiply", binary("math.multiply", func(a, b float32) float32 { return a * b }))
	n.Register("math.divide", binary("math.divide", func(a, b float32) float32 { return a / b }))
	n.Register("math.pow", binary("math.pow", func(a, b float32) float32 {
		return float32(math.Pow(float64(a), float64(b)))
	}))

	n.Register("math.negative", unary("math.negative", func(x float32) float32 { return -x }))
	n.Register("math.abs", unary("math.abs", func(x float32) float32 { return float32(math.Abs(float64(x))) }))
	n.Register("math.ceil", unary("math.ceil", func(x float32) float32 { return float32(math.Ceil(float64(x))) }))
	n.Register("math.floor", unary("math.floor", func(x float32) float32 { return float32(math.Floor(float64(x))) }))
	n.Register("math.sin", unary("math.sin", func(x float32) float32 { return float32(math.Sin(float64(x))) }))
	n.Register("math.cos", unary("math.cos", func(x float32) float32 { return float32(math.Cos(float64(x))) }))
	n.Register("math.sqrt", unary("math.sqrt", func(x float32) float32 { return float32(math.Sqrt(float64(x))) }))
	n.Register("math.exp", unary("math.exp", func(x float32) float32 { return float32(math.Exp(float64(x))) }))
	n.Register("math.log", unary("math.log", func(x float32) float32 { return float32(math.Log(float64(x))) }))
	n.Register("math.tanh", unary("math.tanh", func(x float32) float32 { return float32(math.Tanh(float64(x))) }))
	n.Register("math.sigmoid", unary("math.sigmoid", func(x float32) float32 {
		return float32(1 / (1 + math.Exp(-float64(x))))
	}))
}

func unary(name string, f func(float32) float32) Kernel {
	return func(inputs []*tensor.Tensor, _ Attrs) (*tensor.Tensor, error) {
		if err := arity(name, inputs, 1); err != nil {
			return nil, err
		}
		x := inputs[0].Float32s()
		for i, v := range x {
			x[i] = f(v)
		}
		return tensor.FromFloat32(inputs[0].Shape(), x)
	}
}

func binary(name string, f func(a, b float32) float32) Kernel {
	return func(inputs []*tensor.Tensor, _ Attrs) (*tensor.Tensor, error) {
		if err := arity(name, inputs, 2); err != nil {
			return nil, err
		}
		out, err := broadcastApply(inputs[0], inputs[1], f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return out, nil
	}
}

// broadcastApply evaluates f over the NumPy-style broadcast of a and b.
func broadcastApply(a, b *tensor.Tensor, f func(a, b float32) float32) (*tensor.Tensor, error) {
	outShape, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		return nil, err
	}

	av, bv := a.Float32s(), b.Float32s()
	n := outShape.NumElements()
	result := make([]float32, n)

	if a.Shape().Equal(b.Shape()) {
		for i := range result {
			result[i] = f(av[i], bv[i])
		}
		return tensor.FromFloat32(outShape, result)
	}

	outStrides := outShape.ComputeStrides()
	aStrides := tensor.BroadcastStrides(a.Shape(), outShape)
	bStrides := tensor.BroadcastStrides(b.Shape(), outShape)

	for i := range result {
		ai, bi := 0, 0
		rem := i
		for d := range outShape {
			idx := rem / outStrides[d]
			rem %= outStrides[d]
			ai += idx * aStrides[d]
			bi += idx * bStrides[d]
		}
		result[i] = f(av[ai], bv[bi])
	}

	return tensor.FromFloat32(outShape, result)
}
