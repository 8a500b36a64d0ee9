package numlib

import (
	"fmt"

	"github.com/born-ml/bornlite/internal/tensor"
)

// registerLinalg adds matrix product kernels to the namespace.
func (n *Namespace) registerLinalg() {
	n.Register("linalg.matmul", matmul)
	n.Register("linalg.gemm", gemm)
}

// matmul follows numpy.matmul: 1-D operands are promoted, leading dimensions
// are batch dimensions and must match unless one side is a plain matrix.
func matmul(inputs []*tensor.Tensor, _ Attrs) (*tensor.Tensor, error) {
	if err := arity("linalg.matmul", inputs, 2); err != nil {
		return nil, err
	}
	a, b := inputs[0], inputs[1]
	aShape, bShape := a.Shape().Clone(), b.Shape().Clone()

	squeezeA, squeezeB := false, false
	if len(aShape) == 1 {
		aShape = tensor.Shape{1, aShape[0]}
		squeezeA = true
	}
	if len(bShape) == 1 {
		bShape = tensor.Shape{bShape[0], 1}
		squeezeB = true
	}
	if len(aShape) < 2 || len(bShape) < 2 {
		return nil, fmt.Errorf("linalg.matmul: scalar operands are not allowed")
	}

	m, k := aShape[len(aShape)-2], aShape[len(aShape)-1]
	k2, n := bShape[len(bShape)-2], bShape[len(bShape)-1]
	if k != k2 {
		return nil, fmt.Errorf("linalg.matmul: inner dimensions differ: %v x %v", a.Shape(), b.Shape())
	}

	aBatch, bBatch := aShape[:len(aShape)-2], bShape[:len(bShape)-2]
	var batch tensor.Shape
	switch {
	case len(aBatch) == 0:
		batch = bBatch
	case len(bBatch) == 0:
		batch = aBatch
	case aBatch.Equal(bBatch):
		batch = aBatch
	default:
		return nil, fmt.Errorf("linalg.matmul: batch dimensions differ: %v x %v", a.Shape(), b.Shape())
	}

	av, bv := a.Float32s(), b.Float32s()
	batches := batch.NumElements()
	out := make([]float32, batches*m*n)

	for bi := 0; bi < batches; bi++ {
		aOff, bOff := 0, 0
		if len(aBatch) > 0 {
			aOff = bi * m * k
		}
		if len(bBatch) > 0 {
			bOff = bi * k * n
		}
		oOff := bi * m * n
		for i := 0; i < m; i++ {
			for p := 0; p < k; p++ {
				x := av[aOff+i*k+p]
				if x == 0 {
					continue
				}
				row := bOff + p*n
				for j := 0; j < n; j++ {
					out[oOff+i*n+j] += x * bv[row+j]
				}
			}
		}
	}

	outShape := append(batch.Clone(), m, n)
	switch {
	case squeezeA && squeezeB:
		outShape = batch.Clone()
	case squeezeA:
		outShape = append(batch.Clone(), n)
	case squeezeB:
		outShape = append(batch.Clone(), m)
	}

	return tensor.FromFloat32(outShape, out)
}

// gemm computes alpha*A'*B' + beta*C for 2-D A and B.
func gemm(inputs []*tensor.Tensor, attrs Attrs) (*tensor.Tensor, error) {
	if len(inputs) < 2 || len(inputs) > 3 {
		return nil, fmt.Errorf("linalg.gemm requires 2 or 3 inputs, got %d", len(inputs))
	}
	a, b := inputs[0], inputs[1]
	if a == nil || b == nil {
		return nil, fmt.Errorf("linalg.gemm: A and B are required")
	}
	if len(a.Shape()) != 2 || len(b.Shape()) != 2 {
		return nil, fmt.Errorf("linalg.gemm: operands must be 2-D, got %v and %v", a.Shape(), b.Shape())
	}

	var err error
	if attrs.Int("transA", 0) != 0 {
		if a, err = transpose(a, []int{1, 0}); err != nil {
			return nil, err
		}
	}
	if attrs.Int("transB", 0) != 0 {
		if b, err = transpose(b, []int{1, 0}); err != nil {
			return nil, err
		}
	}

	result, err := matmul([]*tensor.Tensor{a, b}, nil)
	if err != nil {
		return nil, fmt.Errorf("linalg.gemm: %w", err)
	}

	alpha := attrs.Float("alpha", 1.0)
	if alpha != 1.0 {
		result, err = broadcastApply(result, tensor.Scalar(alpha), func(x, s float32) float32 { return x * s })
		if err != nil {
			return nil, err
		}
	}

	beta := attrs.Float("beta", 1.0)
	if len(inputs) == 3 && inputs[2] != nil && beta != 0 {
		c := inputs[2]
		result, err = broadcastApply(result, c, func(x, y float32) float32 { return x + beta*y })
		if err != nil {
			return nil, fmt.Errorf("linalg.gemm: bias: %w", err)
		}
	}

	return result, nil
}
