package quantize

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/born-ml/bornlite/internal/tensor"
)

// Q8_0 block geometry.
const (
	BlockSize        = 32
	BlockByteSize    = 2 + BlockSize
	int8MaxMagnitude = 127

	// maxFloat16 is the largest finite half-precision value.
	maxFloat16 = 65504
)

// Quantized is a tensor stored in a reduced-precision scheme.
type Quantized struct {
	Scheme Scheme
	Shape  tensor.Shape
	// Scale is the per-tensor scale of SchemeInt8. Block schemes carry their
	// scales inside Data.
	Scale float32
	Data  []byte
}

// Eligible reports whether t should be quantized at the given threshold.
// Tensors holding NaN or Inf are never eligible.
func Eligible(t *tensor.Tensor, minElements int) bool {
	if t.DType() != tensor.Float32 || t.NumElements() == 0 || t.NumElements() < minElements {
		return false
	}
	_, ok := maxAbs(t.Float32s())
	return ok
}

// Apply quantizes t with the scheme of level. It returns false when t is left
// unchanged because the level is none or t is not eligible.
func Apply(t *tensor.Tensor, level Level, minElements int) (*Quantized, bool) {
	if level.Scheme() == SchemeNone || !Eligible(t, minElements) {
		return nil, false
	}
	switch level.Scheme() {
	case SchemeQ8_0:
		// Block scales are stored as float16.
		if amax, _ := maxAbs(t.Float32s()); amax/int8MaxMagnitude > maxFloat16 {
			return nil, false
		}
		return Q8_0(t), true
	default:
		return Int8(t), true
	}
}

// Int8 quantizes a float32 tensor with a single symmetric scale.
func Int8(t *tensor.Tensor) *Quantized {
	values := t.Float32s()

	var amax float32
	for _, v := range values {
		if a := abs32(v); a > amax {
			amax = a
		}
	}

	q := &Quantized{
		Scheme: SchemeInt8,
		Shape:  t.Shape().Clone(),
		Scale:  amax / int8MaxMagnitude,
		Data:   make([]byte, len(values)),
	}
	if q.Scale == 0 {
		return q
	}

	inv := 1 / q.Scale
	for i, v := range values {
		q.Data[i] = byte(roundClamp(v * inv))
	}
	return q
}

// Q8_0 quantizes a float32 tensor into 32-element blocks. The final block is
// zero padded.
func Q8_0(t *tensor.Tensor) *Quantized {
	values := t.Float32s()
	blocks := (len(values) + BlockSize - 1) / BlockSize

	q := &Quantized{
		Scheme: SchemeQ8_0,
		Shape:  t.Shape().Clone(),
		Data:   make([]byte, blocks*BlockByteSize),
	}

	for b := 0; b < blocks; b++ {
		start := b * BlockSize
		end := min(start+BlockSize, len(values))
		block := q.Data[b*BlockByteSize : (b+1)*BlockByteSize]

		var amax float32
		for _, v := range values[start:end] {
			if a := abs32(v); a > amax {
				amax = a
			}
		}

		d := amax / int8MaxMagnitude
		binary.LittleEndian.PutUint16(block[0:2], float32ToFloat16(d))
		if d == 0 {
			continue
		}

		id := 1 / d
		for i, v := range values[start:end] {
			block[2+i] = byte(roundClamp(v * id))
		}
	}
	return q
}

// Dequantize restores a float32 tensor.
func (q *Quantized) Dequantize() (*tensor.Tensor, error) {
	n := q.Shape.NumElements()
	out := make([]float32, n)

	switch q.Scheme {
	case SchemeInt8:
		if len(q.Data) != n {
			return nil, fmt.Errorf("int8 tensor: need %d bytes, got %d", n, len(q.Data))
		}
		for i, b := range q.Data {
			out[i] = q.Scale * float32(int8(b))
		}

	case SchemeQ8_0:
		blocks := (n + BlockSize - 1) / BlockSize
		if len(q.Data) != blocks*BlockByteSize {
			return nil, fmt.Errorf("q8_0 tensor: need %d bytes, got %d", blocks*BlockByteSize, len(q.Data))
		}
		for b := 0; b < blocks; b++ {
			block := q.Data[b*BlockByteSize : (b+1)*BlockByteSize]
			d := float16ToFloat32(binary.LittleEndian.Uint16(block[0:2]))
			for i := 0; i < BlockSize && b*BlockSize+i < n; i++ {
				out[b*BlockSize+i] = d * float32(int8(block[2+i]))
			}
		}

	default:
		return nil, fmt.Errorf("cannot dequantize scheme %s", q.Scheme)
	}

	return tensor.FromFloat32(q.Shape, out)
}

// MaxError returns the worst-case absolute rounding error of q.
func (q *Quantized) MaxError() float32 {
	switch q.Scheme {
	case SchemeInt8:
		return q.Scale / 2
	case SchemeQ8_0:
		var worst float32
		for off := 0; off+BlockByteSize <= len(q.Data); off += BlockByteSize {
			d := float16ToFloat32(binary.LittleEndian.Uint16(q.Data[off : off+2]))
			if d > worst {
				worst = d
			}
		}
		// float16 rounding of d adds up to 127 * d * 2^-11.
		return worst/2 + worst*int8MaxMagnitude/2048
	default:
		return 0
	}
}

func roundClamp(v float32) int8 {
	r := math.Round(float64(v))
	if r > int8MaxMagnitude {
		r = int8MaxMagnitude
	}
	if r < -int8MaxMagnitude {
		r = -int8MaxMagnitude
	}
	return int8(r)
}

// maxAbs returns the largest magnitude in values and false if any value is
// not finite.
func maxAbs(values []float32) (float32, bool) {
	var amax float32
	for _, v := range values {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return 0, false
		}
		if a := abs32(v); a > amax {
			amax = a
		}
	}
	return amax, true
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
