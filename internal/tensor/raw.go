package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Tensor is a dense, row-major tensor backed by little-endian bytes.
type Tensor struct {
	shape Shape
	dtype DataType
	data  []byte
}

// New creates a zero-filled tensor with the given shape and type.
func New(shape Shape, dtype DataType) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &Tensor{
		shape: shape.Clone(),
		dtype: dtype,
		data:  make([]byte, shape.NumElements()*dtype.Size()),
	}, nil
}

// FromBytes wraps raw little-endian bytes. The length must match shape and dtype.
func FromBytes(shape Shape, dtype DataType, data []byte) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	want := shape.NumElements() * dtype.Size()
	if len(data) != want {
		return nil, fmt.Errorf("%s tensor of shape %v needs %d bytes, got %d", dtype, shape, want, len(data))
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Tensor{shape: shape.Clone(), dtype: dtype, data: buf}, nil
}

// FromFloat32 builds a float32 tensor from values.
func FromFloat32(shape Shape, values []float32) (*Tensor, error) {
	if err := checkValues(shape, len(values)); err != nil {
		return nil, err
	}
	t, err := New(shape, Float32)
	if err != nil {
		return nil, err
	}
	t.SetFloat32(values)
	return t, nil
}

// FromInt64 builds an int64 tensor from values.
func FromInt64(shape Shape, values []int64) (*Tensor, error) {
	if err := checkValues(shape, len(values)); err != nil {
		return nil, err
	}
	t, err := New(shape, Int64)
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		binary.LittleEndian.PutUint64(t.data[i*8:], uint64(v)) //nolint:gosec // G115: bit-preserving cast.
	}
	return t, nil
}

// checkValues runs before any allocation so a bogus shape cannot force one.
func checkValues(shape Shape, n int) error {
	if err := shape.Validate(); err != nil {
		return fmt.Errorf("invalid shape: %w", err)
	}
	if want := shape.NumElements(); n != want {
		return fmt.Errorf("shape %v needs %d values, got %d", shape, want, n)
	}
	return nil
}

// Scalar builds a rank-0 float32 tensor.
func Scalar(v float32) *Tensor {
	t, _ := FromFloat32(Shape{}, []float32{v})
	return t
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// DType returns the tensor's data type.
func (t *Tensor) DType() DataType {
	return t.dtype
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return t.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (t *Tensor) ByteSize() int {
	return len(t.data)
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (t *Tensor) Data() []byte {
	return t.data
}

// Reshape returns a tensor sharing the same bytes with a new shape.
func (t *Tensor) Reshape(shape Shape) (*Tensor, error) {
	if shape.NumElements() != t.NumElements() {
		return nil, fmt.Errorf("cannot reshape %v (%d elements) to %v", t.shape, t.NumElements(), shape)
	}
	return &Tensor{shape: shape.Clone(), dtype: t.dtype, data: t.data}, nil
}

// Float32s decodes the tensor as float32 values. Integer and boolean tensors are
// converted element by element.
func (t *Tensor) Float32s() []float32 {
	n := t.NumElements()
	out := make([]float32, n)
	switch t.dtype {
	case Float32:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(t.data[i*4:]))
		}
	case Int64:
		for i := range out {
			out[i] = float32(int64(binary.LittleEndian.Uint64(t.data[i*8:]))) //nolint:gosec // G115: bit-preserving cast.
		}
	case Int32:
		for i := range out {
			out[i] = float32(int32(binary.LittleEndian.Uint32(t.data[i*4:]))) //nolint:gosec // G115: bit-preserving cast.
		}
	case Int8:
		for i := range out {
			out[i] = float32(int8(t.data[i])) //nolint:gosec // G115: bit-preserving cast.
		}
	case Uint8, Bool:
		for i := range out {
			out[i] = float32(t.data[i])
		}
	}
	return out
}

// Int64s decodes the tensor as int64 values.
func (t *Tensor) Int64s() []int64 {
	n := t.NumElements()
	out := make([]int64, n)
	switch t.dtype {
	case Int64:
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(t.data[i*8:])) //nolint:gosec // G115: bit-preserving cast.
		}
	case Int32:
		for i := range out {
			out[i] = int64(int32(binary.LittleEndian.Uint32(t.data[i*4:]))) //nolint:gosec // G115: bit-preserving cast.
		}
	default:
		for i, v := range t.Float32s() {
			out[i] = int64(v)
		}
	}
	return out
}

// SetFloat32 overwrites a float32 tensor's contents.
func (t *Tensor) SetFloat32(values []float32) {
	if t.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", t.dtype))
	}
	for i, v := range values {
		binary.LittleEndian.PutUint32(t.data[i*4:], math.Float32bits(v))
	}
}
