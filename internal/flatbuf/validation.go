package flatbuf

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/bornlite/internal/quantize"
	"github.com/born-ml/bornlite/internal/tensor"
)

// Validation limits.
const (
	MaxGraphSize     = 100 * 1024 * 1024
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// ValidateTensorName rejects empty names, oversized names and names with
// control characters.
func ValidateTensorName(name string) error {
	if name == "" {
		return &ValidationError{Type: "invalid_name", Details: "empty tensor name", Err: ErrInvalidTensorName}
	}
	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Type:    "name_too_long",
			Tensor:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
			Err:     ErrInvalidTensorName,
		}
	}
	if strings.ContainsRune(name, 0) {
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains null byte", Err: ErrInvalidTensorName}
	}
	return nil
}

// ExpectedSize returns the stored byte size of a tensor.
func ExpectedSize(meta *TensorMeta) (int64, error) {
	n := int64(tensor.Shape(meta.Shape).NumElements())
	switch meta.Scheme {
	case quantize.SchemeNone:
		dt, err := tensor.ParseDataType(meta.DType)
		if err != nil {
			return 0, err
		}
		return n * int64(dt.Size()), nil
	case quantize.SchemeInt8:
		return n, nil
	case quantize.SchemeQ8_0:
		return (n + quantize.BlockSize - 1) / quantize.BlockSize * quantize.BlockByteSize, nil
	default:
		return 0, fmt.Errorf("unknown scheme %d", meta.Scheme)
	}
}

// ValidateTensors checks names, sizes, bounds and overlap against a data
// section of dataSize bytes.
func ValidateTensors(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
			Err:     ErrTooManyTensors,
		}
	}

	seen := make(map[string]bool, len(tensors))
	for i := range tensors {
		t := &tensors[i]
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		if seen[t.Name] {
			return &ValidationError{Type: "duplicate_name", Tensor: t.Name, Details: "name used twice", Err: ErrInvalidTensorName}
		}
		seen[t.Name] = true

		want, err := ExpectedSize(t)
		if err != nil {
			return &ValidationError{Type: "invalid_tensor", Tensor: t.Name, Details: err.Error()}
		}
		if t.Size != want {
			return &ValidationError{
				Type:    "size_mismatch",
				Tensor:  t.Name,
				Details: fmt.Sprintf("size %d, shape and scheme need %d", t.Size, want),
				Err:     ErrOutOfBounds,
			}
		}
	}

	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", t.Offset, t.Size),
				Err:     ErrOutOfBounds,
			}
		}
		if t.Offset+t.Size > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
				Err:     ErrOutOfBounds,
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
					Err: ErrOffsetOverlap,
				}
			}
		}
	}

	return nil
}
