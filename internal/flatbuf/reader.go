package flatbuf

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/born-ml/bornlite/internal/quantize"
	"github.com/born-ml/bornlite/internal/tensor"
)

// maxDecodedSize bounds the decompressed data section.
const maxDecodedSize = 4 << 30

// ReadOptions configures Decode.
type ReadOptions struct {
	SkipChecksumValidation bool
}

// Header is the decoded fixed header.
type Header struct {
	Version   uint32
	Flags     uint32
	GraphSize uint64
	DataSize  uint64
	Checksum  [ChecksumSize]byte
}

// Artifact is a decoded flat model.
type Artifact struct {
	Header Header
	Model  Model
	data   []byte // uncompressed data section
}

// ReadFile reads and decodes the artifact at path.
func ReadFile(path string) (*Artifact, error) {
	//nolint:gosec // G304: artifact path is supplied by the caller.
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("flatbuf: %w", err)
	}
	return Decode(b, ReadOptions{})
}

// Decode parses and validates artifact bytes.
func Decode(b []byte, opts ReadOptions) (*Artifact, error) {
	h, err := parseHeader(b)
	if err != nil {
		return nil, fmt.Errorf("flatbuf: %w", err)
	}

	graphEnd := FixedHeaderSize + int64(h.GraphSize) //nolint:gosec // G115: bounded by MaxGraphSize.
	dataStart := alignUp(graphEnd)
	if int64(len(b))-dataStart != int64(h.DataSize) { //nolint:gosec // G115: compared against the real length.
		return nil, fmt.Errorf("flatbuf: %w: data section is %d bytes, header says %d",
			ErrTruncated, int64(len(b))-dataStart, h.DataSize)
	}
	stored := b[dataStart:]

	if !opts.SkipChecksumValidation {
		if sha256.Sum256(stored) != h.Checksum {
			return nil, fmt.Errorf("flatbuf: %w", ErrChecksumMismatch)
		}
	}

	a := &Artifact{Header: h, data: stored}
	if err := msgpack.Unmarshal(b[FixedHeaderSize:graphEnd], &a.Model); err != nil {
		return nil, fmt.Errorf("flatbuf: decode graph: %w", err)
	}

	if h.Flags&FlagCompressed != 0 {
		zr, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
		if err != nil {
			return nil, fmt.Errorf("flatbuf: create zstd decoder: %w", err)
		}
		a.data, err = zr.DecodeAll(stored, nil)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("flatbuf: decompress data: %w", err)
		}
	}

	if err := ValidateTensors(a.Model.Tensors, int64(len(a.data))); err != nil {
		return nil, fmt.Errorf("flatbuf: %w", err)
	}
	return a, nil
}

func parseHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < FixedHeaderSize {
		if len(b) >= 4 && string(b[:4]) != MagicBytes {
			return h, ErrInvalidMagic
		}
		return h, fmt.Errorf("%w: %d bytes", ErrTruncated, len(b))
	}
	if string(b[:4]) != MagicBytes {
		return h, ErrInvalidMagic
	}

	h.Version = binary.LittleEndian.Uint32(b[4:8])
	if h.Version != FormatVersion {
		return h, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, h.Version, FormatVersion)
	}
	h.Flags = binary.LittleEndian.Uint32(b[8:12])
	h.GraphSize = binary.LittleEndian.Uint64(b[16:24])
	h.DataSize = binary.LittleEndian.Uint64(b[24:32])
	copy(h.Checksum[:], b[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if h.GraphSize > MaxGraphSize {
		return h, ErrGraphTooLarge
	}
	if uint64(len(b)) < FixedHeaderSize+h.GraphSize {
		return h, fmt.Errorf("%w: graph section", ErrTruncated)
	}
	return h, nil
}

// Compressed reports whether the data section was stored compressed.
func (a *Artifact) Compressed() bool {
	return a.Header.Flags&FlagCompressed != 0
}

// RawTensor returns the stored bytes of a tensor.
func (a *Artifact) RawTensor(name string) (*TensorMeta, []byte, error) {
	meta, ok := a.Model.Tensor(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	return meta, a.data[meta.Offset : meta.Offset+meta.Size], nil
}

// Tensor returns a tensor ready for evaluation. Quantized tensors are
// dequantized to float32.
func (a *Artifact) Tensor(name string) (*tensor.Tensor, error) {
	meta, raw, err := a.RawTensor(name)
	if err != nil {
		return nil, err
	}

	if meta.Scheme == quantize.SchemeNone {
		dt, err := tensor.ParseDataType(meta.DType)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		return tensor.FromBytes(meta.Shape, dt, raw)
	}

	q := &quantize.Quantized{Scheme: meta.Scheme, Shape: meta.Shape, Scale: meta.Scale, Data: raw}
	t, err := q.Dequantize()
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	return t, nil
}
