package flatbuf

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// TensorData is a tensor queued for encoding. Offset and Size of Meta are
// assigned by Encode.
type TensorData struct {
	Meta TensorMeta
	Data []byte
}

// EncodeOptions controls artifact encoding.
type EncodeOptions struct {
	Compress bool
}

// Encode serializes a model and its tensors into artifact bytes. Tensors are
// laid out in the given order.
func Encode(m *Model, tensors []TensorData, opts EncodeOptions) ([]byte, error) {
	model := *m
	model.Tensors = make([]TensorMeta, len(tensors))

	var offset int64
	for i := range tensors {
		meta := tensors[i].Meta
		offset = alignUp(offset)
		meta.Offset = offset
		meta.Size = int64(len(tensors[i].Data))
		model.Tensors[i] = meta
		offset += meta.Size
	}
	if err := ValidateTensors(model.Tensors, offset); err != nil {
		return nil, fmt.Errorf("flatbuf: %w", err)
	}

	data := make([]byte, offset)
	for i := range tensors {
		copy(data[model.Tensors[i].Offset:], tensors[i].Data)
	}

	flags := uint32(0)
	if len(model.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if model.QuantizedCount() > 0 {
		flags |= FlagQuantized
	}
	if opts.Compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return nil, fmt.Errorf("flatbuf: create zstd encoder: %w", err)
		}
		data = enc.EncodeAll(data, nil)
		_ = enc.Close()
		flags |= FlagCompressed
	}

	graph, err := msgpack.Marshal(&model)
	if err != nil {
		return nil, fmt.Errorf("flatbuf: encode graph: %w", err)
	}
	if len(graph) > MaxGraphSize {
		return nil, fmt.Errorf("flatbuf: %w: %d bytes", ErrGraphTooLarge, len(graph))
	}

	checksum := sha256.Sum256(data)
	dataStart := alignUp(int64(FixedHeaderSize + len(graph)))

	out := make([]byte, dataStart+int64(len(data)))
	copy(out[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(out[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(out[8:12], flags)
	binary.LittleEndian.PutUint64(out[16:24], uint64(len(graph)))
	binary.LittleEndian.PutUint64(out[24:32], uint64(len(data)))
	copy(out[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])
	copy(out[FixedHeaderSize:], graph)
	copy(out[dataStart:], data)

	return out, nil
}

// WriteFile writes artifact bytes to path. The bytes go to a temporary file in
// the same directory that is renamed over path once complete, so a failed
// write never leaves a partial artifact behind.
func WriteFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("flatbuf: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("flatbuf: create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("flatbuf: write %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("flatbuf: sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("flatbuf: close %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil { //nolint:gosec // G302: artifacts are shipped as app assets.
		return fmt.Errorf("flatbuf: chmod %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("flatbuf: rename to %s: %w", path, err)
	}
	return nil
}
