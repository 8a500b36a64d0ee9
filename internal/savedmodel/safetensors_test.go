package savedmodel

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/bornlite/internal/tensor"
)

func TestSafeTensorsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vars.safetensors")

	f, err := tensor.FromFloat32(tensor.Shape{3}, []float32{-1, 0, 2.5})
	require.NoError(t, err)
	q, err := tensor.FromBytes(tensor.Shape{2}, tensor.Int8, []byte{0x80, 0x7f})
	require.NoError(t, err)
	s := tensor.Scalar(7)

	in := map[string]*tensor.Tensor{"b.weight": f, "a.q": q, "s": s}
	require.NoError(t, WriteSafeTensors(path, in, map[string]string{"format": "pt"}))

	out, meta, err := ReadSafeTensors(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"format": "pt"}, meta)
	require.Len(t, out, 3)

	assert.Equal(t, []float32{-1, 0, 2.5}, out["b.weight"].Float32s())
	assert.Equal(t, []float32{-128, 127}, out["a.q"].Float32s())
	assert.Empty(t, out["s"].Shape())
	assert.Equal(t, []float32{7}, out["s"].Float32s())
}

func TestSafeTensorsAlphabeticalLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vars.safetensors")

	a, err := tensor.FromFloat32(tensor.Shape{1}, []float32{1})
	require.NoError(t, err)
	b, err := tensor.FromFloat32(tensor.Shape{1}, []float32{2})
	require.NoError(t, err)
	require.NoError(t, WriteSafeTensors(path, map[string]*tensor.Tensor{"z": b, "a": a}, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	headerSize := binary.LittleEndian.Uint64(data[:8])
	payload := data[8+headerSize:]
	require.Len(t, payload, 8)
	// "a" is stored first.
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, payload[:4])
}

func TestReadSafeTensorsErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing", func(t *testing.T) {
		_, _, err := ReadSafeTensors(filepath.Join(dir, "missing"))
		assert.Error(t, err)
	})

	t.Run("huge header", func(t *testing.T) {
		path := filepath.Join(dir, "huge")
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, maxHeaderSize+1)
		require.NoError(t, os.WriteFile(path, buf, 0o600))

		_, _, err := ReadSafeTensors(path)
		assert.ErrorContains(t, err, "too large")
	})

	t.Run("bad offsets", func(t *testing.T) {
		path := filepath.Join(dir, "offsets")
		header := []byte(`{"w":{"dtype":"F32","shape":[2],"data_offsets":[0,8]}}`)
		buf := make([]byte, 8, 8+len(header)+4)
		binary.LittleEndian.PutUint64(buf, uint64(len(header)))
		buf = append(buf, header...)
		buf = append(buf, 0, 0, 0, 0)
		require.NoError(t, os.WriteFile(path, buf, 0o600))

		_, _, err := ReadSafeTensors(path)
		assert.ErrorContains(t, err, "invalid data offsets")
	})
}
