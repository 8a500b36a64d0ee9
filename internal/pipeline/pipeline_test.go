package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/born-ml/bornlite/internal/config"
	"github.com/born-ml/bornlite/internal/flatbuf"
	"github.com/born-ml/bornlite/internal/interp"
	"github.com/born-ml/bornlite/internal/numlib"
	"github.com/born-ml/bornlite/internal/onnx"
	"github.com/born-ml/bornlite/internal/onnx/onnxtest"
	"github.com/born-ml/bornlite/internal/savedmodel"
	"github.com/born-ml/bornlite/internal/tensor"
)

func testConfig(t *testing.T, input string) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.InputPath = input
	cfg.IntermediateDir = filepath.Join(root, "work", "saved_model")
	cfg.OutputPath = filepath.Join(root, "out", "model.tflite")
	return cfg
}

func run(t *testing.T, cfg *config.Config) (*Result, error) {
	t.Helper()
	return Run(context.Background(), cfg, zaptest.NewLogger(t))
}

func TestRunWritesSingleArtifact(t *testing.T) {
	input := onnxtest.AddConstants([]float32{1, 2}, []float32{3, 4}, 2).WriteFile(t)
	cfg := testConfig(t, input)

	res, err := run(t, cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.OutputPath, res.OutputPath)
	assert.NotEmpty(t, res.RunID)
	assert.Empty(t, res.Skipped)

	entries, err := os.ReadDir(filepath.Dir(cfg.OutputPath))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "model.tflite", entries[0].Name())

	info, err := os.Stat(cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, int64(res.Bytes), info.Size())
}

func TestRunStampsMetadata(t *testing.T) {
	input := onnxtest.AddConstants([]float32{1}, []float32{2}, 1).WriteFile(t)
	cfg := testConfig(t, input)

	res, err := run(t, cfg)
	require.NoError(t, err)

	b, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	p, err := interp.LoadArtifact(b)
	require.NoError(t, err)
	assert.Equal(t, "add_constants", p.Name())

	art, err := flatbuf.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, art.Model.Metadata["run_id"])
	assert.NotEmpty(t, art.Model.ConverterVersion)
}

func TestRunIsIdempotent(t *testing.T) {
	input := onnxtest.AddConstants([]float32{1, 2, 3}, []float32{4, 5, 6}, 3).WriteFile(t)
	cfg := testConfig(t, input)

	outputs := make([][]float32, 2)
	for i := range outputs {
		_, err := run(t, cfg)
		require.NoError(t, err)

		b, err := os.ReadFile(cfg.OutputPath)
		require.NoError(t, err)
		p, err := interp.LoadArtifact(b)
		require.NoError(t, err)
		out, err := p.Run(nil)
		require.NoError(t, err)
		outputs[i] = out["c"].Float32s()
	}
	assert.Equal(t, outputs[0], outputs[1])

	entries, err := os.ReadDir(cfg.IntermediateDir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{savedmodel.GraphFile, savedmodel.VariablesDir}, names)
}

func TestRunReplacesIntermediateDir(t *testing.T) {
	input := onnxtest.AddConstants([]float32{1}, []float32{1}, 1).WriteFile(t)
	cfg := testConfig(t, input)

	require.NoError(t, os.MkdirAll(cfg.IntermediateDir, 0o755))
	stale := filepath.Join(cfg.IntermediateDir, "stale.pb")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	_, err := run(t, cfg)
	require.NoError(t, err)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale file survived: %v", err)
	_, err = os.Stat(filepath.Join(cfg.IntermediateDir, savedmodel.GraphFile))
	assert.NoError(t, err)
}

func TestRunMissingInput(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing.onnx"))

	_, err := run(t, cfg)
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageLoad, stageErr.Stage)
	assert.ErrorIs(t, err, onnx.ErrLoad)

	_, statErr := os.Stat(cfg.OutputPath)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(cfg.IntermediateDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunWithoutShim(t *testing.T) {
	for _, op := range []string{"Ceil", "Floor", "Abs", "Sin", "Cos"} {
		t.Run(op, func(t *testing.T) {
			cfg := testConfig(t, onnxtest.Unary(op, 4).WriteFile(t))
			cfg.Compat.Disabled = true

			_, err := run(t, cfg)
			require.Error(t, err)

			var stageErr *StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, StageTranslate, stageErr.Stage)

			var unresolved *numlib.UnresolvedError
			require.ErrorAs(t, err, &unresolved)
			_, statErr := os.Stat(cfg.OutputPath)
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestRunWithShim(t *testing.T) {
	cfg := testConfig(t, onnxtest.Unary("Floor", 3).WriteFile(t))

	_, err := run(t, cfg)
	require.NoError(t, err)

	b, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	p, err := interp.LoadArtifact(b)
	require.NoError(t, err)

	x, err := tensor.FromFloat32(tensor.Shape{3}, []float32{-0.5, 1.5, 2})
	require.NoError(t, err)
	out, err := p.Run(map[string]*tensor.Tensor{"x": x})
	require.NoError(t, err)
	assert.Equal(t, []float32{-1, 1, 2}, out["y"].Float32s())
}

func TestRunMatchesReference(t *testing.T) {
	model := onnxtest.AddConstants([]float32{0.5, -1, 2, 8}, []float32{1.5, 1, -2, 0.25}, 2, 2)
	cfg := testConfig(t, model.WriteFile(t))

	_, err := run(t, cfg)
	require.NoError(t, err)

	b, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	p, err := interp.LoadArtifact(b)
	require.NoError(t, err)
	got, err := p.Run(nil)
	require.NoError(t, err)

	want, err := interp.RunONNX(model.Model(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, want["c"].Float32s(), got["c"].Float32s())
	assert.Equal(t, []float32{2, 0, 0, 8.25}, got["c"].Float32s())
}

func TestRunLenientSkipsUnsupported(t *testing.T) {
	input := onnxtest.NewBuilder("custom").
		Input("x", 2).
		Output("y", 2).
		Node("NonMaxSuppression", []string{"x"}, []string{"y"}).
		WriteFile(t)
	cfg := testConfig(t, input)

	res, err := run(t, cfg)
	require.NoError(t, err)
	assert.Len(t, res.Skipped, 1)

	cfg.Strict = true
	_, err = run(t, cfg)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageTranslate, stageErr.Stage)
}

func TestRunPlaceholdersWithOmittedOutputs(t *testing.T) {
	input := onnxtest.NewBuilder("layer_norms").
		Input("x", 2, 4).
		Output("y2", 2, 4).
		Node("LayerNormalization", []string{"x"}, []string{"y1", ""}).
		Node("LayerNormalization", []string{"y1"}, []string{"y2", ""}).
		WriteFile(t)
	cfg := testConfig(t, input)

	res, err := run(t, cfg)
	require.NoError(t, err)
	assert.Len(t, res.Skipped, 2)

	art, err := flatbuf.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	assert.Len(t, art.Model.Ops, 2)
}

func TestRunCanceled(t *testing.T) {
	input := onnxtest.AddConstants([]float32{1}, []float32{1}, 1).WriteFile(t)
	cfg := testConfig(t, input)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, cfg, nil)
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(cfg.OutputPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, "model.onnx")
	cfg.OptimizationLevel = "int4"

	_, err := Run(context.Background(), cfg, nil)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageConfig, stageErr.Stage)
	assert.False(t, errors.Is(err, context.Canceled))
}

func TestStageErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &StageError{Stage: StageWrite, Err: inner}
	assert.Equal(t, "write: boom", err.Error())
	assert.ErrorIs(t, err, inner)
}
