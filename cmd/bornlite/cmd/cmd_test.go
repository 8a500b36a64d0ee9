package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/bornlite/internal/onnx/onnxtest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func pathFlags(t *testing.T, input string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	output := filepath.Join(dir, "model.tflite")
	return output, []string{
		"--input", input,
		"--intermediate-dir", filepath.Join(dir, "saved_model"),
		"--output", output,
		"--log-level", "error",
	}
}

func TestConvertDefaultCommand(t *testing.T) {
	input := onnxtest.AddConstants([]float32{1, 2}, []float32{3, 4}, 2).WriteFile(t)
	output, flags := pathFlags(t, input)

	out, err := execute(t, flags...)
	require.NoError(t, err)
	assert.Equal(t, "Wrote flat model to "+output+"\n", out)

	_, err = os.Stat(output)
	assert.NoError(t, err)
}

func TestConvertSubcommandMissingInput(t *testing.T) {
	output, flags := pathFlags(t, filepath.Join(t.TempDir(), "missing.onnx"))

	out, err := execute(t, append([]string{"convert"}, flags...)...)
	require.Error(t, err)
	assert.Empty(t, out)
	assert.Contains(t, err.Error(), "load")

	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))
}

func TestConvertWithoutShim(t *testing.T) {
	input := onnxtest.Unary("Sin", 2).WriteFile(t)
	_, flags := pathFlags(t, input)

	_, err := execute(t, append(flags, "--no-shim")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `namespace has no attribute "sin"`)
}

func TestVerify(t *testing.T) {
	input := onnxtest.Unary("Abs", 3).WriteFile(t)
	_, flags := pathFlags(t, input)

	_, err := execute(t, flags...)
	require.NoError(t, err)

	out, err := execute(t, append([]string{"verify", "--value", "x=-1,2,-3"}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, "y: max abs diff 0\n", out)
}

func TestVerifyBadValue(t *testing.T) {
	_, err := execute(t, "verify", "--value", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want name=v1,v2")
}

func TestInspect(t *testing.T) {
	input := onnxtest.AddConstants([]float32{1}, []float32{2}, 1).WriteFile(t)
	output, flags := pathFlags(t, input)

	out, err := execute(t, "inspect", input)
	require.NoError(t, err)
	assert.Contains(t, out, "Graph:    add_constants")
	assert.Contains(t, out, "Add")

	_, err = execute(t, flags...)
	require.NoError(t, err)
	out, err = execute(t, "inspect", output)
	require.NoError(t, err)
	assert.Contains(t, out, "Graph:      add_constants")
	assert.Contains(t, out, "run_id=")
}

func TestOps(t *testing.T) {
	out, err := execute(t, "ops")
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	assert.Contains(t, lines, "MatMul")
	assert.Contains(t, lines, "  ceil     -> math.ceil (Ceil)")
}

func TestOpsListsConfiguredAliases(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "bornlite.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("compat:\n  aliases:\n    sine: math.sin\n"), 0o600))

	out, err := execute(t, "ops", "--config", cfgFile)
	require.NoError(t, err)
	assert.Contains(t, strings.Split(out, "\n"), "  sine     -> math.sin")
}

func TestHelpExamplesUseRealFlags(t *testing.T) {
	root := NewRootCommand()
	assert.Contains(t, root.Long, "verify --value x=1,2,3")

	verify, _, err := root.Find([]string{"verify"})
	require.NoError(t, err)
	assert.NotNil(t, verify.Flags().Lookup("value"))
	assert.Nil(t, verify.Flags().Lookup("input-value"))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "bornlite "))
}
