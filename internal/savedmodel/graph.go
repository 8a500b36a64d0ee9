package savedmodel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/born-ml/bornlite/internal/tensor"
)

// File names inside a bundle directory.
const (
	GraphFile     = "saved_model.json"
	VariablesDir  = "variables"
	VariablesFile = "variables.safetensors"
)

// SchemaVersion is written into every graph definition.
const SchemaVersion = 1

// OpUnsupported marks a placeholder node kept in lenient translation.
const OpUnsupported = "Unsupported"

var (
	// ErrNotBundle is returned when a directory has no graph definition.
	ErrNotBundle = errors.New("savedmodel: not a bundle directory")

	// ErrMissingConstant is returned when a node reads a tensor that is
	// neither produced in the graph nor stored in the variables file.
	ErrMissingConstant = errors.New("savedmodel: missing constant")
)

// TensorSpec describes a graph input or output.
type TensorSpec struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
	Shape []int  `json:"shape,omitempty"`
}

// Node is one native op.
type Node struct {
	Name    string         `json:"name"`
	Op      string         `json:"op"`
	Kernel  string         `json:"kernel,omitempty"`
	Inputs  []string       `json:"inputs"`
	Outputs []string       `json:"outputs"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Graph is the native graph definition.
type Graph struct {
	Version  int               `json:"version"`
	Name     string            `json:"name"`
	Opset    int64             `json:"opset"`
	Producer map[string]string `json:"producer,omitempty"`
	Inputs   []TensorSpec      `json:"inputs"`
	Outputs  []TensorSpec      `json:"outputs"`
	Nodes    []Node            `json:"nodes"`
}

// Bundle is a graph with its constant tensors.
type Bundle struct {
	Graph     *Graph
	Constants map[string]*tensor.Tensor
}

// Save writes the bundle into dir, creating it if needed. Existing files with
// the same names are overwritten; other files are left alone.
func Save(dir string, b *Bundle) error {
	if b == nil || b.Graph == nil {
		return errors.New("savedmodel: nil graph")
	}

	varDir := filepath.Join(dir, VariablesDir)
	if err := os.MkdirAll(varDir, 0o750); err != nil {
		return fmt.Errorf("savedmodel: create %s: %w", varDir, err)
	}

	g := *b.Graph
	g.Version = SchemaVersion
	data, err := json.MarshalIndent(&g, "", "  ")
	if err != nil {
		return fmt.Errorf("savedmodel: encode graph: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, GraphFile), data, 0o600); err != nil {
		return fmt.Errorf("savedmodel: write graph: %w", err)
	}

	meta := map[string]string{"graph": g.Name}
	if err := WriteSafeTensors(filepath.Join(varDir, VariablesFile), b.Constants, meta); err != nil {
		return fmt.Errorf("savedmodel: write variables: %w", err)
	}
	return nil
}

// Load reads a bundle from dir.
func Load(dir string) (*Bundle, error) {
	//nolint:gosec // G304: bundle path is supplied by the caller.
	data, err := os.ReadFile(filepath.Join(dir, GraphFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotBundle, dir)
		}
		return nil, fmt.Errorf("savedmodel: read graph: %w", err)
	}

	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("savedmodel: decode graph: %w", err)
	}
	if g.Version != SchemaVersion {
		return nil, fmt.Errorf("savedmodel: unsupported schema version %d", g.Version)
	}

	consts, _, err := ReadSafeTensors(filepath.Join(dir, VariablesDir, VariablesFile))
	if err != nil {
		return nil, fmt.Errorf("savedmodel: read variables: %w", err)
	}
	for _, name := range g.ConstantNames() {
		if _, ok := consts[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingConstant, name)
		}
	}

	return &Bundle{Graph: &g, Constants: consts}, nil
}

// ConstantNames returns the names referenced by nodes that are not produced
// by any node or graph input.
func (g *Graph) ConstantNames() []string {
	produced := make(map[string]bool)
	for _, in := range g.Inputs {
		produced[in.Name] = true
	}
	for i := range g.Nodes {
		for _, out := range g.Nodes[i].Outputs {
			produced[out] = true
		}
	}

	seen := make(map[string]bool)
	var names []string
	for i := range g.Nodes {
		for _, in := range g.Nodes[i].Inputs {
			if in == "" || produced[in] || seen[in] {
				continue
			}
			seen[in] = true
			names = append(names, in)
		}
	}
	return names
}

// Unsupported returns the original op types of placeholder nodes.
func (g *Graph) Unsupported() []string {
	var ops []string
	for i := range g.Nodes {
		if g.Nodes[i].Op == OpUnsupported {
			if t, ok := g.Nodes[i].Attrs["op_type"].(string); ok {
				ops = append(ops, t)
			}
		}
	}
	return ops
}
