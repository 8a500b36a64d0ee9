package numlib

import (
	"fmt"
	"sort"

	"github.com/born-ml/bornlite/internal/tensor"
)

// Kernel evaluates a primitive over its inputs.
type Kernel func(inputs []*tensor.Tensor, attrs Attrs) (*tensor.Tensor, error)

// Symbol is a resolved kernel together with its canonical name.
type Symbol struct {
	Name   string
	Kernel Kernel
}

// Resolver resolves kernel names to symbols.
type Resolver interface {
	Resolve(name string) (Symbol, error)
}

// UnresolvedError is returned when a name has no kernel bound to it.
type UnresolvedError struct {
	Name string
}

// Error implements the error interface.
func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("numlib: namespace has no attribute %q", e.Name)
}

// Namespace maps canonical kernel names to kernels.
type Namespace struct {
	kernels map[string]Kernel
}

// New creates a namespace with every built-in kernel registered.
func New() *Namespace {
	n := &Namespace{kernels: make(map[string]Kernel)}

	n.registerMath()
	n.registerNN()
	n.registerLinalg()
	n.registerArray()

	return n
}

// Register binds a kernel to a name, replacing any previous binding.
func (n *Namespace) Register(name string, k Kernel) {
	n.kernels[name] = k
}

// Has reports whether name is bound.
func (n *Namespace) Has(name string) bool {
	_, ok := n.kernels[name]
	return ok
}

// Resolve returns the kernel bound to name.
func (n *Namespace) Resolve(name string) (Symbol, error) {
	k, ok := n.kernels[name]
	if !ok {
		return Symbol{}, &UnresolvedError{Name: name}
	}
	return Symbol{Name: name, Kernel: k}, nil
}

// Names returns all bound names in sorted order.
func (n *Namespace) Names() []string {
	names := make([]string, 0, len(n.kernels))
	for name := range n.kernels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func arity(name string, inputs []*tensor.Tensor, want int) error {
	if len(inputs) != want {
		return fmt.Errorf("%s requires %d inputs, got %d", name, want, len(inputs))
	}
	for i, in := range inputs {
		if in == nil {
			return fmt.Errorf("%s: input %d is missing", name, i)
		}
	}
	return nil
}
