// Package compat binds legacy short kernel names to their canonical numlib names.
//
// The translator resolves a handful of operations by short top-level names
// ("ceil", "floor", ...) that numlib only exposes under qualified names. An
// Adapter sits between the two and rewrites those lookups. It is passed to the
// translator explicitly; nothing global is mutated.
package compat

import (
	"fmt"
	"sort"

	"github.com/born-ml/bornlite/internal/numlib"
)

// DefaultAliases returns the alias table the translator needs.
func DefaultAliases() map[string]string {
	return map[string]string{
		"ceil":  "math.ceil",
		"floor": "math.floor",
		"abs":   "math.abs",
		"sin":   "math.sin",
		"cos":   "math.cos",
	}
}

// Adapter resolves names through an alias table before falling back to the
// wrapped namespace.
type Adapter struct {
	ns      *numlib.Namespace
	aliases map[string]string
}

// New creates an adapter over ns with the default aliases plus extra.
// Every alias target must exist in ns.
func New(ns *numlib.Namespace, extra map[string]string) (*Adapter, error) {
	a := &Adapter{
		ns:      ns,
		aliases: make(map[string]string),
	}
	if err := a.Extend(DefaultAliases()); err != nil {
		return nil, err
	}
	if err := a.Extend(extra); err != nil {
		return nil, err
	}
	return a, nil
}

// Extend adds aliases. Targets are validated against the namespace.
func (a *Adapter) Extend(aliases map[string]string) error {
	for _, legacy := range sortedKeys(aliases) {
		target := aliases[legacy]
		if !a.ns.Has(target) {
			return fmt.Errorf("compat: alias %q points at unknown kernel %q", legacy, target)
		}
		a.aliases[legacy] = target
	}
	return nil
}

// Resolve implements numlib.Resolver.
func (a *Adapter) Resolve(name string) (numlib.Symbol, error) {
	if target, ok := a.aliases[name]; ok {
		return a.ns.Resolve(target)
	}
	return a.ns.Resolve(name)
}

// Aliases returns a copy of the alias table.
func (a *Adapter) Aliases() map[string]string {
	out := make(map[string]string, len(a.aliases))
	for k, v := range a.aliases {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
