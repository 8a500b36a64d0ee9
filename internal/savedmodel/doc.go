// Package savedmodel reads and writes the native directory bundle produced by
// the graph translator.
//
// Layout:
//
//	<dir>/saved_model.json                 graph definition
//	<dir>/variables/variables.safetensors  constant tensors
//
// The graph definition lists ops in execution order. Each op names the
// canonical kernel it runs, so a bundle can be evaluated without the legacy
// name aliases the translator resolved through.
package savedmodel
