// Package numlib is the numerical kernel library used by the translator and the
// interpreters.
//
// Kernels are registered under qualified canonical names grouped by area:
//
//	math.*    elementwise arithmetic and transcendental functions
//	nn.*      activations and normalization
//	linalg.*  matrix products
//	array.*   shape manipulation
//
// There are no top-level short names. Callers written against short names such as
// "ceil" need an alias layer (see package compat).
package numlib
