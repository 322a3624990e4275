// Package interp provides fractional-sample interpolation primitives used
// for variable-rate reads from sample buffers.
package interp
