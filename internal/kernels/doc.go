// Package kernels holds the compute primitives launched by the layer graph.
//
// Each primitive reads case-major operands (one row per case) and writes its
// result into a target buffer as
//
//	target = scaleTargets*target + scaleOutput*result
//
// so callers choose between overwriting (scaleTargets == 0) and accumulating
// (scaleTargets == 1) without clearing the target first.
//
// Image neurons are laid out channel-major within a row: the neuron for
// channel c at pixel (y, x) of an S x S image lives in column c*S*S + y*S + x.
// Filters are stored one per row with the same channel/y/x ordering, and
// convolution outputs use filter/y/x ordering.
//
// A primitive whose operands disagree on shape panics with a
// *matrix.LaunchError; the result of a failed launch is undefined.
package kernels
