// Package expr compiles a regression-model table into a flat postfix token
// stream evaluable by a stack machine.
//
// Each table row contributes coefficient × product-of-factors, where a factor
// is a predictor grid name with an optional integer exponent ("name^2").
// Rows are summed in table order; the reserved row "intercept" contributes a
// bare constant. The emitted stream is validated at construction: a stream
// that does not reduce to exactly one value never leaves this package.
package expr
