// Package carbonscen evaluates linear regression scenario models over large
// tiled predictor grids.
//
// A model arrives as a table of terms (predictor product expressions and
// coefficients). The table is compiled once into a postfix token stream,
// resolved against grid metadata into an immutable evaluation plan, and then
// evaluated tile by tile as a pure, concurrency-safe computation.
//
// # Basic Usage
//
//	terms, _ := table.LoadFile("lasso_scenario.csv")
//	stream, _ := carbonscen.CompileModel(terms,
//	    expr.WithSubstitution("conv", "canopy"),
//	)
//
//	p, _ := carbonscen.BuildPlan(stream, resolver,
//	    plan.WithZeroNodataSymbols("canopy_forest_gs30"),
//	    plan.WithConversionFactor(10.0),
//	)
//
//	out, _ := carbonscen.EvaluateTile(p, tile)
//
// The resolver supplies each predictor's nodata sentinel, typically from
// store.Reader headers; the runner package streams whole grids through a
// worker pool using the same plan.
//
// This package provides thin wrappers over the expr, plan, and eval
// packages, which can also be used directly.
package carbonscen

import (
	"github.com/therealspring/carbonscen/eval"
	"github.com/therealspring/carbonscen/expr"
	"github.com/therealspring/carbonscen/grid"
	"github.com/therealspring/carbonscen/plan"
)

// CompileModel compiles regression table terms into a postfix token stream.
//
// Terms are summed in table order; see expr.Compile for the malformed-table
// error conditions.
func CompileModel(terms []expr.Term, opts ...expr.CompileOption) (expr.Stream, error) {
	return expr.Compile(terms, opts...)
}

// BuildPlan resolves a compiled stream into an immutable evaluation plan.
//
// The resolver is consulted once per distinct predictor name; unresolved
// names fail the build with one aggregated error.
func BuildPlan(stream expr.Stream, resolve plan.Resolver, opts ...plan.BuildOption) (*plan.Plan, error) {
	return plan.Build(stream, resolve, opts...)
}

// EvaluateTile computes one output tile for a plan. Safe to call from any
// number of goroutines sharing the same plan.
func EvaluateTile(p *plan.Plan, tile grid.Tile) ([]float32, error) {
	return eval.Evaluate(p, tile)
}
