// Package plan builds the immutable evaluation plan for a compiled
// regression expression: the symbol table mapping predictor names to dense
// slot indices, the per-slot nodata policy, and the evaluation constants.
//
// A Plan is built once per model and then shared, unmodified, by any number
// of concurrent tile evaluations.
package plan

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/therealspring/carbonscen/errs"
	"github.com/therealspring/carbonscen/expr"
	"github.com/therealspring/carbonscen/internal/options"
)

// DefaultTargetNodata is the output sentinel used when the caller does not
// choose one: the most negative finite float32.
const DefaultTargetNodata = -math.MaxFloat32

// Symbol is one resolved predictor: its name, its dense slot index (equal to
// first-discovery order in the token stream), the source grid's nodata
// sentinel, and whether missing pixels are coerced to zero.
type Symbol struct {
	Name         string
	Nodata       *float64
	Slot         int
	ZeroOnNodata bool
}

// Resolver supplies grid metadata for a discovered symbol name.
//
// It returns the grid's nodata sentinel (nil if the grid defines none) and
// whether the name resolved at all. Build aggregates every unresolved name
// into a single error rather than failing one at a time.
type Resolver func(name string) (nodata *float64, found bool)

type buildConfig struct {
	zeroNodataSymbols map[string]struct{}
	targetNodata      float64
	conversionFactor  float64
}

// BuildOption is a functional option for Build.
type BuildOption = options.Option[*buildConfig]

// WithZeroNodataSymbols names the predictors whose missing pixels are treated
// as zero instead of excluding the pixel from the output. Names that do not
// appear in the expression are ignored.
func WithZeroNodataSymbols(names ...string) BuildOption {
	return options.NoError(func(cfg *buildConfig) {
		for _, name := range names {
			cfg.zeroNodataSymbols[name] = struct{}{}
		}
	})
}

// WithTargetNodata sets the output nodata sentinel.
func WithTargetNodata(v float64) BuildOption {
	return options.NoError(func(cfg *buildConfig) {
		cfg.targetNodata = v
	})
}

// WithConversionFactor sets a scalar multiplied into the fully-summed result
// exactly once, after evaluation. Used for unit conversion.
func WithConversionFactor(v float64) BuildOption {
	return options.NoError(func(cfg *buildConfig) {
		cfg.conversionFactor = v
	})
}

// Plan is the immutable product of compiling and resolving one regression
// model. All accessors return data that must be treated as read-only.
type Plan struct {
	stream       expr.Stream
	symbols      []Symbol
	slotByName   map[string]int
	targetNodata float64
	factor       float64
}

// Build resolves every symbol in the stream and assembles a Plan.
//
// Discovery order over the stream defines slot indices: the i-th distinct
// symbol occupies slot i, and tile suppliers must order slot arrays the same
// way (see Plan.Symbols).
//
// Returns:
//   - *Plan: The immutable evaluation plan.
//   - error: errs.ErrUnresolvedSymbols listing every name the resolver could
//     not supply metadata for, or a stream validation error.
func Build(stream expr.Stream, resolve Resolver, opts ...BuildOption) (*Plan, error) {
	cfg := &buildConfig{
		zeroNodataSymbols: make(map[string]struct{}),
		targetNodata:      DefaultTargetNodata,
		conversionFactor:  1.0,
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	if err := stream.Validate(); err != nil {
		return nil, err
	}

	names := stream.Symbols()
	symbols := make([]Symbol, 0, len(names))
	slotByName := make(map[string]int, len(names))
	var unresolved []string

	for slot, name := range names {
		nodata, found := resolve(name)
		if !found {
			unresolved = append(unresolved, name)
			continue
		}

		_, zero := cfg.zeroNodataSymbols[name]
		symbols = append(symbols, Symbol{
			Name:         name,
			Slot:         slot,
			Nodata:       nodata,
			ZeroOnNodata: zero,
		})
		slotByName[name] = slot
	}

	if len(unresolved) > 0 {
		sort.Strings(unresolved)
		return nil, fmt.Errorf("%w: %s", errs.ErrUnresolvedSymbols, strings.Join(unresolved, ", "))
	}

	return &Plan{
		stream:       stream,
		symbols:      symbols,
		slotByName:   slotByName,
		targetNodata: cfg.targetNodata,
		factor:       cfg.conversionFactor,
	}, nil
}

// Stream returns the postfix token stream. Read-only.
func (p *Plan) Stream() expr.Stream {
	return p.stream
}

// Symbols returns the symbol table in ascending slot order. Read-only.
//
// Tile suppliers must provide one slot array per entry, in this order.
func (p *Plan) Symbols() []Symbol {
	return p.symbols
}

// SlotCount returns the number of distinct predictors the plan references.
func (p *Plan) SlotCount() int {
	return len(p.symbols)
}

// Slot returns the slot index for a symbol name.
func (p *Plan) Slot(name string) (int, bool) {
	slot, ok := p.slotByName[name]
	return slot, ok
}

// TargetNodata returns the output nodata sentinel.
func (p *Plan) TargetNodata() float64 {
	return p.targetNodata
}

// ConversionFactor returns the final-result multiplier (1.0 when unset).
func (p *Plan) ConversionFactor() float64 {
	return p.factor
}
