// Package eval implements the per-tile stack evaluator.
//
// Evaluate is a pure function of (Plan, Tile): it holds no state between
// calls and never mutates its inputs, so one plan may drive any number of
// concurrent tile evaluations.
package eval

import (
	"fmt"
	"math"

	"github.com/therealspring/carbonscen/errs"
	"github.com/therealspring/carbonscen/expr"
	"github.com/therealspring/carbonscen/grid"
	"github.com/therealspring/carbonscen/internal/pool"
	"github.com/therealspring/carbonscen/plan"
)

// operand is one stack entry: a broadcast scalar when vec is nil, otherwise a
// vector holding one value per valid pixel.
type operand struct {
	vec    []float64
	scalar float64
}

// Evaluate computes one output tile for a compiled regression plan.
//
// The output array has the tile's length, dtype float32, and is initialized
// to the plan's target nodata. A pixel is valid when every slot that is not
// flagged zero-on-nodata holds a value not approximately equal to that slot's
// nodata sentinel; only valid pixels receive computed values. Zero-on-nodata
// slots contribute 0.0 at their missing pixels and never exclude a pixel.
// The plan's conversion factor multiplies the fully-summed result exactly
// once, after the stream is evaluated.
//
// Tile arrays are never modified; zero substitution happens on private
// compacted copies.
//
// Returns:
//   - []float32: The output tile.
//   - error: errs.ErrSlotCountMismatch or errs.ErrShapeMismatch on a broken
//     tile-supply contract, errs.ErrStackImbalance or errs.ErrUnknownSymbol
//     on a malformed stream. All are defects, not per-pixel conditions.
func Evaluate(p *plan.Plan, tile grid.Tile) ([]float32, error) {
	symbols := p.Symbols()
	if len(tile.Slots) != len(symbols) {
		return nil, fmt.Errorf("%w: plan has %d slots, tile has %d",
			errs.ErrSlotCountMismatch, len(symbols), len(tile.Slots))
	}

	n := tile.Len()
	for slot, s := range tile.Slots {
		if len(s.Data) != n {
			return nil, fmt.Errorf("%w: slot %d has %d pixels, slot 0 has %d",
				errs.ErrShapeMismatch, slot, len(s.Data), n)
		}
	}

	out := make([]float32, n)
	targetNodata := float32(p.TargetNodata())
	for i := range out {
		out[i] = targetNodata
	}

	validMask, releaseMask := pool.GetBoolSlice(n)
	defer releaseMask()

	nValid := buildValidMask(validMask, symbols, tile)
	if nValid == 0 {
		return out, nil
	}

	result, release, err := runStream(p, tile, validMask, nValid)
	if err != nil {
		return nil, err
	}
	defer release()

	factor := p.ConversionFactor()
	vi := 0
	for i := range validMask {
		if !validMask[i] {
			continue
		}
		if result.vec != nil {
			out[i] = float32(result.vec[vi] * factor)
		} else {
			out[i] = float32(result.scalar * factor)
		}
		vi++
	}

	return out, nil
}

// EvaluateConstant evaluates a plan whose stream references no predictors,
// such as an intercept-only table, to the single scalar it denotes. The
// conversion factor is applied, matching Evaluate.
func EvaluateConstant(p *plan.Plan) (float64, error) {
	var stack []float64
	for _, tok := range p.Stream() {
		switch tok.Kind {
		case expr.KindNumber:
			stack = append(stack, tok.Number)
		case expr.KindSymbol:
			return 0, fmt.Errorf("%w: %q in constant-only evaluation", errs.ErrUnknownSymbol, tok.Symbol)
		case expr.KindOperator:
			if len(stack) < 2 {
				return 0, fmt.Errorf("%w: operator %q with %d operand(s)",
					errs.ErrStackImbalance, tok.Op, len(stack))
			}
			right := stack[len(stack)-1]
			left := stack[len(stack)-2]
			stack = append(stack[:len(stack)-2], operatorFunc(tok.Op)(left, right))
		}
	}

	if len(stack) != 1 {
		return 0, fmt.Errorf("%w: %d values remain", errs.ErrStackImbalance, len(stack))
	}

	return stack[0] * p.ConversionFactor(), nil
}

// buildValidMask ANDs together "not nodata" for every excluding slot and
// returns the count of valid pixels. The mask starts all-true; slots flagged
// zero-on-nodata or without a sentinel never exclude pixels.
func buildValidMask(mask []bool, symbols []plan.Symbol, tile grid.Tile) int {
	for i := range mask {
		mask[i] = true
	}

	for _, sym := range symbols {
		slot := tile.Slots[sym.Slot]
		if sym.ZeroOnNodata || slot.Nodata == nil {
			continue
		}
		sentinel := *slot.Nodata
		for i, v := range slot.Data {
			if mask[i] && grid.CloseTo(float64(v), sentinel) {
				mask[i] = false
			}
		}
	}

	nValid := 0
	for _, ok := range mask {
		if ok {
			nValid++
		}
	}

	return nValid
}

// runStream evaluates the postfix stream over mask-compacted operands.
// The caller must invoke release after it is done with the returned operand.
func runStream(p *plan.Plan, tile grid.Tile, validMask []bool, nValid int) (operand, func(), error) {
	symbols := p.Symbols()

	var stack []operand
	var releases []func()
	release := func() {
		for _, fn := range releases {
			fn()
		}
	}

	for _, tok := range p.Stream() {
		switch tok.Kind {
		case expr.KindNumber:
			stack = append(stack, operand{scalar: tok.Number})

		case expr.KindSymbol:
			slot, ok := p.Slot(tok.Symbol)
			if !ok {
				release()
				return operand{}, nil, fmt.Errorf("%w: %q", errs.ErrUnknownSymbol, tok.Symbol)
			}
			vec, fn := pool.GetFloat64Slice(nValid)
			releases = append(releases, fn)
			compactSlot(vec, tile.Slots[slot], symbols[slot].ZeroOnNodata, validMask)
			stack = append(stack, operand{vec: vec})

		case expr.KindOperator:
			if len(stack) < 2 {
				release()
				return operand{}, nil, fmt.Errorf("%w: operator %q with %d operand(s)",
					errs.ErrStackImbalance, tok.Op, len(stack))
			}
			right := stack[len(stack)-1]
			left := stack[len(stack)-2]
			stack = stack[:len(stack)-2]

			stack = append(stack, applyOperator(tok.Op, left, right))
		}
	}

	if len(stack) != 1 {
		release()
		return operand{}, nil, fmt.Errorf("%w: %d values remain",
			errs.ErrStackImbalance, len(stack))
	}

	return stack[0], release, nil
}

// compactSlot copies a slot's valid-mask pixels into dst, substituting 0.0
// for nodata pixels when the slot is flagged zero-on-nodata. The copy keeps
// the caller's tile array untouched.
func compactSlot(dst []float64, slot grid.Slot, zeroOnNodata bool, validMask []bool) {
	vi := 0
	for i, v := range slot.Data {
		if !validMask[i] {
			continue
		}
		val := float64(v)
		if zeroOnNodata && slot.Nodata != nil && grid.CloseTo(val, *slot.Nodata) {
			val = 0.0
		}
		dst[vi] = val
		vi++
	}
}

// applyOperator computes left OP right elementwise, broadcasting scalars.
// Vector storage from the operands is reused for the result, so operand
// vectors are consumed by this call.
func applyOperator(op expr.Operator, left, right operand) operand {
	fn := operatorFunc(op)

	switch {
	case left.vec == nil && right.vec == nil:
		return operand{scalar: fn(left.scalar, right.scalar)}

	case left.vec != nil && right.vec != nil:
		for i := range left.vec {
			left.vec[i] = fn(left.vec[i], right.vec[i])
		}

		return operand{vec: left.vec}

	case left.vec != nil:
		for i := range left.vec {
			left.vec[i] = fn(left.vec[i], right.scalar)
		}

		return operand{vec: left.vec}

	default: // scalar OP vector
		for i := range right.vec {
			right.vec[i] = fn(left.scalar, right.vec[i])
		}

		return operand{vec: right.vec}
	}
}

func operatorFunc(op expr.Operator) func(a, b float64) float64 {
	switch op {
	case expr.OpAdd:
		return func(a, b float64) float64 { return a + b }
	case expr.OpMultiply:
		return func(a, b float64) float64 { return a * b }
	case expr.OpPower:
		return math.Pow
	default:
		return func(a, b float64) float64 { return math.NaN() }
	}
}
