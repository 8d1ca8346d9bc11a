package eval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/therealspring/carbonscen/errs"
	"github.com/therealspring/carbonscen/expr"
	"github.com/therealspring/carbonscen/grid"
	"github.com/therealspring/carbonscen/plan"
)

const testNodata = -9999.0

// buildPlan compiles terms and resolves every symbol to the shared test
// nodata sentinel.
func buildPlan(t *testing.T, terms []expr.Term, opts ...plan.BuildOption) *plan.Plan {
	t.Helper()

	stream, err := expr.Compile(terms)
	require.NoError(t, err)

	p, err := plan.Build(stream, func(name string) (*float64, bool) {
		return grid.NodataPtr(testNodata), true
	}, opts...)
	require.NoError(t, err)

	return p
}

func TestEvaluate_SingleFactorMasksNodata(t *testing.T) {
	p := buildPlan(t, []expr.Term{{Expression: "a", Coefficient: 2.0}},
		plan.WithTargetNodata(-1.0))

	tile := grid.Tile{Slots: []grid.Slot{
		{Data: []float32{1.0, 5.0, testNodata}, Nodata: grid.NodataPtr(testNodata)},
	}}

	out, err := Evaluate(p, tile)
	require.NoError(t, err)
	require.Equal(t, []float32{2.0, 10.0, -1.0}, out)
}

// Round-trip from the table encoding: 2.0 * a^2 over a = [2.0, nodata]
// yields [8.0, target nodata].
func TestEvaluate_ExponentRoundTrip(t *testing.T) {
	p := buildPlan(t, []expr.Term{{Expression: "a^2", Coefficient: 2.0}},
		plan.WithTargetNodata(-1.0))

	tile := grid.Tile{Slots: []grid.Slot{
		{Data: []float32{2.0, testNodata}, Nodata: grid.NodataPtr(testNodata)},
	}}

	out, err := Evaluate(p, tile)
	require.NoError(t, err)
	require.Equal(t, []float32{8.0, -1.0}, out)
}

func TestEvaluate_ZeroOnNodata(t *testing.T) {
	terms := []expr.Term{{Expression: "b", Coefficient: 1.0}}
	tile := grid.Tile{Slots: []grid.Slot{
		{Data: []float32{testNodata, 5.0}, Nodata: grid.NodataPtr(testNodata)},
	}}

	// Flagged: the missing pixel is coerced to zero and stays valid.
	p := buildPlan(t, terms,
		plan.WithTargetNodata(-1.0),
		plan.WithZeroNodataSymbols("b"),
	)
	out, err := Evaluate(p, tile)
	require.NoError(t, err)
	require.Equal(t, []float32{0.0, 5.0}, out)

	// Unflagged: the missing pixel is excluded instead.
	p = buildPlan(t, terms, plan.WithTargetNodata(-1.0))
	out, err = Evaluate(p, tile)
	require.NoError(t, err)
	require.Equal(t, []float32{-1.0, 5.0}, out)
}

func TestEvaluate_ZeroOnNodataDoesNotMutateTile(t *testing.T) {
	p := buildPlan(t, []expr.Term{{Expression: "b", Coefficient: 1.0}},
		plan.WithZeroNodataSymbols("b"))

	data := []float32{testNodata, 5.0}
	tile := grid.Tile{Slots: []grid.Slot{
		{Data: data, Nodata: grid.NodataPtr(testNodata)},
	}}

	_, err := Evaluate(p, tile)
	require.NoError(t, err)
	require.Equal(t, []float32{testNodata, 5.0}, data)
}

func TestEvaluate_TwoTermSumInRowOrder(t *testing.T) {
	p := buildPlan(t, []expr.Term{
		{Expression: "a", Coefficient: 1.0},
		{Expression: "b", Coefficient: 2.0},
	}, plan.WithTargetNodata(-1.0))

	tile := grid.Tile{Slots: []grid.Slot{
		{Data: []float32{1.0, 2.0}, Nodata: grid.NodataPtr(testNodata)},
		{Data: []float32{10.0, 20.0}, Nodata: grid.NodataPtr(testNodata)},
	}}

	out, err := Evaluate(p, tile)
	require.NoError(t, err)
	require.Equal(t, []float32{21.0, 42.0}, out)
}

func TestEvaluate_InterceptAnchorsSum(t *testing.T) {
	p := buildPlan(t, []expr.Term{
		{Expression: expr.InterceptMarker, Coefficient: 100.0},
		{Expression: "a", Coefficient: 1.0},
	}, plan.WithTargetNodata(-1.0))

	tile := grid.Tile{Slots: []grid.Slot{
		{Data: []float32{1.0, 2.0}, Nodata: grid.NodataPtr(testNodata)},
	}}

	out, err := Evaluate(p, tile)
	require.NoError(t, err)
	require.Equal(t, []float32{101.0, 102.0}, out)
}

// The conversion factor scales the fully-summed result once, at the end.
func TestEvaluate_ConversionFactorAppliedOnce(t *testing.T) {
	p := buildPlan(t, []expr.Term{
		{Expression: "a", Coefficient: 1.0},
		{Expression: "b", Coefficient: 1.0},
	},
		plan.WithTargetNodata(-1.0),
		plan.WithConversionFactor(10.0),
	)

	tile := grid.Tile{Slots: []grid.Slot{
		{Data: []float32{1.0}, Nodata: grid.NodataPtr(testNodata)},
		{Data: []float32{2.0}, Nodata: grid.NodataPtr(testNodata)},
	}}

	out, err := Evaluate(p, tile)
	require.NoError(t, err)
	require.Equal(t, []float32{30.0}, out)
}

func TestEvaluate_NodataMaskIntersectsAcrossSlots(t *testing.T) {
	p := buildPlan(t, []expr.Term{
		{Expression: "a*b", Coefficient: 1.0},
	}, plan.WithTargetNodata(-1.0))

	tile := grid.Tile{Slots: []grid.Slot{
		{Data: []float32{1.0, testNodata, 3.0}, Nodata: grid.NodataPtr(testNodata)},
		{Data: []float32{2.0, 2.0, testNodata}, Nodata: grid.NodataPtr(testNodata)},
	}}

	out, err := Evaluate(p, tile)
	require.NoError(t, err)
	require.Equal(t, []float32{2.0, -1.0, -1.0}, out)
}

func TestEvaluate_SlotWithoutSentinelNeverExcludes(t *testing.T) {
	stream, err := expr.Compile([]expr.Term{{Expression: "a", Coefficient: 1.0}})
	require.NoError(t, err)

	p, err := plan.Build(stream,
		func(name string) (*float64, bool) { return nil, true },
		plan.WithTargetNodata(-1.0),
	)
	require.NoError(t, err)

	tile := grid.Tile{Slots: []grid.Slot{
		{Data: []float32{testNodata, 5.0}},
	}}

	out, err := Evaluate(p, tile)
	require.NoError(t, err)
	require.Equal(t, []float32{testNodata, 5.0}, out)
}

func TestEvaluate_AllPixelsMasked(t *testing.T) {
	p := buildPlan(t, []expr.Term{{Expression: "a", Coefficient: 1.0}},
		plan.WithTargetNodata(-1.0))

	tile := grid.Tile{Slots: []grid.Slot{
		{Data: []float32{testNodata, testNodata}, Nodata: grid.NodataPtr(testNodata)},
	}}

	out, err := Evaluate(p, tile)
	require.NoError(t, err)
	require.Equal(t, []float32{-1.0, -1.0}, out)
}

func TestEvaluate_SlotCountMismatch(t *testing.T) {
	p := buildPlan(t, []expr.Term{{Expression: "a*b", Coefficient: 1.0}})

	tile := grid.Tile{Slots: []grid.Slot{
		{Data: []float32{1.0}},
	}}

	_, err := Evaluate(p, tile)
	require.ErrorIs(t, err, errs.ErrSlotCountMismatch)
}

func TestEvaluate_ShapeMismatch(t *testing.T) {
	p := buildPlan(t, []expr.Term{{Expression: "a*b", Coefficient: 1.0}})

	tile := grid.Tile{Slots: []grid.Slot{
		{Data: []float32{1.0, 2.0}},
		{Data: []float32{1.0}},
	}}

	_, err := Evaluate(p, tile)
	require.ErrorIs(t, err, errs.ErrShapeMismatch)
}

func TestEvaluateConstant_InterceptOnly(t *testing.T) {
	p := buildPlan(t, []expr.Term{{Expression: expr.InterceptMarker, Coefficient: 3.0}})

	value, err := EvaluateConstant(p)
	require.NoError(t, err)
	require.Equal(t, 3.0, value)
}

func TestEvaluateConstant_AppliesConversionFactor(t *testing.T) {
	p := buildPlan(t, []expr.Term{{Expression: expr.InterceptMarker, Coefficient: 3.0}},
		plan.WithConversionFactor(10.0))

	value, err := EvaluateConstant(p)
	require.NoError(t, err)
	require.Equal(t, 30.0, value)
}

func TestEvaluateConstant_RejectsSymbols(t *testing.T) {
	p := buildPlan(t, []expr.Term{{Expression: "a", Coefficient: 1.0}})

	_, err := EvaluateConstant(p)
	require.ErrorIs(t, err, errs.ErrUnknownSymbol)
}
