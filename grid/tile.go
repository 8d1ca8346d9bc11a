// Package grid defines the tile types exchanged between the grid container,
// the tile runner, and the stack evaluator.
//
// A tile is one aligned rectangular block cut from every predictor grid an
// expression references. The evaluator is shape-agnostic: only array lengths
// matter, and all slot arrays of one tile must have equal length.
package grid

import "math"

// Tolerances for nodata sentinel comparison. Nodata scalars are stored and
// round-tripped through float32 payloads, so equality must be approximate:
// |value - nodata| <= atol + rtol*|nodata|.
const (
	RelativeTolerance = 1e-5
	AbsoluteTolerance = 1e-8
)

// Slot is one predictor's contribution to a tile: its pixel block and the
// sentinel marking missing pixels, if the source grid defines one.
type Slot struct {
	// Data holds the tile's pixels in row-major order.
	Data []float32
	// Nodata is the missing-pixel sentinel, nil when the grid defines none.
	Nodata *float64
}

// Tile is one aligned block across all referenced predictors, ordered by
// slot index.
type Tile struct {
	Slots []Slot
}

// Len returns the pixel count of the tile's first slot, or 0 for an empty tile.
func (t Tile) Len() int {
	if len(t.Slots) == 0 {
		return 0
	}

	return len(t.Slots[0].Data)
}

// Aligned reports whether every slot array has the same length.
func (t Tile) Aligned() bool {
	n := t.Len()
	for _, s := range t.Slots {
		if len(s.Data) != n {
			return false
		}
	}

	return true
}

// CloseTo reports approximate equality between a pixel value and a nodata
// sentinel under the package tolerances.
func CloseTo(value, sentinel float64) bool {
	return math.Abs(value-sentinel) <= AbsoluteTolerance+RelativeTolerance*math.Abs(sentinel)
}

// IsNodata reports whether a pixel matches the slot's nodata sentinel.
// A slot without a sentinel never has nodata pixels.
func (s Slot) IsNodata(i int) bool {
	if s.Nodata == nil {
		return false
	}

	return CloseTo(float64(s.Data[i]), *s.Nodata)
}

// NodataPtr is a convenience for building Slot literals from a scalar.
func NodataPtr(v float64) *float64 {
	return &v
}
