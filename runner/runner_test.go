package runner

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/therealspring/carbonscen/errs"
	"github.com/therealspring/carbonscen/eval"
	"github.com/therealspring/carbonscen/expr"
	"github.com/therealspring/carbonscen/format"
	"github.com/therealspring/carbonscen/grid"
	"github.com/therealspring/carbonscen/plan"
	"github.com/therealspring/carbonscen/store"
)

const testNodata = -9999.0

// encodeGrid stores pixels as a width×height grid and reopens it.
func encodeGrid(t *testing.T, name string, width, height, tileRows int, pixels []float32) *store.Reader {
	t.Helper()

	var buf bytes.Buffer
	w, err := store.NewWriter(&buf, name, width, height,
		store.WithTileRows(tileRows),
		store.WithNodata(testNodata),
		store.WithCompression(format.CompressionS2),
	)
	require.NoError(t, err)

	hdr := w.Header()
	for i := 0; i < hdr.TileCount(); i++ {
		start, end := hdr.TileBounds(i)
		require.NoError(t, w.WriteTile(pixels[start*width:end*width]))
	}
	require.NoError(t, w.Finish())

	r, err := store.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	return r
}

func buildTestPlan(t *testing.T, terms []expr.Term, opts ...plan.BuildOption) *plan.Plan {
	t.Helper()

	stream, err := expr.Compile(terms)
	require.NoError(t, err)

	p, err := plan.Build(stream, func(name string) (*float64, bool) {
		return grid.NodataPtr(testNodata), true
	}, opts...)
	require.NoError(t, err)

	return p
}

func TestRun_MatchesSequentialEvaluation(t *testing.T) {
	const width, height, tileRows = 8, 20, 3

	aPixels := make([]float32, width*height)
	bPixels := make([]float32, width*height)
	for i := range aPixels {
		aPixels[i] = float32(i % 17)
		bPixels[i] = float32(i % 5)
		if i%13 == 0 {
			aPixels[i] = testNodata
		}
	}

	a := encodeGrid(t, "a", width, height, tileRows, aPixels)
	b := encodeGrid(t, "b", width, height, tileRows, bPixels)

	p := buildTestPlan(t, []expr.Term{
		{Expression: expr.InterceptMarker, Coefficient: 0.5},
		{Expression: "a", Coefficient: 1.0},
		{Expression: "b^2", Coefficient: 2.0},
	},
		plan.WithTargetNodata(-1.0),
		plan.WithConversionFactor(3.0),
	)

	var out bytes.Buffer
	w, err := store.NewWriter(&out, "result", width, height,
		store.WithTileRows(tileRows),
		store.WithNodata(p.TargetNodata()),
	)
	require.NoError(t, err)

	require.NoError(t, Run(context.Background(), p, []*store.Reader{a, b}, w, 4))

	result, err := store.NewReader(bytes.NewReader(out.Bytes()), int64(out.Len()))
	require.NoError(t, err)

	// Sequential reference: evaluate the whole grid as one tile.
	want, err := eval.Evaluate(p, grid.Tile{Slots: []grid.Slot{
		{Data: aPixels, Nodata: grid.NodataPtr(testNodata)},
		{Data: bPixels, Nodata: grid.NodataPtr(testNodata)},
	}})
	require.NoError(t, err)

	got := make([]float32, 0, width*height)
	for i := 0; i < result.TileCount(); i++ {
		pixels, err := result.ReadTile(i)
		require.NoError(t, err)
		got = append(got, pixels...)
	}

	require.Equal(t, want, got)
}

func TestRun_InterceptOnlyPlan(t *testing.T) {
	p := buildTestPlan(t, []expr.Term{
		{Expression: expr.InterceptMarker, Coefficient: 2.5},
	}, plan.WithConversionFactor(2.0))

	var out bytes.Buffer
	w, err := store.NewWriter(&out, "result", 4, 6, store.WithTileRows(4))
	require.NoError(t, err)

	require.NoError(t, Run(context.Background(), p, nil, w, 2))

	result, err := store.NewReader(bytes.NewReader(out.Bytes()), int64(out.Len()))
	require.NoError(t, err)

	pixels, err := result.ReadTile(0)
	require.NoError(t, err)
	for _, v := range pixels {
		require.Equal(t, float32(5.0), v)
	}
}

func TestRun_ReaderCountMismatch(t *testing.T) {
	p := buildTestPlan(t, []expr.Term{{Expression: "a*b", Coefficient: 1.0}})

	a := encodeGrid(t, "a", 2, 2, 2, make([]float32, 4))

	var out bytes.Buffer
	w, err := store.NewWriter(&out, "result", 2, 2, store.WithTileRows(2))
	require.NoError(t, err)

	err = Run(context.Background(), p, []*store.Reader{a}, w, 1)
	require.ErrorIs(t, err, errs.ErrSlotCountMismatch)
}

func TestRun_MisalignedGrids(t *testing.T) {
	p := buildTestPlan(t, []expr.Term{{Expression: "a*b", Coefficient: 1.0}})

	a := encodeGrid(t, "a", 2, 2, 2, make([]float32, 4))
	b := encodeGrid(t, "b", 2, 4, 2, make([]float32, 8))

	var out bytes.Buffer
	w, err := store.NewWriter(&out, "result", 2, 2, store.WithTileRows(2))
	require.NoError(t, err)

	err = Run(context.Background(), p, []*store.Reader{a, b}, w, 1)
	require.ErrorIs(t, err, errs.ErrGridMismatch)
}

func TestRun_CorruptTilePropagatesError(t *testing.T) {
	const width, height, tileRows = 4, 8, 2

	pixels := make([]float32, width*height)
	for i := range pixels {
		pixels[i] = float32(i)
	}

	var buf bytes.Buffer
	w, err := store.NewWriter(&buf, "a", width, height,
		store.WithTileRows(tileRows),
		store.WithNodata(testNodata),
	)
	require.NoError(t, err)

	hdr := w.Header()
	for i := 0; i < hdr.TileCount(); i++ {
		start, end := hdr.TileBounds(i)
		require.NoError(t, w.WriteTile(pixels[start*width:end*width]))
	}
	require.NoError(t, w.Finish())

	// Flip one payload byte: the frame index still parses, but the last
	// tile's checksum no longer matches its payload.
	data := buf.Bytes()
	data[len(data)-1] ^= 0xff

	a, err := store.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	p := buildTestPlan(t, []expr.Term{{Expression: "a", Coefficient: 1.0}})

	var out bytes.Buffer
	ow, err := store.NewWriter(&out, "result", width, height, store.WithTileRows(tileRows))
	require.NoError(t, err)

	err = Run(context.Background(), p, []*store.Reader{a}, ow, 4)
	require.ErrorIs(t, err, errs.ErrChecksumMismatch)
}

func TestRun_CanceledContext(t *testing.T) {
	const width, height = 4, 64

	pixels := make([]float32, width*height)
	a := encodeGrid(t, "a", width, height, 1, pixels)

	p := buildTestPlan(t, []expr.Term{{Expression: "a", Coefficient: 1.0}})

	var out bytes.Buffer
	w, err := store.NewWriter(&out, "result", width, height, store.WithTileRows(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = Run(ctx, p, []*store.Reader{a}, w, 2)
	require.Error(t, err)
}
