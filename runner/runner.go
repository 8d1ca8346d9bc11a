// Package runner drives per-tile evaluation across a worker pool.
//
// The evaluation plan is immutable and Evaluate is a pure function, so tiles
// are processed concurrently with no synchronization beyond the job and
// result channels. Output tiles are re-ordered and written sequentially,
// since the grid container is a stream of row-ordered frames.
package runner

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/therealspring/carbonscen/errs"
	"github.com/therealspring/carbonscen/eval"
	"github.com/therealspring/carbonscen/grid"
	"github.com/therealspring/carbonscen/internal/ctxlog"
	"github.com/therealspring/carbonscen/internal/pool"
	"github.com/therealspring/carbonscen/plan"
	"github.com/therealspring/carbonscen/store"
)

type tileResult struct {
	pixels []float32
	index  int
	err    error
}

// Run evaluates a plan over every tile of the supplied grids and streams the
// results into w in tile order.
//
// readers must be ordered by slot index (see plan.Symbols) and aligned:
// identical width, height, and tile rows. workers <= 0 selects
// runtime.NumCPU(). Run returns the first evaluation or write error and
// cancels outstanding work; a canceled ctx aborts the run the same way.
func Run(ctx context.Context, p *plan.Plan, readers []*store.Reader, w *store.Writer, workers int) error {
	logger := ctxlog.FromContext(ctx)

	if len(readers) != p.SlotCount() {
		return fmt.Errorf("%w: plan has %d slots, got %d readers",
			errs.ErrSlotCountMismatch, p.SlotCount(), len(readers))
	}
	if !store.Aligned(readers...) {
		return errs.ErrGridMismatch
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if len(readers) == 0 {
		return evaluateConstant(p, w)
	}

	tileCount := readers[0].TileCount()
	logger.Info("evaluating scenario grid",
		"tiles", tileCount, "slots", len(readers), "workers", workers)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	results := make(chan tileResult, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			worker(ctx, p, readers, jobs, results)
			logger.Debug("worker finished", "workerID", workerID)
		}(i)
	}

	go func() {
		defer close(jobs)
		for i := 0; i < tileCount; i++ {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	fail := func(err error) {
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	// Results arrive in completion order; hold them until the next
	// sequential tile is available to write.
	pending := make(map[int][]float32)
	next := 0

	for res := range results {
		if res.err != nil {
			fail(fmt.Errorf("tile %d: %w", res.index, res.err))
			continue
		}
		if firstErr != nil {
			continue
		}

		pending[res.index] = res.pixels
		for {
			pixels, ok := pending[next]
			if !ok {
				break
			}
			if err := w.WriteTile(pixels); err != nil {
				fail(fmt.Errorf("write tile %d: %w", next, err))
				break
			}
			delete(pending, next)
			next++
		}
	}

	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := w.Finish(); err != nil {
		return err
	}

	logger.Info("scenario grid complete", "tiles", tileCount)

	return nil
}

// worker pulls tile indices until the jobs channel closes or the run is
// canceled.
func worker(ctx context.Context, p *plan.Plan, readers []*store.Reader, jobs <-chan int, results chan<- tileResult) {
	for idx := range jobs {
		if ctx.Err() != nil {
			return
		}

		tile, err := assembleTile(readers, idx)
		if err == nil {
			var pixels []float32
			pixels, err = eval.Evaluate(p, tile)
			results <- tileResult{index: idx, pixels: pixels, err: err}
			continue
		}

		results <- tileResult{index: idx, err: err}
	}
}

// assembleTile reads tile idx from every slot's grid.
func assembleTile(readers []*store.Reader, idx int) (grid.Tile, error) {
	tile := grid.Tile{Slots: make([]grid.Slot, len(readers))}
	for slot, r := range readers {
		pixels, err := r.ReadTile(idx)
		if err != nil {
			return grid.Tile{}, fmt.Errorf("read %s: %w", r.Header().Name, err)
		}
		tile.Slots[slot] = grid.Slot{Data: pixels, Nodata: r.Header().Nodata}
	}

	return tile, nil
}

// evaluateConstant handles the degenerate plan with no predictors (an
// intercept-only table): every output tile holds the same constant.
func evaluateConstant(p *plan.Plan, w *store.Writer) error {
	value, err := eval.EvaluateConstant(p)
	if err != nil {
		return err
	}

	hdr := w.Header()
	for i := 0; i < hdr.TileCount(); i++ {
		out, release := pool.GetFloat32Slice(hdr.TilePixels(i))
		for j := range out {
			out[j] = float32(value)
		}
		err := w.WriteTile(out)
		release()
		if err != nil {
			return err
		}
	}

	return w.Finish()
}
