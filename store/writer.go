package store

import (
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/therealspring/carbonscen/compress"
	"github.com/therealspring/carbonscen/endian"
	"github.com/therealspring/carbonscen/errs"
	"github.com/therealspring/carbonscen/format"
	"github.com/therealspring/carbonscen/internal/hash"
	"github.com/therealspring/carbonscen/internal/options"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

type writerConfig struct {
	tileRows    int
	nodata      *float64
	compression format.CompressionType
	bigEndian   bool
}

// WriterOption is a functional option for NewWriter.
type WriterOption = options.Option[*writerConfig]

// WithTileRows sets the tile height in rows.
func WithTileRows(rows int) WriterOption {
	return options.New(func(cfg *writerConfig) error {
		if rows <= 0 {
			return fmt.Errorf("tile rows must be positive, got %d", rows)
		}
		cfg.tileRows = rows

		return nil
	})
}

// WithNodata records the grid's missing-pixel sentinel.
func WithNodata(v float64) WriterOption {
	return options.NoError(func(cfg *writerConfig) {
		cfg.nodata = &v
	})
}

// WithCompression selects the tile payload codec.
func WithCompression(t format.CompressionType) WriterOption {
	return options.NoError(func(cfg *writerConfig) {
		cfg.compression = t
	})
}

// WithBigEndian stores payloads big-endian regardless of the host byte order.
func WithBigEndian() WriterOption {
	return options.NoError(func(cfg *writerConfig) {
		cfg.bigEndian = true
	})
}

// WithLittleEndian stores payloads little-endian regardless of the host byte
// order.
func WithLittleEndian() WriterOption {
	return options.NoError(func(cfg *writerConfig) {
		cfg.bigEndian = false
	})
}

// Writer streams a grid out tile by tile.
//
// Tiles must be written in row order, one WriteTile call per tile, followed
// by Finish. The Writer is not safe for concurrent use.
type Writer struct {
	w       io.Writer
	hdr     Header
	codec   compress.Codec
	buf     []byte
	written int
}

// NewWriter creates a grid writer and writes the header immediately.
//
// Parameters:
//   - w: Destination stream.
//   - name: Grid symbol name; its xxHash64 becomes the grid ID.
//   - width, height: Full grid dimensions in pixels.
//   - opts: WithTileRows, WithNodata, WithCompression, WithBigEndian,
//     WithLittleEndian.
//
// Returns:
//   - *Writer: The created writer.
//   - error: Invalid dimensions or options, codec lookup failure, or a write
//     error from the destination.
func NewWriter(w io.Writer, name string, width, height int, opts ...WriterOption) (*Writer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("grid dimensions must be positive, got %dx%d", width, height)
	}

	// Payloads default to the host's byte order; the header flag records the
	// choice so readers on any host decode correctly.
	cfg := &writerConfig{
		tileRows:    DefaultTileRows,
		compression: format.CompressionNone,
		bigEndian:   !endian.IsNativeLittleEndian(),
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	codec, err := compress.GetCodec(cfg.compression)
	if err != nil {
		return nil, err
	}

	hdr := Header{
		Name:        name,
		GridID:      hash.GridID(name),
		Width:       width,
		Height:      height,
		TileRows:    cfg.tileRows,
		Nodata:      cfg.nodata,
		Compression: cfg.compression,
		BigEndian:   cfg.bigEndian,
	}

	if _, err := w.Write(hdr.encode()); err != nil {
		return nil, fmt.Errorf("write grid header: %w", err)
	}

	return &Writer{w: w, hdr: hdr, codec: codec}, nil
}

// Header returns the header being written.
func (w *Writer) Header() Header {
	return w.hdr
}

// WriteTile appends the next tile's pixels as one frame.
//
// The pixel count must match Header.TilePixels for the next tile index.
func (w *Writer) WriteTile(pixels []float32) error {
	if w.written >= w.hdr.TileCount() {
		return fmt.Errorf("%w: all %d tiles already written", errs.ErrTileCountMismatch, w.hdr.TileCount())
	}
	if want := w.hdr.TilePixels(w.written); len(pixels) != want {
		return fmt.Errorf("%w: tile %d needs %d pixels, got %d",
			errs.ErrShapeMismatch, w.written, want, len(pixels))
	}

	engine := w.hdr.Engine()
	w.buf = w.buf[:0]
	for _, v := range pixels {
		w.buf = engine.AppendUint32(w.buf, math.Float32bits(v))
	}

	payload, err := w.codec.Compress(w.buf)
	if err != nil {
		return fmt.Errorf("compress tile %d: %w", w.written, err)
	}

	var prefix [FrameHeaderSize]byte
	engine.PutUint32(prefix[0:4], uint32(len(payload)))
	engine.PutUint32(prefix[4:8], crc32.Checksum(payload, castagnoli))

	if _, err := w.w.Write(prefix[:]); err != nil {
		return fmt.Errorf("write tile %d frame header: %w", w.written, err)
	}
	if _, err := w.w.Write(payload); err != nil {
		return fmt.Errorf("write tile %d payload: %w", w.written, err)
	}

	w.written++

	return nil
}

// Finish verifies every tile was written. It performs no I/O of its own;
// closing the destination remains the caller's responsibility.
func (w *Writer) Finish() error {
	if w.written != w.hdr.TileCount() {
		return fmt.Errorf("%w: wrote %d of %d tiles",
			errs.ErrTileCountMismatch, w.written, w.hdr.TileCount())
	}

	return nil
}
