package store

import (
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"

	"github.com/therealspring/carbonscen/compress"
	"github.com/therealspring/carbonscen/errs"
)

// Reader provides random tile access over a stored grid.
//
// The frame index is recovered once at open time by scanning frame prefixes;
// after that ReadTile is safe for concurrent use as long as the underlying
// io.ReaderAt is (os.File is).
type Reader struct {
	r       io.ReaderAt
	hdr     Header
	codec   compress.Codec
	offsets []int64  // payload offset per tile
	lengths []uint32 // compressed payload length per tile
	crcs    []uint32
	closer  io.Closer
}

// NewReader opens a grid from any io.ReaderAt of known size.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	var fixed [HeaderSize]byte
	if _, err := io.ReadFull(io.NewSectionReader(r, 0, HeaderSize), fixed[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidHeaderSize, err)
	}

	hdr, nameLen, err := decodeHeader(fixed[:])
	if err != nil {
		return nil, err
	}

	name := make([]byte, nameLen)
	if _, err := io.ReadFull(io.NewSectionReader(r, HeaderSize, int64(nameLen)), name); err != nil {
		return nil, fmt.Errorf("read grid name: %w", err)
	}
	hdr.Name = string(name)

	codec, err := compress.GetCodec(hdr.Compression)
	if err != nil {
		return nil, err
	}

	rd := &Reader{r: r, hdr: hdr, codec: codec}
	if err := rd.scanFrames(size); err != nil {
		return nil, err
	}

	return rd, nil
}

// Open opens a grid file. Close releases the file handle.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open grid %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat grid %s: %w", path, err)
	}

	rd, err := NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rd.closer = f

	return rd, nil
}

// scanFrames builds the tile index by walking frame prefixes.
func (r *Reader) scanFrames(size int64) error {
	engine := r.hdr.Engine()
	count := r.hdr.TileCount()
	r.offsets = make([]int64, count)
	r.lengths = make([]uint32, count)
	r.crcs = make([]uint32, count)

	offset := int64(HeaderSize + len(r.hdr.Name))
	for i := 0; i < count; i++ {
		var prefix [FrameHeaderSize]byte
		if offset+FrameHeaderSize > size {
			return fmt.Errorf("%w: frame %d prefix beyond end of data", errs.ErrCorruptedFrame, i)
		}
		if _, err := r.r.ReadAt(prefix[:], offset); err != nil {
			return fmt.Errorf("%w: frame %d: %v", errs.ErrCorruptedFrame, i, err)
		}

		length := engine.Uint32(prefix[0:4])
		r.offsets[i] = offset + FrameHeaderSize
		r.lengths[i] = length
		r.crcs[i] = engine.Uint32(prefix[4:8])

		offset += FrameHeaderSize + int64(length)
		if offset > size {
			return fmt.Errorf("%w: frame %d payload beyond end of data", errs.ErrCorruptedFrame, i)
		}
	}

	return nil
}

// Header returns the grid header.
func (r *Reader) Header() Header {
	return r.hdr
}

// TileCount returns the number of tiles in the grid.
func (r *Reader) TileCount() int {
	return r.hdr.TileCount()
}

// ReadTile reads, verifies, and decodes tile i into row-major float32 pixels.
func (r *Reader) ReadTile(i int) ([]float32, error) {
	if i < 0 || i >= r.hdr.TileCount() {
		return nil, fmt.Errorf("%w: %d of %d", errs.ErrTileOutOfRange, i, r.hdr.TileCount())
	}

	payload := make([]byte, r.lengths[i])
	if _, err := r.r.ReadAt(payload, r.offsets[i]); err != nil {
		return nil, fmt.Errorf("%w: tile %d: %v", errs.ErrCorruptedFrame, i, err)
	}

	if sum := crc32.Checksum(payload, castagnoli); sum != r.crcs[i] {
		return nil, fmt.Errorf("%w: tile %d: got 0x%08x, want 0x%08x",
			errs.ErrChecksumMismatch, i, sum, r.crcs[i])
	}

	raw, err := r.codec.Decompress(payload)
	if err != nil {
		return nil, fmt.Errorf("decompress tile %d: %w", i, err)
	}

	want := r.hdr.TilePixels(i)
	if len(raw) != want*4 {
		return nil, fmt.Errorf("%w: tile %d decoded to %d bytes, want %d",
			errs.ErrCorruptedFrame, i, len(raw), want*4)
	}

	engine := r.hdr.Engine()
	pixels := make([]float32, want)
	for p := range pixels {
		pixels[p] = math.Float32frombits(engine.Uint32(raw[p*4 : p*4+4]))
	}

	return pixels, nil
}

// Close releases the underlying file handle if the Reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}

	return r.closer.Close()
}

// Aligned reports whether every reader shares identical width, height, and
// tile rows, which guarantees tile i of each grid covers the same window.
func Aligned(readers ...*Reader) bool {
	if len(readers) == 0 {
		return true
	}

	first := readers[0].hdr
	for _, r := range readers[1:] {
		if r.hdr.Width != first.Width || r.hdr.Height != first.Height || r.hdr.TileRows != first.TileRows {
			return false
		}
	}

	return true
}
