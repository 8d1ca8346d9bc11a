package store

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/therealspring/carbonscen/endian"
	"github.com/therealspring/carbonscen/errs"
	"github.com/therealspring/carbonscen/format"
)

const (
	// MagicV1 identifies a version 1 grid container.
	MagicV1 = uint32(0x43475231) // "CGR1"

	// Version is the current container version.
	Version = uint8(1)

	// HeaderSize is the fixed header size in bytes; the grid name follows it.
	HeaderSize = 48

	// FrameHeaderSize is the per-tile frame prefix: payload length + CRC32C.
	FrameHeaderSize = 8

	// DefaultTileRows is the default tile height in rows.
	DefaultTileRows = 256
)

// Header flag bits.
const (
	FlagBigEndian = 0x01 // 0=little-endian payloads, 1=big-endian
	FlagHasNodata = 0x02 // header carries a nodata sentinel
)

// Header describes one stored grid: identity, dimensions, tiling, nodata
// sentinel, and payload codec.
type Header struct {
	// Name is the grid's symbol name; GridID is its xxHash64.
	Name   string
	GridID uint64

	// Width and Height are the full grid dimensions in pixels.
	Width  int
	Height int

	// TileRows is the tile height in rows; the final tile may be shorter.
	TileRows int

	// Nodata is the missing-pixel sentinel, nil when undefined.
	Nodata *float64

	// Compression selects the tile payload codec.
	Compression format.CompressionType

	// BigEndian records the payload byte order.
	BigEndian bool
}

// TileCount returns the number of tile frames the grid is split into.
func (h Header) TileCount() int {
	if h.TileRows <= 0 || h.Height <= 0 {
		return 0
	}

	return (h.Height + h.TileRows - 1) / h.TileRows
}

// TileBounds returns the half-open row range [start, end) of tile i.
func (h Header) TileBounds(i int) (start, end int) {
	start = i * h.TileRows
	end = start + h.TileRows
	if end > h.Height {
		end = h.Height
	}

	return start, end
}

// TilePixels returns the pixel count of tile i.
func (h Header) TilePixels(i int) int {
	start, end := h.TileBounds(i)

	return (end - start) * h.Width
}

// Engine returns the byte-order engine matching the header's endianness flag.
func (h Header) Engine() endian.EndianEngine {
	if h.BigEndian {
		return endian.GetBigEndianEngine()
	}

	return endian.GetLittleEndianEngine()
}

// encode serializes the fixed header plus name bytes.
//
// The magic number is always stored big-endian so it reads the same
// regardless of the payload byte order; all other multibyte fields use the
// engine selected by the endianness flag.
func (h Header) encode() []byte {
	engine := h.Engine()
	buf := make([]byte, HeaderSize, HeaderSize+len(h.Name))

	binary.BigEndian.PutUint32(buf[0:4], MagicV1)
	buf[4] = Version

	var flags uint8
	if h.BigEndian {
		flags |= FlagBigEndian
	}
	if h.Nodata != nil {
		flags |= FlagHasNodata
	}
	buf[5] = flags
	buf[6] = uint8(h.Compression)
	// buf[7] reserved

	engine.PutUint32(buf[8:12], uint32(h.Width))
	engine.PutUint32(buf[12:16], uint32(h.Height))
	engine.PutUint32(buf[16:20], uint32(h.TileRows))
	engine.PutUint32(buf[20:24], uint32(len(h.Name)))

	if h.Nodata != nil {
		engine.PutUint64(buf[24:32], math.Float64bits(*h.Nodata))
	}
	engine.PutUint64(buf[32:40], h.GridID)
	// buf[40:48] reserved

	return append(buf, h.Name...)
}

// decodeHeader parses the fixed header; the caller reads the name separately
// using the returned name length.
func decodeHeader(buf []byte) (Header, int, error) {
	if len(buf) < HeaderSize {
		return Header{}, 0, fmt.Errorf("%w: %d bytes", errs.ErrInvalidHeaderSize, len(buf))
	}

	if magic := binary.BigEndian.Uint32(buf[0:4]); magic != MagicV1 {
		return Header{}, 0, fmt.Errorf("%w: 0x%08x", errs.ErrInvalidMagic, magic)
	}
	if buf[4] != Version {
		return Header{}, 0, fmt.Errorf("%w: %d", errs.ErrUnsupportedVersion, buf[4])
	}

	flags := buf[5]
	h := Header{
		BigEndian:   flags&FlagBigEndian != 0,
		Compression: format.CompressionType(buf[6]),
	}
	engine := h.Engine()

	h.Width = int(engine.Uint32(buf[8:12]))
	h.Height = int(engine.Uint32(buf[12:16]))
	h.TileRows = int(engine.Uint32(buf[16:20]))
	nameLen := int(engine.Uint32(buf[20:24]))

	if flags&FlagHasNodata != 0 {
		nodata := math.Float64frombits(engine.Uint64(buf[24:32]))
		h.Nodata = &nodata
	}
	h.GridID = engine.Uint64(buf[32:40])

	return h, nameLen, nil
}
