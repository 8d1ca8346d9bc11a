// Package store implements the tiled grid container used to feed aligned
// tiles to the evaluator and to persist the computed scenario grid.
//
// # Format
//
// A grid file is a fixed 48-byte header, the grid name, then one frame per
// tile in row order:
//
//	header | name | frame 0 | frame 1 | ... | frame N-1
//	frame: payload length (uint32) | CRC32C (uint32) | compressed payload
//
// Tiles are horizontal bands of TileRows rows (the last band may be
// shorter); payloads are row-major float32 pixels, compressed with the codec
// recorded in the header. Frames are length-prefixed so a Reader recovers
// the tile index with a cheap prefix scan and no trailing index section.
//
// # Alignment
//
// The evaluator requires same-shape tiles across all predictor grids.
// Grids written with identical Width, Height, and TileRows are aligned by
// construction: tile i of every grid covers the same pixel window.
package store
