// Package errs defines the sentinel errors shared across carbonscen packages.
//
// Callers match these with errors.Is; call sites add context with
// fmt.Errorf("%w: ...", errs.ErrX, ...).
package errs

import "errors"

// Expression compilation errors.
var (
	// ErrNoTerms indicates the regression table contained no rows.
	ErrNoTerms = errors.New("regression table has no terms")

	// ErrEmptyFactor indicates a term whose expression has an empty
	// multiplicative factor (for example a dangling "*").
	ErrEmptyFactor = errors.New("term has an empty factor")

	// ErrInvalidExponent indicates an exponent that is not an integer literal.
	ErrInvalidExponent = errors.New("exponent is not an integer literal")

	// ErrImbalancedStream indicates a postfix stream that does not reduce to
	// exactly one value. This signals a defect in stream construction, not a
	// recoverable input condition.
	ErrImbalancedStream = errors.New("postfix stream is imbalanced")
)

// Plan construction errors.
var (
	// ErrUnresolvedSymbols indicates one or more discovered symbols had no
	// grid metadata. The error message lists every unresolved name.
	ErrUnresolvedSymbols = errors.New("unresolved symbols")

	// ErrUnknownSymbol indicates a symbol token that is missing from the
	// symbol table, which can only happen through a construction defect.
	ErrUnknownSymbol = errors.New("symbol not present in symbol table")
)

// Tile evaluation errors.
var (
	// ErrStackImbalance indicates the operand stack did not hold exactly one
	// value after full evaluation of the token stream.
	ErrStackImbalance = errors.New("operand stack imbalance after evaluation")

	// ErrShapeMismatch indicates tile arrays of differing lengths. Alignment
	// is the tile supplier's contract; this is a defect assertion.
	ErrShapeMismatch = errors.New("tile arrays have mismatched shapes")

	// ErrSlotCountMismatch indicates the tile supplied a different number of
	// slot arrays than the plan's symbol table defines.
	ErrSlotCountMismatch = errors.New("tile slot count does not match plan")
)

// Grid container errors.
var (
	// ErrInvalidMagic indicates the data does not start with a grid magic number.
	ErrInvalidMagic = errors.New("invalid grid magic number")

	// ErrUnsupportedVersion indicates an unknown grid container version.
	ErrUnsupportedVersion = errors.New("unsupported grid container version")

	// ErrInvalidHeaderSize indicates the data is too short for a grid header.
	ErrInvalidHeaderSize = errors.New("invalid grid header size")

	// ErrCorruptedFrame indicates a truncated or otherwise malformed tile frame.
	ErrCorruptedFrame = errors.New("corrupted tile frame")

	// ErrChecksumMismatch indicates a tile frame failed its CRC check.
	ErrChecksumMismatch = errors.New("tile frame checksum mismatch")

	// ErrTileOutOfRange indicates a tile index outside [0, TileCount).
	ErrTileOutOfRange = errors.New("tile index out of range")

	// ErrTileCountMismatch indicates the writer received a different number
	// of tiles than the header dimensions require.
	ErrTileCountMismatch = errors.New("tile count does not match grid dimensions")

	// ErrGridMismatch indicates grids that are not aligned (differing
	// dimensions or tiling) were combined in one evaluation.
	ErrGridMismatch = errors.New("grids are not aligned")
)
