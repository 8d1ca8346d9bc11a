// Package hash derives stable 64-bit identifiers from grid names.
package hash

import "github.com/cespare/xxhash/v2"

// GridID computes the xxHash64 of a grid name.
//
// The hash is deterministic across processes and platforms, so the same grid
// name always maps to the same ID in a grid container header.
func GridID(name string) uint64 {
	return xxhash.Sum64String(name)
}
