// Package compress provides the codecs used for grid tile payloads.
//
// Tile payloads are row-major float32 pixel blocks. They compress well:
// continental-scale predictor grids are dominated by nodata runs and smooth
// spatial gradients. The store picks a codec per grid file via
// format.CompressionType.
package compress

import (
	"fmt"

	"github.com/therealspring/carbonscen/format"
)

// Codec compresses and decompresses one tile payload at a time.
//
// Implementations must be safe for concurrent use: the tile runner invokes
// the same codec from every worker.
//
// Memory contract for both directions: the input slice is never modified and
// the returned slice is owned by the caller (except NoOpCodec, which passes
// the input through).
type Codec interface {
	// Compress compresses data and returns the compressed result.
	Compress(data []byte) ([]byte, error)
	// Decompress reverses Compress. It returns an error when the data is
	// corrupted or was produced by a different codec.
	Decompress(data []byte) ([]byte, error)
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCodec(),
	format.CompressionZstd: NewZstdCodec(),
	format.CompressionS2:   NewS2Codec(),
	format.CompressionLZ4:  NewLZ4Codec(),
}

// GetCodec retrieves the built-in Codec for a compression type.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
}
