package compress

// ZstdCodec favors compression ratio over speed, which suits archived
// scenario outputs and cold predictor grids.
//
// Two implementations exist behind build tags: a cgo path backed by
// valyala/gozstd (libzstd) and a pure-Go path backed by
// klauspost/compress/zstd. The cgo path is selected automatically when cgo is
// available; build with the purego tag to force the Go implementation.
type ZstdCodec struct{}

var _ Codec = (*ZstdCodec)(nil)

// NewZstdCodec creates a new Zstandard codec.
func NewZstdCodec() ZstdCodec {
	return ZstdCodec{}
}
