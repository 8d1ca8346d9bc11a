package compress

// NoOpCodec passes payloads through unmodified. Useful for already-compressed
// sources, debugging, and measuring codec overhead.
//
// Both directions return the input slice as-is, sharing its memory with the
// caller.
type NoOpCodec struct{}

var _ Codec = (*NoOpCodec)(nil)

// NewNoOpCodec creates a pass-through codec.
func NewNoOpCodec() NoOpCodec {
	return NoOpCodec{}
}

func (c NoOpCodec) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (c NoOpCodec) Decompress(data []byte) ([]byte, error) {
	return data, nil
}
