package compress

import (
	"github.com/klauspost/compress/snappy"
)

// SnappyDecompressor decodes the Snappy block format used for compressed
// message payloads inside a replay.
type SnappyDecompressor struct{}

var _ Decompressor = (*SnappyDecompressor)(nil)

// NewSnappyDecompressor creates a new Snappy decompressor.
func NewSnappyDecompressor() SnappyDecompressor {
	return SnappyDecompressor{}
}

// Decompress decompresses the input data into a freshly allocated buffer.
func (c SnappyDecompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return snappy.Decode(nil, data)
}

// DecompressTo decompresses into dst when it has sufficient capacity,
// allocating only when it does not. The returned slice aliases dst in the
// common case, so callers reusing a scratch buffer must consume the result
// before the next call.
func (c SnappyDecompressor) DecompressTo(dst, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return snappy.Decode(dst, data)
}

// DecodedLen reports the decompressed size recorded in the Snappy block
// header without decoding the payload. Used to enforce the scratch buffer
// limit before committing to a decode.
func (c SnappyDecompressor) DecodedLen(data []byte) (int, error) {
	return snappy.DecodedLen(data)
}
