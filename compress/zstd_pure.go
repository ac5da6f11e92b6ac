//go:build !gozstd

package compress

import (
	"github.com/klauspost/compress/zstd"
)

// ZstdDecompressor decodes Zstandard replay archives (.dem.zst) with the
// pure-Go implementation. Build with the gozstd tag to substitute the cgo
// variant.
type ZstdDecompressor struct{}

var _ Decompressor = (*ZstdDecompressor)(nil)

// NewZstdDecompressor creates a new Zstd decompressor.
func NewZstdDecompressor() ZstdDecompressor {
	return ZstdDecompressor{}
}

// Decompress decompresses the input data using Zstandard.
func (c ZstdDecompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	return dec.DecodeAll(data, nil)
}
