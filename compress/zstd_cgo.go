//go:build gozstd

package compress

import (
	"github.com/valyala/gozstd"
)

// ZstdDecompressor decodes Zstandard replay archives (.dem.zst) with the
// cgo-backed gozstd implementation. This variant is noticeably faster on
// large archives; the default build uses the pure-Go decoder instead.
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

	return gozstd.Decompress(nil, data)
}
