package compress

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
)

// LZ4Decompressor decodes LZ4-frame replay archives (.dem.lz4).
type LZ4Decompressor struct{}

var _ Decompressor = (*LZ4Decompressor)(nil)

// NewLZ4Decompressor creates a new LZ4 frame decompressor.
func NewLZ4Decompressor() LZ4Decompressor {
	return LZ4Decompressor{}
}

// Decompress decompresses the input data using the LZ4 frame format.
func (c LZ4Decompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	// Replays expand roughly 2-4x; seed the buffer accordingly.
	buf := bytes.NewBuffer(make([]byte, 0, len(data)*2))
	if _, err := io.Copy(buf, lz4.NewReader(bytes.NewReader(data))); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
