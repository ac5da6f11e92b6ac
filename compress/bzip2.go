package compress

import (
	"bytes"
	"compress/bzip2"
	"io"
)

// Bzip2Decompressor decodes bzip2-compressed replay archives (.dem.bz2).
//
// The standard library reader is used here: bzip2 only appears on the
// whole-file path where streaming decode speed is not a concern.
type Bzip2Decompressor struct{}

var _ Decompressor = (*Bzip2Decompressor)(nil)

// NewBzip2Decompressor creates a new bzip2 decompressor.
func NewBzip2Decompressor() Bzip2Decompressor {
	return Bzip2Decompressor{}
}

// Decompress decompresses the input data using bzip2.
func (c Bzip2Decompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return io.ReadAll(bzip2.NewReader(bytes.NewReader(data)))
}
