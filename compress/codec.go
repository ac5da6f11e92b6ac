package compress

import (
	"strings"
)

// Decompressor restores data compressed with one of the codecs a replay can
// carry. The demo format is read-only, so no compression counterpart exists.
//
// Two kinds of data pass through here:
//   - Per-message payloads flagged with the compressed bit, always Snappy.
//   - Whole replay archives (.dem.bz2, .dem.lz4, .dem.zst), decompressed
//     once when the stream opens.
//
// Memory management:
//   - Returned slices are owned by the caller unless a codec documents
//     scratch-buffer reuse.
//   - Input slices are never modified.
type Decompressor interface {
	// Decompress decompresses the input data and returns the original
	// result. Returns an error if the data is corrupted or was compressed
	// with a different algorithm.
	Decompress(data []byte) ([]byte, error)
}

// ForPath returns the archive codec matching the file name suffix, or nil
// when the file is a plain uncompressed replay.
func ForPath(path string) Decompressor {
	switch {
	case strings.HasSuffix(path, ".bz2"):
		return NewBzip2Decompressor()
	case strings.HasSuffix(path, ".lz4"):
		return NewLZ4Decompressor()
	case strings.HasSuffix(path, ".zst"):
		return NewZstdDecompressor()
	default:
		return nil
	}
}
