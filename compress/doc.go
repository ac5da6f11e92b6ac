// Package compress provides the decompression codecs a replay can carry.
//
// Snappy covers per-message payloads flagged with the compressed bit of the
// outer record kind. The remaining codecs (bzip2, LZ4, Zstandard) cover
// whole-file archives, selected by file name suffix when a stream opens.
//
// Two Zstd implementations exist behind build tags:
//   - Default: pure-Go decoder (github.com/klauspost/compress/zstd)
//   - "gozstd" tag: cgo decoder (github.com/valyala/gozstd)
//
// The cgo variant decompresses large archives faster but requires a C
// toolchain; both produce identical output.
package compress
