// Package demstream reads the outer framing of replay files: the 12-byte
// PBUFDEM header followed by varint-framed, optionally Snappy-compressed
// records. Three implementations exist: streaming from disk, fully
// in-memory, and in-memory after decompressing a whole-file archive.
package demstream

import (
	"bytes"
	"fmt"

	"github.com/arloliu/rewind/compress"
	"github.com/arloliu/rewind/errs"
	"github.com/arloliu/rewind/format"
)

// Message is one framed record. Data points into memory the stream owns (its
// read or decompression buffer, or the loaded file for in-memory streams)
// and is valid until the next Read.
type Message struct {
	// Compressed reports whether the payload arrived Snappy-compressed;
	// Data is always the decompressed form.
	Compressed bool
	// Tick is the game tick the record was written at.
	Tick uint32
	// Kind is the DEM record kind.
	Kind format.DemKind
	// Data is the record payload.
	Data []byte
}

// Stream is the outer record source a parser drains.
type Stream interface {
	// Open prepares the stream for the given replay path.
	Open(path string) error
	// Good reports whether records remain.
	Good() bool
	// Read returns the next record. With skip set, records the parser
	// never consumes internally are seeked past and an empty Message is
	// returned.
	Read(skip bool) (Message, error)
	// Move seeks to the full packet at the given minute, building the
	// offset cache on first use.
	Move(minute uint32) error
	// Close releases the stream's buffers.
	Close() error
}

// headerSize is the fixed demo header: 8 magic bytes and a 4-byte summary
// offset.
const headerSize = 12

// headerMagic identifies a protobuf demo file.
var headerMagic = []byte("PBUFDEM\x00")

// defaultSkips holds the record kinds the parser never consumes internally;
// Read(skip=true) seeks past their payloads. The file header is not in the
// set: it is a single small record the parser retains for callers.
var defaultSkips = map[format.DemKind]struct{}{
	format.DemFileInfo:            {},
	format.DemSyncTick:            {},
	format.DemConsoleCmd:          {},
	format.DemCustomData:          {},
	format.DemCustomDataCallbacks: {},
	format.DemUserCmd:             {},
	format.DemFullPacket:          {},
	format.DemSaveGame:            {},
}

// verifyHeader checks the magic of an opened replay.
func verifyHeader(buf []byte, path string) error {
	if len(buf) < headerSize {
		return fmt.Errorf("%w: %s: %d bytes", errs.ErrFileTooSmall, path, len(buf))
	}
	if !bytes.Equal(buf[:len(headerMagic)], headerMagic) {
		return fmt.Errorf("%w: %s: got %q", errs.ErrHeaderMismatch, path, buf[:len(headerMagic)])
	}

	return nil
}

// decompressPayload inflates a compressed record payload into scratch,
// enforcing the 1 MB limit before decoding.
func decompressPayload(scratch, data []byte, path string) ([]byte, error) {
	var snap compress.SnappyDecompressor

	n, err := snap.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrInvalidCompression, path, err)
	}
	if n > format.MaxMessageSize {
		return nil, fmt.Errorf("%w: %s: %d bytes decompressed", errs.ErrMessageTooBig, path, n)
	}

	out, err := snap.DecompressTo(scratch[:0], data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrInvalidCompression, path, err)
	}

	return out, nil
}
