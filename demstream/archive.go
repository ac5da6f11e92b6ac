package demstream

import (
	"fmt"
	"os"

	"github.com/arloliu/rewind/compress"
	"github.com/arloliu/rewind/errs"
)

// ArchiveStream reads a replay stored inside a whole-file archive
// (.dem.bz2, .dem.lz4, .dem.zst). The archive is decompressed once on open;
// everything after that behaves like a memory stream.
type ArchiveStream struct {
	MemoryStream
}

var _ Stream = (*ArchiveStream)(nil)

// NewArchive creates an unopened archive stream.
func NewArchive() *ArchiveStream {
	return &ArchiveStream{}
}

// Open decompresses the archive into memory and verifies the replay header.
// Unknown suffixes are treated as bzip2, the archive format replays are
// customarily shipped in.
func (s *ArchiveStream) Open(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errs.ErrFileNotAccessible, path, err)
	}

	codec := compress.ForPath(path)
	if codec == nil {
		codec = compress.NewBzip2Decompressor()
	}

	raw, err := codec.Decompress(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errs.ErrInvalidCompression, path, err)
	}

	return s.init(path, raw)
}
