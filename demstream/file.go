package demstream

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/arloliu/rewind/errs"
	"github.com/arloliu/rewind/format"
	"github.com/arloliu/rewind/internal/pool"
)

// FileStream reads a replay record by record from disk, holding only the
// current message in memory: a 1 MB buffer for the framed payload and a
// second one for its decompressed form.
type FileStream struct {
	path  string
	file  *os.File
	r     *bufio.Reader
	pos   int64
	size  int64
	state uint8

	msgBuf  *pool.ByteBuffer
	scratch *pool.ByteBuffer
	fpCache []int64
}

var _ Stream = (*FileStream)(nil)

// NewFile creates an unopened file stream.
func NewFile() *FileStream {
	return &FileStream{}
}

// Open opens the replay and verifies its header.
func (s *FileStream) Open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errs.ErrFileNotAccessible, path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: %s: %v", errs.ErrFileNotAccessible, path, err)
	}
	if info.Size() < headerSize {
		f.Close()
		return fmt.Errorf("%w: %s: %d bytes", errs.ErrFileTooSmall, path, info.Size())
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(f, header); err != nil {
		f.Close()
		return fmt.Errorf("%w: %s: %v", errs.ErrUnexpectedEOF, path, err)
	}
	if err := verifyHeader(header, path); err != nil {
		f.Close()
		return err
	}

	s.path = path
	s.file = f
	s.r = bufio.NewReaderSize(f, 64*1024)
	s.pos = headerSize
	s.size = info.Size()
	s.state = stateRunning
	s.fpCache = nil
	if s.msgBuf == nil {
		s.msgBuf = pool.GetMessageBuffer()
		s.scratch = pool.GetMessageBuffer()
	}

	return nil
}

// Good reports whether records remain.
func (s *FileStream) Good() bool {
	return s.file != nil && s.pos < s.size && s.state != stateDone
}

// Read returns the next record. The payload lives in the stream's message
// buffer until the next Read.
func (s *FileStream) Read(skip bool) (Message, error) {
	rawKind, err := s.readVarInt()
	if err != nil {
		return Message{}, err
	}

	compressed := rawKind&format.DemCompressed != 0
	kind := format.DemKind(rawKind &^ uint32(format.DemCompressed))

	tick, err := s.readVarInt()
	if err != nil {
		return Message{}, err
	}
	size, err := s.readVarInt()
	if err != nil {
		return Message{}, err
	}

	if s.state == stateStopSeen {
		s.state = stateDone
	}
	if kind == format.DemStop {
		s.state = stateStopSeen
	}

	if int64(size) > s.size-s.pos {
		return Message{}, fmt.Errorf("%w: %s: %d bytes at offset %d", errs.ErrUnexpectedEOF, s.path, size, s.pos)
	}
	if size > format.MaxMessageSize {
		return Message{}, fmt.Errorf("%w: %s: %d bytes", errs.ErrMessageTooBig, s.path, size)
	}

	if _, skipped := defaultSkips[kind]; skip && skipped {
		if err := s.discard(int(size)); err != nil {
			return Message{}, err
		}

		return Message{}, nil
	}

	s.msgBuf.SetLength(int(size))
	if _, err := io.ReadFull(s.r, s.msgBuf.B); err != nil {
		return Message{}, fmt.Errorf("%w: %s: %v", errs.ErrUnexpectedEOF, s.path, err)
	}
	s.pos += int64(size)

	msg := Message{Compressed: compressed, Tick: tick, Kind: kind, Data: s.msgBuf.B}
	if compressed {
		msg.Data, err = decompressPayload(s.scratch.B[:s.scratch.Cap()], s.msgBuf.B, s.path)
		if err != nil {
			return Message{}, err
		}
	}

	return msg, nil
}

// Move seeks to the full packet at the given minute, scanning the file once
// to build the offset cache.
func (s *FileStream) Move(minute uint32) error {
	if s.fpCache == nil {
		if err := s.seekTo(headerSize); err != nil {
			return err
		}
		s.fpCache = append(s.fpCache, headerSize)

		for {
			start := s.pos
			rawKind, err := s.readVarInt()
			if err != nil {
				return err
			}
			kind := format.DemKind(rawKind &^ uint32(format.DemCompressed))

			if _, err := s.readVarInt(); err != nil { // tick
				return err
			}
			size, err := s.readVarInt()
			if err != nil {
				return err
			}

			if kind == format.DemFullPacket {
				s.fpCache = append(s.fpCache, start)
			}
			if err := s.discard(int(size)); err != nil {
				return err
			}

			if kind == format.DemStop || s.pos >= s.size {
				break
			}
		}
	}

	if int(minute) >= len(s.fpCache) {
		minute = uint32(len(s.fpCache) - 1)
	}

	return s.seekTo(s.fpCache[minute])
}

// Close closes the file and releases the buffers.
func (s *FileStream) Close() error {
	pool.PutMessageBuffer(s.msgBuf)
	pool.PutMessageBuffer(s.scratch)
	s.msgBuf = nil
	s.scratch = nil

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil

	return err
}

func (s *FileStream) seekTo(offset int64) error {
	if _, err := s.file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %s: %v", errs.ErrFileNotAccessible, s.path, err)
	}
	s.r.Reset(s.file)
	s.pos = offset

	return nil
}

func (s *FileStream) discard(n int) error {
	if _, err := s.r.Discard(n); err != nil {
		return fmt.Errorf("%w: %s: %v", errs.ErrUnexpectedEOF, s.path, err)
	}
	s.pos += int64(n)

	return nil
}

// readVarInt reads one protobuf varint from the file, capped at 5 bytes.
func (s *FileStream) readVarInt() (uint32, error) {
	var result uint32
	for count := 0; ; count++ {
		if count == 5 {
			return 0, fmt.Errorf("%w: %s: varint at offset %d", errs.ErrCorrupted, s.path, s.pos)
		}

		b, err := s.r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("%w: %s: offset %d", errs.ErrUnexpectedEOF, s.path, s.pos)
		}
		s.pos++
		result |= uint32(b&0x7F) << (7 * count)

		if b&0x80 == 0 {
			return result, nil
		}
	}
}
