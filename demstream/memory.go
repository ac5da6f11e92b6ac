package demstream

import (
	"fmt"
	"os"

	"github.com/arloliu/rewind/errs"
	"github.com/arloliu/rewind/format"
	"github.com/arloliu/rewind/internal/pool"
)

// Parsing states: running until the stop record's kind has been read, then
// one final drained read, then done.
const (
	stateRunning uint8 = iota
	stateStopSeen
	stateDone
)

// MemoryStream reads a replay that has been loaded into memory whole.
// Payloads are returned as sub-slices of the file buffer; only compressed
// records touch the scratch buffer.
type MemoryStream struct {
	path   string
	buffer []byte
	pos    int
	state  uint8

	scratch *pool.ByteBuffer
	// fpCache holds the byte offsets of FullPacket records, cold-built by
	// the first Move.
	fpCache []int
}

var _ Stream = (*MemoryStream)(nil)

// NewMemory creates an unopened in-memory stream.
func NewMemory() *MemoryStream {
	return &MemoryStream{}
}

// Open loads the replay into memory and verifies its header.
func (s *MemoryStream) Open(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errs.ErrFileNotAccessible, path, err)
	}

	return s.init(path, data)
}

// init adopts an in-memory replay image.
func (s *MemoryStream) init(path string, data []byte) error {
	if err := verifyHeader(data, path); err != nil {
		return err
	}

	s.path = path
	s.buffer = data
	s.pos = headerSize
	s.state = stateRunning
	s.fpCache = nil
	if s.scratch == nil {
		s.scratch = pool.GetMessageBuffer()
	}

	return nil
}

// Good reports whether records remain.
func (s *MemoryStream) Good() bool {
	return s.pos < len(s.buffer) && s.state != stateDone
}

// Read returns the next record.
func (s *MemoryStream) Read(skip bool) (Message, error) {
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

	// The stop record marks the message before the last one.
	if s.state == stateStopSeen {
		s.state = stateDone
	}
	if kind == format.DemStop {
		s.state = stateStopSeen
	}

	if int(size) > len(s.buffer)-s.pos {
		return Message{}, fmt.Errorf("%w: %s: %d bytes at offset %d", errs.ErrUnexpectedEOF, s.path, size, s.pos)
	}

	if _, skipped := defaultSkips[kind]; skip && skipped {
		s.pos += int(size)
		return Message{}, nil
	}

	payload := s.buffer[s.pos : s.pos+int(size)]
	s.pos += int(size)

	msg := Message{Compressed: compressed, Tick: tick, Kind: kind, Data: payload}
	if compressed {
		msg.Data, err = decompressPayload(s.scratch.B[:s.scratch.Cap()], payload, s.path)
		if err != nil {
			return Message{}, err
		}
	}

	return msg, nil
}

// Move seeks to the full packet at the given minute. The offset cache is
// built on first use by scanning the whole record sequence.
func (s *MemoryStream) Move(minute uint32) error {
	if s.fpCache == nil {
		s.pos = headerSize
		s.fpCache = append(s.fpCache, s.pos) // minute 0 starts at the top

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
			s.pos += int(size)

			if kind == format.DemStop || s.pos >= len(s.buffer) {
				break
			}
		}
	}

	if int(minute) >= len(s.fpCache) {
		minute = uint32(len(s.fpCache) - 1)
	}
	s.pos = s.fpCache[minute]

	return nil
}

// Close releases the scratch buffer.
func (s *MemoryStream) Close() error {
	pool.PutMessageBuffer(s.scratch)
	s.scratch = nil
	s.buffer = nil

	return nil
}

// readVarInt reads one protobuf varint from the buffer, capped at 5 bytes.
func (s *MemoryStream) readVarInt() (uint32, error) {
	var result uint32
	for count := 0; ; count++ {
		if count == 5 {
			return 0, fmt.Errorf("%w: %s: varint at offset %d", errs.ErrCorrupted, s.path, s.pos)
		}
		if s.pos >= len(s.buffer) {
			return 0, fmt.Errorf("%w: %s: offset %d", errs.ErrUnexpectedEOF, s.path, s.pos)
		}

		b := s.buffer[s.pos]
		s.pos++
		result |= uint32(b&0x7F) << (7 * count)

		if b&0x80 == 0 {
			return result, nil
		}
	}
}
