// Package rewind parses Source-engine replay files (.dem): a framed,
// partially Snappy-compressed stream of protobuf-wrapped engine messages
// decoded into a continuously updated view of the game state.
//
// # Pipeline
//
// A demo stream yields (tick, kind, payload) records. Packet-bearing
// records are demultiplexed into NET records, which feed three stateful
// subsystems: send tables (flattened into per-class property layouts),
// string tables (updated by sparse deltas) and the entity store (a slotted
// array updated by PVS deltas decoded against a baseline). Every decoded
// event fans out through a typed dispatcher keyed by (family, id).
//
// # Basic Usage
//
// Subscribing to entities of one class:
//
//	p, err := rewind.NewMemoryParser("match.dem")
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	p.OnStatus(format.StatusFlattables, func(*dispatch.Event) {
//	    id, _ := p.ClassID("CDOTA_Unit_Hero_Axe")
//	    p.OnEntity(id, func(ev *dispatch.Event) {
//	        e := ev.Payload.(*entity.Entity)
//	        fmt.Println(e.String())
//	    })
//	})
//
//	if err := p.Run(); err != nil {
//	    return err
//	}
//
// Parsing is strictly single-goroutine. For batch work, run one parser per
// goroutine; no state is shared between parsers.
package rewind

import (
	"strings"

	"github.com/arloliu/rewind/demstream"
)

// NewFileParser parses a replay record by record from disk, holding only
// the current message in memory.
func NewFileParser(path string, opts ...Option) (*Parser, error) {
	return newParser(demstream.NewFile(), path, opts)
}

// NewMemoryParser loads the replay into memory whole; the fastest option
// when the file fits comfortably.
func NewMemoryParser(path string, opts ...Option) (*Parser, error) {
	return newParser(demstream.NewMemory(), path, opts)
}

// NewArchiveParser decompresses a whole-file archive (.dem.bz2, .dem.lz4,
// .dem.zst) into memory and parses from there.
func NewArchiveParser(path string, opts ...Option) (*Parser, error) {
	return newParser(demstream.NewArchive(), path, opts)
}

// NewAutoParser picks the stream implementation from the file name:
// archives by suffix, plain replays in memory.
func NewAutoParser(path string, opts ...Option) (*Parser, error) {
	if strings.HasSuffix(path, ".dem") {
		return NewMemoryParser(path, opts...)
	}

	return NewArchiveParser(path, opts...)
}

func newParser(stream demstream.Stream, path string, opts []Option) (*Parser, error) {
	set, err := NewSettings(opts...)
	if err != nil {
		return nil, err
	}

	p := NewParser(stream, set)
	if err := p.Open(path); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}
