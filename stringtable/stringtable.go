// Package stringtable maintains the replay's named key/value tables and
// their sparse delta protocol, including the LZ-style back-reference key
// history.
package stringtable

import (
	"fmt"
	"math/bits"

	"github.com/arloliu/rewind/bitstream"
	"github.com/arloliu/rewind/errs"
	"github.com/arloliu/rewind/internal/hash"
	"github.com/arloliu/rewind/wire"
)

const (
	// keyHistorySize is the capacity of the rolling key history a delta
	// can back-reference into.
	keyHistorySize = 32
	// maxKeySize bounds a single key.
	maxKeySize = 0x400 // 1024
	// maxValueSize bounds a single value.
	maxValueSize = 0x4000 // 16384

	// anonymousKey is recorded for entries that arrive without a name.
	anonymousKey = "anonymous"
)

// Entry is one string table row: a non-unique key, a stable insertion
// index and the value bytes.
type Entry struct {
	Key   string
	Index int32
	Value []byte
}

// StringTable is a networked key/value table. Entries arrive through the
// delta protocol and are addressable both by key and by index; keys are
// lookup-only and may repeat.
type StringTable struct {
	// Name of the table.
	Name string
	// MaxEntries bounds the index space; it fixes the width of explicit
	// index fields in deltas.
	MaxEntries int32
	// UserDataFixed marks values as fixed-size.
	UserDataFixed bool
	// UserDataSize is the fixed value size in bytes.
	UserDataSize int32
	// UserDataSizeBits is the fixed value size in bits.
	UserDataSizeBits int32
	// Flags mirrors the wire flags.
	Flags int32

	entries []Entry
	byIndex map[int32]int
	byKey   map[uint64]int
}

// New creates an empty table from its create-record metadata. The initial
// delta carried by the record is not applied here; see ApplyDelta.
func New(msg *wire.CreateStringTable) *StringTable {
	return &StringTable{
		Name:             msg.Name,
		MaxEntries:       msg.MaxEntries,
		UserDataFixed:    msg.UserDataFixedSize,
		UserDataSize:     msg.UserDataSize,
		UserDataSizeBits: msg.UserDataSizeBits,
		Flags:            msg.Flags,
		byIndex:          make(map[int32]int, 64),
		byKey:            make(map[uint64]int, 64),
	}
}

// Size returns the number of entries.
func (t *StringTable) Size() int {
	return len(t.entries)
}

// Entries returns the entries in arrival order. The slice is shared;
// callers must not modify it.
func (t *StringTable) Entries() []Entry {
	return t.entries
}

// Get returns the value stored under the given key.
func (t *StringTable) Get(key string) ([]byte, error) {
	i, ok := t.lookupKey(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q in table %s", errs.ErrUnknownKey, key, t.Name)
	}

	return t.entries[i].Value, nil
}

// GetIndex returns the value stored at the given index.
func (t *StringTable) GetIndex(index int32) ([]byte, error) {
	i, ok := t.byIndex[index]
	if !ok {
		return nil, fmt.Errorf("%w: %d in table %s", errs.ErrUnknownIndex, index, t.Name)
	}

	return t.entries[i].Value, nil
}

// KeyAt returns the key stored at the given index.
func (t *StringTable) KeyAt(index int32) (string, error) {
	i, ok := t.byIndex[index]
	if !ok {
		return "", fmt.Errorf("%w: %d in table %s", errs.ErrUnknownIndex, index, t.Name)
	}

	return t.entries[i].Key, nil
}

// Has reports whether the key exists.
func (t *StringTable) Has(key string) bool {
	_, ok := t.lookupKey(key)
	return ok
}

// Set updates the value under key, inserting it at index Size() when the
// key is new. Used when replaying full-packet snapshots.
func (t *StringTable) Set(key string, value []byte) {
	if i, ok := t.lookupKey(key); ok {
		t.entries[i].Value = value
		return
	}

	t.insert(key, int32(len(t.entries)), value)
}

// lookupKey resolves a key through the hash index, guarding against
// collisions by comparing the stored key.
func (t *StringTable) lookupKey(key string) (int, bool) {
	i, ok := t.byKey[hash.Key(key)]
	if !ok || t.entries[i].Key != key {
		return 0, false
	}

	return i, true
}

func (t *StringTable) insert(key string, index int32, value []byte) {
	pos := len(t.entries)
	t.entries = append(t.entries, Entry{Key: key, Index: index, Value: value})
	t.byIndex[index] = pos

	// First arrival wins key lookup, matching the original multi-index.
	h := hash.Key(key)
	if _, exists := t.byKey[h]; !exists {
		t.byKey[h] = pos
	}
}

// indexBits returns the width of an explicit index field.
func (t *StringTable) indexBits() int {
	if t.MaxEntries <= 1 {
		return 0
	}

	return bits.Len32(uint32(t.MaxEntries - 1))
}

// ApplyDelta decodes count sparse updates from data.
//
// Each update carries an index (incremental or explicit), an optional key
// (fresh or assembled from a 5-bit history reference plus tail) and an
// optional value (fixed-size or 14-bit-length-prefixed). A malformed
// history reference falls back to a fresh key read; that recovery is
// deliberate and mirrors the engine.
func (t *StringTable) ApplyDelta(count int32, data []byte) error {
	b, err := bitstream.New(data)
	if err != nil {
		return err
	}

	// Rotation hint; decoded for position, only consulted to reject
	// impossible back-references in full snapshots.
	full, err := b.Read(1)
	if err != nil {
		return err
	}

	index := int32(-1)
	history := make([]string, 0, keyHistorySize)

	for i := int32(0); i < count; i++ {
		increment, err := b.Read(1)
		if err != nil {
			return err
		}
		if increment != 0 {
			index++
		} else {
			v, err := b.Read(t.indexBits())
			if err != nil {
				return err
			}
			index = int32(v)
		}

		hasName := false
		var key string

		nameBit, err := b.Read(1)
		if err != nil {
			return err
		}
		if nameBit != 0 {
			hasName = true

			backRef, err := b.Read(1)
			if err != nil {
				return err
			}
			if full != 0 && backRef != 0 {
				// The referenced key cannot have been seen yet.
				return fmt.Errorf("%w: table %s entry %d", errs.ErrKeyMissing, t.Name, i)
			}

			substring, err := b.Read(1)
			if err != nil {
				return err
			}

			if substring != 0 {
				histIndex, err := b.Read(5)
				if err != nil {
					return err
				}
				prefixLen, err := b.Read(5)
				if err != nil {
					return err
				}
				if histIndex >= keyHistorySize || prefixLen >= maxKeySize {
					return fmt.Errorf("%w: history %d prefix %d", errs.ErrMalformedSubstring, histIndex, prefixLen)
				}

				if int(histIndex) >= len(history) {
					// Forgiving path: discard the reference, read fresh.
					key, err = b.ReadString(maxKeySize)
					if err != nil {
						return err
					}
				} else {
					prefix := history[histIndex]
					if int(prefixLen) < len(prefix) {
						prefix = prefix[:prefixLen]
					}
					tail, err := b.ReadString(maxKeySize - int(prefixLen))
					if err != nil {
						return err
					}
					key = prefix + tail
				}
			} else {
				key, err = b.ReadString(maxKeySize)
				if err != nil {
					return err
				}
			}

			if len(history) >= keyHistorySize {
				history = history[1:]
			}
			history = append(history, key)
		}

		hasValue := false
		var value []byte

		valueBit, err := b.Read(1)
		if err != nil {
			return err
		}
		if valueBit != 0 {
			hasValue = true

			var length, sizeBits int32
			if t.UserDataFixed {
				length = t.UserDataSize
				sizeBits = t.UserDataSizeBits
			} else {
				v, err := b.Read(14)
				if err != nil {
					return err
				}
				length = int32(v)
				sizeBits = length * 8
			}

			if length > maxValueSize {
				return fmt.Errorf("%w: %d bytes in table %s", errs.ErrValueOverflow, length, t.Name)
			}

			value = make([]byte, length)
			if err := b.ReadBits(value, int(sizeBits)); err != nil {
				return err
			}
		}

		switch {
		case hasName && t.Has(key):
			pos, _ := t.lookupKey(key)
			t.entries[pos].Value = value
		case hasName:
			t.insert(key, index, value)
		case hasValue && t.hasIndex(index):
			t.entries[t.byIndex[index]].Value = value
		default:
			t.insert(anonymousKey, index, value)
		}
	}

	return nil
}

func (t *StringTable) hasIndex(index int32) bool {
	_, ok := t.byIndex[index]
	return ok
}
