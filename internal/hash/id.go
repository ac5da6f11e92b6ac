package hash

import "github.com/cespare/xxhash/v2"

// Key computes the xxHash64 of the given string. String table key lookup
// keys its map on this rather than on the string itself.
func Key(data string) uint64 {
	return xxhash.Sum64String(data)
}

// Bytes computes the xxHash64 of the given byte slice.
func Bytes(data []byte) uint64 {
	return xxhash.Sum64(data)
}
