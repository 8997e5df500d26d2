package util

import (
	"encoding/binary"

	"github.com/OneOfOne/xxhash"
)

// HashCode 将一个键进行Hash
func HashCode(key []byte) uint64 {
	h := xxhash.New64()
	h.Write(key)
	return h.Sum64()
}

// HashUint64 hashes a fixed 8-byte key and downcasts to 32 bits, which is
// what the extendible hash directory masks against.
func HashUint64(key uint64) uint32 {
	var buff [8]byte
	binary.LittleEndian.PutUint64(buff[:], key)
	return uint32(HashCode(buff[:]))
}
