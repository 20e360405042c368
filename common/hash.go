package common

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

func ComputeHash(data []byte) []byte {
	hash := blake2b.Sum256(data)
	return hash[:]
}

func Blake2Hash(data []byte) Hash {
	return BytesToHash(ComputeHash(data))
}

func Keccak256(data ...[]byte) Hash {
	hash := sha3.NewLegacyKeccak256()
	for _, d := range data {
		hash.Write(d)
	}
	return BytesToHash(hash.Sum(nil))
}

// prefixed hashes keep leaves and inner nodes of a merkle tree apart
func ComputeLeafHash(data []byte) Hash {
	h, _ := blake2b.New256(nil)
	h.Write([]byte("leaf"))
	h.Write(data)
	return Hash(h.Sum(nil))
}

func ComputeNodeHash(left, right []byte) Hash {
	h, _ := blake2b.New256(nil)
	h.Write([]byte("node"))
	h.Write(left)
	h.Write(right)
	return Hash(h.Sum(nil))
}

func Uint64ToBytes(val uint64) []byte {
	bytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(bytes, val)
	return bytes
}

func Uint32ToBytes(val uint32) []byte {
	bytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(bytes, val)
	return bytes
}

func BytesToUint32(data []byte) uint32 {
	if len(data) < 4 {
		panic("BytesToUint32: byte slice too short")
	}
	return binary.LittleEndian.Uint32(data)
}

// Uint64ToWord stores v little endian in the low bytes of a 32 byte word.
func Uint64ToWord(v uint64) [32]byte {
	var w [32]byte
	binary.LittleEndian.PutUint64(w[:8], v)
	return w
}

// WordToUint64 reads the low 8 bytes of a word. ok is false when any
// higher byte is set.
func WordToUint64(w [32]byte) (v uint64, ok bool) {
	for _, b := range w[8:] {
		if b != 0 {
			return binary.LittleEndian.Uint64(w[:8]), false
		}
	}
	return binary.LittleEndian.Uint64(w[:8]), true
}
