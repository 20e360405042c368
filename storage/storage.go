package storage

import "github.com/colorfulnotion/rwtrace/common"

// PersistentStorage is the merkleized key/value store that nested executions
// share with their parent. Values are ordered sequences of 32-byte words;
// flags is an opaque bitmask describing how the words are compressed.
type PersistentStorage interface {
	// Open switches the live view to a previously committed root.
	Open(root common.Hash) bool
	ComputeRoot() common.Hash
	Get(key []byte) ([][32]byte, bool)
	Update(key []byte, flags uint32, words [][32]byte) error
	Remove(key []byte) error
	Proof(key []byte) ([][]byte, bool)
}
