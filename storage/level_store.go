package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/colorfulnotion/rwtrace/common"
	"github.com/colorfulnotion/rwtrace/log"
	"github.com/colorfulnotion/rwtrace/trie"
)

var (
	livePrefix     = []byte("v/")
	manifestPrefix = []byte("r/")

	ErrBadValue    = errors.New("stored value is not flags followed by whole words")
	ErrBadManifest = errors.New("root manifest is corrupt")
)

// LevelStore implements PersistentStorage on a PersistenceStore. Live entries
// sit under "v/"; Commit snapshots them under "r/<root>" so Open can return
// to any committed root.
type LevelStore struct {
	ps *PersistenceStore
}

var _ PersistentStorage = (*LevelStore)(nil)

func NewLevelStore(path string) (*LevelStore, error) {
	ps, err := NewPersistenceStore(path)
	if err != nil {
		return nil, err
	}
	return &LevelStore{ps: ps}, nil
}

func NewMemoryLevelStore() (*LevelStore, error) {
	return NewLevelStore("")
}

func (s *LevelStore) Close() error {
	return s.ps.Close()
}

func liveKey(key []byte) []byte {
	return append(append([]byte(nil), livePrefix...), key...)
}

// EncodeValue lays out flags (4 bytes little endian) followed by the words.
func EncodeValue(flags uint32, words [][32]byte) []byte {
	out := make([]byte, 4, 4+32*len(words))
	binary.LittleEndian.PutUint32(out, flags)
	for _, w := range words {
		out = append(out, w[:]...)
	}
	return out
}

func DecodeValue(b []byte) (uint32, [][32]byte, error) {
	if len(b) < 4 || (len(b)-4)%32 != 0 {
		return 0, nil, ErrBadValue
	}
	flags := binary.LittleEndian.Uint32(b)
	words := make([][32]byte, (len(b)-4)/32)
	for i := range words {
		copy(words[i][:], b[4+32*i:])
	}
	return flags, words, nil
}

func (s *LevelStore) Get(key []byte) ([][32]byte, bool) {
	raw, ok, err := s.ps.Get(liveKey(key))
	if err != nil {
		log.Warn(log.Storage, "Get failed", "key", fmt.Sprintf("%x", key), "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	_, words, err := DecodeValue(raw)
	if err != nil {
		log.Warn(log.Storage, "Get decode failed", "key", fmt.Sprintf("%x", key), "err", err)
		return nil, false
	}
	return words, true
}

// GetWithFlags is Get plus the stored flags.
func (s *LevelStore) GetWithFlags(key []byte) (uint32, [][32]byte, bool, error) {
	raw, ok, err := s.ps.Get(liveKey(key))
	if err != nil || !ok {
		return 0, nil, false, err
	}
	flags, words, err := DecodeValue(raw)
	if err != nil {
		return 0, nil, false, err
	}
	return flags, words, true, nil
}

func (s *LevelStore) Update(key []byte, flags uint32, words [][32]byte) error {
	log.Trace(log.Storage, "Update", "key", fmt.Sprintf("%x", key), "flags", flags, "words", len(words))
	return s.ps.Put(liveKey(key), EncodeValue(flags, words))
}

func (s *LevelStore) Remove(key []byte) error {
	log.Trace(log.Storage, "Remove", "key", fmt.Sprintf("%x", key))
	return s.ps.Delete(liveKey(key))
}

// entries returns the live (key, value) pairs sorted by key.
func (s *LevelStore) entries() ([][2][]byte, error) {
	pairs, err := s.ps.GetWithPrefix(livePrefix)
	if err != nil {
		return nil, err
	}
	for i := range pairs {
		pairs[i][0] = pairs[i][0][len(livePrefix):]
	}
	return pairs, nil
}

func leafData(key, value []byte) []byte {
	out := make([]byte, 0, 4+len(key)+len(value))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(key)))
	out = append(out, key...)
	return append(out, value...)
}

func (s *LevelStore) tree() (*trie.WellBalancedTree, [][2][]byte, error) {
	pairs, err := s.entries()
	if err != nil {
		return nil, nil, err
	}
	leaves := make([][]byte, len(pairs))
	for i, kv := range pairs {
		leaves[i] = leafData(kv[0], kv[1])
	}
	return trie.NewWellBalancedTree(leaves), pairs, nil
}

// ComputeRoot returns the well-balanced merkle root over the live entries
// in key order. The empty store has the zero root.
func (s *LevelStore) ComputeRoot() common.Hash {
	t, _, err := s.tree()
	if err != nil {
		log.Error(log.Storage, "ComputeRoot failed", "err", err)
		return common.Hash{}
	}
	return t.RootHash()
}

// Commit computes the root and records a manifest for it.
func (s *LevelStore) Commit() (common.Hash, error) {
	t, pairs, err := s.tree()
	if err != nil {
		return common.Hash{}, err
	}
	root := t.RootHash()
	var manifest bytes.Buffer
	for _, kv := range pairs {
		manifest.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(kv[0]))))
		manifest.Write(kv[0])
		manifest.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(kv[1]))))
		manifest.Write(kv[1])
	}
	mk := append(append([]byte(nil), manifestPrefix...), root[:]...)
	if err := s.ps.Put(mk, manifest.Bytes()); err != nil {
		return common.Hash{}, err
	}
	log.Debug(log.Storage, "Commit", "root", root.Short(), "entries", len(pairs))
	return root, nil
}

func decodeManifest(b []byte) ([][2][]byte, error) {
	var out [][2][]byte
	for len(b) > 0 {
		var kv [2][]byte
		for j := 0; j < 2; j++ {
			if len(b) < 4 {
				return nil, ErrBadManifest
			}
			n := binary.LittleEndian.Uint32(b)
			b = b[4:]
			if uint32(len(b)) < n {
				return nil, ErrBadManifest
			}
			kv[j] = b[:n]
			b = b[n:]
		}
		out = append(out, kv)
	}
	return out, nil
}

// Open replaces the live entries with those of a committed root. The zero
// root always opens, as the empty store.
func (s *LevelStore) Open(root common.Hash) bool {
	var entries [][2][]byte
	if !root.IsZero() {
		mk := append(append([]byte(nil), manifestPrefix...), root[:]...)
		raw, ok, err := s.ps.Get(mk)
		if err != nil || !ok {
			return false
		}
		if entries, err = decodeManifest(raw); err != nil {
			log.Error(log.Storage, "Open", "root", root.Short(), "err", err)
			return false
		}
	}
	live, err := s.ps.GetWithPrefix(livePrefix)
	if err != nil {
		return false
	}
	deletes := make([][]byte, len(live))
	for i, kv := range live {
		deletes[i] = kv[0]
	}
	puts := make([][2][]byte, len(entries))
	for i, kv := range entries {
		puts[i] = [2][]byte{liveKey(kv[0]), kv[1]}
	}
	if err := s.ps.WriteBatch(deletes, puts); err != nil {
		log.Error(log.Storage, "Open", "root", root.Short(), "err", err)
		return false
	}
	return true
}

// Proof returns [index||treeLen, leaf data, sibling hashes leaf to root...].
func (s *LevelStore) Proof(key []byte) ([][]byte, bool) {
	t, pairs, err := s.tree()
	if err != nil {
		return nil, false
	}
	idx := sort.Search(len(pairs), func(i int) bool { return bytes.Compare(pairs[i][0], key) >= 0 })
	if idx == len(pairs) || !bytes.Equal(pairs[idx][0], key) {
		return nil, false
	}
	_, path, err := t.Trace(idx)
	if err != nil {
		return nil, false
	}
	header := binary.LittleEndian.AppendUint32(nil, uint32(idx))
	header = binary.LittleEndian.AppendUint32(header, uint32(len(pairs)))
	proof := [][]byte{header, leafData(pairs[idx][0], pairs[idx][1])}
	for _, h := range path {
		proof = append(proof, h.Bytes())
	}
	return proof, true
}

// VerifyProof checks a Proof result against root for the given key.
func VerifyProof(root common.Hash, key []byte, proof [][]byte) (flags uint32, words [][32]byte, ok bool) {
	if len(proof) < 2 || len(proof[0]) != 8 {
		return 0, nil, false
	}
	idx := int(binary.LittleEndian.Uint32(proof[0]))
	n := int(binary.LittleEndian.Uint32(proof[0][4:]))
	leaf := proof[1]
	if len(leaf) < 4 {
		return 0, nil, false
	}
	kl := int(binary.LittleEndian.Uint32(leaf))
	if len(leaf) < 4+kl || !bytes.Equal(leaf[4:4+kl], key) {
		return 0, nil, false
	}
	path := make([]common.Hash, 0, len(proof)-2)
	for _, p := range proof[2:] {
		path = append(path, common.BytesToHash(p))
	}
	_, verified, err := trie.VerifyWBT(n, idx, root, common.ComputeLeafHash(leaf), path)
	if err != nil || !verified {
		return 0, nil, false
	}
	flags, words, err = DecodeValue(leaf[4+kl:])
	if err != nil {
		return 0, nil, false
	}
	return flags, words, true
}
