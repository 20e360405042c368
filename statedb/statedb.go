package statedb

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/holiman/uint256"

	"github.com/colorfulnotion/rwtrace/common"
	"github.com/colorfulnotion/rwtrace/exec"
	"github.com/colorfulnotion/rwtrace/log"
	"github.com/colorfulnotion/rwtrace/rwerrors"
	"github.com/colorfulnotion/rwtrace/storage"
)

const preimageCacheSize = 256

// Key spaces in the backing store.
var (
	accountPrefix  = []byte("a")
	storagePrefix  = []byte("s")
	preimagePrefix = []byte("p")
)

func accountKey(addr common.Address) []byte {
	return append(append([]byte(nil), accountPrefix...), addr.Bytes()...)
}

func storageKey(addr common.Address, slot common.Hash) []byte {
	k := append(append([]byte(nil), storagePrefix...), addr.Bytes()...)
	return append(k, slot.Bytes()...)
}

func preimageKey(hash common.Hash) []byte {
	return append(append([]byte(nil), preimagePrefix...), hash.Bytes()...)
}

// Engine executes rWASM code for ExecHash. Rows it emits must take counters
// from req.Counter and carry req.CallID.
type Engine interface {
	Run(ctx context.Context, req *exec.ExecRequest, code []byte, host exec.Host) (*exec.ExecResult, error)
}

// Checkpoint identifies an open transactional boundary.
type Checkpoint int

type journalEntry struct {
	key     []byte
	prev    [][32]byte
	existed bool
}

// Log is an event emitted by a contract.
type Log struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    []byte         `json:"data"`
}

// StateDB is the account manager behind platform calls. Every write is
// journaled so that nested checkpoints can be rolled back.
type StateDB struct {
	store     storage.PersistentStorage
	preimages *lru.Cache[common.Hash, []byte]
	engine    Engine

	journal     []journalEntry
	checkpoints []int // journal length at each open checkpoint
	logs        []Log
	logMarks    []int
}

var _ exec.Host = (*StateDB)(nil)

func NewStateDB(store storage.PersistentStorage, engine Engine) *StateDB {
	return &StateDB{
		store:     store,
		preimages: lru.NewCache[common.Hash, []byte](preimageCacheSize),
		engine:    engine,
	}
}

// SetEngine installs the executor used by ExecHash.
func (s *StateDB) SetEngine(engine Engine) {
	s.engine = engine
}

// Root is the commitment over the current state.
func (s *StateDB) Root() common.Hash {
	return s.store.ComputeRoot()
}

func flagsFor(key []byte) uint32 {
	if len(key) > 0 && key[0] == accountPrefix[0] {
		return AccountCompressionFlags
	}
	return 0
}

func (s *StateDB) set(key []byte, words [][32]byte) error {
	prev, existed := s.store.Get(key)
	if err := s.store.Update(key, flagsFor(key), words); err != nil {
		return err
	}
	if len(s.checkpoints) > 0 {
		s.journal = append(s.journal, journalEntry{key: key, prev: prev, existed: existed})
	}
	return nil
}

func (s *StateDB) undo(e journalEntry) error {
	if e.key[0] == preimagePrefix[0] {
		s.preimages.Remove(common.BytesToHash(e.key[1:]))
	}
	if !e.existed {
		return s.store.Remove(e.key)
	}
	return s.store.Update(e.key, flagsFor(e.key), e.prev)
}

// Checkpoint opens a nested boundary.
func (s *StateDB) Checkpoint() Checkpoint {
	s.checkpoints = append(s.checkpoints, len(s.journal))
	s.logMarks = append(s.logMarks, len(s.logs))
	return Checkpoint(len(s.checkpoints) - 1)
}

// Commit closes the innermost checkpoint and keeps its writes. They stay
// revertible by any enclosing checkpoint.
func (s *StateDB) Commit() error {
	n := len(s.checkpoints)
	if n == 0 {
		return rwerrors.ErrNoCheckpoint
	}
	s.checkpoints = s.checkpoints[:n-1]
	s.logMarks = s.logMarks[:n-1]
	if n == 1 {
		s.journal = s.journal[:0]
	}
	return nil
}

// Rollback reverts every write made since cp and closes cp together with
// the checkpoints nested in it.
func (s *StateDB) Rollback(cp Checkpoint) error {
	if cp < 0 || int(cp) >= len(s.checkpoints) {
		return rwerrors.ErrNoCheckpoint
	}
	mark := s.checkpoints[cp]
	for i := len(s.journal) - 1; i >= mark; i-- {
		if err := s.undo(s.journal[i]); err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
	}
	s.journal = s.journal[:mark]
	s.logs = s.logs[:s.logMarks[cp]]
	s.checkpoints = s.checkpoints[:cp]
	s.logMarks = s.logMarks[:cp]
	log.Trace(log.StateDB, "Rollback", "checkpoint", int(cp), "journal", mark)
	return nil
}

// Account loads addr. Unknown addresses yield the empty account and ok=false.
func (s *StateDB) Account(addr common.Address) (*Account, bool, error) {
	words, ok := s.store.Get(accountKey(addr))
	if !ok {
		return NewAccount(addr), false, nil
	}
	acc, err := accountFromWords(addr, words)
	if err != nil {
		return nil, false, fmt.Errorf("account %s: %w", addr, err)
	}
	return acc, true, nil
}

func (s *StateDB) WriteAccount(acc *Account) error {
	f := acc.Fields()
	return s.set(accountKey(acc.Address), f[:])
}

func encodePreimage(data []byte) [][32]byte {
	words := make([][32]byte, 1+(len(data)+31)/32)
	words[0] = common.Uint64ToWord(uint64(len(data)))
	for i := 0; i*32 < len(data); i++ {
		copy(words[1+i][:], data[i*32:])
	}
	return words
}

func decodePreimage(words [][32]byte) ([]byte, bool) {
	if len(words) == 0 {
		return nil, false
	}
	n, ok := common.WordToUint64(words[0])
	if !ok || n > uint64(32*(len(words)-1)) {
		return nil, false
	}
	out := make([]byte, 0, 32*(len(words)-1))
	for _, w := range words[1:] {
		out = append(out, w[:]...)
	}
	return out[:n], true
}

// Preimage returns the bytes stored under hash.
func (s *StateDB) Preimage(hash common.Hash) ([]byte, bool) {
	if data, ok := s.preimages.Get(hash); ok {
		return data, true
	}
	words, ok := s.store.Get(preimageKey(hash))
	if !ok {
		return nil, false
	}
	data, ok := decodePreimage(words)
	if !ok {
		log.Warn(log.StateDB, "Preimage: corrupt entry", "hash", hash)
		return nil, false
	}
	s.preimages.Add(hash, data)
	return data, true
}

func (s *StateDB) PreimageSize(hash common.Hash) (uint32, bool) {
	data, ok := s.Preimage(hash)
	if !ok {
		return 0, false
	}
	return uint32(len(data)), true
}

// UpdatePreimage stores data under the hash the given account field uses:
// keccak for source code, blake2b for rWASM code.
func (s *StateDB) UpdatePreimage(field int, data []byte) (common.Hash, error) {
	var hash common.Hash
	switch field {
	case AccountSourceCodeHashField:
		hash = common.Keccak256(data)
	case AccountRwasmCodeHashField:
		hash = common.Blake2Hash(data)
	default:
		return common.Hash{}, fmt.Errorf("field %d holds no preimage: %w", field, rwerrors.ErrBadAccountFields)
	}
	if err := s.set(preimageKey(hash), encodePreimage(data)); err != nil {
		return common.Hash{}, err
	}
	s.preimages.Add(hash, append([]byte(nil), data...))
	return hash, nil
}

// UpdateBytecode deploys source and rwasm code to acc and writes it.
func (s *StateDB) UpdateBytecode(acc *Account, source, rwasm []byte) error {
	srcHash, err := s.UpdatePreimage(AccountSourceCodeHashField, source)
	if err != nil {
		return err
	}
	rwasmHash, err := s.UpdatePreimage(AccountRwasmCodeHashField, rwasm)
	if err != nil {
		return err
	}
	acc.SourceCodeSize, acc.SourceCodeHash = uint64(len(source)), srcHash
	acc.RwasmCodeSize, acc.RwasmCodeHash = uint64(len(rwasm)), rwasmHash
	return s.WriteAccount(acc)
}

// Storage implements exec.Host.
func (s *StateDB) Storage(addr common.Address, slot common.Hash) (common.Hash, bool, error) {
	words, ok := s.store.Get(storageKey(addr, slot))
	if !ok {
		return common.Hash{}, false, nil
	}
	if len(words) != 1 {
		return common.Hash{}, false, fmt.Errorf("slot %s of %s holds %d words: %w", slot.Short(), addr, len(words), storage.ErrBadValue)
	}
	return words[0], true, nil
}

// WriteStorage implements exec.Host.
func (s *StateDB) WriteStorage(addr common.Address, slot common.Hash, value common.Hash) error {
	return s.set(storageKey(addr, slot), [][32]byte{value})
}

// EmitLog records an event. Logs are discarded by Rollback like any write.
func (s *StateDB) EmitLog(addr common.Address, data []byte, topics []common.Hash) {
	s.logs = append(s.logs, Log{Address: addr, Topics: topics, Data: append([]byte(nil), data...)})
}

func (s *StateDB) Logs() []Log {
	return s.logs
}

// CreateAccount deploys a new account funded by caller. A nil salt derives
// the CREATE address from the caller nonce, otherwise CREATE2 is used with
// the keccak hash of the init code.
func (s *StateDB) CreateAccount(caller *Account, amount *uint256.Int, salt *uint256.Int, initCodeHash common.Hash) (*Account, error) {
	if caller.Balance.Lt(amount) {
		return nil, rwerrors.ErrInsufficientBalance
	}
	nonce, err := caller.IncNonce()
	if err != nil {
		return nil, err
	}
	var addr common.Address
	if salt == nil {
		addr = CreateAddress(caller.Address, nonce)
	} else {
		addr = CreateAddress2(caller.Address, salt, initCodeHash)
	}
	callee, _, err := s.Account(addr)
	if err != nil {
		caller.Nonce = nonce
		return nil, err
	}
	if callee.IsNotEmpty() {
		caller.Nonce = nonce
		return nil, fmt.Errorf("%w: %s", rwerrors.ErrCreateCollision, addr)
	}
	if err := Transfer(caller, callee, amount); err != nil {
		caller.Nonce = nonce
		return nil, err
	}
	callee.Nonce = 1
	if err := s.WriteAccount(caller); err != nil {
		return nil, err
	}
	if err := s.WriteAccount(callee); err != nil {
		return nil, err
	}
	log.Debug(log.StateDB, "CreateAccount", "caller", caller.Address, "address", addr, "create2", salt != nil)
	return callee, nil
}

// ExecHash implements exec.Host. The code is looked up by its rWASM hash and
// run inside a checkpoint that is committed only on a zero exit code. Missing
// code is reported through the exit code, not as an error.
func (s *StateDB) ExecHash(ctx context.Context, req *exec.ExecRequest) (*exec.ExecResult, error) {
	if s.engine == nil {
		return nil, rwerrors.ErrEngineNotAvailable
	}
	code, ok := s.Preimage(req.CodeHash)
	if !ok {
		log.Debug(log.StateDB, "ExecHash: unknown code", "hash", req.CodeHash)
		return &exec.ExecResult{ExitCode: rwerrors.ExitPanic}, nil
	}
	cp := s.Checkpoint()
	res, err := s.engine.Run(ctx, req, code, s)
	if err != nil {
		if rerr := s.Rollback(cp); rerr != nil {
			return nil, fmt.Errorf("%w (rollback: %v)", err, rerr)
		}
		return nil, err
	}
	if !res.ExitCode.IsOk() {
		if err := s.Rollback(cp); err != nil {
			return nil, err
		}
		return res, nil
	}
	if err := s.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}
