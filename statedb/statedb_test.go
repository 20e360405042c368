package statedb

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/rwtrace/common"
	"github.com/colorfulnotion/rwtrace/exec"
	"github.com/colorfulnotion/rwtrace/rwerrors"
	"github.com/colorfulnotion/rwtrace/storage"
)

func newTestStateDB(t *testing.T, engine Engine) *StateDB {
	t.Helper()
	store, err := storage.NewMemoryLevelStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewStateDB(store, engine)
}

func TestAccountFieldsRoundTrip(t *testing.T) {
	acc := NewAccount(common.HexToAddress("0x1111111111111111111111111111111111111111"))
	acc.Balance = *uint256.MustFromHex("0xffffffffffffffffffffffffffffffff0000000000000001")
	acc.Nonce = 7
	acc.SourceCodeSize = 12
	acc.RwasmCodeSize = 34
	acc.RwasmCodeHash = common.Blake2Hash([]byte("code"))

	f := acc.Fields()
	assert.Equal(t, byte(1), f[AccountBalanceField][0], "balance is little endian")
	assert.Equal(t, byte(7), f[AccountNonceField][0])
	assert.Equal(t, acc, AccountFromFields(acc.Address, f))
}

func TestEmptyAccount(t *testing.T) {
	acc := NewAccount(common.Address{})
	assert.False(t, acc.IsNotEmpty())
	assert.Equal(t, common.HexToHash("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"), acc.SourceCodeHash)
	assert.Equal(t, uint32(0b1001), AccountCompressionFlags)

	acc.Nonce = 1
	assert.True(t, acc.IsNotEmpty())
}

func TestIncNonce(t *testing.T) {
	acc := NewAccount(common.Address{})
	prev, err := acc.IncNonce()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), prev)
	assert.Equal(t, uint64(1), acc.Nonce)

	acc.Nonce = ^uint64(0) - 1
	_, err = acc.IncNonce()
	assert.ErrorIs(t, err, rwerrors.ErrNonceOverflow)
	assert.Equal(t, ^uint64(0)-1, acc.Nonce)
}

func TestTransfer(t *testing.T) {
	from := NewAccount(common.Address{1})
	to := NewAccount(common.Address{2})
	from.Balance.SetUint64(100)

	require.NoError(t, Transfer(from, to, uint256.NewInt(40)))
	assert.Equal(t, uint64(60), from.Balance.Uint64())
	assert.Equal(t, uint64(40), to.Balance.Uint64())

	assert.ErrorIs(t, Transfer(from, to, uint256.NewInt(61)), rwerrors.ErrInsufficientBalance)

	to.Balance.SetAllOne()
	assert.ErrorIs(t, Transfer(from, to, uint256.NewInt(1)), rwerrors.ErrOverflowPayment)
	assert.Equal(t, uint64(60), from.Balance.Uint64(), "failed transfer leaves the sender alone")
}

func TestAccountPersistence(t *testing.T) {
	sdb := newTestStateDB(t, nil)
	addr := common.Address{0xaa}

	acc, ok, err := sdb.Account(addr)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, acc.IsNotEmpty())

	acc.Balance.SetUint64(5)
	acc.Nonce = 3
	require.NoError(t, sdb.WriteAccount(acc))

	got, ok, err := sdb.Account(addr)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, acc, got)
}

func TestCheckpointRollback(t *testing.T) {
	sdb := newTestStateDB(t, nil)
	addr := common.Address{0x01}
	slot := common.Hash{0x02}

	require.NoError(t, sdb.WriteStorage(addr, slot, common.Hash{0x10}))
	root := sdb.Root()

	outer := sdb.Checkpoint()
	require.NoError(t, sdb.WriteStorage(addr, slot, common.Hash{0x20}))
	inner := sdb.Checkpoint()
	require.NoError(t, sdb.WriteStorage(addr, common.Hash{0x03}, common.Hash{0x30}))
	sdb.EmitLog(addr, []byte("hi"), nil)
	require.NoError(t, sdb.Rollback(inner))

	v, ok, err := sdb.Storage(addr, slot)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, common.Hash{0x20}, v)
	_, ok, _ = sdb.Storage(addr, common.Hash{0x03})
	assert.False(t, ok)
	assert.Empty(t, sdb.Logs())

	require.NoError(t, sdb.Rollback(outer))
	v, _, _ = sdb.Storage(addr, slot)
	assert.Equal(t, common.Hash{0x10}, v)
	assert.Equal(t, root, sdb.Root())

	assert.ErrorIs(t, sdb.Commit(), rwerrors.ErrNoCheckpoint)
	assert.ErrorIs(t, sdb.Rollback(outer), rwerrors.ErrNoCheckpoint)
}

func TestNestedCommitStaysRevertible(t *testing.T) {
	sdb := newTestStateDB(t, nil)
	addr := common.Address{0x01}

	outer := sdb.Checkpoint()
	sdb.Checkpoint()
	require.NoError(t, sdb.WriteStorage(addr, common.Hash{}, common.Hash{0x01}))
	require.NoError(t, sdb.Commit())
	require.NoError(t, sdb.Rollback(outer))

	_, ok, err := sdb.Storage(addr, common.Hash{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPreimages(t *testing.T) {
	sdb := newTestStateDB(t, nil)
	code := make([]byte, 70)
	for i := range code {
		code[i] = byte(i)
	}
	hash, err := sdb.UpdatePreimage(AccountRwasmCodeHashField, code)
	require.NoError(t, err)
	assert.Equal(t, common.Blake2Hash(code), hash)

	size, ok := sdb.PreimageSize(hash)
	assert.True(t, ok)
	assert.Equal(t, uint32(70), size)

	sdb.preimages.Purge()
	got, ok := sdb.Preimage(hash)
	assert.True(t, ok)
	assert.Equal(t, code, got)

	_, err = sdb.UpdatePreimage(AccountNonceField, code)
	assert.ErrorIs(t, err, rwerrors.ErrBadAccountFields)
}

func TestCreateAccount(t *testing.T) {
	sdb := newTestStateDB(t, nil)
	caller := NewAccount(common.HexToAddress("0x6ac7ea33f8831ea9dcc53393aaa88b25a785dbf0"))
	caller.Balance.SetUint64(1000)

	callee, err := sdb.CreateAccount(caller, uint256.NewInt(10), nil, common.Hash{})
	require.NoError(t, err)
	// CREATE address of the first deployment from this sender.
	assert.Equal(t, common.HexToAddress("0xcd234a471b72ba2f1ccf0a70fcaba648a5eecd8d"), callee.Address)
	assert.Equal(t, uint64(1), callee.Nonce)
	assert.Equal(t, uint64(10), callee.Balance.Uint64())
	assert.Equal(t, uint64(990), caller.Balance.Uint64())
	assert.Equal(t, uint64(1), caller.Nonce)

	stored, ok, err := sdb.Account(callee.Address)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, callee, stored)

	salt := uint256.NewInt(42)
	initHash := common.Keccak256([]byte{0x00})
	c2, err := sdb.CreateAccount(caller, uint256.NewInt(0), salt, initHash)
	require.NoError(t, err)
	assert.Equal(t, CreateAddress2(caller.Address, salt, initHash), c2.Address)

	_, err = sdb.CreateAccount(caller, uint256.NewInt(0), salt, initHash)
	assert.ErrorIs(t, err, rwerrors.ErrCreateCollision)
	assert.Equal(t, uint64(2), caller.Nonce, "collision keeps the caller nonce")

	_, err = sdb.CreateAccount(caller, uint256.NewInt(5000), nil, common.Hash{})
	assert.ErrorIs(t, err, rwerrors.ErrInsufficientBalance)
}

type scriptedEngine struct {
	exit rwerrors.ExitCode
	err  error
}

func (e *scriptedEngine) Run(ctx context.Context, req *exec.ExecRequest, code []byte, host exec.Host) (*exec.ExecResult, error) {
	if err := host.WriteStorage(req.Caller, common.Hash{0x01}, common.BytesToHash(code)); err != nil {
		return nil, err
	}
	if e.err != nil {
		return nil, e.err
	}
	return &exec.ExecResult{Output: []byte("out"), ExitCode: e.exit, FuelUsed: 3}, nil
}

func TestExecHash(t *testing.T) {
	engine := &scriptedEngine{}
	sdb := newTestStateDB(t, engine)
	hash, err := sdb.UpdatePreimage(AccountRwasmCodeHashField, []byte{0xde, 0xad})
	require.NoError(t, err)
	caller := common.Address{0x77}
	req := &exec.ExecRequest{CodeHash: hash, Caller: caller, Counter: exec.NewCounter()}

	res, err := sdb.ExecHash(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.ExitCode.IsOk())
	assert.Equal(t, []byte("out"), res.Output)
	_, ok, _ := sdb.Storage(caller, common.Hash{0x01})
	assert.True(t, ok, "successful run is committed")

	other := common.Address{0x78}
	engine.exit = rwerrors.ExitPanic
	req.Caller = other
	res, err = sdb.ExecHash(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, rwerrors.ExitPanic, res.ExitCode)
	_, ok, _ = sdb.Storage(other, common.Hash{0x01})
	assert.False(t, ok, "failed run is rolled back")

	engine.err = errors.New("boom")
	_, err = sdb.ExecHash(context.Background(), req)
	assert.EqualError(t, err, "boom")
	_, ok, _ = sdb.Storage(other, common.Hash{0x01})
	assert.False(t, ok)

	res, err = sdb.ExecHash(context.Background(), &exec.ExecRequest{CodeHash: common.Hash{0x99}})
	require.NoError(t, err)
	assert.Equal(t, rwerrors.ExitPanic, res.ExitCode)

	sdb.SetEngine(nil)
	_, err = sdb.ExecHash(context.Background(), req)
	assert.ErrorIs(t, err, rwerrors.ErrEngineNotAvailable)
}
