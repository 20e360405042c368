package exec

import (
	"context"

	"github.com/colorfulnotion/rwtrace/common"
	"github.com/colorfulnotion/rwtrace/rwerrors"
	"github.com/colorfulnotion/rwtrace/rwtable"
)

// Host is the world-state side of platform calls.
type Host interface {
	// Storage reads a slot of addr; ok reports whether it was ever written.
	Storage(addr common.Address, slot common.Hash) (value common.Hash, ok bool, err error)
	WriteStorage(addr common.Address, slot common.Hash, value common.Hash) error
	// ExecHash runs the code stored under req.CodeHash to completion.
	ExecHash(ctx context.Context, req *ExecRequest) (*ExecResult, error)
}

// ExecRequest describes a nested hash-addressed execution. Counter is the
// parent's counter; the child emits its rows with it under CallID.
type ExecRequest struct {
	CodeHash  common.Hash
	Input     []byte
	FuelLimit uint64
	Caller    common.Address
	Depth     uint32
	CallID    uint32
	Counter   *Counter
}

// ExecResult is what a finished child hands back. Rows carry counters taken
// from the shared Counter, in emission order.
type ExecResult struct {
	Output   []byte
	ExitCode rwerrors.ExitCode
	FuelUsed uint64
	Rows     []rwtable.Row
	CopyRows []rwtable.CopyRow
}
