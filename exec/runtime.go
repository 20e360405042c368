package exec

import (
	"github.com/colorfulnotion/rwtrace/common"
	"github.com/colorfulnotion/rwtrace/rwerrors"
)

// Runtime is the per-frame execution context that platform calls read and
// update: I/O buffers, fuel, exit status and the executing account.
type Runtime struct {
	Input      []byte
	Output     []byte
	ReturnData []byte
	Env        []string
	Args       []string

	ExitCode rwerrors.ExitCode
	Halted   bool

	FuelLimit    uint64
	FuelConsumed uint64

	Address common.Address
	Depth   uint32
	Host    Host
}

func (rt *Runtime) FuelRemaining() uint64 {
	if rt.FuelConsumed >= rt.FuelLimit {
		return 0
	}
	return rt.FuelLimit - rt.FuelConsumed
}

// RuntimeSnapshot captures the fields a failed nested call must leave untouched.
type RuntimeSnapshot struct {
	output       []byte
	returnData   []byte
	fuelConsumed uint64
	exitCode     rwerrors.ExitCode
	halted       bool
}

func (rt *Runtime) Snapshot() RuntimeSnapshot {
	return RuntimeSnapshot{
		output:       rt.Output,
		returnData:   rt.ReturnData,
		fuelConsumed: rt.FuelConsumed,
		exitCode:     rt.ExitCode,
		halted:       rt.Halted,
	}
}

// Restore resets the runtime to s. Output only ever grows by append, so
// truncating the slice header is enough.
func (rt *Runtime) Restore(s RuntimeSnapshot) {
	rt.Output = s.output
	rt.ReturnData = s.returnData
	rt.FuelConsumed = s.fuelConsumed
	rt.ExitCode = s.exitCode
	rt.Halted = s.halted
}
