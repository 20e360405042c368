package rwbuilder

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/colorfulnotion/rwtrace/common"
	"github.com/colorfulnotion/rwtrace/exec"
	"github.com/colorfulnotion/rwtrace/log"
	"github.com/colorfulnotion/rwtrace/rwerrors"
	"github.com/colorfulnotion/rwtrace/rwtable"
)

// _rwasm_transact(hash_ptr, input_ptr, input_len, ret_ptr, ret_len,
// fuel_ptr, state) -> i32
//
// Runs the code stored under the 32-byte hash at hash_ptr as a child frame.
// The u32 at fuel_ptr is the requested fuel; the child gets at most what the
// parent has left. On success the child's rows follow the parent's argument
// rows, the output lands at ret_ptr when ret_len is non-zero, the unused fuel is written back to
// fuel_ptr and the fuel actually used is charged to the parent. Any child
// failure aborts the step with ErrTransactError and leaves the runtime as
// it was.
func sysTransact(ctx context.Context, c *sysCall) (SysResult, error) {
	hashPtr, inputPtr, inputLen := c.param(0), c.param(1), c.param(2)
	retPtr, retLen, fuelPtr := c.param(3), c.param(4), c.param(5)
	if !c.inBounds(hashPtr, common.HashLength) || !c.inBounds(inputPtr, inputLen) ||
		!c.inBounds(retPtr, retLen) || !c.inBounds(fuelPtr, 4) {
		res := fail(rwerrors.ExitMemoryOutOfBounds)
		c.pushResult(res.Value)
		return res, nil
	}
	host, err := c.host()
	if err != nil {
		return SysResult{}, err
	}
	depth := c.rt.Depth + 1
	if depth > c.b.cfg.MaxCallDepth {
		return SysResult{}, fmt.Errorf("%w: %w: depth %d", rwerrors.ErrTransactError, rwerrors.ErrCallDepthExceeded, depth)
	}

	codeHash := common.BytesToHash(c.readMem(hashPtr, common.HashLength))
	input := c.readMem(inputPtr, inputLen)
	requested := uint64(binary.LittleEndian.Uint32(c.readMem(fuelPtr, 4)))
	allowance := min(requested, c.rt.FuelRemaining())

	req := &exec.ExecRequest{
		CodeHash:  codeHash,
		Input:     input,
		FuelLimit: allowance,
		Caller:    c.rt.Address,
		Depth:     depth,
		CallID:    c.step.Counter.NextFrame(),
		Counter:   c.step.Counter,
	}
	ctx, span := c.b.tracer.Start(ctx, "transact")
	defer span.End()
	span.SetAttributes(
		attribute.String("code_hash", codeHash.Hex()),
		attribute.Int64("call_id", int64(req.CallID)),
		attribute.Int64("depth", int64(depth)),
		attribute.Int64("fuel_limit", int64(allowance)),
	)

	snapshot := c.rt.Snapshot()
	res, err := c.runChild(ctx, host, req, retLen)
	if err != nil {
		c.rt.Restore(snapshot)
		span.RecordError(err)
		span.SetStatus(codes.Error, rwerrors.GetErrorName(err))
		log.Debug(log.Runtime, "transact failed", "hash", codeHash, "call", req.CallID, "err", err)
		return SysResult{}, err
	}
	span.SetAttributes(
		attribute.Int64("fuel_used", int64(res.FuelUsed)),
		attribute.Int("rows", len(res.Rows)),
		attribute.Int("output_len", len(res.Output)),
	)

	c.step.Append(res.Rows, res.CopyRows)
	// A zero ret_len leaves the output to _sys_read_output.
	if retLen > 0 {
		c.writeMem(retPtr, res.Output)
	}
	c.writeU32(fuelPtr, uint32(allowance-res.FuelUsed))
	if res.FuelUsed > 0 {
		c.step.PushContext(true, rwtable.TagConsumedFuel, res.FuelUsed)
		c.rt.FuelConsumed += res.FuelUsed
	}
	c.rt.ReturnData = append([]byte(nil), res.Output...)
	c.pushResult(uint64(rwerrors.ExitOk))
	log.Trace(log.Runtime, "transact", "hash", codeHash, "call", req.CallID, "fuel", res.FuelUsed, "rows", len(res.Rows))
	return ok(uint64(len(res.Output))), nil
}

// runChild executes the child and checks everything that must hold before
// its effects may be folded into the parent.
func (c *sysCall) runChild(ctx context.Context, host exec.Host, req *exec.ExecRequest, retLen uint64) (*exec.ExecResult, error) {
	res, err := host.ExecHash(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rwerrors.ErrTransactError, err)
	}
	if !res.ExitCode.IsOk() {
		return nil, fmt.Errorf("%w: child exit %s", rwerrors.ErrTransactError, res.ExitCode)
	}
	if retLen > 0 && uint64(len(res.Output)) > retLen {
		return nil, fmt.Errorf("%w: %w: %d bytes into %d", rwerrors.ErrTransactError, rwerrors.ErrOutputOverflow, len(res.Output), retLen)
	}
	if res.FuelUsed > req.FuelLimit {
		return nil, fmt.Errorf("%w: %w: child used %d of %d", rwerrors.ErrTransactError, rwerrors.ErrOutOfFuel, res.FuelUsed, req.FuelLimit)
	}
	if len(res.Rows) > 0 {
		if err := rwtable.Verify(res.Rows); err != nil {
			return nil, fmt.Errorf("%w: child rows: %w", rwerrors.ErrTransactError, err)
		}
		if want := c.step.Counter.Peek() - uint64(len(res.Rows)); res.Rows[0].RwCounter != want {
			return nil, fmt.Errorf("%w: %w: child rows start at %d, want %d", rwerrors.ErrTransactError, rwerrors.ErrCounterGap, res.Rows[0].RwCounter, want)
		}
	}
	return res, nil
}
