package rwbuilder

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/colorfulnotion/rwtrace/common"
	"github.com/colorfulnotion/rwtrace/exec"
	"github.com/colorfulnotion/rwtrace/log"
	"github.com/colorfulnotion/rwtrace/program"
	"github.com/colorfulnotion/rwtrace/rwerrors"
)

// sysCall is the working set of one platform call. Params are the popped
// arguments, first parameter first.
type sysCall struct {
	b      *Builder
	step   *exec.Step
	rt     *exec.Runtime
	idx    program.SysFuncIdx
	fn     program.SysFunc
	params []uint64
}

type sysHandler func(ctx context.Context, c *sysCall) (SysResult, error)

var sysHandlers map[program.SysFuncIdx]sysHandler

func init() {
	sysHandlers = map[program.SysFuncIdx]sysHandler{
		program.RwasmTransact: sysTransact,

		program.SysHalt:         sysHalt,
		program.SysWrite:        sysWrite,
		program.SysInputSize:    sysInputSize,
		program.SysRead:         sysRead,
		program.SysOutputSize:   sysOutputSize,
		program.SysReadOutput:   sysReadOutput,
		program.SysStorageRead:  sysStorageRead,
		program.SysStorageWrite: sysStorageWrite,

		program.WasiProcExit:        wasiProcExit,
		program.WasiFdWrite:         wasiFdWrite,
		program.WasiEnvironSizesGet: wasiEnvironSizesGet,
		program.WasiEnvironGet:      wasiEnvironGet,
		program.WasiArgsSizesGet:    wasiArgsSizesGet,
		program.WasiArgsGet:         wasiArgsGet,
	}
}

// buildPlatform runs the shared discipline of every platform call: entry
// fuel, one stack read per parameter, the handler, then the syscall row.
func (b *Builder) buildPlatform(ctx context.Context, step *exec.Step, idx program.SysFuncIdx) (SysResult, error) {
	fn, ok := idx.Lookup()
	handler, known := sysHandlers[idx]
	if !ok || !known {
		return SysResult{}, fmt.Errorf("%w: %s", rwerrors.ErrUnknownSysCall, idx)
	}
	if err := needRuntime(step); err != nil {
		return SysResult{}, err
	}
	// A zero cost, the default, skips the entry check entirely.
	if cost := b.cfg.syscallFuel(idx); cost > 0 {
		if err := b.chargeFuel(step, cost); err != nil {
			return SysResult{}, fmt.Errorf("%s: %w", idx, err)
		}
	}

	c := &sysCall{b: b, step: step, rt: step.Runtime, idx: idx, fn: fn, params: make([]uint64, fn.Params)}
	for i := range c.params {
		addr, err := step.Curr.TopAddr(uint32(fn.Params - 1 - i))
		if err != nil {
			return SysResult{}, fmt.Errorf("%s: %w", idx, err)
		}
		c.params[i] = step.Curr.Stack[addr]
		step.PushStack(false, addr, c.params[i], true)
	}
	step.Derive()
	if err := step.Next.Pop(fn.Params); err != nil {
		return SysResult{}, err
	}

	res, err := handler(ctx, c)
	if err != nil {
		return SysResult{}, err
	}
	if want := len(step.Curr.Stack) - fn.Params + fn.Results; len(step.Next.Stack) != want {
		return SysResult{}, fmt.Errorf("%s left %d stack slots, want %d", idx, len(step.Next.Stack), want)
	}
	step.PushSyscall(true, uint64(fn.Params), res.Value)
	if !res.ExitCode.IsOk() {
		log.Debug(log.Runtime, "syscall exit", "fn", idx, "code", res.ExitCode, "call", step.CallID)
	}
	return res, nil
}

func ok(v uint64) SysResult {
	return SysResult{Value: v}
}

func fail(code rwerrors.ExitCode) SysResult {
	return SysResult{ExitCode: code, Value: uint64(uint32(code))}
}

func (c *sysCall) param(i int) uint64 {
	return uint64(uint32(c.params[i]))
}

func (c *sysCall) inBounds(addr, n uint64) bool {
	return c.step.Next.Memory.InBounds(addr, n)
}

// peek reads memory without emitting rows, for argument validation.
func (c *sysCall) peek(addr, n uint64) []byte {
	data, _ := c.step.Next.Memory.ReadBytes(addr, n)
	return data
}

// readMem emits one read row per byte.
func (c *sysCall) readMem(addr, n uint64) []byte {
	out := make([]byte, n)
	for i := range out {
		v, existed := c.step.Next.Memory.Read(addr + uint64(i))
		c.step.PushMemory(false, addr+uint64(i), v, existed)
		out[i] = v
	}
	return out
}

// writeMem emits one write row per byte. Callers check bounds first.
func (c *sysCall) writeMem(addr uint64, data []byte) {
	for i, v := range data {
		existed := c.step.Next.Memory.Write(addr+uint64(i), v)
		c.step.PushMemory(true, addr+uint64(i), v, existed)
	}
}

func (c *sysCall) writeU32(addr uint64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	c.writeMem(addr, buf[:])
}

// pushResult pushes a result value with its stack write row.
func (c *sysCall) pushResult(v uint64) {
	c.step.Next.Push(v)
	addr := uint64(len(c.step.Next.Stack) - 1)
	c.step.PushStack(true, addr, v, addr < uint64(len(c.step.Curr.Stack)))
}

func sysHalt(_ context.Context, c *sysCall) (SysResult, error) {
	code := rwerrors.ExitCode(int32(uint32(c.params[0])))
	c.rt.ExitCode = code
	c.rt.Halted = true
	return SysResult{ExitCode: code, Value: uint64(uint32(code))}, nil
}

// _sys_write(offset, length) appends guest memory to the output buffer.
func sysWrite(_ context.Context, c *sysCall) (SysResult, error) {
	offset, length := c.param(0), c.param(1)
	if !c.inBounds(offset, length) {
		return fail(rwerrors.ExitMemoryOutOfBounds), nil
	}
	c.rt.Output = append(c.rt.Output, c.readMem(offset, length)...)
	return ok(length), nil
}

func sysInputSize(_ context.Context, c *sysCall) (SysResult, error) {
	n := uint64(len(c.rt.Input))
	c.pushResult(n)
	return ok(n), nil
}

func sysOutputSize(_ context.Context, c *sysCall) (SysResult, error) {
	n := uint64(len(c.rt.ReturnData))
	c.pushResult(n)
	return ok(n), nil
}

// copyOut writes src[offset:offset+length] to guest memory at target.
func (c *sysCall) copyOut(src []byte) SysResult {
	target, offset, length := c.param(0), c.param(1), c.param(2)
	if offset+length > uint64(len(src)) || !c.inBounds(target, length) {
		return fail(rwerrors.ExitMemoryOutOfBounds)
	}
	c.writeMem(target, src[offset:offset+length])
	return ok(length)
}

// _sys_read(target, offset, length) copies from the call input.
func sysRead(_ context.Context, c *sysCall) (SysResult, error) {
	return c.copyOut(c.rt.Input), nil
}

// _sys_read_output(target, offset, length) copies from the last nested
// call's return data.
func sysReadOutput(_ context.Context, c *sysCall) (SysResult, error) {
	return c.copyOut(c.rt.ReturnData), nil
}

func (c *sysCall) host() (exec.Host, error) {
	if c.rt.Host == nil {
		return nil, fmt.Errorf("%s: %w: no host", c.idx, rwerrors.ErrMissingState)
	}
	return c.rt.Host, nil
}

// _sys_storage_read(slot_ptr, value_ptr) loads a slot of the executing
// account into guest memory.
func sysStorageRead(_ context.Context, c *sysCall) (SysResult, error) {
	slotPtr, valuePtr := c.param(0), c.param(1)
	if !c.inBounds(slotPtr, common.HashLength) || !c.inBounds(valuePtr, common.HashLength) {
		return fail(rwerrors.ExitMemoryOutOfBounds), nil
	}
	host, err := c.host()
	if err != nil {
		return SysResult{}, err
	}
	key := common.BytesToHash(c.readMem(slotPtr, common.HashLength))
	word, existed, err := host.Storage(c.rt.Address, key)
	if err != nil {
		return SysResult{}, fmt.Errorf("%s: %w", c.idx, err)
	}
	c.step.PushStorage(false, key, word, existed)
	c.writeMem(valuePtr, word.Bytes())
	if existed {
		return ok(1), nil
	}
	return ok(0), nil
}

// _sys_storage_write(slot_ptr, value_ptr) stores a word from guest memory.
func sysStorageWrite(_ context.Context, c *sysCall) (SysResult, error) {
	slotPtr, valuePtr := c.param(0), c.param(1)
	if !c.inBounds(slotPtr, common.HashLength) || !c.inBounds(valuePtr, common.HashLength) {
		return fail(rwerrors.ExitMemoryOutOfBounds), nil
	}
	host, err := c.host()
	if err != nil {
		return SysResult{}, err
	}
	key := common.BytesToHash(c.readMem(slotPtr, common.HashLength))
	word := common.BytesToHash(c.readMem(valuePtr, common.HashLength))
	_, existed, err := host.Storage(c.rt.Address, key)
	if err != nil {
		return SysResult{}, fmt.Errorf("%s: %w", c.idx, err)
	}
	if err := host.WriteStorage(c.rt.Address, key, word); err != nil {
		return SysResult{}, fmt.Errorf("%s: %w", c.idx, err)
	}
	c.step.PushStorage(true, key, word, existed)
	return ok(0), nil
}
