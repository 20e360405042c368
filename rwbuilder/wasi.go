package rwbuilder

import (
	"context"
	"encoding/binary"

	"github.com/colorfulnotion/rwtrace/rwerrors"
)

// WASI errno values returned on the stack.
const (
	ErrnoSuccess = 0
	ErrnoBadf    = 8
	ErrnoFault   = 21
)

const (
	fdStdout = 1
	fdStderr = 2

	iovecSize = 8 // buf u32, len u32
)

func wasiProcExit(_ context.Context, c *sysCall) (SysResult, error) {
	code := rwerrors.ExitCode(int32(uint32(c.params[0])))
	c.rt.ExitCode = code
	c.rt.Halted = true
	return SysResult{ExitCode: code, Value: uint64(uint32(code))}, nil
}

func (c *sysCall) errno(errno uint64, code rwerrors.ExitCode) SysResult {
	c.pushResult(errno)
	return SysResult{ExitCode: code, Value: errno}
}

// fd_write(fd, iovs, iovs_len, nwritten) gathers the iovecs into the output
// buffer. Only stdout and stderr are writable.
func wasiFdWrite(_ context.Context, c *sysCall) (SysResult, error) {
	fd, iovs, iovsLen, nwrittenPtr := c.param(0), c.param(1), c.param(2), c.param(3)
	if fd != fdStdout && fd != fdStderr {
		return c.errno(ErrnoBadf, rwerrors.ExitBadFileDescriptor), nil
	}
	if !c.inBounds(iovs, iovsLen*iovecSize) || !c.inBounds(nwrittenPtr, 4) {
		return c.errno(ErrnoFault, rwerrors.ExitMemoryOutOfBounds), nil
	}
	raw := c.peek(iovs, iovsLen*iovecSize)
	for i := uint64(0); i < iovsLen; i++ {
		buf := uint64(binary.LittleEndian.Uint32(raw[i*iovecSize:]))
		n := uint64(binary.LittleEndian.Uint32(raw[i*iovecSize+4:]))
		if !c.inBounds(buf, n) {
			return c.errno(ErrnoFault, rwerrors.ExitMemoryOutOfBounds), nil
		}
	}

	c.readMem(iovs, iovsLen*iovecSize)
	var total uint64
	for i := uint64(0); i < iovsLen; i++ {
		buf := uint64(binary.LittleEndian.Uint32(raw[i*iovecSize:]))
		n := uint64(binary.LittleEndian.Uint32(raw[i*iovecSize+4:]))
		c.rt.Output = append(c.rt.Output, c.readMem(buf, n)...)
		total += n
	}
	c.writeU32(nwrittenPtr, uint32(total))
	c.pushResult(ErrnoSuccess)
	return ok(total), nil
}

// strSizes is the entry count and the size of the NUL-terminated buffer.
func strSizes(list []string) (count, size uint64) {
	for _, s := range list {
		size += uint64(len(s)) + 1
	}
	return uint64(len(list)), size
}

func (c *sysCall) sizesGet(list []string) SysResult {
	countPtr, sizePtr := c.param(0), c.param(1)
	if !c.inBounds(countPtr, 4) || !c.inBounds(sizePtr, 4) {
		return c.errno(ErrnoFault, rwerrors.ExitMemoryOutOfBounds)
	}
	count, size := strSizes(list)
	c.writeU32(countPtr, uint32(count))
	c.writeU32(sizePtr, uint32(size))
	c.pushResult(ErrnoSuccess)
	return ok(size)
}

// listGet writes one pointer per entry at ptrs, then the NUL-terminated
// entries back to back at buf.
func (c *sysCall) listGet(list []string) SysResult {
	ptrs, buf := c.param(0), c.param(1)
	count, size := strSizes(list)
	if !c.inBounds(ptrs, 4*count) || !c.inBounds(buf, size) {
		return c.errno(ErrnoFault, rwerrors.ExitMemoryOutOfBounds)
	}
	data := make([]byte, 0, size)
	for i, s := range list {
		c.writeU32(ptrs+4*uint64(i), uint32(buf+uint64(len(data))))
		data = append(append(data, s...), 0)
	}
	c.writeMem(buf, data)
	c.pushResult(ErrnoSuccess)
	return ok(size)
}

func wasiEnvironSizesGet(_ context.Context, c *sysCall) (SysResult, error) {
	return c.sizesGet(c.rt.Env), nil
}

func wasiEnvironGet(_ context.Context, c *sysCall) (SysResult, error) {
	return c.listGet(c.rt.Env), nil
}

func wasiArgsSizesGet(_ context.Context, c *sysCall) (SysResult, error) {
	return c.sizesGet(c.rt.Args), nil
}

func wasiArgsGet(_ context.Context, c *sysCall) (SysResult, error) {
	return c.listGet(c.rt.Args), nil
}
