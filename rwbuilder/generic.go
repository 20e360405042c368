package rwbuilder

import (
	"fmt"

	"github.com/colorfulnotion/rwtrace/exec"
	"github.com/colorfulnotion/rwtrace/program"
	"github.com/colorfulnotion/rwtrace/rwerrors"
)

// buildGeneric emits the rows of ops in order. Reads come from Curr, writes
// from Next, which the engine must supply.
func (b *Builder) buildGeneric(step *exec.Step, ops []program.RwOp) error {
	curr, next := step.Curr, step.Next
	for _, op := range ops {
		switch op.Kind {
		case program.StackRead, program.LocalRead, program.GlobalRead, program.MemoryRead:
		default:
			if next == nil {
				return fmt.Errorf("%s: %w: no post-state", step.Instr, rwerrors.ErrMissingState)
			}
		}

		switch op.Kind {
		case program.StackRead:
			addr, err := curr.TopAddr(op.Depth)
			if err != nil {
				return err
			}
			step.PushStack(false, addr, curr.Stack[addr], true)

		case program.StackWrite:
			addr, err := next.TopAddr(op.Depth)
			if err != nil {
				return err
			}
			step.PushStack(true, addr, next.Stack[addr], addr < uint64(len(curr.Stack)))

		case program.LocalRead:
			addr, err := localAddr(curr, step.Instr.Aux)
			if err != nil {
				return err
			}
			step.PushStack(false, addr, curr.Stack[addr], true)

		case program.LocalWrite:
			addr, err := localAddr(next, step.Instr.Aux)
			if err != nil {
				return err
			}
			step.PushStack(true, addr, next.Stack[addr], addr < uint64(len(curr.Stack)))

		case program.GlobalRead:
			v, ok := curr.Global(step.Instr.Aux)
			if !ok {
				return fmt.Errorf("%s: %w: global %d with %d globals", step.Instr, rwerrors.ErrMissingState, step.Instr.Aux, len(curr.Globals))
			}
			step.PushGlobal(false, step.Instr.Aux, v)

		case program.GlobalWrite:
			v, ok := next.Global(step.Instr.Aux)
			if !ok {
				return fmt.Errorf("%s: %w: global %d with %d globals", step.Instr, rwerrors.ErrMissingState, step.Instr.Aux, len(next.Globals))
			}
			step.PushGlobal(true, step.Instr.Aux, v)

		case program.MemoryRead:
			addr, err := effectiveAddr(curr, op, step.Instr.Aux)
			if err != nil {
				return err
			}
			for i := uint64(0); i < uint64(op.Width); i++ {
				v, existed := curr.Memory.Read(addr + i)
				step.PushMemory(false, addr+i, v, existed)
			}

		case program.MemoryWrite:
			addr, err := effectiveAddr(curr, op, step.Instr.Aux)
			if err != nil {
				return err
			}
			if err := next.Memory.CheckRange(addr, uint64(op.Width)); err != nil {
				return err
			}
			for i := uint64(0); i < uint64(op.Width); i++ {
				_, existed := curr.Memory.Read(addr + i)
				v, _ := next.Memory.Read(addr + i)
				step.PushMemory(true, addr+i, v, existed)
			}

		case program.TableWrite:
			tableIdx := uint32(step.Instr.Aux)
			elem, err := curr.Peek(op.AddrDepth)
			if err != nil {
				return err
			}
			idx := uint64(uint32(elem))
			t, err := next.Table(tableIdx)
			if err != nil {
				return err
			}
			if err := t.CheckRange(tableIdx, idx, 1); err != nil {
				return err
			}
			v, _ := t.Get(idx)
			step.PushTable(true, tableIdx, idx, v, true)

		default:
			return fmt.Errorf("%s: unhandled operand kind %d", step.Instr, op.Kind)
		}
	}
	return nil
}

// localAddr resolves a local depth: depth 1 is the top of the stack.
func localAddr(s *exec.MachineState, depth uint64) (uint64, error) {
	n := uint64(len(s.Stack))
	if depth == 0 || depth > n {
		return 0, fmt.Errorf("%w: local depth %d with %d slots", rwerrors.ErrStackUnderflow, depth, n)
	}
	return n - depth, nil
}

// effectiveAddr is the 32-bit base at op.AddrDepth plus the static offset,
// bounds-checked against the pre-state memory.
func effectiveAddr(s *exec.MachineState, op program.RwOp, offset uint64) (uint64, error) {
	base, err := s.Peek(op.AddrDepth)
	if err != nil {
		return 0, err
	}
	addr := uint64(uint32(base)) + offset
	if err := s.Memory.CheckRange(addr, uint64(op.Width)); err != nil {
		return 0, err
	}
	return addr, nil
}
