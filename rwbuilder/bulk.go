package rwbuilder

import (
	"fmt"

	"github.com/colorfulnotion/rwtrace/exec"
	"github.com/colorfulnotion/rwtrace/rwerrors"
	"github.com/colorfulnotion/rwtrace/rwtable"
)

// Bulk generators own the step's effects: Next is derived from Curr, the
// operands are popped and the elements written by the generator. Operands
// are taken from the stack without rows; every range is checked before the
// first data row, and each affected element gets one write row in ascending
// order.

// operands returns the top n stack values, deepest first.
func operands(s *exec.MachineState, n int) ([]uint64, error) {
	out := make([]uint64, n)
	for i := range out {
		v, err := s.Peek(uint32(n - 1 - i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func needRuntime(step *exec.Step) error {
	if step.Runtime == nil {
		return fmt.Errorf("%s: %w: no runtime", step.Instr, rwerrors.ErrMissingState)
	}
	return nil
}

func (b *Builder) buildConsumeFuel(step *exec.Step) error {
	if err := needRuntime(step); err != nil {
		return err
	}
	if err := b.chargeFuel(step, step.Instr.Aux); err != nil {
		return err
	}
	step.Derive()
	return nil
}

// chargeFuel records a fuel delta. Nothing is emitted when the budget
// cannot cover it.
func (b *Builder) chargeFuel(step *exec.Step, delta uint64) error {
	if remaining := step.FuelRemaining(); remaining < delta {
		return fmt.Errorf("%w: need %d, remaining %d", rwerrors.ErrOutOfFuel, delta, remaining)
	}
	step.PushContext(true, rwtable.TagConsumedFuel, delta)
	step.Runtime.FuelConsumed += delta
	return nil
}

// memory.copy [dst, src, len]
func (b *Builder) buildMemoryCopy(step *exec.Step) error {
	ops, err := operands(step.Curr, 3)
	if err != nil {
		return err
	}
	dst, src, n := uint64(uint32(ops[0])), uint64(uint32(ops[1])), uint64(uint32(ops[2]))
	mem := step.Curr.Memory
	if err := mem.CheckRange(src, n); err != nil {
		return err
	}
	if err := mem.CheckRange(dst, n); err != nil {
		return err
	}
	// The source is read in full before any destination byte changes.
	data, _ := mem.ReadBytes(src, n)

	step.Derive()
	if err := step.Next.Pop(3); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	b.reserve(step, n)
	step.PushCopy(rwtable.CopyRow{
		SrcKind: rwtable.KindMemory, SrcAddr: src,
		DstKind: rwtable.KindMemory, DstAddr: dst,
		Length: n,
	})
	for i, v := range data {
		addr := dst + uint64(i)
		existed := step.Next.Memory.Write(addr, v)
		step.PushMemory(true, addr, v, existed)
	}
	return nil
}

// memory.fill [dst, value, len]
func (b *Builder) buildMemoryFill(step *exec.Step) error {
	ops, err := operands(step.Curr, 3)
	if err != nil {
		return err
	}
	dst, v, n := uint64(uint32(ops[0])), byte(ops[1]), uint64(uint32(ops[2]))
	if err := step.Curr.Memory.CheckRange(dst, n); err != nil {
		return err
	}

	step.Derive()
	if err := step.Next.Pop(3); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	b.reserve(step, n)
	step.PushCopy(rwtable.CopyRow{
		DstKind: rwtable.KindMemory, DstAddr: dst,
		Length: n, Fill: true, FillValue: uint64(v),
	})
	for i := uint64(0); i < n; i++ {
		existed := step.Next.Memory.Write(dst+i, v)
		step.PushMemory(true, dst+i, v, existed)
	}
	return nil
}

// table.fill [start, value, len]
func (b *Builder) buildTableFill(step *exec.Step, tableIdx uint32) error {
	ops, err := operands(step.Curr, 3)
	if err != nil {
		return err
	}
	start, v, n := uint64(uint32(ops[0])), ops[1], uint64(uint32(ops[2]))
	t, err := step.Curr.Table(tableIdx)
	if err != nil {
		return err
	}
	if err := t.CheckRange(tableIdx, start, n); err != nil {
		return err
	}

	step.Derive()
	if err := step.Next.Pop(3); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	b.reserve(step, n)
	step.PushCopy(rwtable.CopyRow{
		DstKind: rwtable.KindTable, DstTableIdx: tableIdx, DstAddr: start,
		Length: n, Fill: true, FillValue: v,
	})
	next := step.Next.Tables[tableIdx]
	for i := start; i < start+n; i++ {
		next.Elements[i] = v
		step.PushTable(true, tableIdx, i, v, true)
	}
	return nil
}

// table.copy [dst, src, len]
func (b *Builder) buildTableCopy(step *exec.Step, dstIdx, srcIdx uint32) error {
	ops, err := operands(step.Curr, 3)
	if err != nil {
		return err
	}
	dst, src, n := uint64(uint32(ops[0])), uint64(uint32(ops[1])), uint64(uint32(ops[2]))
	dt, err := step.Curr.Table(dstIdx)
	if err != nil {
		return err
	}
	st, err := step.Curr.Table(srcIdx)
	if err != nil {
		return err
	}
	if err := st.CheckRange(srcIdx, src, n); err != nil {
		return err
	}
	if err := dt.CheckRange(dstIdx, dst, n); err != nil {
		return err
	}
	data := append([]uint64(nil), st.Elements[src:src+n]...)

	step.Derive()
	if err := step.Next.Pop(3); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	b.reserve(step, n)
	step.PushCopy(rwtable.CopyRow{
		SrcKind: rwtable.KindTable, SrcTableIdx: srcIdx, SrcAddr: src,
		DstKind: rwtable.KindTable, DstTableIdx: dstIdx, DstAddr: dst,
		Length: n,
	})
	next := step.Next.Tables[dstIdx]
	for i, v := range data {
		next.Elements[dst+uint64(i)] = v
		step.PushTable(true, dstIdx, dst+uint64(i), v, true)
	}
	return nil
}

// table.grow [init, delta] -> previous size. Growing past the declared
// maximum is a bounds error.
func (b *Builder) buildTableGrow(step *exec.Step, tableIdx uint32) error {
	ops, err := operands(step.Curr, 2)
	if err != nil {
		return err
	}
	init, delta := ops[0], uint64(uint32(ops[1]))
	t, err := step.Curr.Table(tableIdx)
	if err != nil {
		return err
	}
	if err := t.CheckGrow(tableIdx, delta); err != nil {
		return err
	}
	size := t.Len()

	step.Derive()
	if err := step.Next.Pop(2); err != nil {
		return err
	}
	step.Next.Push(size)
	if delta == 0 {
		return nil
	}
	b.reserve(step, delta)
	next := step.Next.Tables[tableIdx]
	for i := size; i < size+delta; i++ {
		next.Elements = append(next.Elements, init)
		step.PushTable(true, tableIdx, i, init, false)
	}
	return nil
}

// table.get [idx] -> element
func (b *Builder) buildTableGet(step *exec.Step, tableIdx uint32) error {
	ops, err := operands(step.Curr, 1)
	if err != nil {
		return err
	}
	idx := uint64(uint32(ops[0]))
	t, err := step.Curr.Table(tableIdx)
	if err != nil {
		return err
	}
	if err := t.CheckRange(tableIdx, idx, 1); err != nil {
		return err
	}
	v, _ := t.Get(idx)

	step.Derive()
	if err := step.Next.Pop(1); err != nil {
		return err
	}
	step.Next.Push(v)
	step.PushTable(false, tableIdx, idx, v, true)
	return nil
}
