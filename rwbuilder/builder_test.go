package rwbuilder

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/rwtrace/exec"
	"github.com/colorfulnotion/rwtrace/program"
	"github.com/colorfulnotion/rwtrace/rwerrors"
	"github.com/colorfulnotion/rwtrace/rwtable"
)

func newState(stack ...uint64) *exec.MachineState {
	s := exec.NewMachineState(1)
	s.Stack = append(s.Stack, stack...)
	return s
}

func newRuntime(fuel uint64) *exec.Runtime {
	return &exec.Runtime{FuelLimit: fuel}
}

func build(t *testing.T, b *Builder, instr program.Instruction, curr, next *exec.MachineState, rt *exec.Runtime) (*exec.Step, SysResult, error) {
	t.Helper()
	step := exec.NewStep(exec.NewCounter(), rt, 0, instr, 3, curr, next)
	res, err := b.Build(context.Background(), step)
	return step, res, err
}

func requirePCFirst(t *testing.T, step *exec.Step) {
	t.Helper()
	require.NotEmpty(t, step.Rows)
	first := step.Rows[0]
	assert.Equal(t, rwtable.KindContext, first.Kind)
	assert.Equal(t, rwtable.TagProgramCounter, first.Tag)
	assert.True(t, first.IsWrite)
	assert.Equal(t, step.PcDiff, first.Value)
	assert.Equal(t, uint64(exec.FirstCounter), first.RwCounter)
}

func TestProgramCounterRowFirst(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	cases := []struct {
		name  string
		instr program.Instruction
		curr  *exec.MachineState
		next  *exec.MachineState
	}{
		{"add", program.NewInstruction(program.I32Add, 0), newState(1, 2), newState(3)},
		{"const", program.NewInstruction(program.I32Const, 9), newState(), newState(9)},
		{"return", program.NewInstruction(program.Return, 0), newState(), nil},
		{"fuel", program.NewInstruction(program.ConsumeFuel, 1), newState(), nil},
		{"copy", program.NewInstruction(program.MemoryCopy, 0), newState(0, 0, 0), nil},
		{"input_size", program.CallInstruction(program.SysInputSize), newState(), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			step, _, err := build(t, b, tc.instr, tc.curr, tc.next, newRuntime(10))
			require.NoError(t, err)
			requirePCFirst(t, step)
			assert.NoError(t, rwtable.Verify(step.Rows))
		})
	}
}

func TestGenericBinary(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	step, _, err := build(t, b, program.NewInstruction(program.I32Add, 0), newState(3, 4), newState(7), nil)
	require.NoError(t, err)
	require.Len(t, step.Rows, 4)

	assert.Equal(t, rwtable.NewStackRow(2, false, 0, 0, 3, true), step.Rows[1])
	assert.Equal(t, rwtable.NewStackRow(3, false, 0, 1, 4, true), step.Rows[2])
	assert.Equal(t, rwtable.NewStackRow(4, true, 0, 0, 7, true), step.Rows[3])
}

func TestGenericNeedsPostState(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	_, _, err := build(t, b, program.NewInstruction(program.I32Add, 0), newState(3, 4), nil, nil)
	assert.ErrorIs(t, err, rwerrors.ErrMissingState)

	_, _, err = build(t, b, program.NewInstruction(program.I32Add, 0), newState(3), newState(3), nil)
	assert.ErrorIs(t, err, rwerrors.ErrStackUnderflow)
}

func TestLocalsAndGlobals(t *testing.T) {
	b := NewBuilder(DefaultConfig())

	step, _, err := build(t, b, program.NewInstruction(program.LocalGet, 2), newState(10, 20), newState(10, 20, 10), nil)
	require.NoError(t, err)
	require.Len(t, step.Rows, 3)
	assert.Equal(t, rwtable.NewStackRow(2, false, 0, 0, 10, true), step.Rows[1])
	assert.Equal(t, rwtable.NewStackRow(3, true, 0, 2, 10, false), step.Rows[2])

	// local.set 2 over [a, b, v]: pops v, then writes a.
	step, _, err = build(t, b, program.NewInstruction(program.LocalSet, 2), newState(1, 2, 9), newState(9, 2), nil)
	require.NoError(t, err)
	require.Len(t, step.Rows, 3)
	assert.Equal(t, rwtable.NewStackRow(2, false, 0, 2, 9, true), step.Rows[1])
	assert.Equal(t, rwtable.NewStackRow(3, true, 0, 0, 9, true), step.Rows[2])

	curr, next := newState(), newState(42)
	curr.Globals, next.Globals = []uint64{0, 42}, []uint64{0, 42}
	step, _, err = build(t, b, program.NewInstruction(program.GlobalGet, 1), curr, next, nil)
	require.NoError(t, err)
	assert.Equal(t, rwtable.NewGlobalRow(2, false, 0, 1, 42), step.Rows[1])
}

func TestGlobalOutOfRange(t *testing.T) {
	b := NewBuilder(DefaultConfig())

	curr, next := newState(), newState(0)
	curr.Globals, next.Globals = []uint64{7}, []uint64{7}
	step, _, err := build(t, b, program.NewInstruction(program.GlobalGet, 3), curr, next, nil)
	assert.ErrorIs(t, err, rwerrors.ErrMissingState)
	assert.Empty(t, rowsOfKind(step.Rows, rwtable.KindGlobal))

	curr, next = newState(5), newState()
	curr.Globals, next.Globals = []uint64{7}, []uint64{7}
	step, _, err = build(t, b, program.NewInstruction(program.GlobalSet, 3), curr, next, nil)
	assert.ErrorIs(t, err, rwerrors.ErrMissingState)
	assert.Empty(t, rowsOfKind(step.Rows, rwtable.KindGlobal))
}

func TestLoadStore(t *testing.T) {
	b := NewBuilder(DefaultConfig())

	curr := newState(8, 0x11223344)
	next := curr.Clone()
	require.NoError(t, next.Pop(2))
	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], 0x11223344)
	require.NoError(t, next.Memory.WriteBytes(8, word[:]))

	step, _, err := build(t, b, program.NewInstruction(program.I32Store, 0), curr, next, nil)
	require.NoError(t, err)
	require.Len(t, step.Rows, 1+2+4)
	for i, r := range step.Rows[3:] {
		assert.Equal(t, rwtable.NewMemoryRow(uint64(4+i), true, 0, uint64(8+i), word[i], false), r)
	}

	// i32.load offset=4 from base 4 reads the bytes just stored.
	curr = next.Clone()
	curr.Push(4)
	next = curr.Clone()
	require.NoError(t, next.Pop(1))
	next.Push(0x11223344)
	step, _, err = build(t, b, program.NewInstruction(program.I32Load, 4), curr, next, nil)
	require.NoError(t, err)
	require.Len(t, step.Rows, 1+1+4+1)
	for i, r := range step.Rows[2:6] {
		assert.Equal(t, rwtable.NewMemoryRow(uint64(3+i), false, 0, uint64(8+i), word[i], true), r)
	}

	curr = newState(exec.WasmPageSize - 2)
	_, _, err = build(t, b, program.NewInstruction(program.I32Load, 0), curr, newState(0), nil)
	assert.ErrorIs(t, err, rwerrors.ErrMemoryOutOfBounds)
}

func TestTableSet(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	curr := newState(1, 77)
	curr.Tables[0] = exec.NewTable(2, exec.Unbounded)
	next := curr.Clone()
	require.NoError(t, next.Pop(2))
	next.Tables[0].Elements[1] = 77

	step, _, err := build(t, b, program.NewInstruction(program.TableSet, 0), curr, next, nil)
	require.NoError(t, err)
	require.Len(t, step.Rows, 4)
	assert.Equal(t, rwtable.NewTableRow(4, true, 0, 0, 1, 77, true), step.Rows[3])
}

func memoryState(stack ...uint64) *exec.MachineState {
	s := newState(stack...)
	for i := 0; i < 8; i++ {
		s.Memory.Write(uint64(i), byte(i+1))
	}
	return s
}

func TestMemoryCopyOverlap(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	step, _, err := build(t, b, program.NewInstruction(program.MemoryCopy, 0), memoryState(2, 0, 4), nil, nil)
	require.NoError(t, err)
	requirePCFirst(t, step)
	require.Len(t, step.Rows, 1+4)

	// Bytes 2..5 receive the original 1..4, not the bytes the copy itself wrote.
	for i, r := range step.Rows[1:] {
		assert.Equal(t, rwtable.KindMemory, r.Kind)
		assert.True(t, r.IsWrite)
		assert.Equal(t, uint64(2+i), r.Address)
		assert.Equal(t, uint64(i+1), r.Value)
		assert.True(t, r.Initialized)
	}
	got, err := step.Next.Memory.ReadBytes(0, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 1, 2, 3, 4, 7, 8}, got)
	assert.Empty(t, step.Next.Stack)

	require.Len(t, step.CopyRows, 1)
	c := step.CopyRows[0]
	assert.Equal(t, uint64(2), c.RwCounter)
	assert.Equal(t, uint64(4), c.Length)
	assert.True(t, c.Covers(5))
	assert.False(t, c.Covers(6))
}

func TestMemoryCopyZeroLength(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	step, _, err := build(t, b, program.NewInstruction(program.MemoryCopy, 0), memoryState(2, 0, 0), nil, nil)
	require.NoError(t, err)
	assert.Len(t, step.Rows, 1)
	assert.Empty(t, step.CopyRows)
}

func TestMemoryCopyOutOfBounds(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	step, _, err := build(t, b, program.NewInstruction(program.MemoryCopy, 0), memoryState(exec.WasmPageSize-2, 0, 4), nil, nil)
	assert.ErrorIs(t, err, rwerrors.ErrMemoryOutOfBounds)
	assert.Len(t, step.Rows, 1)
}

func TestMemoryCopyReserves(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReserveThreshold = 16
	b := NewBuilder(cfg)
	step, _, err := build(t, b, program.NewInstruction(program.MemoryCopy, 0), newState(1024, 0, 512), nil, nil)
	require.NoError(t, err)
	assert.Len(t, step.Rows, 513)
	assert.NoError(t, rwtable.Verify(step.Rows))
}

func TestMemoryFill(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	step, _, err := build(t, b, program.NewInstruction(program.MemoryFill, 0), memoryState(6, 0x1ff, 3), nil, nil)
	require.NoError(t, err)
	require.Len(t, step.Rows, 4)
	for i, r := range step.Rows[1:] {
		assert.Equal(t, uint64(6+i), r.Address)
		assert.Equal(t, uint64(0xff), r.Value)
	}
	assert.Equal(t, []bool{true, true, false}, []bool{step.Rows[1].Initialized, step.Rows[2].Initialized, step.Rows[3].Initialized})
	require.Len(t, step.CopyRows, 1)
	assert.True(t, step.CopyRows[0].Fill)
	assert.Equal(t, uint64(0xff), step.CopyRows[0].FillValue)
}

func tableState(size, max uint32, stack ...uint64) *exec.MachineState {
	s := newState(stack...)
	t := exec.NewTable(size, max)
	for i := range t.Elements {
		t.Elements[i] = uint64(100 + i)
	}
	s.Tables[0] = t
	s.Tables[1] = exec.NewTable(4, exec.Unbounded)
	return s
}

func TestTableGrow(t *testing.T) {
	b := NewBuilder(DefaultConfig())

	step, _, err := build(t, b, program.NewInstruction(program.TableGrow, 0), tableState(2, 3, 5, 2), nil, nil)
	assert.ErrorIs(t, err, rwerrors.ErrTableOutOfBounds)
	assert.Len(t, step.Rows, 1)

	step, _, err = build(t, b, program.NewInstruction(program.TableGrow, 0), tableState(2, 4, 5, 2), nil, nil)
	require.NoError(t, err)
	require.Len(t, step.Rows, 3)
	assert.Equal(t, rwtable.NewTableRow(2, true, 0, 0, 2, 5, false), step.Rows[1])
	assert.Equal(t, rwtable.NewTableRow(3, true, 0, 0, 3, 5, false), step.Rows[2])
	assert.Equal(t, []uint64{2}, step.Next.Stack)
	assert.Equal(t, uint64(4), step.Next.Tables[0].Len())
	assert.Equal(t, uint64(2), step.Curr.Tables[0].Len())
}

func TestTableFillCopyGet(t *testing.T) {
	b := NewBuilder(DefaultConfig())

	step, _, err := build(t, b, program.NewInstruction(program.TableFill, 1), tableState(2, 2, 1, 9, 3), nil, nil)
	require.NoError(t, err)
	require.Len(t, step.Rows, 4)
	assert.Equal(t, []uint64{exec.NullRef, 9, 9, 9}, step.Next.Tables[1].Elements)

	_, _, err = build(t, b, program.NewInstruction(program.TableFill, 1), tableState(2, 2, 2, 9, 3), nil, nil)
	assert.ErrorIs(t, err, rwerrors.ErrTableOutOfBounds)

	step, _, err = build(t, b, program.TableCopyInstruction(1, 0), tableState(2, 2, 2, 0, 2), nil, nil)
	require.NoError(t, err)
	require.Len(t, step.Rows, 3)
	assert.Equal(t, rwtable.NewTableRow(2, true, 0, 1, 2, 100, true), step.Rows[1])
	assert.Equal(t, rwtable.NewTableRow(3, true, 0, 1, 3, 101, true), step.Rows[2])
	require.Len(t, step.CopyRows, 1)
	assert.Equal(t, rwtable.KindTable, step.CopyRows[0].SrcKind)
	assert.Equal(t, uint32(1), step.CopyRows[0].DstTableIdx)

	step, _, err = build(t, b, program.NewInstruction(program.TableGet, 0), tableState(2, 2, 1), nil, nil)
	require.NoError(t, err)
	require.Len(t, step.Rows, 2)
	assert.Equal(t, rwtable.NewTableRow(2, false, 0, 0, 1, 101, true), step.Rows[1])
	assert.Equal(t, []uint64{101}, step.Next.Stack)

	_, _, err = build(t, b, program.NewInstruction(program.TableGet, 7), tableState(2, 2, 1), nil, nil)
	assert.ErrorIs(t, err, rwerrors.ErrTableOutOfBounds)
}

func TestConsumeFuel(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	rt := newRuntime(10)

	step, _, err := build(t, b, program.NewInstruction(program.ConsumeFuel, 4), newState(), nil, rt)
	require.NoError(t, err)
	require.Len(t, step.Rows, 2)
	assert.Equal(t, rwtable.NewContextRow(2, true, 0, rwtable.TagConsumedFuel, 4), step.Rows[1])
	assert.Equal(t, uint64(4), rt.FuelConsumed)

	step, _, err = build(t, b, program.NewInstruction(program.ConsumeFuel, 7), newState(), nil, rt)
	assert.ErrorIs(t, err, rwerrors.ErrOutOfFuel)
	assert.Len(t, step.Rows, 1)
	assert.Equal(t, uint64(4), rt.FuelConsumed)

	_, _, err = build(t, b, program.NewInstruction(program.ConsumeFuel, 1), newState(), nil, nil)
	assert.ErrorIs(t, err, rwerrors.ErrMissingState)
}

func TestReturnEmitsOnlyProgramCounter(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	step := exec.NewStep(exec.NewCounter(), newRuntime(0), 3, program.NewInstruction(program.Return, 0), 1, newState(), nil)
	_, err := b.Build(context.Background(), step)
	require.NoError(t, err)
	assert.Len(t, step.Rows, 1)
	assert.Equal(t, uint32(3), step.Rows[0].CallID)
}

func TestSessionDiscardsFailedStep(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	s := NewSession(b, newRuntime(5))
	ctx := context.Background()

	_, _, err := s.Step(ctx, program.NewInstruction(program.I32Const, 1), 1, newState(), newState(1))
	require.NoError(t, err)
	_, _, err = s.Step(ctx, program.NewInstruction(program.ConsumeFuel, 50), 1, newState(1), nil)
	require.ErrorIs(t, err, rwerrors.ErrOutOfFuel)
	_, _, err = s.Step(ctx, program.NewInstruction(program.Drop, 0), 1, newState(1), newState())
	require.NoError(t, err)

	rows := s.Trace().Rows()
	require.Len(t, rows, 4)
	assert.NoError(t, rwtable.Verify(rows))
	assert.Equal(t, uint64(4), rows[3].RwCounter)
	assert.Equal(t, uint64(5), s.Counter().Peek())
	assert.NoError(t, s.Close())
}
