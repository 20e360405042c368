package exec

import (
	"github.com/colorfulnotion/rwtrace/common"
	"github.com/colorfulnotion/rwtrace/program"
	"github.com/colorfulnotion/rwtrace/rwtable"
)

// Step is the execution context of one instruction. The engine fills Curr
// (pre-state) and, for plain instructions, Next (post-state). For platform
// calls, bulk operations and fuel metering the builder derives Next from Curr
// itself, since it performs those effects.
type Step struct {
	Instr   program.Instruction
	PcDiff  uint64
	CallID  uint32
	Counter *Counter
	Runtime *Runtime

	Curr *MachineState
	Next *MachineState

	Rows     []rwtable.Row
	CopyRows []rwtable.CopyRow
}

func NewStep(counter *Counter, rt *Runtime, callID uint32, instr program.Instruction, pcDiff uint64, curr, next *MachineState) *Step {
	return &Step{
		Instr:   instr,
		PcDiff:  pcDiff,
		CallID:  callID,
		Counter: counter,
		Runtime: rt,
		Curr:    curr,
		Next:    next,
	}
}

func (s *Step) FuelLimit() uint64 {
	return s.Runtime.FuelLimit
}

func (s *Step) FuelRemaining() uint64 {
	return s.Runtime.FuelRemaining()
}

// Reserve grows the row log so that n more rows append without reallocating.
func (s *Step) Reserve(n uint64) {
	if free := uint64(cap(s.Rows) - len(s.Rows)); n > free {
		grown := make([]rwtable.Row, len(s.Rows), uint64(len(s.Rows))+n)
		copy(grown, s.Rows)
		s.Rows = grown
	}
}

// Append adds rows that already carry counters, such as a finished child's.
func (s *Step) Append(rows []rwtable.Row, copies []rwtable.CopyRow) {
	s.Rows = append(s.Rows, rows...)
	s.CopyRows = append(s.CopyRows, copies...)
}

func (s *Step) PushContext(isWrite bool, tag rwtable.ContextTag, value uint64) {
	s.Rows = append(s.Rows, rwtable.NewContextRow(s.Counter.Next(), isWrite, s.CallID, tag, value))
}

func (s *Step) PushStack(isWrite bool, addr uint64, value uint64, existed bool) {
	s.Rows = append(s.Rows, rwtable.NewStackRow(s.Counter.Next(), isWrite, s.CallID, addr, value, existed))
}

func (s *Step) PushMemory(isWrite bool, addr uint64, value byte, existed bool) {
	s.Rows = append(s.Rows, rwtable.NewMemoryRow(s.Counter.Next(), isWrite, s.CallID, addr, value, existed))
}

func (s *Step) PushTable(isWrite bool, tableIdx uint32, addr uint64, value uint64, existed bool) {
	s.Rows = append(s.Rows, rwtable.NewTableRow(s.Counter.Next(), isWrite, s.CallID, tableIdx, addr, value, existed))
}

func (s *Step) PushGlobal(isWrite bool, idx uint64, value uint64) {
	s.Rows = append(s.Rows, rwtable.NewGlobalRow(s.Counter.Next(), isWrite, s.CallID, idx, value))
}

func (s *Step) PushStorage(isWrite bool, key, word common.Hash, existed bool) {
	s.Rows = append(s.Rows, rwtable.NewStorageRow(s.Counter.Next(), isWrite, s.CallID, key, word, existed))
}

func (s *Step) PushSyscall(isWrite bool, pos uint64, value uint64) {
	s.Rows = append(s.Rows, rwtable.NewSyscallRow(s.Counter.Next(), isWrite, s.CallID, pos, value))
}

// PushCopy records a bulk transfer whose first data row is the next row.
func (s *Step) PushCopy(c rwtable.CopyRow) {
	c.RwCounter = s.Counter.Peek()
	c.CallID = s.CallID
	s.CopyRows = append(s.CopyRows, c)
}

// Derive makes Next a copy of Curr for steps whose effects the builder applies.
func (s *Step) Derive() {
	if s.Curr == nil {
		s.Next = nil
		return
	}
	s.Next = s.Curr.Clone()
}
