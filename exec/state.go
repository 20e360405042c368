package exec

import (
	"fmt"
	"math"

	"github.com/colorfulnotion/rwtrace/rwerrors"
)

// Unbounded is the Max of a table without a declared maximum.
const Unbounded = math.MaxUint32

// Table is a table of function references. Null references are stored as
// NullRef; every element inside Len has been initialised.
type Table struct {
	Elements []uint64 `json:"elements"`
	Max      uint32   `json:"max"`
}

const NullRef = math.MaxUint64

func NewTable(size, max uint32) *Table {
	t := &Table{Elements: make([]uint64, size), Max: max}
	for i := range t.Elements {
		t.Elements[i] = NullRef
	}
	return t
}

func (t *Table) Len() uint64 {
	return uint64(len(t.Elements))
}

// CheckRange returns ErrTableOutOfBounds when [start, start+n) is outside.
func (t *Table) CheckRange(tableIdx uint32, start, n uint64) error {
	end := start + n
	if end < start || end > t.Len() {
		return fmt.Errorf("%w: table %d range [%d, %d+%d) size %d", rwerrors.ErrTableOutOfBounds, tableIdx, start, start, n, t.Len())
	}
	return nil
}

// CheckGrow returns ErrTableOutOfBounds when growing by delta passes Max.
func (t *Table) CheckGrow(tableIdx uint32, delta uint64) error {
	if t.Len()+delta > uint64(t.Max) || t.Len()+delta < t.Len() {
		return fmt.Errorf("%w: table %d size %d grow %d max %d", rwerrors.ErrTableOutOfBounds, tableIdx, t.Len(), delta, t.Max)
	}
	return nil
}

// Get returns the element and whether idx is inside the table.
func (t *Table) Get(idx uint64) (uint64, bool) {
	if idx >= t.Len() {
		return 0, false
	}
	return t.Elements[idx], true
}

func (t *Table) Clone() *Table {
	return &Table{Elements: append([]uint64(nil), t.Elements...), Max: t.Max}
}

// MachineState is the guest-visible state around one instruction. The value
// stack also holds locals, addressed relative to the stack pointer.
type MachineState struct {
	Stack   []uint64          `json:"stack"`
	Memory  *Memory           `json:"memory"`
	Tables  map[uint32]*Table `json:"tables"`
	Globals []uint64          `json:"globals"`
}

func NewMachineState(memPages uint32) *MachineState {
	return &MachineState{Memory: NewMemory(memPages), Tables: make(map[uint32]*Table)}
}

// StackAt returns the slot at absolute position addr and whether it exists.
func (s *MachineState) StackAt(addr uint64) (uint64, bool) {
	if addr >= uint64(len(s.Stack)) {
		return 0, false
	}
	return s.Stack[addr], true
}

// Peek returns the value depth slots below the top.
func (s *MachineState) Peek(depth uint32) (uint64, error) {
	if uint64(depth) >= uint64(len(s.Stack)) {
		return 0, fmt.Errorf("%w: depth %d with %d slots", rwerrors.ErrStackUnderflow, depth, len(s.Stack))
	}
	return s.Stack[len(s.Stack)-1-int(depth)], nil
}

// TopAddr is the absolute address of the slot depth below the top.
func (s *MachineState) TopAddr(depth uint32) (uint64, error) {
	if uint64(depth) >= uint64(len(s.Stack)) {
		return 0, fmt.Errorf("%w: depth %d with %d slots", rwerrors.ErrStackUnderflow, depth, len(s.Stack))
	}
	return uint64(len(s.Stack) - 1 - int(depth)), nil
}

func (s *MachineState) Push(v uint64) {
	s.Stack = append(s.Stack, v)
}

// Pop removes n values from the top.
func (s *MachineState) Pop(n int) error {
	if n > len(s.Stack) {
		return fmt.Errorf("%w: pop %d of %d", rwerrors.ErrStackUnderflow, n, len(s.Stack))
	}
	s.Stack = s.Stack[:len(s.Stack)-n]
	return nil
}

func (s *MachineState) Global(idx uint64) (uint64, bool) {
	if idx >= uint64(len(s.Globals)) {
		return 0, false
	}
	return s.Globals[idx], true
}

// Table returns table idx or ErrTableOutOfBounds.
func (s *MachineState) Table(idx uint32) (*Table, error) {
	t, ok := s.Tables[idx]
	if !ok {
		return nil, fmt.Errorf("%w: no table %d", rwerrors.ErrTableOutOfBounds, idx)
	}
	return t, nil
}

func (s *MachineState) Clone() *MachineState {
	c := &MachineState{
		Stack:   append([]uint64(nil), s.Stack...),
		Globals: append([]uint64(nil), s.Globals...),
		Tables:  make(map[uint32]*Table, len(s.Tables)),
	}
	if s.Memory != nil {
		c.Memory = s.Memory.Clone()
	}
	for idx, t := range s.Tables {
		c.Tables[idx] = t.Clone()
	}
	return c
}
