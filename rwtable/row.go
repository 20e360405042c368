package rwtable

import (
	"fmt"

	"github.com/colorfulnotion/rwtrace/common"
)

// Kind is the state domain a row touches.
type Kind uint8

const (
	KindStack Kind = iota + 1
	KindMemory
	KindTable
	KindGlobal
	KindStorage
	KindContext
	KindSyscall
)

var kindNames = map[Kind]string{
	KindStack:   "Stack",
	KindMemory:  "Memory",
	KindTable:   "Table",
	KindGlobal:  "Global",
	KindStorage: "Storage",
	KindContext: "Context",
	KindSyscall: "Syscall",
}

// Kinds lists every row kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindStack, KindMemory, KindTable, KindGlobal, KindStorage, KindContext, KindSyscall}
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown row kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for kind, n := range kindNames {
		if n == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown row kind %q", b)
}

// ContextTag names the per-frame field a Context row describes. New tags are
// appended; a tag only produces rows once it is listed as active.
type ContextTag uint8

const (
	TagNone ContextTag = iota
	TagProgramCounter
	TagConsumedFuel
	TagMemorySize   // reserved
	TagStackPointer // reserved
	TagCallDepth    // reserved
)

var contextTagNames = map[ContextTag]string{
	TagNone:           "",
	TagProgramCounter: "ProgramCounter",
	TagConsumedFuel:   "ConsumedFuel",
	TagMemorySize:     "MemorySize",
	TagStackPointer:   "StackPointer",
	TagCallDepth:      "CallDepth",
}

var activeTags = map[ContextTag]bool{
	TagProgramCounter: true,
	TagConsumedFuel:   true,
}

// Active reports whether generators emit rows with this tag.
func (t ContextTag) Active() bool {
	return activeTags[t]
}

func (t ContextTag) String() string {
	if n, ok := contextTagNames[t]; ok {
		return n
	}
	return fmt.Sprintf("ContextTag(%d)", uint8(t))
}

func (t ContextTag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ContextTag) UnmarshalText(b []byte) error {
	for tag, n := range contextTagNames {
		if n == string(b) {
			*t = tag
			return nil
		}
	}
	return fmt.Errorf("unknown context tag %q", b)
}

// Row is a single state access. Rows are values; once appended to a log
// they are only read back.
type Row struct {
	RwCounter   uint64      `json:"rw_counter"`
	IsWrite     bool        `json:"is_write"`
	CallID      uint32      `json:"call_id"`
	Kind        Kind        `json:"kind"`
	Address     uint64      `json:"address"`
	TableIdx    uint32      `json:"table_idx,omitempty"`
	Tag         ContextTag  `json:"tag,omitempty"`
	Value       uint64      `json:"value"`
	Key         common.Hash `json:"key"`
	Word        common.Hash `json:"word"`
	Initialized bool        `json:"initialized"`
}

func (r Row) String() string {
	rw := "R"
	if r.IsWrite {
		rw = "W"
	}
	switch r.Kind {
	case KindContext:
		return fmt.Sprintf("#%d %s call=%d %s %s=%d", r.RwCounter, rw, r.CallID, r.Kind, r.Tag, r.Value)
	case KindStorage:
		return fmt.Sprintf("#%d %s call=%d %s %s=%s", r.RwCounter, rw, r.CallID, r.Kind, r.Key.Short(), r.Word.Short())
	case KindTable:
		return fmt.Sprintf("#%d %s call=%d %s[%d][%d]=%d", r.RwCounter, rw, r.CallID, r.Kind, r.TableIdx, r.Address, r.Value)
	default:
		return fmt.Sprintf("#%d %s call=%d %s[%d]=%d", r.RwCounter, rw, r.CallID, r.Kind, r.Address, r.Value)
	}
}

func NewStackRow(counter uint64, isWrite bool, callID uint32, addr uint64, value uint64, initialized bool) Row {
	return Row{RwCounter: counter, IsWrite: isWrite, CallID: callID, Kind: KindStack, Address: addr, Value: value, Initialized: initialized}
}

func NewMemoryRow(counter uint64, isWrite bool, callID uint32, addr uint64, value byte, initialized bool) Row {
	return Row{RwCounter: counter, IsWrite: isWrite, CallID: callID, Kind: KindMemory, Address: addr, Value: uint64(value), Initialized: initialized}
}

func NewTableRow(counter uint64, isWrite bool, callID uint32, tableIdx uint32, addr uint64, value uint64, initialized bool) Row {
	return Row{RwCounter: counter, IsWrite: isWrite, CallID: callID, Kind: KindTable, TableIdx: tableIdx, Address: addr, Value: value, Initialized: initialized}
}

func NewGlobalRow(counter uint64, isWrite bool, callID uint32, globalIdx uint64, value uint64) Row {
	return Row{RwCounter: counter, IsWrite: isWrite, CallID: callID, Kind: KindGlobal, Address: globalIdx, Value: value, Initialized: true}
}

func NewStorageRow(counter uint64, isWrite bool, callID uint32, key common.Hash, word common.Hash, initialized bool) Row {
	return Row{RwCounter: counter, IsWrite: isWrite, CallID: callID, Kind: KindStorage, Key: key, Word: word, Initialized: initialized}
}

func NewContextRow(counter uint64, isWrite bool, callID uint32, tag ContextTag, value uint64) Row {
	return Row{RwCounter: counter, IsWrite: isWrite, CallID: callID, Kind: KindContext, Tag: tag, Value: value, Initialized: true}
}

// NewSyscallRow records one logical argument or result of a platform call;
// addr is the argument position within the call.
func NewSyscallRow(counter uint64, isWrite bool, callID uint32, addr uint64, value uint64) Row {
	return Row{RwCounter: counter, IsWrite: isWrite, CallID: callID, Kind: KindSyscall, Address: addr, Value: value, Initialized: true}
}
