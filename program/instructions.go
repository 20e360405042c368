package program

import "fmt"

// Opcode identifies an rWASM instruction. Values are grouped by the shape of
// their stack/local/memory accesses; the ordering carries no other meaning.
type Opcode uint16

// Locals.
const (
	LocalGet Opcode = 0x00
	LocalSet Opcode = 0x01
	LocalTee Opcode = 0x02
)

// Control flow.
const (
	Br                 Opcode = 0x10
	BrIfEqz            Opcode = 0x11
	BrIfNez            Opcode = 0x12
	BrAdjust           Opcode = 0x13
	BrAdjustIfNez      Opcode = 0x14
	BrTable            Opcode = 0x15
	Unreachable        Opcode = 0x16
	ConsumeFuel        Opcode = 0x17
	Return             Opcode = 0x18
	ReturnIfNez        Opcode = 0x19
	ReturnCallInternal Opcode = 0x1a
	ReturnCall         Opcode = 0x1b
	ReturnCallIndirect Opcode = 0x1c
	CallInternal       Opcode = 0x1d
	Call               Opcode = 0x1e
	CallIndirect       Opcode = 0x1f
)

// Parametric and globals.
const (
	Drop      Opcode = 0x20
	Select    Opcode = 0x21
	GlobalGet Opcode = 0x22
	GlobalSet Opcode = 0x23
)

// Loads. Aux carries the static address offset.
const (
	I32Load    Opcode = 0x30
	I64Load    Opcode = 0x31
	F32Load    Opcode = 0x32
	F64Load    Opcode = 0x33
	I32Load8S  Opcode = 0x34
	I32Load8U  Opcode = 0x35
	I32Load16S Opcode = 0x36
	I32Load16U Opcode = 0x37
	I64Load8S  Opcode = 0x38
	I64Load8U  Opcode = 0x39
	I64Load16S Opcode = 0x3a
	I64Load16U Opcode = 0x3b
	I64Load32S Opcode = 0x3c
	I64Load32U Opcode = 0x3d
)

// Stores. Aux carries the static address offset.
const (
	I32Store   Opcode = 0x40
	I64Store   Opcode = 0x41
	F32Store   Opcode = 0x42
	F64Store   Opcode = 0x43
	I32Store8  Opcode = 0x44
	I32Store16 Opcode = 0x45
	I64Store8  Opcode = 0x46
	I64Store16 Opcode = 0x47
	I64Store32 Opcode = 0x48
)

// Memory and table management. Aux carries the table index; TableCopy packs
// the source table into the high 32 bits.
const (
	MemorySize Opcode = 0x50
	MemoryGrow Opcode = 0x51
	MemoryFill Opcode = 0x52
	MemoryCopy Opcode = 0x53
	MemoryInit Opcode = 0x54
	DataDrop   Opcode = 0x55
	TableSize  Opcode = 0x56
	TableGrow  Opcode = 0x57
	TableFill  Opcode = 0x58
	TableGet   Opcode = 0x59
	TableSet   Opcode = 0x5a
	TableCopy  Opcode = 0x5b
	TableInit  Opcode = 0x5c
	ElemDrop   Opcode = 0x5d
	RefFunc    Opcode = 0x5e
)

// Constants.
const (
	I32Const Opcode = 0x60
	I64Const Opcode = 0x61
	ConstRef Opcode = 0x62
)

// Tests and comparisons.
const (
	I32Eqz Opcode = 0x70 + iota
	I32Eq
	I32Ne
	I32LtS
	I32LtU
	I32GtS
	I32GtU
	I32LeS
	I32LeU
	I32GeS
	I32GeU
	I64Eqz
	I64Eq
	I64Ne
	I64LtS
	I64LtU
	I64GtS
	I64GtU
	I64LeS
	I64LeU
	I64GeS
	I64GeU
	F32Eq
	F32Ne
	F32Lt
	F32Gt
	F32Le
	F32Ge
	F64Eq
	F64Ne
	F64Lt
	F64Gt
	F64Le
	F64Ge
)

// Integer arithmetic.
const (
	I32Clz Opcode = 0xa0 + iota
	I32Ctz
	I32Popcnt
	I32Add
	I32Sub
	I32Mul
	I32DivS
	I32DivU
	I32RemS
	I32RemU
	I32And
	I32Or
	I32Xor
	I32Shl
	I32ShrS
	I32ShrU
	I32Rotl
	I32Rotr
	I64Clz
	I64Ctz
	I64Popcnt
	I64Add
	I64Sub
	I64Mul
	I64DivS
	I64DivU
	I64RemS
	I64RemU
	I64And
	I64Or
	I64Xor
	I64Shl
	I64ShrS
	I64ShrU
	I64Rotl
	I64Rotr
)

// Float arithmetic.
const (
	F32Abs Opcode = 0xd0 + iota
	F32Neg
	F32Ceil
	F32Floor
	F32Trunc
	F32Nearest
	F32Sqrt
	F32Add
	F32Sub
	F32Mul
	F32Div
	F32Min
	F32Max
	F32Copysign
	F64Abs
	F64Neg
	F64Ceil
	F64Floor
	F64Trunc
	F64Nearest
	F64Sqrt
	F64Add
	F64Sub
	F64Mul
	F64Div
	F64Min
	F64Max
	F64Copysign
)

// Conversions.
const (
	I32WrapI64 Opcode = 0x100 + iota
	I32TruncF32S
	I32TruncF32U
	I32TruncF64S
	I32TruncF64U
	I64ExtendI32S
	I64ExtendI32U
	I64TruncF32S
	I64TruncF32U
	I64TruncF64S
	I64TruncF64U
	F32ConvertI32S
	F32ConvertI32U
	F32ConvertI64S
	F32ConvertI64U
	F32DemoteF64
	F64ConvertI32S
	F64ConvertI32U
	F64ConvertI64S
	F64ConvertI64U
	F64PromoteF32
	I32Extend8S
	I32Extend16S
	I64Extend8S
	I64Extend16S
	I64Extend32S
	I32TruncSatF32S
	I32TruncSatF32U
	I32TruncSatF64S
	I32TruncSatF64U
	I64TruncSatF32S
	I64TruncSatF32U
	I64TruncSatF64S
	I64TruncSatF64U
)

const SanitizerStackCheck Opcode = 0x140

// Instruction is a decoded instruction with its single immediate.
type Instruction struct {
	Op  Opcode `json:"op"`
	Aux uint64 `json:"aux"`
}

func NewInstruction(op Opcode, aux uint64) Instruction {
	return Instruction{Op: op, Aux: aux}
}

// TableCopyInstruction packs both table indices into Aux.
func TableCopyInstruction(dst, src uint32) Instruction {
	return Instruction{Op: TableCopy, Aux: uint64(dst) | uint64(src)<<32}
}

// TableIndices splits a TableCopy immediate into (dst, src).
func (i Instruction) TableIndices() (uint32, uint32) {
	return uint32(i.Aux), uint32(i.Aux >> 32)
}

func (i Instruction) String() string {
	switch i.Op {
	case Call:
		return fmt.Sprintf("%s(%s)", i.Op, SysFuncIdx(i.Aux))
	case TableCopy:
		dst, src := i.TableIndices()
		return fmt.Sprintf("%s(%d<-%d)", i.Op, dst, src)
	}
	if _, ok := immediateless[i.Op]; ok {
		return i.Op.String()
	}
	return fmt.Sprintf("%s(%d)", i.Op, i.Aux)
}

var immediateless = map[Opcode]struct{}{
	Unreachable: {}, Drop: {}, Select: {}, MemorySize: {}, MemoryGrow: {},
	MemoryFill: {}, MemoryCopy: {},
}
