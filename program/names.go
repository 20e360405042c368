package program

import "fmt"

var opcodeNames = map[Opcode]string{
	LocalGet:            "LocalGet",
	LocalSet:            "LocalSet",
	LocalTee:            "LocalTee",
	Br:                  "Br",
	BrIfEqz:             "BrIfEqz",
	BrIfNez:             "BrIfNez",
	BrAdjust:            "BrAdjust",
	BrAdjustIfNez:       "BrAdjustIfNez",
	BrTable:             "BrTable",
	Unreachable:         "Unreachable",
	ConsumeFuel:         "ConsumeFuel",
	Return:              "Return",
	ReturnIfNez:         "ReturnIfNez",
	ReturnCallInternal:  "ReturnCallInternal",
	ReturnCall:          "ReturnCall",
	ReturnCallIndirect:  "ReturnCallIndirect",
	CallInternal:        "CallInternal",
	Call:                "Call",
	CallIndirect:        "CallIndirect",
	Drop:                "Drop",
	Select:              "Select",
	GlobalGet:           "GlobalGet",
	GlobalSet:           "GlobalSet",
	I32Load:             "I32Load",
	I64Load:             "I64Load",
	F32Load:             "F32Load",
	F64Load:             "F64Load",
	I32Load8S:           "I32Load8S",
	I32Load8U:           "I32Load8U",
	I32Load16S:          "I32Load16S",
	I32Load16U:          "I32Load16U",
	I64Load8S:           "I64Load8S",
	I64Load8U:           "I64Load8U",
	I64Load16S:          "I64Load16S",
	I64Load16U:          "I64Load16U",
	I64Load32S:          "I64Load32S",
	I64Load32U:          "I64Load32U",
	I32Store:            "I32Store",
	I64Store:            "I64Store",
	F32Store:            "F32Store",
	F64Store:            "F64Store",
	I32Store8:           "I32Store8",
	I32Store16:          "I32Store16",
	I64Store8:           "I64Store8",
	I64Store16:          "I64Store16",
	I64Store32:          "I64Store32",
	MemorySize:          "MemorySize",
	MemoryGrow:          "MemoryGrow",
	MemoryFill:          "MemoryFill",
	MemoryCopy:          "MemoryCopy",
	MemoryInit:          "MemoryInit",
	DataDrop:            "DataDrop",
	TableSize:           "TableSize",
	TableGrow:           "TableGrow",
	TableFill:           "TableFill",
	TableGet:            "TableGet",
	TableSet:            "TableSet",
	TableCopy:           "TableCopy",
	TableInit:           "TableInit",
	ElemDrop:            "ElemDrop",
	RefFunc:             "RefFunc",
	I32Const:            "I32Const",
	I64Const:            "I64Const",
	ConstRef:            "ConstRef",
	I32Eqz:              "I32Eqz",
	I32Eq:               "I32Eq",
	I32Ne:               "I32Ne",
	I32LtS:              "I32LtS",
	I32LtU:              "I32LtU",
	I32GtS:              "I32GtS",
	I32GtU:              "I32GtU",
	I32LeS:              "I32LeS",
	I32LeU:              "I32LeU",
	I32GeS:              "I32GeS",
	I32GeU:              "I32GeU",
	I64Eqz:              "I64Eqz",
	I64Eq:               "I64Eq",
	I64Ne:               "I64Ne",
	I64LtS:              "I64LtS",
	I64LtU:              "I64LtU",
	I64GtS:              "I64GtS",
	I64GtU:              "I64GtU",
	I64LeS:              "I64LeS",
	I64LeU:              "I64LeU",
	I64GeS:              "I64GeS",
	I64GeU:              "I64GeU",
	F32Eq:               "F32Eq",
	F32Ne:               "F32Ne",
	F32Lt:               "F32Lt",
	F32Gt:               "F32Gt",
	F32Le:               "F32Le",
	F32Ge:               "F32Ge",
	F64Eq:               "F64Eq",
	F64Ne:               "F64Ne",
	F64Lt:               "F64Lt",
	F64Gt:               "F64Gt",
	F64Le:               "F64Le",
	F64Ge:               "F64Ge",
	I32Clz:              "I32Clz",
	I32Ctz:              "I32Ctz",
	I32Popcnt:           "I32Popcnt",
	I32Add:              "I32Add",
	I32Sub:              "I32Sub",
	I32Mul:              "I32Mul",
	I32DivS:             "I32DivS",
	I32DivU:             "I32DivU",
	I32RemS:             "I32RemS",
	I32RemU:             "I32RemU",
	I32And:              "I32And",
	I32Or:               "I32Or",
	I32Xor:              "I32Xor",
	I32Shl:              "I32Shl",
	I32ShrS:             "I32ShrS",
	I32ShrU:             "I32ShrU",
	I32Rotl:             "I32Rotl",
	I32Rotr:             "I32Rotr",
	I64Clz:              "I64Clz",
	I64Ctz:              "I64Ctz",
	I64Popcnt:           "I64Popcnt",
	I64Add:              "I64Add",
	I64Sub:              "I64Sub",
	I64Mul:              "I64Mul",
	I64DivS:             "I64DivS",
	I64DivU:             "I64DivU",
	I64RemS:             "I64RemS",
	I64RemU:             "I64RemU",
	I64And:              "I64And",
	I64Or:               "I64Or",
	I64Xor:              "I64Xor",
	I64Shl:              "I64Shl",
	I64ShrS:             "I64ShrS",
	I64ShrU:             "I64ShrU",
	I64Rotl:             "I64Rotl",
	I64Rotr:             "I64Rotr",
	F32Abs:              "F32Abs",
	F32Neg:              "F32Neg",
	F32Ceil:             "F32Ceil",
	F32Floor:            "F32Floor",
	F32Trunc:            "F32Trunc",
	F32Nearest:          "F32Nearest",
	F32Sqrt:             "F32Sqrt",
	F32Add:              "F32Add",
	F32Sub:              "F32Sub",
	F32Mul:              "F32Mul",
	F32Div:              "F32Div",
	F32Min:              "F32Min",
	F32Max:              "F32Max",
	F32Copysign:         "F32Copysign",
	F64Abs:              "F64Abs",
	F64Neg:              "F64Neg",
	F64Ceil:             "F64Ceil",
	F64Floor:            "F64Floor",
	F64Trunc:            "F64Trunc",
	F64Nearest:          "F64Nearest",
	F64Sqrt:             "F64Sqrt",
	F64Add:              "F64Add",
	F64Sub:              "F64Sub",
	F64Mul:              "F64Mul",
	F64Div:              "F64Div",
	F64Min:              "F64Min",
	F64Max:              "F64Max",
	F64Copysign:         "F64Copysign",
	I32WrapI64:          "I32WrapI64",
	I32TruncF32S:        "I32TruncF32S",
	I32TruncF32U:        "I32TruncF32U",
	I32TruncF64S:        "I32TruncF64S",
	I32TruncF64U:        "I32TruncF64U",
	I64ExtendI32S:       "I64ExtendI32S",
	I64ExtendI32U:       "I64ExtendI32U",
	I64TruncF32S:        "I64TruncF32S",
	I64TruncF32U:        "I64TruncF32U",
	I64TruncF64S:        "I64TruncF64S",
	I64TruncF64U:        "I64TruncF64U",
	F32ConvertI32S:      "F32ConvertI32S",
	F32ConvertI32U:      "F32ConvertI32U",
	F32ConvertI64S:      "F32ConvertI64S",
	F32ConvertI64U:      "F32ConvertI64U",
	F32DemoteF64:        "F32DemoteF64",
	F64ConvertI32S:      "F64ConvertI32S",
	F64ConvertI32U:      "F64ConvertI32U",
	F64ConvertI64S:      "F64ConvertI64S",
	F64ConvertI64U:      "F64ConvertI64U",
	F64PromoteF32:       "F64PromoteF32",
	I32Extend8S:         "I32Extend8S",
	I32Extend16S:        "I32Extend16S",
	I64Extend8S:         "I64Extend8S",
	I64Extend16S:        "I64Extend16S",
	I64Extend32S:        "I64Extend32S",
	I32TruncSatF32S:     "I32TruncSatF32S",
	I32TruncSatF32U:     "I32TruncSatF32U",
	I32TruncSatF64S:     "I32TruncSatF64S",
	I32TruncSatF64U:     "I32TruncSatF64U",
	I64TruncSatF32S:     "I64TruncSatF32S",
	I64TruncSatF32U:     "I64TruncSatF32U",
	I64TruncSatF64S:     "I64TruncSatF64S",
	I64TruncSatF64U:     "I64TruncSatF64U",
	SanitizerStackCheck: "SanitizerStackCheck",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(0x%x)", uint16(o))
}

// OpcodeByName resolves the mnemonic used in String.
func OpcodeByName(name string) (Opcode, bool) {
	for op, n := range opcodeNames {
		if n == name {
			return op, true
		}
	}
	return 0, false
}
