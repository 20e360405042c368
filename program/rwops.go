package program

// RwOpKind names one access in an instruction's operand shape.
type RwOpKind uint8

const (
	StackRead   RwOpKind = iota + 1 // value at Depth below the top of the pre-state stack
	StackWrite                      // value at Depth below the top of the post-state stack
	LocalRead                       // slot at the immediate depth below the pre-state stack pointer
	LocalWrite                      // slot at the immediate depth below the post-state stack pointer
	GlobalRead                      // global named by the immediate
	GlobalWrite                     //
	MemoryRead                      // Width bytes at stack[AddrDepth] + immediate
	MemoryWrite                     //
	TableWrite                      // element stack[AddrDepth] of the table named by the immediate
)

// RwOp is one entry of an operand shape. Depth is used by stack accesses,
// AddrDepth and Width by memory and table accesses.
type RwOp struct {
	Kind      RwOpKind
	Depth     uint32
	AddrDepth uint32
	Width     uint32
}

func stackRead(depth uint32) RwOp  { return RwOp{Kind: StackRead, Depth: depth} }
func stackWrite(depth uint32) RwOp { return RwOp{Kind: StackWrite, Depth: depth} }

var (
	shapeNone    = []RwOp{}
	shapePush    = []RwOp{stackWrite(0)}
	shapePop     = []RwOp{stackRead(0)}
	shapeUnary   = []RwOp{stackRead(0), stackWrite(0)}
	shapeBinary  = []RwOp{stackRead(1), stackRead(0), stackWrite(0)}
	shapeTernary = []RwOp{stackRead(2), stackRead(1), stackRead(0)}
)

func loadShape(width uint32) []RwOp {
	return []RwOp{stackRead(0), {Kind: MemoryRead, AddrDepth: 0, Width: width}, stackWrite(0)}
}

func storeShape(width uint32) []RwOp {
	return []RwOp{stackRead(1), stackRead(0), {Kind: MemoryWrite, AddrDepth: 1, Width: width}}
}

// shapeTable maps every opcode handled by the generic generator to its
// ordered accesses. Opcodes with dedicated generators are absent.
var shapeTable = newShapeTable()

func newShapeTable() map[Opcode][]RwOp {
	t := map[Opcode][]RwOp{
		LocalGet: {{Kind: LocalRead}, stackWrite(0)},
		LocalSet: {stackRead(0), {Kind: LocalWrite}},
		LocalTee: {stackRead(0), {Kind: LocalWrite}},

		Br:                 shapeNone,
		BrIfEqz:            shapePop,
		BrIfNez:            shapePop,
		BrAdjust:           shapeNone,
		BrAdjustIfNez:      shapePop,
		BrTable:            shapePop,
		Unreachable:        shapeNone,
		ReturnIfNez:        shapePop,
		ReturnCallInternal: shapeNone,
		ReturnCall:         shapeNone,
		ReturnCallIndirect: shapePop,
		CallInternal:       shapeNone,
		CallIndirect:       shapePop,

		Drop:      shapePop,
		Select:    {stackRead(2), stackRead(1), stackRead(0), stackWrite(0)},
		GlobalGet: {{Kind: GlobalRead}, stackWrite(0)},
		GlobalSet: {stackRead(0), {Kind: GlobalWrite}},

		MemorySize: shapePush,
		MemoryGrow: shapeUnary,
		MemoryInit: shapeTernary,
		DataDrop:   shapeNone,
		TableSize:  shapePush,
		TableSet:   {stackRead(1), stackRead(0), {Kind: TableWrite, AddrDepth: 1}},
		TableInit:  shapeTernary,
		ElemDrop:   shapeNone,
		RefFunc:    shapePush,

		I32Const: shapePush,
		I64Const: shapePush,
		ConstRef: shapePush,

		SanitizerStackCheck: shapeNone,
	}

	for op, w := range map[Opcode]uint32{
		I32Load: 4, I64Load: 8, F32Load: 4, F64Load: 8,
		I32Load8S: 1, I32Load8U: 1, I32Load16S: 2, I32Load16U: 2,
		I64Load8S: 1, I64Load8U: 1, I64Load16S: 2, I64Load16U: 2,
		I64Load32S: 4, I64Load32U: 4,
	} {
		t[op] = loadShape(w)
	}
	for op, w := range map[Opcode]uint32{
		I32Store: 4, I64Store: 8, F32Store: 4, F64Store: 8,
		I32Store8: 1, I32Store16: 2, I64Store8: 1, I64Store16: 2, I64Store32: 4,
	} {
		t[op] = storeShape(w)
	}

	unary := []Opcode{
		I32Eqz, I64Eqz,
		I32Clz, I32Ctz, I32Popcnt, I64Clz, I64Ctz, I64Popcnt,
		F32Abs, F32Neg, F32Ceil, F32Floor, F32Trunc, F32Nearest, F32Sqrt,
		F64Abs, F64Neg, F64Ceil, F64Floor, F64Trunc, F64Nearest, F64Sqrt,
	}
	for op := I32WrapI64; op <= I64TruncSatF64U; op++ {
		unary = append(unary, op)
	}
	for _, op := range unary {
		t[op] = shapeUnary
	}

	for op := I32Eq; op <= F64Ge; op++ {
		if op != I64Eqz {
			t[op] = shapeBinary
		}
	}
	for op := I32Add; op <= I32Rotr; op++ {
		t[op] = shapeBinary
	}
	for op := I64Add; op <= I64Rotr; op++ {
		t[op] = shapeBinary
	}
	for op := F32Add; op <= F32Copysign; op++ {
		t[op] = shapeBinary
	}
	for op := F64Add; op <= F64Copysign; op++ {
		t[op] = shapeBinary
	}
	return t
}

// RwOps returns the operand shape of op. ok is false for opcodes that have a
// dedicated generator (calls, returns, fuel and bulk operations).
func RwOps(op Opcode) (ops []RwOp, ok bool) {
	ops, ok = shapeTable[op]
	return ops, ok
}
