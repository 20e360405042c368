package program

import "fmt"

// SysFuncIdx is the platform function index carried by a Call instruction.
type SysFuncIdx uint32

// rwasm calls
const (
	RwasmTransact SysFuncIdx = 0x0001
)

// sys calls
const (
	SysHalt         SysFuncIdx = 0x0101
	SysWrite        SysFuncIdx = 0x0102
	SysInputSize    SysFuncIdx = 0x0103
	SysRead         SysFuncIdx = 0x0104
	SysOutputSize   SysFuncIdx = 0x0105
	SysReadOutput   SysFuncIdx = 0x0106
	SysStorageRead  SysFuncIdx = 0x0107
	SysStorageWrite SysFuncIdx = 0x0108
)

// wasi calls
const (
	WasiProcExit        SysFuncIdx = 0x0201
	WasiFdWrite         SysFuncIdx = 0x0202
	WasiEnvironSizesGet SysFuncIdx = 0x0203
	WasiEnvironGet      SysFuncIdx = 0x0204
	WasiArgsSizesGet    SysFuncIdx = 0x0205
	WasiArgsGet         SysFuncIdx = 0x0206
)

// SysFunc describes the wasm signature of a platform function: Params values
// are popped (the last one is on top of the stack), Results are pushed.
type SysFunc struct {
	Name    string
	Params  int
	Results int
}

var sysFuncs = map[SysFuncIdx]SysFunc{
	RwasmTransact:       {"_rwasm_transact", 7, 1},
	SysHalt:             {"_sys_halt", 1, 0},
	SysWrite:            {"_sys_write", 2, 0},
	SysInputSize:        {"_sys_input_size", 0, 1},
	SysRead:             {"_sys_read", 3, 0},
	SysOutputSize:       {"_sys_output_size", 0, 1},
	SysReadOutput:       {"_sys_read_output", 3, 0},
	SysStorageRead:      {"_sys_storage_read", 2, 0},
	SysStorageWrite:     {"_sys_storage_write", 2, 0},
	WasiProcExit:        {"proc_exit", 1, 0},
	WasiFdWrite:         {"fd_write", 4, 1},
	WasiEnvironSizesGet: {"environ_sizes_get", 2, 1},
	WasiEnvironGet:      {"environ_get", 2, 1},
	WasiArgsSizesGet:    {"args_sizes_get", 2, 1},
	WasiArgsGet:         {"args_get", 2, 1},
}

// Lookup returns the signature of idx; ok is false for unknown indices.
func (idx SysFuncIdx) Lookup() (SysFunc, bool) {
	f, ok := sysFuncs[idx]
	return f, ok
}

func (idx SysFuncIdx) String() string {
	if f, ok := sysFuncs[idx]; ok {
		return f.Name
	}
	return fmt.Sprintf("SysFuncIdx(0x%04x)", uint32(idx))
}

// SysFuncs lists every known platform function index.
func SysFuncs() []SysFuncIdx {
	out := make([]SysFuncIdx, 0, len(sysFuncs))
	for idx := range sysFuncs {
		out = append(out, idx)
	}
	return out
}

// CallInstruction builds a Call to the given platform function.
func CallInstruction(idx SysFuncIdx) Instruction {
	return Instruction{Op: Call, Aux: uint64(idx)}
}
