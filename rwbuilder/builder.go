package rwbuilder

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/colorfulnotion/rwtrace/exec"
	"github.com/colorfulnotion/rwtrace/log"
	"github.com/colorfulnotion/rwtrace/program"
	"github.com/colorfulnotion/rwtrace/rwerrors"
	"github.com/colorfulnotion/rwtrace/rwtable"
)

const tracerName = "github.com/colorfulnotion/rwtrace/rwbuilder"

// SysResult is the guest-visible outcome of a platform call. A non-zero
// ExitCode is an ordinary result, not a builder failure. Value is the
// logical result recorded in the syscall row.
type SysResult struct {
	ExitCode rwerrors.ExitCode
	Value    uint64
}

// Builder turns execution steps into rows. It holds no per-run state; the
// counter and frame live on the step, so one Builder serves nested frames.
type Builder struct {
	cfg    Config
	tracer trace.Tracer
}

func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg, tracer: otel.Tracer(tracerName)}
}

// WithTracer replaces the tracer used for nested execution spans.
func (b *Builder) WithTracer(t trace.Tracer) *Builder {
	b.tracer = t
	return b
}

func (b *Builder) Config() Config {
	return b.cfg
}

// Build appends the rows of one step. The program counter row always comes
// first. On error the step's rows are incomplete and must be discarded
// along with any counters they took.
func (b *Builder) Build(ctx context.Context, step *exec.Step) (SysResult, error) {
	if step.Curr == nil {
		return SysResult{}, fmt.Errorf("%s: %w: no pre-state", step.Instr, rwerrors.ErrMissingState)
	}
	step.PushContext(true, rwtable.TagProgramCounter, step.PcDiff)

	var (
		res SysResult
		err error
	)
	switch step.Instr.Op {
	case program.Call:
		res, err = b.buildPlatform(ctx, step, program.SysFuncIdx(step.Instr.Aux))
	case program.Return:
		err = b.buildReturn(step)
	case program.ConsumeFuel:
		err = b.buildConsumeFuel(step)
	case program.MemoryCopy:
		err = b.buildMemoryCopy(step)
	case program.MemoryFill:
		err = b.buildMemoryFill(step)
	case program.TableFill:
		err = b.buildTableFill(step, uint32(step.Instr.Aux))
	case program.TableCopy:
		dst, src := step.Instr.TableIndices()
		err = b.buildTableCopy(step, dst, src)
	case program.TableGrow:
		err = b.buildTableGrow(step, uint32(step.Instr.Aux))
	case program.TableGet:
		err = b.buildTableGet(step, uint32(step.Instr.Aux))
	default:
		ops, ok := program.RwOps(step.Instr.Op)
		if !ok {
			return SysResult{}, fmt.Errorf("%w: opcode %s has no operand shape", rwerrors.ErrMissingState, step.Instr.Op)
		}
		err = b.buildGeneric(step, ops)
	}
	if err != nil {
		log.Debug(log.RwBuilder, "Build failed", "instr", step.Instr, "call", step.CallID, "err", err)
		return SysResult{}, err
	}
	log.Trace(log.RwBuilder, "Build", "instr", step.Instr, "call", step.CallID, "rows", len(step.Rows))
	return res, nil
}

// buildReturn emits nothing. Returning from a nested frame is where a
// CallDepth context row would go once that tag is active.
func (b *Builder) buildReturn(step *exec.Step) error {
	if step.CallID > 0 && rwtable.TagCallDepth.Active() {
		step.PushContext(true, rwtable.TagCallDepth, uint64(step.Runtime.Depth))
	}
	return nil
}

// reserve pre-sizes the row log for an n-row bulk operation.
func (b *Builder) reserve(step *exec.Step, n uint64) {
	if n >= b.cfg.ReserveThreshold {
		step.Reserve(n)
	}
}
