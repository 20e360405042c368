package rwbuilder

import (
	"context"
	"fmt"

	"github.com/colorfulnotion/rwtrace/exec"
	"github.com/colorfulnotion/rwtrace/log"
	"github.com/colorfulnotion/rwtrace/program"
	"github.com/colorfulnotion/rwtrace/rwtable"
)

// Session drives the root frame of one run. It owns the run's counter and
// trace; a step's rows reach the trace only when the whole step succeeded.
type Session struct {
	builder *Builder
	counter *exec.Counter
	trace   *rwtable.Trace
	runtime *exec.Runtime
	sink    *rwtable.JSONLWriter
	steps   uint64
}

// RootCallID is the frame id of a session's root frame.
const RootCallID = 0

func NewSession(b *Builder, rt *exec.Runtime) *Session {
	return &Session{
		builder: b,
		counter: exec.NewCounter(),
		trace:   rwtable.NewTrace(exec.FirstCounter),
		runtime: rt,
	}
}

// SetSink streams every committed step to w as well.
func (s *Session) SetSink(w *rwtable.JSONLWriter) {
	s.sink = w
}

func (s *Session) Counter() *exec.Counter { return s.counter }
func (s *Session) Trace() *rwtable.Trace  { return s.trace }
func (s *Session) Runtime() *exec.Runtime { return s.runtime }

// Step builds one root-frame instruction and commits its rows. On error the
// step's rows, nested ones included, are dropped and their counters are
// handed out again.
func (s *Session) Step(ctx context.Context, instr program.Instruction, pcDiff uint64, curr, next *exec.MachineState) (*exec.Step, SysResult, error) {
	step := exec.NewStep(s.counter, s.runtime, RootCallID, instr, pcDiff, curr, next)
	res, err := s.builder.Build(ctx, step)
	if err == nil {
		err = s.commit(step)
	}
	if err != nil {
		s.counter.Rewind(s.trace.Next())
		return step, SysResult{}, err
	}
	s.steps++
	return step, res, nil
}

func (s *Session) commit(step *exec.Step) error {
	if err := s.trace.Append(step.Rows, step.CopyRows); err != nil {
		return fmt.Errorf("step %d %s: %w", s.steps, step.Instr, err)
	}
	if s.sink == nil {
		return nil
	}
	for _, r := range step.Rows {
		if err := s.sink.WriteRow(r); err != nil {
			return err
		}
	}
	for _, c := range step.CopyRows {
		if err := s.sink.WriteCopyRow(c); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes the sink and logs a summary of the run.
func (s *Session) Close() error {
	sum := rwtable.Summarize(s.trace.Rows(), s.trace.CopyRows())
	log.Debug(log.RwBuilder, "Session closed", "steps", s.steps, "rows", sum.Rows, "writes", sum.Writes, "copies", sum.Copies)
	if s.sink != nil {
		return s.sink.Flush()
	}
	return nil
}

// Frame collects the rows of a nested frame for an engine serving
// exec.Host.ExecHash. Its rows use the parent's counter and the frame id
// from the request; the parent folds them in on success.
type Frame struct {
	builder *Builder
	req     *exec.ExecRequest
	runtime *exec.Runtime
	rows    []rwtable.Row
	copies  []rwtable.CopyRow
}

// NewFrame prepares a child runtime for req. The child executes on behalf of
// the caller's account with the request's input and fuel.
func (b *Builder) NewFrame(req *exec.ExecRequest, host exec.Host) *Frame {
	return &Frame{
		builder: b,
		req:     req,
		runtime: &exec.Runtime{
			Input:     req.Input,
			FuelLimit: req.FuelLimit,
			Address:   req.Caller,
			Depth:     req.Depth,
			Host:      host,
		},
	}
}

func (f *Frame) Runtime() *exec.Runtime { return f.runtime }

// Step builds one child instruction and keeps its rows. A failed step
// gives its counters back, so an engine may turn the error into an exit
// code and still return a contiguous frame.
func (f *Frame) Step(ctx context.Context, instr program.Instruction, pcDiff uint64, curr, next *exec.MachineState) (*exec.Step, SysResult, error) {
	start := f.req.Counter.Peek()
	step := exec.NewStep(f.req.Counter, f.runtime, f.req.CallID, instr, pcDiff, curr, next)
	res, err := f.builder.Build(ctx, step)
	if err != nil {
		f.req.Counter.Rewind(start)
		return step, SysResult{}, err
	}
	f.rows = append(f.rows, step.Rows...)
	f.copies = append(f.copies, step.CopyRows...)
	return step, res, nil
}

// Result hands the frame's output, exit code, fuel and rows to the parent.
func (f *Frame) Result() *exec.ExecResult {
	return &exec.ExecResult{
		Output:   f.runtime.Output,
		ExitCode: f.runtime.ExitCode,
		FuelUsed: f.runtime.FuelConsumed,
		Rows:     f.rows,
		CopyRows: f.copies,
	}
}
