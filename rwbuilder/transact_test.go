package rwbuilder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/colorfulnotion/rwtrace/common"
	"github.com/colorfulnotion/rwtrace/exec"
	"github.com/colorfulnotion/rwtrace/program"
	"github.com/colorfulnotion/rwtrace/rwerrors"
	"github.com/colorfulnotion/rwtrace/rwtable"
	"github.com/colorfulnotion/rwtrace/statedb"
	"github.com/colorfulnotion/rwtrace/storage"
)

// echoEngine runs a tiny fixed program per child: consume code[0] fuel,
// write the input back as output, then halt with code[1] when it is set.
// Code of the form 0xff || hash instead transacts into hash with the same
// input and echoes what comes back.
type echoEngine struct {
	b *Builder
}

func (e *echoEngine) Run(ctx context.Context, req *exec.ExecRequest, code []byte, host exec.Host) (*exec.ExecResult, error) {
	f := e.b.NewFrame(req, host)
	state := exec.NewMachineState(1)
	if err := state.Memory.WriteBytes(0, req.Input); err != nil {
		return nil, err
	}

	run := func(instr program.Instruction, push ...uint64) error {
		state.Stack = append(state.Stack, push...)
		step, _, err := f.Step(ctx, instr, 1, state, nil)
		if err != nil {
			return err
		}
		state = step.Next
		return nil
	}
	if len(code) == 1+common.HashLength && code[0] == 0xff {
		if err := state.Memory.WriteBytes(100, code[1:]); err != nil {
			return nil, err
		}
		if err := state.Memory.WriteBytes(200, []byte{50, 0, 0, 0}); err != nil {
			return nil, err
		}
		n := uint64(len(req.Input))
		if err := run(program.CallInstruction(program.RwasmTransact), 100, 0, n, 300, 16, 200, 0); err != nil {
			return nil, err
		}
		if err := run(program.CallInstruction(program.SysWrite), 300, n); err != nil {
			return nil, err
		}
		return f.Result(), nil
	}
	if err := run(program.NewInstruction(program.ConsumeFuel, uint64(code[0]))); err != nil {
		return nil, err
	}
	if err := run(program.CallInstruction(program.SysWrite), 0, uint64(len(req.Input))); err != nil {
		return nil, err
	}
	if code[1] != 0 {
		if err := run(program.CallInstruction(program.SysHalt), uint64(code[1])); err != nil {
			return nil, err
		}
	}
	return f.Result(), nil
}

type transactFixture struct {
	b     *Builder
	sdb   *statedb.StateDB
	rt    *exec.Runtime
	sr    *tracetest.SpanRecorder
	store *storage.LevelStore
}

func newTransactFixture(t *testing.T, cfg Config) *transactFixture {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	b := NewBuilder(cfg).WithTracer(tp.Tracer("test"))

	store, err := storage.NewMemoryLevelStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	sdb := statedb.NewStateDB(store, &echoEngine{b: b})

	rt := &exec.Runtime{FuelLimit: 1000, Address: common.Address{0x0a}, Host: sdb, Output: []byte("before")}
	return &transactFixture{b: b, sdb: sdb, rt: rt, sr: sr, store: store}
}

// callerState lays out a transact call: hash at 0, input at 32, return
// buffer at 64, requested fuel at 96.
func (fx *transactFixture) callerState(t *testing.T, code []byte, input string, retLen uint64, fuel uint32) *exec.MachineState {
	t.Helper()
	hash, err := fx.sdb.UpdatePreimage(statedb.AccountRwasmCodeHashField, code)
	require.NoError(t, err)
	s := newState(0, 32, uint64(len(input)), 64, retLen, 96, 0)
	require.NoError(t, s.Memory.WriteBytes(0, hash.Bytes()))
	require.NoError(t, s.Memory.WriteBytes(32, []byte(input)))
	putU32(t, s, 96, fuel)
	return s
}

func TestTransactFoldsChild(t *testing.T) {
	fx := newTransactFixture(t, DefaultConfig())
	ctx := context.Background()
	s := NewSession(fx.b, fx.rt)

	_, _, err := s.Step(ctx, program.NewInstruction(program.I32Const, 1), 1, newState(), newState(1))
	require.NoError(t, err)

	curr := fx.callerState(t, []byte{5, 0}, "ping", 16, 100)
	step, res, err := s.Step(ctx, program.CallInstruction(program.RwasmTransact), 1, curr, nil)
	require.NoError(t, err)
	assert.True(t, res.ExitCode.IsOk())
	assert.Equal(t, uint64(4), res.Value)

	assert.Equal(t, uint64(5), fx.rt.FuelConsumed)
	assert.Equal(t, []byte("ping"), fx.rt.ReturnData)
	assert.Equal(t, []byte("before"), fx.rt.Output)
	out, _ := step.Next.Memory.ReadBytes(64, 4)
	assert.Equal(t, []byte("ping"), out)
	left, _ := step.Next.Memory.ReadBytes(96, 4)
	assert.Equal(t, []byte{95, 0, 0, 0}, left)
	assert.Equal(t, []uint64{0}, step.Next.Stack)

	rows := s.Trace().Rows()
	require.NoError(t, rwtable.Verify(rows))
	assert.Equal(t, uint64(exec.FirstCounter), rows[0].RwCounter)

	var child []rwtable.Row
	for _, r := range rows {
		if r.CallID == 1 {
			child = append(child, r)
		}
	}
	require.NotEmpty(t, child)
	assert.Equal(t, rwtable.TagProgramCounter, child[0].Tag)
	assert.Equal(t, rwtable.NewContextRow(child[1].RwCounter, true, 1, rwtable.TagConsumedFuel, 5), child[1])

	n := len(step.Rows)
	assert.Equal(t, rwtable.TagConsumedFuel, step.Rows[n-3].Tag)
	assert.Equal(t, uint32(0), step.Rows[n-3].CallID)
	assert.Equal(t, uint64(5), step.Rows[n-3].Value)
	assert.Equal(t, rwtable.KindStack, step.Rows[n-2].Kind)
	assert.Equal(t, rwtable.KindSyscall, step.Rows[n-1].Kind)

	spans := fx.sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "transact", spans[0].Name())
}

func TestNestedTransactContiguous(t *testing.T) {
	fx := newTransactFixture(t, DefaultConfig())
	ctx := context.Background()
	s := NewSession(fx.b, fx.rt)

	leaf, err := fx.sdb.UpdatePreimage(statedb.AccountRwasmCodeHashField, []byte{2, 0})
	require.NoError(t, err)
	curr := fx.callerState(t, append([]byte{0xff}, leaf.Bytes()...), "deep", 16, 100)
	_, _, err = s.Step(ctx, program.CallInstruction(program.RwasmTransact), 1, curr, nil)
	require.NoError(t, err)
	_, _, err = s.Step(ctx, program.NewInstruction(program.Drop, 0), 1, newState(0), newState())
	require.NoError(t, err)

	rows := s.Trace().Rows()
	require.NoError(t, rwtable.Verify(rows))
	assert.Equal(t, []byte("deep"), fx.rt.ReturnData)
	assert.Equal(t, uint64(2), fx.rt.FuelConsumed)

	// Frames appear as 0 (1 (2) 1) 0: the grandchild sits inside the child.
	var frames []uint32
	for _, r := range rows {
		if len(frames) == 0 || frames[len(frames)-1] != r.CallID {
			frames = append(frames, r.CallID)
		}
	}
	assert.Equal(t, []uint32{0, 1, 2, 1, 0}, frames)
}

func TestTransactChildFailureLeavesParent(t *testing.T) {
	fx := newTransactFixture(t, DefaultConfig())
	ctx := context.Background()
	s := NewSession(fx.b, fx.rt)
	fx.rt.ReturnData = []byte("old")

	curr := fx.callerState(t, []byte{5, 1}, "ping", 16, 100)
	_, _, err := s.Step(ctx, program.CallInstruction(program.RwasmTransact), 1, curr, nil)
	require.ErrorIs(t, err, rwerrors.ErrTransactError)

	assert.Equal(t, uint64(0), fx.rt.FuelConsumed)
	assert.Equal(t, []byte("before"), fx.rt.Output)
	assert.Equal(t, []byte("old"), fx.rt.ReturnData)
	assert.True(t, fx.rt.ExitCode.IsOk())
	assert.Zero(t, s.Trace().Len())
	assert.Equal(t, uint64(exec.FirstCounter), s.Counter().Peek())
}

func TestTransactOutputOverflow(t *testing.T) {
	fx := newTransactFixture(t, DefaultConfig())
	s := NewSession(fx.b, fx.rt)

	curr := fx.callerState(t, []byte{1, 0}, "ping", 2, 100)
	_, _, err := s.Step(context.Background(), program.CallInstruction(program.RwasmTransact), 1, curr, nil)
	assert.ErrorIs(t, err, rwerrors.ErrTransactError)
	assert.ErrorIs(t, err, rwerrors.ErrOutputOverflow)
	assert.Equal(t, uint64(0), fx.rt.FuelConsumed)
	assert.Zero(t, s.Trace().Len())
}

func TestTransactZeroRetLenKeepsReturnData(t *testing.T) {
	fx := newTransactFixture(t, DefaultConfig())
	ctx := context.Background()
	s := NewSession(fx.b, fx.rt)

	curr := fx.callerState(t, []byte{1, 0}, "ping", 0, 100)
	step, res, err := s.Step(ctx, program.CallInstruction(program.RwasmTransact), 1, curr, nil)
	require.NoError(t, err)
	assert.True(t, res.ExitCode.IsOk())
	assert.Equal(t, uint64(4), res.Value)
	assert.Equal(t, []byte("ping"), fx.rt.ReturnData)
	assert.Equal(t, uint64(1), fx.rt.FuelConsumed)

	// Nothing lands at ret_ptr; the fuel word is still written back.
	out, _ := step.Next.Memory.ReadBytes(64, 4)
	assert.Equal(t, []byte{0, 0, 0, 0}, out)
	left, _ := step.Next.Memory.ReadBytes(96, 4)
	assert.Equal(t, []byte{99, 0, 0, 0}, left)
	for _, r := range step.Rows {
		if r.CallID == 0 && r.Kind == rwtable.KindMemory && r.IsWrite {
			assert.GreaterOrEqual(t, r.Address, uint64(96))
		}
	}

	step, _, err = s.Step(ctx, program.CallInstruction(program.SysReadOutput), 1, newState(200, 0, 4), nil)
	require.NoError(t, err)
	got, _ := step.Next.Memory.ReadBytes(200, 4)
	assert.Equal(t, []byte("ping"), got)
	require.NoError(t, rwtable.Verify(s.Trace().Rows()))
}

func TestTransactZeroFuelSkipsFuelRow(t *testing.T) {
	fx := newTransactFixture(t, DefaultConfig())
	s := NewSession(fx.b, fx.rt)

	curr := fx.callerState(t, []byte{0, 0}, "ping", 16, 100)
	step, _, err := s.Step(context.Background(), program.CallInstruction(program.RwasmTransact), 1, curr, nil)
	require.NoError(t, err)
	assert.Zero(t, fx.rt.FuelConsumed)
	for _, r := range step.Rows {
		if r.CallID == 0 {
			assert.NotEqual(t, rwtable.TagConsumedFuel, r.Tag)
		}
	}
}

func TestTransactFuelAllowance(t *testing.T) {
	fx := newTransactFixture(t, DefaultConfig())
	s := NewSession(fx.b, fx.rt)

	// The child asks for 5 but only 3 were requested.
	curr := fx.callerState(t, []byte{5, 0}, "ping", 16, 3)
	_, _, err := s.Step(context.Background(), program.CallInstruction(program.RwasmTransact), 1, curr, nil)
	assert.ErrorIs(t, err, rwerrors.ErrTransactError)
	assert.ErrorIs(t, err, rwerrors.ErrOutOfFuel)

	// The parent's remaining fuel caps the request.
	fx.rt.FuelLimit = 4
	curr = fx.callerState(t, []byte{5, 0}, "ping", 16, 100)
	_, _, err = s.Step(context.Background(), program.CallInstruction(program.RwasmTransact), 1, curr, nil)
	assert.ErrorIs(t, err, rwerrors.ErrOutOfFuel)
}

func TestTransactCallDepth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCallDepth = 0
	fx := newTransactFixture(t, cfg)
	s := NewSession(fx.b, fx.rt)

	curr := fx.callerState(t, []byte{1, 0}, "ping", 16, 100)
	_, _, err := s.Step(context.Background(), program.CallInstruction(program.RwasmTransact), 1, curr, nil)
	assert.ErrorIs(t, err, rwerrors.ErrTransactError)
	assert.ErrorIs(t, err, rwerrors.ErrCallDepthExceeded)
}

func TestTransactUnknownCode(t *testing.T) {
	fx := newTransactFixture(t, DefaultConfig())
	s := NewSession(fx.b, fx.rt)

	curr := newState(0, 32, 0, 64, 16, 96, 0)
	_, _, err := s.Step(context.Background(), program.CallInstruction(program.RwasmTransact), 1, curr, nil)
	assert.ErrorIs(t, err, rwerrors.ErrTransactError)
}

func TestSessionSink(t *testing.T) {
	fx := newTransactFixture(t, DefaultConfig())
	path := t.TempDir() + "/rows.jsonl"
	w, err := rwtable.NewJSONLWriterFile(path)
	require.NoError(t, err)
	s := NewSession(fx.b, fx.rt)
	s.SetSink(w)

	curr := fx.callerState(t, []byte{2, 0}, "hi", 16, 100)
	_, _, err = s.Step(context.Background(), program.CallInstruction(program.RwasmTransact), 1, curr, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, w.Close())

	rows, copies, err := rwtable.ReadJSONLFile(path)
	require.NoError(t, err)
	assert.Equal(t, s.Trace().Rows(), rows)
	assert.Len(t, copies, len(s.Trace().CopyRows()))
}
