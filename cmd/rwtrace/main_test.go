package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/rwtrace/rwerrors"
	"github.com/colorfulnotion/rwtrace/rwtable"
)

func traceRows() []rwtable.Row {
	return []rwtable.Row{
		rwtable.NewContextRow(1, true, 0, rwtable.TagProgramCounter, 1),
		rwtable.NewMemoryRow(2, false, 0, 0, 1, true),
		rwtable.NewContextRow(3, true, 1, rwtable.TagProgramCounter, 1),
		rwtable.NewMemoryRow(4, true, 1, 8, 1, false),
		rwtable.NewMemoryRow(5, true, 1, 9, 1, false),
		rwtable.NewStackRow(6, true, 0, 0, 0, false),
	}
}

func TestVerifyTrace(t *testing.T) {
	copies := []rwtable.CopyRow{{RwCounter: 4, Length: 2}}
	require.NoError(t, verifyTrace(traceRows(), copies))

	copies = append(copies, rwtable.CopyRow{RwCounter: 6, Length: 2})
	assert.ErrorIs(t, verifyTrace(traceRows(), copies), rwerrors.ErrCounterGap)

	rows := traceRows()
	rows[3].RwCounter = 9
	assert.ErrorIs(t, verifyTrace(rows, nil), rwerrors.ErrCounterGap)
	assert.NoError(t, verifyTrace(nil, nil))
}

func TestFrameTree(t *testing.T) {
	out := frameTree(traceRows(), nil).String()
	assert.Contains(t, out, "6 rows, 5 writes, 0 copy rows")
	assert.Contains(t, out, "call 0")
	assert.Contains(t, out, "call 1")
	assert.Less(t, strings.Index(out, "call 0"), strings.Index(out, "call 1"))
}
