package rwtable

import (
	"fmt"

	"github.com/colorfulnotion/rwtrace/rwerrors"
)

// Trace is the run-level row log handed to the witness. Rows must arrive with
// counters exactly one apart, starting at the counter the trace was opened with.
type Trace struct {
	start  uint64
	rows   []Row
	copies []CopyRow
}

func NewTrace(start uint64) *Trace {
	return &Trace{start: start}
}

// Next is the counter the next appended row must carry.
func (t *Trace) Next() uint64 {
	return t.start + uint64(len(t.rows))
}

// Append checks every row before adding any, so a rejected batch leaves the
// trace unchanged.
func (t *Trace) Append(rows []Row, copies []CopyRow) error {
	next := t.Next()
	for i, r := range rows {
		if r.RwCounter != next+uint64(i) {
			return fmt.Errorf("%w: row %d has counter %d, want %d", rwerrors.ErrCounterGap, i, r.RwCounter, next+uint64(i))
		}
	}
	t.rows = append(t.rows, rows...)
	t.copies = append(t.copies, copies...)
	return nil
}

func (t *Trace) Rows() []Row {
	return t.rows
}

func (t *Trace) CopyRows() []CopyRow {
	return t.copies
}

func (t *Trace) Len() int {
	return len(t.rows)
}

// Verify checks that counters increase by exactly one from the first row.
func Verify(rows []Row) error {
	for i := 1; i < len(rows); i++ {
		if rows[i].RwCounter != rows[i-1].RwCounter+1 {
			return fmt.Errorf("%w: row %d has counter %d after %d", rwerrors.ErrCounterGap, i, rows[i].RwCounter, rows[i-1].RwCounter)
		}
	}
	return nil
}

// Summary counts rows per call frame and kind.
type Summary struct {
	Rows    int
	Writes  int
	ByFrame map[uint32]map[Kind]int
	Copies  int
}

func Summarize(rows []Row, copies []CopyRow) Summary {
	s := Summary{Rows: len(rows), ByFrame: make(map[uint32]map[Kind]int), Copies: len(copies)}
	for _, r := range rows {
		if r.IsWrite {
			s.Writes++
		}
		m, ok := s.ByFrame[r.CallID]
		if !ok {
			m = make(map[Kind]int)
			s.ByFrame[r.CallID] = m
		}
		m[r.Kind]++
	}
	return s
}

// FrameParents recovers frame nesting from emission order: a frame id first
// seen while another frame is active is that frame's child. The root frame
// maps to itself.
func FrameParents(rows []Row) map[uint32]uint32 {
	parents := make(map[uint32]uint32)
	var active []uint32
	for _, r := range rows {
		if n := len(active); n > 0 && active[n-1] == r.CallID {
			continue
		}
		if _, seen := parents[r.CallID]; seen {
			for len(active) > 0 && active[len(active)-1] != r.CallID {
				active = active[:len(active)-1]
			}
			continue
		}
		if len(active) == 0 {
			parents[r.CallID] = r.CallID
		} else {
			parents[r.CallID] = active[len(active)-1]
		}
		active = append(active, r.CallID)
	}
	return parents
}
