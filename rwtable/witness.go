package rwtable

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/colorfulnotion/rwtrace/common"
	"github.com/colorfulnotion/rwtrace/log"
)

// Witness columns, in layout order. 32-byte storage keys and words are split
// into 16-byte halves so each half fits the scalar field without reduction.
const (
	ColRwCounter = iota
	ColIsWrite
	ColCallID
	ColKind
	ColAddress
	ColTableIdx
	ColTag
	ColValue
	ColKeyHi
	ColKeyLo
	ColWordHi
	ColWordLo
	ColInitialized
	NumColumns
)

var columnNames = [NumColumns]string{
	"rw_counter", "is_write", "call_id", "kind", "address", "table_idx", "tag",
	"value", "key_hi", "key_lo", "word_hi", "word_lo", "initialized",
}

func ColumnName(col int) string {
	return columnNames[col]
}

// Witness is the column-major field encoding of a row log.
type Witness struct {
	Columns [NumColumns][]fr.Element
}

func boolElement(b bool) fr.Element {
	var e fr.Element
	if b {
		e.SetOne()
	}
	return e
}

func u64Element(v uint64) fr.Element {
	var e fr.Element
	e.SetUint64(v)
	return e
}

func halves(h common.Hash) (hi, lo fr.Element) {
	hi.SetBytes(h[:16])
	lo.SetBytes(h[16:])
	return hi, lo
}

// NewWitness lays rows out in emission order.
func NewWitness(rows []Row) *Witness {
	w := &Witness{}
	for c := range w.Columns {
		w.Columns[c] = make([]fr.Element, len(rows))
	}
	for i, r := range rows {
		w.Columns[ColRwCounter][i] = u64Element(r.RwCounter)
		w.Columns[ColIsWrite][i] = boolElement(r.IsWrite)
		w.Columns[ColCallID][i] = u64Element(uint64(r.CallID))
		w.Columns[ColKind][i] = u64Element(uint64(r.Kind))
		w.Columns[ColAddress][i] = u64Element(r.Address)
		w.Columns[ColTableIdx][i] = u64Element(uint64(r.TableIdx))
		w.Columns[ColTag][i] = u64Element(uint64(r.Tag))
		w.Columns[ColValue][i] = u64Element(r.Value)
		w.Columns[ColKeyHi][i], w.Columns[ColKeyLo][i] = halves(r.Key)
		w.Columns[ColWordHi][i], w.Columns[ColWordLo][i] = halves(r.Word)
		w.Columns[ColInitialized][i] = boolElement(r.Initialized)
	}
	log.Debug(log.Witness, "witness assembled", "rows", len(rows))
	return w
}

func (w *Witness) Len() int {
	return len(w.Columns[ColRwCounter])
}

// challenge derives the folding point from the column layout and row count,
// so two witnesses of different shape never share one.
func (w *Witness) challenge() fr.Element {
	seed := common.Keccak256([]byte("rwtrace/witness"), common.Uint64ToBytes(uint64(w.Len())), common.Uint64ToBytes(NumColumns))
	var z fr.Element
	z.SetBytes(seed[:])
	return z
}

// Digests folds every column into one element by Horner evaluation at a
// fixed challenge: d = sum(col[i] * z^(n-1-i)).
func (w *Witness) Digests() [NumColumns]fr.Element {
	z := w.challenge()
	var out [NumColumns]fr.Element
	for c, col := range w.Columns {
		var acc fr.Element
		for i := range col {
			acc.Mul(&acc, &z)
			acc.Add(&acc, &col[i])
		}
		out[c] = acc
	}
	return out
}

// Commitment hashes all column digests together.
func (w *Witness) Commitment() common.Hash {
	digests := w.Digests()
	parts := make([][]byte, 0, NumColumns)
	for i := range digests {
		b := digests[i].Bytes()
		parts = append(parts, b[:])
	}
	return common.Keccak256(parts...)
}
