package rwtable

// CopyRow summarises one bulk transfer so a copy argument can tie the
// per-element rows together. RwCounter is the counter of the first data row;
// the transfer covers Length consecutive counters from there.
type CopyRow struct {
	RwCounter   uint64 `json:"rw_counter"`
	CallID      uint32 `json:"call_id"`
	SrcKind     Kind   `json:"src_kind"`
	SrcTableIdx uint32 `json:"src_table_idx,omitempty"`
	SrcAddr     uint64 `json:"src_addr"`
	DstKind     Kind   `json:"dst_kind"`
	DstTableIdx uint32 `json:"dst_table_idx,omitempty"`
	DstAddr     uint64 `json:"dst_addr"`
	Length      uint64 `json:"length"`
	// Fill is set when every element receives FillValue rather than a copy.
	Fill      bool   `json:"fill,omitempty"`
	FillValue uint64 `json:"fill_value,omitempty"`
}

// Covers reports whether counter falls inside the transfer.
func (c CopyRow) Covers(counter uint64) bool {
	return c.Length > 0 && counter >= c.RwCounter && counter < c.RwCounter+c.Length
}
