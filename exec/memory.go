package exec

import (
	"fmt"

	"github.com/colorfulnotion/rwtrace/rwerrors"
)

const (
	PageSize     = 4096      // backing page granularity
	WasmPageSize = 64 * 1024 // unit of memory.size / memory.grow
	MaxWasmPages = 1 << 16   // 4 GiB address space
)

// Page is one backing page. Init has a bit per byte that has ever been written.
type Page struct {
	Value []byte   `json:"data"`
	Init  []uint64 `json:"init"`
}

func newPage() *Page {
	return &Page{Value: make([]byte, PageSize), Init: make([]uint64, PageSize/64)}
}

func (p *Page) isInit(off uint32) bool {
	return p.Init[off/64]&(1<<(off%64)) != 0
}

// Memory is a sparse linear memory. Size is counted in wasm pages; backing
// pages are allocated on first write.
type Memory struct {
	Size  uint32           `json:"size"`
	Pages map[uint32]*Page `json:"pages"`
}

func NewMemory(wasmPages uint32) *Memory {
	return &Memory{Size: wasmPages, Pages: make(map[uint32]*Page)}
}

// SizeBytes is the addressable length in bytes.
func (m *Memory) SizeBytes() uint64 {
	return uint64(m.Size) * WasmPageSize
}

// InBounds reports whether [addr, addr+n) lies inside the memory.
func (m *Memory) InBounds(addr, n uint64) bool {
	end := addr + n
	return end >= addr && end <= m.SizeBytes()
}

// CheckRange returns ErrMemoryOutOfBounds when [addr, addr+n) is outside.
func (m *Memory) CheckRange(addr, n uint64) error {
	if !m.InBounds(addr, n) {
		return fmt.Errorf("%w: [%d, %d+%d) size %d", rwerrors.ErrMemoryOutOfBounds, addr, addr, n, m.SizeBytes())
	}
	return nil
}

// Grow adds delta wasm pages and returns the previous size; ok is false when
// the result would pass MaxWasmPages.
func (m *Memory) Grow(delta uint32) (prev uint32, ok bool) {
	prev = m.Size
	if uint64(prev)+uint64(delta) > MaxWasmPages {
		return prev, false
	}
	m.Size += delta
	return prev, true
}

// Read returns the byte at addr and whether it was written before.
// Unwritten bytes read as zero.
func (m *Memory) Read(addr uint64) (byte, bool) {
	p, ok := m.Pages[uint32(addr/PageSize)]
	if !ok {
		return 0, false
	}
	off := uint32(addr % PageSize)
	return p.Value[off], p.isInit(off)
}

// Write stores b at addr and returns whether the byte had been written before.
func (m *Memory) Write(addr uint64, b byte) bool {
	idx := uint32(addr / PageSize)
	p, ok := m.Pages[idx]
	if !ok {
		p = newPage()
		m.Pages[idx] = p
	}
	off := uint32(addr % PageSize)
	existed := p.isInit(off)
	p.Value[off] = b
	p.Init[off/64] |= 1 << (off % 64)
	return existed
}

// ReadBytes copies n bytes starting at addr.
func (m *Memory) ReadBytes(addr, n uint64) ([]byte, error) {
	if err := m.CheckRange(addr, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	for i := range out {
		out[i], _ = m.Read(addr + uint64(i))
	}
	return out, nil
}

// WriteBytes stores data at addr.
func (m *Memory) WriteBytes(addr uint64, data []byte) error {
	if err := m.CheckRange(addr, uint64(len(data))); err != nil {
		return err
	}
	for i, b := range data {
		m.Write(addr+uint64(i), b)
	}
	return nil
}

func (m *Memory) Clone() *Memory {
	c := &Memory{Size: m.Size, Pages: make(map[uint32]*Page, len(m.Pages))}
	for idx, p := range m.Pages {
		c.Pages[idx] = &Page{
			Value: append([]byte(nil), p.Value...),
			Init:  append([]uint64(nil), p.Init...),
		}
	}
	return c
}
