package rwtable

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Record is one line of a JSONL row file: exactly one of Row or Copy is set.
type Record struct {
	Row  *Row     `json:"row,omitempty"`
	Copy *CopyRow `json:"copy,omitempty"`
}

// JSONLWriter writes rows as JSON Lines (one JSON object per line).
// It is safe for concurrent use by multiple goroutines.
type JSONLWriter struct {
	mu     sync.Mutex
	enc    *json.Encoder
	buf    *bufio.Writer
	closer io.Closer // only set when we own the underlying writer
	closed bool
}

// ErrWriterClosed is returned when writing after Close.
var ErrWriterClosed = errors.New("jsonl row writer is closed")

// NewJSONLWriter wraps w. The writer passed in is NOT closed by Close, which
// only flushes.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	buf := bufio.NewWriterSize(w, 64*1024)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{enc: enc, buf: buf}
}

// NewJSONLWriterFile creates (or truncates) path and owns the file.
func NewJSONLWriterFile(path string) (*JSONLWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := NewJSONLWriter(f)
	w.closer = f
	return w, nil
}

func (w *JSONLWriter) encode(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	return w.enc.Encode(rec)
}

func (w *JSONLWriter) WriteRow(r Row) error {
	return w.encode(Record{Row: &r})
}

func (w *JSONLWriter) WriteCopyRow(c CopyRow) error {
	return w.encode(Record{Copy: &c})
}

// WriteTrace writes all rows, then all copy rows.
func (w *JSONLWriter) WriteTrace(t *Trace) error {
	for _, r := range t.Rows() {
		if err := w.WriteRow(r); err != nil {
			return err
		}
	}
	for _, c := range t.CopyRows() {
		if err := w.WriteCopyRow(c); err != nil {
			return err
		}
	}
	return nil
}

// Flush forces buffered data to the underlying writer.
func (w *JSONLWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	return w.buf.Flush()
}

// Close flushes and, if the writer owns the file, closes it.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.buf.Flush(); err != nil {
		if w.closer != nil {
			_ = w.closer.Close()
		}
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// ReadJSONL decodes a row file written by JSONLWriter, in file order.
func ReadJSONL(r io.Reader) ([]Row, []CopyRow, error) {
	dec := json.NewDecoder(bufio.NewReaderSize(r, 64*1024))
	var rows []Row
	var copies []CopyRow
	for line := 1; ; line++ {
		var rec Record
		err := dec.Decode(&rec)
		if err == io.EOF {
			return rows, copies, nil
		}
		if err != nil {
			return nil, nil, fmt.Errorf("record %d: %w", line, err)
		}
		switch {
		case rec.Row != nil:
			rows = append(rows, *rec.Row)
		case rec.Copy != nil:
			copies = append(copies, *rec.Copy)
		default:
			return nil, nil, fmt.Errorf("record %d: neither row nor copy", line)
		}
	}
}

func ReadJSONLFile(path string) ([]Row, []CopyRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ReadJSONL(f)
}
