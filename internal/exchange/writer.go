// Package exchange reads and writes header-annotated, tab-delimited exchange
// streams (crv input, crx/crg/crt mapper artifacts).
package exchange

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/inodb/vibe-annot/internal/schema"
)

// Header line prefixes.
const (
	metaPrefix  = "#"
	columnKey   = "column"
	indexKey    = "index"
	fieldSep    = "\t"
	indexColSep = ","
)

// Well-known meta keys.
const (
	MetaTitle   = "title"
	MetaVersion = "version"
	MetaModule  = "modulename"
)

var cellReplacer = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

// Writer writes an exchange stream.
type Writer struct {
	w       *bufio.Writer
	closer  io.Closer
	columns []schema.ColumnDef
}

// NewWriter creates a new exchange stream writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Create creates path and returns a writer for it. Close flushes and closes the file.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create exchange file: %w", err)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// AddColumns registers the stream's columns in order.
func (ew *Writer) AddColumns(cols []schema.ColumnDef) {
	for _, c := range cols {
		c.Index = len(ew.columns)
		ew.columns = append(ew.columns, c)
	}
}

// Columns returns the registered columns.
func (ew *Writer) Columns() []schema.ColumnDef {
	return ew.columns
}

// WriteDefinition writes one #column= line per registered column.
func (ew *Writer) WriteDefinition() error {
	for _, c := range ew.columns {
		b, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal column %s: %w", c.Name, err)
		}
		if err := ew.WriteMeta(columnKey, string(b)); err != nil {
			return err
		}
	}
	return nil
}

// WriteIndex declares an index over cols.
func (ew *Writer) WriteIndex(cols []string) error {
	return ew.WriteMeta(indexKey, strings.Join(cols, indexColSep))
}

// WriteMeta writes a #key=value header line.
func (ew *Writer) WriteMeta(key, value string) error {
	_, err := ew.w.WriteString(metaPrefix + key + "=" + cellReplacer.Replace(value) + "\n")
	return err
}

// WriteRecord writes rec in column order. Missing columns are written empty.
func (ew *Writer) WriteRecord(rec Record) error {
	values := make([]string, len(ew.columns))
	for i, c := range ew.columns {
		values[i] = rec[c.Name]
	}
	return ew.WriteRow(values)
}

// WriteRow writes a single row of already ordered values.
func (ew *Writer) WriteRow(values []string) error {
	if len(ew.columns) > 0 && len(values) != len(ew.columns) {
		return fmt.Errorf("write row: %d values for %d columns", len(values), len(ew.columns))
	}
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = cellReplacer.Replace(v)
	}
	_, err := ew.w.WriteString(strings.Join(cells, fieldSep) + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (ew *Writer) Flush() error {
	return ew.w.Flush()
}

// Close flushes buffered data and closes the underlying file, if any.
func (ew *Writer) Close() error {
	if err := ew.w.Flush(); err != nil {
		if ew.closer != nil {
			ew.closer.Close()
		}
		return err
	}
	if ew.closer != nil {
		return ew.closer.Close()
	}
	return nil
}
