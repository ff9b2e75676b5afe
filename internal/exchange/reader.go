package exchange

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/inodb/vibe-annot/internal/schema"
)

// Record is one data line keyed by column name.
type Record map[string]string

// ReaderOptions selects a slice of the stream.
type ReaderOptions struct {
	// SeekPos skips every data line starting before this byte offset.
	// A position inside a line skips that line too.
	SeekPos int64
	// ChunkSize caps the number of data lines returned; 0 means no cap.
	ChunkSize int
	// Columns overrides the #column= definitions of the stream header.
	Columns []string
}

// Reader reads records from an exchange stream.
type Reader struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *gzip.Reader
	opts       ReaderOptions
	lineNumber int
	offset     int64
	columns    []schema.ColumnDef
	names      []string
	indexes    [][]string
	meta       map[string]string

	pending      string
	pendingStart int64
	hasPending   bool

	line string
	read int
}

// OpenReader opens an exchange stream file.
// Supports both plain and gzipped files.
func OpenReader(path string, opts ReaderOptions) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open exchange file: %w", err)
	}

	r := &Reader{file: file, opts: opts}

	// Check for gzip magic bytes
	buf := make([]byte, 2)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		file.Close()
		return nil, fmt.Errorf("read exchange header: %w", err)
	}

	// Seek back to beginning
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("seek exchange file: %w", err)
	}

	if n == 2 && buf[0] == 0x1f && buf[1] == 0x8b {
		r.gzipReader, err = gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		r.reader = bufio.NewReader(r.gzipReader)
	} else {
		r.reader = bufio.NewReader(file)
	}

	if err := r.init(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// NewReader creates a reader from an io.Reader.
func NewReader(rd io.Reader, opts ReaderOptions) (*Reader, error) {
	r := &Reader{reader: bufio.NewReader(rd), opts: opts}
	if err := r.init(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) init() error {
	r.meta = make(map[string]string)
	if err := r.parseHeader(); err != nil {
		return err
	}
	if len(r.opts.Columns) > 0 {
		r.columns = r.columns[:0]
		for i, name := range r.opts.Columns {
			r.columns = append(r.columns, schema.ColumnDef{Index: i, Name: name, Type: schema.TypeString})
		}
	}
	r.names = make([]string, len(r.columns))
	for i, c := range r.columns {
		r.names[i] = c.Name
	}
	return nil
}

// readLine reads one raw line and reports the byte offset it started at.
func (r *Reader) readLine() (line string, start int64, ok bool, err error) {
	start = r.offset
	raw, err := r.reader.ReadString('\n')
	if err != nil {
		if err != io.EOF {
			return "", start, false, fmt.Errorf("read line: %w", err)
		}
		if raw == "" {
			return "", start, false, nil
		}
	}
	r.offset += int64(len(raw))
	r.lineNumber++
	return strings.TrimRight(raw, "\r\n"), start, true, nil
}

// parseHeader consumes #key=value lines up to the first data line.
func (r *Reader) parseHeader() error {
	for {
		line, start, ok, err := r.readLine()
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		if !ok {
			return nil
		}
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, metaPrefix) {
			r.pending, r.pendingStart, r.hasPending = line, start, true
			return nil
		}
		if err := r.parseMeta(line); err != nil {
			return err
		}
	}
}

func (r *Reader) parseMeta(line string) error {
	key, value, ok := strings.Cut(strings.TrimPrefix(line, metaPrefix), "=")
	if !ok {
		return nil
	}
	switch key {
	case columnKey:
		var c schema.ColumnDef
		if err := json.Unmarshal([]byte(value), &c); err != nil {
			return &ParseError{Line: r.lineNumber, Message: fmt.Sprintf("invalid column definition: %v", err)}
		}
		c.Index = len(r.columns)
		r.columns = append(r.columns, c)
	case indexKey:
		r.indexes = append(r.indexes, strings.Split(value, indexColSep))
	default:
		r.meta[key] = value
	}
	return nil
}

// Next reads the next record.
// Returns nil, nil when there are no more records in the selected slice.
func (r *Reader) Next() (Record, error) {
	for {
		if r.opts.ChunkSize > 0 && r.read >= r.opts.ChunkSize {
			return nil, nil
		}

		var line string
		var start int64
		if r.hasPending {
			line, start = r.pending, r.pendingStart
			r.hasPending = false
		} else {
			var ok bool
			var err error
			line, start, ok, err = r.readLine()
			if err != nil {
				return nil, fmt.Errorf("read record line: %w", err)
			}
			if !ok {
				return nil, nil
			}
		}

		if start < r.opts.SeekPos {
			continue
		}
		if line == "" || strings.HasPrefix(line, metaPrefix) {
			continue
		}

		r.read++
		r.line = line
		return r.parseLine(line)
	}
}

// parseLine splits a data line into a Record.
func (r *Reader) parseLine(line string) (Record, error) {
	if len(r.names) == 0 {
		return nil, &ParseError{Line: r.lineNumber, Message: "no column definitions"}
	}
	fields := strings.Split(line, fieldSep)
	if len(fields) > len(r.names) {
		return nil, &ParseError{
			Line:    r.lineNumber,
			Message: fmt.Sprintf("expected at most %d columns, found %d", len(r.names), len(fields)),
		}
	}
	rec := make(Record, len(r.names))
	for i, name := range r.names {
		if i < len(fields) {
			rec[name] = fields[i]
		} else {
			rec[name] = ""
		}
	}
	return rec, nil
}

// Line returns the raw text of the record last returned by Next.
func (r *Reader) Line() string {
	return r.line
}

// LineNumber returns the current line number being processed.
func (r *Reader) LineNumber() int {
	return r.lineNumber
}

// Columns returns the stream's column definitions.
func (r *Reader) Columns() []schema.ColumnDef {
	return r.columns
}

// Indexes returns the stream's index declarations.
func (r *Reader) Indexes() [][]string {
	return r.indexes
}

// Meta returns the value of a #key=value header line.
func (r *Reader) Meta(key string) string {
	return r.meta[key]
}

// Close closes the reader and underlying file.
func (r *Reader) Close() error {
	if r.gzipReader != nil {
		r.gzipReader.Close()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// ParseError represents an error during exchange parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("exchange parse error at line %d: %s", e.Line, e.Message)
}
