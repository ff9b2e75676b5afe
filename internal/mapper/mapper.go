// Package mapper runs a variant mapping function over an exchange input and
// writes the mapped-variant, gene-summary and transcript-alias artifacts.
package mapper

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/inodb/vibe-annot/internal/exchange"
	"github.com/inodb/vibe-annot/internal/mapping"
	"github.com/inodb/vibe-annot/internal/schema"
)

// Mapper maps one input record to a mapped variant and its alternate
// transcript groups. Returning an error that matches ErrInvalidData skips the
// record; any other error aborts the run.
type Mapper interface {
	Setup() error
	Map(rec exchange.Record) (*MappedVariant, AltTranscripts, error)
	End() error
}

// Base provides no-op Setup and End for Mapper implementations.
type Base struct{}

// Setup does nothing.
func (Base) Setup() error { return nil }

// End does nothing.
func (Base) End() error { return nil }

// ErrInvalidData marks a per-record data error.
var ErrInvalidData = errors.New("invalid input data")

// InvalidDataError describes why a record could not be mapped.
type InvalidDataError struct {
	Field   string
	Message string
}

func (e *InvalidDataError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Unwrap lets errors.Is match ErrInvalidData.
func (e *InvalidDataError) Unwrap() error { return ErrInvalidData }

// Invalid returns an InvalidDataError for field.
func Invalid(field, format string, args ...any) error {
	return &InvalidDataError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// MappedVariant is one mapped-variant (crx) row.
type MappedVariant struct {
	UID        int64
	Chrom      string
	Pos        int64
	Strand     string
	RefBase    string
	AltBase    string
	Note       string
	Coding     string
	Hugo       string
	Transcript string
	SO         string
	AChange    string
	CChange    string

	AllMappings mapping.AllMappings
}

// Record returns the crx form of v.
func (v *MappedVariant) Record() (exchange.Record, error) {
	all, err := v.AllMappings.Marshal()
	if err != nil {
		return nil, err
	}
	return exchange.Record{
		schema.CrxUID:         strconv.FormatInt(v.UID, 10),
		schema.CrxChrom:       v.Chrom,
		schema.CrxPos:         strconv.FormatInt(v.Pos, 10),
		schema.CrxStrand:      v.Strand,
		schema.CrxRefBase:     v.RefBase,
		schema.CrxAltBase:     v.AltBase,
		schema.CrxNote:        v.Note,
		schema.CrxCoding:      v.Coding,
		schema.CrxHugo:        v.Hugo,
		schema.CrxTranscript:  v.Transcript,
		schema.CrxSO:          v.SO,
		schema.CrxAChange:     v.AChange,
		schema.CrxCChange:     v.CChange,
		schema.CrxAllMappings: all,
	}, nil
}

// AltTranscripts maps a primary transcript to its alternate transcripts.
type AltTranscripts map[string][]string

// AltTranscriptEdge is one transcript-alias (crt) row.
type AltTranscriptEdge struct {
	Primary string
	Alt     string
}

// Options selects the input and the output location of a run.
type Options struct {
	InputPath string
	// OutputDir defaults to the directory of InputPath.
	OutputDir string
	// Name is the artifact base name. Defaults to the input file name
	// without its .crv suffix.
	Name string

	SeekPos   int64
	ChunkSize int
	// Columns names the input columns of a stream without #column= lines.
	Columns []string
	// Postfix is appended to every artifact path of a shard run.
	Postfix string
}

// Summary reports what a run did.
type Summary struct {
	LinesRead   int
	Written     int
	Dropped     int
	DataErrors  int
	Genes       int
	Transcripts int

	CrxPath string
	CrgPath string
	CrtPath string

	Elapsed time.Duration
}
