package mapper

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/vibe-annot/internal/exchange"
	"github.com/inodb/vibe-annot/internal/runlog"
	"github.com/inodb/vibe-annot/internal/schema"
	"github.com/inodb/vibe-annot/internal/status"
)

// Artifact file extensions.
const (
	ExtCrx = ".crx"
	ExtCrg = ".crg"
	ExtCrt = ".crt"
)

// Engine drives a Mapper over one input stream.
type Engine struct {
	mapper   Mapper
	name     string
	title    string
	version  string
	logger   *zap.Logger
	errLog   *runlog.ErrorLog
	status   status.Sink
	throttle *status.Throttle
}

// NewEngine creates a new engine for m.
func NewEngine(m Mapper) *Engine {
	return &Engine{
		mapper:   m,
		name:     "mapper",
		title:    "Mapper",
		version:  "dev",
		logger:   zap.NewNop(),
		errLog:   runlog.Nop(),
		status:   status.Nop(),
		throttle: status.NewThrottle(),
	}
}

// SetModule sets the module metadata written to the artifact headers.
func (e *Engine) SetModule(name, title, version string) {
	e.name, e.title, e.version = name, title, version
}

// SetLogger sets the run logger.
func (e *Engine) SetLogger(l *zap.Logger) {
	e.logger = l
}

// SetErrorLog sets the structured error log for isolated data errors.
func (e *Engine) SetErrorLog(el *runlog.ErrorLog) {
	e.errLog = el
}

// SetStatus sets the status sink.
func (e *Engine) SetStatus(s status.Sink) {
	e.status = s
}

// SetThrottle replaces the progress cadence.
func (e *Engine) SetThrottle(t *status.Throttle) {
	e.throttle = t
}

// BaseName returns the artifact base name for opts.
func BaseName(opts Options) string {
	if opts.Name != "" {
		return opts.Name
	}
	base := filepath.Base(opts.InputPath)
	base = strings.TrimSuffix(base, ".gz")
	return strings.TrimSuffix(base, ".crv")
}

type artifact struct {
	w       *exchange.Writer
	path    string
	columns []schema.ColumnDef
	indexes [][]string
}

func (e *Engine) createArtifact(path string, cols []schema.ColumnDef, indexes [][]string) (*exchange.Writer, error) {
	w, err := exchange.Create(path)
	if err != nil {
		return nil, err
	}
	w.AddColumns(cols)
	if err := w.WriteDefinition(); err != nil {
		w.Close()
		return nil, fmt.Errorf("write column definitions: %w", err)
	}
	for _, idx := range indexes {
		if err := w.WriteIndex(idx); err != nil {
			w.Close()
			return nil, fmt.Errorf("write index: %w", err)
		}
	}
	for _, kv := range [][2]string{{exchange.MetaTitle, e.title}, {exchange.MetaVersion, e.version}, {exchange.MetaModule, e.name}} {
		if err := w.WriteMeta(kv[0], kv[1]); err != nil {
			w.Close()
			return nil, fmt.Errorf("write meta: %w", err)
		}
	}
	return w, nil
}

// Run maps every record of the selected input slice.
func (e *Engine) Run(opts Options) (*Summary, error) {
	start := time.Now()
	if opts.InputPath == "" {
		return nil, errors.New("mapper: input path is required")
	}
	outDir := opts.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(opts.InputPath)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	base := filepath.Join(outDir, BaseName(opts))

	reader, err := exchange.OpenReader(opts.InputPath, exchange.ReaderOptions{
		SeekPos:   opts.SeekPos,
		ChunkSize: opts.ChunkSize,
		Columns:   opts.Columns,
	})
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	if err := e.mapper.Setup(); err != nil {
		return nil, fmt.Errorf("mapper setup: %w", err)
	}

	sum := &Summary{
		CrxPath: base + ExtCrx + opts.Postfix,
		CrgPath: base + ExtCrg + opts.Postfix,
		CrtPath: base + ExtCrt + opts.Postfix,
	}
	arts := []*artifact{
		{path: sum.CrxPath, columns: schema.CrxColumns, indexes: schema.CrxIndexes},
		{path: sum.CrgPath, columns: schema.CrgColumns, indexes: schema.CrgIndexes},
		{path: sum.CrtPath, columns: schema.CrtColumns, indexes: schema.CrtIndexes},
	}
	for _, a := range arts {
		if a.w, err = e.createArtifact(a.path, a.columns, a.indexes); err != nil {
			closeArtifacts(arts)
			return nil, err
		}
	}
	crx, crg, crt := arts[0].w, arts[1].w, arts[2].w

	genes := NewGeneAggregator()
	dedup := NewTranscriptDedup()

	e.logger.Info("mapper started",
		zap.String("input", opts.InputPath),
		zap.Int64("seek_pos", opts.SeekPos),
		zap.Int("chunk_size", opts.ChunkSize))
	e.status.Status(status.KindStatus, "Started "+e.title)
	e.throttle.Start()

	if err := e.mapAll(reader, crx, crt, genes, dedup, sum); err != nil {
		closeArtifacts(arts)
		return sum, err
	}

	for _, g := range genes.Sorted() {
		if err := crg.WriteRecord(g.Record()); err != nil {
			closeArtifacts(arts)
			return sum, fmt.Errorf("write gene summary: %w", err)
		}
	}
	sum.Genes = genes.Len()

	if err := e.mapper.End(); err != nil {
		closeArtifacts(arts)
		return sum, fmt.Errorf("mapper end: %w", err)
	}
	for _, a := range arts {
		if err := a.w.Close(); err != nil {
			return sum, fmt.Errorf("close %s: %w", a.path, err)
		}
	}

	sum.Elapsed = time.Since(start)
	e.logger.Info("mapper finished",
		zap.Int("lines", sum.LinesRead),
		zap.Int("written", sum.Written),
		zap.Int("dropped", sum.Dropped),
		zap.Int("data_errors", sum.DataErrors),
		zap.Int("genes", sum.Genes),
		zap.Duration("elapsed", sum.Elapsed))
	e.status.Status(status.KindStatus, fmt.Sprintf("Finished %s: %d lines", e.title, sum.LinesRead))
	return sum, nil
}

func (e *Engine) mapAll(reader *exchange.Reader, crx, crt *exchange.Writer, genes *GeneAggregator, dedup *TranscriptDedup, sum *Summary) error {
	for {
		rec, err := reader.Next()
		if err != nil {
			var pe *exchange.ParseError
			if errors.As(err, &pe) {
				sum.LinesRead++
				sum.DataErrors++
				e.errLog.Record(pe.Line, reader.Line(), err)
				continue
			}
			return err
		}
		if rec == nil {
			return nil
		}
		sum.LinesRead++
		if e.throttle.Due(sum.LinesRead) {
			e.status.Status(status.KindStatus, fmt.Sprintf("Running %s: line %d", e.title, reader.LineNumber()))
		}

		mv, alts, err := e.mapper.Map(rec)
		if err != nil {
			if errors.Is(err, ErrInvalidData) {
				sum.DataErrors++
				e.errLog.Record(reader.LineNumber(), reader.Line(), err)
				continue
			}
			e.errLog.Record(reader.LineNumber(), reader.Line(), err)
			return fmt.Errorf("map line %d: %w", reader.LineNumber(), err)
		}
		if mv == nil {
			continue
		}
		if mv.RefBase == mv.AltBase {
			sum.Dropped++
			continue
		}

		// Line numbers count from the start of the file in every shard.
		if mv.UID == 0 {
			mv.UID = int64(reader.LineNumber())
		}
		row, err := mv.Record()
		if err != nil {
			sum.DataErrors++
			e.errLog.Record(reader.LineNumber(), reader.Line(), err)
			continue
		}
		if err := crx.WriteRecord(row); err != nil {
			return fmt.Errorf("write mapped variant: %w", err)
		}
		sum.Written++
		genes.Add(mv.AllMappings)

		for _, edge := range dedup.Edges(alts) {
			if err := crt.WriteRow([]string{edge.Primary, edge.Alt}); err != nil {
				return fmt.Errorf("write transcript alias: %w", err)
			}
			sum.Transcripts++
		}
	}
}

func closeArtifacts(arts []*artifact) {
	for _, a := range arts {
		if a.w != nil {
			a.w.Close()
		}
	}
}
