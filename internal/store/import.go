package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-annot/internal/exchange"
	"github.com/inodb/vibe-annot/internal/schema"
)

// BaseAnnotator is the registry row written for the base columns.
var BaseAnnotator = Annotator{Name: schema.BaseModule, Title: "Variant Annotation", Version: ""}

// ParseValue converts an exchange cell into a typed SQL value.
// Empty cells become NULL.
func ParseValue(t schema.Type, s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	switch t {
	case schema.TypeInt:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse int %q: %w", s, err)
		}
		return v, nil
	case schema.TypeFloat:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("parse float %q: %w", s, err)
		}
		return v, nil
	default:
		return s, nil
	}
}

// ImportVariants loads a mapped-variant (crx) stream into the variant table.
func (s *Store) ImportVariants(ctx context.Context, r *exchange.Reader) (int, error) {
	return s.importLevel(ctx, schema.LevelVariant, r)
}

// ImportGenes loads a gene-summary (crg) stream into the gene table.
func (s *Store) ImportGenes(ctx context.Context, r *exchange.Reader) (int, error) {
	return s.importLevel(ctx, schema.LevelGene, r)
}

// ErrNotEmpty is returned when importing into a level table that already
// holds rows.
var ErrNotEmpty = errors.New("table is not empty")

// importLevel writes the base header rows and the base annotator row, then
// appends every record of r to the level table. The table must be empty.
func (s *Store) importLevel(ctx context.Context, level schema.Level, r *exchange.Reader) (int, error) {
	if err := s.CreateSchema(ctx); err != nil {
		return 0, err
	}
	n, err := s.Count(ctx, level)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, fmt.Errorf("import %s: %w (%d rows)", level, ErrNotEmpty, n)
	}
	cols := schema.BaseColumns(level)
	for _, c := range cols {
		if err := PutHeader(ctx, s.db, level, c); err != nil {
			return 0, err
		}
	}
	if err := PutAnnotator(ctx, s.db, level, BaseAnnotator); err != nil {
		return 0, err
	}

	existing, err := s.Columns(ctx, level)
	if err != nil {
		return 0, err
	}

	conn, err := s.db.Connx(ctx)
	if err != nil {
		return 0, fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	// The appender needs the full column list, so it only serves a table
	// that holds nothing but base columns.
	var add func(values []any) error
	var finish func() error
	if s.dialect.Name == DuckDB.Name && len(existing) == len(cols) {
		var appender *goduckdb.Appender
		if err := conn.Raw(func(driverConn any) error {
			var err error
			appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", string(level))
			return err
		}); err != nil {
			return 0, fmt.Errorf("create appender: %w", err)
		}
		defer appender.Close()
		add = func(values []any) error {
			dv := make([]driver.Value, len(values))
			for i, v := range values {
				dv[i] = v
			}
			return appender.AppendRow(dv...)
		}
		finish = appender.Flush
	} else {
		tx, err := conn.BeginTxx(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("begin import: %w", err)
		}
		defer tx.Rollback()

		names := make([]string, len(cols))
		marks := make([]string, len(cols))
		for i, c := range cols {
			names[i] = `"` + c.Name + `"`
			marks[i] = "?"
		}
		stmt, err := tx.PreparexContext(ctx, fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (%s)`,
			level, strings.Join(names, ", "), strings.Join(marks, ", ")))
		if err != nil {
			return 0, fmt.Errorf("prepare import: %w", err)
		}
		defer stmt.Close()
		add = func(values []any) error {
			_, err := stmt.ExecContext(ctx, values...)
			return err
		}
		finish = tx.Commit
	}

	n = 0
	for {
		rec, err := r.Next()
		if err != nil {
			return n, fmt.Errorf("read %s record: %w", level, err)
		}
		if rec == nil {
			break
		}
		values := make([]any, len(cols))
		for i, c := range cols {
			_, short, _ := schema.SplitNamespaced(c.Name)
			v, err := ParseValue(c.Type, rec[short])
			if err != nil {
				return n, fmt.Errorf("line %d column %s: %w", r.LineNumber(), short, err)
			}
			values[i] = v
		}
		if err := add(values); err != nil {
			return n, fmt.Errorf("insert %s row: %w", level, err)
		}
		n++
	}
	if err := finish(); err != nil {
		return n, fmt.Errorf("finish %s import: %w", level, err)
	}
	return n, nil
}
