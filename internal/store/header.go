package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/inodb/vibe-annot/internal/schema"
)

// Annotator is one row of a level's annotator registry.
type Annotator struct {
	Name    string `db:"name"`
	Title   string `db:"title"`
	Version string `db:"version"`
}

// ErrNoHeader is returned when a column has no header row.
var ErrNoHeader = errors.New("no header for column")

// PutHeader upserts the header row of col.
func PutHeader(ctx context.Context, e sqlx.ExecerContext, level schema.Level, col schema.ColumnDef) error {
	def, err := col.JSON()
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT OR REPLACE INTO "%s" (col_name, col_def) VALUES (?, ?)`, level.HeaderTable())
	if _, err := e.ExecContext(ctx, q, col.Name, def); err != nil {
		return fmt.Errorf("write header %s: %w", col.Name, err)
	}
	return nil
}

// PutAnnotator upserts a row of the level's annotator registry.
func PutAnnotator(ctx context.Context, e sqlx.ExecerContext, level schema.Level, a Annotator) error {
	q := fmt.Sprintf(`INSERT OR REPLACE INTO "%s" (name, title, version) VALUES (?, ?, ?)`, level.AnnotatorTable())
	if _, err := e.ExecContext(ctx, q, a.Name, a.Title, a.Version); err != nil {
		return fmt.Errorf("write annotator %s: %w", a.Name, err)
	}
	return nil
}

// Header returns the persisted definition of column name.
func Header(ctx context.Context, q sqlx.QueryerContext, level schema.Level, name string) (schema.ColumnDef, error) {
	var def string
	err := sqlx.GetContext(ctx, q, &def, fmt.Sprintf(`SELECT col_def FROM "%s" WHERE col_name = ?`, level.HeaderTable()), name)
	if errors.Is(err, sql.ErrNoRows) {
		return schema.ColumnDef{}, fmt.Errorf("%w %s", ErrNoHeader, name)
	}
	if err != nil {
		return schema.ColumnDef{}, fmt.Errorf("read header %s: %w", name, err)
	}
	return schema.ParseColumnDef(def)
}

// Header returns the persisted definition of column name.
func (s *Store) Header(ctx context.Context, level schema.Level, name string) (schema.ColumnDef, error) {
	return Header(ctx, s.db, level, name)
}

// Headers returns every header row of the level, ordered by column name.
func (s *Store) Headers(ctx context.Context, level schema.Level) ([]schema.ColumnDef, error) {
	var defs []string
	if err := s.db.SelectContext(ctx, &defs, fmt.Sprintf(`SELECT col_def FROM "%s" ORDER BY col_name`, level.HeaderTable())); err != nil {
		return nil, fmt.Errorf("read %s headers: %w", level, err)
	}
	out := make([]schema.ColumnDef, 0, len(defs))
	for _, d := range defs {
		c, err := schema.ParseColumnDef(d)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Annotators returns the level's annotator registry ordered by name.
func (s *Store) Annotators(ctx context.Context, level schema.Level) ([]Annotator, error) {
	var out []Annotator
	if err := s.db.SelectContext(ctx, &out, fmt.Sprintf(`SELECT name, title, version FROM "%s" ORDER BY name`, level.AnnotatorTable())); err != nil {
		return nil, fmt.Errorf("read %s annotators: %w", level, err)
	}
	return out, nil
}

// Migration is the result of Migrate.
type Migration struct {
	// Added lists the namespaced columns created by this migration.
	Added []string
	// Columns holds the namespaced definitions written to the header table.
	Columns []schema.ColumnDef
}

// Migrate brings the level table in line with a module's output columns in a
// single transaction on conn: missing <module>__<field> columns are added,
// header rows and the annotator row are upserted. Running it again with the
// same columns changes nothing.
func (s *Store) Migrate(ctx context.Context, conn *sqlx.Conn, level schema.Level, a Annotator, cols []schema.ColumnDef) (*Migration, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("unknown level %q", level)
	}
	if !schema.ValidIdent(a.Name) {
		return nil, fmt.Errorf("invalid module name %q", a.Name)
	}

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	existing, err := Columns(ctx, tx, level)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[strings.ToLower(c)] = true
	}

	m := &Migration{}
	for _, c := range cols {
		c.Name = schema.Namespaced(a.Name, c.Name)
		q, err := Ident(c.Name)
		if err != nil {
			return nil, err
		}
		if !have[strings.ToLower(c.Name)] {
			stmt := fmt.Sprintf(`ALTER TABLE "%s" ADD COLUMN %s %s`, level, q, s.dialect.ColumnType(c.Type))
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return nil, fmt.Errorf("add column %s: %w", c.Name, err)
			}
			have[strings.ToLower(c.Name)] = true
			m.Added = append(m.Added, c.Name)
		}
		if err := PutHeader(ctx, tx, level, c); err != nil {
			return nil, err
		}
		m.Columns = append(m.Columns, c)
	}
	if err := PutAnnotator(ctx, tx, level, a); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit migration: %w", err)
	}
	return m, nil
}
