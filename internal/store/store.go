// Package store manages the per-run relational store: the variant and gene
// tables, their header tables (column metadata) and annotator registries.
//
// Files ending in .duckdb (or an empty path, in memory) are opened with
// DuckDB; anything else is an SQLite file in WAL mode.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/marcboeker/go-duckdb"
	_ "modernc.org/sqlite"

	"github.com/inodb/vibe-annot/internal/schema"
)

// Dialect captures the differences between the supported engines.
type Dialect struct {
	Name   string
	Driver string
	types  map[schema.Type]string
}

var (
	// SQLite is the default store dialect.
	SQLite = Dialect{
		Name:   "sqlite",
		Driver: "sqlite",
		types:  map[schema.Type]string{schema.TypeString: "text", schema.TypeInt: "integer", schema.TypeFloat: "real"},
	}
	// DuckDB is used for .duckdb stores.
	DuckDB = Dialect{
		Name:   "duckdb",
		Driver: "duckdb",
		types:  map[schema.Type]string{schema.TypeString: "VARCHAR", schema.TypeInt: "BIGINT", schema.TypeFloat: "DOUBLE"},
	}
)

// ColumnType returns the SQL type for a scalar column type.
// Unknown types are stored as strings.
func (d Dialect) ColumnType(t schema.Type) string {
	if s, ok := d.types[t]; ok {
		return s
	}
	return d.types[schema.TypeString]
}

// DialectFor picks the dialect from a store path.
func DialectFor(path string) Dialect {
	if path == "" || strings.HasSuffix(path, ".duckdb") {
		return DuckDB
	}
	return SQLite
}

// Store is an open run store.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	path    string
}

// Open opens or creates the store at path.
// Use an empty string for an in-memory DuckDB store.
func Open(path string) (*Store, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	d := DialectFor(path)
	dsn := path
	if d.Name == SQLite.Name {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)"
	}

	db, err := sqlx.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", d.Name, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s store: %w", d.Name, err)
	}
	return &Store{db: db, dialect: d, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sqlx.DB for direct access.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect returns the store's dialect.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Path returns the store's file path ("" when in memory).
func (s *Store) Path() string {
	return s.path
}

// Ident validates name and returns it double-quoted for use in SQL.
func Ident(name string) (string, error) {
	if !schema.ValidIdent(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}

// CreateSchema creates the level tables with their base columns and the
// header and annotator tables, if missing.
func (s *Store) CreateSchema(ctx context.Context) error {
	for _, level := range schema.Levels {
		cols := schema.BaseColumns(level)
		defs := make([]string, len(cols))
		for i, c := range cols {
			q, err := Ident(c.Name)
			if err != nil {
				return err
			}
			defs[i] = q + " " + s.dialect.ColumnType(c.Type)
		}
		stmts := []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (%s)`, level, strings.Join(defs, ", ")),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (col_name %s PRIMARY KEY, col_def %s)`,
				level.HeaderTable(), s.dialect.ColumnType(schema.TypeString), s.dialect.ColumnType(schema.TypeString)),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (name %s PRIMARY KEY, title %s, version %s)`,
				level.AnnotatorTable(), s.dialect.ColumnType(schema.TypeString),
				s.dialect.ColumnType(schema.TypeString), s.dialect.ColumnType(schema.TypeString)),
		}
		for _, stmt := range stmts {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create %s schema: %w", level, err)
			}
		}
	}
	return nil
}

// Columns returns the column names of the level table in declaration order.
func Columns(ctx context.Context, q sqlx.QueryerContext, level schema.Level) ([]string, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("unknown level %q", level)
	}
	var names []string
	if err := sqlx.SelectContext(ctx, q, &names, fmt.Sprintf(`SELECT name FROM pragma_table_info('%s')`, level)); err != nil {
		return nil, fmt.Errorf("introspect %s columns: %w", level, err)
	}
	return names, nil
}

// Columns returns the column names of the level table.
func (s *Store) Columns(ctx context.Context, level schema.Level) ([]string, error) {
	return Columns(ctx, s.db, level)
}

// Count returns the number of rows in the level table.
func (s *Store) Count(ctx context.Context, level schema.Level) (int, error) {
	if !level.Valid() {
		return 0, fmt.Errorf("unknown level %q", level)
	}
	var n int
	if err := s.db.GetContext(ctx, &n, fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, level)); err != nil {
		return 0, fmt.Errorf("count %s rows: %w", level, err)
	}
	return n, nil
}

// Conns is a read/write connection pair borrowed for one engine run.
type Conns struct {
	Read  *sqlx.Conn
	Write *sqlx.Conn
}

// Conns checks out two dedicated connections from the pool.
func (s *Store) Conns(ctx context.Context) (*Conns, error) {
	read, err := s.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("get read connection: %w", err)
	}
	write, err := s.db.Connx(ctx)
	if err != nil {
		read.Close()
		return nil, fmt.Errorf("get write connection: %w", err)
	}
	return &Conns{Read: read, Write: write}, nil
}

// Close returns both connections to the pool.
func (c *Conns) Close() error {
	rerr := c.Read.Close()
	werr := c.Write.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}
