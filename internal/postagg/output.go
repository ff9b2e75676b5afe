package postagg

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/inodb/vibe-annot/internal/schema"
)

// assignments turns a module output into SET clauses and bound values, in
// declared column order. Fields may be given by short or namespaced name.
func (e *Engine) assignments(out Output) ([]string, []any, error) {
	if len(out) == 0 {
		return nil, nil, nil
	}
	var sets []string
	var args []any
	for i, decl := range e.conf.OutputColumns {
		col := e.columns[i]
		v, ok := out[decl.Name]
		if !ok || v == nil {
			v, ok = out[col.Name]
		}
		if !ok || v == nil {
			continue
		}
		val, err := columnValue(col, v)
		if err != nil {
			return nil, nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		if val == nil {
			continue
		}
		sets = append(sets, `"`+col.Name+`" = ?`)
		args = append(args, val)
	}
	return sets, args, nil
}

// columnValue prepares v for binding to col.
func columnValue(col schema.ColumnDef, v any) (any, error) {
	if col.Table {
		return tableValue(col.TableHeaderNames(), v)
	}
	switch t := v.(type) {
	case string, int, int32, int64, float32, float64, bool:
		return t, nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		return string(b), nil
	}
}

// tableValue converts a table-shaped value into a JSON text blob. Rows given
// as maps become arrays ordered by header; rows that are already arrays pass
// through. A string is taken to be serialized already.
func tableValue(header []string, v any) (any, error) {
	var rows []any
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil, nil
		}
		return t, nil
	case []map[string]any:
		rows = make([]any, len(t))
		for i, r := range t {
			rows[i] = r
		}
	case []any:
		rows = t
	case [][]any:
		rows = make([]any, len(t))
		for i, r := range t {
			rows[i] = r
		}
	default:
		return nil, fmt.Errorf("unsupported table value %T", v)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	out := make([][]any, len(rows))
	for i, r := range rows {
		switch row := r.(type) {
		case map[string]any:
			cells := make([]any, len(header))
			for j, h := range header {
				cells[j] = row[h]
			}
			out[i] = cells
		case []any:
			out[i] = row
		default:
			return nil, fmt.Errorf("unsupported table row %T", r)
		}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal table: %w", err)
	}
	return string(b), nil
}

func updateStatement(level schema.Level, keyCol string, sets []string) string {
	return fmt.Sprintf(`UPDATE "%s" SET %s WHERE "%s" = ?`, level, strings.Join(sets, ", "), keyCol)
}
