package postagg

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/inodb/vibe-annot/internal/schema"
	"github.com/inodb/vibe-annot/internal/store"
)

// input is the resolved read projection.
type input struct {
	variant []string
	gene    []string
}

func (in *input) has(level schema.Level, name string) bool {
	cols := in.variant
	if level == schema.LevelGene {
		cols = in.gene
	}
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}

func (in *input) add(level schema.Level, name string) {
	if in.has(level, name) {
		return
	}
	if level == schema.LevelGene {
		in.gene = append(in.gene, name)
	} else {
		in.variant = append(in.variant, name)
	}
}

// resolveInput builds the read projection from the module's input_columns or
// requires declaration against the columns present in the store. A name may
// be qualified as "variant.<col>" or "gene.<col>"; an unqualified name is
// looked up at variant level first.
func (e *Engine) resolveInput(ctx context.Context, q sqlx.QueryerContext) (*input, error) {
	present := make(map[schema.Level][]string, len(schema.Levels))
	for _, level := range schema.Levels {
		cols, err := store.Columns(ctx, q, level)
		if err != nil {
			return nil, err
		}
		present[level] = cols
	}
	contains := func(level schema.Level, name string) bool {
		for _, c := range present[level] {
			if c == name {
				return true
			}
		}
		return false
	}
	seen := make(map[string]bool)

	in := &input{}
	switch {
	case len(e.conf.InputColumns) > 0:
		for _, name := range e.conf.InputColumns {
			level, col, ok := findColumn(name, contains)
			if !ok {
				e.logger.Warn("input column not found", zap.String("module", e.conf.Name), zap.String("column", name))
				continue
			}
			if seen[col] {
				continue
			}
			seen[col] = true
			in.add(level, col)
		}
	case len(e.conf.Requires) > 0:
		for _, mod := range e.conf.Requires {
			found := false
			for _, level := range schema.Levels {
				for _, col := range present[level] {
					if strings.HasPrefix(col, mod+schema.NamespaceSep) && !seen[col] {
						seen[col] = true
						in.add(level, col)
						found = true
					}
				}
			}
			if !found {
				e.logger.Warn("required module has no columns", zap.String("module", e.conf.Name), zap.String("requires", mod))
			}
		}
	default:
		for _, col := range present[e.level] {
			in.add(e.level, col)
		}
	}

	switch e.level {
	case schema.LevelVariant:
		in.add(schema.LevelVariant, schema.ColUID)
		if len(in.gene) > 0 {
			in.add(schema.LevelVariant, schema.ColHugo)
		}
	case schema.LevelGene:
		in.add(schema.LevelGene, schema.ColHugo)
	}
	return in, nil
}

func findColumn(name string, contains func(schema.Level, string) bool) (schema.Level, string, bool) {
	if prefix, col, ok := strings.Cut(name, "."); ok {
		level := schema.Level(prefix)
		if level.Valid() && contains(level, col) {
			return level, col, true
		}
		return "", "", false
	}
	for _, level := range schema.Levels {
		if contains(level, name) {
			return level, name, true
		}
	}
	return "", "", false
}

func projection(alias string, cols []string) (string, error) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		q, err := store.Ident(c)
		if err != nil {
			return "", err
		}
		parts[i] = alias + "." + q + " AS " + q
	}
	return strings.Join(parts, ", "), nil
}

// variantQuery selects variant rows, joined to their gene row when gene
// columns are requested.
func variantQuery(in *input) (string, error) {
	cols, err := projection("v", in.variant)
	if err != nil {
		return "", err
	}
	from := `"variant" AS v`
	if len(in.gene) > 0 {
		gcols, err := projection("g", in.gene)
		if err != nil {
			return "", err
		}
		cols += ", " + gcols
		from += ` INNER JOIN "gene" AS g ON v."base__hugo" = g."base__hugo"`
	}
	return fmt.Sprintf(`SELECT %s FROM %s ORDER BY v."base__uid"`, cols, from), nil
}

func geneQuery(in *input) (string, error) {
	cols, err := projection("g", in.gene)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`SELECT %s FROM "gene" AS g ORDER BY g."base__hugo"`, cols), nil
}

// geneVariantsQuery selects the requested variant columns of one gene.
func geneVariantsQuery(in *input) (string, error) {
	cols, err := projection("v", in.variant)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`SELECT %s FROM "variant" AS v WHERE v."base__hugo" = ? ORDER BY v."base__uid"`, cols), nil
}

// normalize converts driver values into plain Go values.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func scanRow(rows *sqlx.Rows) (Row, error) {
	m := make(map[string]any)
	if err := rows.MapScan(m); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	for k, v := range m {
		m[k] = normalize(v)
	}
	return Row(m), nil
}
