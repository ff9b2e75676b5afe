package postagg

import (
	"context"
	"fmt"
	"strings"

	"github.com/inodb/vibe-annot/internal/schema"
	"github.com/inodb/vibe-annot/internal/store"
)

// harvestCategories recomputes the categories of every single or multi
// categorical output column from the values now in the level table.
func (e *Engine) harvestCategories(ctx context.Context, conns *store.Conns) error {
	for _, col := range e.columns {
		if !col.Category.Categorical() {
			continue
		}
		cats, err := distinctCategories(ctx, conns, e.level, col.Name)
		if err != nil {
			return err
		}
		col.SetCategories(cats)
		if err := store.PutHeader(ctx, conns.Write, e.level, col); err != nil {
			return err
		}
	}
	return nil
}

func distinctCategories(ctx context.Context, conns *store.Conns, level schema.Level, name string) ([]string, error) {
	q, err := store.Ident(name)
	if err != nil {
		return nil, err
	}
	rows, err := conns.Read.QueryxContext(ctx, fmt.Sprintf(`SELECT DISTINCT %s FROM "%s"`, q, level))
	if err != nil {
		return nil, fmt.Errorf("select categories of %s: %w", name, err)
	}
	defer rows.Close()

	var cats []string
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan category of %s: %w", name, err)
		}
		if v = normalize(v); v == nil {
			continue
		}
		for _, cat := range strings.Split(fmt.Sprint(v), schema.CategorySeparator) {
			if cat != "" {
				cats = append(cats, cat)
			}
		}
	}
	return cats, rows.Err()
}
