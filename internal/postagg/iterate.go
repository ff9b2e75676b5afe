package postagg

import (
	"context"
	"fmt"

	"github.com/inodb/vibe-annot/internal/schema"
	"github.com/inodb/vibe-annot/internal/status"
	"github.com/inodb/vibe-annot/internal/store"
)

// iterate reads input rows on the read connection and writes module output
// on the write connection.
func (e *Engine) iterate(ctx context.Context, conns *store.Conns, in *input, sum *Summary) error {
	if e.level == schema.LevelVariant {
		return e.iterateVariants(ctx, conns, in, sum)
	}
	return e.iterateGenes(ctx, conns, in, sum)
}

func (e *Engine) iterateVariants(ctx context.Context, conns *store.Conns, in *input, sum *Summary) error {
	q, err := variantQuery(in)
	if err != nil {
		return err
	}
	rows, err := conns.Read.QueryxContext(ctx, q)
	if err != nil {
		return fmt.Errorf("query variant rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return err
		}
		if err := e.process(ctx, conns, row, sum); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate variant rows: %w", err)
	}
	return nil
}

// iterateGenes loads the gene rows first, then collects each gene's variant
// columns as ordered sequences.
func (e *Engine) iterateGenes(ctx context.Context, conns *store.Conns, in *input, sum *Summary) error {
	q, err := geneQuery(in)
	if err != nil {
		return err
	}
	rows, err := conns.Read.QueryxContext(ctx, q)
	if err != nil {
		return fmt.Errorf("query gene rows: %w", err)
	}
	var genes []Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			rows.Close()
			return err
		}
		genes = append(genes, row)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate gene rows: %w", err)
	}
	rows.Close()

	var subQuery string
	if len(in.variant) > 0 {
		if subQuery, err = geneVariantsQuery(in); err != nil {
			return err
		}
	}

	for _, row := range genes {
		if subQuery != "" {
			if err := e.collectVariants(ctx, conns, subQuery, in.variant, row); err != nil {
				return err
			}
		}
		if err := e.process(ctx, conns, row, sum); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) collectVariants(ctx context.Context, conns *store.Conns, q string, cols []string, row Row) error {
	for _, c := range cols {
		row[c] = []any{}
	}
	rows, err := conns.Read.QueryxContext(ctx, q, row[schema.ColHugo])
	if err != nil {
		return fmt.Errorf("query variants of gene %v: %w", row[schema.ColHugo], err)
	}
	defer rows.Close()
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return fmt.Errorf("scan variant row: %w", err)
		}
		for i, c := range cols {
			row[c] = append(row[c].([]any), normalize(vals[i]))
		}
	}
	return rows.Err()
}

// process annotates one row and writes the result back.
func (e *Engine) process(ctx context.Context, conns *store.Conns, row Row, sum *Summary) error {
	sum.RowsRead++
	if e.throttle.Due(sum.RowsRead) {
		e.status.Status(status.KindStatus, fmt.Sprintf("Running %s: row %d", e.label(), sum.RowsRead))
	}

	keyCol := schema.ColUID
	if e.level == schema.LevelGene {
		keyCol = schema.ColHugo
	}
	key := row[keyCol]
	if key == nil {
		sum.RowsSkipped++
		sum.Errors++
		e.errLog.RecordKey("", fmt.Errorf("row has no %s", keyCol))
		return nil
	}

	out, err := e.module.Annotate(row)
	if err != nil {
		sum.RowsSkipped++
		sum.Errors++
		e.errLog.RecordKey(fmt.Sprint(key), err)
		return nil
	}
	sets, args, err := e.assignments(out)
	if err != nil {
		sum.RowsSkipped++
		sum.Errors++
		e.errLog.RecordKey(fmt.Sprint(key), err)
		return nil
	}
	if len(sets) == 0 {
		sum.RowsSkipped++
		return nil
	}

	q := updateStatement(e.level, keyCol, sets)
	args = append(args, key)
	if _, err := conns.Write.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("write %s %v: %w", e.level, key, err)
	}
	sum.RowsWritten++
	return nil
}
