// Package genesummary is a gene-level post-aggregation module that
// summarizes the sequence ontology terms of each gene's variants.
package genesummary

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/inodb/vibe-annot/internal/config"
	"github.com/inodb/vibe-annot/internal/postagg"
	"github.com/inodb/vibe-annot/internal/schema"
	"github.com/inodb/vibe-annot/internal/so"
)

// Name is the module name and column namespace.
const Name = "genesummary"

// OptMinCount drops terms seen fewer times from the SO table.
const OptMinCount = "min_count"

// Output fields.
const (
	colNum   = "num_so"
	colSet   = "so_set"
	colTable = "so_table"
)

// Metadata is the module's built-in configuration.
var Metadata = map[string]any{
	config.KeyTitle:        "Gene Summary",
	config.KeyVersion:      "1.0.0",
	config.KeyType:         "postaggregator",
	config.KeyLevel:        string(schema.LevelGene),
	config.KeyInputColumns: []string{"base__so"},
	config.KeyOutputColumns: []map[string]any{
		{"name": colNum, "title": "Distinct SO terms", "type": "int"},
		{"name": colSet, "title": "SO terms", "type": "string", "category": "multi"},
		{"name": colTable, "title": "SO counts", "type": "string", "table": true, "table_header": []map[string]any{
			{"name": "so", "title": "SO", "type": "string"},
			{"name": "count", "title": "Count", "type": "int"},
		}},
	},
}

// Conf resolves the module configuration with overrides applied.
func Conf(overrides string) (*config.ModuleConf, error) {
	return config.FromMap(Name, Metadata, overrides)
}

// Module implements postagg.Module.
type Module struct {
	postagg.Base
	minCount int64
}

// New returns the gene summary module.
func New() *Module {
	return &Module{minCount: 1}
}

// Options declares the module's options.
func (m *Module) Options() config.Registry {
	return config.Registry{OptMinCount: config.KindInt}
}

// Setup checks the output declaration and reads the module options.
func (m *Module) Setup(run *postagg.Run) error {
	if col, ok := run.Conf.Column(colTable); !ok || !col.Table {
		return fmt.Errorf("%s must be declared as a table column", colTable)
	}
	n, err := run.Options.Int(OptMinCount)
	switch {
	case errors.Is(err, config.ErrNotSet):
		return nil
	case err != nil:
		return err
	case n < 1:
		return fmt.Errorf("%s must be at least 1, got %d", OptMinCount, n)
	}
	m.minCount = n
	return nil
}

// Annotate summarizes the SO terms of one gene's variants.
func (m *Module) Annotate(row postagg.Row) (postagg.Output, error) {
	values, ok := row["base__so"].([]any)
	if !ok {
		return nil, fmt.Errorf("base__so: expected a variant sequence, got %T", row["base__so"])
	}
	counts := make(map[string]int64)
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		for _, term := range so.Split(s) {
			counts[term]++
		}
	}
	if len(counts) == 0 {
		return nil, nil
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	so.Sort(terms)

	ranked := append([]string(nil), terms...)
	sort.SliceStable(ranked, func(i, j int) bool { return counts[ranked[i]] > counts[ranked[j]] })
	var table []map[string]any
	for _, term := range ranked {
		if counts[term] >= m.minCount {
			table = append(table, map[string]any{"so": term, "count": counts[term]})
		}
	}

	out := postagg.Output{
		colNum: len(terms),
		colSet: strings.Join(terms, schema.CategorySeparator),
	}
	if len(table) > 0 {
		out[colTable] = table
	}
	return out, nil
}
