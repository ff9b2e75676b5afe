package genesummary

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inodb/vibe-annot/internal/exchange"
	"github.com/inodb/vibe-annot/internal/postagg"
	"github.com/inodb/vibe-annot/internal/schema"
	"github.com/inodb/vibe-annot/internal/store"
)

func TestConf(t *testing.T) {
	conf, err := Conf("")
	require.NoError(t, err)
	assert.Equal(t, Name, conf.Name)
	assert.Equal(t, schema.LevelGene, conf.Level)
	require.Len(t, conf.OutputColumns, 3)
	assert.Equal(t, schema.CategoryMulti, conf.OutputColumns[1].Category)
	assert.Equal(t, []string{"so", "count"}, conf.OutputColumns[2].TableHeaderNames())
}

func TestAnnotate(t *testing.T) {
	m := New()
	out, err := m.Annotate(postagg.Row{
		schema.ColHugo: "KRAS",
		"base__so":     []any{"missense_variant", "stop_gained", "missense_variant,splice_region_variant", nil},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, out["num_so"])
	assert.Equal(t, "stop_gained;missense_variant;splice_region_variant", out["so_set"])
	assert.Equal(t, []map[string]any{
		{"so": "missense_variant", "count": int64(2)},
		{"so": "stop_gained", "count": int64(1)},
		{"so": "splice_region_variant", "count": int64(1)},
	}, out["so_table"])

	out, err = m.Annotate(postagg.Row{"base__so": []any{}})
	require.NoError(t, err)
	assert.Nil(t, out)

	_, err = m.Annotate(postagg.Row{"base__so": "missense_variant"})
	assert.Error(t, err)
}

func seedStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "run.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	load := func(cols []schema.ColumnDef, rows [][]string, fn func(context.Context, *exchange.Reader) (int, error)) {
		var buf bytes.Buffer
		w := exchange.NewWriter(&buf)
		w.AddColumns(cols)
		require.NoError(t, w.WriteDefinition())
		for _, r := range rows {
			require.NoError(t, w.WriteRow(r))
		}
		require.NoError(t, w.Flush())
		r, err := exchange.NewReader(&buf, exchange.ReaderOptions{})
		require.NoError(t, err)
		_, err = fn(context.Background(), r)
		require.NoError(t, err)
	}
	variant := func(uid, hugo, term string) []string {
		return []string{uid, "chr1", "100", "+", "C", "A", "", "", hugo, "", term, "", "", ""}
	}
	load(schema.CrxColumns, [][]string{
		variant("1", "KRAS", "missense_variant"),
		variant("2", "KRAS", "missense_variant"),
		variant("3", "KRAS", "stop_gained"),
		variant("4", "TP53", "synonymous_variant"),
	}, st.ImportVariants)
	load(schema.CrgColumns, [][]string{
		{"KRAS", "", "3", "stop_gained", ""},
		{"TP53", "", "1", "synonymous_variant", ""},
	}, st.ImportGenes)
	return st
}

func TestRun(t *testing.T) {
	st := seedStore(t)
	conf, err := Conf(`{'min_count': 2}`)
	require.NoError(t, err)

	e, err := postagg.New(New(), conf, st, zap.NewNop())
	require.NoError(t, err)
	sum, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.RowsWritten)

	var table string
	require.NoError(t, st.DB().Get(&table, `SELECT "genesummary__so_table" FROM "gene" WHERE "base__hugo" = ?`, "KRAS"))
	assert.JSONEq(t, `[["missense_variant",2]]`, table)

	var tp53 *string
	require.NoError(t, st.DB().Get(&tp53, `SELECT "genesummary__so_table" FROM "gene" WHERE "base__hugo" = ?`, "TP53"))
	assert.Nil(t, tp53)

	h, err := st.Header(context.Background(), schema.LevelGene, "genesummary__so_set")
	require.NoError(t, err)
	assert.Equal(t, []string{"missense_variant", "stop_gained", "synonymous_variant"}, h.Categories)
}

func TestRun_BadOption(t *testing.T) {
	st := seedStore(t)
	conf, err := Conf(`{"min_count": 0}`)
	require.NoError(t, err)
	e, err := postagg.New(New(), conf, st, zap.NewNop())
	require.NoError(t, err)
	_, err = e.Run(context.Background())
	assert.Error(t, err)
}

func TestRun_TableColumnRequired(t *testing.T) {
	st := seedStore(t)
	conf, err := Conf(`{"output_columns": [{"name": "num_so", "type": "int"}, {"name": "so_table", "type": "string"}]}`)
	require.NoError(t, err)
	e, err := postagg.New(New(), conf, st, zap.NewNop())
	require.NoError(t, err)
	_, err = e.Run(context.Background())
	assert.ErrorContains(t, err, "so_table must be declared as a table column")
}
