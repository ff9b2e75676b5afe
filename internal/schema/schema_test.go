package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("gene")
	require.NoError(t, err)
	assert.Equal(t, LevelGene, l)
	assert.Equal(t, "gene_header", l.HeaderTable())
	assert.Equal(t, "gene_annotator", l.AnnotatorTable())

	_, err = ParseLevel("sample")
	assert.Error(t, err)
	_, err = ParseLevel("")
	assert.Error(t, err)
}

func TestColumnDef_JSON(t *testing.T) {
	c := ColumnDef{
		Name:     "mod__pathway",
		Title:    "Pathway",
		Type:     TypeString,
		Category: CategoryMulti,
	}
	s, err := c.JSON()
	require.NoError(t, err)
	assert.Contains(t, s, `"categories":[]`)

	got, err := ParseColumnDef(s)
	require.NoError(t, err)
	assert.Equal(t, "mod__pathway", got.Name)
	assert.Equal(t, CategoryMulti, got.Category)
	assert.True(t, got.Category.Categorical())
}

func TestColumnDef_SetCategories(t *testing.T) {
	var c ColumnDef
	c.SetCategories([]string{"C", "A", "B", "A"})
	assert.Equal(t, []string{"A", "B", "C"}, c.Categories)
}

func TestSplitNamespaced(t *testing.T) {
	tests := []struct {
		col    string
		module string
		field  string
		ok     bool
	}{
		{"base__uid", "base", "uid", true},
		{"mod__a__b", "mod", "a__b", true},
		{"plain", "", "plain", false},
		{"__x", "", "__x", false},
	}
	for _, tt := range tests {
		t.Run(tt.col, func(t *testing.T) {
			m, f, ok := SplitNamespaced(tt.col)
			assert.Equal(t, tt.module, m)
			assert.Equal(t, tt.field, f)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestValidIdent(t *testing.T) {
	assert.True(t, ValidIdent("base__uid"))
	assert.True(t, ValidIdent("_x1"))
	assert.False(t, ValidIdent("1abc"))
	assert.False(t, ValidIdent("a; drop table variant"))
	assert.False(t, ValidIdent(`a"b`))
}

func TestBaseColumns(t *testing.T) {
	cols := BaseColumns(LevelVariant)
	require.Len(t, cols, len(CrxColumns))
	assert.Equal(t, ColUID, cols[0].Name)
	assert.Equal(t, "uid", CrxColumns[0].Name, "source definitions are not mutated")

	gene := BaseColumns(LevelGene)
	assert.Equal(t, ColHugo, gene[0].Name)
	assert.Equal(t, 2, gene[2].Index)
}
