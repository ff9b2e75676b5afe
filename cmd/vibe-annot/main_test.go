package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-annot/internal/schema"
	"github.com/inodb/vibe-annot/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	cfgFile = ""
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "config.yaml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeCalls(t *testing.T, dir string) string {
	t.Helper()
	rows := []string{
		"1\tchr12\t25245351\tC\tA\t\tENST00000311936|KRAS|missense_variant|p.G12C|c.34G>T\t",
		"2\tchr12\t25245350\tC\tT\t\tENST00000311936|KRAS|missense_variant|p.G12D|c.35G>A\t",
		"3\tchr12\t25227341\tT\tA\t\tENST00000311936|KRAS|stop_gained\t",
		"4\tchr17\t7675088\tC\tT\t\tENST00000269305|TP53|missense_variant|p.R175H|c.524G>A\t",
	}
	path := filepath.Join(dir, "calls.crv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0o644))
	return path
}

func TestPipeline(t *testing.T) {
	dir := t.TempDir()
	input := writeCalls(t, dir)

	out, err := execute(t, "map", "--no-header", input)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "calls.crx"))
	assert.FileExists(t, filepath.Join(dir, "calls.mapper.log"))
	assert.FileExists(t, filepath.Join(dir, "calls.mapper.err"))

	db := filepath.Join(dir, "run.sqlite")
	_, err = execute(t, "load", "--store", db, filepath.Join(dir, "calls.crx"), filepath.Join(dir, "calls.crg"))
	require.NoError(t, err)

	out, err = execute(t, "postagg", "--store", db, "genesummary")
	require.NoError(t, err)
	assert.Contains(t, out, "genesummary: 2 rows written")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	var numSO int64
	var soSet string
	require.NoError(t, st.DB().QueryRowxContext(context.Background(),
		`SELECT genesummary__num_so, genesummary__so_set FROM gene WHERE base__hugo = 'KRAS'`).Scan(&numSO, &soSet))
	assert.Equal(t, int64(2), numSO)
	assert.Equal(t, "stop_gained;missense_variant", soSet)

	cols, err := st.Columns(context.Background(), schema.LevelGene)
	require.NoError(t, err)
	assert.Contains(t, cols, "genesummary__so_table")
}

func TestPostagg_UnknownModule(t *testing.T) {
	_, err := execute(t, "postagg", "--store", filepath.Join(t.TempDir(), "run.sqlite"), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "genesummary")
}

func TestLoad_RequiresStore(t *testing.T) {
	_, err := execute(t, "load", "calls.crx")
	assert.EqualError(t, err, "--store is required")
}

func TestConfig_SetRejectsUnknownKey(t *testing.T) {
	_, err := execute(t, "config", "set", "alphamissense", "true")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	_, err := execute(t, "version")
	assert.NoError(t, err)
}
