package mapper

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/inodb/vibe-annot/internal/exchange"
	"github.com/inodb/vibe-annot/internal/mapping"
	"github.com/inodb/vibe-annot/internal/runlog"
	"github.com/inodb/vibe-annot/internal/schema"
	"github.com/inodb/vibe-annot/internal/so"
	"github.com/inodb/vibe-annot/internal/status"
)

var inputColumns = []schema.ColumnDef{
	{Name: "uid", Type: schema.TypeInt},
	{Name: "chrom"},
	{Name: "pos", Type: schema.TypeInt},
	{Name: "ref_base"},
	{Name: "alt_base"},
	{Name: "hugo"},
	{Name: "transcript"},
	{Name: "so"},
}

func writeInput(t *testing.T, rows [][]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.crv")
	w, err := exchange.Create(path)
	require.NoError(t, err)
	w.AddColumns(inputColumns)
	require.NoError(t, w.WriteDefinition())
	for _, row := range rows {
		require.NoError(t, w.WriteRow(row))
	}
	require.NoError(t, w.Close())
	return path
}

// simpleMapper maps a record onto a single transcript and reports the
// transcript with an "a" suffix as its alternate.
type simpleMapper struct {
	Base
	fail  error
	setup bool
	ended bool
}

func (m *simpleMapper) Setup() error { m.setup = true; return nil }
func (m *simpleMapper) End() error   { m.ended = true; return nil }

func (m *simpleMapper) Map(rec exchange.Record) (*MappedVariant, AltTranscripts, error) {
	if m.fail != nil && rec["chrom"] == "fail" {
		return nil, nil, m.fail
	}
	pos, err := strconv.ParseInt(rec["pos"], 10, 64)
	if err != nil {
		return nil, nil, Invalid("pos", "not an integer: %q", rec["pos"])
	}
	uid, _ := strconv.ParseInt(rec["uid"], 10, 64)
	all := make(mapping.AllMappings)
	all.Add(rec["hugo"], mapping.TranscriptMapping{Transcript: rec["transcript"], SO: rec["so"]})
	mv := &MappedVariant{
		UID:         uid,
		Chrom:       rec["chrom"],
		Pos:         pos,
		Strand:      "+",
		RefBase:     rec["ref_base"],
		AltBase:     rec["alt_base"],
		Hugo:        rec["hugo"],
		Transcript:  rec["transcript"],
		SO:          rec["so"],
		AllMappings: all,
	}
	alts := AltTranscripts{rec["transcript"]: {rec["transcript"] + "a"}}
	return mv, alts, nil
}

func readAll(t *testing.T, path string) []exchange.Record {
	t.Helper()
	r, err := exchange.OpenReader(path, exchange.ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()
	var out []exchange.Record
	for {
		rec, err := r.Next()
		require.NoError(t, err)
		if rec == nil {
			return out
		}
		out = append(out, rec)
	}
}

func TestEngine_Run(t *testing.T) {
	input := writeInput(t, [][]string{
		{"1", "chr12", "100", "C", "A", "G", "T1", so.MissenseVariant},
		{"2", "chr12", "200", "C", "T", "G", "T1", so.StopGained},
		{"3", "chr12", "300", "A", "A", "G", "T2", so.MissenseVariant},
	})

	m := &simpleMapper{}
	e := NewEngine(m)
	e.SetModule("testmapper", "Test Mapper", "1.0")
	sum, err := e.Run(Options{InputPath: input})
	require.NoError(t, err)

	assert.True(t, m.setup)
	assert.True(t, m.ended)
	assert.Equal(t, 3, sum.LinesRead)
	assert.Equal(t, 2, sum.Written)
	assert.Equal(t, 1, sum.Dropped)
	assert.Equal(t, 0, sum.DataErrors)
	assert.Equal(t, 1, sum.Genes)
	assert.Equal(t, 1, sum.Transcripts)
	assert.True(t, strings.HasSuffix(sum.CrxPath, "sample.crx"))

	crx := readAll(t, sum.CrxPath)
	require.Len(t, crx, 2)
	assert.Equal(t, "1", crx[0]["uid"])
	assert.Equal(t, "2", crx[1]["uid"])
	all, err := mapping.Parse(crx[1]["all_mappings"])
	require.NoError(t, err)
	assert.Equal(t, []string{"G"}, all.Genes())

	crg := readAll(t, sum.CrgPath)
	require.Len(t, crg, 1)
	assert.Equal(t, "G", crg[0]["hugo"])
	assert.Equal(t, "2", crg[0]["num_variants"])
	assert.Equal(t, so.StopGained, crg[0]["so"])
	assert.Equal(t, "stop_gained(1),missense_variant(1)", crg[0]["all_so"])

	crt := readAll(t, sum.CrtPath)
	assert.Equal(t, []exchange.Record{{"primary_transcript": "T1", "alt_transcript": "T1a"}}, crt)

	r, err := exchange.OpenReader(sum.CrxPath, exchange.ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "testmapper", r.Meta(exchange.MetaModule))
	assert.Equal(t, "1.0", r.Meta(exchange.MetaVersion))
	assert.Equal(t, [][]string{{"uid"}}, r.Indexes())
}

func TestEngine_DataErrorsIsolated(t *testing.T) {
	input := writeInput(t, [][]string{
		{"1", "chr1", "x", "C", "A", "G", "T1", so.MissenseVariant},
		{"2", "chr1", "y", "C", "A", "G", "T1", so.MissenseVariant},
		{"3", "chr1", "10", "C", "A", "G", "T1", so.MissenseVariant},
	})

	runCore, runLogs := observer.New(zap.DebugLevel)
	errCore, errLogs := observer.New(zap.DebugLevel)
	e := NewEngine(&simpleMapper{})
	e.SetErrorLog(runlog.NewErrorLog(zap.New(runCore), zap.New(errCore)))

	sum, err := e.Run(Options{InputPath: input, OutputDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.DataErrors)
	assert.Equal(t, 1, sum.Written)

	// Two distinct messages, each logged once to the run log.
	assert.Equal(t, 2, runLogs.Len())
	require.Equal(t, 2, errLogs.Len())
	assert.Contains(t, errLogs.All()[0].ContextMap()["input"], "\tx\t")
}

func TestEngine_AbortOnUnexpectedError(t *testing.T) {
	input := writeInput(t, [][]string{
		{"1", "chr1", "10", "C", "A", "G", "T1", so.MissenseVariant},
		{"2", "fail", "20", "C", "A", "G", "T1", so.MissenseVariant},
		{"3", "chr1", "30", "C", "A", "G", "T1", so.MissenseVariant},
	})
	boom := errors.New("nil transcript table")
	m := &simpleMapper{fail: boom}

	errCore, errLogs := observer.New(zap.DebugLevel)
	e := NewEngine(m)
	e.SetErrorLog(runlog.NewErrorLog(zap.NewNop(), zap.New(errCore)))

	sum, err := e.Run(Options{InputPath: input})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, sum.Written)
	assert.False(t, m.ended)

	// The failing line reaches the error log before the run aborts.
	require.Equal(t, 1, errLogs.Len())
	ctx := errLogs.All()[0].ContextMap()
	assert.Equal(t, int64(10), ctx["line"])
	assert.Contains(t, ctx["input"], "\tfail\t")
}

func TestEngine_Shard(t *testing.T) {
	var rows [][]string
	for i := 1; i <= 5; i++ {
		rows = append(rows, []string{strconv.Itoa(i), "chr1", strconv.Itoa(i * 100), "C", "A", "G", "T" + strconv.Itoa(i), so.MissenseVariant})
	}
	input := writeInput(t, rows)

	sum, err := NewEngine(&simpleMapper{}).Run(Options{InputPath: input, Name: "shard", ChunkSize: 2, Postfix: ".0"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(sum.CrxPath, "shard.crx.0"))
	assert.True(t, strings.HasSuffix(sum.CrgPath, "shard.crg.0"))
	assert.Equal(t, 2, sum.Written)

	crx := readAll(t, sum.CrxPath)
	require.Len(t, crx, 2)
	assert.Equal(t, "2", crx[1]["uid"])
}

// dataOffset returns the byte offset of the n-th data line (0-based) of path.
func dataOffset(t *testing.T, path string, n int) int64 {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var off int64
	for _, line := range strings.SplitAfter(string(b), "\n") {
		if !strings.HasPrefix(line, "#") {
			if n == 0 {
				return off
			}
			n--
		}
		off += int64(len(line))
	}
	t.Fatalf("no data line %d in %s", n, path)
	return 0
}

func TestEngine_FallbackUIDsUniqueAcrossShards(t *testing.T) {
	var rows [][]string
	for i := 1; i <= 4; i++ {
		rows = append(rows, []string{"", "chr1", strconv.Itoa(i * 100), "C", "A", "G", "T1", so.MissenseVariant})
	}
	// An explicit uid that a per-shard counter would reuse.
	rows[0][0] = "2"
	input := writeInput(t, rows)
	dir := t.TempDir()

	first, err := NewEngine(&simpleMapper{}).Run(Options{InputPath: input, OutputDir: dir, ChunkSize: 2, Postfix: ".0"})
	require.NoError(t, err)
	second, err := NewEngine(&simpleMapper{}).Run(Options{
		InputPath: input,
		OutputDir: dir,
		SeekPos:   dataOffset(t, input, 2),
		ChunkSize: 2,
		Postfix:   ".1",
	})
	require.NoError(t, err)

	crx := append(readAll(t, first.CrxPath), readAll(t, second.CrxPath)...)
	require.Len(t, crx, 4)
	seen := make(map[string]string)
	for _, rec := range crx {
		prev, dup := seen[rec["uid"]]
		assert.False(t, dup, "uid %s used by pos %s and %s", rec["uid"], prev, rec["pos"])
		seen[rec["uid"]] = rec["pos"]
	}
	assert.Equal(t, "2", crx[0]["uid"])
	assert.Equal(t, "300", crx[2]["pos"])
}

func TestEngine_Progress(t *testing.T) {
	var rows [][]string
	for i := 1; i <= 4; i++ {
		rows = append(rows, []string{strconv.Itoa(i), "chr1", "10", "C", "A", "G", "T1", so.MissenseVariant})
	}
	input := writeInput(t, rows)

	var events []string
	e := NewEngine(&simpleMapper{})
	e.SetStatus(status.Func(func(kind, msg string) { events = append(events, msg) }))
	e.SetThrottle(&status.Throttle{Every: 2})

	_, err := e.Run(Options{InputPath: input})
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "Started Mapper", events[0])
	assert.True(t, strings.HasPrefix(events[1], "Running Mapper: line"))
	assert.Equal(t, "Finished Mapper: 4 lines", events[3])
}

func TestEngine_MissingInput(t *testing.T) {
	_, err := NewEngine(&simpleMapper{}).Run(Options{})
	assert.Error(t, err)

	_, err = NewEngine(&simpleMapper{}).Run(Options{InputPath: filepath.Join(t.TempDir(), "none.crv")})
	assert.Error(t, err)
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "sample", BaseName(Options{InputPath: "/data/sample.crv"}))
	assert.Equal(t, "sample", BaseName(Options{InputPath: "/data/sample.crv.gz"}))
	assert.Equal(t, "run1", BaseName(Options{InputPath: "/data/sample.crv", Name: "run1"}))
}
