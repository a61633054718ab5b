package run

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiomaps/powerrank/internal/config"
	"github.com/radiomaps/powerrank/internal/grid"
	"github.com/radiomaps/powerrank/internal/runlog"
	"github.com/radiomaps/powerrank/internal/source"
)

const lossA = `ncols 2
nrows 2
xllcorner 500000
yllcorner 4999800
cellsize 100
NODATA_value -9999
100 110
120 -9999
`

const lossB = `ncols 2
nrows 2
xllcorner 500000
yllcorner 4999800
cellsize 100
NODATA_value -9999
115 95
110 130
`

// fixture writes two transmitters at 40 dBm and returns a config pointing
// at them. Received powers:
//
//	cellA: -60 -70 / -80 nodata
//	cellB: -75 -55 / -70 -90
func fixture(t *testing.T) (*config.RunConfig, string) {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}
	pathA := write("lossA.asc", lossA)
	pathB := write("lossB.asc", lossB)
	table := write("sectors.txt",
		"cellA;1;"+pathA+";40;hata\n"+
			"cellB;2;"+pathB+";40;cost231\n")

	cfg := &config.RunConfig{}
	cfg.SectorTable = &table
	driver := "csv"
	cfg.Driver = &driver
	out := filepath.Join(dir, "coverage.csv")
	cfg.Table = &out
	return cfg, dir
}

func TestRunCSV(t *testing.T) {
	cfg, _ := fixture(t)
	res, err := Do(context.Background(), cfg, source.ASCIIReader{})
	require.NoError(t, err)

	// Default depth 5 clamps to the two available transmitters.
	assert.Equal(t, 2, res.RankDepth)
	assert.Equal(t, 2, res.Sectors)
	assert.Equal(t, int64(4), res.RowsWritten)

	data, err := os.ReadFile(cfg.GetTable())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 4)

	// North row first, west to east, cell centers.
	assert.True(t, strings.HasPrefix(lines[0], "500050,4999950,100,'cellA',1,-60.00,'hata','cellB',2,-75.00,'cost231',"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "500150,4999950,100,'cellB',2,-55.00,'cost231','cellA',1,-70.00,'hata',"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "500050,4999850,100,'cellB',2,-70.00,'cost231','cellA',1,-80.00,'hata',"), lines[2])

	// The masked cellA reading leaves a single usable slot plus padding.
	assert.True(t, strings.HasPrefix(lines[3], "500150,4999850,100,'cellB',2,-90.00,'cost231','',0,-999.00,'',"), lines[3])
}

func TestRunOutputRaster(t *testing.T) {
	cfg, dir := fixture(t)
	out := filepath.Join(dir, "best.asc")
	cfg.OutputRaster = &out

	_, err := Do(context.Background(), cfg, source.ASCIIReader{})
	require.NoError(t, err)

	g, ext, err := source.ASCIIReader{}.ReadGrid(out)
	require.NoError(t, err)
	assert.Equal(t, grid.Extent{West: 500000, North: 5000000, CellSize: 100, Rows: 2, Cols: 2}, ext)

	want := [][]float64{{-60, -55}, {-70, -90}}
	got := [][]float64{g.Row(0), g.Row(1)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("best-server raster mismatch (-want +got):\n%s", diff)
	}
}

func TestRunReceiveThreshold(t *testing.T) {
	cfg, _ := fixture(t)
	threshold := -65.0
	cfg.RxThreshold = &threshold

	res, err := Do(context.Background(), cfg, source.ASCIIReader{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsWritten)

	data, err := os.ReadFile(cfg.GetTable())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "'cellA',1,-60.00")
	assert.Contains(t, lines[1], "'cellB',2,-55.00")
}

func TestRunDriverNone(t *testing.T) {
	cfg, _ := fixture(t)
	driver := "none"
	cfg.Driver = &driver

	res, err := Do(context.Background(), cfg, source.ASCIIReader{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.RankDepth)
	assert.Zero(t, res.RowsWritten)

	_, err = os.Stat(cfg.GetTable())
	assert.True(t, os.IsNotExist(err))
}

func readJournal(t *testing.T, path string) []runlog.Entry {
	t.Helper()
	store, err := runlog.Open(path)
	require.NoError(t, err)
	defer store.Close()
	entries, err := store.Runs(context.Background(), 10)
	require.NoError(t, err)
	return entries
}

func TestRunJournal(t *testing.T) {
	cfg, dir := fixture(t)
	logPath := filepath.Join(dir, "runs.db")
	cfg.RunLogPath = &logPath

	res, err := Do(context.Background(), cfg, source.ASCIIReader{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)

	entries := readJournal(t, logPath)
	require.Len(t, entries, 1)
	assert.Equal(t, res.RunID, entries[0].ID)
	assert.Equal(t, "ok", entries[0].Status)
	assert.Equal(t, int64(4), entries[0].Rows)
	assert.Equal(t, "file", entries[0].Strategy)
}

func TestRunJournalsFailure(t *testing.T) {
	cfg, dir := fixture(t)
	logPath := filepath.Join(dir, "runs.db")
	cfg.RunLogPath = &logPath
	missing := filepath.Join(dir, "absent.txt")
	cfg.SectorTable = &missing

	_, err := Do(context.Background(), cfg, source.ASCIIReader{})
	require.Error(t, err)

	entries := readJournal(t, logPath)
	require.Len(t, entries, 1)
	assert.Equal(t, "failed", entries[0].Status)
	assert.Contains(t, entries[0].Error, "absent.txt")
}

func TestRunRejectsExtentMismatch(t *testing.T) {
	cfg, dir := fixture(t)
	shifted := strings.Replace(lossB, "xllcorner 500000", "xllcorner 500400", 1)
	pathB := filepath.Join(dir, "lossB.asc")
	require.NoError(t, os.WriteFile(pathB, []byte(shifted), 0o644))

	_, err := Do(context.Background(), cfg, source.ASCIIReader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cellB")
}
