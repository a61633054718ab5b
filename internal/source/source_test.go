package source

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/radiomaps/powerrank/internal/grid"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTable(t *testing.T) {
	table := "cellA;101;lossA.asc;43.0;hata;urban;1800\n" +
		"\n" +
		"cellB;102;lossB.asc;40.5;cost231\n"
	path := writeFile(t, t.TempDir(), "sectors.txt", table)

	sectors, err := LoadTable(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(sectors) != 2 {
		t.Fatalf("got %d sectors, want 2", len(sectors))
	}

	want := Sector{Name: "cellA", AntennaID: 101, RasterPath: "lossA.asc", TxPowerDBm: 43.0, Model: "hata_urban_1800"}
	if sectors[0] != want {
		t.Errorf("sector 0 = %+v, want %+v", sectors[0], want)
	}
	if sectors[1].Model != "cost231" {
		t.Errorf("sector 1 model = %q", sectors[1].Model)
	}
}

func TestLoadTableTrailingSeparator(t *testing.T) {
	path := writeFile(t, t.TempDir(), "sectors.txt", "cellA;1;a.asc;43;hata;\n")
	sectors, err := LoadTable(path)
	if err != nil {
		t.Fatal(err)
	}
	if sectors[0].Model != "hata" {
		t.Errorf("model = %q, want hata", sectors[0].Model)
	}
}

func TestLoadTableErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadTable(filepath.Join(dir, "missing.txt")); !errors.Is(err, ErrRead) {
		t.Errorf("missing file: err = %v, want ErrRead", err)
	}

	short := writeFile(t, dir, "short.txt", "cellA;1;a.asc;43\n")
	if _, err := LoadTable(short); !errors.Is(err, ErrRead) {
		t.Errorf("short line: err = %v, want ErrRead", err)
	}

	empty := writeFile(t, dir, "empty.txt", "\n\n")
	if _, err := LoadTable(empty); !errors.Is(err, ErrRead) {
		t.Errorf("empty table: err = %v, want ErrRead", err)
	}

	badPower := writeFile(t, dir, "bad.txt", "cellA;1;a.asc;forty;hata\n")
	if _, err := LoadTable(badPower); !errors.Is(err, ErrRead) {
		t.Errorf("bad power: err = %v, want ErrRead", err)
	}
}

const asc2x3 = `ncols 3
nrows 2
xllcorner 1000
yllcorner 1900
cellsize 50
NODATA_value -9999
110 115.5 -9999
120 125 130
`

func TestReadASCIIGrid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "loss.asc", asc2x3)

	g, ext, err := ASCIIReader{}.ReadGrid(path)
	if err != nil {
		t.Fatal(err)
	}

	wantExt := grid.Extent{West: 1000, North: 2000, CellSize: 50, Rows: 2, Cols: 3}
	if ext != wantExt {
		t.Errorf("extent = %+v, want %+v", ext, wantExt)
	}
	if got := g.At(0, 1); got != 115.5 {
		t.Errorf("At(0,1) = %v, want 115.5", got)
	}
	if !grid.IsNoData(g.At(0, 2)) {
		t.Errorf("At(0,2) = %v, want NoData", g.At(0, 2))
	}
	if got := g.At(1, 2); got != 130 {
		t.Errorf("At(1,2) = %v, want 130", got)
	}
}

func TestReadASCIIGridMalformed(t *testing.T) {
	dir := t.TempDir()

	truncated := writeFile(t, dir, "trunc.asc", "ncols 3\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 10\nNODATA_value -9999\n1 2 3\n")
	if _, _, err := (ASCIIReader{}).ReadGrid(truncated); err == nil {
		t.Error("expected error for truncated raster")
	}

	ragged := writeFile(t, dir, "ragged.asc", "ncols 3\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 10\nNODATA_value -9999\n1 2\n")
	if _, _, err := (ASCIIReader{}).ReadGrid(ragged); err == nil {
		t.Error("expected error for ragged row")
	}
}

func TestReceivedPower(t *testing.T) {
	path := writeFile(t, t.TempDir(), "loss.asc", asc2x3)
	sec := Sector{Name: "cellA", AntennaID: 1, RasterPath: path, TxPowerDBm: 43, Model: "hata"}
	want := grid.Extent{West: 1000, North: 2000, CellSize: 50, Rows: 2, Cols: 3}

	g, err := ReceivedPower(ASCIIReader{}, sec, want)
	if err != nil {
		t.Fatal(err)
	}
	if got := g.At(0, 0); got != 43-110 {
		t.Errorf("At(0,0) = %v, want %v", got, 43-110)
	}
	if !grid.IsNoData(g.At(0, 2)) {
		t.Errorf("no-data loss cell should stay sentinel, got %v", g.At(0, 2))
	}
}

func TestReceivedPowerExtentMismatch(t *testing.T) {
	path := writeFile(t, t.TempDir(), "loss.asc", asc2x3)
	sec := Sector{Name: "cellA", RasterPath: path, TxPowerDBm: 43}
	want := grid.Extent{West: 1000, North: 2000, CellSize: 50, Rows: 4, Cols: 3}

	_, err := ReceivedPower(ASCIIReader{}, sec, want)
	if !errors.Is(err, ErrRead) {
		t.Fatalf("err = %v, want ErrRead", err)
	}
	if !strings.Contains(err.Error(), "cellA") {
		t.Errorf("error should name the sector: %v", err)
	}
}
