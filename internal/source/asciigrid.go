package source

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/radiomaps/powerrank/internal/grid"
)

// ASCIIReader reads ESRI ASCII grid rasters: six header lines
// (ncols, nrows, xllcorner, yllcorner, cellsize, NODATA_value) followed by
// one line of space-separated cell values per row, north row first.
type ASCIIReader struct{}

// ReadGrid implements GridReader.
func (ASCIIReader) ReadGrid(path string) (*grid.Grid, grid.Extent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, grid.Extent{}, fmt.Errorf("opening raster %s: %v", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	header := map[string]float64{}
	for len(header) < 6 {
		if !sc.Scan() {
			return nil, grid.Extent{}, fmt.Errorf("raster %s: truncated header", path)
		}
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 {
			return nil, grid.Extent{}, fmt.Errorf("raster %s: bad header line %q", path, sc.Text())
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, grid.Extent{}, fmt.Errorf("raster %s: bad header value %q", path, fields[1])
		}
		header[strings.ToLower(fields[0])] = v
	}

	for _, key := range []string{"ncols", "nrows", "xllcorner", "yllcorner", "cellsize", "nodata_value"} {
		if _, ok := header[key]; !ok {
			return nil, grid.Extent{}, fmt.Errorf("raster %s: header missing %s", path, key)
		}
	}

	rows := int(header["nrows"])
	cols := int(header["ncols"])
	if rows <= 0 || cols <= 0 {
		return nil, grid.Extent{}, fmt.Errorf("raster %s: invalid size %dx%d", path, rows, cols)
	}
	cellSize := header["cellsize"]
	ext := grid.Extent{
		West:     header["xllcorner"],
		North:    header["yllcorner"] + float64(rows)*cellSize,
		CellSize: cellSize,
		Rows:     rows,
		Cols:     cols,
	}
	noData := header["nodata_value"]

	g := grid.New(rows, cols)
	for r := 0; r < rows; r++ {
		if !sc.Scan() {
			return nil, grid.Extent{}, fmt.Errorf("raster %s: truncated at row %d of %d", path, r, rows)
		}
		fields := strings.Fields(sc.Text())
		if len(fields) != cols {
			return nil, grid.Extent{}, fmt.Errorf("raster %s: row %d has %d cells, want %d", path, r, len(fields), cols)
		}
		row := g.Row(r)
		for c, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, grid.Extent{}, fmt.Errorf("raster %s: bad cell (%d,%d) %q", path, r, c, field)
			}
			if v == noData {
				v = grid.NoData
			}
			row[c] = v
		}
	}
	if err := sc.Err(); err != nil {
		return nil, grid.Extent{}, fmt.Errorf("reading raster %s: %v", path, err)
	}
	return g, ext, nil
}
