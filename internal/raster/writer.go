package raster

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/radiomaps/powerrank/internal/grid"
)

// RowWriter accepts one fully computed output row at a time, row-major,
// honouring the grid.NoData marker. Implementations decide on-disk format.
type RowWriter interface {
	WriteRow(vals []float64) error
}

// WriteGrid streams a grid through a RowWriter, north row first.
func WriteGrid(w RowWriter, g *grid.Grid) error {
	for r := 0; r < g.Rows(); r++ {
		if err := w.WriteRow(g.Row(r)); err != nil {
			return fmt.Errorf("raster: writing row %d: %w", r, err)
		}
	}
	return nil
}

// ASCIIWriter writes an ESRI ASCII grid: a six-line header followed by one
// line of space-separated cell values per row. NoData cells are written as
// the header's NODATA_value.
type ASCIIWriter struct {
	bw        *bufio.Writer
	ext       grid.Extent
	wroteHead bool
	rows      int
}

// NewASCIIWriter wraps w for the given extent. The header is emitted ahead
// of the first row.
func NewASCIIWriter(w io.Writer, ext grid.Extent) *ASCIIWriter {
	return &ASCIIWriter{bw: bufio.NewWriter(w), ext: ext}
}

// WriteRow writes one row of cell values.
func (a *ASCIIWriter) WriteRow(vals []float64) error {
	if !a.wroteHead {
		if err := a.writeHeader(); err != nil {
			return err
		}
		a.wroteHead = true
	}
	if len(vals) != a.ext.Cols {
		return fmt.Errorf("row has %d cells, extent has %d columns", len(vals), a.ext.Cols)
	}
	if a.rows >= a.ext.Rows {
		return fmt.Errorf("row %d past extent of %d rows", a.rows, a.ext.Rows)
	}
	for i, v := range vals {
		if i > 0 {
			if err := a.bw.WriteByte(' '); err != nil {
				return err
			}
		}
		if grid.IsNoData(v) {
			v = grid.NoData
		}
		if _, err := a.bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64)); err != nil {
			return err
		}
	}
	a.rows++
	return a.bw.WriteByte('\n')
}

func (a *ASCIIWriter) writeHeader() error {
	south := a.ext.North - float64(a.ext.Rows)*a.ext.CellSize
	_, err := fmt.Fprintf(a.bw,
		"ncols %d\nnrows %d\nxllcorner %g\nyllcorner %g\ncellsize %g\nNODATA_value %g\n",
		a.ext.Cols, a.ext.Rows, a.ext.West, south, a.ext.CellSize, float64(grid.NoData))
	return err
}

// Flush completes the raster. Writing fewer rows than the extent declares
// is an error; the sink must receive a full window.
func (a *ASCIIWriter) Flush() error {
	if a.rows != a.ext.Rows {
		return fmt.Errorf("raster has %d rows, extent declares %d", a.rows, a.ext.Rows)
	}
	return a.bw.Flush()
}
