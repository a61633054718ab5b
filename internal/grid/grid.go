// Package grid owns the dense row-major raster buffers the power-ranking
// pipeline operates on.
//
// A Grid is a single contiguous float64 allocation with row/col accessors;
// cells carry either a usable dB figure or the NoData sentinel. An Extent
// maps (row, col) to world coordinates via the linear origin+resolution
// transform used by the table and raster writers.
package grid

import (
	"fmt"
	"math"
)

// NoData is the reserved sentinel meaning "no data" / "unusable reading".
// It doubles as the floor for any dB conversion: finalized values below it
// are clamped up to it.
const NoData = -999.0

// Extent describes the georeferenced window a grid covers: the outer
// north-west corner, the square cell size, and the cell counts.
type Extent struct {
	West     float64
	North    float64
	CellSize float64
	Rows     int
	Cols     int
}

// CenterX returns the world X coordinate of the centre of column col,
// rounded to whole units. Pixel coordinates are aligned to cell centres,
// not corners.
func (e Extent) CenterX(col int) int {
	return int(math.Round(e.West+e.CellSize/2)) + col*e.Resolution()
}

// CenterY returns the world Y coordinate of the centre of row row. Rows run
// north to south, so Y decreases with increasing row index.
func (e Extent) CenterY(row int) int {
	return int(math.Round(e.North-e.CellSize/2)) - row*e.Resolution()
}

// Resolution returns the cell size rounded to whole units, as stored in the
// resolution column of persisted records.
func (e Extent) Resolution() int {
	return int(math.Round(e.CellSize))
}

// Matches reports whether two extents describe the same window. Corner
// coordinates are compared with a half-cell tolerance so that rasters
// produced by different tools with sub-metre origin jitter still line up.
func (e Extent) Matches(o Extent) bool {
	if e.Rows != o.Rows || e.Cols != o.Cols {
		return false
	}
	tol := e.CellSize / 2
	if tol <= 0 {
		tol = 0.5
	}
	return math.Abs(e.West-o.West) < tol &&
		math.Abs(e.North-o.North) < tol &&
		math.Abs(e.CellSize-o.CellSize) < tol
}

func (e Extent) String() string {
	return fmt.Sprintf("%dx%d @%g (W %g, N %g)", e.Rows, e.Cols, e.CellSize, e.West, e.North)
}

// Grid is a dense row-major scalar raster.
type Grid struct {
	rows, cols int
	cells      []float64
}

// New allocates a rows x cols grid with every cell zeroed.
func New(rows, cols int) *Grid {
	if rows <= 0 || cols <= 0 {
		panic(fmt.Sprintf("grid: invalid dimensions %dx%d", rows, cols))
	}
	return &Grid{rows: rows, cols: cols, cells: make([]float64, rows*cols)}
}

// NewFilled allocates a rows x cols grid with every cell set to v.
func NewFilled(rows, cols int, v float64) *Grid {
	g := New(rows, cols)
	for i := range g.cells {
		g.cells[i] = v
	}
	return g
}

// Rows returns the row count.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the column count.
func (g *Grid) Cols() int { return g.cols }

// Index returns the flat cell index for (row, col).
func (g *Grid) Index(row, col int) int { return row*g.cols + col }

// At returns the value at (row, col).
func (g *Grid) At(row, col int) float64 { return g.cells[row*g.cols+col] }

// Set stores v at (row, col).
func (g *Grid) Set(row, col int, v float64) { g.cells[row*g.cols+col] = v }

// Cells exposes the backing slice, row-major. Callers must not resize it.
func (g *Grid) Cells() []float64 { return g.cells }

// Row returns the backing slice for one row.
func (g *Grid) Row(row int) []float64 {
	start := row * g.cols
	return g.cells[start : start+g.cols]
}

// IsNoData reports whether v is at or below the NoData sentinel.
func IsNoData(v float64) bool { return v <= NoData }
