package raster

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/radiomaps/powerrank/internal/grid"
)

// Summary describes the eligible (non-NoData) cells of an output grid.
type Summary struct {
	Cells    int // total cells
	Eligible int // cells carrying data
	Min      float64
	Max      float64
	Mean     float64
}

// Summarize computes summary statistics over the eligible cells of g.
// With no eligible cells, Min/Max/Mean are zero.
func Summarize(g *grid.Grid) Summary {
	eligible := make([]float64, 0, len(g.Cells()))
	for _, v := range g.Cells() {
		if !grid.IsNoData(v) {
			eligible = append(eligible, v)
		}
	}
	s := Summary{Cells: len(g.Cells()), Eligible: len(eligible)}
	if len(eligible) == 0 {
		return s
	}
	s.Min = floats.Min(eligible)
	s.Max = floats.Max(eligible)
	s.Mean = stat.Mean(eligible, nil)
	return s
}

func (s Summary) String() string {
	if s.Eligible == 0 {
		return fmt.Sprintf("%d cells, none eligible", s.Cells)
	}
	return fmt.Sprintf("%d/%d cells eligible, min %.2f, max %.2f, mean %.2f",
		s.Eligible, s.Cells, s.Min, s.Max, s.Mean)
}
