// Package raster selects which derived grid becomes the output raster,
// applies the receive-threshold eligibility mask, and writes grids to
// row-oriented raster sinks.
package raster

import (
	"fmt"

	"github.com/radiomaps/powerrank/internal/grid"
	"github.com/radiomaps/powerrank/internal/lte"
)

// Mode names one output raster content selection.
type Mode string

const (
	ModeRSSMax      Mode = "rss-max"
	ModeCoverage    Mode = "coverage"
	ModeRSSSum      Mode = "rss-sum"
	ModeRSSMaxIx    Mode = "rss-maxix"
	ModeLTERSSI     Mode = "lte-rssi"
	ModeLTERSRP     Mode = "lte-rsrp"
	ModeLTERSRQ     Mode = "lte-rsrq"
	ModeLTECINR     Mode = "lte-cinr"
	ModeLTESpectEff Mode = "lte-maxspecteff"
	ModeLTEThrput   Mode = "lte-maxthrput"
	ModeLTEInterf   Mode = "lte-interfere"
)

// Modes lists every accepted mode, basic first, in option order.
var Modes = []Mode{
	ModeRSSMax, ModeCoverage, ModeRSSSum, ModeRSSMaxIx,
	ModeLTERSSI, ModeLTERSRP, ModeLTERSRQ, ModeLTECINR,
	ModeLTESpectEff, ModeLTEThrput, ModeLTEInterf,
}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("raster: unsupported output mode %q", s)
}

// IsLTE reports whether the mode is derived by the LTE quality model.
func (m Mode) IsLTE() bool {
	switch m {
	case ModeLTERSSI, ModeLTERSRP, ModeLTERSRQ, ModeLTECINR,
		ModeLTESpectEff, ModeLTEThrput, ModeLTEInterf:
		return true
	}
	return false
}

// LTEMetric maps an lte-* mode to the quality model output selector.
func (m Mode) LTEMetric() (lte.Metric, error) {
	switch m {
	case ModeLTERSRP:
		return lte.RSRP, nil
	case ModeLTERSSI:
		return lte.RSSI, nil
	case ModeLTERSRQ:
		return lte.RSRQ, nil
	case ModeLTECINR:
		return lte.CINR, nil
	case ModeLTEInterf:
		return lte.Interference, nil
	case ModeLTESpectEff:
		return lte.SpectralEff, nil
	case ModeLTEThrput:
		return lte.Throughput, nil
	}
	return 0, fmt.Errorf("raster: mode %q has no LTE metric", m)
}

// coverageValue is what every eligible point is recoded to in coverage mode.
const coverageValue = 1.0

// Selector chooses the active output grid and applies the eligibility rule:
// any point whose best power is at or below RxThreshold is excluded from
// output, whatever the selected mode.
type Selector struct {
	Mode        Mode
	RxThreshold float64
	LTE         lte.Config
}

// Select builds the output raster from the finalized grids. best and sum
// are the best-server and aggregate power grids; bestSource carries the
// strongest source index per point (used by rss-maxix only).
func (s Selector) Select(best, sum, bestSource *grid.Grid) (*grid.Grid, error) {
	var active *grid.Grid
	switch {
	case s.Mode == ModeRSSMax || s.Mode == ModeCoverage:
		active = best
	case s.Mode == ModeRSSSum:
		active = sum
	case s.Mode == ModeRSSMaxIx:
		active = bestSource
	case s.Mode.IsLTE():
		metric, err := s.Mode.LTEMetric()
		if err != nil {
			return nil, err
		}
		cfg := s.LTE
		cfg.Metric = metric
		active, err = lte.Derive(best, sum, cfg)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("raster: unsupported output mode %q", s.Mode)
	}

	out := grid.New(best.Rows(), best.Cols())
	oc, ac, bc := out.Cells(), active.Cells(), best.Cells()
	for p := range oc {
		switch {
		case bc[p] <= s.RxThreshold || grid.IsNoData(ac[p]):
			oc[p] = grid.NoData
		case s.Mode == ModeCoverage:
			oc[p] = coverageValue
		default:
			oc[p] = ac[p]
		}
	}
	return out, nil
}
