// Package lte derives per-point LTE downlink quality metrics from the
// best-server and aggregate received-power grids.
//
// The transform is deterministic and stateless: a corrected signal ratio is
// quantised and looked up in a monotonic ascending CINR threshold table to
// yield the tabulated spectral efficiency, which in turn converts to
// throughput via the downlink overhead budget.
package lte

import (
	"fmt"
	"math"

	"github.com/radiomaps/powerrank/internal/grid"
)

// Metric selects which scalar Derive produces per point.
type Metric int

const (
	RSRP         Metric = iota // reference signal received power [dBm]
	RSSI                       // received signal strength incl. noise [dBm]
	RSRQ                       // received signal quality [dB]
	CINR                       // interference-free carrier-to-noise [dB]
	Interference               // interfering power [dBm]
	SpectralEff                // max spectral efficiency [bit/s/Hz]
	Throughput                 // max throughput [Mbit/s]
)

func (m Metric) String() string {
	switch m {
	case RSRP:
		return "rsrp"
	case RSSI:
		return "rssi"
	case RSRQ:
		return "rsrq"
	case CINR:
		return "cinr"
	case Interference:
		return "interfere"
	case SpectralEff:
		return "maxspecteff"
	case Throughput:
		return "maxthrput"
	}
	return fmt.Sprintf("metric(%d)", int(m))
}

const (
	noiseDBmPerRE       = -132.07 // thermal noise for one 15 kHz resource element
	noiseFigureDB       = 7.0
	interferenceMargin  = 3.0
	tableFactor         = 0.0001
	defaultBandwidthMHz = 10.0
	defaultRBs          = 50
	defaultPDCCH        = 2
)

// efficiencyTable holds max spectral efficiency [bit/s/Hz], scaled by
// 1/tableFactor, indexed in step with cinrTable.
var efficiencyTable = [...]int{
	1523, 2344, 3770,
	6016, 8770, 11758,
	14766, 19141, 24063,
	27305, 33223, 39023,
	45234, 51152, 55547,
}

// cinrTable holds ascending CINR thresholds [dB] for a Gaussian channel,
// scaled by 1/tableFactor.
var cinrTable = [...]int{
	-70000, -50714, -31429,
	-12143, 7143, 26429,
	45714, 65000, 84286,
	103571, 122857, 142143,
	161429, 180714, 200000,
}

// Config carries the LTE system parameters forwarded from the run
// configuration. The zero value is not usable; call Normalize or construct
// explicitly.
type Config struct {
	BandwidthMHz float64
	PDCCH        int  // physical downlink control channel symbols, 1..4
	Antennas     int  // transmit antennas, 1 or 2 for the throughput tables
	ExtendedCP   bool // extended cyclic prefix (default normal)
	Metric       Metric
}

// ResourceBlocks maps an LTE channel bandwidth to its resource block count.
// A non-LTE bandwidth falls back to the default 10 MHz / 50 RB system, and
// the corrected bandwidth is returned alongside.
func ResourceBlocks(bwMHz float64) (rb int, effectiveBw float64) {
	switch int(bwMHz * 10) {
	case 14:
		return 6, bwMHz
	case 30:
		return 15, bwMHz
	case 50:
		return 25, bwMHz
	case 100:
		return 50, bwMHz
	case 150:
		return 75, bwMHz
	case 200:
		return 100, bwMHz
	}
	return defaultRBs, defaultBandwidthMHz
}

// overheadTables hold the PDSCH overhead for applications per "LTE in
// Bullets" Table 61, scaled by 1000 and subtracted from 1000. Rows are
// PDCCH symbol count 1..4, columns the six LTE bandwidths ascending.
// 1000 marks invalid combinations, which fall back to the 10 MHz default.
var (
	overhead1TxNormal   = [4][6]int{{1000, 870, 879, 886, 888, 890}, {765, 799, 808, 815, 817, 818}, {694, 728, 737, 743, 746, 747}, {623, 1000, 1000, 1000, 1000, 1000}}
	overhead1TxExtended = [4][6]int{{1000, 849, 860, 867, 870, 871}, {728, 766, 776, 784, 787, 788}, {644, 683, 693, 701, 703, 705}, {575, 1000, 1000, 1000, 1000, 1000}}
	overhead2TxNormal   = [4][6]int{{1000, 835, 844, 851, 853, 854}, {731, 764, 773, 779, 781, 782}, {660, 692, 701, 708, 710, 711}, {588, 1000, 1000, 1000, 1000, 1000}}
	overhead2TxExtended = [4][6]int{{1000, 809, 819, 826, 828, 830}, {689, 726, 735, 743, 745, 746}, {606, 642, 652, 659, 662, 663}, {550, 1000, 1000, 1000, 1000, 1000}}
)

// overheadFraction returns the downlink overhead fraction for the given
// (normalised) system parameters.
func overheadFraction(bwMHz float64, pdcch, antennas int, extendedCP bool) float64 {
	var bwIdx int
	switch int(bwMHz * 10) {
	case 14:
		bwIdx = 0
	case 30:
		bwIdx = 1
	case 50:
		bwIdx = 2
	case 100:
		bwIdx = 3
	case 150:
		bwIdx = 4
	case 200:
		bwIdx = 5
	default:
		bwIdx = 2
	}

	var tab *[4][6]int
	if antennas == 2 {
		tab = &overhead2TxNormal
		if extendedCP {
			tab = &overhead2TxExtended
		}
	} else {
		tab = &overhead1TxNormal
		if extendedCP {
			tab = &overhead1TxExtended
		}
	}

	v := tab[pdcch-1][bwIdx]
	if v == 1000 {
		v = 879
	}
	return float64(1000-v) / 1000
}

// Normalize clamps out-of-range system parameters to their defaults, the
// way the planning tool treats bad inputs: corrected, not rejected.
func (c Config) Normalize() Config {
	if c.PDCCH < 1 || c.PDCCH > 4 {
		c.PDCCH = defaultPDCCH
	}
	if c.Antennas != 1 && c.Antennas != 2 {
		c.Antennas = 1
	}
	// PDCCH=4 is only defined for the 1.4 MHz channel.
	if c.PDCCH == 4 && int(c.BandwidthMHz*10) != 14 {
		c.BandwidthMHz = 1.4
	}
	return c
}

// Derive computes one scalar per point from the best-server grid and the
// aggregate power grid. Both grids must share dimensions; the result is a
// new grid of the same shape. Points are not threshold-masked here; that is
// the output selector's job.
func Derive(best, sum *grid.Grid, cfg Config) (*grid.Grid, error) {
	if best.Rows() != sum.Rows() || best.Cols() != sum.Cols() {
		return nil, fmt.Errorf("lte: best grid %dx%d and aggregate grid %dx%d differ",
			best.Rows(), best.Cols(), sum.Rows(), sum.Cols())
	}
	cfg = cfg.Normalize()

	rb, bw := ResourceBlocks(cfg.BandwidthMHz)
	overhead := overheadFraction(bw, cfg.PDCCH, cfg.Antennas, cfg.ExtendedCP)
	log12RB := 10 * math.Log10(float64(rb)*12)

	// Noise over the whole bandwidth plus receiver noise figure, in mW.
	noiseBwMW := 12 * float64(rb) * math.Pow(10, 0.1*(noiseDBmPerRE+noiseFigureDB))

	// Spectral efficiency to throughput [Mbit/s], deducting 10%
	// retransmission and 5% additional overhead.
	effToThroughput := float64(rb) * 180e3 * (1 - overhead) / (1e6 * 1.10 * 1.05)

	out := grid.New(best.Rows(), best.Cols())
	bc, sc, oc := best.Cells(), sum.Cells(), out.Cells()
	for p := range oc {
		oc[p] = derivePoint(bc[p], sc[p], cfg.Metric, log12RB, noiseBwMW, effToThroughput)
	}
	return out, nil
}

func derivePoint(best, sum float64, metric Metric, log12RB, noiseBwMW, effToThroughput float64) float64 {
	rsrp := best - log12RB
	rssi := 10 * math.Log10(math.Pow(10, 0.1*sum)+noiseBwMW)
	snr := best - 10*math.Log10(noiseBwMW)

	switch metric {
	case RSRP:
		if rsrp < -140 {
			return -140
		}
		if rsrp > -44 {
			return -44
		}
		return rsrp

	case RSSI:
		return rssi

	case RSRQ:
		// RSRQ = 10 log10(nRB) + RSRP - RSSI, clamped to -19.5..-3 dB.
		rb := math.Pow(10, log12RB/10) / 12
		q := 10*math.Log10(rb) + rsrp - rssi
		if q < -19.5 {
			return -19.5
		}
		if q > -3 {
			return -3
		}
		return q

	case CINR:
		return snr

	case Interference:
		interfMW := math.Pow(10, 0.1*sum) - math.Pow(10, 0.1*best)
		if interfMW <= 0 || math.Abs(best-sum) < 1e-4 {
			return grid.NoData
		}
		db := 10 * math.Log10(interfMW)
		if db < grid.NoData {
			return grid.NoData
		}
		return db

	case SpectralEff, Throughput:
		eff := efficiencyFor(snr - interferenceMargin)
		if metric == Throughput {
			eff *= effToThroughput
		}
		return eff
	}
	return rsrp
}

// efficiencyFor quantises a corrected CINR [dB] and returns the tabulated
// max spectral efficiency for the highest threshold at or below it, or zero
// below the first threshold.
func efficiencyFor(cinrDB float64) float64 {
	quantised := int(math.Floor(cinrDB / tableFactor))
	k := -1
	for k+1 < len(cinrTable) && quantised >= cinrTable[k+1] {
		k++
	}
	if k < 0 {
		return 0
	}
	return float64(efficiencyTable[k]) * tableFactor
}
