// Package rank folds per-transmitter received-power grids into a bounded
// top-K structure per raster point plus a running aggregate-power sum.
//
// One Aggregator holds the state for a whole run: rows*cols*K ranked
// entries, one aggregate accumulator per point, and one source grid in
// flight at a time. Ingestion is strictly sequential and order-sensitive:
// the tie-break rule is first-seen-wins, so sources must be folded in
// arrival order.
package rank

import (
	"fmt"
	"math"

	"github.com/radiomaps/powerrank/internal/grid"
)

// Entry is one ranked reading: received power in dBm and the index of the
// source that produced it.
type Entry struct {
	Power  float64
	Source int32
}

// Aggregator accumulates the K strongest readings and the total received
// power for every point of a fixed-extent grid.
type Aggregator struct {
	rows, cols, k int

	// entries holds rows*cols ranked arrays of capacity k, contiguous,
	// each invariantly sorted descending by Power with no gaps.
	entries []Entry
	// counts is the number of usable (non-sentinel) entries per point.
	counts []uint8
	// seeded marks points that have received at least one reading of any
	// kind. A sentinel reading seeds slot 0 so arrays are never left empty,
	// but does not bump counts; the first usable reading replaces it.
	seeded []bool
	// sumMW accumulates linear-domain power (mW) per point until Finalize
	// converts it to dB in place.
	sumMW []float64

	sources   int
	finalized bool
}

// New returns an aggregator for a rows x cols grid keeping the k strongest
// readings per point. k must be between 1 and 255.
func New(rows, cols, k int) (*Aggregator, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("rank: invalid grid dimensions %dx%d", rows, cols)
	}
	if k < 1 || k > 255 {
		return nil, fmt.Errorf("rank: top-K depth %d out of range 1..255", k)
	}
	n := rows * cols
	return &Aggregator{
		rows:    rows,
		cols:    cols,
		k:       k,
		entries: make([]Entry, n*k),
		counts:  make([]uint8, n),
		seeded:  make([]bool, n),
		sumMW:   make([]float64, n),
	}, nil
}

// Rows returns the grid row count.
func (a *Aggregator) Rows() int { return a.rows }

// Cols returns the grid column count.
func (a *Aggregator) Cols() int { return a.cols }

// K returns the ranked array capacity.
func (a *Aggregator) K() int { return a.k }

// Sources returns the number of grids folded in so far.
func (a *Aggregator) Sources() int { return a.sources }

// Ingest folds one source's full grid into every point's ranked array and
// aggregate. source is the arrival index of the grid, starting at zero.
func (a *Aggregator) Ingest(source int, g *grid.Grid) error {
	if a.finalized {
		return fmt.Errorf("rank: ingest after finalize (source %d)", source)
	}
	if g.Rows() != a.rows || g.Cols() != a.cols {
		return fmt.Errorf("rank: source %d grid is %dx%d, want %dx%d",
			source, g.Rows(), g.Cols(), a.rows, a.cols)
	}
	cells := g.Cells()
	for p, v := range cells {
		a.fold(p, int32(source), v)
	}
	a.sources++
	return nil
}

// fold applies one reading to one point.
func (a *Aggregator) fold(p int, source int32, v float64) {
	if grid.IsNoData(v) {
		// Sentinel readings never touch the aggregate and are ranked only
		// when they are the point's very first reading.
		if !a.seeded[p] {
			a.entries[p*a.k] = Entry{Power: grid.NoData, Source: source}
			a.seeded[p] = true
		}
		return
	}

	a.sumMW[p] += math.Pow(10, v/10)

	base := p * a.k
	n := int(a.counts[p])
	switch {
	case n == 0:
		// First usable reading: claims slot 0, replacing any sentinel
		// placeholder left by an earlier source.
		a.entries[base] = Entry{Power: v, Source: source}
		a.counts[p] = 1
	case n < a.k:
		// Append and bubble into position. Equal values stay below the
		// incumbent: earlier arrival wins.
		a.entries[base+n] = Entry{Power: v, Source: source}
		a.bubbleUp(base, n)
		a.counts[p] = uint8(n + 1)
	default:
		// Full array: only a reading strictly greater than the current
		// minimum may displace it.
		if v <= a.entries[base+a.k-1].Power {
			break
		}
		a.entries[base+a.k-1] = Entry{Power: v, Source: source}
		a.bubbleUp(base, a.k-1)
	}
	a.seeded[p] = true
}

// bubbleUp moves the entry at offset i toward the front while it strictly
// exceeds its predecessor.
func (a *Aggregator) bubbleUp(base, i int) {
	for ; i > 0; i-- {
		if a.entries[base+i].Power <= a.entries[base+i-1].Power {
			break
		}
		a.entries[base+i], a.entries[base+i-1] = a.entries[base+i-1], a.entries[base+i]
	}
}

// Finalize converts each point's aggregate from mW to dB, mapping an empty
// sum to the sentinel and clamping results below the sentinel floor. It is
// idempotent; after the first call Ingest is rejected.
func (a *Aggregator) Finalize() {
	if a.finalized {
		return
	}
	for p, mw := range a.sumMW {
		if mw == 0 {
			a.sumMW[p] = grid.NoData
			continue
		}
		db := 10 * math.Log10(mw)
		if db < grid.NoData {
			db = grid.NoData
		}
		a.sumMW[p] = db
	}
	a.finalized = true
}

// Finalized reports whether Finalize has run.
func (a *Aggregator) Finalized() bool { return a.finalized }

// Len returns the ranked array length for (row, col): the number of usable
// readings seen, capped at K, with a floor of one once any reading (even a
// sentinel) has arrived.
func (a *Aggregator) Len(row, col int) int {
	p := row*a.cols + col
	if n := int(a.counts[p]); n > 0 {
		return n
	}
	if a.seeded[p] {
		return 1
	}
	return 0
}

// Ranked returns the ranked entries for (row, col), strongest first. The
// returned slice aliases internal state and must not be modified.
func (a *Aggregator) Ranked(row, col int) []Entry {
	p := row*a.cols + col
	return a.entries[p*a.k : p*a.k+a.Len(row, col)]
}

// Best returns the strongest reading per point as a grid; points with no
// usable reading carry the sentinel.
func (a *Aggregator) Best() *grid.Grid {
	g := grid.NewFilled(a.rows, a.cols, grid.NoData)
	cells := g.Cells()
	for p := range a.counts {
		if a.counts[p] > 0 {
			cells[p] = a.entries[p*a.k].Power
		}
	}
	return g
}

// BestSource returns the arrival index of the strongest source per point;
// points with no usable reading carry the sentinel.
func (a *Aggregator) BestSource() *grid.Grid {
	g := grid.NewFilled(a.rows, a.cols, grid.NoData)
	cells := g.Cells()
	for p := range a.counts {
		if a.counts[p] > 0 {
			cells[p] = float64(a.entries[p*a.k].Source)
		}
	}
	return g
}

// AggregateDB returns the finalized aggregate power per point in dB.
// Finalize must have been called.
func (a *Aggregator) AggregateDB() *grid.Grid {
	if !a.finalized {
		panic("rank: AggregateDB before Finalize")
	}
	g := grid.New(a.rows, a.cols)
	copy(g.Cells(), a.sumMW)
	return g
}

// QualityRatio returns the per-point difference between the strongest
// reading and the aggregate power in dB (the EcN0 column of persisted
// records). Finalize must have been called.
func (a *Aggregator) QualityRatio() *grid.Grid {
	if !a.finalized {
		panic("rank: QualityRatio before Finalize")
	}
	g := grid.New(a.rows, a.cols)
	cells := g.Cells()
	for p := range cells {
		if a.counts[p] == 0 {
			cells[p] = grid.NoData
			continue
		}
		cells[p] = a.entries[p*a.k].Power - a.sumMW[p]
	}
	return g
}
