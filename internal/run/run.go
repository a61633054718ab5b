// Package run drives one complete ranking pass: load the sector table,
// ingest every path-loss raster into the aggregator, derive the requested
// output raster, and persist the per-point records.
package run

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/radiomaps/powerrank/internal/config"
	"github.com/radiomaps/powerrank/internal/export"
	"github.com/radiomaps/powerrank/internal/grid"
	"github.com/radiomaps/powerrank/internal/lte"
	"github.com/radiomaps/powerrank/internal/monitoring"
	"github.com/radiomaps/powerrank/internal/rank"
	"github.com/radiomaps/powerrank/internal/raster"
	"github.com/radiomaps/powerrank/internal/runlog"
	"github.com/radiomaps/powerrank/internal/source"
)

// Result summarizes a completed run.
type Result struct {
	RunID       string
	Mode        raster.Mode
	Sectors     int
	RankDepth   int
	Strategy    export.Strategy
	RowsWritten int64
	Summary     raster.Summary
	Duration    time.Duration
}

// Do executes one run described by cfg, reading rasters through reader.
// When a run log path is configured, the outcome is journaled whether the
// run succeeded or failed.
func Do(ctx context.Context, cfg *config.RunConfig, reader source.GridReader) (*Result, error) {
	started := time.Now()
	res, err := execute(ctx, cfg, reader)
	finished := time.Now()

	if path := cfg.GetRunLogPath(); path != "" {
		entry := runlog.Entry{
			StartedAt:   started,
			FinishedAt:  finished,
			SectorTable: cfg.GetSectorTable(),
			Mode:        cfg.GetMode(),
			Status:      "ok",
		}
		if res != nil {
			entry.Sectors = res.Sectors
			entry.RankDepth = res.RankDepth
			entry.Strategy = string(res.Strategy)
			entry.Rows = res.RowsWritten
		}
		if err != nil {
			entry.Status = "failed"
			entry.Error = err.Error()
		}
		id, logErr := journal(ctx, path, entry)
		if logErr != nil {
			monitoring.Logf("run log: %v", logErr)
		} else if res != nil {
			res.RunID = id
		}
	}

	if res != nil {
		res.Duration = finished.Sub(started)
	}
	return res, err
}

func journal(ctx context.Context, path string, entry runlog.Entry) (string, error) {
	store, err := runlog.Open(path)
	if err != nil {
		return "", err
	}
	defer store.Close()
	return store.Record(ctx, entry)
}

func execute(ctx context.Context, cfg *config.RunConfig, reader source.GridReader) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, err := raster.ParseMode(cfg.GetMode())
	if err != nil {
		return nil, err
	}

	sectors, err := source.LoadTable(cfg.GetSectorTable())
	if err != nil {
		return nil, err
	}

	driver := cfg.GetDriver()
	k := cfg.GetRankDepth()
	if driver == "none" {
		// Without persistence only the best server is consumed.
		k = 1
	}
	if k > len(sectors) {
		monitoring.Logf("rank depth %d exceeds %d transmitters, clamping", k, len(sectors))
		k = len(sectors)
	}

	// The first raster fixes the extent every other raster must match.
	_, ext, err := reader.ReadGrid(sectors[0].RasterPath)
	if err != nil {
		return nil, err
	}
	monitoring.Debugf("region %s, %d transmitters, rank depth %d", ext, len(sectors), k)

	agg, err := rank.New(ext.Rows, ext.Cols, k)
	if err != nil {
		return nil, err
	}
	for i, sec := range sectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		monitoring.Debugf("ingesting transmitter %d/%d: %s", i+1, len(sectors), sec.Name)
		g, err := source.ReceivedPower(reader, sec, ext)
		if err != nil {
			return nil, err
		}
		if err := agg.Ingest(i, g); err != nil {
			return nil, err
		}
	}
	agg.Finalize()

	lteCfg := lte.Config{
		BandwidthMHz: cfg.GetBandwidthMHz(),
		PDCCH:        cfg.GetPDCCHSymbols(),
		Antennas:     cfg.GetAntennas(),
		ExtendedCP:   cfg.GetExtendedCP(),
	}
	sel := raster.Selector{Mode: mode, RxThreshold: cfg.GetRxThreshold(), LTE: lteCfg}

	best := agg.Best()
	sum := agg.AggregateDB()
	out, err := sel.Select(best, sum, agg.BestSource())
	if err != nil {
		return nil, err
	}

	summary := raster.Summarize(out)
	monitoring.Logf("%s raster: %s", mode, summary)

	if path := cfg.GetOutputRaster(); path != "" {
		if err := writeRaster(path, ext, out); err != nil {
			return nil, err
		}
	}

	res := &Result{
		Mode:      mode,
		Sectors:   len(sectors),
		RankDepth: k,
		Summary:   summary,
	}

	if driver == "none" {
		return res, nil
	}

	eng, err := export.Open(export.Options{
		Driver:     driver,
		DSN:        cfg.GetDSN(),
		Table:      cfg.GetTable(),
		PacketSize: cfg.GetPacketSize(),
		Overwrite:  cfg.GetOverwrite(),
		K:          k,
	})
	if err != nil {
		return nil, err
	}
	defer eng.Close()

	src := recordSource(agg, sectors, ext, best, cfg.GetRxThreshold(), cfg.GetSkipNoData())
	rows, err := eng.Run(ctx, src)
	if err != nil {
		return nil, err
	}
	monitoring.Logf("wrote %d rows to %s via %s strategy", rows, cfg.GetTable(), eng.Strategy())

	res.Strategy = eng.Strategy()
	res.RowsWritten = rows
	return res, nil
}

func writeRaster(path string, ext grid.Extent, g *grid.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output raster %s: %v", path, err)
	}
	defer f.Close()

	w := raster.NewASCIIWriter(f, ext)
	if err := raster.WriteGrid(w, g); err != nil {
		return fmt.Errorf("writing output raster %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing output raster %s: %w", path, err)
	}
	return f.Close()
}

// recordSource walks the grid north to south and emits one record per
// eligible point. A point with no readings at all is emitted only when
// skipNoData is off; a configured receive threshold additionally drops
// points whose best power does not clear it.
func recordSource(agg *rank.Aggregator, sectors []source.Sector, ext grid.Extent,
	best *grid.Grid, threshold float64, skipNoData bool) export.RecordSource {
	return func(emit func(export.Record) error) error {
		k := agg.K()
		quality := agg.QualityRatio()
		for r := 0; r < agg.Rows(); r++ {
			for c := 0; c < agg.Cols(); c++ {
				n := agg.Len(r, c)
				if n == 0 && skipNoData {
					continue
				}
				if threshold > grid.NoData && best.At(r, c) <= threshold {
					continue
				}

				rec := export.Record{
					X:          ext.CenterX(c),
					Y:          ext.CenterY(r),
					Resolution: ext.Resolution(),
					Slots:      make([]export.Slot, k),
					Quality:    quality.At(r, c),
				}
				for i, e := range agg.Ranked(r, c) {
					if grid.IsNoData(e.Power) {
						rec.Slots[i] = placeholderSlot()
						continue
					}
					sec := sectors[e.Source]
					rec.Slots[i] = export.Slot{
						Name:      sec.Name,
						AntennaID: sec.AntennaID,
						PowerDBm:  e.Power,
						Model:     sec.Model,
					}
				}
				for i := n; i < k; i++ {
					rec.Slots[i] = placeholderSlot()
				}
				if err := emit(rec); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

func placeholderSlot() export.Slot {
	return export.Slot{PowerDBm: grid.NoData}
}
