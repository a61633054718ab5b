// Command powerrank ranks the strongest transmitters per grid point from
// a set of path-loss rasters and persists the result to a database table
// or a delimited file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/radiomaps/powerrank/internal/config"
	"github.com/radiomaps/powerrank/internal/monitoring"
	"github.com/radiomaps/powerrank/internal/run"
	"github.com/radiomaps/powerrank/internal/runlog"
	"github.com/radiomaps/powerrank/internal/source"
)

func listRuns(path string, limit int) {
	store, err := runlog.Open(path)
	if err != nil {
		log.Fatalf("run log: %v", err)
	}
	defer store.Close()

	entries, err := store.Runs(context.Background(), limit)
	if err != nil {
		log.Fatalf("run log: %v", err)
	}
	for _, e := range entries {
		fmt.Printf("%s  %s  %-6s  depth=%d rows=%d  %s\n",
			e.StartedAt.Format("2006-01-02 15:04:05"), e.ID, e.Status, e.RankDepth, e.Rows, e.Mode)
		if e.Error != "" {
			fmt.Printf("    %s\n", e.Error)
		}
	}
}

func main() {
	var (
		configPath string
		sectors    string
		depth      int
		threshold  float64
		keepEmpty  bool
		mode       string
		rasterOut  string
		bandwidth  float64
		pdcch      int
		antennas   int
		extendedCP bool
		driver     string
		dsn        string
		table      string
		packet     int
		overwrite  bool
		runLogPath string
		showRuns   int
		verbose    bool
	)

	flag.StringVar(&configPath, "config", "", "path to JSON run config; flags override file values")
	flag.StringVar(&sectors, "sectors", "", "path to sector table file")
	flag.IntVar(&depth, "depth", 5, "ranked transmitters per point (1-255)")
	flag.Float64Var(&threshold, "threshold", -999, "receive threshold in dBm; weaker points are excluded")
	flag.BoolVar(&keepEmpty, "keep-empty", false, "persist points with no usable reading")
	flag.StringVar(&mode, "mode", "rss-max", "output raster mode")
	flag.StringVar(&rasterOut, "raster", "", "optional output raster path (ESRI ASCII)")
	flag.Float64Var(&bandwidth, "bandwidth", 5, "LTE channel bandwidth in MHz")
	flag.IntVar(&pdcch, "pdcch", 2, "LTE control channel symbols (1-3)")
	flag.IntVar(&antennas, "antennas", 1, "LTE transmit antennas (1, 2 or 4)")
	flag.BoolVar(&extendedCP, "extended-cp", false, "LTE extended cyclic prefix")
	flag.StringVar(&driver, "driver", "csv", "persistence driver: sqlite, pg, csv or none")
	flag.StringVar(&dsn, "dsn", "", "database path or connection string")
	flag.StringVar(&table, "table", "", "destination table, or output file path for csv")
	flag.IntVar(&packet, "packet", 20, "rows per insert (1-98), or 99 for staged bulk load")
	flag.BoolVar(&overwrite, "overwrite", false, "replace an existing table or output file")
	flag.StringVar(&runLogPath, "runlog", "", "optional sqlite run journal path")
	flag.IntVar(&showRuns, "list-runs", 0, "print the N most recent journal entries and exit")
	flag.BoolVar(&verbose, "verbose", false, "log per-transmitter progress")
	flag.Parse()

	if showRuns > 0 {
		if runLogPath == "" {
			log.Fatalf("-list-runs needs -runlog")
		}
		listRuns(runLogPath, showRuns)
		return
	}

	cfg := &config.RunConfig{}
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	}

	// Flags given on the command line win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "sectors":
			cfg.SectorTable = &sectors
		case "depth":
			cfg.RankDepth = &depth
		case "threshold":
			cfg.RxThreshold = &threshold
		case "keep-empty":
			skip := !keepEmpty
			cfg.SkipNoData = &skip
		case "mode":
			cfg.Mode = &mode
		case "raster":
			cfg.OutputRaster = &rasterOut
		case "bandwidth":
			cfg.BandwidthMHz = &bandwidth
		case "pdcch":
			cfg.PDCCHSymbols = &pdcch
		case "antennas":
			cfg.Antennas = &antennas
		case "extended-cp":
			cfg.ExtendedCP = &extendedCP
		case "driver":
			cfg.Driver = &driver
		case "dsn":
			cfg.DSN = &dsn
		case "table":
			cfg.Table = &table
		case "packet":
			cfg.PacketSize = &packet
		case "overwrite":
			cfg.Overwrite = &overwrite
		case "runlog":
			cfg.RunLogPath = &runLogPath
		}
	})

	if cfg.GetSectorTable() == "" {
		log.Fatalf("a sector table is required (-sectors or config file)")
	}
	if d := cfg.GetDriver(); d != "none" && cfg.GetTable() == "" {
		log.Fatalf("driver %s needs a destination (-table)", d)
	}

	monitoring.Verbose = verbose

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := run.Do(ctx, cfg, source.ASCIIReader{})
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}

	fmt.Printf("ranked %d transmitters at depth %d in %s\n", res.Sectors, res.RankDepth, res.Duration.Round(time.Millisecond))
	fmt.Printf("%s raster: %s\n", res.Mode, res.Summary)
	if res.RowsWritten > 0 {
		fmt.Printf("wrote %d rows (%s strategy)\n", res.RowsWritten, res.Strategy)
	}
	if res.RunID != "" {
		fmt.Printf("run id %s\n", res.RunID)
	}
}
