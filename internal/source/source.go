// Package source supplies per-transmitter received-power grids.
//
// A sector table file lists the transmitters: one line per sector,
// semicolon-separated, `name;antennaID;rasterPath;txPower;model[;param...]`.
// Trailing model parameters are folded into the model name with
// underscores. Each sector's raster holds path loss in dB; readings are
// converted to received power (txPower - loss) as the grid is loaded, with
// unreadable cells mapped to the sentinel.
package source

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/radiomaps/powerrank/internal/grid"
)

// ErrRead marks a source grid that is unavailable, malformed, or
// extent-mismatched. Check with errors.Is.
var ErrRead = errors.New("source read error")

// Sector is one transmitter's metadata from the sector table.
type Sector struct {
	Name       string
	AntennaID  int
	RasterPath string
	TxPowerDBm float64
	Model      string
}

// LoadTable parses a sector table file. An empty table is an error: a run
// with no sources has nothing to rank.
func LoadTable(path string) ([]Sector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening sector table %s: %v", ErrRead, path, err)
	}
	defer f.Close()

	var sectors []Sector
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		sector, err := parseSectorLine(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrRead, path, line, err)
		}
		sectors = append(sectors, sector)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading sector table %s: %v", ErrRead, path, err)
	}
	if len(sectors) == 0 {
		return nil, fmt.Errorf("%w: sector table %s is empty", ErrRead, path)
	}
	return sectors, nil
}

func parseSectorLine(text string) (Sector, error) {
	fields := strings.Split(text, ";")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	// Tolerate a trailing separator.
	if len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	if len(fields) < 5 {
		return Sector{}, fmt.Errorf("need at least 5 fields (name;antenna;raster;power;model), got %d", len(fields))
	}

	antenna, err := strconv.Atoi(fields[1])
	if err != nil {
		return Sector{}, fmt.Errorf("bad antenna id %q", fields[1])
	}
	power, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return Sector{}, fmt.Errorf("bad transmit power %q", fields[3])
	}

	return Sector{
		Name:       fields[0],
		AntennaID:  antenna,
		RasterPath: fields[2],
		TxPowerDBm: power,
		// The model name plus its parameters, joined the way the sector
		// table writer emits them.
		Model: strings.Join(fields[4:], "_"),
	}, nil
}

// GridReader loads one raster as a grid with its extent.
type GridReader interface {
	ReadGrid(path string) (*grid.Grid, grid.Extent, error)
}

// ReceivedPower loads a sector's path-loss raster through r, verifies it
// matches the destination extent, and converts every cell to received
// power in dBm. Path-loss no-data cells become the sentinel.
func ReceivedPower(r GridReader, sec Sector, want grid.Extent) (*grid.Grid, error) {
	g, ext, err := r.ReadGrid(sec.RasterPath)
	if err != nil {
		return nil, fmt.Errorf("%w: sector %s: %v", ErrRead, sec.Name, err)
	}
	if !ext.Matches(want) {
		return nil, fmt.Errorf("%w: sector %s raster %s extent %s does not match window %s",
			ErrRead, sec.Name, sec.RasterPath, ext, want)
	}

	cells := g.Cells()
	for p, loss := range cells {
		if grid.IsNoData(loss) {
			cells[p] = grid.NoData
			continue
		}
		pr := sec.TxPowerDBm - loss
		if pr <= grid.NoData {
			pr = grid.NoData
		}
		cells[p] = pr
	}
	return g, nil
}
