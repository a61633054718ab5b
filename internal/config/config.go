// Package config loads and validates run parameters for a ranking run.
// Fields omitted from the JSON file fall back to defaults through the
// Get* accessors, so partial configs are safe.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrInvalid marks a configuration that parsed but failed validation.
var ErrInvalid = errors.New("invalid configuration")

// RunConfig is the root configuration for one ranking run. The schema
// doubles as the CLI flag surface, so a run is reproducible from the
// file alone.
type RunConfig struct {
	// Input
	SectorTable *string `json:"sector_table,omitempty"`

	// Ranking params
	RankDepth   *int     `json:"rank_depth,omitempty"`
	RxThreshold *float64 `json:"rx_threshold,omitempty"`
	SkipNoData  *bool    `json:"skip_nodata,omitempty"`

	// Output raster params
	Mode         *string `json:"mode,omitempty"`
	OutputRaster *string `json:"output_raster,omitempty"`

	// LTE params
	BandwidthMHz *float64 `json:"bandwidth_mhz,omitempty"`
	PDCCHSymbols *int     `json:"pdcch_symbols,omitempty"`
	Antennas     *int     `json:"antennas,omitempty"`
	ExtendedCP   *bool    `json:"extended_cp,omitempty"`

	// Persistence params
	Driver     *string `json:"driver,omitempty"`
	DSN        *string `json:"dsn,omitempty"`
	Table      *string `json:"table,omitempty"`
	PacketSize *int    `json:"packet_size,omitempty"`
	Overwrite  *bool   `json:"overwrite,omitempty"`

	// Run log params
	RunLogPath *string `json:"run_log_path,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// Load reads a RunConfig from a JSON file. The file is validated to
// ensure it has a .json extension and is under the max file size.
func Load(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &RunConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validDrivers = map[string]bool{"sqlite": true, "pg": true, "csv": true, "none": true}

var validModes = map[string]bool{
	"rss-max": true, "coverage": true, "rss-sum": true, "rss-maxix": true,
	"lte-rssi": true, "lte-rsrp": true, "lte-rsrq": true, "lte-cinr": true,
	"lte-maxspecteff": true, "lte-maxthrput": true, "lte-interfere": true,
}

// Validate checks that the configuration values are valid.
func (c *RunConfig) Validate() error {
	if c.RankDepth != nil && (*c.RankDepth < 1 || *c.RankDepth > 255) {
		return fmt.Errorf("%w: rank_depth must be between 1 and 255, got %d", ErrInvalid, *c.RankDepth)
	}
	if c.PacketSize != nil && (*c.PacketSize < 1 || *c.PacketSize > 99) {
		return fmt.Errorf("%w: packet_size must be between 1 and 99, got %d", ErrInvalid, *c.PacketSize)
	}
	if c.Driver != nil && !validDrivers[*c.Driver] {
		return fmt.Errorf("%w: unknown driver %q", ErrInvalid, *c.Driver)
	}
	if c.Mode != nil && !validModes[*c.Mode] {
		return fmt.Errorf("%w: unknown output mode %q", ErrInvalid, *c.Mode)
	}
	if c.BandwidthMHz != nil && *c.BandwidthMHz <= 0 {
		return fmt.Errorf("%w: bandwidth_mhz must be positive, got %g", ErrInvalid, *c.BandwidthMHz)
	}
	if c.PDCCHSymbols != nil && (*c.PDCCHSymbols < 1 || *c.PDCCHSymbols > 3) {
		return fmt.Errorf("%w: pdcch_symbols must be between 1 and 3, got %d", ErrInvalid, *c.PDCCHSymbols)
	}
	if c.Antennas != nil {
		switch *c.Antennas {
		case 1, 2, 4:
		default:
			return fmt.Errorf("%w: antennas must be 1, 2 or 4, got %d", ErrInvalid, *c.Antennas)
		}
	}
	if c.Table != nil && *c.Table == "" {
		return fmt.Errorf("%w: table must not be empty", ErrInvalid)
	}
	return nil
}

// GetSectorTable returns the sector table path, empty when unset.
func (c *RunConfig) GetSectorTable() string {
	if c.SectorTable == nil {
		return ""
	}
	return *c.SectorTable
}

// GetRankDepth returns the rank_depth value or the default.
func (c *RunConfig) GetRankDepth() int {
	if c.RankDepth == nil {
		return 5 // default
	}
	return *c.RankDepth
}

// GetRxThreshold returns the rx_threshold value or the default, which
// admits every reading.
func (c *RunConfig) GetRxThreshold() float64 {
	if c.RxThreshold == nil {
		return -999
	}
	return *c.RxThreshold
}

// GetSkipNoData returns the skip_nodata value or the default.
func (c *RunConfig) GetSkipNoData() bool {
	if c.SkipNoData == nil {
		return true // default: unseeded points are not persisted
	}
	return *c.SkipNoData
}

// GetMode returns the output mode or the default.
func (c *RunConfig) GetMode() string {
	if c.Mode == nil {
		return "rss-max"
	}
	return *c.Mode
}

// GetOutputRaster returns the output raster path, empty when unset.
func (c *RunConfig) GetOutputRaster() string {
	if c.OutputRaster == nil {
		return ""
	}
	return *c.OutputRaster
}

// GetBandwidthMHz returns the bandwidth_mhz value or the default.
func (c *RunConfig) GetBandwidthMHz() float64 {
	if c.BandwidthMHz == nil {
		return 5.0
	}
	return *c.BandwidthMHz
}

// GetPDCCHSymbols returns the pdcch_symbols value or the default.
func (c *RunConfig) GetPDCCHSymbols() int {
	if c.PDCCHSymbols == nil {
		return 2
	}
	return *c.PDCCHSymbols
}

// GetAntennas returns the antennas value or the default.
func (c *RunConfig) GetAntennas() int {
	if c.Antennas == nil {
		return 1
	}
	return *c.Antennas
}

// GetExtendedCP returns the extended_cp value or the default.
func (c *RunConfig) GetExtendedCP() bool {
	if c.ExtendedCP == nil {
		return false // default: normal cyclic prefix
	}
	return *c.ExtendedCP
}

// GetDriver returns the driver value or the default.
func (c *RunConfig) GetDriver() string {
	if c.Driver == nil {
		return "csv"
	}
	return *c.Driver
}

// GetDSN returns the connection string, empty when unset.
func (c *RunConfig) GetDSN() string {
	if c.DSN == nil {
		return ""
	}
	return *c.DSN
}

// GetTable returns the destination table or output file path.
func (c *RunConfig) GetTable() string {
	if c.Table == nil {
		return ""
	}
	return *c.Table
}

// GetPacketSize returns the packet_size value or the default.
func (c *RunConfig) GetPacketSize() int {
	if c.PacketSize == nil {
		return 20
	}
	return *c.PacketSize
}

// GetOverwrite returns the overwrite value or the default.
func (c *RunConfig) GetOverwrite() bool {
	if c.Overwrite == nil {
		return false
	}
	return *c.Overwrite
}

// GetRunLogPath returns the run log database path, empty when run
// logging is disabled.
func (c *RunConfig) GetRunLogPath() string {
	if c.RunLogPath == nil {
		return ""
	}
	return *c.RunLogPath
}
