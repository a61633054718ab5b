// Package export persists finalized per-point power-ranking records to a
// relational table or a flat file through one of four batching strategies:
// row-at-a-time transactional inserts, batched multirow inserts, a staged
// bulk load from an intermediate file, or a plain delimited file.
//
// All strategies are all-or-nothing: any write failure aborts the run with
// no partial commit and no row-level retry.
package export

import (
	"fmt"
	"strings"
)

// Slot is one ranked transmitter in a persisted record.
type Slot struct {
	Name      string
	AntennaID int
	PowerDBm  float64
	Model     string
}

// Record is one persisted row: the point's world coordinates and
// resolution, K ranked slots, and the trailing quality scalar.
type Record struct {
	X, Y       int
	Resolution int
	Slots      []Slot
	Quality    float64
}

// FormatLine renders the record as one delimited line, without trailing
// newline: `x,y,resolution,('name',id,power,'model')xK,quality`. The staged
// bulk load and the flat-file sink share this exact format, and the
// Postgres load statement declares the matching single-quote CSV quoting.
func (r Record) FormatLine() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d,%d,%d", r.X, r.Y, r.Resolution)
	for _, s := range r.Slots {
		fmt.Fprintf(&b, ",'%s',%d,%.2f,'%s'", s.Name, s.AntennaID, s.PowerDBm, s.Model)
	}
	fmt.Fprintf(&b, ",%.2f", r.Quality)
	return b.String()
}

// args flattens the record into driver arguments in column order.
func (r Record) args() []any {
	out := make([]any, 0, 3+4*len(r.Slots)+1)
	out = append(out, r.X, r.Y, r.Resolution)
	for _, s := range r.Slots {
		out = append(out, s.Name, s.AntennaID, s.PowerDBm, s.Model)
	}
	return append(out, r.Quality)
}

// columns returns the table column names for depth k: three coordinate
// columns, four per ranked slot, and the trailing quality column.
func columns(k int) []string {
	cols := make([]string, 0, 4*k+4)
	cols = append(cols, "x", "y", "resolution")
	for i := 1; i <= k; i++ {
		cols = append(cols,
			fmt.Sprintf("cell%d", i),
			fmt.Sprintf("id%d", i),
			fmt.Sprintf("Pr%d", i),
			fmt.Sprintf("model%d", i),
		)
	}
	return append(cols, "EcN0")
}

// createTableSQL builds the CREATE TABLE statement for depth k.
func createTableSQL(table string, k int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", table)
	b.WriteString("\tx INTEGER,\n\ty INTEGER,\n\tresolution INTEGER")
	for i := 1; i <= k; i++ {
		fmt.Fprintf(&b, ",\n\tcell%d VARCHAR(32),\n\tid%d INTEGER,\n\tPr%d REAL,\n\tmodel%d VARCHAR(128)", i, i, i, i)
	}
	b.WriteString(",\n\tEcN0 REAL\n)")
	return b.String()
}
