package export

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrSink marks any persistence failure: an occupied destination without
// overwrite permission, a failed insert, or a failed bulk load. Check with
// errors.Is.
var ErrSink = errors.New("sink write error")

// BulkLoadPacketSize is the performance knob value selecting the staged
// bulk-load strategy; every lower value is a multirow packet size.
const BulkLoadPacketSize = 99

// RecordSource drives one pass over the eligible records, invoking emit
// once per record. Returning an error aborts the pass.
type RecordSource func(emit func(Record) error) error

// Options selects the sink and strategy for one run.
type Options struct {
	Driver     string // sqlite, pg or csv
	DSN        string // database path or connection string
	Table      string // destination table, or output file path for csv
	PacketSize int    // rows per insert, 1..98; 99 = staged bulk load
	Overwrite  bool   // permission to drop an existing table or file
	K          int    // ranked slots per record
}

// Strategy names one of the four write strategies.
type Strategy string

const (
	StrategyDirect   Strategy = "transactional" // one insert per row, one transaction
	StrategyBatch    Strategy = "batched"       // multirow inserts, one transaction
	StrategyBulkLoad Strategy = "bulk-load"     // staged file + one load statement
	StrategyFile     Strategy = "file"          // flat delimited file, no table
)

// Engine writes one Record per eligible point to the configured sink.
type Engine struct {
	opts     Options
	strategy Strategy
	d        Dialect
	db       *sql.DB
}

// Open validates the options and connects to the backend. The csv driver
// needs no connection; for the others the destination table is created
// during Run, not here, so that no DDL happens before the aggregation
// pass has produced anything to write.
func Open(opts Options) (*Engine, error) {
	if opts.Table == "" {
		return nil, fmt.Errorf("no destination table or file configured")
	}
	if opts.K < 1 {
		return nil, fmt.Errorf("ranked slot count %d out of range", opts.K)
	}
	if opts.PacketSize < 1 || opts.PacketSize > BulkLoadPacketSize {
		return nil, fmt.Errorf("packet size %d out of range 1..%d", opts.PacketSize, BulkLoadPacketSize)
	}

	if opts.Driver == "csv" {
		return &Engine{opts: opts, strategy: StrategyFile}, nil
	}

	d, err := DialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.DriverName(), opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s database %s: %w", opts.Driver, opts.DSN, err)
	}

	e := &Engine{opts: opts, d: d, db: db}
	switch {
	case d.SingleRowOnly():
		// The backend cannot batch: force the row-at-a-time strategy, as
		// the performance knob is advisory only.
		e.strategy = StrategyDirect
	case opts.PacketSize == BulkLoadPacketSize:
		e.strategy = StrategyBulkLoad
	case opts.PacketSize == 1:
		e.strategy = StrategyDirect
	default:
		e.strategy = StrategyBatch
	}
	return e, nil
}

// Strategy returns the write strategy Run will use.
func (e *Engine) Strategy() Strategy { return e.strategy }

// Close releases the database connection, if any.
func (e *Engine) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

// Run performs the whole write pass: prepares the destination, streams
// every record from src through the selected strategy, and finishes
// atomically. Any failure aborts with no partial output.
func (e *Engine) Run(ctx context.Context, src RecordSource) (rows int64, err error) {
	if e.strategy == StrategyFile {
		return e.runFile(src)
	}

	if err := e.prepareTable(ctx); err != nil {
		return 0, err
	}
	if e.strategy == StrategyBulkLoad {
		return e.runBulkLoad(ctx, src)
	}
	return e.runTransactional(ctx, src)
}

// prepareTable creates the destination table, dropping a pre-existing one
// only with overwrite permission.
func (e *Engine) prepareTable(ctx context.Context) error {
	exists, err := e.d.TableExists(ctx, e.db, e.opts.Table)
	if err != nil {
		return fmt.Errorf("%w: checking table %s: %v", ErrSink, e.opts.Table, err)
	}
	if exists {
		if !e.opts.Overwrite {
			return fmt.Errorf("%w: table %s already exists", ErrSink, e.opts.Table)
		}
		if _, err := e.db.ExecContext(ctx, "DROP TABLE "+e.opts.Table); err != nil {
			return fmt.Errorf("%w: dropping table %s: %v", ErrSink, e.opts.Table, err)
		}
	}
	if _, err := e.db.ExecContext(ctx, createTableSQL(e.opts.Table, e.opts.K)); err != nil {
		return fmt.Errorf("%w: creating table %s: %v", ErrSink, e.opts.Table, err)
	}
	return nil
}

// runTransactional drives the direct and batched strategies: the whole
// pass runs inside a single transaction, committed once at the end.
func (e *Engine) runTransactional(ctx context.Context, src RecordSource) (int64, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: starting transaction on table %s: %v", ErrSink, e.opts.Table, err)
	}
	defer tx.Rollback()

	var sink interface {
		write(Record) error
		flush() error
	}
	if e.strategy == StrategyBatch {
		sink = newBatchSink(ctx, tx, e.d, e.opts.Table, e.opts.K, e.opts.PacketSize)
	} else {
		sink = newDirectSink(ctx, tx, e.d, e.opts.Table, e.opts.K)
	}

	rows, err := e.stream(src, sink.write)
	if err != nil {
		return 0, err
	}
	if err := sink.flush(); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: committing table %s: %v", ErrSink, e.opts.Table, err)
	}
	return rows, nil
}

// runBulkLoad stages every record into a temporary delimited file, then
// ingests the whole file with one backend load statement.
func (e *Engine) runBulkLoad(ctx context.Context, src RecordSource) (int64, error) {
	if _, ok := e.d.BulkLoadSQL(e.opts.Table, ""); !ok {
		return 0, fmt.Errorf("bulk load not supported by driver %q", e.opts.Driver)
	}

	f, err := os.CreateTemp("", "powerrank-stage-*.csv")
	if err != nil {
		return 0, fmt.Errorf("%w: creating staging file: %v", ErrSink, err)
	}
	defer os.Remove(f.Name())
	defer f.Close()
	// The backend server process reads the staged file itself.
	if err := f.Chmod(0o644); err != nil {
		return 0, fmt.Errorf("%w: staging file %s: %v", ErrSink, f.Name(), err)
	}

	bw := bufio.NewWriter(f)
	rows, err := e.writeLines(bw, src, "staging file "+f.Name())
	if err != nil {
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("%w: flushing staging file %s: %v", ErrSink, f.Name(), err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("%w: flushing staging file %s: %v", ErrSink, f.Name(), err)
	}

	stmt, _ := e.d.BulkLoadSQL(e.opts.Table, f.Name())
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return 0, fmt.Errorf("%w: bulk loading %s into table %s: %v", ErrSink, f.Name(), e.opts.Table, err)
	}
	return rows, nil
}

// runFile writes the delimited lines straight to the named output file,
// bypassing the table entirely.
func (e *Engine) runFile(src RecordSource) (int64, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if e.opts.Overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(e.opts.Table, flags, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return 0, fmt.Errorf("%w: output file %s already exists", ErrSink, e.opts.Table)
		}
		return 0, fmt.Errorf("%w: opening output file %s: %v", ErrSink, e.opts.Table, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	rows, err := e.writeLines(bw, src, "output file "+e.opts.Table)
	if err != nil {
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("%w: flushing output file %s: %v", ErrSink, e.opts.Table, err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("%w: closing output file %s: %v", ErrSink, e.opts.Table, err)
	}
	return rows, nil
}

// writeLines renders every record as one delimited line. The staged and
// flat-file strategies share this path, so their output is byte-identical.
func (e *Engine) writeLines(w *bufio.Writer, src RecordSource, dest string) (int64, error) {
	return e.stream(src, func(r Record) error {
		if _, err := w.WriteString(r.FormatLine()); err != nil {
			return fmt.Errorf("%w: writing %s: %v", ErrSink, dest, err)
		}
		return w.WriteByte('\n')
	})
}

// stream pumps records from src into write, validating shape and counting.
func (e *Engine) stream(src RecordSource, write func(Record) error) (int64, error) {
	var rows int64
	err := src(func(r Record) error {
		if len(r.Slots) != e.opts.K {
			return fmt.Errorf("record at (%d,%d) has %d slots, table %s has %d",
				r.X, r.Y, len(r.Slots), e.opts.Table, e.opts.K)
		}
		if err := write(r); err != nil {
			return err
		}
		rows++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rows, nil
}

// execer is the slice of *sql.Tx the sinks need; tests substitute a
// recorder.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// directSink issues one parameterized insert per record.
type directSink struct {
	ctx   context.Context
	ex    execer
	table string
	query string
}

func newDirectSink(ctx context.Context, ex execer, d Dialect, table string, k int) *directSink {
	n := 4*k + 4
	ph := make([]string, n)
	for i := range ph {
		ph[i] = d.Placeholder(i + 1)
	}
	return &directSink{
		ctx:   ctx,
		ex:    ex,
		table: table,
		query: fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, strings.Join(ph, ", ")),
	}
}

func (s *directSink) write(r Record) error {
	if _, err := s.ex.ExecContext(s.ctx, s.query, r.args()...); err != nil {
		return fmt.Errorf("%w: inserting into table %s: %v", ErrSink, s.table, err)
	}
	return nil
}

func (s *directSink) flush() error { return nil }

// batchSink buffers up to packet records and issues one multirow insert
// per full packet, flushing the remainder on input exhaustion.
type batchSink struct {
	ctx    context.Context
	ex     execer
	d      Dialect
	table  string
	packet int
	perRow int
	args   []any
	buffered int
}

func newBatchSink(ctx context.Context, ex execer, d Dialect, table string, k, packet int) *batchSink {
	return &batchSink{
		ctx:    ctx,
		ex:     ex,
		d:      d,
		table:  table,
		packet: packet,
		perRow: 4*k + 4,
	}
}

func (s *batchSink) write(r Record) error {
	s.args = append(s.args, r.args()...)
	s.buffered++
	if s.buffered == s.packet {
		return s.flush()
	}
	return nil
}

func (s *batchSink) flush() error {
	if s.buffered == 0 {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s VALUES ", s.table)
	n := 1
	for row := 0; row < s.buffered; row++ {
		if row > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for col := 0; col < s.perRow; col++ {
			if col > 0 {
				b.WriteString(", ")
			}
			b.WriteString(s.d.Placeholder(n))
			n++
		}
		b.WriteByte(')')
	}

	if _, err := s.ex.ExecContext(s.ctx, b.String(), s.args...); err != nil {
		return fmt.Errorf("%w: inserting %d rows into table %s: %v", ErrSink, s.buffered, s.table, err)
	}
	s.args = s.args[:0]
	s.buffered = 0
	return nil
}
