package export

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect captures the per-backend SQL differences the engine needs:
// placeholder style, existence probing, and whether a file bulk load is
// available.
type Dialect interface {
	// Name is the configuration value selecting this dialect.
	Name() string
	// DriverName is the database/sql registration to open.
	DriverName() string
	// Placeholder returns the 1-based bind parameter marker.
	Placeholder(i int) string
	// TableExists probes for the destination table.
	TableExists(ctx context.Context, db *sql.DB, table string) (bool, error)
	// BulkLoadSQL returns the statement ingesting a staged file into the
	// table in one operation, or ok=false when the backend has none.
	BulkLoadSQL(table, path string) (sql string, ok bool)
	// SingleRowOnly reports that only the row-at-a-time strategy is safe,
	// whatever the packet-size knob says.
	SingleRowOnly() bool
}

// DialectFor resolves a configured driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite":
		return sqliteDialect{}, nil
	case "pg":
		return pgDialect{}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q (want sqlite or pg)", driver)
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string              { return "sqlite" }
func (sqliteDialect) DriverName() string        { return "sqlite" }
func (sqliteDialect) Placeholder(int) string    { return "?" }
func (sqliteDialect) SingleRowOnly() bool       { return true }
func (sqliteDialect) BulkLoadSQL(string, string) (string, bool) { return "", false }

func (sqliteDialect) TableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var name string
	err := db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type pgDialect struct{}

func (pgDialect) Name() string       { return "pg" }
func (pgDialect) DriverName() string { return "pgx" }
func (pgDialect) Placeholder(i int) string {
	return fmt.Sprintf("$%d", i)
}
func (pgDialect) SingleRowOnly() bool { return false }

// BulkLoadSQL uses the server-side COPY with single-quote CSV quoting,
// matching the staged file format exactly.
func (pgDialect) BulkLoadSQL(table, path string) (string, bool) {
	return fmt.Sprintf("COPY %s FROM '%s' CSV QUOTE ''''", table, path), true
}

func (pgDialect) TableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
