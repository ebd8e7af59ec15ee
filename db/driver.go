package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// ─────────────────────────────────────────────────────────────────────────────
// Driver interface
// ─────────────────────────────────────────────────────────────────────────────

// Driver encapsulates database-specific behaviour:
//   - building a DSN from structured options
//   - providing a driver-specific ErrorMapper
//   - the bind placeholder style and insert-id strategy of the dialect
//   - idempotent creation of the target database
//
// Implement Driver to add support for a new database without modifying the
// core package.
type Driver interface {
	// Name returns the name the driver is registered under with database/sql,
	// e.g. "mysql", "postgres".
	Name() string

	// DSN converts structured options into a driver DSN string.
	DSN(opts DriverOptions) (string, error)

	// ErrorMapper returns a mapper tuned to this driver's error types.
	ErrorMapper() ErrorMapper

	// Placeholder is the bind parameter style of the dialect.
	Placeholder() sq.PlaceholderFormat

	// InsertReturning reports whether generated keys are read with
	// "RETURNING id" instead of sql.Result.LastInsertId.
	InsertReturning() bool

	// EnsureDatabase creates opts.Database when it does not exist yet, using
	// a transient connection that is closed before returning. Calling it for
	// an existing database has no effect.
	EnsureDatabase(ctx context.Context, opts DriverOptions) error
}

// DriverOptions carries the common connection parameters in a structured,
// driver-agnostic form. DSN() converts them to the driver's native format.
type DriverOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // postgres only: "disable", "require", "verify-full", ...
	// Extra holds driver-specific key/value parameters.
	Extra map[string]string
}

// ─────────────────────────────────────────────────────────────────────────────
// Driver registry
// ─────────────────────────────────────────────────────────────────────────────

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// RegisterDriver adds a Driver to the registry. A driver registered under an
// existing name replaces it.
func RegisterDriver(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[d.Name()] = d
}

// LookupDriver returns the registered Driver by name or an error.
func LookupDriver(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("postboard/db: driver %q not registered", name)
	}
	return d, nil
}

// OpenWithDriver opens a DB using a registered Driver and structured options,
// removing the need for manual DSN construction.
//
//	db, err := db.OpenWithDriver("mysql", db.DriverOptions{
//	    Host: "127.0.0.1", Port: 3306,
//	    User: "root", Password: "secret", Database: "appdb",
//	}, db.Config{MaxOpenConns: 10})
func OpenWithDriver(driverName string, driverOpts DriverOptions, cfg Config) (*DB, error) {
	drv, err := LookupDriver(driverName)
	if err != nil {
		return nil, err
	}

	dsn, err := drv.DSN(driverOpts)
	if err != nil {
		return nil, fmt.Errorf("postboard/db: DSN construction failed: %w", err)
	}

	cfg.DriverName = drv.Name()
	cfg.DSN = dsn
	return Open(cfg)
}

// ─────────────────────────────────────────────────────────────────────────────
// MySQL driver adapter
// ─────────────────────────────────────────────────────────────────────────────

// MySQLDriver is the built-in go-sql-driver/mysql adapter.
type MySQLDriver struct{}

func (MySQLDriver) Name() string { return "mysql" }

// DSN builds the DSN through mysql.Config so that credentials containing
// reserved characters are escaped by the driver itself. An empty Database
// yields a server-level DSN, used by EnsureDatabase.
func (MySQLDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" {
		return "", fmt.Errorf("mysql driver: Host is required")
	}
	port := o.Port
	if port == 0 {
		port = 3306
	}
	c := mysql.NewConfig()
	c.User = o.User
	c.Passwd = o.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(o.Host, strconv.Itoa(port))
	c.DBName = o.Database
	c.ParseTime = true
	c.Collation = mysqlCollation
	if len(o.Extra) > 0 {
		c.Params = make(map[string]string, len(o.Extra))
		for k, v := range o.Extra {
			c.Params[k] = v
		}
	}
	return c.FormatDSN(), nil
}

func (MySQLDriver) ErrorMapper() ErrorMapper          { return MySQLErrorMapper() }
func (MySQLDriver) Placeholder() sq.PlaceholderFormat { return sq.Question }
func (MySQLDriver) InsertReturning() bool             { return false }

const (
	mysqlCharset   = "utf8mb4"
	mysqlCollation = "utf8mb4_unicode_ci"
)

func (m MySQLDriver) EnsureDatabase(ctx context.Context, o DriverOptions) error {
	if o.Database == "" {
		return fmt.Errorf("mysql driver: Database is required")
	}
	name := o.Database
	o.Database = ""
	dsn, err := m.DSN(o)
	if err != nil {
		return err
	}
	return withTransientConn(ctx, m.Name(), dsn, m.ErrorMapper(), func(conn *sql.DB) error {
		stmt := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s CHARACTER SET %s COLLATE %s",
			quoteMySQLIdent(name), mysqlCharset, mysqlCollation)
		_, err := conn.ExecContext(ctx, stmt)
		return err
	})
}

func quoteMySQLIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL driver adapter (lib/pq)
// ─────────────────────────────────────────────────────────────────────────────

// PostgresDriver is the built-in lib/pq adapter.
type PostgresDriver struct{}

func (PostgresDriver) Name() string { return "postgres" }

func (PostgresDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("postgres driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 5432
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	parts := []string{
		pgParam("host", o.Host),
		pgParam("port", strconv.Itoa(port)),
		pgParam("user", o.User),
		pgParam("password", o.Password),
		pgParam("dbname", o.Database),
		pgParam("sslmode", sslMode),
	}
	keys := make([]string, 0, len(o.Extra))
	for k := range o.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, pgParam(k, o.Extra[k]))
	}
	return strings.Join(parts, " "), nil
}

// pgParam renders a key=value pair, quoting values the way libpq expects.
func pgParam(key, value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `'`, `\'`)
	return key + "='" + value + "'"
}

func (PostgresDriver) ErrorMapper() ErrorMapper          { return PostgresErrorMapper() }
func (PostgresDriver) Placeholder() sq.PlaceholderFormat { return sq.Dollar }
func (PostgresDriver) InsertReturning() bool             { return true }

// maintenanceDB is the database the transient bootstrap connection uses.
const maintenanceDB = "postgres"

func (p PostgresDriver) EnsureDatabase(ctx context.Context, o DriverOptions) error {
	if o.Database == "" {
		return fmt.Errorf("postgres driver: Database is required")
	}
	name := o.Database
	o.Database = maintenanceDB
	dsn, err := p.DSN(o)
	if err != nil {
		return err
	}
	return withTransientConn(ctx, p.Name(), dsn, p.ErrorMapper(), func(conn *sql.DB) error {
		var one int
		err := conn.QueryRowContext(ctx, `SELECT 1 FROM pg_database WHERE datname = $1`, name).Scan(&one)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		_, err = conn.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)+" ENCODING 'UTF8'")
		var pe *pq.Error
		if errors.As(err, &pe) && pe.Code == "42P04" { // duplicate_database: lost a creation race
			return nil
		}
		return err
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// SQLite driver adapter
// ─────────────────────────────────────────────────────────────────────────────

// SQLiteDriver is the built-in mattn/go-sqlite3 adapter. The binary must
// import _ "github.com/mattn/go-sqlite3" for the driver to be usable.
type SQLiteDriver struct{}

func (SQLiteDriver) Name() string { return "sqlite3" }

func (SQLiteDriver) DSN(o DriverOptions) (string, error) {
	if o.Database == "" {
		return "", fmt.Errorf("sqlite3 driver: Database (file path) is required")
	}
	keys := make([]string, 0, len(o.Extra))
	for k := range o.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	dsn := o.Database
	for i, k := range keys {
		if i == 0 {
			dsn += "?"
		} else {
			dsn += "&"
		}
		dsn += k + "=" + o.Extra[k]
	}
	return dsn, nil
}

func (SQLiteDriver) ErrorMapper() ErrorMapper          { return SQLiteErrorMapper() }
func (SQLiteDriver) Placeholder() sq.PlaceholderFormat { return sq.Question }
func (SQLiteDriver) InsertReturning() bool             { return false }

// EnsureDatabase is a no-op: SQLite creates the file on first connection.
func (SQLiteDriver) EnsureDatabase(context.Context, DriverOptions) error { return nil }

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// withTransientConn opens a single, unpooled connection for one-off
// administrative statements and closes it before returning.
func withTransientConn(ctx context.Context, driverName, dsn string, errMap ErrorMapper, fn func(*sql.DB) error) (err error) {
	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("postboard/db: open transient connection: %w", err)
	}
	conn.SetMaxOpenConns(1)
	defer func() {
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := fn(conn); err != nil {
		return ChainMapper(errMap, DefaultErrorMapper()).Map(err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Auto-register built-in drivers at init time
// ─────────────────────────────────────────────────────────────────────────────

func init() {
	// go-sql-driver/mysql and lib/pq register themselves with database/sql
	// when imported (this package imports both for error types).
	// mattn/go-sqlite3 must be imported by the binary or test that uses it.
	RegisterDriver(MySQLDriver{})
	RegisterDriver(PostgresDriver{})
	RegisterDriver(SQLiteDriver{})
}
