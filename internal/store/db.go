package store

import (
	"bufio"
	"context"
	"embed"
	"io"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

//go:embed schema/*.sql
var schemaFS embed.FS

func init() {
	// sqlx does not know the driver name registered by modernc.org/sqlite.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Open connects to the database identified by driver and dsn and verifies the connection. MySQL
// DSNs are rewritten so that UPDATE reports matched rather than changed rows; SQLite DSNs get a
// busy timeout so that concurrent writers wait for each other instead of failing.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	var err error
	switch driver {
	case DriverMySQL:
		dsn, err = mysqlDSN(dsn)
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	default:
		err = errors.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", driver)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "ping %s database", driver)
	}
	return db, nil
}

func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, "parse mysql dsn")
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

func sqliteDSN(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "sqlite://")
	dsn = strings.TrimPrefix(dsn, "sqlite:")
	if strings.Contains(dsn, "_pragma=busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Migrate creates the contacts table for the dialect of db if it does not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	f, err := schemaFS.Open("schema/" + db.DriverName() + ".sql")
	if err != nil {
		return errors.Wrapf(err, "no schema for driver %s", db.DriverName())
	}
	defer f.Close()
	return ExecScript(ctx, db, f)
}

// ExecScript executes the SQL statements read from r one after another. A statement ends on the
// line that contains its terminating semicolon.
func ExecScript(ctx context.Context, db *sqlx.DB, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanLines)
	builder := strings.Builder{}
	for scanner.Scan() {
		line := scanner.Text()
		builder.WriteString(line)
		builder.WriteString(" ")
		if strings.Contains(line, ";") {
			stmt := builder.String()
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return errors.Wrapf(err, "exec %q", strings.TrimSpace(stmt))
			}
			builder = strings.Builder{}
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "read script")
	}
	if rest := strings.TrimSpace(builder.String()); rest != "" {
		if _, err := db.ExecContext(ctx, rest); err != nil {
			return errors.Wrapf(err, "exec %q", rest)
		}
	}
	return nil
}
