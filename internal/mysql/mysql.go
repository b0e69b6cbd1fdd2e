// Package mysql connects to the site database and reads it for export.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	driver "github.com/go-sql-driver/mysql"

	"github.com/ALT-F4-LLC/jmigrate/internal/migrate"
	"github.com/ALT-F4-LLC/jmigrate/internal/sqldump"
)

// DSN builds a data source name from WordPress-style connection settings.
// host may be "name", "name:port" or "name:/path/to/socket".
func DSN(host, user, password, name string) string {
	cfg := driver.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.DBName = name
	cfg.Net = "tcp"
	cfg.Addr = host
	if _, sock, ok := strings.Cut(host, ":"); ok && strings.HasPrefix(sock, "/") {
		cfg.Net = "unix"
		cfg.Addr = sock
	} else if host != "" && !strings.Contains(host, ":") {
		cfg.Addr = host + ":3306"
	}
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Open connects to the database described by dsn and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if _, err := driver.ParseDSN(dsn); err != nil {
		return nil, fmt.Errorf("parsing dsn: %w", err)
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return db, nil
}

// Session pins a single connection. Session variables such as
// FOREIGN_KEY_CHECKS only hold on the connection that set them, so an
// import must run every statement through one Session.
func Session(ctx context.Context, db *sql.DB) (*sql.Conn, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	return conn, nil
}

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Source reads tables for the export engine.
type Source struct {
	q Queryer
}

// NewSource returns a Source reading through q.
func NewSource(q Queryer) *Source {
	return &Source{q: q}
}

// Tables lists the tables of the current database in server order. Views
// are flagged so the exporter can skip them.
func (s *Source) Tables(ctx context.Context) ([]migrate.Table, error) {
	rows, err := s.q.QueryContext(ctx, "SHOW FULL TABLES")
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var tables []migrate.Table
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, fmt.Errorf("scanning table: %w", err)
		}
		tables = append(tables, migrate.Table{Name: name, View: strings.EqualFold(kind, "VIEW")})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tables: %w", err)
	}
	return tables, nil
}

// CreateTable returns the CREATE TABLE statement of table.
func (s *Source) CreateTable(ctx context.Context, table string) (string, error) {
	var name, create string
	err := s.q.QueryRowContext(ctx, "SHOW CREATE TABLE "+sqldump.QuoteIdent(table)).Scan(&name, &create)
	if err != nil {
		return "", fmt.Errorf("reading structure of %s: %w", table, err)
	}
	return create, nil
}

// Rows returns up to limit rows of table starting at offset. Every cell is
// read as text; NULL cells are left invalid.
func (s *Source) Rows(ctx context.Context, table string, offset, limit int) ([][]sql.NullString, error) {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d, %d", sqldump.QuoteIdent(table), offset, limit)
	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("reading rows of %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}

	var out [][]sql.NullString
	for rows.Next() {
		row := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning row of %s: %w", table, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows of %s: %w", table, err)
	}
	return out, nil
}
