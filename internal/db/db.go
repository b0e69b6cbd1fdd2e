// Package db keeps job tracker state in SQLite so that separate jmigrate
// processes can create, run and poll the same job.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// pragmas are applied to every connection. job_messages rows cascade with
// their job, so foreign keys must be on.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
}

// Open opens or creates the job database at path without touching its
// schema. Use OpenStore when the tables must exist.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening job database %s: %w", path, err)
	}

	// A claim is a read followed by a write; one connection keeps it atomic.
	conn.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("configuring job database (%s): %w", p, err)
		}
	}

	return conn, nil
}

// OpenStore opens the job database at path, creating the tables on first
// use and applying pending migrations.
func OpenStore(path string) (*sql.DB, error) {
	conn, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := Initialize(conn); err != nil {
		conn.Close()
		return nil, err
	}
	if err := Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
