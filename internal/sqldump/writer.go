// Package sqldump writes MySQL-dialect database snapshots: a session header
// followed by one section per table holding a drop, the table definition and
// batched inserts.
package sqldump

import (
	"bufio"
	"database/sql"
	"fmt"
	"io"
	"strings"
)

// BatchSize is the maximum number of rows written in one INSERT statement.
const BatchSize = 500

// Header is written once at the top of every snapshot.
const Header = "SET sql_mode = \"NO_AUTO_VALUE_ON_ZERO\";\n" +
	"SET time_zone = \"+00:00\";\n\n"

var escaper = strings.NewReplacer(
	`\`, `\\`,
	"\x00", `\0`,
	"\n", `\n`,
	"\r", `\r`,
	"\x1a", `\Z`,
	"'", `\'`,
)

// EscapeString escapes s for use inside a single-quoted MySQL literal.
func EscapeString(s string) string {
	return escaper.Replace(s)
}

// QuoteIdent returns name as a backtick-quoted identifier.
func QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Writer emits snapshot sections to an underlying writer. Call Flush when
// done.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) WriteHeader() error {
	_, err := w.w.WriteString(Header)
	return err
}

// WriteStructure writes the drop statement and the table definition as
// returned by SHOW CREATE TABLE.
func (w *Writer) WriteStructure(table, create string) error {
	if _, err := fmt.Fprintf(w.w, "DROP TABLE IF EXISTS %s;\n", QuoteIdent(table)); err != nil {
		return err
	}
	create = strings.TrimRight(strings.TrimSpace(create), ";")
	if create == "" {
		return nil
	}
	_, err := fmt.Fprintf(w.w, "%s;\n\n", create)
	return err
}

// WriteRows writes rows as a single INSERT statement. It refuses batches
// larger than BatchSize. Non-NULL cells are passed through transform, when
// set, before escaping.
func (w *Writer) WriteRows(table string, rows [][]sql.NullString, transform func(string) string) error {
	if len(rows) == 0 {
		return nil
	}
	if len(rows) > BatchSize {
		return fmt.Errorf("batch of %d rows exceeds %d", len(rows), BatchSize)
	}

	b := w.w
	b.WriteString("INSERT INTO ")
	b.WriteString(QuoteIdent(table))
	b.WriteString(" VALUES ")
	for i, row := range rows {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteByte('(')
		for j, cell := range row {
			if j > 0 {
				b.WriteByte(',')
			}
			if !cell.Valid {
				b.WriteString("NULL")
				continue
			}
			v := cell.String
			if transform != nil {
				v = transform(v)
			}
			b.WriteByte('\'')
			b.WriteString(EscapeString(v))
			b.WriteByte('\'')
		}
		b.WriteByte(')')
	}
	_, err := b.WriteString(";\n")
	return err
}

// EndTable closes a table section.
func (w *Writer) EndTable() error {
	return w.w.WriteByte('\n')
}

func (w *Writer) Flush() error {
	return w.w.Flush()
}
