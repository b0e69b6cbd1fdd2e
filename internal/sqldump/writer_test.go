package sqldump

import (
	"bytes"
	"database/sql"
	"strings"
	"testing"

	"github.com/ALT-F4-LLC/jmigrate/internal/sqlsplit"
)

func valid(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func TestEscapeString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{`back\slash`, `back\\slash`},
		{"it's", `it\'s`},
		{"nul\x00byte", `nul\0byte`},
		{"line\nbreak\r", `line\nbreak\r`},
		{"ctrl\x1az", `ctrl\Zz`},
		{`\'`, `\\\'`},
	}
	for _, tt := range tests {
		if got := EscapeString(tt.in); got != tt.want {
			t.Errorf("EscapeString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := QuoteIdent("wp_posts"); got != "`wp_posts`" {
		t.Errorf("QuoteIdent = %q", got)
	}
	if got := QuoteIdent("odd`name"); got != "`odd``name`" {
		t.Errorf("QuoteIdent = %q", got)
	}
}

func TestWriterSections(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteHeader(); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteStructure("wp_options", "CREATE TABLE `wp_options` (`option_id` int)"); err != nil {
		t.Fatal(err)
	}
	rows := [][]sql.NullString{
		{valid("1"), valid("siteurl"), valid("https://example.com")},
		{valid("2"), valid("note"), {}},
	}
	swap := func(s string) string { return strings.ReplaceAll(s, "example", "staging") }
	if err := w.WriteRows("wp_options", rows, swap); err != nil {
		t.Fatal(err)
	}
	if err := w.EndTable(); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	want := Header +
		"DROP TABLE IF EXISTS `wp_options`;\n" +
		"CREATE TABLE `wp_options` (`option_id` int);\n\n" +
		"INSERT INTO `wp_options` VALUES ('1','siteurl','https://staging.com'),\n('2','note',NULL);\n" +
		"\n"
	if got := buf.String(); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
}

func TestWriteRowsRejectsOversizedBatch(t *testing.T) {
	w := NewWriter(&bytes.Buffer{})
	rows := make([][]sql.NullString, BatchSize+1)
	if err := w.WriteRows("t", rows, nil); err == nil {
		t.Error("expected error for oversized batch")
	}
}

func TestWriterOutputSplitsIntoStatements(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteHeader()
	w.WriteStructure("t", "CREATE TABLE `t` (`v` text)")
	tricky := []string{"a;b", "it's", `C:\path\`, "-- not a comment", "/* nor; this */", "line\none", "#hash"}
	var rows [][]sql.NullString
	for _, s := range tricky {
		rows = append(rows, []sql.NullString{valid(s)})
	}
	w.WriteRows("t", rows, nil)
	w.EndTable()
	w.Flush()

	s := sqlsplit.New()
	got := append(s.Feed(buf.Bytes()), s.Flush()...)
	if len(got) != 5 {
		t.Fatalf("statements = %d, want 5:\n%q", len(got), got)
	}
	wantPrefixes := []string{"SET sql_mode", "SET time_zone", "DROP TABLE", "CREATE TABLE", "INSERT INTO"}
	for i, stmt := range got {
		if !strings.HasPrefix(stmt, wantPrefixes[i]) {
			t.Errorf("statement %d = %q, want prefix %q", i, stmt, wantPrefixes[i])
		}
	}
	out := buf.String()
	if want := strings.TrimRight(out[strings.Index(out, "INSERT"):], "\n"); got[4] != want {
		t.Errorf("insert statement was not kept whole: %q", got[4])
	}
}
