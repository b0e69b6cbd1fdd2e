package migrate

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

// recorder is a Logger and Reporter that keeps everything it receives.
type recorder struct {
	lines    []string
	progress []int
}

func (r *recorder) Info(msg string)    { r.lines = append(r.lines, "info: "+msg) }
func (r *recorder) Success(msg string) { r.lines = append(r.lines, "success: "+msg) }
func (r *recorder) Warn(msg string)    { r.lines = append(r.lines, "warning: "+msg) }
func (r *recorder) Error(msg string)   { r.lines = append(r.lines, "error: "+msg) }
func (r *recorder) SetProgress(p int)  { r.progress = append(r.progress, p) }

func (r *recorder) count(substr string) int {
	n := 0
	for _, l := range r.lines {
		if strings.Contains(l, substr) {
			n++
		}
	}
	return n
}

func (r *recorder) last() int {
	if len(r.progress) == 0 {
		return -1
	}
	return r.progress[len(r.progress)-1]
}

type fakeSource struct {
	tables   []Table
	create   map[string]string
	rows     map[string][][]sql.NullString
	failRows string
}

func (f *fakeSource) Tables(context.Context) ([]Table, error) {
	return f.tables, nil
}

func (f *fakeSource) CreateTable(_ context.Context, table string) (string, error) {
	if c, ok := f.create[table]; ok {
		return c, nil
	}
	return fmt.Sprintf("CREATE TABLE `%s` (`id` int NOT NULL)", table), nil
}

func (f *fakeSource) Rows(_ context.Context, table string, offset, limit int) ([][]sql.NullString, error) {
	if table == f.failRows {
		return nil, errors.New("lost connection")
	}
	all := f.rows[table]
	if offset >= len(all) {
		return nil, nil
	}
	return all[offset:min(len(all), offset+limit)], nil
}

var (
	insertInto = regexp.MustCompile("^INSERT INTO `([^`]+)`")
	dropTable  = regexp.MustCompile("^DROP TABLE IF EXISTS `([^`]+)`")
)

// fakeDB records statements and tracks row counts per table from the
// DROP and INSERT statements it sees.
type fakeDB struct {
	stmts  []string
	counts map[string]int
	failOn string
}

func newFakeDB() *fakeDB {
	return &fakeDB{counts: map[string]int{}}
}

func (db *fakeDB) ExecContext(_ context.Context, q string, _ ...any) (sql.Result, error) {
	db.stmts = append(db.stmts, q)
	if db.failOn != "" && strings.Contains(q, db.failOn) {
		return nil, errors.New("You have an error in your SQL syntax")
	}
	if m := dropTable.FindStringSubmatch(q); m != nil {
		delete(db.counts, m[1])
	}
	if m := insertInto.FindStringSubmatch(q); m != nil {
		db.counts[m[1]] += strings.Count(q, "),\n(") + 1
	}
	return driver.RowsAffected(1), nil
}

func text(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func writeFile(t *testing.T, fs afero.Fs, p, content string) {
	t.Helper()
	if err := fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func assertEmptyDir(t *testing.T, fs afero.Fs, dir string) {
	t.Helper()
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		t.Fatalf("ReadDir(%s): %v", dir, err)
	}
	if len(entries) != 0 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("%s not empty: %v", dir, names)
	}
}

func assertNonDecreasing(t *testing.T, progress []int) {
	t.Helper()
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Errorf("progress went backwards: %v", progress)
			return
		}
	}
}

func TestCleanStatement(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  SELECT 1;  ", "SELECT 1"},
		{"SELECT 1;;", "SELECT 1"},
		{`\nINSERT INTO t VALUES (1);`, "INSERT INTO t VALUES (1)"},
		{`\n\r\t  DROP TABLE t;`, "DROP TABLE t"},
		{`\x SELECT 1`, `\x SELECT 1`},
		{";", ""},
		{`\n;`, ""},
	}
	for _, tt := range tests {
		if got := CleanStatement(tt.in); got != tt.want {
			t.Errorf("CleanStatement(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("SELECT\n\t1,   2"); got != "SELECT 1, 2" {
		t.Errorf("Preview = %q", got)
	}
	long := "INSERT INTO t VALUES ('" + strings.Repeat("x", 300) + "')"
	got := Preview(long)
	if len(got) != 180 || !strings.HasSuffix(got, "...") {
		t.Errorf("Preview length = %d, suffix %q", len(got), got[len(got)-3:])
	}
	exact := strings.Repeat("y", 180)
	if got := Preview(exact); got != exact {
		t.Error("Preview shortened a 180 byte statement")
	}
}

func TestLoadProgress(t *testing.T) {
	tests := []struct{ n, want int }{
		{1, 20}, {99, 20}, {100, 25}, {250, 30}, {600, 50}, {700, 50}, {5000, 50},
	}
	for _, tt := range tests {
		if got := loadProgress(tt.n); got != tt.want {
			t.Errorf("loadProgress(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestResolvePath(t *testing.T) {
	got, err := ResolvePath("backups/site.zip", "/srv/www")
	if err != nil || got != "/srv/www/backups/site.zip" {
		t.Errorf("ResolvePath = %q, %v", got, err)
	}
	got, err = ResolvePath(" /abs/x.zip ", "/srv")
	if err != nil || got != "/abs/x.zip" {
		t.Errorf("ResolvePath = %q, %v", got, err)
	}
	t.Setenv("HOME", "/home/tester")
	got, err = ResolvePath("~/site.zip", "/srv")
	if err != nil || got != "/home/tester/site.zip" {
		t.Errorf("ResolvePath(~) = %q, %v", got, err)
	}
	if _, err := ResolvePath("  ", "/srv"); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestPrefixRemapDetectsOnce(t *testing.T) {
	rec := &recorder{}
	s := newImportSession("wp_", rec)

	if got := s.remap("SET time_zone = '+00:00'"); got != "SET time_zone = '+00:00'" {
		t.Errorf("remap before detection changed statement: %q", got)
	}
	got := s.remap("DROP TABLE IF EXISTS `wp_old_options`")
	if got != "DROP TABLE IF EXISTS `wp_options`" {
		t.Errorf("remap = %q", got)
	}
	got = s.remap("INSERT INTO `wp_old_usermeta` VALUES ('1','wp_old_capabilities','a:0:{}')")
	want := "INSERT INTO `wp_usermeta` VALUES ('1','wp_capabilities','a:0:{}')"
	if got != want {
		t.Errorf("remap = %q, want %q", got, want)
	}
	if s.source != "wp_old_" {
		t.Errorf("source = %q", s.source)
	}
	if n := rec.count("Remapping table prefix from wp_old_ to wp_."); n != 1 {
		t.Errorf("remapping notices = %d, want 1", n)
	}
}

func TestPrefixRemapNoReplacementTwice(t *testing.T) {
	s := newImportSession("wp_wp_", nil)
	got := s.remap("CREATE TABLE `wp_posts` (`id` int); -- wp_posts")
	want := "CREATE TABLE `wp_wp_posts` (`id` int); -- wp_wp_posts"
	if got != want {
		t.Errorf("remap = %q, want %q", got, want)
	}
}

func TestPrefixRemapSamePrefixIsNoop(t *testing.T) {
	rec := &recorder{}
	s := newImportSession("wp_", rec)
	in := "DROP TABLE IF EXISTS `wp_posts`"
	if got := s.remap(in); got != in {
		t.Errorf("remap = %q", got)
	}
	if len(rec.lines) != 0 {
		t.Errorf("unexpected log lines: %v", rec.lines)
	}
}

func TestPrefixRemapDisabledWithoutTarget(t *testing.T) {
	s := newImportSession("", nil)
	in := "DROP TABLE IF EXISTS `old_posts`"
	if got := s.remap(in); got != in {
		t.Errorf("remap = %q", got)
	}
}

func TestMultiLogger(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := MultiLogger{a, b}
	m.Info("one")
	m.Warn("two")
	m.Error("three")
	m.Success("four")
	if len(a.lines) != 4 || len(b.lines) != 4 {
		t.Errorf("lines = %v / %v", a.lines, b.lines)
	}
	if b.lines[1] != "warning: two" {
		t.Errorf("b.lines[1] = %q", b.lines[1])
	}
}
