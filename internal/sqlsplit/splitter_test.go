package sqlsplit

import (
	"math/rand"
	"reflect"
	"testing"
)

const dump = "-- header\n" +
	"SET sql_mode = \"NO_AUTO_VALUE_ON_ZERO\";\n" +
	"/* block ; comment */\n" +
	"INSERT INTO `t` VALUES ('a;b','it\\'s','x\\\\'),('--',\"q\\\";\");\n" +
	"# hash ; comment\n" +
	"CREATE TABLE `semi;colon` (id int);;\n" +
	"SELECT 1 /* inline ; */ + 2;\n" +
	"SELECT 4-3; SELECT 8/2;\n" +
	"SELECT 1 -- trailing ; note\n+ 1;\n" +
	"SELECT 'trailing'\n"

var want = []string{
	"SET sql_mode = \"NO_AUTO_VALUE_ON_ZERO\";",
	"INSERT INTO `t` VALUES ('a;b','it\\'s','x\\\\'),('--',\"q\\\";\");",
	"CREATE TABLE `semi;colon` (id int);",
	"SELECT 1 /* inline ; */ + 2;",
	"SELECT 4-3;",
	"SELECT 8/2;",
	"SELECT 1 -- trailing ; note\n+ 1;",
	"SELECT 'trailing'",
}

func splitChunks(data string, sizes func() int) []string {
	s := New()
	var out []string
	for len(data) > 0 {
		n := sizes()
		if n > len(data) {
			n = len(data)
		}
		out = append(out, s.Feed([]byte(data[:n]))...)
		data = data[n:]
	}
	return append(out, s.Flush()...)
}

func TestSplitWholeBuffer(t *testing.T) {
	got := splitChunks(dump, func() int { return len(dump) })
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("statements =\n%q\nwant\n%q", got, want)
	}
}

func TestSplitChunkingIsTransparent(t *testing.T) {
	for size := 1; size <= len(dump); size++ {
		n := size
		got := splitChunks(dump, func() int { return n })
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("chunk size %d: statements =\n%q\nwant\n%q", size, got, want)
		}
	}

	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 200; round++ {
		got := splitChunks(dump, func() int { return 1 + rng.Intn(9) })
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("random round %d: statements =\n%q\nwant\n%q", round, got, want)
		}
	}
}

func TestSplitQuotedAndCommentedSemicolons(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"SELECT 'a;b';", []string{"SELECT 'a;b';"}},
		{"SELECT \"a;b\";", []string{"SELECT \"a;b\";"}},
		{"SELECT 1 -- ;\n;", []string{"SELECT 1 -- ;\n;"}},
		{"-- ;\nSELECT 2;", []string{"SELECT 2;"}},
		{"# ;\nSELECT 3;", []string{"SELECT 3;"}},
		{"/* ; */SELECT 4;", []string{"SELECT 4;"}},
		{"SELECT 'it''s;';", []string{"SELECT 'it''s;';"}},
		{"SELECT `a;b` FROM t;", []string{"SELECT `a;b` FROM t;"}},
		{"SELECT '\\';';", []string{"SELECT '\\';';"}},
	}
	for _, tt := range tests {
		got := splitChunks(tt.in, func() int { return 1 })
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("split(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitSkipsEmptyStatements(t *testing.T) {
	s := New()
	got := s.Feed([]byte(";;  ;\n-- only a comment\n/* and another */"))
	got = append(got, s.Flush()...)
	if len(got) != 0 {
		t.Errorf("statements = %q, want none", got)
	}
}

func TestSplitEmptyRemainderBoundary(t *testing.T) {
	s := New()
	got := s.Feed([]byte("SELECT 1;"))
	if len(got) != 1 {
		t.Fatalf("statements = %q", got)
	}
	if s.Buffered() != 0 {
		t.Errorf("Buffered = %d, want 0", s.Buffered())
	}
	if got := s.Flush(); len(got) != 0 {
		t.Errorf("Flush = %q, want none", got)
	}
}

func TestSplitCarriesOnlyUnterminatedStatement(t *testing.T) {
	s := New()
	s.Feed([]byte("SELECT 1; SELECT 2; SELE"))
	if got := string(s.Remainder()); got != "SELE" {
		t.Errorf("Remainder = %q, want %q", got, "SELE")
	}
	got := s.Feed([]byte("CT 3;\n"))
	if !reflect.DeepEqual(got, []string{"SELECT 3;"}) {
		t.Errorf("statements = %q", got)
	}
}

func TestSplitBlockCommentAcrossChunks(t *testing.T) {
	s := New()
	var got []string
	for _, chunk := range []string{"/", "* still ", "a comment; *", "/ SELECT 5;"} {
		got = append(got, s.Feed([]byte(chunk))...)
	}
	if !reflect.DeepEqual(got, []string{"SELECT 5;"}) {
		t.Errorf("statements = %q", got)
	}
}

func TestSplitFlushResolvesDeferredByte(t *testing.T) {
	s := New()
	if got := s.Feed([]byte("SELECT 8 -")); len(got) != 0 {
		t.Fatalf("Feed = %q", got)
	}
	got := s.Flush()
	if !reflect.DeepEqual(got, []string{"SELECT 8 -"}) {
		t.Errorf("Flush = %q", got)
	}
}

func TestZeroValueSplitter(t *testing.T) {
	var s Splitter
	got := s.Feed([]byte("  SELECT 1;"))
	if !reflect.DeepEqual(got, []string{"SELECT 1;"}) {
		t.Errorf("statements = %q", got)
	}
}

func TestSplitterReusableAfterFlush(t *testing.T) {
	s := New()
	s.Feed([]byte("SELECT 'open"))
	s.Flush()
	got := s.Feed([]byte("SELECT 2;"))
	if !reflect.DeepEqual(got, []string{"SELECT 2;"}) {
		t.Errorf("statements = %q", got)
	}
}

func TestSplitKeepsExecutableComments(t *testing.T) {
	in := "/*!40101 SET NAMES utf8mb4 */;\n" +
		"/* plain ; note */\n" +
		"/*!40014 SET @OLD_FK=@@FOREIGN_KEY_CHECKS, FOREIGN_KEY_CHECKS=0 */;\n" +
		"SELECT 1 /*!50000 + 1 */;\n"
	want := []string{
		"/*!40101 SET NAMES utf8mb4 */;",
		"/*!40014 SET @OLD_FK=@@FOREIGN_KEY_CHECKS, FOREIGN_KEY_CHECKS=0 */;",
		"SELECT 1 /*!50000 + 1 */;",
	}

	tests := []struct {
		name   string
		chunks []string
	}{
		{"whole", []string{in}},
		{"split after slash star", []string{"/*", in[2:]}},
		{"split after slash", []string{"/", in[1:]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			var got []string
			for _, c := range tt.chunks {
				got = append(got, s.Feed([]byte(c))...)
			}
			got = append(got, s.Flush()...)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("statements = %q, want %q", got, want)
			}
		})
	}
}
