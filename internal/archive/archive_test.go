package archive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
)

func writeFile(t *testing.T, fs afero.Fs, p, content string) {
	t.Helper()
	if err := fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// tree returns relative path → content for every regular file under root.
func tree(t *testing.T, fs afero.Fs, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		data, err := afero.ReadFile(fs, p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func seedSite(t *testing.T, fs afero.Fs) {
	t.Helper()
	writeFile(t, fs, "/site/index.php", "<?php // index")
	writeFile(t, fs, "/site/wp-config.php", "<?php define('DB_NAME', 'site');")
	writeFile(t, fs, "/site/wp-content/themes/t/style.css", "body{}")
	writeFile(t, fs, "/site/wp-content/uploads/2024/a.bin", string([]byte{0, 1, 2, 255}))
	writeFile(t, fs, "/work/database.sql", "SELECT 1;\n")
	if err := fs.MkdirAll("/site/wp-content/empty", 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSite(t, fs)
	output := "/site/wp-content/uploads/jmigrate/site.zip"
	if err := fs.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		t.Fatal(err)
	}

	stats, err := Pack(fs, "/site", "/work/database.sql", output, PackOptions{})
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	if stats.Files != 5 {
		t.Errorf("stats.Files = %d, want 5", stats.Files)
	}

	snapshot, err := Unpack(fs, output, "/restore")
	if err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}
	if snapshot != "/restore/database.sql" {
		t.Errorf("snapshot = %q", snapshot)
	}

	want := tree(t, fs, "/site")
	delete(want, "wp-content/uploads/jmigrate/site.zip")
	want["database.sql"] = "SELECT 1;\n"

	got := tree(t, fs, "/restore")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("restored tree = %v\nwant %v", keys(got), keys(want))
	}
	if ok, _ := afero.DirExists(fs, "/restore/wp-content/empty"); !ok {
		t.Error("empty directory was not restored")
	}
}

func TestPackExcludes(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSite(t, fs)
	if _, err := Pack(fs, "/site", "/work/database.sql", "/out.zip", PackOptions{
		Exclude: []string{"/site/wp-content/uploads", "/site/index.php"},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := Unpack(fs, "/out.zip", "/restore"); err != nil {
		t.Fatal(err)
	}
	got := keys(tree(t, fs, "/restore"))
	want := []string{"database.sql", "wp-config.php", "wp-content/themes/t/style.css"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("restored = %v, want %v", got, want)
	}
}

func writeZip(t *testing.T, fs afero.Fs, p string, members map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := make([]string, 0, len(members))
	for n := range members {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		w, err := zw.Create(n)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(members[n]))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, p, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestUnpackMissingSnapshotWritesNothing(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeZip(t, fs, "/a.zip", map[string]string{"index.php": "x", "nested/database.sql": "y"})

	_, err := Unpack(fs, "/a.zip", "/dest")
	if !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("err = %v, want ErrNoSnapshot", err)
	}
	if ok, _ := afero.Exists(fs, "/dest"); ok {
		t.Error("destination was created despite missing snapshot")
	}
}

func TestUnpackSnapshotCaseInsensitive(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeZip(t, fs, "/a.zip", map[string]string{"DataBase.SQL": "SELECT 1;"})

	snapshot, err := Unpack(fs, "/a.zip", "/dest")
	if err != nil {
		t.Fatal(err)
	}
	if snapshot != "/dest/DataBase.SQL" {
		t.Errorf("snapshot = %q", snapshot)
	}
}

func TestUnpackRejectsEscapingMembers(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeZip(t, fs, "/a.zip", map[string]string{"database.sql": "", "../evil.php": "x"})

	_, err := Unpack(fs, "/a.zip", "/dest")
	if !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("err = %v, want ErrUnsafePath", err)
	}
	if ok, _ := afero.Exists(fs, "/evil.php"); ok {
		t.Error("escaping member was written")
	}
}

func TestListAndRemove(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/arch/b.zip", "bb")
	writeFile(t, fs, "/arch/a.ZIP", "a")
	writeFile(t, fs, "/arch/notes.txt", "n")
	writeFile(t, fs, "/elsewhere/c.zip", "c")

	list, err := List(fs, "/arch")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, a := range list {
		names = append(names, a.Name)
	}
	if !reflect.DeepEqual(names, []string{"a.ZIP", "b.zip"}) {
		t.Errorf("names = %v", names)
	}
	if list[1].Size != 2 {
		t.Errorf("size = %d, want 2", list[1].Size)
	}

	if err := Remove(fs, "/arch", "/elsewhere/c.zip"); !errors.Is(err, ErrOutsideDir) {
		t.Errorf("Remove outside = %v, want ErrOutsideDir", err)
	}
	if err := Remove(fs, "/arch", "../elsewhere/c.zip"); !errors.Is(err, ErrOutsideDir) {
		t.Errorf("Remove relative escape = %v, want ErrOutsideDir", err)
	}
	if err := Remove(fs, "/arch", "b.zip"); err != nil {
		t.Errorf("Remove failed: %v", err)
	}
	if ok, _ := afero.Exists(fs, "/arch/b.zip"); ok {
		t.Error("b.zip still exists")
	}
}

func TestListMissingDir(t *testing.T) {
	list, err := List(afero.NewMemMapFs(), "/nope")
	if err != nil || len(list) != 0 {
		t.Errorf("List = %v, %v", list, err)
	}
}

func TestWithin(t *testing.T) {
	tests := []struct {
		dir, p string
		want   bool
	}{
		{"/a", "/a/b.zip", true},
		{"/a", "/a/sub/b.zip", true},
		{"/a", "/a", false},
		{"/a", "/ab/c.zip", false},
		{"/a", "/a/../b.zip", false},
		{"", "/a/b.zip", false},
	}
	for _, tt := range tests {
		if got := Within(tt.dir, tt.p); got != tt.want {
			t.Errorf("Within(%q, %q) = %v, want %v", tt.dir, tt.p, got, tt.want)
		}
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestCheck(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeZip(t, fs, "/good.zip", map[string]string{"database.sql": "", "a/b.txt": "x"})
	writeZip(t, fs, "/bad.zip", map[string]string{"a/b.txt": "x"})
	writeFile(t, fs, "/junk.zip", "not a zip")

	if err := Check(fs, "/good.zip"); err != nil {
		t.Errorf("Check(good) = %v", err)
	}
	if err := Check(fs, "/bad.zip"); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("Check(bad) = %v, want ErrNoSnapshot", err)
	}
	if err := Check(fs, "/junk.zip"); err == nil {
		t.Error("Check(junk) expected error")
	}
}
