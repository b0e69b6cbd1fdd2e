// Package archive builds and extracts migration archives: zip files holding a
// site's file tree plus a database snapshot stored at the root as
// database.sql.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
)

// SnapshotName is the archive member holding the database snapshot.
const SnapshotName = "database.sql"

var (
	// ErrNoSnapshot is returned when an archive has no root database.sql.
	ErrNoSnapshot = errors.New("archive does not contain " + SnapshotName)
	// ErrUnsafePath is returned for members that would extract outside the
	// destination directory.
	ErrUnsafePath = errors.New("archive member escapes destination")
)

// PackOptions tunes Pack.
type PackOptions struct {
	// Exclude lists absolute paths left out of the archive. Excluding a
	// directory excludes its whole subtree.
	Exclude []string
}

// PackStats summarizes what Pack wrote.
type PackStats struct {
	Files int
	Dirs  int
	Bytes int64
}

// Pack writes a zip archive at output containing every directory and
// regular file under root at its slash-separated relative path, followed by
// snapshot stored as database.sql. The output file itself is never added,
// even when it lives under root.
func Pack(fs afero.Fs, root, snapshot, output string, opts PackOptions) (PackStats, error) {
	var stats PackStats

	root = filepath.Clean(root)
	skip := map[string]bool{filepath.Clean(output): true}
	for _, p := range opts.Exclude {
		skip[filepath.Clean(p)] = true
	}

	out, err := fs.OpenFile(output, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return stats, fmt.Errorf("creating archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	err = afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if skip[p] {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		name := filepath.ToSlash(rel)

		switch {
		case info.IsDir():
			hdr, err := zip.FileInfoHeader(info)
			if err != nil {
				return err
			}
			hdr.Name = name + "/"
			if _, err := zw.CreateHeader(hdr); err != nil {
				return err
			}
			stats.Dirs++
		case info.Mode().IsRegular():
			n, err := addFile(fs, zw, p, name, info)
			if err != nil {
				return err
			}
			stats.Files++
			stats.Bytes += n
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("adding tree: %w", err)
	}

	info, err := fs.Stat(snapshot)
	if err != nil {
		return stats, fmt.Errorf("reading snapshot: %w", err)
	}
	n, err := addFile(fs, zw, snapshot, SnapshotName, info)
	if err != nil {
		return stats, fmt.Errorf("adding snapshot: %w", err)
	}
	stats.Files++
	stats.Bytes += n

	if err := zw.Close(); err != nil {
		return stats, fmt.Errorf("finalizing archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return stats, fmt.Errorf("closing archive: %w", err)
	}
	return stats, nil
}

func addFile(fs afero.Fs, zw *zip.Writer, src, name string, info os.FileInfo) (int64, error) {
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return 0, err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return 0, err
	}
	f, err := fs.Open(src)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(w, f)
}

// Locate returns the root database.sql member, matched case-insensitively.
func Locate(r *zip.Reader) (*zip.File, bool) {
	for _, f := range r.File {
		if strings.EqualFold(f.Name, SnapshotName) {
			return f, true
		}
	}
	return nil, false
}

// Check verifies that archivePath is a readable zip with a root
// database.sql and only member names that stay inside an extraction
// directory. It writes nothing.
func Check(fs afero.Fs, archivePath string) error {
	r, closer, err := open(fs, archivePath)
	if err != nil {
		return err
	}
	defer closer.Close()
	_, err = check(r)
	return err
}

// Unpack extracts archivePath into dest and returns the path of the
// extracted snapshot. Nothing is written when the snapshot is missing or a
// member name is unsafe.
func Unpack(fs afero.Fs, archivePath, dest string) (string, error) {
	r, closer, err := open(fs, archivePath)
	if err != nil {
		return "", err
	}
	defer closer.Close()

	snap, err := check(r)
	if err != nil {
		return "", err
	}

	if err := fs.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dest, err)
	}
	for _, zf := range r.File {
		if err := extract(fs, zf, dest); err != nil {
			return "", fmt.Errorf("extracting %s: %w", zf.Name, err)
		}
	}
	return filepath.Join(dest, filepath.FromSlash(snap.Name)), nil
}

func open(fs afero.Fs, archivePath string) (*zip.Reader, io.Closer, error) {
	f, err := fs.Open(archivePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening archive: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("reading archive: %w", err)
	}
	r, err := zip.NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("reading archive: %w", err)
	}
	return r, f, nil
}

func check(r *zip.Reader) (*zip.File, error) {
	snap, ok := Locate(r)
	if !ok {
		return nil, ErrNoSnapshot
	}
	for _, zf := range r.File {
		if !filepath.IsLocal(filepath.FromSlash(zf.Name)) {
			return nil, fmt.Errorf("%w: %s", ErrUnsafePath, zf.Name)
		}
	}
	return snap, nil
}

func extract(fs afero.Fs, zf *zip.File, dest string) error {
	target := filepath.Join(dest, filepath.FromSlash(zf.Name))
	if strings.HasSuffix(zf.Name, "/") || zf.FileInfo().IsDir() {
		return fs.MkdirAll(target, 0o755)
	}
	if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := zf.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := fs.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
