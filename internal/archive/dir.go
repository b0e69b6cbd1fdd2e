package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// ErrOutsideDir is returned by Remove for paths outside the archive
// directory.
var ErrOutsideDir = errors.New("path is not inside the archive directory")

// Info describes one archive in the archive directory.
type Info struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modified_at"`
}

// List returns the .zip files in dir sorted by name. A missing directory
// yields an empty list.
func List(fs afero.Fs, dir string) ([]Info, error) {
	entries, err := afero.ReadDir(fs, dir)
	if errors.Is(err, os.ErrNotExist) {
		return []Info{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	out := []Info{}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".zip") {
			continue
		}
		out = append(out, Info{
			Name:    e.Name(),
			Path:    filepath.Join(dir, e.Name()),
			Size:    e.Size(),
			ModTime: e.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Within reports whether p resolves to a location strictly inside dir.
func Within(dir, p string) bool {
	if dir == "" || p == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(p))
	if err != nil {
		return false
	}
	return rel != "." && filepath.IsLocal(rel)
}

// Remove deletes the archive at p. A relative p names a file in dir.
// Paths outside dir are refused.
func Remove(fs afero.Fs, dir, p string) error {
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	if !Within(dir, p) {
		return fmt.Errorf("%w: %s", ErrOutsideDir, p)
	}
	if err := fs.Remove(p); err != nil {
		return fmt.Errorf("removing %s: %w", p, err)
	}
	return nil
}
