package migrate

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/ALT-F4-LLC/jmigrate/internal/model"
)

// syncFiles copies the extracted tree at src into the site root according to
// strategy. snapshot is the tree-relative name of the extracted snapshot,
// which is never copied.
func (im *Importer) syncFiles(src, snapshot string, strategy model.FileSync) (int, error) {
	log := logOrDiscard(im.Log)
	content := im.contentDir()
	onlyContent := strategy == model.FileSyncContent

	progress, ceiling := 70, 98
	if onlyContent {
		progress, ceiling = 75, 95
	}
	report(im.Progress, progress)

	copied := 0
	err := afero.Walk(im.Fs, src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		name := filepath.ToSlash(rel)

		if name == snapshot {
			return nil
		}
		if onlyContent && !inSubtree(name, content) {
			if info.IsDir() && !strings.HasPrefix(content, name+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if im.ProtectedFile != "" && name == filepath.ToSlash(im.ProtectedFile) {
			log.Info(fmt.Sprintf("Skipping %s to preserve current configuration.", name))
			return nil
		}

		dest := filepath.Join(im.Root, rel)
		if info.IsDir() {
			if err := im.Fs.MkdirAll(dest, 0o755); err != nil {
				return &IOError{Op: "create directory", Path: dest, Err: err}
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if err := copyFile(im.Fs, p, dest, info.Mode().Perm()); err != nil {
			return &IOError{Op: "copy file", Path: dest, Err: err}
		}

		copied++
		if copied%25 == 0 {
			progress = min(ceiling, progress+2)
			report(im.Progress, progress)
		}
		return nil
	})
	if err != nil {
		var ioErr *IOError
		if errors.As(err, &ioErr) {
			return copied, err
		}
		return copied, &IOError{Op: "synchronize files", Path: src, Err: err}
	}
	return copied, nil
}

func inSubtree(name, dir string) bool {
	return name == dir || strings.HasPrefix(name, dir+"/")
}

func copyFile(fs afero.Fs, src, dest string, perm os.FileMode) error {
	if err := fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if perm == 0 {
		perm = 0o644
	}
	out, err := fs.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
