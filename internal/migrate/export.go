package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/juju/clock"
	"github.com/spf13/afero"

	"github.com/ALT-F4-LLC/jmigrate/internal/archive"
	"github.com/ALT-F4-LLC/jmigrate/internal/rewrite"
	"github.com/ALT-F4-LLC/jmigrate/internal/sqldump"
)

// Table is one relation reported by a Source.
type Table struct {
	Name string
	View bool
}

// Source is the database an export reads from.
type Source interface {
	Tables(ctx context.Context) ([]Table, error)
	// CreateTable returns the table definition as SHOW CREATE TABLE does.
	CreateTable(ctx context.Context, table string) (string, error)
	// Rows returns up to limit rows starting at offset. Cells are nil-able
	// text.
	Rows(ctx context.Context, table string, offset, limit int) ([][]sql.NullString, error)
}

// ExportRequest describes one export.
type ExportRequest struct {
	Permanent string
	Temporary string
	// Output is the archive path. Empty selects a timestamped name in the
	// archive directory.
	Output string
}

// ExportResult summarizes a finished export.
type ExportResult struct {
	Path   string `json:"path"`
	Tables int    `json:"tables"`
	Rows   int    `json:"rows"`
	Files  int    `json:"files"`
	Bytes  int64  `json:"bytes"`
}

// Exporter dumps a database and packs it with the site tree.
type Exporter struct {
	Fs         afero.Fs
	Source     Source
	Root       string
	ArchiveDir string
	TempDir    string
	WorkDir    string
	Clock      clock.Clock
	Log        Logger
	Progress   Reporter
}

// Validate checks req without touching the database or the filesystem.
func (e *Exporter) Validate(req ExportRequest) error {
	if _, err := rewrite.NewPair(req.Permanent, req.Temporary); err != nil {
		return &ValidationError{Msg: err.Error()}
	}
	if req.Output != "" {
		if _, err := ResolvePath(req.Output, e.WorkDir); err != nil {
			return validationf("invalid output path %q: %v", req.Output, err)
		}
	} else if e.ArchiveDir == "" {
		return validationf("no output path given and no archive directory configured")
	}
	return nil
}

// Export runs the full export. On failure no archive is left at the target
// path and the working directory is always removed.
func (e *Exporter) Export(ctx context.Context, req ExportRequest) (ExportResult, error) {
	var res ExportResult
	log := logOrDiscard(e.Log)

	pair, err := rewrite.NewPair(req.Permanent, req.Temporary)
	if err != nil {
		return res, &ValidationError{Msg: err.Error()}
	}
	report(e.Progress, 5)

	output, err := e.resolveOutput(req.Output)
	if err != nil {
		return res, err
	}
	res.Path = output

	work, err := afero.TempDir(e.Fs, e.TempDir, "jmigrate-")
	if err != nil {
		return res, &IOError{Op: "create working directory", Path: e.TempDir, Err: err}
	}
	defer e.Fs.RemoveAll(work)

	snapshot := filepath.Join(work, archive.SnapshotName)
	log.Info("Generating database export with internal engine...")
	if err := e.dump(ctx, pair, snapshot, &res); err != nil {
		return res, err
	}

	report(e.Progress, 85)
	log.Info("Creating site archive. This may take a while...")
	partial := output + ".partial"
	stats, err := archive.Pack(e.Fs, e.Root, snapshot, partial, archive.PackOptions{
		Exclude: []string{output, work},
	})
	if err != nil {
		e.Fs.Remove(partial)
		return res, &IOError{Op: "pack archive", Path: output, Err: err}
	}
	if err := e.Fs.Rename(partial, output); err != nil {
		e.Fs.Remove(partial)
		return res, &IOError{Op: "move archive into place", Path: output, Err: err}
	}
	res.Files = stats.Files
	res.Bytes = stats.Bytes

	report(e.Progress, 100)
	log.Success(fmt.Sprintf("Migration archive created: %s", output))
	return res, nil
}

func (e *Exporter) resolveOutput(requested string) (string, error) {
	if requested != "" {
		p, err := ResolvePath(requested, e.WorkDir)
		if err != nil {
			return "", validationf("invalid output path %q: %v", requested, err)
		}
		dir := filepath.Dir(p)
		if err := e.Fs.MkdirAll(dir, 0o755); err != nil {
			return "", &IOError{Op: "create output directory", Path: dir, Err: err}
		}
		return p, nil
	}

	if e.ArchiveDir == "" {
		return "", validationf("no output path given and no archive directory configured")
	}
	if err := e.Fs.MkdirAll(e.ArchiveDir, 0o755); err != nil {
		return "", &IOError{Op: "create archive directory", Path: e.ArchiveDir, Err: err}
	}
	clk := e.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	name := fmt.Sprintf("jmigrate-%s.zip", clk.Now().UTC().Format("20060102-150405"))
	return filepath.Join(e.ArchiveDir, name), nil
}

func (e *Exporter) dump(ctx context.Context, pair rewrite.Pair, snapshot string, res *ExportResult) (err error) {
	log := logOrDiscard(e.Log)

	f, err := e.Fs.OpenFile(snapshot, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return &IOError{Op: "create database export", Path: snapshot, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &IOError{Op: "close database export", Path: snapshot, Err: cerr}
		}
	}()

	w := sqldump.NewWriter(f)
	writeErr := func(err error) error {
		return &IOError{Op: "write database export", Path: snapshot, Err: err}
	}
	if err := w.WriteHeader(); err != nil {
		return writeErr(err)
	}

	tables, err := e.Source.Tables(ctx)
	if err != nil {
		return &DatabaseError{Preview: "SHOW FULL TABLES", Head: "SHOW FULL TABLES", Err: err}
	}

	for i, t := range tables {
		if t.View {
			log.Warn(fmt.Sprintf("Skipping view %s.", t.Name))
			continue
		}
		log.Info(fmt.Sprintf("Exporting table %s...", t.Name))

		create, err := e.Source.CreateTable(ctx, t.Name)
		if err != nil {
			q := "SHOW CREATE TABLE " + sqldump.QuoteIdent(t.Name)
			return &DatabaseError{Preview: q, Head: q, Err: err}
		}
		if err := w.WriteStructure(t.Name, create); err != nil {
			return writeErr(err)
		}

		for offset := 0; ; {
			rows, err := e.Source.Rows(ctx, t.Name, offset, sqldump.BatchSize)
			if err != nil {
				q := fmt.Sprintf("SELECT * FROM %s LIMIT %d, %d", sqldump.QuoteIdent(t.Name), offset, sqldump.BatchSize)
				return &DatabaseError{Preview: q, Head: q, Err: err}
			}
			if err := w.WriteRows(t.Name, rows, pair.Apply); err != nil {
				return writeErr(err)
			}
			res.Rows += len(rows)
			offset += len(rows)
			if len(rows) < sqldump.BatchSize {
				break
			}
		}
		if err := w.EndTable(); err != nil {
			return writeErr(err)
		}
		res.Tables++
		report(e.Progress, 5+75*(i+1)/len(tables))
	}

	if err := w.Flush(); err != nil {
		return writeErr(err)
	}
	return nil
}
