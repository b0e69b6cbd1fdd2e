package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/ALT-F4-LLC/jmigrate/internal/archive"
	"github.com/ALT-F4-LLC/jmigrate/internal/model"
	"github.com/ALT-F4-LLC/jmigrate/internal/sqlsplit"
)

// DefaultReadSize is the snapshot read size used when Importer.ReadSize is
// not set.
const DefaultReadSize = 1 << 20

// Executor runs one statement. *sql.Conn, *sql.DB and *sql.Tx satisfy it.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ImportRequest describes one import.
type ImportRequest struct {
	Archive string
	Files   model.FileSync
}

// ImportResult summarizes a finished import.
type ImportResult struct {
	Archive    string `json:"archive"`
	Statements int    `json:"statements"`
	Files      int    `json:"files"`
	Delegated  bool   `json:"delegated"`
	// SourcePrefix is the table prefix found in the snapshot, if any.
	SourcePrefix string `json:"source_prefix,omitempty"`
}

// Importer restores an archive into a database and site tree.
type Importer struct {
	Fs   afero.Fs
	DB   Executor
	Root string
	// Prefix is the destination table prefix. Empty disables remapping.
	Prefix string
	// ContentDir is the tree-relative subtree copied by FileSyncContent.
	ContentDir string
	// ProtectedFile is a tree-relative path never overwritten by a sync.
	ProtectedFile  string
	TempDir        string
	WorkDir        string
	ReadSize       int
	HexDiagnostics bool
	Delegate       *Delegate
	Log            Logger
	Progress       Reporter
}

// Validate checks the file mode and that the archive exists, without
// touching the database.
func (im *Importer) Validate(req ImportRequest) error {
	if req.Files != "" {
		if err := model.ValidateFileSync(req.Files); err != nil {
			return &ValidationError{Msg: err.Error()}
		}
	}
	_, _, err := im.resolveArchive(req.Archive)
	return err
}

// Import validates the request, restores the snapshot and synchronizes
// files. The working directory is always removed.
func (im *Importer) Import(ctx context.Context, req ImportRequest) (ImportResult, error) {
	var res ImportResult
	log := logOrDiscard(im.Log)

	files := req.Files
	if files == "" {
		files = model.FileSyncAll
	}
	if err := model.ValidateFileSync(files); err != nil {
		return res, &ValidationError{Msg: err.Error()}
	}

	archivePath, size, err := im.resolveArchive(req.Archive)
	if err != nil {
		return res, err
	}
	res.Archive = archivePath
	report(im.Progress, 5)

	if im.Delegate.ShouldRun(size) {
		log.Info("Delegating import to external tool for large archive...")
		err := im.Delegate.Run(ctx, im.Root, archivePath, log)
		if err == nil {
			res.Delegated = true
			report(im.Progress, 100)
			log.Success("Import completed successfully.")
			return res, nil
		}
		log.Warn(fmt.Sprintf("External import unavailable (%v). Continuing with internal importer...", err))
	}

	log.Info(fmt.Sprintf("Opening archive: %s", archivePath))
	if err := archive.Check(im.Fs, archivePath); err != nil {
		if errors.Is(err, archive.ErrNoSnapshot) || errors.Is(err, archive.ErrUnsafePath) {
			return res, &ValidationError{Msg: err.Error()}
		}
		return res, &IOError{Op: "open archive", Path: archivePath, Err: err}
	}

	work, err := afero.TempDir(im.Fs, im.TempDir, "jmigrate-import-")
	if err != nil {
		return res, &IOError{Op: "create working directory", Path: im.TempDir, Err: err}
	}
	defer im.Fs.RemoveAll(work)

	snapshot, err := archive.Unpack(im.Fs, archivePath, work)
	if err != nil {
		return res, &IOError{Op: "extract archive", Path: archivePath, Err: err}
	}
	report(im.Progress, 15)

	log.Info("Importing database...")
	sess := newImportSession(im.Prefix, log)
	n, err := im.load(ctx, sess, snapshot)
	res.Statements = n
	res.SourcePrefix = sess.source
	if err != nil {
		return res, err
	}
	report(im.Progress, 60)

	switch files {
	case model.FileSyncSkip:
		log.Info("Skipping file synchronization per import settings.")
	case model.FileSyncContent:
		log.Info(fmt.Sprintf("Synchronizing %s only (core files left untouched).", im.contentDir()))
	default:
		log.Info("Synchronizing all files in the archive...")
	}
	if files != model.FileSyncSkip {
		snapRel, _ := filepath.Rel(work, snapshot)
		copied, err := im.syncFiles(work, filepath.ToSlash(snapRel), files)
		res.Files = copied
		if err != nil {
			return res, err
		}
	}

	report(im.Progress, 100)
	log.Success("Import completed successfully.")
	return res, nil
}

func (im *Importer) resolveArchive(raw string) (string, int64, error) {
	if strings.TrimSpace(raw) == "" {
		return "", 0, validationf("Please provide the path to a migration archive.")
	}
	p, err := ResolvePath(raw, im.WorkDir)
	if err != nil {
		return "", 0, validationf("invalid archive path %q: %v", raw, err)
	}

	f, err := im.Fs.Open(p)
	if err != nil {
		return "", 0, validationf("Archive not found or unreadable: %s", p)
	}
	info, err := f.Stat()
	f.Close()
	if err != nil || info.IsDir() {
		return "", 0, validationf("Archive not found or unreadable: %s", p)
	}
	if !strings.EqualFold(filepath.Ext(p), ".zip") {
		return "", 0, validationf("Archive must be a .zip file created by jmigrate.")
	}
	return p, info.Size(), nil
}

func (im *Importer) load(ctx context.Context, sess *importSession, snapshot string) (count int, err error) {
	f, err := im.Fs.Open(snapshot)
	if err != nil {
		return 0, &IOError{Op: "open database export", Path: snapshot, Err: err}
	}
	defer f.Close()

	report(im.Progress, 20)

	if _, err := im.DB.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS=0"); err != nil {
		return 0, newDatabaseError("SET FOREIGN_KEY_CHECKS=0", err, false)
	}
	defer func() {
		if _, ferr := im.DB.ExecContext(context.WithoutCancel(ctx), "SET FOREIGN_KEY_CHECKS=1"); ferr != nil && err == nil {
			err = newDatabaseError("SET FOREIGN_KEY_CHECKS=1", ferr, false)
		}
	}()

	nextTick := 0
	run := func(stmts []string) error {
		for _, raw := range stmts {
			ok, err := im.exec(ctx, sess, raw)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			count++
			if count >= nextTick {
				report(im.Progress, loadProgress(count))
				nextTick = count + 100
			}
		}
		return nil
	}

	size := im.ReadSize
	if size <= 0 {
		size = DefaultReadSize
	}
	buf := make([]byte, size)
	sp := sqlsplit.New()
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if err := run(sp.Feed(buf[:n])); err != nil {
				return count, err
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return count, &IOError{Op: "read database export", Path: snapshot, Err: rerr}
		}
	}
	if err := run(sp.Flush()); err != nil {
		return count, err
	}
	return count, nil
}

// loadProgress maps an executed statement count to a percentage between 20
// and 55.
func loadProgress(n int) int {
	return min(55, 20+min(30, n/100*5))
}

// exec cleans, remaps and runs one statement. It reports false for
// statements that are empty after cleaning.
func (im *Importer) exec(ctx context.Context, sess *importSession, raw string) (bool, error) {
	stmt := CleanStatement(raw)
	if stmt == "" {
		return false, nil
	}
	stmt = sess.remap(stmt)

	if _, err := im.DB.ExecContext(ctx, stmt); err != nil {
		de := newDatabaseError(stmt, err, im.HexDiagnostics)
		log := logOrDiscard(im.Log)
		log.Error(fmt.Sprintf("Database import failure: %s", de.Preview))
		log.Info(fmt.Sprintf("Full statement (first 200 chars): %s", de.Head))
		if de.LeadingHex != "" {
			log.Info(fmt.Sprintf("Statement leading bytes (hex): %s", de.LeadingHex))
		}
		return false, de
	}
	return true, nil
}

// CleanStatement trims stmt, drops trailing semicolons and strips leading
// literal \n, \r and \t escape sequences left by older exporters.
func CleanStatement(stmt string) string {
	s := strings.TrimSpace(stmt)
	s = strings.TrimRight(s, ";")
	s = strings.TrimSpace(s)
	for len(s) >= 2 && s[0] == '\\' && (s[1] == 'n' || s[1] == 'r' || s[1] == 't') {
		s = s[2:]
	}
	return strings.TrimLeft(s, " \t\r\n\f\v")
}

func (im *Importer) contentDir() string {
	if im.ContentDir == "" {
		return "wp-content"
	}
	return strings.Trim(filepath.ToSlash(im.ContentDir), "/")
}
