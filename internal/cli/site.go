package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/ALT-F4-LLC/jmigrate/internal/config"
	"github.com/ALT-F4-LLC/jmigrate/internal/migrate"
	"github.com/ALT-F4-LLC/jmigrate/internal/model"
	"github.com/ALT-F4-LLC/jmigrate/internal/mysql"
)

// site builds engines for the configured WordPress install.
type site struct {
	cfg *config.Config
	fs  afero.Fs
}

func newSite(cfg *config.Config) *site {
	return &site{cfg: cfg, fs: afero.NewOsFs()}
}

// connect opens the site database.
func (s *site) connect(ctx context.Context) (*sql.DB, error) {
	if s.cfg.DSN == "" {
		return nil, &migrate.ValidationError{Msg: "No database configured: set JMIGRATE_DSN or the DB_* variables."}
	}
	conn, err := mysql.Open(ctx, s.cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("site database: %w", err)
	}
	return conn, nil
}

func (s *site) workDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return s.cfg.Root
	}
	return wd
}

func (s *site) exporter(src migrate.Source, log migrate.Logger, progress migrate.Reporter) *migrate.Exporter {
	return &migrate.Exporter{
		Fs:         s.fs,
		Source:     src,
		Root:       s.cfg.Root,
		ArchiveDir: s.cfg.ArchiveDir,
		TempDir:    s.cfg.TempDir,
		WorkDir:    s.workDir(),
		Log:        log,
		Progress:   progress,
	}
}

func (s *site) importer(exec migrate.Executor, log migrate.Logger, progress migrate.Reporter) *migrate.Importer {
	im := &migrate.Importer{
		Fs:             s.fs,
		DB:             exec,
		Root:           s.cfg.Root,
		Prefix:         s.cfg.TablePrefix,
		ContentDir:     s.cfg.ContentDir,
		ProtectedFile:  s.cfg.ProtectedFile,
		TempDir:        s.cfg.TempDir,
		WorkDir:        s.workDir(),
		ReadSize:       s.cfg.ReadSize,
		HexDiagnostics: s.cfg.HexDiagnostics,
		Log:            log,
		Progress:       progress,
	}
	if s.cfg.DelegateThreshold > 0 {
		if bin := migrate.LocateDelegate(s.cfg.DelegateCandidates()); bin != "" {
			im.Delegate = &migrate.Delegate{Bin: bin, Threshold: s.cfg.DelegateThreshold}
		}
	}
	return im
}

// runExport exports the site database and tree. The request is checked
// before the site database is dialed.
func (s *site) runExport(ctx context.Context, req migrate.ExportRequest, log migrate.Logger, progress migrate.Reporter) (migrate.ExportResult, error) {
	ex := s.exporter(nil, log, progress)
	if err := ex.Validate(req); err != nil {
		return migrate.ExportResult{}, err
	}
	conn, err := s.connect(ctx)
	if err != nil {
		return migrate.ExportResult{}, err
	}
	defer conn.Close()
	ex.Source = mysql.NewSource(conn)
	return ex.Export(ctx, req)
}

// runImport restores an archive on a single pinned connection. The request
// is checked before the site database is dialed.
func (s *site) runImport(ctx context.Context, req migrate.ImportRequest, log migrate.Logger, progress migrate.Reporter) (migrate.ImportResult, error) {
	im := s.importer(nil, log, progress)
	if err := im.Validate(req); err != nil {
		return migrate.ImportResult{}, err
	}
	conn, err := s.connect(ctx)
	if err != nil {
		return migrate.ImportResult{}, err
	}
	defer conn.Close()
	sess, err := mysql.Session(ctx, conn)
	if err != nil {
		return migrate.ImportResult{}, err
	}
	defer sess.Close()
	im.DB = sess
	return im.Import(ctx, req)
}

// handle runs a queued job.
func (s *site) handle(ctx context.Context, j model.Job, log migrate.Logger, progress migrate.Reporter) error {
	switch j.Kind {
	case model.JobKindExport:
		_, err := s.runExport(ctx, migrate.ExportRequest{
			Permanent: j.Permanent,
			Temporary: j.Temporary,
			Output:    j.Output,
		}, log, progress)
		return err
	default:
		_, err := s.runImport(ctx, migrate.ImportRequest{Archive: j.Archive, Files: j.Files}, log, progress)
		return err
	}
}
