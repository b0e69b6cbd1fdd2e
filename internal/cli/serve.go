package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ALT-F4-LLC/jmigrate/internal/db"
	"github.com/ALT-F4-LLC/jmigrate/internal/jobs"
	"github.com/ALT-F4-LLC/jmigrate/internal/output"
	"github.com/ALT-F4-LLC/jmigrate/internal/server"
)

const sweepInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the job API over HTTP and run queued jobs",
	Long: `Start the HTTP job API, a pool of workers and the expiry sweeper.
Jobs are kept in the job database unless --memory is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)

		listen, _ := cmd.Flags().GetString("listen")
		if listen == "" {
			listen = cfg.Listen
		}
		workers, _ := cmd.Flags().GetInt("workers")
		memory, _ := cmd.Flags().GetBool("memory")

		log, err := zap.NewProduction()
		if err != nil {
			return cmdErr(fmt.Errorf("creating logger: %w", err), output.ErrGeneral)
		}
		defer log.Sync()

		var tracker jobs.Tracker
		if memory {
			tracker = jobs.NewMemoryTracker(clock.WallClock)
		} else {
			if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
				return cmdErr(fmt.Errorf("creating state directory: %w", err), output.ErrIO)
			}
			conn, err := db.OpenStore(cfg.DBPath)
			if err != nil {
				return cmdErr(err, output.ErrDatabase)
			}
			defer conn.Close()
			tracker = jobs.NewSQLTracker(conn, clock.WallClock)
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		s := newSite(cfg)
		q := jobs.NewQueue(tracker, s.handle, jobs.QueueOptions{
			Logger:     log,
			Metrics:    jobs.NewMetrics(reg),
			Fs:         s.fs,
			ArchiveDir: cfg.ArchiveDir,
			WorkDir:    s.workDir(),
		})
		srv := server.New(q, server.Options{
			Fs:         s.fs,
			ArchiveDir: cfg.ArchiveDir,
			Logger:     log,
			Gatherer:   reg,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w.Info("Serving jobs on http://%s", listen)
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.ListenAndServe(ctx, listen) })
		g.Go(func() error { return q.Run(ctx, workers) })
		g.Go(func() error { return jobs.RunSweeper(ctx, tracker, clock.WallClock, sweepInterval) })
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return cmdErr(fmt.Errorf("serve: %w", err), output.ErrGeneral)
		}
		w.Info("Stopped.")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "Address to listen on (default from config)")
	serveCmd.Flags().Int("workers", 1, "Number of jobs run concurrently")
	serveCmd.Flags().Bool("memory", false, "Keep jobs in memory instead of the job database")
	rootCmd.AddCommand(serveCmd)
}
