package cli

import (
	"context"
	"fmt"

	"github.com/juju/clock"
	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/jmigrate/internal/filter"
	"github.com/ALT-F4-LLC/jmigrate/internal/jobs"
	"github.com/ALT-F4-LLC/jmigrate/internal/migrate"
	"github.com/ALT-F4-LLC/jmigrate/internal/model"
	"github.com/ALT-F4-LLC/jmigrate/internal/output"
	"github.com/ALT-F4-LLC/jmigrate/internal/render"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Queue, run and inspect migration jobs",
}

// newQueue returns a queue backed by the job database. When echo is set the
// engine log is also printed through w.
func newQueue(cmd *cobra.Command, w *output.Writer, echo bool) *jobs.Queue {
	cfg := getCfg(cmd)
	s := newSite(cfg)
	h := s.handle
	if echo {
		h = func(ctx context.Context, j model.Job, log migrate.Logger, progress migrate.Reporter) error {
			return s.handle(ctx, j, migrate.MultiLogger{log, w.Engine()}, progress)
		}
	}
	return jobs.NewQueue(jobs.NewSQLTracker(getDB(cmd), clock.WallClock), h, jobs.QueueOptions{
		Fs:         s.fs,
		ArchiveDir: cfg.ArchiveDir,
		WorkDir:    s.workDir(),
	})
}

var jobsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Queue an import or export job",
	Example: `  jmigrate jobs create --file site.zip --files content --cleanup
  jmigrate jobs create --export --permanent https://example.com --temporary http://localhost`,
	Annotations: needsDB,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)

		export, _ := cmd.Flags().GetBool("export")
		file, _ := cmd.Flags().GetString("file")
		files, _ := cmd.Flags().GetString("files")
		cleanup, _ := cmd.Flags().GetBool("cleanup")
		permanent, _ := cmd.Flags().GetString("permanent")
		temporary, _ := cmd.Flags().GetString("temporary")
		out, _ := cmd.Flags().GetString("output")

		j := model.Job{
			Kind:    model.JobKindImport,
			Archive: file,
			Files:   model.FileSync(files),
			Cleanup: cleanup,
		}
		if export {
			j = model.Job{
				Kind:      model.JobKindExport,
				Permanent: permanent,
				Temporary: temporary,
				Output:    out,
			}
		}

		id, err := newQueue(cmd, w, false).Enqueue(cmd.Context(), j)
		if err != nil {
			return cmdErr(err, errorCode(err))
		}

		w.Success(struct {
			JobID string `json:"job_id"`
		}{JobID: id}, id)
		w.Info("Run it with: jmigrate jobs run %s", id)
		return nil
	},
}

var jobsRunCmd = &cobra.Command{
	Use:         "run <id>",
	Short:       "Run a queued job in the foreground",
	Long:        "Run a pending job to completion. Running a job that has already started does nothing.",
	Args:        cobra.ExactArgs(1),
	Annotations: needsDB,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		watch, _ := cmd.Flags().GetBool("watch")
		id := args[0]

		q := newQueue(cmd, w, watch)
		ran, runErr := q.RunNow(cmd.Context(), id)
		if runErr != nil && !ran {
			return cmdErr(runErr, errorCode(runErr))
		}

		j, err := q.Tracker().Get(cmd.Context(), id)
		if err != nil {
			return cmdErr(err, errorCode(err))
		}
		if !ran {
			w.Warn("Job %s was already started (%s)", id, j.Status)
		}
		if runErr != nil {
			return cmdErr(fmt.Errorf("job %s failed: %w", id, runErr), errorCode(runErr))
		}
		w.Success(j, render.RenderJob(&j))
		return nil
	},
}

var jobsStatusCmd = &cobra.Command{
	Use:         "status <id>",
	Short:       "Show a job's status, progress and log",
	Args:        cobra.ExactArgs(1),
	Annotations: needsDB,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		j, err := newQueue(cmd, w, false).Tracker().Get(cmd.Context(), args[0])
		if err != nil {
			return cmdErr(fmt.Errorf("job %s: %w", args[0], err), errorCode(err))
		}
		w.Success(j, render.RenderJob(&j))
		return nil
	},
}

type jobsListResult struct {
	Jobs  []model.Job `json:"jobs"`
	Total int         `json:"total"`
}

var jobsListCmd = &cobra.Command{
	Use:         "list",
	Short:       "List live jobs, newest first",
	Aliases:     []string{"ls"},
	Annotations: needsDB,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)

		statuses, _ := cmd.Flags().GetStringSlice("status")
		kinds, _ := cmd.Flags().GetStringSlice("kind")
		opts := filter.JobOptions{Statuses: statuses, Kinds: kinds}
		if err := opts.Validate(); err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		all, err := newQueue(cmd, w, false).Tracker().List(cmd.Context())
		if err != nil {
			return cmdErr(fmt.Errorf("listing jobs: %w", err), output.ErrGeneral)
		}
		list := filter.Jobs(all, opts)
		w.Success(jobsListResult{Jobs: list, Total: len(list)}, render.RenderJobsTable(list))
		return nil
	},
}

var jobsDeleteCmd = &cobra.Command{
	Use:         "delete <id>",
	Short:       "Forget a job",
	Args:        cobra.ExactArgs(1),
	Annotations: needsDB,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		if err := newQueue(cmd, w, false).Tracker().Delete(cmd.Context(), args[0]); err != nil {
			return cmdErr(fmt.Errorf("job %s: %w", args[0], err), errorCode(err))
		}
		w.Success(struct {
			ID string `json:"id"`
		}{ID: args[0]}, fmt.Sprintf("Deleted job %s", args[0]))
		return nil
	},
}

func init() {
	jobsCreateCmd.Flags().StringP("file", "f", "", "Migration archive to import")
	jobsCreateCmd.Flags().String("files", string(model.FileSyncAll), "Files to copy: all, content or skip")
	jobsCreateCmd.Flags().Bool("cleanup", false, "Delete the archive after a successful import")
	jobsCreateCmd.Flags().Bool("export", false, "Queue an export instead of an import")
	jobsCreateCmd.Flags().String("permanent", "", "Export: URL the site is served from today")
	jobsCreateCmd.Flags().String("temporary", "", "Export: URL the archive will be imported under")
	jobsCreateCmd.Flags().StringP("output", "o", "", "Export: archive path")

	jobsListCmd.Flags().StringSliceP("status", "s", nil, "Filter by status (pending, running, success, error)")
	jobsListCmd.Flags().StringSlice("kind", nil, "Filter by kind (import, export)")

	jobsRunCmd.Flags().BoolP("watch", "w", false, "Print the job log while it runs")

	jobsCmd.AddCommand(jobsCreateCmd, jobsRunCmd, jobsStatusCmd, jobsListCmd, jobsDeleteCmd)
	rootCmd.AddCommand(jobsCmd)
}
