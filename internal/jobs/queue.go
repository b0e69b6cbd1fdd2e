package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ALT-F4-LLC/jmigrate/internal/archive"
	"github.com/ALT-F4-LLC/jmigrate/internal/migrate"
	"github.com/ALT-F4-LLC/jmigrate/internal/model"
)

// Handler performs the work of one job, logging and reporting progress on
// the given sinks.
type Handler func(ctx context.Context, job model.Job, log migrate.Logger, progress migrate.Reporter) error

// QueueOptions configures a Queue. Zero values are usable.
type QueueOptions struct {
	// Buffer is the number of triggered jobs that may wait for a worker.
	Buffer  int
	Logger  *zap.Logger
	Metrics *Metrics
	// Fs and ArchiveDir are used to remove archives of import jobs that
	// ask for cleanup. Only archives inside ArchiveDir are removed.
	Fs         afero.Fs
	ArchiveDir string
	// WorkDir resolves relative archive and output paths when a job is
	// queued. Empty means the process working directory.
	WorkDir string
}

// Queue separates creating a job from running it. Enqueue records a pending
// job; Trigger hands it to a worker; RunNow runs it on the caller's
// goroutine.
type Queue struct {
	tracker Tracker
	handler Handler
	opts    QueueOptions
	log     *zap.Logger
	metrics *Metrics
	ids     chan string
}

// NewQueue returns a queue dispatching to h.
func NewQueue(t Tracker, h Handler, opts QueueOptions) *Queue {
	if opts.Buffer <= 0 {
		opts.Buffer = 16
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	m := opts.Metrics
	if m == nil {
		m = NewMetrics(nil)
	}
	return &Queue{
		tracker: t,
		handler: h,
		opts:    opts,
		log:     log,
		metrics: m,
		ids:     make(chan string, opts.Buffer),
	}
}

// Tracker returns the queue's tracker.
func (q *Queue) Tracker() Tracker {
	return q.tracker
}

// Enqueue validates and stores a pending job and returns its id.
func (q *Queue) Enqueue(ctx context.Context, j model.Job) (string, error) {
	j.Status = model.StatusPending
	j.Progress = 0
	j = j.WithDefaults()
	if err := model.ValidateJobKind(j.Kind); err != nil {
		return "", &migrate.ValidationError{Msg: err.Error()}
	}
	if err := model.ValidateFileSync(j.Files); err != nil {
		return "", &migrate.ValidationError{Msg: err.Error()}
	}
	if j.Kind == model.JobKindImport && j.Archive == "" {
		return "", &migrate.ValidationError{Msg: "Please provide the path to a migration archive."}
	}
	var err error
	if j.Archive, err = q.resolve(j.Archive); err != nil {
		return "", err
	}
	if j.Output, err = q.resolve(j.Output); err != nil {
		return "", err
	}

	id, err := q.tracker.Create(ctx, j)
	if err != nil {
		return "", fmt.Errorf("creating job: %w", err)
	}
	if err := q.tracker.AppendMessage(ctx, id, model.MessageInfo, queuedMessage(j.Kind)); err != nil {
		return "", fmt.Errorf("recording job: %w", err)
	}
	q.log.Info("job queued", zap.String("job_id", id), zap.String("kind", string(j.Kind)))
	return id, nil
}

// resolve makes p absolute so the job means the same file to whichever
// process runs it.
func (q *Queue) resolve(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	abs, err := migrate.ResolvePath(p, q.opts.WorkDir)
	if err != nil {
		return "", &migrate.ValidationError{Msg: fmt.Sprintf("invalid path %q: %v", p, err)}
	}
	return abs, nil
}

// Trigger claims a pending job and hands it to a worker. It reports false,
// without error, when the job was already started. Triggering is therefore
// safe to repeat.
func (q *Queue) Trigger(ctx context.Context, id string) (bool, error) {
	ok, err := q.tracker.Claim(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	select {
	case q.ids <- id:
		return true, nil
	case <-ctx.Done():
		q.fail(context.WithoutCancel(ctx), id, "", fmt.Errorf("job was not started: %w", ctx.Err()))
		return false, ctx.Err()
	}
}

// RunNow claims a pending job and runs it on the calling goroutine. It
// reports false, without error, when the job was already started.
func (q *Queue) RunNow(ctx context.Context, id string) (bool, error) {
	ok, err := q.tracker.Claim(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	return true, q.execute(context.WithoutCancel(ctx), id)
}

// Run starts n workers and blocks until ctx is done. A job that has
// started always runs to completion; cancelling ctx only stops new jobs
// from being picked up.
func (q *Queue) Run(ctx context.Context, n int) error {
	if n <= 0 {
		n = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case id := <-q.ids:
					// Failures are recorded on the job.
					_ = q.execute(context.WithoutCancel(ctx), id)
				}
			}
		})
	}
	return g.Wait()
}

func (q *Queue) execute(ctx context.Context, id string) error {
	job, err := q.tracker.Get(ctx, id)
	if err != nil {
		q.log.Error("loading job", zap.String("job_id", id), zap.Error(err))
		return err
	}
	kind := string(job.Kind)

	q.metrics.Started.WithLabelValues(kind).Inc()
	q.metrics.Running.Inc()
	defer q.metrics.Running.Dec()

	log := q.log.With(zap.String("job_id", id), zap.String("kind", kind))
	log.Info("job started")

	jl := &JobLogger{Tracker: q.tracker, ID: id, Ctx: ctx, Log: log}
	jl.Info(beginMessage(job.Kind))

	if err := q.run(ctx, job, jl); err != nil {
		q.fail(ctx, id, kind, err)
		log.Warn("job failed", zap.Error(err))
		return err
	}

	if job.Kind == model.JobKindImport && job.Cleanup {
		q.cleanup(jl, job.Archive)
	}

	status := model.StatusSuccess
	if err := q.tracker.Update(ctx, id, model.JobPatch{Status: &status, Progress: model.Ptr(100)}); err != nil {
		log.Error("finishing job", zap.Error(err))
		return err
	}
	q.metrics.Finished.WithLabelValues(kind, string(status)).Inc()
	log.Info("job finished")
	return nil
}

// run calls the handler, turning a panic into an error so the job still
// reaches a terminal status.
func (q *Queue) run(ctx context.Context, job model.Job, jl *JobLogger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return q.handler(ctx, job, jl, jl)
}

func (q *Queue) fail(ctx context.Context, id, kind string, err error) {
	msg := err.Error()
	if aerr := q.tracker.AppendMessage(ctx, id, model.MessageError, msg); aerr != nil && !errors.Is(aerr, ErrFinished) {
		q.log.Warn("recording failure", zap.String("job_id", id), zap.Error(aerr))
	}
	status := model.StatusError
	if uerr := q.tracker.Update(ctx, id, model.JobPatch{
		Status:   &status,
		Error:    &msg,
		Progress: model.Ptr(100),
	}); uerr != nil {
		q.log.Warn("recording failure", zap.String("job_id", id), zap.Error(uerr))
	}
	if kind != "" {
		q.metrics.Finished.WithLabelValues(kind, string(status)).Inc()
	}
}

func (q *Queue) cleanup(jl *JobLogger, path string) {
	if !archive.Within(q.opts.ArchiveDir, path) {
		return
	}
	if ok, _ := afero.Exists(q.opts.Fs, path); !ok {
		return
	}
	if err := archive.Remove(q.opts.Fs, q.opts.ArchiveDir, path); err != nil {
		jl.Warn("Failed to delete archive file.")
		return
	}
	jl.Info("Archive file deleted successfully.")
}

func queuedMessage(k model.JobKind) string {
	if k == model.JobKindExport {
		return "Export queued…"
	}
	return "Import queued…"
}

func beginMessage(k model.JobKind) string {
	if k == model.JobKindExport {
		return "Beginning export…"
	}
	return "Beginning import…"
}
