// Package server exposes the job queue over HTTP so a migration started from
// a browser or script keeps running after the request that created it ends.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/ALT-F4-LLC/jmigrate/internal/archive"
	"github.com/ALT-F4-LLC/jmigrate/internal/filter"
	"github.com/ALT-F4-LLC/jmigrate/internal/jobs"
	"github.com/ALT-F4-LLC/jmigrate/internal/migrate"
	"github.com/ALT-F4-LLC/jmigrate/internal/model"
)

// Options configures a Server.
type Options struct {
	Fs         afero.Fs
	ArchiveDir string
	Logger     *zap.Logger
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// Server routes job and archive requests to a queue.
type Server struct {
	queue *jobs.Queue
	opts  Options
	log   *zap.Logger
}

// New returns a server for q.
func New(q *jobs.Queue, opts Options) *Server {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{queue: q, opts: opts, log: log}
}

// createRequest is the body of POST /jobs.
type createRequest struct {
	Kind      string `json:"kind"`
	Archive   string `json:"archive"`
	Files     string `json:"files"`
	Cleanup   bool   `json:"cleanup"`
	Permanent string `json:"permanent"`
	Temporary string `json:"temporary"`
	Output    string `json:"output"`
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Get("/{id}", s.handleStatus)
		r.Post("/{id}/run", s.handleRun)
		r.Delete("/{id}", s.handleDelete)
	})
	r.Get("/archives", s.handleArchives)
	r.Delete("/archives/{name}", s.handleArchiveDelete)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := s.queue.Enqueue(r.Context(), model.Job{
		Kind:      model.JobKind(req.Kind),
		Archive:   req.Archive,
		Files:     model.FileSync(req.Files),
		Cleanup:   req.Cleanup,
		Permanent: req.Permanent,
		Temporary: req.Temporary,
		Output:    req.Output,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"job_id": id})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	started, err := s.queue.Trigger(r.Context(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": id, "started": started})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	j, err := s.queue.Tracker().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	opts := filter.JobOptions{Statuses: r.URL.Query()["status"], Kinds: r.URL.Query()["kind"]}
	if err := opts.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := s.queue.Tracker().List(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, filter.Jobs(list, opts))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.queue.Tracker().Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleArchives(w http.ResponseWriter, r *http.Request) {
	infos, err := archive.List(s.opts.Fs, s.opts.ArchiveDir)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleArchiveDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name != filepath.Base(name) {
		writeError(w, http.StatusBadRequest, "Invalid archive name")
		return
	}
	if err := archive.Remove(s.opts.Fs, s.opts.ArchiveDir, name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "Archive could not be found on the server.")
			return
		}
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeErr maps engine and tracker errors to status codes.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	var ve *migrate.ValidationError
	switch {
	case errors.As(err, &ve), errors.Is(err, archive.ErrOutsideDir):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, jobs.ErrFinished):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
