// Package jobs tracks migration jobs and runs them on workers.
package jobs

import (
	"context"
	"errors"

	"github.com/ALT-F4-LLC/jmigrate/internal/model"
)

var (
	// ErrNotFound is returned for unknown or expired jobs.
	ErrNotFound = errors.New("job not found")
	// ErrFinished is returned when mutating a job in a terminal status.
	ErrFinished = errors.New("job already finished")
)

// Tracker stores job state. Every write refreshes the job's expiry to
// model.TTL past the write.
type Tracker interface {
	// Create stores j as a new job and returns its id. An empty id is
	// replaced with a random one.
	Create(ctx context.Context, j model.Job) (string, error)
	Get(ctx context.Context, id string) (model.Job, error)
	Update(ctx context.Context, id string, p model.JobPatch) error
	AppendMessage(ctx context.Context, id string, kind model.MessageKind, text string) error
	SetProgress(ctx context.Context, id string, pct int) error
	// Claim moves a pending job to running. It reports false when the job
	// is no longer pending.
	Claim(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	// List returns live jobs, newest first.
	List(ctx context.Context) ([]model.Job, error)
	// Sweep drops expired jobs and returns how many were dropped.
	Sweep(ctx context.Context) (int, error)
}
