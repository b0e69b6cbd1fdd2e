package jobs

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/ALT-F4-LLC/jmigrate/internal/db"
	"github.com/ALT-F4-LLC/jmigrate/internal/model"
)

// SQLTracker stores jobs in the SQLite job store, so a job created by one
// process can be run and polled by another while it is live.
type SQLTracker struct {
	db    *sql.DB
	clock clock.Clock
}

// NewSQLTracker returns a tracker backed by an initialized job store.
func NewSQLTracker(conn *sql.DB, clk clock.Clock) *SQLTracker {
	if clk == nil {
		clk = clock.WallClock
	}
	return &SQLTracker{db: conn, clock: clk}
}

// now is truncated to the store's timestamp resolution.
func (t *SQLTracker) now() time.Time {
	return t.clock.Now().UTC().Truncate(time.Second)
}

func (t *SQLTracker) Create(_ context.Context, j model.Job) (string, error) {
	j = j.WithDefaults()
	if err := validateNew(j); err != nil {
		return "", err
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	now := t.now()
	j.CreatedAt = now
	touch(&j, now)
	if err := db.InsertJob(t.db, j); err != nil {
		return "", err
	}
	for _, m := range j.Messages {
		if m.Time.IsZero() {
			m.Time = now
		}
		if err := db.AddMessage(t.db, j.ID, m, j.ExpiresAt); err != nil {
			return "", err
		}
	}
	return j.ID, nil
}

func (t *SQLTracker) Get(_ context.Context, id string) (model.Job, error) {
	j, err := db.GetJob(t.db, id, t.now())
	if err != nil {
		return model.Job{}, mapErr(err)
	}
	return *j, nil
}

func (t *SQLTracker) Update(_ context.Context, id string, p model.JobPatch) error {
	return t.mutate(id, func(j model.Job) model.Job {
		return p.Apply(j)
	})
}

func (t *SQLTracker) AppendMessage(ctx context.Context, id string, kind model.MessageKind, text string) error {
	if err := model.ValidateMessageKind(kind); err != nil {
		return err
	}
	j, err := t.Get(ctx, id)
	if err != nil {
		return err
	}
	if j.Status.Terminal() {
		return ErrFinished
	}
	now := t.now()
	msg := model.Message{Kind: kind, Text: text, Time: now}
	return mapErr(db.AddMessage(t.db, id, msg, now.Add(model.TTL)))
}

func (t *SQLTracker) SetProgress(_ context.Context, id string, pct int) error {
	return t.mutate(id, func(j model.Job) model.Job {
		j.Progress = model.ClampProgress(pct)
		return j
	})
}

func (t *SQLTracker) Claim(_ context.Context, id string) (bool, error) {
	now := t.now()
	ok, err := db.ClaimJob(t.db, id, now, now.Add(model.TTL))
	return ok, mapErr(err)
}

func (t *SQLTracker) Delete(_ context.Context, id string) error {
	return mapErr(db.DeleteJob(t.db, id))
}

func (t *SQLTracker) List(_ context.Context) ([]model.Job, error) {
	rows, err := db.ListJobs(t.db, t.now())
	if err != nil {
		return nil, err
	}
	out := make([]model.Job, 0, len(rows))
	for _, j := range rows {
		if j.Messages == nil {
			j.Messages = []model.Message{}
		}
		out = append(out, *j)
	}
	return out, nil
}

func (t *SQLTracker) Sweep(_ context.Context) (int, error) {
	return db.DeleteExpired(t.db, t.now())
}

func (t *SQLTracker) mutate(id string, fn func(model.Job) model.Job) error {
	now := t.now()
	_, err := db.UpdateJob(t.db, id, now, func(j model.Job) (model.Job, error) {
		if j.Status.Terminal() {
			return j, ErrFinished
		}
		j = fn(j)
		touch(&j, now)
		return j, nil
	})
	return mapErr(err)
}

func mapErr(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
