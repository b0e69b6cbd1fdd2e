package jobs

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/ALT-F4-LLC/jmigrate/internal/model"
)

// MemoryTracker keeps jobs in a map. Expired jobs are dropped lazily on
// access and by Sweep.
type MemoryTracker struct {
	mu    sync.Mutex
	jobs  map[string]*model.Job
	clock clock.Clock
}

// NewMemoryTracker returns an empty tracker. A nil clock uses the wall
// clock.
func NewMemoryTracker(clk clock.Clock) *MemoryTracker {
	if clk == nil {
		clk = clock.WallClock
	}
	return &MemoryTracker{jobs: map[string]*model.Job{}, clock: clk}
}

func (t *MemoryTracker) Create(_ context.Context, j model.Job) (string, error) {
	j = j.WithDefaults()
	if err := validateNew(j); err != nil {
		return "", err
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.live(j.ID); ok {
		return "", fmt.Errorf("job %s already exists", j.ID)
	}
	now := t.clock.Now().UTC()
	j.CreatedAt = now
	j.Messages = slices.Clone(j.Messages)
	for i := range j.Messages {
		if j.Messages[i].Time.IsZero() {
			j.Messages[i].Time = now
		}
	}
	touch(&j, now)
	t.jobs[j.ID] = &j
	return j.ID, nil
}

func (t *MemoryTracker) Get(_ context.Context, id string) (model.Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	j, ok := t.live(id)
	if !ok {
		return model.Job{}, ErrNotFound
	}
	return clone(j), nil
}

func (t *MemoryTracker) Update(_ context.Context, id string, p model.JobPatch) error {
	return t.mutate(id, func(j *model.Job) {
		*j = p.Apply(*j)
	})
}

func (t *MemoryTracker) AppendMessage(_ context.Context, id string, kind model.MessageKind, text string) error {
	if err := model.ValidateMessageKind(kind); err != nil {
		return err
	}
	now := t.clock.Now().UTC()
	return t.mutate(id, func(j *model.Job) {
		j.Messages = append(j.Messages, model.Message{Kind: kind, Text: text, Time: now})
	})
}

func (t *MemoryTracker) SetProgress(_ context.Context, id string, pct int) error {
	return t.mutate(id, func(j *model.Job) {
		j.Progress = model.ClampProgress(pct)
	})
}

func (t *MemoryTracker) Claim(_ context.Context, id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	j, ok := t.live(id)
	if !ok {
		return false, ErrNotFound
	}
	if j.Status != model.StatusPending {
		return false, nil
	}
	j.Status = model.StatusRunning
	touch(j, t.clock.Now().UTC())
	return true, nil
}

func (t *MemoryTracker) Delete(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.live(id); !ok {
		return ErrNotFound
	}
	delete(t.jobs, id)
	return nil
}

func (t *MemoryTracker) List(_ context.Context) ([]model.Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := []model.Job{}
	for id := range t.jobs {
		if j, ok := t.live(id); ok {
			out = append(out, clone(j))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (t *MemoryTracker) Sweep(_ context.Context) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	n := 0
	for id, j := range t.jobs {
		if !now.Before(j.ExpiresAt) {
			delete(t.jobs, id)
			n++
		}
	}
	return n, nil
}

// live returns the job if it has not expired, dropping it otherwise. The
// caller holds t.mu.
func (t *MemoryTracker) live(id string) (*model.Job, bool) {
	j, ok := t.jobs[id]
	if !ok {
		return nil, false
	}
	if !t.clock.Now().Before(j.ExpiresAt) {
		delete(t.jobs, id)
		return nil, false
	}
	return j, true
}

func (t *MemoryTracker) mutate(id string, fn func(*model.Job)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	j, ok := t.live(id)
	if !ok {
		return ErrNotFound
	}
	if j.Status.Terminal() {
		return ErrFinished
	}
	fn(j)
	touch(j, t.clock.Now().UTC())
	return nil
}

func touch(j *model.Job, now time.Time) {
	j.UpdatedAt = now
	j.ExpiresAt = now.Add(model.TTL)
}

func clone(j *model.Job) model.Job {
	c := *j
	c.Messages = slices.Clone(j.Messages)
	if c.Messages == nil {
		c.Messages = []model.Message{}
	}
	return c
}

func sortNewestFirst(jobs []model.Job) {
	slices.SortFunc(jobs, func(a, b model.Job) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func validateNew(j model.Job) error {
	if err := model.ValidateJobKind(j.Kind); err != nil {
		return err
	}
	if err := model.ValidateStatus(j.Status); err != nil {
		return err
	}
	return model.ValidateFileSync(j.Files)
}

// RunSweeper calls Sweep on t every interval until ctx is done.
func RunSweeper(ctx context.Context, t Tracker, clk clock.Clock, interval time.Duration) error {
	if clk == nil {
		clk = clock.WallClock
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-clk.After(interval):
			if _, err := t.Sweep(ctx); err != nil {
				return fmt.Errorf("sweeping jobs: %w", err)
			}
		}
	}
}
