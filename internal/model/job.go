package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// TTL is how long a job is kept after its last write.
const TTL = 30 * time.Minute

// Status represents the lifecycle state of a job.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

var validStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusSuccess,
	StatusError,
}

// ValidateStatus returns an error if s is not a recognized status.
func ValidateStatus(s Status) error {
	for _, v := range validStatuses {
		if s == v {
			return nil
		}
	}
	return fmt.Errorf("invalid status %q: must be one of %v", s, validStatuses)
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// Color returns a color name string suitable for terminal rendering.
func (s Status) Color() string {
	switch s {
	case StatusPending:
		return "gray"
	case StatusRunning:
		return "yellow"
	case StatusSuccess:
		return "green"
	case StatusError:
		return "red"
	default:
		return "white"
	}
}

// Icon returns a short marker for the status.
func (s Status) Icon() string {
	switch s {
	case StatusPending:
		return "…"
	case StatusRunning:
		return "»"
	case StatusSuccess:
		return "✓"
	case StatusError:
		return "✗"
	default:
		return " "
	}
}

// JobKind distinguishes import from export jobs.
type JobKind string

const (
	JobKindImport JobKind = "import"
	JobKindExport JobKind = "export"
)

// ValidateJobKind returns an error if k is not a recognized job kind.
func ValidateJobKind(k JobKind) error {
	switch k {
	case JobKindImport, JobKindExport:
		return nil
	}
	return fmt.Errorf("invalid job kind %q: must be one of [import export]", k)
}

// FileSync selects which archive members an import copies into the site.
type FileSync string

const (
	FileSyncAll     FileSync = "all"
	FileSyncContent FileSync = "content"
	FileSyncSkip    FileSync = "skip"
)

var validFileSyncs = []FileSync{FileSyncAll, FileSyncContent, FileSyncSkip}

// ValidateFileSync returns an error if f is not a recognized strategy.
func ValidateFileSync(f FileSync) error {
	for _, v := range validFileSyncs {
		if f == v {
			return nil
		}
	}
	return fmt.Errorf("invalid file strategy %q: must be one of %v", f, validFileSyncs)
}

// Job is the tracked state of one migration run.
type Job struct {
	ID        string
	Kind      JobKind
	Status    Status
	Progress  int
	Messages  []Message
	Archive   string
	Files     FileSync
	Permanent string
	Temporary string
	Output    string
	Cleanup   bool
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// WithDefaults fills unset fields the way a freshly created job expects.
func (j Job) WithDefaults() Job {
	if j.Kind == "" {
		j.Kind = JobKindImport
	}
	if j.Status == "" {
		j.Status = StatusPending
	}
	if j.Files == "" {
		j.Files = FileSyncAll
	}
	if j.Messages == nil {
		j.Messages = []Message{}
	}
	j.Progress = ClampProgress(j.Progress)
	return j
}

// ClampProgress limits p to [0, 100].
func ClampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// JobPatch holds the fields an update merges into a job. Nil fields are
// left unchanged.
type JobPatch struct {
	Status    *Status
	Progress  *int
	Archive   *string
	Files     *FileSync
	Output    *string
	Cleanup   *bool
	Error     *string
	Permanent *string
	Temporary *string
}

// Apply merges p into j.
func (p JobPatch) Apply(j Job) Job {
	if p.Status != nil {
		j.Status = *p.Status
	}
	if p.Progress != nil {
		j.Progress = ClampProgress(*p.Progress)
	}
	if p.Archive != nil {
		j.Archive = *p.Archive
	}
	if p.Files != nil {
		j.Files = *p.Files
	}
	if p.Output != nil {
		j.Output = *p.Output
	}
	if p.Cleanup != nil {
		j.Cleanup = *p.Cleanup
	}
	if p.Error != nil {
		j.Error = *p.Error
	}
	if p.Permanent != nil {
		j.Permanent = *p.Permanent
	}
	if p.Temporary != nil {
		j.Temporary = *p.Temporary
	}
	return j
}

// jobJSON is the JSON wire format for Job.
type jobJSON struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Messages  []Message `json:"messages"`
	Archive   string    `json:"archive,omitempty"`
	Files     string    `json:"files,omitempty"`
	Permanent string    `json:"permanent,omitempty"`
	Temporary string    `json:"temporary,omitempty"`
	Output    string    `json:"output,omitempty"`
	Cleanup   bool      `json:"cleanup"`
	Error     string    `json:"error"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
	ExpiresAt string    `json:"expires_at"`
}

// MarshalJSON implements custom JSON serialization for Job.
func (j Job) MarshalJSON() ([]byte, error) {
	msgs := j.Messages
	if msgs == nil {
		msgs = []Message{}
	}
	return json.Marshal(jobJSON{
		ID:        j.ID,
		Kind:      string(j.Kind),
		Status:    string(j.Status),
		Progress:  j.Progress,
		Messages:  msgs,
		Archive:   j.Archive,
		Files:     string(j.Files),
		Permanent: j.Permanent,
		Temporary: j.Temporary,
		Output:    j.Output,
		Cleanup:   j.Cleanup,
		Error:     j.Error,
		CreatedAt: j.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.UTC().Format(time.RFC3339),
		ExpiresAt: j.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// UnmarshalJSON implements custom JSON deserialization for Job.
func (j *Job) UnmarshalJSON(data []byte) error {
	var w jobJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	j.ID = w.ID
	j.Kind = JobKind(w.Kind)
	if err := ValidateJobKind(j.Kind); err != nil {
		return err
	}
	j.Status = Status(w.Status)
	if err := ValidateStatus(j.Status); err != nil {
		return err
	}
	j.Files = FileSync(w.Files)
	if j.Files != "" {
		if err := ValidateFileSync(j.Files); err != nil {
			return err
		}
	}

	j.Progress = ClampProgress(w.Progress)
	j.Messages = w.Messages
	j.Archive = w.Archive
	j.Permanent = w.Permanent
	j.Temporary = w.Temporary
	j.Output = w.Output
	j.Cleanup = w.Cleanup
	j.Error = w.Error

	var err error
	if j.CreatedAt, err = time.Parse(time.RFC3339, w.CreatedAt); err != nil {
		return fmt.Errorf("parsing created_at: %w", err)
	}
	if j.UpdatedAt, err = time.Parse(time.RFC3339, w.UpdatedAt); err != nil {
		return fmt.Errorf("parsing updated_at: %w", err)
	}
	if j.ExpiresAt, err = time.Parse(time.RFC3339, w.ExpiresAt); err != nil {
		return fmt.Errorf("parsing expires_at: %w", err)
	}
	return nil
}

// Ptr returns a pointer to v. It keeps JobPatch literals short.
func Ptr[T any](v T) *T {
	return &v
}
