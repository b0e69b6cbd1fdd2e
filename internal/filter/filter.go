package filter

import "github.com/ALT-F4-LLC/jmigrate/internal/model"

// ToStringSet converts a slice of strings to a set for O(1) membership checks.
func ToStringSet(ss []string) map[string]struct{} {
	if len(ss) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		set[s] = struct{}{}
	}
	return set
}

// JobOptions selects jobs by status and kind. Empty fields match everything.
type JobOptions struct {
	Statuses []string
	Kinds    []string
}

// Validate returns an error for unknown statuses or kinds.
func (o JobOptions) Validate() error {
	for _, s := range o.Statuses {
		if err := model.ValidateStatus(model.Status(s)); err != nil {
			return err
		}
	}
	for _, k := range o.Kinds {
		if err := model.ValidateJobKind(model.JobKind(k)); err != nil {
			return err
		}
	}
	return nil
}

// Jobs returns the jobs matching o, keeping their order.
func Jobs(jobs []model.Job, o JobOptions) []model.Job {
	statuses := ToStringSet(o.Statuses)
	kinds := ToStringSet(o.Kinds)
	out := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if !matches(statuses, string(j.Status)) || !matches(kinds, string(j.Kind)) {
			continue
		}
		out = append(out, j)
	}
	return out
}

func matches(set map[string]struct{}, v string) bool {
	if set == nil {
		return true
	}
	_, ok := set[v]
	return ok
}
