// Package prd manages the per-feature Product Requirements Document: the
// single source of truth for requirement statuses. The document is created
// once at planning time and afterwards mutated only through the explicit
// status transitions below.
package prd

import (
	"fmt"
)

// SchemaVersion is the only PRD schema this build can operate on. Any other
// version is refused before mutation.
const SchemaVersion = "1.0"

// Status of a single requirement.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusBlocked    Status = "blocked"
)

// Valid reports whether s is one of the four requirement statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone, StatusBlocked:
		return true
	}
	return false
}

// Requirement is one independently implementable unit of work.
type Requirement struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Status             Status   `json:"status"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
	BlockedReason      string   `json:"blockedReason,omitempty"`
}

// Document is a Product Requirements Document for one feature slug.
// Requirement order is stable and defines selection priority.
type Document struct {
	SchemaVersion      string         `json:"schemaVersion"`
	Slug               string         `json:"slug"`
	Title              string         `json:"title"`
	ActiveRunID        string         `json:"activeRunId"`
	ValidationProfiles []string       `json:"validationProfiles"`
	Requirements       []*Requirement `json:"requirements"`
}

// Requirement returns the requirement with the given ID, or nil.
func (d *Document) Requirement(id string) *Requirement {
	for _, r := range d.Requirements {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// SelectNext picks the requirement the next iteration should work on:
// an existing in_progress requirement wins (resume over start), otherwise
// the first todo in document order. Returns nil when only done and blocked
// requirements remain. Pure read; no mutation.
func (d *Document) SelectNext() *Requirement {
	for _, r := range d.Requirements {
		if r.Status == StatusInProgress {
			return r
		}
	}
	for _, r := range d.Requirements {
		if r.Status == StatusTodo {
			return r
		}
	}
	return nil
}

// MarkInProgress transitions a todo requirement to in_progress. Calling it
// on a requirement that is already in_progress is a no-op, so a crashed
// iteration resumes instead of restarting. At most one requirement may be
// in_progress at a time.
func (d *Document) MarkInProgress(id string) error {
	req := d.Requirement(id)
	if req == nil {
		return fmt.Errorf("requirement not found: %s", id)
	}
	switch req.Status {
	case StatusInProgress:
		return nil
	case StatusDone:
		return fmt.Errorf("requirement %s is done and cannot be reopened", id)
	case StatusBlocked:
		return fmt.Errorf("requirement %s is blocked: %s", id, req.BlockedReason)
	}
	for _, r := range d.Requirements {
		if r.ID != id && r.Status == StatusInProgress {
			return fmt.Errorf("requirement %s is already in progress", r.ID)
		}
	}
	req.Status = StatusInProgress
	return nil
}

// MarkDone transitions an in_progress requirement to done. Done is
// terminal; marking a done requirement done again is a no-op.
func (d *Document) MarkDone(id string) error {
	req := d.Requirement(id)
	if req == nil {
		return fmt.Errorf("requirement not found: %s", id)
	}
	if req.Status == StatusDone {
		return nil
	}
	if req.Status != StatusInProgress {
		return fmt.Errorf("requirement %s is %s, not in_progress", id, req.Status)
	}
	req.Status = StatusDone
	req.BlockedReason = ""
	return nil
}

// MarkFailed records a failed attempt. The status is deliberately left
// unchanged: a failed in_progress requirement is retried verbatim on the
// next invocation.
func (d *Document) MarkFailed(id string) error {
	if d.Requirement(id) == nil {
		return fmt.Errorf("requirement not found: %s", id)
	}
	return nil
}

// MarkBlocked transitions a requirement to blocked. Only external callers
// drive this transition, and a reason is mandatory. Done never regresses.
func (d *Document) MarkBlocked(id, reason string) error {
	req := d.Requirement(id)
	if req == nil {
		return fmt.Errorf("requirement not found: %s", id)
	}
	if reason == "" {
		return fmt.Errorf("blocking requirement %s requires a reason", id)
	}
	if req.Status == StatusDone {
		return fmt.Errorf("requirement %s is done and cannot be blocked", id)
	}
	req.Status = StatusBlocked
	req.BlockedReason = reason
	return nil
}

// Counts returns how many requirements are done and the total.
func (d *Document) Counts() (done, total int) {
	total = len(d.Requirements)
	for _, r := range d.Requirements {
		if r.Status == StatusDone {
			done++
		}
	}
	return done, total
}
