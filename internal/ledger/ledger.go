// Package ledger is the append-only history of iteration attempts, one
// JSON line per event. Events are written once and never modified or
// reordered; the PRD owns current status, the ledger owns history.
package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/prdloop/internal/logger"
)

// EventStatus is the outcome an event records.
type EventStatus string

const (
	StatusStarted EventStatus = "started"
	StatusDone    EventStatus = "done"
	StatusFailed  EventStatus = "failed"
)

// ValidationResult summarizes a pipeline run for a ledger event: the state
// of every gate plus whether the test gate was escalated in.
type ValidationResult struct {
	Gates     map[string]string `json:"gates"` // gate -> pass | fail | not_run
	Escalated bool              `json:"escalated"`
}

// Event is one completed iteration attempt.
type Event struct {
	Timestamp     time.Time         `json:"timestamp"`
	Iteration     int               `json:"iteration"`
	RequirementID string            `json:"requirementId"`
	Status        EventStatus       `json:"status"`
	Validation    *ValidationResult `json:"validation,omitempty"`
	Message       string            `json:"message,omitempty"`
}

// Store appends to and reads the per-slug ledger file at
// <dataDir>/tasks/<slug>/ledger.jsonl.
type Store struct {
	dataDir string
}

// NewStore creates a Store rooted at the given data directory.
func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// Path returns the ledger file path for a slug.
func (s *Store) Path(slug string) string {
	return filepath.Join(s.dataDir, "tasks", slug, "ledger.jsonl")
}

// Append writes one event as a single line and fsyncs before returning.
// Callers hold the run guard, so there is exactly one writer per slug.
func (s *Store) Append(slug string, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling ledger event: %w", err)
	}
	data = append(data, '\n')

	path := s.Path(slug)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("appending ledger event: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("flushing ledger: %w", err)
	}

	logger.Debug("Appended ledger event: slug=%s iteration=%d requirement=%s status=%s",
		slug, event.Iteration, event.RequirementID, event.Status)
	return nil
}

// ReadAll returns every event in file order. A line that does not parse is
// skipped with a warning rather than treated as fatal; a truncated trailing
// line is the normal artifact of a crash mid-append.
func (s *Store) ReadAll(slug string) ([]Event, error) {
	f, err := os.Open(s.Path(slug))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			logger.Warn("Skipping corrupt ledger line %d in %s: %v", lineNo, slug, err)
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	return events, nil
}

// NextIterationNumber returns 1 + the highest iteration number on record,
// or 1 for an empty ledger.
func (s *Store) NextIterationNumber(slug string) (int, error) {
	events, err := s.ReadAll(slug)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, e := range events {
		if e.Iteration > max {
			max = e.Iteration
		}
	}
	return max + 1, nil
}

// LastFailure returns the message of the most recent failed event for a
// requirement, or "" if it has never failed. Used to feed validation
// diagnostics back into the next agent prompt.
func (s *Store) LastFailure(slug, requirementID string) (string, error) {
	events, err := s.ReadAll(slug)
	if err != nil {
		return "", err
	}
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		if e.RequirementID == requirementID && e.Status == StatusFailed {
			return e.Message, nil
		}
	}
	return "", nil
}

// Replay folds events in file order over an empty status map. The result
// mirrors the PRD's current statuses for every requirement the engine has
// touched: started and failed leave a requirement in_progress, done makes
// it done. Externally set blocked statuses live only in the PRD.
func Replay(events []Event) map[string]string {
	statuses := make(map[string]string)
	for _, e := range events {
		switch e.Status {
		case StatusStarted, StatusFailed:
			if statuses[e.RequirementID] != "done" {
				statuses[e.RequirementID] = "in_progress"
			}
		case StatusDone:
			statuses[e.RequirementID] = "done"
		}
	}
	return statuses
}
